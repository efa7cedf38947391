package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SequenceInvoice  = "INVOICE"
	SequenceCustomer = "CUSTOMER"
)

// DocumentSequence is a per-organization counter. It is bumped inside the
// caller's transaction, so a rolled back document releases its number.
type DocumentSequence struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:64;not null;uniqueIndex:uniq_doc_seq,priority:1" json:"organization_id"`
	Name           string    `gorm:"size:50;not null;uniqueIndex:uniq_doc_seq,priority:2" json:"name"`
	LastNumber     int64     `gorm:"not null;default:0" json:"last_number"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func FormatInvoiceNumber(n int64) string {
	return fmt.Sprintf("INV-%04d", n)
}

var invoiceNumberPattern = regexp.MustCompile(`^INV-(\d+)$`)

// parseInvoiceNumber reports the counter value of a number in the INV-#### format.
func parseInvoiceNumber(number string) (int64, bool) {
	m := invoiceNumberPattern.FindStringSubmatch(number)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func FormatCustomerCode(n int64) string {
	return fmt.Sprintf("CUST-%04d", n)
}

// nextSequence increments and returns the counter; the row stays locked until tx ends.
func nextSequence(tx *gorm.DB, organizationId string, name string) (int64, error) {
	seq := DocumentSequence{OrganizationId: organizationId, Name: name, LastNumber: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_number": gorm.Expr("last_number + 1")}),
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}
	var current DocumentSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND name = ?", organizationId, name).
		First(&current).Error; err != nil {
		return 0, err
	}
	return current.LastNumber, nil
}

// advanceSequence raises the counter to n when it is behind; it never lowers it.
func advanceSequence(tx *gorm.DB, organizationId string, name string, n int64) error {
	seq := DocumentSequence{OrganizationId: organizationId, Name: name, LastNumber: n}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_number": gorm.Expr("GREATEST(last_number, ?)", n)}),
	}).Create(&seq).Error
}

// peekSequence is the number the next document would get; nothing is reserved.
func peekSequence(db *gorm.DB, organizationId string, name string) (int64, error) {
	var current DocumentSequence
	err := db.Where("organization_id = ? AND name = ?", organizationId, name).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return current.LastNumber + 1, nil
}
