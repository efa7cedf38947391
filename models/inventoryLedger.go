package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryLedgerEntry is an append-only record of one stock movement.
// Corrections are new compensating entries; updates and deletes are refused by the hooks below.
type InventoryLedgerEntry struct {
	ID              string          `gorm:"size:36;primary_key" json:"id"` // uuid
	OrganizationId  string          `gorm:"size:64;not null;index:idx_ledger_org_product,priority:1" json:"organization_id"`
	ProductId       int             `gorm:"not null;index:idx_ledger_org_product,priority:2" json:"product_id"`
	BatchId         *int            `gorm:"index" json:"batch_id"`
	SerialId        *int            `gorm:"index" json:"serial_id"`
	QuantityChange  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_change"`
	TransactionType TransactionType `gorm:"type:enum('OPENING_STOCK','PURCHASE','SALE','RETURN_IN','RETURN_OUT','ADJUSTMENT','DAMAGED');not null;index" json:"transaction_type"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	UnitTaxRate     decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"unit_tax_rate"`
	ProductType     StockKind       `gorm:"size:20;not null" json:"product_type"`
	ReferenceId     string          `gorm:"size:100;index" json:"reference_id"`
	PerformedBy     string          `gorm:"size:100" json:"performed_by"`
	CorrelationId   string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime:milli;index:idx_ledger_org_product,priority:3" json:"created_at"`
}

func (e *InventoryLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.BatchId != nil && e.SerialId != nil {
		return errors.New("ledger entry cannot reference both a batch and a serial")
	}
	return e.TransactionType.CheckQuantityChange(e.QuantityChange)
}

func (e *InventoryLedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

func (e *InventoryLedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

// RecordLedgerEntry appends entry and returns its id.
func RecordLedgerEntry(tx *gorm.DB, entry *InventoryLedgerEntry) (string, error) {
	if err := tx.Create(entry).Error; err != nil {
		return "", err
	}
	return entry.ID, nil
}

// ledgerWriter stamps the shared fields of one document's entries.
type ledgerWriter struct {
	tx              *gorm.DB
	organizationId  string
	product         *Product
	transactionType TransactionType
	referenceId     string
	performedBy     string
	correlationId   string
}

func (w ledgerWriter) record(m stockMovement, sign decimal.Decimal) (string, error) {
	return RecordLedgerEntry(w.tx, &InventoryLedgerEntry{
		OrganizationId:  w.organizationId,
		ProductId:       w.product.ID,
		BatchId:         m.BatchId,
		SerialId:        m.SerialId,
		QuantityChange:  m.QuantityBase.Mul(sign),
		TransactionType: w.transactionType,
		UnitCost:        m.UnitCost,
		UnitPrice:       m.UnitPrice,
		UnitTaxRate:     m.TaxRate,
		ProductType:     stockKindOf(w.product),
		ReferenceId:     w.referenceId,
		PerformedBy:     w.performedBy,
		CorrelationId:   w.correlationId,
	})
}

// ledgerQuantity is the running stock of a product according to its ledger.
func ledgerQuantity(tx *gorm.DB, organizationId string, productId int) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&InventoryLedgerEntry{}).
		Select("SUM(quantity_change)").
		Where("organization_id = ? AND product_id = ?", organizationId, productId).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

type LedgerFilter struct {
	TransactionType *TransactionType `form:"transaction_type"`
	Limit           int              `form:"limit"`
	Offset          int              `form:"offset"`
}

// ListLedgerEntries returns a product's ledger, newest first.
func ListLedgerEntries(ctx context.Context, productId int, filter *LedgerFilter) ([]*InventoryLedgerEntry, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := utils.ValidateResourceId[Product](ctx, organizationId, productId); err != nil {
		return nil, ErrProductNotFound.about("Product", productId)
	}
	if filter == nil {
		filter = &LedgerFilter{}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := dbFromContext(ctx).
		Where("organization_id = ? AND product_id = ?", organizationId, productId)
	if filter.TransactionType != nil {
		q = q.Where("transaction_type = ?", *filter.TransactionType)
	}
	var entries []*InventoryLedgerEntry
	if err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
