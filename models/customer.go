package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

const WalkInCustomerName = "Walk-in Customer"

type Customer struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:64;not null;uniqueIndex:uniq_customer_org_code,priority:1;index:idx_customer_org_phone,priority:1" json:"organization_id"`
	CustomerCode   string    `gorm:"size:20;not null;uniqueIndex:uniq_customer_org_code,priority:2" json:"customer_code"`
	Name           string    `gorm:"size:100;not null;index" json:"name"`
	PhoneNo        string    `gorm:"size:30;index:idx_customer_org_phone,priority:2" json:"phone_no"`
	Email          string    `gorm:"size:100" json:"email"`
	Address        string    `gorm:"size:255" json:"address"`
	City           string    `gorm:"size:100" json:"city"`
	State          string    `gorm:"size:100" json:"state"`
	Country        string    `gorm:"size:100" json:"country"`
	PostalCode     string    `gorm:"size:20" json:"postal_code"`
	CountryCode    string    `gorm:"size:5" json:"country_code"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleCustomerInput references a customer by id, or by name and phone.
type SaleCustomerInput struct {
	CustomerId  int    `json:"customer_id"`
	Name        string `json:"name" binding:"max=100"`
	PhoneNo     string `json:"phone_no" binding:"max=30"`
	Email       string `json:"email" binding:"omitempty,email,max=100"`
	Address     string `json:"address" binding:"max=255"`
	City        string `json:"city" binding:"max=100"`
	State       string `json:"state" binding:"max=100"`
	Country     string `json:"country" binding:"max=100"`
	PostalCode  string `json:"postal_code" binding:"max=20"`
	CountryCode string `json:"country_code" binding:"max=5"`
}

func (input *SaleCustomerInput) isWalkIn() bool {
	return input == nil || (input.CustomerId == 0 && strings.TrimSpace(input.Name) == "")
}

func (input *SaleCustomerInput) validate() error {
	if input.isWalkIn() || input.CustomerId > 0 {
		return nil
	}
	if input.PhoneNo != "" {
		region := input.CountryCode
		if region == "" {
			region = utils.CountryCode()
		}
		if err := utils.ValidatePhoneNumber(input.PhoneNo, strings.ToUpper(region)); err != nil {
			return validationMessage("phone_no", "phone number is not valid")
		}
	}
	return nil
}

// lockKey is the redis lock serializing create-or-update of one contact.
func (input *SaleCustomerInput) lockKey() string {
	if input.isWalkIn() || input.CustomerId > 0 {
		return ""
	}
	if input.PhoneNo != "" {
		return utils.NormalizePhoneNumber(input.PhoneNo)
	}
	return strings.ToLower(strings.TrimSpace(input.Name))
}

// resolveSaleCustomer returns nil for a walk-in sale.
func resolveSaleCustomer(tx *gorm.DB, organizationId string, input *SaleCustomerInput) (*Customer, error) {
	if input.isWalkIn() {
		return nil, nil
	}
	var customer Customer
	if input.CustomerId > 0 {
		err := tx.Where("organization_id = ? AND id = ?", organizationId, input.CustomerId).First(&customer).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCustomerNotFound.about("Customer", input.CustomerId)
			}
			return nil, err
		}
		return &customer, nil
	}

	name := strings.TrimSpace(input.Name)
	phone := ""
	if input.PhoneNo != "" {
		phone = utils.NormalizePhoneNumber(input.PhoneNo)
	}
	err := tx.Where("organization_id = ? AND name = ? AND phone_no = ?", organizationId, name, phone).First(&customer).Error
	if err == nil {
		updates := input.contactUpdates()
		if len(updates) > 0 {
			if err := tx.Model(&customer).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seq, err := nextSequence(tx, organizationId, SequenceCustomer)
	if err != nil {
		return nil, err
	}
	customer = Customer{
		OrganizationId: organizationId,
		CustomerCode:   FormatCustomerCode(seq),
		Name:           name,
		PhoneNo:        phone,
		Email:          input.Email,
		Address:        input.Address,
		City:           input.City,
		State:          input.State,
		Country:        input.Country,
		PostalCode:     input.PostalCode,
		CountryCode:    input.CountryCode,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// contactUpdates only overwrites the fields the sale supplied.
func (input *SaleCustomerInput) contactUpdates() map[string]interface{} {
	updates := map[string]interface{}{}
	set := func(column, value string) {
		if strings.TrimSpace(value) != "" {
			updates[column] = value
		}
	}
	set("email", input.Email)
	set("address", input.Address)
	set("city", input.City)
	set("state", input.State)
	set("country", input.Country)
	set("postal_code", input.PostalCode)
	set("country_code", input.CountryCode)
	return updates
}

// SearchCustomers matches name or phone, up to config.SearchLimit rows.
func SearchCustomers(ctx context.Context, query string) ([]*Customer, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	q := dbFromContext(ctx).Where("organization_id = ?", organizationId)
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + query + "%"
		q = q.Where("name LIKE ? OR phone_no LIKE ? OR customer_code LIKE ?", like, like, like)
	}
	var customers []*Customer
	if err := q.Order("name ASC").Limit(config.SearchLimit).Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}
