package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Product quantities are always in base units; AvgCostPrice is per base unit.
type Product struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	OrganizationId      string          `gorm:"size:64;index;not null" json:"organization_id"`
	Name                string          `gorm:"size:255;not null" json:"name"`
	Sku                 string          `gorm:"size:100;index" json:"sku"`
	Code                string          `gorm:"size:100;index" json:"code"`
	Category            string          `gorm:"size:100" json:"category"`
	Brand               string          `gorm:"size:100" json:"brand"`
	BaseUnitId          int             `gorm:"not null;default:0" json:"base_unit_id"`
	SaleUnitId          int             `gorm:"default:0" json:"sale_unit_id"`
	PurchaseUnitId      int             `gorm:"default:0" json:"purchase_unit_id"`
	TracksBatches       bool            `gorm:"not null;default:false" json:"tracks_batches"`
	TracksSerials       bool            `gorm:"not null;default:false" json:"tracks_serials"`
	TracksBulkInventory bool            `gorm:"not null;default:false" json:"tracks_bulk_inventory"`
	TotalQuantity       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_quantity"`
	AvgCostPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"avg_cost_price"`
	SellPrice           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sell_price"`
	TaxRate             decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"tax_rate"`
	HasExpiryDate       bool            `gorm:"not null;default:false" json:"has_expiry_date"`
	IsActive            *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name                string          `json:"name" binding:"required,max=255"`
	Sku                 string          `json:"sku" binding:"max=100"`
	Code                string          `json:"code" binding:"max=100"`
	Category            string          `json:"category" binding:"max=100"`
	Brand               string          `json:"brand" binding:"max=100"`
	BaseUnitId          int             `json:"base_unit_id" binding:"required"`
	SaleUnitId          int             `json:"sale_unit_id"`
	PurchaseUnitId      int             `json:"purchase_unit_id"`
	TracksBatches       bool            `json:"tracks_batches"`
	TracksSerials       bool            `json:"tracks_serials"`
	TracksBulkInventory *bool           `json:"tracks_bulk_inventory"`
	SellPrice           decimal.Decimal `json:"sell_price"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
	HasExpiryDate       bool            `json:"has_expiry_date"`
}

// tracksBulkInventory defaults to true when neither batches nor serials are tracked.
// An explicit false makes the product a service with no stock at all.
func (input *NewProduct) tracksBulkInventory() bool {
	if input.TracksBatches || input.TracksSerials {
		return false
	}
	return utils.DereferencePtr(input.TracksBulkInventory, true)
}

func (p *Product) active() bool {
	return p.IsActive == nil || *p.IsActive
}

// defaultSaleUnitId is the unit a POS line falls back to.
func (p *Product) defaultSaleUnitId() int {
	if p.SaleUnitId > 0 {
		return p.SaleUnitId
	}
	return p.BaseUnitId
}

func (p *Product) defaultPurchaseUnitId() int {
	if p.PurchaseUnitId > 0 {
		return p.PurchaseUnitId
	}
	return p.BaseUnitId
}

func (input *NewProduct) validate(ctx context.Context, organizationId string) error {
	if err := utils.Validate.Struct(input); err != nil {
		return NewValidationError(err)
	}
	if input.TracksBatches && input.TracksSerials {
		return ErrInvalidStockConfig
	}
	if input.SellPrice.IsNegative() {
		return validationMessage("sell_price", "sell price must not be negative")
	}
	if input.TaxRate.IsNegative() {
		return validationMessage("tax_rate", "tax rate must not be negative")
	}
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, organizationId, "sku", input.Sku, 0); err != nil {
			return validationMessage("sku", err.Error())
		}
	}

	lookup := NewUnitLookup(config.GetDB(), organizationId)
	base, err := lookup.LookupUnit(ctx, input.BaseUnitId)
	if err != nil {
		return err
	}
	if base == nil {
		return ErrInvalidUnit.about("MeasuringUnit", input.BaseUnitId)
	}
	for _, unitId := range []int{input.SaleUnitId, input.PurchaseUnitId} {
		if unitId == 0 || unitId == input.BaseUnitId {
			continue
		}
		if _, err := ConvertToBase(ctx, lookup, decimal.NewFromInt(1), unitId, input.BaseUnitId); err != nil {
			return err
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if err := input.validate(ctx, organizationId); err != nil {
		return nil, err
	}

	product := Product{
		OrganizationId:      organizationId,
		Name:                input.Name,
		Sku:                 input.Sku,
		Code:                input.Code,
		Category:            input.Category,
		Brand:               input.Brand,
		BaseUnitId:          input.BaseUnitId,
		SaleUnitId:          input.SaleUnitId,
		PurchaseUnitId:      input.PurchaseUnitId,
		TracksBatches:       input.TracksBatches,
		TracksSerials:       input.TracksSerials,
		TracksBulkInventory: input.tracksBulkInventory(),
		TotalQuantity:       decimal.Zero,
		AvgCostPrice:        decimal.Zero,
		SellPrice:           input.SellPrice,
		TaxRate:             input.TaxRate,
		HasExpiryDate:       input.HasExpiryDate,
		IsActive:            utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&product).Error; err != nil {
		config.LogError(config.GetLogger(), "product.go", "CreateProduct", "Create", input, err)
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	product, err := utils.FetchModel[Product](ctx, organizationId, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrProductNotFound.about("Product", id)
		}
		return nil, err
	}
	return product, nil
}

// findActiveProduct loads a product inside tx; missing and inactive products are both not found.
func findActiveProduct(tx *gorm.DB, organizationId string, id int) (*Product, error) {
	var product Product
	err := tx.Where("organization_id = ? AND id = ?", organizationId, id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound.about("Product", id)
		}
		return nil, err
	}
	if !product.active() {
		return nil, ErrProductNotFound.about("Product", id)
	}
	return &product, nil
}

func lockProduct(tx *gorm.DB, organizationId string, id int) (*Product, error) {
	var product Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND id = ?", organizationId, id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound.about("Product", id)
		}
		return nil, err
	}
	return &product, nil
}

// ListProductOrganizations returns every organization owning a product.
func ListProductOrganizations(ctx context.Context) ([]string, error) {
	var ids []string
	err := dbFromContext(ctx).Model(&Product{}).Distinct("organization_id").Order("organization_id").Pluck("organization_id", &ids).Error
	return ids, err
}
