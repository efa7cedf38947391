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

// StandardInventory is the single bulk bucket of a product.
type StandardInventory struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrganizationId  string          `gorm:"size:64;not null;uniqueIndex:uniq_std_inv_org_product,priority:1" json:"organization_id"`
	ProductId       int             `gorm:"not null;uniqueIndex:uniq_std_inv_org_product,priority:2" json:"product_id"`
	CostPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost_price"`
	SellPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sell_price"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"tax_rate"`
	InitialQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"initial_quantity"`
	CurrentQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_quantity"`
	CurrentLocation string          `gorm:"size:100" json:"current_location"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type StandardStock struct{}

func (StandardStock) stockRepresentation() {}

func (StandardStock) Kind() StockKind { return StockKindStandard }

func findStandardInventory(tx *gorm.DB, organizationId string, productId int) (*StandardInventory, error) {
	var bucket StandardInventory
	err := tx.Where("organization_id = ? AND product_id = ?", organizationId, productId).First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bucket, nil
}

func (StandardStock) CheckAvailable(ctx context.Context, tx *gorm.DB, req StockRequest) (bool, error) {
	bucket, err := findStandardInventory(tx.WithContext(ctx), req.OrganizationId, req.Product.ID)
	if err != nil {
		return false, err
	}
	if bucket == nil {
		return false, nil
	}
	return bucket.CurrentQuantity.GreaterThanOrEqual(req.QuantityBase), nil
}

func (StandardStock) Deduct(ctx context.Context, tx *gorm.DB, req StockRequest) (*StockDeduction, error) {
	tx = tx.WithContext(ctx)
	if config.ClampStandardStock() {
		if err := clampStandardDeduct(tx, req); err != nil {
			return nil, err
		}
	} else {
		res := tx.Model(&StandardInventory{}).
			Where("organization_id = ? AND product_id = ? AND current_quantity >= ?", req.OrganizationId, req.Product.ID, req.QuantityBase).
			Update("current_quantity", gorm.Expr("current_quantity - ?", req.QuantityBase))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrInsufficientStock.about("Product", req.Product.ID)
		}
	}

	bucket, err := findStandardInventory(tx, req.OrganizationId, req.Product.ID)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, ErrInsufficientStock.about("Product", req.Product.ID)
	}
	return &StockDeduction{
		CostPerBaseUnit:  bucket.CostPrice,
		LineCost:         bucket.CostPrice.Mul(req.QuantityBase),
		DefaultUnitPrice: req.Product.SellPrice.Mul(unitMultiplier(req.SaleUnit)),
	}, nil
}

// clampStandardDeduct never drives the bucket negative; a shortfall is logged as a stock breach.
func clampStandardDeduct(tx *gorm.DB, req StockRequest) error {
	var bucket StandardInventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND product_id = ?", req.OrganizationId, req.Product.ID).
		First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInsufficientStock.about("Product", req.Product.ID)
		}
		return err
	}
	if bucket.CurrentQuantity.LessThan(req.QuantityBase) {
		config.LogError(config.GetLogger(), "standardStock.go", "Deduct", "standard stock clamped at zero",
			map[string]any{
				"organization_id": req.OrganizationId,
				"product_id":      req.Product.ID,
				"available":       bucket.CurrentQuantity.String(),
				"requested":       req.QuantityBase.String(),
			}, ErrInsufficientStock)
	}
	return tx.Model(&StandardInventory{}).
		Where("id = ?", bucket.ID).
		Update("current_quantity", gorm.Expr("GREATEST(current_quantity - ?, 0)", req.QuantityBase)).Error
}

func (StandardStock) Receive(ctx context.Context, tx *gorm.DB, in StockInbound) (*StockReceived, error) {
	if !in.QuantityBase.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	bucket := StandardInventory{
		OrganizationId:  in.OrganizationId,
		ProductId:       in.Product.ID,
		CostPrice:       utils.RoundCost(in.UnitCost),
		SellPrice:       in.UnitPrice,
		TaxRate:         in.TaxRate,
		InitialQuantity: in.QuantityBase,
		CurrentQuantity: in.QuantityBase,
		CurrentLocation: in.Location,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"initial_quantity": gorm.Expr("initial_quantity + ?", in.QuantityBase),
			"current_quantity": gorm.Expr("current_quantity + ?", in.QuantityBase),
			"updated_at":       time.Now().UTC(),
		}),
	}).Create(&bucket).Error
	if err != nil {
		return nil, err
	}

	value := in.UnitCost.Mul(in.QuantityBase)
	return &StockReceived{
		QuantityBase: in.QuantityBase,
		Value:        value,
		Movements: []stockMovement{{
			QuantityBase: in.QuantityBase,
			UnitCost:     utils.RoundCost(in.UnitCost),
			UnitPrice:    in.UnitPrice,
			TaxRate:      in.TaxRate,
		}},
	}, nil
}

// syncStandardBucket aligns the bucket's cost with the product average after a receipt.
func syncStandardBucket(tx *gorm.DB, organizationId string, productId int, avgCost decimal.Decimal, sellPrice *decimal.Decimal) error {
	updates := map[string]interface{}{"cost_price": avgCost}
	if sellPrice != nil {
		updates["sell_price"] = *sellPrice
	}
	return tx.Model(&StandardInventory{}).
		Where("organization_id = ? AND product_id = ?", organizationId, productId).
		Updates(updates).Error
}
