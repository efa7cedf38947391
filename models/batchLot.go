package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BatchLot is one received lot. BatchCostPrice is fixed at receipt.
// CurrentQuantity stays within [0, InitialQuantity]; an empty lot is inactive.
type BatchLot struct {
	ID                int               `gorm:"primary_key" json:"id"`
	OrganizationId    string            `gorm:"size:64;not null;index:idx_batch_org_product,priority:1" json:"organization_id"`
	ProductId         int               `gorm:"not null;index:idx_batch_org_product,priority:2" json:"product_id"`
	BatchCode         string            `gorm:"size:100;not null;index" json:"batch_code"`
	ExpiryDate        *time.Time        `gorm:"index" json:"expiry_date"`
	EntryDate         time.Time         `gorm:"not null" json:"entry_date"`
	PurchaseDate      *time.Time        `json:"purchase_date"`
	BatchCostPrice    decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"batch_cost_price"`
	BatchSellingPrice decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"batch_selling_price"`
	BatchTaxRate      decimal.Decimal   `gorm:"type:decimal(7,4);not null;default:0" json:"batch_tax_rate"`
	InitialQuantity   decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"initial_quantity"`
	CurrentQuantity   decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"current_quantity"`
	IsActive          *bool             `gorm:"not null;default:true;index" json:"is_active"`
	UnitPrices        []*BatchUnitPrice `gorm:"foreignKey:BatchLotId" json:"unit_prices"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// BatchUnitPrice is the selling price of a lot in one sale unit.
type BatchUnitPrice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"size:64;not null;index" json:"organization_id"`
	BatchLotId     int             `gorm:"not null;index" json:"batch_lot_id"`
	UnitId         int             `gorm:"not null" json:"unit_id"`
	Price          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
}

type NewBatchUnitPrice struct {
	UnitId int             `json:"unit_id" binding:"required"`
	Price  decimal.Decimal `json:"price"`
}

// NewBatchLot.Quantity is in the receipt unit; UnitCost overrides the receipt's unit cost.
type NewBatchLot struct {
	BatchCode    string               `json:"batch_code" binding:"required,max=100"`
	ExpiryDate   *time.Time           `json:"expiry_date"`
	PurchaseDate *time.Time           `json:"purchase_date"`
	Quantity     decimal.Decimal      `json:"quantity"`
	UnitCost     *decimal.Decimal     `json:"unit_cost"`
	SellingPrice *decimal.Decimal     `json:"selling_price"`
	TaxRate      *decimal.Decimal     `json:"tax_rate"`
	UnitPrices   []*NewBatchUnitPrice `json:"unit_prices" binding:"dive"`
}

type BatchedStock struct{}

func (BatchedStock) stockRepresentation() {}

func (BatchedStock) Kind() StockKind { return StockKindBatched }

// fefoOrder puts the earliest expiry first and undated lots last.
const fefoOrder = "expiry_date IS NULL, expiry_date ASC, entry_date ASC, id ASC"

// resolveBatch returns the lot a sale line consumes: the requested one,
// or the first FEFO lot that covers the line.
func resolveBatch(tx *gorm.DB, req StockRequest) (*BatchLot, error) {
	var lot BatchLot
	if req.BatchId > 0 {
		err := tx.Where("organization_id = ? AND product_id = ? AND id = ?", req.OrganizationId, req.Product.ID, req.BatchId).
			First(&lot).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrBatchNotFound.about("BatchLot", req.BatchId)
			}
			return nil, err
		}
		return &lot, nil
	}
	if !config.AutoSelectFefoBatch() {
		return nil, validationMessage("batch_id", "batch id is required for batch tracked products")
	}
	err := tx.Where("organization_id = ? AND product_id = ? AND is_active = ? AND current_quantity >= ?",
		req.OrganizationId, req.Product.ID, true, req.QuantityBase).
		Order(fefoOrder).
		First(&lot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsufficientStock.about("Product", req.Product.ID)
		}
		return nil, err
	}
	return &lot, nil
}

func (BatchedStock) CheckAvailable(ctx context.Context, tx *gorm.DB, req StockRequest) (bool, error) {
	lot, err := resolveBatch(tx.WithContext(ctx), req)
	if err != nil {
		return false, err
	}
	return lot.IsActive != nil && *lot.IsActive && lot.CurrentQuantity.GreaterThanOrEqual(req.QuantityBase), nil
}

func (BatchedStock) Deduct(ctx context.Context, tx *gorm.DB, req StockRequest) (*StockDeduction, error) {
	tx = tx.WithContext(ctx)
	lot, err := resolveBatch(tx, req)
	if err != nil {
		return nil, err
	}

	// is_active is assigned first so it sees the quantity before the decrement.
	res := tx.Exec(`UPDATE batch_lots
		SET is_active = (current_quantity - ? > 0), current_quantity = current_quantity - ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND is_active = ? AND current_quantity >= ?`,
		req.QuantityBase, req.QuantityBase, time.Now().UTC(),
		req.OrganizationId, lot.ID, true, req.QuantityBase)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientStock.about("BatchLot", lot.ID)
	}

	price, err := batchUnitPrice(tx, lot, req.SaleUnit)
	if err != nil {
		return nil, err
	}
	batchId := lot.ID
	return &StockDeduction{
		CostPerBaseUnit:  lot.BatchCostPrice,
		LineCost:         lot.BatchCostPrice.Mul(req.QuantityBase),
		DefaultUnitPrice: price,
		BatchId:          &batchId,
	}, nil
}

// batchUnitPrice prefers the lot's price for the sale unit, then its selling price scaled to that unit.
func batchUnitPrice(tx *gorm.DB, lot *BatchLot, saleUnit *MeasuringUnit) (decimal.Decimal, error) {
	if saleUnit != nil {
		var unitPrice BatchUnitPrice
		err := tx.Where("batch_lot_id = ? AND unit_id = ?", lot.ID, saleUnit.ID).First(&unitPrice).Error
		if err == nil {
			return unitPrice.Price, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, err
		}
	}
	return batchSellingPrice(lot, saleUnit), nil
}

// batchSellingPrice scales the per-base-unit selling price to the sale unit.
func batchSellingPrice(lot *BatchLot, saleUnit *MeasuringUnit) decimal.Decimal {
	return lot.BatchSellingPrice.Mul(unitMultiplier(saleUnit))
}

func (BatchedStock) Receive(ctx context.Context, tx *gorm.DB, in StockInbound) (*StockReceived, error) {
	if len(in.Lots) == 0 {
		return nil, validationMessage("batches", "at least one batch is required")
	}
	tx = tx.WithContext(ctx)
	received := &StockReceived{QuantityBase: decimal.Zero, Value: decimal.Zero}
	for _, inbound := range in.Lots {
		if !inbound.QuantityBase.IsPositive() {
			return nil, ErrInvalidQuantity.about("BatchLot", inbound.Input.BatchCode)
		}
		sellingPrice := utils.DereferencePtr(inbound.Input.SellingPrice, in.UnitPrice)
		taxRate := utils.DereferencePtr(inbound.Input.TaxRate, in.TaxRate)
		lot := BatchLot{
			OrganizationId:    in.OrganizationId,
			ProductId:         in.Product.ID,
			BatchCode:         inbound.Input.BatchCode,
			ExpiryDate:        inbound.Input.ExpiryDate,
			EntryDate:         in.ReceivedAt,
			PurchaseDate:      inbound.Input.PurchaseDate,
			BatchCostPrice:    utils.RoundCost(inbound.UnitCost),
			BatchSellingPrice: sellingPrice,
			BatchTaxRate:      taxRate,
			InitialQuantity:   inbound.QuantityBase,
			CurrentQuantity:   inbound.QuantityBase,
			IsActive:          utils.NewTrue(),
		}
		for _, up := range inbound.Input.UnitPrices {
			lot.UnitPrices = append(lot.UnitPrices, &BatchUnitPrice{
				OrganizationId: in.OrganizationId,
				UnitId:         up.UnitId,
				Price:          up.Price,
			})
		}
		if err := tx.Create(&lot).Error; err != nil {
			return nil, err
		}

		batchId := lot.ID
		received.QuantityBase = received.QuantityBase.Add(inbound.QuantityBase)
		received.Value = received.Value.Add(inbound.UnitCost.Mul(inbound.QuantityBase))
		received.Movements = append(received.Movements, stockMovement{
			QuantityBase: inbound.QuantityBase,
			UnitCost:     lot.BatchCostPrice,
			UnitPrice:    sellingPrice,
			TaxRate:      taxRate,
			BatchId:      &batchId,
		})
	}
	return received, nil
}

// listActiveBatches is the FEFO candidate list: active lots with stock left.
func listActiveBatches(tx *gorm.DB, organizationId string, productId int, limit int) ([]*BatchLot, error) {
	var lots []*BatchLot
	q := tx.Preload("UnitPrices").
		Where("organization_id = ? AND product_id = ? AND is_active = ? AND current_quantity > 0", organizationId, productId, true).
		Order(fefoOrder)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

const soonToExpireWindow = 30 * 24 * time.Hour

// isSoonToExpire reports whether the first FEFO lot expires within 30 days of now.
func isSoonToExpire(lots []*BatchLot, now time.Time) bool {
	if len(lots) == 0 || lots[0].ExpiryDate == nil {
		return false
	}
	return !lots[0].ExpiryDate.After(now.Add(soonToExpireWindow))
}
