package models

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceStock backs products that keep no inventory: labour, delivery fees and the like.
// Sales never touch a store, the product quantity or the ledger.
type ServiceStock struct{}

func (ServiceStock) stockRepresentation() {}

func (ServiceStock) Kind() StockKind { return StockKindService }

func (ServiceStock) CheckAvailable(ctx context.Context, tx *gorm.DB, req StockRequest) (bool, error) {
	return true, nil
}

func (ServiceStock) Deduct(ctx context.Context, tx *gorm.DB, req StockRequest) (*StockDeduction, error) {
	return &StockDeduction{
		CostPerBaseUnit:  decimal.Zero,
		LineCost:         decimal.Zero,
		DefaultUnitPrice: req.Product.SellPrice,
	}, nil
}

func (ServiceStock) Receive(ctx context.Context, tx *gorm.DB, in StockInbound) (*StockReceived, error) {
	return nil, ErrInvalidStockConfig.about("Product", in.Product.ID)
}
