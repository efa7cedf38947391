package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockRequest asks a representation for QuantityBase of Product.
type StockRequest struct {
	OrganizationId string
	Product        *Product
	SaleUnit       *MeasuringUnit
	Quantity       decimal.Decimal
	QuantityBase   decimal.Decimal
	BatchId        int
	SerialNumbers  []string
}

// StockDeduction is what a successful Deduct consumed.
// DefaultUnitPrice is the price per sale unit when the line gives no override.
type StockDeduction struct {
	CostPerBaseUnit  decimal.Decimal
	LineCost         decimal.Decimal
	DefaultUnitPrice decimal.Decimal
	BatchId          *int
	Serials          []*SerialUnit
}

// InboundLot is one lot of a receipt, already in base units.
type InboundLot struct {
	Input        *NewBatchLot
	QuantityBase decimal.Decimal
	UnitCost     decimal.Decimal
}

type StockInbound struct {
	OrganizationId string
	Product        *Product
	QuantityBase   decimal.Decimal
	UnitCost       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxRate        decimal.Decimal
	Location       string
	Lots           []*InboundLot
	Serials        []*NewSerialUnit
	ReceivedAt     time.Time
}

// stockMovement becomes one ledger entry.
type stockMovement struct {
	QuantityBase decimal.Decimal
	UnitCost     decimal.Decimal
	UnitPrice    decimal.Decimal
	TaxRate      decimal.Decimal
	BatchId      *int
	SerialId     *int
}

type StockReceived struct {
	QuantityBase decimal.Decimal
	Value        decimal.Decimal
	Movements    []stockMovement
}

// StockRepresentation is implemented only by StandardStock, BatchedStock, SerializedStock and ServiceStock.
type StockRepresentation interface {
	Kind() StockKind
	CheckAvailable(ctx context.Context, tx *gorm.DB, req StockRequest) (bool, error)
	Deduct(ctx context.Context, tx *gorm.DB, req StockRequest) (*StockDeduction, error)
	Receive(ctx context.Context, tx *gorm.DB, in StockInbound) (*StockReceived, error)
	stockRepresentation()
}

func ResolveStockRepresentation(product *Product) (StockRepresentation, error) {
	switch {
	case product.TracksBatches && product.TracksSerials:
		return nil, ErrInvalidStockConfig.about("Product", product.ID)
	case product.TracksBatches:
		return BatchedStock{}, nil
	case product.TracksSerials:
		return SerializedStock{}, nil
	case product.TracksBulkInventory:
		return StandardStock{}, nil
	default:
		return ServiceStock{}, nil
	}
}

func stockKindOf(product *Product) StockKind {
	rep, err := ResolveStockRepresentation(product)
	if err != nil {
		return ""
	}
	return rep.Kind()
}
