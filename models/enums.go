package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

type StockKind string

const (
	StockKindStandard   StockKind = "STANDARD"
	StockKindBatched    StockKind = "BATCHED"
	StockKindSerialized StockKind = "SERIALIZED"
	StockKindService    StockKind = "SERVICE"
)

// tracksStock is false only for service products.
func (k StockKind) tracksStock() bool {
	return k != StockKindService
}

type TransactionType string

const (
	TransactionTypeOpeningStock TransactionType = "OPENING_STOCK"
	TransactionTypePurchase     TransactionType = "PURCHASE"
	TransactionTypeSale         TransactionType = "SALE"
	TransactionTypeReturnIn     TransactionType = "RETURN_IN"
	TransactionTypeReturnOut    TransactionType = "RETURN_OUT"
	TransactionTypeAdjustment   TransactionType = "ADJUSTMENT"
	TransactionTypeDamaged      TransactionType = "DAMAGED"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeOpeningStock, TransactionTypePurchase, TransactionTypeSale,
		TransactionTypeReturnIn, TransactionTypeReturnOut, TransactionTypeAdjustment, TransactionTypeDamaged:
		return true
	}
	return false
}

// IsInbound reports whether the movement adds stock.
func (t TransactionType) IsInbound() bool {
	return t == TransactionTypeOpeningStock || t == TransactionTypePurchase || t == TransactionTypeReturnIn
}

// CheckQuantityChange enforces the sign convention of the ledger.
// Adjustments may go either way but never record zero.
func (t TransactionType) CheckQuantityChange(q decimal.Decimal) error {
	switch t {
	case TransactionTypeOpeningStock, TransactionTypePurchase, TransactionTypeReturnIn:
		if !q.IsPositive() {
			return errors.New(string(t) + " quantity change must be positive")
		}
	case TransactionTypeSale, TransactionTypeReturnOut, TransactionTypeDamaged:
		if !q.IsNegative() {
			return errors.New(string(t) + " quantity change must be negative")
		}
	case TransactionTypeAdjustment:
		if q.IsZero() {
			return errors.New("adjustment quantity change must not be zero")
		}
	default:
		return errors.New("invalid transaction type " + string(t))
	}
	return nil
}

type SerialStatus string

const (
	SerialStatusAvailable SerialStatus = "AVAILABLE"
	SerialStatusSold      SerialStatus = "SOLD"
	SerialStatusReturned  SerialStatus = "RETURNED"
	SerialStatusDamaged   SerialStatus = "DAMAGED"
)

// SaleLineState is the furthest step a sale line reached.
type SaleLineState string

const (
	SaleLineStatePending        SaleLineState = "PENDING"
	SaleLineStateUnitResolved   SaleLineState = "UNIT_RESOLVED"
	SaleLineStateStockValidated SaleLineState = "STOCK_VALIDATED"
	SaleLineStateStockDeducted  SaleLineState = "STOCK_DEDUCTED"
	SaleLineStatePriced         SaleLineState = "PRICED"
	SaleLineStateLedgerRecorded SaleLineState = "LEDGER_RECORDED"
	SaleLineStateCommitted      SaleLineState = "LINE_COMMITTED"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusConfirmed InvoiceStatus = "CONFIRMED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Outbox event types published after commit.
const (
	EventSaleCreated          = "SALE_CREATED"
	EventStockReceived        = "STOCK_RECEIVED"
	EventOpeningStockRecorded = "OPENING_STOCK_RECORDED"
)

// Outbox reference types.
const (
	ReferenceTypeSalesInvoice = "SalesInvoice"
	ReferenceTypeProduct      = "Product"
)
