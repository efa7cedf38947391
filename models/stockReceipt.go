package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// NewStockReceipt.Quantity and UnitCost are in UnitId, which defaults to the purchase unit.
// UnitPrice is the selling price per base unit.
type NewStockReceipt struct {
	ProductId       int              `json:"product_id" binding:"required"`
	UnitId          int              `json:"unit_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	TaxRate         *decimal.Decimal `json:"tax_rate"`
	ReferenceNumber string           `json:"reference_number" binding:"max=100"`
	Location        string           `json:"location" binding:"max=100"`
	Batches         []*NewBatchLot   `json:"batches" binding:"dive"`
	Serials         []*NewSerialUnit `json:"serials" binding:"dive"`
}

type StockReceiptResult struct {
	ProductId       int             `json:"product_id"`
	TransactionType TransactionType `json:"transaction_type"`
	ReferenceId     string          `json:"reference_id"`
	QuantityBase    decimal.Decimal `json:"quantity_base"`
	ReceivedValue   decimal.Decimal `json:"received_value"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	AvgCostPrice    decimal.Decimal `json:"avg_cost_price"`
	LedgerEntryIds  []string        `json:"ledger_entry_ids"`
}

func (input *NewStockReceipt) validate() error {
	if err := utils.Validate.Struct(input); err != nil {
		return NewValidationError(err)
	}
	if input.Quantity.IsNegative() {
		return ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return validationMessage("unit_cost", "unit cost must not be negative")
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return validationMessage("unit_price", "unit price must not be negative")
	}
	if input.TaxRate != nil && input.TaxRate.IsNegative() {
		return validationMessage("tax_rate", "tax rate must not be negative")
	}
	for _, lot := range input.Batches {
		if isNegative(lot.UnitCost) {
			return validationMessage("batches.unit_cost", "unit cost must not be negative")
		}
		if isNegative(lot.SellingPrice) {
			return validationMessage("batches.selling_price", "selling price must not be negative")
		}
		if isNegative(lot.TaxRate) {
			return validationMessage("batches.tax_rate", "tax rate must not be negative")
		}
		for _, price := range lot.UnitPrices {
			if price.Price.IsNegative() {
				return validationMessage("batches.unit_prices.price", "unit price must not be negative")
			}
		}
	}
	for _, serial := range input.Serials {
		if isNegative(serial.CostPrice) {
			return validationMessage("serials.cost_price", "cost price must not be negative")
		}
		if isNegative(serial.SellPrice) {
			return validationMessage("serials.sell_price", "sell price must not be negative")
		}
	}
	return nil
}

func isNegative(d *decimal.Decimal) bool {
	return d != nil && d.IsNegative()
}

// ReceiveStock books a purchase receipt.
func ReceiveStock(ctx context.Context, input *NewStockReceipt) (*StockReceiptResult, error) {
	return receiveStock(ctx, input, TransactionTypePurchase, EventStockReceived)
}

// RecordOpeningStock books the stock a product starts with.
func RecordOpeningStock(ctx context.Context, input *NewStockReceipt) (*StockReceiptResult, error) {
	return receiveStock(ctx, input, TransactionTypeOpeningStock, EventOpeningStockRecorded)
}

func receiveStock(ctx context.Context, input *NewStockReceipt, txType TransactionType, eventType string) (*StockReceiptResult, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	ctx, span := tracer.Start(ctx, "ReceiveStock", trace.WithAttributes(
		attribute.String("organization_id", organizationId),
		attribute.String("transaction_type", string(txType)),
		attribute.Int("product_id", input.ProductId),
	))
	defer span.End()

	if err := input.validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var result *StockReceiptResult
	db := dbFromContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		product, err := findActiveProduct(tx, organizationId, input.ProductId)
		if err != nil {
			return err
		}
		if product.BaseUnitId == 0 {
			return ErrInvalidUnitConfig.about("Product", product.ID)
		}
		rep, err := ResolveStockRepresentation(product)
		if err != nil {
			return err
		}
		unitId := input.UnitId
		if unitId == 0 {
			unitId = product.defaultPurchaseUnitId()
		}
		units := NewUnitLookup(tx, organizationId)
		// one receipt unit in base units
		multiplier, err := ConvertToBase(ctx, units, decimal.NewFromInt(1), unitId, product.BaseUnitId)
		if err != nil {
			return err
		}

		inbound := StockInbound{
			OrganizationId: organizationId,
			Product:        product,
			UnitCost:       input.UnitCost.Div(multiplier),
			UnitPrice:      utils.DereferencePtr(input.UnitPrice, product.SellPrice),
			TaxRate:        resolveTaxRate(input.TaxRate, product),
			Location:       input.Location,
			ReceivedAt:     time.Now().UTC(),
		}
		switch rep.Kind() {
		case StockKindBatched:
			if err := buildInboundLots(&inbound, input, multiplier); err != nil {
				return err
			}
		case StockKindSerialized:
			if err := checkReceiptSerials(input, multiplier); err != nil {
				return err
			}
			inbound.Serials = input.Serials
			inbound.QuantityBase = decimal.NewFromInt(int64(len(input.Serials)))
		default:
			if !input.Quantity.IsPositive() {
				return ErrInvalidQuantity
			}
			inbound.QuantityBase = input.Quantity.Mul(multiplier)
		}

		received, err := rep.Receive(ctx, tx, inbound)
		if err != nil {
			return err
		}
		product, err = applyInbound(tx, organizationId, product.ID, received.QuantityBase, received.Value)
		if err != nil {
			return err
		}
		if input.UnitPrice != nil {
			if err := tx.Model(&Product{}).
				Where("organization_id = ? AND id = ?", organizationId, product.ID).
				Update("sell_price", *input.UnitPrice).Error; err != nil {
				return err
			}
			product.SellPrice = *input.UnitPrice
		}
		if rep.Kind() == StockKindStandard {
			if err := syncStandardBucket(tx, organizationId, product.ID, product.AvgCostPrice, input.UnitPrice); err != nil {
				return err
			}
		}

		referenceId := strings.TrimSpace(input.ReferenceNumber)
		if referenceId == "" {
			referenceId = string(txType)
		}
		writer := ledgerWriter{
			tx:              tx,
			organizationId:  organizationId,
			product:         product,
			transactionType: txType,
			referenceId:     referenceId,
			performedBy:     performedByFromContext(ctx),
			correlationId:   correlationIdFromContextOrNew(ctx),
		}
		result = &StockReceiptResult{
			ProductId:       product.ID,
			TransactionType: txType,
			ReferenceId:     referenceId,
			QuantityBase:    received.QuantityBase,
			ReceivedValue:   utils.RoundMoney(received.Value),
			TotalQuantity:   product.TotalQuantity,
			AvgCostPrice:    product.AvgCostPrice,
		}
		plusOne := decimal.NewFromInt(1)
		for _, m := range received.Movements {
			id, err := writer.record(m, plusOne)
			if err != nil {
				return err
			}
			result.LedgerEntryIds = append(result.LedgerEntryIds, id)
		}
		return PublishInventoryEvent(ctx, tx, organizationId, eventType, ReferenceTypeProduct, product.ID, result)
	})
	if err != nil {
		err = classifyDBError(err, map[string]*DomainError{"uniq_serial_org_number": ErrDuplicateSerial})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var de *DomainError
		if !errors.As(err, &de) {
			config.LogError(config.GetLogger(), "stockReceipt.go", "receiveStock", string(txType), input, err)
		}
		return nil, err
	}
	return result, nil
}

// buildInboundLots converts each lot to base units; a lot without its own cost takes the receipt's.
func buildInboundLots(inbound *StockInbound, input *NewStockReceipt, multiplier decimal.Decimal) error {
	if len(input.Batches) == 0 {
		return validationMessage("batches", "at least one batch is required")
	}
	total := decimal.Zero
	for _, lot := range input.Batches {
		if !lot.Quantity.IsPositive() {
			return ErrInvalidQuantity.about("BatchLot", lot.BatchCode)
		}
		cost := utils.DereferencePtr(lot.UnitCost, input.UnitCost)
		inbound.Lots = append(inbound.Lots, &InboundLot{
			Input:        lot,
			QuantityBase: lot.Quantity.Mul(multiplier),
			UnitCost:     cost.Div(multiplier),
		})
		total = total.Add(lot.Quantity)
	}
	if input.Quantity.IsPositive() && !input.Quantity.Equal(total) {
		return validationMessage("quantity", "quantity does not match the sum of batch quantities")
	}
	inbound.QuantityBase = total.Mul(multiplier)
	return nil
}

// checkReceiptSerials requires one serial per base unit when a quantity is given.
func checkReceiptSerials(input *NewStockReceipt, multiplier decimal.Decimal) error {
	if len(input.Serials) == 0 {
		return validationMessage("serials", "at least one serial number is required")
	}
	if input.Quantity.IsZero() {
		return nil
	}
	n := decimal.NewFromInt(int64(len(input.Serials)))
	if !input.Quantity.Mul(multiplier).Equal(n) {
		return ErrSerialCountMismatch.withMessage("%d serial numbers given for quantity %s", len(input.Serials), input.Quantity)
	}
	return nil
}
