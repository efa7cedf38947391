package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("retail_backend/models")

type NewSale struct {
	InvoiceNumber  string             `json:"invoice_number" binding:"max=50"`
	InvoiceDate    *time.Time         `json:"invoice_date"`
	Customer       *SaleCustomerInput `json:"customer"`
	Payment        *SalePaymentInput  `json:"payment"`
	Notes          string             `json:"notes"`
	Lines          []*NewSaleLine     `json:"lines" binding:"required,min=1,dive,required"`
	IdempotencyKey string             `json:"-"`
}

type SalePaymentInput struct {
	Mode          string           `json:"mode" binding:"max=50"`
	PaidAmount    *decimal.Decimal `json:"paid_amount"`
	TransactionId string           `json:"transaction_id" binding:"max=100"`
	PaymentDate   *time.Time       `json:"payment_date"`
}

// NewSaleLine.Quantity is in UnitId; UnitId defaults to the product's sale unit.
type NewSaleLine struct {
	ProductId      int              `json:"product_id" binding:"required"`
	UnitId         int              `json:"unit_id"`
	Quantity       decimal.Decimal  `json:"quantity"`
	BatchId        int              `json:"batch_id"`
	SerialNumbers  []string         `json:"serial_numbers"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
}

const defaultPaymentMode = "Cash"

func (input *NewSale) validate() error {
	if err := utils.Validate.Struct(input); err != nil {
		return NewValidationError(err)
	}
	for i, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return &SaleLineError{Line: i + 1, ProductId: line.ProductId, State: SaleLineStatePending, Err: ErrInvalidQuantity}
		}
		if line.DiscountAmount.IsNegative() {
			return validationMessage("discount_amount", "discount must not be negative")
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return validationMessage("unit_price", "unit price must not be negative")
		}
		if line.TaxRate != nil && line.TaxRate.IsNegative() {
			return validationMessage("tax_rate", "tax rate must not be negative")
		}
	}
	if input.Customer != nil {
		if err := utils.Validate.Struct(input.Customer); err != nil {
			return NewValidationError(err)
		}
		if err := input.Customer.validate(); err != nil {
			return err
		}
	}
	if input.Payment != nil {
		if err := utils.Validate.Struct(input.Payment); err != nil {
			return NewValidationError(err)
		}
		if input.Payment.PaidAmount != nil && input.Payment.PaidAmount.IsNegative() {
			return validationMessage("paid_amount", "paid amount must not be negative")
		}
	}
	return nil
}

// LineAmounts holds the money columns of one line, each rounded to cents.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
	TaxRate  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Cost     decimal.Decimal
	Profit   decimal.Decimal
}

// ComputeLineAmounts derives net, tax, total and profit from the rounded gross and discount,
// so total = net + tax and profit = total - cost hold exactly.
func ComputeLineAmounts(quantity, unitPrice, discount, taxRate, lineCost decimal.Decimal) LineAmounts {
	gross := utils.RoundMoney(quantity.Mul(unitPrice))
	disc := utils.RoundMoney(discount)
	net := gross.Sub(disc)
	tax := utils.RoundMoney(net.Mul(taxRate).Div(decimal.NewFromInt(100)))
	total := net.Add(tax)
	cost := utils.RoundMoney(lineCost)
	return LineAmounts{
		Gross:    gross,
		Discount: disc,
		Net:      net,
		TaxRate:  taxRate,
		Tax:      tax,
		Total:    total,
		Cost:     cost,
		Profit:   total.Sub(cost),
	}
}

// resolveUnitPrice is the line override, else the stock variant's default.
func resolveUnitPrice(override *decimal.Decimal, deduction *StockDeduction) decimal.Decimal {
	if override != nil {
		return *override
	}
	return deduction.DefaultUnitPrice
}

func resolveTaxRate(override *decimal.Decimal, product *Product) decimal.Decimal {
	if override != nil {
		return *override
	}
	return product.TaxRate
}

// saleContext is shared by every line of one sale.
type saleContext struct {
	tx             *gorm.DB
	organizationId string
	invoiceNumber  string
	performedBy    string
	correlationId  string
	units          UnitLookup
}

// CreateSale books every line and the invoice in one transaction; any line failure rolls back all of it.
func CreateSale(ctx context.Context, input *NewSale) (*SalesInvoice, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	ctx, span := tracer.Start(ctx, "CreateSale", trace.WithAttributes(
		attribute.String("organization_id", organizationId),
		attribute.Int("lines", len(input.Lines)),
	))
	defer span.End()

	invoice, err := createSale(ctx, organizationId, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var de *DomainError
		if !errors.As(err, &de) {
			config.LogError(config.GetLogger(), "sale.go", "CreateSale", "create sale", input, err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("invoice_number", invoice.InvoiceNumber))
	return invoice, nil
}

func createSale(ctx context.Context, organizationId string, input *NewSale) (*SalesInvoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	db := dbFromContext(ctx)

	if input.IdempotencyKey != "" {
		if invoice, err := replayedSale(db, organizationId, input.IdempotencyKey); err != nil || invoice != nil {
			return invoice, err
		}
	}

	var customerLock *redislock.Lock
	if key := input.Customer.lockKey(); key != "" {
		lock, err := utils.ObtainOrganizationLock(ctx, "customerLock", organizationId, key)
		if err != nil {
			return nil, classifyLockError(err, "Customer", key)
		}
		customerLock = lock
	}
	defer utils.ReleaseLock(ctx, customerLock)

	invoice := &SalesInvoice{
		OrganizationId: organizationId,
		InvoiceDate:    time.Now().UTC(),
		CustomerName:   WalkInCustomerName,
		Status:         InvoiceStatusConfirmed,
		PaymentMode:    defaultPaymentMode,
		Notes:          input.Notes,
		PerformedBy:    performedByFromContext(ctx),
	}
	if input.InvoiceDate != nil {
		invoice.InvoiceDate = input.InvoiceDate.UTC()
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		number, err := assignInvoiceNumber(tx, organizationId, input.InvoiceNumber)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		sc := &saleContext{
			tx:             tx,
			organizationId: organizationId,
			invoiceNumber:  number,
			performedBy:    invoice.PerformedBy,
			correlationId:  correlationIdFromContextOrNew(ctx),
			units:          NewUnitLookup(tx, organizationId),
		}
		for i, line := range input.Lines {
			saleLine, err := processSaleLine(ctx, sc, i+1, line)
			if err != nil {
				return err
			}
			invoice.addLine(saleLine)
		}

		customer, err := resolveSaleCustomer(tx, organizationId, input.Customer)
		if err != nil {
			return err
		}
		if customer != nil {
			invoice.CustomerId = &customer.ID
			invoice.CustomerName = customer.Name
			invoice.CustomerPhone = customer.PhoneNo
		}
		applyPayment(invoice, input.Payment)

		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		if input.IdempotencyKey != "" {
			if err := tx.Create(&IdempotencyKey{
				OrganizationId: organizationId,
				HandlerName:    handlerCreateSale,
				MessageId:      input.IdempotencyKey,
				ResultId:       invoice.ID,
			}).Error; err != nil {
				return err
			}
		}
		return PublishInventoryEvent(ctx, tx, organizationId, EventSaleCreated, ReferenceTypeSalesInvoice, invoice.ID, invoice)
	})
	if err != nil {
		err = classifyDBError(err, map[string]*DomainError{"uniq_invoice_org_number": ErrDuplicateInvoice})
		var myErr *DomainError
		if input.IdempotencyKey != "" && !errors.As(err, &myErr) && isDuplicateIndex(err, "uniq_idem") {
			// a concurrent request with the same key won
			return replayedSale(db, organizationId, input.IdempotencyKey)
		}
		return nil, err
	}
	return invoice, nil
}

func applyPayment(invoice *SalesInvoice, payment *SalePaymentInput) {
	invoice.PaidAmount = invoice.TotalAmount
	if payment == nil {
		return
	}
	if m := strings.TrimSpace(payment.Mode); m != "" {
		invoice.PaymentMode = m
	}
	if payment.PaidAmount != nil {
		invoice.PaidAmount = utils.RoundMoney(*payment.PaidAmount)
	}
	invoice.TransactionId = payment.TransactionId
	invoice.PaymentDate = payment.PaymentDate
}

// maxInvoiceNumberSkips bounds how many generated numbers may already be in use.
const maxInvoiceNumberSkips = 100

// assignInvoiceNumber keeps a caller-supplied number as is, otherwise takes the next free INV-#### value.
// A supplied number in the INV-#### format pulls the counter forward so generated numbers never collide with it.
func assignInvoiceNumber(tx *gorm.DB, organizationId string, requested string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		taken, err := invoiceNumberTaken(tx, organizationId, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrDuplicateInvoice.about("SalesInvoice", requested)
		}
		if n, ok := parseInvoiceNumber(requested); ok {
			if err := advanceSequence(tx, organizationId, SequenceInvoice, n); err != nil {
				return "", err
			}
		}
		return requested, nil
	}
	for i := 0; i < maxInvoiceNumberSkips; i++ {
		n, err := nextSequence(tx, organizationId, SequenceInvoice)
		if err != nil {
			return "", err
		}
		number := FormatInvoiceNumber(n)
		taken, err := invoiceNumberTaken(tx, organizationId, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", ErrDuplicateInvoice.about("SalesInvoice", SequenceInvoice)
}

func invoiceNumberTaken(tx *gorm.DB, organizationId string, number string) (bool, error) {
	var count int64
	if err := tx.Model(&SalesInvoice{}).
		Where("organization_id = ? AND invoice_number = ?", organizationId, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func replayedSale(db *gorm.DB, organizationId string, key string) (*SalesInvoice, error) {
	var idem IdempotencyKey
	err := db.Where("organization_id = ? AND handler_name = ? AND message_id = ?", organizationId, handlerCreateSale, key).
		First(&idem).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return findSaleInvoice(db, organizationId, idem.ResultId)
}

// processSaleLine walks one line through its states; the returned error names the last state reached.
func processSaleLine(ctx context.Context, sc *saleContext, lineNo int, input *NewSaleLine) (*SaleLine, error) {
	ctx, span := tracer.Start(ctx, "CreateSale.line", trace.WithAttributes(
		attribute.Int("line", lineNo),
		attribute.Int("product_id", input.ProductId),
	))
	defer span.End()

	state := SaleLineStatePending
	fail := func(err error) (*SaleLine, error) {
		err = classifyDBError(err, nil)
		span.RecordError(err)
		var de *DomainError
		if errors.As(err, &de) {
			return nil, &SaleLineError{Line: lineNo, ProductId: input.ProductId, State: state, Err: err}
		}
		return nil, err
	}
	tx := sc.tx.WithContext(ctx)

	product, err := findActiveProduct(tx, sc.organizationId, input.ProductId)
	if err != nil {
		return fail(err)
	}
	if product.BaseUnitId == 0 {
		return fail(ErrInvalidUnitConfig.about("Product", product.ID))
	}
	unitId := input.UnitId
	if unitId == 0 {
		unitId = product.defaultSaleUnitId()
	}
	quantityBase, err := ConvertToBase(ctx, sc.units, input.Quantity, unitId, product.BaseUnitId)
	if err != nil {
		return fail(err)
	}
	if !quantityBase.IsPositive() {
		return fail(ErrInvalidQuantity)
	}
	saleUnit, err := sc.units.LookupUnit(ctx, unitId)
	if err != nil {
		return fail(err)
	}
	state = SaleLineStateUnitResolved

	rep, err := ResolveStockRepresentation(product)
	if err != nil {
		return fail(err)
	}
	req := StockRequest{
		OrganizationId: sc.organizationId,
		Product:        product,
		SaleUnit:       saleUnit,
		Quantity:       input.Quantity,
		QuantityBase:   quantityBase,
		BatchId:        input.BatchId,
		SerialNumbers:  input.SerialNumbers,
	}
	available, err := rep.CheckAvailable(ctx, tx, req)
	if err != nil {
		return fail(err)
	}
	if !available {
		return fail(ErrInsufficientStock.about("Product", product.ID))
	}
	state = SaleLineStateStockValidated

	deduction, err := rep.Deduct(ctx, tx, req)
	if err != nil {
		return fail(err)
	}
	if rep.Kind().tracksStock() {
		if err := applyOutbound(tx, sc.organizationId, product.ID, quantityBase); err != nil {
			return fail(err)
		}
	}
	state = SaleLineStateStockDeducted

	unitPrice := resolveUnitPrice(input.UnitPrice, deduction)
	amounts := ComputeLineAmounts(input.Quantity, unitPrice, input.DiscountAmount, resolveTaxRate(input.TaxRate, product), deduction.LineCost)
	if amounts.Net.IsNegative() {
		return fail(validationMessage("discount_amount", "discount exceeds the line amount"))
	}
	state = SaleLineStatePriced

	writer := ledgerWriter{
		tx:              tx,
		organizationId:  sc.organizationId,
		product:         product,
		transactionType: TransactionTypeSale,
		referenceId:     sc.invoiceNumber,
		performedBy:     sc.performedBy,
		correlationId:   sc.correlationId,
	}
	minusOne := decimal.NewFromInt(-1)
	switch {
	case !rep.Kind().tracksStock():
		// services leave no ledger trace
	case len(deduction.Serials) > 0:
		for _, serial := range deduction.Serials {
			serialId := serial.ID
			if _, err := writer.record(stockMovement{
				QuantityBase: decimal.NewFromInt(1),
				UnitCost:     serial.CostPrice,
				UnitPrice:    unitPrice,
				TaxRate:      amounts.TaxRate,
				SerialId:     &serialId,
			}, minusOne); err != nil {
				return fail(err)
			}
		}
	default:
		if _, err := writer.record(stockMovement{
			QuantityBase: quantityBase,
			UnitCost:     deduction.CostPerBaseUnit,
			UnitPrice:    unitPrice,
			TaxRate:      amounts.TaxRate,
			BatchId:      deduction.BatchId,
		}, minusOne); err != nil {
			return fail(err)
		}
	}
	state = SaleLineStateLedgerRecorded

	line := &SaleLine{
		OrganizationId:  sc.organizationId,
		LineNo:          lineNo,
		ProductId:       product.ID,
		ProductName:     product.Name,
		ProductType:     rep.Kind(),
		BaseUnitId:      product.BaseUnitId,
		SaleUnitId:      unitId,
		Quantity:        input.Quantity,
		QuantityBase:    quantityBase,
		BatchId:         deduction.BatchId,
		UnitPrice:       unitPrice,
		GrossAmount:     amounts.Gross,
		DiscountAmount:  amounts.Discount,
		NetAmount:       amounts.Net,
		TaxRate:         amounts.TaxRate,
		TaxAmount:       amounts.Tax,
		LineTotal:       amounts.Total,
		CostPerBaseUnit: deduction.CostPerBaseUnit,
		LineCostTotal:   amounts.Cost,
		LineProfit:      amounts.Profit,
	}
	for _, serial := range deduction.Serials {
		line.SerialNumbers = append(line.SerialNumbers, serial.SerialNumber)
	}
	state = SaleLineStateCommitted
	span.SetAttributes(attribute.String("state", string(state)))
	return line, nil
}
