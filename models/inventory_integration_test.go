package models_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

func newOrganization(ctx context.Context) context.Context {
	return utils.SetOrganizationIdInContext(ctx, "org-"+uuid.NewString()[:8])
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func reloadProduct(t *testing.T, ctx context.Context, id int) *models.Product {
	t.Helper()
	p, err := models.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	return p
}

// raceSales starts every sale at the same moment and returns their errors in input order.
func raceSales(ctx context.Context, inputs ...*models.NewSale) []error {
	errs := make([]error, len(inputs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input *models.NewSale) {
			defer wg.Done()
			<-start
			_, errs[i] = models.CreateSale(ctx, input)
		}(i, input)
	}
	close(start)
	wg.Wait()
	return errs
}

// assertOneWinner expects exactly one nil error and a retryable or stock refusal for the rest.
func assertOneWinner(t *testing.T, errs []error) {
	t.Helper()
	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrSerialUnavailable),
			errors.Is(err, models.ErrInsufficientStock),
			errors.Is(err, models.ErrConcurrencyConflict):
		default:
			t.Fatalf("unexpected error from losing sale: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one sale to win, got %d (%v)", wins, errs)
	}
}

func TestInventoryIntegration(t *testing.T) {
	base := setupIntegration(t)

	t.Run("receipts and sales keep the ledger in sync", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		soap := catalog.newProduct(t, ctx, "Soap", false, false)

		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: soap.ID, Quantity: dec("100"), UnitCost: dec("10")})
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: soap.ID, Quantity: dec("50"), UnitCost: dec("16")})
		if p := reloadProduct(t, ctx, soap.ID); !p.AvgCostPrice.Equal(dec("12")) || !p.TotalQuantity.Equal(dec("150")) {
			t.Fatalf("expected 150 @ 12, got %s @ %s", p.TotalQuantity, p.AvgCostPrice)
		}

		// two boxes at 24 a box land as 24 pieces at 2
		boxed := mustReceive(t, ctx, &models.NewStockReceipt{ProductId: soap.ID, UnitId: catalog.box.ID, Quantity: dec("2"), UnitCost: dec("24")})
		if !boxed.QuantityBase.Equal(dec("24")) {
			t.Fatalf("expected 24 base units, got %s", boxed.QuantityBase)
		}

		first, err := models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{{
				ProductId:      soap.ID,
				Quantity:       dec("3"),
				UnitPrice:      ptr(dec("50")),
				DiscountAmount: dec("10"),
				TaxRate:        ptr(dec("18")),
			}},
		})
		if err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
		if first.InvoiceNumber != "INV-0001" {
			t.Fatalf("expected INV-0001, got %s", first.InvoiceNumber)
		}
		if !first.TotalGross.Equal(dec("150")) || !first.TotalTax.Equal(dec("25.2")) || !first.TotalAmount.Equal(dec("165.2")) {
			t.Fatalf("unexpected totals: gross=%s tax=%s total=%s", first.TotalGross, first.TotalTax, first.TotalAmount)
		}
		if first.CustomerName != models.WalkInCustomerName || first.CustomerId != nil {
			t.Fatalf("expected walk-in customer, got %q %v", first.CustomerName, first.CustomerId)
		}

		second, err := models.CreateSale(ctx, &models.NewSale{
			Customer: &models.SaleCustomerInput{Name: "Daw Hla", PhoneNo: "+14155552671"},
			Lines:    []*models.NewSaleLine{{ProductId: soap.ID, UnitId: catalog.box.ID, Quantity: dec("1")}},
		})
		if err != nil {
			t.Fatalf("CreateSale second: %v", err)
		}
		if second.InvoiceNumber != "INV-0002" {
			t.Fatalf("expected INV-0002, got %s", second.InvoiceNumber)
		}
		if second.CustomerId == nil {
			t.Fatalf("expected the named customer to be stored")
		}

		if p := reloadProduct(t, ctx, soap.ID); !p.TotalQuantity.Equal(dec("159")) {
			t.Fatalf("expected 174-3-12=159 on hand, got %s", p.TotalQuantity)
		}
		assertLedgerConsistent(t, ctx, soap.ID)

		next, err := models.GetNextInvoiceNumber(ctx)
		if err != nil || next != "INV-0003" {
			t.Fatalf("expected INV-0003 preview, got %q (%v)", next, err)
		}
	})

	t.Run("batch lot depletes and refuses oversell", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		milk := catalog.newProduct(t, ctx, "Milk", true, false)

		expiry := time.Now().UTC().AddDate(0, 0, 60)
		mustReceive(t, ctx, &models.NewStockReceipt{
			ProductId: milk.ID,
			UnitCost:  dec("3"),
			Batches:   []*models.NewBatchLot{{BatchCode: "B1", ExpiryDate: &expiry, Quantity: dec("5")}},
		})
		var lot models.BatchLot
		if err := config.GetDB().WithContext(ctx).Where("product_id = ?", milk.ID).First(&lot).Error; err != nil {
			t.Fatalf("load lot: %v", err)
		}

		_, err := models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{{ProductId: milk.ID, BatchId: lot.ID, Quantity: dec("6")}},
		})
		if !errors.Is(err, models.ErrInsufficientStock) {
			t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
		}
		var unchanged models.BatchLot
		config.GetDB().WithContext(ctx).First(&unchanged, lot.ID)
		if !unchanged.CurrentQuantity.Equal(dec("5")) {
			t.Fatalf("lot changed after failed sale: %s", unchanged.CurrentQuantity)
		}

		if _, err := models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{{ProductId: milk.ID, BatchId: lot.ID, Quantity: dec("5")}},
		}); err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
		var depleted models.BatchLot
		config.GetDB().WithContext(ctx).First(&depleted, lot.ID)
		if !depleted.CurrentQuantity.IsZero() || depleted.IsActive == nil || *depleted.IsActive {
			t.Fatalf("expected empty inactive lot, got %s active=%v", depleted.CurrentQuantity, depleted.IsActive)
		}
		assertLedgerConsistent(t, ctx, milk.ID)
	})

	t.Run("serials are sold once", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		phone := catalog.newProduct(t, ctx, "Phone", false, true)

		mustReceive(t, ctx, &models.NewStockReceipt{
			ProductId: phone.ID,
			UnitCost:  dec("300"),
			Serials: []*models.NewSerialUnit{
				{SerialNumber: "SN-A"},
				{SerialNumber: "SN-B"},
				{SerialNumber: "SN-C", CostPrice: ptr(dec("320"))},
			},
		})

		sale, err := models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{{ProductId: phone.ID, Quantity: dec("2"), SerialNumbers: []string{"SN-A", "SN-B"}}},
		})
		if err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
		if !sale.Lines[0].LineCostTotal.Equal(dec("600")) {
			t.Fatalf("expected cost 600, got %s", sale.Lines[0].LineCostTotal)
		}

		var sold int64
		config.GetDB().WithContext(ctx).Model(&models.SerialUnit{}).
			Where("product_id = ? AND status = ?", phone.ID, models.SerialStatusSold).Count(&sold)
		if sold != 2 {
			t.Fatalf("expected 2 sold serials, got %d", sold)
		}

		_, err = models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{{ProductId: phone.ID, Quantity: dec("2"), SerialNumbers: []string{"SN-C", "SN-A"}}},
		})
		if !errors.Is(err, models.ErrSerialUnavailable) {
			t.Fatalf("expected SERIAL_UNAVAILABLE, got %v", err)
		}

		_, err = models.ReceiveStock(ctx, &models.NewStockReceipt{
			ProductId: phone.ID,
			Serials:   []*models.NewSerialUnit{{SerialNumber: "SN-B"}},
		})
		if !errors.Is(err, models.ErrDuplicateSerial) {
			t.Fatalf("expected DUPLICATE_SERIAL, got %v", err)
		}
		assertLedgerConsistent(t, ctx, phone.ID)
	})

	t.Run("failed line rolls back the whole sale", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		rice := catalog.newProduct(t, ctx, "Rice", false, false)
		oil := catalog.newProduct(t, ctx, "Oil", false, false)
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: rice.ID, Quantity: dec("10"), UnitCost: dec("2")})
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: oil.ID, Quantity: dec("1"), UnitCost: dec("5")})

		_, err := models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{
				{ProductId: rice.ID, Quantity: dec("2")},
				{ProductId: oil.ID, Quantity: dec("5")},
			},
		})
		var lineErr *models.SaleLineError
		if !errors.As(err, &lineErr) || lineErr.Line != 2 || !errors.Is(err, models.ErrInsufficientStock) {
			t.Fatalf("expected line 2 INSUFFICIENT_STOCK, got %v", err)
		}
		if p := reloadProduct(t, ctx, rice.ID); !p.TotalQuantity.Equal(dec("10")) {
			t.Fatalf("line 1 stock change survived: %s", p.TotalQuantity)
		}
		var invoices int64
		config.GetDB().WithContext(ctx).Model(&models.SalesInvoice{}).Count(&invoices)
		if invoices != 0 {
			t.Fatalf("expected no invoice, got %d", invoices)
		}
		assertLedgerConsistent(t, ctx, rice.ID)
	})

	t.Run("ledger entries are immutable", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		tea := catalog.newProduct(t, ctx, "Tea", false, false)
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: tea.ID, Quantity: dec("4"), UnitCost: dec("1")})

		entries, err := models.ListLedgerEntries(ctx, tea.ID, nil)
		if err != nil || len(entries) != 1 {
			t.Fatalf("expected one ledger entry, got %d (%v)", len(entries), err)
		}
		db := config.GetDB().WithContext(ctx)
		if err := db.Model(entries[0]).Update("quantity_change", dec("40")).Error; !errors.Is(err, models.ErrLedgerImmutable) {
			t.Fatalf("expected LEDGER_IMMUTABLE on update, got %v", err)
		}
		if err := db.Delete(entries[0]).Error; !errors.Is(err, models.ErrLedgerImmutable) {
			t.Fatalf("expected LEDGER_IMMUTABLE on delete, got %v", err)
		}
		assertLedgerConsistent(t, ctx, tea.ID)
	})

	t.Run("duplicate invoice number changes nothing", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		pen := catalog.newProduct(t, ctx, "Pen", false, false)
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: pen.ID, Quantity: dec("10"), UnitCost: dec("1")})

		sale := func() error {
			_, err := models.CreateSale(ctx, &models.NewSale{
				InvoiceNumber: "POS-777",
				Lines:         []*models.NewSaleLine{{ProductId: pen.ID, Quantity: dec("1")}},
			})
			return err
		}
		if err := sale(); err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
		if err := sale(); !errors.Is(err, models.ErrDuplicateInvoice) {
			t.Fatalf("expected DUPLICATE_INVOICE, got %v", err)
		}
		if p := reloadProduct(t, ctx, pen.ID); !p.TotalQuantity.Equal(dec("9")) {
			t.Fatalf("expected 9 on hand, got %s", p.TotalQuantity)
		}
		assertLedgerConsistent(t, ctx, pen.ID)
	})

	t.Run("idempotency key replays the first sale", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		cup := catalog.newProduct(t, ctx, "Cup", false, false)
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: cup.ID, Quantity: dec("5"), UnitCost: dec("1")})

		input := func() *models.NewSale {
			return &models.NewSale{
				IdempotencyKey: "till-1-0001",
				Lines:          []*models.NewSaleLine{{ProductId: cup.ID, Quantity: dec("2")}},
			}
		}
		first, err := models.CreateSale(ctx, input())
		if err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
		again, err := models.CreateSale(ctx, input())
		if err != nil {
			t.Fatalf("CreateSale replay: %v", err)
		}
		if again.ID != first.ID {
			t.Fatalf("expected replay of invoice %d, got %d", first.ID, again.ID)
		}
		if p := reloadProduct(t, ctx, cup.ID); !p.TotalQuantity.Equal(dec("3")) {
			t.Fatalf("stock deducted twice: %s", p.TotalQuantity)
		}
	})

	t.Run("manual numbers in the generated format are never reissued", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		salt := catalog.newProduct(t, ctx, "Salt", false, false)
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: salt.ID, Quantity: dec("10"), UnitCost: dec("1")})

		sell := func(number string) (*models.SalesInvoice, error) {
			return models.CreateSale(ctx, &models.NewSale{
				InvoiceNumber: number,
				Lines:         []*models.NewSaleLine{{ProductId: salt.ID, Quantity: dec("1")}},
			})
		}
		if _, err := sell("INV-0002"); err != nil {
			t.Fatalf("CreateSale INV-0002: %v", err)
		}
		for _, want := range []string{"INV-0003", "INV-0004"} {
			invoice, err := sell("")
			if err != nil {
				t.Fatalf("automatic sale: %v", err)
			}
			if invoice.InvoiceNumber != want {
				t.Fatalf("expected %s, got %s", want, invoice.InvoiceNumber)
			}
		}

		// a row the counter never saw, as left by an import
		legacy := &models.SalesInvoice{
			OrganizationId: organizationIdOf(t, ctx),
			InvoiceNumber:  "INV-0005",
			InvoiceDate:    time.Now().UTC(),
			CustomerName:   models.WalkInCustomerName,
			Status:         models.InvoiceStatusConfirmed,
			PaymentMode:    "Cash",
		}
		if err := config.GetDB().WithContext(ctx).Create(legacy).Error; err != nil {
			t.Fatalf("insert legacy invoice: %v", err)
		}
		invoice, err := sell("")
		if err != nil {
			t.Fatalf("sale after legacy number: %v", err)
		}
		if invoice.InvoiceNumber != "INV-0006" {
			t.Fatalf("expected INV-0006, got %s", invoice.InvoiceNumber)
		}
		assertLedgerConsistent(t, ctx, salt.ID)
	})

	t.Run("service lines sell without stock", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		repair, err := models.CreateProduct(ctx, &models.NewProduct{
			Name:                "Screen repair",
			BaseUnitId:          catalog.piece.ID,
			TracksBulkInventory: utils.NewFalse(),
			SellPrice:           dec("40"),
		})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}

		sale, err := models.CreateSale(ctx, &models.NewSale{
			Lines: []*models.NewSaleLine{{ProductId: repair.ID, Quantity: dec("2")}},
		})
		if err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
		line := sale.Lines[0]
		if line.ProductType != models.StockKindService || !line.UnitPrice.Equal(dec("40")) || !line.LineCostTotal.IsZero() {
			t.Fatalf("unexpected service line: type=%s price=%s cost=%s", line.ProductType, line.UnitPrice, line.LineCostTotal)
		}
		if p := reloadProduct(t, ctx, repair.ID); !p.TotalQuantity.IsZero() {
			t.Fatalf("service quantity moved: %s", p.TotalQuantity)
		}
		entries, err := models.ListLedgerEntries(ctx, repair.ID, nil)
		if err != nil || len(entries) != 0 {
			t.Fatalf("expected no ledger entries, got %d (%v)", len(entries), err)
		}

		_, err = models.ReceiveStock(ctx, &models.NewStockReceipt{ProductId: repair.ID, Quantity: dec("1"), UnitCost: dec("1")})
		if !errors.Is(err, models.ErrInvalidStockConfig) {
			t.Fatalf("expected INVALID_STOCK_CONFIG on receipt, got %v", err)
		}
		assertLedgerConsistent(t, ctx, repair.ID)
	})

	t.Run("concurrent sales of one serial have one winner", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		laptop := catalog.newProduct(t, ctx, "Laptop", false, true)
		mustReceive(t, ctx, &models.NewStockReceipt{
			ProductId: laptop.ID,
			UnitCost:  dec("700"),
			Serials:   []*models.NewSerialUnit{{SerialNumber: "LT-1"}},
		})

		errs := raceSales(ctx, racingSales(laptop.ID, func(line *models.NewSaleLine) {
			line.Quantity = dec("1")
			line.SerialNumbers = []string{"LT-1"}
		})...)
		assertOneWinner(t, errs)
		if p := reloadProduct(t, ctx, laptop.ID); !p.TotalQuantity.IsZero() {
			t.Fatalf("expected the serial sold once, %s left", p.TotalQuantity)
		}
		assertLedgerConsistent(t, ctx, laptop.ID)
	})

	t.Run("concurrent sales of one bucket have one winner", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		flour := catalog.newProduct(t, ctx, "Flour", false, false)
		mustReceive(t, ctx, &models.NewStockReceipt{ProductId: flour.ID, Quantity: dec("5"), UnitCost: dec("2")})

		errs := raceSales(ctx, racingSales(flour.ID, func(line *models.NewSaleLine) {
			line.Quantity = dec("4")
		})...)
		assertOneWinner(t, errs)
		if p := reloadProduct(t, ctx, flour.ID); !p.TotalQuantity.Equal(dec("1")) {
			t.Fatalf("expected 1 left, got %s", p.TotalQuantity)
		}
		assertLedgerConsistent(t, ctx, flour.ID)
	})

	t.Run("concurrent sales of one lot have one winner", func(t *testing.T) {
		ctx := newOrganization(base)
		catalog := newTestCatalog(t, ctx)
		yogurt := catalog.newProduct(t, ctx, "Yogurt", true, false)
		expiry := time.Now().UTC().AddDate(0, 0, 20)
		mustReceive(t, ctx, &models.NewStockReceipt{
			ProductId: yogurt.ID,
			UnitCost:  dec("1"),
			Batches:   []*models.NewBatchLot{{BatchCode: "Y1", ExpiryDate: &expiry, Quantity: dec("5")}},
		})
		var lot models.BatchLot
		if err := config.GetDB().WithContext(ctx).Where("product_id = ?", yogurt.ID).First(&lot).Error; err != nil {
			t.Fatalf("load lot: %v", err)
		}

		errs := raceSales(ctx, racingSales(yogurt.ID, func(line *models.NewSaleLine) {
			line.BatchId = lot.ID
			line.Quantity = dec("4")
		})...)
		assertOneWinner(t, errs)
		var after models.BatchLot
		config.GetDB().WithContext(ctx).First(&after, lot.ID)
		if !after.CurrentQuantity.Equal(dec("1")) {
			t.Fatalf("expected 1 left in the lot, got %s", after.CurrentQuantity)
		}
		assertLedgerConsistent(t, ctx, yogurt.ID)
	})
}

// racingSales builds two sales of one product with distinct caller numbers,
// so they contend on the stock rows and not on the invoice counter.
func racingSales(productId int, shape func(*models.NewSaleLine)) []*models.NewSale {
	sales := make([]*models.NewSale, 2)
	for i := range sales {
		line := &models.NewSaleLine{ProductId: productId}
		shape(line)
		sales[i] = &models.NewSale{
			InvoiceNumber: fmt.Sprintf("RACE-%d-%d", productId, i),
			Lines:         []*models.NewSaleLine{line},
		}
	}
	return sales
}

func organizationIdOf(t *testing.T, ctx context.Context) string {
	t.Helper()
	orgId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok {
		t.Fatalf("context has no organization")
	}
	return orgId
}
