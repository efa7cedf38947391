package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLineAmounts(t *testing.T) {
	// 3 x 50.00, discount 10, tax 18%, cost 3 x 30
	got := ComputeLineAmounts(dec("3"), dec("50"), dec("10"), dec("18"), dec("90"))

	want := map[string]string{
		"gross":  "150",
		"net":    "140",
		"tax":    "25.2",
		"total":  "165.2",
		"cost":   "90",
		"profit": "75.2",
	}
	actual := map[string]decimal.Decimal{
		"gross":  got.Gross,
		"net":    got.Net,
		"tax":    got.Tax,
		"total":  got.Total,
		"cost":   got.Cost,
		"profit": got.Profit,
	}
	for k, v := range want {
		if !actual[k].Equal(dec(v)) {
			t.Fatalf("%s: got %s want %s", k, actual[k], v)
		}
	}
}

func TestComputeLineAmountsRoundsEachColumn(t *testing.T) {
	// 0.333 kg at 9.99 = 3.32667 -> 3.33; tax 7% of 3.33 = 0.2331 -> 0.23
	got := ComputeLineAmounts(dec("0.333"), dec("9.99"), decimal.Zero, dec("7"), dec("1.23456"))
	if !got.Gross.Equal(dec("3.33")) {
		t.Fatalf("gross: %s", got.Gross)
	}
	if !got.Tax.Equal(dec("0.23")) {
		t.Fatalf("tax: %s", got.Tax)
	}
	if !got.Total.Equal(got.Net.Add(got.Tax)) {
		t.Fatalf("total %s != net %s + tax %s", got.Total, got.Net, got.Tax)
	}
	if !got.Cost.Equal(dec("1.23")) {
		t.Fatalf("cost: %s", got.Cost)
	}
	if !got.Profit.Equal(got.Total.Sub(got.Cost)) {
		t.Fatalf("profit: %s", got.Profit)
	}
}

func TestResolveUnitPrice(t *testing.T) {
	deduction := &StockDeduction{DefaultUnitPrice: dec("12.5")}
	if p := resolveUnitPrice(nil, deduction); !p.Equal(dec("12.5")) {
		t.Fatalf("default price: %s", p)
	}
	override := dec("11")
	if p := resolveUnitPrice(&override, deduction); !p.Equal(override) {
		t.Fatalf("override price: %s", p)
	}
	zero := decimal.Zero
	if p := resolveUnitPrice(&zero, deduction); !p.IsZero() {
		t.Fatalf("explicit zero price should be kept, got %s", p)
	}
}

func TestResolveTaxRate(t *testing.T) {
	product := &Product{TaxRate: dec("5")}
	if r := resolveTaxRate(nil, product); !r.Equal(dec("5")) {
		t.Fatalf("product rate: %s", r)
	}
	override := dec("0")
	if r := resolveTaxRate(&override, product); !r.IsZero() {
		t.Fatalf("override rate: %s", r)
	}
}

func TestNewSaleValidate(t *testing.T) {
	cases := []struct {
		name  string
		input *NewSale
		code  ErrorCode
	}{
		{"no lines", &NewSale{}, CodeValidationFailed},
		{"zero quantity", &NewSale{Lines: []*NewSaleLine{{ProductId: 1}}}, CodeInvalidQuantity},
		{"negative discount", &NewSale{Lines: []*NewSaleLine{{ProductId: 1, Quantity: dec("1"), DiscountAmount: dec("-1")}}}, CodeValidationFailed},
		{"bad email", &NewSale{
			Customer: &SaleCustomerInput{Name: "Aye", Email: "nope"},
			Lines:    []*NewSaleLine{{ProductId: 1, Quantity: dec("1")}},
		}, CodeValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.validate()
			var de *DomainError
			if !errors.As(err, &de) {
				t.Fatalf("expected domain error, got %v", err)
			}
			if de.Code != tc.code {
				t.Fatalf("code: got %s want %s", de.Code, tc.code)
			}
		})
	}

	ok := &NewSale{Lines: []*NewSaleLine{{ProductId: 1, Quantity: dec("2")}}}
	if err := ok.validate(); err != nil {
		t.Fatalf("valid sale rejected: %v", err)
	}
}

func TestApplyPayment(t *testing.T) {
	invoice := &SalesInvoice{TotalAmount: dec("165.2"), PaymentMode: defaultPaymentMode}
	applyPayment(invoice, nil)
	if !invoice.PaidAmount.Equal(dec("165.2")) || invoice.PaymentMode != "Cash" {
		t.Fatalf("default payment: %s %s", invoice.PaidAmount, invoice.PaymentMode)
	}

	paid := dec("100.005")
	applyPayment(invoice, &SalePaymentInput{Mode: "KBZPay", PaidAmount: &paid, TransactionId: "tx-1"})
	if invoice.PaymentMode != "KBZPay" || !invoice.PaidAmount.Equal(dec("100.01")) || invoice.TransactionId != "tx-1" {
		t.Fatalf("explicit payment: %+v", invoice)
	}
}

func TestInvoiceTotalsAreSumsOfLines(t *testing.T) {
	invoice := &SalesInvoice{}
	a := ComputeLineAmounts(dec("3"), dec("50"), dec("10"), dec("18"), dec("90"))
	b := ComputeLineAmounts(dec("1"), dec("19.99"), decimal.Zero, decimal.Zero, dec("12.3456"))
	for _, amt := range []LineAmounts{a, b} {
		invoice.addLine(&SaleLine{
			GrossAmount:    amt.Gross,
			DiscountAmount: amt.Discount,
			TaxAmount:      amt.Tax,
			LineTotal:      amt.Total,
			LineCostTotal:  amt.Cost,
			LineProfit:     amt.Profit,
		})
	}
	if !invoice.TotalAmount.Equal(dec("185.19")) {
		t.Fatalf("total: %s", invoice.TotalAmount)
	}
	if !invoice.TotalProfit.Equal(invoice.TotalAmount.Sub(invoice.TotalCost)) {
		t.Fatalf("profit %s != total %s - cost %s", invoice.TotalProfit, invoice.TotalAmount, invoice.TotalCost)
	}
	if len(invoice.Lines) != 2 {
		t.Fatalf("lines: %d", len(invoice.Lines))
	}
}

func TestSaleLineErrorJSON(t *testing.T) {
	err := &SaleLineError{Line: 2, ProductId: 7, State: SaleLineStateStockValidated, Err: ErrInsufficientStock.about("Product", 7)}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("errors.Is should see the wrapped code")
	}
	raw, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("marshal: %v", jerr)
	}
	var got map[string]any
	if jerr := json.Unmarshal(raw, &got); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	if got["code"] != string(CodeInsufficientStock) || got["state"] != string(SaleLineStateStockValidated) || got["line"] != float64(2) {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestWeightedAverageCost(t *testing.T) {
	got := WeightedAverageCost(dec("100"), dec("10"), dec("50"), dec("16"))
	if !got.Equal(dec("12")) {
		t.Fatalf("got %s want 12", got)
	}
	if got := WeightedAverageCost(decimal.Zero, decimal.Zero, dec("3"), dec("2")); !got.Equal(dec("2")) {
		t.Fatalf("first receipt: %s", got)
	}
	if got := WeightedAverageCost(dec("-5"), dec("10"), dec("5"), dec("10")); !got.IsZero() {
		t.Fatalf("non-positive total should give zero, got %s", got)
	}
	if got := WeightedAverageCost(dec("1"), dec("1"), dec("2"), dec("1.5")); !got.Equal(dec("1.3333")) {
		t.Fatalf("rounding: %s", got)
	}
}

func TestQuantityChangeSign(t *testing.T) {
	cases := []struct {
		t  TransactionType
		q  string
		ok bool
	}{
		{TransactionTypePurchase, "5", true},
		{TransactionTypePurchase, "-5", false},
		{TransactionTypeOpeningStock, "0", false},
		{TransactionTypeSale, "-1", true},
		{TransactionTypeSale, "1", false},
		{TransactionTypeDamaged, "-2", true},
		{TransactionTypeAdjustment, "-2", true},
		{TransactionTypeAdjustment, "3", true},
		{TransactionTypeAdjustment, "0", false},
		{TransactionType("GIFT"), "1", false},
	}
	for _, tc := range cases {
		err := tc.t.CheckQuantityChange(dec(tc.q))
		if (err == nil) != tc.ok {
			t.Fatalf("%s %s: err=%v", tc.t, tc.q, err)
		}
	}
}

func TestDocumentNumberFormat(t *testing.T) {
	if got := FormatInvoiceNumber(7); got != "INV-0007" {
		t.Fatalf("invoice: %s", got)
	}
	if got := FormatInvoiceNumber(12345); got != "INV-12345" {
		t.Fatalf("wide invoice: %s", got)
	}
	if got := FormatCustomerCode(42); got != "CUST-0042" {
		t.Fatalf("customer: %s", got)
	}
}

func TestParseInvoiceNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"INV-0002", 2, true},
		{"INV-12345", 12345, true},
		{"INV-0000", 0, false},
		{"POS-0002", 0, false},
		{"INV-12a", 0, false},
		{"inv-0002", 0, false},
		{"INV-99999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInvoiceNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseInvoiceNumber(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsSoonToExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	soon := now.Add(10 * 24 * time.Hour)
	later := now.Add(60 * 24 * time.Hour)

	if isSoonToExpire(nil, now) {
		t.Fatalf("no lots")
	}
	if !isSoonToExpire([]*BatchLot{{ExpiryDate: &soon}}, now) {
		t.Fatalf("lot expiring in 10 days")
	}
	if isSoonToExpire([]*BatchLot{{ExpiryDate: &later}}, now) {
		t.Fatalf("lot expiring in 60 days")
	}
	if isSoonToExpire([]*BatchLot{{}}, now) {
		t.Fatalf("lot without expiry")
	}
}

func TestClassifyLockError(t *testing.T) {
	for _, err := range []error{utils.ErrorLockNotObtained, utils.ErrorServiceNotReady, errors.New("dial tcp: connection refused")} {
		if got := classifyLockError(err, "Customer", "k"); !errors.Is(got, ErrConcurrencyConflict) {
			t.Fatalf("%v: expected CONCURRENCY_CONFLICT, got %v", err, got)
		}
	}
	if got := classifyLockError(context.Canceled, "Customer", "k"); !errors.Is(got, context.Canceled) {
		t.Fatalf("cancellation should pass through: %v", got)
	}
	if classifyLockError(nil, "Customer", "k") != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestClassifyDBError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'o1-INV-0001' for key 'sales_invoices.uniq_invoice_org_number'"}
	err := classifyDBError(fmt.Errorf("create: %w", dup), map[string]*DomainError{"uniq_invoice_org_number": ErrDuplicateInvoice})
	if !errors.Is(err, ErrDuplicateInvoice) {
		t.Fatalf("duplicate: %v", err)
	}
	if !isDuplicateIndex(dup, "uniq_invoice_org_number") || isDuplicateIndex(dup, "uniq_idem") {
		t.Fatalf("isDuplicateIndex")
	}

	other := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uniq_idem'"}
	if err := classifyDBError(other, map[string]*DomainError{"uniq_invoice_org_number": ErrDuplicateInvoice}); err != other {
		t.Fatalf("unmapped duplicate should pass through: %v", err)
	}

	for _, n := range []uint16{1213, 1205} {
		if err := classifyDBError(&mysql.MySQLError{Number: n}, nil); !errors.Is(err, ErrConcurrencyConflict) {
			t.Fatalf("%d: %v", n, err)
		}
	}
	plain := errors.New("boom")
	if err := classifyDBError(plain, nil); err != plain {
		t.Fatalf("plain error changed: %v", err)
	}
}
