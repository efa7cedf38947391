package middlewares

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/retail_backend/models"
)

func TestGenerateLoaderResultsKeepsRequestOrder(t *testing.T) {
	rows := []models.Customer{
		{ID: 7, Name: "Aye"},
		{ID: 3, Name: "Ko Ko"},
	}
	results := generateLoaderResults(rows, []int{3, 9, 7})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if got := results[0].Data.Name; got != "Ko Ko" {
		t.Fatalf("expected Ko Ko first, got %q", got)
	}
	if got := results[1].Data; got.ID != 9 || got.Name != models.WalkInCustomerName {
		t.Fatalf("expected default customer for missing id, got %+v", got)
	}
	if got := results[2].Data.Name; got != "Aye" {
		t.Fatalf("expected Aye last, got %q", got)
	}
}

func TestGenerateLoaderArrayResultsGroupsByInvoice(t *testing.T) {
	lines := []models.SaleLine{
		{ID: 1, SalesInvoiceId: 10, LineNo: 1},
		{ID: 2, SalesInvoiceId: 11, LineNo: 1},
		{ID: 3, SalesInvoiceId: 10, LineNo: 2},
	}
	results := generateLoaderArrayResults(lines, []int{10, 11, 12})
	if len(results[0].Data) != 2 || results[0].Data[1].ID != 3 {
		t.Fatalf("unexpected lines for invoice 10: %+v", results[0].Data)
	}
	if len(results[1].Data) != 1 || results[1].Data[0].ID != 2 {
		t.Fatalf("unexpected lines for invoice 11: %+v", results[1].Data)
	}
	if results[2].Data != nil {
		t.Fatalf("expected no lines for invoice 12")
	}
}

func TestHandleErrorRepeatsError(t *testing.T) {
	boom := errors.New("boom")
	results := handleError[*models.Product](3, boom)
	for i, r := range results {
		if !errors.Is(r.Error, boom) {
			t.Fatalf("result %d: expected boom, got %v", i, r.Error)
		}
	}
}
