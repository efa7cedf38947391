package models

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/retail_backend/utils"
)

func TestResolveStockRepresentation(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		want    StockKind
		err     error
	}{
		{"bulk", Product{TracksBulkInventory: true}, StockKindStandard, nil},
		{"batches", Product{TracksBatches: true}, StockKindBatched, nil},
		{"serials", Product{TracksSerials: true}, StockKindSerialized, nil},
		{"no tracking", Product{}, StockKindService, nil},
		{"both", Product{TracksBatches: true, TracksSerials: true}, "", ErrInvalidStockConfig},
	}
	for _, tt := range tests {
		rep, err := ResolveStockRepresentation(&tt.product)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Fatalf("%s: expected %v, got %v", tt.name, tt.err, err)
			}
			continue
		}
		if err != nil || rep.Kind() != tt.want {
			t.Fatalf("%s: expected %s, got %v (%v)", tt.name, tt.want, rep, err)
		}
	}
}

func TestNewProductTracksBulkInventory(t *testing.T) {
	tests := []struct {
		name  string
		input NewProduct
		want  bool
	}{
		{"defaults to bulk", NewProduct{}, true},
		{"explicit service", NewProduct{TracksBulkInventory: utils.NewFalse()}, false},
		{"batches win", NewProduct{TracksBatches: true, TracksBulkInventory: utils.NewTrue()}, false},
		{"serials win", NewProduct{TracksSerials: true}, false},
	}
	for _, tt := range tests {
		if got := tt.input.tracksBulkInventory(); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestServiceStockNeverTouchesStore(t *testing.T) {
	product := &Product{ID: 9, SellPrice: dec("25")}
	req := StockRequest{Product: product, Quantity: dec("3"), QuantityBase: dec("3")}
	rep := ServiceStock{}

	// a nil tx proves no query is issued
	ok, err := rep.CheckAvailable(context.Background(), nil, req)
	if err != nil || !ok {
		t.Fatalf("service is always available: %v %v", ok, err)
	}
	deduction, err := rep.Deduct(context.Background(), nil, req)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if !deduction.LineCost.IsZero() || !deduction.DefaultUnitPrice.Equal(dec("25")) {
		t.Fatalf("unexpected deduction: cost=%s price=%s", deduction.LineCost, deduction.DefaultUnitPrice)
	}
	if _, err := rep.Receive(context.Background(), nil, StockInbound{Product: product}); !errors.Is(err, ErrInvalidStockConfig) {
		t.Fatalf("expected INVALID_STOCK_CONFIG on receive, got %v", err)
	}
	if StockKindService.tracksStock() || !StockKindStandard.tracksStock() {
		t.Fatalf("only services skip stock tracking")
	}
}

func TestBatchSellingPriceScalesToSaleUnit(t *testing.T) {
	lot := &BatchLot{BatchSellingPrice: dec("2.5")}
	box := &MeasuringUnit{MultiplierToBase: dec("12")}
	if got := batchSellingPrice(lot, box); !got.Equal(dec("30")) {
		t.Fatalf("box price: %s", got)
	}
	if got := batchSellingPrice(lot, nil); !got.Equal(dec("2.5")) {
		t.Fatalf("base price: %s", got)
	}
}
