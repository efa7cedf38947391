package config

import (
	"os"
	"strings"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ClampStandardStock restores the legacy standard-bucket behaviour: an oversell clamps
// current_quantity at zero (and is logged as a stock breach) instead of failing the sale.
//
// Set via env:
// - STANDARD_STOCK_CLAMP=true
func ClampStandardStock() bool {
	return envBool("STANDARD_STOCK_CLAMP", false)
}

// AutoSelectFefoBatch lets a batched sale line omit batch_id; the earliest-expiring
// active lot that covers the line is used.
//
// Set via env:
// - AUTO_SELECT_FEFO_BATCH=false to require an explicit batch_id
func AutoSelectFefoBatch() bool {
	return envBool("AUTO_SELECT_FEFO_BATCH", true)
}

// SaleOutboxEnabled controls whether sales and receipts write outbox messages.
//
// Set via env:
// - SALE_OUTBOX_ENABLED=false
func SaleOutboxEnabled() bool {
	return envBool("SALE_OUTBOX_ENABLED", true)
}
