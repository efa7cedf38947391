package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	CheckLedgerQuantity = "LEDGER_QUANTITY"
	CheckStockStore     = "STOCK_STORE"
)

// LedgerReconciliation compares a product's running total with its ledger and its stock store.
type LedgerReconciliation struct {
	ProductId      int             `json:"product_id"`
	StockType      StockKind       `json:"stock_type"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	LedgerQuantity decimal.Decimal `json:"ledger_quantity"`
	StoreQuantity  decimal.Decimal `json:"store_quantity"`
	Consistent     bool            `json:"consistent"`
}

func ReconcileProductLedger(ctx context.Context, productId int) (*LedgerReconciliation, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	db := dbFromContext(ctx)
	product, err := GetProduct(ctx, productId)
	if err != nil {
		return nil, err
	}
	ledgerQty, err := ledgerQuantity(db, organizationId, productId)
	if err != nil {
		return nil, err
	}
	kind := stockKindOf(product)
	storeQty, err := storeQuantity(ctx, organizationId, productId, kind)
	if err != nil {
		return nil, err
	}
	return &LedgerReconciliation{
		ProductId:      productId,
		StockType:      kind,
		TotalQuantity:  product.TotalQuantity,
		LedgerQuantity: ledgerQty,
		StoreQuantity:  storeQty,
		Consistent:     product.TotalQuantity.Equal(ledgerQty) && product.TotalQuantity.Equal(storeQty),
	}, nil
}

// storeQuantity sums what the product's stock store holds, in base units.
func storeQuantity(ctx context.Context, organizationId string, productId int, kind StockKind) (decimal.Decimal, error) {
	db := dbFromContext(ctx)
	var sum decimal.NullDecimal
	var err error
	switch kind {
	case StockKindBatched:
		err = db.Model(&BatchLot{}).Select("SUM(current_quantity)").
			Where("organization_id = ? AND product_id = ?", organizationId, productId).Scan(&sum).Error
	case StockKindSerialized:
		var n int64
		err = db.Model(&SerialUnit{}).
			Where("organization_id = ? AND product_id = ? AND status = ?", organizationId, productId, SerialStatusAvailable).
			Count(&n).Error
		sum = decimal.NewNullDecimal(decimal.NewFromInt(n))
	case StockKindService:
		return decimal.Zero, nil
	default:
		err = db.Model(&StandardInventory{}).Select("SUM(current_quantity)").
			Where("organization_id = ? AND product_id = ?", organizationId, productId).Scan(&sum).Error
	}
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

// ReconcileOrganizationLedger checks every product of an organization. With store set,
// each mismatch is written to reconciliation_reports under one correlation id.
func ReconcileOrganizationLedger(ctx context.Context, organizationId string, store bool) (string, []*ReconciliationReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return "", nil, fmt.Errorf("db is nil")
	}
	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	now := time.Now().UTC()

	type quantityMismatch struct {
		ProductId   int
		ExpectedQty string
		ActualQty   string
	}

	// 1) Product total vs sum(inventory_ledger_entries.quantity_change)
	var ledgerMismatches []quantityMismatch
	if err := db.WithContext(ctx).Raw(`
		SELECT
			p.id AS product_id,
			CAST(p.total_quantity AS CHAR) AS expected_qty,
			CAST(COALESCE(SUM(l.quantity_change), 0) AS CHAR) AS actual_qty
		FROM products p
		LEFT JOIN inventory_ledger_entries l
		  ON l.organization_id = p.organization_id
		 AND l.product_id = p.id
		WHERE p.organization_id = ?
		GROUP BY p.id, p.total_quantity
		HAVING ROUND(p.total_quantity, 4) <> ROUND(COALESCE(SUM(l.quantity_change), 0), 4)
	`, organizationId).Scan(&ledgerMismatches).Error; err != nil {
		return cid, nil, err
	}

	// 2) Product total vs the stock store of its representation
	var storeMismatches []quantityMismatch
	if err := db.WithContext(ctx).Raw(`
		SELECT p.id AS product_id,
			CAST(p.total_quantity AS CHAR) AS expected_qty,
			CAST(s.qty AS CHAR) AS actual_qty
		FROM products p
		JOIN (
			SELECT organization_id, product_id, SUM(current_quantity) AS qty
			FROM batch_lots WHERE organization_id = ? GROUP BY organization_id, product_id
			UNION ALL
			SELECT organization_id, product_id, COUNT(*) AS qty
			FROM serial_units WHERE organization_id = ? AND status = 'AVAILABLE' GROUP BY organization_id, product_id
			UNION ALL
			SELECT organization_id, product_id, current_quantity AS qty
			FROM standard_inventories WHERE organization_id = ?
		) s ON s.organization_id = p.organization_id AND s.product_id = p.id
		WHERE p.organization_id = ?
		  AND ROUND(p.total_quantity, 4) <> ROUND(s.qty, 4)
	`, organizationId, organizationId, organizationId, organizationId).Scan(&storeMismatches).Error; err != nil {
		return cid, nil, err
	}

	reports := make([]*ReconciliationReport, 0, len(ledgerMismatches)+len(storeMismatches))
	for _, m := range ledgerMismatches {
		reports = append(reports, &ReconciliationReport{
			OrganizationId: organizationId,
			CheckType:      CheckLedgerQuantity,
			EntityType:     ReferenceTypeProduct,
			EntityId:       m.ProductId,
			Details:        fmt.Sprintf("total_quantity=%s != sum(quantity_change)=%s", m.ExpectedQty, m.ActualQty),
			CorrelationId:  cid,
			CreatedAt:      now,
		})
	}
	for _, m := range storeMismatches {
		reports = append(reports, &ReconciliationReport{
			OrganizationId: organizationId,
			CheckType:      CheckStockStore,
			EntityType:     ReferenceTypeProduct,
			EntityId:       m.ProductId,
			Details:        fmt.Sprintf("total_quantity=%s != stock store quantity=%s", m.ExpectedQty, m.ActualQty),
			CorrelationId:  cid,
			CreatedAt:      now,
		})
	}
	if store && len(reports) > 0 {
		if err := db.WithContext(ctx).Create(&reports).Error; err != nil {
			return cid, reports, err
		}
	}

	if logger := config.GetLogger(); logger != nil {
		logger.WithFields(logrus.Fields{
			"field":             "ReconcileOrganizationLedger",
			"organization_id":   organizationId,
			"correlation_id":    cid,
			"ledger_mismatches": len(ledgerMismatches),
			"store_mismatches":  len(storeMismatches),
		}).Info("ledger reconciliation completed")
	}
	return cid, reports, nil
}
