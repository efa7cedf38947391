package models

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	posBatchLimit  = 10
	posSerialLimit = 20
)

// InventoryDetails holds the stock of one product; only the store matching StockType is filled.
type InventoryDetails struct {
	Product    *Product           `json:"product"`
	StockType  StockKind          `json:"stock_type"`
	StockValue decimal.Decimal    `json:"stock_value"`
	Standard   *StandardInventory `json:"standard,omitempty"`
	Batches    []*BatchLot        `json:"batches,omitempty"`
	Serials    []*SerialUnit      `json:"serials,omitempty"`
}

func GetInventoryDetails(ctx context.Context, productId int) (*InventoryDetails, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	db := dbFromContext(ctx)
	product, err := findActiveProduct(db, organizationId, productId)
	if err != nil {
		return nil, err
	}
	rep, err := ResolveStockRepresentation(product)
	if err != nil {
		return nil, err
	}
	details := &InventoryDetails{
		Product:    product,
		StockType:  rep.Kind(),
		StockValue: utils.RoundMoney(product.TotalQuantity.Mul(product.AvgCostPrice)),
	}
	switch rep.Kind() {
	case StockKindBatched:
		details.Batches, err = listActiveBatches(db, organizationId, productId, 0)
	case StockKindSerialized:
		details.Serials, err = listAvailableSerials(db, organizationId, productId, 0)
	case StockKindService:
	default:
		details.Standard, err = findStandardInventory(db, organizationId, productId)
	}
	if err != nil {
		return nil, err
	}
	return details, nil
}

type POSProductFilter struct {
	Query     string     `form:"q"`
	Category  string     `form:"category"`
	Brand     string     `form:"brand"`
	StockType StockKind  `form:"stock_type"`
	Limit     int        `form:"limit"`
	Units     UnitLookup `form:"-"`
}

type POSProductUnits struct {
	BaseUnit     *MeasuringUnit `json:"base_unit"`
	SaleUnit     *MeasuringUnit `json:"sale_unit"`
	PurchaseUnit *MeasuringUnit `json:"purchase_unit"`
}

type POSProduct struct {
	ProductId     int             `json:"product_id"`
	Name          string          `json:"name"`
	Sku           string          `json:"sku"`
	Code          string          `json:"code"`
	Category      string          `json:"category"`
	Brand         string          `json:"brand"`
	StockType     StockKind       `json:"stock_type"`
	Units         POSProductUnits `json:"units"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	AvgCostPrice  decimal.Decimal `json:"avg_cost_price"`
	HasExpiryDate bool            `json:"has_expiry_date"`
	Batches       []*BatchLot     `json:"batches"`
	Serials       []*SerialUnit   `json:"serials"`
	SoonToExpire  bool            `json:"soon_to_expire"`
	ExpiresInDays *int            `json:"expires_in_days"`
}

// SearchPOSProducts lists sellable products with the lots and serials a till would offer first.
func SearchPOSProducts(ctx context.Context, filter *POSProductFilter) ([]*POSProduct, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if filter == nil {
		filter = &POSProductFilter{}
	}
	db := dbFromContext(ctx)

	q := db.Where("organization_id = ? AND is_active = ?", organizationId, true)
	if query := strings.TrimSpace(filter.Query); query != "" {
		like := "%" + query + "%"
		q = q.Where("name LIKE ? OR sku LIKE ? OR code LIKE ?", like, like, like)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Brand != "" {
		q = q.Where("brand = ?", filter.Brand)
	}
	switch filter.StockType {
	case StockKindBatched:
		q = q.Where("tracks_batches = ?", true)
	case StockKindSerialized:
		q = q.Where("tracks_serials = ?", true)
	case StockKindStandard:
		q = q.Where("tracks_batches = ? AND tracks_serials = ? AND tracks_bulk_inventory = ?", false, false, true)
	case StockKindService:
		q = q.Where("tracks_batches = ? AND tracks_serials = ? AND tracks_bulk_inventory = ?", false, false, false)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = config.SearchLimit
	}

	var products []*Product
	if err := q.Order("name ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, err
	}

	units := filter.Units
	if units == nil {
		units = NewUnitLookup(db, organizationId)
	}
	now := time.Now().UTC()
	results := make([]*POSProduct, 0, len(products))
	for _, p := range products {
		item := &POSProduct{
			ProductId:     p.ID,
			Name:          p.Name,
			Sku:           p.Sku,
			Code:          p.Code,
			Category:      p.Category,
			Brand:         p.Brand,
			StockType:     stockKindOf(p),
			SellPrice:     p.SellPrice,
			TaxRate:       p.TaxRate,
			TotalQuantity: p.TotalQuantity,
			AvgCostPrice:  p.AvgCostPrice,
			HasExpiryDate: p.HasExpiryDate,
			Batches:       []*BatchLot{},
			Serials:       []*SerialUnit{},
		}
		var err error
		if item.Units.BaseUnit, err = units.LookupUnit(ctx, p.BaseUnitId); err != nil {
			return nil, err
		}
		if item.Units.SaleUnit, err = units.LookupUnit(ctx, p.defaultSaleUnitId()); err != nil {
			return nil, err
		}
		if item.Units.PurchaseUnit, err = units.LookupUnit(ctx, p.defaultPurchaseUnitId()); err != nil {
			return nil, err
		}

		switch item.StockType {
		case StockKindBatched:
			if item.Batches, err = listActiveBatches(db, organizationId, p.ID, posBatchLimit); err != nil {
				return nil, err
			}
			item.SoonToExpire = isSoonToExpire(item.Batches, now)
			item.ExpiresInDays = expiresInDays(item.Batches, now)
		case StockKindSerialized:
			if item.Serials, err = listAvailableSerials(db, organizationId, p.ID, posSerialLimit); err != nil {
				return nil, err
			}
		}
		results = append(results, item)
	}
	return results, nil
}

// expiresInDays counts whole days until the first FEFO lot expires; negative once expired.
func expiresInDays(lots []*BatchLot, now time.Time) *int {
	if len(lots) == 0 || lots[0].ExpiryDate == nil {
		return nil
	}
	days := int(math.Floor(lots[0].ExpiryDate.Sub(now).Hours() / 24))
	return &days
}
