package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SerialUnit is one individually tracked item. This engine only moves it AVAILABLE -> SOLD.
type SerialUnit struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrganizationId  string          `gorm:"size:64;not null;uniqueIndex:uniq_serial_org_number,priority:1" json:"organization_id"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	SerialNumber    string          `gorm:"size:100;not null;uniqueIndex:uniq_serial_org_number,priority:2" json:"serial_number"`
	CostPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost_price"`
	SellPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sell_price"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"tax_rate"`
	Status          SerialStatus    `gorm:"type:enum('AVAILABLE','SOLD','RETURNED','DAMAGED');not null;default:'AVAILABLE';index" json:"status"`
	CurrentLocation string          `gorm:"size:100" json:"current_location"`
	Notes           string          `gorm:"type:text" json:"notes"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	EntryDate       time.Time       `gorm:"not null" json:"entry_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSerialUnit struct {
	SerialNumber string           `json:"serial_number" binding:"required,max=100"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellPrice    *decimal.Decimal `json:"sell_price"`
	Notes        string           `json:"notes"`
	ExpiryDate   *time.Time       `json:"expiry_date"`
}

type SerializedStock struct{}

func (SerializedStock) stockRepresentation() {}

func (SerializedStock) Kind() StockKind { return StockKindSerialized }

// checkSerialCount requires one distinct serial per unit of both quantity and base quantity.
func checkSerialCount(req StockRequest) ([]string, error) {
	serials := make([]string, 0, len(req.SerialNumbers))
	for _, s := range req.SerialNumbers {
		serials = append(serials, strings.TrimSpace(s))
	}
	n := decimal.NewFromInt(int64(len(serials)))
	if len(serials) == 0 || len(utils.UniqueSlice(serials)) != len(serials) ||
		!req.Quantity.Equal(n) || !req.QuantityBase.Equal(n) {
		return nil, ErrSerialCountMismatch.withMessage("%d serial numbers given for quantity %s", len(serials), req.Quantity)
	}
	return serials, nil
}

// availableSerials loads the requested serials and fails unless every one is AVAILABLE for the product.
func availableSerials(tx *gorm.DB, req StockRequest, serials []string) ([]*SerialUnit, error) {
	var units []*SerialUnit
	err := tx.Where("organization_id = ? AND product_id = ? AND serial_number IN ?", req.OrganizationId, req.Product.ID, serials).
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	found := make(map[string]*SerialUnit, len(units))
	for _, u := range units {
		found[u.SerialNumber] = u
	}
	ordered := make([]*SerialUnit, 0, len(serials))
	for _, s := range serials {
		u, ok := found[s]
		if !ok || u.Status != SerialStatusAvailable {
			return nil, ErrSerialUnavailable.about("SerialUnit", s)
		}
		ordered = append(ordered, u)
	}
	return ordered, nil
}

func (SerializedStock) CheckAvailable(ctx context.Context, tx *gorm.DB, req StockRequest) (bool, error) {
	serials, err := checkSerialCount(req)
	if err != nil {
		return false, err
	}
	if _, err := availableSerials(tx.WithContext(ctx), req, serials); err != nil {
		return false, err
	}
	return true, nil
}

func (SerializedStock) Deduct(ctx context.Context, tx *gorm.DB, req StockRequest) (*StockDeduction, error) {
	tx = tx.WithContext(ctx)
	serials, err := checkSerialCount(req)
	if err != nil {
		return nil, err
	}
	units, err := availableSerials(tx, req, serials)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	// the status predicate lets exactly one of two racing sales claim a serial
	res := tx.Model(&SerialUnit{}).
		Where("organization_id = ? AND id IN ? AND status = ?", req.OrganizationId, ids, SerialStatusAvailable).
		Update("status", SerialStatusSold)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return nil, ErrSerialUnavailable.withMessage("serial numbers were sold concurrently")
	}

	totalCost := decimal.Zero
	totalSell := decimal.Zero
	for _, u := range units {
		u.Status = SerialStatusSold
		totalCost = totalCost.Add(u.CostPrice)
		totalSell = totalSell.Add(u.SellPrice)
	}
	n := decimal.NewFromInt(int64(len(units)))
	price := req.Product.SellPrice.Mul(unitMultiplier(req.SaleUnit))
	if !req.Product.SellPrice.IsPositive() {
		price = totalSell.Div(n)
	}
	return &StockDeduction{
		CostPerBaseUnit:  utils.RoundCost(totalCost.Div(n)),
		LineCost:         totalCost,
		DefaultUnitPrice: price,
		Serials:          units,
	}, nil
}

func (SerializedStock) Receive(ctx context.Context, tx *gorm.DB, in StockInbound) (*StockReceived, error) {
	if len(in.Serials) == 0 {
		return nil, validationMessage("serials", "at least one serial number is required")
	}
	tx = tx.WithContext(ctx)

	numbers := make([]string, 0, len(in.Serials))
	for _, s := range in.Serials {
		numbers = append(numbers, strings.TrimSpace(s.SerialNumber))
	}
	seen := make(map[string]bool, len(numbers))
	for _, s := range numbers {
		if seen[s] {
			return nil, ErrDuplicateSerial.about("SerialUnit", s)
		}
		seen[s] = true
	}
	var existing []string
	if err := tx.Model(&SerialUnit{}).
		Where("organization_id = ? AND serial_number IN ?", in.OrganizationId, numbers).
		Pluck("serial_number", &existing).Error; err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrDuplicateSerial.about("SerialUnit", existing[0])
	}

	defaultSell := in.UnitPrice
	if !defaultSell.IsPositive() {
		defaultSell = in.Product.SellPrice
	}
	units := make([]*SerialUnit, 0, len(in.Serials))
	for i, s := range in.Serials {
		units = append(units, &SerialUnit{
			OrganizationId:  in.OrganizationId,
			ProductId:       in.Product.ID,
			SerialNumber:    numbers[i],
			CostPrice:       utils.RoundCost(utils.DereferencePtr(s.CostPrice, in.UnitCost)),
			SellPrice:       utils.DereferencePtr(s.SellPrice, defaultSell),
			TaxRate:         in.TaxRate,
			Status:          SerialStatusAvailable,
			CurrentLocation: in.Location,
			Notes:           s.Notes,
			ExpiryDate:      s.ExpiryDate,
			EntryDate:       in.ReceivedAt,
		})
	}
	if err := tx.Create(&units).Error; err != nil {
		return nil, classifyDBError(err, map[string]*DomainError{"uniq_serial_org_number": ErrDuplicateSerial})
	}

	received := &StockReceived{QuantityBase: decimal.NewFromInt(int64(len(units))), Value: decimal.Zero}
	for _, u := range units {
		serialId := u.ID
		received.Value = received.Value.Add(u.CostPrice)
		received.Movements = append(received.Movements, stockMovement{
			QuantityBase: decimal.NewFromInt(1),
			UnitCost:     u.CostPrice,
			UnitPrice:    u.SellPrice,
			TaxRate:      u.TaxRate,
			SerialId:     &serialId,
		})
	}
	return received, nil
}

func listAvailableSerials(tx *gorm.DB, organizationId string, productId int, limit int) ([]*SerialUnit, error) {
	var units []*SerialUnit
	q := tx.Where("organization_id = ? AND product_id = ? AND status = ?", organizationId, productId, SerialStatusAvailable).
		Order("entry_date ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}
