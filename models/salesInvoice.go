package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesInvoice totals are exact sums of the rounded line amounts.
type SalesInvoice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"size:64;not null;uniqueIndex:uniq_invoice_org_number,priority:1;index:idx_invoice_org_date,priority:1" json:"organization_id"`
	InvoiceNumber  string          `gorm:"size:50;not null;uniqueIndex:uniq_invoice_org_number,priority:2" json:"invoice_number"`
	InvoiceDate    time.Time       `gorm:"not null;index:idx_invoice_org_date,priority:2" json:"invoice_date"`
	CustomerId     *int            `gorm:"index" json:"customer_id"`
	CustomerName   string          `gorm:"size:100;not null" json:"customer_name"`
	CustomerPhone  string          `gorm:"size:30" json:"customer_phone"`
	Status         InvoiceStatus   `gorm:"type:enum('DRAFT','CONFIRMED','CANCELLED');not null;default:'CONFIRMED'" json:"status"`
	PaymentMode    string          `gorm:"size:50;not null;default:'Cash'" json:"payment_mode"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	TransactionId  string          `gorm:"size:100" json:"transaction_id"`
	PaymentDate    *time.Time      `json:"payment_date"`
	TotalGross     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_gross"`
	TotalDiscount  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_discount"`
	TotalTax       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_tax"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	TotalCost      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_cost"`
	TotalProfit    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_profit"`
	Notes          string          `gorm:"type:text" json:"notes"`
	PerformedBy    string          `gorm:"size:100" json:"performed_by"`
	Lines          []*SaleLine     `gorm:"foreignKey:SalesInvoiceId" json:"lines"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleLine snapshots what was sold, at which price and cost.
type SaleLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrganizationId  string          `gorm:"size:64;not null;index" json:"organization_id"`
	SalesInvoiceId  int             `gorm:"not null;index" json:"sales_invoice_id"`
	LineNo          int             `gorm:"not null" json:"line_no"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	ProductName     string          `gorm:"size:255" json:"product_name"`
	ProductType     StockKind       `gorm:"size:20;not null" json:"product_type"`
	BaseUnitId      int             `json:"base_unit_id"`
	SaleUnitId      int             `json:"sale_unit_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	QuantityBase    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_base"`
	BatchId         *int            `gorm:"index" json:"batch_id"`
	SerialNumbers   []string        `gorm:"serializer:json;type:json" json:"serial_numbers"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"gross_amount"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount_amount"`
	NetAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"net_amount"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"tax_rate"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"tax_amount"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"line_total"`
	CostPerBaseUnit decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost_per_base_unit"`
	LineCostTotal   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"line_cost_total"`
	LineProfit      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"line_profit"`
}

func (invoice *SalesInvoice) addLine(line *SaleLine) {
	invoice.Lines = append(invoice.Lines, line)
	invoice.TotalGross = invoice.TotalGross.Add(line.GrossAmount)
	invoice.TotalDiscount = invoice.TotalDiscount.Add(line.DiscountAmount)
	invoice.TotalTax = invoice.TotalTax.Add(line.TaxAmount)
	invoice.TotalAmount = invoice.TotalAmount.Add(line.LineTotal)
	invoice.TotalCost = invoice.TotalCost.Add(line.LineCostTotal)
	invoice.TotalProfit = invoice.TotalProfit.Add(line.LineProfit)
}

type SaleFilter struct {
	FromDate      *time.Time       `form:"from_date" time_format:"2006-01-02"`
	ToDate        *time.Time       `form:"to_date" time_format:"2006-01-02"`
	InvoiceNumber string           `form:"invoice_number"`
	CustomerName  string           `form:"customer_name"`
	ProductId     int              `form:"product_id"`
	MinAmount     *decimal.Decimal `form:"-"`
	MaxAmount     *decimal.Decimal `form:"-"`
	Page          int              `form:"page"`
	PageSize      int              `form:"page_size"`
}

type SalesPage struct {
	Items    []*SalesInvoice `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

const (
	defaultSalesPageSize = 20
	maxSalesPageSize     = 100
)

// ListSales pages invoices newest first. ToDate is inclusive of the whole day.
func ListSales(ctx context.Context, filter *SaleFilter) (*SalesPage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if filter == nil {
		filter = &SaleFilter{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultSalesPageSize
	}
	if pageSize > maxSalesPageSize {
		pageSize = maxSalesPageSize
	}

	q := dbFromContext(ctx).Model(&SalesInvoice{}).Where("organization_id = ?", organizationId)
	if filter.FromDate != nil {
		q = q.Where("invoice_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		q = q.Where("invoice_date < ?", filter.ToDate.AddDate(0, 0, 1))
	}
	if v := strings.TrimSpace(filter.InvoiceNumber); v != "" {
		q = q.Where("invoice_number LIKE ?", "%"+v+"%")
	}
	if v := strings.TrimSpace(filter.CustomerName); v != "" {
		q = q.Where("customer_name LIKE ?", "%"+v+"%")
	}
	if filter.ProductId > 0 {
		q = q.Where("id IN (?)", dbFromContext(ctx).Model(&SaleLine{}).
			Select("sales_invoice_id").
			Where("organization_id = ? AND product_id = ?", organizationId, filter.ProductId))
	}
	if filter.MinAmount != nil {
		q = q.Where("total_amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		q = q.Where("total_amount <= ?", *filter.MaxAmount)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var items []*SalesInvoice
	err := q.Order("invoice_date DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &SalesPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func GetSaleInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	return findSaleInvoice(dbFromContext(ctx), organizationId, id)
}

func findSaleInvoice(db *gorm.DB, organizationId string, id int) (*SalesInvoice, error) {
	var invoice SalesInvoice
	err := db.Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("line_no ASC") }).
		Where("organization_id = ? AND id = ?", organizationId, id).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound.about("SalesInvoice", id)
		}
		return nil, err
	}
	return &invoice, nil
}

// GetNextInvoiceNumber previews the next generated number without reserving it.
func GetNextInvoiceNumber(ctx context.Context) (string, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return "", errors.New("organization id is required")
	}
	n, err := peekSequence(dbFromContext(ctx), organizationId, SequenceInvoice)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(n), nil
}
