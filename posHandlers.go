package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/middlewares"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

const idempotencyKeyHeader = "Idempotency-Key"

func createSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSale
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		input.IdempotencyKey = strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
		invoice, err := models.CreateSale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createSaleHandler", input, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

// saleListItem adds the stored customer record to a listed invoice.
type saleListItem struct {
	*models.SalesInvoice
	Customer *models.Customer `json:"customer,omitempty"`
}

func listSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.SaleFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondBindError(c, err)
			return
		}
		var ok bool
		if filter.MinAmount, ok = decimalQuery(c, "min_amount"); !ok {
			return
		}
		if filter.MaxAmount, ok = decimalQuery(c, "max_amount"); !ok {
			return
		}

		ctx := c.Request.Context()
		page, err := models.ListSales(ctx, &filter)
		if err != nil {
			respondError(c, "listSalesHandler", filter, err)
			return
		}

		includeLines := c.Query("include") == "lines"
		customers, err := invoiceCustomers(ctx, page.Items)
		if err != nil {
			respondError(c, "listSalesHandler", filter, err)
			return
		}
		items := make([]*saleListItem, 0, len(page.Items))
		for _, invoice := range page.Items {
			item := &saleListItem{SalesInvoice: invoice}
			if invoice.CustomerId != nil {
				item.Customer = customers[*invoice.CustomerId]
			}
			if includeLines {
				if invoice.Lines, err = middlewares.GetSaleLines(ctx, invoice.ID); err != nil {
					respondError(c, "listSalesHandler", invoice.ID, err)
					return
				}
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{
			"items":     items,
			"total":     page.Total,
			"page":      page.Page,
			"page_size": page.PageSize,
		})
	}
}

// invoiceCustomers loads every referenced customer in one batch.
func invoiceCustomers(ctx context.Context, invoices []*models.SalesInvoice) (map[int]*models.Customer, error) {
	var ids []int
	for _, invoice := range invoices {
		if invoice.CustomerId != nil {
			ids = append(ids, *invoice.CustomerId)
		}
	}
	ids = uniqueIds(ids...)
	if len(ids) == 0 {
		return nil, nil
	}
	customers, errs := middlewares.GetCustomers(ctx, ids)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	byId := make(map[int]*models.Customer, len(ids))
	for i, id := range ids {
		byId[id] = customers[i]
	}
	return byId, nil
}

func decimalQuery(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	d, err := utils.ParseDecimal(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.NewFieldError(name, "must be a number")})
		return nil, false
	}
	return &d, true
}

func getSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		invoice, err := models.GetSaleInvoice(ctx, id)
		if err != nil {
			respondError(c, "getSaleHandler", id, err)
			return
		}
		item := &saleListItem{SalesInvoice: invoice}
		if invoice.CustomerId != nil {
			if item.Customer, err = middlewares.GetCustomer(ctx, *invoice.CustomerId); err != nil {
				respondError(c, "getSaleHandler", id, err)
				return
			}
		}
		c.JSON(http.StatusOK, item)
	}
}

func nextInvoiceNumberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		number, err := models.GetNextInvoiceNumber(c.Request.Context())
		if err != nil {
			respondError(c, "nextInvoiceNumberHandler", nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoice_number": number})
	}
}

func posProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.POSProductFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondBindError(c, err)
			return
		}
		filter.Units = middlewares.UnitLookup()
		products, err := models.SearchPOSProducts(c.Request.Context(), &filter)
		if err != nil {
			respondError(c, "posProductsHandler", filter.Query, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": products})
	}
}

func posCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := models.SearchCustomers(c.Request.Context(), c.Query("q"))
		if err != nil {
			respondError(c, "posCustomersHandler", c.Query("q"), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": customers})
	}
}
