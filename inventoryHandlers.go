package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/middlewares"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
)

const maxImportFileSize = 10 << 20 // 10 MB

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.NewFieldError(name, "invalid id")})
		return 0, false
	}
	return id, true
}

type receiveFunc func(ctx context.Context, input *models.NewStockReceipt) (*models.StockReceiptResult, error)

func stockReceiptHandler(funcName string, receive receiveFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockReceipt
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := receive(c.Request.Context(), &input)
		if err != nil {
			respondError(c, funcName, input, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func importStockReceiptsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportFileSize)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondBindError(c, err)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondBindError(c, err)
			return
		}
		defer file.Close()

		result, err := models.ImportStockReceipts(c.Request.Context(), file)
		if err != nil {
			respondError(c, "importStockReceiptsHandler", fileHeader.Filename, err)
			return
		}
		status := http.StatusCreated
		if len(result.Receipts) == 0 && len(result.Errors) > 0 {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, result)
	}
}

type inventoryDetailsResponse struct {
	*models.InventoryDetails
	Units []*models.MeasuringUnit `json:"units"`
}

func inventoryDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		details, err := models.GetInventoryDetails(ctx, id)
		if err != nil {
			respondError(c, "inventoryDetailsHandler", id, err)
			return
		}

		p := details.Product
		unitIds := uniqueIds(p.BaseUnitId, p.SaleUnitId, p.PurchaseUnitId)
		units, errs := middlewares.GetMeasuringUnits(ctx, unitIds)
		for _, err := range errs {
			if err != nil {
				respondError(c, "inventoryDetailsHandler", unitIds, err)
				return
			}
		}
		c.JSON(http.StatusOK, inventoryDetailsResponse{InventoryDetails: details, Units: units})
	}
}

func ledgerEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var filter models.LedgerFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondBindError(c, err)
			return
		}
		ctx := c.Request.Context()
		entries, err := models.ListLedgerEntries(ctx, id, &filter)
		if err != nil {
			respondError(c, "ledgerEntriesHandler", id, err)
			return
		}
		product, err := middlewares.GetProduct(ctx, id)
		if err != nil {
			respondError(c, "ledgerEntriesHandler", id, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "items": entries})
	}
}

func reconcileProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		result, err := models.ReconcileProductLedger(c.Request.Context(), id)
		if err != nil {
			respondError(c, "reconcileProductHandler", id, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// uniqueIds drops unset and repeated ids.
func uniqueIds(ids ...int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return utils.UniqueSlice(out)
}
