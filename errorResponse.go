package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
)

var domainErrorStatus = map[models.ErrorCode]int{
	models.CodeValidationFailed:    http.StatusBadRequest,
	models.CodeProductNotFound:     http.StatusNotFound,
	models.CodeBatchNotFound:       http.StatusNotFound,
	models.CodeUnitNotFound:        http.StatusNotFound,
	models.CodeCustomerNotFound:    http.StatusNotFound,
	models.CodeInvoiceNotFound:     http.StatusNotFound,
	models.CodeInsufficientStock:   http.StatusConflict,
	models.CodeSerialUnavailable:   http.StatusConflict,
	models.CodeDuplicateSerial:     http.StatusConflict,
	models.CodeDuplicateInvoice:    http.StatusConflict,
	models.CodeConcurrencyConflict: http.StatusConflict,
	models.CodeSerialCountMismatch: http.StatusUnprocessableEntity,
	models.CodeIncompatibleUnits:   http.StatusUnprocessableEntity,
	models.CodeInvalidUnitConfig:   http.StatusUnprocessableEntity,
	models.CodeInvalidQuantity:     http.StatusUnprocessableEntity,
	models.CodeInvalidStockConfig:  http.StatusUnprocessableEntity,
	models.CodeLedgerImmutable:     http.StatusInternalServerError,
}

func errorStatus(err error) int {
	var de *models.DomainError
	if errors.As(err, &de) {
		if status, ok := domainErrorStatus[de.Code]; ok {
			return status
		}
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError writes the error body. Infrastructure failures get a generic message
// and are logged; domain errors are returned as they are.
func respondError(c *gin.Context, funcName string, data any, err error) {
	status := errorStatus(err)

	var lineErr *models.SaleLineError
	if errors.As(err, &lineErr) {
		var de *models.DomainError
		if errors.As(lineErr.Err, &de) {
			c.JSON(status, gin.H{"error": lineErr})
			return
		}
	}

	var de *models.DomainError
	if errors.As(err, &de) && status != http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": de})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(status, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": err.Error()}})
		return
	}

	config.LogError(config.GetLogger(), "server.go", funcName, "request failed", data, err)
	_ = c.Error(err)
	if de != nil {
		c.JSON(status, gin.H{"error": gin.H{"code": de.Code, "message": de.Message}})
		return
	}
	c.JSON(status, gin.H{"error": gin.H{"code": "INTERNAL", "message": "internal server error"}})
}

// respondBindError reports malformed bodies and query strings as VALIDATION_FAILED.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": models.NewValidationError(err)})
}
