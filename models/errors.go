package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/retail_backend/utils"
)

type ErrorCode string

const (
	CodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	CodeProductNotFound     ErrorCode = "PRODUCT_NOT_FOUND"
	CodeBatchNotFound       ErrorCode = "BATCH_NOT_FOUND"
	CodeUnitNotFound        ErrorCode = "UNIT_NOT_FOUND"
	CodeCustomerNotFound    ErrorCode = "CUSTOMER_NOT_FOUND"
	CodeInvoiceNotFound     ErrorCode = "INVOICE_NOT_FOUND"
	CodeInsufficientStock   ErrorCode = "INSUFFICIENT_STOCK"
	CodeSerialUnavailable   ErrorCode = "SERIAL_UNAVAILABLE"
	CodeSerialCountMismatch ErrorCode = "SERIAL_COUNT_MISMATCH"
	CodeIncompatibleUnits   ErrorCode = "INCOMPATIBLE_UNITS"
	CodeInvalidUnitConfig   ErrorCode = "INVALID_UNIT_CONFIG"
	CodeInvalidQuantity     ErrorCode = "INVALID_QUANTITY"
	CodeInvalidStockConfig  ErrorCode = "INVALID_STOCK_CONFIG"
	CodeDuplicateSerial     ErrorCode = "DUPLICATE_SERIAL"
	CodeDuplicateInvoice    ErrorCode = "DUPLICATE_INVOICE"
	CodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	CodeLedgerImmutable     ErrorCode = "LEDGER_IMMUTABLE"
)

// DomainError is a business-rule failure. Two DomainErrors match under errors.Is
// when their codes are equal, so the Err* sentinels below work as targets.
type DomainError struct {
	Code     ErrorCode         `json:"code"`
	Message  string            `json:"message"`
	Entity   string            `json:"entity,omitempty"`
	EntityId any               `json:"entity_id,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Entity != "" && e.EntityId != nil {
		return fmt.Sprintf("%s: %s %v", e.Message, e.Entity, e.EntityId)
	}
	return e.Message
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// about returns a copy of a sentinel naming the offending entity.
func (e *DomainError) about(entity string, id any) *DomainError {
	c := *e
	c.Entity = entity
	c.EntityId = id
	return &c
}

func (e *DomainError) withMessage(format string, args ...any) *DomainError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrValidationFailed    = &DomainError{Code: CodeValidationFailed, Message: "validation failed"}
	ErrProductNotFound     = &DomainError{Code: CodeProductNotFound, Message: "product not found"}
	ErrBatchNotFound       = &DomainError{Code: CodeBatchNotFound, Message: "batch not found"}
	ErrInvalidUnit         = &DomainError{Code: CodeUnitNotFound, Message: "unit not found"}
	ErrCustomerNotFound    = &DomainError{Code: CodeCustomerNotFound, Message: "customer not found"}
	ErrInvoiceNotFound     = &DomainError{Code: CodeInvoiceNotFound, Message: "invoice not found"}
	ErrInsufficientStock   = &DomainError{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrSerialUnavailable   = &DomainError{Code: CodeSerialUnavailable, Message: "serial number unavailable"}
	ErrSerialCountMismatch = &DomainError{Code: CodeSerialCountMismatch, Message: "serial numbers do not match quantity"}
	ErrIncompatibleUnits   = &DomainError{Code: CodeIncompatibleUnits, Message: "incompatible units"}
	ErrInvalidUnitConfig   = &DomainError{Code: CodeInvalidUnitConfig, Message: "product has no base unit"}
	ErrInvalidQuantity     = &DomainError{Code: CodeInvalidQuantity, Message: "quantity must be greater than zero"}
	ErrInvalidStockConfig  = &DomainError{Code: CodeInvalidStockConfig, Message: "product cannot track both batches and serials"}
	ErrDuplicateSerial     = &DomainError{Code: CodeDuplicateSerial, Message: "serial number already exists"}
	ErrDuplicateInvoice    = &DomainError{Code: CodeDuplicateInvoice, Message: "invoice number already exists"}
	ErrConcurrencyConflict = &DomainError{Code: CodeConcurrencyConflict, Message: "concurrent update conflict, retry the request"}
	ErrLedgerImmutable     = &DomainError{Code: CodeLedgerImmutable, Message: "inventory ledger entries cannot be changed"}
)

// NewValidationError wraps validator output (or any bad-input error) as VALIDATION_FAILED.
func NewValidationError(err error) *DomainError {
	c := *ErrValidationFailed
	c.Fields = utils.ProcessValidationErrors(err)
	return &c
}

// NewFieldError reports a single bad field.
func NewFieldError(field string, message string) *DomainError {
	return validationMessage(field, message)
}

func validationMessage(field string, message string) *DomainError {
	c := *ErrValidationFailed
	c.Message = message
	c.Fields = map[string]string{field: message}
	return &c
}

// SaleLineError aborts a sale and names the line that failed.
type SaleLineError struct {
	Line      int
	ProductId int
	State     SaleLineState
	Err       error
}

func (e *SaleLineError) Error() string {
	return fmt.Sprintf("line %d (product %d) failed at %s: %v", e.Line, e.ProductId, e.State, e.Err)
}

func (e *SaleLineError) Unwrap() error { return e.Err }

func (e *SaleLineError) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"line":       e.Line,
		"product_id": e.ProductId,
		"state":      e.State,
		"reason":     e.Err.Error(),
	}
	var de *DomainError
	if errors.As(e.Err, &de) {
		out["code"] = de.Code
		if de.Entity != "" {
			out["entity"] = de.Entity
			out["entity_id"] = de.EntityId
		}
	}
	return json.Marshal(out)
}

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// classifyDBError maps MySQL conflicts onto domain errors.
// duplicates maps a unique index name to the error reported for it.
func classifyDBError(err error, duplicates map[string]*DomainError) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case mysqlErrDuplicateEntry:
		for index, de := range duplicates {
			if strings.Contains(myErr.Message, index) {
				return de
			}
		}
		return err
	case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
		return ErrConcurrencyConflict
	}
	return err
}

// classifyLockError reports a lock that could not be taken as a retryable conflict.
// Cancellation is passed through untouched.
func classifyLockError(err error, entity string, id any) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ErrConcurrencyConflict.about(entity, id)
}

func isDuplicateIndex(err error, index string) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry && strings.Contains(myErr.Message, index)
}
