package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Column headers of a stock receipt workbook. Only product_id is mandatory.
const (
	importColProductId       = "product_id"
	importColUnitId          = "unit_id"
	importColQuantity        = "quantity"
	importColUnitCost        = "unit_cost"
	importColUnitPrice       = "unit_price"
	importColTaxRate         = "tax_rate"
	importColReferenceNumber = "reference_number"
	importColLocation        = "location"
	importColBatchCode       = "batch_code"
	importColExpiryDate      = "expiry_date"
	importColSerialNumber    = "serial_number"
)

const importDateLayout = "2006-01-02"

type StockReceiptImportError struct {
	Row       int    `json:"row"`
	ProductId int    `json:"product_id,omitempty"`
	Reason    string `json:"reason"`
}

type StockReceiptImportResult struct {
	Receipts []*StockReceiptResult      `json:"receipts"`
	Errors   []*StockReceiptImportError `json:"errors"`
}

type importReceipt struct {
	firstRow int
	receipt  *NewStockReceipt
}

// ParseStockReceiptWorkbook reads the first sheet. Rows sharing product, unit and
// reference number form one receipt: batch_code rows add lots, serial_number rows
// add serials, and other rows add to the flat quantity.
func ParseStockReceiptWorkbook(r io.Reader) ([]*NewStockReceipt, []int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return nil, nil, validationMessage("file", "workbook has no data rows")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols[importColProductId]; !ok {
		return nil, nil, validationMessage("file", "missing product_id column")
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var order []string
	grouped := make(map[string]*importReceipt)
	for idx, row := range rows[1:] {
		rowNo := idx + 2
		if strings.Join(row, "") == "" {
			continue
		}
		productId, err := strconv.Atoi(cell(row, importColProductId))
		if err != nil || productId <= 0 {
			return nil, nil, validationMessage("product_id", fmt.Sprintf("invalid product_id in row %d", rowNo))
		}
		unitId := 0
		if v := cell(row, importColUnitId); v != "" {
			if unitId, err = strconv.Atoi(v); err != nil {
				return nil, nil, validationMessage("unit_id", fmt.Sprintf("invalid unit_id in row %d", rowNo))
			}
		}
		reference := cell(row, importColReferenceNumber)
		key := fmt.Sprintf("%d|%d|%s", productId, unitId, reference)

		group, ok := grouped[key]
		if !ok {
			group = &importReceipt{firstRow: rowNo, receipt: &NewStockReceipt{
				ProductId:       productId,
				UnitId:          unitId,
				ReferenceNumber: reference,
				Location:        cell(row, importColLocation),
			}}
			grouped[key] = group
			order = append(order, key)
		}
		if err := group.addRow(rowNo, func(name string) string { return cell(row, name) }); err != nil {
			return nil, nil, err
		}
	}

	receipts := make([]*NewStockReceipt, 0, len(order))
	firstRows := make([]int, 0, len(order))
	for _, key := range order {
		receipts = append(receipts, grouped[key].receipt)
		firstRows = append(firstRows, grouped[key].firstRow)
	}
	return receipts, firstRows, nil
}

func (g *importReceipt) addRow(rowNo int, cell func(string) string) error {
	optional := func(name string) (*decimal.Decimal, error) {
		v := cell(name)
		if v == "" {
			return nil, nil
		}
		d, err := utils.ParseDecimal(v)
		if err != nil {
			return nil, validationMessage(name, fmt.Sprintf("could not parse %s in row %d", name, rowNo))
		}
		return &d, nil
	}
	quantity, err := optional(importColQuantity)
	if err != nil {
		return err
	}
	unitCost, err := optional(importColUnitCost)
	if err != nil {
		return err
	}
	unitPrice, err := optional(importColUnitPrice)
	if err != nil {
		return err
	}
	taxRate, err := optional(importColTaxRate)
	if err != nil {
		return err
	}

	r := g.receipt
	if unitPrice != nil {
		r.UnitPrice = unitPrice
	}
	if taxRate != nil {
		r.TaxRate = taxRate
	}

	switch {
	case cell(importColSerialNumber) != "":
		r.Serials = append(r.Serials, &NewSerialUnit{
			SerialNumber: cell(importColSerialNumber),
			CostPrice:    unitCost,
			SellPrice:    unitPrice,
		})
		if unitCost != nil && r.UnitCost.IsZero() {
			r.UnitCost = *unitCost
		}
	case cell(importColBatchCode) != "":
		if quantity == nil {
			return validationMessage(importColQuantity, fmt.Sprintf("missing quantity for batch in row %d", rowNo))
		}
		lot := &NewBatchLot{
			BatchCode:    cell(importColBatchCode),
			Quantity:     *quantity,
			UnitCost:     unitCost,
			SellingPrice: unitPrice,
			TaxRate:      taxRate,
		}
		if v := cell(importColExpiryDate); v != "" {
			expiry, err := time.Parse(importDateLayout, v)
			if err != nil {
				return validationMessage(importColExpiryDate, fmt.Sprintf("could not parse expiry_date in row %d", rowNo))
			}
			lot.ExpiryDate = &expiry
		}
		r.Batches = append(r.Batches, lot)
		if unitCost != nil && r.UnitCost.IsZero() {
			r.UnitCost = *unitCost
		}
	default:
		if quantity == nil {
			return validationMessage(importColQuantity, fmt.Sprintf("missing quantity in row %d", rowNo))
		}
		r.Quantity = r.Quantity.Add(*quantity)
		if unitCost != nil {
			r.UnitCost = *unitCost
		}
	}
	return nil
}

// ImportStockReceipts books each parsed receipt in its own transaction; failed
// receipts are reported by the first row they came from.
func ImportStockReceipts(ctx context.Context, r io.Reader) (*StockReceiptImportResult, error) {
	receipts, firstRows, err := ParseStockReceiptWorkbook(r)
	if err != nil {
		return nil, err
	}
	result := &StockReceiptImportResult{}
	for i, input := range receipts {
		received, err := ReceiveStock(ctx, input)
		if err != nil {
			var de *DomainError
			if !errors.As(err, &de) {
				return result, err
			}
			result.Errors = append(result.Errors, &StockReceiptImportError{
				Row:       firstRows[i],
				ProductId: input.ProductId,
				Reason:    err.Error(),
			})
			continue
		}
		result.Receipts = append(result.Receipts, received)
	}
	return result, nil
}
