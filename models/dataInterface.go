package models

import (
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetDefault(id int) Data {
	return Product{
		ID:            id,
		Name:          "",
		TotalQuantity: decimal.Zero,
		AvgCostPrice:  decimal.Zero,
		SellPrice:     decimal.Zero,
		TaxRate:       decimal.Zero,
		IsActive:      utils.NewFalse(),
	}
}

func (u MeasuringUnit) GetId() int {
	return u.ID
}

func (u MeasuringUnit) GetDefault(id int) Data {
	return MeasuringUnit{
		ID:               id,
		MultiplierToBase: decimal.Zero,
		IsBase:           utils.NewFalse(),
	}
}

func (c Customer) GetId() int {
	return c.ID
}

func (c Customer) GetDefault(id int) Data {
	return Customer{
		ID:   id,
		Name: WalkInCustomerName,
	}
}

// each reference id has many results
type RelatedData interface {
	GetReferenceId() int
}

func (l SaleLine) GetReferenceId() int {
	return l.SalesInvoiceId
}
