package models

import (
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WeightedAverageCost blends the current average with incoming stock at unitCost.
// A non-positive total quantity yields zero.
func WeightedAverageCost(existingQty, existingAvg, incomingQty, incomingUnitCost decimal.Decimal) decimal.Decimal {
	return weightedAverageOfValue(existingQty, existingAvg, incomingQty, incomingQty.Mul(incomingUnitCost))
}

// weightedAverageOfValue takes the incoming stock as a total value, so lots and
// serials with different costs can be received in one step.
func weightedAverageOfValue(existingQty, existingAvg, incomingQty, incomingValue decimal.Decimal) decimal.Decimal {
	totalQty := existingQty.Add(incomingQty)
	if !totalQty.IsPositive() {
		return decimal.Zero
	}
	return utils.RoundCost(existingQty.Mul(existingAvg).Add(incomingValue).Div(totalQty))
}

// applyInbound locks the product, recomputes the average from its current
// values, and writes quantity and average in one statement.
func applyInbound(tx *gorm.DB, organizationId string, productId int, qty, value decimal.Decimal) (*Product, error) {
	product, err := lockProduct(tx, organizationId, productId)
	if err != nil {
		return nil, err
	}
	newAvg := weightedAverageOfValue(product.TotalQuantity, product.AvgCostPrice, qty, value)
	newQty := product.TotalQuantity.Add(qty)
	if err := tx.Model(&Product{}).
		Where("organization_id = ? AND id = ?", organizationId, productId).
		Updates(map[string]interface{}{
			"total_quantity": newQty,
			"avg_cost_price": newAvg,
		}).Error; err != nil {
		return nil, err
	}
	product.TotalQuantity = newQty
	product.AvgCostPrice = newAvg
	return product, nil
}

// applyOutbound only reduces quantity; cost basis moves on acquisitions alone.
func applyOutbound(tx *gorm.DB, organizationId string, productId int, qty decimal.Decimal) error {
	return tx.Model(&Product{}).
		Where("organization_id = ? AND id = ?", organizationId, productId).
		Update("total_quantity", gorm.Expr("total_quantity - ?", qty)).Error
}
