package utils

import (
	"github.com/shopspring/decimal"
)

// QuantityPrecision is the number of decimal places order quantities are truncated to.
const QuantityPrecision = 6

// RoundToDecimalPrecision truncates the quantity towards zero at the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	truncated, _ := decimal.NewFromFloat(quantity).Truncate(int32(decimalPrecision)).Float64()

	return truncated
}

// CalculateMaxQuantity calculates the largest quantity whose cost including a percentage
// commission fits in the allocation: allocation / (price * (1 + commissionRate)).
func CalculateMaxQuantity(allocation float64, price float64, commissionRate float64) float64 {
	if price <= 0 || allocation <= 0 {
		return 0
	}

	unitCost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(commissionRate)))
	quantity, _ := decimal.NewFromFloat(allocation).Div(unitCost).Float64()

	return RoundToDecimalPrecision(quantity, QuantityPrecision)
}

// CalculateOrderQuantityByPercentage calculates the quantity of an order spending the given fraction of the balance.
func CalculateOrderQuantityByPercentage(balance float64, price float64, commissionRate float64, percentage float64) float64 {
	allocation, _ := decimal.NewFromFloat(balance).Mul(decimal.NewFromFloat(percentage)).Float64()

	return CalculateMaxQuantity(allocation, price, commissionRate)
}
