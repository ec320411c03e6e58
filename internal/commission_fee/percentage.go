package commission_fee

import "github.com/shopspring/decimal"

// PercentageCommissionFee charges a fixed fraction of the order amount.
type PercentageCommissionFee struct {
	Rate float64
}

func NewPercentageCommissionFee(rate float64) CommissionFee {
	return &PercentageCommissionFee{Rate: rate}
}

func (c *PercentageCommissionFee) Calculate(amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	fee, _ := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(c.Rate)).Float64()

	return fee
}
