package commission_fee

type CommissionFee interface {
	// Calculate the commission fee for an order of the given notional amount, in quote currency
	Calculate(amount float64) float64
}

// NewCommissionFee returns the percentage model for a positive rate and the zero model otherwise.
func NewCommissionFee(rate float64) CommissionFee {
	if rate <= 0 {
		return NewNoCommission()
	}

	return NewPercentageCommissionFee(rate)
}
