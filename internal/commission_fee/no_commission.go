package commission_fee

// NoCommission is used when the trading settings carry a zero commission rate.
// Fills priced through it move the balance by exactly quantity*price.
type NoCommission struct{}

func NewNoCommission() CommissionFee {
	return NoCommission{}
}

func (NoCommission) Calculate(float64) float64 {
	return 0
}
