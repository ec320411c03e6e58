package marketdata

import (
	"fmt"
)

// SMA returns the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}

	if len(closes) < period {
		return 0, fmt.Errorf("insufficient data for SMA(%d): have %d closes", period, len(closes))
	}

	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}

	return sum / float64(period), nil
}

// EMA returns the exponential moving average seeded with the SMA of the first period closes.
// Multiplier = 2 / (period + 1), matching pandas ewm(span=period, adjust=False).
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}

	if len(closes) < period {
		return 0, fmt.Errorf("insufficient data for EMA(%d): have %d closes", period, len(closes))
	}

	ema := 0.0
	for i := 0; i < period; i++ {
		ema += closes[i]
	}

	ema /= float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = (closes[i] * alpha) + (ema * (1 - alpha))
	}

	return ema, nil
}

// RSI returns the relative strength index using Wilder's smoothing.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}

	if len(closes) < period+1 {
		return 0, fmt.Errorf("insufficient data for RSI(%d): have %d closes", period, len(closes))
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := 0.0
	avgLoss := 0.0

	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs)), nil
}
