package config

import (
	"sync"
)

// TradingConfigPatch is a partial update of TradingConfig. Nil fields keep their value.
type TradingConfigPatch struct {
	CommissionRate       *float64 `json:"commissionRate,omitempty"`
	SlippageRate         *float64 `json:"slippageRate,omitempty"`
	MaxSignalsPerHour    *int     `json:"maxSignalsPerHour,omitempty"`
	PositionSizeFraction *float64 `json:"positionSizeFraction,omitempty"`
	QuoteCurrency        *string  `json:"quoteCurrency,omitempty"`
	SignalsEnabled       *bool    `json:"signalsEnabled,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TradingConfigPatch) IsEmpty() bool {
	return p.CommissionRate == nil && p.SlippageRate == nil && p.MaxSignalsPerHour == nil &&
		p.PositionSizeFraction == nil && p.QuoteCurrency == nil && p.SignalsEnabled == nil
}

// Holder gives goroutine-safe access to the runtime trading configuration.
type Holder struct {
	mu      sync.RWMutex
	trading TradingConfig
}

// NewHolder creates a Holder seeded with the given trading configuration.
func NewHolder(trading TradingConfig) *Holder {
	return &Holder{
		mu:      sync.RWMutex{},
		trading: trading,
	}
}

// Trading returns a copy of the current trading configuration.
func (h *Holder) Trading() TradingConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.trading
}

// UpdateTrading applies the patch, validates the result and stores it.
// The previous configuration is kept when validation fails.
func (h *Holder) UpdateTrading(patch TradingConfigPatch) (TradingConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.trading
	if patch.CommissionRate != nil {
		next.CommissionRate = *patch.CommissionRate
	}

	if patch.SlippageRate != nil {
		next.SlippageRate = *patch.SlippageRate
	}

	if patch.MaxSignalsPerHour != nil {
		next.MaxSignalsPerHour = *patch.MaxSignalsPerHour
	}

	if patch.PositionSizeFraction != nil {
		next.PositionSizeFraction = *patch.PositionSizeFraction
	}

	if patch.QuoteCurrency != nil {
		next.QuoteCurrency = *patch.QuoteCurrency
	}

	if patch.SignalsEnabled != nil {
		next.SignalsEnabled = *patch.SignalsEnabled
	}

	if err := next.Validate(); err != nil {
		return h.trading, err
	}

	h.trading = next

	return next, nil
}
