package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

type SignalSide string

const (
	// SignalSideBuy tells the orchestrator to open or add to a long position
	SignalSideBuy SignalSide = "BUY"
	// SignalSideSell tells the orchestrator to close the open position
	SignalSideSell SignalSide = "SELL"
	// SignalSideHold is a no-op
	SignalSideHold SignalSide = "HOLD"
)

// Signal is a trading signal produced by the AI signal source. It is consumed once.
// Confidence thresholding has already been applied upstream.
type Signal struct {
	ID        string     `json:"id" yaml:"id"`
	Symbol    string     `json:"symbol" yaml:"symbol" validate:"required"`
	Side      SignalSide `json:"side" yaml:"side" validate:"required,oneof=BUY SELL HOLD"`
	Timeframe string     `json:"timeframe" yaml:"timeframe" validate:"required"`
	// Confidence is the model confidence in [0, 1]
	Confidence float64 `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	// ReferencePrice is the price the signal was generated at. Zero means unknown.
	ReferencePrice float64 `json:"referencePrice" yaml:"reference_price" validate:"gte=0"`
	// Source names the producer of the signal (model name, strategy, client)
	Source string `json:"source,omitempty" yaml:"source"`
	// Reasoning is free-form provenance text
	Reasoning string    `json:"reasoning,omitempty" yaml:"reasoning"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// OrderSide maps the signal direction to an order side. HOLD has no order side.
func (s *Signal) OrderSide() (OrderSide, bool) {
	switch s.Side {
	case SignalSideBuy:
		return OrderSideBuy, true
	case SignalSideSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}

// Validate validates the Signal struct.
func (s *Signal) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	return nil
}
