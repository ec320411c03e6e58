package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

type OrderReason string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	// OrderReasonManual marks orders placed directly by a client
	OrderReasonManual OrderReason = "manual"
	// OrderReasonSignal marks orders generated by the signal orchestrator
	OrderReasonSignal OrderReason = "signal"
)

// Order is a single execution request and its record.
// States: PENDING -> FILLED or PENDING -> CANCELLED. Market orders are created FILLED.
type Order struct {
	ID        string    `json:"id" yaml:"id" validate:"required"`
	AccountID string    `json:"accountId" yaml:"account_id" validate:"required"`
	Symbol    string    `json:"symbol" yaml:"symbol" validate:"required"`
	Side      OrderSide `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	Type      OrderType `json:"type" yaml:"type" validate:"required,oneof=MARKET LIMIT"`
	Quantity  float64   `json:"quantity" yaml:"quantity" validate:"gt=0"`
	// RequestedPrice is the reference price for market orders or the limit price for limit orders
	RequestedPrice float64 `json:"requestedPrice" yaml:"requested_price" validate:"gt=0"`
	// ExecutionPrice is the slippage-adjusted fill price. Zero until filled.
	ExecutionPrice float64 `json:"executionPrice" yaml:"execution_price" validate:"gte=0"`
	// Amount is Quantity * ExecutionPrice
	Amount      float64     `json:"amount" yaml:"amount" validate:"gte=0"`
	Commission  float64     `json:"commission" yaml:"commission" validate:"gte=0"`
	Status      OrderStatus `json:"status" yaml:"status" validate:"required,oneof=PENDING FILLED CANCELLED"`
	Reason      OrderReason `json:"reason" yaml:"reason"`
	SignalID    string      `json:"signalId,omitempty" yaml:"signal_id"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"created_at"`
	FilledAt    *time.Time  `json:"filledAt,omitempty" yaml:"filled_at"`
	CancelledAt *time.Time  `json:"cancelledAt,omitempty" yaml:"cancelled_at"`
}

// IsTerminal reports whether the order can no longer change state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}
