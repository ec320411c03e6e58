package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func validOrder() Order {
	return Order{
		ID:             uuid.New().String(),
		AccountID:      "acc-1",
		Symbol:         "BTCUSDT",
		Side:           OrderSideBuy,
		Type:           OrderTypeMarket,
		Quantity:       0.1,
		RequestedPrice: 50000,
		ExecutionPrice: 50025,
		Amount:         5002.5,
		Commission:     5.0025,
		Status:         OrderStatusFilled,
		Reason:         OrderReasonManual,
		CreatedAt:      time.Now(),
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(o *Order)
		shouldError bool
	}{
		{
			name:        "valid filled market order",
			mutate:      func(_ *Order) {},
			shouldError: false,
		},
		{
			name: "valid pending limit order",
			mutate: func(o *Order) {
				o.Type = OrderTypeLimit
				o.Status = OrderStatusPending
				o.ExecutionPrice = 0
				o.Amount = 0
				o.Commission = 0
			},
			shouldError: false,
		},
		{
			name:        "missing id",
			mutate:      func(o *Order) { o.ID = "" },
			shouldError: true,
		},
		{
			name:        "invalid side",
			mutate:      func(o *Order) { o.Side = "HOLD" },
			shouldError: true,
		},
		{
			name:        "invalid type",
			mutate:      func(o *Order) { o.Type = "STOP" },
			shouldError: true,
		},
		{
			name:        "zero quantity",
			mutate:      func(o *Order) { o.Quantity = 0 },
			shouldError: true,
		},
		{
			name:        "zero requested price",
			mutate:      func(o *Order) { o.RequestedPrice = 0 },
			shouldError: true,
		},
		{
			name:        "negative commission",
			mutate:      func(o *Order) { o.Commission = -1 },
			shouldError: true,
		},
		{
			name:        "unknown status",
			mutate:      func(o *Order) { o.Status = "REJECTED" },
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(&order)

			err := order.Validate()
			if tt.shouldError {
				assert.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidOrder))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderIsTerminal(t *testing.T) {
	order := validOrder()
	assert.True(t, order.IsTerminal())

	order.Status = OrderStatusCancelled
	assert.True(t, order.IsTerminal())

	order.Status = OrderStatusPending
	assert.False(t, order.IsTerminal())
}
