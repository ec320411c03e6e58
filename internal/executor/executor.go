// Package executor validates and executes paper orders against the ledger.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/commission_fee"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/events"
	"github.com/rxtech-lab/argo-paper-trading/internal/ledger"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/internal/storage"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/internal/utils"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MarketOrderRequest asks for an immediate fill at the reference price adjusted by slippage.
type MarketOrderRequest struct {
	AccountID string          `validate:"required"`
	Symbol    string          `validate:"required"`
	Side      types.OrderSide `validate:"required,oneof=BUY SELL"`
	Quantity  float64         `validate:"gt=0"`
	// ReferencePrice is fetched from market data when empty
	ReferencePrice optional.Option[float64]
	Reason         types.OrderReason
	SignalID       string
}

// LimitOrderRequest asks for a resting order at a fixed price.
type LimitOrderRequest struct {
	AccountID  string          `validate:"required"`
	Symbol     string          `validate:"required"`
	Side       types.OrderSide `validate:"required,oneof=BUY SELL"`
	Quantity   float64         `validate:"gt=0"`
	LimitPrice float64         `validate:"gt=0"`
}

// Executor places market and limit orders and cancels pending ones.
type Executor struct {
	ledger    *ledger.Ledger
	gateway   storage.Gateway
	provider  marketdata.Provider
	settings  *config.Holder
	publisher events.Publisher
	logger    *logger.Logger
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// NewExecutor creates an executor. Slippage and commission rates are read from settings on every order.
func NewExecutor(
	ledger *ledger.Ledger,
	gateway storage.Gateway,
	provider marketdata.Provider,
	settings *config.Holder,
	publisher events.Publisher,
	log *logger.Logger,
) *Executor {
	return &Executor{
		ledger:    ledger,
		gateway:   gateway,
		provider:  provider,
		settings:  settings,
		publisher: publisher,
		logger:    log,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// PlaceMarketOrder fills an order immediately and returns the FILLED order.
//
// A SELL larger than the open position is reduced to the position quantity.
func (e *Executor) PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (types.Order, error) {
	if err := e.validate.Struct(req); err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeInvalidOrder, "invalid market order", err)
	}

	symbol := strings.ToUpper(req.Symbol)

	if _, err := e.ledger.GetAccount(req.AccountID); err != nil {
		return types.Order{}, err
	}

	referencePrice, err := e.referencePrice(ctx, symbol, req.ReferencePrice)
	if err != nil {
		return types.Order{}, err
	}

	trading := e.settings.Trading()
	executionPrice := applySlippage(referencePrice, trading.SlippageRate, req.Side)

	unlock := e.ledger.Lock(req.AccountID, symbol)
	defer unlock()

	quantity := utils.RoundToDecimalPrecision(req.Quantity, utils.QuantityPrecision)

	if req.Side == types.OrderSideSell {
		position, err := e.ledger.GetPosition(req.AccountID, symbol).Take()
		if err != nil {
			return types.Order{}, errors.Newf(errors.ErrCodePositionNotFound,
				"no open %s position for account %s", symbol, req.AccountID)
		}

		if quantity > position.Quantity {
			e.logger.Debug("Clamping sell quantity to position",
				zap.String("account_id", req.AccountID),
				zap.String("symbol", symbol),
				zap.Float64("requested", quantity),
				zap.Float64("position", position.Quantity),
			)

			quantity = position.Quantity
		}
	}

	if quantity <= 0 {
		return types.Order{}, errors.Newf(errors.ErrCodeInvalidOrder,
			"order quantity %.8f is too small after rounding to %d decimal places", req.Quantity, utils.QuantityPrecision)
	}

	amount := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(executionPrice)).InexactFloat64()
	commission := commission_fee.NewCommissionFee(trading.CommissionRate).Calculate(amount)

	if req.Side == types.OrderSideBuy {
		if err := e.checkBalance(req.AccountID, amount+commission); err != nil {
			return types.Order{}, err
		}
	}

	now := e.now()
	order := types.Order{
		ID:             e.newID(),
		AccountID:      req.AccountID,
		Symbol:         symbol,
		Side:           req.Side,
		Type:           types.OrderTypeMarket,
		Quantity:       quantity,
		RequestedPrice: referencePrice,
		ExecutionPrice: executionPrice,
		Amount:         amount,
		Commission:     commission,
		Status:         types.OrderStatusFilled,
		Reason:         reasonOrManual(req.Reason),
		SignalID:       req.SignalID,
		CreatedAt:      now,
		FilledAt:       &now,
		CancelledAt:    nil,
	}

	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	if _, err := e.ledger.ApplyFill(ctx, order); err != nil {
		return types.Order{}, err
	}

	e.logger.Info("Market order filled",
		zap.String("order_id", order.ID),
		zap.String("account_id", order.AccountID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.Float64("execution_price", order.ExecutionPrice),
		zap.Float64("commission", order.Commission),
	)

	e.publisher.Publish(types.NewEvent(types.EventOrderFilled, order))

	return order, nil
}

// PlaceLimitOrder records a PENDING order. It has no ledger effect.
func (e *Executor) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (types.Order, error) {
	if err := e.validate.Struct(req); err != nil {
		return types.Order{}, errors.Wrap(errors.ErrCodeInvalidOrder, "invalid limit order", err)
	}

	symbol := strings.ToUpper(req.Symbol)

	if _, err := e.ledger.GetAccount(req.AccountID); err != nil {
		return types.Order{}, err
	}

	quantity := utils.RoundToDecimalPrecision(req.Quantity, utils.QuantityPrecision)
	if quantity <= 0 {
		return types.Order{}, errors.Newf(errors.ErrCodeInvalidOrder,
			"order quantity %.8f is too small after rounding to %d decimal places", req.Quantity, utils.QuantityPrecision)
	}

	if req.Side == types.OrderSideBuy {
		notional := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(req.LimitPrice)).InexactFloat64()
		if err := e.checkBalance(req.AccountID, notional); err != nil {
			return types.Order{}, err
		}
	}

	order := types.Order{
		ID:             e.newID(),
		AccountID:      req.AccountID,
		Symbol:         symbol,
		Side:           req.Side,
		Type:           types.OrderTypeLimit,
		Quantity:       quantity,
		RequestedPrice: req.LimitPrice,
		ExecutionPrice: 0,
		Amount:         0,
		Commission:     0,
		Status:         types.OrderStatusPending,
		Reason:         types.OrderReasonManual,
		SignalID:       "",
		CreatedAt:      e.now(),
		FilledAt:       nil,
		CancelledAt:    nil,
	}

	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	if err := e.gateway.CreateOrder(ctx, order); err != nil {
		return types.Order{}, err
	}

	e.logger.Info("Limit order created",
		zap.String("order_id", order.ID),
		zap.String("account_id", order.AccountID),
		zap.String("symbol", order.Symbol),
		zap.Float64("limit_price", order.RequestedPrice),
	)

	e.publisher.Publish(types.NewEvent(types.EventOrderCreated, order))

	return order, nil
}

// CancelOrder moves a PENDING order to CANCELLED. Only one of several concurrent cancels of the
// same order succeeds; the others fail with ErrCodeInvalidOrderState.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) (types.Order, error) {
	order, err := e.GetOrder(ctx, orderID)
	if err != nil {
		return types.Order{}, err
	}

	if order.Status != types.OrderStatusPending {
		return types.Order{}, errors.Newf(errors.ErrCodeInvalidOrderState,
			"order %s cannot be cancelled in status %s", order.ID, order.Status)
	}

	now := e.now()
	if err := e.gateway.CancelOrder(ctx, order.ID, now); err != nil {
		return types.Order{}, err
	}

	order.Status = types.OrderStatusCancelled
	order.CancelledAt = &now

	e.logger.Info("Order cancelled", zap.String("order_id", order.ID), zap.String("account_id", order.AccountID))
	e.publisher.Publish(types.NewEvent(types.EventOrderCancelled, order))

	return order, nil
}

// GetOrder returns the order or fails with ErrCodeOrderNotFound.
func (e *Executor) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	found, err := e.gateway.GetOrder(ctx, orderID)
	if err != nil {
		return types.Order{}, err
	}

	order, err := found.Take()
	if err != nil {
		return types.Order{}, errors.Newf(errors.ErrCodeOrderNotFound, "order %s not found", orderID)
	}

	return order, nil
}

// ListOrders returns the newest orders first, for one account or all of them.
func (e *Executor) ListOrders(ctx context.Context, accountID string, limit int) ([]types.Order, error) {
	return e.gateway.ListOrders(ctx, accountID, limit)
}

func (e *Executor) referencePrice(ctx context.Context, symbol string, supplied optional.Option[float64]) (float64, error) {
	if price, err := supplied.Take(); err == nil {
		if price <= 0 {
			return 0, errors.New(errors.ErrCodeInvalidOrder, "reference price must be positive")
		}

		return price, nil
	}

	price, err := e.provider.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	if price <= 0 {
		return 0, errors.Newf(errors.ErrCodeUpstreamUnavailable, "no price available for %s", symbol)
	}

	return price, nil
}

func (e *Executor) checkBalance(accountID string, required float64) error {
	account, err := e.ledger.GetAccount(accountID)
	if err != nil {
		return err
	}

	if account.Balance < required {
		return errors.Newf(errors.ErrCodeInsufficientBalance,
			"insufficient balance: need %.8f, have %.8f", required, account.Balance)
	}

	return nil
}

// applySlippage moves the price against the order: up for buys, down for sells.
func applySlippage(price, rate float64, side types.OrderSide) float64 {
	factor := decimal.NewFromInt(1)
	if side == types.OrderSideBuy {
		factor = factor.Add(decimal.NewFromFloat(rate))
	} else {
		factor = factor.Sub(decimal.NewFromFloat(rate))
	}

	return decimal.NewFromFloat(price).Mul(factor).InexactFloat64()
}

func reasonOrManual(reason types.OrderReason) types.OrderReason {
	if reason == "" {
		return types.OrderReasonManual
	}

	return reason
}
