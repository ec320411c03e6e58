// Package orchestrator turns trading signals into market orders for every active account.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/events"
	"github.com/rxtech-lab/argo-paper-trading/internal/executor"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/internal/utils"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"go.uber.org/zap"
)

// Skip reasons reported in ExecutionResult and signal_skipped events.
const (
	SkipReasonHold           = "hold"
	SkipReasonDisabled       = "signals_disabled"
	SkipReasonRateLimited    = "rate_limited"
	SkipReasonInvalidSymbol  = "invalid_symbol"
	SkipReasonNoPosition     = "no_position"
	SkipReasonZeroAllocation = "zero_allocation"
)

// AccountSource is the read side of the ledger the orchestrator needs.
type AccountSource interface {
	ListActiveAccounts() []types.Account
	GetPosition(accountID, symbol string) optional.Option[types.Position]
}

// OrderPlacer places market orders.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, req executor.MarketOrderRequest) (types.Order, error)
}

// AccountOutcome is the result of a signal for one account.
type AccountOutcome struct {
	AccountID string       `json:"accountId"`
	Order     *types.Order `json:"order,omitempty"`
	// SkipReason is set when the account was skipped without an order
	SkipReason string `json:"skipReason,omitempty"`
	// Error is set when placing the order failed
	Error string `json:"error,omitempty"`
}

// ExecutionResult summarizes the processing of one signal.
type ExecutionResult struct {
	Signal     types.Signal     `json:"signal"`
	Executed   bool             `json:"executed"`
	SkipReason string           `json:"skipReason,omitempty"`
	Accounts   []AccountOutcome `json:"accounts"`
	Filled     int              `json:"filled"`
	Failed     int              `json:"failed"`
	ExecutedAt time.Time        `json:"executedAt"`
}

// SignalSkipped is the payload of the signal_skipped event.
type SignalSkipped struct {
	Signal types.Signal `json:"signal"`
	Reason string       `json:"reason"`
}

// SignalError is the payload of the signal_error event.
type SignalError struct {
	SignalID  string `json:"signalId"`
	AccountID string `json:"accountId,omitempty"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
}

// ValidationWarning is the payload of the validation_warning event.
type ValidationWarning struct {
	SignalID string `json:"signalId"`
	Symbol   string `json:"symbol"`
	Message  string `json:"message"`
}

// Orchestrator rate-limits, validates and sizes signals and fans them out to accounts.
type Orchestrator struct {
	accounts  AccountSource
	placer    OrderPlacer
	provider  marketdata.Provider
	settings  *config.Holder
	publisher events.Publisher
	logger    *logger.Logger
	limiter   *rateLimiter
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. Trading settings are read from settings on every signal.
func NewOrchestrator(
	accounts AccountSource,
	placer OrderPlacer,
	provider marketdata.Provider,
	settings *config.Holder,
	publisher events.Publisher,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		accounts:  accounts,
		placer:    placer,
		provider:  provider,
		settings:  settings,
		publisher: publisher,
		logger:    log,
		limiter:   newRateLimiter(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ShouldExecute reports whether a signal for the pair may execute at nowMs and, if so, takes the
// pair's token. Tokens refill every 3,600,000 / maxSignalsPerHour milliseconds; a non-positive budget
// disables limiting.
func (o *Orchestrator) ShouldExecute(symbol, timeframe string, nowMs int64) bool {
	interval := minInterval(o.settings.Trading().MaxSignalsPerHour)
	key := rateKey{symbol: strings.ToUpper(symbol), timeframe: timeframe}

	return o.limiter.reserve(key, nowMs, interval)
}

// SizeOrder returns the quantity spending PositionSizeFraction of the balance including commission,
// truncated to six decimals. Zero means the account must be skipped.
func (o *Orchestrator) SizeOrder(account types.Account, referencePrice float64) float64 {
	trading := o.settings.Trading()

	return utils.CalculateOrderQuantityByPercentage(
		account.Balance, referencePrice, trading.CommissionRate, trading.PositionSizeFraction)
}

// ValidateSymbol normalizes the symbol by trimming surrounding whitespace and upper-casing it, then
// checks that it is ASCII letters and digits, ends in the quote currency and is known to market data.
// Lower-case input such as "btcusdt" is accepted. It returns the normalized symbol and its current price.
func (o *Orchestrator) ValidateSymbol(ctx context.Context, symbol string) (string, float64, error) {
	quote := o.settings.Trading().QuoteCurrency
	normalized := strings.ToUpper(strings.TrimSpace(symbol))

	if normalized == "" {
		return "", 0, errors.New(errors.ErrCodeSymbolInvalid, "symbol is empty")
	}

	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", 0, errors.Newf(errors.ErrCodeSymbolInvalid,
				"symbol %q contains characters other than ASCII letters and digits", symbol)
		}
	}

	if len(normalized) <= len(quote) || !strings.HasSuffix(normalized, quote) {
		return "", 0, errors.Newf(errors.ErrCodeSymbolInvalid, "symbol %s is not quoted in %s", normalized, quote)
	}

	price, err := o.provider.GetCurrentPrice(ctx, normalized)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeSymbolNotFound) {
			return "", 0, errors.Wrapf(errors.ErrCodeSymbolInvalid, err, "symbol %s does not exist", normalized)
		}

		return "", 0, err
	}

	return normalized, price, nil
}

// Execute processes one signal. Invalid symbols, HOLD signals and rate-limited signals are skipped
// without an error. Failures of individual accounts are reported in the result and never stop the
// remaining accounts.
func (o *Orchestrator) Execute(ctx context.Context, signal types.Signal) (ExecutionResult, error) {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}

	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = o.now()
	}

	if err := signal.Validate(); err != nil {
		return ExecutionResult{}, err
	}

	result := ExecutionResult{
		Signal:     signal,
		Executed:   false,
		SkipReason: "",
		Accounts:   []AccountOutcome{},
		Filled:     0,
		Failed:     0,
		ExecutedAt: o.now(),
	}

	trading := o.settings.Trading()

	if !trading.SignalsEnabled {
		return o.skip(result, SkipReasonDisabled), nil
	}

	side, ok := signal.OrderSide()
	if !ok {
		return o.skip(result, SkipReasonHold), nil
	}

	symbol, price, err := o.ValidateSymbol(ctx, signal.Symbol)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeSymbolInvalid) {
			o.publisher.Publish(types.NewEvent(types.EventSignalError, SignalError{
				SignalID:  signal.ID,
				AccountID: "",
				Symbol:    signal.Symbol,
				Message:   errors.UserMessage(err),
			}))

			return ExecutionResult{}, err
		}

		o.logger.Warn("Skipping signal with invalid symbol",
			zap.String("signal_id", signal.ID),
			zap.String("symbol", signal.Symbol),
			zap.Error(err),
		)
		o.publisher.Publish(types.NewEvent(types.EventValidationWarning, ValidationWarning{
			SignalID: signal.ID,
			Symbol:   signal.Symbol,
			Message:  errors.UserMessage(err),
		}))

		result.SkipReason = SkipReasonInvalidSymbol

		return result, nil
	}

	signal.Symbol = symbol
	result.Signal = signal

	if signal.ReferencePrice > 0 {
		price = signal.ReferencePrice
	}

	if !o.ShouldExecute(symbol, signal.Timeframe, o.now().UnixMilli()) {
		return o.skip(result, SkipReasonRateLimited), nil
	}

	o.publisher.Publish(types.NewEvent(types.EventSignalGenerated, signal))

	for _, account := range o.accounts.ListActiveAccounts() {
		if ctx.Err() != nil {
			break
		}

		outcome := o.executeForAccount(ctx, signal, account, side, price)
		result.Accounts = append(result.Accounts, outcome)

		switch {
		case outcome.Error != "":
			result.Failed++
		case outcome.Order != nil:
			result.Filled++
		}
	}

	result.Executed = true
	result.ExecutedAt = o.now()

	o.logger.Info("Signal executed",
		zap.String("signal_id", signal.ID),
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Side)),
		zap.Int("accounts", len(result.Accounts)),
		zap.Int("filled", result.Filled),
		zap.Int("failed", result.Failed),
	)
	o.publisher.Publish(types.NewEvent(types.EventSignalExecuted, result))

	return result, nil
}

func (o *Orchestrator) executeForAccount(
	ctx context.Context,
	signal types.Signal,
	account types.Account,
	side types.OrderSide,
	price float64,
) AccountOutcome {
	outcome := AccountOutcome{AccountID: account.ID, Order: nil, SkipReason: "", Error: ""}

	var quantity float64

	if side == types.OrderSideBuy {
		quantity = o.SizeOrder(account, price)
		if quantity <= 0 {
			outcome.SkipReason = SkipReasonZeroAllocation

			return outcome
		}
	} else {
		position, err := o.accounts.GetPosition(account.ID, signal.Symbol).Take()
		if err != nil {
			outcome.SkipReason = SkipReasonNoPosition

			return outcome
		}

		quantity = position.Quantity
	}

	order, err := o.placer.PlaceMarketOrder(ctx, executor.MarketOrderRequest{
		AccountID:      account.ID,
		Symbol:         signal.Symbol,
		Side:           side,
		Quantity:       quantity,
		ReferencePrice: optional.Some(price),
		Reason:         types.OrderReasonSignal,
		SignalID:       signal.ID,
	})
	if err != nil {
		o.logger.Warn("Signal order failed",
			zap.String("signal_id", signal.ID),
			zap.String("account_id", account.ID),
			zap.String("symbol", signal.Symbol),
			zap.Error(err),
		)

		outcome.Error = errors.UserMessage(err)
		o.publisher.Publish(types.NewEvent(types.EventSignalError, SignalError{
			SignalID:  signal.ID,
			AccountID: account.ID,
			Symbol:    signal.Symbol,
			Message:   outcome.Error,
		}))

		return outcome
	}

	outcome.Order = &order

	return outcome
}

func (o *Orchestrator) skip(result ExecutionResult, reason string) ExecutionResult {
	result.SkipReason = reason

	o.logger.Debug("Signal skipped",
		zap.String("signal_id", result.Signal.ID),
		zap.String("symbol", result.Signal.Symbol),
		zap.String("reason", reason),
	)
	o.publisher.Publish(types.NewEvent(types.EventSignalSkipped, SignalSkipped{
		Signal: result.Signal,
		Reason: reason,
	}))

	return result
}

// Run executes signals from the source until ctx is done or the channel is closed.
func (o *Orchestrator) Run(ctx context.Context, signals <-chan types.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case signal, ok := <-signals:
			if !ok {
				o.logger.Info("Signal source closed")

				return
			}

			if _, err := o.Execute(ctx, signal); err != nil {
				o.logger.Error("Failed to execute signal",
					zap.String("signal_id", signal.ID),
					zap.String("symbol", signal.Symbol),
					zap.Error(err),
				)
			}
		}
	}
}
