// Package ledger owns the paper trading accounts and positions.
//
// All state lives in one in-memory repository owned by the Ledger and persisted through the
// storage gateway. Every mutation is computed on copies, written in one transaction and only
// then swapped into memory, so a failed write never leaves memory ahead of the database.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/events"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/storage"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BootstrapAccount describes an account to create on first use.
type BootstrapAccount struct {
	ID             string
	OwnerID        string
	InitialBalance float64
	Currency       string
	Active         bool
}

// FillResult is the state after a fill.
type FillResult struct {
	Account types.Account
	// Position is the open position after the fill, nil when the fill closed it
	Position *types.Position
	// RealizedDelta is the P&L realized by this fill, zero for buys
	RealizedDelta float64
	// Closed is true when the fill deleted the position
	Closed bool
}

// PositionClosed is the payload of the position_closed event.
type PositionClosed struct {
	Position    types.Position `json:"position"`
	RealizedPnL float64        `json:"realizedPnL"`
	ClosedAt    time.Time      `json:"closedAt"`
}

// Ledger applies fills and valuations to accounts and positions.
type Ledger struct {
	repo *repository
	// symbolLocks serialize check-then-fill sequences per (account, symbol)
	symbolLocks *keyLocks[types.PositionKey]
	// accountLocks serialize balance mutations of one account across symbols
	accountLocks *keyLocks[string]
	gateway      storage.Gateway
	publisher    events.Publisher
	logger       *logger.Logger
	now          func() time.Time
	newID        func() string
}

// NewLedger creates an empty ledger. Call Load to restore persisted state.
func NewLedger(gateway storage.Gateway, publisher events.Publisher, log *logger.Logger) *Ledger {
	return &Ledger{
		repo:         newRepository(),
		symbolLocks:  newKeyLocks[types.PositionKey](),
		accountLocks: newKeyLocks[string](),
		gateway:      gateway,
		publisher:    publisher,
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.New().String() },
	}
}

// Load restores every account and open position from the gateway.
func (l *Ledger) Load(ctx context.Context) error {
	accounts, err := l.gateway.ListAccounts(ctx)
	if err != nil {
		return err
	}

	positions, err := l.gateway.ListPositions(ctx, "")
	if err != nil {
		return err
	}

	for _, account := range accounts {
		l.repo.putAccount(account)
	}

	for _, position := range positions {
		if position.Quantity <= 0 {
			l.logger.Warn("Skipping empty position", zap.String("position_id", position.ID))

			continue
		}

		l.repo.putPosition(position)
	}

	l.logger.Info("Ledger loaded", zap.Int("accounts", len(accounts)), zap.Int("positions", len(positions)))

	return nil
}

// EnsureAccount returns the account with the bootstrap id, creating it when it does not exist.
func (l *Ledger) EnsureAccount(ctx context.Context, bootstrap BootstrapAccount) (types.Account, error) {
	if bootstrap.ID == "" {
		bootstrap.ID = l.newID()
	}

	unlock := l.accountLocks.lock(bootstrap.ID)
	defer unlock()

	if account, ok := l.repo.account(bootstrap.ID); ok {
		return account, nil
	}

	now := l.now()
	account := types.Account{
		ID:             bootstrap.ID,
		OwnerID:        bootstrap.OwnerID,
		Balance:        bootstrap.InitialBalance,
		InitialBalance: bootstrap.InitialBalance,
		Currency:       bootstrap.Currency,
		Equity:         bootstrap.InitialBalance,
		UnrealizedPnL:  0,
		RealizedPnL:    0,
		TotalTrades:    0,
		WinningTrades:  0,
		LosingTrades:   0,
		Active:         bootstrap.Active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := account.Validate(); err != nil {
		return types.Account{}, err
	}

	if err := l.gateway.SaveAccount(ctx, account); err != nil {
		return types.Account{}, err
	}

	l.repo.putAccount(account)
	l.logger.Info("Account created",
		zap.String("account_id", account.ID),
		zap.String("owner_id", account.OwnerID),
		zap.Float64("balance", account.Balance),
	)

	return account, nil
}

// GetAccount returns the account or fails with ErrCodeAccountNotFound.
func (l *Ledger) GetAccount(id string) (types.Account, error) {
	account, ok := l.repo.account(id)
	if !ok {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", id)
	}

	return account, nil
}

// ListAccounts returns every account ordered by creation time.
func (l *Ledger) ListAccounts() []types.Account {
	return l.repo.listAccounts(nil)
}

// ListActiveAccounts returns the accounts that receive signal orders.
func (l *Ledger) ListActiveAccounts() []types.Account {
	return l.repo.listAccounts(func(account types.Account) bool {
		return account.Active
	})
}

// ListPositions returns the open positions of an account, or of every account for an empty id.
func (l *Ledger) ListPositions(accountID string) []types.Position {
	return l.repo.listPositions(accountID)
}

// GetPosition returns the open position of an account in a symbol.
func (l *Ledger) GetPosition(accountID, symbol string) optional.Option[types.Position] {
	return l.repo.position(types.PositionKey{AccountID: accountID, Symbol: strings.ToUpper(symbol)})
}

// Lock serializes operations on one (account, symbol) pair. The returned function releases it.
// Callers hold the lock across their pre-checks and ApplyFill.
func (l *Ledger) Lock(accountID, symbol string) func() {
	return l.symbolLocks.lock(types.PositionKey{AccountID: accountID, Symbol: strings.ToUpper(symbol)})
}

// ApplyFill applies a FILLED order to its account and position and persists the order with the
// result in one transaction.
//
// BUY debits quantity*price+commission and grows the position at the weighted average price.
// SELL credits quantity*price-commission, realizes (price-avg) on the sold quantity and counts a
// trade; selling at least the open quantity closes the position.
func (l *Ledger) ApplyFill(ctx context.Context, order types.Order) (FillResult, error) {
	if err := validateFill(order); err != nil {
		return FillResult{}, err
	}

	// positions are keyed by the upper-case symbol
	order.Symbol = strings.ToUpper(order.Symbol)

	unlock := l.accountLocks.lock(order.AccountID)
	defer unlock()

	account, ok := l.repo.account(order.AccountID)
	if !ok {
		return FillResult{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", order.AccountID)
	}

	key := types.PositionKey{AccountID: order.AccountID, Symbol: order.Symbol}
	existing := l.repo.position(key)
	now := l.now()

	var (
		result FillResult
		err    error
	)

	switch order.Side {
	case types.OrderSideBuy:
		result, err = l.computeBuy(account, existing, order, now)
	case types.OrderSideSell:
		result, err = l.computeSell(account, existing, order, now)
	default:
		return FillResult{}, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side %s", order.Side)
	}

	if err != nil {
		return FillResult{}, err
	}

	// unrealized P&L of the other symbols is unchanged
	unrealized := l.otherUnrealized(order.AccountID, order.Symbol)
	if result.Position != nil {
		unrealized += result.Position.UnrealizedPnL
	}

	result.Account.UnrealizedPnL = unrealized
	result.Account.RecomputeEquity()
	result.Account.UpdatedAt = now

	commit := storage.FillCommit{
		Account:          result.Account,
		Order:            order,
		Position:         result.Position,
		ClosedPositionID: "",
	}

	closedKey := optional.None[types.PositionKey]()
	if result.Closed {
		commit.ClosedPositionID = existing.Unwrap().ID
		closedKey = optional.Some(key)
	}

	if err := l.gateway.CommitFill(ctx, commit); err != nil {
		l.logger.Error("Failed to commit fill",
			zap.String("account_id", order.AccountID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)

		return FillResult{}, errors.Wrap(errors.ErrCodeStorageFailed, "failed to persist fill", err)
	}

	l.repo.applyFill(result.Account, result.Position, closedKey)

	l.logger.Debug("Fill applied",
		zap.String("account_id", order.AccountID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.Float64("price", order.ExecutionPrice),
		zap.Float64("balance", result.Account.Balance),
		zap.Float64("realized", result.RealizedDelta),
	)

	l.publisher.Publish(types.NewEvent(types.EventAccountUpdated, result.Account))

	if result.Closed {
		closed := existing.Unwrap()
		closed.Quantity = 0
		closed.CurrentPrice = order.ExecutionPrice
		closed.UnrealizedPnL = 0
		closed.UpdatedAt = now

		l.publisher.Publish(types.NewEvent(types.EventPositionClosed, PositionClosed{
			Position:    closed,
			RealizedPnL: result.RealizedDelta,
			ClosedAt:    now,
		}))
	} else if result.Position != nil {
		l.publisher.Publish(types.NewEvent(types.EventPositionUpdated, *result.Position))
	}

	return result, nil
}

func (l *Ledger) computeBuy(account types.Account, existing optional.Option[types.Position], order types.Order, now time.Time) (FillResult, error) {
	quantity := decimal.NewFromFloat(order.Quantity)
	price := decimal.NewFromFloat(order.ExecutionPrice)
	cost := quantity.Mul(price).Add(decimal.NewFromFloat(order.Commission))
	balance := decimal.NewFromFloat(account.Balance).Sub(cost)

	if balance.IsNegative() {
		return FillResult{}, errors.Newf(errors.ErrCodeInsufficientBalance,
			"insufficient balance: need %s, have %s", cost.StringFixed(8), decimal.NewFromFloat(account.Balance).StringFixed(8))
	}

	account.Balance = balance.InexactFloat64()

	position := types.Position{
		ID:            l.newID(),
		AccountID:     order.AccountID,
		Symbol:        order.Symbol,
		Side:          types.PositionSideLong,
		Quantity:      order.Quantity,
		AvgPrice:      order.ExecutionPrice,
		CurrentPrice:  order.ExecutionPrice,
		UnrealizedPnL: 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if current, err := existing.Take(); err == nil {
		oldQuantity := decimal.NewFromFloat(current.Quantity)
		newQuantity := oldQuantity.Add(quantity)
		avg := oldQuantity.Mul(decimal.NewFromFloat(current.AvgPrice)).Add(quantity.Mul(price)).Div(newQuantity)

		position = current
		position.Quantity = newQuantity.InexactFloat64()
		position.AvgPrice = avg.InexactFloat64()
		position.CurrentPrice = order.ExecutionPrice
		position.UpdatedAt = now
	}

	position.UnrealizedPnL = unrealizedPnL(position)

	return FillResult{
		Account:       account,
		Position:      &position,
		RealizedDelta: 0,
		Closed:        false,
	}, nil
}

func (l *Ledger) computeSell(account types.Account, existing optional.Option[types.Position], order types.Order, now time.Time) (FillResult, error) {
	current, err := existing.Take()
	if err != nil {
		return FillResult{}, errors.Newf(errors.ErrCodePositionNotFound, "no open %s position for account %s", order.Symbol, order.AccountID)
	}

	sellQuantity := decimal.NewFromFloat(order.Quantity)
	openQuantity := decimal.NewFromFloat(current.Quantity)
	price := decimal.NewFromFloat(order.ExecutionPrice)
	avg := decimal.NewFromFloat(current.AvgPrice)

	proceeds := sellQuantity.Mul(price).Sub(decimal.NewFromFloat(order.Commission))
	account.Balance = decimal.NewFromFloat(account.Balance).Add(proceeds).InexactFloat64()

	closed := sellQuantity.GreaterThanOrEqual(openQuantity)

	realizedQuantity := sellQuantity
	if closed {
		realizedQuantity = openQuantity
	}

	realized := price.Sub(avg).Mul(realizedQuantity)
	account.RealizedPnL = decimal.NewFromFloat(account.RealizedPnL).Add(realized).InexactFloat64()

	// partial closes count as trades; a zero result counts as a loss so the counters stay balanced
	account.TotalTrades++
	if realized.IsPositive() {
		account.WinningTrades++
	} else {
		account.LosingTrades++
	}

	result := FillResult{
		Account:       account,
		Position:      nil,
		RealizedDelta: realized.InexactFloat64(),
		Closed:        closed,
	}

	if !closed {
		position := current
		position.Quantity = openQuantity.Sub(sellQuantity).InexactFloat64()
		position.CurrentPrice = order.ExecutionPrice
		position.UnrealizedPnL = unrealizedPnL(position)
		position.UpdatedAt = now
		result.Position = &position
	}

	return result, nil
}

// otherUnrealized sums the unrealized P&L of the account's positions in other symbols.
func (l *Ledger) otherUnrealized(accountID, symbol string) float64 {
	total := 0.0

	for _, position := range l.repo.listPositions(accountID) {
		if position.Symbol != symbol {
			total += position.UnrealizedPnL
		}
	}

	return total
}

func validateFill(order types.Order) error {
	if order.Status != types.OrderStatusFilled {
		return errors.Newf(errors.ErrCodeInvalidOrderState, "order %s is %s, not FILLED", order.ID, order.Status)
	}

	if order.Quantity <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "fill quantity must be positive")
	}

	if order.ExecutionPrice <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "fill price must be positive")
	}

	if order.Commission < 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "commission must not be negative")
	}

	return nil
}

// unrealizedPnL returns (currentPrice - avgPrice) * quantity.
func unrealizedPnL(position types.Position) float64 {
	return decimal.NewFromFloat(position.CurrentPrice).
		Sub(decimal.NewFromFloat(position.AvgPrice)).
		Mul(decimal.NewFromFloat(position.Quantity)).
		InexactFloat64()
}
