package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
)

type markClock func() time.Time

// repository is the single in-memory owner of account and position aggregates.
// It stores values, so nothing outside the ledger can mutate state through a shared pointer.
type repository struct {
	mu        sync.RWMutex
	accounts  map[string]types.Account
	positions map[types.PositionKey]types.Position
	// symbols indexes open position symbols per account
	symbols map[string]map[string]struct{}
}

func newRepository() *repository {
	return &repository{
		mu:        sync.RWMutex{},
		accounts:  make(map[string]types.Account),
		positions: make(map[types.PositionKey]types.Position),
		symbols:   make(map[string]map[string]struct{}),
	}
}

func (r *repository) account(id string) (types.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]

	return account, ok
}

func (r *repository) listAccounts(filter func(types.Account) bool) []types.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]types.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		if filter == nil || filter(account) {
			accounts = append(accounts, account)
		}
	}

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}

		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	return accounts
}

func (r *repository) position(key types.PositionKey) optional.Option[types.Position] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	position, ok := r.positions[key]
	if !ok {
		return optional.None[types.Position]()
	}

	return optional.Some(position)
}

// listPositions returns the positions of one account, or every position for an empty id,
// sorted by account and symbol.
func (r *repository) listPositions(accountID string) []types.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listPositionsLocked(accountID)
}

func (r *repository) listPositionsLocked(accountID string) []types.Position {
	positions := []types.Position{}

	if accountID != "" {
		for symbol := range r.symbols[accountID] {
			positions = append(positions, r.positions[types.PositionKey{AccountID: accountID, Symbol: symbol}])
		}
	} else {
		for _, position := range r.positions {
			positions = append(positions, position)
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].AccountID == positions[j].AccountID {
			return positions[i].Symbol < positions[j].Symbol
		}

		return positions[i].AccountID < positions[j].AccountID
	})

	return positions
}

func (r *repository) putAccount(account types.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts[account.ID] = account
}

// applyFill swaps in the committed result of a fill.
func (r *repository) applyFill(account types.Account, position *types.Position, closed optional.Option[types.PositionKey]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts[account.ID] = account

	if position != nil {
		r.putPositionLocked(*position)
	}

	if key, err := closed.Take(); err == nil {
		r.deletePositionLocked(key)
	}
}

func (r *repository) putPosition(position types.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.putPositionLocked(position)
}

func (r *repository) putPositionLocked(position types.Position) {
	key := position.Key()
	r.positions[key] = position

	if _, ok := r.symbols[key.AccountID]; !ok {
		r.symbols[key.AccountID] = make(map[string]struct{})
	}

	r.symbols[key.AccountID][key.Symbol] = struct{}{}
}

func (r *repository) deletePositionLocked(key types.PositionKey) {
	delete(r.positions, key)

	if symbols, ok := r.symbols[key.AccountID]; ok {
		delete(symbols, key.Symbol)

		if len(symbols) == 0 {
			delete(r.symbols, key.AccountID)
		}
	}
}

// accountsWithPositions returns the ids of accounts holding at least one position.
func (r *repository) accountsWithPositions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.symbols))
	for id := range r.symbols {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// mark updates the valuation of an account from prices in one critical section and returns the
// updated account with the positions that were marked.
func (r *repository) mark(accountID string, prices map[string]float64, now markClock) (types.Account, []types.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return types.Account{}, nil, false
	}

	marked := []types.Position{}

	for _, position := range r.listPositionsLocked(accountID) {
		if price, ok := prices[position.Symbol]; ok && price > 0 {
			position.CurrentPrice = price
			position.UnrealizedPnL = unrealizedPnL(position)
			position.UpdatedAt = now()
			r.positions[position.Key()] = position
			marked = append(marked, position)
		}
	}

	account.UnrealizedPnL = r.unrealizedLocked(accountID)
	account.RecomputeEquity()
	account.UpdatedAt = now()
	r.accounts[accountID] = account

	return account, marked, true
}

// unrealizedLocked sums the unrealized P&L of the open positions of an account.
func (r *repository) unrealizedLocked(accountID string) float64 {
	total := 0.0
	for symbol := range r.symbols[accountID] {
		total += r.positions[types.PositionKey{AccountID: accountID, Symbol: symbol}].UnrealizedPnL
	}

	return total
}
