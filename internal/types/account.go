package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

// Account is a virtual trading wallet. Balance is the available cash; equity is balance plus the
// unrealized P&L of every open position.
type Account struct {
	// ID is the stable key of the account
	ID string `json:"id" yaml:"id" validate:"required"`
	// OwnerID identifies the user owning the account
	OwnerID string `json:"ownerId" yaml:"owner_id" validate:"required"`
	// Balance is the available cash balance. It never goes below zero.
	Balance float64 `json:"balance" yaml:"balance" validate:"gte=0"`
	// InitialBalance is the balance the account was created with
	InitialBalance float64 `json:"initialBalance" yaml:"initial_balance" validate:"gte=0"`
	// Currency is the quote currency of the balance (e.g. USDT)
	Currency string `json:"currency" yaml:"currency" validate:"required"`
	// Equity is Balance + UnrealizedPnL as of the last recompute
	Equity float64 `json:"equity" yaml:"equity"`
	// UnrealizedPnL is the mark-to-market P&L of all open positions
	UnrealizedPnL float64 `json:"unrealizedPnL" yaml:"unrealized_pnl"`
	// RealizedPnL is the total P&L locked in by closing quantity
	RealizedPnL float64 `json:"realizedPnL" yaml:"realized_pnl"`
	// TotalTrades is the number of closing fills, full or partial
	TotalTrades int `json:"totalTrades" yaml:"total_trades" validate:"gte=0"`
	// WinningTrades is the number of closing fills with a positive realized P&L
	WinningTrades int `json:"winningTrades" yaml:"winning_trades" validate:"gte=0"`
	// LosingTrades is the number of closing fills with a zero or negative realized P&L
	LosingTrades int `json:"losingTrades" yaml:"losing_trades" validate:"gte=0"`
	// Active accounts receive orders generated from trading signals
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// RecomputeEquity sets Equity from Balance and UnrealizedPnL.
func (a *Account) RecomputeEquity() {
	a.Equity = a.Balance + a.UnrealizedPnL
}

// WinRate returns the share of winning trades, or 0 when no trade was closed.
func (a *Account) WinRate() float64 {
	if a.TotalTrades == 0 {
		return 0
	}

	return float64(a.WinningTrades) / float64(a.TotalTrades)
}

// Validate validates the Account struct.
func (a *Account) Validate() error {
	validate := validator.New()
	if err := validate.Struct(a); err != nil {
		return errors.Wrap(errors.ErrCodeValidation, "invalid account", err)
	}

	if a.TotalTrades != a.WinningTrades+a.LosingTrades {
		return errors.Newf(errors.ErrCodeValidation,
			"trade counters out of balance: total=%d winning=%d losing=%d",
			a.TotalTrades, a.WinningTrades, a.LosingTrades)
	}

	return nil
}
