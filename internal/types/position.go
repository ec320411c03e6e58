package types

import "time"

type PositionSide string

const (
	PositionSideLong PositionSide = "LONG"
	// PositionSideShort exists in the schema but no fill ever opens a short position.
	PositionSideShort PositionSide = "SHORT"
)

// Position is the open exposure of one account in one symbol. Key = (AccountID, Symbol).
// A position with zero quantity is never stored.
type Position struct {
	ID        string       `json:"id" yaml:"id"`
	AccountID string       `json:"accountId" yaml:"account_id"`
	Symbol    string       `json:"symbol" yaml:"symbol"`
	Side      PositionSide `json:"side" yaml:"side"`
	// Quantity is strictly positive while the position exists
	Quantity float64 `json:"quantity" yaml:"quantity"`
	// AvgPrice is the quantity-weighted cost basis of the buy fills
	AvgPrice float64 `json:"avgPrice" yaml:"avg_price"`
	// CurrentPrice is the last observed market price
	CurrentPrice  float64   `json:"currentPrice" yaml:"current_price"`
	UnrealizedPnL float64   `json:"unrealizedPnL" yaml:"unrealized_pnl"`
	CreatedAt     time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"updated_at"`
}

// PositionKey identifies a position by account and symbol.
type PositionKey struct {
	AccountID string
	Symbol    string
}

// Key returns the (account, symbol) key of the position.
func (p *Position) Key() PositionKey {
	return PositionKey{AccountID: p.AccountID, Symbol: p.Symbol}
}

// MarketValue returns quantity times the last observed price.
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// CostBasis returns quantity times the average entry price.
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.AvgPrice
}
