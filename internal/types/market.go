package types

import "time"

// MarketSnapshot is the market-data view of one symbol on one timeframe.
type MarketSnapshot struct {
	Symbol       string             `json:"symbol"`
	Timeframe    string             `json:"timeframe"`
	CurrentPrice float64            `json:"currentPrice"`
	Indicators   map[string]float64 `json:"indicators"`
	// Candles is the number of candles the indicators were computed from
	Candles   int       `json:"candles"`
	Timestamp time.Time `json:"timestamp"`
}
