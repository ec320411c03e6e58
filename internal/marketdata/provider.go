// Package marketdata provides current prices and indicator snapshots for tradable symbols.
package marketdata

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

// Indicator keys of MarketSnapshot.Indicators.
const (
	IndicatorRSI14     = "rsi_14"
	IndicatorEMA20     = "ema_20"
	IndicatorSMA50     = "sma_50"
	IndicatorChangePct = "change_pct"
)

// Provider is the market-data collaborator.
//
// Unknown symbols fail with ErrCodeSymbolNotFound so callers can tell them apart from
// transport failures, which fail with ErrCodeUpstreamUnavailable.
type Provider interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetMarketData(ctx context.Context, symbol string, timeframe string) (types.MarketSnapshot, error)
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// New creates the Provider selected by the configuration.
func New(cfg config.MarketDataConfig, log *logger.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.MarketDataProviderBinance:
		return NewBinanceProvider(cfg, log), nil
	case config.MarketDataProviderStatic:
		return NewStaticProvider(cfg.StaticPrices), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported market data provider %q", cfg.Provider)
	}
}

// NewSnapshot builds a MarketSnapshot from candles sorted oldest first.
func NewSnapshot(symbol, timeframe string, candles []Candle, now time.Time) types.MarketSnapshot {
	closes := make([]float64, 0, len(candles))
	for _, candle := range candles {
		closes = append(closes, candle.Close)
	}

	snapshot := types.MarketSnapshot{
		Symbol:       symbol,
		Timeframe:    timeframe,
		CurrentPrice: 0,
		Indicators:   map[string]float64{},
		Candles:      len(candles),
		Timestamp:    now,
	}

	if len(closes) == 0 {
		return snapshot
	}

	snapshot.CurrentPrice = closes[len(closes)-1]

	if rsi, err := RSI(closes, 14); err == nil {
		snapshot.Indicators[IndicatorRSI14] = rsi
	}

	if ema, err := EMA(closes, 20); err == nil {
		snapshot.Indicators[IndicatorEMA20] = ema
	}

	if sma, err := SMA(closes, 50); err == nil {
		snapshot.Indicators[IndicatorSMA50] = sma
	}

	if closes[0] > 0 {
		snapshot.Indicators[IndicatorChangePct] = (closes[len(closes)-1] - closes[0]) / closes[0] * 100
	}

	return snapshot
}
