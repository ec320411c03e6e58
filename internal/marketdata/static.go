package marketdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
)

// StaticProvider serves fixed prices. It backs offline runs and tests.
type StaticProvider struct {
	mu     sync.RWMutex
	prices map[string]float64
	now    func() time.Time
}

// NewStaticProvider creates a StaticProvider serving the given prices.
func NewStaticProvider(prices map[string]float64) *StaticProvider {
	copied := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		copied[strings.ToUpper(symbol)] = price
	}

	return &StaticProvider{
		mu:     sync.RWMutex{},
		prices: copied,
		now:    time.Now,
	}
}

// SetPrice sets or replaces the price of a symbol.
func (s *StaticProvider) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[strings.ToUpper(symbol)] = price
}

func (s *StaticProvider) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeSymbolNotFound, "symbol %s not found", symbol)
	}

	return price, nil
}

// GetMarketData returns a snapshot of the fixed price. A flat series carries no indicators.
func (s *StaticProvider) GetMarketData(ctx context.Context, symbol string, timeframe string) (types.MarketSnapshot, error) {
	price, err := s.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return types.MarketSnapshot{}, err
	}

	return types.MarketSnapshot{
		Symbol:       strings.ToUpper(symbol),
		Timeframe:    timeframe,
		CurrentPrice: price,
		Indicators:   map[string]float64{},
		Candles:      0,
		Timestamp:    s.now(),
	}, nil
}
