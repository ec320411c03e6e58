package marketdata

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// binanceInvalidSymbolCode is returned by the REST API for unknown symbols
	binanceInvalidSymbolCode = -1121
	// snapshotCandles is enough history for SMA(50) with margin for RSI smoothing
	snapshotCandles = 100
)

// supportedTimeframes lists the kline intervals accepted by Binance.
var supportedTimeframes = map[string]struct{}{
	"1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
	"1d": {}, "3d": {}, "1w": {}, "1M": {},
}

// Service interfaces for mocking the Binance API

// ListPricesService interface for the latest price ticker.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// KlinesService interface for historical candles.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewListPricesService() ListPricesService
	NewKlinesService() KlinesService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// BinanceProvider reads prices and candles from the public Binance spot REST API.
// Every request waits on a shared token bucket so bursts of signals stay under the venue's weight limits.
type BinanceProvider struct {
	client  BinanceClient
	limiter *rate.Limiter
	logger  *logger.Logger
	now     func() time.Time
}

// NewBinanceProvider creates a provider talking to Binance. No API key is needed for market data.
func NewBinanceProvider(cfg config.MarketDataConfig, log *logger.Logger) *BinanceProvider {
	client := binance.NewClient("", "")
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	client.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}

	return NewBinanceProviderWithClient(&realBinanceClient{client: client}, NewRequestLimiter(cfg), log)
}

// NewBinanceProviderWithClient creates a provider with a custom client (useful for testing).
func NewBinanceProviderWithClient(client BinanceClient, limiter *rate.Limiter, log *logger.Logger) *BinanceProvider {
	return &BinanceProvider{
		client:  client,
		limiter: limiter,
		logger:  log,
		now:     time.Now,
	}
}

// NewRequestLimiter builds the request throttle from the market data settings.
func NewRequestLimiter(cfg config.MarketDataConfig) *rate.Limiter {
	burst := cfg.RequestBurst
	if burst <= 0 {
		burst = 1
	}

	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}

	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// wait blocks until the throttle admits one request or ctx ends.
func (b *BinanceProvider) wait(ctx context.Context, symbol string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrCodeUpstreamUnavailable, err, "market data request for %s was throttled", symbol)
	}

	return nil
}

func (b *BinanceProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)

	if err := b.wait(ctx, symbol); err != nil {
		return 0, err
	}

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, b.classify(symbol, err)
	}

	for _, price := range prices {
		if price.Symbol != symbol {
			continue
		}

		value, err := strconv.ParseFloat(price.Price, 64)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrCodeUpstreamUnavailable, err, "invalid price %q for %s", price.Price, symbol)
		}

		return value, nil
	}

	return 0, errors.Newf(errors.ErrCodeSymbolNotFound, "symbol %s not found", symbol)
}

func (b *BinanceProvider) GetMarketData(ctx context.Context, symbol string, timeframe string) (types.MarketSnapshot, error) {
	symbol = strings.ToUpper(symbol)

	if _, ok := supportedTimeframes[timeframe]; !ok {
		return types.MarketSnapshot{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe %q", timeframe)
	}

	if err := b.wait(ctx, symbol); err != nil {
		return types.MarketSnapshot{}, err
	}

	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(snapshotCandles).
		Do(ctx)
	if err != nil {
		return types.MarketSnapshot{}, b.classify(symbol, err)
	}

	if len(klines) == 0 {
		return types.MarketSnapshot{}, errors.Newf(errors.ErrCodeSymbolNotFound, "no candles for symbol %s", symbol)
	}

	candles, err := convertKlines(klines)
	if err != nil {
		return types.MarketSnapshot{}, errors.Wrapf(errors.ErrCodeUpstreamUnavailable, err, "invalid candles for %s", symbol)
	}

	return NewSnapshot(symbol, timeframe, candles, b.now()), nil
}

// classify maps Binance failures onto the market data error codes.
func (b *BinanceProvider) classify(symbol string, err error) error {
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbolCode {
		return errors.Wrapf(errors.ErrCodeSymbolNotFound, err, "symbol %s not found", symbol)
	}

	b.logger.Warn("Binance request failed", zap.String("symbol", symbol), zap.Error(err))

	return errors.Wrapf(errors.ErrCodeUpstreamUnavailable, err, "market data unavailable for %s", symbol)
}

// convertKlines converts binance klines to candles.
func convertKlines(klines []*binance.Kline) ([]Candle, error) {
	candles := make([]Candle, 0, len(klines))

	for _, kline := range klines {
		open, err := strconv.ParseFloat(kline.Open, 64)
		if err != nil {
			return nil, err
		}

		high, err := strconv.ParseFloat(kline.High, 64)
		if err != nil {
			return nil, err
		}

		low, err := strconv.ParseFloat(kline.Low, 64)
		if err != nil {
			return nil, err
		}

		closePrice, err := strconv.ParseFloat(kline.Close, 64)
		if err != nil {
			return nil, err
		}

		volume, err := strconv.ParseFloat(kline.Volume, 64)
		if err != nil {
			return nil, err
		}

		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(kline.OpenTime).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}

	return candles, nil
}
