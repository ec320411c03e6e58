package marketdata_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/marketdata"
	"github.com/rxtech-lab/argo-paper-trading/mocks"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"
)

// fakeBinanceClient implements marketdata.BinanceClient for testing
type fakeBinanceClient struct {
	prices    []*binance.SymbolPrice
	klines    []*binance.Kline
	err       error
	lastLimit int
	lastSym   string
	lastIntvl string
	calls     int
}

func (f *fakeBinanceClient) NewListPricesService() marketdata.ListPricesService {
	return &fakeListPricesService{client: f}
}

func (f *fakeBinanceClient) NewKlinesService() marketdata.KlinesService {
	return &fakeKlinesService{client: f}
}

type fakeListPricesService struct {
	client *fakeBinanceClient
}

func (s *fakeListPricesService) Symbol(symbol string) marketdata.ListPricesService {
	s.client.lastSym = symbol

	return s
}

func (s *fakeListPricesService) Do(_ context.Context) ([]*binance.SymbolPrice, error) {
	s.client.calls++

	return s.client.prices, s.client.err
}

type fakeKlinesService struct {
	client *fakeBinanceClient
}

func (s *fakeKlinesService) Symbol(symbol string) marketdata.KlinesService {
	s.client.lastSym = symbol

	return s
}

func (s *fakeKlinesService) Interval(interval string) marketdata.KlinesService {
	s.client.lastIntvl = interval

	return s
}

func (s *fakeKlinesService) Limit(limit int) marketdata.KlinesService {
	s.client.lastLimit = limit

	return s
}

func (s *fakeKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	s.client.calls++

	return s.client.klines, s.client.err
}

type BinanceProviderTestSuite struct {
	suite.Suite
	client   *fakeBinanceClient
	provider *marketdata.BinanceProvider
	ctx      context.Context
}

func TestBinanceProviderSuite(t *testing.T) {
	suite.Run(t, new(BinanceProviderTestSuite))
}

func (suite *BinanceProviderTestSuite) SetupTest() {
	suite.client = &fakeBinanceClient{}
	suite.provider = marketdata.NewBinanceProviderWithClient(suite.client, rate.NewLimiter(rate.Inf, 1), logger.NewNopLogger())
	suite.ctx = context.Background()
}

func (suite *BinanceProviderTestSuite) TestRequestsWaitForThrottle() {
	suite.client.prices = []*binance.SymbolPrice{{Symbol: "BTCUSDT", Price: "50000"}}
	suite.client.klines = mocks.FlatKlines(100, 60)
	provider := marketdata.NewBinanceProviderWithClient(suite.client, rate.NewLimiter(rate.Every(time.Hour), 1), logger.NewNopLogger())

	_, err := provider.GetCurrentPrice(suite.ctx, "BTCUSDT")
	suite.Require().NoError(err)
	suite.Equal(1, suite.client.calls)

	ctx, cancel := context.WithTimeout(suite.ctx, 50*time.Millisecond)
	defer cancel()

	_, err = provider.GetCurrentPrice(ctx, "BTCUSDT")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUpstreamUnavailable), "got %v", err)

	_, err = provider.GetMarketData(ctx, "BTCUSDT", "1h")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUpstreamUnavailable), "got %v", err)

	suite.Equal(1, suite.client.calls, "throttled requests never reach the client")
}

func (suite *BinanceProviderTestSuite) TestRequestsCanceledWhileWaiting() {
	provider := marketdata.NewBinanceProviderWithClient(suite.client, rate.NewLimiter(rate.Every(time.Hour), 1), logger.NewNopLogger())
	suite.client.prices = []*binance.SymbolPrice{{Symbol: "BTCUSDT", Price: "50000"}}

	_, err := provider.GetCurrentPrice(suite.ctx, "BTCUSDT")
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err = provider.GetCurrentPrice(ctx, "BTCUSDT")
	suite.True(errors.HasCode(err, errors.ErrCodeUpstreamUnavailable), "got %v", err)
	suite.Equal(1, suite.client.calls)
}

func (suite *BinanceProviderTestSuite) TestNewRequestLimiter() {
	cfg := config.Default().MarketData

	limiter := marketdata.NewRequestLimiter(cfg)
	suite.Equal(rate.Limit(10), limiter.Limit())
	suite.Equal(20, limiter.Burst())

	cfg.RequestsPerSecond = 0
	suite.Equal(rate.Inf, marketdata.NewRequestLimiter(cfg).Limit())
}

func (suite *BinanceProviderTestSuite) TestGetCurrentPrice() {
	suite.client.prices = []*binance.SymbolPrice{{Symbol: "BTCUSDT", Price: "50000.12000000"}}

	price, err := suite.provider.GetCurrentPrice(suite.ctx, "btcusdt")
	suite.Require().NoError(err)
	suite.InDelta(50000.12, price, 1e-9)
	suite.Equal("BTCUSDT", suite.client.lastSym)
}

func (suite *BinanceProviderTestSuite) TestGetCurrentPriceInvalidSymbol() {
	suite.client.err = &common.APIError{Code: -1121, Message: "Invalid symbol."}

	_, err := suite.provider.GetCurrentPrice(suite.ctx, "FAKEUSDT")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolNotFound))
}

func (suite *BinanceProviderTestSuite) TestGetCurrentPriceUpstreamFailure() {
	suite.client.err = &common.APIError{Code: -1003, Message: "Too many requests."}

	_, err := suite.provider.GetCurrentPrice(suite.ctx, "BTCUSDT")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUpstreamUnavailable))
}

func (suite *BinanceProviderTestSuite) TestGetCurrentPriceMissingFromResponse() {
	suite.client.prices = []*binance.SymbolPrice{}

	_, err := suite.provider.GetCurrentPrice(suite.ctx, "BTCUSDT")
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolNotFound))
}

func (suite *BinanceProviderTestSuite) TestGetMarketData() {
	suite.client.klines = mocks.NewKlineGenerator(42).Generate(mocks.DefaultKlineConfig())

	snapshot, err := suite.provider.GetMarketData(suite.ctx, "BTCUSDT", "1h")
	suite.Require().NoError(err)
	suite.Equal("BTCUSDT", snapshot.Symbol)
	suite.Equal("1h", snapshot.Timeframe)
	suite.Equal(100, snapshot.Candles)
	suite.Equal(100, suite.client.lastLimit)
	suite.Equal("1h", suite.client.lastIntvl)

	lastClose, err := strconv.ParseFloat(suite.client.klines[len(suite.client.klines)-1].Close, 64)
	suite.Require().NoError(err)
	suite.InDelta(lastClose, snapshot.CurrentPrice, 1e-9)

	for _, key := range []string{marketdata.IndicatorRSI14, marketdata.IndicatorEMA20, marketdata.IndicatorSMA50, marketdata.IndicatorChangePct} {
		suite.Contains(snapshot.Indicators, key)
	}

	rsi := snapshot.Indicators[marketdata.IndicatorRSI14]
	suite.GreaterOrEqual(rsi, 0.0)
	suite.LessOrEqual(rsi, 100.0)
}

func (suite *BinanceProviderTestSuite) TestGetMarketDataUnsupportedTimeframe() {
	_, err := suite.provider.GetMarketData(suite.ctx, "BTCUSDT", "7m")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *BinanceProviderTestSuite) TestGetMarketDataNoCandles() {
	suite.client.klines = nil

	_, err := suite.provider.GetMarketData(suite.ctx, "BTCUSDT", "1h")
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolNotFound))
}

type SnapshotTestSuite struct {
	suite.Suite
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotTestSuite))
}

func (suite *SnapshotTestSuite) TestShortSeriesOmitsIndicators() {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []marketdata.Candle{
		{OpenTime: now, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{OpenTime: now.Add(time.Hour), Open: 100, High: 111, Low: 99, Close: 110, Volume: 1},
	}

	snapshot := marketdata.NewSnapshot("ETHUSDT", "1h", candles, now)
	suite.InDelta(110, snapshot.CurrentPrice, 1e-12)
	suite.InDelta(10, snapshot.Indicators[marketdata.IndicatorChangePct], 1e-12)
	suite.NotContains(snapshot.Indicators, marketdata.IndicatorRSI14)
	suite.NotContains(snapshot.Indicators, marketdata.IndicatorSMA50)
	suite.Equal(now, snapshot.Timestamp)
}

func (suite *SnapshotTestSuite) TestFlatSeries() {
	client := &fakeBinanceClient{klines: mocks.FlatKlines(100, 60)}
	provider := marketdata.NewBinanceProviderWithClient(client, rate.NewLimiter(rate.Inf, 1), logger.NewNopLogger())

	snapshot, err := provider.GetMarketData(context.Background(), "BTCUSDT", "1h")
	suite.Require().NoError(err)
	suite.InDelta(100, snapshot.Indicators[marketdata.IndicatorSMA50], 1e-9)
	suite.InDelta(100, snapshot.Indicators[marketdata.IndicatorEMA20], 1e-9)
	suite.InDelta(0, snapshot.Indicators[marketdata.IndicatorChangePct], 1e-9)
}

type StaticProviderTestSuite struct {
	suite.Suite
}

func TestStaticProviderSuite(t *testing.T) {
	suite.Run(t, new(StaticProviderTestSuite))
}

func (suite *StaticProviderTestSuite) TestPrices() {
	provider := marketdata.NewStaticProvider(map[string]float64{"btcusdt": 50000})
	ctx := context.Background()

	price, err := provider.GetCurrentPrice(ctx, "BTCUSDT")
	suite.Require().NoError(err)
	suite.Equal(50000.0, price)

	_, err = provider.GetCurrentPrice(ctx, "DOGEUSDT")
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolNotFound))

	provider.SetPrice("DOGEUSDT", 0.1)
	snapshot, err := provider.GetMarketData(ctx, "dogeusdt", "1h")
	suite.Require().NoError(err)
	suite.Equal("DOGEUSDT", snapshot.Symbol)
	suite.Equal(0.1, snapshot.CurrentPrice)
}

func (suite *StaticProviderTestSuite) TestNewFromConfig() {
	provider, err := marketdata.New(config.MarketDataConfig{
		Provider:          config.MarketDataProviderStatic,
		BaseURL:           "",
		DefaultTimeframe:  "1h",
		RequestTimeout:    time.Second,
		StaticPrices:      map[string]float64{"ETHUSDT": 3000},
		ValuationInterval: 0,
		RequestsPerSecond: 0,
		RequestBurst:      1,
	}, logger.NewNopLogger())
	suite.Require().NoError(err)

	price, err := provider.GetCurrentPrice(context.Background(), "ETHUSDT")
	suite.Require().NoError(err)
	suite.Equal(3000.0, price)

	_, err = marketdata.New(config.MarketDataConfig{Provider: "bloomberg"}, logger.NewNopLogger())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
