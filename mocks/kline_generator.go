package mocks

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
)

// KlineGenerator generates realistic Binance klines for testing market data consumers.
type KlineGenerator struct {
	rng *rand.Rand
}

// NewKlineGenerator creates a new KlineGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewKlineGenerator(seed int64) *KlineGenerator {
	return &KlineGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// KlineConfig configures how klines are generated.
type KlineConfig struct {
	// StartTime is the open time of the first kline
	StartTime time.Time
	// Interval is the duration of each kline
	Interval time.Duration
	// Count is the number of klines to generate
	Count int
	// InitialPrice is the open price of the first kline
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% per bar)
	Volatility float64
	// Trend is the total drift over the series (-0.1 to 0.1 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
}

// DefaultKlineConfig returns a sensible default configuration for a BTCUSDT-like series.
func DefaultKlineConfig() KlineConfig {
	return KlineConfig{
		StartTime:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:     time.Hour,
		Count:        100,
		InitialPrice: 50000,
		Volatility:   0.002,
		Trend:        0,
		VolumeBase:   25,
	}
}

// Generate creates klines oldest first following a geometric Brownian motion.
func (g *KlineGenerator) Generate(config KlineConfig) []*binance.Kline {
	klines := make([]*binance.Kline, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a normal draw
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count)

		closePrice := open * (1 + config.Volatility*z + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := config.VolumeBase * (0.7 + g.rng.Float64()*0.6)
		closeTime := currentTime.Add(config.Interval).Add(-time.Millisecond)

		klines[i] = &binance.Kline{
			OpenTime:                 currentTime.UnixMilli(),
			Open:                     formatPrice(open),
			High:                     formatPrice(high),
			Low:                      formatPrice(low),
			Close:                    formatPrice(closePrice),
			Volume:                   strconv.FormatFloat(volume, 'f', 5, 64),
			CloseTime:                closeTime.UnixMilli(),
			QuoteAssetVolume:         strconv.FormatFloat(volume*closePrice, 'f', 2, 64),
			TradeNum:                 int64(100 + g.rng.Intn(900)),
			TakerBuyBaseAssetVolume:  strconv.FormatFloat(volume/2, 'f', 5, 64),
			TakerBuyQuoteAssetVolume: strconv.FormatFloat(volume/2*closePrice, 'f', 2, 64),
		}

		currentPrice = closePrice
		currentTime = currentTime.Add(config.Interval)
	}

	return klines
}

// FlatKlines returns count klines that all open and close at price.
func FlatKlines(price float64, count int) []*binance.Kline {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := make([]*binance.Kline, count)

	for i := range klines {
		openTime := start.Add(time.Duration(i) * time.Hour)
		klines[i] = &binance.Kline{
			OpenTime:                 openTime.UnixMilli(),
			Open:                     formatPrice(price),
			High:                     formatPrice(price),
			Low:                      formatPrice(price),
			Close:                    formatPrice(price),
			Volume:                   "1.00000",
			CloseTime:                openTime.Add(time.Hour - time.Millisecond).UnixMilli(),
			QuoteAssetVolume:         formatPrice(price),
			TradeNum:                 1,
			TakerBuyBaseAssetVolume:  "0.50000",
			TakerBuyQuoteAssetVolume: formatPrice(price / 2),
		}
	}

	return klines
}

// formatPrice renders a price the way Binance does, with 8 decimals.
func formatPrice(val float64) string {
	return strconv.FormatFloat(val, 'f', 8, 64)
}
