package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// binanceInvalidSymbol is the error code Binance returns for unknown symbols.
const binanceInvalidSymbol = -1121

var klineIntervals = map[string]time.Duration{
	"1m": time.Minute, "3m": 3 * time.Minute, "5m": 5 * time.Minute,
	"15m": 15 * time.Minute, "30m": 30 * time.Minute,
	"1h": time.Hour, "2h": 2 * time.Hour, "4h": 4 * time.Hour,
	"6h": 6 * time.Hour, "8h": 8 * time.Hour, "12h": 12 * time.Hour,
	"1d": 24 * time.Hour, "3d": 72 * time.Hour, "1w": 7 * 24 * time.Hour,
}

// MockBinanceServer serves the public Binance market data endpoints over HTTP.
// Prices are fixed per symbol; klines are generated around the current price.
type MockBinanceServer struct {
	mu     sync.RWMutex
	prices map[string]float64
	// failures makes every request answer with a server error
	failures bool
	requests int
	seed     int64

	httpServer *http.Server
	listener   net.Listener
}

// NewMockBinanceServer creates a server quoting the given prices. Call Start to listen.
func NewMockBinanceServer(prices map[string]float64) *MockBinanceServer {
	copied := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		copied[symbol] = price
	}

	return &MockBinanceServer{
		mu:         sync.RWMutex{},
		prices:     copied,
		failures:   false,
		requests:   0,
		seed:       42,
		httpServer: nil,
		listener:   nil,
	}
}

// Start starts the mock server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MockBinanceServer) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/ticker/price", s.handleTickerPrice).Methods(http.MethodGet)
	router.HandleFunc("/api/v3/klines", s.handleKlines).Methods(http.MethodGet)
	router.Use(s.countRequests)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockBinanceServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the base URL for the server.
func (s *MockBinanceServer) BaseURL() string {
	if s.listener == nil {
		return ""
	}

	return "http://" + s.listener.Addr().String()
}

// SetPrice sets the current price for a symbol.
func (s *MockBinanceServer) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[symbol] = price
}

// SetFailing makes the server answer every request with 503 until reset.
func (s *MockBinanceServer) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = failing
}

// Requests returns the number of requests served so far.
func (s *MockBinanceServer) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests
}

func (s *MockBinanceServer) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		failing := s.failures
		s.mu.Unlock()

		if failing {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleTickerPrice handles GET /api/v3/ticker/price
func (s *MockBinanceServer) handleTickerPrice(w http.ResponseWriter, r *http.Request) {
	type priceResponse struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	symbol := r.URL.Query().Get("symbol")

	s.mu.RLock()
	defer s.mu.RUnlock()

	if symbol == "" {
		response := make([]priceResponse, 0, len(s.prices))
		for sym, price := range s.prices {
			response = append(response, priceResponse{Symbol: sym, Price: formatPrice(price)})
		}

		writeJSON(w, http.StatusOK, response)

		return
	}

	price, ok := s.prices[symbol]
	if !ok {
		writeAPIError(w, binanceInvalidSymbol, "Invalid symbol.")

		return
	}

	writeJSON(w, http.StatusOK, priceResponse{Symbol: symbol, Price: formatPrice(price)})
}

// handleKlines handles GET /api/v3/klines
func (s *MockBinanceServer) handleKlines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	symbol := query.Get("symbol")

	interval, ok := klineIntervals[query.Get("interval")]
	if !ok {
		writeAPIError(w, -1120, "Invalid interval.")

		return
	}

	limit := 500
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeAPIError(w, -1100, "Illegal characters found in parameter 'limit'.")

			return
		}

		limit = min(parsed, 1000)
	}

	s.mu.RLock()
	price, known := s.prices[symbol]
	seed := s.seed
	s.mu.RUnlock()

	if !known {
		writeAPIError(w, binanceInvalidSymbol, "Invalid symbol.")

		return
	}

	config := DefaultKlineConfig()
	config.Interval = interval
	config.Count = limit
	config.InitialPrice = price
	config.StartTime = time.Now().UTC().Truncate(interval).Add(-time.Duration(limit-1) * interval)

	klines := NewKlineGenerator(seed).Generate(config)

	// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, takerBase, takerQuote, ignore]
	rows := make([][]any, 0, len(klines))
	for _, kline := range klines {
		rows = append(rows, []any{
			kline.OpenTime,
			kline.Open,
			kline.High,
			kline.Low,
			kline.Close,
			kline.Volume,
			kline.CloseTime,
			kline.QuoteAssetVolume,
			kline.TradeNum,
			kline.TakerBuyBaseAssetVolume,
			kline.TakerBuyQuoteAssetVolume,
			"0",
		})
	}

	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"code": code,
		"msg":  strings.TrimSpace(message),
	})
}
