// Package config loads and validates the server configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, a `.env` file in the working
// directory, then PAPER_* environment variables.
package config

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-paper-trading/internal/version"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

type StorageDriver string

const (
	StorageDriverDuckDB   StorageDriver = "duckdb"
	StorageDriverPostgres StorageDriver = "postgres"
)

type MarketDataProvider string

const (
	MarketDataProviderBinance MarketDataProvider = "binance"
	MarketDataProviderStatic  MarketDataProvider = "static"
)

// Config is the root configuration of the paper trading server.
type Config struct {
	// Version is the configuration format version, checked against the server version
	Version    string           `yaml:"version" json:"version" jsonschema:"title=Version,description=Configuration format version (semver)"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	MarketData MarketDataConfig `yaml:"market_data" json:"marketData"`
	Trading    TradingConfig    `yaml:"trading" json:"trading"`
	Accounts   []AccountConfig  `yaml:"accounts" json:"accounts" validate:"dive"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error" validate:"oneof=debug info warn error"`
}

// ServerConfig configures the HTTP listener and the WebSocket hub.
type ServerConfig struct {
	Address string `yaml:"address" json:"address" jsonschema:"title=Address,description=Listen address of the HTTP server" validate:"required"`
	// SendQueueSize is the number of outbound messages buffered per connection before broadcasts are dropped
	SendQueueSize   int           `yaml:"send_queue_size" json:"sendQueueSize" validate:"gt=0"`
	PingInterval    time.Duration `yaml:"ping_interval" json:"pingInterval" validate:"gt=0"`
	PongTimeout     time.Duration `yaml:"pong_timeout" json:"pongTimeout" validate:"gtfield=PingInterval"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"writeTimeout" validate:"gt=0"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" json:"maxMessageBytes" validate:"gt=0"`
	// AllowedOrigins restricts WebSocket upgrades. Empty allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowedOrigins"`
}

// StorageConfig selects the persistence gateway backend.
type StorageConfig struct {
	Driver StorageDriver `yaml:"driver" json:"driver" jsonschema:"title=Driver,enum=duckdb,enum=postgres" validate:"oneof=duckdb postgres"`
	// DSN is a DuckDB file path (empty for in-memory) or a PostgreSQL connection string
	DSN string `yaml:"dsn" json:"dsn" validate:"required_if=Driver postgres"`
}

// MarketDataConfig selects the market data provider.
type MarketDataConfig struct {
	Provider MarketDataProvider `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=binance,enum=static" validate:"oneof=binance static"`
	// BaseURL overrides the Binance REST endpoint (testnet, mock servers)
	BaseURL          string        `yaml:"base_url" json:"baseUrl" validate:"omitempty,url"`
	DefaultTimeframe string        `yaml:"default_timeframe" json:"defaultTimeframe" validate:"required"`
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"requestTimeout" validate:"gt=0"`
	// StaticPrices are the prices served by the static provider
	StaticPrices map[string]float64 `yaml:"static_prices" json:"staticPrices" validate:"dive,gt=0"`
	// ValuationInterval is the period of the mark-to-market loop. Zero disables it.
	ValuationInterval time.Duration `yaml:"valuation_interval" json:"valuationInterval" validate:"gte=0"`
	// RequestsPerSecond throttles calls to the Binance REST API. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requestsPerSecond" validate:"gte=0"`
	RequestBurst      int     `yaml:"request_burst" json:"requestBurst" validate:"gt=0"`
}

// TradingConfig holds the execution parameters. It can be changed at runtime through the Holder.
type TradingConfig struct {
	// CommissionRate is the fraction of the order amount charged as commission (e.g. 0.001)
	CommissionRate float64 `yaml:"commission_rate" json:"commissionRate" jsonschema:"title=Commission Rate,minimum=0,maximum=1" validate:"gte=0,lt=1"`
	// SlippageRate is the fractional price penalty applied at execution (e.g. 0.0005)
	SlippageRate float64 `yaml:"slippage_rate" json:"slippageRate" jsonschema:"title=Slippage Rate,minimum=0,maximum=1" validate:"gte=0,lt=1"`
	// MaxSignalsPerHour bounds executions per (symbol, timeframe). Zero disables the limit.
	MaxSignalsPerHour int `yaml:"max_signals_per_hour" json:"maxSignalsPerHour" jsonschema:"title=Max Signals Per Hour,minimum=0" validate:"gte=0"`
	// PositionSizeFraction is the share of the balance allocated to one signal order
	PositionSizeFraction float64 `yaml:"position_size_fraction" json:"positionSizeFraction" jsonschema:"title=Position Size Fraction,exclusiveMinimum=0,maximum=1" validate:"gt=0,lte=1"`
	// QuoteCurrency is the venue quote currency every tradable symbol must end with
	QuoteCurrency string `yaml:"quote_currency" json:"quoteCurrency" jsonschema:"title=Quote Currency" validate:"required,alphanum,uppercase"`
	// SignalsEnabled turns signal execution on or off
	SignalsEnabled bool `yaml:"signals_enabled" json:"signalsEnabled" jsonschema:"title=Signals Enabled"`
}

// AccountConfig declares a bootstrap account created on startup if it does not exist.
type AccountConfig struct {
	ID             string  `yaml:"id" json:"id" validate:"required"`
	OwnerID        string  `yaml:"owner_id" json:"ownerId" validate:"required"`
	InitialBalance float64 `yaml:"initial_balance" json:"initialBalance" validate:"gte=0"`
	// Disabled accounts are not traded by signals
	Disabled bool `yaml:"disabled" json:"disabled"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Version: version.GetVersion(),
		Log:     LogConfig{Level: "info"},
		Server: ServerConfig{
			Address:         ":8080",
			SendQueueSize:   256,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageBytes: 64 * 1024,
			AllowedOrigins:  nil,
		},
		Storage: StorageConfig{
			Driver: StorageDriverDuckDB,
			DSN:    "",
		},
		MarketData: MarketDataConfig{
			Provider:          MarketDataProviderBinance,
			BaseURL:           "",
			DefaultTimeframe:  "1h",
			RequestTimeout:    10 * time.Second,
			StaticPrices:      nil,
			ValuationInterval: time.Minute,
			RequestsPerSecond: 10,
			RequestBurst:      20,
		},
		Trading: DefaultTrading(),
		Accounts: []AccountConfig{
			{ID: "paper-default", OwnerID: "default", InitialBalance: 10000, Disabled: false},
		},
	}
}

// DefaultTrading returns the default execution parameters.
func DefaultTrading() TradingConfig {
	return TradingConfig{
		CommissionRate:       0.001,
		SlippageRate:         0.0005,
		MaxSignalsPerHour:    10,
		PositionSizeFraction: 0.25,
		QuoteCurrency:        "USDT",
		SignalsEnabled:       true,
	}
}

// Load reads the configuration file at path (optional), applies `.env` and PAPER_* environment
// overrides, checks the file version and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
		}
	}

	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to load .env file", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := version.CheckConfigCompatibility(version.GetVersion(), cfg.Version); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidVersion, "incompatible config version", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for _, account := range c.Accounts {
		if _, ok := seen[account.ID]; ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate account id %s", account.ID)
		}

		seen[account.ID] = struct{}{}
	}

	return nil
}

// Validate validates the TradingConfig struct.
func (t *TradingConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid trading configuration", err)
	}

	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides configuration fields from PAPER_* environment variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	stringVars := map[string]*string{
		"PAPER_LOG_LEVEL":         &cfg.Log.Level,
		"PAPER_SERVER_ADDRESS":    &cfg.Server.Address,
		"PAPER_STORAGE_DSN":       &cfg.Storage.DSN,
		"PAPER_MARKET_DATA_URL":   &cfg.MarketData.BaseURL,
		"PAPER_DEFAULT_TIMEFRAME": &cfg.MarketData.DefaultTimeframe,
		"PAPER_QUOTE_CURRENCY":    &cfg.Trading.QuoteCurrency,
	}
	for key, target := range stringVars {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}

	if value, ok := lookup("PAPER_STORAGE_DRIVER"); ok && value != "" {
		cfg.Storage.Driver = StorageDriver(strings.ToLower(value))
	}

	if value, ok := lookup("PAPER_MARKET_DATA_PROVIDER"); ok && value != "" {
		cfg.MarketData.Provider = MarketDataProvider(strings.ToLower(value))
	}

	floatVars := map[string]*float64{
		"PAPER_COMMISSION_RATE":        &cfg.Trading.CommissionRate,
		"PAPER_SLIPPAGE_RATE":          &cfg.Trading.SlippageRate,
		"PAPER_POSITION_SIZE_FRACTION": &cfg.Trading.PositionSizeFraction,
		"PAPER_MARKET_DATA_RPS":        &cfg.MarketData.RequestsPerSecond,
	}
	for key, target := range floatVars {
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}

		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s", key)
		}

		*target = parsed
	}

	if value, ok := lookup("PAPER_MAX_SIGNALS_PER_HOUR"); ok && value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid PAPER_MAX_SIGNALS_PER_HOUR", err)
		}

		cfg.Trading.MaxSignalsPerHour = parsed
	}

	if value, ok := lookup("PAPER_SIGNALS_ENABLED"); ok && value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid PAPER_SIGNALS_ENABLED", err)
		}

		cfg.Trading.SignalsEnabled = parsed
	}

	if value, ok := lookup("PAPER_VALUATION_INTERVAL"); ok && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid PAPER_VALUATION_INTERVAL", err)
		}

		cfg.MarketData.ValuationInterval = parsed
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration string (e.g. 30s, 5m)",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "paper-trading-config"
	schema.Description = "Configuration schema for the paper trading server"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the Config
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// TradingSchema returns the JSON schema of the runtime-updatable trading section.
func TradingSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(&TradingConfig{})
	schema.Title = "trading-config"

	return schema
}
