package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.T().TempDir(), "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *ConfigTestSuite) TestDefaultIsValid() {
	cfg := Default()
	suite.NoError(cfg.Validate())
	suite.Equal(0.001, cfg.Trading.CommissionRate)
	suite.Equal(0.0005, cfg.Trading.SlippageRate)
	suite.Equal(0.25, cfg.Trading.PositionSizeFraction)
	suite.Equal("USDT", cfg.Trading.QuoteCurrency)
	suite.Equal(StorageDriverDuckDB, cfg.Storage.Driver)
}

func (suite *ConfigTestSuite) TestLoadWithoutFile() {
	cfg, err := Load("")
	suite.Require().NoError(err)
	suite.Equal(":8080", cfg.Server.Address)
}

func (suite *ConfigTestSuite) TestLoadYAMLOverlaysDefaults() {
	path := suite.writeConfig(`
log:
  level: debug
server:
  address: ":9090"
  ping_interval: 15s
storage:
  driver: duckdb
  dsn: /tmp/paper.duckdb
market_data:
  provider: static
  static_prices:
    BTCUSDT: 50000
trading:
  commission_rate: 0.002
  max_signals_per_hour: 4
accounts:
  - id: acc-1
    owner_id: alice
    initial_balance: 5000
`)

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal("debug", cfg.Log.Level)
	suite.Equal(":9090", cfg.Server.Address)
	suite.Equal(15*time.Second, cfg.Server.PingInterval)
	// untouched fields keep their defaults
	suite.Equal(60*time.Second, cfg.Server.PongTimeout)
	suite.Equal("/tmp/paper.duckdb", cfg.Storage.DSN)
	suite.Equal(MarketDataProviderStatic, cfg.MarketData.Provider)
	suite.Equal(50000.0, cfg.MarketData.StaticPrices["BTCUSDT"])
	suite.Equal(0.002, cfg.Trading.CommissionRate)
	suite.Equal(0.0005, cfg.Trading.SlippageRate)
	suite.Equal(4, cfg.Trading.MaxSignalsPerHour)
	suite.Require().Len(cfg.Accounts, 1)
	suite.Equal("alice", cfg.Accounts[0].OwnerID)
}

func (suite *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestLoadIncompatibleVersion() {
	path := suite.writeConfig("version: v9.0.0\n")

	_, err := Load(path)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidVersion))
}

func (suite *ConfigTestSuite) TestEnvOverrides() {
	suite.T().Setenv("PAPER_SERVER_ADDRESS", ":7070")
	suite.T().Setenv("PAPER_COMMISSION_RATE", "0.003")
	suite.T().Setenv("PAPER_MAX_SIGNALS_PER_HOUR", "2")
	suite.T().Setenv("PAPER_STORAGE_DRIVER", "DUCKDB")
	suite.T().Setenv("PAPER_SIGNALS_ENABLED", "false")
	suite.T().Setenv("PAPER_VALUATION_INTERVAL", "5m")
	suite.T().Setenv("PAPER_MARKET_DATA_RPS", "2.5")

	cfg, err := Load("")
	suite.Require().NoError(err)
	suite.Equal(":7070", cfg.Server.Address)
	suite.Equal(0.003, cfg.Trading.CommissionRate)
	suite.Equal(2, cfg.Trading.MaxSignalsPerHour)
	suite.Equal(StorageDriverDuckDB, cfg.Storage.Driver)
	suite.False(cfg.Trading.SignalsEnabled)
	suite.Equal(5*time.Minute, cfg.MarketData.ValuationInterval)
	suite.Equal(2.5, cfg.MarketData.RequestsPerSecond)
}

func (suite *ConfigTestSuite) TestEnvOverrideInvalidNumber() {
	cfg := Default()
	env := map[string]string{"PAPER_SLIPPAGE_RATE": "lots"}

	err := applyEnv(&cfg, func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestValidate() {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "default",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown storage driver",
			mutate:  func(cfg *Config) { cfg.Storage.Driver = "mysql" },
			wantErr: true,
		},
		{
			name:    "postgres without dsn",
			mutate:  func(cfg *Config) { cfg.Storage.Driver = StorageDriverPostgres },
			wantErr: true,
		},
		{
			name: "postgres with dsn",
			mutate: func(cfg *Config) {
				cfg.Storage.Driver = StorageDriverPostgres
				cfg.Storage.DSN = "postgres://localhost/paper"
			},
			wantErr: false,
		},
		{
			name:    "position size above one",
			mutate:  func(cfg *Config) { cfg.Trading.PositionSizeFraction = 1.5 },
			wantErr: true,
		},
		{
			name:    "lowercase quote currency",
			mutate:  func(cfg *Config) { cfg.Trading.QuoteCurrency = "usdt" },
			wantErr: true,
		},
		{
			name:    "pong timeout shorter than ping interval",
			mutate:  func(cfg *Config) { cfg.Server.PongTimeout = time.Second },
			wantErr: true,
		},
		{
			name: "duplicate account ids",
			mutate: func(cfg *Config) {
				cfg.Accounts = append(cfg.Accounts, cfg.Accounts[0])
			},
			wantErr: true,
		},
		{
			name:    "non positive static price",
			mutate:  func(cfg *Config) { cfg.MarketData.StaticPrices = map[string]float64{"BTCUSDT": 0} },
			wantErr: true,
		},
		{
			name:    "negative request rate",
			mutate:  func(cfg *Config) { cfg.MarketData.RequestsPerSecond = -1 },
			wantErr: true,
		},
		{
			name:    "zero request burst",
			mutate:  func(cfg *Config) { cfg.MarketData.RequestBurst = 0 },
			wantErr: true,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			cfg := Default()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	cfg := Default()
	schemaJSON, err := cfg.GenerateSchemaJSON()
	suite.Require().NoError(err)

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schemaJSON), &schema))
	suite.Equal("paper-trading-config", schema["title"])
	suite.Contains(schemaJSON, "commissionRate")
	suite.Contains(schemaJSON, "Go duration string")
}

func (suite *ConfigTestSuite) TestTradingSchema() {
	schema := TradingSchema()
	suite.Require().NotNil(schema)
	suite.Equal("trading-config", schema.Title)

	_, ok := schema.Properties.Get("positionSizeFraction")
	suite.True(ok)
}
