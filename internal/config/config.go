package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the complete application configuration.
// Precedence, lowest first: built-in defaults, YAML config file,
// COINBUYER_* environment variables.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Buy     BuyConfig     `mapstructure:"buy"`
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig configures the cryptorank client.
type APIConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Token            string        `mapstructure:"token"`
	RateLimit        int           `mapstructure:"rate_limit"`
	CoolDown         time.Duration `mapstructure:"cool_down"`
	WaitPolicy       string        `mapstructure:"wait_policy"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Proxy            string        `mapstructure:"proxy"`
	ErrorStatusCodes []int         `mapstructure:"error_status_codes"`
}

// BuyConfig holds defaults for the buy command.
type BuyConfig struct {
	PortfolioID  int64           `mapstructure:"portfolio_id"`
	Amount       decimal.Decimal `mapstructure:"amount"`
	Quote        string          `mapstructure:"quote"`
	FeeType      string          `mapstructure:"fee_type"`
	MinMarketCap decimal.Decimal `mapstructure:"min_market_cap"`
	Locale       string          `mapstructure:"locale"`
	LifeCycle    string          `mapstructure:"life_cycle"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Enabled toggles request logging in the API client.
	Enabled bool `mapstructure:"enabled"`

	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Save mirrors logs to a timestamped JSON file under Dir.
	Save bool   `mapstructure:"save"`
	Dir  string `mapstructure:"dir"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}
