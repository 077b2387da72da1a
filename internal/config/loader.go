// Package config provides centralized configuration management for coinbuyer.
// Values are layered with viper: built-in defaults, an optional YAML file
// (explicit path or the XDG config directory) and COINBUYER_* environment
// variables. The merged tree is decoded with mapstructure.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	// AppName names the config and data directories.
	AppName = "coinbuyer"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "COINBUYER"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key with its default value.
func SetDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://api.cryptorank.io")
	v.SetDefault("api.token", "")
	v.SetDefault("api.rate_limit", 1000)
	v.SetDefault("api.cool_down", "1s")
	v.SetDefault("api.wait_policy", "once")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.proxy", "")
	v.SetDefault("api.error_status_codes", []int{})

	// Buy defaults
	v.SetDefault("buy.portfolio_id", 0)
	v.SetDefault("buy.amount", "10")
	v.SetDefault("buy.quote", "united-states-dollar")
	v.SetDefault("buy.fee_type", "USD")
	v.SetDefault("buy.min_market_cap", "100000")
	v.SetDefault("buy.locale", "en")
	v.SetDefault("buy.life_cycle", "traded")

	// Logging defaults
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.save", false)
	v.SetDefault("logging.dir", ".")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// Load reads configuration. configFile is optional; when empty the XDG config
// directory and ./config are searched for config.yaml and a missing file is
// not an error. Overrides use dotted keys and win over every other layer.
func Load(configFile string, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if strings.TrimSpace(configFile) != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for _, layer := range overrides {
		for key, value := range layer {
			v.Set(key, value)
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// ConfigFileUsed returns the file Load would read for configFile, or "" when
// none exists.
func ConfigFileUsed(configFile string) string {
	if strings.TrimSpace(configFile) != "" {
		return configFile
	}
	candidates := []string{filepath.Join("config", "config.yaml")}
	if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
		candidates = append([]string{filepath.Join(dir, "config.yaml")}, candidates...)
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must be >= 0, got %d", c.API.RateLimit)
	}
	if c.API.CoolDown < 0 {
		return fmt.Errorf("api.cool_down must be >= 0, got %s", c.API.CoolDown)
	}
	switch strings.ToLower(strings.TrimSpace(c.API.WaitPolicy)) {
	case "", "once", "until_clear", "until-clear":
	default:
		return fmt.Errorf("api.wait_policy must be once or until_clear, got %q", c.API.WaitPolicy)
	}
	for _, code := range c.API.ErrorStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("api.error_status_codes: invalid status %d", code)
		}
	}
	if c.Buy.Amount.IsNegative() {
		return fmt.Errorf("buy.amount must be positive, got %s", c.Buy.Amount)
	}
	if c.Buy.MinMarketCap.IsNegative() {
		return fmt.Errorf("buy.min_market_cap must be >= 0, got %s", c.Buy.MinMarketCap)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			intSliceHookFunc(","),
			mapstructure.StringToSliceHookFunc(","),
			decimalHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// intSliceHookFunc splits a delimited string for integer slice targets, so
// env values like "404, 500" decode into []int.
func intSliceHookFunc(sep string) mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		switch to.Elem().Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		default:
			return data, nil
		}

		raw, _ := data.(string)
		values := []int{}
		for _, part := range strings.Split(raw, sep) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid integer %q: %w", part, err)
			}
			values = append(values, n)
		}
		return values, nil
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHookFunc converts strings and numbers into decimal.Decimal.
func decimalHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				return decimal.Zero, nil
			}
			parsed, err := decimal.NewFromString(trimmed)
			if err != nil {
				return nil, fmt.Errorf("invalid decimal %q: %w", value, err)
			}
			return parsed, nil
		case int:
			return decimal.NewFromInt(int64(value)), nil
		case int64:
			return decimal.NewFromInt(value), nil
		case float64:
			return decimal.NewFromFloat(value), nil
		case float32:
			return decimal.NewFromFloat32(value), nil
		default:
			return data, nil
		}
	}
}
