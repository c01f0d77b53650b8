// Package config provides configuration management for the trading application.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "stock-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Venue    VenueConfig    `mapstructure:"venue"`
	Data     DataConfig     `mapstructure:"data"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// VenueConfig holds venue API configuration.
type VenueConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// DataConfig holds market data persistence configuration.
type DataConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// BacktestConfig holds backtest defaults.
type BacktestConfig struct {
	InitialCash float64 `mapstructure:"initial_cash"`
	TopSymbols  int     `mapstructure:"top_symbols"`
	Allocation  float64 `mapstructure:"allocation"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-trader"
	}
	return filepath.Join(home, ".config", "stock-trader")
}

// Load loads configuration from the specified directory, falling back to
// defaults for anything unset. If configDir is empty, the default config
// directory is used. Environment variables prefixed STOCK_TRADER_ override
// file values.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("STOCK_TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.Wrap(err, "reading config.toml")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "unmarshalling config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("venue.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("venue.timeout", 30*time.Second)
	v.SetDefault("venue.retry_backoff", 10*time.Second)

	v.SetDefault("data.database_path", filepath.Join(configDir, "marketdata.db"))

	v.SetDefault("backtest.initial_cash", 100000.0)
	v.SetDefault("backtest.top_symbols", 3)
	v.SetDefault("backtest.allocation", 1000.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "trader.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)
}

func (c *Config) validate() error {
	if c.Backtest.InitialCash <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "backtest.initial_cash must be positive")
	}
	if c.Venue.RetryBackoff <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "venue.retry_backoff must be positive")
	}
	return nil
}
