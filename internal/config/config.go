// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig  `mapstructure:"trading"`
	Ensemble    EnsembleConfig `mapstructure:"ensemble"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Healing     HealingConfig  `mapstructure:"healing"`
	Data        DataConfig     `mapstructure:"data"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds trading-loop configuration.
type TradingConfig struct {
	Mode          string        `mapstructure:"mode"` // "live", "paper"
	Symbol        string        `mapstructure:"symbol"`
	Exchange      string        `mapstructure:"exchange"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	BrokerTimeout time.Duration `mapstructure:"broker_timeout"`
}

// EnsembleConfig holds signal aggregation configuration.
type EnsembleConfig struct {
	// ConfidenceThreshold gates action: any signal below it becomes HOLD.
	// Tuned independently of Healing.RetrainThreshold.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// RiskConfig holds risk management configuration.
type RiskConfig struct {
	InitialCapital      float64 `mapstructure:"initial_capital"`
	RiskFraction        float64 `mapstructure:"risk_fraction"`         // fractional Kelly multiplier
	PayoffRatio         float64 `mapstructure:"payoff_ratio"`          // assumed win/loss ratio until trades accrue
	MaxPositionFraction float64 `mapstructure:"max_position_fraction"` // hard cap on position value / capital
	MaxDrawdown         float64 `mapstructure:"max_drawdown"`          // halt latch trigger
	StopLossATR         float64 `mapstructure:"stop_loss_atr"`
	TakeProfitATR       float64 `mapstructure:"take_profit_atr"`
}

// HealingConfig holds self-healing controller configuration.
type HealingConfig struct {
	RetrainThreshold float64       `mapstructure:"retrain_threshold"` // rolling accuracy below this triggers retrain
	WindowCapacity   int           `mapstructure:"window_capacity"`
	MinSamples       int           `mapstructure:"min_samples"`
	ShadowHorizon    int           `mapstructure:"shadow_horizon"` // samples before a candidate is judged
	RetrainInterval  time.Duration `mapstructure:"retrain_interval"`
	TrainingTimeout  time.Duration `mapstructure:"training_timeout"`
	MinTrainingRows  int           `mapstructure:"min_training_rows"`
}

// DataConfig holds market data configuration.
type DataConfig struct {
	CSVPath     string `mapstructure:"csv_path"`
	HistoryBars int    `mapstructure:"history_bars"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ensemble-trader"
	}
	return filepath.Join(home, ".config", "ensemble-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := createTemplateConfig(configDir); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.symbol", "NIFTY50")
	v.SetDefault("trading.exchange", "NSE")
	v.SetDefault("trading.tick_interval", time.Hour)
	v.SetDefault("trading.broker_timeout", 10*time.Second)

	v.SetDefault("ensemble.confidence_threshold", 0.75)

	v.SetDefault("risk.initial_capital", 100000.0)
	v.SetDefault("risk.risk_fraction", 0.5)
	v.SetDefault("risk.payoff_ratio", 1.5)
	v.SetDefault("risk.max_position_fraction", 0.25)
	v.SetDefault("risk.max_drawdown", 0.12)
	v.SetDefault("risk.stop_loss_atr", 2.0)
	v.SetDefault("risk.take_profit_atr", 3.0)

	v.SetDefault("healing.retrain_threshold", 0.70)
	v.SetDefault("healing.window_capacity", 100)
	v.SetDefault("healing.min_samples", 20)
	v.SetDefault("healing.shadow_horizon", 30)
	v.SetDefault("healing.retrain_interval", 7*24*time.Hour)
	v.SetDefault("healing.training_timeout", 5*time.Minute)
	v.SetDefault("healing.min_training_rows", 100)

	v.SetDefault("data.csv_path", filepath.Join(DefaultConfigDir(), "bars.csv"))
	v.SetDefault("data.history_bars", 500)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}

	if c.Ensemble.ConfidenceThreshold < 0 || c.Ensemble.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1")
	}
	if c.Healing.RetrainThreshold < 0 || c.Healing.RetrainThreshold > 1 {
		return fmt.Errorf("retrain_threshold must be between 0 and 1")
	}
	if c.Healing.MinSamples <= 0 {
		return fmt.Errorf("min_samples must be positive")
	}
	if c.Healing.WindowCapacity < c.Healing.MinSamples {
		return fmt.Errorf("window_capacity must be at least min_samples")
	}
	if c.Healing.ShadowHorizon <= 0 {
		return fmt.Errorf("shadow_horizon must be positive")
	}

	if c.Risk.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if c.Risk.MaxPositionFraction <= 0 || c.Risk.MaxPositionFraction > 1 {
		return fmt.Errorf("max_position_fraction must be in (0, 1]")
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		return fmt.Errorf("max_drawdown must be in (0, 1)")
	}
	if c.Risk.PayoffRatio <= 0 {
		return fmt.Errorf("payoff_ratio must be positive")
	}
	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction > 1 {
		return fmt.Errorf("risk_fraction must be in (0, 1]")
	}

	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode != "live"
}
