package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Trading: TradingConfig{
			Mode:          "paper",
			Symbol:        "NIFTY50",
			Exchange:      "NSE",
			TickInterval:  time.Hour,
			BrokerTimeout: 10 * time.Second,
		},
		Ensemble: EnsembleConfig{ConfidenceThreshold: 0.75},
		Risk: RiskConfig{
			InitialCapital:      100000,
			RiskFraction:        0.5,
			PayoffRatio:         1.5,
			MaxPositionFraction: 0.25,
			MaxDrawdown:         0.12,
			StopLossATR:         2.0,
			TakeProfitATR:       3.0,
		},
		Healing: HealingConfig{
			RetrainThreshold: 0.70,
			WindowCapacity:   100,
			MinSamples:       20,
			ShadowHorizon:    30,
			RetrainInterval:  7 * 24 * time.Hour,
			TrainingTimeout:  5 * time.Minute,
			MinTrainingRows:  100,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Trading.Mode = "backtest" }},
		{"confidence above one", func(c *Config) { c.Ensemble.ConfidenceThreshold = 1.5 }},
		{"zero capital", func(c *Config) { c.Risk.InitialCapital = 0 }},
		{"drawdown of one", func(c *Config) { c.Risk.MaxDrawdown = 1.0 }},
		{"zero payoff", func(c *Config) { c.Risk.PayoffRatio = 0 }},
		{"position fraction above one", func(c *Config) { c.Risk.MaxPositionFraction = 1.1 }},
		{"window smaller than min samples", func(c *Config) { c.Healing.WindowCapacity = 10 }},
		{"zero min samples", func(c *Config) { c.Healing.MinSamples = 0 }},
		{"zero shadow horizon", func(c *Config) { c.Healing.ShadowHorizon = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIsPaperMode(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsPaperMode() {
		t.Fatal("paper mode not detected")
	}
	cfg.Trading.Mode = "live"
	if cfg.IsPaperMode() {
		t.Fatal("live mode treated as paper")
	}
}
