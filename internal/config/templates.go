package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# ensemble-trader configuration

[trading]
mode = "paper"            # "live" or "paper"
symbol = "NIFTY50"
exchange = "NSE"
tick_interval = "1h"
broker_timeout = "10s"

[ensemble]
# Signals with confidence below this are forced to HOLD.
confidence_threshold = 0.75

[risk]
initial_capital = 100000.0
risk_fraction = 0.5          # fractional Kelly multiplier
payoff_ratio = 1.5           # assumed win/loss ratio until trade history accrues
max_position_fraction = 0.25 # hard cap: position value / capital
max_drawdown = 0.12          # trading halts past this drawdown from peak equity
stop_loss_atr = 2.0
take_profit_atr = 3.0

[healing]
# Rolling accuracy below this (with enough samples) triggers retraining.
# Independent of ensemble.confidence_threshold.
retrain_threshold = 0.70
window_capacity = 100
min_samples = 20
shadow_horizon = 30
retrain_interval = "168h"   # scheduled weekly retrain
training_timeout = "5m"
min_training_rows = 100

[data]
csv_path = ""               # defaults to <config dir>/bars.csv
history_bars = 500
`

const credentialsTemplate = `# ensemble-trader credentials
# Only required for live mode.

[kite]
api_key = ""
access_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	// Credentials are written with restricted permissions.
	return os.WriteFile(path, []byte(credentialsTemplate), 0600)
}
