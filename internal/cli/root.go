// Package cli provides the command-line interface for the trading engine.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ensemble-trader/internal/config"
	"ensemble-trader/internal/logging"
	"ensemble-trader/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dbPath := filepath.Join(config.DefaultConfigDir(), "trader.db")
	if dataStore, err := store.NewSQLiteStore(dbPath); err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, persistence disabled")
	} else {
		app.Store = dataStore
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Self-healing ensemble trading engine",
		Long: `An autonomous trading engine driven by an ensemble of ML classifiers.

The engine aggregates per-model votes into weighted trading signals, tracks
rolling prediction accuracy per model, retrains and shadow-evaluates new
model versions when accuracy degrades, and gates every trade through
Kelly-sized, drawdown-limited risk checks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/ensemble-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newVersionsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("ensemble-trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading")
	output.Printf("  Mode:          %s\n", cfg.Trading.Mode)
	output.Printf("  Symbol:        %s (%s)\n", cfg.Trading.Symbol, cfg.Trading.Exchange)
	output.Printf("  Tick Interval: %s\n", cfg.Trading.TickInterval)
	output.Println()

	output.Bold("Ensemble")
	output.Printf("  Confidence Threshold: %.2f\n", cfg.Ensemble.ConfidenceThreshold)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Initial Capital:    %.2f\n", cfg.Risk.InitialCapital)
	output.Printf("  Risk Fraction:      %.2f\n", cfg.Risk.RiskFraction)
	output.Printf("  Max Position Frac:  %.2f\n", cfg.Risk.MaxPositionFraction)
	output.Printf("  Max Drawdown:       %.0f%%\n", cfg.Risk.MaxDrawdown*100)
	output.Printf("  Stop Loss (ATR):    %.1fx\n", cfg.Risk.StopLossATR)
	output.Printf("  Take Profit (ATR):  %.1fx\n", cfg.Risk.TakeProfitATR)
	output.Println()

	output.Bold("Healing")
	output.Printf("  Retrain Threshold: %.2f\n", cfg.Healing.RetrainThreshold)
	output.Printf("  Window Capacity:   %d\n", cfg.Healing.WindowCapacity)
	output.Printf("  Min Samples:       %d\n", cfg.Healing.MinSamples)
	output.Printf("  Shadow Horizon:    %d\n", cfg.Healing.ShadowHorizon)
	output.Printf("  Retrain Interval:  %s\n", cfg.Healing.RetrainInterval)

	return nil
}
