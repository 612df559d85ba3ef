// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "ensemble-trader", "logs", "trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithVersion adds a model version to the logger context.
func WithVersion(logger zerolog.Logger, versionID int64) zerolog.Logger {
	return logger.With().Int64("version", versionID).Logger()
}

// LogSignal logs an ensemble signal.
func LogSignal(logger zerolog.Logger, direction string, confidence float64, versionID int64) {
	logger.Info().
		Str("event", "signal").
		Str("direction", direction).
		Float64("confidence", confidence).
		Int64("version", versionID).
		Msg("Ensemble signal")
}

// LogTransition logs a self-healing state transition with its reason.
func LogTransition(logger zerolog.Logger, from, to, reason string) {
	logger.Info().
		Str("event", "transition").
		Str("from", from).
		Str("to", to).
		Str("reason", reason).
		Msg("Controller state transition")
}

// LogRejection logs a risk gate rejection. Rejections are deliberate
// non-trade decisions, not errors, so they log at info level.
func LogRejection(logger zerolog.Logger, reason, detail string) {
	logger.Info().
		Str("event", "rejection").
		Str("reason", reason).
		Str("detail", detail).
		Msg("Signal rejected")
}

// LogTrade logs a closed trade.
func LogTrade(logger zerolog.Logger, symbol, side string, qty int, entry, exit, pnl float64) {
	logger.Info().
		Str("event", "trade").
		Str("symbol", symbol).
		Str("side", side).
		Int("quantity", qty).
		Float64("entry", entry).
		Float64("exit", exit).
		Float64("pnl", pnl).
		Msg("Trade closed")
}

// LogRetrain logs a retraining outcome.
func LogRetrain(logger zerolog.Logger, versionID int64, trainAcc, testAcc float64, err error) {
	event := logger.Info().
		Str("event", "retrain").
		Int64("version", versionID).
		Float64("train_accuracy", trainAcc).
		Float64("test_accuracy", testAcc)

	if err != nil {
		logger.Warn().Str("event", "retrain").Err(err).Msg("Retraining failed")
		return
	}
	event.Msg("Retraining completed")
}
