// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"ensemble-trader/internal/models"
)

// DataStore defines the interface for engine persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)

	// Model versions
	SaveVersion(ctx context.Context, version models.ModelVersion) error
	GetVersions(ctx context.Context) ([]models.ModelVersion, error)

	// Trades
	LogTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)

	// Accuracy snapshots
	SaveAccuracySnapshot(ctx context.Context, snap AccuracySnapshot) error
	GetAccuracySnapshots(ctx context.Context, versionID int64, limit int) ([]AccuracySnapshot, error)

	// Risk snapshots
	SaveRiskSnapshot(ctx context.Context, snap models.RiskSnapshot) error
	GetLatestRiskSnapshot(ctx context.Context) (*models.RiskSnapshot, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol    string
	VersionID int64
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// AccuracySnapshot is a persisted point-in-time accuracy reading.
type AccuracySnapshot struct {
	VersionID int64
	ModelID   string
	Accuracy  float64
	Samples   int
	Timestamp time.Time
}
