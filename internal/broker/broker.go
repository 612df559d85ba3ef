// Package broker provides market access implementations behind a single
// interface: a replay-driven paper broker for simulation and a Kite Connect
// adapter for live trading.
package broker

import (
	"context"
	"time"

	"ensemble-trader/internal/models"
)

// Broker is the market access surface the trading loop depends on. Every
// call takes a context so the loop can bound broker latency; a failed call
// means the tick is skipped, never retried within the same tick.
type Broker interface {
	Name() string

	// GetLatestBar returns the newest completed bar for the symbol.
	GetLatestBar(ctx context.Context, symbol string) (models.Candle, error)

	// GetHistorical returns bars for the range, oldest first.
	GetHistorical(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)

	// PlaceOrder submits an order for immediate execution.
	PlaceOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error)

	// GetBalance returns the account balance.
	GetBalance(ctx context.Context) (*models.Balance, error)
}
