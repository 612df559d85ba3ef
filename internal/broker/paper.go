package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ensemble-trader/internal/data"
	"ensemble-trader/internal/errors"
	"ensemble-trader/internal/models"
)

// PaperBroker simulates market access from a recorded bar series. Each
// GetLatestBar call advances the replay by one bar; orders fill instantly at
// the requested price with no slippage.
type PaperBroker struct {
	mu      sync.Mutex
	source  *data.ReplaySource
	capital func() float64
	lastBar models.Candle
	hasBar  bool
	nextID  int
}

// NewPaperBroker creates a paper broker over a replay source. capital
// supplies the simulated account equity for GetBalance.
func NewPaperBroker(source *data.ReplaySource, capital func() float64) *PaperBroker {
	return &PaperBroker{source: source, capital: capital, nextID: 1}
}

// Name identifies the implementation in logs.
func (p *PaperBroker) Name() string { return "paper" }

// GetLatestBar advances the replay and returns the next bar. When the series
// is exhausted it reports ErrDataUnavailable, which ends a backtest run.
func (p *PaperBroker) GetLatestBar(ctx context.Context, symbol string) (models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return models.Candle{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.source.Next()
	if !ok {
		return models.Candle{}, errors.NewBrokerError("get_latest_bar", symbol, "replay exhausted", errors.ErrDataUnavailable)
	}
	p.lastBar = bar
	p.hasBar = true
	return bar, nil
}

// GetHistorical is not supported in replay mode; history is seeded from the
// CSV before the run starts.
func (p *PaperBroker) GetHistorical(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	return nil, errors.NewBrokerError("get_historical", symbol, "not available in paper mode", errors.ErrDataUnavailable)
}

// PlaceOrder fills the order immediately at its limit price.
func (p *PaperBroker) PlaceOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order.Quantity <= 0 {
		return nil, errors.NewBrokerError("place_order", order.Symbol, "quantity must be positive", errors.ErrOrderRejected)
	}

	p.mu.Lock()
	id := fmt.Sprintf("PAPER-%06d", p.nextID)
	p.nextID++
	p.mu.Unlock()

	order.ID = id
	order.Status = "COMPLETE"
	order.FilledQty = order.Quantity
	order.AvgPrice = order.Price
	order.PlacedAt = time.Now()

	return &models.OrderResult{
		OrderID: id,
		Status:  "COMPLETE",
		Message: "paper fill",
	}, nil
}

// GetBalance reports the simulated account equity.
func (p *PaperBroker) GetBalance(ctx context.Context) (*models.Balance, error) {
	equity := p.capital()
	return &models.Balance{
		AvailableCash: equity,
		TotalEquity:   equity,
	}, nil
}

// Remaining reports how many replay bars are left.
func (p *PaperBroker) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source.Remaining()
}
