package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"ensemble-trader/internal/config"
	"ensemble-trader/internal/errors"
	"ensemble-trader/internal/models"
)

// Rejection reasons returned by the gate.
const (
	ReasonHalted         = "HALTED"
	ReasonLowConfidence  = "LOW_CONFIDENCE"
	ReasonPositionExists = "POSITION_EXISTS"
)

// Exit reasons recorded on closed trades.
const (
	ExitStopLoss   = "STOP_LOSS"
	ExitTakeProfit = "TAKE_PROFIT"
	ExitReversal   = "REVERSAL"
	ExitManual     = "MANUAL"
)

// Rejection is a deliberate non-trade decision, not an error.
type Rejection struct {
	Reason string
	Detail string
}

// Gate sits between the signal and the broker. Every signal passes through
// Evaluate, which either produces a sized, stop-bracketed order or a
// rejection. The gate also owns the single open position per instrument.
type Gate struct {
	mu       sync.Mutex
	state    *State
	cfg      config.RiskConfig
	position *models.Position
}

// NewGate creates a gate bound to the shared risk state.
func NewGate(state *State, cfg config.RiskConfig) *Gate {
	return &Gate{state: state, cfg: cfg}
}

// Evaluate turns an actionable signal into an order, or explains why not.
// The checks run cheapest-first: halt latch, direction, existing position,
// then sizing.
func (g *Gate) Evaluate(signal models.EnsembleSignal, symbol string, price, atr float64) (*models.Order, *Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Halted() {
		return nil, &Rejection{
			Reason: ReasonHalted,
			Detail: fmt.Sprintf("drawdown %.2f%% breached halt threshold", g.state.Drawdown()*100),
		}
	}

	if signal.Direction == models.DirectionHold {
		return nil, &Rejection{
			Reason: ReasonLowConfidence,
			Detail: fmt.Sprintf("confidence %.4f below actionable threshold", signal.Confidence),
		}
	}

	if g.position != nil {
		return nil, &Rejection{
			Reason: ReasonPositionExists,
			Detail: fmt.Sprintf("open %s position on %s", g.position.Side, g.position.Symbol),
		}
	}

	qty := g.positionSize(signal.Confidence, price)
	if qty < 1 {
		return nil, &Rejection{
			Reason: ReasonLowConfidence,
			Detail: fmt.Sprintf("Kelly size below one unit at confidence %.4f", signal.Confidence),
		}
	}

	side := models.OrderSideBuy
	if signal.Direction == models.DirectionSell {
		side = models.OrderSideSell
	}
	stop, take := g.bracket(side, price, atr)

	return &models.Order{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		StopLoss:   stop,
		TakeProfit: take,
		Tag:        fmt.Sprintf("v%d", signal.VersionID),
	}, nil
}

// positionSize computes the fractional-Kelly position value and converts it
// to whole units, clamped to the per-position capital fraction cap.
func (g *Gate) positionSize(confidence, price float64) int {
	capital := g.state.Capital()
	payoff := g.state.PayoffRatio(g.cfg.PayoffRatio)

	edge := confidence - (1-confidence)/payoff
	if edge <= 0 {
		return 0
	}

	value := capital * g.cfg.RiskFraction * edge
	cap := capital * g.cfg.MaxPositionFraction
	if value > cap {
		value = cap
	}
	if price <= 0 {
		return 0
	}
	return int(math.Floor(value / price))
}

// bracket derives the protective stop and take-profit from ATR. The stop
// never moves more than 5% away from entry, regardless of volatility.
func (g *Gate) bracket(side models.OrderSide, price, atr float64) (stop, take float64) {
	if side == models.OrderSideBuy {
		stop = price - atr*g.cfg.StopLossATR
		if floor := price * 0.95; stop < floor {
			stop = floor
		}
		take = price + atr*g.cfg.TakeProfitATR
		return stop, take
	}

	stop = price + atr*g.cfg.StopLossATR
	if ceil := price * 1.05; stop > ceil {
		stop = ceil
	}
	take = price - atr*g.cfg.TakeProfitATR
	return stop, take
}

// OpenPosition records the fill of an accepted order.
func (g *Gate) OpenPosition(order *models.Order, fillPrice float64, signal models.EnsembleSignal, ts time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.position = &models.Position{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		EntryPrice: fillPrice,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
		OpenedAt:   ts,
		VersionID:  signal.VersionID,
		Confidence: signal.Confidence,
	}
}

// Position returns a copy of the open position, or nil.
func (g *Gate) Position() *models.Position {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.position == nil {
		return nil
	}
	p := *g.position
	return &p
}

// CheckExit reports whether the bar crossed the position's stop or target.
// It returns the exit price and reason; ok is false when the position should
// stay open. Stop checks run before target checks.
func (g *Gate) CheckExit(bar models.Candle) (price float64, reason string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.position == nil {
		return 0, "", false
	}

	if g.position.Side == models.OrderSideBuy {
		if bar.Low <= g.position.StopLoss {
			return g.position.StopLoss, ExitStopLoss, true
		}
		if bar.High >= g.position.TakeProfit {
			return g.position.TakeProfit, ExitTakeProfit, true
		}
		return 0, "", false
	}

	if bar.High >= g.position.StopLoss {
		return g.position.StopLoss, ExitStopLoss, true
	}
	if bar.Low <= g.position.TakeProfit {
		return g.position.TakeProfit, ExitTakeProfit, true
	}
	return 0, "", false
}

// ClosePosition settles the open position at the given price, records the
// trade's PnL in the risk state and returns the closed trade.
func (g *Gate) ClosePosition(price float64, reason string, ts time.Time) (*models.Trade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.position == nil {
		return nil, errors.ErrPositionNotFound
	}

	p := g.position
	pnl := (price - p.EntryPrice) * float64(p.Quantity)
	if p.Side == models.OrderSideSell {
		pnl = -pnl
	}

	pnlPct := 0.0
	if p.EntryPrice > 0 {
		pnlPct = pnl / (p.EntryPrice * float64(p.Quantity)) * 100
	}

	trade := &models.Trade{
		Symbol:     p.Symbol,
		Side:       p.Side,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		ExitPrice:  price,
		PnL:        pnl,
		PnLPercent: pnlPct,
		Reason:     reason,
		VersionID:  p.VersionID,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   ts,
	}

	g.position = nil
	g.state.RecordTrade(*trade)
	return trade, nil
}
