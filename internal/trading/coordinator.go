// Package trading wires the market feed, the ensemble, the healing
// controller and the risk gate into the per-bar decision loop.
package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ensemble-trader/internal/accuracy"
	"ensemble-trader/internal/broker"
	"ensemble-trader/internal/config"
	"ensemble-trader/internal/data"
	"ensemble-trader/internal/ensemble"
	"ensemble-trader/internal/errors"
	"ensemble-trader/internal/features"
	"ensemble-trader/internal/healing"
	"ensemble-trader/internal/logging"
	"ensemble-trader/internal/models"
	"ensemble-trader/internal/resilience"
	"ensemble-trader/internal/risk"
	"ensemble-trader/internal/store"
)

// pendingPrediction is a signal awaiting its outcome on the next bar.
type pendingPrediction struct {
	versionID int64
	signal    models.EnsembleSignal
	close     float64
}

// Coordinator runs the tick loop. Each tick is one pass: resolve the
// previous prediction, advance the healing controller, manage exits, then
// evaluate a new entry. A broker failure anywhere in the pass skips the rest
// of the tick and leaves all state untouched; the next bar starts clean.
type Coordinator struct {
	cfg        *config.Config
	logger     zerolog.Logger
	market     broker.Broker
	breaker    *resilience.CircuitBreaker
	history    *data.History
	source     features.Source
	pool       *ensemble.Pool
	aggregator *ensemble.Aggregator
	tracker    *accuracy.Tracker
	controller *healing.Controller
	riskState  *risk.State
	gate       *risk.Gate
	db         store.DataStore

	mu            sync.Mutex
	pending       *pendingPrediction
	pendingShadow *pendingPrediction
	ticks         int
}

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Broker     broker.Broker
	Breaker    *resilience.CircuitBreaker
	History    *data.History
	Features   features.Source
	Pool       *ensemble.Pool
	Aggregator *ensemble.Aggregator
	Tracker    *accuracy.Tracker
	Controller *healing.Controller
	RiskState  *risk.State
	Gate       *risk.Gate
	Store      store.DataStore
}

// NewCoordinator creates the tick loop coordinator.
func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{
		cfg:        deps.Config,
		logger:     logging.WithSymbol(deps.Logger, deps.Config.Trading.Symbol),
		market:     deps.Broker,
		breaker:    deps.Breaker,
		history:    deps.History,
		source:     deps.Features,
		pool:       deps.Pool,
		aggregator: deps.Aggregator,
		tracker:    deps.Tracker,
		controller: deps.Controller,
		riskState:  deps.RiskState,
		gate:       deps.Gate,
		db:         deps.Store,
	}
}

// Tick executes one full pass of the decision loop on the next bar.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++

	bar, err := resilience.ExecuteWithResult(c.breaker, ctx, func() (models.Candle, error) {
		bctx, cancel := context.WithTimeout(ctx, c.cfg.Trading.BrokerTimeout)
		defer cancel()
		return c.market.GetLatestBar(bctx, c.cfg.Trading.Symbol)
	})
	if err != nil {
		if errors.Is(err, errors.ErrDataUnavailable) {
			return err
		}
		c.logger.Warn().Err(err).Msg("Bar fetch failed, skipping tick")
		return err
	}

	c.resolvePending(ctx, bar)
	c.history.Append(bar)
	c.controller.OnAccuracyUpdate(c.history.Snapshot())
	c.syncHalt()

	if err := c.manageExits(ctx, bar); err != nil {
		c.logger.Warn().Err(err).Msg("Exit handling failed, skipping tick")
		return err
	}

	signal, atr, ok := c.evaluateSignal(bar)
	if !ok {
		c.persistSnapshots(ctx)
		return nil
	}

	if err := c.handleSignal(ctx, signal, bar, atr); err != nil {
		c.logger.Warn().Err(err).Msg("Order placement failed, skipping tick")
		return err
	}

	c.persistSnapshots(ctx)
	return nil
}

// resolvePending scores the previous tick's predictions against the bar
// that just arrived. Outcomes accrue for the active version and, when one is
// shadowing, the shadow version, regardless of whether a trade happened.
func (c *Coordinator) resolvePending(ctx context.Context, bar models.Candle) {
	for _, p := range []*pendingPrediction{c.pending, c.pendingShadow} {
		if p == nil {
			continue
		}

		actual := models.ClassDown
		if bar.Close > p.close {
			actual = models.ClassUp
		}

		for _, vote := range p.signal.Votes {
			c.tracker.Record(p.versionID, vote.ModelID, bar.Timestamp, vote.Class == actual)
		}

		// RawDirection is HOLD only on an exact tie, which has no
		// defined outcome.
		if p.signal.RawDirection != models.DirectionHold {
			correct := p.signal.RawDirection == actual.Direction()
			c.tracker.Record(p.versionID, accuracy.EnsembleModelID, bar.Timestamp, correct)
		}

		if acc, ok := c.tracker.RollingAccuracy(p.versionID, accuracy.EnsembleModelID); ok && c.db != nil {
			snap := store.AccuracySnapshot{
				VersionID: p.versionID,
				ModelID:   accuracy.EnsembleModelID,
				Accuracy:  acc,
				Samples:   c.tracker.SampleCount(p.versionID, accuracy.EnsembleModelID),
				Timestamp: bar.Timestamp,
			}
			if err := c.db.SaveAccuracySnapshot(ctx, snap); err != nil {
				c.logger.Debug().Err(err).Msg("Accuracy snapshot persist failed")
			}
		}
	}

	c.pending = nil
	c.pendingShadow = nil
}

// syncHalt propagates a tripped drawdown latch into the healing controller.
func (c *Coordinator) syncHalt() {
	if c.riskState.Halted() && c.controller.State() != healing.StateHalted {
		c.controller.Halt(fmt.Sprintf("drawdown %.2f%% breached limit", c.riskState.Drawdown()*100))
	}
}

// manageExits closes the open position when the bar crossed its stop or
// target.
func (c *Coordinator) manageExits(ctx context.Context, bar models.Candle) error {
	price, reason, ok := c.gate.CheckExit(bar)
	if !ok {
		return nil
	}
	return c.closePosition(ctx, price, reason, bar.Timestamp)
}

// closePosition sends the closing order and settles the trade locally. A
// broker failure leaves the position open for the next tick.
func (c *Coordinator) closePosition(ctx context.Context, price float64, reason string, ts time.Time) error {
	position := c.gate.Position()
	if position == nil {
		return nil
	}

	side := models.OrderSideSell
	if position.Side == models.OrderSideSell {
		side = models.OrderSideBuy
	}
	order := &models.Order{
		Symbol:   position.Symbol,
		Side:     side,
		Quantity: position.Quantity,
		Price:    price,
		Tag:      fmt.Sprintf("exit-%s", reason),
	}

	_, err := resilience.ExecuteWithResult(c.breaker, ctx, func() (*models.OrderResult, error) {
		bctx, cancel := context.WithTimeout(ctx, c.cfg.Trading.BrokerTimeout)
		defer cancel()
		return c.market.PlaceOrder(bctx, order)
	})
	if err != nil {
		return errors.Wrap(err, "closing order")
	}

	trade, err := c.gate.ClosePosition(price, reason, ts)
	if err != nil {
		return err
	}

	logging.LogTrade(c.logger, trade.Symbol, string(trade.Side), trade.Quantity, trade.EntryPrice, trade.ExitPrice, trade.PnL)
	if c.db != nil {
		if err := c.db.LogTrade(ctx, trade); err != nil {
			c.logger.Debug().Err(err).Msg("Trade persist failed")
		}
	}
	return nil
}

// evaluateSignal computes this bar's signal for the active version and, when
// one is shadowing, the shadow version. Both are registered as pending for
// resolution on the next bar.
func (c *Coordinator) evaluateSignal(bar models.Candle) (models.EnsembleSignal, float64, bool) {
	fv, err := c.source.ComputeFeatures(c.history.Snapshot())
	if err != nil {
		c.logger.Debug().Err(err).Msg("Insufficient history for features")
		return models.EnsembleSignal{}, 0, false
	}
	atr, _ := fv.Get(features.FeatureATR)

	active := c.pool.Active()
	if active == nil {
		return models.EnsembleSignal{}, 0, false
	}

	votes, err := c.pool.Predict(active, fv)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Active prediction failed")
		return models.EnsembleSignal{}, 0, false
	}

	signal := c.aggregator.Aggregate(active.Meta.ID, votes, c.tracker.RollingAccuracy, bar.Timestamp)
	logging.LogSignal(c.logger, string(signal.Direction), signal.Confidence, signal.VersionID)
	c.pending = &pendingPrediction{versionID: active.Meta.ID, signal: signal, close: bar.Close}

	if shadow := c.pool.Shadow(); shadow != nil {
		if shadowVotes, err := c.pool.Predict(shadow, fv); err == nil {
			shadowSignal := c.aggregator.Aggregate(shadow.Meta.ID, shadowVotes, c.tracker.RollingAccuracy, bar.Timestamp)
			c.pendingShadow = &pendingPrediction{versionID: shadow.Meta.ID, signal: shadowSignal, close: bar.Close}
		} else {
			c.logger.Warn().Err(err).Msg("Shadow prediction failed")
		}
	}

	return signal, atr, true
}

// handleSignal turns the signal into position changes: a reversal closes
// the opposite position first, then the gate decides whether to enter.
func (c *Coordinator) handleSignal(ctx context.Context, signal models.EnsembleSignal, bar models.Candle, atr float64) error {
	if position := c.gate.Position(); position != nil && signal.Direction != models.DirectionHold {
		opposite := (position.Side == models.OrderSideBuy && signal.Direction == models.DirectionSell) ||
			(position.Side == models.OrderSideSell && signal.Direction == models.DirectionBuy)
		if opposite {
			if err := c.closePosition(ctx, bar.Close, risk.ExitReversal, bar.Timestamp); err != nil {
				return err
			}
		}
	}

	order, rejection := c.gate.Evaluate(signal, c.cfg.Trading.Symbol, bar.Close, atr)
	if rejection != nil {
		logging.LogRejection(c.logger, rejection.Reason, rejection.Detail)
		return nil
	}

	result, err := resilience.ExecuteWithResult(c.breaker, ctx, func() (*models.OrderResult, error) {
		bctx, cancel := context.WithTimeout(ctx, c.cfg.Trading.BrokerTimeout)
		defer cancel()
		return c.market.PlaceOrder(bctx, order)
	})
	if err != nil {
		return errors.Wrap(err, "entry order")
	}

	fill := order.AvgPrice
	if fill == 0 {
		fill = bar.Close
	}
	c.gate.OpenPosition(order, fill, signal, bar.Timestamp)

	c.logger.Info().
		Str("order_id", result.OrderID).
		Str("side", string(order.Side)).
		Int("quantity", order.Quantity).
		Float64("price", fill).
		Float64("stop_loss", order.StopLoss).
		Float64("take_profit", order.TakeProfit).
		Msg("Position opened")
	return nil
}

// persistSnapshots writes the current risk state and version registry.
func (c *Coordinator) persistSnapshots(ctx context.Context) {
	if c.db == nil {
		return
	}
	if err := c.db.SaveRiskSnapshot(ctx, c.riskState.Snapshot()); err != nil {
		c.logger.Debug().Err(err).Msg("Risk snapshot persist failed")
	}
	for _, v := range c.pool.Registry() {
		if err := c.db.SaveVersion(ctx, v); err != nil {
			c.logger.Debug().Err(err).Msg("Version persist failed")
		}
	}
}

// Run drives Tick until the context ends, the data source is exhausted, or
// maxCycles ticks have run (0 means unlimited). In paper mode with a zero
// interval the loop runs back to back for fast replays.
func (c *Coordinator) Run(ctx context.Context, maxCycles int) error {
	interval := c.cfg.Trading.TickInterval
	if c.cfg.IsPaperMode() {
		interval = 0
	}

	for cycles := 0; maxCycles == 0 || cycles < maxCycles; cycles++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.Tick(ctx); err != nil {
			if errors.Is(err, errors.ErrDataUnavailable) {
				c.logger.Info().Int("ticks", c.Ticks()).Msg("Data source exhausted, stopping")
				return nil
			}
			// Skipped tick; keep going.
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil
}

// Ticks returns the number of ticks attempted.
func (c *Coordinator) Ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Status is a point-in-time view of the engine for the status command.
type Status struct {
	State         healing.State
	ActiveVersion models.ModelVersion
	ShadowVersion *models.ModelVersion
	Accuracy      float64
	AccuracyOK    bool
	Risk          models.RiskSnapshot
	Position      *models.Position
	Breaker       resilience.CircuitBreakerStats
	Ticks         int
}

// Status reports the engine's current state.
func (c *Coordinator) Status() Status {
	active := c.pool.Active()

	st := Status{
		State:    c.controller.State(),
		Risk:     c.riskState.Snapshot(),
		Position: c.gate.Position(),
		Breaker:  c.breaker.Stats(),
		Ticks:    c.Ticks(),
	}
	if active != nil {
		st.ActiveVersion = active.Meta
		st.Accuracy, st.AccuracyOK = c.tracker.RollingAccuracy(active.Meta.ID, accuracy.EnsembleModelID)
	}
	if shadow := c.pool.Shadow(); shadow != nil {
		meta := shadow.Meta
		st.ShadowVersion = &meta
	}
	return st
}

// ResumeTrading clears the drawdown halt latch and returns the controller to
// normal operation. Operator action only.
func (c *Coordinator) ResumeTrading() {
	c.riskState.ResumeTrading()
	c.controller.Resume()
	c.logger.Info().Msg("Trading resumed by operator")
}
