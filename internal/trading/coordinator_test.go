package trading

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ensemble-trader/internal/accuracy"
	"ensemble-trader/internal/broker"
	"ensemble-trader/internal/config"
	"ensemble-trader/internal/data"
	"ensemble-trader/internal/ensemble"
	"ensemble-trader/internal/healing"
	"ensemble-trader/internal/models"
	"ensemble-trader/internal/resilience"
	"ensemble-trader/internal/risk"
)

// stubFeatures emits a fixed vector regardless of history so ticks never
// stall on indicator warmup.
type stubFeatures struct{}

func (stubFeatures) ComputeFeatures(candles []models.Candle) (models.FeatureVector, error) {
	return models.FeatureVector{
		Timestamp: candles[len(candles)-1].Timestamp,
		Names:     []string{"momentum", "atr"},
		Values:    []float64{1.0, 2.0},
	}, nil
}

// fixedModel always votes the same class with the same probability.
type fixedModel struct {
	id    string
	class models.Class
	prob  float64
}

func (m fixedModel) ID() string { return m.id }

func (m fixedModel) Predict(fv models.FeatureVector) (models.BaseVote, error) {
	return models.BaseVote{ModelID: m.id, Class: m.class, Probability: m.prob}, nil
}

type failTrainer struct{}

func (failTrainer) Train(ctx context.Context, candles []models.Candle) (*healing.TrainResult, error) {
	return nil, fmt.Errorf("training disabled in test")
}

// failBroker errors on every market call.
type failBroker struct{}

func (failBroker) Name() string { return "fail" }

func (failBroker) GetLatestBar(ctx context.Context, symbol string) (models.Candle, error) {
	return models.Candle{}, fmt.Errorf("feed down")
}

func (failBroker) GetHistorical(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	return nil, fmt.Errorf("feed down")
}

func (failBroker) PlaceOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	return nil, fmt.Errorf("feed down")
}

func (failBroker) GetBalance(ctx context.Context) (*models.Balance, error) {
	return nil, fmt.Errorf("feed down")
}

func testTradingConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Mode:          "paper",
			Symbol:        "NIFTY50",
			BrokerTimeout: time.Second,
		},
		Ensemble: config.EnsembleConfig{ConfidenceThreshold: 0.75},
		Risk: config.RiskConfig{
			InitialCapital:      100000,
			RiskFraction:        0.5,
			PayoffRatio:         1.5,
			MaxPositionFraction: 0.25,
			MaxDrawdown:         0.12,
			StopLossATR:         2.0,
			TakeProfitATR:       3.0,
		},
		Healing: config.HealingConfig{
			RetrainThreshold: 0.70,
			WindowCapacity:   100,
			MinSamples:       20,
			ShadowHorizon:    30,
			TrainingTimeout:  time.Second,
		},
	}
}

type fixture struct {
	coord      *Coordinator
	state      *risk.State
	gate       *risk.Gate
	tracker    *accuracy.Tracker
	controller *healing.Controller
	pool       *ensemble.Pool
}

// newFixture wires a coordinator around the given market feed with two base
// models that always vote UP at the given probability.
func newFixture(market broker.Broker, prob float64) *fixture {
	cfg := testTradingConfig()
	logger := zerolog.Nop()

	modelSet := []ensemble.Model{
		fixedModel{id: "m1", class: models.ClassUp, prob: prob},
		fixedModel{id: "m2", class: models.ClassUp, prob: prob},
	}
	pool := ensemble.NewPool(modelSet, 0.8, 0.75)
	tracker := accuracy.NewTracker(cfg.Healing.WindowCapacity, cfg.Healing.MinSamples)
	controller := healing.NewController(pool, tracker, failTrainer{}, healing.Options{
		RetrainThreshold: cfg.Healing.RetrainThreshold,
		ShadowHorizon:    cfg.Healing.ShadowHorizon,
		TrainingTimeout:  cfg.Healing.TrainingTimeout,
	}, logger)

	state := risk.NewState(cfg.Risk.InitialCapital, cfg.Risk.MaxDrawdown)
	gate := risk.NewGate(state, cfg.Risk)

	coord := NewCoordinator(Deps{
		Config:     cfg,
		Logger:     logger,
		Broker:     market,
		Breaker:    resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: time.Second}),
		History:    data.NewHistory(500),
		Features:   stubFeatures{},
		Pool:       pool,
		Aggregator: ensemble.NewAggregator(cfg.Ensemble.ConfidenceThreshold),
		Tracker:    tracker,
		Controller: controller,
		RiskState:  state,
		Gate:       gate,
	})

	return &fixture{coord: coord, state: state, gate: gate, tracker: tracker, controller: controller, pool: pool}
}

func bar(day int, close, high, low float64) models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Candle{
		Timestamp: start.AddDate(0, 0, day),
		Open:      close,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

func risingBars(n int) []models.Candle {
	bars := make([]models.Candle, n)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = bar(i, price, price+1, price-1)
	}
	return bars
}

func paperOver(bars []models.Candle, state *risk.State) *broker.PaperBroker {
	return broker.NewPaperBroker(data.NewReplaySource(bars), state.Capital)
}

func TestTickScoresPreviousPrediction(t *testing.T) {
	// 0.6 up-votes: raw BUY, below the threshold, so no trades happen but
	// outcomes still accrue.
	f := newFixture(nil, 0.6)
	f.coord.market = paperOver(risingBars(5), f.state)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.coord.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	// The first tick has no pending prediction to score.
	if n := f.tracker.SampleCount(1, accuracy.EnsembleModelID); n != 2 {
		t.Fatalf("ensemble samples = %d, want 2", n)
	}
	if n := f.tracker.SampleCount(1, "m1"); n != 2 {
		t.Fatalf("model samples = %d, want 2", n)
	}
	if pos := f.gate.Position(); pos != nil {
		t.Fatalf("unexpected position: %+v", pos)
	}
}

func TestWeakSignalNeverTrades(t *testing.T) {
	f := newFixture(nil, 0.6)
	f.coord.market = paperOver(risingBars(8), f.state)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := f.coord.Tick(ctx); err != nil {
			t.Fatal(err)
		}
	}

	if f.state.Capital() != 100000 {
		t.Fatalf("capital = %.2f, want untouched", f.state.Capital())
	}
	if wins, losses := f.state.TradeStats(); wins+losses != 0 {
		t.Fatalf("trades settled = %d, want 0", wins+losses)
	}
}

func TestStrongSignalOpensAndExitsPosition(t *testing.T) {
	bars := []models.Candle{
		bar(0, 100, 101, 99),
		bar(1, 100, 101, 99),
		bar(2, 100, 107, 99), // crosses the take profit at 106
	}
	f := newFixture(nil, 0.9)
	f.coord.market = paperOver(bars, f.state)
	ctx := context.Background()

	if err := f.coord.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	pos := f.gate.Position()
	if pos == nil {
		t.Fatal("no position after strong signal")
	}
	// Kelly: edge = 0.9 - 0.1/1.5, value capped at 25% of capital, 250
	// units at 100. ATR 2 brackets: stop 96, take 106.
	if pos.Quantity != 250 || pos.EntryPrice != 100 {
		t.Fatalf("position = %d @ %.2f, want 250 @ 100", pos.Quantity, pos.EntryPrice)
	}
	if pos.StopLoss != 96 || pos.TakeProfit != 106 {
		t.Fatalf("brackets = %.2f/%.2f, want 96/106", pos.StopLoss, pos.TakeProfit)
	}

	// Second bar stays inside the brackets; entry is blocked by the open
	// position.
	if err := f.coord.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if f.gate.Position() == nil {
		t.Fatal("position closed without crossing a bracket")
	}

	// Third bar's high crosses the take profit. The exit settles before the
	// new signal is evaluated, so the same tick re-enters at the grown
	// capital.
	if err := f.coord.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.state.Capital(); got != 101500 {
		t.Fatalf("capital = %.2f, want 101500 after 250 x 6 profit", got)
	}
	if wins, _ := f.state.TradeStats(); wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	reentry := f.gate.Position()
	if reentry == nil {
		t.Fatal("no re-entry after the winning exit")
	}
	if reentry.Quantity != 253 {
		t.Fatalf("re-entry quantity = %d, want 253 at the larger capital", reentry.Quantity)
	}
}

func TestBrokerFailureSkipsTick(t *testing.T) {
	f := newFixture(failBroker{}, 0.9)
	ctx := context.Background()

	if err := f.coord.Tick(ctx); err == nil {
		t.Fatal("expected error from failing feed")
	}

	if f.coord.Ticks() != 1 {
		t.Fatalf("ticks = %d, want 1", f.coord.Ticks())
	}
	if f.controller.State() != healing.StateActiveStable {
		t.Fatalf("controller state = %s, want ACTIVE_STABLE", f.controller.State())
	}
	if f.tracker.SampleCount(1, accuracy.EnsembleModelID) != 0 {
		t.Fatal("outcomes recorded on a skipped tick")
	}
}

func TestDrawdownHaltPropagatesToController(t *testing.T) {
	f := newFixture(nil, 0.9)
	f.coord.market = paperOver(risingBars(4), f.state)
	ctx := context.Background()

	// Trip the latch: a 13% loss breaches the 12% limit.
	f.state.RecordTrade(models.Trade{PnL: -13000})
	if !f.state.Halted() {
		t.Fatal("latch did not trip")
	}

	if err := f.coord.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	if f.controller.State() != healing.StateHalted {
		t.Fatalf("controller state = %s, want HALTED", f.controller.State())
	}
	if f.gate.Position() != nil {
		t.Fatal("position opened while halted")
	}

	f.coord.ResumeTrading()
	if f.state.Halted() {
		t.Fatal("latch still set after resume")
	}
	if f.controller.State() != healing.StateActiveStable {
		t.Fatalf("controller state = %s, want ACTIVE_STABLE after resume", f.controller.State())
	}
}

func TestRunStopsWhenReplayExhausted(t *testing.T) {
	f := newFixture(nil, 0.6)
	f.coord.market = paperOver(risingBars(5), f.state)

	if err := f.coord.Run(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	// Five data ticks plus the exhaustion tick that ends the run.
	if f.coord.Ticks() != 6 {
		t.Fatalf("ticks = %d, want 6", f.coord.Ticks())
	}
}

func TestStatusReflectsEngine(t *testing.T) {
	f := newFixture(nil, 0.6)
	f.coord.market = paperOver(risingBars(3), f.state)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.coord.Tick(ctx); err != nil {
			t.Fatal(err)
		}
	}

	st := f.coord.Status()
	if st.State != healing.StateActiveStable {
		t.Fatalf("state = %s", st.State)
	}
	if st.ActiveVersion.ID != 1 || st.ActiveVersion.Status != models.VersionActive {
		t.Fatalf("active version = %+v", st.ActiveVersion)
	}
	if st.ShadowVersion != nil {
		t.Fatal("unexpected shadow version")
	}
	if st.Risk.Capital != 100000 {
		t.Fatalf("risk capital = %.2f", st.Risk.Capital)
	}
	if st.Ticks != 3 {
		t.Fatalf("ticks = %d, want 3", st.Ticks)
	}
}
