package cli

import (
	"context"
	"fmt"
	"time"

	"ensemble-trader/internal/accuracy"
	"ensemble-trader/internal/broker"
	"ensemble-trader/internal/data"
	"ensemble-trader/internal/ensemble"
	"ensemble-trader/internal/features"
	"ensemble-trader/internal/healing"
	"ensemble-trader/internal/models"
	"ensemble-trader/internal/resilience"
	"ensemble-trader/internal/risk"
	"ensemble-trader/internal/trading"
	"ensemble-trader/pkg/utils"
)

// buildEngine assembles the full engine: initial training on the warmup
// history, version 1 active, then the coordinator over the chosen broker.
func buildEngine(ctx context.Context, app *App) (*trading.Coordinator, error) {
	cfg := app.Config
	engine := features.NewIndicatorEngine()
	trainer := healing.NewEnsembleTrainer(engine, cfg.Healing.MinTrainingRows)
	riskState := risk.NewState(cfg.Risk.InitialCapital, cfg.Risk.MaxDrawdown)

	var (
		market broker.Broker
		seed   []models.Candle
		err    error
	)
	if cfg.IsPaperMode() {
		market, seed, err = buildPaperBroker(ctx, app, engine, riskState)
	} else {
		market, seed, err = buildLiveBroker(ctx, app)
	}
	if err != nil {
		return nil, err
	}

	if app.Store != nil {
		if err := app.Store.SaveCandles(ctx, cfg.Trading.Symbol, seed); err != nil {
			app.Logger.Debug().Err(err).Msg("Bar cache write failed")
		}
	}

	// The first version trains on the warmup history before any tick runs.
	result, err := utils.WithTimeoutResult(ctx, cfg.Healing.TrainingTimeout, func(tctx context.Context) (*healing.TrainResult, error) {
		return trainer.Train(tctx, seed)
	})
	if err != nil {
		return nil, fmt.Errorf("initial training: %w", err)
	}
	app.Logger.Info().
		Float64("train_accuracy", result.TrainAccuracy).
		Float64("test_accuracy", result.TestAccuracy).
		Int("samples", result.Samples).
		Msg("Initial ensemble trained")

	pool := ensemble.NewPool(result.Models, result.TrainAccuracy, result.TestAccuracy)
	tracker := accuracy.NewTracker(cfg.Healing.WindowCapacity, cfg.Healing.MinSamples)
	aggregator := ensemble.NewAggregator(cfg.Ensemble.ConfidenceThreshold)

	controller := healing.NewController(pool, tracker, trainer, healing.Options{
		RetrainThreshold: cfg.Healing.RetrainThreshold,
		ShadowHorizon:    cfg.Healing.ShadowHorizon,
		RetrainInterval:  cfg.Healing.RetrainInterval,
		TrainingTimeout:  cfg.Healing.TrainingTimeout,
	}, app.Logger)

	history := data.NewHistory(cfg.Data.HistoryBars)
	history.Seed(seed)

	return trading.NewCoordinator(trading.Deps{
		Config:     cfg,
		Logger:     app.Logger,
		Broker:     market,
		Breaker:    resilience.NewCircuitBreaker(market.Name(), resilience.DefaultCircuitBreakerConfig()),
		History:    history,
		Features:   engine,
		Pool:       pool,
		Aggregator: aggregator,
		Tracker:    tracker,
		Controller: controller,
		RiskState:  riskState,
		Gate:       risk.NewGate(riskState, cfg.Risk),
		Store:      app.Store,
	}), nil
}

// buildPaperBroker loads the CSV bar series, keeps a warmup slice for the
// initial training and replays the rest through the paper broker. When the
// CSV is absent, bars cached in the store by a previous session are used.
func buildPaperBroker(ctx context.Context, app *App, engine *features.IndicatorEngine, riskState *risk.State) (broker.Broker, []models.Candle, error) {
	cfg := app.Config

	candles, err := data.LoadCandlesCSV(cfg.Data.CSVPath)
	if err != nil {
		if app.Store == nil {
			return nil, nil, fmt.Errorf("loading bars: %w", err)
		}
		candles, err = app.Store.GetCandles(ctx, cfg.Trading.Symbol, time.Time{}, time.Now())
		if err != nil || len(candles) == 0 {
			return nil, nil, fmt.Errorf("no bars in %s or the store cache", cfg.Data.CSVPath)
		}
		app.Logger.Info().Int("bars", len(candles)).Msg("Loaded bars from store cache")
	}

	warmup := cfg.Healing.MinTrainingRows + engine.MinBars() + 1
	if len(candles) <= warmup {
		return nil, nil, fmt.Errorf("need more than %d bars for warmup, have %d", warmup, len(candles))
	}

	seed := candles[:warmup]
	replay := candles[warmup:]
	app.Logger.Info().
		Int("warmup_bars", len(seed)).
		Int("replay_bars", len(replay)).
		Msg("Paper session prepared")

	return broker.NewPaperBroker(data.NewReplaySource(replay), riskState.Capital), seed, nil
}

// buildLiveBroker connects to Kite and seeds the history from the broker's
// historical data API.
func buildLiveBroker(ctx context.Context, app *App) (broker.Broker, []models.Candle, error) {
	cfg := app.Config

	kite, err := broker.NewKiteBroker(broker.KiteConfig{
		APIKey:      cfg.Credentials.Kite.APIKey,
		AccessToken: cfg.Credentials.Kite.AccessToken,
		Exchange:    cfg.Trading.Exchange,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to broker: %w", err)
	}

	// Fetch enough calendar days to cover the configured bar count.
	to := time.Now()
	from := to.AddDate(0, 0, -cfg.Data.HistoryBars*2)
	seed, err := utils.WithTimeoutResult(ctx, cfg.Trading.BrokerTimeout, func(bctx context.Context) ([]models.Candle, error) {
		return kite.GetHistorical(bctx, cfg.Trading.Symbol, from, to)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("seeding history: %w", err)
	}
	if len(seed) > cfg.Data.HistoryBars {
		seed = seed[len(seed)-cfg.Data.HistoryBars:]
	}

	return kite, seed, nil
}
