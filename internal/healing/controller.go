// Package healing implements the accuracy-validation state machine that
// decides when the ensemble retrains, how candidates are shadow-evaluated,
// and when a candidate replaces the active version.
package healing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ensemble-trader/internal/accuracy"
	"ensemble-trader/internal/ensemble"
	"ensemble-trader/internal/logging"
	"ensemble-trader/internal/models"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateActiveStable     State = "ACTIVE_STABLE"
	StateRetraining       State = "RETRAINING"
	StateShadowEvaluation State = "SHADOW_EVALUATION"
	StatePromoting        State = "PROMOTING"
	StateHalted           State = "HALTED"
)

// Controller owns the retrain/shadow/promote lifecycle. All transitions go
// through the single mutex so the state is never observed mid-transition.
//
// Training runs on a background goroutine under a deadline; every other
// decision happens synchronously inside OnAccuracyUpdate, which the trading
// loop calls once per resolved prediction batch.
type Controller struct {
	mu      sync.Mutex
	state   State
	pool    *ensemble.Pool
	tracker *accuracy.Tracker
	trainer Trainer
	logger  zerolog.Logger

	retrainThreshold float64
	shadowHorizon    int
	retrainInterval  time.Duration
	trainingTimeout  time.Duration

	lastRetrain   time.Time
	retrainCancel context.CancelFunc
	wg            sync.WaitGroup
}

// Options configures a Controller.
type Options struct {
	RetrainThreshold float64
	ShadowHorizon    int
	RetrainInterval  time.Duration
	TrainingTimeout  time.Duration
}

// NewController creates a controller in ACTIVE_STABLE.
func NewController(pool *ensemble.Pool, tracker *accuracy.Tracker, trainer Trainer, opts Options, logger zerolog.Logger) *Controller {
	return &Controller{
		state:            StateActiveStable,
		pool:             pool,
		tracker:          tracker,
		trainer:          trainer,
		logger:           logger,
		retrainThreshold: opts.RetrainThreshold,
		shadowHorizon:    opts.ShadowHorizon,
		retrainInterval:  opts.RetrainInterval,
		trainingTimeout:  opts.TrainingTimeout,
		lastRetrain:      time.Now(),
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnAccuracyUpdate advances the state machine after prediction outcomes have
// been recorded. candles is the history snapshot a retrain would train on.
func (c *Controller) OnAccuracyUpdate(candles []models.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateActiveStable:
		c.maybeRetrain(candles)
	case StateShadowEvaluation:
		c.maybeJudgeShadow()
	case StateRetraining, StatePromoting, StateHalted:
		// Retraining resolves via completeRetrain; HALTED only resolves
		// via Resume.
	}
}

// maybeRetrain starts a background retrain when the active ensemble's rolling
// accuracy has degraded below the threshold, or when the scheduled retrain
// interval has elapsed. Called with the lock held.
func (c *Controller) maybeRetrain(candles []models.Candle) {
	active := c.pool.Active()
	if active == nil {
		return
	}

	acc, ok := c.tracker.RollingAccuracy(active.Meta.ID, accuracy.EnsembleModelID)
	degraded := ok && acc < c.retrainThreshold
	scheduled := c.retrainInterval > 0 && time.Since(c.lastRetrain) >= c.retrainInterval

	if !degraded && !scheduled {
		return
	}

	reason := "scheduled retrain interval elapsed"
	if degraded {
		reason = "rolling accuracy below retrain threshold"
		c.logger.Warn().
			Float64("accuracy", acc).
			Float64("threshold", c.retrainThreshold).
			Int64("version", active.Meta.ID).
			Msg("Active ensemble degraded")
	}

	c.transition(StateRetraining, reason)
	c.startRetrain(candles)
}

// startRetrain launches the training goroutine. Called with the lock held.
func (c *Controller) startRetrain(candles []models.Candle) {
	snapshot := make([]models.Candle, len(candles))
	copy(snapshot, candles)

	ctx, cancel := context.WithTimeout(context.Background(), c.trainingTimeout)
	c.retrainCancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		result, err := c.trainer.Train(ctx, snapshot)
		c.completeRetrain(result, err)
	}()
}

// completeRetrain applies a finished training run. A run that finishes after
// the controller left RETRAINING (halt, resume) is discarded.
func (c *Controller) completeRetrain(result *TrainResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastRetrain = time.Now()
	c.retrainCancel = nil

	if c.state != StateRetraining {
		c.logger.Debug().Str("state", string(c.state)).Msg("Discarding stale training result")
		return
	}

	if err != nil {
		logging.LogRetrain(c.logger, 0, 0, 0, err)
		c.transition(StateActiveStable, "training failed, keeping active version")
		return
	}

	candidate := c.pool.AddCandidate(result.Models, result.TrainAccuracy, result.TestAccuracy)
	logging.LogRetrain(c.logger, candidate.Meta.ID, result.TrainAccuracy, result.TestAccuracy, nil)

	c.pool.BeginShadow(candidate)
	c.transition(StateShadowEvaluation, "candidate trained, beginning shadow run")
}

// maybeJudgeShadow promotes or retires the shadow candidate once it has
// accumulated a full evaluation horizon of outcomes. Called with the lock
// held.
func (c *Controller) maybeJudgeShadow() {
	shadow := c.pool.Shadow()
	if shadow == nil {
		c.transition(StateActiveStable, "shadow version missing")
		return
	}
	if c.tracker.SampleCount(shadow.Meta.ID, accuracy.EnsembleModelID) < c.shadowHorizon {
		return
	}

	candAcc, candOK := c.tracker.RollingAccuracy(shadow.Meta.ID, accuracy.EnsembleModelID)
	if !candOK {
		return
	}

	active := c.pool.Active()
	activeAcc, activeOK := c.tracker.RollingAccuracy(active.Meta.ID, accuracy.EnsembleModelID)

	// The candidate must clear the absolute threshold, and beat the active
	// version whenever the active version has enough evidence to compare.
	beatsActive := !activeOK || candAcc >= activeAcc
	if candAcc >= c.retrainThreshold && beatsActive {
		c.transition(StatePromoting, "candidate outperformed active version")

		previousID := active.Meta.ID
		if err := c.pool.Promote(shadow); err != nil {
			c.logger.Error().Err(err).Msg("Promotion failed")
			c.transition(StateActiveStable, "promotion rejected by pool")
			return
		}
		// Shadow windows live under the candidate's own version ID, so its
		// accumulated evidence survives the swap untouched.
		c.tracker.Drop(previousID)

		c.logger.Info().
			Int64("version", shadow.Meta.ID).
			Int64("retired", previousID).
			Float64("candidate_accuracy", candAcc).
			Float64("active_accuracy", activeAcc).
			Msg("Candidate promoted")
		c.transition(StateActiveStable, "promotion complete")
		return
	}

	c.pool.Retire(shadow)
	c.tracker.Drop(shadow.Meta.ID)
	c.logger.Info().
		Int64("version", shadow.Meta.ID).
		Float64("candidate_accuracy", candAcc).
		Float64("active_accuracy", activeAcc).
		Msg("Candidate retired after shadow run")
	c.transition(StateActiveStable, "candidate failed shadow evaluation")
}

// Halt moves the controller to HALTED and cancels any in-flight training.
// HALTED is one-way until Resume.
func (c *Controller) Halt(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalted {
		return
	}
	if c.retrainCancel != nil {
		c.retrainCancel()
	}
	c.transition(StateHalted, reason)
}

// Resume returns a halted controller to ACTIVE_STABLE. Only an explicit
// operator action calls this.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateHalted {
		return
	}
	c.transition(StateActiveStable, "operator resume")
}

// Wait blocks until any in-flight training goroutine has finished. Used on
// shutdown and in tests.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// transition records a state change. Called with the lock held.
func (c *Controller) transition(to State, reason string) {
	from := c.state
	c.state = to
	logging.LogTransition(c.logger, string(from), string(to), reason)
}
