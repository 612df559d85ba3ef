package ensemble

import (
	"time"

	"ensemble-trader/internal/models"
)

// WeightFunc returns the aggregation weight for a base model, typically its
// rolling accuracy. ok=false means the model is cold and gets weight 1.0.
type WeightFunc func(versionID int64, modelID string) (float64, bool)

// EqualWeights treats every model the same.
func EqualWeights(int64, string) (float64, bool) { return 0, false }

// Aggregator combines base votes into one signal by weighted soft voting.
type Aggregator struct {
	threshold float64
}

// NewAggregator creates an aggregator with the given confidence threshold.
func NewAggregator(confidenceThreshold float64) *Aggregator {
	return &Aggregator{threshold: confidenceThreshold}
}

// Aggregate is a pure function of the votes and the current weights.
//
// Each class's score is the weighted mean probability over the models that
// predicted it; the direction is the class with the higher score and the
// confidence is that score. A confidence below the threshold forces HOLD:
// the engine never acts on a weak consensus. Exact ties also resolve to HOLD.
func (a *Aggregator) Aggregate(versionID int64, votes []models.BaseVote, weights WeightFunc, ts time.Time) models.EnsembleSignal {
	signal := models.EnsembleSignal{
		Direction:    models.DirectionHold,
		RawDirection: models.DirectionHold,
		Votes:        votes,
		Timestamp:    ts,
		VersionID:    versionID,
	}
	if len(votes) == 0 {
		return signal
	}

	var upSum, upWeight, downSum, downWeight float64
	for _, vote := range votes {
		w, ok := weights(versionID, vote.ModelID)
		if !ok {
			w = 1.0
		}
		if vote.Class == models.ClassUp {
			upSum += w * vote.Probability
			upWeight += w
		} else {
			downSum += w * vote.Probability
			downWeight += w
		}
	}

	upMean := 0.0
	if upWeight > 0 {
		upMean = upSum / upWeight
	}
	downMean := 0.0
	if downWeight > 0 {
		downMean = downSum / downWeight
	}

	switch {
	case upMean > downMean:
		signal.RawDirection = models.DirectionBuy
		signal.Confidence = upMean
	case downMean > upMean:
		signal.RawDirection = models.DirectionSell
		signal.Confidence = downMean
	default:
		// Tie: no actionable consensus.
		signal.Confidence = upMean
		return signal
	}

	if signal.Confidence >= a.threshold {
		signal.Direction = signal.RawDirection
	}
	return signal
}
