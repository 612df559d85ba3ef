package healing

import (
	"context"

	"ensemble-trader/internal/ensemble"
	"ensemble-trader/internal/errors"
	"ensemble-trader/internal/features"
	"ensemble-trader/internal/models"
)

// TrainResult is the output of one training run.
type TrainResult struct {
	Models        []ensemble.Model
	TrainAccuracy float64
	TestAccuracy  float64
	Samples       int
}

// Trainer produces a fresh candidate model set from a bar history. Training
// runs in the background under a deadline; a failed or cancelled run is
// non-fatal and leaves the active version in place.
type Trainer interface {
	Train(ctx context.Context, candles []models.Candle) (*TrainResult, error)
}

// EnsembleTrainer trains the full base model set on a chronological
// train/test split of the provided history.
type EnsembleTrainer struct {
	source       features.Source
	testFraction float64
	minRows      int
}

// NewEnsembleTrainer creates a trainer with the given feature source and
// minimum dataset size.
func NewEnsembleTrainer(source features.Source, minRows int) *EnsembleTrainer {
	return &EnsembleTrainer{
		source:       source,
		testFraction: 0.3,
		minRows:      minRows,
	}
}

// Train builds a dataset from the history, fits the model set on the older
// 70% and scores it on the most recent 30%.
func (t *EnsembleTrainer) Train(ctx context.Context, candles []models.Candle) (*TrainResult, error) {
	ds, err := ensemble.BuildDataset(candles, t.source)
	if err != nil {
		return nil, errors.NewTrainingError("dataset", len(candles), err)
	}
	if ds.Len() < t.minRows {
		return nil, errors.NewTrainingError("dataset", ds.Len(), errors.ErrInsufficientData)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewTrainingError("fit", ds.Len(), err)
	}

	train, test := ds.Split(t.testFraction)

	trained, err := ensemble.TrainModels(train)
	if err != nil {
		return nil, errors.NewTrainingError("fit", train.Len(), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewTrainingError("evaluate", ds.Len(), err)
	}

	trainAcc, err := ensemble.EvaluateAll(trained, train)
	if err != nil {
		return nil, errors.NewTrainingError("evaluate", train.Len(), err)
	}
	testAcc, err := ensemble.EvaluateAll(trained, test)
	if err != nil {
		return nil, errors.NewTrainingError("evaluate", test.Len(), err)
	}

	return &TrainResult{
		Models:        trained,
		TrainAccuracy: trainAcc,
		TestAccuracy:  testAcc,
		Samples:       ds.Len(),
	}, nil
}
