// Package ensemble provides the base model pool, the trainable classifiers
// behind it, and the weighted soft-voting aggregator that combines their
// votes into one trading signal.
package ensemble

import (
	"fmt"

	"ensemble-trader/internal/features"
	"ensemble-trader/internal/models"
)

// Model is the uniform capability interface every base classifier exposes.
// Concrete model kinds are interchangeable behind it; the aggregator never
// names them.
type Model interface {
	ID() string
	Predict(fv models.FeatureVector) (models.BaseVote, error)
}

// Dataset is a labeled training set. X rows are feature values in Names
// order; Y is 1 when the next bar closed higher, 0 otherwise.
type Dataset struct {
	Names []string
	X     [][]float64
	Y     []int
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.X)
}

// Split partitions the dataset into train and test sets, preserving bar
// order so the test set is always the most recent data.
func (d Dataset) Split(testFraction float64) (train, test Dataset) {
	cut := int(float64(len(d.X)) * (1 - testFraction))
	if cut < 1 {
		cut = 1
	}
	if cut > len(d.X) {
		cut = len(d.X)
	}

	train = Dataset{Names: d.Names, X: d.X[:cut], Y: d.Y[:cut]}
	test = Dataset{Names: d.Names, X: d.X[cut:], Y: d.Y[cut:]}
	return train, test
}

// BuildDataset derives a labeled dataset from a bar history using the given
// feature source. The final bar has no realized outcome and is excluded.
func BuildDataset(candles []models.Candle, src features.Source) (Dataset, error) {
	engine, ok := src.(*features.IndicatorEngine)
	minBars := 30
	if ok {
		minBars = engine.MinBars()
	}

	if len(candles) < minBars+2 {
		return Dataset{}, fmt.Errorf("need at least %d bars to build a dataset, have %d", minBars+2, len(candles))
	}

	var ds Dataset
	for i := minBars - 1; i < len(candles)-1; i++ {
		fv, err := src.ComputeFeatures(candles[:i+1])
		if err != nil {
			continue
		}
		if ds.Names == nil {
			ds.Names = fv.Names
		}

		row := make([]float64, len(fv.Values))
		copy(row, fv.Values)
		ds.X = append(ds.X, row)

		label := 0
		if candles[i+1].Close > candles[i].Close {
			label = 1
		}
		ds.Y = append(ds.Y, label)
	}

	if len(ds.X) == 0 {
		return Dataset{}, fmt.Errorf("no usable rows in %d bars", len(candles))
	}
	return ds, nil
}

// Evaluate returns the fraction of rows a model classifies correctly.
func Evaluate(m Model, ds Dataset) (float64, error) {
	if ds.Len() == 0 {
		return 0, fmt.Errorf("empty dataset")
	}

	correct := 0
	for i, row := range ds.X {
		fv := models.FeatureVector{Names: ds.Names, Values: row}
		vote, err := m.Predict(fv)
		if err != nil {
			return 0, err
		}
		predicted := 0
		if vote.Class == models.ClassUp {
			predicted = 1
		}
		if predicted == ds.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(ds.Len()), nil
}

// EvaluateAll returns the mean accuracy of a model set over a dataset,
// scoring the soft-voting majority rather than each model alone.
func EvaluateAll(modelSet []Model, ds Dataset) (float64, error) {
	if ds.Len() == 0 {
		return 0, fmt.Errorf("empty dataset")
	}

	correct := 0
	for i, row := range ds.X {
		fv := models.FeatureVector{Names: ds.Names, Values: row}

		var up, down float64
		for _, m := range modelSet {
			vote, err := m.Predict(fv)
			if err != nil {
				return 0, err
			}
			if vote.Class == models.ClassUp {
				up += vote.Probability
			} else {
				down += vote.Probability
			}
		}

		predicted := 0
		if up > down {
			predicted = 1
		}
		if predicted == ds.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(ds.Len()), nil
}
