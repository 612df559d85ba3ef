package ensemble

import (
	"testing"
	"time"

	"ensemble-trader/internal/models"
)

// flatSource emits a fixed two-feature vector derived from the newest bar so
// dataset construction is easy to reason about.
type flatSource struct{}

func (flatSource) ComputeFeatures(candles []models.Candle) (models.FeatureVector, error) {
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	return models.FeatureVector{
		Timestamp: last.Timestamp,
		Names:     []string{"momentum", "range"},
		Values:    []float64{last.Close - prev.Close, last.High - last.Low},
	}, nil
}

func barSeries(closes []float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return candles
}

func TestBuildDatasetLabels(t *testing.T) {
	// Alternating up/down closes over enough bars for the default minimum.
	closes := make([]float64, 80)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}

	ds, err := BuildDataset(barSeries(closes), flatSource{})
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() == 0 {
		t.Fatal("empty dataset")
	}

	// Labels must alternate with the closes: a row at an even index close
	// (100) is followed by 101, labeling UP.
	for i, label := range ds.Y {
		rowIdx := 29 + i // first usable bar under the default minimum
		wantUp := closes[rowIdx+1] > closes[rowIdx]
		if (label == 1) != wantUp {
			t.Fatalf("row %d: label = %d, want up=%v", i, label, wantUp)
		}
	}
}

func TestBuildDatasetExcludesFinalBar(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}

	ds, err := BuildDataset(barSeries(closes), flatSource{})
	if err != nil {
		t.Fatal(err)
	}

	// Rows run from the minimum-history bar through the second-to-last bar.
	if want := 80 - 1 - 29; ds.Len() != want {
		t.Fatalf("dataset rows = %d, want %d", ds.Len(), want)
	}
}

func TestSplitPreservesOrder(t *testing.T) {
	ds := Dataset{
		Names: []string{"x"},
		X:     [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}, {9}, {10}},
		Y:     []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1},
	}

	train, test := ds.Split(0.3)
	if train.Len() != 7 || test.Len() != 3 {
		t.Fatalf("split = %d/%d, want 7/3", train.Len(), test.Len())
	}
	if train.X[0][0] != 1 || test.X[0][0] != 8 {
		t.Fatal("test set is not the most recent rows")
	}
}

func TestTrainModelsLearnsSeparableData(t *testing.T) {
	// One feature cleanly separates the classes.
	ds := Dataset{Names: []string{"f", "noise"}}
	for i := 0; i < 200; i++ {
		noise := float64(i%7) - 3
		if i%2 == 0 {
			ds.X = append(ds.X, []float64{1.0, noise})
			ds.Y = append(ds.Y, 1)
		} else {
			ds.X = append(ds.X, []float64{-1.0, noise})
			ds.Y = append(ds.Y, 0)
		}
	}

	trained, err := TrainModels(ds)
	if err != nil {
		t.Fatal(err)
	}
	if len(trained) != 4 {
		t.Fatalf("model count = %d, want 4", len(trained))
	}

	seen := map[string]bool{}
	for _, m := range trained {
		if seen[m.ID()] {
			t.Fatalf("duplicate model id %s", m.ID())
		}
		seen[m.ID()] = true
	}

	acc, err := EvaluateAll(trained, ds)
	if err != nil {
		t.Fatal(err)
	}
	if acc < 0.9 {
		t.Fatalf("ensemble accuracy on separable data = %.4f, want >= 0.9", acc)
	}
}

func TestSecondStumpUsesDifferentFeature(t *testing.T) {
	ds := Dataset{Names: []string{"a", "b"}}
	for i := 0; i < 100; i++ {
		x := float64(i%10) - 5
		y := 0
		if x > 0 {
			y = 1
		}
		ds.X = append(ds.X, []float64{x, -x})
		ds.Y = append(ds.Y, y)
	}

	trained, err := TrainModels(ds)
	if err != nil {
		t.Fatal(err)
	}

	var first, second *stumpModel
	for _, m := range trained {
		if s, ok := m.(*stumpModel); ok {
			if s.ID() == "stump_a" {
				first = s
			} else {
				second = s
			}
		}
	}
	if first == nil || second == nil {
		t.Fatal("missing stump models")
	}
	if first.Feature() == second.Feature() {
		t.Fatalf("both stumps split on %q", first.Feature())
	}
}

func TestEvaluateSingleModel(t *testing.T) {
	ds := Dataset{
		Names: []string{"f"},
		X:     [][]float64{{1}, {-1}, {1}, {-1}},
		Y:     []int{1, 0, 1, 0},
	}

	s := fitScaler(ds)
	m := trainLogistic(ds, s)

	acc, err := Evaluate(m, ds)
	if err != nil {
		t.Fatal(err)
	}
	if acc != 1.0 {
		t.Fatalf("logistic accuracy on trivial data = %.4f, want 1.0", acc)
	}
}
