package ensemble

import (
	"fmt"
	"math"

	"ensemble-trader/internal/models"
)

// scaler standardizes features to zero mean and unit variance, fitted on the
// training set and reused at prediction time.
type scaler struct {
	names []string
	mean  []float64
	std   []float64
}

func fitScaler(ds Dataset) *scaler {
	n := len(ds.Names)
	s := &scaler{
		names: ds.Names,
		mean:  make([]float64, n),
		std:   make([]float64, n),
	}

	for j := 0; j < n; j++ {
		var sum float64
		for _, row := range ds.X {
			sum += row[j]
		}
		s.mean[j] = sum / float64(len(ds.X))

		var variance float64
		for _, row := range ds.X {
			diff := row[j] - s.mean[j]
			variance += diff * diff
		}
		s.std[j] = math.Sqrt(variance / float64(len(ds.X)))
		if s.std[j] == 0 {
			s.std[j] = 1
		}
	}
	return s
}

// transform maps a feature vector into scaled values in training order.
func (s *scaler) transform(fv models.FeatureVector) ([]float64, error) {
	out := make([]float64, len(s.names))
	for j, name := range s.names {
		v, ok := fv.Get(name)
		if !ok {
			return nil, fmt.Errorf("feature vector missing %q", name)
		}
		out[j] = (v - s.mean[j]) / s.std[j]
	}
	return out, nil
}

func (s *scaler) transformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j := range row {
		out[j] = (row[j] - s.mean[j]) / s.std[j]
	}
	return out
}

func voteFromProbability(modelID string, pUp float64) models.BaseVote {
	if pUp >= 0.5 {
		return models.BaseVote{ModelID: modelID, Class: models.ClassUp, Probability: pUp}
	}
	return models.BaseVote{ModelID: modelID, Class: models.ClassDown, Probability: 1 - pUp}
}

// logisticModel is a logistic regression classifier trained by SGD.
type logisticModel struct {
	scaler  *scaler
	weights []float64
	bias    float64
}

func trainLogistic(ds Dataset, s *scaler) *logisticModel {
	m := &logisticModel{
		scaler:  s,
		weights: make([]float64, len(ds.Names)),
	}

	const (
		epochs = 200
		lr     = 0.05
	)

	for epoch := 0; epoch < epochs; epoch++ {
		for i, row := range ds.X {
			x := s.transformRow(row)
			p := m.probability(x)
			grad := p - float64(ds.Y[i])
			for j := range m.weights {
				m.weights[j] -= lr * grad * x[j]
			}
			m.bias -= lr * grad
		}
	}
	return m
}

func (m *logisticModel) probability(x []float64) float64 {
	z := m.bias
	for j, w := range m.weights {
		z += w * x[j]
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

func (m *logisticModel) ID() string { return "logit" }

func (m *logisticModel) Predict(fv models.FeatureVector) (models.BaseVote, error) {
	x, err := m.scaler.transform(fv)
	if err != nil {
		return models.BaseVote{}, err
	}
	return voteFromProbability(m.ID(), m.probability(x)), nil
}

// stumpModel is a single-feature decision stump. Training picks the feature
// and threshold with the lowest error; the vote probability is the class
// purity on the chosen side.
type stumpModel struct {
	id        string
	feature   string
	index     int
	threshold float64
	// pUpAbove/pUpBelow are P(up) on each side of the threshold.
	pUpAbove float64
	pUpBelow float64
}

// trainStump fits a stump, skipping the features named in exclude so
// multiple stumps in a pool stay independent.
func trainStump(ds Dataset, id string, exclude map[string]bool) *stumpModel {
	best := &stumpModel{id: id, index: -1}
	bestErr := math.Inf(1)

	for j, name := range ds.Names {
		if exclude[name] {
			continue
		}

		lo, hi := math.Inf(1), math.Inf(-1)
		for _, row := range ds.X {
			if row[j] < lo {
				lo = row[j]
			}
			if row[j] > hi {
				hi = row[j]
			}
		}
		if lo == hi {
			continue
		}

		// Candidate thresholds on a coarse grid over the feature range.
		const steps = 16
		for k := 1; k < steps; k++ {
			threshold := lo + (hi-lo)*float64(k)/steps

			var upAbove, above, upBelow, below int
			for i, row := range ds.X {
				if row[j] > threshold {
					above++
					upAbove += ds.Y[i]
				} else {
					below++
					upBelow += ds.Y[i]
				}
			}
			if above == 0 || below == 0 {
				continue
			}

			pAbove := float64(upAbove) / float64(above)
			pBelow := float64(upBelow) / float64(below)

			errs := 0
			for i, row := range ds.X {
				p := pBelow
				if row[j] > threshold {
					p = pAbove
				}
				predicted := 0
				if p >= 0.5 {
					predicted = 1
				}
				if predicted != ds.Y[i] {
					errs++
				}
			}

			if float64(errs) < bestErr {
				bestErr = float64(errs)
				best.feature = name
				best.index = j
				best.threshold = threshold
				best.pUpAbove = pAbove
				best.pUpBelow = pBelow
			}
		}
	}

	if best.index < 0 {
		// Degenerate dataset: fall back to the base rate on the first feature.
		ups := 0
		for _, y := range ds.Y {
			ups += y
		}
		base := float64(ups) / float64(len(ds.Y))
		best.feature = ds.Names[0]
		best.index = 0
		best.threshold = math.Inf(-1)
		best.pUpAbove = base
		best.pUpBelow = base
	}
	return best
}

func (m *stumpModel) ID() string { return m.id }

// Feature returns the feature the stump split on.
func (m *stumpModel) Feature() string { return m.feature }

func (m *stumpModel) Predict(fv models.FeatureVector) (models.BaseVote, error) {
	v, ok := fv.Get(m.feature)
	if !ok {
		return models.BaseVote{}, fmt.Errorf("feature vector missing %q", m.feature)
	}

	pUp := m.pUpBelow
	if v > m.threshold {
		pUp = m.pUpAbove
	}
	return voteFromProbability(m.ID(), pUp), nil
}

// centroidModel is a nearest-centroid classifier in scaled feature space.
// The vote probability comes from the relative distance to each centroid.
type centroidModel struct {
	scaler   *scaler
	upMean   []float64
	downMean []float64
}

func trainCentroid(ds Dataset, s *scaler) *centroidModel {
	n := len(ds.Names)
	m := &centroidModel{
		scaler:   s,
		upMean:   make([]float64, n),
		downMean: make([]float64, n),
	}

	var ups, downs int
	for i, row := range ds.X {
		x := s.transformRow(row)
		if ds.Y[i] == 1 {
			ups++
			for j := range x {
				m.upMean[j] += x[j]
			}
		} else {
			downs++
			for j := range x {
				m.downMean[j] += x[j]
			}
		}
	}

	for j := 0; j < n; j++ {
		if ups > 0 {
			m.upMean[j] /= float64(ups)
		}
		if downs > 0 {
			m.downMean[j] /= float64(downs)
		}
	}
	return m
}

func (m *centroidModel) ID() string { return "centroid" }

func (m *centroidModel) Predict(fv models.FeatureVector) (models.BaseVote, error) {
	x, err := m.scaler.transform(fv)
	if err != nil {
		return models.BaseVote{}, err
	}

	dUp := distance(x, m.upMean)
	dDown := distance(x, m.downMean)

	// Softmax over negated distances keeps the probability in (0, 1).
	expUp := math.Exp(-dUp)
	expDown := math.Exp(-dDown)
	pUp := expUp / (expUp + expDown)

	return voteFromProbability(m.ID(), pUp), nil
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// TrainModels trains the full set of base classifiers on a dataset.
func TrainModels(ds Dataset) ([]Model, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("empty dataset")
	}

	s := fitScaler(ds)

	logit := trainLogistic(ds, s)
	stump := trainStump(ds, "stump_a", nil)
	stump2 := trainStump(ds, "stump_b", map[string]bool{stump.Feature(): true})
	centroid := trainCentroid(ds, s)

	return []Model{logit, stump, stump2, centroid}, nil
}
