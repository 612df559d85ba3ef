// Package accuracy maintains bounded rolling accuracy windows for model
// versions and their base models. The windows feed both the aggregation
// weights and the degradation checks in the healing controller.
package accuracy

import (
	"sync"
	"time"
)

// EnsembleModelID keys the window for a version's combined signal, as
// opposed to one of its base models.
const EnsembleModelID = "ensemble"

// Sample is one resolved prediction outcome.
type Sample struct {
	Timestamp time.Time
	Correct   bool
}

// window is a FIFO buffer of the most recent outcomes. Appending beyond
// capacity evicts the oldest sample, so memory stays constant over an
// unbounded prediction stream.
type window struct {
	samples []Sample
	correct int
	cap     int
}

func (w *window) add(s Sample) {
	if len(w.samples) == w.cap {
		if w.samples[0].Correct {
			w.correct--
		}
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.cap-1]
	}
	w.samples = append(w.samples, s)
	if s.Correct {
		w.correct++
	}
}

func (w *window) accuracy() float64 {
	return float64(w.correct) / float64(len(w.samples))
}

type key struct {
	versionID int64
	modelID   string
}

// Tracker keeps one rolling window per (version, model) pair.
type Tracker struct {
	mu         sync.RWMutex
	windows    map[key]*window
	capacity   int
	minSamples int
}

// NewTracker creates a tracker. Windows hold at most capacity samples and
// report no accuracy until minSamples have accumulated.
func NewTracker(capacity, minSamples int) *Tracker {
	return &Tracker{
		windows:    make(map[key]*window),
		capacity:   capacity,
		minSamples: minSamples,
	}
}

// Record appends one resolved outcome for a model under a version.
func (t *Tracker) Record(versionID int64, modelID string, ts time.Time, correct bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{versionID: versionID, modelID: modelID}
	w, ok := t.windows[k]
	if !ok {
		w = &window{cap: t.capacity, samples: make([]Sample, 0, t.capacity)}
		t.windows[k] = w
	}
	w.add(Sample{Timestamp: ts, Correct: correct})
}

// RollingAccuracy returns the fraction of correct outcomes in the window.
// ok is false while the window holds fewer than minSamples outcomes; callers
// must not treat a cold window as zero accuracy.
func (t *Tracker) RollingAccuracy(versionID int64, modelID string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.windows[key{versionID: versionID, modelID: modelID}]
	if !ok || len(w.samples) < t.minSamples {
		return 0, false
	}
	return w.accuracy(), true
}

// ModelWeight returns a model's aggregation weight: its rolling accuracy, or
// 1.0 while the window is cold.
func (t *Tracker) ModelWeight(versionID int64, modelID string) float64 {
	acc, ok := t.RollingAccuracy(versionID, modelID)
	if !ok {
		return 1.0
	}
	return acc
}

// SampleCount returns the number of outcomes currently in a window.
func (t *Tracker) SampleCount(versionID int64, modelID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.windows[key{versionID: versionID, modelID: modelID}]
	if !ok {
		return 0
	}
	return len(w.samples)
}

// Window returns a copy of a window's samples, oldest first.
func (t *Tracker) Window(versionID int64, modelID string) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.windows[key{versionID: versionID, modelID: modelID}]
	if !ok {
		return nil
	}
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Drop removes all windows for a version, typically after it retires.
func (t *Tracker) Drop(versionID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k := range t.windows {
		if k.versionID == versionID {
			delete(t.windows, k)
		}
	}
}
