package data

import (
	"sync"

	"ensemble-trader/internal/models"
)

// ReplaySource feeds recorded bars one at a time. The paper broker uses it
// as its market data feed so paper sessions are reproducible.
type ReplaySource struct {
	mu      sync.Mutex
	candles []models.Candle
	cursor  int
}

// NewReplaySource creates a replay source over the given bars.
func NewReplaySource(candles []models.Candle) *ReplaySource {
	return &ReplaySource{candles: candles}
}

// Next returns the next bar, or false when the recording is exhausted.
func (r *ReplaySource) Next() (models.Candle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= len(r.candles) {
		return models.Candle{}, false
	}
	c := r.candles[r.cursor]
	r.cursor++
	return c, true
}

// Remaining returns the number of bars not yet replayed.
func (r *ReplaySource) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.candles) - r.cursor
}
