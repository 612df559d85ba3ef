package data

import (
	"sync"

	"ensemble-trader/internal/models"
)

// History is a bounded rolling window of bars. The live loop appends one bar
// per tick; the feature engine and the trainer read snapshots. When the
// window exceeds capacity the oldest bar is evicted.
type History struct {
	mu       sync.RWMutex
	candles  []models.Candle
	capacity int
}

// NewHistory creates a rolling history with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 500
	}
	return &History{
		candles:  make([]models.Candle, 0, capacity),
		capacity: capacity,
	}
}

// Seed replaces the window content with the given bars, keeping at most the
// newest capacity bars.
func (h *History) Seed(candles []models.Candle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(candles) > h.capacity {
		candles = candles[len(candles)-h.capacity:]
	}
	h.candles = append(h.candles[:0], candles...)
}

// Append adds a bar, evicting the oldest when over capacity.
func (h *History) Append(c models.Candle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.candles = append(h.candles, c)
	if len(h.candles) > h.capacity {
		h.candles = h.candles[1:]
	}
}

// Len returns the number of bars currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.candles)
}

// Snapshot returns a copy of the full window, oldest first.
func (h *History) Snapshot() []models.Candle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.Candle, len(h.candles))
	copy(out, h.candles)
	return out
}

// Last returns a copy of the newest n bars (all bars when n exceeds the
// window length).
func (h *History) Last(n int) []models.Candle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.candles) {
		n = len(h.candles)
	}
	out := make([]models.Candle, n)
	copy(out, h.candles[len(h.candles)-n:])
	return out
}
