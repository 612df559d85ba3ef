// Package risk implements capital preservation: the process-wide risk state
// with its drawdown halt latch, and the gate that converts signals into
// sized, stop-bracketed orders or explicit rejections.
package risk

import (
	"sync"
	"time"

	"ensemble-trader/internal/models"
)

// State is the single authority on capital, peak equity and the halt latch.
// Every equity change funnels through apply so the drawdown check can never
// be bypassed. The latch is one-way: once tripped, only ResumeTrading clears
// it.
type State struct {
	mu          sync.RWMutex
	capital     float64
	peak        float64
	halted      bool
	maxDrawdown float64

	wins    int
	losses  int
	winSum  float64
	lossSum float64
}

// NewState creates a risk state seeded with the starting capital.
func NewState(initialCapital, maxDrawdown float64) *State {
	return &State{
		capital:     initialCapital,
		peak:        initialCapital,
		maxDrawdown: maxDrawdown,
	}
}

// apply recomputes peak and drawdown after a capital change and trips the
// halt latch on breach. Called with the write lock held.
func (s *State) apply() {
	if s.capital > s.peak {
		s.peak = s.capital
	}
	if s.peak > 0 && (s.peak-s.capital)/s.peak >= s.maxDrawdown {
		s.halted = true
	}
}

// RecordTrade settles a closed trade's PnL into capital and updates the
// win/loss statistics behind the payoff ratio.
func (s *State) RecordTrade(t models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capital += t.PnL
	if t.PnL >= 0 {
		s.wins++
		s.winSum += t.PnL
	} else {
		s.losses++
		s.lossSum += -t.PnL
	}
	s.apply()
}

// Halted reports whether the halt latch has tripped.
func (s *State) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.halted
}

// Capital returns the current capital.
func (s *State) Capital() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capital
}

// Drawdown returns the current peak-to-trough drawdown fraction.
func (s *State) Drawdown() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peak <= 0 {
		return 0
	}
	return (s.peak - s.capital) / s.peak
}

// PayoffRatio returns the realized average-win to average-loss ratio, or the
// configured default until at least one win and one loss have settled.
func (s *State) PayoffRatio(fallback float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wins == 0 || s.losses == 0 || s.lossSum == 0 {
		return fallback
	}
	avgWin := s.winSum / float64(s.wins)
	avgLoss := s.lossSum / float64(s.losses)
	return avgWin / avgLoss
}

// ResumeTrading clears the halt latch and rebases the peak to current
// capital so the old peak cannot re-trip the latch on the next tick.
func (s *State) ResumeTrading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halted = false
	s.peak = s.capital
}

// Snapshot returns a point-in-time copy of the risk state.
func (s *State) Snapshot() models.RiskSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dd := 0.0
	if s.peak > 0 {
		dd = (s.peak - s.capital) / s.peak
	}
	return models.RiskSnapshot{
		Capital:       s.capital,
		PeakEquity:    s.peak,
		Drawdown:      dd,
		TradingHalted: s.halted,
		UpdatedAt:     time.Now(),
	}
}

// TradeStats returns the settled win and loss counts.
func (s *State) TradeStats() (wins, losses int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wins, s.losses
}
