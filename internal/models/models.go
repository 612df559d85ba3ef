// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Direction represents an actionable trading decision.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Class represents a base model's predicted market class for the next bar.
type Class string

const (
	ClassUp   Class = "UP"
	ClassDown Class = "DOWN"
)

// Direction maps a predicted class to the trade direction it implies.
func (c Class) Direction() Direction {
	if c == ClassUp {
		return DirectionBuy
	}
	return DirectionSell
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// FeatureVector is an ordered set of named indicator values computed from a
// single bar's history. It is immutable once produced; Values and Names are
// parallel slices so feature order is stable across calls.
type FeatureVector struct {
	Timestamp time.Time
	Names     []string
	Values    []float64
}

// Get returns the named feature value.
func (f FeatureVector) Get(name string) (float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Values[i], true
		}
	}
	return 0, false
}

// Len returns the number of features in the vector.
func (f FeatureVector) Len() int {
	return len(f.Values)
}
