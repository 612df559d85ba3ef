package models

import "time"

// Order represents a trading order.
type Order struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Quantity   int
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Tag        string
	Status     string
	FilledQty  int
	AvgPrice   float64
	PlacedAt   time.Time
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID string
	Status  string
	Message string
}

// Position represents the currently open exposure for an instrument.
// At most one position per instrument is open at a time.
type Position struct {
	Symbol     string
	Side       OrderSide
	Quantity   int
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	OpenedAt   time.Time

	// Opening signal reference
	VersionID  int64
	Confidence float64
}

// Trade represents a closed position.
type Trade struct {
	Symbol     string
	Side       OrderSide
	Quantity   int
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	PnLPercent float64
	Reason     string
	VersionID  int64
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Balance represents account balance.
type Balance struct {
	AvailableCash float64
	TotalEquity   float64
}

// RiskSnapshot is a point-in-time view of the process-wide risk state.
type RiskSnapshot struct {
	Capital       float64
	PeakEquity    float64
	Drawdown      float64
	TradingHalted bool
	UpdatedAt     time.Time
}
