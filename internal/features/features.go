// Package features computes the indicator feature vector consumed by the
// model pool. The engine is the default FeatureSource; alternative sources
// only need to produce a stable set of named numeric fields per bar.
package features

import (
	"fmt"
	"math"

	"ensemble-trader/internal/models"
)

// Feature names produced by the indicator engine.
const (
	FeatureReturn     = "return"
	FeatureVolatility = "volatility"
	FeatureRSI        = "rsi"
	FeatureEMAFast    = "ema_fast"
	FeatureEMASlow    = "ema_slow"
	FeatureEMASignal  = "ema_signal"
	FeatureATR        = "atr"
)

// Source supplies one feature vector per time step.
type Source interface {
	ComputeFeatures(candles []models.Candle) (models.FeatureVector, error)
}

// IndicatorEngine computes return, rolling volatility, RSI, fast/slow EMA
// with their crossover signal, and ATR from a bar history.
type IndicatorEngine struct {
	rsiPeriod     int
	emaFastPeriod int
	emaSlowPeriod int
	atrPeriod     int
	volWindow     int
}

// NewIndicatorEngine creates an engine with the default periods.
func NewIndicatorEngine() *IndicatorEngine {
	return &IndicatorEngine{
		rsiPeriod:     14,
		emaFastPeriod: 9,
		emaSlowPeriod: 21,
		atrPeriod:     14,
		volWindow:     21,
	}
}

// MinBars returns the minimum history length the engine needs.
func (e *IndicatorEngine) MinBars() int {
	min := e.rsiPeriod + 1
	if e.emaSlowPeriod > min {
		min = e.emaSlowPeriod
	}
	if e.atrPeriod+1 > min {
		min = e.atrPeriod + 1
	}
	if e.volWindow+1 > min {
		min = e.volWindow + 1
	}
	return min
}

// ComputeFeatures derives the feature vector for the newest bar in candles.
func (e *IndicatorEngine) ComputeFeatures(candles []models.Candle) (models.FeatureVector, error) {
	n := len(candles)
	if n < e.MinBars() {
		return models.FeatureVector{}, fmt.Errorf("need at least %d bars, have %d", e.MinBars(), n)
	}

	last := candles[n-1]
	prev := candles[n-2]

	ret := 0.0
	if prev.Close > 0 {
		ret = (last.Close - prev.Close) / prev.Close
	}

	vol := rollingVolatility(candles, e.volWindow)
	rsiVals := rsi(candles, e.rsiPeriod)
	emaFast := ema(closePrices(candles), e.emaFastPeriod)
	emaSlow := ema(closePrices(candles), e.emaSlowPeriod)
	atrVals := atr(candles, e.atrPeriod)

	emaSignal := 0.0
	if emaFast[n-1] > emaSlow[n-1] {
		emaSignal = 1.0
	} else if emaFast[n-1] < emaSlow[n-1] {
		emaSignal = -1.0
	}

	return models.FeatureVector{
		Timestamp: last.Timestamp,
		Names: []string{
			FeatureReturn, FeatureVolatility, FeatureRSI,
			FeatureEMAFast, FeatureEMASlow, FeatureEMASignal, FeatureATR,
		},
		Values: []float64{
			ret, vol, rsiVals[n-1],
			emaFast[n-1], emaSlow[n-1], emaSignal, atrVals[n-1],
		},
	}, nil
}

// rollingVolatility is the standard deviation of close-to-close returns over
// the trailing window.
func rollingVolatility(candles []models.Candle, window int) float64 {
	n := len(candles)
	start := n - window
	if start < 1 {
		start = 1
	}

	returns := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		if candles[i-1].Close > 0 {
			returns = append(returns, (candles[i].Close-candles[i-1].Close)/candles[i-1].Close)
		}
	}
	return stdDev(returns)
}

// rsi computes the Relative Strength Index with Wilder smoothing.
func rsi(candles []models.Candle, period int) []float64 {
	n := len(candles)
	result := make([]float64, n)
	closes := closePrices(candles)

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := mean(gains[1 : period+1])
	avgLoss := mean(losses[1 : period+1])
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ema computes the exponential moving average; the first value is seeded
// with an SMA.
func ema(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	multiplier := 2.0 / float64(period+1)

	result[period-1] = mean(values[:period])
	for i := period; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}
	return result
}

// atr computes the Average True Range with Wilder smoothing.
func atr(candles []models.Candle, period int) []float64 {
	n := len(candles)
	result := make([]float64, n)
	tr := make([]float64, n)

	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	result[period-1] = mean(tr[:period])
	for i := period; i < n; i++ {
		result[i] = (result[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return result
}

func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
