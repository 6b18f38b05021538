// Package indicator provides technical indicator calculations over candle data.
//
// Indicators are pure functions over an ordered candle (or value) sequence and
// return a series aligned to the input. Positions where an indicator does not
// have enough history hold NaN; callers must treat NaN as "not ready", never
// as zero. Snapshot collapses the latest values into Ready-flagged fields.
package indicator

import (
	"math"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// Params configures the indicator set computed on every closed candle.
type Params struct {
	ATRPeriod   int     `yaml:"atr_period"`   // 14
	EMASpan     int     `yaml:"ema_span"`     // 200
	BBWindow    int     `yaml:"bb_window"`    // 20
	BBDeviation float64 `yaml:"bb_deviation"` // 2
}

// DefaultParams returns the reference indicator settings.
func DefaultParams() Params {
	return Params{
		ATRPeriod:   14,
		EMASpan:     200,
		BBWindow:    20,
		BBDeviation: 2,
	}
}

// Snapshot holds the latest indicator values for one tick.
// A value is meaningful only when its Ready flag is set.
type Snapshot struct {
	ATR           float64 `json:"atr"`
	EMA           float64 `json:"ema"`
	PercentB      float64 `json:"percent_b"`
	ATRReady      bool    `json:"atr_ready"`
	EMAReady      bool    `json:"ema_ready"`
	PercentBReady bool    `json:"percent_b_ready"`
}

// Compute derives a fresh Snapshot from candles. Nothing is cached between
// calls; the full window is recomputed each time.
func Compute(candles []model.Candle, p Params) Snapshot {
	var s Snapshot
	if len(candles) == 0 {
		return s
	}
	s.ATR, s.ATRReady = last(ATR(candles, p.ATRPeriod))
	s.EMA, s.EMAReady = last(EMA(Closes(candles), p.EMASpan))
	s.PercentB, s.PercentBReady = last(PercentB(candles, p.BBWindow, p.BBDeviation))
	return s
}

// Closes extracts close prices from candles.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// Defined reports whether v is a usable indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return math.NaN(), false
	}
	v := series[len(series)-1]
	return v, Defined(v)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
