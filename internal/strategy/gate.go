package strategy

import (
	"github.com/Shubhamshinde5080/DogeBOT/internal/indicator"
	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// Condition names one clause of the entry rule.
type Condition string

const (
	CondDataSufficiency Condition = "data_sufficiency"
	CondATRReady        Condition = "atr_ready"
	CondLowVolatility   Condition = "low_volatility"
	CondTrend           Condition = "trend"
	CondPullback        Condition = "pullback"
)

// GateParams configures the entry rule.
type GateParams struct {
	MinCandles       int     `yaml:"min_candles"`       // 20
	MaxPercentB      float64 `yaml:"max_percent_b"`     // 0.30
	MinEMARatio      float64 `yaml:"min_ema_ratio"`     // 0.95
	PullbackLookback int     `yaml:"pullback_lookback"` // 2
	MinPullback      float64 `yaml:"min_pullback"`      // 0.02
}

// DefaultGateParams returns the reference entry thresholds.
func DefaultGateParams() GateParams {
	return GateParams{
		MinCandles:       20,
		MaxPercentB:      0.30,
		MinEMARatio:      0.95,
		PullbackLookback: 2,
		MinPullback:      0.02,
	}
}

// GateResult is the outcome of one entry evaluation. The measured values are
// reported for observability even when a condition fails.
type GateResult struct {
	Pass     bool        `json:"pass"`
	Failed   []Condition `json:"failed,omitempty"`
	Close    float64     `json:"close"`
	PercentB float64     `json:"percent_b"`
	EMARatio float64     `json:"ema_ratio"`
	Drawdown float64     `json:"drawdown"`
}

// Failing reports whether c is among the failed conditions.
func (r GateResult) Failing(c Condition) bool {
	for _, f := range r.Failed {
		if f == c {
			return true
		}
	}
	return false
}

// EvaluateEntry applies the five-condition entry rule to the latest snapshot
// and candle history (oldest first). It has no side effects; the caller
// decides whether to start a cycle.
func EvaluateEntry(snap indicator.Snapshot, candles []model.Candle, p GateParams) GateResult {
	var r GateResult
	fail := func(c Condition) { r.Failed = append(r.Failed, c) }

	if len(candles) > 0 {
		r.Close = candles[len(candles)-1].Close
	}
	r.PercentB = snap.PercentB
	if snap.EMAReady && snap.EMA != 0 {
		r.EMARatio = r.Close / snap.EMA
	}

	if len(candles) < p.MinCandles {
		fail(CondDataSufficiency)
	}
	if !snap.ATRReady {
		fail(CondATRReady)
	}
	if !snap.PercentBReady || snap.PercentB > p.MaxPercentB {
		fail(CondLowVolatility)
	}
	if !snap.EMAReady || !(r.Close > p.MinEMARatio*snap.EMA) {
		fail(CondTrend)
	}

	var ok bool
	r.Drawdown, ok = pullback(candles, p.PullbackLookback)
	if !ok || r.Drawdown < p.MinPullback {
		fail(CondPullback)
	}

	r.Pass = len(r.Failed) == 0
	return r
}

// pullback measures how far the latest close sits below the highest high of
// the last lookback candles (the current candle included), as a fraction of
// that high. It needs lookback+1 candles of history.
func pullback(candles []model.Candle, lookback int) (float64, bool) {
	if lookback < 1 || len(candles) < lookback+1 {
		return 0, false
	}
	var high float64
	for _, c := range candles[len(candles)-lookback:] {
		if c.High > high {
			high = c.High
		}
	}
	if high <= 0 {
		return 0, false
	}
	return (high - candles[len(candles)-1].Close) / high, true
}
