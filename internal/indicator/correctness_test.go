package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func candle(i int, close, spread float64) model.Candle {
	return model.Candle{
		OpenTime: t0.Add(time.Duration(i) * 15 * time.Minute),
		Open:     close, High: close + spread, Low: close - spread, Close: close,
	}
}

func flatCandles(n int, close, spread float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = candle(i, close, spread)
	}
	return out
}

func closesToCandles(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = candle(i, c, 0.5)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func countDefined(series []float64) int {
	n := 0
	for _, v := range series {
		if Defined(v) {
			n++
		}
	}
	return n
}

// ────────────────────────────────────────────────────────────
// ATR
// ────────────────────────────────────────────────────────────

func TestATR_ShorterThanPeriod_AllUndefined(t *testing.T) {
	for n := 0; n <= 14; n++ {
		series := ATR(flatCandles(n, 100, 1), 14)
		if len(series) != n {
			t.Fatalf("n=%d: len=%d", n, len(series))
		}
		if got := countDefined(series); got != 0 {
			t.Errorf("n=%d: expected no defined values, got %d", n, got)
		}
	}
}

func TestATR_TrailingDefinedCount(t *testing.T) {
	for k := 1; k <= 10; k++ {
		series := ATR(flatCandles(14+k, 100, 1), 14)
		if got := countDefined(series); got != k {
			t.Errorf("k=%d: expected %d defined values, got %d", k, k, got)
		}
		// defined values must be the trailing ones
		for i := 0; i < 14; i++ {
			if Defined(series[i]) {
				t.Errorf("k=%d: index %d should be undefined", k, i)
			}
		}
	}
}

func TestATR_Correctness_Period3(t *testing.T) {
	// closes: 10, 11, 12, 11, 13  with high/low = close ± 0.5
	// TR1 = max(1, |11.5-10|, |10.5-10|) = 1.5
	// TR2 = max(1, |12.5-11|, |11.5-11|) = 1.5
	// TR3 = max(1, |11.5-12|, |10.5-12|) = 1.5
	// TR4 = max(1, |13.5-11|, |12.5-11|) = 2.5
	// ATR(3)[3] = (1.5+1.5+1.5)/3 = 1.5
	// ATR(3)[4] = (1.5+1.5+2.5)/3 = 1.8333
	series := ATR(closesToCandles(10, 11, 12, 11, 13), 3)
	for i := 0; i < 3; i++ {
		if Defined(series[i]) {
			t.Errorf("index %d: expected undefined, got %f", i, series[i])
		}
	}
	assertClose(t, "ATR(3)[3]", series[3], 1.5, 1e-9)
	assertClose(t, "ATR(3)[4]", series[4], 5.5/3, 1e-9)
}

func TestTrueRange_FirstUndefined(t *testing.T) {
	tr := TrueRange(flatCandles(3, 50, 2))
	if Defined(tr[0]) {
		t.Errorf("first TR should be undefined, got %f", tr[0])
	}
	assertClose(t, "TR[1]", tr[1], 4, 1e-12)
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Span3(t *testing.T) {
	// α = 2/(3+1) = 0.5
	// ema: 1, 0.5*2+0.5*1=1.5, 0.5*3+0.5*1.5=2.25, 0.5*4+0.5*2.25=3.125
	got := EMA([]float64{1, 2, 3, 4}, 3)
	want := []float64{1, 1.5, 2.25, 3.125}
	for i := range want {
		assertClose(t, "EMA(3)", got[i], want[i], 1e-12)
	}
}

func TestEMA_DefinedFromFirstElement(t *testing.T) {
	got := EMA([]float64{0.212}, 200)
	if len(got) != 1 || got[0] != 0.212 {
		t.Fatalf("expected [0.212], got %v", got)
	}
	if len(EMA(nil, 200)) != 0 {
		t.Fatal("expected empty output for empty input")
	}
}

func TestEMA_MonotoneForIncreasingInput(t *testing.T) {
	values := make([]float64, 300)
	for i := range values {
		values[i] = 0.2 + float64(i)*0.0001
	}
	ema := EMA(values, 200)
	for i := 1; i < len(ema); i++ {
		if ema[i] < ema[i-1] {
			t.Fatalf("EMA decreased at %d: %f < %f", i, ema[i], ema[i-1])
		}
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger %B
// ────────────────────────────────────────────────────────────

func TestPercentB_UndefinedBeforeWindow(t *testing.T) {
	series := PercentB(closesToCandles(1, 2, 3, 4), 5, 2)
	if countDefined(series) != 0 {
		t.Errorf("expected no defined values, got %v", series)
	}
}

func TestPercentB_ZeroVarianceIsUndefined(t *testing.T) {
	series := PercentB(flatCandles(25, 0.212, 0.0005), 20, 2)
	for i, v := range series {
		if !math.IsNaN(v) {
			t.Errorf("index %d: expected NaN for zero-variance window, got %f", i, v)
		}
	}
}

func TestPercentB_FlatClosesWithWickNotReady(t *testing.T) {
	// Identical closes do not sum to an exact mean; the band must still collapse.
	candles := flatCandles(21, 0.212, 0)
	candles[20].High = 0.2173

	bands := BollingerBands(candles, 20, 2)
	if b := bands[20]; b.Upper != b.Lower {
		t.Errorf("expected zero-width bands, got lower=%v upper=%v", b.Lower, b.Upper)
	}
	snap := Compute(candles, DefaultParams())
	if snap.PercentBReady {
		t.Errorf("expected %%B not ready on a flat window, got %v", snap.PercentB)
	}
}

func TestPercentB_WithinBands(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 12, 11, 12}
	series := PercentB(closesToCandles(closes...), 5, 2)
	bands := BollingerBands(closesToCandles(closes...), 5, 2)
	for i := 4; i < len(closes); i++ {
		if closes[i] < bands[i].Lower || closes[i] > bands[i].Upper {
			continue
		}
		if series[i] < 0 || series[i] > 1 {
			t.Errorf("index %d: close inside bands but %%B=%f", i, series[i])
		}
	}
}

func TestPercentB_AboveUpperBand(t *testing.T) {
	// Nineteen closes at 10 with small alternation, then a jump far above.
	closes := make([]float64, 0, 20)
	for i := 0; i < 19; i++ {
		closes = append(closes, 10+0.01*float64(i%2))
	}
	closes = append(closes, 20)
	series := PercentB(closesToCandles(closes...), 20, 2)
	if v := series[19]; !(v > 1) {
		t.Errorf("expected %%B > 1 above the upper band, got %f", v)
	}
}

func TestPercentB_Correctness(t *testing.T) {
	// closes 1..5, window 5: mean=3, sample sd=sqrt(10/4)=1.5811
	// lower = 3 - 2*1.5811 = -0.16228, upper = 6.16228
	// %B = (5 - -0.16228) / 6.32456 = 0.81623
	series := PercentB(closesToCandles(1, 2, 3, 4, 5), 5, 2)
	assertClose(t, "%B", series[4], 0.816228, 1e-6)
}
