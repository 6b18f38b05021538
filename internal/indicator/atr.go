package indicator

import (
	"math"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per
// candle. The first candle has no previous close and is NaN.
func TrueRange(candles []model.Candle) []float64 {
	out := nanSeries(len(candles))
	for i := 1; i < len(candles); i++ {
		c, prevClose := candles[i], candles[i-1].Close
		out[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return out
}

// ATR calculates Average True Range as the simple rolling mean of the true
// range over period candles. The first defined value sits at index period,
// so a sequence of period+k candles yields exactly k defined values.
func ATR(candles []model.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period+1 {
		return out
	}
	tr := TrueRange(candles)

	var sum float64
	for i := 1; i < len(candles); i++ {
		sum += tr[i]
		if i > period {
			sum -= tr[i-period]
		}
		if i >= period {
			out[i] = sum / float64(period)
		}
	}
	return out
}
