package indicator

import (
	"math"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// Bands holds one Bollinger band reading.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// flatTolerance is the relative deviation below which a window counts as
// flat. Summing identical closes leaves rounding residue in the mean, so an
// exact zero never comes out of the arithmetic.
const flatTolerance = 1e-12

// BollingerBands returns the rolling mean ± deviations*stddev of closes,
// using the sample (n-1) standard deviation. Entries before the first full
// window are NaN. A flat window gets zero-width bands.
func BollingerBands(candles []model.Candle, window int, deviations float64) []Bands {
	out := make([]Bands, len(candles))
	for i := range out {
		out[i] = Bands{math.NaN(), math.NaN(), math.NaN()}
	}
	if window < 2 || len(candles) < window {
		return out
	}

	for i := window - 1; i < len(candles); i++ {
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += candles[j].Close
		}
		mean := sum / float64(window)

		var sq float64
		for j := i - window + 1; j <= i; j++ {
			d := candles[j].Close - mean
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(window-1))
		if sd <= flatTolerance*math.Abs(mean) {
			sd = 0
		}

		out[i] = Bands{
			Middle: mean,
			Upper:  mean + deviations*sd,
			Lower:  mean - deviations*sd,
		}
	}
	return out
}

// PercentB returns (close-lower)/(upper-lower) per candle. A window with zero
// variance has upper == lower and yields NaN rather than ±Inf.
func PercentB(candles []model.Candle, window int, deviations float64) []float64 {
	bands := BollingerBands(candles, window, deviations)
	out := nanSeries(len(candles))
	for i, b := range bands {
		width := b.Upper - b.Lower
		if !Defined(width) || width <= 0 {
			continue
		}
		out[i] = (candles[i].Close - b.Lower) / width
	}
	return out
}
