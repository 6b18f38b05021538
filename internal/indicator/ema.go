package indicator

// EMA calculates an unadjusted Exponential Moving Average over values.
// The series is seeded with the first value and is defined from index 0:
//
//	ema[0] = values[0]
//	ema[i] = α*values[i] + (1-α)*ema[i-1],  α = 2/(span+1)
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / float64(span+1)

	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
