package indicators

import "math"

// RSI computes the Wilder-style relative strength index: average gain and
// loss are exponentially smoothed with center-of-mass periods-1 (alpha =
// 1/periods), seeded at the first price change. The first sample has no
// change and stays NaN. A window with zero average loss yields the 100
// sentinel when gains exist and NaN when the series was flat throughout.
func RSI(closes []float64, periods int) []float64 {
	out := nanSlice(len(closes))
	if periods <= 0 || len(closes) < 2 {
		return out
	}

	alpha := 1.0 / float64(periods)

	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}

		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		switch {
		case avgLoss > 0:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		case avgGain > 0:
			out[i] = 100
		default:
			out[i] = math.NaN()
		}
	}
	return out
}
