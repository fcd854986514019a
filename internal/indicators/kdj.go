package indicators

// KDJResult holds the stochastic oscillator series.
type KDJResult struct {
	K []float64
	D []float64
	J []float64
}

// KDJ computes the KDJ stochastic oscillator. Defaults in practice:
// n=9, m1=3, m2=3.
//
// RSV = 100 * (close - min(low, n)) / (max(high, n) - min(low, n)), 0 when
// the range is 0. K and D are recursive smoothings seeded at 50 with weight
// 1/m1 (resp. 1/m2) on the new value; J = 3K - 2D. The rolling extrema use
// partial windows so the series is defined from the first sample.
func KDJ(highs, lows, closes []float64, n, m1, m2 int) KDJResult {
	count := len(closes)
	k := make([]float64, count)
	d := make([]float64, count)
	j := make([]float64, count)
	if count == 0 {
		return KDJResult{K: k, D: d, J: j}
	}

	lowMin := RollingMin(lows, n)
	highMax := RollingMax(highs, n)

	rsv := make([]float64, count)
	for i := 0; i < count; i++ {
		rng := highMax[i] - lowMin[i]
		if rng == 0 {
			rsv[i] = 0
			continue
		}
		rsv[i] = 100 * (closes[i] - lowMin[i]) / rng
	}

	k[0], d[0] = 50, 50
	fm1, fm2 := float64(m1), float64(m2)
	for i := 1; i < count; i++ {
		k[i] = (fm1-1)/fm1*k[i-1] + rsv[i]/fm1
		d[i] = (fm2-1)/fm2*d[i-1] + k[i]/fm2
	}

	for i := 0; i < count; i++ {
		j[i] = 3*k[i] - 2*d[i]
	}

	return KDJResult{K: k, D: d, J: j}
}
