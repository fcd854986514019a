package indicators

// BollingerResult holds the Bollinger Band series.
type BollingerResult struct {
	Middle    []float64 // SMA(close, window)
	Upper     []float64 // middle + k*stddev
	Lower     []float64 // middle - k*stddev
	Bandwidth []float64 // (upper - lower) / middle
	PercentB  []float64 // (close - lower) / (upper - lower)
}

// Bollinger computes Bollinger Bands. Defaults in practice: window=20, k=2.
// All series are NaN until window samples exist.
func Bollinger(closes []float64, window int, k float64) BollingerResult {
	middle := SMA(closes, window)
	std := RollingStdDev(closes, window)

	n := len(closes)
	upper := make([]float64, n)
	lower := make([]float64, n)
	bandwidth := make([]float64, n)
	percentB := make([]float64, n)

	for i := 0; i < n; i++ {
		upper[i] = middle[i] + k*std[i]
		lower[i] = middle[i] - k*std[i]
		bandwidth[i] = (upper[i] - lower[i]) / middle[i]
		percentB[i] = (closes[i] - lower[i]) / (upper[i] - lower[i])
	}

	return BollingerResult{
		Middle:    middle,
		Upper:     upper,
		Lower:     lower,
		Bandwidth: bandwidth,
		PercentB:  percentB,
	}
}
