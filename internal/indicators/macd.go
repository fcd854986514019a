package indicators

// MACDResult holds the three MACD series.
type MACDResult struct {
	Line      []float64 // fast EMA - slow EMA (DIF)
	Signal    []float64 // EMA of Line (DEA)
	Histogram []float64 // Line - Signal
}

// MACD computes moving average convergence/divergence.
// Defaults in practice: fast=12, slow=26, signal=9.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}

	sig := EMA(line, signal)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}

	return MACDResult{Line: line, Signal: sig, Histogram: hist}
}
