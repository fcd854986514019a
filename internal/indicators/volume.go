package indicators

import "math"

// VolumeMA returns rolling volume averages for each requested window,
// keyed by window length.
func VolumeMA(volumes []float64, windows []int) map[int][]float64 {
	out := make(map[int][]float64, len(windows))
	for _, w := range windows {
		out[w] = SMA(volumes, w)
	}
	return out
}

// OBV computes On-Balance Volume: cumulative signed volume starting at 0.
// Volume is added when close rose, subtracted when close fell, carried
// unchanged when close was flat.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// VolumeROC returns the volume rate of change over each window, in percent.
// NaN until the base sample exists or when the base volume is zero.
func VolumeROC(volumes []float64, windows []int) map[int][]float64 {
	out := make(map[int][]float64, len(windows))
	for _, w := range windows {
		roc := nanSlice(len(volumes))
		for i := w; i < len(volumes); i++ {
			base := volumes[i-w]
			if base == 0 {
				roc[i] = math.NaN()
				continue
			}
			roc[i] = (volumes[i] - base) / base * 100
		}
		out[w] = roc
	}
	return out
}
