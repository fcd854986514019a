// Package indicators contains pure per-series transforms over a single
// instrument's time-ordered bar sequence. Inputs are ascending by date;
// gaps simply mean fewer samples. NaN marks values that are not yet
// defined (too little history) and survives round-trips through the
// repository as NULL.
package indicators

import (
	"math"

	"github.com/astock-tools/screener/internal/contracts"
)

// SMA returns the simple moving average over window samples.
// Undefined (NaN) until window samples exist.
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing factor
// 2/(span+1), seeded by the first observed value.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span <= 0 || len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1.0)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}

// RollingMax returns the max over the trailing window, defined from the
// first sample onward (partial windows allowed).
func RollingMax(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		m := values[lo]
		for j := lo + 1; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin returns the min over the trailing window, defined from the
// first sample onward (partial windows allowed).
func RollingMin(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		m := values[lo]
		for j := lo + 1; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingStdDev returns the rolling sample standard deviation (ddof=1).
// Undefined until window samples exist.
func RollingStdDev(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 || len(values) < window {
		return out
	}

	for i := window - 1; i < len(values); i++ {
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += values[j]
		}
		mean := sum / float64(window)

		var sq float64
		for j := i - window + 1; j <= i; j++ {
			d := values[j] - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(window-1))
	}
	return out
}

// ApplyMovingAverages fills the stored MA and volume-MA columns on a bar
// sequence in place. Bars must be ascending by date and belong to one
// instrument. Called by ingestion after appending new history.
func ApplyMovingAverages(bars []contracts.Bar) {
	if len(bars) == 0 {
		return
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
		volumes[i] = bars[i].Volume
	}

	for _, period := range contracts.MAPeriods {
		ma := SMA(closes, period)
		mav := SMA(volumes, period)
		for i := range bars {
			setMA(&bars[i], period, ma[i], mav[i])
		}
	}
}

func setMA(b *contracts.Bar, period int, ma, mav float64) {
	switch period {
	case 5:
		b.MA5, b.MAV5 = ma, mav
	case 10:
		b.MA10, b.MAV10 = ma, mav
	case 20:
		b.MA20, b.MAV20 = ma, mav
	case 30:
		b.MA30, b.MAV30 = ma, mav
	case 60:
		b.MA60, b.MAV60 = ma, mav
	case 120:
		b.MA120, b.MAV120 = ma, mav
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
