package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astock-tools/screener/internal/contracts"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	got := SMA(values, 3)
	require.Len(t, got, 5)

	// Undefined until the window fills
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))

	assert.InDelta(t, 2.0, got[2], 1e-9)
	assert.InDelta(t, 3.0, got[3], 1e-9)
	assert.InDelta(t, 4.0, got[4], 1e-9)
}

func TestSMA_BoundaryWindow(t *testing.T) {
	// Exactly window-1 samples: everything undefined
	short := SMA([]float64{10, 11, 12}, 4)
	for i, v := range short {
		assert.True(t, math.IsNaN(v), "index %d should be NaN", i)
	}

	// Exactly window samples: last value is the arithmetic mean of all
	exact := SMA([]float64{10, 11, 12, 13}, 4)
	assert.InDelta(t, 11.5, exact[3], 1e-9)
}

func TestEMA_SeededByFirstValue(t *testing.T) {
	values := []float64{10, 20, 30}
	got := EMA(values, 3) // alpha = 0.5

	assert.InDelta(t, 10.0, got[0], 1e-9)
	assert.InDelta(t, 15.0, got[1], 1e-9)
	assert.InDelta(t, 22.5, got[2], 1e-9)
}

func TestMACD(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	res := MACD(closes, 12, 26, 9)
	require.Len(t, res.Line, 60)

	// Identity holds everywhere
	for i := range closes {
		assert.InDelta(t, res.Line[i]-res.Signal[i], res.Histogram[i], 1e-9)
	}

	// A steadily rising series keeps the fast EMA above the slow one
	assert.Greater(t, res.Line[59], 0.0)
}

func TestMACD_ConstantSeries(t *testing.T) {
	closes := []float64{50, 50, 50, 50, 50, 50}
	res := MACD(closes, 3, 5, 2)
	for i := range closes {
		assert.InDelta(t, 0.0, res.Line[i], 1e-9)
		assert.InDelta(t, 0.0, res.Histogram[i], 1e-9)
	}
}

func TestRSI(t *testing.T) {
	// Strictly rising: no losses, sentinel 100
	rising := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	got := RSI(rising, 3)
	assert.True(t, math.IsNaN(got[0]))
	for i := 1; i < len(got); i++ {
		assert.InDelta(t, 100.0, got[i], 1e-9, "index %d", i)
	}

	// Flat series: 0/0, stays NaN rather than crashing
	flat := []float64{5, 5, 5, 5}
	for _, v := range RSI(flat, 3) {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRSI_MixedSeries(t *testing.T) {
	closes := []float64{10, 11, 10, 12, 11, 13}
	got := RSI(closes, 2) // alpha = 0.5

	// Hand-rolled recurrence: g/l pairs are (1,0),(0,1),(2,0),(0,1),(2,0)
	avgGain, avgLoss := 1.0, 0.0
	steps := [][2]float64{{0, 1}, {2, 0}, {0, 1}, {2, 0}}
	idx := 2
	for _, s := range steps {
		avgGain = 0.5*s[0] + 0.5*avgGain
		avgLoss = 0.5*s[1] + 0.5*avgLoss
		want := 100 - 100/(1+avgGain/avgLoss)
		assert.InDelta(t, want, got[idx], 1e-9, "index %d", idx)
		idx++
	}
}

func TestBollinger(t *testing.T) {
	closes := []float64{10, 12, 14, 16, 18}
	res := Bollinger(closes, 5, 2)

	require.Len(t, res.Middle, 5)
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(res.Middle[i]))
	}

	assert.InDelta(t, 14.0, res.Middle[4], 1e-9)

	// Sample stddev of 10,12,14,16,18 is sqrt(40/4) = sqrt(10)
	std := math.Sqrt(10)
	assert.InDelta(t, 14+2*std, res.Upper[4], 1e-9)
	assert.InDelta(t, 14-2*std, res.Lower[4], 1e-9)
	assert.InDelta(t, 4*std/14, res.Bandwidth[4], 1e-9)
	assert.InDelta(t, (18-(14-2*std))/(4*std), res.PercentB[4], 1e-9)
}

func TestKDJ(t *testing.T) {
	highs := []float64{12, 13, 14, 15}
	lows := []float64{8, 9, 10, 11}
	closes := []float64{10, 12, 13, 15}

	res := KDJ(highs, lows, closes, 9, 3, 3)
	require.Len(t, res.K, 4)

	// Seeds
	assert.InDelta(t, 50.0, res.K[0], 1e-9)
	assert.InDelta(t, 50.0, res.D[0], 1e-9)
	assert.InDelta(t, 50.0, res.J[0], 1e-9)

	// rsv[1] = 100*(12-8)/(13-8) = 80; k = 2/3*50 + 80/3
	wantK1 := 2.0/3.0*50 + 80.0/3.0
	assert.InDelta(t, wantK1, res.K[1], 1e-9)
	wantD1 := 2.0/3.0*50 + wantK1/3.0
	assert.InDelta(t, wantD1, res.D[1], 1e-9)
	assert.InDelta(t, 3*wantK1-2*wantD1, res.J[1], 1e-9)
}

func TestKDJ_ZeroRange(t *testing.T) {
	// Flat prices: high == low, RSV treated as 0, K decays toward 0
	highs := []float64{10, 10, 10}
	lows := []float64{10, 10, 10}
	closes := []float64{10, 10, 10}

	res := KDJ(highs, lows, closes, 9, 3, 3)
	assert.InDelta(t, 50.0, res.K[0], 1e-9)
	assert.InDelta(t, 100.0/3, res.K[1], 1e-9)
	assert.False(t, math.IsNaN(res.J[2]))
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 11, 9, 12}
	volumes := []float64{100, 200, 300, 400, 500}

	got := OBV(closes, volumes)
	assert.Equal(t, []float64{0, 200, 200, -200, 300}, got)
}

func TestVolumeROC(t *testing.T) {
	volumes := []float64{100, 150, 0, 300}
	got := VolumeROC(volumes, []int{1})[1]

	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 50.0, got[1], 1e-9)
	assert.InDelta(t, -100.0, got[2], 1e-9)
	assert.True(t, math.IsNaN(got[3]), "zero base is guarded, not divided")
}

func TestApplyMovingAverages(t *testing.T) {
	bars := make([]contracts.Bar, 6)
	for i := range bars {
		bars[i].Close = float64(i + 1)
		bars[i].Volume = float64((i + 1) * 10)
	}

	ApplyMovingAverages(bars)

	assert.True(t, math.IsNaN(bars[3].MA5))
	assert.InDelta(t, 3.0, bars[4].MA5, 1e-9)  // mean of 1..5
	assert.InDelta(t, 4.0, bars[5].MA5, 1e-9)  // mean of 2..6
	assert.InDelta(t, 30.0, bars[4].MAV5, 1e-9)
	assert.True(t, math.IsNaN(bars[5].MA120), "not enough history for MA120")
}
