package contracts

import (
	"math"
	"strings"
	"time"
)

// Bar is one instrument's daily OHLCV record. Bars are append-only history;
// only the moving-average columns are recomputed as more history accumulates.
// Numeric fields use NaN for values the repository stores as NULL.
type Bar struct {
	Code      string    `json:"ts_code"`
	Date      time.Time `json:"trade_date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	PreClose  float64   `json:"pre_close"`
	Change    float64   `json:"change"`
	PctChange float64   `json:"pct_chg"`
	Volume    float64   `json:"vol"`
	Amount    float64   `json:"amount"`

	// Precomputed moving averages of close and of volume.
	// NaN until enough history exists.
	MA5   float64 `json:"ma5"`
	MA10  float64 `json:"ma10"`
	MA20  float64 `json:"ma20"`
	MA30  float64 `json:"ma30"`
	MA60  float64 `json:"ma60"`
	MA120 float64 `json:"ma120"`

	MAV5   float64 `json:"ma_v_5"`
	MAV10  float64 `json:"ma_v_10"`
	MAV20  float64 `json:"ma_v_20"`
	MAV30  float64 `json:"ma_v_30"`
	MAV60  float64 `json:"ma_v_60"`
	MAV120 float64 `json:"ma_v_120"`
}

// MA returns the precomputed moving average of close for a period,
// or NaN when the period is not one of the stored columns.
func (b *Bar) MA(period int) float64 {
	switch period {
	case 5:
		return b.MA5
	case 10:
		return b.MA10
	case 20:
		return b.MA20
	case 30:
		return b.MA30
	case 60:
		return b.MA60
	case 120:
		return b.MA120
	}
	return math.NaN()
}

// MAV returns the precomputed moving average of volume for a period.
func (b *Bar) MAV(period int) float64 {
	switch period {
	case 5:
		return b.MAV5
	case 10:
		return b.MAV10
	case 20:
		return b.MAV20
	case 30:
		return b.MAV30
	case 60:
		return b.MAV60
	case 120:
		return b.MAV120
	}
	return math.NaN()
}

// MAPeriods lists the moving-average columns stored on every bar.
var MAPeriods = []int{5, 10, 20, 30, 60, 120}

// Instrument is static reference data for a tradable security.
type Instrument struct {
	Code        string    `json:"ts_code"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Market      string    `json:"market"`
	ListingDate time.Time `json:"list_date"`
}

// Sentinel values substituted when an instrument appears in price data but
// not in the reference table.
const (
	UnknownName     = "Unknown"
	UnknownIndustry = "Unknown"
)

// DisplayCode strips the exchange suffix from an exchange-qualified code
// (e.g. "600519.SH" -> "600519").
func DisplayCode(code string) string {
	if i := strings.IndexByte(code, '.'); i >= 0 {
		return code[:i]
	}
	return code
}
