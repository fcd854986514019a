package strategy

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/dates"
)

// rpsReport renders the full ranked list. Labels follow the
// "{end_date}-rps-{interval}days" convention.
func rpsReport(end time.Time, periodDays int, records []contracts.RPSRecord) *contracts.Report {
	report := &contracts.Report{
		Label:  fmt.Sprintf("%s-rps-%ddays", dates.FormatCompact(end), periodDays),
		Header: []string{"stock_code", "name", "industry", "price_change_pct", "rank", "rps"},
	}
	for _, rec := range records {
		report.Rows = append(report.Rows, []string{
			contracts.DisplayCode(rec.Code),
			rec.Name,
			rec.Industry,
			percent(rec.PriceChange * 100),
			strconv.Itoa(rec.Rank),
			whole(rec.RPS),
		})
	}
	return report
}

// candidateReport renders a combined candidate list for one strategy.
func candidateReport(strategy string, end time.Time, candidates []contracts.Candidate) *contracts.Report {
	report := &contracts.Report{
		Label: fmt.Sprintf("%s-%s", dates.FormatCompact(end), strategy),
		Header: []string{
			"stock_code", "name", "industry", "rps", "price_change_pct",
			"ma_trend_strength", "max_vol_ratio", "breakout_strength", "conditions_met",
		},
	}
	for _, c := range candidates {
		report.Rows = append(report.Rows, []string{
			c.DisplayCode,
			c.Name,
			c.Industry,
			whole(c.RPS),
			percent(c.PriceChangePct),
			percent(c.MATrendStrength),
			percent(c.MaxVolRatio),
			percent(c.BreakoutStrength),
			JoinTags(c.ConditionsMet),
		})
	}
	return report
}

// percent renders a percentage-style value with 2 decimals.
func percent(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// whole renders a percentile or rank rounded to an integer.
func whole(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.Itoa(int(math.Round(v)))
}
