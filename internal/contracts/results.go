package contracts

import "time"

// StageTag identifies one filter stage in combinator provenance.
type StageTag string

const (
	StageRPS     StageTag = "RPS"
	StageMA      StageTag = "MA"
	StageVOL     StageTag = "VOL"
	StagePattern StageTag = "PATTERN"
	StageCross   StageTag = "CROSS"
	StageHigh    StageTag = "HIGH"
)

// RPSRecord is one instrument's percentile ranking for a window.
// Derived and ephemeral; recomputed per request, never persisted.
type RPSRecord struct {
	Code        string  `json:"ts_code"`
	Name        string  `json:"name"`
	Industry    string  `json:"industry"`
	PriceChange float64 `json:"price_change"` // ratio, not percent
	Rank        int     `json:"rank"`         // 1 = largest change
	RPS         float64 `json:"rps"`          // (0, 100]
}

// StageMetrics carries the diagnostic fields a stage attaches to each
// qualifying instrument. Only the fields relevant to the stage are set.
type StageMetrics struct {
	Close            float64  `json:"close,omitempty"`
	RPS              float64  `json:"rps,omitempty"`
	PriceChangePct   float64  `json:"price_change_pct,omitempty"`
	MATrendStrength  float64  `json:"ma_trend_strength,omitempty"`
	MaxVolRatio      float64  `json:"max_vol_ratio,omitempty"`
	BreakoutStrength float64  `json:"breakout_strength,omitempty"`
	CrossedMAs       []string `json:"crossed_mas,omitempty"`
}

// StageResult is the qualifying set one filter stage produced.
type StageResult struct {
	Tag  StageTag                `json:"tag"`
	Rows map[string]StageMetrics `json:"rows"` // key: instrument code
}

// Codes returns the qualifying instrument codes as a set.
func (r *StageResult) Codes() map[string]bool {
	set := make(map[string]bool, len(r.Rows))
	for code := range r.Rows {
		set[code] = true
	}
	return set
}

// Candidate is one final output row. Created only by the combinator and
// never mutated afterwards.
type Candidate struct {
	Code             string     `json:"ts_code"`
	DisplayCode      string     `json:"stock_code"`
	Name             string     `json:"name"`
	Industry         string     `json:"industry"`
	RPS              float64    `json:"rps"`
	PriceChangePct   float64    `json:"price_change_pct"`
	MATrendStrength  float64    `json:"ma_trend_strength"`
	MaxVolRatio      float64    `json:"max_vol_ratio"`
	BreakoutStrength float64    `json:"breakout_strength"`
	ConditionsMet    []StageTag `json:"conditions_met"`
}

// RunStatus summarizes one strategy run for callers and the API.
type RunStatus struct {
	Strategy    string    `json:"strategy"`
	EndDate     time.Time `json:"end_date"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Materialized int      `json:"materialized_rows"`
	Candidates  int       `json:"candidates"`
	Empty       bool      `json:"empty"` // terminated early on an empty stage
	ReportPath  string    `json:"report_path,omitempty"`
}
