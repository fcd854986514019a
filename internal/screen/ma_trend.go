package screen

import (
	"context"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// MATrendConfig defines the moving-average alignment screen.
type MATrendConfig struct {
	// Periods is the alignment chain, fastest first. The instrument must
	// satisfy close > MA(p0) >= MA(p1) >= ... on a qualifying day.
	Periods []int

	// MinDays and Lookback express the consistency requirement: alignment
	// must hold on at least MinDays of the last Lookback days. MinDays <= 1
	// degrades to a single-day snapshot of the latest bar.
	MinDays  int
	Lookback int

	// Gap guards on the latest bar, in percent. Zero disables a guard.
	MaxMA5MA10DiffPct  float64 // reject when MA5 runs too far above MA10
	MaxPriceMA5DiffPct float64 // reject when price runs too far above MA5
}

// DefaultMATrendConfig returns the daily batch configuration.
func DefaultMATrendConfig() MATrendConfig {
	return MATrendConfig{
		Periods:            []int{5, 10, 20, 30, 60},
		MinDays:            1,
		Lookback:           1,
		MaxMA5MA10DiffPct:  5.0,
		MaxPriceMA5DiffPct: 3.0,
	}
}

// MATrendStage screens for bullish moving-average alignment.
type MATrendStage struct {
	config MATrendConfig
	logger *logger.Logger
}

// NewMATrendStage creates a new alignment stage.
func NewMATrendStage(config MATrendConfig, log *logger.Logger) *MATrendStage {
	return &MATrendStage{config: config, logger: log}
}

// Tag identifies this stage in combinator provenance.
func (s *MATrendStage) Tag() contracts.StageTag { return contracts.StageMA }

// Screen applies the alignment predicate per instrument.
func (s *MATrendStage) Screen(ctx context.Context, bars map[string][]contracts.Bar) (*contracts.StageResult, error) {
	result := &contracts.StageResult{
		Tag:  s.Tag(),
		Rows: make(map[string]contracts.StageMetrics),
	}

	for code, seq := range bars {
		if len(seq) == 0 {
			continue
		}

		latest := seq[len(seq)-1]
		if !s.qualifies(seq) {
			continue
		}
		if reason := s.checkGaps(&latest); reason != "" {
			continue
		}

		metrics := contracts.StageMetrics{Close: latest.Close}
		if valid(latest.MA5, latest.MA20) && latest.MA20 != 0 {
			metrics.MATrendStrength = (latest.MA5/latest.MA20 - 1) * 100
		}
		result.Rows[code] = metrics
	}

	s.logger.WithFields(map[string]interface{}{
		"input":  len(bars),
		"passed": len(result.Rows),
	}).Info("MA alignment screening completed")

	return result, nil
}

// qualifies checks the consistency requirement over the lookback window.
func (s *MATrendStage) qualifies(seq []contracts.Bar) bool {
	minDays, lookback := s.config.MinDays, s.config.Lookback
	if minDays <= 1 && lookback <= 1 {
		return s.aligned(&seq[len(seq)-1])
	}

	window := tail(seq, lookback)
	hits := 0
	for i := range window {
		if s.aligned(&window[i]) {
			hits++
		}
	}
	return hits >= minDays
}

// aligned checks close > MA(fastest) and the non-increasing MA chain.
func (s *MATrendStage) aligned(b *contracts.Bar) bool {
	periods := s.config.Periods
	if len(periods) == 0 {
		return false
	}

	fastest := b.MA(periods[0])
	if !valid(b.Close, fastest) || b.Close <= fastest {
		return false
	}

	for i := 0; i < len(periods)-1; i++ {
		shorter, longer := b.MA(periods[i]), b.MA(periods[i+1])
		if !valid(shorter, longer) || shorter < longer {
			return false
		}
	}
	return true
}

// checkGaps rejects over-extended setups. Returns the failing guard name.
func (s *MATrendStage) checkGaps(b *contracts.Bar) string {
	if s.config.MaxMA5MA10DiffPct > 0 && valid(b.MA5, b.MA10) && b.MA10 != 0 {
		if (b.MA5/b.MA10-1)*100 > s.config.MaxMA5MA10DiffPct {
			return "ma5_ma10_gap"
		}
	}
	if s.config.MaxPriceMA5DiffPct > 0 && valid(b.Close, b.MA5) && b.MA5 != 0 {
		if (b.Close/b.MA5-1)*100 > s.config.MaxPriceMA5DiffPct {
			return "price_ma5_gap"
		}
	}
	return ""
}
