package screen

import (
	"context"
	"math"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// PatternConfig defines the breakout / pullback candlestick screen.
type PatternConfig struct {
	// BreakoutWindow is the number of preceding days whose high must be exceeded.
	BreakoutWindow int
	// PullbackWindow is the number of preceding days whose low must sit near MA20.
	PullbackWindow int
	// PullbackTolerancePct is the allowed MA20 distance for a pullback low, in percent.
	PullbackTolerancePct float64
}

// DefaultPatternConfig returns the standard breakout/pullback parameters.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		BreakoutWindow:       30,
		PullbackWindow:       10,
		PullbackTolerancePct: 3.0,
	}
}

// PatternStage selects instruments printing either a volume-backed breakout
// above the recent high, or a shallow pullback that held the 20-day average.
// In both cases the latest candle must not carry a long upper shadow.
type PatternStage struct {
	config PatternConfig
	logger *logger.Logger
}

// NewPatternStage creates a new breakout/pullback stage.
func NewPatternStage(config PatternConfig, log *logger.Logger) *PatternStage {
	if config.BreakoutWindow <= 0 {
		config.BreakoutWindow = 30
	}
	if config.PullbackWindow <= 0 {
		config.PullbackWindow = 10
	}
	if config.PullbackTolerancePct <= 0 {
		config.PullbackTolerancePct = 3.0
	}
	return &PatternStage{config: config, logger: log}
}

// Tag identifies this stage in combinator provenance.
func (s *PatternStage) Tag() contracts.StageTag { return contracts.StagePattern }

// Screen applies the pattern checks per instrument.
func (s *PatternStage) Screen(ctx context.Context, bars map[string][]contracts.Bar) (*contracts.StageResult, error) {
	result := &contracts.StageResult{
		Tag:  s.Tag(),
		Rows: make(map[string]contracts.StageMetrics),
	}

	for code, seq := range bars {
		strength, ok := s.qualifies(seq)
		if !ok {
			continue
		}
		latest := seq[len(seq)-1]
		result.Rows[code] = contracts.StageMetrics{
			Close:            latest.Close,
			BreakoutStrength: strength,
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"input":  len(bars),
		"passed": len(result.Rows),
	}).Info("pattern screening completed")

	return result, nil
}

func (s *PatternStage) qualifies(seq []contracts.Bar) (float64, bool) {
	if len(seq) < 2 {
		return 0, false
	}
	latest := &seq[len(seq)-1]
	if !valid(latest.Open, latest.High, latest.Close) {
		return 0, false
	}

	// Long upper shadows signal rejection at the highs.
	body := latest.Close - latest.Open
	shadow := latest.High - latest.Close
	if body <= 0 || shadow > body {
		return 0, false
	}

	if strength, ok := s.breakout(seq, latest); ok {
		return strength, true
	}
	if s.pullback(seq, latest) {
		return 0, true
	}
	return 0, false
}

func (s *PatternStage) breakout(seq []contracts.Bar, latest *contracts.Bar) (float64, bool) {
	preceding := seq[:len(seq)-1]
	window := tail(preceding, s.config.BreakoutWindow)
	if len(window) == 0 {
		return 0, false
	}

	maxHigh := math.Inf(-1)
	for i := range window {
		if valid(window[i].High) && window[i].High > maxHigh {
			maxHigh = window[i].High
		}
	}
	if math.IsInf(maxHigh, -1) || latest.Close <= maxHigh {
		return 0, false
	}
	if !valid(latest.Volume, latest.MAV20) || latest.Volume <= latest.MAV20 {
		return 0, false
	}
	return (latest.Close/maxHigh - 1) * 100, true
}

func (s *PatternStage) pullback(seq []contracts.Bar, latest *contracts.Bar) bool {
	if !valid(latest.MA20) || latest.MA20 == 0 || latest.Close <= latest.MA20 {
		return false
	}

	preceding := seq[:len(seq)-1]
	window := tail(preceding, s.config.PullbackWindow)
	if len(window) == 0 {
		return false
	}

	minLow := math.Inf(1)
	for i := range window {
		if valid(window[i].Low) && window[i].Low < minLow {
			minLow = window[i].Low
		}
	}
	if math.IsInf(minLow, 1) {
		return false
	}

	distPct := math.Abs(minLow/latest.MA20-1) * 100
	return distPct <= s.config.PullbackTolerancePct
}
