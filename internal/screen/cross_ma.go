package screen

import (
	"context"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// CrossMAConfig defines the upward moving-average crossover screen.
type CrossMAConfig struct {
	// Lookback is the number of trailing days inspected for a cross.
	Lookback int
}

// CrossMAStage detects instruments whose close crossed above MA5 or MA10
// within the lookback window. The MA10 signal is stricter: the close must
// also sit above MA5, so a cross of the slower average below the faster one
// does not fire. A same-day open-below/close-above candle is an additional
// cross signal. Multiple qualifying days are reported once per indicator.
type CrossMAStage struct {
	config CrossMAConfig
	logger *logger.Logger
}

// NewCrossMAStage creates a new crossover stage.
func NewCrossMAStage(config CrossMAConfig, log *logger.Logger) *CrossMAStage {
	if config.Lookback <= 0 {
		config.Lookback = 3
	}
	return &CrossMAStage{config: config, logger: log}
}

// Tag identifies this stage in combinator provenance.
func (s *CrossMAStage) Tag() contracts.StageTag { return contracts.StageCross }

// Screen applies cross detection per instrument.
func (s *CrossMAStage) Screen(ctx context.Context, bars map[string][]contracts.Bar) (*contracts.StageResult, error) {
	result := &contracts.StageResult{
		Tag:  s.Tag(),
		Rows: make(map[string]contracts.StageMetrics),
	}

	for code, seq := range bars {
		crossed := s.detect(seq)
		if len(crossed) == 0 {
			continue
		}
		latest := seq[len(seq)-1]
		result.Rows[code] = contracts.StageMetrics{
			Close:      latest.Close,
			CrossedMAs: crossed,
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"input":  len(bars),
		"passed": len(result.Rows),
	}).Info("MA crossover screening completed")

	return result, nil
}

func (s *CrossMAStage) detect(seq []contracts.Bar) []string {
	// One extra bar so the oldest day in the window still has a previous day.
	window := tail(seq, s.config.Lookback+1)
	if len(window) < 2 {
		return nil
	}

	ma5, ma10 := false, false
	for i := 1; i < len(window); i++ {
		prev, cur := &window[i-1], &window[i]

		if !ma5 && crossedUp(prev.Close, prev.MA5, cur.Close, cur.MA5) {
			ma5 = true
		}
		if !ma10 && crossedUp(prev.Close, prev.MA10, cur.Close, cur.MA10) &&
			valid(cur.MA5) && cur.Close > cur.MA5 {
			ma10 = true
		}

		// Same-day pattern: opened below the average, closed above it
		if !ma5 && crossedUp(cur.Open, cur.MA5, cur.Close, cur.MA5) {
			ma5 = true
		}
		if !ma10 && crossedUp(cur.Open, cur.MA10, cur.Close, cur.MA10) &&
			valid(cur.MA5) && cur.Close > cur.MA5 {
			ma10 = true
		}
	}

	var crossed []string
	if ma5 {
		crossed = append(crossed, "MA5")
	}
	if ma10 {
		crossed = append(crossed, "MA10")
	}
	return crossed
}

// crossedUp reports a strict upward cross: below before, above after.
func crossedUp(prevPrice, prevMA, price, ma float64) bool {
	return valid(prevPrice, prevMA, price, ma) && prevPrice < prevMA && price > ma
}
