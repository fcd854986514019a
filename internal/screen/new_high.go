package screen

import (
	"context"
	"math"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// NewHighConfig defines the trailing-high screen.
type NewHighConfig struct {
	// Interval is the trailing window, in days, the close must dominate.
	Interval int
}

// NewHighStage selects instruments whose latest close equals the maximum
// close over the trailing interval, today included.
type NewHighStage struct {
	config NewHighConfig
	logger *logger.Logger
}

// NewNewHighStage creates a new trailing-high stage.
func NewNewHighStage(config NewHighConfig, log *logger.Logger) *NewHighStage {
	if config.Interval <= 0 {
		config.Interval = 60
	}
	return &NewHighStage{config: config, logger: log}
}

// Tag identifies this stage in combinator provenance.
func (s *NewHighStage) Tag() contracts.StageTag { return contracts.StageHigh }

// Screen applies the trailing-high check per instrument.
func (s *NewHighStage) Screen(ctx context.Context, bars map[string][]contracts.Bar) (*contracts.StageResult, error) {
	result := &contracts.StageResult{
		Tag:  s.Tag(),
		Rows: make(map[string]contracts.StageMetrics),
	}

	for code, seq := range bars {
		window := tail(seq, s.config.Interval)
		if len(window) == 0 {
			continue
		}
		latest := window[len(window)-1]
		if !valid(latest.Close) {
			continue
		}

		maxClose := math.Inf(-1)
		for i := range window {
			if valid(window[i].Close) && window[i].Close > maxClose {
				maxClose = window[i].Close
			}
		}
		if latest.Close != maxClose {
			continue
		}

		result.Rows[code] = contracts.StageMetrics{Close: latest.Close}
	}

	s.logger.WithFields(map[string]interface{}{
		"input":  len(bars),
		"passed": len(result.Rows),
	}).Info("new high screening completed")

	return result, nil
}
