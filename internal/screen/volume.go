package screen

import (
	"context"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// VolumeConfig defines the volume confirmation screen.
type VolumeConfig struct {
	// Lookback is the number of trailing days inspected.
	Lookback int
	// SurgeRatio is the minimum volume/MAV20 multiple for a surge day.
	SurgeRatio float64
	// MaxVolRatio caps the largest volume/MAV20 multiple in the window.
	MaxVolRatio float64
	// MaxDailyIncrease caps day-over-day volume growth.
	MaxDailyIncrease float64
}

// DefaultVolumeConfig returns the standard surge/contraction parameters.
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		Lookback:         10,
		SurgeRatio:       1.5,
		MaxVolRatio:      5.0,
		MaxDailyIncrease: 3.0,
	}
}

// VolumeStage selects instruments showing a healthy accumulation pattern:
// at least one up day on elevated volume and at least one down day on
// contracted volume, while rejecting windows with runaway volume spikes.
type VolumeStage struct {
	config VolumeConfig
	logger *logger.Logger
}

// NewVolumeStage creates a new volume confirmation stage.
func NewVolumeStage(config VolumeConfig, log *logger.Logger) *VolumeStage {
	if config.Lookback <= 0 {
		config.Lookback = 10
	}
	return &VolumeStage{config: config, logger: log}
}

// Tag identifies this stage in combinator provenance.
func (s *VolumeStage) Tag() contracts.StageTag { return contracts.StageVOL }

// Screen applies the surge/contraction checks per instrument.
func (s *VolumeStage) Screen(ctx context.Context, bars map[string][]contracts.Bar) (*contracts.StageResult, error) {
	result := &contracts.StageResult{
		Tag:  s.Tag(),
		Rows: make(map[string]contracts.StageMetrics),
	}

	for code, seq := range bars {
		maxRatio, ok := s.qualifies(seq)
		if !ok {
			continue
		}
		latest := seq[len(seq)-1]
		result.Rows[code] = contracts.StageMetrics{
			Close:       latest.Close,
			MaxVolRatio: maxRatio,
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"input":  len(bars),
		"passed": len(result.Rows),
	}).Info("volume screening completed")

	return result, nil
}

func (s *VolumeStage) qualifies(seq []contracts.Bar) (float64, bool) {
	window := tail(seq, s.config.Lookback)
	if len(window) == 0 {
		return 0, false
	}

	surge, contraction := false, false
	maxRatio := 0.0

	for i := range window {
		bar := &window[i]
		if !valid(bar.Volume, bar.MAV20, bar.PctChange) || bar.MAV20 == 0 {
			continue
		}
		ratio := bar.Volume / bar.MAV20
		if ratio > maxRatio {
			maxRatio = ratio
		}
		if ratio > s.config.SurgeRatio && bar.PctChange > 0 {
			surge = true
		}
		if ratio < 1.0 && bar.PctChange < 0 {
			contraction = true
		}
		if i > 0 {
			prev := window[i-1].Volume
			if valid(prev) && prev > 0 && bar.Volume/prev > s.config.MaxDailyIncrease {
				return 0, false
			}
		}
	}

	if !surge || !contraction {
		return 0, false
	}
	if maxRatio < s.config.SurgeRatio || maxRatio > s.config.MaxVolRatio {
		return 0, false
	}
	return maxRatio, true
}
