package zones

import (
	"confluence-engine/internal/series"
)

// Strength classes assigned to fair value gaps
const (
	fvgWeakStrength   = 1.0
	fvgStrongStrength = 1.5
)

// FVGConfig holds fair value gap detection parameters
type FVGConfig struct {
	MinSizePct         float64 // discard gaps smaller than this, in percent
	StrongThresholdPct float64 // gaps at or above this size are classified strong
	MaxAgeBars         int     // candles a gap stays valid without being filled
}

// DefaultFVGConfig returns the standard detection parameters
func DefaultFVGConfig() FVGConfig {
	return FVGConfig{
		MinSizePct:         0.1,
		StrongThresholdPct: 0.5,
		MaxAgeBars:         100,
	}
}

// FVGDetector detects fair value gaps: 3-candle imbalances where the
// outer candles do not overlap
type FVGDetector struct {
	cfg FVGConfig
}

// NewFVGDetector creates a detector, filling in defaults for unset
// parameters
func NewFVGDetector(cfg FVGConfig) *FVGDetector {
	def := DefaultFVGConfig()
	if cfg.MinSizePct <= 0 {
		cfg.MinSizePct = def.MinSizePct
	}
	if cfg.StrongThresholdPct <= 0 {
		cfg.StrongThresholdPct = def.StrongThresholdPct
	}
	if cfg.MaxAgeBars <= 0 {
		cfg.MaxAgeBars = def.MaxAgeBars
	}
	return &FVGDetector{cfg: cfg}
}

// Detect scans the series for fair value gaps and returns them with
// their validity intervals resolved. A gap is filled the first time a
// close lies inside its band; filling is one-shot.
func (d *FVGDetector) Detect(s *series.CandleSeries) []Zone {
	candles := s.Candles
	if len(candles) < 3 {
		return nil
	}

	var out []Zone
	for i := 2; i < len(candles); i++ {
		c1 := candles[i-2]
		c3 := candles[i]

		var band Band
		var direction Direction
		switch {
		case c1.High < c3.Low:
			direction = Bullish
			band = Band{Low: c1.High, High: c3.Low}
		case c1.Low > c3.High:
			direction = Bearish
			band = Band{Low: c3.High, High: c1.Low}
		default:
			continue
		}

		if band.Low <= 0 {
			continue
		}
		gapPct := (band.High - band.Low) / band.Low * 100
		if gapPct < d.cfg.MinSizePct {
			continue
		}

		strength := fvgWeakStrength
		if gapPct >= d.cfg.StrongThresholdPct {
			strength = fvgStrongStrength
		}

		zone := Zone{
			Kind:        KindFairValueGap,
			Direction:   direction,
			Band:        band,
			OriginIndex: i,
			ValidFrom:   i,
			Strength:    strength,
		}
		propagateValidity(&zone, candles, d.cfg.MaxAgeBars, func(z *Zone, close float64) bool {
			return z.Band.Contains(close)
		})
		out = append(out, zone)
	}

	return out
}
