package profile

import (
	"confluence-engine/internal/series"
)

// VolumeProfileCalculator bins traded volume by price
type VolumeProfileCalculator struct {
	cfg Config
}

// NewVolumeProfileCalculator creates a calculator, filling in defaults
// for unset parameters
func NewVolumeProfileCalculator(cfg Config) *VolumeProfileCalculator {
	return &VolumeProfileCalculator{cfg: cfg.withDefaults()}
}

// Compute builds the volume distribution for the window. Returns nil
// for an empty window or one with zero total volume.
func (v *VolumeProfileCalculator) Compute(window []series.Candle) *Profile {
	return compute(window, v.cfg, func(c series.Candle) float64 {
		return c.Volume
	})
}
