package profile

import (
	"confluence-engine/internal/series"
)

// MarketState classifies where the current close sits relative to the
// value area
type MarketState string

const (
	StateTrending MarketState = "trending"
	StateBalanced MarketState = "balanced"
)

// Bin is one price bucket of a distribution profile
type Bin struct {
	PriceCenter float64 `json:"priceCenter"`
	Volume      float64 `json:"volume"`
}

// Profile is a binned price/volume (or price/time) distribution.
// Invariant: VAL <= POC <= VAH, and the volume between VAL and VAH is
// the smallest contiguous span around the POC holding at least the
// configured value area percentage.
type Profile struct {
	POC             float64     `json:"poc"`
	VAL             float64     `json:"val"`
	VAH             float64     `json:"vah"`
	Bins            []Bin       `json:"bins"`
	TotalVolume     float64     `json:"totalVolume"`
	HighVolumeNodes []float64   `json:"highVolumeNodes,omitempty"`
	LowVolumeNodes  []float64   `json:"lowVolumeNodes,omitempty"`
	MarketState     MarketState `json:"marketState,omitempty"`
}

// Config holds profile calculation parameters
type Config struct {
	Bins             int     // number of equal-width price buckets
	ValueAreaPercent float64 // share of total volume the value area must hold
	HVNMultiplier    float64 // bins above this multiple of mean volume are high-volume nodes
	LVNMultiplier    float64 // bins below this multiple of mean volume are low-volume nodes
}

// DefaultConfig returns the standard profile parameters
func DefaultConfig() Config {
	return Config{
		Bins:             24,
		ValueAreaPercent: 0.70,
		HVNMultiplier:    1.5,
		LVNMultiplier:    0.5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Bins <= 0 {
		c.Bins = def.Bins
	}
	if c.ValueAreaPercent <= 0 || c.ValueAreaPercent > 1 {
		c.ValueAreaPercent = def.ValueAreaPercent
	}
	if c.HVNMultiplier <= 0 {
		c.HVNMultiplier = def.HVNMultiplier
	}
	if c.LVNMultiplier <= 0 {
		c.LVNMultiplier = def.LVNMultiplier
	}
	return c
}

// compute builds a profile over the window, weighting each candle by
// weight(c) spread evenly across every bucket its low-high range
// touches. Returns nil when the window is empty or carries no weight;
// callers treat nil as "skip this signal", never as zero.
func compute(window []series.Candle, cfg Config, weight func(series.Candle) float64) *Profile {
	if len(window) == 0 {
		return nil
	}

	minPrice := window[0].Low
	maxPrice := window[0].High
	for _, c := range window[1:] {
		if c.Low < minPrice {
			minPrice = c.Low
		}
		if c.High > maxPrice {
			maxPrice = c.High
		}
	}

	// Collapsed range: the whole window traded at one price.
	if minPrice == maxPrice {
		total := 0.0
		for _, c := range window {
			total += weight(c)
		}
		if total <= 0 {
			return nil
		}
		return &Profile{
			POC:         minPrice,
			VAL:         minPrice,
			VAH:         minPrice,
			Bins:        []Bin{{PriceCenter: minPrice, Volume: total}},
			TotalVolume: total,
		}
	}

	nBins := cfg.Bins
	width := (maxPrice - minPrice) / float64(nBins)
	bins := make([]Bin, nBins)
	for i := range bins {
		bins[i].PriceCenter = minPrice + (float64(i)+0.5)*width
	}

	total := 0.0
	for _, c := range window {
		w := weight(c)
		if w <= 0 {
			continue
		}
		lo := bucketIndex(c.Low, minPrice, width, nBins)
		hi := bucketIndex(c.High, minPrice, width, nBins)
		if hi < lo {
			hi = lo
		}
		share := w / float64(hi-lo+1)
		for b := lo; b <= hi; b++ {
			bins[b].Volume += share
		}
		total += w
	}
	if total <= 0 {
		return nil
	}

	poc := 0
	for i := 1; i < nBins; i++ {
		if bins[i].Volume > bins[poc].Volume {
			poc = i
		}
	}

	lower, upper := expandValueArea(bins, poc, cfg.ValueAreaPercent*total)

	p := &Profile{
		POC:         bins[poc].PriceCenter,
		VAL:         bins[lower].PriceCenter,
		VAH:         bins[upper].PriceCenter,
		Bins:        bins,
		TotalVolume: total,
	}

	mean := total / float64(nBins)
	for _, b := range bins {
		if b.Volume > mean*cfg.HVNMultiplier {
			p.HighVolumeNodes = append(p.HighVolumeNodes, b.PriceCenter)
		} else if b.Volume < mean*cfg.LVNMultiplier {
			p.LowVolumeNodes = append(p.LowVolumeNodes, b.PriceCenter)
		}
	}

	return p
}

// bucketIndex maps a price onto a bucket, clamping the top edge into
// the last bucket
func bucketIndex(price, minPrice, width float64, nBins int) int {
	idx := int((price - minPrice) / width)
	if idx < 0 {
		idx = 0
	}
	if idx >= nBins {
		idx = nBins - 1
	}
	return idx
}

// expandValueArea grows the [lower, upper] bucket window outward from
// the POC one side at a time, preferring the side whose next adjacent
// bucket holds more volume (ties expand the lower side), until the
// accumulated volume reaches the target or both sides are exhausted.
func expandValueArea(bins []Bin, poc int, target float64) (int, int) {
	lower, upper := poc, poc
	acc := bins[poc].Volume

	for acc < target {
		canLower := lower > 0
		canUpper := upper < len(bins)-1
		if !canLower && !canUpper {
			break
		}

		switch {
		case canLower && canUpper:
			if bins[lower-1].Volume >= bins[upper+1].Volume {
				lower--
				acc += bins[lower].Volume
			} else {
				upper++
				acc += bins[upper].Volume
			}
		case canLower:
			lower--
			acc += bins[lower].Volume
		default:
			upper++
			acc += bins[upper].Volume
		}
	}

	return lower, upper
}
