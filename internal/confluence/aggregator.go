package confluence

import (
	"math"
	"sort"

	"confluence-engine/internal/zones"
)

// SignalTag identifies the source of a weighted level
type SignalTag string

const (
	TagOrderBlock   SignalTag = "order_block"
	TagFairValueGap SignalTag = "fair_value_gap"
	TagVolumePOC    SignalTag = "volume_poc"
	TagValueAreaHi  SignalTag = "value_area_high"
	TagValueAreaLo  SignalTag = "value_area_low"
	TagHighVolNode  SignalTag = "high_volume_node"
	TagMarketPOC    SignalTag = "market_poc"
	TagLiquidity    SignalTag = "liquidity"
)

// WeightedLevel is a single price level contributed by one detector,
// already weighted by the caller
type WeightedLevel struct {
	Price    float64    `json:"price"`
	Band     zones.Band `json:"band"`
	Tag      SignalTag  `json:"tag"`
	Strength float64    `json:"strength"`
}

// ConfluenceZone is a cluster of near-equal levels from independent
// signal sources. It lives for a single aggregation call and is never
// persisted across candles.
type ConfluenceZone struct {
	Level       float64     `json:"level"`
	Band        zones.Band  `json:"band"`
	Tags        []SignalTag `json:"tags"`
	Strength    float64     `json:"strength"`
	SignalCount int         `json:"signalCount"`
}

// Aggregator clusters weighted levels into confluence zones
type Aggregator struct {
	tolerancePct float64
}

// NewAggregator creates an aggregator with the given chaining tolerance
// in percent (0.5 when unset)
func NewAggregator(tolerancePct float64) *Aggregator {
	if tolerancePct <= 0 {
		tolerancePct = 0.5
	}
	return &Aggregator{tolerancePct: tolerancePct}
}

// FindZones sorts the levels by price and groups them left to right:
// a level joins the current cluster while it is within the tolerance of
// the previous level added, so a cluster's span can exceed the
// tolerance when prices drift gradually. Clusters with fewer than
// minSignals distinct tags are discarded; the result is ordered by
// strength descending.
//
// The price-sort pre-step (with tag and strength tie-breaks) makes the
// output independent of the input ordering of equal-price levels.
func (a *Aggregator) FindZones(levels []WeightedLevel, minSignals int) []ConfluenceZone {
	if len(levels) == 0 {
		return nil
	}

	sorted := make([]WeightedLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		if sorted[i].Tag != sorted[j].Tag {
			return sorted[i].Tag < sorted[j].Tag
		}
		return sorted[i].Strength < sorted[j].Strength
	})

	var out []ConfluenceZone
	cluster := []WeightedLevel{sorted[0]}
	for _, lvl := range sorted[1:] {
		prev := cluster[len(cluster)-1]
		if withinTolerance(prev.Price, lvl.Price, a.tolerancePct) {
			cluster = append(cluster, lvl)
			continue
		}
		if z, ok := buildZone(cluster, minSignals); ok {
			out = append(out, z)
		}
		cluster = []WeightedLevel{lvl}
	}
	if z, ok := buildZone(cluster, minSignals); ok {
		out = append(out, z)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].Level < out[j].Level
	})

	return out
}

func withinTolerance(prev, next, tolerancePct float64) bool {
	if prev == 0 {
		return next == 0
	}
	return math.Abs(next-prev)/math.Abs(prev)*100 <= tolerancePct
}

func buildZone(cluster []WeightedLevel, minSignals int) (ConfluenceZone, bool) {
	tags := make(map[SignalTag]bool)
	sum := 0.0
	strength := 0.0
	band := levelBand(cluster[0])
	for _, lvl := range cluster {
		sum += lvl.Price
		strength += lvl.Strength
		tags[lvl.Tag] = true
		lb := levelBand(lvl)
		if lb.Low < band.Low {
			band.Low = lb.Low
		}
		if lb.High > band.High {
			band.High = lb.High
		}
	}

	if len(tags) < minSignals {
		return ConfluenceZone{}, false
	}

	tagList := make([]SignalTag, 0, len(tags))
	for t := range tags {
		tagList = append(tagList, t)
	}
	sort.Slice(tagList, func(i, j int) bool { return tagList[i] < tagList[j] })

	return ConfluenceZone{
		Level:       sum / float64(len(cluster)),
		Band:        band,
		Tags:        tagList,
		Strength:    strength,
		SignalCount: len(tags),
	}, true
}

// levelBand falls back to a single-price band for point levels
func levelBand(lvl WeightedLevel) zones.Band {
	if lvl.Band.Low == 0 && lvl.Band.High == 0 {
		return zones.Band{Low: lvl.Price, High: lvl.Price}
	}
	return lvl.Band
}
