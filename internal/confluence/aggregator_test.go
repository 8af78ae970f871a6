package confluence

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"confluence-engine/internal/zones"
)

func TestFindZonesClustering(t *testing.T) {
	levels := []WeightedLevel{
		{Price: 100.0, Tag: TagOrderBlock, Strength: 2.0, Band: zones.Band{Low: 99.5, High: 100.5}},
		{Price: 100.3, Tag: TagVolumePOC, Strength: 1.0},
		{Price: 110.0, Tag: TagFairValueGap, Strength: 1.5, Band: zones.Band{Low: 109.8, High: 110.4}},
		{Price: 110.2, Tag: TagHighVolNode, Strength: 1.5},
		{Price: 110.4, Tag: TagLiquidity, Strength: 1.0},
		{Price: 150.0, Tag: TagValueAreaHi, Strength: 1.0},
	}

	a := NewAggregator(0.5)
	got := a.FindZones(levels, 2)
	if len(got) != 2 {
		t.Fatalf("FindZones() returned %d zones, want 2 (lone level filtered)", len(got))
	}

	// Strongest cluster first: three signals at 110 sum to 4.0
	z := got[0]
	if z.SignalCount != 3 || z.Strength != 4.0 {
		t.Errorf("top zone = %d signals strength %v, want 3 signals strength 4.0", z.SignalCount, z.Strength)
	}
	if math.Abs(z.Level-110.2) > 1e-9 {
		t.Errorf("top zone level = %v, want 110.2", z.Level)
	}
	// Band unions the member bands, point levels contributing point bands
	if z.Band.Low != 109.8 || z.Band.High != 110.4 {
		t.Errorf("top zone band = %+v, want [109.8, 110.4]", z.Band)
	}
	wantTags := []SignalTag{TagFairValueGap, TagHighVolNode, TagLiquidity}
	if !reflect.DeepEqual(z.Tags, wantTags) {
		t.Errorf("top zone tags = %v, want %v", z.Tags, wantTags)
	}

	z = got[1]
	if z.SignalCount != 2 {
		t.Errorf("second zone signals = %d, want 2", z.SignalCount)
	}
	if math.Abs(z.Level-100.15) > 1e-9 {
		t.Errorf("second zone level = %v, want 100.15", z.Level)
	}
	if z.Band.Low != 99.5 || z.Band.High != 100.5 {
		t.Errorf("second zone band = %+v, want [99.5, 100.5]", z.Band)
	}
}

func TestFindZonesChainedTolerance(t *testing.T) {
	// 100 -> 100.4 -> 100.8: each step is inside the 0.5% tolerance but
	// the endpoints are not; chaining must still form one cluster
	levels := []WeightedLevel{
		{Price: 100.0, Tag: TagOrderBlock, Strength: 1.0},
		{Price: 100.4, Tag: TagVolumePOC, Strength: 1.0},
		{Price: 100.8, Tag: TagLiquidity, Strength: 1.0},
	}

	a := NewAggregator(0.5)
	got := a.FindZones(levels, 2)
	if len(got) != 1 {
		t.Fatalf("FindZones() returned %d zones, want 1 chained cluster", len(got))
	}
	if got[0].SignalCount != 3 {
		t.Errorf("SignalCount = %d, want 3", got[0].SignalCount)
	}
	if math.Abs(got[0].Level-100.4) > 1e-9 {
		t.Errorf("Level = %v, want 100.4", got[0].Level)
	}

	// Without the 100.4 bridge the endpoints are 0.8% apart: two
	// singleton clusters, neither reaching the two-signal minimum
	sparse := []WeightedLevel{
		{Price: 100.0, Tag: TagOrderBlock, Strength: 1.0},
		{Price: 100.8, Tag: TagLiquidity, Strength: 1.0},
	}
	if got := a.FindZones(sparse, 2); len(got) != 0 {
		t.Errorf("FindZones(no bridge) returned %d zones, want 0", len(got))
	}
}

func TestFindZonesOrderIndependence(t *testing.T) {
	levels := []WeightedLevel{
		{Price: 100.0, Tag: TagOrderBlock, Strength: 2.0},
		{Price: 100.2, Tag: TagVolumePOC, Strength: 1.5},
		{Price: 100.2, Tag: TagLiquidity, Strength: 1.0},
		{Price: 105.0, Tag: TagFairValueGap, Strength: 1.2},
		{Price: 105.3, Tag: TagHighVolNode, Strength: 0.8},
	}

	a := NewAggregator(0.5)
	want := a.FindZones(levels, 2)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]WeightedLevel, len(levels))
		copy(shuffled, levels)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := a.FindZones(shuffled, 2)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: FindZones() depends on input order:\ngot  %+v\nwant %+v", trial, got, want)
		}
	}
}

func TestFindZonesMinSignalsDistinctTags(t *testing.T) {
	// Two levels from the same source must not count as confluence
	levels := []WeightedLevel{
		{Price: 100.0, Tag: TagOrderBlock, Strength: 1.0},
		{Price: 100.1, Tag: TagOrderBlock, Strength: 1.0},
	}

	a := NewAggregator(0.5)
	if got := a.FindZones(levels, 2); len(got) != 0 {
		t.Errorf("FindZones() = %d zones, want 0 for single-source cluster", len(got))
	}

	// A genuine second source qualifies
	levels[1].Tag = TagVolumePOC
	got := a.FindZones(levels, 2)
	if len(got) != 1 {
		t.Fatalf("FindZones() = %d zones, want 1", len(got))
	}
	if got[0].SignalCount != 2 {
		t.Errorf("SignalCount = %d, want 2", got[0].SignalCount)
	}
}

func TestFindZonesEmpty(t *testing.T) {
	a := NewAggregator(0.5)
	if got := a.FindZones(nil, 2); got != nil {
		t.Errorf("FindZones(nil) = %v, want nil", got)
	}
}

func TestFindZonesMinSignalsOne(t *testing.T) {
	levels := []WeightedLevel{
		{Price: 100.0, Tag: TagOrderBlock, Strength: 1.0},
		{Price: 150.0, Tag: TagLiquidity, Strength: 3.0},
	}

	a := NewAggregator(0.5)
	got := a.FindZones(levels, 1)
	if len(got) != 2 {
		t.Fatalf("FindZones() = %d zones, want 2 singletons", len(got))
	}
	// Ordered by strength descending
	if got[0].Level != 150.0 || got[1].Level != 100.0 {
		t.Errorf("zone order = %v then %v, want 150 then 100", got[0].Level, got[1].Level)
	}
}
