package zones

import (
	"testing"

	"confluence-engine/internal/series"
)

func TestFVGDetectBullish(t *testing.T) {
	candles := []series.Candle{
		{OpenTime: 1000, Open: 99.5, High: 100, Low: 99, Close: 99.8, Volume: 10},
		{OpenTime: 2000, Open: 99.8, High: 101.5, Low: 99.7, Close: 101.4, Volume: 30},
		{OpenTime: 3000, Open: 101.4, High: 102.5, Low: 101, Close: 102, Volume: 20},
		{OpenTime: 4000, Open: 102, High: 102.6, Low: 101.5, Close: 102.2, Volume: 10},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	got := d.Detect(mkSeries(t, candles))
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d zones, want 1", len(got))
	}

	z := got[0]
	if z.Kind != KindFairValueGap {
		t.Errorf("Kind = %v, want %v", z.Kind, KindFairValueGap)
	}
	if z.Direction != Bullish {
		t.Errorf("Direction = %v, want %v", z.Direction, Bullish)
	}
	if z.Band.Low != 100 || z.Band.High != 101 {
		t.Errorf("Band = %+v, want [100, 101]", z.Band)
	}
	// 1% gap exceeds the strong threshold
	if z.Strength != 1.5 {
		t.Errorf("Strength = %v, want 1.5", z.Strength)
	}
	if z.ValidUntil != nil {
		t.Errorf("ValidUntil = %d, want nil while unfilled", *z.ValidUntil)
	}
}

func TestFVGDetectBearish(t *testing.T) {
	candles := []series.Candle{
		{OpenTime: 1000, Open: 101.5, High: 102, Low: 101, Close: 101.2, Volume: 10},
		{OpenTime: 2000, Open: 101.2, High: 101.3, Low: 99.5, Close: 99.6, Volume: 30},
		{OpenTime: 3000, Open: 99.6, High: 100, Low: 99, Close: 99.2, Volume: 20},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	got := d.Detect(mkSeries(t, candles))
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d zones, want 1", len(got))
	}

	z := got[0]
	if z.Direction != Bearish {
		t.Errorf("Direction = %v, want %v", z.Direction, Bearish)
	}
	if z.Band.Low != 100 || z.Band.High != 101 {
		t.Errorf("Band = %+v, want [100, 101]", z.Band)
	}
}

func TestFVGFilledByClose(t *testing.T) {
	candles := []series.Candle{
		{OpenTime: 1000, Open: 99.5, High: 100, Low: 99, Close: 99.8, Volume: 10},
		{OpenTime: 2000, Open: 99.8, High: 101.5, Low: 99.7, Close: 101.4, Volume: 30},
		{OpenTime: 3000, Open: 101.4, High: 102.5, Low: 101, Close: 102, Volume: 20},
		{OpenTime: 4000, Open: 102, High: 102.6, Low: 101.5, Close: 102.2, Volume: 10},
		// Retrace closes inside the gap at index 4
		{OpenTime: 5000, Open: 102.2, High: 102.3, Low: 100.2, Close: 100.5, Volume: 25},
		{OpenTime: 6000, Open: 100.5, High: 101.8, Low: 100.4, Close: 101.6, Volume: 15},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	got := d.Detect(mkSeries(t, candles))
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d zones, want 1", len(got))
	}

	z := got[0]
	if z.ValidUntil == nil {
		t.Fatal("ValidUntil = nil, want fill index")
	}
	if *z.ValidUntil != 4 {
		t.Errorf("ValidUntil = %d, want 4", *z.ValidUntil)
	}
	if z.ActiveAt(4) {
		t.Error("zone must not be active at the fill index")
	}
	if !z.ActiveAt(3) {
		t.Error("zone should be active before the fill")
	}
	// Filling is one-shot: leaving the band later never reopens the zone
	if z.ActiveAt(5) {
		t.Error("zone must stay invalid after the fill")
	}
}

func TestFVGMinSizeFilter(t *testing.T) {
	// Gap of 0.02 on a base of 100 is 0.02%, below the 0.1% floor
	candles := []series.Candle{
		{OpenTime: 1000, Open: 99.5, High: 100, Low: 99, Close: 99.8, Volume: 10},
		{OpenTime: 2000, Open: 99.8, High: 100.3, Low: 99.7, Close: 100.2, Volume: 30},
		{OpenTime: 3000, Open: 100.2, High: 100.5, Low: 100.02, Close: 100.4, Volume: 20},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	if got := d.Detect(mkSeries(t, candles)); len(got) != 0 {
		t.Errorf("Detect() = %d zones, want 0 for sub-threshold gap", len(got))
	}
}

func TestFVGWeakStrength(t *testing.T) {
	// Gap of 0.2 on a base of 100 is 0.2%, above the floor but below
	// the 0.5% strong threshold
	candles := []series.Candle{
		{OpenTime: 1000, Open: 99.5, High: 100, Low: 99, Close: 99.8, Volume: 10},
		{OpenTime: 2000, Open: 99.8, High: 100.6, Low: 99.7, Close: 100.5, Volume: 30},
		{OpenTime: 3000, Open: 100.5, High: 100.9, Low: 100.2, Close: 100.8, Volume: 20},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	got := d.Detect(mkSeries(t, candles))
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d zones, want 1", len(got))
	}
	if got[0].Strength != 1.0 {
		t.Errorf("Strength = %v, want 1.0", got[0].Strength)
	}
}

func TestFVGNoGap(t *testing.T) {
	candles := []series.Candle{
		{OpenTime: 1000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{OpenTime: 2000, Open: 100.5, High: 101.5, Low: 99.5, Close: 101, Volume: 10},
		{OpenTime: 3000, Open: 101, High: 102, Low: 100.5, Close: 101.5, Volume: 10},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	if got := d.Detect(mkSeries(t, candles)); len(got) != 0 {
		t.Errorf("Detect() = %d zones, want 0 for overlapping candles", len(got))
	}
}

func TestFVGShortSeries(t *testing.T) {
	candles := []series.Candle{
		{OpenTime: 1000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{OpenTime: 2000, Open: 100.5, High: 101.5, Low: 99.5, Close: 101, Volume: 10},
	}

	d := NewFVGDetector(DefaultFVGConfig())
	if got := d.Detect(mkSeries(t, candles)); got != nil {
		t.Errorf("Detect(two candles) = %v, want nil", got)
	}
}
