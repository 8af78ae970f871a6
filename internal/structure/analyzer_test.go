package structure

import (
	"math"
	"testing"

	"confluence-engine/internal/series"
)

// zigzag builds one candle per price with a symmetric one-point range
func zigzag(t *testing.T, prices []float64) *series.CandleSeries {
	t.Helper()
	candles := make([]series.Candle, len(prices))
	for i, p := range prices {
		candles[i] = series.Candle{
			OpenTime: int64(i+1) * 1000,
			Open:     p, High: p + 1, Low: p - 1, Close: p,
			Volume: 10,
		}
	}
	s, err := series.NewCandleSeries("BTCUSDT", "1h", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries() error = %v", err)
	}
	return s
}

func TestAnalyzeBullishStructure(t *testing.T) {
	// Peaks at 2, 7, 12 and troughs at 4, 9, each higher than the last
	prices := []float64{100, 101, 102, 101, 100, 101, 103, 104, 103, 102, 103, 105, 106, 105, 104}
	a := NewAnalyzer(Config{SwingLookback: 2})

	states := a.Analyze(zigzag(t, prices))
	if len(states) != len(prices) {
		t.Fatalf("Analyze() returned %d states, want %d", len(states), len(prices))
	}

	// Swing at 2 is confirmable only once the window closes at 4
	if states[3].LastSwingHigh != nil {
		t.Error("swing high visible before its confirmation index")
	}
	sh := states[4].LastSwingHigh
	if sh == nil || sh.Index != 2 || sh.Price != 103 {
		t.Errorf("LastSwingHigh at 4 = %+v, want index 2 price 103", sh)
	}

	sl := states[6].LastSwingLow
	if sl == nil || sl.Index != 4 || sl.Price != 99 {
		t.Errorf("LastSwingLow at 6 = %+v, want index 4 price 99", sl)
	}

	// Close 104 is the first to clear the swing high at 103
	if states[6].Break != nil {
		t.Errorf("Break at 6 = %+v, want nil", states[6].Break)
	}
	b := states[7].Break
	if b == nil || b.Kind != BreakOfStructure || b.Direction != TrendBullish {
		t.Errorf("Break at 7 = %+v, want bullish BOS", b)
	}

	// Higher low confirmed at 11 changes character before any BOS
	b = states[11].Break
	if b == nil || b.Kind != ChangeOfCharacter || b.Direction != TrendBullish {
		t.Errorf("Break at 11 = %+v, want bullish ChoCH", b)
	}

	// The swing high left unconsumed by the ChoCH breaks on the next candle
	b = states[12].Break
	if b == nil || b.Kind != BreakOfStructure || b.Direction != TrendBullish {
		t.Errorf("Break at 12 = %+v, want bullish BOS", b)
	}

	if states[5].Trend != TrendRange {
		t.Errorf("Trend at 5 = %v, want range before two swings per side", states[5].Trend)
	}
	if states[14].Trend != TrendBullish {
		t.Errorf("Trend at 14 = %v, want bullish", states[14].Trend)
	}
}

func TestAnalyzeBearishStructure(t *testing.T) {
	prices := []float64{100, 99, 98, 99, 100, 99, 97, 96, 97, 98, 97, 95, 94, 95, 96}
	a := NewAnalyzer(Config{SwingLookback: 2})

	states := a.Analyze(zigzag(t, prices))

	b := states[7].Break
	if b == nil || b.Kind != BreakOfStructure || b.Direction != TrendBearish {
		t.Errorf("Break at 7 = %+v, want bearish BOS", b)
	}

	// Lower high confirmed at 11
	b = states[11].Break
	if b == nil || b.Kind != ChangeOfCharacter || b.Direction != TrendBearish {
		t.Errorf("Break at 11 = %+v, want bearish ChoCH", b)
	}

	b = states[12].Break
	if b == nil || b.Kind != BreakOfStructure || b.Direction != TrendBearish {
		t.Errorf("Break at 12 = %+v, want bearish BOS", b)
	}

	if states[14].Trend != TrendBearish {
		t.Errorf("Trend at 14 = %v, want bearish", states[14].Trend)
	}
}

func TestAnalyzeLiquidityLevels(t *testing.T) {
	prices := []float64{100, 101, 102, 101, 100, 101, 103, 104, 103, 102, 103, 105, 106, 105, 104}
	a := NewAnalyzer(Config{SwingLookback: 2, LiquidityBufferPct: 0.1})

	states := a.Analyze(zigzag(t, prices))

	st := states[4]
	if st.LiquidityHigh == nil {
		t.Fatal("LiquidityHigh at 4 = nil, want level above the swing high")
	}
	if math.Abs(*st.LiquidityHigh-103*1.001) > 1e-9 {
		t.Errorf("LiquidityHigh at 4 = %v, want %v", *st.LiquidityHigh, 103*1.001)
	}
	if st.LiquidityLow != nil {
		t.Error("LiquidityLow at 4 set before any swing low confirmed")
	}

	st = states[6]
	if st.LiquidityLow == nil {
		t.Fatal("LiquidityLow at 6 = nil, want level below the swing low")
	}
	if math.Abs(*st.LiquidityLow-99*0.999) > 1e-9 {
		t.Errorf("LiquidityLow at 6 = %v, want %v", *st.LiquidityLow, 99*0.999)
	}
}

func TestAnalyzeShortSeries(t *testing.T) {
	prices := []float64{100, 101, 102, 101, 100}
	a := NewAnalyzer(Config{SwingLookback: 2})

	states := a.Analyze(zigzag(t, prices))
	if len(states) != 5 {
		t.Fatalf("Analyze() returned %d states, want 5", len(states))
	}
	for _, st := range states {
		if st.Trend != TrendRange {
			t.Errorf("Trend at %d = %v, want range without confirmed swings", st.Index, st.Trend)
		}
		if st.Break != nil {
			t.Errorf("Break at %d = %+v, want nil", st.Index, st.Break)
		}
	}
}
