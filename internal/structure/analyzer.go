package structure

import (
	"confluence-engine/internal/series"
)

// Trend represents the market structure trend classification
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendRange   Trend = "range"
)

// SwingKind distinguishes swing highs from swing lows
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a confirmed local extremum. A swing at index i is only
// knowable once the full symmetric lookback window exists, so swings
// carry a lookback-candle confirmation latency.
type SwingPoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  SwingKind `json:"kind"`
}

// BreakKind distinguishes continuation breaks from character changes
type BreakKind string

const (
	BreakOfStructure  BreakKind = "BOS"
	ChangeOfCharacter BreakKind = "ChoCH"
)

// BreakEvent is a structure break fired at a specific candle
type BreakEvent struct {
	Kind      BreakKind `json:"kind"`
	Direction Trend     `json:"direction"`
}

// State is the causally derived market structure at one candle index
type State struct {
	Index         int         `json:"index"`
	Trend         Trend       `json:"trend"`
	LastSwingHigh *SwingPoint `json:"lastSwingHigh,omitempty"`
	LastSwingLow  *SwingPoint `json:"lastSwingLow,omitempty"`
	Break         *BreakEvent `json:"break,omitempty"`
	LiquidityHigh *float64    `json:"liquidityHigh,omitempty"`
	LiquidityLow  *float64    `json:"liquidityLow,omitempty"`
}

// Config holds structure analysis parameters
type Config struct {
	SwingLookback      int     // symmetric window half-width for swing detection
	LiquidityBufferPct float64 // offset applied beyond the last swing, in percent
}

// DefaultConfig returns the standard structure parameters
func DefaultConfig() Config {
	return Config{
		SwingLookback:      5,
		LiquidityBufferPct: 0.1,
	}
}

// Analyzer classifies market structure from swing points
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer, filling in defaults for unset
// parameters
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = def.SwingLookback
	}
	if cfg.LiquidityBufferPct <= 0 {
		cfg.LiquidityBufferPct = def.LiquidityBufferPct
	}
	return &Analyzer{cfg: cfg}
}

// Analyze walks the series once and emits one State per candle. Each
// state only uses information available at its index: a swing at index
// i enters the bookkeeping at index i+SwingLookback, when it becomes
// confirmable.
func (a *Analyzer) Analyze(s *series.CandleSeries) []State {
	candles := s.Candles
	L := a.cfg.SwingLookback

	states := make([]State, len(candles))

	var swingHighs, swingLows []SwingPoint
	var unconsumedHighs, unconsumedLows []SwingPoint
	var lastHigh, lastLow *SwingPoint

	for k := range candles {
		st := State{Index: k, Trend: TrendRange}

		var newHigh, newLow *SwingPoint

		// The swing candidate confirmable at this index.
		j := k - L
		if j >= L {
			if a.isSwingHigh(candles, j) {
				sp := SwingPoint{Index: j, Price: candles[j].High, Kind: SwingHigh}
				swingHighs = append(swingHighs, sp)
				unconsumedHighs = append(unconsumedHighs, sp)
				lastHigh = &swingHighs[len(swingHighs)-1]
				newHigh = lastHigh
			}
			if a.isSwingLow(candles, j) {
				sp := SwingPoint{Index: j, Price: candles[j].Low, Kind: SwingLow}
				swingLows = append(swingLows, sp)
				unconsumedLows = append(unconsumedLows, sp)
				lastLow = &swingLows[len(swingLows)-1]
				newLow = lastLow
			}
		}

		st.Break = a.breakEvent(candles[k].Close, newHigh, newLow, swingHighs, swingLows, &unconsumedHighs, &unconsumedLows)
		st.Trend = classifyTrend(swingHighs, swingLows)

		st.LastSwingHigh = lastHigh
		st.LastSwingLow = lastLow
		if lastHigh != nil {
			liq := lastHigh.Price * (1 + a.cfg.LiquidityBufferPct/100)
			st.LiquidityHigh = &liq
		}
		if lastLow != nil {
			liq := lastLow.Price * (1 - a.cfg.LiquidityBufferPct/100)
			st.LiquidityLow = &liq
		}

		states[k] = st
	}

	return states
}

// breakEvent resolves at most one structure break for the current
// candle. A character change supersedes a continuation break.
func (a *Analyzer) breakEvent(close float64, newHigh, newLow *SwingPoint, swingHighs, swingLows []SwingPoint, unconsumedHighs, unconsumedLows *[]SwingPoint) *BreakEvent {
	// ChoCH: the freshly confirmed swing against its predecessor.
	if newLow != nil && len(swingLows) >= 2 {
		prev := swingLows[len(swingLows)-2]
		if newLow.Price > prev.Price {
			return &BreakEvent{Kind: ChangeOfCharacter, Direction: TrendBullish}
		}
	}
	if newHigh != nil && len(swingHighs) >= 2 {
		prev := swingHighs[len(swingHighs)-2]
		if newHigh.Price < prev.Price {
			return &BreakEvent{Kind: ChangeOfCharacter, Direction: TrendBearish}
		}
	}

	// BOS: close crossing the most recent unconsumed swing. The broken
	// swing is consumed and never re-triggers; the next unconsumed one
	// becomes the reference.
	if n := len(*unconsumedHighs); n > 0 {
		ref := (*unconsumedHighs)[n-1]
		if close > ref.Price {
			*unconsumedHighs = (*unconsumedHighs)[:n-1]
			return &BreakEvent{Kind: BreakOfStructure, Direction: TrendBullish}
		}
	}
	if n := len(*unconsumedLows); n > 0 {
		ref := (*unconsumedLows)[n-1]
		if close < ref.Price {
			*unconsumedLows = (*unconsumedLows)[:n-1]
			return &BreakEvent{Kind: BreakOfStructure, Direction: TrendBearish}
		}
	}

	return nil
}

// isSwingHigh reports whether high[i] is the maximum over the symmetric
// window. Equal maxima all qualify independently.
func (a *Analyzer) isSwingHigh(candles []series.Candle, i int) bool {
	L := a.cfg.SwingLookback
	if i < L || i+L >= len(candles) {
		return false
	}
	for j := i - L; j <= i+L; j++ {
		if candles[j].High > candles[i].High {
			return false
		}
	}
	return true
}

// isSwingLow mirrors isSwingHigh for lows
func (a *Analyzer) isSwingLow(candles []series.Candle, i int) bool {
	L := a.cfg.SwingLookback
	if i < L || i+L >= len(candles) {
		return false
	}
	for j := i - L; j <= i+L; j++ {
		if candles[j].Low < candles[i].Low {
			return false
		}
	}
	return true
}

// classifyTrend uses the last two known swing highs and lows: both
// rising is bullish, both falling is bearish, anything else is range
func classifyTrend(swingHighs, swingLows []SwingPoint) Trend {
	if len(swingHighs) < 2 || len(swingLows) < 2 {
		return TrendRange
	}

	h1 := swingHighs[len(swingHighs)-2]
	h2 := swingHighs[len(swingHighs)-1]
	l1 := swingLows[len(swingLows)-2]
	l2 := swingLows[len(swingLows)-1]

	switch {
	case h2.Price > h1.Price && l2.Price > l1.Price:
		return TrendBullish
	case h2.Price < h1.Price && l2.Price < l1.Price:
		return TrendBearish
	default:
		return TrendRange
	}
}
