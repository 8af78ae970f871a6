package profile

import (
	"confluence-engine/internal/series"
)

// MarketProfileCalculator bins time-at-price: every candle contributes
// one unit of time spread across the buckets it touched (a TPO-style
// distribution)
type MarketProfileCalculator struct {
	cfg Config
}

// NewMarketProfileCalculator creates a calculator, filling in defaults
// for unset parameters
func NewMarketProfileCalculator(cfg Config) *MarketProfileCalculator {
	return &MarketProfileCalculator{cfg: cfg.withDefaults()}
}

// Compute builds the time-at-price distribution for the window and
// classifies the market state: trending when the current close sits
// outside the value area, balanced otherwise. Returns nil for an empty
// window.
func (m *MarketProfileCalculator) Compute(window []series.Candle) *Profile {
	p := compute(window, m.cfg, func(series.Candle) float64 {
		return 1
	})
	if p == nil {
		return nil
	}

	close := window[len(window)-1].Close
	if close < p.VAL || close > p.VAH {
		p.MarketState = StateTrending
	} else {
		p.MarketState = StateBalanced
	}
	return p
}
