package zones

import (
	"confluence-engine/internal/series"
)

// OrderBlockConfig holds order block detection parameters
type OrderBlockConfig struct {
	Lookback            int     // candles of lookahead used to measure the impulse
	MinCandles          int     // minimum consolidation window length
	MaxCandles          int     // maximum consolidation window length
	ImpulseThresholdPct float64 // minimum excursion from the consolidation close, in percent
	RangeMultiple       float64 // consolidation candle range cap as a multiple of the series average
	MaxAge              int     // candles a zone stays valid without being invalidated
}

// DefaultOrderBlockConfig returns the standard detection parameters
func DefaultOrderBlockConfig() OrderBlockConfig {
	return OrderBlockConfig{
		Lookback:            10,
		MinCandles:          3,
		MaxCandles:          15,
		ImpulseThresholdPct: 1.5,
		RangeMultiple:       1.5,
		MaxAge:              100,
	}
}

// OrderBlockDetector finds consolidation ranges immediately preceding an
// impulsive move
type OrderBlockDetector struct {
	cfg OrderBlockConfig
}

// NewOrderBlockDetector creates a detector, filling in defaults for
// unset parameters
func NewOrderBlockDetector(cfg OrderBlockConfig) *OrderBlockDetector {
	def := DefaultOrderBlockConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = def.MinCandles
	}
	if cfg.MaxCandles < cfg.MinCandles {
		cfg.MaxCandles = def.MaxCandles
	}
	if cfg.ImpulseThresholdPct <= 0 {
		cfg.ImpulseThresholdPct = def.ImpulseThresholdPct
	}
	if cfg.RangeMultiple <= 0 {
		cfg.RangeMultiple = def.RangeMultiple
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	return &OrderBlockDetector{cfg: cfg}
}

// Detect scans the series and returns all order block zones with their
// validity intervals resolved. A series shorter than the required
// lookahead plus consolidation depth yields an empty result.
func (d *OrderBlockDetector) Detect(s *series.CandleSeries) []Zone {
	candles := s.Candles
	if len(candles) < d.cfg.Lookback+d.cfg.MaxCandles {
		return nil
	}

	avgRange := series.AverageRange(candles)
	rangeCap := avgRange * d.cfg.RangeMultiple

	var out []Zone
	for i := 0; i+d.cfg.Lookback < len(candles); i++ {
		direction, excursionPct := d.impulseAfter(candles, i)
		if excursionPct < d.cfg.ImpulseThresholdPct {
			continue
		}

		band, ok := d.consolidationEndingAt(candles, i, rangeCap)
		if !ok {
			continue
		}

		// The impulse must break out of the consolidation on the very
		// next candle; trailing indices that merely see the same move
		// inside their lookahead emit nothing.
		next := candles[i+1]
		if direction == Bullish && next.High <= band.High {
			continue
		}
		if direction == Bearish && next.Low >= band.Low {
			continue
		}

		zone := Zone{
			Kind:        KindOrderBlock,
			Direction:   direction,
			Band:        band,
			OriginIndex: i,
			ValidFrom:   i + 1,
			Strength:    excursionPct / d.cfg.ImpulseThresholdPct,
		}
		propagateValidity(&zone, candles, d.cfg.MaxAge, func(z *Zone, close float64) bool {
			if z.Direction == Bullish {
				return close < z.Band.Low
			}
			return close > z.Band.High
		})
		out = append(out, zone)
	}

	return out
}

// impulseAfter measures the most extreme excursion from close[i] within
// the next Lookback candles and returns the dominant direction
func (d *OrderBlockDetector) impulseAfter(candles []series.Candle, i int) (Direction, float64) {
	base := candles[i].Close
	if base == 0 {
		return Bullish, 0
	}

	maxHigh := base
	minLow := base
	for j := i + 1; j <= i+d.cfg.Lookback && j < len(candles); j++ {
		if candles[j].High > maxHigh {
			maxHigh = candles[j].High
		}
		if candles[j].Low < minLow {
			minLow = candles[j].Low
		}
	}

	upPct := (maxHigh - base) / base * 100
	downPct := (base - minLow) / base * 100
	if upPct >= downPct {
		return Bullish, upPct
	}
	return Bearish, downPct
}

// consolidationEndingAt walks backward from index i collecting candles
// whose range stays under the cap, bounded by MaxCandles. Reports the
// spanning band when the run reaches MinCandles.
func (d *OrderBlockDetector) consolidationEndingAt(candles []series.Candle, i int, rangeCap float64) (Band, bool) {
	start := i
	for start >= 0 && i-start+1 <= d.cfg.MaxCandles && candles[start].Range() <= rangeCap {
		start--
	}
	start++

	if i-start+1 < d.cfg.MinCandles {
		return Band{}, false
	}

	band := Band{Low: candles[start].Low, High: candles[start].High}
	for j := start + 1; j <= i; j++ {
		if candles[j].Low < band.Low {
			band.Low = candles[j].Low
		}
		if candles[j].High > band.High {
			band.High = candles[j].High
		}
	}
	return band, true
}
