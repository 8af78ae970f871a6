package series

import (
	"fmt"
	"math"
)

// Candle represents a single closed OHLCV candle
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Range returns the high-low span of the candle
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close span
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// IsBullish reports whether the candle closed above its open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// CandleSeries is an ordered-by-timestamp sequence of candles with
// unique timestamps. It is treated as immutable once built.
type CandleSeries struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
}

// NewCandleSeries validates the raw candles and builds a series.
// Malformed input (non-monotonic timestamps, negative volume, broken
// OHLC ordering, NaN/Inf) is rejected here so the detectors downstream
// never have to handle it.
func NewCandleSeries(symbol, timeframe string, candles []Candle) (*CandleSeries, error) {
	for i, c := range candles {
		if err := validateCandle(c); err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return nil, fmt.Errorf("candle %d: timestamp %d not after previous %d", i, c.OpenTime, candles[i-1].OpenTime)
		}
	}

	return &CandleSeries{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
	}, nil
}

func validateCandle(c Candle) error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value in candle")
		}
		if v < 0 {
			return fmt.Errorf("negative value in candle")
		}
	}
	if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("high/low do not envelope open/close")
	}
	return nil
}

// Len returns the number of candles in the series
func (s *CandleSeries) Len() int {
	return len(s.Candles)
}

// Last returns the most recent candle and whether one exists
func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Window returns the trailing n candles (the whole series when shorter)
func (s *CandleSeries) Window(n int) []Candle {
	if n <= 0 || len(s.Candles) == 0 {
		return nil
	}
	if n > len(s.Candles) {
		n = len(s.Candles)
	}
	return s.Candles[len(s.Candles)-n:]
}

// AverageRange returns the mean high-low span across all candles
func AverageRange(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range candles {
		sum += c.Range()
	}
	return sum / float64(len(candles))
}

// ATR calculates the Average True Range over the given period using the
// trailing candles. Returns 0 when fewer than two candles are available.
func ATR(candles []Candle, period int) float64 {
	if len(candles) < 2 {
		return 0
	}
	if period <= 0 {
		period = 14
	}

	start := len(candles) - period
	if start < 1 {
		start = 1
	}

	sum := 0.0
	count := 0
	for i := start; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := candles[i].Range()
		if hc := math.Abs(candles[i].High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(candles[i].Low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
		count++
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
