package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"confluence-engine/internal/series"
)

// MockClient produces deterministic synthetic candle series for dry
// runs and tests. The walk is seeded from the symbol so repeated runs
// see identical data.
type MockClient struct {
	basePrice float64
}

// NewMockClient creates a synthetic data source
func NewMockClient() *MockClient {
	return &MockClient{basePrice: 100}
}

// Fetch generates a random-walk series with periodic consolidations
// followed by impulses, so every detector has something to find.
func (m *MockClient) Fetch(_ context.Context, symbol, timeframe string, limit int) (*series.CandleSeries, error) {
	if limit <= 0 {
		limit = 200
	}

	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	start := time.Now().Add(-time.Duration(limit) * time.Hour).Truncate(time.Hour)
	price := m.basePrice * (1 + rng.Float64())

	candles := make([]series.Candle, limit)
	for i := 0; i < limit; i++ {
		var drift float64
		switch {
		case i%40 < 30:
			drift = (rng.Float64() - 0.5) * 0.004 // ranging
		case rng.Intn(2) == 0:
			drift = rng.Float64() * 0.012 // upside impulse
		default:
			drift = -rng.Float64() * 0.012
		}

		open := price
		close := open * (1 + drift)
		high := math.Max(open, close) * (1 + rng.Float64()*0.002)
		low := math.Min(open, close) * (1 - rng.Float64()*0.002)
		volume := 500 + rng.Float64()*1500
		if math.Abs(drift) > 0.008 {
			volume *= 2.5
		}

		candles[i] = series.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   volume,
		}
		price = close
	}

	return series.NewCandleSeries(symbol, timeframe, candles)
}
