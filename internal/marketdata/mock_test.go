package marketdata

import (
	"context"
	"reflect"
	"testing"
)

func TestMockFetchDeterministic(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	a, err := m.Fetch(ctx, "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	b, err := m.Fetch(ctx, "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !reflect.DeepEqual(a.Candles, b.Candles) {
		t.Error("repeated fetches for the same symbol differ")
	}

	other, err := m.Fetch(ctx, "ETHUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if reflect.DeepEqual(a.Candles, other.Candles) {
		t.Error("different symbols produced identical series")
	}
}

func TestMockFetchShape(t *testing.T) {
	m := NewMockClient()

	s, err := m.Fetch(context.Background(), "BTCUSDT", "4h", 50)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
	if s.Symbol != "BTCUSDT" || s.Timeframe != "4h" {
		t.Errorf("identity = %s/%s, want BTCUSDT/4h", s.Symbol, s.Timeframe)
	}

	if _, err := m.Fetch(context.Background(), "BTCUSDT", "1h", 0); err != nil {
		t.Errorf("Fetch(limit 0) error = %v, want default limit applied", err)
	}
}
