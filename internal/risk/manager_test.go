package risk

import (
	"errors"
	"math"
	"testing"

	"confluence-engine/internal/zones"
)

func TestPositionSize(t *testing.T) {
	m := NewManager(DefaultConfig())

	tests := []struct {
		name    string
		entry   float64
		stop    float64
		balance float64
		riskPct float64
		want    float64
	}{
		{"one percent risk", 100, 98, 10000, 0.01, 50},
		{"risk capped at max", 100, 98, 10000, 0.10, 100}, // clamped to 2%
		{"short direction", 100, 102, 10000, 0.01, 50},
		{"degenerate stop", 100, 100, 10000, 0.01, 0},
		{"zero balance", 100, 98, 0, 0.01, 0},
		{"zero risk pct", 100, 98, 10000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.PositionSize(tt.entry, tt.stop, tt.balance, tt.riskPct)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PositionSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStopLossPlacement(t *testing.T) {
	m := NewManager(DefaultConfig())

	// Protective band below a long entry: stop sits 0.1% under its low
	band := &zones.Band{Low: 98, High: 99}
	got := m.StopLoss(100, band, 1.0, Long)
	want := 98 * 0.999
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("StopLoss(long, band) = %v, want %v", got, want)
	}

	// No band: 1.5x ATR fallback
	got = m.StopLoss(100, nil, 2.0, Long)
	if math.Abs(got-97.0) > 1e-9 {
		t.Errorf("StopLoss(long, atr) = %v, want 97", got)
	}

	// No band, no ATR: flat 2% fallback
	got = m.StopLoss(100, nil, 0, Long)
	if math.Abs(got-98.0) > 1e-9 {
		t.Errorf("StopLoss(long, flat) = %v, want 98", got)
	}

	// Short mirror with a band above the entry
	band = &zones.Band{Low: 101, High: 102}
	got = m.StopLoss(100, band, 0, Short)
	want = 102 * 1.001
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("StopLoss(short, band) = %v, want %v", got, want)
	}

	// A band on the wrong side of the entry is ignored
	band = &zones.Band{Low: 101, High: 102}
	got = m.StopLoss(100, band, 0, Long)
	if math.Abs(got-98.0) > 1e-9 {
		t.Errorf("StopLoss(long, band above entry) = %v, want flat fallback 98", got)
	}
}

func TestTakeProfitSelection(t *testing.T) {
	m := NewManager(DefaultConfig())

	// Long from 100 with stop 98: minimum target is 104
	tp1, tp2 := m.TakeProfit(100, 98, []float64{103, 105, 108}, nil, nil, Long)
	if tp1 != 105 {
		t.Errorf("tp1 = %v, want 105 (nearest node at or beyond 104)", tp1)
	}
	if tp2 != nil {
		t.Errorf("tp2 = %v, want nil", *tp2)
	}

	// No level far enough: fall back to the minimum target itself
	tp1, tp2 = m.TakeProfit(100, 98, []float64{101, 102}, nil, nil, Long)
	if tp1 != 104 {
		t.Errorf("tp1 = %v, want minimum target 104", tp1)
	}
	if tp2 != nil {
		t.Errorf("tp2 = %v, want nil", *tp2)
	}

	// Opposing zone beyond tp1 becomes the stretch target
	opposite := &zones.Band{Low: 107, High: 108}
	tp1, tp2 = m.TakeProfit(100, 98, []float64{105}, nil, opposite, Long)
	if tp1 != 105 {
		t.Errorf("tp1 = %v, want 105", tp1)
	}
	if tp2 == nil || *tp2 != 107 {
		t.Errorf("tp2 = %v, want opposing zone edge 107", tp2)
	}

	// Gap level beyond tp1 serves when no opposing zone exists
	tp1, tp2 = m.TakeProfit(100, 98, nil, []float64{106}, nil, Long)
	if tp1 != 106 {
		t.Errorf("tp1 = %v, want gap level 106", tp1)
	}

	// Short mirror
	tp1, tp2 = m.TakeProfit(100, 102, []float64{97, 95}, nil, nil, Short)
	if tp1 != 95 {
		t.Errorf("short tp1 = %v, want 95", tp1)
	}
}

func TestTrailingStopRatchets(t *testing.T) {
	m := NewManager(DefaultConfig())

	// Price well in profit: 1% trail off the current price
	got := m.TrailingStop(110, 100, 98, 0, Long)
	if math.Abs(got-108.9) > 1e-9 {
		t.Errorf("TrailingStop() = %v, want 108.9", got)
	}

	// The stop never moves backward
	got = m.TrailingStop(100.5, 100, 108.9, 0, Long)
	if got < 108.9 {
		t.Errorf("TrailingStop() = %v, moved backward from 108.9", got)
	}

	// Near the entry the floor keeps the stop at entry*0.99
	got = m.TrailingStop(99.5, 100, 95, 0, Long)
	if math.Abs(got-99.0) > 1e-9 {
		t.Errorf("TrailingStop() = %v, want floor 99", got)
	}

	// ATR distance wins when supplied
	got = m.TrailingStop(110, 100, 98, 2.0, Long)
	if math.Abs(got-107.0) > 1e-9 {
		t.Errorf("TrailingStop(atr) = %v, want 107", got)
	}

	// Short mirror: the stop only moves down, bounded by entry*1.01
	got = m.TrailingStop(90, 100, 102, 0, Short)
	if math.Abs(got-90.9) > 1e-9 {
		t.Errorf("short TrailingStop() = %v, want 90.9", got)
	}
	got = m.TrailingStop(99.8, 100, 90.9, 0, Short)
	if got > 90.9 {
		t.Errorf("short TrailingStop() = %v, moved backward from 90.9", got)
	}
}

func TestTrailingActivated(t *testing.T) {
	m := NewManager(DefaultConfig())

	tests := []struct {
		name      string
		price     float64
		entry     float64
		direction Direction
		want      bool
	}{
		{"long under water", 98.5, 100, Long, false},
		{"long below threshold", 100.5, 100, Long, false},
		{"long at threshold", 101, 100, Long, true},
		{"long in profit", 103, 100, Long, true},
		{"short under water", 101.5, 100, Short, false},
		{"short in profit", 98, 100, Short, true},
		{"degenerate entry", 101, 0, Long, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.TrailingActivated(tt.price, tt.entry, tt.direction); got != tt.want {
				t.Errorf("TrailingActivated(%v, %v, %s) = %v, want %v", tt.price, tt.entry, tt.direction, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	m := NewManager(DefaultConfig())

	if err := m.Validate(100, 100, 104); !errors.Is(err, ErrDegenerateStop) {
		t.Errorf("Validate(degenerate) = %v, want ErrDegenerateStop", err)
	}
	// Reward 3 on risk 2 misses the 2.0 minimum
	if err := m.Validate(100, 98, 103); !errors.Is(err, ErrInsufficientRewardRatio) {
		t.Errorf("Validate(thin reward) = %v, want ErrInsufficientRewardRatio", err)
	}
	// Reward 4 on risk 2 is exactly the minimum
	if err := m.Validate(100, 98, 104); err != nil {
		t.Errorf("Validate(ratio met) = %v, want nil", err)
	}
}

func TestPlanTrade(t *testing.T) {
	m := NewManager(DefaultConfig())

	plan, err := m.PlanTrade(PlanInput{
		Symbol:     "BTCUSDT",
		Direction:  Long,
		Entry:      100,
		Protective: &zones.Band{Low: 98, High: 99},
		NodeLevels: []float64{105, 108},
		Balance:    10000,
		RiskPct:    0.01,
	})
	if err != nil {
		t.Fatalf("PlanTrade() error = %v", err)
	}

	if plan.ID == "" {
		t.Error("plan ID is empty")
	}
	wantStop := 98 * 0.999
	if math.Abs(plan.StopLoss-wantStop) > 1e-9 {
		t.Errorf("StopLoss = %v, want %v", plan.StopLoss, wantStop)
	}
	if plan.TakeProfit1 != 105 {
		t.Errorf("TakeProfit1 = %v, want 105", plan.TakeProfit1)
	}
	if plan.RiskReward < 2.0 {
		t.Errorf("RiskReward = %v, want >= 2.0", plan.RiskReward)
	}
	// Size times per-unit risk reproduces the budgeted risk amount
	wantRisk := 10000 * 0.01
	if math.Abs(plan.RiskAmount-wantRisk) > 1e-9 {
		t.Errorf("RiskAmount = %v, want %v", plan.RiskAmount, wantRisk)
	}
}

func TestPlanTradeMinTargetMeetsRatio(t *testing.T) {
	m := NewManager(Config{MinRiskRewardRatio: 50})

	_, err := m.PlanTrade(PlanInput{
		Symbol:    "BTCUSDT",
		Direction: Long,
		Entry:     100,
		Balance:   10000,
		RiskPct:   0.01,
	})
	if err != nil {
		t.Fatalf("PlanTrade() error = %v, minimum target should always satisfy the ratio", err)
	}
}
