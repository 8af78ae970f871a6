package risk

import (
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"confluence-engine/internal/zones"
)

// Validation failures returned by Validate and PlanTrade. Both are
// recoverable: the caller skips the zone and moves on.
var (
	ErrDegenerateStop          = errors.New("stop loss equals entry")
	ErrInsufficientRewardRatio = errors.New("reward:risk below minimum ratio")
)

// Direction is the side of a planned trade
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// TradePlan is a fully sized trade derived from a confluence zone. It
// is handed to the execution collaborator as-is; the engine never
// places orders.
type TradePlan struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stopLoss"`
	TakeProfit1 float64   `json:"takeProfit1"`
	TakeProfit2 *float64  `json:"takeProfit2,omitempty"`
	Size        float64   `json:"size"`
	RiskAmount  float64   `json:"riskAmount"`
	RiskReward  float64   `json:"riskReward"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Config holds risk management parameters. All of them are supplied
// per call by the orchestration layer; the manager never tunes itself.
type Config struct {
	MaxRiskPct            float64 // hard cap on the fraction of balance risked per trade
	MinRiskRewardRatio    float64 // minimum reward:risk for a plan to validate
	ATRMultiplier         float64 // stop distance in ATRs when no protective zone exists
	StopBufferPct         float64 // buffer beyond a protective zone edge, in percent
	FlatStopPct           float64 // last-resort stop distance when no ATR is available
	TrailingPct           float64 // trailing distance when no ATR is available
	TrailingActivationPct float64 // profit percent required before trailing engages
}

// DefaultConfig returns the standard risk parameters
func DefaultConfig() Config {
	return Config{
		MaxRiskPct:            0.02,
		MinRiskRewardRatio:    2.0,
		ATRMultiplier:         1.5,
		StopBufferPct:         0.1,
		FlatStopPct:           2.0,
		TrailingPct:           1.0,
		TrailingActivationPct: 1.0,
	}
}

// Manager converts confluence zones into sized trade plans under a
// risk budget
type Manager struct {
	cfg Config
}

// NewManager creates a manager, filling in defaults for unset
// parameters
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MaxRiskPct <= 0 {
		cfg.MaxRiskPct = def.MaxRiskPct
	}
	if cfg.MinRiskRewardRatio <= 0 {
		cfg.MinRiskRewardRatio = def.MinRiskRewardRatio
	}
	if cfg.ATRMultiplier <= 0 {
		cfg.ATRMultiplier = def.ATRMultiplier
	}
	if cfg.StopBufferPct <= 0 {
		cfg.StopBufferPct = def.StopBufferPct
	}
	if cfg.FlatStopPct <= 0 {
		cfg.FlatStopPct = def.FlatStopPct
	}
	if cfg.TrailingPct <= 0 {
		cfg.TrailingPct = def.TrailingPct
	}
	if cfg.TrailingActivationPct <= 0 {
		cfg.TrailingActivationPct = def.TrailingActivationPct
	}
	return &Manager{cfg: cfg}
}

// PositionSize returns the quantity to trade so that the distance to
// the stop risks at most min(riskPct, MaxRiskPct) of the balance.
// A degenerate stop yields size 0, never a division by zero.
func (m *Manager) PositionSize(entry, stop, balance, riskPct float64) float64 {
	if balance <= 0 || entry <= 0 {
		return 0
	}
	if riskPct > m.cfg.MaxRiskPct {
		riskPct = m.cfg.MaxRiskPct
	}
	if riskPct <= 0 {
		return 0
	}

	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit == 0 {
		return 0
	}

	riskAmount := balance * riskPct
	return riskAmount / riskPerUnit
}

// StopLoss places the stop at the nearest protective zone boundary
// with a small buffer beyond it, falling back to an ATR distance and
// finally to a flat percentage.
func (m *Manager) StopLoss(entry float64, protective *zones.Band, atr float64, direction Direction) float64 {
	buffer := m.cfg.StopBufferPct / 100

	if direction == Long {
		if protective != nil && protective.Low < entry {
			return protective.Low * (1 - buffer)
		}
		if atr > 0 {
			return entry - m.cfg.ATRMultiplier*atr
		}
		return entry * (1 - m.cfg.FlatStopPct/100)
	}

	if protective != nil && protective.High > entry {
		return protective.High * (1 + buffer)
	}
	if atr > 0 {
		return entry + m.cfg.ATRMultiplier*atr
	}
	return entry * (1 + m.cfg.FlatStopPct/100)
}

// TakeProfit picks TP1 as the nearest favorable node or gap level that
// is at least the minimum-ratio target away, defaulting to that target
// itself, so TP1 is never tighter than the minimum ratio. TP2, when
// present, is an opposing zone edge or a gap level beyond TP1.
func (m *Manager) TakeProfit(entry, stop float64, nodeLevels, gapLevels []float64, opposite *zones.Band, direction Direction) (float64, *float64) {
	risk := math.Abs(entry - stop)

	var minTarget float64
	if direction == Long {
		minTarget = entry + risk*m.cfg.MinRiskRewardRatio
	} else {
		minTarget = entry - risk*m.cfg.MinRiskRewardRatio
	}

	levels := append(append([]float64{}, nodeLevels...), gapLevels...)
	tp1 := minTarget
	if lvl, ok := nearestBeyond(levels, minTarget, direction); ok {
		tp1 = lvl
	}

	var tp2 *float64
	if opposite != nil {
		edge := opposite.Low
		if direction == Short {
			edge = opposite.High
		}
		if beyond(edge, tp1, direction) && edge != tp1 {
			tp2 = &edge
		}
	}
	if tp2 == nil {
		if lvl, ok := nearestBeyond(gapLevels, tp1, direction); ok && lvl != tp1 {
			tp2 = &lvl
		}
	}

	return tp1, tp2
}

// TrailingStop ratchets the stop in the favorable direction only. The
// trailing distance is ATR-based when an ATR is supplied, else the
// configured percentage of the current price.
func (m *Manager) TrailingStop(currentPrice, entry, currentStop, atr float64, direction Direction) float64 {
	distance := currentPrice * m.cfg.TrailingPct / 100
	if atr > 0 {
		distance = atr * m.cfg.ATRMultiplier
	}

	if direction == Long {
		floor := math.Max(currentStop, entry*0.99)
		return math.Max(currentPrice-distance, floor)
	}

	ceil := math.Min(currentStop, entry*1.01)
	return math.Min(currentPrice+distance, ceil)
}

// TrailingActivated reports whether the position carries enough open
// profit for the trailing stop to engage. Until it does, the planned
// stop stays where it was placed.
func (m *Manager) TrailingActivated(currentPrice, entry float64, direction Direction) bool {
	if entry <= 0 {
		return false
	}
	profitPct := (currentPrice - entry) / entry * 100
	if direction == Short {
		profitPct = -profitPct
	}
	return profitPct >= m.cfg.TrailingActivationPct
}

// Validate rejects degenerate stops and plans whose realized
// reward:risk falls below the configured minimum
func (m *Manager) Validate(entry, stop, tp float64) error {
	if entry == stop {
		return ErrDegenerateStop
	}

	risk := math.Abs(entry - stop)
	reward := math.Abs(tp - entry)
	if reward/risk < m.cfg.MinRiskRewardRatio {
		return ErrInsufficientRewardRatio
	}
	return nil
}

// PlanInput carries everything PlanTrade needs for one zone
type PlanInput struct {
	Symbol     string
	Direction  Direction
	Entry      float64
	Protective *zones.Band // order-block band guarding the entry, if any
	Opposite   *zones.Band // opposing zone used as the stretch target, if any
	NodeLevels []float64   // favorable high-volume node prices
	GapLevels  []float64   // favorable fair value gap prices
	ATR        float64
	Balance    float64
	RiskPct    float64
}

// PlanTrade assembles a sized, validated trade plan or returns the
// typed rejection reason
func (m *Manager) PlanTrade(in PlanInput) (*TradePlan, error) {
	stop := m.StopLoss(in.Entry, in.Protective, in.ATR, in.Direction)
	tp1, tp2 := m.TakeProfit(in.Entry, stop, in.NodeLevels, in.GapLevels, in.Opposite, in.Direction)

	if err := m.Validate(in.Entry, stop, tp1); err != nil {
		return nil, err
	}

	size := m.PositionSize(in.Entry, stop, in.Balance, in.RiskPct)
	risk := math.Abs(in.Entry - stop)

	plan := &TradePlan{
		ID:          uuid.New().String(),
		Symbol:      in.Symbol,
		Direction:   in.Direction,
		Entry:       in.Entry,
		StopLoss:    stop,
		TakeProfit1: tp1,
		TakeProfit2: tp2,
		Size:        size,
		RiskAmount:  size * risk,
		RiskReward:  math.Abs(tp1-in.Entry) / risk,
		CreatedAt:   time.Now().UTC(),
	}

	log.Printf("[Risk] plan %s: %s %s entry=%.4f sl=%.4f tp1=%.4f size=%.6f rr=%.2f",
		plan.ID[:8], plan.Direction, plan.Symbol, plan.Entry, plan.StopLoss, plan.TakeProfit1, plan.Size, plan.RiskReward)

	return plan, nil
}

// nearestBeyond returns the level closest to the reference on its far
// side in the favorable direction
func nearestBeyond(levels []float64, reference float64, direction Direction) (float64, bool) {
	best := 0.0
	found := false
	for _, lvl := range levels {
		if !beyond(lvl, reference, direction) {
			continue
		}
		if !found || math.Abs(lvl-reference) < math.Abs(best-reference) {
			best = lvl
			found = true
		}
	}
	return best, found
}

func beyond(level, reference float64, direction Direction) bool {
	if direction == Long {
		return level >= reference
	}
	return level <= reference
}
