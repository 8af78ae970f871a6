// Package plans tracks the lifecycle of issued trade plans from
// creation to stop-out, target or expiry. The engine itself stays
// stateless; this is the edge handed to the execution collaborator.
package plans

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"confluence-engine/internal/risk"
)

// Plan lifecycle status constants
const (
	StatusActive  = "ACTIVE"
	StatusStopped = "STOPPED" // stop loss reached
	StatusTarget  = "TARGET"  // first take profit reached
	StatusExpired = "EXPIRED" // aged out without triggering
)

// ErrPlanNotFound is returned when a plan ID is not tracked
var ErrPlanNotFound = errors.New("plan not tracked")

// TrackedPlan is a plan under lifecycle management with its current
// (possibly trailed) stop
type TrackedPlan struct {
	Plan           risk.TradePlan `json:"plan"`
	Status         string         `json:"status"`
	CurrentStop    float64        `json:"currentStop"`
	TrailingActive bool           `json:"trailingActive"`
	ClosedAt       *time.Time     `json:"closedAt,omitempty"`
}

// Repository is the persistence interface the tracker writes through
type Repository interface {
	SavePlan(ctx context.Context, plan *risk.TradePlan) error
	UpdatePlanStatus(ctx context.Context, planID, status string, closedAt *time.Time) error
}

// StatusUpdate reports one lifecycle transition or stop adjustment
type StatusUpdate struct {
	PlanID  string  `json:"planId"`
	Symbol  string  `json:"symbol"`
	Status  string  `json:"status"`
	NewStop float64 `json:"newStop"`
}

// Tracker manages active plans in memory and writes transitions
// through the repository. A nil repository keeps it memory-only.
type Tracker struct {
	mu     sync.RWMutex
	repo   Repository
	risk   *risk.Manager
	logger zerolog.Logger
	maxAge time.Duration

	active map[string]*TrackedPlan
}

// NewTracker creates a plan tracker
func NewTracker(repo Repository, riskManager *risk.Manager, maxAge time.Duration, logger zerolog.Logger) *Tracker {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Tracker{
		repo:   repo,
		risk:   riskManager,
		logger: logger.With().Str("component", "PlanTracker").Logger(),
		maxAge: maxAge,
		active: make(map[string]*TrackedPlan),
	}
}

// Track registers a new plan and persists it
func (t *Tracker) Track(ctx context.Context, plan *risk.TradePlan) error {
	t.mu.Lock()
	t.active[plan.ID] = &TrackedPlan{
		Plan:        *plan,
		Status:      StatusActive,
		CurrentStop: plan.StopLoss,
	}
	t.mu.Unlock()

	t.logger.Info().
		Str("plan_id", plan.ID).
		Str("symbol", plan.Symbol).
		Str("direction", string(plan.Direction)).
		Float64("entry", plan.Entry).
		Float64("stop", plan.StopLoss).
		Msg("plan tracked")

	if t.repo == nil {
		return nil
	}
	return t.repo.SavePlan(ctx, plan)
}

// Active returns a copy of all plans still in play
func (t *Tracker) Active() []TrackedPlan {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrackedPlan, 0, len(t.active))
	for _, tp := range t.active {
		out = append(out, *tp)
	}
	return out
}

// Get returns the tracked state for one plan
func (t *Tracker) Get(planID string) (TrackedPlan, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tp, ok := t.active[planID]
	if !ok {
		return TrackedPlan{}, ErrPlanNotFound
	}
	return *tp, nil
}

// UpdatePrice advances every active plan for the symbol against the
// latest price: stops and targets close plans, otherwise the stop is
// ratcheted in the favorable direction only.
func (t *Tracker) UpdatePrice(ctx context.Context, symbol string, price float64) []StatusUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	var updates []StatusUpdate
	for id, tp := range t.active {
		if tp.Plan.Symbol != symbol {
			continue
		}

		switch {
		case stopHit(tp, price):
			updates = append(updates, t.closeLocked(ctx, id, tp, StatusStopped, price))
		case targetHit(tp, price):
			updates = append(updates, t.closeLocked(ctx, id, tp, StatusTarget, price))
		case time.Since(tp.Plan.CreatedAt) > t.maxAge:
			updates = append(updates, t.closeLocked(ctx, id, tp, StatusExpired, price))
		default:
			direction := risk.Long
			if tp.Plan.Direction == risk.Short {
				direction = risk.Short
			}
			// Trailing engages only once the position is in profit past
			// the activation threshold; until then the planned stop holds.
			if !tp.TrailingActive {
				if !t.risk.TrailingActivated(price, tp.Plan.Entry, direction) {
					continue
				}
				tp.TrailingActive = true
			}
			newStop := t.risk.TrailingStop(price, tp.Plan.Entry, tp.CurrentStop, 0, direction)
			if newStop != tp.CurrentStop {
				tp.CurrentStop = newStop
				updates = append(updates, StatusUpdate{
					PlanID:  id,
					Symbol:  symbol,
					Status:  StatusActive,
					NewStop: newStop,
				})
			}
		}
	}

	return updates
}

func (t *Tracker) closeLocked(ctx context.Context, id string, tp *TrackedPlan, status string, price float64) StatusUpdate {
	now := time.Now().UTC()
	tp.Status = status
	tp.ClosedAt = &now
	delete(t.active, id)

	t.logger.Info().
		Str("plan_id", id).
		Str("symbol", tp.Plan.Symbol).
		Str("status", status).
		Float64("price", price).
		Msg("plan closed")

	if t.repo != nil {
		if err := t.repo.UpdatePlanStatus(ctx, id, status, &now); err != nil {
			t.logger.Error().Err(err).Str("plan_id", id).Msg("failed to persist plan status")
		}
	}

	return StatusUpdate{PlanID: id, Symbol: tp.Plan.Symbol, Status: status, NewStop: tp.CurrentStop}
}

func stopHit(tp *TrackedPlan, price float64) bool {
	if tp.Plan.Direction == risk.Long {
		return price <= tp.CurrentStop
	}
	return price >= tp.CurrentStop
}

func targetHit(tp *TrackedPlan, price float64) bool {
	if tp.Plan.Direction == risk.Long {
		return price >= tp.Plan.TakeProfit1
	}
	return price <= tp.Plan.TakeProfit1
}
