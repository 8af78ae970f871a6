package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"confluence-engine/internal/engine"
	"confluence-engine/internal/risk"
)

// Repository persists trade plans and analysis snapshots. It is an
// audit/presentation trail only: the engine never reads persisted
// state back into a computation.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the connection pool
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SavePlan inserts a trade plan
func (r *Repository) SavePlan(ctx context.Context, plan *risk.TradePlan) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO trade_plans
			(id, symbol, direction, entry, stop_loss, take_profit_1, take_profit_2,
			 size, risk_amount, risk_reward, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		plan.ID, plan.Symbol, string(plan.Direction), plan.Entry, plan.StopLoss,
		plan.TakeProfit1, plan.TakeProfit2, plan.Size, plan.RiskAmount,
		plan.RiskReward, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving plan %s: %w", plan.ID, err)
	}
	return nil
}

// UpdatePlanStatus marks a plan's lifecycle transition
func (r *Repository) UpdatePlanStatus(ctx context.Context, planID, status string, closedAt *time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE trade_plans SET status = $2, closed_at = $3 WHERE id = $1`,
		planID, status, closedAt,
	)
	if err != nil {
		return fmt.Errorf("updating plan %s: %w", planID, err)
	}
	return nil
}

// GetRecentPlans returns the most recent plans, newest first
func (r *Repository) GetRecentPlans(ctx context.Context, limit int) ([]risk.TradePlan, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, symbol, direction, entry, stop_loss, take_profit_1,
		       take_profit_2, size, risk_amount, risk_reward, created_at
		FROM trade_plans
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var plans []risk.TradePlan
	for rows.Next() {
		var p risk.TradePlan
		var direction string
		if err := rows.Scan(&p.ID, &p.Symbol, &direction, &p.Entry, &p.StopLoss,
			&p.TakeProfit1, &p.TakeProfit2, &p.Size, &p.RiskAmount,
			&p.RiskReward, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		p.Direction = risk.Direction(direction)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// SaveSnapshot inserts a full analysis snapshot as JSONB
func (r *Repository) SaveSnapshot(ctx context.Context, snap *engine.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO snapshots (symbol, timeframe, generated_at, last_price, trend, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.Symbol, snap.Timeframe, snap.GeneratedAt, snap.LastPrice, string(snap.Trend), payload,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", snap.Symbol, err)
	}
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for a symbol
func (r *Repository) GetLatestSnapshot(ctx context.Context, symbol, timeframe string) (*engine.Snapshot, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT payload FROM snapshots
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY generated_at DESC
		LIMIT 1`, symbol, timeframe).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot for %s: %w", symbol, err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}
