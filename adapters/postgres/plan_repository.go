package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gomix/domain/allocation"
	"gomix/domain/core"
	"gomix/ports"

	"github.com/jmoiron/sqlx"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *sqlx.DB) ports.PlanRepository {
	return &planRepository{db: db}
}

// Save inserts an allocation plan
func (r *planRepository) Save(ctx context.Context, p *allocation.AllocationPlan) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal allocation plan: %w", err)
	}

	query := `INSERT INTO allocation_plans (
		id, model_id, horizon, objective, converged, iterations, seed, payload, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		p.ID.String(), p.ModelID.String(), p.Horizon, p.Objective,
		p.Converged, p.Iterations, p.Seed, payload, p.CreatedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to save allocation plan: %w", err)
	}
	return nil
}

// Get retrieves a plan by ID
func (r *planRepository) Get(ctx context.Context, id core.PlanID) (*allocation.AllocationPlan, error) {
	query := `SELECT payload FROM allocation_plans WHERE id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrPlanNotFound, id)
		}
		return nil, fmt.Errorf("failed to get allocation plan: %w", err)
	}

	var p allocation.AllocationPlan
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocation plan: %w", err)
	}
	return &p, nil
}

// ListByModel retrieves all plans optimized against one model
func (r *planRepository) ListByModel(ctx context.Context, modelID core.ModelID) ([]*allocation.AllocationPlan, error) {
	query := `SELECT payload FROM allocation_plans WHERE model_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, modelID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation plans: %w", err)
	}
	defer rows.Close()

	var plans []*allocation.AllocationPlan
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan allocation plan: %w", err)
		}
		var p allocation.AllocationPlan
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocation plan: %w", err)
		}
		plans = append(plans, &p)
	}
	return plans, rows.Err()
}
