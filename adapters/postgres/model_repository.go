// Package postgres persists fitted models and allocation plans. Result
// records are opaque to storage: scalar columns carry what queries
// filter on, the full record travels as a JSON payload column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/ports"

	"github.com/jmoiron/sqlx"
)

// modelRepository implements the ModelRepository interface
type modelRepository struct {
	db *sqlx.DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *sqlx.DB) ports.ModelRepository {
	return &modelRepository{db: db}
}

// Save inserts a fitted model
func (r *modelRepository) Save(ctx context.Context, m *model.FittedModel) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal fitted model: %w", err)
	}

	query := `INSERT INTO fitted_models (
		id, run_id, region, strategy, residual_variance, condition_number,
		converged, periods, payload, fitted_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		m.ID.String(), m.RunID.String(), m.Region.String(), string(m.Strategy),
		m.ResidualVariance, m.ConditionNumber, m.Converged, m.Periods,
		payload, m.FittedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to save fitted model: %w", err)
	}
	return nil
}

// Get retrieves a fitted model by ID
func (r *modelRepository) Get(ctx context.Context, id core.ModelID) (*model.FittedModel, error) {
	query := `SELECT payload FROM fitted_models WHERE id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, id)
		}
		return nil, fmt.Errorf("failed to get fitted model: %w", err)
	}

	var m model.FittedModel
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fitted model: %w", err)
	}
	return &m, nil
}

// ListByRun retrieves all models produced by one run
func (r *modelRepository) ListByRun(ctx context.Context, runID core.RunID) ([]*model.FittedModel, error) {
	query := `SELECT payload FROM fitted_models WHERE run_id = $1 ORDER BY region`

	rows, err := r.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list fitted models: %w", err)
	}
	defer rows.Close()

	var models []*model.FittedModel
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan fitted model: %w", err)
		}
		var m model.FittedModel
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fitted model: %w", err)
		}
		models = append(models, &m)
	}
	return models, rows.Err()
}
