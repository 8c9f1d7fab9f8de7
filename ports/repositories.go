// Package ports defines the interfaces the core exposes to adapters.
// The core produces and consumes plain immutable records; how they are
// stored or rendered is an adapter concern.
package ports

import (
	"context"

	"gomix/domain/allocation"
	"gomix/domain/core"
	"gomix/domain/model"
)

// ModelRepository persists fitted models.
type ModelRepository interface {
	Save(ctx context.Context, m *model.FittedModel) error
	Get(ctx context.Context, id core.ModelID) (*model.FittedModel, error)
	ListByRun(ctx context.Context, runID core.RunID) ([]*model.FittedModel, error)
}

// PlanRepository persists allocation plans.
type PlanRepository interface {
	Save(ctx context.Context, p *allocation.AllocationPlan) error
	Get(ctx context.Context, id core.PlanID) (*allocation.AllocationPlan, error)
	ListByModel(ctx context.Context, modelID core.ModelID) ([]*allocation.AllocationPlan, error)
}
