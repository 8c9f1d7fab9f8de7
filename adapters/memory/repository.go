// Package memory holds in-process repositories used by tests and by
// the server's demo mode when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gomix/domain/allocation"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/ports"
)

// modelRepository is a map-backed ModelRepository
type modelRepository struct {
	mu     sync.RWMutex
	models map[core.ModelID]*model.FittedModel
}

// NewModelRepository creates an in-memory model repository
func NewModelRepository() ports.ModelRepository {
	return &modelRepository{models: make(map[core.ModelID]*model.FittedModel)}
}

func (r *modelRepository) Save(ctx context.Context, m *model.FittedModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.ID] = m
	return nil
}

func (r *modelRepository) Get(ctx context.Context, id core.ModelID) (*model.FittedModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, id)
	}
	return m, nil
}

func (r *modelRepository) ListByRun(ctx context.Context, runID core.RunID) ([]*model.FittedModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var models []*model.FittedModel
	for _, m := range r.models {
		if m.RunID == runID {
			models = append(models, m)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Region < models[j].Region })
	return models, nil
}

// planRepository is a map-backed PlanRepository
type planRepository struct {
	mu    sync.RWMutex
	plans map[core.PlanID]*allocation.AllocationPlan
}

// NewPlanRepository creates an in-memory plan repository
func NewPlanRepository() ports.PlanRepository {
	return &planRepository{plans: make(map[core.PlanID]*allocation.AllocationPlan)}
}

func (r *planRepository) Save(ctx context.Context, p *allocation.AllocationPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
	return nil
}

func (r *planRepository) Get(ctx context.Context, id core.PlanID) (*allocation.AllocationPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrPlanNotFound, id)
	}
	return p, nil
}

func (r *planRepository) ListByModel(ctx context.Context, modelID core.ModelID) ([]*allocation.AllocationPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var plans []*allocation.AllocationPlan
	for _, p := range r.plans {
		if p.ModelID == modelID {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.Time().Before(plans[j].CreatedAt.Time()) })
	return plans, nil
}
