package allocator

import (
	"context"
	"math"
	"testing"

	"gomix/domain/allocation"
	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testModel builds a fitted model by hand with the given per-channel
// weights and transform parameters, which is all the optimizer reads.
func testModel(weights map[core.ChannelKey]float64, params map[core.ChannelKey]channel.TransformParams) *model.FittedModel {
	m := &model.FittedModel{
		ID:            core.ModelID(core.NewID()),
		Strategy:      model.StrategyRidge,
		ChannelParams: params,
		Converged:     true,
	}
	for key, w := range weights {
		m.Channels = append(m.Channels, model.Coefficient{Name: key.String(), Weight: w})
	}
	return m
}

func symmetricModel() *model.FittedModel {
	p := channel.TransformParams{Decay: 0.3, Alpha: 1.2, Gamma: 5000}
	return testModel(
		map[core.ChannelKey]float64{"display_hcp": 100, "paid_search": 100},
		map[core.ChannelKey]channel.TransformParams{"display_hcp": p, "paid_search": p},
	)
}

func TestOptimizeRejectsInfeasibleConstraints(t *testing.T) {
	m := symmetricModel()
	cons := allocation.Constraints{
		TotalBudget: 100,
		Horizon:     3,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 80, Max: 200},
			"paid_search": {Min: 80, Max: 200},
		},
	}

	opt := NewOptimizer(nil)
	_, err := opt.Optimize(context.Background(), m, cons, Config{})
	require.Error(t, err)
	assert.True(t, core.IsInfeasible(err), "expected infeasible error, got %v", err)
}

func TestOptimizeRejectsMissingBounds(t *testing.T) {
	m := symmetricModel()
	cons := allocation.Constraints{
		TotalBudget: 1000,
		Horizon:     3,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 0, Max: 500},
		},
	}

	opt := NewOptimizer(nil)
	_, err := opt.Optimize(context.Background(), m, cons, Config{})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}

func TestOptimizeBudgetEqualToMinimums(t *testing.T) {
	// The all-minimums allocation is the only feasible point; no search.
	m := symmetricModel()
	cons := allocation.Constraints{
		TotalBudget: 300,
		Horizon:     3,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 100, Max: 500},
			"paid_search": {Min: 200, Max: 500},
		},
	}

	opt := NewOptimizer(nil)
	plan, err := opt.Optimize(context.Background(), m, cons, Config{})
	require.NoError(t, err)
	assert.True(t, plan.Converged)
	assert.Equal(t, 0, plan.Iterations)
	assert.Equal(t, 100.0, plan.Spend["display_hcp"])
	assert.Equal(t, 200.0, plan.Spend["paid_search"])
}

func TestOptimizeSymmetricChannelsSplitEvenly(t *testing.T) {
	// Two identical concave channels: the optimum is the even split.
	m := symmetricModel()
	cons := allocation.Constraints{
		TotalBudget: 20000,
		Horizon:     4,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 0, Max: 20000},
			"paid_search": {Min: 0, Max: 20000},
		},
	}

	opt := NewOptimizer(nil)
	plan, err := opt.Optimize(context.Background(), m, cons, Config{Seed: 1})
	require.NoError(t, err)
	require.True(t, plan.Converged)

	assert.InDelta(t, 10000, plan.Spend["display_hcp"], 1)
	assert.InDelta(t, 10000, plan.Spend["paid_search"], 1)
	assert.InDelta(t, 20000, plan.TotalSpend(), 1e-6)
	assert.Positive(t, plan.Objective)
}

func TestOptimizeRespectsBounds(t *testing.T) {
	// One channel is far stronger but capped; the remainder must flow to
	// the weaker channel instead of violating the cap.
	params := map[core.ChannelKey]channel.TransformParams{
		"display_hcp": {Decay: 0.3, Alpha: 1.2, Gamma: 5000},
		"teledetails": {Decay: 0.3, Alpha: 1.2, Gamma: 5000},
	}
	m := testModel(map[core.ChannelKey]float64{"display_hcp": 500, "teledetails": 10}, params)
	cons := allocation.Constraints{
		TotalBudget: 10000,
		Horizon:     2,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 0, Max: 4000},
			"teledetails": {Min: 0, Max: 10000},
		},
	}

	opt := NewOptimizer(nil)
	plan, err := opt.Optimize(context.Background(), m, cons, Config{Seed: 2})
	require.NoError(t, err)

	assert.LessOrEqual(t, plan.Spend["display_hcp"], 4000.0+1e-6)
	assert.InDelta(t, 4000, plan.Spend["display_hcp"], 1)
	assert.InDelta(t, 6000, plan.Spend["teledetails"], 1)
}

func TestOptimizePinsZeroWeightChannels(t *testing.T) {
	// A channel the model found useless gets its minimum and nothing more.
	params := map[core.ChannelKey]channel.TransformParams{
		"display_hcp": {Decay: 0.3, Alpha: 1.2, Gamma: 5000},
		"meetings":    {Decay: 0.5, Alpha: 1.5, Gamma: 300},
	}
	m := testModel(map[core.ChannelKey]float64{"display_hcp": 200, "meetings": 0}, params)
	cons := allocation.Constraints{
		TotalBudget: 8000,
		Horizon:     2,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 0, Max: 10000},
			"meetings":    {Min: 500, Max: 5000},
		},
	}

	opt := NewOptimizer(nil)
	plan, err := opt.Optimize(context.Background(), m, cons, Config{Seed: 3})
	require.NoError(t, err)

	assert.Equal(t, 500.0, plan.Spend["meetings"])
	assert.InDelta(t, 7500, plan.Spend["display_hcp"], 1)
	assert.Equal(t, 0.0, plan.PredictedContribution["meetings"])
}

func TestOptimizeBudgetIsCeiling(t *testing.T) {
	// When every active channel saturates its maximum below the budget,
	// the remainder goes unspent rather than forced anywhere.
	params := map[core.ChannelKey]channel.TransformParams{
		"paid_search": {Decay: 0.2, Alpha: 1.1, Gamma: 2000},
	}
	m := testModel(map[core.ChannelKey]float64{"paid_search": 150}, params)
	cons := allocation.Constraints{
		TotalBudget: 100000,
		Horizon:     1,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"paid_search": {Min: 0, Max: 3000},
		},
	}

	opt := NewOptimizer(nil)
	plan, err := opt.Optimize(context.Background(), m, cons, Config{Seed: 4})
	require.NoError(t, err)

	assert.InDelta(t, 3000, plan.Spend["paid_search"], 1e-6)
	assert.Less(t, plan.TotalSpend(), cons.TotalBudget)
}

func TestOptimizeDeterministicForSeed(t *testing.T) {
	m := symmetricModel()
	cons := allocation.Constraints{
		TotalBudget: 15000,
		Horizon:     3,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 1000, Max: 12000},
			"paid_search": {Min: 1000, Max: 12000},
		},
	}

	opt := NewOptimizer(nil)
	a, err := opt.Optimize(context.Background(), m, cons, Config{Seed: 11})
	require.NoError(t, err)
	b, err := opt.Optimize(context.Background(), m, cons, Config{Seed: 11})
	require.NoError(t, err)

	for key, spend := range a.Spend {
		assert.Equal(t, spend, b.Spend[key], "channel %s", key)
	}
	assert.Equal(t, a.Objective, b.Objective)
}

func TestOptimizeCancelledContext(t *testing.T) {
	m := symmetricModel()
	cons := allocation.Constraints{
		TotalBudget: 15000,
		Horizon:     3,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 0, Max: 12000},
			"paid_search": {Min: 0, Max: 12000},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opt := NewOptimizer(nil)
	_, err := opt.Optimize(ctx, m, cons, Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectSimplexBox(t *testing.T) {
	v := []float64{10, 0, 5}
	lo := []float64{0, 0, 0}
	hi := []float64{6, 6, 6}
	projectSimplexBox(v, lo, hi, 12)

	var sum float64
	for i := range v {
		sum += v[i]
		assert.GreaterOrEqual(t, v[i], lo[i]-1e-9)
		assert.LessOrEqual(t, v[i], hi[i]+1e-9)
	}
	assert.InDelta(t, 12, sum, 1e-6)

	// Order is preserved: the largest input keeps the largest share.
	assert.GreaterOrEqual(t, v[0], v[2])
	assert.GreaterOrEqual(t, v[2], v[1])
}

func TestResponseCurveConcavity(t *testing.T) {
	// Marginal response declines with spend wherever alpha <= 1; the
	// optimizer's line search relies on this shape.
	c := model.ResponseCurve{Weight: 100, Gain: 1.4, Alpha: 1.0, Gamma: 2000}
	prev := math.Inf(1)
	for _, spend := range []float64{100, 500, 2000, 8000, 32000} {
		d := c.Derivative(spend)
		assert.Less(t, d, prev, "derivative must decline at spend %g", spend)
		assert.Positive(t, d)
		prev = d
	}
}

func TestOptimizeIterationBudgetReturnsLabeledPlan(t *testing.T) {
	// Asymmetric channels with one ascent step allowed: the search
	// cannot reach the stopping tolerance, so the best-found allocation
	// comes back labeled unconverged instead of a silent partial answer.
	m := testModel(
		map[core.ChannelKey]float64{"display_hcp": 300, "paid_search": 40},
		map[core.ChannelKey]channel.TransformParams{
			"display_hcp": {Decay: 0.4, Alpha: 1.1, Gamma: 2000},
			"paid_search": {Decay: 0.2, Alpha: 1.4, Gamma: 8000},
		},
	)
	cons := allocation.Constraints{
		TotalBudget: 20000,
		Horizon:     3,
		Bounds: map[core.ChannelKey]allocation.Bound{
			"display_hcp": {Min: 1000, Max: 15000},
			"paid_search": {Min: 1000, Max: 15000},
		},
	}

	opt := NewOptimizer(nil)
	plan, err := opt.Optimize(context.Background(), m, cons,
		Config{MaxIterations: 1, Tolerance: 1e-12, Restarts: 1})
	require.Error(t, err)
	assert.True(t, core.IsNonConvergence(err), "expected non-convergence, got %v", err)

	require.NotNil(t, plan)
	assert.False(t, plan.Converged)
	assert.Equal(t, 1, plan.Iterations)
	assert.LessOrEqual(t, plan.TotalSpend(), cons.TotalBudget+1e-6)
	for key, b := range cons.Bounds {
		assert.GreaterOrEqual(t, plan.Spend[key], b.Min-1e-9)
		assert.LessOrEqual(t, plan.Spend[key], b.Max+1e-9)
	}
}
