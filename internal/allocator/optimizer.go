// Package allocator searches for the spend allocation maximizing total
// predicted contribution under a budget and per-channel bounds. The
// composed channel responses are concave and non-decreasing, so this is
// a concave maximization over a convex box+sum region.
package allocator

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gomix/domain/allocation"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/internal"

	"golang.org/x/sync/errgroup"
)

// Config bounds the search. Zero values fall back to defaults.
type Config struct {
	// MaxIterations caps projected-gradient steps per restart.
	MaxIterations int `json:"max_iterations"`
	// Tolerance is the relative spend-change stopping criterion.
	Tolerance float64 `json:"tolerance"`
	// Restarts is the number of independent starting points, evaluated
	// concurrently. The first restart always starts from the
	// deterministic proportional allocation; later ones jitter within
	// bounds under a seed derived from Seed.
	Restarts int `json:"restarts"`
	// Seed makes the jittered restarts reproducible.
	Seed int64 `json:"seed"`
}

// Optimizer defaults.
const (
	DefaultMaxIterations = 500
	DefaultTolerance     = 1e-8
	DefaultRestarts      = 4
)

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Restarts == 0 {
		c.Restarts = DefaultRestarts
	}
	return c
}

// Optimizer allocates budget against a fitted model's response curves.
type Optimizer struct {
	log *internal.Logger
}

// NewOptimizer creates an optimizer.
func NewOptimizer(log *internal.Logger) *Optimizer {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Optimizer{log: log}
}

// problem is one restart's view of the search space: only channels with
// positive fitted weight participate; zero-effect channels are pinned
// at their configured minimum.
type problem struct {
	keys    []core.ChannelKey
	curves  []model.ResponseCurve
	lo, hi  []float64
	target  float64 // active-channel spend the projection sums to
	horizon int
}

func (p *problem) objective(x []float64) float64 {
	var total float64
	for i, c := range p.curves {
		total += float64(p.horizon) * c.Response(x[i]/float64(p.horizon))
	}
	return total
}

func (p *problem) gradient(dst, x []float64) {
	for i, c := range p.curves {
		// d/dTotal of horizon * f(total/horizon) = f'(total/horizon).
		dst[i] = c.Derivative(x[i] / float64(p.horizon))
		if math.IsInf(dst[i], 1) || dst[i] > 1e12 {
			dst[i] = 1e12
		}
	}
}

// Optimize finds a spend allocation for the model's channels under the
// given constraints. Infeasible constraints fail fast. When no restart
// converges within the iteration budget, the best-found plan is
// returned labeled unconverged together with a NonConvergence error so
// callers can decide whether to accept it.
func (o *Optimizer) Optimize(ctx context.Context, m *model.FittedModel, cons allocation.Constraints, cfg Config) (*allocation.AllocationPlan, error) {
	cfg = cfg.WithDefaults()
	keys := m.ChannelKeys()
	if len(keys) == 0 {
		return nil, core.NewInvalidInput("model has no channels to allocate across")
	}
	if err := cons.Validate(keys); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if _, err := m.Curve(key, cons.Horizon); err != nil {
			return nil, err
		}
	}

	spend := make(map[core.ChannelKey]float64, len(keys))
	for _, key := range keys {
		spend[key] = cons.Bounds[key].Min
	}

	// Budget equal to the sum of minimums: the all-minimums allocation
	// is the only feasible point, no search needed.
	if cons.MinTotal(keys) == cons.TotalBudget {
		return o.plan(m, cons, spend, 0, true, cfg.Seed), nil
	}

	prob, err := o.buildProblem(m, cons, keys)
	if err != nil {
		return nil, err
	}
	if len(prob.keys) == 0 {
		// Every channel has zero fitted weight: spending beyond the
		// minimums buys nothing.
		return o.plan(m, cons, spend, 0, true, cfg.Seed), nil
	}

	best, iterations, converged, err := o.search(ctx, prob, cfg)
	if err != nil {
		return nil, err
	}
	for i, key := range prob.keys {
		spend[key] = best[i]
	}
	plan := o.plan(m, cons, spend, iterations, converged, cfg.Seed)
	if !converged {
		o.log.Warn("allocation search hit iteration budget (%d); returning best-found plan", cfg.MaxIterations)
		return plan, core.NewNonConvergence("projected gradient ascent", iterations, 0)
	}
	return plan, nil
}

// buildProblem pins zero-weight channels at their minimums and sets the
// spend target for the remaining channels.
func (o *Optimizer) buildProblem(m *model.FittedModel, cons allocation.Constraints, keys []core.ChannelKey) (*problem, error) {
	prob := &problem{horizon: cons.Horizon}
	var pinned float64
	for _, key := range keys {
		curve, err := m.Curve(key, cons.Horizon)
		if err != nil {
			return nil, err
		}
		if curve.Weight <= 0 {
			pinned += cons.Bounds[key].Min
			continue
		}
		prob.keys = append(prob.keys, key)
		prob.curves = append(prob.curves, curve)
		prob.lo = append(prob.lo, cons.Bounds[key].Min)
		prob.hi = append(prob.hi, cons.Bounds[key].Max)
	}

	// Responses are non-decreasing, so the active channels absorb as
	// much of the budget as their maximums allow; any remainder simply
	// goes unspent (budget is a ceiling, not a quota).
	available := cons.TotalBudget - pinned
	var maxActive float64
	for _, hi := range prob.hi {
		maxActive += hi
	}
	prob.target = math.Min(available, maxActive)
	return prob, nil
}

// search runs concurrent restarts of projected gradient ascent and
// picks the best objective, tie-breaking on restart index so the result
// is deterministic for a given seed.
func (o *Optimizer) search(ctx context.Context, prob *problem, cfg Config) ([]float64, int, bool, error) {
	type outcome struct {
		restart   int
		x         []float64
		objective float64
		iters     int
		converged bool
	}

	outcomes := make([]outcome, cfg.Restarts)
	g, ctx := errgroup.WithContext(ctx)
	for r := 0; r < cfg.Restarts; r++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := o.startingPoint(prob, cfg.Seed, r)
			x, iters, converged := ascend(prob, start, cfg)
			outcomes[r] = outcome{restart: r, x: x, objective: prob.objective(x), iters: iters, converged: converged}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, false, err
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].objective != outcomes[j].objective {
			return outcomes[i].objective > outcomes[j].objective
		}
		return outcomes[i].restart < outcomes[j].restart
	})
	winner := outcomes[0]
	return winner.x, winner.iters, winner.converged, nil
}

// startingPoint builds restart r's initial allocation.
func (o *Optimizer) startingPoint(prob *problem, seed int64, r int) []float64 {
	n := len(prob.keys)
	start := make([]float64, n)
	if r == 0 {
		for i := range start {
			start[i] = prob.target / float64(n)
		}
	} else {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(r)))
		for i := range start {
			start[i] = prob.lo[i] + rng.Float64()*(prob.hi[i]-prob.lo[i])
		}
	}
	projectSimplexBox(start, prob.lo, prob.hi, prob.target)
	return start
}

// ascend runs projected gradient ascent with backtracking line search.
// It stops when no backtracked step improves the objective (the current
// point is stationary on the feasible region) or when the relative
// spend change drops below tolerance; hitting the iteration budget
// first is a non-converged outcome.
func ascend(prob *problem, x []float64, cfg Config) ([]float64, int, bool) {
	n := len(x)
	grad := make([]float64, n)
	cand := make([]float64, n)

	scale := prob.target
	if scale == 0 {
		return x, 0, true
	}

	for k := 0; k < cfg.MaxIterations; k++ {
		prob.gradient(grad, x)
		gnorm := norm(grad)
		if gnorm == 0 {
			return x, k, true
		}

		fx := prob.objective(x)
		step := scale
		improved := false
		for backtrack := 0; backtrack < 50; backtrack++ {
			for i := range cand {
				cand[i] = x[i] + step*grad[i]/gnorm
			}
			projectSimplexBox(cand, prob.lo, prob.hi, prob.target)
			if prob.objective(cand) > fx+1e-15*math.Abs(fx) {
				improved = true
				break
			}
			step /= 2
		}
		if !improved {
			// No feasible ascent direction left.
			return x, k, true
		}

		var delta float64
		for i := range x {
			delta += math.Abs(cand[i] - x[i])
		}
		copy(x, cand)
		if delta/scale < cfg.Tolerance {
			return x, k + 1, true
		}
	}
	return x, cfg.MaxIterations, false
}

func norm(v []float64) float64 {
	var acc float64
	for _, x := range v {
		acc += x * x
	}
	return math.Sqrt(acc)
}

// projectSimplexBox projects v onto {lo <= x <= hi, sum x = target} by
// bisecting on the shift tau in x_i = clamp(v_i - tau, lo_i, hi_i).
// The mapping is monotone in tau, so bisection converges; the target is
// assumed reachable (sum lo <= target <= sum hi).
func projectSimplexBox(v, lo, hi []float64, target float64) {
	sumAt := func(tau float64) float64 {
		var s float64
		for i := range v {
			s += clamp(v[i]-tau, lo[i], hi[i])
		}
		return s
	}

	// Bracket tau.
	low, high := 0.0, 0.0
	for i := range v {
		low = math.Min(low, v[i]-hi[i])
		high = math.Max(high, v[i]-lo[i])
	}
	for iter := 0; iter < 200; iter++ {
		mid := (low + high) / 2
		if sumAt(mid) > target {
			low = mid
		} else {
			high = mid
		}
	}
	tau := (low + high) / 2
	for i := range v {
		v[i] = clamp(v[i]-tau, lo[i], hi[i])
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// plan builds the immutable result record, computing each channel's
// predicted contribution under the allocation.
func (o *Optimizer) plan(m *model.FittedModel, cons allocation.Constraints, spend map[core.ChannelKey]float64, iterations int, converged bool, seed int64) *allocation.AllocationPlan {
	predicted := make(map[core.ChannelKey]float64, len(spend))
	var total float64
	for key, x := range spend {
		curve, err := m.Curve(key, cons.Horizon)
		if err != nil {
			continue
		}
		contribution := float64(cons.Horizon) * curve.Response(x/float64(cons.Horizon))
		predicted[key] = contribution
		total += contribution
	}
	return &allocation.AllocationPlan{
		ID:                    core.PlanID(core.NewID()),
		ModelID:               m.ID,
		Horizon:               cons.Horizon,
		Spend:                 spend,
		PredictedContribution: predicted,
		Objective:             total,
		Converged:             converged,
		Iterations:            iterations,
		Seed:                  seed,
		CreatedAt:             core.Now(),
	}
}
