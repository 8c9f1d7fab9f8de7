package allocation

import (
	"fmt"
	"sort"

	"gomix/domain/core"
)

// Bound is a per-channel spend range for the whole planning horizon.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Constraints describe the feasible region for one optimization call:
// a total budget, per-channel bounds, and the horizon the budget covers.
// Spend within a channel is assumed flat across the horizon.
type Constraints struct {
	// TotalBudget is the spend ceiling across all channels and periods.
	TotalBudget float64 `json:"total_budget"`
	// Horizon is the number of future periods to allocate across.
	Horizon int `json:"horizon"`
	// Bounds maps channel keys to min/max total spend. Every channel in
	// the fitted model must have a bound entry.
	Bounds map[core.ChannelKey]Bound `json:"bounds"`
}

// Validate checks the constraints for internal consistency and
// feasibility against the given channel set. Infeasible constraints are
// a reported error, never a best-effort solve.
func (c Constraints) Validate(channels []core.ChannelKey) error {
	if c.Horizon < 1 {
		return core.NewInvalidParameter("horizon", float64(c.Horizon), ">= 1")
	}
	if c.TotalBudget < 0 {
		return core.NewInvalidParameter("total_budget", c.TotalBudget, ">= 0")
	}
	var minSum, maxSum float64
	for _, key := range channels {
		b, ok := c.Bounds[key]
		if !ok {
			return core.NewInvalidInput("no bounds for channel " + key.String())
		}
		if b.Min < 0 {
			return core.NewInvalidParameter("min spend for "+key.String(), b.Min, ">= 0")
		}
		if b.Max < b.Min {
			return core.NewInvalidParameter("max spend for "+key.String(), b.Max, fmt.Sprintf(">= min (%g)", b.Min))
		}
		minSum += b.Min
		maxSum += b.Max
	}
	if minSum > c.TotalBudget {
		return core.NewInfeasibleError("sum of channel minimums exceeds total budget", c.TotalBudget, minSum)
	}
	return nil
}

// MinTotal sums the channel minimums.
func (c Constraints) MinTotal(channels []core.ChannelKey) float64 {
	var total float64
	for _, key := range channels {
		total += c.Bounds[key].Min
	}
	return total
}

// MaxTotal sums the channel maximums.
func (c Constraints) MaxTotal(channels []core.ChannelKey) float64 {
	var total float64
	for _, key := range channels {
		total += c.Bounds[key].Max
	}
	return total
}

// AllocationPlan is the optimizer's immutable result: proposed total
// spend per channel over the horizon, the predicted contribution under
// that allocation, and the objective value reached.
type AllocationPlan struct {
	ID      core.PlanID  `json:"id"`
	ModelID core.ModelID `json:"model_id"`
	Horizon int          `json:"horizon"`

	Spend                 map[core.ChannelKey]float64 `json:"spend"`
	PredictedContribution map[core.ChannelKey]float64 `json:"predicted_contribution"`
	Objective             float64                     `json:"objective"`

	// Converged is false when the search hit its iteration budget; the
	// plan then carries the best state found and callers decide whether
	// to accept it.
	Converged  bool `json:"converged"`
	Iterations int  `json:"iterations"`

	Seed      int64          `json:"seed"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// Channels returns the plan's channel keys in sorted order.
func (p *AllocationPlan) Channels() []core.ChannelKey {
	keys := make([]core.ChannelKey, 0, len(p.Spend))
	for key := range p.Spend {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// TotalSpend sums proposed spend across channels.
func (p *AllocationPlan) TotalSpend() float64 {
	var total float64
	for _, v := range p.Spend {
		total += v
	}
	return total
}
