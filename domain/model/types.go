package model

import (
	"math"
	"sort"

	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/series"
)

// Strategy selects how linear weights are estimated. Both strategies
// satisfy the same Fit contract.
type Strategy string

const (
	// StrategyRidge is the point-estimate path: ordinary least squares
	// when Lambda is 0, ridge-regularized otherwise.
	StrategyRidge Strategy = "ridge"
	// StrategyBayes is the conjugate Bayesian path: a zero-mean normal
	// prior on weights, posterior summarized by seeded draws.
	StrategyBayes Strategy = "bayes"
)

// Sign encodes a prior expectation on a coefficient's direction.
type Sign int

const (
	SignAny      Sign = 0
	SignPositive Sign = 1
	SignNegative Sign = -1
)

// FitConfig is the explicit configuration for one fit. Zero values fall
// back to defaults via WithDefaults; nothing is read from process state.
type FitConfig struct {
	Strategy Strategy `json:"strategy"`
	// Lambda is the ridge penalty / prior precision scale. 0 means OLS.
	Lambda float64 `json:"lambda"`
	// ConditionThreshold triggers a near-collinearity warning when the
	// design matrix condition number exceeds it.
	ConditionThreshold float64 `json:"condition_threshold"`
	// ExpectedSigns maps term names to their economically plausible
	// direction. Channel terms default to SignPositive.
	ExpectedSigns map[string]Sign `json:"expected_signs,omitempty"`
	// Tolerance is the relative stopping tolerance for iterative solves.
	Tolerance float64 `json:"tolerance"`
	// MaxIterations bounds iterative solves; exceeding it is a
	// NonConvergence outcome, never an infinite loop.
	MaxIterations int `json:"max_iterations"`
	// PosteriorDraws is the number of seeded posterior samples drawn
	// under StrategyBayes.
	PosteriorDraws int `json:"posterior_draws"`
	// Seed drives posterior sampling; same seed, same FittedModel.
	Seed int64 `json:"seed"`
}

// Fit configuration defaults.
const (
	DefaultConditionThreshold = 1e8
	DefaultTolerance          = 1e-8
	DefaultMaxIterations      = 1000
	DefaultPosteriorDraws     = 2000
)

// WithDefaults fills unset fields with sane defaults.
func (c FitConfig) WithDefaults() FitConfig {
	if c.Strategy == "" {
		c.Strategy = StrategyRidge
	}
	if c.ConditionThreshold == 0 {
		c.ConditionThreshold = DefaultConditionThreshold
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.PosteriorDraws == 0 {
		c.PosteriorDraws = DefaultPosteriorDraws
	}
	return c
}

// Validate checks configuration domains.
func (c FitConfig) Validate() error {
	if c.Strategy != StrategyRidge && c.Strategy != StrategyBayes {
		return core.NewInvalidInput("unknown fit strategy " + string(c.Strategy))
	}
	if c.Lambda < 0 {
		return core.NewInvalidParameter("lambda", c.Lambda, ">= 0")
	}
	if c.Tolerance <= 0 {
		return core.NewInvalidParameter("tolerance", c.Tolerance, "> 0")
	}
	if c.MaxIterations < 1 {
		return core.NewInvalidParameter("max_iterations", float64(c.MaxIterations), ">= 1")
	}
	return nil
}

// WarningCode represents structured non-fatal diagnostics
type WarningCode string

const (
	// WarningNearCollinear fires when the design matrix condition number
	// exceeds the configured threshold.
	WarningNearCollinear WarningCode = "NEAR_COLLINEAR_DESIGN"
	// WarningImplausibleSign fires when a fitted weight contradicts its
	// configured prior expectation (e.g. negative weight on spend).
	WarningImplausibleSign WarningCode = "IMPLAUSIBLE_SIGN"
	// WarningZeroVariance fires when a regressor is constant over the
	// fit window.
	WarningZeroVariance WarningCode = "ZERO_VARIANCE_REGRESSOR"
)

// Warning is a diagnostic attached to a successfully produced model.
// Warnings never block production of a result.
type Warning struct {
	Code   WarningCode `json:"code"`
	Detail string      `json:"detail"`
}

// Coefficient is one fitted weight with its uncertainty band. For the
// ridge strategy the band is a normal-approximation interval; for the
// Bayesian strategy it is the central 95% posterior credible interval.
type Coefficient struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	StdErr float64 `json:"std_err"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// Decomposition splits the target into baseline, per-channel
// contribution, and residual, aligned to the fit window.
type Decomposition struct {
	Baseline      series.TimeSeries                   `json:"baseline"`
	Contributions map[core.ChannelKey]series.TimeSeries `json:"contributions"`
	Residual      series.TimeSeries                   `json:"residual"`
}

// FittedModel is the immutable output of the fitting engine. It may be
// shared across goroutines without synchronization.
type FittedModel struct {
	ID       core.ModelID    `json:"id"`
	RunID    core.RunID      `json:"run_id,omitempty"`
	Region   core.RegionCode `json:"region,omitempty"`
	Strategy Strategy        `json:"strategy"`

	Intercept  float64       `json:"intercept"`
	Channels   []Coefficient `json:"channels"`
	BasisTerms []Coefficient `json:"basis_terms"`

	// ChannelParams carries each channel's transform parameters so the
	// optimizer can rebuild the composed response curve.
	ChannelParams map[core.ChannelKey]channel.TransformParams `json:"channel_params"`

	ResidualVariance float64   `json:"residual_variance"`
	ConditionNumber  float64   `json:"condition_number"`
	Warnings         []Warning `json:"warnings,omitempty"`

	Converged  bool `json:"converged"`
	Iterations int  `json:"iterations"`

	Periods       int            `json:"periods"`
	Decomposition Decomposition  `json:"decomposition"`
	FittedAt      core.Timestamp `json:"fitted_at"`
}

// ChannelWeight returns the fitted weight for a channel, or 0 if the
// channel is unknown to the model.
func (m *FittedModel) ChannelWeight(key core.ChannelKey) float64 {
	for _, c := range m.Channels {
		if c.Name == key.String() {
			return c.Weight
		}
	}
	return 0
}

// ChannelKeys returns the model's channel keys in sorted order.
func (m *FittedModel) ChannelKeys() []core.ChannelKey {
	keys := make([]core.ChannelKey, 0, len(m.Channels))
	for _, c := range m.Channels {
		keys = append(keys, core.ChannelKey(c.Name))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ResponseCurve is a channel's composed steady-state response to a flat
// per-period spend level: weight * Hill(carryover_gain * spend). It is
// monotonically non-decreasing and concave for positive spend, which is
// what makes budget allocation a concave maximization.
type ResponseCurve struct {
	Weight float64
	Gain   float64
	Alpha  float64
	Gamma  float64
}

// Curve builds the response curve for one channel over a planning
// horizon of the given number of periods.
func (m *FittedModel) Curve(key core.ChannelKey, horizon int) (ResponseCurve, error) {
	params, ok := m.ChannelParams[key]
	if !ok {
		return ResponseCurve{}, core.NewInvalidInput("model has no channel " + key.String())
	}
	return ResponseCurve{
		Weight: m.ChannelWeight(key),
		Gain:   params.CarryoverGain(horizon),
		Alpha:  params.Alpha,
		Gamma:  params.Gamma,
	}, nil
}

// Response is the per-period contribution at a flat per-period spend.
func (c ResponseCurve) Response(spend float64) float64 {
	if spend <= 0 {
		return 0
	}
	r := math.Pow(spend*c.Gain/c.Gamma, c.Alpha)
	if math.IsInf(r, 1) {
		return c.Weight
	}
	return c.Weight * r / (1 + r)
}

// Derivative is the marginal per-period contribution at a flat
// per-period spend level.
func (c ResponseCurve) Derivative(spend float64) float64 {
	if spend < 0 {
		return 0
	}
	u := spend * c.Gain
	// d/du [u^a / (g^a + u^a)] = a g^a u^(a-1) / (g^a + u^a)^2
	ga := math.Pow(c.Gamma, c.Alpha)
	ua := math.Pow(u, c.Alpha)
	if math.IsInf(ua, 1) {
		return 0
	}
	if u == 0 {
		// Slope at the origin: 0 for alpha > 1, w*gain/gamma for
		// alpha == 1, unbounded for alpha < 1. A large finite value
		// keeps gradient steps moving off zero.
		if c.Alpha > 1 {
			return 0
		}
		if c.Alpha == 1 {
			return c.Weight * c.Gain / c.Gamma
		}
		return math.MaxFloat64
	}
	uam1 := ua / u
	denom := ga + ua
	return c.Weight * c.Gain * c.Alpha * ga * uam1 / (denom * denom)
}
