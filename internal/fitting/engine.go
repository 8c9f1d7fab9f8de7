// Package fitting assembles transformed channel contributions and the
// seasonal/trend basis into a linear-in-parameters response model and
// estimates its weights.
package fitting

import (
	"fmt"

	"gomix/domain/basis"
	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/domain/series"
	"gomix/internal"
	"gomix/internal/transform"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Engine estimates response models. It is stateless between fits and
// safe for concurrent use.
type Engine struct {
	log *internal.Logger
}

// NewEngine creates a fitting engine.
func NewEngine(log *internal.Logger) *Engine {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Engine{log: log}
}

// Fit estimates intercept and weights explaining the target from the
// given channel contribution series and basis.
//
// All series must share the target's period alignment; a mismatch fails
// with an alignment error before any numeric work. Diagnostics
// (near-collinearity, implausible signs) are attached to the model as
// warnings, never silently dropped. A NonConvergence outcome from the
// iterative fallback solver returns both the best-found model, labeled
// unconverged, and the wrapped error.
func (e *Engine) Fit(target series.TimeSeries, contributions map[core.ChannelKey]series.TimeSeries, bas basis.Basis, cfg model.FitConfig) (*model.FittedModel, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d, err := buildDesign(target, contributions, bas)
	if err != nil {
		return nil, err
	}
	if cfg.Lambda == 0 && d.rows() < d.columns() {
		return nil, core.NewInvalidInput(fmt.Sprintf(
			"%d observations cannot identify %d parameters without regularization", d.rows(), d.columns()))
	}

	warnings := designWarnings(d, cfg)

	est, fitErr := estimatorFor(cfg.Strategy).estimate(d, cfg)
	if fitErr != nil && !core.IsNonConvergence(fitErr) {
		return nil, fitErr
	}

	m := e.assemble(target, contributions, d, est, cfg)
	m.Warnings = append(warnings, signWarnings(d, est.beta, cfg)...)
	if !est.converged {
		e.log.Warn("fit did not converge after %d iterations", est.iterations)
	}
	return m, fitErr
}

// FitChannels runs the full per-channel transform chain before fitting
// and records each channel's transform parameters on the model so the
// optimizer can rebuild the composed response curves.
func (e *Engine) FitChannels(target series.TimeSeries, channels []channel.Channel, bas basis.Basis, cfg model.FitConfig) (*model.FittedModel, error) {
	if len(channels) == 0 {
		return nil, core.NewInvalidInput("fit requires at least one channel")
	}
	contributions := make(map[core.ChannelKey]series.TimeSeries, len(channels))
	params := make(map[core.ChannelKey]channel.TransformParams, len(channels))
	for _, ch := range channels {
		if _, dup := contributions[ch.Key]; dup {
			return nil, core.NewInvalidInput("duplicate channel " + ch.Key.String())
		}
		if err := target.AlignedWith(ch.Spend, "spend for channel "+ch.Key.String()); err != nil {
			return nil, err
		}
		contrib, err := transform.ChannelContribution(ch)
		if err != nil {
			return nil, err
		}
		contributions[ch.Key] = contrib
		params[ch.Key] = ch.Params
	}

	m, err := e.Fit(target, contributions, bas, cfg)
	if m != nil {
		m.ChannelParams = params
	}
	return m, err
}

// assemble builds the immutable FittedModel record, including the
// period-aligned decomposition of the target.
func (e *Engine) assemble(target series.TimeSeries, contributions map[core.ChannelKey]series.TimeSeries, d *design, est estimate, cfg model.FitConfig) *model.FittedModel {
	m := &model.FittedModel{
		ID:               core.ModelID(core.NewID()),
		Strategy:         cfg.Strategy,
		Intercept:        est.beta[0],
		ResidualVariance: est.sigma2,
		ConditionNumber:  mat.Cond(d.x, 2),
		Converged:        est.converged,
		Iterations:       est.iterations,
		Periods:          target.Len(),
		FittedAt:         core.Now(),
	}

	coef := func(j int) model.Coefficient {
		return model.Coefficient{
			Name:   d.termName(j),
			Weight: est.beta[j],
			StdErr: est.stderr[j],
			Lower:  est.lower[j],
			Upper:  est.upper[j],
		}
	}
	for j := range d.channelKeys {
		m.Channels = append(m.Channels, coef(1+j))
	}
	for j := range d.basisNames {
		m.BasisTerms = append(m.BasisTerms, coef(1+len(d.channelKeys)+j))
	}

	// Baseline = intercept + basis terms; channel contributions are the
	// weighted transformed series; residual closes the identity
	// target = baseline + sum(contributions) + residual.
	n := target.Len()
	baseline := make([]float64, n)
	for t := 0; t < n; t++ {
		baseline[t] = est.beta[0]
		for j := range d.basisNames {
			col := 1 + len(d.channelKeys) + j
			baseline[t] += est.beta[col] * d.x.At(t, col)
		}
	}

	contribByChannel := make(map[core.ChannelKey]series.TimeSeries, len(d.channelKeys))
	total := make([]float64, n)
	copy(total, baseline)
	for j, key := range d.channelKeys {
		weighted := contributions[key].Scale(est.beta[1+j])
		contribByChannel[key] = weighted
		for t := 0; t < n; t++ {
			total[t] += weighted.At(t)
		}
	}

	residual := make([]float64, n)
	for t := 0; t < n; t++ {
		residual[t] = target.At(t) - total[t]
	}

	m.Decomposition = model.Decomposition{
		Baseline:      series.MustNew(target.Start(), baseline),
		Contributions: contribByChannel,
		Residual:      series.MustNew(target.Start(), residual),
	}
	return m
}

// designWarnings checks the design matrix before estimation.
func designWarnings(d *design, cfg model.FitConfig) []model.Warning {
	var warnings []model.Warning

	cond := mat.Cond(d.x, 2)
	if cond > cfg.ConditionThreshold {
		warnings = append(warnings, model.Warning{
			Code:   model.WarningNearCollinear,
			Detail: fmt.Sprintf("design matrix condition number %.3g exceeds threshold %.3g", cond, cfg.ConditionThreshold),
		})
	}

	n := d.rows()
	col := make([]float64, n)
	for j := 1; j < d.columns(); j++ {
		mat.Col(col, j, d.x)
		if stat.Variance(col, nil) == 0 {
			warnings = append(warnings, model.Warning{
				Code:   model.WarningZeroVariance,
				Detail: fmt.Sprintf("regressor %s is constant over the fit window", d.termName(j)),
			})
		}
	}
	return warnings
}

// signWarnings flags fitted weights whose sign contradicts their
// configured expectation. Channel weights default to an expected
// positive sign; negative weight on spend is economically implausible.
func signWarnings(d *design, beta []float64, cfg model.FitConfig) []model.Warning {
	var warnings []model.Warning
	for j := 1; j < d.columns(); j++ {
		name := d.termName(j)
		expected, configured := cfg.ExpectedSigns[name]
		if !configured {
			if j <= len(d.channelKeys) {
				expected = model.SignPositive
			} else {
				expected = model.SignAny
			}
		}
		w := beta[j]
		if (expected == model.SignPositive && w < 0) || (expected == model.SignNegative && w > 0) {
			warnings = append(warnings, model.Warning{
				Code:   model.WarningImplausibleSign,
				Detail: fmt.Sprintf("weight for %s is %.6g, expected sign %+d", name, w, expected),
			})
		}
	}
	return warnings
}
