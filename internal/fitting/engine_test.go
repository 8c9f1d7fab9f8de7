package fitting

import (
	"math"
	"testing"
	"time"

	"gomix/domain/basis"
	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/domain/series"
	"gomix/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitStart() core.Month {
	return core.NewMonth(2021, time.January)
}

// syntheticContribution builds a deterministic saturated-looking series
// in (0, 1) for use as a ready-made regressor.
func syntheticContribution(n int, phase float64) series.TimeSeries {
	vals := make([]float64, n)
	for t := range vals {
		vals[t] = 0.5 + 0.4*math.Sin(phase+0.7*float64(t))
	}
	return series.MustNew(fitStart(), vals)
}

func TestFitRecoversNoiselessWeights(t *testing.T) {
	// Scenario: the target is exactly 10 + 3*chA + 2*trend. OLS must
	// recover intercept and weights to numerical precision.
	n := 24
	chA := syntheticContribution(n, 0.3)

	bas, err := transform.BuildBasis(fitStart(), n, transform.BasisSpec{IncludeTrend: true})
	require.NoError(t, err)

	target := make([]float64, n)
	trend := bas.Column(0)
	for tt := 0; tt < n; tt++ {
		target[tt] = 10 + 3*chA.At(tt) + 2*trend.At(tt)
	}

	engine := NewEngine(nil)
	m, err := engine.Fit(
		series.MustNew(fitStart(), target),
		map[core.ChannelKey]series.TimeSeries{"display_hcp": chA},
		bas,
		model.FitConfig{Strategy: model.StrategyRidge},
	)
	require.NoError(t, err)
	require.True(t, m.Converged)

	assert.InDelta(t, 10, m.Intercept, 1e-6)
	require.Len(t, m.Channels, 1)
	assert.Equal(t, "display_hcp", m.Channels[0].Name)
	assert.InDelta(t, 3, m.Channels[0].Weight, 1e-6)
	require.Len(t, m.BasisTerms, 1)
	assert.Equal(t, "trend", m.BasisTerms[0].Name)
	assert.InDelta(t, 2, m.BasisTerms[0].Weight, 1e-6)
	assert.InDelta(t, 0, m.ResidualVariance, 1e-10)
}

func TestFitMatchesClosedFormOLS(t *testing.T) {
	// Simple regression against one channel, no basis: the fitted slope
	// and intercept must match the textbook formulas.
	n := 30
	x := syntheticContribution(n, 1.1)
	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		// Deterministic pseudo-noise so the fit is not exact.
		target[tt] = 5 + 4*x.At(tt) + 0.01*math.Sin(13.7*float64(tt))
	}

	var xbar, ybar float64
	for tt := 0; tt < n; tt++ {
		xbar += x.At(tt)
		ybar += target[tt]
	}
	xbar /= float64(n)
	ybar /= float64(n)
	var sxx, sxy float64
	for tt := 0; tt < n; tt++ {
		dx := x.At(tt) - xbar
		sxx += dx * dx
		sxy += dx * (target[tt] - ybar)
	}
	slope := sxy / sxx
	intercept := ybar - slope*xbar

	engine := NewEngine(nil)
	m, err := engine.Fit(
		series.MustNew(fitStart(), target),
		map[core.ChannelKey]series.TimeSeries{"paid_search": x},
		basis.Empty(),
		model.FitConfig{Strategy: model.StrategyRidge},
	)
	require.NoError(t, err)

	assert.InDelta(t, slope, m.Channels[0].Weight, 1e-8)
	assert.InDelta(t, intercept, m.Intercept, 1e-8)
}

func TestFitRejectsMisalignedContribution(t *testing.T) {
	n := 24
	target := syntheticContribution(n, 0)
	short := series.MustNew(fitStart(), make([]float64, n-1))

	engine := NewEngine(nil)
	_, err := engine.Fit(
		target,
		map[core.ChannelKey]series.TimeSeries{"display_dtc": short},
		basis.Empty(),
		model.FitConfig{},
	)
	require.Error(t, err)
	assert.True(t, core.IsAlignmentError(err), "expected alignment error, got %v", err)
}

func TestFitRejectsUnderdeterminedWithoutRegularization(t *testing.T) {
	// Two observations, one channel plus intercept plus trend: 2 < 3.
	n := 2
	target := series.MustNew(fitStart(), []float64{1, 2})
	ch := series.MustNew(fitStart(), []float64{0.2, 0.8})
	bas, err := transform.BuildBasis(fitStart(), n, transform.BasisSpec{IncludeTrend: true})
	require.NoError(t, err)

	engine := NewEngine(nil)
	_, err = engine.Fit(target, map[core.ChannelKey]series.TimeSeries{"meetings": ch}, bas,
		model.FitConfig{Strategy: model.StrategyRidge, Lambda: 0})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))

	// With a ridge penalty the same shape is estimable.
	m, err := engine.Fit(target, map[core.ChannelKey]series.TimeSeries{"meetings": ch}, bas,
		model.FitConfig{Strategy: model.StrategyRidge, Lambda: 0.5})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestFitWarnsOnZeroVarianceRegressor(t *testing.T) {
	n := 24
	constant := make([]float64, n)
	for tt := range constant {
		constant[tt] = 0.7
	}
	varying := syntheticContribution(n, 0.5)
	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		target[tt] = 3 + 2*varying.At(tt)
	}

	engine := NewEngine(nil)
	m, err := engine.Fit(
		series.MustNew(fitStart(), target),
		map[core.ChannelKey]series.TimeSeries{
			"teledetails": series.MustNew(fitStart(), constant),
			"display_hcp": varying,
		},
		basis.Empty(),
		// The constant column is collinear with the intercept; a small
		// penalty keeps the solve well posed while the warning fires.
		model.FitConfig{Strategy: model.StrategyRidge, Lambda: 0.01},
	)
	require.NoError(t, err)

	var found bool
	for _, w := range m.Warnings {
		if w.Code == model.WarningZeroVariance {
			found = true
		}
	}
	assert.True(t, found, "expected zero-variance warning, got %v", m.Warnings)
}

func TestFitWarnsOnImplausibleSign(t *testing.T) {
	// Target moves against the channel, so the fitted weight is negative
	// and contradicts the default positive expectation for spend.
	n := 24
	x := syntheticContribution(n, 0.9)
	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		target[tt] = 100 - 5*x.At(tt)
	}

	engine := NewEngine(nil)
	m, err := engine.Fit(
		series.MustNew(fitStart(), target),
		map[core.ChannelKey]series.TimeSeries{"display_dtc": x},
		basis.Empty(),
		model.FitConfig{Strategy: model.StrategyRidge},
	)
	require.NoError(t, err)

	var found bool
	for _, w := range m.Warnings {
		if w.Code == model.WarningImplausibleSign {
			found = true
		}
	}
	assert.True(t, found, "expected implausible-sign warning, got %v", m.Warnings)
	assert.Negative(t, m.Channels[0].Weight)
}

func TestBayesMeanMatchesRidge(t *testing.T) {
	n := 36
	x := syntheticContribution(n, 2.2)
	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		target[tt] = 8 + 2.5*x.At(tt) + 0.05*math.Cos(3.1*float64(tt))
	}
	ts := series.MustNew(fitStart(), target)
	contributions := map[core.ChannelKey]series.TimeSeries{"paid_search": x}

	engine := NewEngine(nil)
	ridge, err := engine.Fit(ts, contributions, basis.Empty(),
		model.FitConfig{Strategy: model.StrategyRidge, Lambda: 0.3})
	require.NoError(t, err)

	bayes, err := engine.Fit(ts, contributions, basis.Empty(),
		model.FitConfig{Strategy: model.StrategyBayes, Lambda: 0.3, Seed: 7})
	require.NoError(t, err)

	// The conjugate posterior mean coincides with the ridge solution.
	assert.InDelta(t, ridge.Intercept, bayes.Intercept, 1e-10)
	assert.InDelta(t, ridge.Channels[0].Weight, bayes.Channels[0].Weight, 1e-10)
}

func TestBayesSeededDeterminism(t *testing.T) {
	n := 36
	x := syntheticContribution(n, 0.4)
	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		target[tt] = 12 + 3*x.At(tt) + 0.1*math.Sin(5.3*float64(tt))
	}
	ts := series.MustNew(fitStart(), target)
	contributions := map[core.ChannelKey]series.TimeSeries{"meetings": x}
	cfg := model.FitConfig{Strategy: model.StrategyBayes, Lambda: 0.1, Seed: 99, PosteriorDraws: 500}

	engine := NewEngine(nil)
	a, err := engine.Fit(ts, contributions, basis.Empty(), cfg)
	require.NoError(t, err)
	b, err := engine.Fit(ts, contributions, basis.Empty(), cfg)
	require.NoError(t, err)

	// Same seed: bitwise-identical coefficient summaries.
	assert.Equal(t, a.Channels[0].StdErr, b.Channels[0].StdErr)
	assert.Equal(t, a.Channels[0].Lower, b.Channels[0].Lower)
	assert.Equal(t, a.Channels[0].Upper, b.Channels[0].Upper)

	cfg.Seed = 100
	c, err := engine.Fit(ts, contributions, basis.Empty(), cfg)
	require.NoError(t, err)
	// Different seed: different posterior draws.
	assert.NotEqual(t, a.Channels[0].Lower, c.Channels[0].Lower)
}

func TestDecompositionIdentity(t *testing.T) {
	// baseline + sum(contributions) + residual reproduces the target.
	n := 24
	chA := syntheticContribution(n, 0.1)
	chB := syntheticContribution(n, 1.9)
	bas, err := transform.BuildBasis(fitStart(), n, transform.BasisSpec{Harmonics: 1, IncludeTrend: true})
	require.NoError(t, err)

	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		target[tt] = 50 + 4*chA.At(tt) + 1.5*chB.At(tt) + 0.2*math.Sin(7.7*float64(tt))
	}
	ts := series.MustNew(fitStart(), target)

	engine := NewEngine(nil)
	m, err := engine.Fit(ts, map[core.ChannelKey]series.TimeSeries{"display_hcp": chA, "display_dtc": chB}, bas,
		model.FitConfig{Strategy: model.StrategyRidge})
	require.NoError(t, err)

	dec := m.Decomposition
	require.NoError(t, ts.AlignedWith(dec.Baseline, "baseline"))
	require.NoError(t, ts.AlignedWith(dec.Residual, "residual"))
	for tt := 0; tt < n; tt++ {
		total := dec.Baseline.At(tt) + dec.Residual.At(tt)
		for _, contrib := range dec.Contributions {
			total += contrib.At(tt)
		}
		assert.InDelta(t, ts.At(tt), total, 1e-9)
	}
}

func TestFitChannelsAttachesParams(t *testing.T) {
	n := 24
	spend := make([]float64, n)
	for tt := range spend {
		spend[tt] = 1000 + 300*math.Sin(0.6*float64(tt))
	}
	params := channel.TransformParams{Decay: 0.4, Alpha: 1.2, Gamma: 900}
	ch, err := channel.New("display_hcp", series.MustNew(fitStart(), spend), params)
	require.NoError(t, err)

	contrib, err := transform.ChannelContribution(ch)
	require.NoError(t, err)
	target := make([]float64, n)
	for tt := 0; tt < n; tt++ {
		target[tt] = 200 + 80*contrib.At(tt)
	}

	engine := NewEngine(nil)
	m, err := engine.FitChannels(series.MustNew(fitStart(), target), []channel.Channel{ch}, basis.Empty(),
		model.FitConfig{Strategy: model.StrategyRidge})
	require.NoError(t, err)

	require.Contains(t, m.ChannelParams, core.ChannelKey("display_hcp"))
	assert.Equal(t, params, m.ChannelParams["display_hcp"])
	assert.InDelta(t, 80, m.ChannelWeight("display_hcp"), 1e-6)
}

func TestFitChannelsRejectsDuplicates(t *testing.T) {
	n := 12
	spend := series.MustNew(fitStart(), make([]float64, n))
	params := channel.TransformParams{Decay: 0.2, Alpha: 1, Gamma: 100}
	ch, err := channel.New("meetings", spend.Map(func(float64) float64 { return 10 }), params)
	require.NoError(t, err)

	engine := NewEngine(nil)
	_, err = engine.FitChannels(
		series.MustNew(fitStart(), make([]float64, n)).Map(func(float64) float64 { return 1 }),
		[]channel.Channel{ch, ch},
		basis.Empty(),
		model.FitConfig{},
	)
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}
