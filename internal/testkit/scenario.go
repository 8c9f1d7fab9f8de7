// Package testkit generates deterministic synthetic MMM scenarios with
// known ground-truth parameters, used by tests and by the server's
// in-memory demo mode.
package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/series"
	"gomix/internal/transform"
)

// ScenarioConfig configures the synthetic scenario generator
type ScenarioConfig struct {
	Regions    []core.RegionCode `json:"regions"`
	Months     int               `json:"months"`
	Start      core.Month        `json:"start"`
	Intercept  float64           `json:"intercept"`
	NoiseSigma float64           `json:"noise_sigma"`
	Seed       int64             `json:"seed"`
}

// DefaultScenarioConfig returns a three-year, two-region pharma scenario
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{
		Regions:    []core.RegionCode{"DMA_501", "DMA_803"},
		Months:     36,
		Start:      core.NewMonth(2021, 1),
		Intercept:  1200,
		NoiseSigma: 8,
		Seed:       42,
	}
}

// GroundTruth is a channel's true generating process
type GroundTruth struct {
	Key    core.ChannelKey        `json:"key"`
	Weight float64                `json:"weight"`
	Params channel.TransformParams `json:"params"`
	// BaseSpend and SpendJitter shape the random monthly spend.
	BaseSpend   float64 `json:"base_spend"`
	SpendJitter float64 `json:"spend_jitter"`
}

// DefaultGroundTruth mirrors the channel mix of the HCP-level dataset:
// digital display toward HCPs and consumers, paid search, rep meetings
// and tele-details.
func DefaultGroundTruth() []GroundTruth {
	return []GroundTruth{
		{Key: "display_hcp", Weight: 320, Params: channel.TransformParams{Decay: 0.55, Alpha: 1.4, Gamma: 9000}, BaseSpend: 8000, SpendJitter: 0.35},
		{Key: "display_dtc", Weight: 180, Params: channel.TransformParams{Decay: 0.40, Alpha: 1.1, Gamma: 15000}, BaseSpend: 12000, SpendJitter: 0.45},
		{Key: "paid_search", Weight: 260, Params: channel.TransformParams{Decay: 0.20, Alpha: 0.9, Gamma: 5000}, BaseSpend: 4500, SpendJitter: 0.30},
		{Key: "meetings", Weight: 150, Params: channel.TransformParams{Decay: 0.70, Alpha: 1.6, Gamma: 300}, BaseSpend: 250, SpendJitter: 0.25},
		{Key: "teledetails", Weight: 90, Params: channel.TransformParams{Decay: 0.30, Alpha: 1.2, Gamma: 600}, BaseSpend: 500, SpendJitter: 0.40},
	}
}

// RegionScenario is one generated region: channels, the target series,
// and the truth it was generated from.
type RegionScenario struct {
	Region   core.RegionCode   `json:"region"`
	Channels []channel.Channel `json:"channels"`
	Target   series.TimeSeries `json:"target"`
	Truth    []GroundTruth     `json:"truth"`
}

// Generator produces deterministic scenarios
type Generator struct {
	config ScenarioConfig
	truth  []GroundTruth
}

// NewGenerator creates a scenario generator
func NewGenerator(config ScenarioConfig) *Generator {
	return &Generator{config: config, truth: DefaultGroundTruth()}
}

// WithTruth overrides the default channel ground truth
func (g *Generator) WithTruth(truth []GroundTruth) *Generator {
	g.truth = truth
	return g
}

// Generate builds every region's scenario. Same config, same output.
func (g *Generator) Generate() ([]RegionScenario, error) {
	scenarios := make([]RegionScenario, 0, len(g.config.Regions))
	for i, region := range g.config.Regions {
		// Per-region stream keyed by (seed, region index) so adding a
		// region never perturbs existing ones.
		rng := rand.New(rand.NewPCG(uint64(g.config.Seed), uint64(i)))
		scenario, err := g.generateRegion(region, rng)
		if err != nil {
			return nil, fmt.Errorf("generate region %s: %w", region, err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func (g *Generator) generateRegion(region core.RegionCode, rng *rand.Rand) (RegionScenario, error) {
	n := g.config.Months
	target := make([]float64, n)
	for t := range target {
		// Mild annual seasonality plus a slow upward trend on the
		// baseline, as prescription volume typically shows.
		seasonal := 0.06 * math.Sin(2*math.Pi*float64(t)/12)
		trend := 0.10 * float64(t) / float64(n)
		target[t] = g.config.Intercept * (1 + seasonal + trend)
	}

	channels := make([]channel.Channel, 0, len(g.truth))
	for _, truth := range g.truth {
		spend := make([]float64, n)
		for t := range spend {
			jitter := 1 + truth.SpendJitter*(2*rng.Float64()-1)
			spend[t] = truth.BaseSpend * jitter
		}
		spendSeries, err := series.New(g.config.Start, spend)
		if err != nil {
			return RegionScenario{}, err
		}
		ch, err := channel.New(truth.Key, spendSeries, truth.Params)
		if err != nil {
			return RegionScenario{}, err
		}
		channels = append(channels, ch)

		contrib, err := transform.ChannelContribution(ch)
		if err != nil {
			return RegionScenario{}, err
		}
		for t := range target {
			target[t] += truth.Weight * contrib.At(t)
		}
	}

	for t := range target {
		target[t] += g.config.NoiseSigma * rng.NormFloat64()
	}

	targetSeries, err := series.New(g.config.Start, target)
	if err != nil {
		return RegionScenario{}, err
	}
	return RegionScenario{
		Region:   region,
		Channels: channels,
		Target:   targetSeries,
		Truth:    g.truth,
	}, nil
}
