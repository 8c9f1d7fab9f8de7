// Package pipeline orchestrates whole model runs: per-region transform
// and fit, executed concurrently with bounded parallelism, joined into
// a manifest-stamped result.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/domain/series"
	"gomix/internal"
	"gomix/internal/fitting"
	"gomix/internal/transform"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RegionInput is one self-contained unit of work: a region's channels
// and its target metric, sharing one period index.
type RegionInput struct {
	Region   core.RegionCode   `json:"region"`
	Channels []channel.Channel `json:"channels"`
	Target   series.TimeSeries `json:"target"`
}

// RunRequest configures a whole run.
type RunRequest struct {
	Regions []RegionInput       `json:"regions"`
	Basis   transform.BasisSpec `json:"basis"`
	Fit     model.FitConfig     `json:"fit"`
	// Concurrency bounds simultaneous region fits; 0 means 4.
	Concurrency int `json:"concurrency"`
}

// RegionResult pairs a region with its fitted model or failure. A
// region failing does not abort sibling regions.
type RegionResult struct {
	Region core.RegionCode    `json:"region"`
	Model  *model.FittedModel `json:"model,omitempty"`
	Err    string             `json:"error,omitempty"`
}

// RunManifest stamps a run with its identity and reproducibility facts.
type RunManifest struct {
	RunID       core.RunID       `json:"run_id"`
	Seed        int64            `json:"seed"`
	Regions     int              `json:"regions"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Fingerprint core.Fingerprint `json:"fingerprint"`
	StartedAt   core.Timestamp   `json:"started_at"`
	FinishedAt  core.Timestamp   `json:"finished_at"`
}

// RunResult is the joined output of a run.
type RunResult struct {
	Manifest RunManifest    `json:"manifest"`
	Regions  []RegionResult `json:"regions"`
}

// Runner executes model runs.
type Runner struct {
	engine *fitting.Engine
	log    *internal.Logger
}

// NewRunner creates a runner around a fitting engine.
func NewRunner(engine *fitting.Engine, log *internal.Logger) *Runner {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Runner{engine: engine, log: log}
}

// Run fits one model per region with bounded concurrency. Each region
// is side-effect-free over immutable inputs, so regions share nothing
// but the read-only request. Cancelling the context abandons the whole
// run; partial per-region state is discarded, not returned.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if len(req.Regions) == 0 {
		return nil, core.NewInvalidInput("run has no regions")
	}
	seen := make(map[core.RegionCode]bool, len(req.Regions))
	for _, region := range req.Regions {
		if region.Region == "" {
			return nil, core.NewInvalidInput("region code is empty")
		}
		if seen[region.Region] {
			return nil, core.NewInvalidInput("duplicate region " + region.Region.String())
		}
		seen[region.Region] = true
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	runID := core.RunID(core.NewID())
	started := core.Now()
	r.log.Info("run %s: fitting %d regions (concurrency %d)", runID, len(req.Regions), concurrency)

	results := make([]RegionResult, len(req.Regions))
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	for i, region := range req.Regions {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			m, err := r.fitRegion(region, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Warn("run %s: region %s failed: %v", runID, region.Region, err)
				results[i] = RegionResult{Region: region.Region, Err: err.Error()}
				return nil
			}
			m.RunID = runID
			m.Region = region.Region
			results[i] = RegionResult{Region: region.Region, Model: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Cancellation abandons the run; no partial result escapes.
		return nil, err
	}

	manifest := RunManifest{
		RunID:       runID,
		Seed:        req.Fit.Seed,
		Regions:     len(req.Regions),
		Fingerprint: fingerprint(req),
		StartedAt:   started,
		FinishedAt:  core.Now(),
	}
	for _, res := range results {
		if res.Model != nil {
			manifest.Succeeded++
		} else {
			manifest.Failed++
		}
	}
	r.log.Info("run %s: %d succeeded, %d failed", runID, manifest.Succeeded, manifest.Failed)
	return &RunResult{Manifest: manifest, Regions: results}, nil
}

// fitRegion runs the transform chain and fit for one region.
func (r *Runner) fitRegion(region RegionInput, req RunRequest) (*model.FittedModel, error) {
	bas, err := transform.BuildBasis(region.Target.Start(), region.Target.Len(), req.Basis)
	if err != nil {
		return nil, err
	}
	m, err := r.engine.FitChannels(region.Target, region.Channels, bas, req.Fit)
	if err != nil && (m == nil || !core.IsNonConvergence(err)) {
		return nil, err
	}
	// A non-converged model is still a labeled, usable result.
	return m, nil
}

// BestModel selects the successful region model with the lowest
// residual variance, the join step for robustness across regions.
// Region code breaks ties deterministically.
func BestModel(result *RunResult) (*model.FittedModel, error) {
	var candidates []*model.FittedModel
	for _, res := range result.Regions {
		if res.Model != nil {
			candidates = append(candidates, res.Model)
		}
	}
	if len(candidates) == 0 {
		return nil, core.NewInvalidInput("run produced no successful models")
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ResidualVariance != candidates[j].ResidualVariance {
			return candidates[i].ResidualVariance < candidates[j].ResidualVariance
		}
		return candidates[i].Region < candidates[j].Region
	})
	return candidates[0], nil
}

// fingerprint folds the run's inputs and configuration into a
// deterministic identity.
func fingerprint(req RunRequest) core.Fingerprint {
	facts := map[string]string{
		"strategy":  string(req.Fit.Strategy),
		"lambda":    fmt.Sprintf("%g", req.Fit.Lambda),
		"seed":      fmt.Sprintf("%d", req.Fit.Seed),
		"harmonics": fmt.Sprintf("%d", req.Basis.Harmonics),
		"trend":     fmt.Sprintf("%t", req.Basis.IncludeTrend),
	}
	for _, region := range req.Regions {
		prefix := "region." + region.Region.String()
		facts[prefix+".target"] = core.FingerprintSeries("target", region.Target.Start(), region.Target.Values())
		for _, ch := range region.Channels {
			facts[fmt.Sprintf("%s.channel.%s", prefix, ch.Key)] = core.FingerprintSeries(
				ch.Key.String(), ch.Spend.Start(), ch.Spend.Values())
			facts[fmt.Sprintf("%s.params.%s", prefix, ch.Key)] = fmt.Sprintf(
				"%g|%g|%g|%d", ch.Params.Decay, ch.Params.Alpha, ch.Params.Gamma, ch.Params.MaxLag)
		}
	}
	return core.ComputeFingerprint(facts)
}
