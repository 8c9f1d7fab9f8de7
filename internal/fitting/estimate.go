package fitting

import (
	"math"
	"math/rand/v2"

	"gomix/domain/core"
	"gomix/domain/model"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// estimate is the common output of both estimation strategies.
type estimate struct {
	beta       []float64
	stderr     []float64
	lower      []float64
	upper      []float64
	sigma2     float64
	iterations int
	converged  bool
}

// estimator is the strategy behind the Fit contract: point-estimate
// ridge or conjugate Bayesian. Both produce the same estimate shape.
type estimator interface {
	estimate(d *design, cfg model.FitConfig) (estimate, error)
}

func estimatorFor(strategy model.Strategy) estimator {
	if strategy == model.StrategyBayes {
		return bayesEstimator{}
	}
	return ridgeEstimator{}
}

// residualVariance computes RSS / (n - p), falling back to RSS / n for
// saturated fits.
func residualVariance(d *design, beta []float64) float64 {
	fitted := d.predict(beta)
	var rss float64
	for t, y := range d.y {
		r := y - fitted[t]
		rss += r * r
	}
	dof := d.rows() - d.columns()
	if dof <= 0 {
		dof = d.rows()
	}
	return rss / float64(dof)
}

// ridgeEstimator solves the (possibly penalized) normal equations in
// closed form. Lambda of 0 is ordinary least squares.
type ridgeEstimator struct{}

func (ridgeEstimator) estimate(d *design, cfg model.FitConfig) (estimate, error) {
	a, b := d.normalEquations(cfg.Lambda)
	solved, solveErr := solveNormal(a, b, cfg.Tolerance, cfg.MaxIterations)
	if solveErr != nil && !core.IsNonConvergence(solveErr) {
		return estimate{}, solveErr
	}

	p := d.columns()
	est := estimate{
		beta:       solved.beta,
		stderr:     make([]float64, p),
		lower:      make([]float64, p),
		upper:      make([]float64, p),
		sigma2:     residualVariance(d, solved.beta),
		iterations: solved.iterations,
		converged:  solved.converged,
	}

	// Normal-approximation intervals from the ridge covariance
	// sigma^2 * (X'X + lambda I)^-1. Skipped when the direct
	// factorization was unavailable.
	if solved.chol != nil {
		var inv mat.SymDense
		if err := solved.chol.InverseTo(&inv); err == nil {
			for j := 0; j < p; j++ {
				se := math.Sqrt(est.sigma2 * inv.At(j, j))
				est.stderr[j] = se
				est.lower[j] = est.beta[j] - 1.96*se
				est.upper[j] = est.beta[j] + 1.96*se
			}
		}
	}
	return est, solveErr
}

// bayesEstimator is the conjugate Bayesian path: a zero-mean normal
// prior with precision lambda on every non-intercept weight. The
// posterior mean coincides with the ridge solution; uncertainty comes
// from seeded posterior draws, so the same seed reproduces the same
// FittedModel exactly.
type bayesEstimator struct{}

func (bayesEstimator) estimate(d *design, cfg model.FitConfig) (estimate, error) {
	a, b := d.normalEquations(cfg.Lambda)
	solved, solveErr := solveNormal(a, b, cfg.Tolerance, cfg.MaxIterations)
	if solveErr != nil && !core.IsNonConvergence(solveErr) {
		return estimate{}, solveErr
	}

	p := d.columns()
	est := estimate{
		beta:       solved.beta,
		stderr:     make([]float64, p),
		lower:      make([]float64, p),
		upper:      make([]float64, p),
		sigma2:     residualVariance(d, solved.beta),
		iterations: solved.iterations,
		converged:  solved.converged,
	}
	if solved.chol == nil {
		return est, solveErr
	}

	// Draw beta ~ N(mean, sigma^2 A^-1) by solving L' w = z for
	// standard normal z, where A = L L'.
	var lower mat.TriDense
	solved.chol.LTo(&lower)
	src := rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	sigma := math.Sqrt(est.sigma2)

	draws := make([][]float64, p)
	for j := range draws {
		draws[j] = make([]float64, cfg.PosteriorDraws)
	}
	z := mat.NewVecDense(p, nil)
	var w mat.VecDense
	for s := 0; s < cfg.PosteriorDraws; s++ {
		for j := 0; j < p; j++ {
			z.SetVec(j, normal.Rand())
		}
		if err := w.SolveVec(lower.T(), z); err != nil {
			continue
		}
		for j := 0; j < p; j++ {
			draws[j][s] = solved.beta[j] + sigma*w.AtVec(j)
		}
	}

	for j := 0; j < p; j++ {
		sd, err := stats.StandardDeviation(draws[j])
		if err != nil {
			continue
		}
		lo, _ := stats.Percentile(draws[j], 2.5)
		hi, _ := stats.Percentile(draws[j], 97.5)
		est.stderr[j] = sd
		est.lower[j] = lo
		est.upper[j] = hi
	}
	return est, solveErr
}
