package fitting

import (
	"math"

	"gomix/domain/core"

	"gonum.org/v1/gonum/mat"
)

// solveResult carries the solution of the normal equations plus how it
// was obtained.
type solveResult struct {
	beta       []float64
	chol       *mat.Cholesky
	iterations int
	converged  bool
}

// solveNormal solves A*beta = b where A = X'X + lambda*I is symmetric
// positive (semi-)definite. Cholesky is the direct path; when the
// factorization fails on a near-singular system, conjugate gradient
// with the configured tolerance and iteration budget takes over. CG
// exhausting its budget is a NonConvergence outcome carrying the best
// iterate so far.
func solveNormal(a *mat.SymDense, b []float64, tol float64, maxIter int) (solveResult, error) {
	p := len(b)
	bVec := mat.NewVecDense(p, b)

	var chol mat.Cholesky
	if chol.Factorize(a) {
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, bVec); err == nil {
			return solveResult{beta: vecSlice(&x), chol: &chol, converged: true}, nil
		}
	}

	x, iters, lastDelta, ok := conjugateGradient(a, b, tol, maxIter)
	result := solveResult{beta: x, iterations: iters, converged: ok}
	if !ok {
		return result, core.NewNonConvergence("conjugate gradient", iters, lastDelta)
	}
	return result, nil
}

// conjugateGradient iterates x_{k+1} = x_k + alpha*p_k until the
// relative residual drops below tol or the budget runs out.
func conjugateGradient(a *mat.SymDense, b []float64, tol float64, maxIter int) ([]float64, int, float64, bool) {
	p := len(b)
	x := make([]float64, p)
	r := make([]float64, p)
	d := make([]float64, p)
	copy(r, b)
	copy(d, b)

	bNorm := norm2(b)
	if bNorm == 0 {
		return x, 0, 0, true
	}

	rsOld := dot(r, r)
	ad := make([]float64, p)
	var rel float64
	for k := 0; k < maxIter; k++ {
		symMulVec(ad, a, d)
		dAd := dot(d, ad)
		if dAd <= 0 {
			// Direction of non-positive curvature: the system is not PD
			// enough for CG to make progress.
			return x, k, math.Sqrt(rsOld) / bNorm, false
		}
		alpha := rsOld / dAd
		for i := range x {
			x[i] += alpha * d[i]
			r[i] -= alpha * ad[i]
		}
		rsNew := dot(r, r)
		rel = math.Sqrt(rsNew) / bNorm
		if rel < tol {
			return x, k + 1, rel, true
		}
		beta := rsNew / rsOld
		for i := range d {
			d[i] = r[i] + beta*d[i]
		}
		rsOld = rsNew
	}
	return x, maxIter, rel, false
}

func symMulVec(dst []float64, a *mat.SymDense, x []float64) {
	n := len(x)
	for i := 0; i < n; i++ {
		var acc float64
		for j := 0; j < n; j++ {
			acc += a.At(i, j) * x[j]
		}
		dst[i] = acc
	}
}

func dot(a, b []float64) float64 {
	var acc float64
	for i := range a {
		acc += a[i] * b[i]
	}
	return acc
}

func norm2(a []float64) float64 {
	return math.Sqrt(dot(a, a))
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.AtVec(i)
	}
	return out
}
