package fitting

import (
	"sort"

	"gomix/domain/basis"
	"gomix/domain/core"
	"gomix/domain/series"

	"gonum.org/v1/gonum/mat"
)

// design is the assembled regression problem: an n x p matrix with an
// intercept column first, channel contribution columns in sorted key
// order, then basis columns in declaration order.
type design struct {
	x           *mat.Dense
	y           []float64
	channelKeys []core.ChannelKey
	basisNames  []string
}

// columns returns the total parameter count including the intercept.
func (d *design) columns() int {
	return 1 + len(d.channelKeys) + len(d.basisNames)
}

// rows returns the number of observations.
func (d *design) rows() int {
	return len(d.y)
}

// buildDesign validates alignment of every input against the target and
// assembles the design matrix. Misalignment fails before any numeric
// work happens.
func buildDesign(target series.TimeSeries, contributions map[core.ChannelKey]series.TimeSeries, bas basis.Basis) (*design, error) {
	if len(contributions) == 0 {
		return nil, core.NewInvalidInput("fit requires at least one channel contribution")
	}

	keys := make([]core.ChannelKey, 0, len(contributions))
	for key := range contributions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		if err := target.AlignedWith(contributions[key], "contribution for channel "+key.String()); err != nil {
			return nil, err
		}
	}
	if err := bas.AlignedWith(target); err != nil {
		return nil, err
	}

	n := target.Len()
	d := &design{
		y:           target.Values(),
		channelKeys: keys,
		basisNames:  bas.Names(),
	}
	p := d.columns()
	x := mat.NewDense(n, p, nil)

	for t := 0; t < n; t++ {
		x.Set(t, 0, 1)
	}
	for j, key := range keys {
		contrib := contributions[key]
		for t := 0; t < n; t++ {
			x.Set(t, 1+j, contrib.At(t))
		}
	}
	for j := 0; j < bas.Len(); j++ {
		col := bas.Column(j)
		for t := 0; t < n; t++ {
			x.Set(t, 1+len(keys)+j, col.At(t))
		}
	}

	d.x = x
	return d, nil
}

// termName maps a column index to its reporting name.
func (d *design) termName(j int) string {
	switch {
	case j == 0:
		return "intercept"
	case j <= len(d.channelKeys):
		return d.channelKeys[j-1].String()
	default:
		return d.basisNames[j-1-len(d.channelKeys)]
	}
}

// normalEquations forms A = X'X + lambda*I and b = X'y. The intercept
// is never penalized.
func (d *design) normalEquations(lambda float64) (*mat.SymDense, []float64) {
	p := d.columns()
	var xtx mat.Dense
	xtx.Mul(d.x.T(), d.x)

	a := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := xtx.At(i, j)
			if i == j && i > 0 {
				v += lambda
			}
			a.SetSym(i, j, v)
		}
	}

	b := make([]float64, p)
	yVec := mat.NewVecDense(len(d.y), d.y)
	var xty mat.VecDense
	xty.MulVec(d.x.T(), yVec)
	for i := 0; i < p; i++ {
		b[i] = xty.AtVec(i)
	}
	return a, b
}

// predict computes X*beta.
func (d *design) predict(beta []float64) []float64 {
	n := d.rows()
	p := d.columns()
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		var acc float64
		for j := 0; j < p; j++ {
			acc += d.x.At(t, j) * beta[j]
		}
		out[t] = acc
	}
	return out
}
