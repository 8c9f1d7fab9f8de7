// Package transform holds the numeric kernels of the MMM pipeline:
// adstock carryover, Hill saturation, and the seasonal/trend basis.
// Every function validates its parameter domain before touching data
// and returns new series; inputs are never mutated.
package transform

import (
	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/series"
)

// Adstock converts raw per-period spend into effective exposure with a
// truncated geometric carryover kernel:
//
//	exposure[t] = sum_{k=0..maxLag} decay^k * spend[t-k]
//
// Periods before the series start contribute zero. This is a documented
// boundary policy: the series is taken to begin at its first observed
// period, missing history is not an error. The transform is a bounded
// convolution, linear in the input, and stable for decay close to 1.
func Adstock(s series.TimeSeries, decay float64, maxLag int) (series.TimeSeries, error) {
	if decay < 0 || decay >= 1 {
		return series.TimeSeries{}, core.NewInvalidParameter("decay", decay, "[0, 1)")
	}
	if maxLag < 0 {
		return series.TimeSeries{}, core.NewInvalidParameter("max_lag", float64(maxLag), ">= 0")
	}

	n := s.Len()
	if maxLag > n-1 {
		maxLag = n - 1
	}

	// Precompute decay powers once; the kernel is time-invariant.
	kernel := make([]float64, maxLag+1)
	kernel[0] = 1
	for k := 1; k <= maxLag; k++ {
		kernel[k] = kernel[k-1] * decay
	}

	out := make([]float64, n)
	for t := 0; t < n; t++ {
		var acc float64
		for k := 0; k <= maxLag && k <= t; k++ {
			acc += kernel[k] * s.At(t-k)
		}
		out[t] = acc
	}
	return series.New(s.Start(), out)
}

// AdstockChannel applies a channel's configured carryover to its spend.
func AdstockChannel(ch channel.Channel) (series.TimeSeries, error) {
	return Adstock(ch.Spend, ch.Params.Decay, ch.Params.KernelLength(ch.Spend.Len()))
}
