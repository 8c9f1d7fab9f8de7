package transform

import (
	"math"

	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/series"
)

// Saturate maps exposure through a Hill-type diminishing-returns curve:
//
//	out[t] = s[t]^alpha / (gamma^alpha + s[t]^alpha)
//
// Output is in [0, 1) for all non-negative inputs and monotonically
// non-decreasing in the input. Negative inputs are rejected with
// InvalidInput since the power function is unstable for negative bases
// with non-integer exponents.
func Saturate(s series.TimeSeries, alpha, gamma float64) (series.TimeSeries, error) {
	if alpha <= 0 {
		return series.TimeSeries{}, core.NewInvalidParameter("alpha", alpha, "> 0")
	}
	if gamma <= 0 {
		return series.TimeSeries{}, core.NewInvalidParameter("gamma", gamma, "> 0")
	}
	if err := s.NonNegative("saturation input"); err != nil {
		return series.TimeSeries{}, err
	}

	out := make([]float64, s.Len())
	for t := 0; t < s.Len(); t++ {
		out[t] = hill(s.At(t), alpha, gamma)
	}
	return series.New(s.Start(), out)
}

// hill computes x^a / (g^a + x^a) through the ratio form r/(1+r) with
// r = (x/g)^a, which stays finite for large x and keeps the output
// strictly below 1.
func hill(x, alpha, gamma float64) float64 {
	if x == 0 {
		return 0
	}
	r := math.Pow(x/gamma, alpha)
	if math.IsInf(r, 1) {
		return math.Nextafter(1, 0)
	}
	return r / (1 + r)
}

// ChannelContribution runs the full per-channel transform chain,
// adstock then saturation, producing the series the fitting engine
// regresses the target on.
func ChannelContribution(ch channel.Channel) (series.TimeSeries, error) {
	exposure, err := AdstockChannel(ch)
	if err != nil {
		return series.TimeSeries{}, err
	}
	return Saturate(exposure, ch.Params.Alpha, ch.Params.Gamma)
}
