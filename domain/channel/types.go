package channel

import (
	"gomix/domain/core"
	"gomix/domain/series"
)

// TransformParams holds the per-channel carryover and diminishing-returns
// parameters. Parameters are validated against their mathematical domain
// before any transform executes; an out-of-domain value is a fatal
// configuration error, never a silent clamp.
type TransformParams struct {
	// Decay is the geometric carryover rate, 0 <= Decay < 1.
	// Decay of 0 means spend has no lingering effect.
	Decay float64 `json:"decay"`
	// Alpha is the Hill saturation slope, > 0.
	Alpha float64 `json:"alpha"`
	// Gamma is the Hill saturation midpoint, > 0, in spend-exposure units.
	Gamma float64 `json:"gamma"`
	// MaxLag truncates the carryover kernel. 0 means the kernel spans
	// the whole series; callers wanting literally no carryover set
	// Decay to 0.
	MaxLag int `json:"max_lag,omitempty"`
}

// Validate checks every parameter against its domain.
func (p TransformParams) Validate() error {
	if p.Decay < 0 || p.Decay >= 1 {
		return core.NewInvalidParameter("decay", p.Decay, "[0, 1)")
	}
	if p.Alpha <= 0 {
		return core.NewInvalidParameter("alpha", p.Alpha, "> 0")
	}
	if p.Gamma <= 0 {
		return core.NewInvalidParameter("gamma", p.Gamma, "> 0")
	}
	if p.MaxLag < 0 {
		return core.NewInvalidParameter("max_lag", float64(p.MaxLag), ">= 0")
	}
	return nil
}

// KernelLength resolves the carryover window for a series of n periods.
func (p TransformParams) KernelLength(n int) int {
	if p.MaxLag == 0 || p.MaxLag > n-1 {
		return n - 1
	}
	return p.MaxLag
}

// CarryoverGain is the steady-state multiplier a constant spend level
// picks up from the truncated carryover kernel: sum of decay^k over the
// kernel window.
func (p TransformParams) CarryoverGain(n int) float64 {
	gain := 1.0
	pow := 1.0
	for k := 1; k <= p.KernelLength(n); k++ {
		pow *= p.Decay
		gain += pow
	}
	return gain
}

// Channel is an immutable marketing lever: a key, its raw monthly spend,
// and its transform parameters. A new model run creates new Channel
// values rather than mutating existing ones.
type Channel struct {
	Key    core.ChannelKey   `json:"key"`
	Spend  series.TimeSeries `json:"spend"`
	Params TransformParams   `json:"params"`
}

// New validates params and spend and builds a Channel.
func New(key core.ChannelKey, spend series.TimeSeries, params TransformParams) (Channel, error) {
	if key == "" {
		return Channel{}, core.NewInvalidInput("channel key is empty")
	}
	if err := params.Validate(); err != nil {
		return Channel{}, err
	}
	if err := spend.NonNegative("spend for channel " + key.String()); err != nil {
		return Channel{}, err
	}
	return Channel{Key: key, Spend: spend, Params: params}, nil
}
