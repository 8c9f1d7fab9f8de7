package channel

import (
	"math"
	"testing"
	"time"

	"gomix/domain/core"
	"gomix/domain/series"
)

func validParams() TransformParams {
	return TransformParams{Decay: 0.5, Alpha: 1.2, Gamma: 1000}
}

func TestTransformParamsValidate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("Expected valid params, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TransformParams)
	}{
		{"negative decay", func(p *TransformParams) { p.Decay = -0.1 }},
		{"decay at one", func(p *TransformParams) { p.Decay = 1.0 }},
		{"zero alpha", func(p *TransformParams) { p.Alpha = 0 }},
		{"negative alpha", func(p *TransformParams) { p.Alpha = -1 }},
		{"zero gamma", func(p *TransformParams) { p.Gamma = 0 }},
		{"negative max lag", func(p *TransformParams) { p.MaxLag = -1 }},
	}
	for _, tc := range cases {
		p := validParams()
		tc.mutate(&p)
		if err := p.Validate(); !core.IsInvalidParameter(err) {
			t.Errorf("%s: expected invalid parameter, got %v", tc.name, err)
		}
	}
}

func TestKernelLength(t *testing.T) {
	p := validParams()

	// Zero MaxLag means the kernel spans the whole series.
	if got := p.KernelLength(36); got != 35 {
		t.Errorf("Expected full window 35, got %d", got)
	}

	p.MaxLag = 6
	if got := p.KernelLength(36); got != 6 {
		t.Errorf("Expected configured lag 6, got %d", got)
	}

	// A lag longer than the series is clipped.
	p.MaxLag = 100
	if got := p.KernelLength(36); got != 35 {
		t.Errorf("Expected clipped lag 35, got %d", got)
	}
}

func TestCarryoverGain(t *testing.T) {
	p := TransformParams{Decay: 0.5, Alpha: 1, Gamma: 1, MaxLag: 2}

	// 1 + 0.5 + 0.25
	if got := p.CarryoverGain(12); math.Abs(got-1.75) > 1e-12 {
		t.Errorf("Expected gain 1.75, got %g", got)
	}

	// Decay 0 collapses to no carryover.
	p.Decay = 0
	if got := p.CarryoverGain(12); got != 1 {
		t.Errorf("Expected gain 1 at decay 0, got %g", got)
	}
}

func TestNewChannelValidates(t *testing.T) {
	start := core.NewMonth(2021, time.January)
	spend := series.MustNew(start, []float64{100, 200, 300})

	ch, err := New("paid_search", spend, validParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if ch.Key != "paid_search" {
		t.Errorf("Expected key paid_search, got %s", ch.Key)
	}

	if _, err := New("", spend, validParams()); !core.IsInvalidInput(err) {
		t.Errorf("Expected invalid input for empty key, got %v", err)
	}

	bad := validParams()
	bad.Alpha = 0
	if _, err := New("paid_search", spend, bad); !core.IsInvalidParameter(err) {
		t.Errorf("Expected invalid parameter, got %v", err)
	}

	negative := series.MustNew(start, []float64{100, -5, 300})
	if _, err := New("paid_search", negative, validParams()); !core.IsInvalidInput(err) {
		t.Errorf("Expected invalid input for negative spend, got %v", err)
	}
}
