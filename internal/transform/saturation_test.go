package transform

import (
	"math"
	"testing"

	"gomix/domain/channel"
	"gomix/domain/core"
	"gomix/domain/series"
)

func TestSaturateHalfSaturationPoint(t *testing.T) {
	// At input equal to gamma the curve passes through exactly 0.5,
	// regardless of alpha.
	for _, alpha := range []float64{0.5, 1, 1.7, 3} {
		s := series.MustNew(testStart(), []float64{2000})
		out, err := Saturate(s, alpha, 2000)
		if err != nil {
			t.Fatalf("Saturate failed: %v", err)
		}
		if math.Abs(out.At(0)-0.5) > 1e-12 {
			t.Errorf("alpha %g: expected 0.5 at gamma, got %g", alpha, out.At(0))
		}
	}
}

func TestSaturateRange(t *testing.T) {
	vals := []float64{0, 1, 100, 1e4, 1e8, 1e300}
	s := series.MustNew(testStart(), vals)

	out, err := Saturate(s, 1.5, 500)
	if err != nil {
		t.Fatalf("Saturate failed: %v", err)
	}
	for i := 0; i < out.Len(); i++ {
		v := out.At(i)
		if v < 0 || v >= 1 {
			t.Errorf("Value %d: expected output in [0, 1), got %g", i, v)
		}
	}
	if out.At(0) != 0 {
		t.Errorf("Expected zero input to map to zero, got %g", out.At(0))
	}
}

func TestSaturateMonotone(t *testing.T) {
	vals := []float64{0, 10, 50, 200, 1000, 5000, 20000}
	s := series.MustNew(testStart(), vals)

	out, err := Saturate(s, 0.8, 300)
	if err != nil {
		t.Fatalf("Saturate failed: %v", err)
	}
	for i := 1; i < out.Len(); i++ {
		if out.At(i) < out.At(i-1) {
			t.Errorf("Expected monotone output, got %g < %g at %d", out.At(i), out.At(i-1), i)
		}
	}
}

func TestSaturateRejectsNegativeInput(t *testing.T) {
	s := series.MustNew(testStart(), []float64{10, -1, 20})
	if _, err := Saturate(s, 1, 100); !core.IsInvalidInput(err) {
		t.Errorf("Expected invalid input for negative value, got %v", err)
	}
}

func TestSaturateRejectsBadParams(t *testing.T) {
	s := series.MustNew(testStart(), []float64{10})

	if _, err := Saturate(s, 0, 100); !core.IsInvalidParameter(err) {
		t.Errorf("Expected invalid parameter for alpha 0, got %v", err)
	}
	if _, err := Saturate(s, 1, 0); !core.IsInvalidParameter(err) {
		t.Errorf("Expected invalid parameter for gamma 0, got %v", err)
	}
	if _, err := Saturate(s, -2, 100); !core.IsInvalidParameter(err) {
		t.Errorf("Expected invalid parameter for negative alpha, got %v", err)
	}
}

func TestChannelContributionComposesTransforms(t *testing.T) {
	spend := series.MustNew(testStart(), []float64{1000, 0, 0})
	params := channel.TransformParams{Decay: 0.5, Alpha: 1, Gamma: 500}
	ch, err := channel.New("paid_search", spend, params)
	if err != nil {
		t.Fatalf("channel.New failed: %v", err)
	}

	out, err := ChannelContribution(ch)
	if err != nil {
		t.Fatalf("ChannelContribution failed: %v", err)
	}

	// Adstock of the pulse is [1000, 500, 250]; Hill with alpha 1,
	// gamma 500 maps those to x/(500+x).
	expected := []float64{1000.0 / 1500, 500.0 / 1000, 250.0 / 750}
	for i, want := range expected {
		if math.Abs(out.At(i)-want) > 1e-12 {
			t.Errorf("Period %d: expected %g, got %g", i, want, out.At(i))
		}
	}
}
