package transform

import (
	"fmt"
	"math"

	"gomix/domain/basis"
	"gomix/domain/core"
	"gomix/domain/series"
)

// MonthlyCycle is the default seasonal cycle length for monthly data.
const MonthlyCycle = 12

// BasisSpec configures the deterministic seasonal/trend regressors.
type BasisSpec struct {
	// Harmonics is the number of Fourier harmonics; <= 0 yields no
	// seasonal terms (not an error).
	Harmonics int `json:"harmonics"`
	// IncludeTrend adds a linear trend regressor normalized to [0, 1].
	IncludeTrend bool `json:"include_trend"`
	// CycleLength is the seasonal period in months; 0 means MonthlyCycle.
	CycleLength int `json:"cycle_length,omitempty"`
}

// BuildBasis produces sine/cosine regressors for each harmonic h at
// frequency h/cycle, plus the optional trend. The result is fully
// determined by the period index: no randomness, no process state.
// With Harmonics <= 0 and IncludeTrend false the basis is empty, which
// the fitting engine accepts as "no seasonal/trend regressors".
func BuildBasis(start core.Month, periods int, spec BasisSpec) (basis.Basis, error) {
	if periods < 1 {
		return basis.Basis{}, core.NewInvalidParameter("periods", float64(periods), ">= 1")
	}
	cycle := spec.CycleLength
	if cycle == 0 {
		cycle = MonthlyCycle
	}
	if cycle < 2 {
		return basis.Basis{}, core.NewInvalidParameter("cycle_length", float64(cycle), ">= 2")
	}

	var names []string
	var columns []series.TimeSeries

	for h := 1; h <= spec.Harmonics; h++ {
		sin := make([]float64, periods)
		cos := make([]float64, periods)
		// Phase is anchored to the calendar month, not the series
		// offset, so two runs over different windows share seasonality.
		phase0 := int(start.Time().Month()) - 1
		for t := 0; t < periods; t++ {
			angle := 2 * math.Pi * float64(h) * float64(phase0+t) / float64(cycle)
			sin[t] = math.Sin(angle)
			cos[t] = math.Cos(angle)
		}
		sinSeries, err := series.New(start, sin)
		if err != nil {
			return basis.Basis{}, err
		}
		cosSeries, err := series.New(start, cos)
		if err != nil {
			return basis.Basis{}, err
		}
		names = append(names, fmt.Sprintf("seasonal_sin_%d", h), fmt.Sprintf("seasonal_cos_%d", h))
		columns = append(columns, sinSeries, cosSeries)
	}

	if spec.IncludeTrend {
		trend := make([]float64, periods)
		if periods > 1 {
			for t := 0; t < periods; t++ {
				trend[t] = float64(t) / float64(periods-1)
			}
		}
		trendSeries, err := series.New(start, trend)
		if err != nil {
			return basis.Basis{}, err
		}
		names = append(names, "trend")
		columns = append(columns, trendSeries)
	}

	if len(names) == 0 {
		return basis.Empty(), nil
	}
	return basis.New(names, columns)
}
