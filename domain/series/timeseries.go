package series

import (
	"encoding/json"
	"fmt"
	"math"

	"gomix/domain/core"
)

// TimeSeries is an ordered sequence of monthly observations with a
// contiguous period index. Values are copied on construction and on
// read, so a TimeSeries never changes after it is built.
type TimeSeries struct {
	start  core.Month
	values []float64
}

// Point pairs a period with its observed value.
type Point struct {
	Month core.Month `json:"month"`
	Value float64    `json:"value"`
}

// New builds a series from a start month and contiguous values.
func New(start core.Month, values []float64) (TimeSeries, error) {
	if start.IsZero() {
		return TimeSeries{}, core.NewInvalidInput("series start month is unset")
	}
	if len(values) == 0 {
		return TimeSeries{}, core.NewInvalidInput("series has no observations")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return TimeSeries{}, core.NewInvalidInput(fmt.Sprintf("non-finite value at period %s", start.Add(i)))
		}
	}
	vals := make([]float64, len(values))
	copy(vals, values)
	return TimeSeries{start: start, values: vals}, nil
}

// MustNew builds a series and panics on invalid input. Test and
// bootstrap use only.
func MustNew(start core.Month, values []float64) TimeSeries {
	ts, err := New(start, values)
	if err != nil {
		panic(err)
	}
	return ts
}

// FromPoints builds a series from period-ordered points. Duplicate
// periods and gaps inside the range are reported as errors, never
// silently filled.
func FromPoints(points []Point) (TimeSeries, error) {
	if len(points) == 0 {
		return TimeSeries{}, core.NewInvalidInput("series has no observations")
	}
	values := make([]float64, len(points))
	values[0] = points[0].Value
	for i := 1; i < len(points); i++ {
		gap := points[i].Month.Sub(points[i-1].Month)
		switch {
		case gap == 0:
			return TimeSeries{}, fmt.Errorf("%w %s", core.ErrDuplicate, points[i].Month)
		case gap < 0:
			return TimeSeries{}, core.NewInvalidInput(fmt.Sprintf("periods out of order at %s", points[i].Month))
		case gap > 1:
			return TimeSeries{}, fmt.Errorf("%w between %s and %s", core.ErrSeriesGap, points[i-1].Month, points[i].Month)
		}
		values[i] = points[i].Value
	}
	return New(points[0].Month, values)
}

// Len returns the number of periods.
func (s TimeSeries) Len() int {
	return len(s.values)
}

// Start returns the first period.
func (s TimeSeries) Start() core.Month {
	return s.start
}

// End returns the last period.
func (s TimeSeries) End() core.Month {
	return s.start.Add(len(s.values) - 1)
}

// At returns the value at offset i from the start.
func (s TimeSeries) At(i int) float64 {
	return s.values[i]
}

// Period returns the month at offset i from the start.
func (s TimeSeries) Period(i int) core.Month {
	return s.start.Add(i)
}

// Values returns a copy of the observations.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Points returns the (period, value) pairs.
func (s TimeSeries) Points() []Point {
	out := make([]Point, len(s.values))
	for i, v := range s.values {
		out[i] = Point{Month: s.start.Add(i), Value: v}
	}
	return out
}

// AlignedWith verifies that other covers the same periods as s.
func (s TimeSeries) AlignedWith(other TimeSeries, what string) error {
	if other.Len() != s.Len() {
		return core.NewAlignmentError(what, s.Len(), other.Len())
	}
	if !other.start.Equal(s.start) {
		return core.NewPeriodMismatchError(what, s.start.String(), other.start.String())
	}
	return nil
}

// NonNegative reports an error naming the first negative observation.
func (s TimeSeries) NonNegative(what string) error {
	for i, v := range s.values {
		if v < 0 {
			return core.NewInvalidInput(fmt.Sprintf("%s has negative value %g at %s", what, v, s.start.Add(i)))
		}
	}
	return nil
}

// Scale returns s with every value multiplied by a.
func (s TimeSeries) Scale(a float64) TimeSeries {
	vals := make([]float64, len(s.values))
	for i, v := range s.values {
		vals[i] = a * v
	}
	return TimeSeries{start: s.start, values: vals}
}

// Add returns the period-wise sum of two aligned series.
func (s TimeSeries) Add(other TimeSeries) (TimeSeries, error) {
	if err := s.AlignedWith(other, "addend"); err != nil {
		return TimeSeries{}, err
	}
	vals := make([]float64, len(s.values))
	for i, v := range s.values {
		vals[i] = v + other.values[i]
	}
	return TimeSeries{start: s.start, values: vals}, nil
}

// Map returns a new series with f applied to every value.
func (s TimeSeries) Map(f func(float64) float64) TimeSeries {
	vals := make([]float64, len(s.values))
	for i, v := range s.values {
		vals[i] = f(v)
	}
	return TimeSeries{start: s.start, values: vals}
}

// seriesJSON is the wire form of a TimeSeries.
type seriesJSON struct {
	Start  core.Month `json:"start"`
	Values []float64  `json:"values"`
}

// MarshalJSON encodes the series as its start month and values.
func (s TimeSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{Start: s.start, Values: s.values})
}

// UnmarshalJSON decodes and re-validates the series. A zero series
// round-trips to a zero series.
func (s *TimeSeries) UnmarshalJSON(data []byte) error {
	var wire seriesJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Values) == 0 && wire.Start.IsZero() {
		*s = TimeSeries{}
		return nil
	}
	decoded, err := New(wire.Start, wire.Values)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// Sum returns the total of all observations.
func (s TimeSeries) Sum() float64 {
	var total float64
	for _, v := range s.values {
		total += v
	}
	return total
}
