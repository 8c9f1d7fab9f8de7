package basis

import (
	"fmt"

	"gomix/domain/core"
	"gomix/domain/series"
)

// Basis is a named set of deterministic regressors (seasonal harmonics,
// trend) sharing one period index. An empty basis is valid and means
// "no seasonal/trend regressors".
type Basis struct {
	names   []string
	columns []series.TimeSeries
}

// Empty returns a basis with no regressors.
func Empty() Basis {
	return Basis{}
}

// New builds a basis from parallel name and column slices. All columns
// must be mutually aligned.
func New(names []string, columns []series.TimeSeries) (Basis, error) {
	if len(names) != len(columns) {
		return Basis{}, core.NewInvalidInput(fmt.Sprintf("basis has %d names for %d columns", len(names), len(columns)))
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return Basis{}, core.NewInvalidInput("basis term has empty name")
		}
		if seen[name] {
			return Basis{}, core.NewInvalidInput("duplicate basis term " + name)
		}
		seen[name] = true
		if i > 0 {
			if err := columns[0].AlignedWith(columns[i], "basis term "+name); err != nil {
				return Basis{}, err
			}
		}
	}
	b := Basis{
		names:   make([]string, len(names)),
		columns: make([]series.TimeSeries, len(columns)),
	}
	copy(b.names, names)
	copy(b.columns, columns)
	return b, nil
}

// Len returns the number of regressors.
func (b Basis) Len() int {
	return len(b.names)
}

// IsEmpty reports whether the basis carries no regressors.
func (b Basis) IsEmpty() bool {
	return len(b.names) == 0
}

// Names returns the regressor names in column order.
func (b Basis) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Column returns the regressor series at index i.
func (b Basis) Column(i int) series.TimeSeries {
	return b.columns[i]
}

// AlignedWith verifies every column covers the same periods as target.
// An empty basis aligns with anything.
func (b Basis) AlignedWith(target series.TimeSeries) error {
	for i, col := range b.columns {
		if err := target.AlignedWith(col, "basis term "+b.names[i]); err != nil {
			return err
		}
	}
	return nil
}
