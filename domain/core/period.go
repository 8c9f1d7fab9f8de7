package core

import (
	"fmt"
	"time"
)

// Month is the modeling period: a calendar month, normalized to the first
// day of the month in UTC. The raw data carries months as YYYYMM strings.
type Month time.Time

const monthLayout = "200601"

// MonthOf truncates a time to its month.
func MonthOf(t time.Time) Month {
	return Month(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
}

// NewMonth builds a Month from a year and month number.
func NewMonth(year int, month time.Month) Month {
	return Month(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// ParseMonth parses a YYYYMM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: expected YYYYMM", s)
	}
	return MonthOf(t), nil
}

// Time returns the underlying time.Time (first of the month, UTC).
func (m Month) Time() time.Time {
	return time.Time(m)
}

// Add returns the month n months after m (n may be negative).
func (m Month) Add(n int) Month {
	return MonthOf(m.Time().AddDate(0, n, 0))
}

// Next returns the following month.
func (m Month) Next() Month {
	return m.Add(1)
}

// Sub returns the number of months from other to m.
func (m Month) Sub(other Month) int {
	a := m.Time()
	b := other.Time()
	return (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
}

// Before returns true if m is before other.
func (m Month) Before(other Month) bool {
	return m.Time().Before(other.Time())
}

// Equal returns true if both months are the same period.
func (m Month) Equal(other Month) bool {
	return m.Time().Equal(other.Time())
}

// IsZero checks if the month is unset.
func (m Month) IsZero() bool {
	return m.Time().IsZero()
}

// String returns the YYYYMM form.
func (m Month) String() string {
	return m.Time().Format(monthLayout)
}

// MarshalJSON encodes the month as a YYYYMM string.
func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// UnmarshalJSON decodes a YYYYMM string.
func (m *Month) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid month JSON %s", s)
	}
	parsed, err := ParseMonth(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// MarshalJSON for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

// UnmarshalJSON for Timestamp
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}
