package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format of civil dates.
const DateLayout = "2006-01-02"

// ErrInvalidPeriod is returned when a period ends before it starts.
var ErrInvalidPeriod = errors.New("types: period end before start")

// Day truncates t to midnight UTC of its calendar day. All engine date
// arithmetic runs on values normalized this way.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// DaysInclusive counts the days in [a, b]. It returns 0 when b is before a.
func DaysInclusive(a, b time.Time) int {
	a, b = Day(a), Day(b)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

// Period is an inclusive range of civil days.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod normalizes both bounds and rejects inverted ranges.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: Day(start), End: Day(end)}
	if p.End.Before(p.Start) {
		return Period{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod,
			p.Start.Format(DateLayout), p.End.Format(DateLayout))
	}
	return p, nil
}

// ParsePeriod builds a Period from two YYYY-MM-DD strings.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return NewPeriod(s, e)
}

// Days is the period length T.
func (p Period) Days() int {
	return DaysInclusive(p.Start, p.End)
}

// Contains reports whether the day of t lies in the period.
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// String renders the period as "start..end".
func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

type periodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON encodes both bounds as YYYY-MM-DD.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{Start: p.Start.Format(DateLayout), End: p.End.Format(DateLayout)})
}

// UnmarshalJSON decodes YYYY-MM-DD bounds and rejects inverted ranges.
func (p *Period) UnmarshalJSON(b []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParsePeriod(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
