// Package allocation splits cost pools across occupancy intervals using one
// of four distribution keys. Shares are computed in fixed-point decimal and
// stay unrounded; rounding to cents happens once, when a statement is
// presented (see RoundLargestRemainder).
package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/types"
)

// SharePrecision is the number of decimal places carried by intermediate
// shares.
const SharePrecision int32 = 16

// Scope is the set of intervals a statement allocates across: every interval
// of every selected unit over the statement period.
type Scope struct {
	Period    types.Period
	Intervals []occupancy.Interval
	UnitOrder []string
	units     map[string]types.Unit
	index     map[string]int
}

// NewScope builds a Scope. units are the selected units in statement order;
// intervals must be the resolver's output for exactly those units.
func NewScope(period types.Period, units []types.Unit, intervals []occupancy.Interval) *Scope {
	s := &Scope{
		Period:    period,
		Intervals: intervals,
		UnitOrder: make([]string, 0, len(units)),
		units:     make(map[string]types.Unit, len(units)),
		index:     make(map[string]int, len(intervals)),
	}
	for _, u := range units {
		s.UnitOrder = append(s.UnitOrder, u.ID)
		s.units[u.ID] = u
	}
	for i, iv := range intervals {
		s.index[iv.Key] = i
	}
	return s
}

// Unit returns a selected unit by ID.
func (s *Scope) Unit(id string) (types.Unit, bool) {
	u, ok := s.units[id]
	return u, ok
}

// IntervalIndex returns the position of the interval with the given key.
func (s *Scope) IntervalIndex(key string) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

// DayFactor is days(interval) / T, in (0, 1].
func (s *Scope) DayFactor(iv occupancy.Interval) decimal.Decimal {
	return decimal.NewFromInt(int64(iv.Days())).
		DivRound(decimal.NewFromInt(int64(s.Period.Days())), SharePrecision)
}

// TotalArea sums the area of all selected units that carry one.
func (s *Scope) TotalArea() decimal.Decimal {
	sum := decimal.Zero
	for _, id := range s.UnitOrder {
		if u := s.units[id]; u.HasArea() {
			sum = sum.Add(*u.Area)
		}
	}
	return sum
}
