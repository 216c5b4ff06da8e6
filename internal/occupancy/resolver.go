// Package occupancy turns a unit's lease contracts into a gap-free,
// overlap-free sequence of occupancy intervals covering a statement period.
// Uncovered days become synthesized vacancies. Every later proration step
// relies on that partition.
package occupancy

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/matthewbaird/opcost/internal/types"
)

// Kind distinguishes tenancies from synthesized vacancies.
type Kind string

const (
	KindLeased Kind = "leased"
	KindVacant Kind = "vacant"
)

// Interval is a contiguous, inclusive day range of one unit during which
// either a specific contract or vacancy applies.
type Interval struct {
	Key        string    `json:"key"`
	UnitID     string    `json:"unit_id"`
	Kind       Kind      `json:"kind"`
	ContractID string    `json:"contract_id,omitempty"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Occupants  int       `json:"occupants"`
}

// Days is the inclusive length of the interval.
func (iv Interval) Days() int {
	return types.DaysInclusive(iv.Start, iv.End)
}

// Leased reports whether the interval belongs to a contract.
func (iv Interval) Leased() bool { return iv.Kind == KindLeased }

// VacantKey builds the stable key of a vacancy. Leased intervals are keyed
// by their contract ID.
func VacantKey(unitID string, start time.Time) string {
	return "vacant:" + unitID + ":" + start.Format(types.DateLayout)
}

// OverlapError reports two contracts of one unit whose clipped terms share
// at least one day.
type OverlapError struct {
	UnitID    string
	ContractA string
	ContractB string
	From      time.Time
	To        time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("unit %s: contracts %s and %s overlap from %s to %s",
		e.UnitID, e.ContractA, e.ContractB,
		e.From.Format(types.DateLayout), e.To.Format(types.DateLayout))
}

// ContractRangeError reports a contract whose end lies before its start.
type ContractRangeError struct {
	UnitID     string
	ContractID string
}

func (e *ContractRangeError) Error() string {
	return fmt.Sprintf("unit %s: contract %s ends before it starts", e.UnitID, e.ContractID)
}

// Resolve computes the occupancy intervals of one unit over period. contracts
// may contain contracts of other units; they are ignored. On any error no
// intervals are returned.
func Resolve(unitID string, period types.Period, contracts []types.LeaseContract) ([]Interval, error) {
	var clipped []Interval
	var errs []error
	for _, c := range contracts {
		if c.UnitID != unitID {
			continue
		}
		start := types.Day(c.Term.Start)
		if c.Term.End != nil && types.Day(*c.Term.End).Before(start) {
			errs = append(errs, &ContractRangeError{UnitID: unitID, ContractID: c.ID})
			continue
		}
		if start.After(period.End) {
			continue
		}
		end := period.End
		if c.Term.End != nil {
			e := types.Day(*c.Term.End)
			if e.Before(period.Start) {
				continue
			}
			if e.Before(end) {
				end = e
			}
		}
		if start.Before(period.Start) {
			start = period.Start
		}
		clipped = append(clipped, Interval{
			Key:        c.ID,
			UnitID:     unitID,
			Kind:       KindLeased,
			ContractID: c.ID,
			TenantID:   c.TenantID,
			Start:      start,
			End:        end,
			Occupants:  c.Occupants,
		})
	}

	sort.SliceStable(clipped, func(i, j int) bool {
		if clipped[i].Start.Equal(clipped[j].Start) {
			return clipped[i].ContractID < clipped[j].ContractID
		}
		return clipped[i].Start.Before(clipped[j].Start)
	})

	// Sorted by start, an interval overlaps an earlier one iff it starts on
	// or before the furthest end seen so far.
	reach := 0
	for i := 1; i < len(clipped); i++ {
		prev, cur := clipped[reach], clipped[i]
		if !cur.Start.After(prev.End) {
			to := prev.End
			if cur.End.Before(to) {
				to = cur.End
			}
			errs = append(errs, &OverlapError{
				UnitID:    unitID,
				ContractA: prev.ContractID,
				ContractB: cur.ContractID,
				From:      cur.Start,
				To:        to,
			})
		}
		if cur.End.After(prev.End) {
			reach = i
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := make([]Interval, 0, 2*len(clipped)+1)
	cursor := period.Start
	for _, iv := range clipped {
		if iv.Start.After(cursor) {
			out = append(out, vacancy(unitID, cursor, iv.Start.AddDate(0, 0, -1)))
		}
		out = append(out, iv)
		cursor = iv.End.AddDate(0, 0, 1)
	}
	if !cursor.After(period.End) {
		out = append(out, vacancy(unitID, cursor, period.End))
	}
	return out, nil
}

// ResolveAll resolves every unit in unitIDs, in that order. Errors from all
// units are collected so the operator sees every conflict at once.
func ResolveAll(unitIDs []string, period types.Period, contracts []types.LeaseContract) ([]Interval, error) {
	byUnit := make(map[string][]types.LeaseContract)
	for _, c := range contracts {
		byUnit[c.UnitID] = append(byUnit[c.UnitID], c)
	}
	var out []Interval
	var errs []error
	for _, id := range unitIDs {
		ivs, err := Resolve(id, period, byUnit[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ivs...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func vacancy(unitID string, start, end time.Time) Interval {
	return Interval{
		Key:    VacantKey(unitID, start),
		UnitID: unitID,
		Kind:   KindVacant,
		Start:  start,
		End:    end,
	}
}
