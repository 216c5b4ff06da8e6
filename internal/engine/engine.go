// Package engine runs one operating-cost computation: it resolves occupancy,
// builds the selected cost pools, validates them as a whole and allocates
// and settles the result. It performs no I/O; the same snapshot and request
// always produce the same result.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/allocation"
	"github.com/matthewbaird/opcost/internal/costpool"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/types"
)

// ErrPartition is returned when resolved occupancy intervals do not tile the
// period. It indicates a defect in the resolver, not bad input.
var ErrPartition = errors.New("engine: occupancy intervals do not partition the period")

// Snapshot is the source data of one building read at the start of a
// computation. Units must list every unit of the building.
type Snapshot struct {
	Building        types.Building         `json:"building"`
	Units           []types.Unit           `json:"units"`
	Contracts       []types.LeaseContract  `json:"contracts"`
	Categories      []types.CostCategory   `json:"categories"`
	CostEntries     []types.CostEntry      `json:"cost_entries"`
	AdvancePayments []types.AdvancePayment `json:"advance_payments"`
}

// Request is the operator's input for a statement. An empty UnitIDs selects
// every unit of the building in snapshot order.
type Request struct {
	Period            types.Period         `json:"period"`
	UnitIDs           []string             `json:"unit_ids,omitempty"`
	Pools             []costpool.Selection `json:"pools"`
	ManualEntries     []types.CostEntry    `json:"manual_entries,omitempty"`
	DirectAllocations allocation.DirectMap `json:"direct_allocations,omitempty"`
}

// Options tune a computation.
type Options struct {
	// Tolerance bounds the deviation of direct assignments from their pool
	// total. Zero means allocation.DefaultTolerance.
	Tolerance decimal.Decimal
	Currency  string
}

// Result is a computed statement together with its intermediates.
type Result struct {
	Statement   *settlement.Statement `json:"statement"`
	Intervals   []occupancy.Interval  `json:"intervals"`
	Pools       []costpool.Pool       `json:"pools"`
	Allocations []allocation.Result   `json:"allocations"`
}

// Compute runs the full pipeline. Every blocking problem is reported
// together in a *ValidationError; in that case no result is returned.
// The statement is returned in Draft status.
func Compute(snap Snapshot, req Request, opts Options) (*Result, error) {
	tolerance := opts.Tolerance
	if tolerance.IsZero() {
		tolerance = allocation.DefaultTolerance
	}

	var problems []error
	period, err := types.NewPeriod(req.Period.Start, req.Period.End)
	if err != nil {
		return nil, &ValidationError{Problems: []error{err}}
	}
	if len(req.Pools) == 0 {
		problems = append(problems, &NoSelectionError{})
	}

	units, unitProblems := selectUnits(snap, req.UnitIDs)
	problems = append(problems, unitProblems...)

	unitIDs := make([]string, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID
	}
	intervals, err := resolve(unitIDs, period, snap.Contracts)
	if err != nil && !isBlocking(err) {
		return nil, err
	}
	problems = append(problems, flatten(err)...)

	builder := costpool.NewBuilder(snap.Building.ID, period, snap.Units)
	pools, poolProblems := builder.Build(req.Pools, snap.Categories, snap.CostEntries, req.ManualEntries)
	problems = append(problems, poolProblems...)

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	scope := allocation.NewScope(period, units, intervals)
	problems = append(problems, allocation.Validate(pools, scope, req.DirectAllocations, tolerance)...)
	problems = append(problems, unselectedDirectPools(pools, req.DirectAllocations)...)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	var (
		results  []allocation.Result
		allotted []costpool.Pool
		warnings []allocation.Warning
	)
	for _, p := range pools {
		if p.Empty() {
			warnings = append(warnings, allocation.EmptyPoolWarning(p.ID))
			continue
		}
		r, err := allocation.Allocate(p, scope, req.DirectAllocations[p.ID])
		if err != nil {
			return nil, fmt.Errorf("allocating pool %s: %w", p.ID, err)
		}
		results = append(results, r)
		allotted = append(allotted, p)
		warnings = append(warnings, r.Warnings...)
	}
	if err := settlement.CrossCheck(results, tolerance); err != nil {
		return nil, err
	}

	stmt := &settlement.Statement{
		BuildingID: snap.Building.ID,
		Period:     period,
		UnitIDs:    unitIDs,
		Status:     settlement.StatusDraft,
		Currency:   opts.Currency,
		Items:      settlement.Calculate(scope, allotted, results, snap.AdvancePayments),
		Warnings:   warnings,
	}
	settlement.Summarize(stmt, pools, results)

	return &Result{
		Statement:   stmt,
		Intervals:   intervals,
		Pools:       pools,
		Allocations: results,
	}, nil
}

// Occupancy resolves the intervals of the given units without building a
// statement. An empty unitIDs resolves every unit.
func Occupancy(snap Snapshot, period types.Period, unitIDs []string) ([]occupancy.Interval, error) {
	units, problems := selectUnits(snap, unitIDs)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	intervals, err := resolve(ids, period, snap.Contracts)
	if err != nil {
		if !isBlocking(err) {
			return nil, err
		}
		return nil, &ValidationError{Problems: flatten(err)}
	}
	return intervals, nil
}

// resolve runs the occupancy resolver and asserts that its output tiles the
// period for every unit. A broken partition is returned wrapped in
// ErrPartition.
func resolve(unitIDs []string, period types.Period, contracts []types.LeaseContract) ([]occupancy.Interval, error) {
	intervals, err := occupancy.ResolveAll(unitIDs, period, contracts)
	if err != nil {
		return nil, err
	}
	if err := occupancy.VerifyPartition(period, intervals); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPartition, err)
	}
	return intervals, nil
}

func isBlocking(err error) bool {
	return !errors.Is(err, ErrPartition)
}

func selectUnits(snap Snapshot, ids []string) ([]types.Unit, []error) {
	own := make([]types.Unit, 0, len(snap.Units))
	byID := make(map[string]types.Unit, len(snap.Units))
	for _, u := range snap.Units {
		if u.BuildingID != "" && u.BuildingID != snap.Building.ID {
			continue
		}
		own = append(own, u)
		byID[u.ID] = u
	}
	if len(own) == 0 {
		return nil, []error{&NoUnitsError{BuildingID: snap.Building.ID}}
	}
	if len(ids) == 0 {
		return own, nil
	}

	var problems []error
	seen := make(map[string]bool, len(ids))
	out := make([]types.Unit, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		switch {
		case !ok:
			problems = append(problems, &UnknownUnitError{UnitID: id, BuildingID: snap.Building.ID})
		case seen[id]:
			problems = append(problems, &DuplicateUnitError{UnitID: id})
		default:
			seen[id] = true
			out = append(out, u)
		}
	}
	return out, problems
}

func unselectedDirectPools(pools []costpool.Pool, direct allocation.DirectMap) []error {
	selected := make(map[string]bool, len(pools))
	for _, p := range pools {
		selected[p.ID] = true
	}
	var ids []string
	for id := range direct {
		if !selected[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	problems := make([]error, 0, len(ids))
	for _, id := range ids {
		problems = append(problems, &UnknownPoolError{PoolID: id})
	}
	return problems
}
