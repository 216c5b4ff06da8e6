package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/costpool"
	"github.com/matthewbaird/opcost/internal/types"
)

// DefaultTolerance is the maximum deviation between a direct pool's total
// and the sum of its assignments.
var DefaultTolerance = decimal.New(1, -2)

// DirectMap holds operator-assigned amounts: pool ID -> interval key ->
// amount.
type DirectMap map[string]map[string]decimal.Decimal

// Result is one pool's allocation across the scope.
type Result struct {
	PoolID   string                `json:"pool_id"`
	Key      types.DistributionKey `json:"key"`
	Total    decimal.Decimal       `json:"total"`
	Shares   []decimal.Decimal     `json:"shares"`
	Warnings []Warning             `json:"warnings,omitempty"`
}

// Allocated sums the unrounded shares.
func (r Result) Allocated() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range r.Shares {
		sum = sum.Add(s)
	}
	return sum
}

// Unallocated is the part of the total no interval received, which is
// non-zero only when a warning explains why.
func (r Result) Unallocated() decimal.Decimal {
	return r.Total.Sub(r.Allocated())
}

// Allocate splits one pool across scope. direct is only consulted for Direct
// pools. Allocate does not validate; run Validate first.
func Allocate(pool costpool.Pool, scope *Scope, direct map[string]decimal.Decimal) (Result, error) {
	var d Distributor
	if pool.Key == types.KeyDirect {
		d = DirectDistributor{Assigned: direct}
	} else {
		var ok bool
		if d, ok = DistributorFor(pool.Key); !ok {
			return Result{}, fmt.Errorf("allocation: pool %s: unknown distribution key %q", pool.ID, pool.Key)
		}
	}
	shares, warnings := d.Distribute(pool.ID, pool.Total, scope)
	return Result{
		PoolID:   pool.ID,
		Key:      pool.Key,
		Total:    pool.Total,
		Shares:   shares,
		Warnings: warnings,
	}, nil
}

// Validate runs the pre-allocation checks over all pools and returns every
// blocking problem found.
func Validate(pools []costpool.Pool, scope *Scope, direct DirectMap, tolerance decimal.Decimal) []error {
	var problems []error
	missingReported := make(map[string]bool)
	for _, p := range pools {
		switch p.Key {
		case types.KeyAreaWeighted:
			for _, id := range scope.UnitOrder {
				u, _ := scope.Unit(id)
				if !u.HasArea() && !missingReported[id] {
					missingReported[id] = true
					problems = append(problems, &MissingAreaError{UnitID: id, PoolID: p.ID})
				}
			}
		case types.KeyDirect:
			problems = append(problems, validateDirect(p, scope, direct[p.ID], tolerance)...)
		}
		if p.Key != types.KeyDirect && len(direct[p.ID]) > 0 {
			problems = append(problems, &StrayDirectAllocationError{PoolID: p.ID})
		}
	}
	return problems
}

func validateDirect(p costpool.Pool, scope *Scope, assigned map[string]decimal.Decimal, tolerance decimal.Decimal) []error {
	var problems []error
	sum := decimal.Zero
	for _, iv := range scope.Intervals {
		if v, ok := assigned[iv.Key]; ok {
			sum = sum.Add(v)
		}
	}
	// Sorted so repeated runs report problems in the same order.
	for _, key := range sortedKeys(assigned) {
		if _, ok := scope.IntervalIndex(key); !ok {
			problems = append(problems, &UnknownIntervalError{PoolID: p.ID, IntervalKey: key})
		}
	}
	diff := sum.Sub(p.Total)
	if diff.Abs().GreaterThan(tolerance) {
		problems = append(problems, &DirectAllocationMismatchError{
			PoolID:     p.ID,
			Total:      p.Total,
			Assigned:   sum,
			Difference: diff,
		})
	}
	return problems
}
