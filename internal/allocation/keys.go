package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/types"
)

// Distributor computes the unrounded share of every scope interval for one
// pool total. The returned slice is aligned with Scope.Intervals.
type Distributor interface {
	Distribute(poolID string, total decimal.Decimal, scope *Scope) ([]decimal.Decimal, []Warning)
}

// DistributorFor returns the formula-based distributor of key. Direct pools
// have no formula; use DirectDistributor with the operator's map instead.
func DistributorFor(key types.DistributionKey) (Distributor, bool) {
	switch key {
	case types.KeyAreaWeighted:
		return AreaWeighted{}, true
	case types.KeyPersonWeighted:
		return PersonWeighted{}, true
	case types.KeyPerUnitEqual:
		return PerUnitEqual{}, true
	}
	return nil, false
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

// AreaWeighted charges every interval, leased or vacant, its unit's share of
// the selected floor area, prorated by days:
//
//	share = total * area(unit) * days / (Σ area * T)
type AreaWeighted struct{}

func (AreaWeighted) Distribute(_ string, total decimal.Decimal, scope *Scope) ([]decimal.Decimal, []Warning) {
	out := zeros(len(scope.Intervals))
	denom := scope.TotalArea().Mul(decimal.NewFromInt(int64(scope.Period.Days())))
	if denom.IsZero() {
		return out, nil
	}
	for i, iv := range scope.Intervals {
		u, ok := scope.Unit(iv.UnitID)
		if !ok || !u.HasArea() {
			continue
		}
		num := total.Mul(*u.Area).Mul(decimal.NewFromInt(int64(iv.Days())))
		out[i] = num.DivRound(denom, SharePrecision)
	}
	return out, nil
}

// PersonWeighted splits by occupant-days over leased intervals. Vacancies
// have no occupants and always receive zero. With every interval covering
// the full period this is total * occupants / Σ occupants.
type PersonWeighted struct{}

func (PersonWeighted) Distribute(poolID string, total decimal.Decimal, scope *Scope) ([]decimal.Decimal, []Warning) {
	out := zeros(len(scope.Intervals))
	var weightSum int64
	weights := make([]int64, len(scope.Intervals))
	for i, iv := range scope.Intervals {
		if !iv.Leased() || iv.Occupants <= 0 {
			continue
		}
		weights[i] = int64(iv.Occupants) * int64(iv.Days())
		weightSum += weights[i]
	}
	if weightSum == 0 {
		if total.IsZero() {
			return out, nil
		}
		return out, []Warning{EmptyWeightWarning(poolID, total)}
	}
	denom := decimal.NewFromInt(weightSum)
	for i, w := range weights {
		if w == 0 {
			continue
		}
		out[i] = total.Mul(decimal.NewFromInt(w)).DivRound(denom, SharePrecision)
	}
	return out, nil
}

// PerUnitEqual gives every selected unit the same share, prorated across the
// unit's intervals by days:
//
//	share = total / N * days / T
type PerUnitEqual struct{}

func (PerUnitEqual) Distribute(_ string, total decimal.Decimal, scope *Scope) ([]decimal.Decimal, []Warning) {
	out := zeros(len(scope.Intervals))
	n := int64(len(scope.UnitOrder))
	if n == 0 {
		return out, nil
	}
	denom := decimal.NewFromInt(n * int64(scope.Period.Days()))
	for i, iv := range scope.Intervals {
		out[i] = total.Mul(decimal.NewFromInt(int64(iv.Days()))).DivRound(denom, SharePrecision)
	}
	return out, nil
}

// DirectDistributor hands out operator-assigned amounts keyed by interval
// key. Intervals without an assignment receive zero.
type DirectDistributor struct {
	Assigned map[string]decimal.Decimal
}

func (d DirectDistributor) Distribute(_ string, _ decimal.Decimal, scope *Scope) ([]decimal.Decimal, []Warning) {
	out := zeros(len(scope.Intervals))
	for i, iv := range scope.Intervals {
		if v, ok := d.Assigned[iv.Key]; ok {
			out[i] = v
		}
	}
	return out, nil
}
