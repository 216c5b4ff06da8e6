package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/allocation"
	"github.com/matthewbaird/opcost/internal/costpool"
	"github.com/matthewbaird/opcost/internal/types"
)

// ErrConservation is returned when a pool's shares do not add up to its
// total. It indicates a defect, not bad input.
var ErrConservation = errors.New("settlement: allocation does not conserve pool total")

// AdvanceTotals sums advance payments per contract whose payment month lies
// in the period.
func AdvanceTotals(period types.Period, payments []types.AdvancePayment) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, p := range payments {
		if !period.Contains(types.MonthStart(p.PaymentMonth)) {
			continue
		}
		out[p.ContractID] = out[p.ContractID].Add(p.Amount)
	}
	return out
}

// Calculate produces one item per scope interval. results must be aligned
// with scope.Intervals and are rounded per pool with the largest-remainder
// method, so each pool's lines sum to its rounded allocation.
func Calculate(scope *allocation.Scope, pools []costpool.Pool, results []allocation.Result, payments []types.AdvancePayment) []Item {
	names := make(map[string]string, len(pools))
	for _, p := range pools {
		names[p.ID] = p.Category.Name()
	}

	rounded := make([][]decimal.Decimal, len(results))
	for i, r := range results {
		rounded[i] = allocation.RoundLargestRemainder(r.Shares, allocation.CentPlaces)
	}

	advances := AdvanceTotals(scope.Period, payments)
	items := make([]Item, len(scope.Intervals))
	for i, iv := range scope.Intervals {
		it := Item{
			IntervalKey:     iv.Key,
			UnitID:          iv.UnitID,
			Kind:            iv.Kind,
			ContractID:      iv.ContractID,
			TenantID:        iv.TenantID,
			Start:           iv.Start,
			End:             iv.End,
			Days:            iv.Days(),
			DayFactor:       scope.DayFactor(iv),
			Occupants:       iv.Occupants,
			Breakdown:       make([]Line, 0, len(results)),
			AllocatedCost:   decimal.Zero,
			AdvancePayments: decimal.Zero,
		}
		for j, r := range results {
			amount := rounded[j][i]
			it.Breakdown = append(it.Breakdown, Line{
				PoolID:   r.PoolID,
				Category: names[r.PoolID],
				Key:      r.Key,
				Amount:   amount,
			})
			it.AllocatedCost = it.AllocatedCost.Add(amount)
		}
		if iv.Leased() {
			if adv, ok := advances[iv.ContractID]; ok {
				it.AdvancePayments = adv.Round(allocation.CentPlaces)
			}
		}
		it.Balance = it.AllocatedCost.Sub(it.AdvancePayments)
		items[i] = it
	}
	return items
}

// CrossCheck verifies that every pool's shares sum to its total. Direct
// pools may deviate by tolerance; formula pools by half a cent per interval.
// Pools that raised an empty-weight warning are exempt.
func CrossCheck(results []allocation.Result, tolerance decimal.Decimal) error {
	halfCent := decimal.New(5, -3)
	for _, r := range results {
		if hasWarning(r, allocation.WarnEmptyWeight) {
			continue
		}
		allowed := halfCent.Mul(decimal.NewFromInt(int64(len(r.Shares))))
		if r.Key == types.KeyDirect {
			allowed = tolerance
		}
		if diff := r.Allocated().Sub(r.Total); diff.Abs().GreaterThan(allowed) {
			return fmt.Errorf("%w: pool %s allocated %s of %s", ErrConservation, r.PoolID, r.Allocated(), r.Total)
		}
	}
	return nil
}

// Summarize fills the statement totals from its items and pools.
func Summarize(stmt *Statement, pools []costpool.Pool, results []allocation.Result) {
	allocated := make(map[string]decimal.Decimal, len(results))
	for _, r := range results {
		allocated[r.PoolID] = r.Allocated().Round(allocation.CentPlaces)
	}

	stmt.Pools = make([]PoolSummary, 0, len(pools))
	stmt.PoolTotal = decimal.Zero
	for _, p := range pools {
		a, ok := allocated[p.ID]
		if !ok {
			a = decimal.Zero
		}
		stmt.Pools = append(stmt.Pools, PoolSummary{
			PoolID:     p.ID,
			Category:   p.Category.Name(),
			Key:        p.Key,
			Total:      p.Total,
			Allocated:  a,
			EntryCount: len(p.Entries),
		})
		stmt.PoolTotal = stmt.PoolTotal.Add(p.Total)
	}

	stmt.TotalAllocated = decimal.Zero
	stmt.AdvanceTotal = decimal.Zero
	stmt.BalanceTotal = decimal.Zero
	for _, it := range stmt.Items {
		stmt.TotalAllocated = stmt.TotalAllocated.Add(it.AllocatedCost)
		stmt.AdvanceTotal = stmt.AdvanceTotal.Add(it.AdvancePayments)
		stmt.BalanceTotal = stmt.BalanceTotal.Add(it.Balance)
	}
	stmt.UnallocatedTotal = stmt.PoolTotal.Sub(stmt.TotalAllocated)
}

func hasWarning(r allocation.Result, code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
