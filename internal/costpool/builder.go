// Package costpool groups the cost entries of a building and statement
// period into one pool per selected cost category, each tagged with the
// distribution key the operator chose for it.
package costpool

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/types"
)

// Selection is an operator's choice of a category for this statement. An
// empty Key falls back to the category's default key.
type Selection struct {
	CategoryID string                `json:"category_id"`
	Key        types.DistributionKey `json:"key,omitempty"`
}

// totalPlaces is the precision of a pool total. Entries may carry sub-cent
// amounts; their sum is rounded once per pool.
const totalPlaces int32 = 2

// Pool is the eligible spend of one category for the period. It exists only
// for the duration of one computation. Total is in cents.
type Pool struct {
	ID       string                `json:"id"`
	Category types.CostCategory    `json:"category"`
	Key      types.DistributionKey `json:"key"`
	Entries  []types.CostEntry     `json:"entries"`
	Total    decimal.Decimal       `json:"total"`
}

// Empty reports whether the pool has nothing to distribute. Empty pools are
// skipped by allocation.
func (p Pool) Empty() bool { return p.Total.IsZero() }

// UnknownCategoryError reports a selection naming a category that does not
// exist.
type UnknownCategoryError struct {
	CategoryID string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown cost category %s", e.CategoryID)
}

// DuplicateSelectionError reports a category selected twice.
type DuplicateSelectionError struct {
	CategoryID string
}

func (e *DuplicateSelectionError) Error() string {
	return fmt.Sprintf("cost category %s selected more than once", e.CategoryID)
}

// InvalidKeyError reports a selection with an unknown distribution key.
type InvalidKeyError struct {
	CategoryID string
	Key        types.DistributionKey
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("cost category %s: unknown distribution key %q", e.CategoryID, e.Key)
}

// ManualEntryError reports an operator-entered cost that cannot join any
// pool of this statement.
type ManualEntryError struct {
	EntryID string
	Reason  string
}

func (e *ManualEntryError) Error() string {
	return fmt.Sprintf("manual entry %s: %s", e.EntryID, e.Reason)
}

// Builder filters cost entries for one building and period.
type Builder struct {
	buildingID   string
	period       types.Period
	unitBuilding map[string]string
}

// NewBuilder creates a Builder. units must cover every unit of the building,
// selected or not, so that unit-attributed entries can be traced back.
func NewBuilder(buildingID string, period types.Period, units []types.Unit) *Builder {
	ub := make(map[string]string, len(units))
	for _, u := range units {
		ub[u.ID] = u.BuildingID
	}
	return &Builder{buildingID: buildingID, period: period, unitBuilding: ub}
}

// Eligible reports whether e belongs to the builder's building and period.
func (b *Builder) Eligible(e types.CostEntry) bool {
	if !b.period.Contains(e.Date) {
		return false
	}
	if e.BuildingID == b.buildingID {
		return true
	}
	return e.UnitID != "" && b.unitBuilding[e.UnitID] == b.buildingID
}

// Build produces one pool per selection, in selection order. manual entries
// are appended to the pool of their category before totaling. All problems
// are collected; on any problem no pools are returned.
func (b *Builder) Build(selections []Selection, categories []types.CostCategory, entries, manual []types.CostEntry) ([]Pool, []error) {
	byID := make(map[string]types.CostCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	var problems []error
	pools := make([]Pool, 0, len(selections))
	index := make(map[string]int, len(selections))
	for _, sel := range selections {
		cat, ok := byID[sel.CategoryID]
		if !ok {
			problems = append(problems, &UnknownCategoryError{CategoryID: sel.CategoryID})
			continue
		}
		if _, dup := index[sel.CategoryID]; dup {
			problems = append(problems, &DuplicateSelectionError{CategoryID: sel.CategoryID})
			continue
		}
		key := sel.Key
		if key == "" {
			key = cat.DefaultKey
		}
		if !key.Valid() {
			problems = append(problems, &InvalidKeyError{CategoryID: sel.CategoryID, Key: key})
			continue
		}
		index[sel.CategoryID] = len(pools)
		pools = append(pools, Pool{ID: cat.ID, Category: cat, Key: key, Total: decimal.Zero})
	}

	for _, e := range entries {
		i, ok := index[e.CategoryID]
		if !ok || !b.Eligible(e) {
			continue
		}
		pools[i].Entries = append(pools[i].Entries, e)
	}

	for _, e := range manual {
		if e.BuildingID == "" && e.UnitID == "" {
			e.BuildingID = b.buildingID
		}
		if e.Origin == "" {
			e.Origin = types.OriginManualBooking
		}
		i, ok := index[e.CategoryID]
		switch {
		case !ok:
			problems = append(problems, &ManualEntryError{EntryID: e.ID, Reason: "category " + e.CategoryID + " is not selected"})
		case !b.period.Contains(e.Date):
			problems = append(problems, &ManualEntryError{EntryID: e.ID, Reason: "date " + e.Date.Format(types.DateLayout) + " outside " + b.period.String()})
		case !b.Eligible(e):
			problems = append(problems, &ManualEntryError{EntryID: e.ID, Reason: "not attributable to building " + b.buildingID})
		default:
			pools[i].Entries = append(pools[i].Entries, e)
		}
	}

	if len(problems) > 0 {
		return nil, problems
	}
	for i := range pools {
		total := decimal.Zero
		for _, e := range pools[i].Entries {
			total = total.Add(e.Amount)
		}
		pools[i].Total = total.Round(totalPlaces)
	}
	return pools, nil
}

// Total sums the totals of all pools.
func Total(pools []Pool) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range pools {
		sum = sum.Add(p.Total)
	}
	return sum
}
