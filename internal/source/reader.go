// Package source provides the read-only lookups a computation draws its
// snapshot from, plus the importer that loads source records.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/types"
)

// ErrNotFound is returned when a building does not exist.
var ErrNotFound = errors.New("source: not found")

// Reader is the set of source lookups. Implementations return records in a
// stable order.
type Reader interface {
	// Building returns a building by ID or ErrNotFound.
	Building(ctx context.Context, id string) (types.Building, error)

	// UnitsByBuilding returns every unit of a building.
	UnitsByBuilding(ctx context.Context, buildingID string) ([]types.Unit, error)

	// ContractsByUnits returns the lease contracts of the given units.
	ContractsByUnits(ctx context.Context, unitIDs []string) ([]types.LeaseContract, error)

	// CostEntries returns entries attributed to the building or one of the
	// units whose date lies in period.
	CostEntries(ctx context.Context, buildingID string, unitIDs []string, period types.Period) ([]types.CostEntry, error)

	// AdvancePayments returns payments of the given contracts whose payment
	// month lies in period.
	AdvancePayments(ctx context.Context, contractIDs []string, period types.Period) ([]types.AdvancePayment, error)

	// Categories returns every cost category.
	Categories(ctx context.Context) ([]types.CostCategory, error)
}

// Writer stores source records. Records with an existing ID are replaced.
type Writer interface {
	Import(ctx context.Context, snap engine.Snapshot) error
}

// LoadSnapshot reads everything a computation of buildingID over period
// needs. Units are always the full set of the building so unit-attributed
// costs can be traced regardless of selection.
func LoadSnapshot(ctx context.Context, r Reader, buildingID string, period types.Period) (engine.Snapshot, error) {
	b, err := r.Building(ctx, buildingID)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("loading building %s: %w", buildingID, err)
	}
	units, err := r.UnitsByBuilding(ctx, buildingID)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("loading units: %w", err)
	}
	unitIDs := make([]string, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID
	}
	contracts, err := r.ContractsByUnits(ctx, unitIDs)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("loading contracts: %w", err)
	}
	contractIDs := make([]string, len(contracts))
	for i, c := range contracts {
		contractIDs[i] = c.ID
	}
	entries, err := r.CostEntries(ctx, buildingID, unitIDs, period)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("loading cost entries: %w", err)
	}
	payments, err := r.AdvancePayments(ctx, contractIDs, period)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("loading advance payments: %w", err)
	}
	categories, err := r.Categories(ctx)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("loading categories: %w", err)
	}
	return engine.Snapshot{
		Building:        b,
		Units:           units,
		Contracts:       contracts,
		Categories:      categories,
		CostEntries:     entries,
		AdvancePayments: payments,
	}, nil
}

func set(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func sortByID[T any](s []T, id func(T) string) {
	sort.SliceStable(s, func(i, j int) bool { return id(s[i]) < id(s[j]) })
}
