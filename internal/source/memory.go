package source

import (
	"context"
	"sync"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/types"
)

// MemoryStore implements Reader and Writer in memory.
// Intended for demos and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	buildings  map[string]types.Building
	units      map[string]types.Unit
	contracts  map[string]types.LeaseContract
	categories map[string]types.CostCategory
	entries    map[string]types.CostEntry
	payments   map[string]types.AdvancePayment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buildings:  make(map[string]types.Building),
		units:      make(map[string]types.Unit),
		contracts:  make(map[string]types.LeaseContract),
		categories: make(map[string]types.CostCategory),
		entries:    make(map[string]types.CostEntry),
		payments:   make(map[string]types.AdvancePayment),
	}
}

func (s *MemoryStore) Import(_ context.Context, snap engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildings[snap.Building.ID] = snap.Building
	for _, u := range snap.Units {
		if u.BuildingID == "" {
			u.BuildingID = snap.Building.ID
		}
		s.units[u.ID] = u
	}
	for _, c := range snap.Contracts {
		s.contracts[c.ID] = c
	}
	for _, c := range snap.Categories {
		s.categories[c.ID] = c
	}
	for _, e := range snap.CostEntries {
		s.entries[e.ID] = e
	}
	for _, p := range snap.AdvancePayments {
		p.PaymentMonth = types.MonthStart(p.PaymentMonth)
		s.payments[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Building(_ context.Context, id string) (types.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buildings[id]
	if !ok {
		return types.Building{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) UnitsByBuilding(_ context.Context, buildingID string) ([]types.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Unit
	for _, u := range s.units {
		if u.BuildingID == buildingID {
			out = append(out, u)
		}
	}
	sortByID(out, func(u types.Unit) string { return u.ID })
	return out, nil
}

func (s *MemoryStore) ContractsByUnits(_ context.Context, unitIDs []string) ([]types.LeaseContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := set(unitIDs)
	var out []types.LeaseContract
	for _, c := range s.contracts {
		if want[c.UnitID] {
			out = append(out, c)
		}
	}
	sortByID(out, func(c types.LeaseContract) string { return c.ID })
	return out, nil
}

func (s *MemoryStore) CostEntries(_ context.Context, buildingID string, unitIDs []string, period types.Period) ([]types.CostEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := set(unitIDs)
	var out []types.CostEntry
	for _, e := range s.entries {
		if !period.Contains(e.Date) {
			continue
		}
		if e.BuildingID == buildingID || (e.UnitID != "" && units[e.UnitID]) {
			out = append(out, e)
		}
	}
	sortByID(out, func(e types.CostEntry) string { return e.ID })
	return out, nil
}

func (s *MemoryStore) AdvancePayments(_ context.Context, contractIDs []string, period types.Period) ([]types.AdvancePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := set(contractIDs)
	var out []types.AdvancePayment
	for _, p := range s.payments {
		if want[p.ContractID] && period.Contains(p.PaymentMonth) {
			out = append(out, p)
		}
	}
	sortByID(out, func(p types.AdvancePayment) string { return p.ID })
	return out, nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]types.CostCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CostCategory, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sortByID(out, func(c types.CostCategory) string { return c.ID })
	return out, nil
}
