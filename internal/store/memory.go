package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matthewbaird/opcost/internal/settlement"
)

// MemoryStore implements Store in memory.
// Intended for demos and testing.
type MemoryStore struct {
	mu         sync.RWMutex
	statements map[string]settlement.Statement
	drafts     map[string]Draft
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statements: make(map[string]settlement.Statement),
		drafts:     make(map[string]Draft),
	}
}

func (s *MemoryStore) SaveCompleted(_ context.Context, stmt *settlement.Statement) error {
	if err := prepare(stmt); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[stmt.ID]; ok {
		return ErrExists
	}
	cp := *stmt
	cp.Items = append([]settlement.Item(nil), stmt.Items...)
	s.statements[stmt.ID] = cp
	return nil
}

func (s *MemoryStore) GetStatement(_ context.Context, id string) (*settlement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stmt, ok := s.statements[id]
	if !ok {
		return nil, ErrNotFound
	}
	stmt.Items = append([]settlement.Item(nil), stmt.Items...)
	return &stmt, nil
}

func (s *MemoryStore) ListStatements(_ context.Context, buildingID string, opts ListOptions) ([]settlement.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []settlement.Statement
	for _, stmt := range s.statements {
		if stmt.BuildingID != buildingID {
			continue
		}
		stmt.Items = nil
		out = append(out, stmt)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out, nil
}

func (s *MemoryStore) SaveDraft(_ context.Context, d Draft) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.ID] = d
	return nil
}

func (s *MemoryStore) GetDraft(_ context.Context, id string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

// newer orders by period start, then creation time, both descending.
func newer(a, b settlement.Statement) bool {
	if !a.Period.Start.Equal(b.Period.Start) {
		return a.Period.Start.After(b.Period.Start)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
