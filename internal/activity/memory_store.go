package activity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matthewbaird/opcost/internal/types"
)

// MemoryStore implements Store using in-memory slices.
// Intended for demos and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []types.ActivityEntry
	seen    map[string]bool
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]bool)}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := e.IndexedEntityType + "\x00" + e.IndexedEntityID + "\x00" + e.EventID
		if s.seen[k] {
			continue
		}
		s.seen[k] = true
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *MemoryStore) QueryByEntity(_ context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cursor *time.Time
	if opts.Cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			cursor = &t
		}
	}

	var matched []types.ActivityEntry
	for _, e := range s.entries {
		if e.IndexedEntityType != entityType || e.IndexedEntityID != entityID {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.OccurredAt.After(*opts.Until) {
			continue
		}
		if len(opts.EventTypes) > 0 && !contains(opts.EventTypes, e.EventType) {
			continue
		}
		if cursor != nil && !e.OccurredAt.Before(*cursor) {
			continue
		}
		matched = append(matched, e)
	}

	// Sort by occurred_at DESC.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].EventID > matched[j].EventID
	})

	var nextCursor string
	if limit := opts.limit(); len(matched) > limit {
		matched = matched[:limit]
		nextCursor = matched[len(matched)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return matched, nextCursor, nil
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
