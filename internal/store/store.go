// Package store persists completed operating-cost statements and the
// operator's draft selections.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/settlement"
)

var (
	// ErrNotFound is returned when a statement or draft does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrExists is returned when a statement ID is written twice.
	ErrExists = errors.New("store: statement already persisted")
	// ErrNotCompleted is returned when a statement that is not Completed is
	// handed to SaveCompleted.
	ErrNotCompleted = errors.New("store: statement is not completed")
)

// Draft is an operator's in-progress statement request. It is never used as
// allocation input unless resubmitted.
type Draft struct {
	ID         string         `json:"id"`
	BuildingID string         `json:"building_id"`
	Request    engine.Request `json:"request"`
	UpdatedAt  time.Time      `json:"updated_at"`
	UpdatedBy  string         `json:"updated_by"`
}

// ListOptions bounds a statement listing.
type ListOptions struct {
	Limit int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 || o.Limit > 500 {
		return 100
	}
	return o.Limit
}

// Store is the interface for persisting statements and drafts.
type Store interface {
	// SaveCompleted writes a Completed statement and all its items
	// atomically. An empty ID is assigned; CreatedAt defaults to now.
	SaveCompleted(ctx context.Context, stmt *settlement.Statement) error

	// GetStatement returns a statement with its items.
	GetStatement(ctx context.Context, id string) (*settlement.Statement, error)

	// ListStatements returns the statements of a building without items,
	// latest period first.
	ListStatements(ctx context.Context, buildingID string, opts ListOptions) ([]settlement.Statement, error)

	// SaveDraft inserts or replaces a draft.
	SaveDraft(ctx context.Context, d Draft) error

	// GetDraft returns a draft by ID.
	GetDraft(ctx context.Context, id string) (Draft, error)
}

func prepare(stmt *settlement.Statement) error {
	if stmt.Status != settlement.StatusCompleted {
		return fmt.Errorf("%w: status %q", ErrNotCompleted, stmt.Status)
	}
	if stmt.ID == "" {
		stmt.ID = uuid.New().String()
	}
	if stmt.CreatedAt.IsZero() {
		stmt.CreatedAt = time.Now().UTC()
	}
	return nil
}
