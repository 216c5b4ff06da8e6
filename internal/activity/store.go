package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/opcost/internal/database"
	"github.com/matthewbaird/opcost/internal/types"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity, newest
	// first.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, err error)
}

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var entryColumns = []string{
	"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "weight", "polarity", "payload",
}

// SQLStore implements Store over the activity_entries table.
type SQLStore struct {
	drv dialect.Driver
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(drv dialect.Driver) *SQLStore {
	return &SQLStore{drv: drv}
}

// WriteEntries inserts activity entries. Entries already written are
// ignored.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := database.Builder(s.drv).Insert("activity_entries").Columns(entryColumns...)
	for _, e := range entries {
		refsJSON, _ := json.Marshal(e.SourceRefs)
		payload := string(e.Payload)
		if payload == "" {
			payload = "null"
		}
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UTC().Format(timeLayout), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, e.Weight, e.Polarity, payload,
		)
	}
	ins.OnConflict(
		entsql.ConflictColumns("indexed_entity_type", "indexed_entity_id", "event_id"),
		entsql.DoNothing(),
	)
	if _, err := database.Exec(ctx, s.drv, ins); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, error) {
	limit := opts.limit()

	preds := []*entsql.Predicate{
		entsql.EQ("indexed_entity_type", entityType),
		entsql.EQ("indexed_entity_id", entityID),
	}
	if opts.Since != nil {
		preds = append(preds, entsql.GTE("occurred_at", opts.Since.UTC().Format(timeLayout)))
	}
	if opts.Until != nil {
		preds = append(preds, entsql.LTE("occurred_at", opts.Until.UTC().Format(timeLayout)))
	}
	if len(opts.EventTypes) > 0 {
		preds = append(preds, entsql.In("event_type", database.Values(opts.EventTypes)...))
	}
	if opts.Cursor != "" {
		// Cursor is the occurred_at timestamp of the last result.
		if cursorTime, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			preds = append(preds, entsql.LT("occurred_at", cursorTime.UTC().Format(timeLayout)))
		}
	}

	rows, err := database.Query(ctx, s.drv, database.Builder(s.drv).
		Select(entryColumns...).
		From(entsql.Table("activity_entries")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at"), entsql.Desc("event_id")).
		Limit(limit+1)) // fetch one extra for cursor
	if err != nil {
		return nil, "", fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ActivityEntry
	for rows.Next() {
		var (
			e                                types.ActivityEntry
			occurredAt, refsJSON, payloadRaw string
		)
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurredAt, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &e.Weight, &e.Polarity, &payloadRaw,
		)
		if err != nil {
			return nil, "", fmt.Errorf("scanning activity entry: %w", err)
		}
		if e.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, "", fmt.Errorf("activity entry %s: %w", e.EventID, err)
		}
		if refsJSON != "" {
			_ = json.Unmarshal([]byte(refsJSON), &e.SourceRefs)
		}
		if payloadRaw != "null" {
			e.Payload = json.RawMessage(payloadRaw)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return entries, nextCursor, nil
}
