package types

import (
	"encoding/json"
	"time"
)

// SourceRef names an entity affected by a domain event and the role it
// plays in it.
type SourceRef struct {
	EntityType string `json:"entity_type"` // "building", "statement", "draft"
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "context"
}

// ActivityEntry is one domain event indexed under one affected entity. A
// single event fans out to one entry per SourceRef.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"`
	Weight            string          `json:"weight"`
	Polarity          string          `json:"polarity"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}
