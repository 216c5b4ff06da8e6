package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/types"
)

// Event types.
const (
	TypeStatementCompleted = "statement_completed"
	TypeStatementRejected  = "statement_rejected"
	TypeDraftSaved         = "draft_saved"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string
	EventType        string
	OccurredAt       time.Time
	AffectedEntities []types.SourceRef
	Summary          string
	Category         string // "statement", "draft"
	Weight           string // "major", "minor", "info"
	Polarity         string // "positive", "negative", "neutral"
	Payload          json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// StatementCompletedPayload carries event-specific data for StatementCompleted.
type StatementCompletedPayload struct {
	StatementID    string          `json:"statement_id"`
	BuildingID     string          `json:"building_id"`
	Period         types.Period    `json:"period"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	ItemCount      int             `json:"item_count"`
	WarningCount   int             `json:"warning_count"`
	NeedsReview    bool            `json:"needs_review"`
	Actor          string          `json:"actor"`
}

func NewStatementCompleted(p StatementCompletedPayload) DomainEvent {
	weight := "major"
	summary := fmt.Sprintf("Statement %s completed for %s: %s over %d items",
		short(p.StatementID), p.Period, p.TotalAllocated.StringFixed(2), p.ItemCount)
	if p.NeedsReview {
		weight = "minor"
		summary += fmt.Sprintf(", %d warning(s) to review", p.WarningCount)
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeStatementCompleted,
		OccurredAt: time.Now(),
		AffectedEntities: []types.SourceRef{
			{EntityType: "statement", EntityID: p.StatementID, Role: "subject"},
			{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
		},
		Summary:  summary,
		Category: "statement",
		Weight:   weight,
		Polarity: "positive",
		Payload:  mustJSON(p),
	}
}

// StatementRejectedPayload carries event-specific data for StatementRejected.
type StatementRejectedPayload struct {
	BuildingID string       `json:"building_id"`
	Period     types.Period `json:"period"`
	Codes      []string     `json:"codes"`
	Actor      string       `json:"actor"`
}

func NewStatementRejected(p StatementRejectedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeStatementRejected,
		OccurredAt: time.Now(),
		AffectedEntities: []types.SourceRef{
			{EntityType: "building", EntityID: p.BuildingID, Role: "subject"},
		},
		Summary:  fmt.Sprintf("Statement for %s rejected with %d problem(s)", p.Period, len(p.Codes)),
		Category: "statement",
		Weight:   "minor",
		Polarity: "negative",
		Payload:  mustJSON(p),
	}
}

// DraftSavedPayload carries event-specific data for DraftSaved.
type DraftSavedPayload struct {
	DraftID    string `json:"draft_id"`
	BuildingID string `json:"building_id"`
	PoolCount  int    `json:"pool_count"`
	Actor      string `json:"actor"`
}

func NewDraftSaved(p DraftSavedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeDraftSaved,
		OccurredAt: time.Now(),
		AffectedEntities: []types.SourceRef{
			{EntityType: "draft", EntityID: p.DraftID, Role: "subject"},
			{EntityType: "building", EntityID: p.BuildingID, Role: "context"},
		},
		Summary:  fmt.Sprintf("Draft %s saved with %d pool(s)", short(p.DraftID), p.PoolCount),
		Category: "draft",
		Weight:   "info",
		Polarity: "neutral",
		Payload:  mustJSON(p),
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
