package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/activity"
	"github.com/matthewbaird/opcost/internal/types"
)

type capture struct{ events []DomainEvent }

func (c *capture) Publish(_ context.Context, evt DomainEvent) { c.events = append(c.events, evt) }

func TestActivityRecorder_FansOutAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := activity.NewMemoryStore()
	bus := &capture{}
	rec := NewActivityRecorder(store)
	rec.SetPublisher(bus)

	p, _ := types.ParsePeriod("2023-01-01", "2023-12-31")
	evt := NewStatementCompleted(StatementCompletedPayload{
		StatementID:    "0f6a3c1e-5b7d-4e2a-9c11-2b1d2e3f4a5b",
		BuildingID:     "b1",
		Period:         p,
		TotalAllocated: decimal.RequireFromString("1300"),
		ItemCount:      3,
	})
	if err := rec.Record(ctx, evt); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(bus.events) != 1 || bus.events[0].ID != evt.ID {
		t.Fatalf("published = %+v, want the recorded event", bus.events)
	}

	for _, ref := range []struct{ typ, id string }{{"statement", "0f6a3c1e-5b7d-4e2a-9c11-2b1d2e3f4a5b"}, {"building", "b1"}} {
		got, _, err := store.QueryByEntity(ctx, ref.typ, ref.id, activity.DefaultQueryOptions())
		if err != nil {
			t.Fatalf("QueryByEntity: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("%s entries = %d, want 1", ref.typ, len(got))
		}
		if got[0].EventType != TypeStatementCompleted {
			t.Errorf("event type = %q", got[0].EventType)
		}
	}

	var payload StatementCompletedPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ItemCount != 3 || payload.Period != p {
		t.Errorf("payload = %+v", payload)
	}
	if want := "Statement 0f6a3c1e completed for 2023-01-01..2023-12-31: 1300.00 over 3 items"; evt.Summary != want {
		t.Errorf("summary = %q, want %q", evt.Summary, want)
	}
}

func TestNewStatementRejected(t *testing.T) {
	p, _ := types.ParsePeriod("2023-01-01", "2023-12-31")
	evt := NewStatementRejected(StatementRejectedPayload{BuildingID: "b1", Period: p, Codes: []string{"OVERLAP", "MISSING_AREA"}})
	if evt.Polarity != "negative" {
		t.Errorf("polarity = %q, want negative", evt.Polarity)
	}
	if len(evt.AffectedEntities) != 1 || evt.AffectedEntities[0].EntityID != "b1" {
		t.Errorf("entities = %+v", evt.AffectedEntities)
	}
}
