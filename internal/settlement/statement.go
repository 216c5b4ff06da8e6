// Package settlement aggregates pool allocations per occupancy interval,
// nets them against tenant advance payments and produces the operating-cost
// statement.
package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/allocation"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/types"
)

// Status is the lifecycle state of a statement.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

// Line is one pool's contribution to an item, rounded to cents.
type Line struct {
	PoolID   string                `json:"pool_id"`
	Category string                `json:"category"`
	Key      types.DistributionKey `json:"key"`
	Amount   decimal.Decimal       `json:"amount"`
}

// Item is the settlement of one occupancy interval.
type Item struct {
	IntervalKey     string          `json:"interval_key"`
	UnitID          string          `json:"unit_id"`
	Kind            occupancy.Kind  `json:"kind"`
	ContractID      string          `json:"contract_id,omitempty"`
	TenantID        string          `json:"tenant_id,omitempty"`
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	Days            int             `json:"days"`
	DayFactor       decimal.Decimal `json:"day_factor"`
	Occupants       int             `json:"occupants"`
	Breakdown       []Line          `json:"breakdown"`
	AllocatedCost   decimal.Decimal `json:"allocated_cost"`
	AdvancePayments decimal.Decimal `json:"advance_payments"`
	Balance         decimal.Decimal `json:"balance"`
}

// LandlordBorne reports whether the balance is carried by the landlord
// rather than owed by a tenant.
func (it Item) LandlordBorne() bool { return it.Kind == occupancy.KindVacant }

// PoolSummary describes one selected pool on the statement.
type PoolSummary struct {
	PoolID     string                `json:"pool_id"`
	Category   string                `json:"category"`
	Key        types.DistributionKey `json:"key"`
	Total      decimal.Decimal       `json:"total"`
	Allocated  decimal.Decimal       `json:"allocated"`
	EntryCount int                   `json:"entry_count"`
}

// Statement is an operating-cost statement for one building and period.
type Statement struct {
	ID               string               `json:"id,omitempty"`
	BuildingID       string               `json:"building_id"`
	Period           types.Period         `json:"period"`
	UnitIDs          []string             `json:"unit_ids"`
	Status           Status               `json:"status"`
	Currency         string               `json:"currency"`
	Pools            []PoolSummary        `json:"pools"`
	PoolTotal        decimal.Decimal      `json:"pool_total"`
	TotalAllocated   decimal.Decimal      `json:"total_allocated"`
	UnallocatedTotal decimal.Decimal      `json:"unallocated_total"`
	AdvanceTotal     decimal.Decimal      `json:"advance_total"`
	BalanceTotal     decimal.Decimal      `json:"balance_total"`
	Items            []Item               `json:"items"`
	Warnings         []allocation.Warning `json:"warnings,omitempty"`
	CreatedAt        time.Time            `json:"created_at,omitempty"`
	CreatedBy        string               `json:"created_by,omitempty"`
}

// NeedsReview reports whether any warning was raised.
func (s *Statement) NeedsReview() bool { return len(s.Warnings) > 0 }
