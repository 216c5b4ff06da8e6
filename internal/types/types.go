// Package types provides the Go structs for the source entities the
// operating-cost engine reads. These are immutable inputs: the engine never
// mutates them, it only derives occupancy intervals, cost pools and
// statement items from them.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DistributionKey selects the formula that splits a cost pool across
// occupancy intervals.
type DistributionKey string

const (
	KeyAreaWeighted   DistributionKey = "area_weighted"
	KeyPersonWeighted DistributionKey = "person_weighted"
	KeyPerUnitEqual   DistributionKey = "per_unit_equal"
	KeyDirect         DistributionKey = "direct"
)

// Valid reports whether k is one of the four known keys.
func (k DistributionKey) Valid() bool {
	switch k {
	case KeyAreaWeighted, KeyPersonWeighted, KeyPerUnitEqual, KeyDirect:
		return true
	}
	return false
}

// ParseDistributionKey parses a key from its wire form.
func ParseDistributionKey(s string) (DistributionKey, error) {
	k := DistributionKey(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown distribution key %q", s)
	}
	return k, nil
}

// CostOrigin records where a cost entry came from.
type CostOrigin string

const (
	OriginInvoice       CostOrigin = "invoice"
	OriginManualBooking CostOrigin = "manual_booking"
)

// Address represents a postal address.
type Address struct {
	Line1      string `json:"line1" yaml:"line1"`
	Line2      string `json:"line2,omitempty" yaml:"line2,omitempty"`
	City       string `json:"city" yaml:"city"`
	PostalCode string `json:"postal_code" yaml:"postal_code"`
	Country    string `json:"country" yaml:"country"` // ISO 3166-1 alpha-2
}

// DateRange represents a time period with an optional end.
type DateRange struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// Building owns units.
type Building struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Address Address `json:"address"`
}

// Unit is a rentable unit of a building. Area is in square meters and may be
// unset; an unset area blocks area-weighted allocation.
type Unit struct {
	ID         string           `json:"id"`
	BuildingID string           `json:"building_id"`
	Label      string           `json:"label,omitempty"`
	Area       *decimal.Decimal `json:"area,omitempty"`
	Rooms      int              `json:"rooms"`
}

// HasArea reports whether the unit carries a usable floor area.
func (u Unit) HasArea() bool {
	return u.Area != nil && u.Area.IsPositive()
}

// LeaseContract is a historical tenancy record. Term.End == nil means the
// contract is open-ended.
type LeaseContract struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UnitID    string    `json:"unit_id"`
	Term      DateRange `json:"term"`
	Occupants int       `json:"occupants"`
}

// CostCategory groups cost entries and carries the default distribution key.
type CostCategory struct {
	ID         string          `json:"id"`
	Main       string          `json:"main"`
	Sub        string          `json:"sub,omitempty"`
	DefaultKey DistributionKey `json:"default_key"`
}

// Name renders "Main / Sub", or just Main when Sub is empty.
func (c CostCategory) Name() string {
	if c.Sub == "" {
		return c.Main
	}
	return c.Main + " / " + c.Sub
}

// CostEntry is an invoiced or manually booked expense. It is attributable to
// a building either directly (BuildingID) or via one of its units (UnitID).
type CostEntry struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"category_id"`
	BuildingID  string          `json:"building_id,omitempty"`
	UnitID      string          `json:"unit_id,omitempty"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Origin      CostOrigin      `json:"origin"`
}

// AdvancePayment is one monthly operating-cost prepayment a tenant owes
// under a contract.
type AdvancePayment struct {
	ID           string          `json:"id"`
	ContractID   string          `json:"contract_id"`
	PaymentMonth time.Time       `json:"payment_month"`
	Amount       decimal.Decimal `json:"amount"`
}
