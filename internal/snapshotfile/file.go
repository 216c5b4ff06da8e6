// Package snapshotfile reads the YAML fixture format used by the CLI: the
// source records of one building plus an optional statement request.
// Amounts and areas are decimal strings and dates are YYYY-MM-DD, so a
// fixture never passes money through a float.
package snapshotfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/opcost/internal/allocation"
	"github.com/matthewbaird/opcost/internal/costpool"
	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/types"
)

// ErrNoRequest is returned by EngineRequest when the fixture has no request
// section.
var ErrNoRequest = errors.New("snapshotfile: fixture has no request")

// File is the decoded fixture.
type File struct {
	Building        types.Building   `yaml:"building"`
	Units           []Unit           `yaml:"units"`
	Contracts       []Contract       `yaml:"contracts"`
	Categories      []Category       `yaml:"categories"`
	CostEntries     []CostEntry      `yaml:"cost_entries"`
	AdvancePayments []AdvancePayment `yaml:"advance_payments"`
	Request         *Request         `yaml:"request,omitempty"`
}

type Unit struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label,omitempty"`
	Area  string `yaml:"area,omitempty"`
	Rooms int    `yaml:"rooms,omitempty"`
}

type Contract struct {
	ID        string `yaml:"id"`
	TenantID  string `yaml:"tenant_id"`
	UnitID    string `yaml:"unit_id"`
	Start     string `yaml:"start"`
	End       string `yaml:"end,omitempty"`
	Occupants int    `yaml:"occupants"`
}

type Category struct {
	ID         string `yaml:"id"`
	Main       string `yaml:"main"`
	Sub        string `yaml:"sub,omitempty"`
	DefaultKey string `yaml:"default_key"`
}

type CostEntry struct {
	ID          string `yaml:"id"`
	CategoryID  string `yaml:"category_id"`
	BuildingID  string `yaml:"building_id,omitempty"`
	UnitID      string `yaml:"unit_id,omitempty"`
	Date        string `yaml:"date"`
	Amount      string `yaml:"amount"`
	Description string `yaml:"description,omitempty"`
	Origin      string `yaml:"origin,omitempty"`
}

// AdvancePayment.Month accepts YYYY-MM or a full date.
type AdvancePayment struct {
	ID         string `yaml:"id"`
	ContractID string `yaml:"contract_id"`
	Month      string `yaml:"month"`
	Amount     string `yaml:"amount"`
}

type Request struct {
	Start             string                       `yaml:"start"`
	End               string                       `yaml:"end"`
	UnitIDs           []string                     `yaml:"unit_ids,omitempty"`
	Pools             []Pool                       `yaml:"pools"`
	ManualEntries     []CostEntry                  `yaml:"manual_entries,omitempty"`
	DirectAllocations map[string]map[string]string `yaml:"direct_allocations,omitempty"`
}

type Pool struct {
	CategoryID string `yaml:"category_id"`
	Key        string `yaml:"key,omitempty"`
}

// ReadFile decodes the fixture at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode reads one fixture document. Unknown fields are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	if f.Building.ID == "" {
		return nil, errors.New("decoding fixture: building.id is required")
	}
	return &f, nil
}

// Snapshot converts the source records.
func (f *File) Snapshot() (engine.Snapshot, error) {
	snap := engine.Snapshot{Building: f.Building}

	for _, u := range f.Units {
		unit := types.Unit{ID: u.ID, BuildingID: f.Building.ID, Label: u.Label, Rooms: u.Rooms}
		if u.Area != "" {
			a, err := decimal.NewFromString(u.Area)
			if err != nil {
				return engine.Snapshot{}, fmt.Errorf("unit %s area: %w", u.ID, err)
			}
			unit.Area = &a
		}
		snap.Units = append(snap.Units, unit)
	}

	for _, c := range f.Contracts {
		start, err := types.ParseDate(c.Start)
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("contract %s: %w", c.ID, err)
		}
		lc := types.LeaseContract{
			ID:        c.ID,
			TenantID:  c.TenantID,
			UnitID:    c.UnitID,
			Term:      types.DateRange{Start: start},
			Occupants: c.Occupants,
		}
		if c.End != "" {
			end, err := types.ParseDate(c.End)
			if err != nil {
				return engine.Snapshot{}, fmt.Errorf("contract %s: %w", c.ID, err)
			}
			lc.Term.End = &end
		}
		snap.Contracts = append(snap.Contracts, lc)
	}

	for _, c := range f.Categories {
		key, err := types.ParseDistributionKey(c.DefaultKey)
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("category %s: %w", c.ID, err)
		}
		snap.Categories = append(snap.Categories, types.CostCategory{ID: c.ID, Main: c.Main, Sub: c.Sub, DefaultKey: key})
	}

	entries, err := convertEntries(f.CostEntries, types.OriginInvoice)
	if err != nil {
		return engine.Snapshot{}, err
	}
	snap.CostEntries = entries

	for _, p := range f.AdvancePayments {
		month, err := parseMonth(p.Month)
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("advance payment %s: %w", p.ID, err)
		}
		amt, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("advance payment %s amount: %w", p.ID, err)
		}
		snap.AdvancePayments = append(snap.AdvancePayments, types.AdvancePayment{
			ID:           p.ID,
			ContractID:   p.ContractID,
			PaymentMonth: month,
			Amount:       amt,
		})
	}
	return snap, nil
}

// EngineRequest converts the request section or returns ErrNoRequest.
func (f *File) EngineRequest() (engine.Request, error) {
	if f.Request == nil {
		return engine.Request{}, ErrNoRequest
	}
	r := f.Request
	period, err := types.ParsePeriod(r.Start, r.End)
	if err != nil {
		return engine.Request{}, fmt.Errorf("request period: %w", err)
	}
	req := engine.Request{Period: period, UnitIDs: r.UnitIDs}

	for _, p := range r.Pools {
		sel := costpool.Selection{CategoryID: p.CategoryID}
		if p.Key != "" {
			// Invalid keys are left for the engine to report with the rest.
			sel.Key = types.DistributionKey(p.Key)
		}
		req.Pools = append(req.Pools, sel)
	}

	manual, err := convertEntries(r.ManualEntries, types.OriginManualBooking)
	if err != nil {
		return engine.Request{}, err
	}
	req.ManualEntries = manual

	if len(r.DirectAllocations) > 0 {
		req.DirectAllocations = make(allocation.DirectMap, len(r.DirectAllocations))
		for poolID, shares := range r.DirectAllocations {
			m := make(map[string]decimal.Decimal, len(shares))
			for key, raw := range shares {
				amt, err := decimal.NewFromString(raw)
				if err != nil {
					return engine.Request{}, fmt.Errorf("direct allocation %s/%s: %w", poolID, key, err)
				}
				m[key] = amt
			}
			req.DirectAllocations[poolID] = m
		}
	}
	return req, nil
}

func convertEntries(in []CostEntry, origin types.CostOrigin) ([]types.CostEntry, error) {
	out := make([]types.CostEntry, 0, len(in))
	for _, e := range in {
		date, err := types.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("cost entry %s: %w", e.ID, err)
		}
		amt, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("cost entry %s amount: %w", e.ID, err)
		}
		ce := types.CostEntry{
			ID:          e.ID,
			CategoryID:  e.CategoryID,
			BuildingID:  e.BuildingID,
			UnitID:      e.UnitID,
			Date:        date,
			Amount:      amt,
			Description: e.Description,
			Origin:      origin,
		}
		if e.Origin != "" {
			ce.Origin = types.CostOrigin(e.Origin)
		}
		out = append(out, ce)
	}
	return out, nil
}

func parseMonth(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}
	t, err := types.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return types.MonthStart(t), nil
}
