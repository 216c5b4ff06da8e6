package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/database"
	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/types"
)

// SQLStore implements Reader and Writer over the source tables.
type SQLStore struct {
	drv dialect.Driver
}

// NewSQLStore creates a SQLStore. The schema must already be migrated.
func NewSQLStore(drv dialect.Driver) *SQLStore {
	return &SQLStore{drv: drv}
}

var upsert = []entsql.ConflictOption{entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()}

// Import writes the snapshot in one transaction.
func (s *SQLStore) Import(ctx context.Context, snap engine.Snapshot) error {
	b := database.Builder(s.drv)
	return database.InTx(ctx, s.drv, func(tx dialect.Tx) error {
		addr, err := json.Marshal(snap.Building.Address)
		if err != nil {
			return fmt.Errorf("encoding address: %w", err)
		}
		if _, err := database.Exec(ctx, tx, b.Insert("buildings").
			Columns("id", "name", "address").
			Values(snap.Building.ID, snap.Building.Name, string(addr)).
			OnConflict(upsert...)); err != nil {
			return fmt.Errorf("importing building %s: %w", snap.Building.ID, err)
		}

		for _, u := range snap.Units {
			buildingID := u.BuildingID
			if buildingID == "" {
				buildingID = snap.Building.ID
			}
			var area any
			if u.Area != nil {
				area = u.Area.String()
			}
			if _, err := database.Exec(ctx, tx, b.Insert("units").
				Columns("id", "building_id", "label", "area", "rooms").
				Values(u.ID, buildingID, u.Label, area, u.Rooms).
				OnConflict(upsert...)); err != nil {
				return fmt.Errorf("importing unit %s: %w", u.ID, err)
			}
		}

		for _, c := range snap.Contracts {
			var end any
			if c.Term.End != nil {
				end = c.Term.End.Format(types.DateLayout)
			}
			if _, err := database.Exec(ctx, tx, b.Insert("lease_contracts").
				Columns("id", "tenant_id", "unit_id", "term_start", "term_end", "occupants").
				Values(c.ID, c.TenantID, c.UnitID, c.Term.Start.Format(types.DateLayout), end, c.Occupants).
				OnConflict(upsert...)); err != nil {
				return fmt.Errorf("importing contract %s: %w", c.ID, err)
			}
		}

		for _, c := range snap.Categories {
			if _, err := database.Exec(ctx, tx, b.Insert("cost_categories").
				Columns("id", "main", "sub", "default_key").
				Values(c.ID, c.Main, c.Sub, string(c.DefaultKey)).
				OnConflict(upsert...)); err != nil {
				return fmt.Errorf("importing category %s: %w", c.ID, err)
			}
		}

		for _, e := range snap.CostEntries {
			origin := e.Origin
			if origin == "" {
				origin = types.OriginInvoice
			}
			if _, err := database.Exec(ctx, tx, b.Insert("cost_entries").
				Columns("id", "category_id", "building_id", "unit_id", "entry_date", "amount", "description", "origin").
				Values(e.ID, e.CategoryID, e.BuildingID, e.UnitID, e.Date.Format(types.DateLayout), e.Amount.String(), e.Description, string(origin)).
				OnConflict(upsert...)); err != nil {
				return fmt.Errorf("importing cost entry %s: %w", e.ID, err)
			}
		}

		for _, p := range snap.AdvancePayments {
			if _, err := database.Exec(ctx, tx, b.Insert("advance_payments").
				Columns("id", "contract_id", "payment_month", "amount").
				Values(p.ID, p.ContractID, types.MonthStart(p.PaymentMonth).Format(types.DateLayout), p.Amount.String()).
				OnConflict(upsert...)); err != nil {
				return fmt.Errorf("importing advance payment %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Building(ctx context.Context, id string) (types.Building, error) {
	q := database.Builder(s.drv).
		Select("id", "name", "address").
		From(entsql.Table("buildings")).
		Where(entsql.EQ("id", id))
	rows, err := database.Query(ctx, s.drv, q)
	if err != nil {
		return types.Building{}, fmt.Errorf("querying building: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.Building{}, err
		}
		return types.Building{}, ErrNotFound
	}
	var (
		b    types.Building
		addr string
	)
	if err := rows.Scan(&b.ID, &b.Name, &addr); err != nil {
		return types.Building{}, fmt.Errorf("scanning building: %w", err)
	}
	if addr != "" {
		if err := json.Unmarshal([]byte(addr), &b.Address); err != nil {
			return types.Building{}, fmt.Errorf("decoding address of %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func (s *SQLStore) UnitsByBuilding(ctx context.Context, buildingID string) ([]types.Unit, error) {
	q := database.Builder(s.drv).
		Select("id", "building_id", "label", "area", "rooms").
		From(entsql.Table("units")).
		Where(entsql.EQ("building_id", buildingID)).
		OrderBy("id")
	rows, err := database.Query(ctx, s.drv, q)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var out []types.Unit
	for rows.Next() {
		var (
			u    types.Unit
			area sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.BuildingID, &u.Label, &area, &u.Rooms); err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		if area.Valid {
			a, err := decimal.NewFromString(area.String)
			if err != nil {
				return nil, fmt.Errorf("unit %s: parsing area: %w", u.ID, err)
			}
			u.Area = &a
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) ContractsByUnits(ctx context.Context, unitIDs []string) ([]types.LeaseContract, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	q := database.Builder(s.drv).
		Select("id", "tenant_id", "unit_id", "term_start", "term_end", "occupants").
		From(entsql.Table("lease_contracts")).
		Where(entsql.In("unit_id", database.Values(unitIDs)...)).
		OrderBy("id")
	rows, err := database.Query(ctx, s.drv, q)
	if err != nil {
		return nil, fmt.Errorf("querying contracts: %w", err)
	}
	defer rows.Close()

	var out []types.LeaseContract
	for rows.Next() {
		var (
			c     types.LeaseContract
			start string
			end   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &c.UnitID, &start, &end, &c.Occupants); err != nil {
			return nil, fmt.Errorf("scanning contract: %w", err)
		}
		if c.Term.Start, err = types.ParseDate(start); err != nil {
			return nil, fmt.Errorf("contract %s: %w", c.ID, err)
		}
		if end.Valid {
			e, err := types.ParseDate(end.String)
			if err != nil {
				return nil, fmt.Errorf("contract %s: %w", c.ID, err)
			}
			c.Term.End = &e
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) CostEntries(ctx context.Context, buildingID string, unitIDs []string, period types.Period) ([]types.CostEntry, error) {
	owner := entsql.EQ("building_id", buildingID)
	if len(unitIDs) > 0 {
		owner = entsql.Or(owner, entsql.In("unit_id", database.Values(unitIDs)...))
	}
	q := database.Builder(s.drv).
		Select("id", "category_id", "building_id", "unit_id", "entry_date", "amount", "description", "origin").
		From(entsql.Table("cost_entries")).
		Where(entsql.And(
			owner,
			entsql.GTE("entry_date", period.Start.Format(types.DateLayout)),
			entsql.LTE("entry_date", period.End.Format(types.DateLayout)),
		)).
		OrderBy("id")
	rows, err := database.Query(ctx, s.drv, q)
	if err != nil {
		return nil, fmt.Errorf("querying cost entries: %w", err)
	}
	defer rows.Close()

	var out []types.CostEntry
	for rows.Next() {
		var (
			e            types.CostEntry
			date, amount string
			origin       string
		)
		if err := rows.Scan(&e.ID, &e.CategoryID, &e.BuildingID, &e.UnitID, &date, &amount, &e.Description, &origin); err != nil {
			return nil, fmt.Errorf("scanning cost entry: %w", err)
		}
		if e.Date, err = types.ParseDate(date); err != nil {
			return nil, fmt.Errorf("cost entry %s: %w", e.ID, err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("cost entry %s: parsing amount: %w", e.ID, err)
		}
		e.Origin = types.CostOrigin(origin)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) AdvancePayments(ctx context.Context, contractIDs []string, period types.Period) ([]types.AdvancePayment, error) {
	if len(contractIDs) == 0 {
		return nil, nil
	}
	q := database.Builder(s.drv).
		Select("id", "contract_id", "payment_month", "amount").
		From(entsql.Table("advance_payments")).
		Where(entsql.And(
			entsql.In("contract_id", database.Values(contractIDs)...),
			entsql.GTE("payment_month", period.Start.Format(types.DateLayout)),
			entsql.LTE("payment_month", period.End.Format(types.DateLayout)),
		)).
		OrderBy("id")
	rows, err := database.Query(ctx, s.drv, q)
	if err != nil {
		return nil, fmt.Errorf("querying advance payments: %w", err)
	}
	defer rows.Close()

	var out []types.AdvancePayment
	for rows.Next() {
		var (
			p             types.AdvancePayment
			month, amount string
		)
		if err := rows.Scan(&p.ID, &p.ContractID, &month, &amount); err != nil {
			return nil, fmt.Errorf("scanning advance payment: %w", err)
		}
		if p.PaymentMonth, err = types.ParseDate(month); err != nil {
			return nil, fmt.Errorf("advance payment %s: %w", p.ID, err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("advance payment %s: parsing amount: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) Categories(ctx context.Context) ([]types.CostCategory, error) {
	q := database.Builder(s.drv).
		Select("id", "main", "sub", "default_key").
		From(entsql.Table("cost_categories")).
		OrderBy("id")
	rows, err := database.Query(ctx, s.drv, q)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var out []types.CostCategory
	for rows.Next() {
		var (
			c   types.CostCategory
			key string
		)
		if err := rows.Scan(&c.ID, &c.Main, &c.Sub, &key); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.DefaultKey = types.DistributionKey(key)
		out = append(out, c)
	}
	return out, rows.Err()
}
