package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/database"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/types"
)

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var statementColumns = []string{
	"id", "building_id", "period_start", "period_end", "status", "currency",
	"unit_ids", "pools", "warnings", "pool_total", "total_allocated",
	"unallocated_total", "advance_total", "balance_total", "created_at", "created_by",
}

var itemColumns = []string{
	"id", "statement_id", "position", "interval_key", "unit_id", "kind",
	"contract_id", "tenant_id", "start_date", "end_date", "days", "day_factor",
	"occupants", "breakdown", "allocated_cost", "advance_payments", "balance",
}

// SQLStore implements Store over the statements, statement_items and
// drafts tables.
type SQLStore struct {
	drv dialect.Driver
}

// NewSQLStore creates a SQLStore. The schema must already be migrated.
func NewSQLStore(drv dialect.Driver) *SQLStore {
	return &SQLStore{drv: drv}
}

// SaveCompleted writes the statement header and every item in one
// transaction.
func (s *SQLStore) SaveCompleted(ctx context.Context, stmt *settlement.Statement) error {
	if err := prepare(stmt); err != nil {
		return err
	}
	unitIDs, err := json.Marshal(stmt.UnitIDs)
	if err != nil {
		return fmt.Errorf("encoding unit ids: %w", err)
	}
	pools, err := json.Marshal(stmt.Pools)
	if err != nil {
		return fmt.Errorf("encoding pools: %w", err)
	}
	warnings, err := json.Marshal(stmt.Warnings)
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}

	b := database.Builder(s.drv)
	return database.InTx(ctx, s.drv, func(tx dialect.Tx) error {
		exists, err := s.statementExists(ctx, tx, stmt.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrExists
		}

		if _, err := database.Exec(ctx, tx, b.Insert("statements").
			Columns(statementColumns...).
			Values(
				stmt.ID, stmt.BuildingID,
				stmt.Period.Start.Format(types.DateLayout), stmt.Period.End.Format(types.DateLayout),
				string(stmt.Status), stmt.Currency,
				string(unitIDs), string(pools), string(warnings),
				stmt.PoolTotal.String(), stmt.TotalAllocated.String(), stmt.UnallocatedTotal.String(),
				stmt.AdvanceTotal.String(), stmt.BalanceTotal.String(),
				stmt.CreatedAt.UTC().Format(timeLayout), stmt.CreatedBy,
			)); err != nil {
			return fmt.Errorf("inserting statement: %w", err)
		}

		for i, it := range stmt.Items {
			breakdown, err := json.Marshal(it.Breakdown)
			if err != nil {
				return fmt.Errorf("encoding breakdown of %s: %w", it.IntervalKey, err)
			}
			if _, err := database.Exec(ctx, tx, b.Insert("statement_items").
				Columns(itemColumns...).
				Values(
					uuid.New().String(), stmt.ID, i, it.IntervalKey, it.UnitID, string(it.Kind),
					it.ContractID, it.TenantID,
					it.Start.Format(types.DateLayout), it.End.Format(types.DateLayout),
					it.Days, it.DayFactor.String(), it.Occupants, string(breakdown),
					it.AllocatedCost.String(), it.AdvancePayments.String(), it.Balance.String(),
				)); err != nil {
				return fmt.Errorf("inserting item %s: %w", it.IntervalKey, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) statementExists(ctx context.Context, ex dialect.ExecQuerier, id string) (bool, error) {
	rows, err := database.Query(ctx, ex, database.Builder(s.drv).
		Select("id").
		From(entsql.Table("statements")).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return false, fmt.Errorf("checking statement %s: %w", id, err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func (s *SQLStore) GetStatement(ctx context.Context, id string) (*settlement.Statement, error) {
	rows, err := database.Query(ctx, s.drv, database.Builder(s.drv).
		Select(statementColumns...).
		From(entsql.Table("statements")).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("querying statement: %w", err)
	}
	var stmt *settlement.Statement
	if rows.Next() {
		stmt, err = scanStatement(rows)
	}
	if err == nil {
		err = rows.Err()
	}
	rows.Close()
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, ErrNotFound
	}

	items, err := s.items(ctx, id)
	if err != nil {
		return nil, err
	}
	stmt.Items = items
	return stmt, nil
}

func (s *SQLStore) items(ctx context.Context, statementID string) ([]settlement.Item, error) {
	rows, err := database.Query(ctx, s.drv, database.Builder(s.drv).
		Select(itemColumns...).
		From(entsql.Table("statement_items")).
		Where(entsql.EQ("statement_id", statementID)).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	out := []settlement.Item{}
	for rows.Next() {
		var (
			it                      settlement.Item
			id, stmtID, kind        string
			position                int
			start, end              string
			factor, breakdown       string
			allocated, adv, balance string
		)
		if err := rows.Scan(&id, &stmtID, &position, &it.IntervalKey, &it.UnitID, &kind,
			&it.ContractID, &it.TenantID, &start, &end, &it.Days, &factor,
			&it.Occupants, &breakdown, &allocated, &adv, &balance); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Kind = occupancy.Kind(kind)
		if it.Start, err = types.ParseDate(start); err != nil {
			return nil, err
		}
		if it.End, err = types.ParseDate(end); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(breakdown), &it.Breakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown of %s: %w", it.IntervalKey, err)
		}
		if err := parseDecimals(
			[]string{factor, allocated, adv, balance},
			[]*decimal.Decimal{&it.DayFactor, &it.AllocatedCost, &it.AdvancePayments, &it.Balance},
		); err != nil {
			return nil, fmt.Errorf("item %s: %w", it.IntervalKey, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListStatements(ctx context.Context, buildingID string, opts ListOptions) ([]settlement.Statement, error) {
	rows, err := database.Query(ctx, s.drv, database.Builder(s.drv).
		Select(statementColumns...).
		From(entsql.Table("statements")).
		Where(entsql.EQ("building_id", buildingID)).
		OrderBy(entsql.Desc("period_start"), entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(opts.limit()))
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	defer rows.Close()

	var out []settlement.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *stmt)
	}
	return out, rows.Err()
}

func scanStatement(rows *entsql.Rows) (*settlement.Statement, error) {
	var (
		stmt                              settlement.Statement
		start, end, status                string
		unitIDs, pools, warnings          string
		poolTotal, allocated, unallocated string
		advance, balance, createdAt       string
	)
	if err := rows.Scan(&stmt.ID, &stmt.BuildingID, &start, &end, &status, &stmt.Currency,
		&unitIDs, &pools, &warnings, &poolTotal, &allocated, &unallocated,
		&advance, &balance, &createdAt, &stmt.CreatedBy); err != nil {
		return nil, fmt.Errorf("scanning statement: %w", err)
	}
	period, err := types.ParsePeriod(start, end)
	if err != nil {
		return nil, fmt.Errorf("statement %s: %w", stmt.ID, err)
	}
	stmt.Period = period
	stmt.Status = settlement.Status(status)
	if stmt.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("statement %s: parsing created_at: %w", stmt.ID, err)
	}
	for _, f := range []struct {
		raw string
		dst any
	}{{unitIDs, &stmt.UnitIDs}, {pools, &stmt.Pools}, {warnings, &stmt.Warnings}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("statement %s: %w", stmt.ID, err)
		}
	}
	if err := parseDecimals(
		[]string{poolTotal, allocated, unallocated, advance, balance},
		[]*decimal.Decimal{&stmt.PoolTotal, &stmt.TotalAllocated, &stmt.UnallocatedTotal, &stmt.AdvanceTotal, &stmt.BalanceTotal},
	); err != nil {
		return nil, fmt.Errorf("statement %s: %w", stmt.ID, err)
	}
	return &stmt, nil
}

func (s *SQLStore) SaveDraft(ctx context.Context, d Draft) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	req, err := json.Marshal(d.Request)
	if err != nil {
		return fmt.Errorf("encoding draft request: %w", err)
	}
	_, err = database.Exec(ctx, s.drv, database.Builder(s.drv).
		Insert("drafts").
		Columns("id", "building_id", "request", "updated_at", "updated_by").
		Values(d.ID, d.BuildingID, string(req), d.UpdatedAt.UTC().Format(timeLayout), d.UpdatedBy).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()))
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", d.ID, err)
	}
	return nil
}

func (s *SQLStore) GetDraft(ctx context.Context, id string) (Draft, error) {
	rows, err := database.Query(ctx, s.drv, database.Builder(s.drv).
		Select("id", "building_id", "request", "updated_at", "updated_by").
		From(entsql.Table("drafts")).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return Draft{}, fmt.Errorf("querying draft: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Draft{}, err
		}
		return Draft{}, ErrNotFound
	}
	var (
		d              Draft
		req, updatedAt string
	)
	if err := rows.Scan(&d.ID, &d.BuildingID, &req, &updatedAt, &d.UpdatedBy); err != nil {
		return Draft{}, fmt.Errorf("scanning draft: %w", err)
	}
	if err := json.Unmarshal([]byte(req), &d.Request); err != nil {
		return Draft{}, fmt.Errorf("decoding draft %s: %w", d.ID, err)
	}
	if d.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Draft{}, fmt.Errorf("draft %s: parsing updated_at: %w", d.ID, err)
	}
	return d, nil
}

func parseDecimals(raw []string, dst []*decimal.Decimal) error {
	var bad []string
	for i, r := range raw {
		v, err := decimal.NewFromString(r)
		if err != nil {
			bad = append(bad, r)
			continue
		}
		*dst[i] = v
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid decimal(s) %s", strings.Join(bad, ", "))
	}
	return nil
}
