package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/opcost/internal/allocation"
	"github.com/matthewbaird/opcost/internal/costpool"
	"github.com/matthewbaird/opcost/internal/database"
	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/occupancy"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?_pragma=foreign_keys(1)"
	drv, err := database.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	require.NoError(t, database.Migrate(ctx, drv))
	return NewSQLStore(drv)
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sql":    newSQLStore(t),
	}
}

func statement(t *testing.T, start, end string) *settlement.Statement {
	t.Helper()
	p, err := types.ParsePeriod(start, end)
	require.NoError(t, err)
	return &settlement.Statement{
		BuildingID: "b1",
		Period:     p,
		UnitIDs:    []string{"u1"},
		Status:     settlement.StatusCompleted,
		Currency:   "EUR",
		Pools: []settlement.PoolSummary{
			{PoolID: "heat", Category: "Heating", Key: types.KeyAreaWeighted, Total: d("1000"), Allocated: d("1000"), EntryCount: 2},
		},
		PoolTotal:        d("1000"),
		TotalAllocated:   d("1000"),
		UnallocatedTotal: decimal.Zero,
		AdvanceTotal:     d("600"),
		BalanceTotal:     d("400"),
		Items: []settlement.Item{
			{
				IntervalKey: "c1", UnitID: "u1", Kind: occupancy.KindLeased, ContractID: "c1", TenantID: "t1",
				Start: p.Start, End: p.Start.AddDate(0, 6, -1), Days: 181, DayFactor: d("0.4958904109589041"), Occupants: 2,
				Breakdown:     []settlement.Line{{PoolID: "heat", Category: "Heating", Key: types.KeyAreaWeighted, Amount: d("495.89")}},
				AllocatedCost: d("495.89"), AdvancePayments: d("600"), Balance: d("-104.11"),
			},
			{
				IntervalKey: occupancy.VacantKey("u1", p.Start.AddDate(0, 6, 0)), UnitID: "u1", Kind: occupancy.KindVacant,
				Start: p.Start.AddDate(0, 6, 0), End: p.End, Days: 184, DayFactor: d("0.5041095890410959"),
				Breakdown:     []settlement.Line{{PoolID: "heat", Category: "Heating", Key: types.KeyAreaWeighted, Amount: d("504.11")}},
				AllocatedCost: d("504.11"), AdvancePayments: decimal.Zero, Balance: d("504.11"),
			},
		},
		Warnings:  []allocation.Warning{allocation.EmptyPoolWarning("water")},
		CreatedBy: "alice",
	}
}

func TestSaveCompleted_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stmt := statement(t, "2023-01-01", "2023-12-31")
			require.NoError(t, s.SaveCompleted(ctx, stmt))
			require.NotEmpty(t, stmt.ID)
			require.False(t, stmt.CreatedAt.IsZero())

			got, err := s.GetStatement(ctx, stmt.ID)
			require.NoError(t, err)
			assert.Equal(t, stmt.BuildingID, got.BuildingID)
			assert.Equal(t, stmt.Period, got.Period)
			assert.Equal(t, settlement.StatusCompleted, got.Status)
			assert.Equal(t, []string{"u1"}, got.UnitIDs)
			assert.True(t, got.BalanceTotal.Equal(d("400")))
			assert.True(t, got.CreatedAt.Equal(stmt.CreatedAt))
			assert.Equal(t, "alice", got.CreatedBy)
			require.Len(t, got.Warnings, 1)
			assert.Equal(t, allocation.WarnEmptyPool, got.Warnings[0].Code)
			require.Len(t, got.Pools, 1)
			assert.Equal(t, 2, got.Pools[0].EntryCount)

			require.Len(t, got.Items, 2)
			assert.Equal(t, "c1", got.Items[0].IntervalKey)
			assert.True(t, got.Items[0].Balance.Equal(d("-104.11")))
			assert.Equal(t, occupancy.KindVacant, got.Items[1].Kind)
			assert.True(t, got.Items[1].End.Equal(stmt.Period.End))
			require.Len(t, got.Items[1].Breakdown, 1)
			assert.True(t, got.Items[1].Breakdown[0].Amount.Equal(d("504.11")))
		})
	}
}

func TestSaveCompleted_Once(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stmt := statement(t, "2023-01-01", "2023-12-31")
			require.NoError(t, s.SaveCompleted(ctx, stmt))
			err := s.SaveCompleted(ctx, stmt)
			assert.True(t, errors.Is(err, ErrExists), "got %v", err)

			draft := statement(t, "2023-01-01", "2023-12-31")
			draft.Status = settlement.StatusDraft
			assert.True(t, errors.Is(s.SaveCompleted(ctx, draft), ErrNotCompleted))
		})
	}
}

func TestListStatements_LatestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older := statement(t, "2022-01-01", "2022-12-31")
			newer := statement(t, "2023-01-01", "2023-12-31")
			other := statement(t, "2023-01-01", "2023-12-31")
			other.BuildingID = "b2"
			for _, st := range []*settlement.Statement{older, newer, other} {
				require.NoError(t, s.SaveCompleted(ctx, st))
			}

			list, err := s.ListStatements(ctx, "b1", ListOptions{})
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, newer.ID, list[0].ID)
			assert.Equal(t, older.ID, list[1].ID)
			assert.Empty(t, list[0].Items)

			list, err = s.ListStatements(ctx, "b1", ListOptions{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestDrafts_Upsert(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p, _ := types.ParsePeriod("2023-01-01", "2023-12-31")
			draft := Draft{
				ID:         "d1",
				BuildingID: "b1",
				Request: engine.Request{
					Period: p,
					Pools:  []costpool.Selection{{CategoryID: "heat"}},
				},
				UpdatedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
				UpdatedBy: "alice",
			}
			require.NoError(t, s.SaveDraft(ctx, draft))

			draft.Request.Pools = append(draft.Request.Pools, costpool.Selection{CategoryID: "repairs", Key: types.KeyDirect})
			draft.Request.DirectAllocations = allocation.DirectMap{"repairs": {"c1": d("12.50")}}
			draft.UpdatedBy = "bob"
			require.NoError(t, s.SaveDraft(ctx, draft))

			got, err := s.GetDraft(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "bob", got.UpdatedBy)
			assert.Equal(t, p, got.Request.Period)
			require.Len(t, got.Request.Pools, 2)
			assert.Equal(t, types.KeyDirect, got.Request.Pools[1].Key)
			assert.True(t, got.Request.DirectAllocations["repairs"]["c1"].Equal(d("12.5")))
			assert.True(t, got.UpdatedAt.Equal(draft.UpdatedAt))

			_, err = s.GetDraft(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestGetStatement_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetStatement(context.Background(), "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}
