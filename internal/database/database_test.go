package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *entsql.Driver {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	drv, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func countBuildings(t *testing.T, drv *entsql.Driver) int {
	t.Helper()
	rows, err := Query(context.Background(), drv, Builder(drv).Select(entsql.Count("*")).From(entsql.Table("buildings")))
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	return n
}

func TestMigrate_Idempotent(t *testing.T) {
	drv := openTemp(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, drv))
	require.NoError(t, Migrate(ctx, drv))
	assert.Equal(t, 0, countBuildings(t, drv))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	drv := openTemp(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, drv))

	insert := func(id string) entsql.Querier {
		return Builder(drv).Insert("buildings").Columns("id", "name").Values(id, "x")
	}

	boom := errors.New("boom")
	err := InTx(ctx, drv, func(tx dialect.Tx) error {
		if _, err := Exec(ctx, tx, insert("b1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countBuildings(t, drv))

	require.NoError(t, InTx(ctx, drv, func(tx dialect.Tx) error {
		_, err := Exec(ctx, tx, insert("b2"))
		return err
	}))
	assert.Equal(t, 1, countBuildings(t, drv))
}

func TestMigrate_ForeignKeysEnforced(t *testing.T) {
	drv := openTemp(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, drv))

	_, err := Exec(ctx, drv, Builder(drv).Insert("units").Columns("id", "building_id").Values("u1", "missing"))
	assert.Error(t, err)
}
