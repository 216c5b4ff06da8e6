// Package database opens the SQL driver shared by the source and statement
// stores and owns the table definitions. Queries are built with ent's
// dialect-aware SQL builder so the same code runs on SQLite and Postgres.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DefaultDSN is the SQLite file used when no DSN is configured.
const DefaultDSN = "file:opcost.db?_pragma=foreign_keys(1)"

// Open connects to dsn. postgres:// and postgresql:// DSNs use pgx; anything
// else is handed to SQLite.
func Open(ctx context.Context, dsn string) (*entsql.Driver, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	name, dia := "sqlite", dialect.SQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		name, dia = "pgx", dialect.Postgres
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dia == dialect.SQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return entsql.OpenDB(dia, db), nil
}

// Builder returns the SQL builder for the driver's dialect.
func Builder(drv dialect.Driver) *entsql.DialectBuilder {
	return entsql.Dialect(drv.Dialect())
}

// Exec runs a built statement.
func Exec(ctx context.Context, ex dialect.ExecQuerier, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	var res sql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Query runs a built select. The caller closes the rows.
func Query(ctx context.Context, ex dialect.ExecQuerier, q entsql.Querier) (*entsql.Rows, error) {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InTx runs fn in a transaction, rolling back when fn fails.
func InTx(ctx context.Context, drv dialect.Driver, fn func(tx dialect.Tx) error) error {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Values converts strings into builder arguments.
func Values(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
