package database

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
)

// Dates are stored as YYYY-MM-DD text and money as decimal text, which keeps
// the schema identical across SQLite and Postgres.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS buildings (
		id      TEXT PRIMARY KEY,
		name    TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		id          TEXT PRIMARY KEY,
		building_id TEXT NOT NULL REFERENCES buildings(id),
		label       TEXT NOT NULL DEFAULT '',
		area        TEXT,
		rooms       INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_units_building ON units (building_id)`,
	`CREATE TABLE IF NOT EXISTS lease_contracts (
		id         TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL,
		unit_id    TEXT NOT NULL REFERENCES units(id),
		term_start TEXT NOT NULL,
		term_end   TEXT,
		occupants  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lease_contracts_unit ON lease_contracts (unit_id)`,
	`CREATE TABLE IF NOT EXISTS cost_categories (
		id          TEXT PRIMARY KEY,
		main        TEXT NOT NULL,
		sub         TEXT NOT NULL DEFAULT '',
		default_key TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cost_entries (
		id          TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES cost_categories(id),
		building_id TEXT NOT NULL DEFAULT '',
		unit_id     TEXT NOT NULL DEFAULT '',
		entry_date  TEXT NOT NULL,
		amount      TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		origin      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_entries_building_date ON cost_entries (building_id, entry_date)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_entries_unit_date ON cost_entries (unit_id, entry_date)`,
	`CREATE TABLE IF NOT EXISTS advance_payments (
		id            TEXT PRIMARY KEY,
		contract_id   TEXT NOT NULL REFERENCES lease_contracts(id),
		payment_month TEXT NOT NULL,
		amount        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_advance_payments_contract ON advance_payments (contract_id, payment_month)`,
	`CREATE TABLE IF NOT EXISTS statements (
		id                TEXT PRIMARY KEY,
		building_id       TEXT NOT NULL,
		period_start      TEXT NOT NULL,
		period_end        TEXT NOT NULL,
		status            TEXT NOT NULL,
		currency          TEXT NOT NULL,
		unit_ids          TEXT NOT NULL,
		pools             TEXT NOT NULL,
		warnings          TEXT NOT NULL,
		pool_total        TEXT NOT NULL,
		total_allocated   TEXT NOT NULL,
		unallocated_total TEXT NOT NULL,
		advance_total     TEXT NOT NULL,
		balance_total     TEXT NOT NULL,
		created_at        TEXT NOT NULL,
		created_by        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_building ON statements (building_id, period_start)`,
	`CREATE TABLE IF NOT EXISTS statement_items (
		id               TEXT PRIMARY KEY,
		statement_id     TEXT NOT NULL REFERENCES statements(id),
		position         INTEGER NOT NULL,
		interval_key     TEXT NOT NULL,
		unit_id          TEXT NOT NULL,
		kind             TEXT NOT NULL,
		contract_id      TEXT NOT NULL DEFAULT '',
		tenant_id        TEXT NOT NULL DEFAULT '',
		start_date       TEXT NOT NULL,
		end_date         TEXT NOT NULL,
		days             INTEGER NOT NULL,
		day_factor       TEXT NOT NULL,
		occupants        INTEGER NOT NULL,
		breakdown        TEXT NOT NULL,
		allocated_cost   TEXT NOT NULL,
		advance_payments TEXT NOT NULL,
		balance          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_statement_items_statement ON statement_items (statement_id, position)`,
	`CREATE TABLE IF NOT EXISTS drafts (
		id          TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		request     TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		updated_by  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_entries (
		event_id            TEXT NOT NULL,
		event_type          TEXT NOT NULL,
		occurred_at         TEXT NOT NULL,
		indexed_entity_type TEXT NOT NULL,
		indexed_entity_id   TEXT NOT NULL,
		entity_role         TEXT NOT NULL,
		source_refs         TEXT NOT NULL DEFAULT '[]',
		summary             TEXT NOT NULL,
		category            TEXT NOT NULL,
		weight              TEXT NOT NULL,
		polarity            TEXT NOT NULL,
		payload             TEXT NOT NULL DEFAULT 'null',
		PRIMARY KEY (indexed_entity_type, indexed_entity_id, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_entity_time ON activity_entries (indexed_entity_type, indexed_entity_id, occurred_at)`,
}

// Migrate creates all tables and indexes. It is idempotent.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	for _, ddl := range tables {
		var res sql.Result
		if err := drv.Exec(ctx, ddl, []any{}, &res); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}
