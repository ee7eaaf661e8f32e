// Package bootstrap issues oracleplane's bookkeeping-store DDL
// idempotently, creating the engine's own six tables.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
)

// sqliteSchema is used when the bookkeeping store is modernc.org/sqlite.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS connections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	connection_string TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	source_connection_id INTEGER NOT NULL REFERENCES connections(id) ON DELETE CASCADE ON UPDATE CASCADE,
	target_connection_id INTEGER NOT NULL REFERENCES connections(id) ON DELETE CASCADE ON UPDATE CASCADE,
	schemas TEXT NOT NULL,
	exclude_object_types TEXT,
	exclude_object_names TEXT,
	disabled_drop_types TEXT,
	fail_fast INTEGER NOT NULL DEFAULT 0,
	disable_all_drops INTEGER NOT NULL DEFAULT 1,
	disable_hooks INTEGER NOT NULL DEFAULT 0,
	recompile_after_apply INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'IDLE',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deployments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id INTEGER NOT NULL REFERENCES plans(id) ON DELETE CASCADE ON UPDATE CASCADE,
	cutoff_date DATETIME,
	payload TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'IDLE',
	errors TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME,
	started_at DATETIME,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_deployments_plan_id ON deployments(plan_id);

CREATE TABLE IF NOT EXISTS changesets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deployment_id INTEGER NOT NULL REFERENCES deployments(id) ON DELETE CASCADE ON UPDATE CASCADE,
	object_type TEXT NOT NULL,
	object_name TEXT NOT NULL,
	object_owner TEXT NOT NULL,
	source_ddl_time DATETIME,
	source_ddl TEXT,
	target_ddl_time DATETIME,
	target_ddl TEXT,
	status TEXT NOT NULL DEFAULT 'IDLE',
	errors TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME,
	started_at DATETIME,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_changesets_deployment_id ON changesets(deployment_id);
CREATE INDEX IF NOT EXISTS idx_changesets_status ON changesets(status);

CREATE TABLE IF NOT EXISTS changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	changeset_id INTEGER NOT NULL REFERENCES changesets(id) ON DELETE CASCADE ON UPDATE CASCADE,
	script TEXT NOT NULL,
	rollback_script TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'IDLE',
	error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME,
	started_at DATETIME,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_changes_changeset_id ON changes(changeset_id);

CREATE TABLE IF NOT EXISTS rollbacks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	change_id INTEGER NOT NULL REFERENCES changes(id) ON DELETE CASCADE ON UPDATE CASCADE,
	script TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'IDLE',
	error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_rollbacks_change_id ON rollbacks(change_id);
`

// postgresSchema mirrors sqliteSchema with Postgres-native types, used when
// the bookkeeping store is lib/pq.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS connections (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	connection_string TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	source_connection_id INTEGER NOT NULL REFERENCES connections(id) ON DELETE CASCADE ON UPDATE CASCADE,
	target_connection_id INTEGER NOT NULL REFERENCES connections(id) ON DELETE CASCADE ON UPDATE CASCADE,
	schemas TEXT NOT NULL,
	exclude_object_types TEXT,
	exclude_object_names TEXT,
	disabled_drop_types TEXT,
	fail_fast BOOLEAN NOT NULL DEFAULT false,
	disable_all_drops BOOLEAN NOT NULL DEFAULT true,
	disable_hooks BOOLEAN NOT NULL DEFAULT false,
	recompile_after_apply BOOLEAN NOT NULL DEFAULT false,
	status TEXT NOT NULL DEFAULT 'IDLE',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deployments (
	id SERIAL PRIMARY KEY,
	plan_id INTEGER NOT NULL REFERENCES plans(id) ON DELETE CASCADE ON UPDATE CASCADE,
	cutoff_date TIMESTAMPTZ,
	payload TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'IDLE',
	errors TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ,
	started_at TIMESTAMPTZ,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_deployments_plan_id ON deployments(plan_id);

CREATE TABLE IF NOT EXISTS changesets (
	id SERIAL PRIMARY KEY,
	deployment_id INTEGER NOT NULL REFERENCES deployments(id) ON DELETE CASCADE ON UPDATE CASCADE,
	object_type TEXT NOT NULL,
	object_name TEXT NOT NULL,
	object_owner TEXT NOT NULL,
	source_ddl_time TIMESTAMPTZ,
	source_ddl TEXT,
	target_ddl_time TIMESTAMPTZ,
	target_ddl TEXT,
	status TEXT NOT NULL DEFAULT 'IDLE',
	errors TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ,
	started_at TIMESTAMPTZ,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_changesets_deployment_id ON changesets(deployment_id);
CREATE INDEX IF NOT EXISTS idx_changesets_status ON changesets(status);

CREATE TABLE IF NOT EXISTS changes (
	id SERIAL PRIMARY KEY,
	changeset_id INTEGER NOT NULL REFERENCES changesets(id) ON DELETE CASCADE ON UPDATE CASCADE,
	script TEXT NOT NULL,
	rollback_script TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'IDLE',
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ,
	started_at TIMESTAMPTZ,
	ended_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_changes_changeset_id ON changes(changeset_id);

CREATE TABLE IF NOT EXISTS rollbacks (
	id SERIAL PRIMARY KEY,
	change_id INTEGER NOT NULL REFERENCES changes(id) ON DELETE CASCADE ON UPDATE CASCADE,
	script TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'IDLE',
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_rollbacks_change_id ON rollbacks(change_id);
`

// Run issues the bookkeeping schema against db. dialect is "sqlite" or
// "postgres", matching the driver name the caller opened db with.
func Run(ctx context.Context, db *sql.DB, dialect string) error {
	var schema string
	switch dialect {
	case "sqlite":
		schema = sqliteSchema
	case "postgres":
		schema = postgresSchema
	default:
		return fmt.Errorf("bootstrap: unsupported dialect %q", dialect)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}
