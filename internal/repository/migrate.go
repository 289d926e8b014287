package repository

import (
	"context"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Timestamps are stored as unix milliseconds so both dialects share one DDL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS extraction_jobs (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		tenant_id    TEXT NOT NULL,
		status       TEXT NOT NULL,
		file_name    TEXT NOT NULL,
		file_type    TEXT NOT NULL,
		file_size    BIGINT NOT NULL DEFAULT 0,
		page_count   INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		result       TEXT,
		error_code   TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		created_at   BIGINT NOT NULL,
		updated_at   BIGINT NOT NULL,
		completed_at BIGINT,
		confirmed_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS extraction_jobs_status_updated ON extraction_jobs (status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS correction_records (
		id               TEXT PRIMARY KEY,
		tenant_id        TEXT NOT NULL,
		operator_id      TEXT NOT NULL,
		source_context   TEXT NOT NULL,
		source_label     TEXT NOT NULL DEFAULT '',
		wrong_extraction TEXT NOT NULL DEFAULT '',
		correct_value    TEXT NOT NULL,
		correct_field    TEXT NOT NULL,
		reasoning        TEXT NOT NULL DEFAULT '',
		cv_hash          TEXT NOT NULL DEFAULT '',
		usage_count      INTEGER NOT NULL DEFAULT 0,
		last_used_at     BIGINT,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS correction_records_tenant_created ON correction_records (tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS segment_assignments (
		id              TEXT PRIMARY KEY,
		tenant_id       TEXT NOT NULL,
		operator_id     TEXT NOT NULL,
		original_text   TEXT NOT NULL,
		normalized_text TEXT NOT NULL,
		detected_type   TEXT NOT NULL DEFAULT '',
		context         TEXT NOT NULL DEFAULT '',
		assigned_field  TEXT NOT NULL,
		assigned_value  TEXT NOT NULL DEFAULT '',
		usage_count     INTEGER NOT NULL DEFAULT 0,
		last_used_at    BIGINT,
		created_at      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS segment_assignments_tenant ON segment_assignments (tenant_id, normalized_text)`,
	`CREATE TABLE IF NOT EXISTS field_accuracy_metrics (
		tenant_id             TEXT NOT NULL,
		field_name            TEXT NOT NULL,
		total_extractions     INTEGER NOT NULL DEFAULT 0,
		correct_extractions   INTEGER NOT NULL DEFAULT 0,
		corrected_extractions INTEGER NOT NULL DEFAULT 0,
		null_extractions      INTEGER NOT NULL DEFAULT 0,
		updated_at            BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, field_name)
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_field_synonyms (
		tenant_id        TEXT NOT NULL,
		normalized_label TEXT NOT NULL,
		source_label     TEXT NOT NULL,
		canonical_field  TEXT NOT NULL,
		created_by       TEXT NOT NULL,
		created_at       BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, normalized_label)
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_skill_aliases (
		tenant_id        TEXT NOT NULL,
		normalized_alias TEXT NOT NULL,
		alias            TEXT NOT NULL,
		canonical_skill  TEXT NOT NULL,
		created_by       TEXT NOT NULL,
		created_at       BIGINT NOT NULL,
		PRIMARY KEY (tenant_id, normalized_alias)
	)`,
	`CREATE TABLE IF NOT EXISTS canonical_skills (
		skill_key TEXT PRIMARY KEY,
		name      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quota_counters (
		counter_key  TEXT NOT NULL,
		bucket_start BIGINT NOT NULL,
		hits         INTEGER NOT NULL DEFAULT 0,
		expires_at   BIGINT NOT NULL,
		PRIMARY KEY (counter_key, bucket_start)
	)`,
}

// columns added after a table first shipped
var addedColumns = []struct{ table, column, typ string }{
	{"extraction_jobs", "confirmed_at", "BIGINT"},
}

// Migrate creates missing tables, indexes and columns. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			db.log.Error("db.migrate.failed", zap.Error(err))
			return errors.Wrap(err, "migrate")
		}
	}
	for _, c := range addedColumns {
		if err := db.addColumn(ctx, c.table, c.column, c.typ); err != nil {
			db.log.Error("db.migrate.failed", zap.String("column", c.table+"."+c.column), zap.Error(err))
			return errors.Wrap(err, "migrate")
		}
	}
	db.log.Info("db.migrate.ok", zap.Int("statements", len(schema)+len(addedColumns)))
	return nil
}

func (db *DB) addColumn(ctx context.Context, table, column, typ string) error {
	if db.Dialect == dialect.Postgres {
		stmt := "ALTER TABLE " + table + " ADD COLUMN IF NOT EXISTS " + column + " " + typ
		return db.Driver.Exec(ctx, stmt, []any{}, nil)
	}
	stmt := "ALTER TABLE " + table + " ADD COLUMN " + column + " " + typ
	err := db.Driver.Exec(ctx, stmt, []any{}, nil)
	if err != nil && strings.Contains(err.Error(), "duplicate column name") {
		return nil
	}
	return err
}
