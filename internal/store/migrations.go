package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the baseline tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS baselines (
		name           TEXT PRIMARY KEY,
		version        TEXT NOT NULL DEFAULT '',
		command        TEXT NOT NULL DEFAULT '[]',
		peak_rss_bytes INTEGER NOT NULL,
		peak_vsz_bytes INTEGER NOT NULL,
		duration_ms    INTEGER NOT NULL,
		created_at     TEXT NOT NULL,
		platform       TEXT NOT NULL DEFAULT '',
		arch           TEXT NOT NULL DEFAULT '',
		main_pid       INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_baselines_created_at ON baselines(created_at)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
