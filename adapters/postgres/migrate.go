package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the full DDL for the case corpus. Statements are idempotent so
// the migration can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS historical_cases (
		id         TEXT PRIMARY KEY,
		features   JSONB NOT NULL,
		outcome    TEXT NOT NULL DEFAULT '',
		embedding  JSONB,
		provider   TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_historical_cases_outcome
		ON historical_cases (outcome)`,
	`CREATE INDEX IF NOT EXISTS idx_historical_cases_created_at
		ON historical_cases (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_historical_cases_case_type
		ON historical_cases ((features->>'case_type'))`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
