package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	pkgerrors "demeter/pkg/errors"
)

// Schema DDL is applied at startup so a fresh database is usable without a
// separate migration step. Statements are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS daily_aggregates (
		date            DATE        NOT NULL,
		cost_type       TEXT        NOT NULL,
		dimension_key   TEXT        NOT NULL DEFAULT '',
		dimension_value TEXT        NOT NULL DEFAULT '',
		total_cost_usd  NUMERIC(18,6) NOT NULL DEFAULT 0,
		total_quantity  BIGINT      NOT NULL DEFAULT 0,
		request_count   BIGINT      NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (date, cost_type, dimension_key, dimension_value)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_aggregates_dimension
		ON daily_aggregates (cost_type, dimension_key, date)
		WHERE dimension_key <> ''`,
	`CREATE TABLE IF NOT EXISTS budget_thresholds (
		id                    SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		daily_threshold_usd   NUMERIC(18,6) NOT NULL,
		monthly_threshold_usd NUMERIC(18,6) NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the cost accounting tables if they do not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return pkgerrors.Wrap(err, "failed to ensure postgres schema")
		}
	}
	return nil
}
