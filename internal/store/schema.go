package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// minute_bars is write-once: the primary key plus ON CONFLICT DO NOTHING
// makes re-ingestion a no-op for minutes already on disk.
// daily_official is the one mutable surface; re-ingestion refreshes it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS minute_bars (
		symbol          TEXT             NOT NULL,
		session_date    DATE             NOT NULL,
		minute_index    INT              NOT NULL,
		bar_time        TIMESTAMPTZ      NOT NULL,
		open_price      DOUBLE PRECISION NOT NULL,
		high_price      DOUBLE PRECISION NOT NULL,
		low_price       DOUBLE PRECISION NOT NULL,
		close_price     DOUBLE PRECISION NOT NULL,
		adjusted_close  DOUBLE PRECISION NOT NULL,
		volume          BIGINT           NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, session_date, minute_index)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_minute_bars_session
		ON minute_bars (session_date)`,

	`CREATE TABLE IF NOT EXISTS daily_official (
		symbol          TEXT             NOT NULL,
		session_date    DATE             NOT NULL,
		official_open   DOUBLE PRECISION NOT NULL,
		official_close  DOUBLE PRECISION NOT NULL,
		source_open     TEXT             NOT NULL,
		source_close    TEXT             NOT NULL,
		created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, session_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_daily_official_date
		ON daily_official (session_date)`,
}

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent, so running it on every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
