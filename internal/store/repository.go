package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gridfeed/internal/contracts"
	"gridfeed/internal/ingest"
)

// Repository is the Postgres persistence layer for the bar dataset
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun persists all symbol batches of an ingestion run in a single
// transaction. Minute bars are insert-only (existing rows are left
// untouched); daily official records are upserted. Returns the number of
// minute bars actually written per symbol.
func (r *Repository) SaveRun(ctx context.Context, batches []ingest.SymbolBatch) (map[string]int, error) {
	written := make(map[string]int, len(batches))
	if len(batches) == 0 {
		return written, nil
	}

	barQuery := `
		INSERT INTO minute_bars (
			symbol, session_date, minute_index, bar_time,
			open_price, high_price, low_price, close_price,
			adjusted_close, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, session_date, minute_index) DO NOTHING`

	dailyQuery := `
		INSERT INTO daily_official (
			symbol, session_date, official_open, official_close,
			source_open, source_close
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, session_date) DO UPDATE SET
			official_open = EXCLUDED.official_open,
			official_close = EXCLUDED.official_close,
			source_open = EXCLUDED.source_open,
			source_close = EXCLUDED.source_close,
			updated_at = NOW()`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, batch := range batches {
		for _, b := range batch.Bars {
			ct, err := tx.Exec(ctx, barQuery,
				b.Symbol, b.SessionDate, b.MinuteIndex, b.Timestamp,
				b.Open, b.High, b.Low, b.Close,
				b.AdjClose, b.Volume,
			)
			if err != nil {
				return nil, fmt.Errorf("insert minute bar for %s: %w", batch.Symbol, err)
			}
			written[batch.Symbol] += int(ct.RowsAffected())
		}

		for _, d := range batch.Daily {
			_, err := tx.Exec(ctx, dailyQuery,
				d.Symbol, d.SessionDate, d.OfficialOpen, d.OfficialClose,
				d.SourceOpen, d.SourceClose,
			)
			if err != nil {
				return nil, fmt.Errorf("upsert daily official for %s: %w", batch.Symbol, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return written, nil
}

// SessionBars returns one symbol/session's bars ascending by minute index
func (r *Repository) SessionBars(ctx context.Context, symbol string, sessionDate time.Time) ([]contracts.MinuteBar, error) {
	query := `
		SELECT symbol, session_date, minute_index, bar_time,
			   open_price, high_price, low_price, close_price,
			   adjusted_close, volume
		FROM minute_bars
		WHERE symbol = $1 AND session_date = $2
		ORDER BY minute_index`

	rows, err := r.pool.Query(ctx, query, symbol, sessionDate)
	if err != nil {
		return nil, fmt.Errorf("query session bars: %w", err)
	}
	defer rows.Close()

	var bars []contracts.MinuteBar
	for rows.Next() {
		var b contracts.MinuteBar
		if err := rows.Scan(
			&b.Symbol, &b.SessionDate, &b.MinuteIndex, &b.Timestamp,
			&b.Open, &b.High, &b.Low, &b.Close,
			&b.AdjClose, &b.Volume,
		); err != nil {
			return nil, fmt.Errorf("scan minute bar: %w", err)
		}
		bars = append(bars, b)
	}

	return bars, rows.Err()
}

// SessionCoverage is the number of stored minutes for one symbol/session
type SessionCoverage struct {
	Symbol      string    `json:"symbol"`
	SessionDate time.Time `json:"session_date"`
	BarCount    int       `json:"bar_count"`
}

// Coverage returns per-symbol/session bar counts over a date range,
// ascending by date then symbol. Sessions with no rows at all do not
// appear; callers decide whether absence means unknown or empty.
func (r *Repository) Coverage(ctx context.Context, symbols []string, from, to time.Time) ([]SessionCoverage, error) {
	query := `
		SELECT symbol, session_date, COUNT(*)
		FROM minute_bars
		WHERE symbol = ANY($1) AND session_date BETWEEN $2 AND $3
		GROUP BY symbol, session_date
		ORDER BY session_date, symbol`

	rows, err := r.pool.Query(ctx, query, symbols, from, to)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	defer rows.Close()

	var coverage []SessionCoverage
	for rows.Next() {
		var c SessionCoverage
		if err := rows.Scan(&c.Symbol, &c.SessionDate, &c.BarCount); err != nil {
			return nil, fmt.Errorf("scan coverage row: %w", err)
		}
		coverage = append(coverage, c)
	}

	return coverage, rows.Err()
}

// DailyOfficials returns the official open/close records for one symbol
// over a date range, ascending by session date.
func (r *Repository) DailyOfficials(ctx context.Context, symbol string, from, to time.Time) ([]contracts.DailyOfficial, error) {
	query := `
		SELECT symbol, session_date, official_open, official_close,
			   source_open, source_close, created_at, updated_at
		FROM daily_official
		WHERE symbol = $1 AND session_date BETWEEN $2 AND $3
		ORDER BY session_date`

	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily officials: %w", err)
	}
	defer rows.Close()

	var records []contracts.DailyOfficial
	for rows.Next() {
		var d contracts.DailyOfficial
		if err := rows.Scan(
			&d.Symbol, &d.SessionDate, &d.OfficialOpen, &d.OfficialClose,
			&d.SourceOpen, &d.SourceClose, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan daily official: %w", err)
		}
		records = append(records, d)
	}

	return records, rows.Err()
}

// DatasetSummary is a coarse inventory of what is on disk
type DatasetSummary struct {
	MinuteBars   int64      `json:"minute_bars"`
	DailyRecords int64      `json:"daily_records"`
	Symbols      int        `json:"symbols"`
	FirstSession *time.Time `json:"first_session,omitempty"`
	LastSession  *time.Time `json:"last_session,omitempty"`
}

// Summary reports dataset-wide totals for the data-check command
func (r *Repository) Summary(ctx context.Context) (*DatasetSummary, error) {
	var s DatasetSummary

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT symbol), MIN(session_date), MAX(session_date)
		FROM minute_bars`,
	).Scan(&s.MinuteBars, &s.Symbols, &s.FirstSession, &s.LastSession)
	if err != nil {
		return nil, fmt.Errorf("summarize minute bars: %w", err)
	}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM daily_official`).Scan(&s.DailyRecords); err != nil {
		return nil, fmt.Errorf("summarize daily officials: %w", err)
	}

	return &s, nil
}
