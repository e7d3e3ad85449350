package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfeed/internal/contracts"
	"gridfeed/internal/ingest"
)

// Integration tests; they need a live Postgres and are skipped without one.
func testRepository(t *testing.T) *Repository {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping database integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE minute_bars, daily_official`)
	require.NoError(t, err)

	return NewRepository(pool)
}

func sessionDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBatch(symbol string, date time.Time, indexes ...int) ingest.SymbolBatch {
	batch := ingest.SymbolBatch{Symbol: symbol}
	for _, idx := range indexes {
		batch.Bars = append(batch.Bars, contracts.MinuteBar{
			Symbol:      symbol,
			Timestamp:   date.Add(time.Duration(idx) * time.Minute),
			SessionDate: date,
			MinuteIndex: idx,
			Open:        100.0,
			High:        100.5,
			Low:         99.5,
			Close:       100.2,
			AdjClose:    100.2,
			Volume:      1000,
		})
	}
	batch.Daily = append(batch.Daily, contracts.DailyOfficial{
		Symbol:        symbol,
		SessionDate:   date,
		OfficialOpen:  100.0,
		OfficialClose: 100.2,
		SourceOpen:    contracts.SourceFirstMinuteBar,
		SourceClose:   contracts.SourceLastMinuteBar,
	})
	return batch
}

func TestSaveRunIdempotent(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	date := sessionDate(2026, 8, 24)

	written, err := repo.SaveRun(ctx, []ingest.SymbolBatch{testBatch("SBER.ME", date, 1, 2, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, written["SBER.ME"])

	// Re-ingesting the same minutes writes nothing new
	written, err = repo.SaveRun(ctx, []ingest.SymbolBatch{testBatch("SBER.ME", date, 1, 2, 3, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, written["SBER.ME"])

	bars, err := repo.SessionBars(ctx, "SBER.ME", date)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	for i, b := range bars {
		assert.Equal(t, i+1, b.MinuteIndex)
	}
}

func TestSaveRunRefreshesDailyOfficial(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	date := sessionDate(2026, 8, 24)

	_, err := repo.SaveRun(ctx, []ingest.SymbolBatch{testBatch("SBER.ME", date, 1)})
	require.NoError(t, err)

	refreshed := testBatch("SBER.ME", date, 1)
	refreshed.Daily[0].OfficialClose = 101.7
	refreshed.Daily[0].SourceClose = contracts.SourceDailyBar
	_, err = repo.SaveRun(ctx, []ingest.SymbolBatch{refreshed})
	require.NoError(t, err)

	records, err := repo.DailyOfficials(ctx, "SBER.ME", date, date)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 101.7, records[0].OfficialClose)
	assert.Equal(t, contracts.SourceDailyBar, records[0].SourceClose)
	assert.True(t, records[0].UpdatedAt.After(records[0].CreatedAt) || records[0].UpdatedAt.Equal(records[0].CreatedAt))
}

func TestCoverage(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	mon := sessionDate(2026, 8, 24)
	tue := sessionDate(2026, 8, 25)

	_, err := repo.SaveRun(ctx, []ingest.SymbolBatch{
		testBatch("SBER.ME", mon, 1, 2, 3),
		testBatch("GAZP.ME", tue, 1),
	})
	require.NoError(t, err)

	coverage, err := repo.Coverage(ctx, []string{"SBER.ME", "GAZP.ME"}, mon, tue)
	require.NoError(t, err)
	require.Len(t, coverage, 2)

	assert.Equal(t, "SBER.ME", coverage[0].Symbol)
	assert.Equal(t, 3, coverage[0].BarCount)
	assert.Equal(t, "GAZP.ME", coverage[1].Symbol)
	assert.Equal(t, 1, coverage[1].BarCount)
}

func TestSummary(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	summary, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.MinuteBars)
	assert.Nil(t, summary.FirstSession)

	_, err = repo.SaveRun(ctx, []ingest.SymbolBatch{testBatch("SBER.ME", sessionDate(2026, 8, 24), 1, 2)})
	require.NoError(t, err)

	summary, err = repo.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.MinuteBars)
	assert.Equal(t, int64(1), summary.DailyRecords)
	assert.Equal(t, 1, summary.Symbols)
	require.NotNil(t, summary.FirstSession)
}
