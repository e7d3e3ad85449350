package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfeed/internal/calendar"
	"gridfeed/internal/store"
	"gridfeed/pkg/config"
	"gridfeed/pkg/logger"
)

type stubCoverage struct {
	coverage []store.SessionCoverage
}

func (s *stubCoverage) Coverage(context.Context, []string, time.Time, time.Time) ([]store.SessionCoverage, error) {
	return s.coverage, nil
}

func testReporter(t *testing.T, coverage []store.SessionCoverage) (*Reporter, *calendar.Calendar) {
	t.Helper()
	cal, err := calendar.New(config.SessionConfig{
		Timezone:       "Europe/Moscow",
		OpenHour:       10,
		OpenMinute:     0,
		SessionMinutes: 480,
	})
	require.NoError(t, err)
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	return NewReporter(&stubCoverage{coverage: coverage}, cal, log), cal
}

func mskDate(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func TestReportStrictUsability(t *testing.T) {
	mon := mskDate(t, 2026, time.August, 24)

	reporter, _ := testReporter(t, []store.SessionCoverage{
		{Symbol: "SBER.ME", SessionDate: mon, BarCount: 480},
		{Symbol: "GAZP.ME", SessionDate: mon, BarCount: 479},
	})

	report, err := reporter.Report(context.Background(), []string{"SBER.ME", "GAZP.ME"}, mon, mon)
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 2)
	assert.Equal(t, 2, report.TotalSessions)
	assert.Equal(t, 1, report.UsableSessions)
	assert.Equal(t, 1, report.RejectedSessions)
	assert.InDelta(t, 0.5, report.UsableRatio(), 1e-9)

	bySymbol := make(map[string]Verdict)
	for _, v := range report.Verdicts {
		bySymbol[v.Symbol] = v
	}

	assert.True(t, bySymbol["SBER.ME"].Usable)
	assert.Equal(t, 0, bySymbol["SBER.ME"].Missing)

	// One missing minute disqualifies the whole session
	assert.False(t, bySymbol["GAZP.ME"].Usable)
	assert.Equal(t, 1, bySymbol["GAZP.ME"].Missing)
}

func TestReportGradesAbsentSessions(t *testing.T) {
	mon := mskDate(t, 2026, time.August, 24)
	tue := mskDate(t, 2026, time.August, 25)

	reporter, _ := testReporter(t, []store.SessionCoverage{
		{Symbol: "SBER.ME", SessionDate: mon, BarCount: 480},
	})

	report, err := reporter.Report(context.Background(), []string{"SBER.ME"}, mon, tue)
	require.NoError(t, err)

	require.Len(t, report.Verdicts, 2)
	absent := report.Verdicts[1]
	assert.Equal(t, tue.Format("2006-01-02"), absent.SessionDate.Format("2006-01-02"))
	assert.Equal(t, 0, absent.BarCount)
	assert.Equal(t, 480, absent.Missing)
	assert.False(t, absent.Usable)

	assert.Equal(t, 1, report.UsableSessions)
	assert.Equal(t, 1, report.RejectedSessions)
}

func TestReportSkipsWeekends(t *testing.T) {
	fri := mskDate(t, 2026, time.August, 28)
	nextMon := mskDate(t, 2026, time.August, 31)

	reporter, _ := testReporter(t, nil)

	report, err := reporter.Report(context.Background(), []string{"SBER.ME"}, fri, nextMon)
	require.NoError(t, err)

	// Friday and Monday only; Saturday and Sunday are not sessions
	assert.Equal(t, 2, report.TotalSessions)
}

func TestReportEmptyRange(t *testing.T) {
	reporter, _ := testReporter(t, nil)

	sat := mskDate(t, 2026, time.August, 29)
	report, err := reporter.Report(context.Background(), []string{"SBER.ME"}, sat, sat)
	require.NoError(t, err)

	assert.Zero(t, report.TotalSessions)
	assert.Zero(t, report.UsableRatio())
}
