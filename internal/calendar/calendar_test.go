package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfeed/pkg/config"
)

func testCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New(config.SessionConfig{
		Timezone:       "Europe/Moscow",
		OpenHour:       10,
		OpenMinute:     0,
		SessionMinutes: 480,
	})
	require.NoError(t, err)
	return cal
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New(config.SessionConfig{Timezone: "Not/AZone", SessionMinutes: 480})
	assert.Error(t, err)
}

func TestMinuteIndex_RoundTrip(t *testing.T) {
	cal := testCalendar(t)
	msk := cal.Location()

	tests := []struct {
		name      string
		ts        time.Time
		wantIndex int
		wantOK    bool
	}{
		{
			name:      "first tradable minute",
			ts:        time.Date(2026, 8, 28, 10, 0, 0, 0, msk),
			wantIndex: 1,
			wantOK:    true,
		},
		{
			name:      "last tradable minute",
			ts:        time.Date(2026, 8, 28, 17, 59, 0, 0, msk),
			wantIndex: 480,
			wantOK:    true,
		},
		{
			name:   "one minute before open",
			ts:     time.Date(2026, 8, 28, 9, 59, 0, 0, msk),
			wantOK: false,
		},
		{
			name:   "first minute after close",
			ts:     time.Date(2026, 8, 28, 18, 0, 0, 0, msk),
			wantOK: false,
		},
		{
			name:      "mid session",
			ts:        time.Date(2026, 8, 28, 14, 30, 0, 0, msk),
			wantIndex: 271,
			wantOK:    true,
		},
		{
			name:      "timestamp in another timezone",
			ts:        time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC), // 10:00 MSK
			wantIndex: 1,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := cal.MinuteIndex(tt.ts)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantIndex, idx)
			}
		})
	}
}

func TestSessionDate(t *testing.T) {
	cal := testCalendar(t)

	// 23:30 UTC on the 27th is already the 28th in Moscow
	ts := time.Date(2026, 8, 27, 23, 30, 0, 0, time.UTC)
	date := cal.SessionDate(ts)

	assert.Equal(t, 2026, date.Year())
	assert.Equal(t, time.August, date.Month())
	assert.Equal(t, 28, date.Day())
	assert.Equal(t, 0, date.Hour())
}

func TestWallTime(t *testing.T) {
	cal := testCalendar(t)

	h, m, err := cal.WallTime(1)
	require.NoError(t, err)
	assert.Equal(t, 10, h)
	assert.Equal(t, 0, m)

	h, m, err = cal.WallTime(480)
	require.NoError(t, err)
	assert.Equal(t, 17, h)
	assert.Equal(t, 59, m)

	h, m, err = cal.WallTime(61)
	require.NoError(t, err)
	assert.Equal(t, 11, h)
	assert.Equal(t, 0, m)

	_, _, err = cal.WallTime(0)
	assert.Error(t, err)

	_, _, err = cal.WallTime(481)
	assert.Error(t, err)
}

func TestWallTime_InvertsMinuteIndex(t *testing.T) {
	cal := testCalendar(t)
	msk := cal.Location()

	for _, idx := range []int{1, 2, 59, 60, 240, 479, 480} {
		h, m, err := cal.WallTime(idx)
		require.NoError(t, err)

		got, ok := cal.MinuteIndex(time.Date(2026, 8, 28, h, m, 30, 0, msk))
		require.True(t, ok)
		assert.Equal(t, idx, got)
	}
}

func TestRecentCompleteSessions(t *testing.T) {
	cal := testCalendar(t)
	msk := cal.Location()

	// Monday 2026-08-31: the 5 most recent complete sessions span the
	// prior week and skip the weekend.
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, msk)
	dates := cal.RecentCompleteSessions(now, 5)

	require.Len(t, dates, 5)

	want := []string{"2026-08-24", "2026-08-25", "2026-08-26", "2026-08-27", "2026-08-28"}
	for i, d := range dates {
		assert.Equal(t, want[i], d.Format("2006-01-02"))
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func TestRecentCompleteSessions_ExcludesToday(t *testing.T) {
	cal := testCalendar(t)
	msk := cal.Location()

	// Mid-session on a Friday: today must not appear even though trading started
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, msk)
	dates := cal.RecentCompleteSessions(now, 1)

	require.Len(t, dates, 1)
	assert.Equal(t, "2026-08-27", dates[0].Format("2006-01-02"))
}

func TestSessionsBetween(t *testing.T) {
	cal := testCalendar(t)
	msk := cal.Location()

	// Friday through Tuesday: the weekend drops out
	from := time.Date(2026, 8, 28, 0, 0, 0, 0, msk)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, msk)

	dates := cal.SessionsBetween(from, to)
	require.Len(t, dates, 3)
	assert.Equal(t, "2026-08-28", dates[0].Format("2006-01-02"))
	assert.Equal(t, "2026-08-31", dates[1].Format("2006-01-02"))
	assert.Equal(t, "2026-09-01", dates[2].Format("2006-01-02"))
}

func TestSessionsBetween_InvertedRange(t *testing.T) {
	cal := testCalendar(t)
	msk := cal.Location()

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, msk)
	assert.Empty(t, cal.SessionsBetween(from, from.AddDate(0, 0, -3)))
}

func TestRecentCompleteSessions_ZeroCount(t *testing.T) {
	cal := testCalendar(t)
	assert.Nil(t, cal.RecentCompleteSessions(time.Now(), 0))
}
