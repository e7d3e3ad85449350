package calendar

import (
	"fmt"
	"time"

	"gridfeed/pkg/config"
)

// Calendar maps wall-clock timestamps onto the canonical per-session
// minute grid. Minute index 1 is the open-of-session minute, index N the
// last tradable minute; anything outside [open, open+N) has no index.
//
// Weekends are the only non-trading days modeled; exchange holidays are a
// known limitation and will show up downstream as fully-missing sessions.
type Calendar struct {
	loc            *time.Location
	openHour       int
	openMinute     int
	sessionMinutes int
}

// New builds a Calendar from session configuration
func New(cfg config.SessionConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load session timezone: %w", err)
	}

	if cfg.SessionMinutes <= 0 {
		return nil, fmt.Errorf("session length must be positive, got %d", cfg.SessionMinutes)
	}

	return &Calendar{
		loc:            loc,
		openHour:       cfg.OpenHour,
		openMinute:     cfg.OpenMinute,
		sessionMinutes: cfg.SessionMinutes,
	}, nil
}

// Location returns the session timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// SessionMinutes returns the grid length N
func (c *Calendar) SessionMinutes() int {
	return c.sessionMinutes
}

// MinuteIndex converts a timestamp (any timezone) to its session minute
// index. The second return value is false when the local time falls
// outside the session window.
func (c *Calendar) MinuteIndex(t time.Time) (int, bool) {
	local := t.In(c.loc)
	offset := local.Hour()*60 + local.Minute() - c.openOffset()
	if offset < 0 || offset >= c.sessionMinutes {
		return 0, false
	}
	return offset + 1, true
}

// SessionDate returns the session-local calendar date (midnight in the
// session timezone) for a timestamp.
func (c *Calendar) SessionDate(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// WallTime is the inverse of MinuteIndex for display: the session-local
// hour and minute of a grid index. Indexes outside [1, N] are an error.
func (c *Calendar) WallTime(index int) (hour, minute int, err error) {
	if index < 1 || index > c.sessionMinutes {
		return 0, 0, fmt.Errorf("minute index %d outside grid [1, %d]", index, c.sessionMinutes)
	}
	total := c.openOffset() + index - 1
	return total / 60, total % 60, nil
}

// RecentCompleteSessions returns the k most recent past session dates in
// ascending order. The current day is excluded since its session may still
// be incomplete; weekends are skipped. This is the default ingestion
// window when no explicit range is given.
func (c *Calendar) RecentCompleteSessions(now time.Time, k int) []time.Time {
	if k <= 0 {
		return nil
	}

	dates := make([]time.Time, 0, k)
	d := c.SessionDate(now)
	for len(dates) < k {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}

	// Collected newest-first; callers want ascending
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates
}

// SessionsBetween returns every trading session date in [from, to],
// ascending. Weekends are skipped.
func (c *Calendar) SessionsBetween(from, to time.Time) []time.Time {
	var dates []time.Time
	for d := c.SessionDate(from); !d.After(c.SessionDate(to)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// openOffset is the session open expressed as minutes since local midnight
func (c *Calendar) openOffset() int {
	return c.openHour*60 + c.openMinute
}
