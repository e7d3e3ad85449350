package ingest

import (
	"errors"
	"fmt"
	"sort"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
)

// ErrAdjustedCloseMissing means the provider violated its contract of
// returning an adjusted close for every bar. Without it the session
// cannot be screened for corporate actions, so it must not be ingested.
var ErrAdjustedCloseMissing = errors.New("adjusted close missing from provider bar")

// Normalize reprojects raw provider bars onto the session grid:
// localize, discard bars outside the session window, attach session date
// and minute index, and deduplicate by (session date, minute index)
// keeping the last-seen raw record. Runs per symbol with no shared state,
// so one symbol's failure never affects another's.
func Normalize(symbol string, raw []contracts.RawBar, cal *calendar.Calendar) ([]contracts.MinuteBar, error) {
	type gridKey struct {
		date  string
		index int
	}

	byKey := make(map[gridKey]contracts.MinuteBar, len(raw))

	for _, r := range raw {
		index, ok := cal.MinuteIndex(r.Timestamp)
		if !ok {
			continue
		}

		if !r.HasAdjClose {
			return nil, fmt.Errorf("%w: %s at %s", ErrAdjustedCloseMissing, symbol, r.Timestamp.Format("2006-01-02 15:04"))
		}

		date := cal.SessionDate(r.Timestamp)
		key := gridKey{date: date.Format("2006-01-02"), index: index}

		// Last-seen wins on provider duplicates (deliberate policy)
		byKey[key] = contracts.MinuteBar{
			Symbol:      symbol,
			Timestamp:   r.Timestamp,
			SessionDate: date,
			MinuteIndex: index,
			Open:        r.Open,
			High:        r.High,
			Low:         r.Low,
			Close:       r.Close,
			AdjClose:    r.AdjClose,
			Volume:      r.Volume,
		}
	}

	bars := make([]contracts.MinuteBar, 0, len(byKey))
	for _, b := range byKey {
		bars = append(bars, b)
	}

	sort.Slice(bars, func(i, j int) bool {
		if !bars[i].SessionDate.Equal(bars[j].SessionDate) {
			return bars[i].SessionDate.Before(bars[j].SessionDate)
		}
		return bars[i].MinuteIndex < bars[j].MinuteIndex
	})

	return bars, nil
}

// groupBySession splits normalized bars into per-session batches,
// ascending by session date.
func groupBySession(bars []contracts.MinuteBar) [][]contracts.MinuteBar {
	var groups [][]contracts.MinuteBar
	for _, b := range bars {
		n := len(groups)
		if n == 0 || !groups[n-1][0].SessionDate.Equal(b.SessionDate) {
			groups = append(groups, []contracts.MinuteBar{b})
			continue
		}
		groups[n-1] = append(groups[n-1], b)
	}
	return groups
}
