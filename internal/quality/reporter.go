package quality

import (
	"context"
	"fmt"
	"time"

	"gridfeed/internal/calendar"
	"gridfeed/internal/store"
	"gridfeed/pkg/logger"
)

// CoverageStore is the read side the reporter needs
type CoverageStore interface {
	Coverage(ctx context.Context, symbols []string, from, to time.Time) ([]store.SessionCoverage, error)
}

// Verdict is the usability decision for one symbol/session.
// A session is usable only when every grid minute is present; partial
// sessions distort intraday statistics and are excluded wholesale.
type Verdict struct {
	Symbol      string    `json:"symbol"`
	SessionDate time.Time `json:"session_date"`
	BarCount    int       `json:"bar_count"`
	Missing     int       `json:"missing"`
	Usable      bool      `json:"usable"`
}

// Report is the dataset quality summary over a symbol/date range.
// TotalSessions = UsableSessions + RejectedSessions always holds.
type Report struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	GridSize         int       `json:"grid_size"`
	TotalSessions    int       `json:"total_sessions"`
	UsableSessions   int       `json:"usable_sessions"`
	RejectedSessions int       `json:"rejected_sessions"`
	Verdicts         []Verdict `json:"verdicts"`
}

// UsableRatio is the fraction of usable sessions, 0 when nothing was graded
func (r *Report) UsableRatio() float64 {
	if r.TotalSessions == 0 {
		return 0
	}
	return float64(r.UsableSessions) / float64(r.TotalSessions)
}

// Reporter grades stored sessions against the full grid
type Reporter struct {
	store  CoverageStore
	cal    *calendar.Calendar
	logger *logger.Logger
}

// NewReporter creates a quality reporter
func NewReporter(store CoverageStore, cal *calendar.Calendar, log *logger.Logger) *Reporter {
	return &Reporter{
		store:  store,
		cal:    cal,
		logger: log.WithField("module", "quality"),
	}
}

// Report grades every symbol/session combination in [from, to]. Sessions
// with no stored rows at all are graded too: an absent session is a
// fully-missing one, not an unknown.
func (r *Reporter) Report(ctx context.Context, symbols []string, from, to time.Time) (*Report, error) {
	coverage, err := r.store.Coverage(ctx, symbols, from, to)
	if err != nil {
		return nil, fmt.Errorf("load coverage: %w", err)
	}

	counts := make(map[string]int, len(coverage))
	for _, c := range coverage {
		counts[coverageKey(c.Symbol, c.SessionDate)] = c.BarCount
	}

	gridSize := r.cal.SessionMinutes()
	report := &Report{
		From:     from,
		To:       to,
		GridSize: gridSize,
	}

	for _, date := range r.cal.SessionsBetween(from, to) {
		for _, symbol := range symbols {
			barCount := counts[coverageKey(symbol, date)]
			v := Verdict{
				Symbol:      symbol,
				SessionDate: date,
				BarCount:    barCount,
				Missing:     gridSize - barCount,
				Usable:      barCount == gridSize,
			}
			report.Verdicts = append(report.Verdicts, v)
			report.TotalSessions++
			if v.Usable {
				report.UsableSessions++
			} else {
				report.RejectedSessions++
			}
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"total":    report.TotalSessions,
		"usable":   report.UsableSessions,
		"rejected": report.RejectedSessions,
	}).Debug("Quality report completed")

	return report, nil
}

func coverageKey(symbol string, date time.Time) string {
	return symbol + "|" + date.Format("2006-01-02")
}
