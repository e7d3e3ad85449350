package jobs

import (
	"context"
	"fmt"
	"time"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
	"gridfeed/internal/ingest"
	"gridfeed/pkg/config"
	"gridfeed/pkg/logger"
)

// ingestionLookback is how many complete sessions each nightly run
// re-covers. Re-ingestion is idempotent, so overlapping windows only
// fill minutes that were missing the previous night.
const ingestionLookback = 5

// IngestionJob runs the nightly bar ingestion pass
type IngestionJob struct {
	runner *ingest.Runner
	cal    *calendar.Calendar
	config *config.Config
	logger *logger.Logger
}

// NewIngestionJob creates a new ingestion job
func NewIngestionJob(runner *ingest.Runner, cal *calendar.Calendar, cfg *config.Config, log *logger.Logger) *IngestionJob {
	return &IngestionJob{
		runner: runner,
		cal:    cal,
		config: cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *IngestionJob) Name() string {
	return "bar_ingestion"
}

// Schedule returns the cron schedule: weekday evenings, well after the
// session close so the provider has settled the day's minute bars.
func (j *IngestionJob) Schedule() string {
	return "0 30 19 * * 1-5"
}

// Run executes one ingestion pass over the recent complete sessions
func (j *IngestionJob) Run(ctx context.Context) error {
	recent := j.cal.RecentCompleteSessions(time.Now(), ingestionLookback)
	from := recent[0]
	to := recent[len(recent)-1].AddDate(0, 0, 1)

	j.logger.WithFields(map[string]interface{}{
		"from":    from.Format("2006-01-02"),
		"to":      recent[len(recent)-1].Format("2006-01-02"),
		"symbols": len(j.config.Ingest.Symbols),
	}).Info("Starting scheduled ingestion")

	report, err := j.runner.Run(ctx, ingest.Options{
		Symbols:       j.config.Ingest.Symbols,
		From:          from,
		To:            to,
		Threshold:     j.config.Ingest.CAThreshold,
		Workers:       j.config.Ingest.Workers,
		DatasetLocked: j.config.Ingest.DatasetLocked,
		OpenPolicy:    j.config.Ingest.OfficialOpenPolicy,
		ClosePolicy:   j.config.Ingest.OfficialClosePolicy,
	})
	if err != nil {
		return fmt.Errorf("ingestion run: %w", err)
	}

	if blocked := report.Count(contracts.StatusBlocked); blocked > 0 {
		// Locked dataset is an operator decision, not a failure to retry
		j.logger.Warn("Scheduled ingestion refused: dataset is locked")
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"ok":          report.Count(contracts.StatusOK),
		"no_data":     report.Count(contracts.StatusNoData),
		"excluded_ca": report.Count(contracts.StatusExcludedCA),
		"error":       report.Count(contracts.StatusError),
	}).Info("Scheduled ingestion completed")

	return nil
}
