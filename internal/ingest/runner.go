package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
	"gridfeed/pkg/logger"
)

// Fetch intervals understood by the provider
const (
	intervalMinute = "1m"
	intervalDaily  = "1d"
)

// Provider fetches OHLCV bars for a symbol over a time range
type Provider interface {
	FetchBars(ctx context.Context, symbol string, from, to time.Time, interval string) ([]contracts.RawBar, error)
}

// SymbolBatch is one symbol's accepted output of fetch-normalize-guard,
// ready for persistence.
type SymbolBatch struct {
	Symbol string
	Bars   []contracts.MinuteBar
	Daily  []contracts.DailyOfficial
}

// RunStore persists a whole ingestion run in one transaction. It returns
// the number of minute bars actually written per symbol; re-ingested
// minutes that already exist count as zero.
type RunStore interface {
	SaveRun(ctx context.Context, batches []SymbolBatch) (map[string]int, error)
}

// Options parameterizes one ingestion run. Everything is explicit; the
// runner holds no mutable run state of its own.
type Options struct {
	Symbols       []string
	From          time.Time
	To            time.Time
	Threshold     float64 // corporate-action divergence threshold
	Workers       int
	DatasetLocked bool
	OpenPolicy    string // first_minute | daily_bar
	ClosePolicy   string // last_minute | daily_bar
}

// Runner orchestrates ingestion: a worker pool runs fetch-normalize-guard
// per symbol, completed batches are handed to a single writer so the
// whole run commits or rolls back as one transaction.
type Runner struct {
	provider Provider
	store    RunStore
	cal      *calendar.Calendar
	logger   *logger.Logger
}

// NewRunner creates a new ingestion runner
func NewRunner(provider Provider, store RunStore, cal *calendar.Calendar, log *logger.Logger) *Runner {
	return &Runner{
		provider: provider,
		store:    store,
		cal:      cal,
		logger:   log.WithField("module", "ingest"),
	}
}

// symbolOutcome is one worker's result for one symbol
type symbolOutcome struct {
	result contracts.SymbolResult
	batch  *SymbolBatch
}

// Run executes one ingestion run over opts.Symbols and [From, To].
// Per-symbol fetch failures never block other symbols; a persistence
// failure rolls back every write of the run.
func (r *Runner) Run(ctx context.Context, opts Options) (*contracts.RunReport, error) {
	report := &contracts.RunReport{
		StartedAt: time.Now(),
		From:      opts.From,
		To:        opts.To,
	}

	// The dataset lock is a hard precondition: no fetch, no write.
	if opts.DatasetLocked {
		for _, symbol := range opts.Symbols {
			report.Results = append(report.Results, contracts.SymbolResult{
				Symbol:  symbol,
				Status:  contracts.StatusBlocked,
				Message: "dataset is locked; writes are refused",
			})
		}
		report.FinishedAt = time.Now()
		r.logger.Warn("Ingestion refused: dataset is locked")
		return report, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	r.logger.WithFields(map[string]interface{}{
		"symbols": len(opts.Symbols),
		"from":    opts.From.Format("2006-01-02"),
		"to":      opts.To.Format("2006-01-02"),
		"workers": workers,
	}).Info("Starting ingestion run")

	symbolCh := make(chan string, len(opts.Symbols))
	outcomeCh := make(chan symbolOutcome, len(opts.Symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for symbol := range symbolCh {
				outcomeCh <- r.processSymbol(ctx, workerID, symbol, opts)
			}
		}(i)
	}

	for _, symbol := range opts.Symbols {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	outcomes := make(map[string]symbolOutcome, len(opts.Symbols))
	for o := range outcomeCh {
		outcomes[o.result.Symbol] = o
	}

	// Single-writer commit phase: all accepted batches go into one
	// transaction so a failure can never leave a partial run behind.
	var batches []SymbolBatch
	for _, symbol := range opts.Symbols {
		if o, ok := outcomes[symbol]; ok && o.batch != nil {
			batches = append(batches, *o.batch)
		}
	}

	var written map[string]int
	var saveErr error
	if len(batches) > 0 {
		written, saveErr = r.store.SaveRun(ctx, batches)
	}

	for _, symbol := range opts.Symbols {
		o, ok := outcomes[symbol]
		if !ok {
			continue
		}
		if o.batch != nil {
			if saveErr != nil {
				o.result.Status = contracts.StatusError
				o.result.BarCount = 0
				o.result.Message = fmt.Sprintf("run rolled back: %v", saveErr)
			} else {
				o.result.BarCount = written[symbol]
			}
		}
		report.Results = append(report.Results, o.result)
	}

	report.FinishedAt = time.Now()

	r.logger.WithFields(map[string]interface{}{
		"ok":          report.Count(contracts.StatusOK),
		"no_data":     report.Count(contracts.StatusNoData),
		"excluded_ca": report.Count(contracts.StatusExcludedCA),
		"error":       report.Count(contracts.StatusError),
	}).Info("Ingestion run completed")

	if saveErr != nil {
		return report, fmt.Errorf("persist ingestion run: %w", saveErr)
	}
	return report, nil
}

// processSymbol runs fetch-normalize-guard for one symbol. It only reads;
// persistence happens later in the single-writer phase.
func (r *Runner) processSymbol(ctx context.Context, workerID int, symbol string, opts Options) symbolOutcome {
	log := r.logger.WithFields(map[string]interface{}{
		"worker": workerID,
		"symbol": symbol,
	})

	raw, err := r.provider.FetchBars(ctx, symbol, opts.From, opts.To, intervalMinute)
	if err != nil {
		log.WithError(err).Error("Failed to fetch minute bars")
		return symbolOutcome{result: contracts.SymbolResult{
			Symbol:  symbol,
			Status:  contracts.StatusError,
			Message: fmt.Sprintf("fetch minute bars: %v", err),
		}}
	}

	if len(raw) == 0 {
		return symbolOutcome{result: contracts.SymbolResult{
			Symbol: symbol,
			Status: contracts.StatusNoData,
		}}
	}

	normalized, err := Normalize(symbol, raw, r.cal)
	if err != nil {
		if errors.Is(err, ErrAdjustedCloseMissing) {
			log.WithError(err).Error("Provider returned bars without adjusted close")
		}
		return symbolOutcome{result: contracts.SymbolResult{
			Symbol:  symbol,
			Status:  contracts.StatusError,
			Message: err.Error(),
		}}
	}

	if len(normalized) == 0 {
		// Everything the provider returned fell outside the session window
		return symbolOutcome{result: contracts.SymbolResult{
			Symbol: symbol,
			Status: contracts.StatusNoData,
		}}
	}

	guard := Guard{Threshold: opts.Threshold}

	var (
		accepted    []contracts.MinuteBar
		cleanGroups [][]contracts.MinuteBar
		excluded    int
		maxRatio    float64
	)
	for _, session := range groupBySession(normalized) {
		eval, err := guard.Evaluate(session)
		if err != nil {
			return symbolOutcome{result: contracts.SymbolResult{
				Symbol:  symbol,
				Status:  contracts.StatusError,
				Message: err.Error(),
			}}
		}
		if !eval.Accepted {
			// Whole session rejected, never a partial batch
			excluded++
			if eval.MaxRatio > maxRatio {
				maxRatio = eval.MaxRatio
			}
			log.WithFields(map[string]interface{}{
				"session_date": session[0].SessionDate.Format("2006-01-02"),
				"ratio":        eval.MaxRatio,
			}).Warn("Session excluded: corporate action divergence")
			continue
		}
		accepted = append(accepted, session...)
		cleanGroups = append(cleanGroups, session)
	}

	if len(accepted) == 0 {
		return symbolOutcome{result: contracts.SymbolResult{
			Symbol:  symbol,
			Status:  contracts.StatusExcludedCA,
			CARatio: maxRatio,
			Message: fmt.Sprintf("all %d sessions excluded by corporate-action guard", excluded),
		}}
	}

	daily := r.buildDailyOfficials(ctx, symbol, cleanGroups, opts)

	result := contracts.SymbolResult{
		Symbol: symbol,
		Status: contracts.StatusOK,
	}
	if excluded > 0 {
		result.Status = contracts.StatusExcludedCA
		result.CARatio = maxRatio
		result.Message = fmt.Sprintf("%d of %d sessions excluded by corporate-action guard", excluded, excluded+len(cleanGroups))
	}

	return symbolOutcome{
		result: result,
		batch: &SymbolBatch{
			Symbol: symbol,
			Bars:   accepted,
			Daily:  daily,
		},
	}
}

// buildDailyOfficials derives the official open/close record for every
// accepted session, per the configured policy. The daily-bar feed is a
// best-effort enrichment: when it cannot be fetched the record falls back
// to the session's own grid bars and the provenance tags say so.
func (r *Runner) buildDailyOfficials(ctx context.Context, symbol string, sessions [][]contracts.MinuteBar, opts Options) []contracts.DailyOfficial {
	dailyByDate := make(map[string]contracts.RawBar)
	if opts.OpenPolicy == "daily_bar" || opts.ClosePolicy == "daily_bar" {
		dailyBars, err := r.provider.FetchBars(ctx, symbol, opts.From, opts.To.AddDate(0, 0, 1), intervalDaily)
		if err != nil {
			r.logger.WithError(err).WithField("symbol", symbol).Warn("Daily bar fetch failed; falling back to grid bars")
		}
		for _, d := range dailyBars {
			dailyByDate[r.cal.SessionDate(d.Timestamp).Format("2006-01-02")] = d
		}
	}

	records := make([]contracts.DailyOfficial, 0, len(sessions))
	for _, session := range sessions {
		first := session[0]
		last := session[len(session)-1]
		dateKey := first.SessionDate.Format("2006-01-02")

		rec := contracts.DailyOfficial{
			Symbol:      symbol,
			SessionDate: first.SessionDate,
		}

		if d, ok := dailyByDate[dateKey]; ok && opts.OpenPolicy == "daily_bar" {
			rec.OfficialOpen = d.Open
			rec.SourceOpen = contracts.SourceDailyBar
		} else {
			rec.OfficialOpen = first.Open
			rec.SourceOpen = contracts.SourceFirstMinuteBar
		}

		if d, ok := dailyByDate[dateKey]; ok && opts.ClosePolicy == "daily_bar" {
			rec.OfficialClose = d.Close
			rec.SourceClose = contracts.SourceDailyBar
		} else {
			rec.OfficialClose = last.Close
			rec.SourceClose = contracts.SourceLastMinuteBar
		}

		records = append(records, rec)
	}
	return records
}
