package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
	"gridfeed/internal/gaps"
	"gridfeed/internal/ingest"
	"gridfeed/internal/quality"
	"gridfeed/pkg/config"
	"gridfeed/pkg/logger"
	"gridfeed/pkg/redis"
)

// defaultSessionLookback is how many complete sessions a request covers
// when it does not name an explicit range
const defaultSessionLookback = 5

// IngestRunner runs an ingestion pass
type IngestRunner interface {
	Run(ctx context.Context, opts ingest.Options) (*contracts.RunReport, error)
}

// GapDetector analyzes one symbol/session for grid gaps
type GapDetector interface {
	Detect(ctx context.Context, symbol string, sessionDate time.Time) (*gaps.SessionGaps, error)
}

// QualityReporter grades stored sessions
type QualityReporter interface {
	Report(ctx context.Context, symbols []string, from, to time.Time) (*quality.Report, error)
}

// BarsHandler serves the bar dataset API endpoints
type BarsHandler struct {
	runner   IngestRunner
	detector GapDetector
	reporter QualityReporter
	cache    *redis.Cache
	cal      *calendar.Calendar
	config   *config.Config
	logger   *logger.Logger
}

// NewBarsHandler creates a new bars handler
func NewBarsHandler(
	runner IngestRunner,
	detector GapDetector,
	reporter QualityReporter,
	cache *redis.Cache,
	cal *calendar.Calendar,
	cfg *config.Config,
	log *logger.Logger,
) *BarsHandler {
	return &BarsHandler{
		runner:   runner,
		detector: detector,
		reporter: reporter,
		cache:    cache,
		cal:      cal,
		config:   cfg,
		logger:   log,
	}
}

// IngestRequest is a manual ingestion trigger
type IngestRequest struct {
	Symbols   []string `json:"symbols,omitempty"`
	From      string   `json:"from,omitempty"`     // YYYY-MM-DD
	To        string   `json:"to,omitempty"`       // YYYY-MM-DD
	Sessions  int      `json:"sessions,omitempty"` // lookback when no range is given
	Threshold float64  `json:"threshold,omitempty"`
}

// RunIngestion triggers an ingestion run
// POST /api/ingest/run
func (h *BarsHandler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.config.Ingest.Symbols
	}

	from, to, err := h.resolveRangeN(req.From, req.To, req.Sessions)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := h.config.Ingest.CAThreshold
	if req.Threshold > 0 {
		threshold = req.Threshold
	}

	report, err := h.runner.Run(ctx, ingest.Options{
		Symbols:       symbols,
		From:          from,
		To:            to,
		Threshold:     threshold,
		Workers:       h.config.Ingest.Workers,
		DatasetLocked: h.config.Ingest.DatasetLocked,
		OpenPolicy:    h.config.Ingest.OfficialOpenPolicy,
		ClosePolicy:   h.config.Ingest.OfficialClosePolicy,
	})
	if err != nil {
		h.logger.WithError(err).Error("Ingestion run failed")
		respondJSON(w, http.StatusInternalServerError, report)
		return
	}

	// Quality and gap caches are stale after new writes
	if err := h.cache.Delete(ctx, redis.QualityReportKey()); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate quality cache")
	}

	if len(report.Results) > 0 && report.Count(contracts.StatusBlocked) == len(report.Results) {
		respondJSON(w, http.StatusLocked, report)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetGaps returns the gap analysis for one symbol/session
// GET /api/gaps?symbol=SBER.ME&date=2026-08-24
func (h *BarsHandler) GetGaps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'symbol' is required")
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.ParseInLocation("2006-01-02", dateStr, h.cal.Location())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Query parameter 'date' must be YYYY-MM-DD")
		return
	}

	cacheKey := redis.GapKey(symbol, dateStr)
	var cached gaps.SessionGaps
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	result, err := h.detector.Detect(ctx, symbol, date)
	if err != nil {
		h.logger.WithError(err).Error("Gap detection failed")
		respondError(w, http.StatusInternalServerError, "Failed to analyze session gaps")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, result, redis.TTLMedium); err != nil {
		h.logger.WithError(err).Warn("Failed to cache gap result")
	}

	respondJSON(w, http.StatusOK, result)
}

// GetQuality returns the dataset quality report
// GET /api/quality?from=2026-08-24&to=2026-08-28&symbols=SBER.ME,GAZP.ME
func (h *BarsHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	symbols := h.config.Ingest.Symbols
	if s := strings.TrimSpace(q.Get("symbols")); s != "" {
		symbols = splitSymbols(s)
	}

	from, to, err := h.resolveRange(q.Get("from"), q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Only the parameterless default query is cached
	defaultQuery := q.Get("symbols") == "" && q.Get("from") == "" && q.Get("to") == ""
	if defaultQuery {
		var cached quality.Report
		if hit, err := h.cache.Get(ctx, redis.QualityReportKey(), &cached); err == nil && hit {
			respondJSON(w, http.StatusOK, &cached)
			return
		}
	}

	// resolveRange is half-open for fetching; grading is inclusive
	report, err := h.reporter.Report(ctx, symbols, from, to.AddDate(0, 0, -1))
	if err != nil {
		h.logger.WithError(err).Error("Quality report failed")
		respondError(w, http.StatusInternalServerError, "Failed to build quality report")
		return
	}

	if defaultQuery {
		if err := h.cache.Set(ctx, redis.QualityReportKey(), report, redis.TTLShort); err != nil {
			h.logger.WithError(err).Warn("Failed to cache quality report")
		}
	}

	respondJSON(w, http.StatusOK, report)
}

// resolveRange parses an optional YYYY-MM-DD range, defaulting to the
// most recent complete sessions.
func (h *BarsHandler) resolveRange(fromStr, toStr string) (time.Time, time.Time, error) {
	return h.resolveRangeN(fromStr, toStr, 0)
}

func (h *BarsHandler) resolveRangeN(fromStr, toStr string, sessions int) (time.Time, time.Time, error) {
	if fromStr == "" && toStr == "" {
		if sessions <= 0 {
			sessions = defaultSessionLookback
		}
		recent := h.cal.RecentCompleteSessions(time.Now(), sessions)
		return recent[0], recent[len(recent)-1].AddDate(0, 0, 1), nil
	}

	from, err := time.ParseInLocation("2006-01-02", fromStr, h.cal.Location())
	if err != nil {
		return time.Time{}, time.Time{}, errBadDate("from")
	}

	to := from
	if toStr != "" {
		to, err = time.ParseInLocation("2006-01-02", toStr, h.cal.Location())
		if err != nil {
			return time.Time{}, time.Time{}, errBadDate("to")
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errInvertedRange
	}

	// The range is inclusive of the 'to' session
	return from, to.AddDate(0, 0, 1), nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
