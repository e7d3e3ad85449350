package commands

import (
	"gridfeed/internal/calendar"
	"gridfeed/internal/gaps"
	"gridfeed/internal/ingest"
	"gridfeed/internal/provider/yahoo"
	"gridfeed/internal/quality"
	"gridfeed/internal/store"
	"gridfeed/pkg/config"
	"gridfeed/pkg/database"
	"gridfeed/pkg/logger"
)

// runtime bundles the wiring every command needs: config, logging, the
// database pool and the domain services built on top of them.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	cal      *calendar.Calendar
	repo     *store.Repository
	runner   *ingest.Runner
	detector *gaps.Detector
	reporter *quality.Reporter
}

// newRuntime loads config and connects everything
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}

	cal, err := calendar.New(cfg.Session)
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := store.NewRepository(db.Pool)
	provider := yahoo.NewClient(cfg.Provider, log)

	return &runtime{
		cfg:      cfg,
		log:      log,
		db:       db,
		cal:      cal,
		repo:     repo,
		runner:   ingest.NewRunner(provider, repo, cal, log),
		detector: gaps.NewDetector(repo, cal, log),
		reporter: quality.NewReporter(repo, cal, log),
	}, nil
}

// close releases the runtime's connections
func (r *runtime) close() {
	r.db.Close()
}
