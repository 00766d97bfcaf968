// Package internal contains core application functionality
package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"claritywell/internal/clarity"
	"claritywell/internal/compare"
	"claritywell/internal/config"
	"claritywell/internal/database"
	"claritywell/internal/ingest"
	"claritywell/internal/jobs"
	"claritywell/internal/metrics"
	"claritywell/internal/query"
	"claritywell/internal/report"
	"claritywell/internal/rollup"
	"claritywell/internal/trend"
)

// Application wires the warehouse components together: storage, the query
// and analysis engines, the export API client and the background jobs.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager

	Store     *metrics.Store
	Query     *query.Engine
	Rollup    *rollup.Aggregator
	Compare   *compare.Comparator
	Trend     *trend.Analyzer
	Report    *report.Generator
	Ingestor  *ingest.Ingestor
	Scheduler *jobs.Scheduler
}

// NewApp creates an application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates an application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := dbManager.MigrateDatabase(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := metrics.NewStore(dbManager.GetConnection(), logger)

	client := clarity.NewClient(
		cfg.ClarityAPIBaseURL,
		cfg.ClarityAPIToken,
		time.Duration(cfg.RequestTimeoutSecs)*time.Second,
		logger,
	)
	ingestor := ingest.NewIngestor(client, store, logger, cfg.MaxRequestsPerDay)
	aggregator := rollup.NewAggregator(store, logger)

	scheduler, err := jobs.NewScheduler(ingestor, aggregator, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	return &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Store:     store,
		Query:     query.NewEngine(store, logger),
		Rollup:    aggregator,
		Compare:   compare.NewComparator(store, logger),
		Trend:     trend.NewAnalyzer(store, logger),
		Report:    report.NewGenerator(store, logger),
		Ingestor:  ingestor,
		Scheduler: scheduler,
	}, nil
}

// Shutdown stops background jobs and checkpoints the database.
func (a *Application) Shutdown() {
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		a.Scheduler.Stop()
	}
	if a.DBManager != nil {
		if err := a.DBManager.CheckpointWAL("FULL"); err != nil {
			a.Logger.Warn("WAL checkpoint on shutdown failed", "error", err)
		}
	}
}
