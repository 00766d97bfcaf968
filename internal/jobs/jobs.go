package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"claritywell/internal/clarity"
	"claritywell/internal/config"
	"claritywell/internal/ingest"
	"claritywell/internal/metrics"
	"claritywell/internal/rollup"
)

// SnapshotJob fetches the daily export snapshot and catches up the weekly
// and monthly rollups. A used-up request budget is not an error: the job
// just waits for the next day's allowance.
type SnapshotJob struct {
	ingestor   *ingest.Ingestor
	aggregator *rollup.Aggregator
	logger     *slog.Logger
}

func NewSnapshotJob(ingestor *ingest.Ingestor, aggregator *rollup.Aggregator, logger *slog.Logger) *SnapshotJob {
	return &SnapshotJob{ingestor: ingestor, aggregator: aggregator, logger: logger}
}

func (j *SnapshotJob) Run() error {
	ctx := context.Background()

	summary, err := j.ingestor.FetchSnapshot(ctx, clarity.FetchOptions{NumDays: 1})
	if err != nil {
		var budgetErr *ingest.ErrBudgetExhausted
		if errors.As(err, &budgetErr) {
			j.logger.Info("Skipping snapshot fetch", slog.String("reason", budgetErr.Error()))
			return nil
		}
		return err
	}

	j.logger.Info("Snapshot fetched",
		slog.String("metric_date", summary.MetricDate.Format("2006-01-02")),
		slog.Int("inserted", summary.RowsInserted))

	_, err = j.aggregator.AggregateAllAvailable(ctx, false)
	return err
}

// CleanupJob trims fetch logs past their retention window.
type CleanupJob struct {
	store  *metrics.Store
	logger *slog.Logger
	cfg    *config.Config
}

func NewCleanupJob(store *metrics.Store, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{store: store, logger: logger, cfg: cfg}
}

func (j *CleanupJob) Run() error {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.cfg.FetchLogRetentionDays)
	deleted, err := j.store.DeleteFetchLogsBefore(cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.logger.Info("Cleaned up fetch logs",
			slog.Int64("deleted", deleted),
			slog.String("cutoff", cutoff.Format("2006-01-02")))
	}
	return nil
}
