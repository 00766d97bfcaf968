// Package ingest pulls Clarity export snapshots into the local warehouse.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"claritywell/internal/clarity"
	"claritywell/internal/metrics"
)

// ErrBudgetExhausted is returned when today's API request allowance is used
// up. The export API allows a small fixed number of requests per project per
// day, so the budget is enforced locally before any request goes out.
type ErrBudgetExhausted struct {
	Used  int64
	Limit int
}

func (e *ErrBudgetExhausted) Error() string {
	return fmt.Sprintf("daily api request budget exhausted: %d of %d used", e.Used, e.Limit)
}

// FetchSummary reports one completed snapshot fetch.
type FetchSummary struct {
	MetricDate   time.Time
	MetricGroups int
	RowsInserted int
	RowsSkipped  int
	ResponseSize int
}

// Ingestor fetches snapshots and lands them as daily metric rows.
type Ingestor struct {
	client            *clarity.Client
	store             *metrics.Store
	logger            *slog.Logger
	maxRequestsPerDay int
	now               func() time.Time
}

// NewIngestor creates an ingestor with the given daily request allowance.
func NewIngestor(client *clarity.Client, store *metrics.Store, logger *slog.Logger, maxRequestsPerDay int) *Ingestor {
	return &Ingestor{
		client:            client,
		store:             store,
		logger:            logger,
		maxRequestsPerDay: maxRequestsPerDay,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// FetchSnapshot makes one export request and stores its rows, keyed to the
// last complete day. Every request, failed or not, is recorded against the
// daily budget.
func (in *Ingestor) FetchSnapshot(ctx context.Context, opts clarity.FetchOptions) (*FetchSummary, error) {
	now := in.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	used, err := in.store.CountFetchLogsSince(midnight)
	if err != nil {
		return nil, err
	}
	if used >= int64(in.maxRequestsPerDay) {
		return nil, &ErrBudgetExhausted{Used: used, Limit: in.maxRequestsPerDay}
	}

	result, err := in.client.FetchProjectInsights(ctx, opts)

	logEntry := metrics.FetchLog{
		Endpoint:    "project-live-insights",
		NumDays:     opts.NumDays,
		Dimension1:  opts.Dimension1,
		Dimension2:  opts.Dimension2,
		Dimension3:  opts.Dimension3,
		RequestedAt: now,
	}
	if err != nil {
		logEntry.Success = false
		logEntry.ErrorMessage = err.Error()
		var apiErr *clarity.APIError
		if errors.As(err, &apiErr) {
			logEntry.StatusCode = apiErr.StatusCode
		}
		if logErr := in.store.InsertFetchLog(logEntry); logErr != nil {
			in.logger.Error("Failed to record fetch log", "error", logErr)
		}
		return nil, err
	}

	metricDate := midnight.AddDate(0, 0, -1)
	records := MapGroups(result.Groups, metricDate, opts, now)

	inserted := 0
	if len(records) > 0 {
		inserted, err = in.store.InsertDaily(records)
		if err != nil {
			return nil, err
		}
	}

	logEntry.Success = true
	logEntry.StatusCode = result.StatusCode
	logEntry.ResponseSize = result.ResponseSize
	logEntry.RowsReturned = len(records)
	if err := in.store.InsertFetchLog(logEntry); err != nil {
		in.logger.Error("Failed to record fetch log", "error", err)
	}

	summary := &FetchSummary{
		MetricDate:   metricDate,
		MetricGroups: len(result.Groups),
		RowsInserted: inserted,
		RowsSkipped:  len(records) - inserted,
		ResponseSize: result.ResponseSize,
	}
	in.logger.Info("Stored clarity snapshot",
		"metric_date", metricDate.Format("2006-01-02"),
		"groups", summary.MetricGroups,
		"inserted", summary.RowsInserted,
		"skipped", summary.RowsSkipped,
	)
	return summary, nil
}

// BudgetRemaining returns how many requests are left for today.
func (in *Ingestor) BudgetRemaining() (int, error) {
	now := in.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	used, err := in.store.CountFetchLogsSince(midnight)
	if err != nil {
		return 0, err
	}
	remaining := in.maxRequestsPerDay - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// MapGroups translates export metric groups into daily metric rows. Rows
// broken down by URL land in the page scope keyed by that URL; everything
// else stays in the general scope with its dimension values attached.
func MapGroups(groups []clarity.MetricGroup, metricDate time.Time, opts clarity.FetchOptions, fetchedAt time.Time) []metrics.DailyMetric {
	var records []metrics.DailyMetric
	for _, group := range groups {
		for _, info := range group.Information {
			m := metrics.DailyMetric{
				MetricDate:     metricDate,
				MetricName:     group.MetricName,
				DataScope:      metrics.ScopeGeneral,
				FetchTimestamp: fetchedAt,
			}

			if opts.Dimension1 != "" {
				value := clarity.InfoString(info, opts.Dimension1)
				if opts.Dimension1 == "URL" && value != "" {
					m.DataScope = metrics.ScopePage
					m.PageID = value
				} else {
					m.Dimension1Name = opts.Dimension1
					m.Dimension1Val = value
				}
			}
			if opts.Dimension2 != "" {
				m.Dimension2Name = opts.Dimension2
				m.Dimension2Val = clarity.InfoString(info, opts.Dimension2)
			}
			if opts.Dimension3 != "" {
				m.Dimension3Name = opts.Dimension3
				m.Dimension3Val = clarity.InfoString(info, opts.Dimension3)
			}

			applyMetricValues(&m, group.MetricName, info)

			if raw, err := json.Marshal(info); err == nil {
				m.RawJSON = raw
			}
			records = append(records, m)
		}
	}
	return records
}

// applyMetricValues maps one breakdown row's fields onto the daily metric
// columns. Traffic rows carry session and user totals; frustration rows
// carry a session count plus their signal subtotal.
func applyMetricValues(m *metrics.DailyMetric, metricName string, info map[string]any) {
	if v := clarity.InfoInt(info, "totalSessionCount"); v != nil {
		m.Sessions = v
		m.BotSessions = clarity.InfoInt(info, "totalBotSessionCount")
		m.Users = clarity.InfoInt(info, "distinctUserCount")
		if pps := clarity.InfoFloat(info, "PagesPerSessionPercentage"); pps != nil {
			m.PagesPerSession = pps
		} else {
			m.PagesPerSession = clarity.InfoFloat(info, "pagesPerSessionPercentage")
		}
	}

	if sessions := clarity.InfoInt(info, "sessionsCount"); sessions != nil {
		m.Sessions = sessions
		subTotal := clarity.InfoInt(info, "subTotal")
		switch metricName {
		case metrics.MetricDeadClicks:
			m.DeadClicks = subTotal
		case metrics.MetricRageClicks:
			m.RageClicks = subTotal
		case metrics.MetricQuickBacks:
			m.QuickBacks = subTotal
		case metrics.MetricErrorClicks:
			m.ErrorClicks = subTotal
		}
	}

	if v := clarity.InfoFloat(info, "averageScrollDepth"); v != nil {
		m.ScrollDepth = v
	}
	if v := clarity.InfoFloat(info, "totalTime"); v != nil {
		m.EngagementTime = v
	}
	if v := clarity.InfoFloat(info, "activeTime"); v != nil {
		m.ActiveTime = v
	}
}
