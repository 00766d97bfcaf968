// Package rollup builds weekly and monthly summaries from daily metrics.
//
// Rollups are idempotent: each summary row carries a natural key and a rerun
// without force leaves existing rows untouched, so the same period can be
// aggregated any number of times.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
)

// Aggregator rolls daily metrics up into weekly and monthly summaries.
type Aggregator struct {
	store  *metrics.Store
	logger *slog.Logger
}

// NewAggregator creates an aggregator over a store.
func NewAggregator(store *metrics.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// PeriodResult reports one rolled-up period.
type PeriodResult struct {
	Label   string
	Written int
	Skipped int
}

// RunResult reports a full catch-up run.
type RunResult struct {
	WeeklyPeriods  int
	MonthlyPeriods int
	WeeklyRows     int
	MonthlyRows    int
	SkippedRows    int
}

// AggregateWeek rolls one ISO week (Monday through Sunday) into weekly
// summaries, one row per (metric, scope, page) group present in the window.
// Without force, groups that already have a summary are skipped.
func (a *Aggregator) AggregateWeek(year, week int, force bool) (*PeriodResult, error) {
	if week < 1 || week > 53 {
		return nil, fmt.Errorf("invalid ISO week number: %d", week)
	}

	rng := daterange.ISOWeek(year, week)
	groups, err := a.store.AggregateWindow(rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("weekly aggregation for %s failed: %w", rng.Label, err)
	}

	result := &PeriodResult{Label: rng.Label}
	for _, g := range groups {
		summary := metrics.WeeklyMetric{
			WeekStart:         rng.Start,
			WeekEnd:           rng.End,
			Year:              year,
			WeekNumber:        week,
			MetricName:        g.MetricName,
			DataScope:         g.DataScope,
			PageID:            g.PageID,
			AvgSessions:       g.AvgSessions,
			SumSessions:       g.SumSessions,
			AvgUsers:          g.AvgUsers,
			SumUsers:          g.SumUsers,
			AvgPageViews:      g.AvgPageViews,
			SumPageViews:      g.SumPageViews,
			AvgDeadClicks:     g.AvgDeadClicks,
			AvgRageClicks:     g.AvgRageClicks,
			AvgQuickBacks:     g.AvgQuickBacks,
			AvgErrorClicks:    g.AvgErrorClicks,
			AvgScrollDepth:    g.AvgScrollDepth,
			AvgEngagementTime: g.AvgEngagementTime,
			DataPoints:        g.DataPoints,
		}
		_, existed, err := a.store.InsertOrSkipWeekly(summary, force)
		if err != nil {
			return nil, err
		}
		if existed {
			result.Skipped++
		} else {
			result.Written++
		}
	}

	a.logger.Debug("Aggregated week",
		"week", rng.Label, "written", result.Written, "skipped", result.Skipped)
	return result, nil
}

// AggregateMonth rolls one calendar month into monthly summaries.
func (a *Aggregator) AggregateMonth(year, month int, force bool) (*PeriodResult, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}

	rng := daterange.Month(year, time.Month(month))
	groups, err := a.store.AggregateWindow(rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("monthly aggregation for %s failed: %w", rng.Label, err)
	}

	result := &PeriodResult{Label: rng.Label}
	for _, g := range groups {
		summary := metrics.MonthlyMetric{
			Year:              year,
			Month:             month,
			MetricName:        g.MetricName,
			DataScope:         g.DataScope,
			PageID:            g.PageID,
			AvgSessions:       g.AvgSessions,
			SumSessions:       g.SumSessions,
			MinSessions:       g.MinSessions,
			MaxSessions:       g.MaxSessions,
			AvgUsers:          g.AvgUsers,
			SumUsers:          g.SumUsers,
			AvgPageViews:      g.AvgPageViews,
			SumPageViews:      g.SumPageViews,
			AvgDeadClicks:     g.AvgDeadClicks,
			AvgRageClicks:     g.AvgRageClicks,
			AvgQuickBacks:     g.AvgQuickBacks,
			AvgErrorClicks:    g.AvgErrorClicks,
			AvgScrollDepth:    g.AvgScrollDepth,
			AvgEngagementTime: g.AvgEngagementTime,
			DataPoints:        g.DataPoints,
		}
		_, existed, err := a.store.InsertOrSkipMonthly(summary, force)
		if err != nil {
			return nil, err
		}
		if existed {
			result.Skipped++
		} else {
			result.Written++
		}
	}

	a.logger.Debug("Aggregated month",
		"month", rng.Label, "written", result.Written, "skipped", result.Skipped)
	return result, nil
}

// AggregateAllAvailable walks the full span of stored daily data and rolls up
// every ISO week and calendar month it touches. The context is checked
// between periods so a long catch-up run can be interrupted cleanly.
func (a *Aggregator) AggregateAllAvailable(ctx context.Context, force bool) (*RunResult, error) {
	span, err := a.store.GetDateSpan()
	if err != nil {
		return nil, err
	}
	result := &RunResult{}
	if span == nil {
		a.logger.Info("No daily metrics to aggregate")
		return result, nil
	}

	a.logger.Info("Aggregating all available data",
		"from", span.Min.Format("2006-01-02"),
		"to", span.Max.Format("2006-01-02"),
		"days", span.DateCount,
	)

	// Walk Monday to Monday from the first day's ISO week so every week
	// intersecting the span gets a rollup, including a tail week the raw
	// seven-day stride from span.Min would step over.
	weekday := int(span.Min.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	firstMonday := span.Min.AddDate(0, 0, -(weekday - 1))
	for cur := firstMonday; !cur.After(span.Max); cur = cur.AddDate(0, 0, 7) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		isoYear, isoWeek := cur.ISOWeek()
		pr, err := a.AggregateWeek(isoYear, isoWeek, force)
		if err != nil {
			return result, err
		}
		if pr.Written > 0 {
			result.WeeklyPeriods++
			result.WeeklyRows += pr.Written
		}
		result.SkippedRows += pr.Skipped
	}

	for year, month := span.Min.Year(), int(span.Min.Month()); year < span.Max.Year() ||
		(year == span.Max.Year() && month <= int(span.Max.Month())); {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pr, err := a.AggregateMonth(year, month, force)
		if err != nil {
			return result, err
		}
		if pr.Written > 0 {
			result.MonthlyPeriods++
			result.MonthlyRows += pr.Written
		}
		result.SkippedRows += pr.Skipped

		month++
		if month > 12 {
			month = 1
			year++
		}
	}

	return result, nil
}
