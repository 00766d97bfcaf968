package rollup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claritywell/internal/metrics"
	"claritywell/internal/rollup"
	"claritywell/internal/testsupport"
)

func setupAggregator(t *testing.T) (*rollup.Aggregator, *metrics.Store) {
	t.Helper()
	store := testsupport.SetupStore(t)
	return rollup.NewAggregator(store, testsupport.GetLogger()), store
}

func TestAggregateWeekBuildsSummary(t *testing.T) {
	agg, store := setupAggregator(t)

	// 2025-W48 runs Monday Nov 24 through Sunday Nov 30.
	weekStart := testsupport.Date(2025, time.November, 24)
	testsupport.SeedTrafficSeries(t, store, weekStart, []int64{100, 200, 300, 400, 500, 600, 700})

	result, err := agg.AggregateWeek(2025, 48, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 0, result.Skipped)

	summary, err := store.GetWeekly(weekStart, weekStart.AddDate(0, 0, 6), metrics.MetricTraffic, metrics.ScopeGeneral, "")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 7, summary.DataPoints)
	assert.InDelta(t, 2800, summary.SumSessions, 0.001)
	assert.InDelta(t, 400, summary.AvgSessions, 0.001)
	assert.Equal(t, 2025, summary.Year)
	assert.Equal(t, 48, summary.WeekNumber)
	assert.Equal(t, time.Monday, summary.WeekStart.Weekday())
	assert.Equal(t, time.Sunday, summary.WeekEnd.Weekday())
}

func TestAggregateWeekIsIdempotent(t *testing.T) {
	agg, store := setupAggregator(t)

	weekStart := testsupport.Date(2025, time.November, 24)
	testsupport.SeedTrafficSeries(t, store, weekStart, []int64{100, 200, 300})

	first, err := agg.AggregateWeek(2025, 48, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Written)

	// More data lands for the same week, then the rollup reruns. Without
	// force the original summary survives unchanged.
	testsupport.SeedTrafficSeries(t, store, weekStart.AddDate(0, 0, 3), []int64{400})

	second, err := agg.AggregateWeek(2025, 48, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 1, second.Skipped)

	summary, err := store.GetWeekly(weekStart, weekStart.AddDate(0, 0, 6), metrics.MetricTraffic, metrics.ScopeGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.DataPoints)
	assert.InDelta(t, 600, summary.SumSessions, 0.001)

	// Force recomputes over all four days.
	forced, err := agg.AggregateWeek(2025, 48, true)
	require.NoError(t, err)
	assert.Equal(t, 1, forced.Written)

	summary, err = store.GetWeekly(weekStart, weekStart.AddDate(0, 0, 6), metrics.MetricTraffic, metrics.ScopeGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.DataPoints)
	assert.InDelta(t, 1000, summary.SumSessions, 0.001)
}

func TestAggregateWeekCoversAllGroups(t *testing.T) {
	agg, store := setupAggregator(t)

	weekStart := testsupport.Date(2025, time.November, 24)
	testsupport.SeedTrafficSeries(t, store, weekStart, []int64{100})
	testsupport.SeedFrustrationDay(t, store, weekStart, 100, 5)

	result, err := agg.AggregateWeek(2025, 48, false)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Written) // Traffic plus four frustration metrics
}

func TestAggregateWeekRejectsBadWeekNumber(t *testing.T) {
	agg, _ := setupAggregator(t)

	_, err := agg.AggregateWeek(2025, 0, false)
	assert.Error(t, err)
	_, err = agg.AggregateWeek(2025, 54, false)
	assert.Error(t, err)
}

func TestAggregateMonthBuildsSummary(t *testing.T) {
	agg, store := setupAggregator(t)

	start := testsupport.Date(2025, time.November, 1)
	sessions := make([]int64, 30)
	for i := range sessions {
		sessions[i] = int64(100 + i*10)
	}
	testsupport.SeedTrafficSeries(t, store, start, sessions)

	result, err := agg.AggregateMonth(2025, 11, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)

	summary, err := store.GetMonthly(2025, 11, metrics.MetricTraffic, metrics.ScopeGeneral, "")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 30, summary.DataPoints)
	assert.InDelta(t, 100, summary.MinSessions, 0.001)
	assert.InDelta(t, 390, summary.MaxSessions, 0.001)
	assert.InDelta(t, 7350, summary.SumSessions, 0.001)
}

func TestAggregateAllAvailable(t *testing.T) {
	agg, store := setupAggregator(t)

	// Three weeks of data spanning a month boundary.
	start := testsupport.Date(2025, time.October, 27) // Monday, W44
	sessions := make([]int64, 21)
	for i := range sessions {
		sessions[i] = 100
	}
	testsupport.SeedTrafficSeries(t, store, start, sessions)

	result, err := agg.AggregateAllAvailable(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.WeeklyPeriods)
	assert.Equal(t, 2, result.MonthlyPeriods) // October and November

	// Rerunning writes nothing new.
	again, err := agg.AggregateAllAvailable(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.WeeklyRows)
	assert.Equal(t, 0, again.MonthlyRows)
	assert.Equal(t, result.WeeklyRows+result.MonthlyRows, again.SkippedRows)
}

func TestAggregateAllAvailableCoversTailWeek(t *testing.T) {
	agg, store := setupAggregator(t)

	// Sunday closes 2025-W01, Monday opens W02. A seven-day stride from the
	// span's first day would never land inside the second week, so the walk
	// has to start from that week's Monday.
	testsupport.SeedTrafficSeries(t, store, testsupport.Date(2025, time.January, 5), []int64{100, 200})

	result, err := agg.AggregateAllAvailable(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.WeeklyPeriods)

	tail, err := store.GetWeekly(
		testsupport.Date(2025, time.January, 6), testsupport.Date(2025, time.January, 12),
		metrics.MetricTraffic, metrics.ScopeGeneral, "")
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, 1, tail.DataPoints)
	assert.InDelta(t, 200, tail.SumSessions, 0.001)
}

func TestAggregateAllAvailableEmptyStore(t *testing.T) {
	agg, _ := setupAggregator(t)

	result, err := agg.AggregateAllAvailable(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.WeeklyPeriods)
	assert.Equal(t, 0, result.MonthlyPeriods)
}

func TestAggregateAllAvailableHonorsCancellation(t *testing.T) {
	agg, store := setupAggregator(t)

	testsupport.SeedTrafficSeries(t, store, testsupport.Date(2025, time.November, 24), []int64{100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.AggregateAllAvailable(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}
