package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claritywell/internal/metrics"
	"claritywell/internal/testsupport"
)

func TestInsertDailySkipsDuplicates(t *testing.T) {
	store := testsupport.SetupStore(t)

	day := testsupport.Date(2025, time.November, 24)
	records := []metrics.DailyMetric{
		testsupport.TrafficRecord(day, 1200, 800),
		testsupport.TrafficRecord(day.AddDate(0, 0, 1), 1350, 900),
	}

	inserted, err := store.InsertDaily(records)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Same natural keys again: nothing new is written.
	inserted, err = store.InsertDaily([]metrics.DailyMetric{
		testsupport.TrafficRecord(day, 9999, 9999),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	rows, err := store.QueryDaily(day, day, metrics.Filters{MetricName: metrics.MetricTraffic})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1200), *rows[0].Sessions)
}

func TestInsertDailyDistinguishesPageScope(t *testing.T) {
	store := testsupport.SetupStore(t)

	day := testsupport.Date(2025, time.November, 24)
	general := testsupport.TrafficRecord(day, 1000, 600)
	page := testsupport.TrafficRecord(day, 150, 90)
	page.DataScope = metrics.ScopePage
	page.PageID = "/pricing"

	inserted, err := store.InsertDaily([]metrics.DailyMetric{general, page})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	rows, err := store.QueryDaily(day, day, metrics.Filters{DataScope: metrics.ScopePage, PageID: "/pricing"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(150), *rows[0].Sessions)

	// Default scope excludes page rows.
	rows, err = store.QueryDaily(day, day, metrics.Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1000), *rows[0].Sessions)
}

func TestQueryDailyOrdersAscending(t *testing.T) {
	store := testsupport.SetupStore(t)

	start := testsupport.Date(2025, time.November, 20)
	// Seed out of order.
	_, err := store.InsertDaily([]metrics.DailyMetric{
		testsupport.TrafficRecord(start.AddDate(0, 0, 2), 300, 150),
		testsupport.TrafficRecord(start, 100, 50),
		testsupport.TrafficRecord(start.AddDate(0, 0, 1), 200, 100),
	})
	require.NoError(t, err)

	rows, err := store.QueryDaily(start, start.AddDate(0, 0, 6), metrics.Filters{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.True(t, !rows[i].MetricDate.Before(rows[i-1].MetricDate),
			"rows must be ordered by date ascending")
	}
	assert.Equal(t, int64(100), *rows[0].Sessions)
	assert.Equal(t, int64(300), *rows[2].Sessions)
}

func TestAggregateFieldCountsNonNullOnly(t *testing.T) {
	store := testsupport.SetupStore(t)

	start := testsupport.Date(2025, time.November, 1)
	withScroll := testsupport.TrafficRecord(start, 100, 50)
	withScroll.ScrollDepth = testsupport.Float64Ptr(62.5)
	withoutScroll := testsupport.TrafficRecord(start.AddDate(0, 0, 1), 200, 100)

	_, err := store.InsertDaily([]metrics.DailyMetric{withScroll, withoutScroll})
	require.NoError(t, err)

	agg, err := store.AggregateField(start, start.AddDate(0, 0, 6), "scroll_depth", metrics.Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Count)
	assert.InDelta(t, 62.5, agg.Avg, 0.001)
	assert.InDelta(t, 62.5, agg.Sum, 0.001)

	agg, err = store.AggregateField(start, start.AddDate(0, 0, 6), "sessions", metrics.Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.Count)
	assert.InDelta(t, 300, agg.Sum, 0.001)
	assert.InDelta(t, 150, agg.Avg, 0.001)
	assert.InDelta(t, 100, agg.Min, 0.001)
	assert.InDelta(t, 200, agg.Max, 0.001)
}

func TestAggregateFieldRejectsUnknownField(t *testing.T) {
	store := testsupport.SetupStore(t)

	_, err := store.AggregateField(
		testsupport.Date(2025, time.November, 1),
		testsupport.Date(2025, time.November, 7),
		"sessions; DROP TABLE daily_metrics", metrics.Filters{},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric field")
}

func TestAggregateWindowGroupsByMetricAndScope(t *testing.T) {
	store := testsupport.SetupStore(t)

	start := testsupport.Date(2025, time.November, 24) // Monday
	testsupport.SeedTrafficSeries(t, store, start, []int64{100, 200, 300})
	testsupport.SeedFrustrationDay(t, store, start, 100, 5)

	groups, err := store.AggregateWindow(start, start.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, groups, 5) // Traffic + four frustration metrics

	var traffic *metrics.WindowAggregate
	for i := range groups {
		if groups[i].MetricName == metrics.MetricTraffic {
			traffic = &groups[i]
		}
	}
	require.NotNil(t, traffic)
	assert.Equal(t, 3, traffic.DataPoints)
	assert.InDelta(t, 600, traffic.SumSessions, 0.001)
	assert.InDelta(t, 200, traffic.AvgSessions, 0.001)
	assert.InDelta(t, 100, traffic.MinSessions, 0.001)
	assert.InDelta(t, 300, traffic.MaxSessions, 0.001)
}

func TestListDistinctDates(t *testing.T) {
	store := testsupport.SetupStore(t)

	start := testsupport.Date(2025, time.November, 1)
	testsupport.SeedTrafficSeries(t, store, start, []int64{10, 20, 30})
	testsupport.SeedFrustrationDay(t, store, start, 10, 1)

	idx, err := store.ListDistinctDates(metrics.ScopeGeneral)
	require.NoError(t, err)
	require.Len(t, idx.Dates, 3) // duplicate dates collapse
	assert.Equal(t, start, metrics.DateOnly(idx.Min))
	assert.Equal(t, start.AddDate(0, 0, 2), metrics.DateOnly(idx.Max))
}

func TestInsertOrSkipWeeklyIdempotent(t *testing.T) {
	store := testsupport.SetupStore(t)

	weekStart := testsupport.Date(2025, time.November, 24)
	weekEnd := weekStart.AddDate(0, 0, 6)
	summary := metrics.WeeklyMetric{
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Year:        2025,
		WeekNumber:  48,
		MetricName:  metrics.MetricTraffic,
		DataScope:   metrics.ScopeGeneral,
		AvgSessions: 200,
		SumSessions: 1400,
		DataPoints:  7,
	}

	stored, existed, err := store.InsertOrSkipWeekly(summary, false)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.InDelta(t, 1400, stored.SumSessions, 0.001)

	// Second run without force keeps the original row.
	summary.SumSessions = 9999
	stored, existed, err = store.InsertOrSkipWeekly(summary, false)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.InDelta(t, 1400, stored.SumSessions, 0.001)

	// Force overwrites in place without creating a second row.
	stored, existed, err = store.InsertOrSkipWeekly(summary, true)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.InDelta(t, 9999, stored.SumSessions, 0.001)

	var count int64
	require.NoError(t, testsupport.SetupTestDB(t).Model(&metrics.WeeklyMetric{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsertOrSkipMonthlyIdempotent(t *testing.T) {
	store := testsupport.SetupStore(t)

	summary := metrics.MonthlyMetric{
		Year:        2025,
		Month:       11,
		MetricName:  metrics.MetricTraffic,
		DataScope:   metrics.ScopeGeneral,
		AvgSessions: 180,
		SumSessions: 5400,
		MinSessions: 90,
		MaxSessions: 320,
		DataPoints:  30,
	}

	stored, existed, err := store.InsertOrSkipMonthly(summary, false)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.InDelta(t, 5400, stored.SumSessions, 0.001)

	summary.SumSessions = 1
	stored, existed, err = store.InsertOrSkipMonthly(summary, false)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.InDelta(t, 5400, stored.SumSessions, 0.001)

	missing, err := store.GetMonthly(2025, 12, metrics.MetricTraffic, metrics.ScopeGeneral, "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetDateSpan(t *testing.T) {
	store := testsupport.SetupStore(t)

	span, err := store.GetDateSpan()
	require.NoError(t, err)
	assert.Nil(t, span)

	// MIN/MAX results come back from SQLite as raw strings, so the span must
	// survive a round trip through the driver with data present.
	first := testsupport.Date(2025, time.January, 5)
	last := testsupport.Date(2025, time.January, 20)
	inserted, err := store.InsertDaily([]metrics.DailyMetric{
		testsupport.TrafficRecord(first, 100, 50),
		testsupport.TrafficRecord(last, 200, 100),
	})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	span, err = store.GetDateSpan()
	require.NoError(t, err)
	require.NotNil(t, span)
	assert.True(t, span.Min.Equal(first), "min was %s", span.Min)
	assert.True(t, span.Max.Equal(last), "max was %s", span.Max)
	assert.Equal(t, int64(2), span.DateCount)
}

func TestFetchLogBudgetQueries(t *testing.T) {
	store := testsupport.SetupStore(t)

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.InsertFetchLog(metrics.FetchLog{
			Endpoint:    "project-live-insights",
			NumDays:     1,
			StatusCode:  200,
			Success:     true,
			RequestedAt: midnight.Add(time.Duration(i+1) * time.Hour),
		}))
	}
	// One stale entry from long before today.
	require.NoError(t, store.InsertFetchLog(metrics.FetchLog{
		Endpoint:    "project-live-insights",
		NumDays:     1,
		StatusCode:  401,
		Success:     false,
		RequestedAt: midnight.AddDate(0, 0, -120),
	}))

	count, err := store.CountFetchLogsSince(midnight)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	deleted, err := store.DeleteFetchLogsBefore(midnight.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stats, err := store.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.FetchRequests)
	assert.Equal(t, int64(3), stats.FetchSuccess)
	assert.True(t, stats.LatestFetch.Equal(midnight.Add(3*time.Hour)),
		"latest fetch was %s", stats.LatestFetch)
}
