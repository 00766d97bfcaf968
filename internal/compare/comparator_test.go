package compare_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claritywell/internal/compare"
	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
	"claritywell/internal/testsupport"
)

func setupComparator(t *testing.T) (*compare.Comparator, *metrics.Store) {
	t.Helper()
	store := testsupport.SetupStore(t)
	return compare.NewComparator(store, testsupport.GetLogger()), store
}

func week(start time.Time) daterange.DateRange {
	return daterange.New(start, start.AddDate(0, 0, 6), "week")
}

func TestComparePeriodsSessionGrowth(t *testing.T) {
	comparator, store := setupComparator(t)

	// Previous week totals 42,000 sessions, current week 44,461.
	prevStart := testsupport.Date(2025, time.November, 10)
	currStart := testsupport.Date(2025, time.November, 17)
	testsupport.SeedTrafficSeries(t, store, prevStart, []int64{6000, 6000, 6000, 6000, 6000, 6000, 6000})
	testsupport.SeedTrafficSeries(t, store, currStart, []int64{6351, 6351, 6351, 6351, 6351, 6351, 6355})

	result, err := comparator.ComparePeriods(week(currStart), week(prevStart), metrics.Filters{})
	require.NoError(t, err)

	change, ok := result.Changes["sessions"]
	require.True(t, ok)
	assert.InDelta(t, 44461, change.Current, 0.001)
	assert.InDelta(t, 42000, change.Previous, 0.001)
	assert.InDelta(t, 2461, change.Absolute, 0.001)
	assert.InDelta(t, 5.86, change.Percent, 0.01)
	assert.Equal(t, "up", change.Direction)

	// Session growth is an improvement.
	var found bool
	for _, imp := range result.Improvements {
		if imp.Metric == "sessions" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, "positive", result.Overall())
}

func TestCompareToPreviousUsesAdjacentEqualPeriod(t *testing.T) {
	comparator, store := setupComparator(t)

	currStart := testsupport.Date(2025, time.November, 17)
	testsupport.SeedTrafficSeries(t, store, currStart, []int64{100, 100, 100, 100, 100, 100, 100})

	result, err := comparator.CompareToPrevious(week(currStart), metrics.Filters{})
	require.NoError(t, err)

	assert.Equal(t, week(currStart).Days(), result.Period2.Days())
	assert.Equal(t, currStart.AddDate(0, 0, -1), result.Period2.End)
	assert.Equal(t, currStart.AddDate(0, 0, -7), result.Period2.Start)
}

func TestFrustrationDecreaseIsImprovement(t *testing.T) {
	comparator, store := setupComparator(t)

	prevDay := testsupport.Date(2025, time.November, 23)
	currDay := testsupport.Date(2025, time.November, 24)
	testsupport.SeedFrustrationDay(t, store, prevDay, 1000, 50)
	testsupport.SeedFrustrationDay(t, store, currDay, 1000, 20)

	p1 := daterange.New(currDay, currDay, "today")
	p2 := daterange.New(prevDay, prevDay, "yesterday")
	result, err := comparator.ComparePeriods(p1, p2, metrics.Filters{})
	require.NoError(t, err)

	change := result.Changes["dead_clicks"]
	assert.Equal(t, "down", change.Direction)
	assert.InDelta(t, -30, change.Absolute, 0.001)
	assert.InDelta(t, -60, change.Percent, 0.01)

	improved := map[string]bool{}
	for _, imp := range result.Improvements {
		improved[imp.Metric] = true
	}
	for _, m := range []string{"dead_clicks", "rage_clicks", "quick_backs", "error_clicks"} {
		assert.True(t, improved[m], "%s decrease should be an improvement", m)
		assert.True(t, improved[m+"_rate"], "%s_rate decrease should be an improvement", m)
	}
}

func TestRatesPresentWhenPeriodHasNoSessions(t *testing.T) {
	comparator, store := setupComparator(t)

	// Baseline day has traffic and frustration signals; the current day has
	// rows but zero sessions. The rate metrics must still compare, at 0.
	prevDay := testsupport.Date(2025, time.November, 23)
	currDay := testsupport.Date(2025, time.November, 24)
	testsupport.SeedFrustrationDay(t, store, prevDay, 1000, 50)
	testsupport.SeedFrustrationDay(t, store, currDay, 0, 0)

	p1 := daterange.New(currDay, currDay, "today")
	p2 := daterange.New(prevDay, prevDay, "yesterday")
	result, err := comparator.ComparePeriods(p1, p2, metrics.Filters{})
	require.NoError(t, err)

	for _, m := range []string{"dead_clicks", "rage_clicks", "quick_backs", "error_clicks"} {
		change, ok := result.Changes[m+"_rate"]
		require.True(t, ok, "%s_rate should survive a zero-session period", m)
		assert.InDelta(t, 0, change.Current, 0.0001)
		// 50 signals over 4000 summed sessions on the baseline day.
		assert.InDelta(t, 0.0125, change.Previous, 0.0001)
		assert.Equal(t, "down", change.Direction)
	}
}

func TestZeroBaselinePercentRules(t *testing.T) {
	comparator, store := setupComparator(t)

	// Previous period has rows but zero sessions; current has activity.
	prevDay := testsupport.Date(2025, time.November, 23)
	currDay := testsupport.Date(2025, time.November, 24)
	testsupport.SeedTrafficSeries(t, store, prevDay, []int64{0})
	testsupport.SeedTrafficSeries(t, store, currDay, []int64{500})

	result, err := comparator.ComparePeriods(
		daterange.New(currDay, currDay, "today"),
		daterange.New(prevDay, prevDay, "yesterday"),
		metrics.Filters{},
	)
	require.NoError(t, err)

	change := result.Changes["sessions"]
	assert.InDelta(t, 100, change.Percent, 0.001) // new activity from zero

	change = result.Changes["page_views"]
	assert.InDelta(t, 0, change.Percent, 0.001) // zero to zero stays flat
	assert.Equal(t, "flat", change.Direction)
}

func TestWeightedScrollDepthAverage(t *testing.T) {
	comparator, store := setupComparator(t)

	day1 := testsupport.Date(2025, time.November, 24)
	r1 := testsupport.TrafficRecord(day1, 100, 50)
	r1.ScrollDepth = testsupport.Float64Ptr(60)
	r2 := testsupport.TrafficRecord(day1.AddDate(0, 0, 1), 300, 150)
	r2.ScrollDepth = testsupport.Float64Ptr(80)
	_, err := store.InsertDaily([]metrics.DailyMetric{r1, r2})
	require.NoError(t, err)

	prevDay := day1.AddDate(0, 0, -2)
	testsupport.SeedTrafficSeries(t, store, prevDay, []int64{100})

	result, err := comparator.ComparePeriods(
		daterange.New(day1, day1.AddDate(0, 0, 1), "current"),
		daterange.New(prevDay, prevDay, "baseline"),
		metrics.Filters{},
	)
	require.NoError(t, err)

	// (60*100 + 80*300) / 400 = 75, not the plain mean of 70.
	assert.InDelta(t, 75, result.Current["avg_scroll_depth"], 0.001)
}

func TestEmptyPeriodsProduceNoChanges(t *testing.T) {
	comparator, _ := setupComparator(t)

	p := daterange.New(testsupport.Date(2025, time.November, 1), testsupport.Date(2025, time.November, 7), "week")
	result, err := comparator.CompareToPrevious(p, metrics.Filters{})
	require.NoError(t, err)
	assert.Empty(t, result.Changes)
	assert.Equal(t, "mixed", result.Overall())
}

func TestPolarityTable(t *testing.T) {
	assert.Equal(t, compare.HigherIsBetter, compare.PolarityOf("sessions"))
	assert.Equal(t, compare.LowerIsBetter, compare.PolarityOf("rage_clicks"))
	assert.Equal(t, compare.PolarityNone, compare.PolarityOf("mobile_sessions"))
	assert.Equal(t, compare.PolarityNone, compare.PolarityOf("unknown_metric"))
}
