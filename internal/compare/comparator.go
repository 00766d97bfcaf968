// Package compare contrasts UX metrics between two time periods and
// classifies each change as an improvement or a regression.
package compare

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
)

// Polarity encodes which direction of change is desirable for a metric.
type Polarity int

const (
	// PolarityNone marks metrics with no good or bad direction.
	PolarityNone Polarity = iota
	// HigherIsBetter marks volume and engagement metrics.
	HigherIsBetter
	// LowerIsBetter marks frustration signals.
	LowerIsBetter
)

// metricPolarity decides improvement vs regression per derived metric.
// Device split counts carry no judgement on their own.
var metricPolarity = map[string]Polarity{
	"sessions":            HigherIsBetter,
	"users":               HigherIsBetter,
	"page_views":          HigherIsBetter,
	"avg_scroll_depth":    HigherIsBetter,
	"avg_engagement_time": HigherIsBetter,
	"avg_active_time":     HigherIsBetter,

	"dead_clicks":       LowerIsBetter,
	"rage_clicks":       LowerIsBetter,
	"quick_backs":       LowerIsBetter,
	"error_clicks":      LowerIsBetter,
	"dead_clicks_rate":  LowerIsBetter,
	"rage_clicks_rate":  LowerIsBetter,
	"quick_backs_rate":  LowerIsBetter,
	"error_clicks_rate": LowerIsBetter,

	"mobile_sessions":  PolarityNone,
	"desktop_sessions": PolarityNone,
	"tablet_sessions":  PolarityNone,
}

// PolarityOf returns the improvement direction for a derived metric name.
func PolarityOf(metric string) Polarity {
	return metricPolarity[metric]
}

// PeriodTotals holds one period's derived metrics: summed counts, session
// weighted averages and per-session frustration rates.
type PeriodTotals map[string]float64

// Change describes how one derived metric moved between periods.
type Change struct {
	Metric    string
	Current   float64
	Previous  float64
	Absolute  float64
	Percent   float64
	Direction string // "up", "down" or "flat"
}

// Comparison is the outcome of comparing two periods.
type Comparison struct {
	Period1      daterange.DateRange
	Period2      daterange.DateRange
	Current      PeriodTotals
	Previous     PeriodTotals
	Changes      map[string]Change
	Improvements []Change // sorted by percent magnitude, largest first
	Regressions  []Change
}

// Overall summarizes the comparison as "positive", "negative" or "mixed".
func (c *Comparison) Overall() string {
	switch {
	case len(c.Improvements) > len(c.Regressions):
		return "positive"
	case len(c.Regressions) > len(c.Improvements):
		return "negative"
	default:
		return "mixed"
	}
}

// Comparator compares stored metrics between time periods.
type Comparator struct {
	store  *metrics.Store
	logger *slog.Logger
}

// NewComparator creates a comparator over a store.
func NewComparator(store *metrics.Store, logger *slog.Logger) *Comparator {
	return &Comparator{store: store, logger: logger}
}

// ComparePeriods contrasts period1 (current) against period2 (baseline).
func (c *Comparator) ComparePeriods(period1, period2 daterange.DateRange, f metrics.Filters) (*Comparison, error) {
	current, err := c.aggregatePeriod(period1, f)
	if err != nil {
		return nil, err
	}
	previous, err := c.aggregatePeriod(period2, f)
	if err != nil {
		return nil, err
	}

	result := &Comparison{
		Period1:  period1,
		Period2:  period2,
		Current:  current,
		Previous: previous,
		Changes:  make(map[string]Change),
	}

	for metric, curr := range current {
		prev, ok := previous[metric]
		if !ok {
			continue
		}
		change := Change{
			Metric:   metric,
			Current:  curr,
			Previous: prev,
			Absolute: curr - prev,
			Percent:  percentChange(curr, prev),
		}
		switch {
		case change.Absolute > 0:
			change.Direction = "up"
		case change.Absolute < 0:
			change.Direction = "down"
		default:
			change.Direction = "flat"
		}
		result.Changes[metric] = change

		switch classify(metric, change.Absolute) {
		case improvement:
			result.Improvements = append(result.Improvements, change)
		case regression:
			result.Regressions = append(result.Regressions, change)
		}
	}

	byMagnitude := func(changes []Change) func(i, j int) bool {
		return func(i, j int) bool {
			return math.Abs(changes[i].Percent) > math.Abs(changes[j].Percent)
		}
	}
	sort.Slice(result.Improvements, byMagnitude(result.Improvements))
	sort.Slice(result.Regressions, byMagnitude(result.Regressions))

	return result, nil
}

// CompareToPrevious contrasts a period against the adjacent period of equal
// length that ends the day before it starts.
func (c *Comparator) CompareToPrevious(current daterange.DateRange, f metrics.Filters) (*Comparison, error) {
	return c.ComparePeriods(current, current.Previous(), f)
}

// aggregatePeriod collapses a period's daily rows into derived totals. Counts
// sum across days; scroll depth and time metrics average weighted by each
// day's sessions; frustration rates divide by total sessions.
func (c *Comparator) aggregatePeriod(period daterange.DateRange, f metrics.Filters) (PeriodTotals, error) {
	records, err := c.store.QueryDaily(period.Start, period.End, f)
	if err != nil {
		return nil, fmt.Errorf("comparison query for %s failed: %w", period, err)
	}
	if len(records) == 0 {
		return PeriodTotals{}, nil
	}

	totals := PeriodTotals{}
	sumInt := func(key string, pick func(m *metrics.DailyMetric) *int64) {
		var total int64
		for i := range records {
			if v := pick(&records[i]); v != nil {
				total += *v
			}
		}
		totals[key] = float64(total)
	}

	sumInt("sessions", func(m *metrics.DailyMetric) *int64 { return m.Sessions })
	sumInt("users", func(m *metrics.DailyMetric) *int64 { return m.Users })
	sumInt("page_views", func(m *metrics.DailyMetric) *int64 { return m.PageViews })
	sumInt("mobile_sessions", func(m *metrics.DailyMetric) *int64 { return m.MobileSessions })
	sumInt("desktop_sessions", func(m *metrics.DailyMetric) *int64 { return m.DesktopSessions })
	sumInt("tablet_sessions", func(m *metrics.DailyMetric) *int64 { return m.TabletSessions })
	sumInt("dead_clicks", func(m *metrics.DailyMetric) *int64 { return m.DeadClicks })
	sumInt("rage_clicks", func(m *metrics.DailyMetric) *int64 { return m.RageClicks })
	sumInt("quick_backs", func(m *metrics.DailyMetric) *int64 { return m.QuickBacks })
	sumInt("error_clicks", func(m *metrics.DailyMetric) *int64 { return m.ErrorClicks })

	sessions := totals["sessions"]
	if sessions > 0 {
		weightedAvg := func(key string, pick func(m *metrics.DailyMetric) *float64) {
			var weighted float64
			for i := range records {
				v := pick(&records[i])
				if v == nil || records[i].Sessions == nil {
					continue
				}
				weighted += *v * float64(*records[i].Sessions)
			}
			totals[key] = weighted / sessions
		}
		weightedAvg("avg_scroll_depth", func(m *metrics.DailyMetric) *float64 { return m.ScrollDepth })
		weightedAvg("avg_engagement_time", func(m *metrics.DailyMetric) *float64 { return m.EngagementTime })
		weightedAvg("avg_active_time", func(m *metrics.DailyMetric) *float64 { return m.ActiveTime })
	}

	// Rates stay present at 0 when the period carries no sessions, so the
	// frustration metrics never silently drop out of a comparison.
	for _, key := range []string{"dead_clicks", "rage_clicks", "quick_backs", "error_clicks"} {
		if sessions > 0 {
			totals[key+"_rate"] = totals[key] / sessions
		} else {
			totals[key+"_rate"] = 0
		}
	}

	return totals, nil
}

// percentChange handles the zero-baseline cases: no movement from zero stays
// zero, new activity from zero reads as 100%.
func percentChange(curr, prev float64) float64 {
	if prev == 0 {
		if curr == 0 {
			return 0
		}
		return 100
	}
	return (curr - prev) / prev * 100
}

type verdict int

const (
	neutral verdict = iota
	improvement
	regression
)

func classify(metric string, change float64) verdict {
	if change == 0 {
		return neutral
	}
	switch metricPolarity[metric] {
	case HigherIsBetter:
		if change > 0 {
			return improvement
		}
		return regression
	case LowerIsBetter:
		if change < 0 {
			return improvement
		}
		return regression
	}
	return neutral
}
