// Package trend analyzes long-term movement in UX metrics: growth rates,
// volatility, linear trend fit and cyclical patterns.
package trend

import (
	"fmt"
	"log/slog"
	"math"

	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
)

// Report is a full trend analysis over one period. Sections that need more
// data than the period holds carry an Unavailable reason instead of values.
type Report struct {
	Period     PeriodInfo
	Overall    OverallStats
	Growth     GrowthStats
	Volatility VolatilityStats
	Trend      TrendStats
	Pattern    PatternStats
}

// PeriodInfo describes the analyzed window.
type PeriodInfo struct {
	Range      daterange.DateRange
	Days       int
	DataPoints int
}

// OverallStats totals the period.
type OverallStats struct {
	TotalSessions         int64
	AvgSessionsPerDay     float64
	MinSessions           int64
	MaxSessions           int64
	TotalUsers            int64
	AvgUsersPerDay        float64
	TotalFrustration      int64
	FrustrationPerSession float64
}

// GrowthStats compares the period's first and last days.
type GrowthStats struct {
	Unavailable       string
	TotalGrowthPct    float64
	CAGRPct           float64
	HasCAGR           bool
	AvgDailyGrowthPct float64
	FirstSessions     int64
	LastSessions      int64
	AbsoluteChange    int64
}

// VolatilityStats measures day-to-day dispersion of sessions.
type VolatilityStats struct {
	Unavailable            string
	Mean                   float64
	StdDev                 float64
	Variance               float64
	CoefficientOfVariation float64
	Stability              string // "high", "medium" or "low"
}

// TrendStats is an ordinary least squares fit of sessions over day index.
type TrendStats struct {
	Unavailable string
	Direction   string // "increasing", "decreasing" or "stable"
	Slope       float64
	Intercept   float64
	RSquared    float64
	Strength    string // "strong", "moderate" or "weak"
}

// PatternStats describes peaks, valleys and weekly cycles.
type PatternStats struct {
	Unavailable       string
	PeaksCount        int
	ValleysCount      int
	AvgPeakDistance   float64
	HasPeakDistance   bool
	AvgValleyDistance float64
	HasValleyDistance bool
	WeeklyPattern     bool
	Cyclical          bool
}

// ErrNoData is returned when the period holds no rows at all.
type ErrNoData struct {
	Range daterange.DateRange
}

func (e *ErrNoData) Error() string {
	return fmt.Sprintf("no data found for period %s", e.Range)
}

// Analyzer runs trend analysis over stored daily metrics.
type Analyzer struct {
	store  *metrics.Store
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer over a store.
func NewAnalyzer(store *metrics.Store, logger *slog.Logger) *Analyzer {
	return &Analyzer{store: store, logger: logger}
}

// Analyze builds a trend report for a period. The session series is taken
// from the matching daily rows in date order.
func (a *Analyzer) Analyze(rng daterange.DateRange, f metrics.Filters) (*Report, error) {
	records, err := a.store.QueryDaily(rng.Start, rng.End, f)
	if err != nil {
		return nil, fmt.Errorf("trend query for %s failed: %w", rng, err)
	}
	if len(records) == 0 {
		return nil, &ErrNoData{Range: rng}
	}

	sessions := make([]float64, len(records))
	for i := range records {
		if records[i].Sessions != nil {
			sessions[i] = float64(*records[i].Sessions)
		}
	}

	report := &Report{
		Period: PeriodInfo{
			Range:      rng,
			Days:       rng.Days(),
			DataPoints: len(records),
		},
		Overall:    analyzeOverall(records, sessions),
		Growth:     analyzeGrowth(sessions, rng.Days()),
		Volatility: analyzeVolatility(sessions),
		Trend:      fitTrend(sessions),
		Pattern:    findPatterns(sessions),
	}
	return report, nil
}

func analyzeOverall(records []metrics.DailyMetric, sessions []float64) OverallStats {
	stats := OverallStats{MinSessions: math.MaxInt64}

	var users, frustration int64
	for i := range records {
		m := &records[i]
		s := int64(sessions[i])
		stats.TotalSessions += s
		if s > stats.MaxSessions {
			stats.MaxSessions = s
		}
		if s < stats.MinSessions {
			stats.MinSessions = s
		}
		if m.Users != nil {
			users += *m.Users
		}
		for _, v := range []*int64{m.DeadClicks, m.RageClicks, m.QuickBacks, m.ErrorClicks} {
			if v != nil {
				frustration += *v
			}
		}
	}

	n := float64(len(records))
	stats.AvgSessionsPerDay = float64(stats.TotalSessions) / n
	stats.TotalUsers = users
	stats.AvgUsersPerDay = float64(users) / n
	stats.TotalFrustration = frustration
	if stats.TotalSessions > 0 {
		stats.FrustrationPerSession = float64(frustration) / float64(stats.TotalSessions)
	}
	return stats
}

// analyzeGrowth compares the first and last data points. CAGR only applies
// when the period spans more than 30 days and the series starts above zero.
func analyzeGrowth(sessions []float64, periodDays int) GrowthStats {
	if len(sessions) < 2 {
		return GrowthStats{Unavailable: "insufficient data for growth analysis"}
	}

	first := sessions[0]
	last := sessions[len(sessions)-1]

	stats := GrowthStats{
		FirstSessions:  int64(first),
		LastSessions:   int64(last),
		AbsoluteChange: int64(last - first),
	}

	if first == 0 {
		if last > 0 {
			stats.TotalGrowthPct = 100
		}
	} else {
		stats.TotalGrowthPct = (last - first) / first * 100
	}

	if periodDays >= 30 && first > 0 {
		stats.CAGRPct = (math.Pow(last/first, 365/float64(periodDays)) - 1) * 100
		stats.HasCAGR = true
	}

	// Average of day-over-day changes, skipping days with a zero baseline.
	var changes []float64
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1] > 0 {
			changes = append(changes, (sessions[i]-sessions[i-1])/sessions[i-1]*100)
		}
	}
	if len(changes) > 0 {
		stats.AvgDailyGrowthPct = mean(changes)
	}
	return stats
}

func analyzeVolatility(sessions []float64) VolatilityStats {
	if len(sessions) < 2 {
		return VolatilityStats{Unavailable: "insufficient data for volatility analysis"}
	}

	m := mean(sessions)
	variance := populationVariance(sessions, m)
	stdDev := math.Sqrt(variance)

	stats := VolatilityStats{
		Mean:     m,
		StdDev:   stdDev,
		Variance: variance,
	}
	if m > 0 {
		stats.CoefficientOfVariation = stdDev / m * 100
	}
	switch {
	case stats.CoefficientOfVariation < 10:
		stats.Stability = "high"
	case stats.CoefficientOfVariation < 30:
		stats.Stability = "medium"
	default:
		stats.Stability = "low"
	}
	return stats
}

// fitTrend runs an ordinary least squares regression of sessions against day
// index.
func fitTrend(sessions []float64) TrendStats {
	if len(sessions) < 3 {
		return TrendStats{Unavailable: "insufficient data for trend analysis"}
	}

	n := len(sessions)
	xMean := float64(n-1) / 2
	yMean := mean(sessions)

	var numerator, denominator float64
	for i := 0; i < n; i++ {
		dx := float64(i) - xMean
		numerator += dx * (sessions[i] - yMean)
		denominator += dx * dx
	}

	stats := TrendStats{}
	if denominator != 0 {
		stats.Slope = numerator / denominator
	}
	stats.Intercept = yMean - stats.Slope*xMean

	switch {
	case stats.Slope > 0.5:
		stats.Direction = "increasing"
	case stats.Slope < -0.5:
		stats.Direction = "decreasing"
	default:
		stats.Direction = "stable"
	}

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		predicted := stats.Slope*float64(i) + stats.Intercept
		ssRes += (sessions[i] - predicted) * (sessions[i] - predicted)
		ssTot += (sessions[i] - yMean) * (sessions[i] - yMean)
	}
	if ssTot > 0 {
		stats.RSquared = 1 - ssRes/ssTot
	}

	switch {
	case stats.RSquared > 0.7:
		stats.Strength = "strong"
	case stats.RSquared > 0.4:
		stats.Strength = "moderate"
	default:
		stats.Strength = "weak"
	}
	return stats
}

// findPatterns locates strict local peaks and valleys and checks whether
// peaks recur on a roughly weekly cadence. A series only counts as cyclical
// when that weekly cadence shows up across at least two peaks and two
// valleys.
func findPatterns(sessions []float64) PatternStats {
	if len(sessions) < 7 {
		return PatternStats{Unavailable: "insufficient data for pattern analysis (need 7+ days)"}
	}

	var peaks, valleys []int
	for i := 1; i < len(sessions)-1; i++ {
		switch {
		case sessions[i] > sessions[i-1] && sessions[i] > sessions[i+1]:
			peaks = append(peaks, i)
		case sessions[i] < sessions[i-1] && sessions[i] < sessions[i+1]:
			valleys = append(valleys, i)
		}
	}

	stats := PatternStats{
		PeaksCount:   len(peaks),
		ValleysCount: len(valleys),
	}

	if len(peaks) > 1 {
		stats.AvgPeakDistance = avgGap(peaks)
		stats.HasPeakDistance = true
	}
	if len(valleys) > 1 {
		stats.AvgValleyDistance = avgGap(valleys)
		stats.HasValleyDistance = true
	}

	stats.WeeklyPattern = stats.HasPeakDistance &&
		stats.AvgPeakDistance >= 6 && stats.AvgPeakDistance <= 8
	stats.Cyclical = stats.WeeklyPattern && len(peaks) >= 2 && len(valleys) >= 2

	return stats
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationVariance(values []float64, mean float64) float64 {
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(values))
}

func avgGap(indices []int) float64 {
	gaps := make([]float64, 0, len(indices)-1)
	for i := 1; i < len(indices); i++ {
		gaps = append(gaps, float64(indices[i]-indices[i-1]))
	}
	return mean(gaps)
}
