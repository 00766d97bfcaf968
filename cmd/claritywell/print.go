package main

import (
	"fmt"
	"sort"
	"strings"

	"claritywell/internal/compare"
	"claritywell/internal/trend"
)

// compareResult wraps a comparison with terminal formatting.
type compareResult struct {
	*compare.Comparison
}

func (r *compareResult) print() {
	fmt.Printf("Comparing %s against %s\n\n", r.Period1, r.Period2)

	metricNames := make([]string, 0, len(r.Changes))
	for name := range r.Changes {
		metricNames = append(metricNames, name)
	}
	sort.Strings(metricNames)

	fmt.Printf("%-28s %12s %12s %10s\n", "Metric", "Current", "Previous", "Change")
	fmt.Println(strings.Repeat("-", 66))
	for _, name := range metricNames {
		ch := r.Changes[name]
		fmt.Printf("%-28s %12.2f %12.2f %+9.2f%%\n", ch.Metric, ch.Current, ch.Previous, ch.Percent)
	}

	if len(r.Improvements) > 0 {
		fmt.Println("\nImprovements:")
		for _, ch := range r.Improvements {
			fmt.Printf("  %s: %s (%+.2f%%)\n", ch.Metric, ch.Direction, ch.Percent)
		}
	}
	if len(r.Regressions) > 0 {
		fmt.Println("\nRegressions:")
		for _, ch := range r.Regressions {
			fmt.Printf("  %s: %s (%+.2f%%)\n", ch.Metric, ch.Direction, ch.Percent)
		}
	}

	fmt.Printf("\nOverall: %s\n", r.Overall())
}

func printTrendReport(r *trend.Report) {
	fmt.Printf("Trend analysis for %s (%d days, %d data points)\n\n",
		r.Period.Range, r.Period.Days, r.Period.DataPoints)

	fmt.Println("Overall:")
	fmt.Printf("  Total sessions:   %d (avg %.1f/day, min %d, max %d)\n",
		r.Overall.TotalSessions, r.Overall.AvgSessionsPerDay, r.Overall.MinSessions, r.Overall.MaxSessions)
	fmt.Printf("  Total users:      %d (avg %.1f/day)\n", r.Overall.TotalUsers, r.Overall.AvgUsersPerDay)
	fmt.Printf("  Frustration:      %d signals (%.3f per session)\n",
		r.Overall.TotalFrustration, r.Overall.FrustrationPerSession)

	fmt.Println("\nGrowth:")
	if r.Growth.Unavailable != "" {
		fmt.Printf("  %s\n", r.Growth.Unavailable)
	} else {
		fmt.Printf("  Total growth:     %+.2f%% (%d -> %d sessions, %+d)\n",
			r.Growth.TotalGrowthPct, r.Growth.FirstSessions, r.Growth.LastSessions, r.Growth.AbsoluteChange)
		fmt.Printf("  Avg daily growth: %+.2f%%\n", r.Growth.AvgDailyGrowthPct)
		if r.Growth.HasCAGR {
			fmt.Printf("  Annualized rate:  %+.2f%%\n", r.Growth.CAGRPct)
		}
	}

	fmt.Println("\nVolatility:")
	if r.Volatility.Unavailable != "" {
		fmt.Printf("  %s\n", r.Volatility.Unavailable)
	} else {
		fmt.Printf("  Std deviation:    %.2f (mean %.2f)\n", r.Volatility.StdDev, r.Volatility.Mean)
		fmt.Printf("  Variation coeff:  %.2f%% (%s stability)\n",
			r.Volatility.CoefficientOfVariation, r.Volatility.Stability)
	}

	fmt.Println("\nTrend:")
	if r.Trend.Unavailable != "" {
		fmt.Printf("  %s\n", r.Trend.Unavailable)
	} else {
		fmt.Printf("  Direction:        %s (%s)\n", r.Trend.Direction, r.Trend.Strength)
		fmt.Printf("  Slope:            %+.2f sessions/day (R² %.3f)\n", r.Trend.Slope, r.Trend.RSquared)
	}

	fmt.Println("\nPatterns:")
	if r.Pattern.Unavailable != "" {
		fmt.Printf("  %s\n", r.Pattern.Unavailable)
	} else {
		fmt.Printf("  Peaks: %d", r.Pattern.PeaksCount)
		if r.Pattern.HasPeakDistance {
			fmt.Printf(" (avg %.1f days apart)", r.Pattern.AvgPeakDistance)
		}
		fmt.Printf(", valleys: %d", r.Pattern.ValleysCount)
		if r.Pattern.HasValleyDistance {
			fmt.Printf(" (avg %.1f days apart)", r.Pattern.AvgValleyDistance)
		}
		fmt.Println()
		fmt.Printf("  Weekly pattern:   %t\n", r.Pattern.WeeklyPattern)
		fmt.Printf("  Cyclical:         %t\n", r.Pattern.Cyclical)
	}
}
