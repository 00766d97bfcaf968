package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"claritywell/internal"
	"claritywell/internal/clarity"
	"claritywell/internal/metrics"
)

// scopeFilters builds storage filters from the shared command-line options.
func scopeFilters(metricName, scope, pageID string) metrics.Filters {
	return metrics.Filters{
		MetricName: metricName,
		DataScope:  scope,
		PageID:     pageID,
	}
}

// FetchCommand pulls a snapshot from the Clarity export API
type FetchCommand struct{}

func (c *FetchCommand) Name() string { return "fetch" }
func (c *FetchCommand) Description() string {
	return "Fetches a snapshot from the Clarity export API and stores it"
}

func (c *FetchCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	numDays := fs.Int("days", 1, "number of trailing days to fetch (1-3)")
	dim1 := fs.String("dimension1", "", "first breakdown dimension (e.g. Device, URL)")
	dim2 := fs.String("dimension2", "", "second breakdown dimension")
	dim3 := fs.String("dimension3", "", "third breakdown dimension")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.Config.ValidateClarityCredentials(); err != nil {
		return err
	}

	summary, err := app.Ingestor.FetchSnapshot(ctx, clarity.FetchOptions{
		NumDays:    *numDays,
		Dimension1: *dim1,
		Dimension2: *dim2,
		Dimension3: *dim3,
	})
	if err != nil {
		return err
	}

	log.Printf("Fetched %d metric groups for %s", summary.MetricGroups, summary.MetricDate.Format("2006-01-02"))
	log.Printf("Inserted %d rows (%d already present)", summary.RowsInserted, summary.RowsSkipped)

	remaining, err := app.Ingestor.BudgetRemaining()
	if err == nil {
		log.Printf("API requests remaining today: %d", remaining)
	}
	return nil
}

// QueryCommand lists daily rows for a date expression
type QueryCommand struct{}

func (c *QueryCommand) Name() string { return "query" }
func (c *QueryCommand) Description() string {
	return "Lists daily metrics for a date expression (e.g. \"7d\", \"last-week\")"
}

func (c *QueryCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	metricName := fs.String("metric", "", "filter by metric name")
	scope := fs.String("scope", metrics.ScopeGeneral, "data scope: general or page")
	pageID := fs.String("page", "", "page id filter (page scope)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [flags] <date-expression>", c.Name())
	}

	result, err := app.Query.Query(strings.Join(fs.Args(), " "), scopeFilters(*metricName, *scope, *pageID))
	if err != nil {
		return err
	}

	fmt.Printf("Period: %s (%d days), %d rows\n\n", result.Range, result.Range.Days(), len(result.Records))
	for _, row := range result.Records {
		var sessions string
		if row.Sessions != nil {
			sessions = strconv.FormatInt(*row.Sessions, 10)
		} else {
			sessions = "-"
		}
		fmt.Printf("%s  %-20s %-8s %8s sessions\n",
			row.MetricDate.Format("2006-01-02"), row.MetricName, row.DataScope, sessions)
	}
	return nil
}

// AggregateCommand summarizes one metric field over a date expression
type AggregateCommand struct{}

func (c *AggregateCommand) Name() string { return "aggregate" }
func (c *AggregateCommand) Description() string {
	return "Aggregates a metric field over a date expression"
}

func (c *AggregateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	field := fs.String("field", "sessions", "field to aggregate (sessions, users, dead_clicks, ...)")
	metricName := fs.String("metric", metrics.MetricTraffic, "filter by metric name")
	scope := fs.String("scope", metrics.ScopeGeneral, "data scope: general or page")
	pageID := fs.String("page", "", "page id filter (page scope)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [flags] <date-expression>", c.Name())
	}

	agg, err := app.Query.Aggregate(strings.Join(fs.Args(), " "), *field, scopeFilters(*metricName, *scope, *pageID))
	if err != nil {
		return err
	}

	fmt.Printf("Period: %s (%d days)\n", agg.Range, agg.Range.Days())
	fmt.Printf("Field:  %s\n\n", agg.Field)
	fmt.Printf("  Data points: %d\n", agg.Count)
	fmt.Printf("  Sum:         %.2f\n", agg.Sum)
	fmt.Printf("  Average:     %.2f\n", agg.Avg)
	fmt.Printf("  Min:         %.2f\n", agg.Min)
	fmt.Printf("  Max:         %.2f\n", agg.Max)
	return nil
}

// RollupCommand builds weekly and monthly summaries
type RollupCommand struct{}

func (c *RollupCommand) Name() string { return "rollup" }
func (c *RollupCommand) Description() string {
	return "Rolls daily metrics up into weekly and monthly summaries"
}

func (c *RollupCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	force := fs.Bool("force", false, "recompute summaries that already exist")
	week := fs.String("week", "", "roll up one ISO week, formatted YYYY-WW")
	month := fs.String("month", "", "roll up one month, formatted YYYY-MM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *week != "":
		year, num, err := splitPeriod(*week)
		if err != nil {
			return fmt.Errorf("invalid -week value %q: %w", *week, err)
		}
		result, err := app.Rollup.AggregateWeek(year, num, *force)
		if err != nil {
			return err
		}
		log.Printf("Week %s: %d rows written, %d skipped", result.Label, result.Written, result.Skipped)

	case *month != "":
		year, num, err := splitPeriod(*month)
		if err != nil {
			return fmt.Errorf("invalid -month value %q: %w", *month, err)
		}
		result, err := app.Rollup.AggregateMonth(year, num, *force)
		if err != nil {
			return err
		}
		log.Printf("Month %s: %d rows written, %d skipped", result.Label, result.Written, result.Skipped)

	default:
		result, err := app.Rollup.AggregateAllAvailable(ctx, *force)
		if err != nil {
			return err
		}
		log.Printf("Weekly: %d periods, %d rows", result.WeeklyPeriods, result.WeeklyRows)
		log.Printf("Monthly: %d periods, %d rows", result.MonthlyPeriods, result.MonthlyRows)
		log.Printf("Skipped existing rows: %d", result.SkippedRows)
	}
	return nil
}

func splitPeriod(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected YYYY-NN")
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	num, err := strconv.Atoi(strings.TrimPrefix(parts[1], "W"))
	if err != nil {
		return 0, 0, err
	}
	return year, num, nil
}

// CompareCommand contrasts two periods
type CompareCommand struct{}

func (c *CompareCommand) Name() string { return "compare" }
func (c *CompareCommand) Description() string {
	return "Compares metrics between two periods (second defaults to the previous equivalent)"
}

func (c *CompareCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	metricName := fs.String("metric", "", "filter by metric name")
	scope := fs.String("scope", metrics.ScopeGeneral, "data scope: general or page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [flags] <period1> [period2]", c.Name())
	}

	period1, err := app.Query.Resolve(fs.Arg(0))
	if err != nil {
		return err
	}

	filters := scopeFilters(*metricName, *scope, "")
	var comparison *compareResult
	if fs.NArg() >= 2 {
		period2, err := app.Query.Resolve(fs.Arg(1))
		if err != nil {
			return err
		}
		result, err := app.Compare.ComparePeriods(period1, period2, filters)
		if err != nil {
			return err
		}
		comparison = &compareResult{result}
	} else {
		result, err := app.Compare.CompareToPrevious(period1, filters)
		if err != nil {
			return err
		}
		comparison = &compareResult{result}
	}

	comparison.print()
	return nil
}

// TrendCommand analyzes long-term movement
type TrendCommand struct{}

func (c *TrendCommand) Name() string { return "trend" }
func (c *TrendCommand) Description() string {
	return "Analyzes growth, volatility and patterns over a period"
}

func (c *TrendCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	metricName := fs.String("metric", metrics.MetricTraffic, "metric to analyze")
	scope := fs.String("scope", metrics.ScopeGeneral, "data scope: general or page")
	pageID := fs.String("page", "", "page id filter (page scope)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [flags] <date-expression>", c.Name())
	}

	rng, err := app.Query.Resolve(strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}

	report, err := app.Trend.Analyze(rng, scopeFilters(*metricName, *scope, *pageID))
	if err != nil {
		return err
	}

	printTrendReport(report)
	return nil
}

// ReportCommand renders a markdown report
type ReportCommand struct{}

func (c *ReportCommand) Name() string { return "report" }
func (c *ReportCommand) Description() string {
	return "Generates a markdown report for a period"
}

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	output := fs.String("output", "", "output directory (default: print to stdout)")
	metricName := fs.String("metric", "", "filter by metric name")
	scope := fs.String("scope", metrics.ScopeGeneral, "data scope: general or page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [flags] <date-expression>", c.Name())
	}

	rng, err := app.Query.Resolve(strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	filters := scopeFilters(*metricName, *scope, "")

	dir := *output
	if dir == "" && app.Config.ExportDirectory != "" {
		dir = app.Config.ExportDirectory
	}
	if dir != "" {
		path, err := app.Report.WriteFile(dir, rng, filters)
		if err != nil {
			return err
		}
		log.Printf("Report written to %s", path)
		return nil
	}

	content, err := app.Report.Generate(rng, filters)
	if err != nil {
		return err
	}
	fmt.Println(content)
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	stats, err := app.Store.GetStatistics()
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Daily metric rows: %d", stats.DailyRows)
	log.Printf("- Weekly summaries: %d", stats.WeeklyRows)
	log.Printf("- Monthly summaries: %d", stats.MonthlyRows)
	log.Printf("- API requests logged: %d (%d successful)", stats.FetchRequests, stats.FetchSuccess)
	if !stats.LatestFetch.IsZero() {
		log.Printf("- Last fetch: %s", stats.LatestFetch.Format("2006-01-02 15:04 UTC"))
	}

	if idx, err := app.Query.AvailableDates(metrics.ScopeGeneral); err == nil && len(idx.Dates) > 0 {
		log.Printf("- Data coverage: %s to %s (%d days)",
			idx.Min.Format("2006-01-02"), idx.Max.Format("2006-01-02"), len(idx.Dates))
	}

	remaining, err := app.Ingestor.BudgetRemaining()
	if err == nil {
		log.Printf("- API requests remaining today: %d", remaining)
	}
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed")
	return nil
}

// ScheduleCommand runs the background scheduler in the foreground
type ScheduleCommand struct{}

func (c *ScheduleCommand) Name() string { return "schedule" }
func (c *ScheduleCommand) Description() string {
	return "Runs the snapshot and cleanup jobs on a schedule until interrupted"
}

func (c *ScheduleCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := app.Config.ValidateClarityCredentials(); err != nil {
		return err
	}
	if err := app.Scheduler.Start(); err != nil {
		return err
	}

	log.Println("Scheduler running, press Ctrl+C to stop")
	<-ctx.Done()

	app.Scheduler.Stop()
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fmt.Println("Usage: claritywell [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}

	fmt.Println("\nDate expressions: \"7d\", \"2weeks\", \"last-week\", \"this-month\",")
	fmt.Println("\"2025-11\", \"November\", \"2025-Q4\", \"2025\", \"2025-11-01 to 2025-11-30\"")
	return nil
}
