// Package report renders markdown UX reports from stored metrics.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/guptarohit/asciigraph"

	"claritywell/internal/compare"
	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
	"claritywell/internal/trend"
)

// Generator assembles period reports out of the query, comparison and trend
// layers.
type Generator struct {
	store      *metrics.Store
	comparator *compare.Comparator
	analyzer   *trend.Analyzer
	logger     *slog.Logger
}

// NewGenerator creates a report generator over a store.
func NewGenerator(store *metrics.Store, logger *slog.Logger) *Generator {
	return &Generator{
		store:      store,
		comparator: compare.NewComparator(store, logger),
		analyzer:   trend.NewAnalyzer(store, logger),
		logger:     logger,
	}
}

type reportData struct {
	Title        string
	GeneratedAt  string
	Period       daterange.DateRange
	Days         int
	Chart        string
	HasChart     bool
	Comparison   *compare.Comparison
	Trend        *trend.Report
	HasTrend     bool
	KeyChanges   []compare.Change
	Improvements []compare.Change
	Regressions  []compare.Change
}

const reportTemplate = `# {{.Title}}

Generated {{.GeneratedAt}}

**Period:** {{.Period}} ({{.Days}} days)

{{if .HasChart}}## Daily Sessions

` + "```" + `
{{.Chart}}
` + "```" + `

{{end}}## Key Metrics vs Previous Period

| Metric | Current | Previous | Change |
|---|---|---|---|
{{range .KeyChanges}}| {{title .Metric}} | {{num .Current}} | {{num .Previous}} | {{signed .Absolute}} ({{pct .Percent}}) |
{{end}}
{{if .Improvements}}## Improvements

{{range .Improvements}}- {{title .Metric}}: {{pct .Percent}} ({{signed .Absolute}})
{{end}}
{{end}}{{if .Regressions}}## Regressions

{{range .Regressions}}- {{title .Metric}}: {{pct .Percent}} ({{signed .Absolute}})
{{end}}
{{end}}**Overall:** {{.Comparison.Overall}}
{{if .HasTrend}}
## Trend

- Direction: {{.Trend.Trend.Direction}} ({{.Trend.Trend.Strength}}, R² {{printf "%.3f" .Trend.Trend.RSquared}})
- Slope: {{signed .Trend.Trend.Slope}} sessions/day
- Volatility: {{.Trend.Volatility.Stability}} stability (CV {{printf "%.1f" .Trend.Volatility.CoefficientOfVariation}}%)
- Sessions: {{.Trend.Overall.TotalSessions}} total, {{printf "%.0f" .Trend.Overall.AvgSessionsPerDay}}/day average
{{- if .Trend.Pattern.WeeklyPattern}}
- Weekly pattern detected (peaks about 7 days apart)
{{- end}}
{{end}}`

var templateFuncs = template.FuncMap{
	"title": func(metric string) string {
		words := strings.Split(metric, "_")
		for i, w := range words {
			if len(w) > 0 {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		return strings.Join(words, " ")
	},
	"num": func(v float64) string {
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	},
	"signed": func(v float64) string {
		if v == float64(int64(v)) {
			return fmt.Sprintf("%+d", int64(v))
		}
		return fmt.Sprintf("%+.2f", v)
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%+.1f%%", v)
	},
}

var keyMetrics = []string{"sessions", "users", "page_views"}

// Generate renders a markdown report for a period, with a session chart, a
// comparison against the adjacent previous period, and trend analysis when
// the period holds enough data.
func (g *Generator) Generate(rng daterange.DateRange, f metrics.Filters) (string, error) {
	comparison, err := g.comparator.CompareToPrevious(rng, f)
	if err != nil {
		return "", err
	}

	data := reportData{
		Title:        "UX Metrics Report",
		GeneratedAt:  time.Now().UTC().Format("2006-01-02 15:04 UTC"),
		Period:       rng,
		Days:         rng.Days(),
		Comparison:   comparison,
		Improvements: top(comparison.Improvements, 5),
		Regressions:  top(comparison.Regressions, 5),
	}

	for _, name := range keyMetrics {
		if change, ok := comparison.Changes[name]; ok {
			data.KeyChanges = append(data.KeyChanges, change)
		}
	}

	if chart, err := g.sessionChart(rng, f); err == nil && chart != "" {
		data.Chart = chart
		data.HasChart = true
	}

	trendReport, err := g.analyzer.Analyze(rng, f)
	if err != nil {
		var noData *trend.ErrNoData
		if !errors.As(err, &noData) {
			return "", err
		}
	} else if trendReport.Trend.Unavailable == "" {
		data.Trend = trendReport
		data.HasTrend = true
	}

	tmpl, err := template.New("report").Funcs(templateFuncs).Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("report template is invalid: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("report rendering failed: %w", err)
	}
	return sb.String(), nil
}

// WriteFile renders the report and writes it under dir, returning the path.
func (g *Generator) WriteFile(dir string, rng daterange.DateRange, f metrics.Filters) (string, error) {
	content, err := g.Generate(rng, f)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("report_%s_%s.md",
		rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	g.logger.Info("Report written", "path", path)
	return path, nil
}

// sessionChart plots the period's daily traffic sessions as an ASCII graph.
func (g *Generator) sessionChart(rng daterange.DateRange, f metrics.Filters) (string, error) {
	filters := f
	if filters.MetricName == "" {
		filters.MetricName = metrics.MetricTraffic
	}

	rows, err := g.store.QueryDaily(rng.Start, rng.End, filters)
	if err != nil {
		return "", err
	}
	if len(rows) < 2 {
		return "", nil
	}

	series := make([]float64, len(rows))
	for i := range rows {
		if rows[i].Sessions != nil {
			series[i] = float64(*rows[i].Sessions)
		}
	}

	return asciigraph.Plot(series,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption(fmt.Sprintf("sessions/day, %s", rng)),
	), nil
}

func top(changes []compare.Change, n int) []compare.Change {
	if len(changes) <= n {
		return changes
	}
	return changes[:n]
}
