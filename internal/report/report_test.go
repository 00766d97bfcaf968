package report_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
	"claritywell/internal/report"
	"claritywell/internal/testsupport"
)

func TestGenerateReport(t *testing.T) {
	store := testsupport.SetupStore(t)
	gen := report.NewGenerator(store, testsupport.GetLogger())

	prevStart := testsupport.Date(2025, time.November, 10)
	currStart := testsupport.Date(2025, time.November, 17)
	testsupport.SeedTrafficSeries(t, store, prevStart, []int64{500, 500, 500, 500, 500, 500, 500})
	testsupport.SeedTrafficSeries(t, store, currStart, []int64{600, 620, 640, 660, 680, 700, 720})

	rng := daterange.New(currStart, currStart.AddDate(0, 0, 6), "last week")
	content, err := gen.Generate(rng, metrics.Filters{})
	require.NoError(t, err)

	assert.Contains(t, content, "# UX Metrics Report")
	assert.Contains(t, content, "2025-11-17 to 2025-11-23")
	assert.Contains(t, content, "## Daily Sessions")
	assert.Contains(t, content, "## Key Metrics vs Previous Period")
	assert.Contains(t, content, "| Sessions | 4620 | 3500 |")
	assert.Contains(t, content, "## Improvements")
	assert.Contains(t, content, "**Overall:** positive")
	assert.Contains(t, content, "## Trend")
	assert.Contains(t, content, "Direction: increasing")
}

func TestGenerateReportWithoutData(t *testing.T) {
	store := testsupport.SetupStore(t)
	gen := report.NewGenerator(store, testsupport.GetLogger())

	rng := daterange.New(
		testsupport.Date(2025, time.January, 1),
		testsupport.Date(2025, time.January, 7), "empty week")
	content, err := gen.Generate(rng, metrics.Filters{})
	require.NoError(t, err)

	// Report still renders, just without chart and trend sections.
	assert.Contains(t, content, "# UX Metrics Report")
	assert.NotContains(t, content, "## Daily Sessions")
	assert.NotContains(t, content, "## Trend")
	assert.Contains(t, content, "**Overall:** mixed")
}

func TestWriteFile(t *testing.T) {
	store := testsupport.SetupStore(t)
	gen := report.NewGenerator(store, testsupport.GetLogger())

	start := testsupport.Date(2025, time.November, 17)
	testsupport.SeedTrafficSeries(t, store, start, []int64{100, 110, 120, 130, 140, 150, 160})

	dir := t.TempDir()
	rng := daterange.New(start, start.AddDate(0, 0, 6), "week")
	path, err := gen.WriteFile(dir, rng, metrics.Filters{})
	require.NoError(t, err)
	assert.Contains(t, path, "report_2025-11-17_2025-11-23.md")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# UX Metrics Report")
}
