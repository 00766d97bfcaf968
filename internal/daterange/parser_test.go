package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ref is Tuesday, 2025-11-25.
var ref = time.Date(2025, time.November, 25, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDayCounts(t *testing.T) {
	tests := []struct {
		expr  string
		start time.Time
		end   time.Time
	}{
		{"1", date(2025, time.November, 25), ref},
		{"3", date(2025, time.November, 23), ref},
		{"7d", date(2025, time.November, 19), ref},
		{"30days", date(2025, time.October, 27), ref},
		{"2weeks", date(2025, time.November, 12), ref},
		{"2w", date(2025, time.November, 12), ref},
		{"1month", date(2025, time.October, 27), ref}, // flat 30 days
		{"3 months", date(2025, time.August, 28), ref},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r, err := Parse(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
		})
	}
}

func TestParseRelative(t *testing.T) {
	tests := []struct {
		expr  string
		start time.Time
		end   time.Time
	}{
		{"today", ref, ref},
		{"now", ref, ref},
		{"yesterday", date(2025, time.November, 24), date(2025, time.November, 24)},
		// ref is a Tuesday; this week started Monday the 24th.
		{"this-week", date(2025, time.November, 24), ref},
		{"this_week", date(2025, time.November, 24), ref},
		{"last-week", date(2025, time.November, 17), date(2025, time.November, 23)},
		{"lastweek", date(2025, time.November, 17), date(2025, time.November, 23)},
		{"this-month", date(2025, time.November, 1), ref},
		{"last-month", date(2025, time.October, 1), date(2025, time.October, 31)},
		{"LAST-MONTH", date(2025, time.October, 1), date(2025, time.October, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r, err := Parse(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
		})
	}
}

func TestLastWeekIsMondayToSunday(t *testing.T) {
	// Whatever day of the week the reference is, last week spans a full
	// Monday-to-Sunday window strictly before the reference day.
	for offset := 0; offset < 7; offset++ {
		r, err := Parse("last-week", ref.AddDate(0, 0, offset))
		require.NoError(t, err)
		assert.Equal(t, time.Monday, r.Start.Weekday())
		assert.Equal(t, time.Sunday, r.End.Weekday())
		assert.Equal(t, 7, r.Days())
		assert.True(t, r.End.Before(ref.AddDate(0, 0, offset)))
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		expr  string
		start time.Time
		end   time.Time
	}{
		{"2025-11", date(2025, time.November, 1), date(2025, time.November, 30)},
		{"2025-2", date(2025, time.February, 1), date(2025, time.February, 28)},
		{"2024-02", date(2024, time.February, 1), date(2024, time.February, 29)},
		{"November", date(2025, time.November, 1), date(2025, time.November, 30)}, // reference year
		{"november", date(2025, time.November, 1), date(2025, time.November, 30)},
		{"Nov 2024", date(2024, time.November, 1), date(2024, time.November, 30)},
		{"feb 2024", date(2024, time.February, 1), date(2024, time.February, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r, err := Parse(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
		})
	}
}

func TestParseQuarter(t *testing.T) {
	expected := []struct {
		expr  string
		start time.Time
		end   time.Time
	}{
		{"2025-Q4", date(2025, time.October, 1), date(2025, time.December, 31)},
		{"Q4 2025", date(2025, time.October, 1), date(2025, time.December, 31)},
		{"2025Q4", date(2025, time.October, 1), date(2025, time.December, 31)},
		{"q1 2025", date(2025, time.January, 1), date(2025, time.March, 31)},
		{"2025-Q2", date(2025, time.April, 1), date(2025, time.June, 30)},
	}

	for _, tt := range expected {
		t.Run(tt.expr, func(t *testing.T) {
			r, err := Parse(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
		})
	}

	_, err := Parse("2025-Q5", ref)
	assert.Error(t, err)
}

func TestQuartersPartitionTheYear(t *testing.T) {
	var total int
	prevEnd := date(2024, time.December, 31)
	for q := 1; q <= 4; q++ {
		r := Quarter(2025, q)
		assert.Equal(t, prevEnd.AddDate(0, 0, 1), r.Start, "quarters must be contiguous")
		prevEnd = r.End
		total += r.Days()
	}
	assert.Equal(t, date(2025, time.December, 31), prevEnd)
	assert.Equal(t, 365, total)
}

func TestParseYearBeatsDayCount(t *testing.T) {
	// A bare four-digit number is a calendar year, not a day count.
	r, err := Parse("2025", ref)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 1), r.Start)
	assert.Equal(t, date(2025, time.December, 31), r.End)
	assert.Equal(t, 365, r.Days())

	// Three digits still read as a day count.
	r, err = Parse("365", ref)
	require.NoError(t, err)
	assert.Equal(t, 365, r.Days())
	assert.Equal(t, ref, r.End)
}

func TestParseCustomRange(t *testing.T) {
	r, err := Parse("2025-11-01 to 2025-11-30", ref)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.November, 1), r.Start)
	assert.Equal(t, date(2025, time.November, 30), r.End)
	assert.Equal(t, 30, r.Days())

	r, err = Parse("2025-11-01:2025-11-30", ref)
	require.NoError(t, err)
	assert.Equal(t, 30, r.Days())

	// Reversed bounds swap instead of failing.
	r, err = Parse("2025-11-30 to 2025-11-01", ref)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.November, 1), r.Start)
	assert.Equal(t, date(2025, time.November, 30), r.End)
}

func TestParseRejectsUnknownExpressions(t *testing.T) {
	for _, expr := range []string{"", "soon", "next-week", "2025-13", "0", "Q4"} {
		_, err := Parse(expr, ref)
		require.Error(t, err, "expression %q", expr)
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
	}
}

func TestParseAlwaysOrdered(t *testing.T) {
	exprs := []string{
		"1", "7d", "2weeks", "1month", "today", "yesterday", "this-week",
		"last-week", "this-month", "last-month", "2025-11", "November",
		"2025-Q4", "2025", "2025-11-01 to 2025-11-30",
	}
	for _, expr := range exprs {
		r, err := Parse(expr, ref)
		require.NoError(t, err, "expression %q", expr)
		assert.False(t, r.End.Before(r.Start), "expression %q must yield start <= end", expr)
		assert.GreaterOrEqual(t, r.Days(), 1)
	}
}

func TestPrevious(t *testing.T) {
	r := New(date(2025, time.November, 8), date(2025, time.November, 14), "week")
	prev := r.Previous()
	assert.Equal(t, date(2025, time.November, 1), prev.Start)
	assert.Equal(t, date(2025, time.November, 7), prev.End)
	assert.Equal(t, r.Days(), prev.Days())
}

func TestISOWeek(t *testing.T) {
	// 2025-W48 is Monday Nov 24 through Sunday Nov 30.
	r := ISOWeek(2025, 48)
	assert.Equal(t, date(2025, time.November, 24), r.Start)
	assert.Equal(t, date(2025, time.November, 30), r.End)
	assert.Equal(t, time.Monday, r.Start.Weekday())
	assert.Equal(t, time.Sunday, r.End.Weekday())

	// Week 1 of 2026 starts Monday Dec 29, 2025: January 4 anchors it.
	r = ISOWeek(2026, 1)
	assert.Equal(t, date(2025, time.December, 29), r.Start)
	assert.True(t, r.Contains(date(2026, time.January, 4)))
}
