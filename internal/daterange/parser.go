package daterange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError reports a date expression that matched no supported format.
type ParseError struct {
	Expression string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse date expression: %q (try \"7d\", \"last-week\", \"2025-11\", \"2025-Q4\", \"2025\" or \"2025-11-01 to 2025-11-30\")", e.Expression)
}

// pattern pairs a format name with its parser. Parsers return ok=false when
// the expression is not in their format.
type pattern struct {
	name  string
	parse func(expr string, ref time.Time) (DateRange, bool)
}

// patterns are tried in order, specific before general. Year sits before the
// numeric day count so "2025" reads as the calendar year, not 2025 days.
var patterns = []pattern{
	{"custom-range", parseCustomRange},
	{"quarter", parseQuarter},
	{"year", parseYear},
	{"month", parseMonth},
	{"relative", parseRelative},
	{"day-count", parseDayCount},
}

// Parse resolves a date expression relative to ref. Supported formats:
//
//	day counts:   "3", "7d", "2weeks", "1month" (a month counts as 30 days)
//	relative:     "today", "yesterday", "this-week", "last-week",
//	              "this-month", "last-month"
//	month:        "2025-11", "November", "Nov 2025"
//	quarter:      "2025-Q4", "Q4 2025", "2025Q4"
//	year:         "2025"
//	custom range: "2025-11-01 to 2025-11-30", "2025-11-01:2025-11-30"
func Parse(expression string, ref time.Time) (DateRange, error) {
	expr := strings.TrimSpace(expression)
	ref = dateOnly(ref)

	for _, p := range patterns {
		if r, ok := p.parse(expr, ref); ok {
			return r, nil
		}
	}
	return DateRange{}, &ParseError{Expression: expression}
}

var (
	customRangeToRe    = regexp.MustCompile(`(?i)^(\d{4}-\d{2}-\d{2})\s+to\s+(\d{4}-\d{2}-\d{2})$`)
	customRangeColonRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}):(\d{4}-\d{2}-\d{2})$`)
	quarterRe          = regexp.MustCompile(`(?i)^(?:(\d{4})[-\s]?Q(\d)|Q(\d)[-\s]?(\d{4}))$`)
	yearRe             = regexp.MustCompile(`^\d{4}$`)
	yearMonthRe        = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	yearInExprRe       = regexp.MustCompile(`\d{4}`)
	dayCountRe         = regexp.MustCompile(`(?i)^(\d+)\s*(d|days?|w|weeks?|m|months?)?$`)
)

// parseCustomRange handles "DATE to DATE" and "DATE:DATE". Reversed bounds
// are swapped rather than rejected.
func parseCustomRange(expr string, _ time.Time) (DateRange, bool) {
	m := customRangeToRe.FindStringSubmatch(expr)
	if m == nil {
		m = customRangeColonRe.FindStringSubmatch(expr)
	}
	if m == nil {
		return DateRange{}, false
	}

	start, err := time.ParseInLocation("2006-01-02", m[1], time.UTC)
	if err != nil {
		return DateRange{}, false
	}
	end, err := time.ParseInLocation("2006-01-02", m[2], time.UTC)
	if err != nil {
		return DateRange{}, false
	}

	r := New(start, end, "")
	r.Label = r.String()
	return r, true
}

func parseQuarter(expr string, _ time.Time) (DateRange, bool) {
	m := quarterRe.FindStringSubmatch(expr)
	if m == nil {
		return DateRange{}, false
	}

	yearStr, quarterStr := m[1], m[2]
	if yearStr == "" {
		yearStr, quarterStr = m[4], m[3]
	}
	year, _ := strconv.Atoi(yearStr)
	q, _ := strconv.Atoi(quarterStr)
	if q < 1 || q > 4 {
		return DateRange{}, false
	}
	return Quarter(year, q), true
}

func parseYear(expr string, _ time.Time) (DateRange, bool) {
	if !yearRe.MatchString(expr) {
		return DateRange{}, false
	}
	year, _ := strconv.Atoi(expr)
	return Year(year), true
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// parseMonth handles "YYYY-MM" plus month names with an optional year.
// A bare month name resolves to that month of the reference year.
func parseMonth(expr string, ref time.Time) (DateRange, bool) {
	if m := yearMonthRe.FindStringSubmatch(expr); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return DateRange{}, false
		}
		return Month(year, time.Month(month)), true
	}

	lower := strings.ToLower(expr)
	for name, month := range monthNames {
		if !strings.HasPrefix(lower, name) {
			continue
		}
		rest := strings.TrimSpace(lower[len(name):])
		year := ref.Year()
		if rest != "" {
			yearStr := yearInExprRe.FindString(rest)
			if yearStr == "" {
				continue
			}
			year, _ = strconv.Atoi(yearStr)
		}
		return Month(year, month), true
	}
	return DateRange{}, false
}

func parseRelative(expr string, ref time.Time) (DateRange, bool) {
	switch strings.ReplaceAll(strings.ToLower(expr), "_", "-") {
	case "today", "now":
		return DateRange{Start: ref, End: ref, Label: "today"}, true

	case "yesterday":
		d := ref.AddDate(0, 0, -1)
		return DateRange{Start: d, End: d, Label: "yesterday"}, true

	case "this-week", "thisweek":
		// Monday of the current ISO week through the reference day.
		start := ref.AddDate(0, 0, -mondayOffset(ref))
		return DateRange{Start: start, End: ref, Label: "this week"}, true

	case "last-week", "lastweek":
		end := ref.AddDate(0, 0, -(mondayOffset(ref) + 1)) // last Sunday
		return DateRange{Start: end.AddDate(0, 0, -6), End: end, Label: "last week"}, true

	case "this-month", "thismonth":
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{Start: start, End: ref, Label: "this month"}, true

	case "last-month", "lastmonth":
		end := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		r := Month(end.Year(), end.Month())
		r.Label = "last month"
		return r, true
	}
	return DateRange{}, false
}

// parseDayCount handles "N" with an optional unit. Weeks count as 7 days and
// months as a flat 30, so "1month" is not the same as "last-month".
func parseDayCount(expr string, ref time.Time) (DateRange, bool) {
	m := dayCountRe.FindStringSubmatch(expr)
	if m == nil {
		return DateRange{}, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return DateRange{}, false
	}

	switch unit := strings.ToLower(m[2]); {
	case unit == "" || strings.HasPrefix(unit, "d"):
		// days as given
	case strings.HasPrefix(unit, "w"):
		n *= 7
	case strings.HasPrefix(unit, "m"):
		n *= 30
	default:
		return DateRange{}, false
	}

	return LastNDays(ref, n), true
}

// mondayOffset returns days elapsed since the most recent Monday (0 on a
// Monday, 6 on a Sunday).
func mondayOffset(t time.Time) int {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return weekday - 1
}
