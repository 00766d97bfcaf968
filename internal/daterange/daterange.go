// Package daterange resolves natural date expressions like "last-week",
// "2025-Q4" or "30d" into inclusive calendar day ranges.
package daterange

import (
	"fmt"
	"time"
)

// DateRange is an inclusive span of calendar days. Start and End are
// midnight UTC dates with Start <= End.
type DateRange struct {
	Start time.Time
	End   time.Time
	Label string
}

// New builds a range from two dates, swapping them when given in reverse
// order. Times are truncated to midnight UTC.
func New(start, end time.Time, label string) DateRange {
	start = dateOnly(start)
	end = dateOnly(end)
	if end.Before(start) {
		start, end = end, start
	}
	return DateRange{Start: start, End: end, Label: label}
}

// Days returns the number of calendar days covered, inclusive of both ends.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the adjacent range of equal length ending the day before
// Start.
func (r DateRange) Previous() DateRange {
	prevEnd := r.Start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(r.Days() - 1))
	return DateRange{Start: prevStart, End: prevEnd, Label: "previous " + r.Label}
}

// Contains reports whether t's calendar day falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s to %s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isoWeekStart returns the Monday starting the given ISO week. January 4 is
// always inside ISO week 1, so the week-1 Monday is derived from it.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, -(weekday - 1))
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// ISOWeek returns the Monday-to-Sunday range of an ISO week.
func ISOWeek(year, week int) DateRange {
	start := isoWeekStart(year, week)
	return DateRange{
		Start: start,
		End:   start.AddDate(0, 0, 6),
		Label: fmt.Sprintf("%d-W%02d", year, week),
	}
}

// Month returns the full calendar month range.
func Month(year int, month time.Month) DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{
		Start: start,
		End:   start.AddDate(0, 1, -1),
		Label: start.Format("January 2006"),
	}
}

// Quarter returns the three-month range of quarter q (1-4).
func Quarter(year, q int) DateRange {
	start := time.Date(year, time.Month(3*q-2), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{
		Start: start,
		End:   start.AddDate(0, 3, -1),
		Label: fmt.Sprintf("%d-Q%d", year, q),
	}
}

// Year returns the full calendar year range.
func Year(year int) DateRange {
	return DateRange{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		Label: fmt.Sprintf("%d", year),
	}
}

// LastNDays returns the N-day range ending at ref, ref included.
func LastNDays(ref time.Time, n int) DateRange {
	end := dateOnly(ref)
	return DateRange{
		Start: end.AddDate(0, 0, -(n - 1)),
		End:   end,
		Label: fmt.Sprintf("last %d days", n),
	}
}
