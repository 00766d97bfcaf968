// Package query answers flexible date range queries over the stored daily
// metrics.
package query

import (
	"fmt"
	"log/slog"
	"time"

	"claritywell/internal/daterange"
	"claritywell/internal/metrics"
)

// Engine resolves date expressions and runs queries against the metrics
// store.
type Engine struct {
	store  *metrics.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a query engine over a store.
func NewEngine(store *metrics.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Result is the outcome of a daily query: the resolved range plus the rows
// inside it, ordered by date ascending.
type Result struct {
	Range   daterange.DateRange
	Records []metrics.DailyMetric
}

// Aggregation summarizes one metric field over a resolved range.
type Aggregation struct {
	Range daterange.DateRange
	Field string
	metrics.FieldAggregate
}

// Resolve parses a date expression against the current date.
func (e *Engine) Resolve(expression string) (daterange.DateRange, error) {
	return e.ResolveAt(expression, e.now())
}

// ResolveAt parses a date expression against an explicit reference date.
func (e *Engine) ResolveAt(expression string, ref time.Time) (daterange.DateRange, error) {
	r, err := daterange.Parse(expression, ref)
	if err != nil {
		return daterange.DateRange{}, err
	}
	e.logger.Debug("Resolved date expression",
		"expression", expression,
		"start", r.Start.Format("2006-01-02"),
		"end", r.End.Format("2006-01-02"),
		"days", r.Days(),
	)
	return r, nil
}

// Query returns the daily rows matching an expression and filters.
func (e *Engine) Query(expression string, f metrics.Filters) (*Result, error) {
	rng, err := e.Resolve(expression)
	if err != nil {
		return nil, err
	}
	return e.QueryRange(rng, f)
}

// QueryRange returns the daily rows inside an already-resolved range.
func (e *Engine) QueryRange(rng daterange.DateRange, f metrics.Filters) (*Result, error) {
	records, err := e.store.QueryDaily(rng.Start, rng.End, f)
	if err != nil {
		return nil, fmt.Errorf("query for %s failed: %w", rng, err)
	}
	return &Result{Range: rng, Records: records}, nil
}

// Aggregate summarizes one metric field over an expression's range.
func (e *Engine) Aggregate(expression, field string, f metrics.Filters) (*Aggregation, error) {
	rng, err := e.Resolve(expression)
	if err != nil {
		return nil, err
	}
	return e.AggregateRange(rng, field, f)
}

// AggregateRange summarizes one metric field over a resolved range.
func (e *Engine) AggregateRange(rng daterange.DateRange, field string, f metrics.Filters) (*Aggregation, error) {
	agg, err := e.store.AggregateField(rng.Start, rng.End, field, f)
	if err != nil {
		return nil, fmt.Errorf("aggregation for %s failed: %w", rng, err)
	}
	return &Aggregation{Range: rng, Field: field, FieldAggregate: *agg}, nil
}

// AvailableDates lists the dates with stored data for a scope.
func (e *Engine) AvailableDates(scope string) (*metrics.DateIndex, error) {
	return e.store.ListDistinctDates(scope)
}
