package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filters narrows daily metric queries. Zero values mean "no filter" except
// DataScope, which defaults to the general scope.
type Filters struct {
	MetricName      string
	DataScope       string
	PageID          string
	Dimension1Name  string
	Dimension1Value string
}

func (f Filters) scope() string {
	if f.DataScope == "" {
		return ScopeGeneral
	}
	return f.DataScope
}

// FieldAggregate summarizes one numeric column over a daily window.
// Count is the number of rows with a non-null value for the column, not the
// row count; Avg/Sum/Min/Max are zero when Count is zero.
type FieldAggregate struct {
	Count int64
	Avg   float64
	Sum   float64
	Min   float64
	Max   float64
}

// WindowAggregate is one (metric_name, data_scope, page_id) group aggregated
// over a daily window, as consumed by the rollup aggregator.
type WindowAggregate struct {
	MetricName        string
	DataScope         string
	PageID            string
	DataPoints        int
	AvgSessions       float64
	SumSessions       float64
	MinSessions       float64
	MaxSessions       float64
	AvgUsers          float64
	SumUsers          float64
	AvgPageViews      float64
	SumPageViews      float64
	AvgDeadClicks     float64
	AvgRageClicks     float64
	AvgQuickBacks     float64
	AvgErrorClicks    float64
	AvgScrollDepth    float64
	AvgEngagementTime float64
}

// DateIndex lists the distinct dates with data for a scope.
type DateIndex struct {
	Dates []time.Time
	Min   time.Time
	Max   time.Time
}

// Stats is the status overview of the store.
type Stats struct {
	DailyRows     int64
	WeeklyRows    int64
	MonthlyRows   int64
	FetchRequests int64
	FetchSuccess  int64
	LatestFetch   time.Time
}

// metricColumns whitelists the queryable numeric columns. Field aggregation
// only ever interpolates values from this map into SQL.
var metricColumns = map[string]string{
	"sessions":          "sessions",
	"users":             "users",
	"bot_sessions":      "bot_sessions",
	"page_views":        "page_views",
	"mobile_sessions":   "mobile_sessions",
	"desktop_sessions":  "desktop_sessions",
	"tablet_sessions":   "tablet_sessions",
	"dead_clicks":       "dead_clicks",
	"rage_clicks":       "rage_clicks",
	"quick_backs":       "quick_backs",
	"error_clicks":      "error_clicks",
	"scroll_depth":      "scroll_depth",
	"engagement_time":   "engagement_time",
	"active_time":       "active_time",
	"pages_per_session": "pages_per_session",
}

// MetricFields returns the queryable field names.
func MetricFields() []string {
	fields := make([]string, 0, len(metricColumns))
	for f := range metricColumns {
		fields = append(fields, f)
	}
	return fields
}

// DateOnly truncates a timestamp to its calendar date at midnight UTC.
// All metric_date, week_start/week_end values are stored in this form so
// BETWEEN comparisons stay exact.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Store serves daily metric rows and the weekly/monthly rollup caches.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a store over an initialized gorm connection.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// InsertDaily upserts daily metric rows, skipping rows whose natural key
// already exists. Returns the number of newly inserted rows.
func (s *Store) InsertDaily(records []DailyMetric) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	for i := range records {
		records[i].MetricDate = DateOnly(records[i].MetricDate)
		if records[i].DataScope == "" {
			records[i].DataScope = ScopeGeneral
		}
	}

	inserted := 0
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&records)
		if result.Error != nil {
			return fmt.Errorf("failed to insert daily metrics: %w", result.Error)
		}
		inserted = int(result.RowsAffected)
		return nil
	})
	return inserted, err
}

// QueryDaily returns daily rows in a date window, ordered ascending by date
// then metric name.
func (s *Store) QueryDaily(start, end time.Time, f Filters) ([]DailyMetric, error) {
	q := s.db.Where("metric_date BETWEEN ? AND ?", DateOnly(start), DateOnly(end)).
		Where("data_scope = ?", f.scope())

	if f.MetricName != "" {
		q = q.Where("metric_name = ?", f.MetricName)
	}
	if f.PageID != "" {
		q = q.Where("page_id = ?", f.PageID)
	}
	if f.Dimension1Name != "" {
		q = q.Where("dimension1_name = ?", f.Dimension1Name)
		if f.Dimension1Value != "" {
			q = q.Where("dimension1_value = ?", f.Dimension1Value)
		}
	}

	var records []DailyMetric
	if err := q.Order("metric_date ASC, metric_name ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	return records, nil
}

// AggregateField aggregates one numeric column over a date window. The field
// must be one of MetricFields.
func (s *Store) AggregateField(start, end time.Time, field string, f Filters) (*FieldAggregate, error) {
	col, ok := metricColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown metric field: %s", field)
	}

	query := fmt.Sprintf(`
	SELECT
		COUNT(%[1]s) AS count,
		IFNULL(AVG(%[1]s), 0) AS avg,
		IFNULL(SUM(%[1]s), 0) AS sum,
		IFNULL(MIN(%[1]s), 0) AS min,
		IFNULL(MAX(%[1]s), 0) AS max
	FROM daily_metrics
	WHERE metric_date BETWEEN ? AND ?
	  AND data_scope = ?
	`, col)

	args := []interface{}{DateOnly(start), DateOnly(end), f.scope()}
	if f.MetricName != "" {
		query += " AND metric_name = ?"
		args = append(args, f.MetricName)
	}
	if f.PageID != "" {
		query += " AND page_id = ?"
		args = append(args, f.PageID)
	}

	var agg FieldAggregate
	if err := s.db.Raw(query, args...).Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", field, err)
	}
	return &agg, nil
}

// AggregateWindow aggregates a daily window grouped by
// (metric_name, data_scope, page_id), for rollup building.
func (s *Store) AggregateWindow(start, end time.Time) ([]WindowAggregate, error) {
	query := `
	SELECT
		metric_name,
		data_scope,
		page_id,
		COUNT(*) AS data_points,
		IFNULL(AVG(sessions), 0) AS avg_sessions,
		IFNULL(SUM(sessions), 0) AS sum_sessions,
		IFNULL(MIN(sessions), 0) AS min_sessions,
		IFNULL(MAX(sessions), 0) AS max_sessions,
		IFNULL(AVG(users), 0) AS avg_users,
		IFNULL(SUM(users), 0) AS sum_users,
		IFNULL(AVG(page_views), 0) AS avg_page_views,
		IFNULL(SUM(page_views), 0) AS sum_page_views,
		IFNULL(AVG(dead_clicks), 0) AS avg_dead_clicks,
		IFNULL(AVG(rage_clicks), 0) AS avg_rage_clicks,
		IFNULL(AVG(quick_backs), 0) AS avg_quick_backs,
		IFNULL(AVG(error_clicks), 0) AS avg_error_clicks,
		IFNULL(AVG(scroll_depth), 0) AS avg_scroll_depth,
		IFNULL(AVG(engagement_time), 0) AS avg_engagement_time
	FROM daily_metrics
	WHERE metric_date BETWEEN ? AND ?
	GROUP BY metric_name, data_scope, page_id
	ORDER BY metric_name, data_scope, page_id
	`

	var results []WindowAggregate
	if err := s.db.Raw(query, DateOnly(start), DateOnly(end)).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate daily window: %w", err)
	}
	return results, nil
}

// ListDistinctDates returns the distinct dates with data for a scope,
// ascending, with the span boundaries.
func (s *Store) ListDistinctDates(scope string) (*DateIndex, error) {
	if scope == "" {
		scope = ScopeGeneral
	}

	var dates []time.Time
	err := s.db.Model(&DailyMetric{}).
		Where("data_scope = ?", scope).
		Distinct("metric_date").
		Order("metric_date ASC").
		Pluck("metric_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct dates: %w", err)
	}

	idx := &DateIndex{Dates: dates}
	if len(dates) > 0 {
		idx.Min = dates[0]
		idx.Max = dates[len(dates)-1]
	}
	return idx, nil
}

// DateSpan is the overall extent of daily data across every scope.
type DateSpan struct {
	Min       time.Time
	Max       time.Time
	DateCount int64
}

// sqliteTimeLayouts are the timestamp formats the sqlite driver emits.
// Aggregate expressions like MIN(metric_date) lose the column decltype, so
// their results come back as raw strings and must be parsed here.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02",
}

func parseStoredTime(value string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized stored time %q", value)
}

// GetDateSpan returns the span of stored daily data, or nil when the daily
// table is empty.
func (s *Store) GetDateSpan() (*DateSpan, error) {
	var row struct {
		Min       sql.NullString
		Max       sql.NullString
		DateCount int64
	}
	err := s.db.Raw(`
	SELECT
		MIN(metric_date) AS min,
		MAX(metric_date) AS max,
		COUNT(DISTINCT metric_date) AS date_count
	FROM daily_metrics
	`).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read date span: %w", err)
	}
	if !row.Min.Valid {
		return nil, nil
	}
	min, err := parseStoredTime(row.Min.String)
	if err != nil {
		return nil, fmt.Errorf("failed to read date span: %w", err)
	}
	max, err := parseStoredTime(row.Max.String)
	if err != nil {
		return nil, fmt.Errorf("failed to read date span: %w", err)
	}
	return &DateSpan{
		Min:       DateOnly(min.UTC()),
		Max:       DateOnly(max.UTC()),
		DateCount: row.DateCount,
	}, nil
}

const weeklyUpsertSQL = `
INSERT INTO weekly_metrics (
	week_start, week_end, year, week_number,
	metric_name, data_scope, page_id,
	avg_sessions, sum_sessions, avg_users, sum_users,
	avg_page_views, sum_page_views,
	avg_dead_clicks, avg_rage_clicks, avg_quick_backs, avg_error_clicks,
	avg_scroll_depth, avg_engagement_time, data_points,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (week_start, week_end, metric_name, data_scope, page_id) DO NOTHING
`

const weeklyForceUpsertSQL = `
INSERT INTO weekly_metrics (
	week_start, week_end, year, week_number,
	metric_name, data_scope, page_id,
	avg_sessions, sum_sessions, avg_users, sum_users,
	avg_page_views, sum_page_views,
	avg_dead_clicks, avg_rage_clicks, avg_quick_backs, avg_error_clicks,
	avg_scroll_depth, avg_engagement_time, data_points,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (week_start, week_end, metric_name, data_scope, page_id) DO UPDATE SET
	year = excluded.year,
	week_number = excluded.week_number,
	avg_sessions = excluded.avg_sessions,
	sum_sessions = excluded.sum_sessions,
	avg_users = excluded.avg_users,
	sum_users = excluded.sum_users,
	avg_page_views = excluded.avg_page_views,
	sum_page_views = excluded.sum_page_views,
	avg_dead_clicks = excluded.avg_dead_clicks,
	avg_rage_clicks = excluded.avg_rage_clicks,
	avg_quick_backs = excluded.avg_quick_backs,
	avg_error_clicks = excluded.avg_error_clicks,
	avg_scroll_depth = excluded.avg_scroll_depth,
	avg_engagement_time = excluded.avg_engagement_time,
	data_points = excluded.data_points,
	updated_at = excluded.updated_at
`

// InsertOrSkipWeekly writes a weekly summary, atomically deferring to an
// existing row for the same key unless force is set. Returns the stored row
// and whether a prior row was kept.
func (s *Store) InsertOrSkipWeekly(w WeeklyMetric, force bool) (*WeeklyMetric, bool, error) {
	w.WeekStart = DateOnly(w.WeekStart)
	w.WeekEnd = DateOnly(w.WeekEnd)
	if w.DataScope == "" {
		w.DataScope = ScopeGeneral
	}
	now := time.Now().UTC()

	sql := weeklyUpsertSQL
	if force {
		sql = weeklyForceUpsertSQL
	}

	existed := false
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Exec(sql,
			w.WeekStart, w.WeekEnd, w.Year, w.WeekNumber,
			w.MetricName, w.DataScope, w.PageID,
			w.AvgSessions, w.SumSessions, w.AvgUsers, w.SumUsers,
			w.AvgPageViews, w.SumPageViews,
			w.AvgDeadClicks, w.AvgRageClicks, w.AvgQuickBacks, w.AvgErrorClicks,
			w.AvgScrollDepth, w.AvgEngagementTime, w.DataPoints,
			now, now,
		)
		if result.Error != nil {
			return fmt.Errorf("failed to upsert weekly summary: %w", result.Error)
		}
		existed = result.RowsAffected == 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetWeekly(w.WeekStart, w.WeekEnd, w.MetricName, w.DataScope, w.PageID)
	if err != nil {
		return nil, false, err
	}
	return stored, existed, nil
}

// GetWeekly returns a cached weekly summary, or nil when none exists.
func (s *Store) GetWeekly(weekStart, weekEnd time.Time, metricName, scope, pageID string) (*WeeklyMetric, error) {
	if scope == "" {
		scope = ScopeGeneral
	}
	var w WeeklyMetric
	err := s.db.Where(
		"week_start = ? AND week_end = ? AND metric_name = ? AND data_scope = ? AND page_id = ?",
		DateOnly(weekStart), DateOnly(weekEnd), metricName, scope, pageID,
	).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly summary: %w", err)
	}
	return &w, nil
}

const monthlyUpsertSQL = `
INSERT INTO monthly_metrics (
	year, month, metric_name, data_scope, page_id,
	avg_sessions, sum_sessions, min_sessions, max_sessions,
	avg_users, sum_users, avg_page_views, sum_page_views,
	avg_dead_clicks, avg_rage_clicks, avg_quick_backs, avg_error_clicks,
	avg_scroll_depth, avg_engagement_time, data_points,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (year, month, metric_name, data_scope, page_id) DO NOTHING
`

const monthlyForceUpsertSQL = `
INSERT INTO monthly_metrics (
	year, month, metric_name, data_scope, page_id,
	avg_sessions, sum_sessions, min_sessions, max_sessions,
	avg_users, sum_users, avg_page_views, sum_page_views,
	avg_dead_clicks, avg_rage_clicks, avg_quick_backs, avg_error_clicks,
	avg_scroll_depth, avg_engagement_time, data_points,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (year, month, metric_name, data_scope, page_id) DO UPDATE SET
	avg_sessions = excluded.avg_sessions,
	sum_sessions = excluded.sum_sessions,
	min_sessions = excluded.min_sessions,
	max_sessions = excluded.max_sessions,
	avg_users = excluded.avg_users,
	sum_users = excluded.sum_users,
	avg_page_views = excluded.avg_page_views,
	sum_page_views = excluded.sum_page_views,
	avg_dead_clicks = excluded.avg_dead_clicks,
	avg_rage_clicks = excluded.avg_rage_clicks,
	avg_quick_backs = excluded.avg_quick_backs,
	avg_error_clicks = excluded.avg_error_clicks,
	avg_scroll_depth = excluded.avg_scroll_depth,
	avg_engagement_time = excluded.avg_engagement_time,
	data_points = excluded.data_points,
	updated_at = excluded.updated_at
`

// InsertOrSkipMonthly writes a monthly summary, atomically deferring to an
// existing row for the same key unless force is set.
func (s *Store) InsertOrSkipMonthly(m MonthlyMetric, force bool) (*MonthlyMetric, bool, error) {
	if m.DataScope == "" {
		m.DataScope = ScopeGeneral
	}
	now := time.Now().UTC()

	sql := monthlyUpsertSQL
	if force {
		sql = monthlyForceUpsertSQL
	}

	existed := false
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Exec(sql,
			m.Year, m.Month, m.MetricName, m.DataScope, m.PageID,
			m.AvgSessions, m.SumSessions, m.MinSessions, m.MaxSessions,
			m.AvgUsers, m.SumUsers, m.AvgPageViews, m.SumPageViews,
			m.AvgDeadClicks, m.AvgRageClicks, m.AvgQuickBacks, m.AvgErrorClicks,
			m.AvgScrollDepth, m.AvgEngagementTime, m.DataPoints,
			now, now,
		)
		if result.Error != nil {
			return fmt.Errorf("failed to upsert monthly summary: %w", result.Error)
		}
		existed = result.RowsAffected == 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetMonthly(m.Year, m.Month, m.MetricName, m.DataScope, m.PageID)
	if err != nil {
		return nil, false, err
	}
	return stored, existed, nil
}

// GetMonthly returns a cached monthly summary, or nil when none exists.
func (s *Store) GetMonthly(year, month int, metricName, scope, pageID string) (*MonthlyMetric, error) {
	if scope == "" {
		scope = ScopeGeneral
	}
	var m MonthlyMetric
	err := s.db.Where(
		"year = ? AND month = ? AND metric_name = ? AND data_scope = ? AND page_id = ?",
		year, month, metricName, scope, pageID,
	).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly summary: %w", err)
	}
	return &m, nil
}

// InsertFetchLog records one provider request.
func (s *Store) InsertFetchLog(log FetchLog) error {
	if log.RequestedAt.IsZero() {
		log.RequestedAt = time.Now().UTC()
	}
	return sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("failed to insert fetch log: %w", err)
		}
		return nil
	})
}

// CountFetchLogsSince counts provider requests made at or after t.
func (s *Store) CountFetchLogsSince(t time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&FetchLog{}).Where("requested_at >= ?", t).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count fetch logs: %w", err)
	}
	return count, nil
}

// DeleteFetchLogsBefore removes fetch logs older than t, returning the number
// of rows removed.
func (s *Store) DeleteFetchLogsBefore(t time.Time) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Where("requested_at < ?", t).Delete(&FetchLog{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete fetch logs: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

// GetStatistics returns the status overview of the store.
func (s *Store) GetStatistics() (*Stats, error) {
	stats := &Stats{}

	if err := s.db.Model(&DailyMetric{}).Count(&stats.DailyRows).Error; err != nil {
		return nil, fmt.Errorf("failed to count daily metrics: %w", err)
	}
	if err := s.db.Model(&WeeklyMetric{}).Count(&stats.WeeklyRows).Error; err != nil {
		return nil, fmt.Errorf("failed to count weekly metrics: %w", err)
	}
	if err := s.db.Model(&MonthlyMetric{}).Count(&stats.MonthlyRows).Error; err != nil {
		return nil, fmt.Errorf("failed to count monthly metrics: %w", err)
	}
	if err := s.db.Model(&FetchLog{}).Count(&stats.FetchRequests).Error; err != nil {
		return nil, fmt.Errorf("failed to count fetch logs: %w", err)
	}
	if err := s.db.Model(&FetchLog{}).Where("success = ?", true).Count(&stats.FetchSuccess).Error; err != nil {
		return nil, fmt.Errorf("failed to count successful fetches: %w", err)
	}

	var latest sql.NullString
	if err := s.db.Model(&FetchLog{}).Select("MAX(requested_at)").Scan(&latest).Error; err == nil && latest.Valid {
		if t, err := parseStoredTime(latest.String); err == nil {
			stats.LatestFetch = t.UTC()
		}
	}

	return stats, nil
}
