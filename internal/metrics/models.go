// Package metrics defines the time-series models for daily Clarity snapshots
// and their weekly/monthly rollup caches, plus the store that serves them.
//
// The package is organized into focused modules:
//   - models.go: table definitions and metric name/scope constants
//   - json.go: raw JSON column type for preserving provider payloads
//   - store.go: insert/query/rollup-cache operations against SQLite
package metrics

import (
	"time"
)

// Data scopes
const (
	ScopeGeneral = "general"
	ScopePage    = "page"
)

// Metric names as delivered by the Clarity export API
const (
	MetricTraffic        = "Traffic"
	MetricDeadClicks     = "DeadClickCount"
	MetricRageClicks     = "RageClickCount"
	MetricQuickBacks     = "QuickbackClick"
	MetricErrorClicks    = "ErrorClickCount"
	MetricScrollDepth    = "ScrollDepth"
	MetricEngagementTime = "EngagementTime"
)

// DailyMetric is one daily snapshot row for a metric. The natural key is
// (metric_date, metric_name, data_scope, page_id, dimension values); key
// columns default to '' rather than NULL so the unique index holds for
// unscoped rows. Rows are written once by ingestion and treated as
// read-only afterwards.
type DailyMetric struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	MetricDate     time.Time `gorm:"uniqueIndex:idx_daily_unique;type:date;not null"`
	MetricName     string    `gorm:"uniqueIndex:idx_daily_unique;not null"`
	DataScope      string    `gorm:"uniqueIndex:idx_daily_unique;not null;default:'general'"`
	PageID         string    `gorm:"uniqueIndex:idx_daily_unique;not null;default:''"`
	Dimension1Name string    `gorm:"column:dimension1_name;not null;default:''"`
	Dimension1Val  string    `gorm:"column:dimension1_value;uniqueIndex:idx_daily_unique;not null;default:''"`
	Dimension2Name string    `gorm:"column:dimension2_name;not null;default:''"`
	Dimension2Val  string    `gorm:"column:dimension2_value;uniqueIndex:idx_daily_unique;not null;default:''"`
	Dimension3Name string    `gorm:"column:dimension3_name;not null;default:''"`
	Dimension3Val  string    `gorm:"column:dimension3_value;uniqueIndex:idx_daily_unique;not null;default:''"`

	// Nullable numeric fields; nil means the provider did not report a value
	// and the field must not contribute to aggregates.
	Sessions        *int64   `gorm:"column:sessions"`
	Users           *int64   `gorm:"column:users"`
	BotSessions     *int64   `gorm:"column:bot_sessions"`
	PageViews       *int64   `gorm:"column:page_views"`
	MobileSessions  *int64   `gorm:"column:mobile_sessions"`
	DesktopSessions *int64   `gorm:"column:desktop_sessions"`
	TabletSessions  *int64   `gorm:"column:tablet_sessions"`
	DeadClicks      *int64   `gorm:"column:dead_clicks"`
	RageClicks      *int64   `gorm:"column:rage_clicks"`
	QuickBacks      *int64   `gorm:"column:quick_backs"`
	ErrorClicks     *int64   `gorm:"column:error_clicks"`
	ScrollDepth     *float64 `gorm:"column:scroll_depth"`
	EngagementTime  *float64 `gorm:"column:engagement_time"`
	ActiveTime      *float64 `gorm:"column:active_time"`
	PagesPerSession *float64 `gorm:"column:pages_per_session"`

	FetchTimestamp time.Time `gorm:"not null"`
	RawJSON        JSON      `gorm:"column:raw_json"`
	CreatedAt      time.Time
}

// WeeklyMetric caches the aggregation of one ISO week of daily rows. It must
// always be reproducible by re-aggregating the same daily window; the unique
// index is what makes concurrent rollups write at most one row per key.
type WeeklyMetric struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	WeekStart  time.Time `gorm:"uniqueIndex:idx_weekly_unique;type:date;not null"`
	WeekEnd    time.Time `gorm:"uniqueIndex:idx_weekly_unique;type:date;not null"`
	Year       int       `gorm:"not null"`
	WeekNumber int       `gorm:"not null"`
	MetricName string    `gorm:"uniqueIndex:idx_weekly_unique;not null"`
	DataScope  string    `gorm:"uniqueIndex:idx_weekly_unique;not null;default:'general'"`
	PageID     string    `gorm:"uniqueIndex:idx_weekly_unique;not null;default:''"`

	AvgSessions       float64 `gorm:"not null;default:0"`
	SumSessions       float64 `gorm:"not null;default:0"`
	AvgUsers          float64 `gorm:"not null;default:0"`
	SumUsers          float64 `gorm:"not null;default:0"`
	AvgPageViews      float64 `gorm:"not null;default:0"`
	SumPageViews      float64 `gorm:"not null;default:0"`
	AvgDeadClicks     float64 `gorm:"not null;default:0"`
	AvgRageClicks     float64 `gorm:"not null;default:0"`
	AvgQuickBacks     float64 `gorm:"not null;default:0"`
	AvgErrorClicks    float64 `gorm:"not null;default:0"`
	AvgScrollDepth    float64 `gorm:"not null;default:0"`
	AvgEngagementTime float64 `gorm:"not null;default:0"`
	DataPoints        int     `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MonthlyMetric caches the aggregation of one calendar month of daily rows.
type MonthlyMetric struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Year       int    `gorm:"uniqueIndex:idx_monthly_unique;not null"`
	Month      int    `gorm:"uniqueIndex:idx_monthly_unique;not null"`
	MetricName string `gorm:"uniqueIndex:idx_monthly_unique;not null"`
	DataScope  string `gorm:"uniqueIndex:idx_monthly_unique;not null;default:'general'"`
	PageID     string `gorm:"uniqueIndex:idx_monthly_unique;not null;default:''"`

	AvgSessions       float64 `gorm:"not null;default:0"`
	SumSessions       float64 `gorm:"not null;default:0"`
	MinSessions       float64 `gorm:"not null;default:0"`
	MaxSessions       float64 `gorm:"not null;default:0"`
	AvgUsers          float64 `gorm:"not null;default:0"`
	SumUsers          float64 `gorm:"not null;default:0"`
	AvgPageViews      float64 `gorm:"not null;default:0"`
	SumPageViews      float64 `gorm:"not null;default:0"`
	AvgDeadClicks     float64 `gorm:"not null;default:0"`
	AvgRageClicks     float64 `gorm:"not null;default:0"`
	AvgQuickBacks     float64 `gorm:"not null;default:0"`
	AvgErrorClicks    float64 `gorm:"not null;default:0"`
	AvgScrollDepth    float64 `gorm:"not null;default:0"`
	AvgEngagementTime float64 `gorm:"not null;default:0"`
	DataPoints        int     `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FetchLog records one request against the Clarity export API. Used for the
// daily request budget and for the status overview.
type FetchLog struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Endpoint     string `gorm:"not null"`
	NumDays      int    `gorm:"not null"`
	Dimension1   string `gorm:"column:dimension1;not null;default:''"`
	Dimension2   string `gorm:"column:dimension2;not null;default:''"`
	Dimension3   string `gorm:"column:dimension3;not null;default:''"`
	StatusCode   int
	Success      bool `gorm:"not null;default:false"`
	ErrorMessage string
	ResponseSize int
	RowsReturned int
	RequestedAt  time.Time `gorm:"not null;index"`
}
