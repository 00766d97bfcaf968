package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"claritywell/internal/metrics"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with claritywell's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all claritywell models for migration
func allModels() []any {
	return []any{
		&metrics.DailyMetric{},
		&metrics.WeeklyMetric{},
		&metrics.MonthlyMetric{},
		&metrics.FetchLog{},
	}
}

// SetupTestDB creates a test database with all claritywell models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same one.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupStore creates a metrics store over a fresh test database.
func SetupStore(t *testing.T) *metrics.Store {
	t.Helper()
	return metrics.NewStore(SetupTestDB(t), GetLogger())
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// Date builds a UTC midnight date, the form metric dates are stored in.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// TrafficRecord builds a general-scope traffic metric row for one day.
func TrafficRecord(date time.Time, sessions, users int64) metrics.DailyMetric {
	return metrics.DailyMetric{
		MetricDate: date,
		MetricName: metrics.MetricTraffic,
		DataScope:  metrics.ScopeGeneral,
		Sessions:   Int64Ptr(sessions),
		Users:      Int64Ptr(users),
	}
}

// SeedTrafficSeries inserts one traffic row per day for consecutive dates
// starting at start. sessions[i] is stored for start+i days; users defaults
// to half the session count.
func SeedTrafficSeries(t *testing.T, store *metrics.Store, start time.Time, sessions []int64) {
	t.Helper()

	records := make([]metrics.DailyMetric, 0, len(sessions))
	for i, s := range sessions {
		records = append(records, TrafficRecord(start.AddDate(0, 0, i), s, s/2))
	}
	inserted, err := store.InsertDaily(records)
	require.NoError(t, err)
	require.Equal(t, len(records), inserted)
}

// SeedFrustrationDay inserts the frustration metric rows for one day, each
// with the given session count and signal subtotal.
func SeedFrustrationDay(t *testing.T, store *metrics.Store, date time.Time, sessions int64, signal int64) {
	t.Helper()

	names := []struct {
		name string
		set  func(m *metrics.DailyMetric)
	}{
		{metrics.MetricDeadClicks, func(m *metrics.DailyMetric) { m.DeadClicks = Int64Ptr(signal) }},
		{metrics.MetricRageClicks, func(m *metrics.DailyMetric) { m.RageClicks = Int64Ptr(signal) }},
		{metrics.MetricQuickBacks, func(m *metrics.DailyMetric) { m.QuickBacks = Int64Ptr(signal) }},
		{metrics.MetricErrorClicks, func(m *metrics.DailyMetric) { m.ErrorClicks = Int64Ptr(signal) }},
	}

	records := make([]metrics.DailyMetric, 0, len(names))
	for _, n := range names {
		m := metrics.DailyMetric{
			MetricDate: date,
			MetricName: n.name,
			DataScope:  metrics.ScopeGeneral,
			Sessions:   Int64Ptr(sessions),
		}
		n.set(&m)
		records = append(records, m)
	}
	_, err := store.InsertDaily(records)
	require.NoError(t, err)
}
