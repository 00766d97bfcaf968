// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// File paths
	DatabasePath    string `mapstructure:"storagepath"`
	DatabaseName    string `mapstructure:"-"` // Derived from other settings
	ExportDirectory string `mapstructure:"exportdir"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Clarity export API settings
	ClarityAPIToken    string `mapstructure:"clarityapitoken"`
	ClarityProjectID   string `mapstructure:"clarityprojectid"`
	ClarityAPIBaseURL  string `mapstructure:"clarityapibaseurl"`
	MaxRequestsPerDay  int    `mapstructure:"maxrequestsperday"`
	MaxDaysPerRequest  int    `mapstructure:"maxdaysperrequest"`
	RequestTimeoutSecs int    `mapstructure:"requesttimeoutsecs"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	FetchLogRetentionDays int `mapstructure:"fetchlogretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "claritywell")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("storagepath", "storage")
		v.SetDefault("exportdir", "storage/exports")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("clarityapibaseurl", "https://www.clarity.ms/export-data/api/v1")
		v.SetDefault("maxrequestsperday", 10)
		v.SetDefault("maxdaysperrequest", 3)
		v.SetDefault("requesttimeoutsecs", 30)
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("fetchlogretentiondays", 90)

		// Bind environment variables
		v.BindEnv("appname", "CLARITYWELL_APP_NAME")
		v.BindEnv("environment", "CLARITYWELL_ENV")
		v.BindEnv("loglevel", "CLARITYWELL_LOG_LEVEL")
		v.BindEnv("storagepath", "CLARITYWELL_STORAGE_PATH")
		v.BindEnv("exportdir", "CLARITYWELL_EXPORT_DIR")
		v.BindEnv("logsdir", "CLARITYWELL_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "CLARITYWELL_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "CLARITYWELL_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "CLARITYWELL_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "CLARITYWELL_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "CLARITYWELL_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "CLARITYWELL_DB_MAX_IDLE_CONNS")
		v.BindEnv("clarityapitoken", "CLARITY_API_TOKEN")
		v.BindEnv("clarityprojectid", "CLARITY_PROJECT_ID")
		v.BindEnv("clarityapibaseurl", "CLARITY_API_BASE_URL")
		v.BindEnv("maxrequestsperday", "CLARITYWELL_MAX_REQUESTS_PER_DAY")
		v.BindEnv("maxdaysperrequest", "CLARITYWELL_MAX_DAYS_PER_REQUEST")
		v.BindEnv("requesttimeoutsecs", "CLARITYWELL_REQUEST_TIMEOUT_SECS")
		v.BindEnv("jobintervalseconds", "CLARITYWELL_JOB_INTERVAL_SECONDS")
		v.BindEnv("fetchlogretentiondays", "CLARITYWELL_FETCH_LOG_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.MaxDaysPerRequest < 1 {
		return fmt.Errorf("maxdaysperrequest must be at least 1, got %d", c.MaxDaysPerRequest)
	}

	return nil
}

// ValidateClarityCredentials checks the API credentials needed for fetching.
// Querying and aggregating local data works without them, so this is only
// enforced by the commands that talk to the provider.
func (c *Config) ValidateClarityCredentials() error {
	if c.ClarityAPIToken == "" {
		return fmt.Errorf("CLARITY_API_TOKEN is not set")
	}
	if c.ClarityProjectID == "" {
		return fmt.Errorf("CLARITY_PROJECT_ID is not set")
	}
	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
// This application exposes no HTTP surface, so the port is empty.
func (c *Config) GetPort() string {
	return ""
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return ""
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return ""
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for test stability)
// - Development/Production: 10 (allows concurrent read queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
