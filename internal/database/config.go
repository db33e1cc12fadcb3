package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported database/sql driver names
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// DefaultMaxBlobBytes caps a single stored blob, in line with browser
// localStorage limits the snapshot format was designed around.
const DefaultMaxBlobBytes = 5 << 20

// parseBoolEnv reads an environment variable and parses it as a boolean.
// Returns the parsed value and a boolean indicating if the variable was present.
// Supports true/false, 1/0, yes/no, on/off, t/f, y/n (case-insensitive).
func parseBoolEnv(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed, true
	}

	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Config holds all database configuration options
type Config struct {
	// Connection settings
	Path                  string        `json:"path" yaml:"path" mapstructure:"path"`
	Driver                string        `json:"driver" yaml:"driver" mapstructure:"driver"`
	MaxConnections        int           `json:"maxConnections" yaml:"maxConnections" mapstructure:"max_connections"`
	MaxIdleConns          int           `json:"maxIdleConns" yaml:"maxIdleConns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime       time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime       time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime" mapstructure:"conn_max_idle_time"`
	ForceSingleConnection bool          `json:"forceSingleConnection" yaml:"forceSingleConnection" mapstructure:"force_single_connection"`

	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate" mapstructure:"auto_migrate"`

	// Pragmas
	JournalMode     string `json:"journalMode" yaml:"journalMode" mapstructure:"journal_mode"`
	SynchronousMode string `json:"synchronousMode" yaml:"synchronousMode" mapstructure:"synchronous_mode"`
	CacheSize       int    `json:"cacheSize" yaml:"cacheSize" mapstructure:"cache_size"`       // KB
	BusyTimeout     int    `json:"busyTimeout" yaml:"busyTimeout" mapstructure:"busy_timeout"` // ms
	ForeignKeys     bool   `json:"foreignKeys" yaml:"foreignKeys" mapstructure:"foreign_keys"`

	// Blob store quota
	MaxBlobBytes int `json:"maxBlobBytes" yaml:"maxBlobBytes" mapstructure:"max_blob_bytes"`

	// Run ANALYZE/VACUUM when the service closes
	OptimizeOnClose bool `json:"optimizeOnClose" yaml:"optimizeOnClose" mapstructure:"optimize_on_close"`

	Environment string `json:"environment" yaml:"environment" mapstructure:"environment"`
	LogLevel    string `json:"logLevel" yaml:"logLevel" mapstructure:"log_level"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path:                  "worktrack.db",
		Driver:                DriverCGO,
		MaxConnections:        4,
		MaxIdleConns:          2,
		ConnMaxLifetime:       24 * time.Hour,
		ConnMaxIdleTime:       30 * time.Minute,
		ForceSingleConnection: false,

		AutoMigrate: true,

		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		CacheSize:       2000,
		BusyTimeout:     5000,
		ForeignKeys:     true,

		MaxBlobBytes:    DefaultMaxBlobBytes,
		OptimizeOnClose: false,

		Environment: "production",
		LogLevel:    "info",
	}
}

// DevelopmentConfig returns a configuration optimized for development
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Path = "worktrack_dev.db"
	config.Environment = "development"
	config.LogLevel = "debug"
	return config
}

// TestConfig returns an in-memory configuration for tests
func TestConfig() *Config {
	config := DefaultConfig()
	config.Path = ":memory:"
	config.Environment = "test"
	config.LogLevel = "error"

	// WAL is meaningless for in-memory databases, and every pooled
	// connection would see its own database, so stay on one.
	config.JournalMode = "MEMORY"
	config.SynchronousMode = "OFF"
	config.CacheSize = 1000
	config.BusyTimeout = 1000
	config.ForceSingleConnection = true

	return config
}

// LoadFromEnvironment applies WORKTRACK_DB_* overrides
func (c *Config) LoadFromEnvironment() error {
	if path := os.Getenv("WORKTRACK_DB_PATH"); path != "" {
		c.Path = path
	}

	if driver := os.Getenv("WORKTRACK_DB_DRIVER"); driver != "" {
		c.Driver = driver
	}

	if maxConns := os.Getenv("WORKTRACK_DB_MAX_CONNECTIONS"); maxConns != "" {
		if val, err := strconv.Atoi(maxConns); err == nil && val > 0 {
			c.MaxConnections = val
		}
	}

	if maxIdle := os.Getenv("WORKTRACK_DB_MAX_IDLE_CONNECTIONS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil && val >= 0 {
			c.MaxIdleConns = val
		}
	}

	if lifetime := os.Getenv("WORKTRACK_DB_CONN_MAX_LIFETIME"); lifetime != "" {
		if val, err := time.ParseDuration(lifetime); err == nil {
			c.ConnMaxLifetime = val
		}
	}

	if idleTime := os.Getenv("WORKTRACK_DB_CONN_MAX_IDLE_TIME"); idleTime != "" {
		if val, err := time.ParseDuration(idleTime); err == nil {
			c.ConnMaxIdleTime = val
		}
	}

	if autoMigrate, present := parseBoolEnv("WORKTRACK_DB_AUTO_MIGRATE"); present {
		c.AutoMigrate = autoMigrate
	}

	if journalMode := os.Getenv("WORKTRACK_DB_JOURNAL_MODE"); journalMode != "" {
		c.JournalMode = journalMode
	}

	if syncMode := os.Getenv("WORKTRACK_DB_SYNCHRONOUS_MODE"); syncMode != "" {
		c.SynchronousMode = syncMode
	}

	if cacheSize := os.Getenv("WORKTRACK_DB_CACHE_SIZE"); cacheSize != "" {
		if val, err := strconv.Atoi(cacheSize); err == nil && val > 0 {
			c.CacheSize = val
		}
	}

	if busyTimeout := os.Getenv("WORKTRACK_DB_BUSY_TIMEOUT"); busyTimeout != "" {
		if val, err := strconv.Atoi(busyTimeout); err == nil && val >= 0 {
			c.BusyTimeout = val
		}
	}

	if foreignKeys, present := parseBoolEnv("WORKTRACK_DB_FOREIGN_KEYS"); present {
		c.ForeignKeys = foreignKeys
	}

	if forceSingle, present := parseBoolEnv("WORKTRACK_DB_FORCE_SINGLE_CONNECTION"); present {
		c.ForceSingleConnection = forceSingle
	}

	if maxBlob := os.Getenv("WORKTRACK_DB_MAX_BLOB_BYTES"); maxBlob != "" {
		if val, err := strconv.Atoi(maxBlob); err == nil && val > 0 {
			c.MaxBlobBytes = val
		}
	}

	if optimize, present := parseBoolEnv("WORKTRACK_DB_OPTIMIZE_ON_CLOSE"); present {
		c.OptimizeOnClose = optimize
	}

	if environment := os.Getenv("WORKTRACK_ENVIRONMENT"); environment != "" {
		c.Environment = environment
	}

	if logLevel := os.Getenv("WORKTRACK_DB_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	return nil
}

// Validate validates the configuration parameters
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// For file-based databases, ensure directory exists
	if !c.IsInMemory() {
		dir := filepath.Dir(c.Path)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create database directory %s: %w", dir, err)
				}
			}
		}
	}

	if c.Driver != DriverCGO && c.Driver != DriverPureGo {
		return fmt.Errorf("invalid driver %q: must be %q or %q", c.Driver, DriverCGO, DriverPureGo)
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("maxConnections must be positive, got %d", c.MaxConnections)
	}

	if c.MaxIdleConns < 0 {
		return fmt.Errorf("maxIdleConns cannot be negative, got %d", c.MaxIdleConns)
	}

	if c.MaxIdleConns > c.MaxConnections {
		return fmt.Errorf("maxIdleConns (%d) cannot be greater than maxConnections (%d)", c.MaxIdleConns, c.MaxConnections)
	}

	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connMaxLifetime cannot be negative, got %v", c.ConnMaxLifetime)
	}

	if c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("connMaxIdleTime cannot be negative, got %v", c.ConnMaxIdleTime)
	}

	validJournalModes := []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	journalModeValid := false
	for _, mode := range validJournalModes {
		if strings.EqualFold(c.JournalMode, mode) {
			journalModeValid = true
			break
		}
	}
	if !journalModeValid {
		return fmt.Errorf("invalid journalMode: %s", c.JournalMode)
	}

	if c.IsInMemory() && strings.EqualFold(c.JournalMode, "WAL") {
		return fmt.Errorf("journalMode cannot be WAL when using in-memory database")
	}

	validSyncModes := map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
	if !validSyncModes[strings.ToUpper(c.SynchronousMode)] {
		return fmt.Errorf("invalid synchronousMode: %s", c.SynchronousMode)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}

	if c.BusyTimeout < 0 {
		return fmt.Errorf("busyTimeout cannot be negative, got %d", c.BusyTimeout)
	}

	if c.MaxBlobBytes <= 0 {
		return fmt.Errorf("maxBlobBytes must be positive, got %d", c.MaxBlobBytes)
	}

	validEnvironments := map[string]bool{
		"development": true,
		"test":        true,
		"production":  true,
	}
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid logLevel: %s", c.LogLevel)
	}

	return nil
}

// DriverName returns the database/sql driver to open, defaulting to the cgo driver
func (c *Config) DriverName() string {
	if c.Driver == "" {
		return DriverCGO
	}
	return c.Driver
}

// GetConnectionString builds the DSN for the configured driver. The two
// drivers spell pragmas differently: mattn uses _name=value query keys,
// modernc uses repeated _pragma=name(value).
func (c *Config) GetConnectionString() string {
	fk := "off"
	if c.ForeignKeys {
		fk = "on"
	}

	path := c.Path
	if strings.ContainsAny(path, "?&") {
		path = strings.ReplaceAll(path, "?", "%3F")
		path = strings.ReplaceAll(path, "&", "%26")
	}

	if c.DriverName() == DriverPureGo {
		pragmas := []string{
			fmt.Sprintf("_pragma=foreign_keys(%s)", fk),
			fmt.Sprintf("_pragma=journal_mode(%s)", c.JournalMode),
			fmt.Sprintf("_pragma=synchronous(%s)", c.SynchronousMode),
			fmt.Sprintf("_pragma=cache_size(%d)", -c.CacheSize),
			fmt.Sprintf("_pragma=busy_timeout(%d)", c.BusyTimeout),
		}
		return "file:" + path + "?" + strings.Join(pragmas, "&")
	}

	values := url.Values{}
	values.Set("_foreign_keys", fk)
	values.Set("_journal_mode", c.JournalMode)
	values.Set("_synchronous", c.SynchronousMode)
	// Negative so SQLite reads the value as KB
	values.Set("_cache_size", fmt.Sprintf("%d", -c.CacheSize))
	values.Set("_busy_timeout", fmt.Sprintf("%d", c.BusyTimeout))

	return path + "?" + values.Encode()
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// IsInMemory returns true if the database is configured to use in-memory storage
func (c *Config) IsInMemory() bool {
	return c.Path == ":memory:"
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if the environment is set to test
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConfigForEnvironment returns a configuration for env with the database
// placed under dataDir (ignored for tests)
func ConfigForEnvironment(env, dataDir string) *Config {
	var config *Config
	switch env {
	case "development":
		config = DevelopmentConfig()
	case "test":
		return TestConfig()
	default:
		config = DefaultConfig()
	}
	if dataDir != "" {
		config.Path = filepath.Join(dataDir, filepath.Base(config.Path))
	}
	return config
}
