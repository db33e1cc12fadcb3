package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"worktrack/internal/database"
)

const (
	configName = "worktrack"
	envPrefix  = "WORKTRACK"
)

var environments = map[string]bool{"production": true, "development": true, "test": true}

// LogConfig controls the application logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// CleanupConfig controls the daily retention job
type CleanupConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    int  `mapstructure:"hour"`
}

// Config is the application configuration read from worktrack.yml and
// WORKTRACK_* environment variables
type Config struct {
	Environment string        `mapstructure:"environment"`
	DataDir     string        `mapstructure:"data_dir"`
	Driver      string        `mapstructure:"driver"`
	Log         LogConfig     `mapstructure:"log"`
	Cleanup     CleanupConfig `mapstructure:"cleanup"`

	// path of the file the config was read from, empty when none
	File string `mapstructure:"-"`
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/worktrack/worktrack.yml
func DefaultConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting user home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, configName, configName+".yml"), nil
}

// DefaultDataDir returns $XDG_DATA_HOME/worktrack
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, configName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("driver", database.DriverCGO)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.hour", 3)
}

// LoadConfig reads path, or the default config path when empty. A missing
// file is created with the default values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("error creating config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values viper cannot type-check
func (c *Config) Validate() error {
	if !environments[c.Environment] {
		return fmt.Errorf("environment must be production, development or test, got %q", c.Environment)
	}
	if c.Driver != database.DriverCGO && c.Driver != database.DriverPureGo {
		return fmt.Errorf("driver must be %q or %q, got %q", database.DriverCGO, database.DriverPureGo, c.Driver)
	}
	if c.Cleanup.Hour < 0 || c.Cleanup.Hour > 23 {
		return fmt.Errorf("cleanup.hour must be between 0 and 23, got %d", c.Cleanup.Hour)
	}
	if c.Environment != "test" && c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// DatabaseConfig derives the sqlite configuration. WORKTRACK_DB_*
// variables still take precedence.
func (c *Config) DatabaseConfig() (*database.Config, error) {
	dbCfg := database.ConfigForEnvironment(c.Environment, c.DataDir)
	if c.Driver != "" {
		dbCfg.Driver = c.Driver
	}
	if err := dbCfg.LoadFromEnvironment(); err != nil {
		return nil, err
	}
	return dbCfg, nil
}
