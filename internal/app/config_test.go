package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"worktrack/internal/database"
)

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	path := filepath.Join(dir, "conf", "worktrack.yml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.DataDir != filepath.Join(dir, "data", "worktrack") {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Driver != database.DriverCGO {
		t.Errorf("Driver = %q, want %q", cfg.Driver, database.DriverCGO)
	}
	if !cfg.Cleanup.Enabled || cfg.Cleanup.Hour != 3 {
		t.Errorf("Cleanup = %+v", cfg.Cleanup)
	}
	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("second LoadConfig: %v", err)
	}
	if again.DataDir != cfg.DataDir {
		t.Errorf("reloaded DataDir = %q, want %q", again.DataDir, cfg.DataDir)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worktrack.yml")
	content := strings.Join([]string{
		"environment: development",
		"data_dir: " + filepath.Join(dir, "store"),
		"driver: sqlite",
		"log:",
		"  level: warn",
		"  format: json",
		"cleanup:",
		"  enabled: false",
		"  hour: 22",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKTRACK_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Environment != "development" || cfg.Driver != database.DriverPureGo {
		t.Errorf("got environment %q driver %q", cfg.Environment, cfg.Driver)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want the environment override", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
	if cfg.Cleanup.Enabled || cfg.Cleanup.Hour != 22 {
		t.Errorf("Cleanup = %+v", cfg.Cleanup)
	}

	dbCfg, err := cfg.DatabaseConfig()
	if err != nil {
		t.Fatalf("DatabaseConfig: %v", err)
	}
	if dbCfg.Path != filepath.Join(dir, "store", "worktrack_dev.db") {
		t.Errorf("database path = %q", dbCfg.Path)
	}
	if dbCfg.Driver != database.DriverPureGo {
		t.Errorf("database driver = %q", dbCfg.Driver)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Environment: "production", DataDir: "/tmp/x", Driver: database.DriverCGO, Cleanup: CleanupConfig{Hour: 3}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown environment", func(c *Config) { c.Environment = "staging" }, "environment"},
		{"unknown driver", func(c *Config) { c.Driver = "postgres" }, "driver"},
		{"hour too large", func(c *Config) { c.Cleanup.Hour = 24 }, "cleanup.hour"},
		{"negative hour", func(c *Config) { c.Cleanup.Hour = -1 }, "cleanup.hour"},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"test needs no data dir", func(c *Config) { c.Environment = "test"; c.DataDir = "" }, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
