package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/pressly/goose/v3"

	"worktrack/internal/infrastructure/logging"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// migrationFS is the embedded schema with the migrations/ prefix stripped
var migrationFS = mustSub(embedMigrations, "migrations")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// errNilDB is returned by every runner operation that needs a connection
var errNilDB = errors.New("database connection is nil")

// MigrationRunner applies the embedded kv schema through a goose provider.
// Both drivers speak the same SQL, so the sqlite3 dialect serves either.
type MigrationRunner struct {
	db       *sql.DB
	logger   logging.Logger
	provider *goose.Provider
	err      error
}

var _ MigrationManager = (*MigrationRunner)(nil)

// NewMigrationRunner creates a runner for db. A nil db yields a runner that
// can still validate the embedded files.
func NewMigrationRunner(db *sql.DB, logger logging.Logger) *MigrationRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	mr := &MigrationRunner{db: db, logger: logger}
	if db == nil {
		mr.err = errNilDB
		return mr
	}
	mr.provider, mr.err = goose.NewProvider(goose.DialectSQLite3, db, migrationFS)
	return mr
}

// RunMigrations applies pending migrations and logs each one applied
func (mr *MigrationRunner) RunMigrations(ctx context.Context) error {
	if mr.err != nil {
		return mr.err
	}

	results, err := mr.provider.Up(ctx)
	for _, r := range results {
		mr.logger.Info("Applied kv schema migration",
			"version", r.Source.Version,
			"file", path.Base(r.Source.Path),
			"duration", r.Duration.String())
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if version, err := mr.provider.GetDBVersion(ctx); err == nil {
		mr.logger.Debug("kv schema at version", "version", version)
	}
	return nil
}

// GetCurrentVersion returns the applied schema version
func (mr *MigrationRunner) GetCurrentVersion(ctx context.Context) (int64, error) {
	if mr.err != nil {
		return 0, mr.err
	}
	version, err := mr.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// ValidateMigrations checks that the embedded files exist and carry goose
// version prefixes. It needs no connection.
func (mr *MigrationRunner) ValidateMigrations() error {
	names, err := fs.Glob(migrationFS, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(names) == 0 {
		return errors.New("no migrations found in embedded filesystem")
	}

	seen := make(map[int64]string, len(names))
	for _, name := range names {
		version, err := goose.NumericComponent(name)
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if prev, dup := seen[version]; dup {
			return fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name
	}

	mr.logger.Debug("Embedded kv schema migrations", "count", len(names))
	return nil
}
