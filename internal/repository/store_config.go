package repository

import (
	"context"
	"time"

	repoerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
)

// SetRetryConfig updates the retry configuration for the store
func (r *SQLiteStore) SetRetryConfig(config *repoerrors.RetryConfig) {
	if config != nil {
		r.retryConfig = config
	}
}

// GetRetryConfig returns the current retry configuration
func (r *SQLiteStore) GetRetryConfig() *repoerrors.RetryConfig {
	return r.retryConfig
}

// SetLogger updates the logger for the store
func (r *SQLiteStore) SetLogger(logger logging.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Usage reports how many bytes are stored across all keys
func (r *SQLiteStore) Usage(ctx context.Context) (int64, error) {
	var total int64
	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM kv_store`).Scan(&total); err != nil {
			return r.wrap("Usage", "", err)
		}
		return nil
	}, "kv.Usage")
	return total, err
}

// HealthCheck pings the database and runs a trivial query against kv_store
func (r *SQLiteStore) HealthCheck(ctx context.Context) error {
	start := time.Now()

	err := repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		if err := r.db.PingContext(ctx); err != nil {
			return r.wrap("HealthCheck.Ping", "", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = repoerrors.WithRetry(ctx, r.retryConfig, func() error {
		var count int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_store`).Scan(&count); err != nil {
			return r.wrap("HealthCheck.Query", "", err)
		}
		return nil
	})

	if err == nil {
		logging.LogOperation(r.logger, "HealthCheck", time.Since(start), nil)
	}
	return err
}
