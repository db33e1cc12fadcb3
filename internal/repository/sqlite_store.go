package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"worktrack/internal/database"
	repoerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
)

// DefaultHistoryDepth is how many overwritten values are kept per key
const DefaultHistoryDepth = 3

// SQLiteStore implements BlobStore on the kv_store table
type SQLiteStore struct {
	db           *sql.DB
	retryConfig  *repoerrors.RetryConfig
	maxBytes     int
	historyDepth int
	logger       logging.Logger
}

var _ VersionedBlobStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store on a connected, migrated database service
func NewSQLiteStore(dbService database.Service, logger logging.Logger) *SQLiteStore {
	maxBytes := database.DefaultMaxBlobBytes
	if cfg := dbService.Config(); cfg != nil && cfg.MaxBlobBytes > 0 {
		maxBytes = cfg.MaxBlobBytes
	}
	return NewSQLiteStoreWithConfig(dbService.DB(), repoerrors.DefaultRetryConfig(), maxBytes, DefaultHistoryDepth, logger)
}

// NewSQLiteStoreWithConfig creates a store with explicit limits
func NewSQLiteStoreWithConfig(db *sql.DB, retryConfig *repoerrors.RetryConfig, maxBytes, historyDepth int, logger logging.Logger) *SQLiteStore {
	if retryConfig == nil {
		retryConfig = repoerrors.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if maxBytes <= 0 {
		maxBytes = database.DefaultMaxBlobBytes
	}
	if historyDepth < 0 {
		historyDepth = 0
	}
	return &SQLiteStore{
		db:           db,
		retryConfig:  retryConfig,
		maxBytes:     maxBytes,
		historyDepth: historyDepth,
		logger:       logger,
	}
}

// MaxBytes returns the per-blob quota
func (r *SQLiteStore) MaxBytes() int {
	return r.maxBytes
}

// wrap classifies err and logs it at a level matching its retryability
func (r *SQLiteStore) wrap(op, key string, err error) *repoerrors.Error {
	repoErr := repoerrors.NewWithContext(op, err, repoerrors.ClassifyError(err), map[string]string{"key": key})
	if repoErr.IsRetryable() {
		r.logger.Debug("Retryable error in "+op, "error", err, "key", key)
	} else if !repoerrors.IsNotFound(repoErr) {
		logging.LogError(r.logger, repoErr, op, map[string]any{"key": key})
	}
	return repoErr
}

// Get returns the value stored under key
func (r *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var value []byte

	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repoerrors.HandleNotFound("Get", "blob", key)
			}
			return r.wrap("Get", key, err)
		}
		return nil
	}, "kv.Get")
	if err != nil {
		return nil, err
	}

	logging.LogOperation(r.logger, "kv.Get", time.Since(start), map[string]any{"key": key, "bytes": len(value)})
	return value, nil
}

// Put writes value under key in one transaction, moving the previous value
// into kv_history and trimming history to the configured depth.
func (r *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	if len(value) > r.maxBytes {
		err := repoerrors.StorageQuotaExceeded("Put", len(value), r.maxBytes)
		logging.LogError(r.logger, err, "kv.Put", map[string]any{"key": key})
		return err
	}

	start := time.Now()
	err := r.withTransaction(ctx, "kv.Put", func(tx *sql.Tx) error {
		if r.historyDepth > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kv_history (key, value) SELECT key, value FROM kv_store WHERE key = ?`, key); err != nil {
				return r.wrap("Put.History", key, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv_store (key, value, size_bytes, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				size_bytes = excluded.size_bytes,
				updated_at = excluded.updated_at`,
			key, value, len(value)); err != nil {
			return r.wrap("Put", key, err)
		}

		if r.historyDepth > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM kv_history WHERE key = ? AND id NOT IN (
					SELECT id FROM kv_history WHERE key = ? ORDER BY id DESC LIMIT ?
				)`, key, key, r.historyDepth); err != nil {
				return r.wrap("Put.Trim", key, err)
			}
		}
		return nil
	})

	if err == nil {
		logging.LogOperation(r.logger, "kv.Put", time.Since(start), map[string]any{"key": key, "bytes": len(value)})
	}
	return err
}

// Delete removes key and its history. Deleting a missing key is not an error.
func (r *SQLiteStore) Delete(ctx context.Context, key string) error {
	return r.withTransaction(ctx, "kv.Delete", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
			return r.wrap("Delete", key, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_history WHERE key = ?`, key); err != nil {
			return r.wrap("Delete.History", key, err)
		}
		return nil
	})
}

// History returns up to limit previous values of key, newest first
func (r *SQLiteStore) History(ctx context.Context, key string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = r.historyDepth
	}

	var entries []HistoryEntry
	err := repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		entries = entries[:0]
		rows, err := r.db.QueryContext(ctx,
			`SELECT id, key, value, replaced_at FROM kv_history WHERE key = ? ORDER BY id DESC LIMIT ?`, key, limit)
		if err != nil {
			return r.wrap("History", key, err)
		}
		defer rows.Close()

		for rows.Next() {
			var e HistoryEntry
			if err := rows.Scan(&e.ID, &e.Key, &e.Value, &e.ReplacedAt); err != nil {
				return r.wrap("History.Scan", key, err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return r.wrap("History.Rows", key, err)
		}
		return nil
	}, "kv.History")
	return entries, err
}

// withTransaction runs fn in a transaction, retrying retryable failures
func (r *SQLiteStore) withTransaction(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return repoerrors.WithRetryContext(ctx, r.retryConfig, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return r.wrap(op+".Begin", "", err)
		}

		committed := false
		defer func() {
			if committed {
				return
			}
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Debug("Failed to rollback transaction", "operation", op, "rollback_error", rbErr)
			}
		}()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return r.wrap(op+".Commit", "", fmt.Errorf("commit: %w", err))
		}
		committed = true
		return nil
	}, op)
}
