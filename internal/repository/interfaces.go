package repository

import (
	"context"
	"time"
)

// BlobStore is the key-value store the snapshot is written to. A missing key
// yields an error with ErrCodeNotFound.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// HistoryEntry is a previous value of a key, kept when it was overwritten
type HistoryEntry struct {
	ID         int64
	Key        string
	Value      []byte
	ReplacedAt time.Time
}

// VersionedBlobStore keeps a bounded history of overwritten values
type VersionedBlobStore interface {
	BlobStore
	History(ctx context.Context, key string, limit int) ([]HistoryEntry, error)
}
