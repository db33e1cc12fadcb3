package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"worktrack/internal/database"
	repoerrors "worktrack/internal/infrastructure/errors"
)

// MemoryStore implements VersionedBlobStore in process memory. It enforces
// the same per-blob quota as SQLiteStore and can simulate failures.
type MemoryStore struct {
	mu           sync.RWMutex
	data         map[string][]byte
	history      map[string][]HistoryEntry
	nextID       int64
	maxBytes     int
	historyDepth int

	getCalls    int
	putCalls    int
	deleteCalls int

	failGet     bool
	failPut     bool
	failDelete  bool
	failureCode repoerrors.ErrorCode
}

var _ VersionedBlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store with the default quota
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithLimit(database.DefaultMaxBlobBytes)
}

// NewMemoryStoreWithLimit creates an empty store that rejects blobs larger than maxBytes
func NewMemoryStoreWithLimit(maxBytes int) *MemoryStore {
	if maxBytes <= 0 {
		maxBytes = database.DefaultMaxBlobBytes
	}
	return &MemoryStore{
		data:         make(map[string][]byte),
		history:      make(map[string][]HistoryEntry),
		maxBytes:     maxBytes,
		historyDepth: DefaultHistoryDepth,
		failureCode:  repoerrors.ErrCodeConnection,
	}
}

// SetFailureModes configures the store to fail the given operations
func (m *MemoryStore) SetFailureModes(get, put, del bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = get
	m.failPut = put
	m.failDelete = del
}

// SetFailureCode sets the error code returned by simulated failures
func (m *MemoryStore) SetFailureCode(code repoerrors.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCode = code
}

// GetCallCounts returns the number of times each method was called
func (m *MemoryStore) GetCallCounts() (get, put, del int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCalls, m.putCalls, m.deleteCalls
}

// Get implements BlobStore
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	if err := ctx.Err(); err != nil {
		return nil, repoerrors.New("Get", err, repoerrors.ErrCodeTimeout)
	}
	if m.failGet {
		return nil, repoerrors.New("Get", fmt.Errorf("simulated get failure"), m.failureCode)
	}

	value, ok := m.data[key]
	if !ok {
		return nil, repoerrors.HandleNotFound("Get", "blob", key)
	}
	return append([]byte(nil), value...), nil
}

// Put implements BlobStore
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++

	if err := ctx.Err(); err != nil {
		return repoerrors.New("Put", err, repoerrors.ErrCodeTimeout)
	}
	if m.failPut {
		return repoerrors.New("Put", fmt.Errorf("simulated put failure"), m.failureCode)
	}
	if len(value) > m.maxBytes {
		return repoerrors.StorageQuotaExceeded("Put", len(value), m.maxBytes)
	}

	if old, ok := m.data[key]; ok && m.historyDepth > 0 {
		m.nextID++
		h := append([]HistoryEntry{{ID: m.nextID, Key: key, Value: old, ReplacedAt: time.Now()}}, m.history[key]...)
		if len(h) > m.historyDepth {
			h = h[:m.historyDepth]
		}
		m.history[key] = h
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements BlobStore
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++

	if err := ctx.Err(); err != nil {
		return repoerrors.New("Delete", err, repoerrors.ErrCodeTimeout)
	}
	if m.failDelete {
		return repoerrors.New("Delete", fmt.Errorf("simulated delete failure"), m.failureCode)
	}
	delete(m.data, key)
	delete(m.history, key)
	return nil
}

// History implements VersionedBlobStore
func (m *MemoryStore) History(ctx context.Context, key string, limit int) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[key]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out, nil
}

// Len returns the number of stored keys
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
