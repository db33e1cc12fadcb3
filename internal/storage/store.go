// Package storage owns the canonical snapshot. Every other component reads a
// copy from the Store and writes changes back through Update.
package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"worktrack/internal/clock"
	"worktrack/internal/database"
	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/infrastructure/metrics"
	"worktrack/internal/repository"
	"worktrack/internal/scheduler"
	"worktrack/internal/types"
)

// DefaultKey is the blob key the snapshot is stored under
const DefaultKey = "worktrack.snapshot"

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	Key       string
	MaxBytes  int
	Clock     clock.Clock
	Publisher events.Publisher
	Logger    logging.Logger
	Metrics   *metrics.Recorder
}

// Store loads, saves and migrates the snapshot and runs retention cleanup.
// Mutations go through Update so a failed operation leaves no trace.
type Store struct {
	blobs     repository.BlobStore
	key       string
	maxBytes  int
	clock     clock.Clock
	publisher events.Publisher
	logger    logging.Logger
	metrics   *metrics.Recorder

	mu       sync.Mutex
	current  *types.Snapshot
	dirty    bool
	autoSave *scheduler.Debouncer
	outbox   []events.Event
}

// New creates a Store over blobs
func New(blobs repository.BlobStore, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = database.DefaultMaxBlobBytes
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Store{
		blobs:     blobs,
		key:       opts.Key,
		maxBytes:  opts.MaxBytes,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Load returns a copy of the current snapshot, reading the blob store on
// first use. A missing blob yields a fresh snapshot with default settings.
func (s *Store) Load(ctx context.Context) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.unlock()
	snap, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

// Reload writes any pending changes and then re-reads the blob store
func (s *Store) Reload(ctx context.Context) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.unlock()
	if err := s.flushLocked(ctx); err != nil {
		return nil, err
	}
	s.current = nil
	snap, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

func (s *Store) loadLocked(ctx context.Context) (*types.Snapshot, error) {
	if s.current != nil {
		return s.current, nil
	}

	start := time.Now()
	data, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		if trackerrors.IsNotFound(err) {
			s.logger.Info("No stored snapshot, starting fresh", "key", s.key)
			s.current = types.NewSnapshot()
			return s.current, nil
		}
		s.reportFailure("Load", err)
		return nil, err
	}

	snap, err := decode(data)
	if err != nil {
		s.reportFailure("Load", err)
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		s.logger.Warn("Stored snapshot has invalid records", "error", err)
	}

	s.current = snap
	logging.LogOperation(s.logger, "storage.Load", time.Since(start), map[string]interface{}{
		"bytes":        len(data),
		"tasks":        len(snap.Tasks),
		"time_entries": len(snap.TimeEntries),
	})
	return s.current, nil
}

// Save validates the top-level shape of snap, stamps version and time and
// writes it immediately as one blob. Any pending auto-save is superseded.
func (s *Store) Save(ctx context.Context, snap *types.Snapshot) error {
	if err := snap.ValidateShape(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock()

	next := snap.Clone()
	s.stamp(next)
	data, err := s.encode(next)
	if err != nil {
		s.reportFailure("Save", err)
		return err
	}
	if err := s.write(ctx, data); err != nil {
		return err
	}
	s.current = next
	s.dirty = false
	if s.autoSave != nil {
		s.autoSave.Cancel()
	}
	return nil
}

// Update applies fn to a copy of the snapshot. The copy replaces the current
// snapshot only if fn succeeds, the records fn touched validate and, without
// auto-save, the write succeeds. The committed snapshot is returned.
func (s *Store) Update(ctx context.Context, fn func(*types.Snapshot) error) (*types.Snapshot, error) {
	return s.mutate(ctx, func(snap *types.Snapshot) (bool, error) {
		return true, fn(snap)
	})
}

// mutate is Update with an opt-out: fn returning false commits nothing
func (s *Store) mutate(ctx context.Context, fn func(*types.Snapshot) (bool, error)) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.unlock()

	cur, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return cur.Clone(), nil
	}
	if err := next.ValidateChanges(cur); err != nil {
		return nil, err
	}

	s.stamp(next)
	data, err := s.encode(next)
	if err != nil {
		s.reportFailure("Update", err)
		return nil, err
	}

	if s.autoSave != nil {
		s.current = next
		s.dirty = true
		s.autoSave.Schedule()
		return next.Clone(), nil
	}

	if err := s.write(ctx, data); err != nil {
		return nil, err
	}
	s.current = next
	s.dirty = false
	return next.Clone(), nil
}

// Clear deletes the stored snapshot; the next Load starts fresh
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()

	if err := s.blobs.Delete(ctx, s.key); err != nil {
		s.reportFailure("Clear", err)
		return err
	}
	if s.autoSave != nil {
		s.autoSave.Cancel()
	}
	s.current = types.NewSnapshot()
	s.dirty = false
	s.logger.Info("Snapshot cleared", "key", s.key)
	return nil
}

// Export returns the current snapshot as indented JSON
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()

	snap, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, trackerrors.New("Export", err, trackerrors.ErrCodeInternal)
	}
	return data, nil
}

// Import replaces the snapshot with data after migrating and validating it
func (s *Store) Import(ctx context.Context, data []byte) (*types.Snapshot, error) {
	snap, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, snap); err != nil {
		return nil, err
	}
	s.logger.Info("Snapshot imported", "tasks", len(snap.Tasks), "time_entries", len(snap.TimeEntries))
	return s.Load(ctx)
}

// Settings returns the current settings without copying the whole snapshot
func (s *Store) Settings(ctx context.Context) (types.Settings, error) {
	s.mu.Lock()
	defer s.unlock()
	snap, err := s.loadLocked(ctx)
	if err != nil {
		return types.Settings{}, err
	}
	return snap.Settings, nil
}

// UpdateSettings applies a validated partial settings update. A changed
// auto-save interval takes effect for the pending flush too.
func (s *Store) UpdateSettings(ctx context.Context, update types.SettingsUpdate) (types.Settings, error) {
	snap, err := s.Update(ctx, func(snap *types.Snapshot) error {
		next, err := snap.Settings.Apply(update)
		if err != nil {
			return err
		}
		snap.Settings = next
		return nil
	})
	if err != nil {
		return types.Settings{}, err
	}

	s.mu.Lock()
	if s.autoSave != nil && s.autoSave.Interval() != snap.Settings.AutoSaveEvery() {
		s.autoSave.SetInterval(snap.Settings.AutoSaveEvery())
		if s.autoSave.Cancel() {
			s.autoSave.Schedule()
		}
	}
	s.unlock()

	s.publish(events.Event{Kind: events.SettingsUpdated, At: s.clock.Now(), Fields: update.Fields()})
	return snap.Settings, nil
}

// IncrementActivity bumps the counter for label on date and refreshes that
// day's stored rollup. It returns the new count.
func (s *Store) IncrementActivity(ctx context.Context, date, label string) (int, error) {
	if _, err := types.ParseDate(date); err != nil {
		return 0, err
	}
	counter := types.ActivityCounter{Date: date, Label: label}
	if err := counter.Validate(); err != nil {
		return 0, err
	}

	count := 0
	_, err := s.Update(ctx, func(snap *types.Snapshot) error {
		c := snap.Counter(date, label)
		c.Count++
		count = c.Count
		snap.UpsertWorkDay(snap.WorkDay(date, s.clock.Now()))
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.publish(events.Event{Kind: events.ActivityCounted, At: s.clock.Now(), Fields: []string{label}})
	return count, nil
}

func (s *Store) stamp(snap *types.Snapshot) {
	snap.Version = types.CurrentVersion
	snap.LastUpdated = s.clock.Now()
}

func (s *Store) encode(snap *types.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, trackerrors.New("encode", err, trackerrors.ErrCodeInternal)
	}
	if len(data) > s.maxBytes {
		return nil, trackerrors.StorageQuotaExceeded("encode", len(data), s.maxBytes)
	}
	return data, nil
}

// write puts data under the snapshot key and reports the outcome
func (s *Store) write(ctx context.Context, data []byte) error {
	start := time.Now()
	err := s.blobs.Put(ctx, s.key, data)
	s.metrics.SnapshotSaved(err)
	if err != nil {
		s.reportFailure("Save", err)
		return err
	}
	logging.LogOperation(s.logger, "storage.Save", time.Since(start), map[string]interface{}{"bytes": len(data)})
	s.emit(events.Event{Kind: events.SnapshotSaved, At: s.clock.Now()})
	return nil
}

// reportFailure logs err and re-emits it as a storageError event
func (s *Store) reportFailure(op string, err error) {
	logging.LogError(s.logger, err, "storage."+op, map[string]interface{}{"key": s.key})
	s.emit(events.Event{Kind: events.StorageError, At: s.clock.Now(), Reason: op, Err: err})
}

// emit queues ev for delivery once s.mu is released. Callers hold s.mu.
func (s *Store) emit(ev events.Event) {
	s.outbox = append(s.outbox, ev)
}

// unlock releases s.mu and then delivers queued events, so handlers may
// call back into the Store.
func (s *Store) unlock() {
	pending := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, ev := range pending {
		s.publish(ev)
	}
}

func (s *Store) publish(ev events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}
