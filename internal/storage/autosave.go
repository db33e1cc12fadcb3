package storage

import (
	"context"
	"time"

	"worktrack/internal/scheduler"
)

// flushTimeout bounds a deferred write triggered by the auto-save timer
const flushTimeout = 10 * time.Second

// ScheduleAutoSave switches Update to deferred writes: changes are kept in
// memory and written by a single flush at most once per interval. A
// non-positive interval writes anything pending and returns to write-through.
func (s *Store) ScheduleAutoSave(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	defer s.unlock()

	if interval <= 0 {
		if s.autoSave == nil {
			return nil
		}
		s.autoSave.Stop()
		s.autoSave = nil
		return s.flushLocked(ctx)
	}

	if s.autoSave != nil {
		s.autoSave.SetInterval(interval)
		return nil
	}
	s.autoSave = scheduler.NewDebouncer(s.clock, interval, s.autoFlush)
	if s.dirty {
		s.autoSave.Schedule()
	}
	s.logger.Debug("Auto-save scheduled", "interval", interval.String())
	return nil
}

// MarkDirty records that the in-memory snapshot needs writing and arms the
// pending flush if none is armed.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.unlock()
	s.dirty = true
	if s.autoSave != nil {
		s.autoSave.Schedule()
	}
}

// Dirty reports whether changes are waiting for a flush
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.dirty
}

// AutoSavePending reports whether a deferred flush is armed
func (s *Store) AutoSavePending() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.autoSave != nil && s.autoSave.Pending()
}

// Flush writes pending changes now and disarms the scheduled flush
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	return s.flushLocked(ctx)
}

// Close flushes pending changes and stops auto-save
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock()
	err := s.flushLocked(ctx)
	if s.autoSave != nil {
		s.autoSave.Stop()
		s.autoSave = nil
	}
	return err
}

func (s *Store) flushLocked(ctx context.Context) error {
	if s.autoSave != nil {
		s.autoSave.Cancel()
	}
	if !s.dirty || s.current == nil {
		s.dirty = false
		return nil
	}
	data, err := s.encode(s.current)
	if err != nil {
		s.reportFailure("Flush", err)
		return err
	}
	if err := s.write(ctx, data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// autoFlush is the debouncer callback. A failed write stays dirty and is
// retried on the next interval.
func (s *Store) autoFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.unlock()
	if err := s.flushLocked(ctx); err != nil && s.autoSave != nil {
		s.autoSave.Schedule()
	}
}
