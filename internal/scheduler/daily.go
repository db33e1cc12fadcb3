package scheduler

import (
	"sync"
	"time"

	"worktrack/internal/clock"
	"worktrack/internal/infrastructure/logging"
)

// Daily runs a job once a day at a fixed local hour
type Daily struct {
	clock  clock.Clock
	hour   int
	job    func()
	logger logging.Logger

	mu      sync.Mutex
	timer   clock.Timer
	running bool
}

// NewDaily creates a stopped daily job. hour is clamped to 0-23.
func NewDaily(c clock.Clock, hour int, job func(), logger logging.Logger) *Daily {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	hour = max(0, min(23, hour))
	return &Daily{clock: c, hour: hour, job: job, logger: logger}
}

// NextRun returns the first hour:00 strictly after now
func NextRun(now time.Time, hour int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start schedules the first run. Calling Start twice is a no-op.
func (s *Daily) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.armLocked()
}

func (s *Daily) armLocked() {
	now := s.clock.Now()
	next := NextRun(now, s.hour)
	s.logger.Debug("daily job scheduled", "next_run", next.Format(time.RFC3339))
	s.timer = s.clock.AfterFunc(next.Sub(now), s.fire)
}

func (s *Daily) fire() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.job()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.armLocked()
	}
}

// Stop cancels the next run
func (s *Daily) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
