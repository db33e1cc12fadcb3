// Package scheduler holds the deferred-work primitives used by persistence:
// a single-slot debounced flush and a once-a-day job.
package scheduler

import (
	"sync"
	"time"

	"worktrack/internal/clock"
)

// Debouncer runs fn at most once per interval no matter how many times
// Schedule is called. There is a single pending slot: scheduling while a
// flush is pending does not push the deadline back.
type Debouncer struct {
	clock clock.Clock
	fn    func()

	mu       sync.Mutex
	interval time.Duration
	timer    clock.Timer
	stopped  bool
}

// NewDebouncer creates an idle debouncer
func NewDebouncer(c clock.Clock, interval time.Duration, fn func()) *Debouncer {
	if c == nil {
		c = clock.Real()
	}
	return &Debouncer{clock: c, interval: interval, fn: fn}
}

// Schedule arms the slot if it is empty
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.timer != nil {
		return
	}
	var t clock.Timer
	t = d.clock.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.timer != t {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
	d.timer = t
}

// Flush runs a pending callback now. It reports whether anything ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.mu.Unlock()
	d.fn()
	return true
}

// Cancel drops a pending callback without running it
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Stop cancels any pending callback and refuses further scheduling
func (d *Debouncer) Stop() {
	d.Cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

// SetInterval changes the delay used from the next Schedule on
func (d *Debouncer) SetInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interval = interval
}

// Interval returns the current delay
func (d *Debouncer) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// Pending reports whether a callback is armed
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
