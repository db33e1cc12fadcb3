package services

import (
	"time"

	"worktrack/internal/clock"
	"worktrack/internal/events"
	"worktrack/internal/types"
)

// TickInterval is the cadence of tick events for running timers
const TickInterval = time.Second

// runningTimer is the occupant of a channel's single slot
type runningTimer struct {
	id     string
	taskID string
	start  time.Time
	max    time.Duration
	tick   clock.Timer
}

func (r *runningTimer) elapsed(now time.Time) time.Duration {
	if now.Before(r.start) {
		return 0
	}
	return min(now.Sub(r.start), r.max)
}

// channelKinds are the events a channel emits over its lifecycle
type channelKinds struct {
	started, tick, stopped, autoStopped, resumed events.Kind
}

// timerChannel is one Idle/Running state machine. The task timer and the
// meal break are two instances; they differ only in kinds, cap and how a
// record is closed in the snapshot.
type timerChannel struct {
	name  string
	kinds channelKinds
	clock clock.Clock

	// closeRecord closes the running record in snap at end. auto marks an
	// engine-initiated stop. It returns the closed duration.
	closeRecord func(snap *types.Snapshot, r *runningTimer, end time.Time, auto bool) (time.Duration, error)

	current *runningTimer
}

func (c *timerChannel) running() bool {
	return c.current != nil
}

// occupy puts r in the slot and starts ticking. The slot must be empty.
func (c *timerChannel) occupy(r *runningTimer, onTick func(*timerChannel, string)) {
	c.current = r
	c.arm(onTick)
}

func (c *timerChannel) arm(onTick func(*timerChannel, string)) {
	r := c.current
	if r == nil {
		return
	}
	id := r.id
	r.tick = c.clock.AfterFunc(TickInterval, func() { onTick(c, id) })
}

// release empties the slot and cancels the pending tick
func (c *timerChannel) release() *runningTimer {
	r := c.current
	if r == nil {
		return nil
	}
	if r.tick != nil {
		r.tick.Stop()
		r.tick = nil
	}
	c.current = nil
	return r
}

// event builds a lifecycle event for r, identifying the record by channel
func (c *timerChannel) event(kind events.Kind, r *runningTimer, at time.Time) events.Event {
	ev := events.Event{Kind: kind, At: at, TaskID: r.taskID}
	if c.name == mealChannelName {
		ev.MealBreakID = r.id
	} else {
		ev.EntryID = r.id
	}
	return ev
}
