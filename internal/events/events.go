// Package events is the in-process publish/subscribe bus the tracker uses
// to report task, timer and storage lifecycle changes.
package events

import (
	"fmt"
	"sync"
	"time"

	"worktrack/internal/infrastructure/logging"
)

// Kind identifies what happened
type Kind string

const (
	TaskCreated          Kind = "taskCreated"
	TaskUpdated          Kind = "taskUpdated"
	TaskDeleted          Kind = "taskDeleted"
	TaskActivated        Kind = "taskActivated"
	TasksDeactivated     Kind = "tasksDeactivated"
	TimerStarted         Kind = "timerStarted"
	TimerTick            Kind = "timerTick"
	TimerStopped         Kind = "timerStopped"
	TimerAutoStopped     Kind = "timerAutoStopped"
	TimerAdjusted        Kind = "timerAdjusted"
	TimerResumed         Kind = "timerResumed"
	MealBreakStarted     Kind = "mealBreakStarted"
	MealBreakTick        Kind = "mealBreakTick"
	MealBreakStopped     Kind = "mealBreakStopped"
	MealBreakAutoStopped Kind = "mealBreakAutoStopped"
	MealBreakResumed     Kind = "mealBreakResumed"
	SnapshotSaved        Kind = "snapshotSaved"
	StorageError         Kind = "storageError"
	CleanupCompleted     Kind = "cleanupCompleted"
	SettingsUpdated      Kind = "settingsUpdated"
	ActivityCounted      Kind = "activityCounted"
)

// Event carries identifiers only; subscribers read full records from storage.
type Event struct {
	Kind        Kind
	At          time.Time
	TaskID      string
	EntryID     string
	MealBreakID string
	Fields      []string      // changed fields, for update events
	Elapsed     time.Duration // tick and stop events
	Reason      string        // auto-stop reason
	Err         error         // storageError
}

// Handler receives published events
type Handler func(Event)

// Publisher is the side components depend on
type Publisher interface {
	Publish(Event)
}

// Bus delivers events synchronously to handlers in subscription order,
// then offers them to channel subscribers without blocking.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	order    []int
	chans    map[int]chan Event
	logger   logging.Logger
	dropped  int
}

// NewBus creates an empty bus. logger receives recovered handler panics.
func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		handlers: make(map[int]Handler),
		chans:    make(map[int]chan Event),
		logger:   logger,
	}
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// SubscribeChan returns a buffered channel fed by Publish. Events are dropped
// when the buffer is full. The returned function closes the channel.
func (b *Bus) SubscribeChan(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, buffer)
	b.chans[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.chans[id]; ok {
			delete(b.chans, id)
			close(c)
		}
	}
}

// Publish delivers ev. A nil bus is a no-op.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.chans {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

// Dropped returns how many channel deliveries were skipped
func (b *Bus) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", string(ev.Kind), "panic", fmt.Sprint(r))
		}
	}()
	h(ev)
}

// Recorder collects events for inspection, typically in tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle appends ev; pass it to Bus.Subscribe
func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of kind k
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the most recent event of kind k
func (r *Recorder) Last(k Kind) (Event, bool) {
	evs := r.OfKind(k)
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

// Reset clears the recording
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
