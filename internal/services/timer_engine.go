package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/infrastructure/metrics"
	"worktrack/internal/types"
)

const (
	taskChannelName = "timer"
	mealChannelName = "mealBreak"

	// autoStopTimeout bounds the write made by a tick-triggered auto-stop
	autoStopTimeout = 10 * time.Second
)

// ErrEngineClosed is returned by operations on a closed TimerEngine
var ErrEngineClosed = errors.New("timer engine closed")

// SwitchResult holds both sides of a task switch. Stopped is nil when no
// timer was running.
type SwitchResult struct {
	Stopped *types.TimeEntry `json:"stopped,omitempty"`
	Started types.TimeEntry  `json:"started"`
}

// EngineStatus is a point-in-time view of both channels
type EngineStatus struct {
	TimerRunning       bool          `json:"timerRunning"`
	TaskID             string        `json:"taskId,omitempty"`
	EntryID            string        `json:"entryId,omitempty"`
	StartedAt          time.Time     `json:"startedAt,omitempty"`
	Elapsed            time.Duration `json:"elapsed"`
	MaxDuration        time.Duration `json:"maxDuration,omitempty"`
	MealBreakRunning   bool          `json:"mealBreakRunning"`
	MealBreakID        string        `json:"mealBreakId,omitempty"`
	MealBreakStartedAt time.Time     `json:"mealBreakStartedAt,omitempty"`
	MealBreakElapsed   time.Duration `json:"mealBreakElapsed"`
}

// TimerEngine drives the task timer and the meal-break timer. Each channel
// holds at most one running record; operations on a channel are serialized.
// Events are published after the engine lock is released.
type TimerEngine struct {
	store SnapshotStore
	deps  Deps

	mu     sync.Mutex
	task   *timerChannel
	meal   *timerChannel
	closed bool
	outbox []events.Event
}

// NewTimerEngine creates an idle engine. Call Init to resume persisted timers.
func NewTimerEngine(store SnapshotStore, deps Deps) *TimerEngine {
	deps = deps.withDefaults()
	e := &TimerEngine{store: store, deps: deps}
	e.task = &timerChannel{
		name:  taskChannelName,
		clock: deps.Clock,
		kinds: channelKinds{
			started:     events.TimerStarted,
			tick:        events.TimerTick,
			stopped:     events.TimerStopped,
			autoStopped: events.TimerAutoStopped,
			resumed:     events.TimerResumed,
		},
		closeRecord: closeTimeEntry,
	}
	e.meal = &timerChannel{
		name:  mealChannelName,
		clock: deps.Clock,
		kinds: channelKinds{
			started:     events.MealBreakStarted,
			tick:        events.MealBreakTick,
			stopped:     events.MealBreakStopped,
			autoStopped: events.MealBreakAutoStopped,
			resumed:     events.MealBreakResumed,
		},
		closeRecord: closeMealBreak,
	}
	return e
}

// Init resumes any entry or meal break left open in the snapshot. A record
// already past its cap is auto-stopped at the cap instead.
func (e *TimerEngine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return trackerrors.New("TimerEngine.Init", ErrEngineClosed, trackerrors.ErrCodeConflict)
	}

	snap, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	now := e.deps.Clock.Now()

	if entry := snap.OpenTimeEntry(); entry != nil && !e.task.running() {
		r := &runningTimer{id: entry.ID, taskID: entry.TaskID, start: entry.StartTime, max: snap.Settings.TimerMax()}
		if err := e.resumeLocked(ctx, e.task, r, now); err != nil {
			return err
		}
	}
	if mb := snap.OpenMealBreak(); mb != nil && !e.meal.running() {
		r := &runningTimer{id: mb.ID, start: mb.StartTime, max: types.MealBreakMaxDuration}
		if err := e.resumeLocked(ctx, e.meal, r, now); err != nil {
			return err
		}
	}
	return nil
}

func (e *TimerEngine) resumeLocked(ctx context.Context, ch *timerChannel, r *runningTimer, now time.Time) error {
	if now.Sub(r.start) >= r.max {
		ch.current = r
		return e.autoStopLocked(ctx, ch)
	}
	ch.occupy(r, e.onTick)
	if ch == e.task {
		e.deps.Metrics.TimerResumed()
	}
	ev := ch.event(ch.kinds.resumed, r, now)
	ev.Elapsed = r.elapsed(now)
	e.emit(ev)
	e.deps.Logger.Info("Timer resumed", "channel", ch.name, "id", r.id, "elapsed", ev.Elapsed.String())
	return nil
}

// StartTimer opens a time entry for taskID and makes it the active task
func (e *TimerEngine) StartTimer(ctx context.Context, taskID string) (types.TimeEntry, error) {
	const op = "TimerEngine.StartTimer"
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkOpen(op); err != nil {
		return types.TimeEntry{}, err
	}
	if r := e.task.current; r != nil {
		return types.TimeEntry{}, trackerrors.TimerAlreadyActive(op, r.id)
	}

	now := e.deps.Clock.Now()
	var entry types.TimeEntry
	var limit time.Duration
	_, err := e.store.Update(ctx, func(snap *types.Snapshot) error {
		if open := snap.OpenTimeEntry(); open != nil {
			return trackerrors.TimerAlreadyActive(op, open.ID)
		}
		var err error
		entry, err = openTimeEntry(op, snap, taskID, now)
		limit = snap.Settings.TimerMax()
		return err
	})
	if err != nil {
		return types.TimeEntry{}, err
	}

	r := &runningTimer{id: entry.ID, taskID: taskID, start: now, max: limit}
	e.task.occupy(r, e.onTick)
	e.deps.Metrics.TimerStarted()
	e.emit(e.task.event(events.TimerStarted, r, now))
	e.deps.Logger.Info("Timer started", "task_id", taskID, "entry_id", entry.ID)
	return entry, nil
}

// StopTimer closes the running entry at now and credits its task
func (e *TimerEngine) StopTimer(ctx context.Context) (types.TimeEntry, error) {
	const op = "TimerEngine.StopTimer"
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkOpen(op); err != nil {
		return types.TimeEntry{}, err
	}
	if !e.task.running() {
		return types.TimeEntry{}, trackerrors.NoActiveTimer(op)
	}

	id := e.task.current.id
	snap, err := e.stopLocked(ctx, e.task, e.deps.Clock.Now(), false)
	if err != nil {
		return types.TimeEntry{}, err
	}
	return *snap.FindTimeEntry(id), nil
}

// SwitchTask stops the running timer, if any, and starts one for
// newTaskID in a single write. The stopped entry ends exactly when the new
// one starts.
func (e *TimerEngine) SwitchTask(ctx context.Context, newTaskID string) (SwitchResult, error) {
	const op = "TimerEngine.SwitchTask"
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkOpen(op); err != nil {
		return SwitchResult{}, err
	}

	now := e.deps.Clock.Now()
	prev := e.task.current
	var result SwitchResult
	var elapsed time.Duration
	var limit time.Duration
	_, err := e.store.Update(ctx, func(snap *types.Snapshot) error {
		if prev != nil {
			d, err := closeTimeEntry(snap, prev, now, false)
			if err != nil {
				return err
			}
			elapsed = d
			stopped := *snap.FindTimeEntry(prev.id)
			result.Stopped = &stopped
		} else if open := snap.OpenTimeEntry(); open != nil {
			return trackerrors.TimerAlreadyActive(op, open.ID)
		}
		entry, err := openTimeEntry(op, snap, newTaskID, now)
		if err != nil {
			return err
		}
		result.Started = entry
		limit = snap.Settings.TimerMax()
		return nil
	})
	if err != nil {
		return SwitchResult{}, err
	}

	if prev != nil {
		e.task.release()
		e.deps.Metrics.TimerStopped(metrics.ReasonManual)
		ev := e.task.event(events.TimerStopped, prev, now)
		ev.Elapsed = elapsed
		e.emit(ev)
	}
	r := &runningTimer{id: result.Started.ID, taskID: newTaskID, start: now, max: limit}
	e.task.occupy(r, e.onTick)
	e.deps.Metrics.TimerStarted()
	e.emit(e.task.event(events.TimerStarted, r, now))
	return result, nil
}

// AdjustTime rewrites a closed entry's duration, marks it manually adjusted
// and moves the difference onto its task's total.
func (e *TimerEngine) AdjustTime(ctx context.Context, entryID string, newDuration int64, note string) (types.TimeEntry, error) {
	const op = "TimerEngine.AdjustTime"
	note = strings.TrimSpace(note)
	if note == "" {
		return types.TimeEntry{}, trackerrors.HandleValidationError(op, "note", "", "an adjustment note is required")
	}

	e.mu.Lock()
	defer e.unlock()
	if err := e.checkOpen(op); err != nil {
		return types.TimeEntry{}, err
	}

	now := e.deps.Clock.Now()
	var adjusted types.TimeEntry
	_, err := e.store.Update(ctx, func(snap *types.Snapshot) error {
		entry := snap.FindTimeEntry(entryID)
		if entry == nil {
			return trackerrors.TimeEntryNotFound(op, entryID)
		}
		if entry.IsRunning() {
			return trackerrors.EntryStillRunning(op, entryID)
		}
		limit := snap.Settings.TimerMax()
		if newDuration < 0 || types.FromMillis(newDuration) > limit {
			return trackerrors.InvalidDuration(op, newDuration, types.Millis(limit))
		}

		delta := newDuration - entry.Duration
		entry.Adjust(types.FromMillis(newDuration), note, now)
		if task := snap.FindTask(entry.TaskID); task != nil {
			task.TotalTime = max(0, task.TotalTime+delta)
			task.UpdatedAt = now
		}
		adjusted = *entry
		return nil
	})
	if err != nil {
		return types.TimeEntry{}, err
	}

	e.emit(events.Event{
		Kind:    events.TimerAdjusted,
		At:      now,
		TaskID:  adjusted.TaskID,
		EntryID: entryID,
		Elapsed: types.FromMillis(newDuration),
		Fields:  []string{"duration", "endTime", "isManuallyAdjusted", "adjustmentNote", "adjustmentTimestamp"},
	})
	e.deps.Logger.Info("Time entry adjusted", "entry_id", entryID, "duration_ms", newDuration)
	return adjusted, nil
}

// StartMealBreak opens a meal break. It runs independently of the task timer.
func (e *TimerEngine) StartMealBreak(ctx context.Context) (types.MealBreak, error) {
	const op = "TimerEngine.StartMealBreak"
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkOpen(op); err != nil {
		return types.MealBreak{}, err
	}
	if r := e.meal.current; r != nil {
		return types.MealBreak{}, trackerrors.MealBreakAlreadyActive(op, r.id)
	}

	now := e.deps.Clock.Now()
	mb := types.NewMealBreak(now)
	_, err := e.store.Update(ctx, func(snap *types.Snapshot) error {
		if open := snap.OpenMealBreak(); open != nil {
			return trackerrors.MealBreakAlreadyActive(op, open.ID)
		}
		snap.MealBreaks = append(snap.MealBreaks, mb)
		return nil
	})
	if err != nil {
		return types.MealBreak{}, err
	}

	r := &runningTimer{id: mb.ID, start: now, max: types.MealBreakMaxDuration}
	e.meal.occupy(r, e.onTick)
	e.deps.Metrics.MealBreakStarted()
	e.emit(e.meal.event(events.MealBreakStarted, r, now))
	return mb, nil
}

// StopMealBreak closes the open meal break at now
func (e *TimerEngine) StopMealBreak(ctx context.Context) (types.MealBreak, error) {
	const op = "TimerEngine.StopMealBreak"
	e.mu.Lock()
	defer e.unlock()
	if err := e.checkOpen(op); err != nil {
		return types.MealBreak{}, err
	}
	if !e.meal.running() {
		return types.MealBreak{}, trackerrors.NoActiveMealBreak(op)
	}

	id := e.meal.current.id
	snap, err := e.stopLocked(ctx, e.meal, e.deps.Clock.Now(), false)
	if err != nil {
		return types.MealBreak{}, err
	}
	return *snap.FindMealBreak(id), nil
}

// Status reports both channels at the current time
func (e *TimerEngine) Status() EngineStatus {
	e.mu.Lock()
	defer e.unlock()

	now := e.deps.Clock.Now()
	var st EngineStatus
	if r := e.task.current; r != nil {
		st.TimerRunning = true
		st.TaskID = r.taskID
		st.EntryID = r.id
		st.StartedAt = r.start
		st.Elapsed = r.elapsed(now)
		st.MaxDuration = r.max
	}
	if r := e.meal.current; r != nil {
		st.MealBreakRunning = true
		st.MealBreakID = r.id
		st.MealBreakStartedAt = r.start
		st.MealBreakElapsed = r.elapsed(now)
	}
	return st
}

// Close cancels pending ticks. Running records stay open in storage and are
// resumed by the next Init.
func (e *TimerEngine) Close() {
	e.mu.Lock()
	defer e.unlock()
	e.closed = true
	for _, ch := range []*timerChannel{e.task, e.meal} {
		if r := ch.current; r != nil && r.tick != nil {
			r.tick.Stop()
			r.tick = nil
		}
	}
}

// onTick runs on the clock's callback. Ticks for a record no longer in
// the slot are ignored.
func (e *TimerEngine) onTick(ch *timerChannel, id string) {
	e.mu.Lock()
	defer e.unlock()

	r := ch.current
	if e.closed || r == nil || r.id != id {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), autoStopTimeout)
	defer cancel()
	if ch == e.task {
		e.lowerCapLocked(ctx, r)
	}

	now := e.deps.Clock.Now()
	if now.Sub(r.start) >= r.max {
		if err := e.autoStopLocked(ctx, ch); err != nil {
			logging.LogError(e.deps.Logger, err, "TimerEngine.autoStop", map[string]interface{}{"channel": ch.name, "id": id})
			ch.arm(e.onTick)
		}
		return
	}

	ev := ch.event(ch.kinds.tick, r, now)
	ev.Elapsed = r.elapsed(now)
	e.emit(ev)
	ch.arm(e.onTick)
}

// lowerCapLocked applies a timer cap lowered in settings after r started.
// A raised cap does not extend a timer already running.
func (e *TimerEngine) lowerCapLocked(ctx context.Context, r *runningTimer) {
	settings, err := e.store.Settings(ctx)
	if err != nil {
		e.deps.Logger.Debug("Timer cap not refreshed", "id", r.id, "error", err)
		return
	}
	if limit := settings.TimerMax(); limit < r.max {
		e.deps.Logger.Info("Running timer cap lowered", "id", r.id, "from", r.max.String(), "to", limit.String())
		r.max = limit
	}
}

// autoStopLocked closes the channel's record at start+cap
func (e *TimerEngine) autoStopLocked(ctx context.Context, ch *timerChannel) error {
	r := ch.current
	_, err := e.stopLocked(ctx, ch, r.start.Add(r.max), true)
	if err == nil {
		e.deps.Logger.Warn("Timer auto-stopped at maximum duration",
			"channel", ch.name, "id", r.id, "max", r.max.String())
	}
	return err
}

// stopLocked persists the close of the channel's record, then empties the
// slot. On failure the channel keeps running.
func (e *TimerEngine) stopLocked(ctx context.Context, ch *timerChannel, end time.Time, auto bool) (*types.Snapshot, error) {
	r := ch.current
	var elapsed time.Duration
	snap, err := e.store.Update(ctx, func(snap *types.Snapshot) error {
		d, err := ch.closeRecord(snap, r, end, auto)
		elapsed = d
		return err
	})
	if err != nil {
		if trackerrors.IsNotFound(err) {
			// the record vanished from storage, e.g. after a clear
			ch.release()
		}
		return nil, err
	}

	ch.release()
	if ch == e.task {
		reason := metrics.ReasonManual
		if auto {
			reason = metrics.ReasonAuto
		}
		e.deps.Metrics.TimerStopped(reason)
	}

	kind := ch.kinds.stopped
	if auto {
		kind = ch.kinds.autoStopped
	}
	ev := ch.event(kind, r, e.deps.Clock.Now())
	ev.Elapsed = elapsed
	if auto {
		ev.Reason = types.AutoStopMaxDuration
	}
	e.emit(ev)
	return snap, nil
}

func (e *TimerEngine) checkOpen(op string) error {
	if e.closed {
		return trackerrors.New(op, ErrEngineClosed, trackerrors.ErrCodeConflict)
	}
	return nil
}

// emit queues ev until the engine lock is released. Callers hold e.mu.
func (e *TimerEngine) emit(ev events.Event) {
	e.outbox = append(e.outbox, ev)
}

func (e *TimerEngine) unlock() {
	pending := e.outbox
	e.outbox = nil
	e.mu.Unlock()
	for _, ev := range pending {
		e.deps.publish(ev)
	}
}

// openTimeEntry appends a running entry for taskID and makes the task the
// only active one.
func openTimeEntry(op string, snap *types.Snapshot, taskID string, now time.Time) (types.TimeEntry, error) {
	task := snap.LiveTask(taskID)
	if task == nil {
		return types.TimeEntry{}, trackerrors.TaskNotFound(op, taskID)
	}
	snap.DeactivateTasks(now)
	task.IsActive = true
	task.ActivatedAt = &now
	task.UpdatedAt = now

	entry := types.NewTimeEntry(taskID, now)
	snap.TimeEntries = append(snap.TimeEntries, entry)
	return entry, nil
}

// closeTimeEntry ends the running entry, credits its task and deactivates it.
// A close past the cap is clamped and recorded as an auto-stop.
func closeTimeEntry(snap *types.Snapshot, r *runningTimer, end time.Time, auto bool) (time.Duration, error) {
	const op = "TimerEngine.closeTimeEntry"
	entry := snap.FindTimeEntry(r.id)
	if entry == nil || !entry.IsRunning() {
		return 0, trackerrors.TimeEntryNotFound(op, r.id)
	}
	if entry.Close(end, min(r.max, snap.Settings.TimerMax())) || auto {
		entry.AutoStopped = true
		entry.AutoStopReason = types.AutoStopMaxDuration
	}
	if task := snap.FindTask(entry.TaskID); task != nil {
		task.TotalTime += entry.Duration
		task.IsActive = false
		task.UpdatedAt = end
	}
	return types.FromMillis(entry.Duration), nil
}

// closeMealBreak ends the open meal break, clamped to its cap
func closeMealBreak(snap *types.Snapshot, r *runningTimer, end time.Time, auto bool) (time.Duration, error) {
	mb := snap.FindMealBreak(r.id)
	if mb == nil || !mb.IsRunning() {
		return 0, trackerrors.HandleNotFound("TimerEngine.closeMealBreak", "mealBreak", r.id)
	}
	if mb.Close(end) || auto {
		mb.AutoStopped = true
	}
	return types.FromMillis(mb.Duration), nil
}
