package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

func TestTimerEngine_StartStop(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, entry.IsRunning())
	assert.Equal(t, "2023-09-25", entry.Date)

	h.clock.Advance(5 * time.Second)
	assert.Len(t, h.events.OfKind(events.TimerTick), 5)

	stopped, err := h.engine.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), stopped.Duration)
	require.NotNil(t, stopped.EndTime)
	assert.True(t, stopped.EndTime.Equal(monday930().Add(5*time.Second)))
	assert.False(t, stopped.AutoStopped)

	got, err := h.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.TotalTime)
	assert.False(t, got.IsActive)

	ev, ok := h.events.Last(events.TimerStopped)
	require.True(t, ok)
	assert.Equal(t, entry.ID, ev.EntryID)
	assert.Equal(t, 5*time.Second, ev.Elapsed)

	assert.Equal(t, 0, h.clock.Pending(), "no tick is left armed once stopped")
	h.requireInvariants(t)
}

func TestTimerEngine_TickElapsed(t *testing.T) {
	h := newHarness(t, monday930())
	task := h.task(t, "Email")
	_, err := h.engine.StartTimer(context.Background(), task.ID)
	require.NoError(t, err)

	h.clock.Advance(3 * time.Second)
	ticks := h.events.OfKind(events.TimerTick)
	require.Len(t, ticks, 3)
	for i, ev := range ticks {
		assert.Equal(t, time.Duration(i+1)*time.Second, ev.Elapsed)
		assert.Equal(t, task.ID, ev.TaskID)
	}

	st := h.engine.Status()
	assert.True(t, st.TimerRunning)
	assert.Equal(t, task.ID, st.TaskID)
	assert.Equal(t, 3*time.Second, st.Elapsed)
	assert.Equal(t, types.DefaultTimerMaxDuration, st.MaxDuration)
	assert.False(t, st.MealBreakRunning)
}

func TestTimerEngine_StateErrors(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	_, err := h.engine.StopTimer(ctx)
	assert.True(t, errors.Is(err, trackerrors.ErrNoActiveTimer))

	_, err = h.engine.StartTimer(ctx, "missing")
	assert.True(t, errors.Is(err, trackerrors.ErrTaskNotFound))
	assert.False(t, h.engine.Status().TimerRunning)

	_, err = h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	_, err = h.engine.StartTimer(ctx, task.ID)
	assert.True(t, errors.Is(err, trackerrors.ErrTimerAlreadyActive))
	assert.Len(t, h.snapshot(t).TimeEntries, 1)
}

func TestTimerEngine_AutoStopAtCap(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)

	h.clock.Advance(types.DefaultTimerMaxDuration + time.Second)

	assert.False(t, h.engine.Status().TimerRunning)
	ev, ok := h.events.Last(events.TimerAutoStopped)
	require.True(t, ok)
	assert.Equal(t, types.AutoStopMaxDuration, ev.Reason)
	assert.Equal(t, entry.ID, ev.EntryID)
	assert.Equal(t, types.DefaultTimerMaxDuration, ev.Elapsed)
	assert.Empty(t, h.events.OfKind(events.TimerStopped))

	closed := h.snapshot(t).FindTimeEntry(entry.ID)
	require.NotNil(t, closed)
	assert.Equal(t, types.Millis(types.DefaultTimerMaxDuration), closed.Duration)
	assert.True(t, closed.EndTime.Equal(monday930().Add(types.DefaultTimerMaxDuration)))
	assert.True(t, closed.AutoStopped)
	assert.Equal(t, types.AutoStopMaxDuration, closed.AutoStopReason)

	got, err := h.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Millis(types.DefaultTimerMaxDuration), got.TotalTime)
	assert.Equal(t, 0, h.clock.Pending())
	h.requireInvariants(t)
}

func TestTimerEngine_AutoStopFollowsSettings(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	hour := types.Millis(time.Hour)
	_, err := h.store.UpdateSettings(ctx, types.SettingsUpdate{TimerMaxDuration: &hour})
	require.NoError(t, err)

	_, err = h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	h.clock.Advance(59 * time.Minute)
	assert.True(t, h.engine.Status().TimerRunning)

	h.clock.Advance(time.Minute)
	assert.False(t, h.engine.Status().TimerRunning)
	require.Len(t, h.events.OfKind(events.TimerAutoStopped), 1)
}

func TestTimerEngine_LoweredCapWhileRunning(t *testing.T) {
	t.Run("stop clamps to the new cap", func(t *testing.T) {
		h := newHarness(t, monday930())
		ctx := context.Background()
		task := h.task(t, "Email")

		entry, err := h.engine.StartTimer(ctx, task.ID)
		require.NoError(t, err)
		h.clock.Advance(9 * time.Hour)

		eight := types.Millis(8 * time.Hour)
		_, err = h.store.UpdateSettings(ctx, types.SettingsUpdate{TimerMaxDuration: &eight})
		require.NoError(t, err)

		stopped, err := h.engine.StopTimer(ctx)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, stopped.ID)
		assert.Equal(t, eight, stopped.Duration)
		assert.True(t, stopped.AutoStopped)
		assert.False(t, h.engine.Status().TimerRunning)

		snap := h.snapshot(t)
		assert.Nil(t, snap.OpenTimeEntry())
		assert.Equal(t, eight, snap.FindTask(task.ID).TotalTime)
		h.requireInvariants(t)
	})

	t.Run("next tick auto-stops", func(t *testing.T) {
		h := newHarness(t, monday930())
		ctx := context.Background()
		task := h.task(t, "Email")

		entry, err := h.engine.StartTimer(ctx, task.ID)
		require.NoError(t, err)
		h.clock.Advance(9 * time.Hour)

		eight := types.Millis(8 * time.Hour)
		_, err = h.store.UpdateSettings(ctx, types.SettingsUpdate{TimerMaxDuration: &eight})
		require.NoError(t, err)

		h.clock.Advance(time.Second)
		assert.False(t, h.engine.Status().TimerRunning)
		require.Len(t, h.events.OfKind(events.TimerAutoStopped), 1)

		closed := h.snapshot(t).FindTimeEntry(entry.ID)
		require.NotNil(t, closed)
		require.NotNil(t, closed.EndTime)
		assert.True(t, closed.EndTime.Equal(entry.StartTime.Add(8*time.Hour)))

		_, err = h.engine.StopTimer(ctx)
		assert.ErrorIs(t, err, trackerrors.ErrNoActiveTimer)
		h.requireInvariants(t)
	})
}

func TestTimerEngine_SwitchTask(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	a := h.task(t, "A")
	b := h.task(t, "B")

	first, err := h.engine.SwitchTask(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, first.Stopped)

	h.clock.Advance(90 * time.Second)
	res, err := h.engine.SwitchTask(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Stopped)
	assert.Equal(t, first.Started.ID, res.Stopped.ID)
	assert.Equal(t, int64(90000), res.Stopped.Duration)
	assert.True(t, res.Stopped.EndTime.Equal(res.Started.StartTime), "no gap and no overlap between entries")

	snap := h.snapshot(t)
	require.NotNil(t, snap.ActiveTask())
	assert.Equal(t, b.ID, snap.ActiveTask().ID)
	assert.Equal(t, res.Started.ID, snap.OpenTimeEntry().ID)
	assert.Equal(t, int64(90000), snap.FindTask(a.ID).TotalTime)
	h.requireInvariants(t)

	st := h.engine.Status()
	assert.Equal(t, b.ID, st.TaskID)

	stops := h.events.OfKind(events.TimerStopped)
	starts := h.events.OfKind(events.TimerStarted)
	require.Len(t, stops, 1)
	require.Len(t, starts, 2)

	_, err = h.engine.SwitchTask(ctx, "missing")
	assert.True(t, errors.Is(err, trackerrors.ErrTaskNotFound))
	assert.Equal(t, res.Started.ID, h.engine.Status().EntryID, "failed switch keeps the running timer")
}

func TestTimerEngine_AdjustTime(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)

	_, err = h.engine.AdjustTime(ctx, entry.ID, 1000, "early")
	assert.True(t, errors.Is(err, trackerrors.ErrEntryStillRunning))

	h.clock.Advance(5 * time.Second)
	_, err = h.engine.StopTimer(ctx)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	adjusted, err := h.engine.AdjustTime(ctx, entry.ID, 10000, "forgot to pause")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), adjusted.Duration)
	assert.True(t, adjusted.IsManuallyAdjusted)
	assert.Equal(t, "forgot to pause", adjusted.AdjustmentNote)
	require.NotNil(t, adjusted.AdjustmentTimestamp)
	assert.True(t, adjusted.AdjustmentTimestamp.Equal(h.clock.Now()))

	got, err := h.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.TotalTime)

	_, err = h.engine.AdjustTime(ctx, entry.ID, 2000, "overcounted")
	require.NoError(t, err)
	got, err = h.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TotalTime)

	ev, ok := h.events.Last(events.TimerAdjusted)
	require.True(t, ok)
	assert.Equal(t, entry.ID, ev.EntryID)
	h.requireInvariants(t)
}

func TestTimerEngine_AdjustTimeValidation(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	_, err = h.engine.StopTimer(ctx)
	require.NoError(t, err)

	tests := []struct {
		name     string
		entryID  string
		duration int64
		note     string
		check    func(error) bool
	}{
		{"negative", entry.ID, -1, "x", func(err error) bool { return errors.Is(err, trackerrors.ErrInvalidDuration) }},
		{"above cap", entry.ID, types.Millis(types.DefaultTimerMaxDuration) + 1, "x", func(err error) bool { return errors.Is(err, trackerrors.ErrInvalidDuration) }},
		{"blank note", entry.ID, 1000, "  ", trackerrors.IsValidation},
		{"unknown entry", "missing", 1000, "x", func(err error) bool { return errors.Is(err, trackerrors.ErrTimeEntryNotFound) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.AdjustTime(ctx, tt.entryID, tt.duration, tt.note)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}

	got := h.snapshot(t).FindTimeEntry(entry.ID)
	assert.Equal(t, int64(1000), got.Duration)
	assert.False(t, got.IsManuallyAdjusted)

	_, err = h.engine.AdjustTime(ctx, entry.ID, types.Millis(types.DefaultTimerMaxDuration), "full day")
	assert.NoError(t, err, "the cap itself is allowed")
}

func TestTimerEngine_InitResumesOpenEntry(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)

	engine := h.restart(t)
	assert.Equal(t, 0, h.clock.Pending())
	h.clock.Advance(10 * time.Minute)

	require.NoError(t, engine.Init(ctx))
	st := engine.Status()
	require.True(t, st.TimerRunning)
	assert.Equal(t, entry.ID, st.EntryID)
	assert.Equal(t, 10*time.Minute, st.Elapsed)

	ev, ok := h.events.Last(events.TimerResumed)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, ev.Elapsed)

	h.clock.Advance(5 * time.Second)
	stopped, err := engine.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Millis(10*time.Minute+5*time.Second), stopped.Duration)
}

func TestTimerEngine_InitAutoStopsStaleEntry(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	_, err = h.engine.StartMealBreak(ctx)
	require.NoError(t, err)

	engine := h.restart(t)
	h.clock.Advance(20 * time.Hour)
	require.NoError(t, engine.Init(ctx))

	st := engine.Status()
	assert.False(t, st.TimerRunning)
	assert.False(t, st.MealBreakRunning)

	snap := h.snapshot(t)
	closed := snap.FindTimeEntry(entry.ID)
	assert.Equal(t, types.Millis(types.DefaultTimerMaxDuration), closed.Duration)
	assert.True(t, closed.AutoStopped)
	assert.Nil(t, snap.OpenMealBreak())
	assert.Len(t, h.events.OfKind(events.TimerAutoStopped), 1)
	assert.Len(t, h.events.OfKind(events.MealBreakAutoStopped), 1)
	assert.Empty(t, h.events.OfKind(events.TimerResumed))
	h.requireInvariants(t)
}

func TestTimerEngine_Close(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	_, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	h.engine.Close()
	assert.Equal(t, 0, h.clock.Pending())

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.events.OfKind(events.TimerTick))

	_, err = h.engine.StopTimer(ctx)
	assert.True(t, errors.Is(err, ErrEngineClosed))
	assert.NotNil(t, h.snapshot(t).OpenTimeEntry(), "closing keeps the entry open for the next run")
}

func TestTimerEngine_FailedWriteKeepsState(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	h.blobs.SetFailureModes(false, true, false)
	_, err := h.engine.StartTimer(ctx, task.ID)
	require.Error(t, err)
	assert.False(t, h.engine.Status().TimerRunning)
	assert.Empty(t, h.snapshot(t).TimeEntries)
	assert.Empty(t, h.events.OfKind(events.TimerStarted))
	assert.Equal(t, 0, h.clock.Pending())

	h.blobs.SetFailureModes(false, false, false)
	entry, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Second)

	h.blobs.SetFailureModes(false, true, false)
	_, err = h.engine.StopTimer(ctx)
	require.Error(t, err)
	assert.True(t, h.engine.Status().TimerRunning, "a failed stop leaves the timer running")
	assert.True(t, h.snapshot(t).FindTimeEntry(entry.ID).IsRunning())

	h.blobs.SetFailureModes(false, false, false)
	stopped, err := h.engine.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), stopped.Duration)
	h.requireInvariants(t)
}

func TestTimerEngine_StopAfterClear(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	_, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	require.NoError(t, h.store.Clear(ctx))

	_, err = h.engine.StopTimer(ctx)
	assert.True(t, trackerrors.IsNotFound(err))
	assert.False(t, h.engine.Status().TimerRunning, "a vanished entry frees the slot")
}
