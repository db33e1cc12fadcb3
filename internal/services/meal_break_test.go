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

func TestMealBreak_StartTwiceRejected(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()

	first, err := h.engine.StartMealBreak(ctx)
	require.NoError(t, err)

	_, err = h.engine.StartMealBreak(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, trackerrors.ErrMealBreakAlreadyActive))
	assert.Equal(t, trackerrors.ErrCodeConflict, trackerrors.CodeOf(err))

	snap := h.snapshot(t)
	require.Len(t, snap.MealBreaks, 1)
	assert.Equal(t, first.ID, snap.OpenMealBreak().ID)
	assert.Len(t, h.events.OfKind(events.MealBreakStarted), 1)
}

func TestMealBreak_StartStop(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()

	_, err := h.engine.StopMealBreak(ctx)
	assert.True(t, errors.Is(err, trackerrors.ErrNoActiveMealBreak))

	mb, err := h.engine.StartMealBreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2023-09-25", mb.Date)

	h.clock.Advance(30 * time.Minute)
	st := h.engine.Status()
	assert.True(t, st.MealBreakRunning)
	assert.Equal(t, 30*time.Minute, st.MealBreakElapsed)

	stopped, err := h.engine.StopMealBreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Millis(30*time.Minute), stopped.Duration)
	assert.False(t, stopped.AutoStopped)

	ev, ok := h.events.Last(events.MealBreakStopped)
	require.True(t, ok)
	assert.Equal(t, mb.ID, ev.MealBreakID)
	assert.Empty(t, ev.EntryID)
	assert.Len(t, h.events.OfKind(events.MealBreakTick), 1800)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestMealBreak_AutoStopAtThreeHours(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()

	mb, err := h.engine.StartMealBreak(ctx)
	require.NoError(t, err)
	h.clock.Advance(types.MealBreakMaxDuration + time.Minute)

	assert.False(t, h.engine.Status().MealBreakRunning)
	ev, ok := h.events.Last(events.MealBreakAutoStopped)
	require.True(t, ok)
	assert.Equal(t, mb.ID, ev.MealBreakID)
	assert.Equal(t, types.AutoStopMaxDuration, ev.Reason)

	closed := h.snapshot(t).FindMealBreak(mb.ID)
	require.NotNil(t, closed)
	assert.Equal(t, types.Millis(types.MealBreakMaxDuration), closed.Duration)
	assert.True(t, closed.AutoStopped)
	h.requireInvariants(t)
}

func TestMealBreak_IndependentOfTaskTimer(t *testing.T) {
	h := newHarness(t, monday930())
	ctx := context.Background()
	task := h.task(t, "Email")

	_, err := h.engine.StartTimer(ctx, task.ID)
	require.NoError(t, err)
	_, err = h.engine.StartMealBreak(ctx)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Second)
	st := h.engine.Status()
	assert.True(t, st.TimerRunning)
	assert.True(t, st.MealBreakRunning)
	assert.Equal(t, 2, h.clock.Pending())

	_, err = h.engine.StopMealBreak(ctx)
	require.NoError(t, err)
	assert.True(t, h.engine.Status().TimerRunning, "stopping the break leaves the task timer alone")

	entry, err := h.engine.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), entry.Duration)

	assert.Len(t, h.events.OfKind(events.TimerTick), 10)
	assert.Len(t, h.events.OfKind(events.MealBreakTick), 10)
	h.requireInvariants(t)
}
