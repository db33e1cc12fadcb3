package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worktrack/internal/events"
	"worktrack/internal/types"
)

func addCounter(t *testing.T, f *fixture, label string) {
	t.Helper()
	_, err := f.store.IncrementActivity(context.Background(), "2023-10-30", label)
	require.NoError(t, err)
}

func TestAutoSave_CoalescesWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.ScheduleAutoSave(ctx, 30*time.Second))

	for i := 0; i < 5; i++ {
		addCounter(t, f, "calls")
		f.clock.Advance(5 * time.Second)
	}
	assert.Equal(t, 0, f.puts())
	assert.True(t, f.store.Dirty())
	assert.True(t, f.store.AutoSavePending())

	f.clock.Advance(4 * time.Second)
	assert.Equal(t, 0, f.puts(), "the deadline is not pushed back by later changes")
	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.puts())
	assert.False(t, f.store.Dirty())
	assert.False(t, f.store.AutoSavePending())

	other := New(f.blobs, Options{})
	snap, err := other.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.ActivityCounters, 1)
	assert.Equal(t, 5, snap.ActivityCounters[0].Count)

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.puts(), "nothing dirty, nothing written")
}

func TestAutoSave_FlushAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.ScheduleAutoSave(ctx, 30*time.Second))

	addCounter(t, f, "calls")
	require.NoError(t, f.store.Flush(ctx))
	assert.Equal(t, 1, f.puts())
	assert.False(t, f.store.AutoSavePending())

	addCounter(t, f, "calls")
	require.NoError(t, f.store.Close(ctx))
	assert.Equal(t, 2, f.puts())

	f.clock.Advance(time.Minute)
	assert.Equal(t, 2, f.puts())

	addCounter(t, f, "calls")
	assert.Equal(t, 3, f.puts(), "after Close updates write through")
}

func TestAutoSave_FailedFlushRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.ScheduleAutoSave(ctx, 10*time.Second))

	addCounter(t, f, "calls")
	f.blobs.SetFailureModes(false, true, false)
	f.clock.Advance(10 * time.Second)

	assert.Equal(t, 1, f.puts())
	assert.True(t, f.store.Dirty())
	assert.True(t, f.store.AutoSavePending())
	ev, ok := f.events.Last(events.StorageError)
	require.True(t, ok)
	assert.Error(t, ev.Err)

	f.blobs.SetFailureModes(false, false, false)
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 2, f.puts())
	assert.False(t, f.store.Dirty())
	assert.Len(t, f.events.OfKind(events.SnapshotSaved), 1)
}

func TestAutoSave_DisableFlushesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.ScheduleAutoSave(ctx, 30*time.Second))

	addCounter(t, f, "calls")
	require.NoError(t, f.store.ScheduleAutoSave(ctx, 0))
	assert.Equal(t, 1, f.puts())
	assert.False(t, f.store.Dirty())
}

func TestAutoSave_IntervalFollowsSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.ScheduleAutoSave(ctx, 30*time.Second))

	interval := int64(10)
	_, err := f.store.UpdateSettings(ctx, types.SettingsUpdate{AutoSaveInterval: &interval})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 1, f.puts())
}

func TestMarkDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.Load(ctx)
	require.NoError(t, err)

	f.store.MarkDirty()
	assert.True(t, f.store.Dirty())
	assert.False(t, f.store.AutoSavePending(), "no auto-save configured")

	require.NoError(t, f.store.ScheduleAutoSave(ctx, 5*time.Second))
	assert.True(t, f.store.AutoSavePending(), "existing dirty state arms the new scheduler")
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 1, f.puts())
}
