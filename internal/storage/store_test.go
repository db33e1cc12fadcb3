package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worktrack/internal/clock"
	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/infrastructure/metrics"
	"worktrack/internal/repository"
	"worktrack/internal/types"
)

type fixture struct {
	store  *Store
	blobs  *repository.MemoryStore
	clock  *clock.Manual
	events *events.Recorder
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		blobs:  repository.NewMemoryStore(),
		clock:  clock.NewManual(time.Date(2023, 10, 30, 9, 0, 0, 0, time.Local)),
		events: &events.Recorder{},
	}
	bus := events.NewBus(logging.NewNop())
	bus.Subscribe(f.events.Handle)

	o := Options{
		Clock:     f.clock,
		Publisher: bus,
		Logger:    logging.NewNop(),
		Metrics:   metrics.New(prometheus.NewRegistry()),
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.store = New(f.blobs, o)
	return f
}

func (f *fixture) puts() int {
	_, put, _ := f.blobs.GetCallCounts()
	return put
}

// canonical renders snap as JSON without its save timestamp so snapshots
// can be compared independent of time.Location values.
func canonical(t *testing.T, snap *types.Snapshot) string {
	t.Helper()
	c := snap.Clone()
	c.LastUpdated = time.Time{}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	return string(data)
}

func sampleSnapshot(now time.Time) *types.Snapshot {
	snap := types.NewSnapshot()
	task := types.Task{
		ID:        types.NewID(),
		Name:      "Reviews",
		Color:     types.PaletteColor(0),
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	entry := types.NewTimeEntry(task.ID, now.Add(-time.Hour))
	entry.Close(now.Add(-30*time.Minute), types.DefaultTimerMaxDuration)
	task.TotalTime = entry.Duration

	snap.Tasks = append(snap.Tasks, task)
	snap.TimeEntries = append(snap.TimeEntries, entry)
	return snap
}

func TestStore_LoadMissingStartsFresh(t *testing.T) {
	f := newFixture(t)

	snap, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CurrentVersion, snap.Version)
	assert.Equal(t, types.DefaultSettings(), snap.Settings)
	assert.Empty(t, snap.Tasks)
	assert.NotNil(t, snap.TimeEntries)
	assert.Equal(t, 0, f.puts())
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	snap.Tasks = append(snap.Tasks, types.Task{ID: "x"})

	again, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Tasks)
}

func TestStore_SaveAndReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := sampleSnapshot(f.clock.Now())

	require.NoError(t, f.store.Save(ctx, snap))
	assert.Len(t, f.events.OfKind(events.SnapshotSaved), 1)

	other := New(f.blobs, Options{Clock: f.clock})
	loaded, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CurrentVersion, loaded.Version)
	assert.True(t, loaded.LastUpdated.Equal(f.clock.Now()))
	assert.Equal(t, canonical(t, snap), canonical(t, loaded))
}

func TestStore_SaveRejectsBadShape(t *testing.T) {
	f := newFixture(t)
	snap := types.NewSnapshot()
	snap.MealBreaks = nil

	err := f.store.Save(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, trackerrors.ErrInvalidSnapshot))
	assert.Equal(t, 0, f.puts())
}

func TestStore_SaveQuotaExceeded(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxBytes = 64 })

	err := f.store.Save(context.Background(), sampleSnapshot(f.clock.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, trackerrors.ErrStorageQuotaExceeded))
	assert.True(t, trackerrors.IsQuota(err))
	assert.Equal(t, 0, f.puts())

	ev, ok := f.events.Last(events.StorageError)
	require.True(t, ok)
	assert.True(t, trackerrors.IsQuota(ev.Err))
}

func TestStore_LoadMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.blobs.Put(ctx, DefaultKey, []byte(`{"version": "2.0.0", "tasks": [`)))

	_, err := f.store.Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, trackerrors.ErrMalformedSnapshot))
	assert.True(t, trackerrors.IsCorruption(err))
	assert.Len(t, f.events.OfKind(events.StorageError), 1)
}

func TestStore_LoadReadFailure(t *testing.T) {
	f := newFixture(t)
	f.blobs.SetFailureModes(true, false, false)
	f.blobs.SetFailureCode(trackerrors.ErrCodePermission)

	_, err := f.store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, trackerrors.IsPermission(err))

	ev, ok := f.events.Last(events.StorageError)
	require.True(t, ok)
	assert.Equal(t, "Load", ev.Reason)
}

func TestStore_UpdateCommitsOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.store.Update(ctx, func(s *types.Snapshot) error {
		s.Tasks = append(s.Tasks, types.Task{
			ID: "t1", Name: "Email", Color: types.PaletteColor(1),
			CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
		})
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 1)
	assert.Equal(t, 1, f.puts())

	loaded, err := f.store.Reload(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Tasks, 1)
}

func TestStore_UpdateFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, sampleSnapshot(f.clock.Now())))
	before, err := f.store.Load(ctx)
	require.NoError(t, err)
	puts := f.puts()

	boom := errors.New("boom")
	_, err = f.store.Update(ctx, func(s *types.Snapshot) error {
		s.Tasks[0].Name = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = f.store.Update(ctx, func(s *types.Snapshot) error {
		s.Tasks[0].IsActive = true
		s.Tasks = append(s.Tasks, types.Task{
			ID: "t2", Name: "Other", Color: types.PaletteColor(2), IsActive: true,
			CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
		})
		return nil
	})
	assert.True(t, errors.Is(err, trackerrors.ErrInvalidSnapshot), "two active tasks must be rejected")

	f.blobs.SetFailureModes(false, true, false)
	_, err = f.store.Update(ctx, func(s *types.Snapshot) error {
		s.Tasks[0].Name = "changed"
		return nil
	})
	require.Error(t, err)
	f.blobs.SetFailureModes(false, false, false)

	after, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, canonical(t, before), canonical(t, after))
	assert.Equal(t, puts+1, f.puts(), "only the failing write reached the blob store")
}

func TestStore_UpdateToleratesStoredBadRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snap := sampleSnapshot(f.clock.Now())
	snap.Version = types.CurrentVersion
	snap.Tasks[0].Color = "red"
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, f.blobs.Put(ctx, DefaultKey, data))

	_, err = f.store.Load(ctx)
	require.NoError(t, err)

	n, err := f.store.IncrementActivity(ctx, "2023-10-30", "calls")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.store.Update(ctx, func(s *types.Snapshot) error {
		s.Tasks[0].Name = "Renamed"
		return nil
	})
	assert.True(t, trackerrors.IsValidation(err), "a touched record is still validated")
}

func TestStore_LowerTimerCapKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	snap := sampleSnapshot(now)
	long := types.NewTimeEntry(snap.Tasks[0].ID, now.Add(-5*time.Hour))
	long.Close(now.Add(-2*time.Hour), types.DefaultTimerMaxDuration)
	snap.TimeEntries = append(snap.TimeEntries, long)
	snap.Tasks[0].TotalTime += long.Duration
	require.NoError(t, f.store.Save(ctx, snap))

	oneHour := types.Millis(time.Hour)
	settings, err := f.store.UpdateSettings(ctx, types.SettingsUpdate{TimerMaxDuration: &oneHour})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, settings.TimerMax())

	got, err := f.store.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}

func TestStore_ExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := sampleSnapshot(f.clock.Now())
	require.NoError(t, f.store.Save(ctx, original))

	data, err := f.store.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"tasks\"")

	g := newFixture(t)
	imported, err := g.store.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, canonical(t, original), canonical(t, imported))
}

func TestStore_ImportRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Import(ctx, []byte("not json"))
	assert.True(t, errors.Is(err, trackerrors.ErrMalformedSnapshot))

	bad := sampleSnapshot(f.clock.Now())
	bad.TimeEntries[0].Duration += 5000
	data, err := json.Marshal(bad)
	require.NoError(t, err)
	_, err = f.store.Import(ctx, data)
	assert.True(t, trackerrors.IsValidation(err))
	assert.Equal(t, 0, f.puts())
}

func TestStore_Clear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, sampleSnapshot(f.clock.Now())))

	require.NoError(t, f.store.Clear(ctx))
	assert.Equal(t, 0, f.blobs.Len())

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Tasks)
}

func TestStore_UpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	weeks := 8
	settings, err := f.store.UpdateSettings(ctx, types.SettingsUpdate{DataRetentionWeeks: &weeks})
	require.NoError(t, err)
	assert.Equal(t, 8, settings.DataRetentionWeeks)

	ev, ok := f.events.Last(events.SettingsUpdated)
	require.True(t, ok)
	assert.Equal(t, []string{"dataRetentionWeeks"}, ev.Fields)

	tooLong := int64(301)
	_, err = f.store.UpdateSettings(ctx, types.SettingsUpdate{AutoSaveInterval: &tooLong})
	assert.True(t, trackerrors.IsValidation(err))

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), snap.Settings.AutoSaveInterval)
	assert.Equal(t, 8, snap.Settings.DataRetentionWeeks)
}

func TestStore_IncrementActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.store.IncrementActivity(ctx, "2023-10-30", "calls")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = f.store.IncrementActivity(ctx, "2023-10-30", "calls")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.ActivityCounters, 1)
	require.Len(t, snap.WorkDays, 1)
	assert.Equal(t, 2, snap.WorkDays[0].ActivityCounters["calls"])
	assert.Len(t, f.events.OfKind(events.ActivityCounted), 2)

	_, err = f.store.IncrementActivity(ctx, "2023-02-30", "calls")
	assert.True(t, trackerrors.IsDate(err))
	_, err = f.store.IncrementActivity(ctx, "2023-10-30", "")
	assert.True(t, trackerrors.IsValidation(err))
}
