package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

const v1Snapshot = `{
  "version": "1.0.0",
  "lastUpdated": "2023-10-01T10:00:00Z",
  "tasks": [
    {"id": "t1", "name": "Legacy", "color": "#3B82F6", "totalTime": 3600000,
     "isActive": false, "isDeleted": false, "createdAt": "2023-10-01T08:00:00Z"}
  ],
  "timeEntries": [
    {"id": "e1", "taskId": "t1", "startTime": "2023-10-01T08:00:00Z", "endTime": "2023-10-01T09:00:00Z"},
    {"id": "e2", "taskId": "t1", "startTime": "2023-10-01T09:00:00Z", "endTime": "2023-10-01T09:10:00Z",
     "duration": 600000, "isManuallyAdjusted": true}
  ],
  "mealBreaks": [
    {"startTime": "2023-10-01T12:00:00Z", "endTime": "2023-10-01T12:30:00Z"}
  ],
  "settings": {"requiredDailyPresence": 25200000}
}`

func TestDecode_MigratesV1(t *testing.T) {
	snap, err := decode([]byte(v1Snapshot))
	require.NoError(t, err)

	assert.Equal(t, types.CurrentVersion, snap.Version)
	require.NoError(t, snap.Validate())

	assert.Equal(t, int64(25200000), snap.Settings.RequiredDailyPresence)
	assert.Equal(t, types.DefaultSettings().TimerMaxDuration, snap.Settings.TimerMaxDuration)
	assert.Equal(t, int64(30), snap.Settings.AutoSaveInterval)
	assert.Equal(t, 5, snap.Settings.DataRetentionWeeks)

	require.Len(t, snap.TimeEntries, 2)
	e1 := snap.TimeEntries[0]
	assert.Equal(t, "2023-10-01", e1.Date)
	assert.Equal(t, int64(3600000), e1.Duration)

	e2 := snap.TimeEntries[1]
	assert.True(t, e2.IsManuallyAdjusted)
	assert.NotNil(t, e2.AdjustmentTimestamp)
	assert.NotEmpty(t, e2.AdjustmentNote)

	require.Len(t, snap.MealBreaks, 1)
	mb := snap.MealBreaks[0]
	assert.NotEmpty(t, mb.ID)
	assert.Equal(t, "2023-10-01", mb.Date)
	assert.Equal(t, int64(1800000), mb.Duration)

	assert.NotNil(t, snap.WorkDays)
	assert.NotNil(t, snap.ActivityCounters)
	assert.False(t, snap.Tasks[0].UpdatedAt.IsZero())
}

func TestDecode_Unversioned(t *testing.T) {
	snap, err := decode([]byte(`{"tasks": []}`))
	require.NoError(t, err)
	assert.Equal(t, types.CurrentVersion, snap.Version)
	assert.NoError(t, snap.ValidateShape())
}

func TestDecode_CurrentVersionUntouched(t *testing.T) {
	snap := types.NewSnapshot()
	snap.Settings.AutoSaveInterval = 45

	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), snap))
	data, err := f.blobs.Get(context.Background(), DefaultKey)
	require.NoError(t, err)

	decoded, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, int64(45), decoded.Settings.AutoSaveInterval)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		sentinel error
	}{
		{"syntax", `{"version":`, trackerrors.ErrMalformedSnapshot},
		{"not an object", `[1, 2, 3]`, trackerrors.ErrMalformedSnapshot},
		{"wrong field type", `{"tasks": "none"}`, trackerrors.ErrMalformedSnapshot},
		{"newer major version", `{"version": "3.1.0"}`, trackerrors.ErrInvalidSnapshot},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestStore_LoadMigratesStoredV1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.blobs.Put(ctx, DefaultKey, []byte(v1Snapshot)))

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CurrentVersion, snap.Version)
	assert.Equal(t, "2023-10-01", snap.TimeEntries[0].Date)
}

func TestMajorVersion(t *testing.T) {
	tests := []struct {
		version string
		want    int
	}{
		{"", 0},
		{"0.9.1", 0},
		{"1.0.0", 1},
		{"v2.0.0", 2},
		{"2", 2},
		{"garbage", 0},
		{"-1.0.0", 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, majorVersion(tt.version))
		})
	}
}
