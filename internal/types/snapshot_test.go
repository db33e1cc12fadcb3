package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackerrors "worktrack/internal/infrastructure/errors"
)

func sampleSnapshot() *Snapshot {
	s := NewSnapshot()
	a := validTask()
	a.IsActive = true
	b := validTask()
	b.ID, b.Name, b.CreatedAt = "t-2", "Deleted one", day0.Add(time.Minute)
	b.IsDeleted = true
	s.Tasks = append(s.Tasks, a, b)

	closed := NewTimeEntry("t-1", day0)
	closed.Close(day0.Add(time.Hour), 12*time.Hour)
	open := NewTimeEntry("t-1", day0.Add(2*time.Hour))
	s.TimeEntries = append(s.TimeEntries, closed, open)

	s.MealBreaks = append(s.MealBreaks, NewMealBreak(day0.Add(3*time.Hour)))
	s.UpsertWorkDay(s.WorkDay("2023-09-25", day0.Add(4*time.Hour)))
	s.Counter("2023-09-25", "calls").Count = 2
	return s
}

func TestSnapshot_Accessors(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	require.NoError(t, s.Validate())

	active := s.ActiveTasks()
	require.Len(t, active, 1)
	assert.Equal(t, "t-1", active[0].ID)

	assert.NotNil(t, s.FindTask("t-2"))
	assert.Nil(t, s.LiveTask("t-2"))
	assert.Equal(t, "t-1", s.ActiveTask().ID)

	require.NotNil(t, s.OpenTimeEntry())
	assert.Equal(t, day0.Add(2*time.Hour), s.OpenTimeEntry().StartTime)
	assert.NotNil(t, s.OpenMealBreak())
	assert.Len(t, s.EntriesOn("2023-09-25"), 2)
	assert.Len(t, s.BreaksOn("2023-09-26"), 0)

	s.Counter("2023-09-25", "calls").Count++
	assert.Len(t, s.ActivityCounters, 1)
	assert.Equal(t, 3, s.ActivityCounters[0].Count)

	ids := s.DeactivateTasks(day0)
	assert.Equal(t, []string{"t-1"}, ids)
	assert.Nil(t, s.ActiveTask())
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	c := s.Clone()

	c.Tasks[0].Name = "changed"
	end := day0.Add(10 * time.Hour)
	c.TimeEntries[1].EndTime = &end
	*c.TimeEntries[0].EndTime = end
	c.WorkDays[0].ActivityCounters["calls"] = 99
	c.ActivityCounters[0].Count = 42

	assert.Equal(t, "Write report", s.Tasks[0].Name)
	assert.Nil(t, s.TimeEntries[1].EndTime)
	assert.Equal(t, day0.Add(time.Hour), *s.TimeEntries[0].EndTime)
	assert.NotEqual(t, 99, s.WorkDays[0].ActivityCounters["calls"])
	assert.Equal(t, 2, s.ActivityCounters[0].Count)
}

func TestSnapshot_ValidateShape(t *testing.T) {
	t.Parallel()

	s := NewSnapshot()
	require.NoError(t, s.ValidateShape())

	s.MealBreaks = nil
	err := s.ValidateShape()
	assert.ErrorIs(t, err, trackerrors.ErrInvalidSnapshot)

	s = NewSnapshot()
	s.Settings.DataRetentionWeeks = 0
	assert.True(t, trackerrors.IsValidation(s.ValidateShape()))
}

func TestSnapshot_ValidateInvariants(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	second := NewTimeEntry("t-1", day0.Add(5*time.Hour))
	s.TimeEntries = append(s.TimeEntries, second)
	assert.ErrorIs(t, s.Validate(), trackerrors.ErrInvalidSnapshot)

	s = sampleSnapshot()
	s.Tasks[1].IsDeleted = false
	s.Tasks[1].IsActive = true
	assert.ErrorIs(t, s.Validate(), trackerrors.ErrInvalidSnapshot)
}

func TestSnapshot_ValidateClosedEntriesAgainstCeiling(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	long := NewTimeEntry("t-1", day0.Add(-6*time.Hour))
	long.Close(day0.Add(-time.Hour), 12*time.Hour)
	s.TimeEntries = append(s.TimeEntries, long)

	s.Settings.TimerMaxDuration = Millis(time.Hour)
	require.NoError(t, s.Validate(), "entries recorded under a larger cap stay valid")

	over := NewTimeEntry("t-1", day0.Add(-48*time.Hour))
	end := over.StartTime.Add(25 * time.Hour)
	over.EndTime = &end
	over.Duration = Millis(25 * time.Hour)
	s.TimeEntries = append(s.TimeEntries, over)
	assert.ErrorIs(t, s.Validate(), trackerrors.ErrInvalidDuration)
}

func TestSnapshot_ValidateChanges(t *testing.T) {
	t.Parallel()

	prev := sampleSnapshot()
	prev.Tasks[1].Color = "red"
	require.Error(t, prev.Validate())

	next := prev.Clone()
	next.Counter("2023-09-25", "calls").Count++
	assert.NoError(t, next.ValidateChanges(prev), "untouched bad record is skipped")

	next = prev.Clone()
	next.Tasks[0].Color = "blue"
	assert.True(t, trackerrors.IsValidation(next.ValidateChanges(prev)))

	next = prev.Clone()
	next.Tasks[1].Color = "#112233"
	next.Tasks[1].IsDeleted = false
	next.Tasks[1].IsActive = true
	assert.ErrorIs(t, next.ValidateChanges(prev), trackerrors.ErrInvalidSnapshot)

	assert.Error(t, next.ValidateChanges(nil))
}

func TestSnapshot_JSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewSnapshot())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"version", "lastUpdated", "tasks", "timeEntries", "mealBreaks", "workDays", "activityCounters", "settings"} {
		assert.Contains(t, raw, key)
	}
	assert.JSONEq(t, "[]", string(raw["tasks"]))
}
