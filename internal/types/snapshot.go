package types

import (
	"reflect"
	"sort"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
)

// CurrentVersion is stamped on every saved snapshot
const CurrentVersion = "2.0.0"

// Snapshot is the whole persisted state, written as one blob
type Snapshot struct {
	Version          string            `json:"version"`
	LastUpdated      time.Time         `json:"lastUpdated"`
	Tasks            []Task            `json:"tasks"`
	TimeEntries      []TimeEntry       `json:"timeEntries"`
	MealBreaks       []MealBreak       `json:"mealBreaks"`
	WorkDays         []WorkDay         `json:"workDays"`
	ActivityCounters []ActivityCounter `json:"activityCounters"`
	Settings         Settings          `json:"settings"`
}

// NewSnapshot returns an empty snapshot with default settings
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version:          CurrentVersion,
		Tasks:            []Task{},
		TimeEntries:      []TimeEntry{},
		MealBreaks:       []MealBreak{},
		WorkDays:         []WorkDay{},
		ActivityCounters: []ActivityCounter{},
		Settings:         DefaultSettings(),
	}
}

// ValidateShape checks that every collection is present and settings are valid
func (s *Snapshot) ValidateShape() error {
	const op = "Snapshot.ValidateShape"
	if s == nil {
		return trackerrors.InvalidSnapshot(op, "snapshot is nil")
	}
	switch {
	case s.Tasks == nil:
		return trackerrors.InvalidSnapshot(op, "tasks must be an array")
	case s.TimeEntries == nil:
		return trackerrors.InvalidSnapshot(op, "timeEntries must be an array")
	case s.MealBreaks == nil:
		return trackerrors.InvalidSnapshot(op, "mealBreaks must be an array")
	case s.WorkDays == nil:
		return trackerrors.InvalidSnapshot(op, "workDays must be an array")
	case s.ActivityCounters == nil:
		return trackerrors.InvalidSnapshot(op, "activityCounters must be an array")
	}
	return s.Settings.Validate()
}

// Validate checks the shape plus the cross-entity invariants: at most one
// active task and one running entry, and every record valid on its own.
// Closed entries are held to TimerMaxCeiling; the configured cap applies
// when an entry is closed or adjusted.
func (s *Snapshot) Validate() error {
	return s.validate(nil)
}

// ValidateChanges is Validate restricted to the records that differ from
// prev. The cross-entity invariants are still checked in full, so one bad
// record loaded from storage does not block unrelated mutations.
func (s *Snapshot) ValidateChanges(prev *Snapshot) error {
	if prev == nil {
		return s.Validate()
	}
	return s.validate(prev)
}

func (s *Snapshot) validate(prev *Snapshot) error {
	const op = "Snapshot.Validate"
	if err := s.ValidateShape(); err != nil {
		return err
	}

	var old snapshotIndex
	if prev != nil {
		old = indexSnapshot(prev)
	}

	active := 0
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if !unchanged(old.tasks, t.ID, *t) {
			if err := t.Validate(); err != nil {
				return err
			}
		}
		if t.IsActive {
			active++
		}
	}
	if active > 1 {
		return trackerrors.InvalidSnapshot(op, "more than one active task")
	}

	running := 0
	for i := range s.TimeEntries {
		e := &s.TimeEntries[i]
		if !unchanged(old.entries, e.ID, *e) {
			if err := e.Validate(TimerMaxCeiling); err != nil {
				return err
			}
		}
		if e.IsRunning() {
			running++
		}
	}
	if running > 1 {
		return trackerrors.InvalidSnapshot(op, "more than one running time entry")
	}

	openBreaks := 0
	for i := range s.MealBreaks {
		b := &s.MealBreaks[i]
		if !unchanged(old.breaks, b.ID, *b) {
			if err := b.Validate(); err != nil {
				return err
			}
		}
		if b.IsRunning() {
			openBreaks++
		}
	}
	if openBreaks > 1 {
		return trackerrors.InvalidSnapshot(op, "more than one open meal break")
	}

	for i := range s.ActivityCounters {
		c := &s.ActivityCounters[i]
		if unchanged(old.counters, c.ID, *c) {
			continue
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// snapshotIndex maps record IDs to their values in an earlier snapshot
type snapshotIndex struct {
	tasks    map[string]Task
	entries  map[string]TimeEntry
	breaks   map[string]MealBreak
	counters map[string]ActivityCounter
}

func indexSnapshot(s *Snapshot) snapshotIndex {
	return snapshotIndex{
		tasks:    indexByID(s.Tasks, func(t Task) string { return t.ID }),
		entries:  indexByID(s.TimeEntries, func(e TimeEntry) string { return e.ID }),
		breaks:   indexByID(s.MealBreaks, func(b MealBreak) string { return b.ID }),
		counters: indexByID(s.ActivityCounters, func(c ActivityCounter) string { return c.ID }),
	}
}

func indexByID[T any](items []T, id func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[id(item)] = item
	}
	return out
}

// unchanged reports whether rec equals the record with the same id in prev.
// A nil index means there is nothing to compare against.
func unchanged[T any](prev map[string]T, id string, rec T) bool {
	if prev == nil || id == "" {
		return false
	}
	old, ok := prev[id]
	return ok && reflect.DeepEqual(old, rec)
}

// Clone returns a deep copy safe to mutate
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		t.ActivatedAt = cloneTime(t.ActivatedAt)
		t.DeletedAt = cloneTime(t.DeletedAt)
		c.Tasks[i] = t
	}
	c.TimeEntries = make([]TimeEntry, len(s.TimeEntries))
	for i, e := range s.TimeEntries {
		e.EndTime = cloneTime(e.EndTime)
		e.AdjustmentTimestamp = cloneTime(e.AdjustmentTimestamp)
		c.TimeEntries[i] = e
	}
	c.MealBreaks = make([]MealBreak, len(s.MealBreaks))
	for i, b := range s.MealBreaks {
		b.EndTime = cloneTime(b.EndTime)
		c.MealBreaks[i] = b
	}
	c.WorkDays = make([]WorkDay, len(s.WorkDays))
	for i, w := range s.WorkDays {
		w.ArrivalTime = cloneTime(w.ArrivalTime)
		w.DepartureTime = cloneTime(w.DepartureTime)
		if w.ActivityCounters != nil {
			counters := make(map[string]int, len(w.ActivityCounters))
			for k, v := range w.ActivityCounters {
				counters[k] = v
			}
			w.ActivityCounters = counters
		}
		c.WorkDays[i] = w
	}
	c.ActivityCounters = append([]ActivityCounter{}, s.ActivityCounters...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ActiveTasks is the single place non-deleted tasks are selected. Ordered by creation.
func (s *Snapshot) ActiveTasks() []Task {
	out := make([]Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if !t.IsDeleted {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FindTask returns the task with id, deleted or not
func (s *Snapshot) FindTask(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// LiveTask returns the task with id only if it is not soft-deleted
func (s *Snapshot) LiveTask(id string) *Task {
	if t := s.FindTask(id); t != nil && !t.IsDeleted {
		return t
	}
	return nil
}

// ActiveTask returns the currently active task, if any
func (s *Snapshot) ActiveTask() *Task {
	for i := range s.Tasks {
		if s.Tasks[i].IsActive && !s.Tasks[i].IsDeleted {
			return &s.Tasks[i]
		}
	}
	return nil
}

// FindTimeEntry returns the entry with id
func (s *Snapshot) FindTimeEntry(id string) *TimeEntry {
	for i := range s.TimeEntries {
		if s.TimeEntries[i].ID == id {
			return &s.TimeEntries[i]
		}
	}
	return nil
}

// OpenTimeEntry returns the running entry, if any
func (s *Snapshot) OpenTimeEntry() *TimeEntry {
	for i := range s.TimeEntries {
		if s.TimeEntries[i].IsRunning() {
			return &s.TimeEntries[i]
		}
	}
	return nil
}

// FindMealBreak returns the break with id
func (s *Snapshot) FindMealBreak(id string) *MealBreak {
	for i := range s.MealBreaks {
		if s.MealBreaks[i].ID == id {
			return &s.MealBreaks[i]
		}
	}
	return nil
}

// OpenMealBreak returns the running meal break, if any
func (s *Snapshot) OpenMealBreak() *MealBreak {
	for i := range s.MealBreaks {
		if s.MealBreaks[i].IsRunning() {
			return &s.MealBreaks[i]
		}
	}
	return nil
}

// DeactivateTasks clears IsActive on every task and returns the ids touched
func (s *Snapshot) DeactivateTasks(now time.Time) []string {
	var ids []string
	for i := range s.Tasks {
		if s.Tasks[i].IsActive {
			s.Tasks[i].IsActive = false
			s.Tasks[i].UpdatedAt = now
			ids = append(ids, s.Tasks[i].ID)
		}
	}
	return ids
}

// EntriesOn returns the time entries dated date
func (s *Snapshot) EntriesOn(date string) []TimeEntry {
	var out []TimeEntry
	for _, e := range s.TimeEntries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// BreaksOn returns the meal breaks dated date
func (s *Snapshot) BreaksOn(date string) []MealBreak {
	var out []MealBreak
	for _, b := range s.MealBreaks {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out
}

// WorkDay derives the rollup for date from the snapshot's records
func (s *Snapshot) WorkDay(date string, now time.Time) WorkDay {
	return DeriveWorkDay(date, s.TimeEntries, s.MealBreaks, s.ActivityCounters, now)
}

// UpsertWorkDay stores day, replacing any persisted rollup for the same date
func (s *Snapshot) UpsertWorkDay(day WorkDay) {
	for i := range s.WorkDays {
		if s.WorkDays[i].Date == day.Date {
			s.WorkDays[i] = day
			return
		}
	}
	s.WorkDays = append(s.WorkDays, day)
}

// Counter returns the counter for (date, label), creating it if missing
func (s *Snapshot) Counter(date, label string) *ActivityCounter {
	for i := range s.ActivityCounters {
		c := &s.ActivityCounters[i]
		if c.Date == date && c.Label == label {
			return c
		}
	}
	s.ActivityCounters = append(s.ActivityCounters, ActivityCounter{ID: NewID(), Date: date, Label: label})
	return &s.ActivityCounters[len(s.ActivityCounters)-1]
}
