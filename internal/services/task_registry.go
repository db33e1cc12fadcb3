package services

import (
	"context"
	"time"

	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/types"
)

// TaskUpdate is a partial task update; nil fields are left unchanged
type TaskUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// TaskStats summarizes a task's sessions within a date range. Durations are ms.
type TaskStats struct {
	TaskID             string     `json:"taskId"`
	TaskName           string     `json:"taskName"`
	Range              DateRange  `json:"range"`
	TotalTime          int64      `json:"totalTime"`
	SessionCount       int        `json:"sessionCount"`
	AverageSession     int64      `json:"averageSession"`
	LongestSession     int64      `json:"longestSession"`
	DaysWorked         int        `json:"daysWorked"`
	ManualAdjustments  int        `json:"manualAdjustments"`
	AutoStoppedEntries int        `json:"autoStoppedEntries"`
	FirstSession       *time.Time `json:"firstSession,omitempty"`
	LastSession        *time.Time `json:"lastSession,omitempty"`
}

// TaskRegistry is CRUD over tasks. It keeps names unique among live tasks
// and at most one task active.
type TaskRegistry struct {
	store SnapshotStore
	deps  Deps
}

// NewTaskRegistry creates a registry over store
func NewTaskRegistry(store SnapshotStore, deps Deps) *TaskRegistry {
	return &TaskRegistry{store: store, deps: deps.withDefaults()}
}

// CreateTask adds a task. An empty color picks the next palette color.
func (r *TaskRegistry) CreateTask(ctx context.Context, name, color string) (types.Task, error) {
	const op = "TaskRegistry.CreateTask"
	start := time.Now()

	name, err := types.NormalizeTaskName(name)
	if err != nil {
		return types.Task{}, err
	}
	if color != "" {
		if err := types.ValidateColor(color); err != nil {
			return types.Task{}, err
		}
	}

	var created types.Task
	_, err = r.store.Update(ctx, func(snap *types.Snapshot) error {
		live := snap.ActiveTasks()
		if findByName(live, name, "") != nil {
			return trackerrors.DuplicateTaskName(op, name)
		}
		if color == "" {
			color = types.PaletteColor(len(live))
		}
		now := r.deps.Clock.Now()
		created = types.Task{
			ID:        types.NewID(),
			Name:      name,
			Color:     color,
			CreatedAt: now,
			UpdatedAt: now,
		}
		snap.Tasks = append(snap.Tasks, created)
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}

	logging.LogOperation(r.deps.Logger, op, time.Since(start), map[string]interface{}{"task_id": created.ID})
	r.deps.publish(events.Event{Kind: events.TaskCreated, At: created.CreatedAt, TaskID: created.ID, Fields: []string{"name", "color"}})
	return created, nil
}

// UpdateTask renames or recolors a live task. The event lists only the
// fields whose value changed; an update changing nothing is not persisted.
func (r *TaskRegistry) UpdateTask(ctx context.Context, id string, update TaskUpdate) (types.Task, error) {
	const op = "TaskRegistry.UpdateTask"

	var name string
	if update.Name != nil {
		n, err := types.NormalizeTaskName(*update.Name)
		if err != nil {
			return types.Task{}, err
		}
		name = n
	}
	if update.Color != nil {
		if err := types.ValidateColor(*update.Color); err != nil {
			return types.Task{}, err
		}
	}

	current, err := r.GetTask(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if current.IsDeleted {
		return types.Task{}, trackerrors.TaskNotFound(op, id)
	}
	var fields []string
	if update.Name != nil && name != current.Name {
		fields = append(fields, "name")
	}
	if update.Color != nil && *update.Color != current.Color {
		fields = append(fields, "color")
	}
	if len(fields) == 0 {
		return current, nil
	}

	var updated types.Task
	_, err = r.store.Update(ctx, func(snap *types.Snapshot) error {
		task := snap.LiveTask(id)
		if task == nil {
			return trackerrors.TaskNotFound(op, id)
		}
		if update.Name != nil {
			if other := findByName(snap.ActiveTasks(), name, id); other != nil {
				return trackerrors.DuplicateTaskName(op, name)
			}
			task.Name = name
		}
		if update.Color != nil {
			task.Color = *update.Color
		}
		task.UpdatedAt = r.deps.Clock.Now()
		updated = *task
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}

	r.deps.publish(events.Event{Kind: events.TaskUpdated, At: updated.UpdatedAt, TaskID: id, Fields: fields})
	return updated, nil
}

// DeleteTask soft-deletes a task. The active task cannot be deleted.
func (r *TaskRegistry) DeleteTask(ctx context.Context, id string) error {
	const op = "TaskRegistry.DeleteTask"

	now := r.deps.Clock.Now()
	_, err := r.store.Update(ctx, func(snap *types.Snapshot) error {
		task := snap.LiveTask(id)
		if task == nil {
			return trackerrors.TaskNotFound(op, id)
		}
		if task.IsActive {
			return trackerrors.ActiveTaskDelete(op, id)
		}
		if open := snap.OpenTimeEntry(); open != nil && open.TaskID == id {
			return trackerrors.ActiveTaskDelete(op, id)
		}
		task.IsDeleted = true
		task.DeletedAt = &now
		task.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	r.deps.Logger.Info("Task deleted", "task_id", id)
	r.deps.publish(events.Event{Kind: events.TaskDeleted, At: now, TaskID: id, Fields: []string{"isDeleted", "deletedAt"}})
	return nil
}

// SetActiveTask makes id the only active task
func (r *TaskRegistry) SetActiveTask(ctx context.Context, id string) (types.Task, error) {
	const op = "TaskRegistry.SetActiveTask"

	now := r.deps.Clock.Now()
	var activated types.Task
	var deactivated []string
	_, err := r.store.Update(ctx, func(snap *types.Snapshot) error {
		task := snap.LiveTask(id)
		if task == nil {
			return trackerrors.TaskNotFound(op, id)
		}
		for _, other := range snap.DeactivateTasks(now) {
			if other != id {
				deactivated = append(deactivated, other)
			}
		}
		task.IsActive = true
		task.ActivatedAt = &now
		task.UpdatedAt = now
		activated = *task
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}

	if len(deactivated) > 0 {
		r.deps.publish(events.Event{Kind: events.TasksDeactivated, At: now, Fields: deactivated})
	}
	r.deps.publish(events.Event{Kind: events.TaskActivated, At: now, TaskID: id, Fields: []string{"isActive", "activatedAt"}})
	return activated, nil
}

// DeactivateAll clears the active flag everywhere and returns the ids touched
func (r *TaskRegistry) DeactivateAll(ctx context.Context) ([]string, error) {
	now := r.deps.Clock.Now()
	var ids []string
	_, err := r.store.Update(ctx, func(snap *types.Snapshot) error {
		ids = snap.DeactivateTasks(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		r.deps.publish(events.Event{Kind: events.TasksDeactivated, At: now, Fields: ids})
	}
	return ids, nil
}

// ListTasks returns tasks in creation order, soft-deleted ones only on request
func (r *TaskRegistry) ListTasks(ctx context.Context, includeDeleted bool) ([]types.Task, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !includeDeleted {
		return snap.ActiveTasks(), nil
	}
	return append([]types.Task{}, snap.Tasks...), nil
}

// GetTask returns the task with id, including soft-deleted tasks
func (r *TaskRegistry) GetTask(ctx context.Context, id string) (types.Task, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return types.Task{}, err
	}
	task := snap.FindTask(id)
	if task == nil {
		return types.Task{}, trackerrors.TaskNotFound("TaskRegistry.GetTask", id)
	}
	return *task, nil
}

// FindTaskByName resolves a live task by case-insensitive name
func (r *TaskRegistry) FindTaskByName(ctx context.Context, name string) (types.Task, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return types.Task{}, err
	}
	if t := findByName(snap.ActiveTasks(), name, ""); t != nil {
		return *t, nil
	}
	return types.Task{}, trackerrors.TaskNotFound("TaskRegistry.FindTaskByName", name)
}

// GetStats summarizes the task's time entries dated within dateRange.
// A running entry counts up to now.
func (r *TaskRegistry) GetStats(ctx context.Context, id string, dateRange DateRange) (TaskStats, error) {
	const op = "TaskRegistry.GetStats"
	if err := dateRange.Validate(op); err != nil {
		return TaskStats{}, err
	}

	snap, err := r.store.Load(ctx)
	if err != nil {
		return TaskStats{}, err
	}
	task := snap.FindTask(id)
	if task == nil {
		return TaskStats{}, trackerrors.TaskNotFound(op, id)
	}

	now := r.deps.Clock.Now()
	stats := TaskStats{TaskID: id, TaskName: task.Name, Range: dateRange}
	days := map[string]struct{}{}
	for i := range snap.TimeEntries {
		e := &snap.TimeEntries[i]
		if e.TaskID != id || !dateRange.Contains(e.Date) {
			continue
		}
		d := types.Millis(e.Elapsed(now))
		stats.TotalTime += d
		stats.SessionCount++
		stats.LongestSession = max(stats.LongestSession, d)
		days[e.Date] = struct{}{}
		if e.IsManuallyAdjusted {
			stats.ManualAdjustments++
		}
		if e.AutoStopped {
			stats.AutoStoppedEntries++
		}
		if stats.FirstSession == nil || e.StartTime.Before(*stats.FirstSession) {
			t := e.StartTime
			stats.FirstSession = &t
		}
		if stats.LastSession == nil || e.StartTime.After(*stats.LastSession) {
			t := e.StartTime
			stats.LastSession = &t
		}
	}
	stats.DaysWorked = len(days)
	if stats.SessionCount > 0 {
		stats.AverageSession = stats.TotalTime / int64(stats.SessionCount)
	}
	return stats, nil
}

// findByName returns the task named name (case-insensitively), skipping exceptID
func findByName(tasks []types.Task, name, exceptID string) *types.Task {
	for i := range tasks {
		if tasks[i].ID != exceptID && types.SameName(tasks[i].Name, name) {
			return &tasks[i]
		}
	}
	return nil
}
