package types

import (
	"fmt"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
)

const (
	// DefaultTimerMaxDuration is the auto-stop cap for task timers
	DefaultTimerMaxDuration = 12 * time.Hour
	// TimerMaxCeiling is the largest cap a user can configure. Closed entries
	// recorded under an earlier, larger cap are checked against it.
	TimerMaxCeiling = 24 * time.Hour
	// MealBreakMaxDuration is the auto-stop cap for meal breaks
	MealBreakMaxDuration = 3 * time.Hour
	// DurationTolerance is the allowed drift between Duration and End-Start
	DurationTolerance = time.Second

	// AutoStopMaxDuration is recorded when the cap closes a timer
	AutoStopMaxDuration = "max_duration_exceeded"
)

// TimeEntry is one contiguous interval of tracked time against a task
type TimeEntry struct {
	ID                  string     `json:"id"`
	TaskID              string     `json:"taskId"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime"`
	Duration            int64      `json:"duration"` // ms
	Date                string     `json:"date"`
	IsManuallyAdjusted  bool       `json:"isManuallyAdjusted"`
	AdjustmentNote      string     `json:"adjustmentNote,omitempty"`
	AdjustmentTimestamp *time.Time `json:"adjustmentTimestamp,omitempty"`
	AutoStopped         bool       `json:"autoStopped,omitempty"`
	AutoStopReason      string     `json:"autoStopReason,omitempty"`
}

// NewTimeEntry opens an entry for taskID at start
func NewTimeEntry(taskID string, start time.Time) TimeEntry {
	return TimeEntry{
		ID:        NewID(),
		TaskID:    taskID,
		StartTime: start,
		Date:      DateOf(start),
	}
}

// IsRunning reports whether the entry is still open
func (e *TimeEntry) IsRunning() bool {
	return e.EndTime == nil
}

// Elapsed returns the tracked duration, counting a running entry up to now
func (e *TimeEntry) Elapsed(now time.Time) time.Duration {
	if e.EndTime != nil {
		return FromMillis(e.Duration)
	}
	if now.Before(e.StartTime) {
		return 0
	}
	return now.Sub(e.StartTime)
}

// Close ends the entry at end, clamped to start+max. It returns true
// when the cap was applied.
func (e *TimeEntry) Close(end time.Time, max time.Duration) bool {
	capped := false
	if limit := e.StartTime.Add(max); end.After(limit) {
		end = limit
		capped = true
	}
	if end.Before(e.StartTime) {
		end = e.StartTime
	}
	e.EndTime = &end
	e.Duration = Millis(end.Sub(e.StartTime))
	return capped
}

// Adjust rewrites a closed entry to the given duration and records the note
func (e *TimeEntry) Adjust(duration time.Duration, note string, at time.Time) {
	end := e.StartTime.Add(duration)
	e.EndTime = &end
	e.Duration = Millis(duration)
	e.IsManuallyAdjusted = true
	e.AdjustmentNote = note
	e.AdjustmentTimestamp = &at
}

// Validate checks the entry against the configured timer cap
func (e *TimeEntry) Validate(max time.Duration) error {
	const op = "TimeEntry.Validate"
	if e.ID == "" || e.TaskID == "" {
		return trackerrors.HandleValidationError(op, "id", e.ID, "id and taskId are required")
	}
	if e.Date != DateOf(e.StartTime) {
		return trackerrors.HandleValidationError(op, "date", e.Date, "must match startTime")
	}
	if e.Duration < 0 {
		return trackerrors.HandleValidationError(op, "duration", fmt.Sprint(e.Duration), "must not be negative")
	}
	if e.EndTime != nil {
		if err := checkClosedInterval(op, e.StartTime, *e.EndTime, e.Duration, max); err != nil {
			return err
		}
	}
	if e.IsManuallyAdjusted != (e.AdjustmentNote != "" && e.AdjustmentTimestamp != nil) {
		return trackerrors.HandleValidationError(op, "isManuallyAdjusted", e.ID,
			"adjustment flag, note and timestamp must be set together")
	}
	return nil
}

// MealBreak is one contiguous interval of time excluded from working time
type MealBreak struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Duration    int64      `json:"duration"` // ms
	AutoStopped bool       `json:"autoStopped,omitempty"`
}

// NewMealBreak opens a meal break at start
func NewMealBreak(start time.Time) MealBreak {
	return MealBreak{
		ID:        NewID(),
		Date:      DateOf(start),
		StartTime: start,
	}
}

// IsRunning reports whether the break is still open
func (b *MealBreak) IsRunning() bool {
	return b.EndTime == nil
}

// Elapsed returns the break length, counting an open break up to now within the cap
func (b *MealBreak) Elapsed(now time.Time) time.Duration {
	if b.EndTime != nil {
		return FromMillis(b.Duration)
	}
	if now.Before(b.StartTime) {
		return 0
	}
	return min(now.Sub(b.StartTime), MealBreakMaxDuration)
}

// Close ends the break at end, clamped to the meal-break cap
func (b *MealBreak) Close(end time.Time) bool {
	capped := false
	if limit := b.StartTime.Add(MealBreakMaxDuration); end.After(limit) {
		end = limit
		capped = true
	}
	if end.Before(b.StartTime) {
		end = b.StartTime
	}
	b.EndTime = &end
	b.Duration = Millis(end.Sub(b.StartTime))
	return capped
}

func (b *MealBreak) Validate() error {
	const op = "MealBreak.Validate"
	if b.ID == "" {
		return trackerrors.HandleValidationError(op, "id", "", "must not be empty")
	}
	if b.Date != DateOf(b.StartTime) {
		return trackerrors.HandleValidationError(op, "date", b.Date, "must match startTime")
	}
	if b.Duration < 0 {
		return trackerrors.HandleValidationError(op, "duration", fmt.Sprint(b.Duration), "must not be negative")
	}
	if b.EndTime != nil {
		return checkClosedInterval(op, b.StartTime, *b.EndTime, b.Duration, MealBreakMaxDuration)
	}
	return nil
}

func checkClosedInterval(op string, start, end time.Time, durationMs int64, max time.Duration) error {
	if end.Before(start) {
		return trackerrors.HandleValidationError(op, "endTime", end.Format(time.RFC3339), "must not precede startTime")
	}
	drift := end.Sub(start) - FromMillis(durationMs)
	if drift < 0 {
		drift = -drift
	}
	if drift > DurationTolerance {
		return trackerrors.HandleValidationError(op, "duration", fmt.Sprint(durationMs), "inconsistent with endTime-startTime")
	}
	if FromMillis(durationMs) > max {
		return trackerrors.InvalidDuration(op, durationMs, Millis(max))
	}
	return nil
}
