package errors

import (
	"errors"
	"fmt"
)

// Sentinels for the tracker's named failures. Every constructor below wraps
// one of these, so callers can match with errors.Is.
var (
	ErrDuplicateTaskName      = errors.New("duplicate task name")
	ErrActiveTaskDelete       = errors.New("cannot delete the active task")
	ErrTaskNotFound           = errors.New("task not found")
	ErrTimeEntryNotFound      = errors.New("time entry not found")
	ErrTimerAlreadyActive     = errors.New("a timer is already running")
	ErrNoActiveTimer          = errors.New("no timer is running")
	ErrMealBreakAlreadyActive = errors.New("a meal break is already running")
	ErrNoActiveMealBreak      = errors.New("no meal break is running")
	ErrInvalidDuration        = errors.New("invalid duration")
	ErrEntryStillRunning      = errors.New("time entry is still running")
	ErrInvalidDate            = errors.New("invalid date")
	ErrInvalidDateRange       = errors.New("invalid date range")
	ErrUnsupportedFormat      = errors.New("unsupported export format")
	ErrStorageQuotaExceeded   = errors.New("storage quota exceeded")
	ErrMalformedSnapshot      = errors.New("malformed snapshot")
	ErrInvalidSnapshot        = errors.New("invalid snapshot shape")
)

// HandleNotFound creates a standardized not found error
func HandleNotFound(op string, resource string, identifier string) error {
	contextMap := map[string]string{
		"resource":   resource,
		"identifier": identifier,
	}
	return NewWithContext(op, errors.New("not found"), ErrCodeNotFound, contextMap)
}

// HandleValidationError creates a standardized validation error
func HandleValidationError(op string, field string, value string, reason string) error {
	contextMap := map[string]string{
		"field":  field,
		"value":  value,
		"reason": reason,
	}
	return NewWithContext(op, errors.New("validation failed"), ErrCodeValidation, contextMap)
}

// HandleConnectionError creates a standardized connection error
func HandleConnectionError(op string, details string) error {
	return NewWithContext(op, errors.New("connection error"), ErrCodeConnection, map[string]string{
		"details": details,
	})
}

// HandleTransactionError creates a standardized transaction error
func HandleTransactionError(op string, phase string, details string) error {
	return NewWithContext(op, errors.New("transaction error"), ErrCodeTransaction, map[string]string{
		"phase":   phase,
		"details": details,
	})
}

// HandleCorruptionError creates a standardized corruption error
func HandleCorruptionError(op string, resource string, details string) error {
	return NewWithContext(op, errors.New("data corruption detected"), ErrCodeCorruption, map[string]string{
		"resource": resource,
		"details":  details,
	})
}

func DuplicateTaskName(op, name string) error {
	return NewWithContext(op, ErrDuplicateTaskName, ErrCodeDuplicate, map[string]string{"name": name})
}

func ActiveTaskDelete(op, taskID string) error {
	return NewWithContext(op, ErrActiveTaskDelete, ErrCodeConflict, map[string]string{"task_id": taskID})
}

func TaskNotFound(op, taskID string) error {
	return NewWithContext(op, ErrTaskNotFound, ErrCodeNotFound, map[string]string{"task_id": taskID})
}

func TimeEntryNotFound(op, entryID string) error {
	return NewWithContext(op, ErrTimeEntryNotFound, ErrCodeNotFound, map[string]string{"entry_id": entryID})
}

func TimerAlreadyActive(op, entryID string) error {
	return NewWithContext(op, ErrTimerAlreadyActive, ErrCodeConflict, map[string]string{"entry_id": entryID})
}

func NoActiveTimer(op string) error {
	return New(op, ErrNoActiveTimer, ErrCodeConflict)
}

func MealBreakAlreadyActive(op, breakID string) error {
	return NewWithContext(op, ErrMealBreakAlreadyActive, ErrCodeConflict, map[string]string{"meal_break_id": breakID})
}

func NoActiveMealBreak(op string) error {
	return New(op, ErrNoActiveMealBreak, ErrCodeConflict)
}

func EntryStillRunning(op, entryID string) error {
	return NewWithContext(op, ErrEntryStillRunning, ErrCodeConflict, map[string]string{"entry_id": entryID})
}

func InvalidDuration(op string, durationMs, maxMs int64) error {
	return NewWithContext(op, ErrInvalidDuration, ErrCodeValidation, map[string]string{
		"duration_ms": fmt.Sprintf("%d", durationMs),
		"max_ms":      fmt.Sprintf("%d", maxMs),
	})
}

func InvalidDate(op, value, reason string) error {
	return NewWithContext(op, ErrInvalidDate, ErrCodeDate, map[string]string{
		"value":  value,
		"reason": reason,
	})
}

func InvalidDateRange(op, start, end string) error {
	return NewWithContext(op, ErrInvalidDateRange, ErrCodeDate, map[string]string{
		"start": start,
		"end":   end,
	})
}

func UnsupportedFormat(op, format string) error {
	return NewWithContext(op, ErrUnsupportedFormat, ErrCodeFormat, map[string]string{"format": format})
}

func StorageQuotaExceeded(op string, size, limit int) error {
	return NewWithContext(op, ErrStorageQuotaExceeded, ErrCodeQuota, map[string]string{
		"size_bytes":  fmt.Sprintf("%d", size),
		"limit_bytes": fmt.Sprintf("%d", limit),
	})
}

func MalformedSnapshot(op string, cause error) error {
	return NewWithContext(op, fmt.Errorf("%w: %v", ErrMalformedSnapshot, cause), ErrCodeCorruption, nil)
}

func InvalidSnapshot(op, reason string) error {
	return NewWithContext(op, ErrInvalidSnapshot, ErrCodeValidation, map[string]string{"reason": reason})
}
