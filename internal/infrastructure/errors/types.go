package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents different classes of tracker errors
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeNotFound
	ErrCodeDuplicate
	ErrCodeConstraint
	ErrCodeConnection
	ErrCodeTransaction
	ErrCodeTimeout
	ErrCodeRetryable
	ErrCodeNonRetryable
	ErrCodeValidation
	ErrCodeConflict
	ErrCodeDate
	ErrCodeFormat
	ErrCodeQuota
	ErrCodePermission
	ErrCodeDiskSpace
	ErrCodeCorruption
	ErrCodeInternal
	ErrCodeBusy
	ErrCodeSchema
)

// String returns a string representation of the error code
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeDuplicate:
		return "DUPLICATE"
	case ErrCodeConstraint:
		return "CONSTRAINT"
	case ErrCodeConnection:
		return "CONNECTION"
	case ErrCodeTransaction:
		return "TRANSACTION"
	case ErrCodeTimeout:
		return "TIMEOUT"
	case ErrCodeRetryable:
		return "RETRYABLE"
	case ErrCodeNonRetryable:
		return "NON_RETRYABLE"
	case ErrCodeValidation:
		return "VALIDATION"
	case ErrCodeConflict:
		return "CONFLICT"
	case ErrCodeDate:
		return "DATE"
	case ErrCodeFormat:
		return "FORMAT"
	case ErrCodeQuota:
		return "QUOTA"
	case ErrCodePermission:
		return "PERMISSION"
	case ErrCodeDiskSpace:
		return "DISK_SPACE"
	case ErrCodeCorruption:
		return "CORRUPTION"
	case ErrCodeInternal:
		return "INTERNAL"
	case ErrCodeBusy:
		return "BUSY"
	case ErrCodeSchema:
		return "SCHEMA"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed failure returned by every layer of the tracker.
// It carries the failing operation, a classification code and context.
type Error struct {
	Op        string            // operation name
	Err       error             // underlying error
	Code      ErrorCode         // error classification
	Retryable bool              // whether the error is retryable
	Context   map[string]string // additional context information
	Timestamp time.Time         // when the error occurred
}

func (e *Error) Error() string {
	if e == nil {
		return "tracker error"
	}

	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Code != ErrCodeUnknown {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code.String()))
	}

	if e.Retryable {
		parts = append(parts, "retryable=true")
	}

	// Context keys are sorted for deterministic output
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
		}
	}

	contextStr := ""
	if len(parts) > 0 {
		contextStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}

	if e.Err != nil {
		return e.Err.Error() + contextStr
	}
	return "tracker error" + contextStr
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by code, otherwise defers to the wrapped error
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable
func (e *Error) IsRetryable() bool {
	if e == nil {
		return false
	}
	return e.Retryable
}

// GetCode returns the error code as a string (for logging interface compatibility)
func (e *Error) GetCode() string {
	if e == nil {
		return ErrCodeUnknown.String()
	}
	return e.Code.String()
}

// GetContext returns the error context (for logging interface compatibility)
func (e *Error) GetContext() map[string]string {
	if e == nil || e.Context == nil {
		return make(map[string]string)
	}
	return e.Context
}

// GetTimestamp returns the error timestamp (for logging interface compatibility)
func (e *Error) GetTimestamp() time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.Timestamp
}

// WithContext adds context information to the error by mutating the receiver.
// Not safe once the error has been shared with other goroutines.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates a new tracker error with the given parameters
func New(op string, err error, code ErrorCode) *Error {
	return &Error{
		Op:        op,
		Err:       err,
		Code:      code,
		Retryable: isRetryableError(code, err),
		Context:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// NewWithContext creates a new tracker error with additional context
func NewWithContext(op string, err error, code ErrorCode, context map[string]string) *Error {
	trackerErr := New(op, err, code)
	if context != nil {
		// Clone so later mutation by the caller does not leak in
		trackerErr.Context = make(map[string]string, len(context))
		for k, v := range context {
			trackerErr.Context[k] = v
		}
	}
	return trackerErr
}

// isRetryableError determines if an error is retryable based on its type
func isRetryableError(code ErrorCode, err error) bool {
	switch code {
	case ErrCodeConnection, ErrCodeTimeout, ErrCodeTransaction, ErrCodeBusy:
		return true
	case ErrCodeRetryable:
		return true
	case ErrCodeNonRetryable:
		return false
	case ErrCodeNotFound, ErrCodeDuplicate, ErrCodeConstraint, ErrCodeValidation,
		ErrCodeConflict, ErrCodeDate, ErrCodeFormat, ErrCodeQuota,
		ErrCodePermission, ErrCodeCorruption, ErrCodeInternal, ErrCodeSchema:
		return false
	case ErrCodeDiskSpace:
		// Needs external intervention (cleanup, more storage)
		return false
	default:
		if err != nil {
			errStr := strings.ToLower(err.Error())
			return strings.Contains(errStr, "temporary") ||
				strings.Contains(errStr, "retry") ||
				strings.Contains(errStr, "busy") ||
				strings.Contains(errStr, "locked") ||
				strings.Contains(errStr, "deadlock")
		}
		return false
	}
}

// CodeOf returns the classification of err, or ErrCodeUnknown when err is not a tracker error
func CodeOf(err error) ErrorCode {
	var trackerErr *Error
	if errors.As(err, &trackerErr) {
		return trackerErr.Code
	}
	return ErrCodeUnknown
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound checks if the error is a "not found" error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsDuplicate checks if the error is a "duplicate" error
func IsDuplicate(err error) bool { return hasCode(err, ErrCodeDuplicate) }

// IsConstraint checks if the error is a "constraint violation" error
func IsConstraint(err error) bool { return hasCode(err, ErrCodeConstraint) }

// IsConnection checks if the error is a "connection" error
func IsConnection(err error) bool { return hasCode(err, ErrCodeConnection) }

// IsTransaction checks if the error is a "transaction" error
func IsTransaction(err error) bool { return hasCode(err, ErrCodeTransaction) }

// IsTimeout checks if the error is a "timeout" error
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsConflict checks if the error is a state-conflict error
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsDate checks if the error is a date error
func IsDate(err error) bool { return hasCode(err, ErrCodeDate) }

// IsFormat checks if the error is a format error
func IsFormat(err error) bool { return hasCode(err, ErrCodeFormat) }

// IsQuota checks if the error is a storage quota error
func IsQuota(err error) bool { return hasCode(err, ErrCodeQuota) }

// IsPermission checks if the error is a permission error
func IsPermission(err error) bool { return hasCode(err, ErrCodePermission) }

// IsDiskSpace checks if the error is a disk space error
func IsDiskSpace(err error) bool { return hasCode(err, ErrCodeDiskSpace) }

// IsCorruption checks if the error is a corruption error
func IsCorruption(err error) bool { return hasCode(err, ErrCodeCorruption) }

// IsInternal checks if the error is an internal/API misuse error
func IsInternal(err error) bool { return hasCode(err, ErrCodeInternal) }

// IsBusy checks if the error is a busy/locked error
func IsBusy(err error) bool { return hasCode(err, ErrCodeBusy) }

// IsSchema checks if the error is a schema error
func IsSchema(err error) bool { return hasCode(err, ErrCodeSchema) }

// IsStorage reports whether err belongs to the storage family of failures
func IsStorage(err error) bool {
	switch CodeOf(err) {
	case ErrCodeConnection, ErrCodeTransaction, ErrCodeTimeout, ErrCodeQuota,
		ErrCodePermission, ErrCodeDiskSpace, ErrCodeCorruption, ErrCodeBusy, ErrCodeSchema:
		return true
	}
	return false
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var trackerErr *Error
	if errors.As(err, &trackerErr) {
		return trackerErr.Retryable
	}
	return false
}
