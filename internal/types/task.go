package types

import (
	"regexp"
	"strings"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
)

// MaxTaskNameLength bounds trimmed task names
const MaxTaskNameLength = 100

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// TaskPalette is cycled through when a task is created without a color
var TaskPalette = []string{
	"#3B82F6", "#10B981", "#F59E0B", "#EF4444",
	"#8B5CF6", "#EC4899", "#14B8A6", "#F97316",
}

// PaletteColor picks the palette entry for the n-th task
func PaletteColor(n int) string {
	if n < 0 {
		n = -n
	}
	return TaskPalette[n%len(TaskPalette)]
}

// Task is a named unit of work time can be attributed to
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	TotalTime   int64      `json:"totalTime"` // ms
	IsActive    bool       `json:"isActive"`
	IsDeleted   bool       `json:"isDeleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// NormalizeTaskName trims and validates a task name
func NormalizeTaskName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", trackerrors.HandleValidationError("NormalizeTaskName", "name", name, "must not be empty")
	}
	if len([]rune(trimmed)) > MaxTaskNameLength {
		return "", trackerrors.HandleValidationError("NormalizeTaskName", "name", trimmed, "must be at most 100 characters")
	}
	return trimmed, nil
}

// ValidateColor checks the #RRGGBB form
func ValidateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return trackerrors.HandleValidationError("ValidateColor", "color", color, "must be #RRGGBB")
	}
	return nil
}

// Validate checks field ranges on the task
func (t *Task) Validate() error {
	if t.ID == "" {
		return trackerrors.HandleValidationError("Task.Validate", "id", "", "must not be empty")
	}
	name, err := NormalizeTaskName(t.Name)
	if err != nil {
		return err
	}
	if name != t.Name {
		return trackerrors.HandleValidationError("Task.Validate", "name", t.Name, "must be trimmed")
	}
	if err := ValidateColor(t.Color); err != nil {
		return err
	}
	if t.TotalTime < 0 {
		return trackerrors.HandleValidationError("Task.Validate", "totalTime", "", "must not be negative")
	}
	if t.IsDeleted && t.IsActive {
		return trackerrors.HandleValidationError("Task.Validate", "isActive", t.ID, "deleted task cannot be active")
	}
	return nil
}

// SameName compares task names case-insensitively
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
