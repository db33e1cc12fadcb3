package types

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	trackerrors "worktrack/internal/infrastructure/errors"
)

// DateLayout is the calendar-date form used for keys and report arguments
const DateLayout = "2006-01-02"

// NewID returns a fresh entity identifier
func NewID() string {
	return uuid.NewString()
}

// DateOf returns the local calendar date of t
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts only a real calendar date in YYYY-MM-DD form,
// interpreted in local time.
func ParseDate(value string) (time.Time, error) {
	if len(value) != len(DateLayout) {
		return time.Time{}, trackerrors.InvalidDate("ParseDate", value, "expected YYYY-MM-DD")
	}
	t, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, trackerrors.InvalidDate("ParseDate", value, err.Error())
	}
	if t.Format(DateLayout) != value {
		return time.Time{}, trackerrors.InvalidDate("ParseDate", value, "not a calendar date")
	}
	return t, nil
}

// StartOfDay truncates t to local midnight
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MondayOf returns local midnight of the Monday of t's week
func MondayOf(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// AddDays shifts a YYYY-MM-DD date by n calendar days
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return DateOf(t.AddDate(0, 0, n)), nil
}

// Millis converts a duration to whole milliseconds
func Millis(d time.Duration) int64 {
	return d.Milliseconds()
}

// FromMillis converts milliseconds back to a duration
func FromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// FormatClock renders a running duration as hh:mm:ss
func FormatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatHoursMinutes renders an accumulated total as hh:mm
func FormatHoursMinutes(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// HoursDecimal converts ms to hours rounded to one decimal place
func HoursDecimal(ms int64) float64 {
	return math.Round(float64(ms)/float64(time.Hour/time.Millisecond)*10) / 10
}
