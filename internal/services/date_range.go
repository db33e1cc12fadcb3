package services

import (
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

// DateRange is an inclusive range of YYYY-MM-DD dates. An empty bound is open.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Validate checks both bounds are real dates and Start is not after End
func (r DateRange) Validate(op string) error {
	if r.Start != "" {
		if _, err := types.ParseDate(r.Start); err != nil {
			return err
		}
	}
	if r.End != "" {
		if _, err := types.ParseDate(r.End); err != nil {
			return err
		}
	}
	if r.Start != "" && r.End != "" && r.Start > r.End {
		return trackerrors.InvalidDateRange(op, r.Start, r.End)
	}
	return nil
}

// Contains reports whether date falls inside the range
func (r DateRange) Contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}
