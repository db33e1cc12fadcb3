package storage

import (
	"context"
	"fmt"

	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

// Record kinds affected by retention cleanup
const (
	KindTimeEntries      = "timeEntries"
	KindMealBreaks       = "mealBreaks"
	KindWorkDays         = "workDays"
	KindActivityCounters = "activityCounters"
)

// Counts holds per-kind record counts
type Counts struct {
	TimeEntries      int `json:"timeEntries"`
	MealBreaks       int `json:"mealBreaks"`
	WorkDays         int `json:"workDays"`
	ActivityCounters int `json:"activityCounters"`
}

// Total sums all kinds
func (c Counts) Total() int {
	return c.TimeEntries + c.MealBreaks + c.WorkDays + c.ActivityCounters
}

// CleanupResult reports what a retention pass removed and kept
type CleanupResult struct {
	Cutoff   string `json:"cutoff"`
	Deleted  Counts `json:"deleted"`
	Retained Counts `json:"retained"`
}

// CleanupOlderThan removes dated records before today minus weeks*7 days.
// Running entries and open meal breaks are kept whatever their date. Nothing
// is written when there is nothing to remove, so repeated runs are free.
func (s *Store) CleanupOlderThan(ctx context.Context, weeks int) (CleanupResult, error) {
	const op = "storage.CleanupOlderThan"
	if weeks < 1 || weeks > 52 {
		return CleanupResult{}, trackerrors.HandleValidationError(op, "weeks", fmt.Sprint(weeks), "must be between 1 and 52")
	}

	now := s.clock.Now()
	result := CleanupResult{Cutoff: types.DateOf(types.StartOfDay(now).AddDate(0, 0, -weeks*7))}

	_, err := s.mutate(ctx, func(snap *types.Snapshot) (bool, error) {
		before := func(date string) bool { return date < result.Cutoff }

		entries := snap.TimeEntries[:0]
		for _, e := range snap.TimeEntries {
			if before(e.Date) && !e.IsRunning() {
				result.Deleted.TimeEntries++
				continue
			}
			entries = append(entries, e)
		}
		snap.TimeEntries = entries

		breaks := snap.MealBreaks[:0]
		for _, b := range snap.MealBreaks {
			if before(b.Date) && !b.IsRunning() {
				result.Deleted.MealBreaks++
				continue
			}
			breaks = append(breaks, b)
		}
		snap.MealBreaks = breaks

		days := snap.WorkDays[:0]
		for _, d := range snap.WorkDays {
			if before(d.Date) {
				result.Deleted.WorkDays++
				continue
			}
			days = append(days, d)
		}
		snap.WorkDays = days

		counters := snap.ActivityCounters[:0]
		for _, c := range snap.ActivityCounters {
			if before(c.Date) {
				result.Deleted.ActivityCounters++
				continue
			}
			counters = append(counters, c)
		}
		snap.ActivityCounters = counters

		result.Retained = Counts{
			TimeEntries:      len(snap.TimeEntries),
			MealBreaks:       len(snap.MealBreaks),
			WorkDays:         len(snap.WorkDays),
			ActivityCounters: len(snap.ActivityCounters),
		}
		return result.Deleted.Total() > 0, nil
	})
	if err != nil {
		return CleanupResult{}, err
	}

	s.metrics.CleanupDeleted(KindTimeEntries, result.Deleted.TimeEntries)
	s.metrics.CleanupDeleted(KindMealBreaks, result.Deleted.MealBreaks)
	s.metrics.CleanupDeleted(KindWorkDays, result.Deleted.WorkDays)
	s.metrics.CleanupDeleted(KindActivityCounters, result.Deleted.ActivityCounters)

	s.logger.Info("Retention cleanup completed",
		"cutoff", result.Cutoff,
		"deleted", result.Deleted.Total(),
		"retained", result.Retained.Total())
	s.publish(events.Event{Kind: events.CleanupCompleted, At: now})
	return result, nil
}

// RunRetention cleans up using the retention configured in settings
func (s *Store) RunRetention(ctx context.Context) (CleanupResult, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	return s.CleanupOlderThan(ctx, snap.Settings.DataRetentionWeeks)
}
