package types

import (
	"sort"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
)

// ActivityCounter counts labelled activities on one day
type ActivityCounter struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

func (c *ActivityCounter) Validate() error {
	if c.Label == "" {
		return trackerrors.HandleValidationError("ActivityCounter.Validate", "label", "", "must not be empty")
	}
	if c.Count < 0 {
		return trackerrors.HandleValidationError("ActivityCounter.Validate", "count", c.Label, "must not be negative")
	}
	if _, err := ParseDate(c.Date); err != nil {
		return err
	}
	return nil
}

// WorkDay is the daily rollup of presence, task and meal time. Durations are ms.
type WorkDay struct {
	Date              string         `json:"date"`
	ArrivalTime       *time.Time     `json:"arrivalTime"`
	DepartureTime     *time.Time     `json:"departureTime"`
	TotalPresenceTime int64          `json:"totalPresenceTime"`
	MealBreakTime     int64          `json:"mealBreakTime"`
	WorkingTime       int64          `json:"workingTime"`
	TotalTaskTime     int64          `json:"totalTaskTime"`
	ActivityCounters  map[string]int `json:"activityCounters"`
}

func (w *WorkDay) Validate() error {
	const op = "WorkDay.Validate"
	if w.TotalTaskTime > w.WorkingTime {
		return trackerrors.HandleValidationError(op, "totalTaskTime", w.Date, "exceeds workingTime")
	}
	if w.ArrivalTime != nil && w.DepartureTime != nil &&
		w.TotalPresenceTime != Millis(w.DepartureTime.Sub(*w.ArrivalTime)) {
		return trackerrors.HandleValidationError(op, "totalPresenceTime", w.Date, "must equal departure minus arrival")
	}
	if w.WorkingTime != w.TotalPresenceTime-w.MealBreakTime {
		return trackerrors.HandleValidationError(op, "workingTime", w.Date, "must equal presence minus meal breaks")
	}
	for label, n := range w.ActivityCounters {
		if n < 0 {
			return trackerrors.HandleValidationError(op, "activityCounters", label, "must not be negative")
		}
	}
	return nil
}

// DeriveWorkDay builds the rollup for date from the day's records. Open
// records count up to now. When task time overlaps meal breaks the departure
// is moved later, so presence stays departure minus arrival and
// TotalTaskTime <= WorkingTime holds.
func DeriveWorkDay(date string, entries []TimeEntry, breaks []MealBreak, counters []ActivityCounter, now time.Time) WorkDay {
	day := WorkDay{Date: date, ActivityCounters: map[string]int{}}

	var arrival, departure time.Time
	observe := func(start, end time.Time) {
		if arrival.IsZero() || start.Before(arrival) {
			arrival = start
		}
		if departure.IsZero() || end.After(departure) {
			departure = end
		}
	}

	for i := range entries {
		e := &entries[i]
		if e.Date != date {
			continue
		}
		elapsed := e.Elapsed(now)
		day.TotalTaskTime += Millis(elapsed)
		observe(e.StartTime, e.StartTime.Add(elapsed))
	}
	for i := range breaks {
		b := &breaks[i]
		if b.Date != date {
			continue
		}
		elapsed := b.Elapsed(now)
		day.MealBreakTime += Millis(elapsed)
		observe(b.StartTime, b.StartTime.Add(elapsed))
	}
	for _, c := range counters {
		if c.Date == date {
			day.ActivityCounters[c.Label] += c.Count
		}
	}

	if arrival.IsZero() {
		return day
	}

	// task time logged during a meal break would push working time below
	// task time; departure moves later to keep presence consistent
	presence := departure.Sub(arrival)
	if need := FromMillis(day.TotalTaskTime + day.MealBreakTime); presence < need {
		presence = need
		departure = arrival.Add(presence)
	}

	a, d := arrival, departure
	day.ArrivalTime = &a
	day.DepartureTime = &d
	day.TotalPresenceTime = Millis(presence)
	day.WorkingTime = day.TotalPresenceTime - day.MealBreakTime
	return day
}

// SortedLabels returns the counter labels in stable order
func (w *WorkDay) SortedLabels() []string {
	labels := make([]string, 0, len(w.ActivityCounters))
	for l := range w.ActivityCounters {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
