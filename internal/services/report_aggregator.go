package services

import (
	"context"
	"math"
	"sort"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

// WorkWeekDays is the number of days in a weekly report, Monday to Friday
const WorkWeekDays = 5

const (
	unknownTaskName  = "Unknown task"
	unknownTaskColor = "#9CA3AF"
)

// TaskSummary aggregates one task's entries over a period. Durations are ms.
type TaskSummary struct {
	TaskID         string  `json:"taskId"`
	TaskName       string  `json:"taskName"`
	Color          string  `json:"color"`
	TotalTime      int64   `json:"totalTime"`
	SessionCount   int     `json:"sessionCount"`
	AverageSession int64   `json:"averageSession"`
	DailyTime      []int64 `json:"dailyTime,omitempty"` // weekly reports: Monday..Friday
}

// DailyReport is the rollup of a single day
type DailyReport struct {
	Date                    string                  `json:"date"`
	Weekday                 string                  `json:"weekday"`
	WorkDay                 types.WorkDay           `json:"workDay"`
	Efficiency              int                     `json:"efficiency"`
	RequiredPresence        int64                   `json:"requiredPresence"`
	PresenceProgress        int                     `json:"presenceProgress"`
	RemainingPresence       int64                   `json:"remainingPresence"`
	Tasks                   []TaskSummary           `json:"tasks"`
	Entries                 []AuditEntry            `json:"entries"`
	MealBreaks              []types.MealBreak       `json:"mealBreaks"`
	AutoStoppedEntries      int                     `json:"autoStoppedEntries"`
	ManuallyAdjustedEntries int                     `json:"manuallyAdjustedEntries"`
	HasRunningEntry         bool                    `json:"hasRunningEntry"`
	ActivityCounters        []types.ActivityCounter `json:"activityCounters"`
}

// DayBreakdown is one weekday inside a weekly report
type DayBreakdown struct {
	Date          string `json:"date"`
	Weekday       string `json:"weekday"`
	TotalTaskTime int64  `json:"totalTaskTime"`
	WorkingTime   int64  `json:"workingTime"`
	PresenceTime  int64  `json:"presenceTime"`
	MealBreakTime int64  `json:"mealBreakTime"`
	Efficiency    int    `json:"efficiency"`
	EntryCount    int    `json:"entryCount"`
	HasData       bool   `json:"hasData"`
}

// WeeklyReport covers Monday to Friday of one week
type WeeklyReport struct {
	WeekStart          string         `json:"weekStart"`
	WeekEnd            string         `json:"weekEnd"`
	Days               []DayBreakdown `json:"days"`
	Tasks              []TaskSummary  `json:"tasks"`
	TotalTaskTime      int64          `json:"totalTaskTime"`
	TotalWorkingTime   int64          `json:"totalWorkingTime"`
	TotalPresenceTime  int64          `json:"totalPresenceTime"`
	TotalMealBreakTime int64          `json:"totalMealBreakTime"`
	Efficiency         int            `json:"efficiency"`
	DaysWorked         int            `json:"daysWorked"`
	AverageDailyTime   int64          `json:"averageDailyTime"`
}

// WeekSummary identifies a week that has recorded time
type WeekSummary struct {
	WeekStart     string `json:"weekStart"`
	WeekEnd       string `json:"weekEnd"`
	TotalTaskTime int64  `json:"totalTaskTime"`
	EntryCount    int    `json:"entryCount"`
}

// AuditEntry is a time entry with its task's display fields resolved at read time
type AuditEntry struct {
	types.TimeEntry
	TaskName    string `json:"taskName"`
	TaskColor   string `json:"taskColor"`
	TaskDeleted bool   `json:"taskDeleted"`
	Elapsed     int64  `json:"elapsed"`
}

// PresenceTime is the presence calculation for one day. Durations are ms.
type PresenceTime struct {
	Date          string     `json:"date"`
	ArrivalTime   *time.Time `json:"arrivalTime,omitempty"`
	DepartureTime *time.Time `json:"departureTime,omitempty"`
	Presence      int64      `json:"presence"`
	MealBreakTime int64      `json:"mealBreakTime"`
	WorkingTime   int64      `json:"workingTime"`
	Required      int64      `json:"required"`
	Remaining     int64      `json:"remaining"`
	Progress      int        `json:"progress"`
}

// ReportAggregator derives reports from a freshly loaded snapshot. All
// methods are read-only.
type ReportAggregator struct {
	store SnapshotStore
	deps  Deps
}

// NewReportAggregator creates an aggregator over store
func NewReportAggregator(store SnapshotStore, deps Deps) *ReportAggregator {
	return &ReportAggregator{store: store, deps: deps.withDefaults()}
}

// Efficiency is taskTime/workingTime as a rounded percentage, 0 without working time
func Efficiency(taskTime, workingTime int64) int {
	if workingTime <= 0 {
		return 0
	}
	return int(math.Round(float64(taskTime) / float64(workingTime) * 100))
}

// GetDailyReport builds the report for date. Running entries count up to now.
func (a *ReportAggregator) GetDailyReport(ctx context.Context, date string) (DailyReport, error) {
	day, err := types.ParseDate(date)
	if err != nil {
		return DailyReport{}, err
	}
	snap, err := a.store.Load(ctx)
	if err != nil {
		return DailyReport{}, err
	}

	now := a.deps.Clock.Now()
	wd := snap.WorkDay(date, now)
	required := snap.Settings.RequiredDailyPresence
	report := DailyReport{
		Date:              date,
		Weekday:           day.Weekday().String(),
		WorkDay:           wd,
		Efficiency:        Efficiency(wd.TotalTaskTime, wd.WorkingTime),
		RequiredPresence:  required,
		PresenceProgress:  Efficiency(wd.TotalPresenceTime, required),
		RemainingPresence: max(0, required-wd.TotalPresenceTime),
		MealBreaks:        snap.BreaksOn(date),
		Entries:           []AuditEntry{},
		ActivityCounters:  []types.ActivityCounter{},
	}
	if report.MealBreaks == nil {
		report.MealBreaks = []types.MealBreak{}
	}

	entries := snap.EntriesOn(date)
	for _, e := range entries {
		if e.AutoStopped {
			report.AutoStoppedEntries++
		}
		if e.IsManuallyAdjusted {
			report.ManuallyAdjustedEntries++
		}
		if e.IsRunning() {
			report.HasRunningEntry = true
		}
		report.Entries = append(report.Entries, enrich(snap, e, now))
	}
	sortAuditEntries(report.Entries)
	report.Tasks = summarizeTasks(snap, entries, now, nil)

	for _, c := range snap.ActivityCounters {
		if c.Date == date {
			report.ActivityCounters = append(report.ActivityCounters, c)
		}
	}
	sort.Slice(report.ActivityCounters, func(i, j int) bool {
		return report.ActivityCounters[i].Label < report.ActivityCounters[j].Label
	})
	return report, nil
}

// GetWeeklyReport builds the Monday..Friday report for the week starting at
// monday, zero-filling days without data.
func (a *ReportAggregator) GetWeeklyReport(ctx context.Context, monday string) (WeeklyReport, error) {
	const op = "ReportAggregator.GetWeeklyReport"
	start, err := types.ParseDate(monday)
	if err != nil {
		return WeeklyReport{}, err
	}
	if start.Weekday() != time.Monday {
		return WeeklyReport{}, trackerrors.InvalidDate(op, monday, "week must start on a Monday")
	}

	snap, err := a.store.Load(ctx)
	if err != nil {
		return WeeklyReport{}, err
	}
	now := a.deps.Clock.Now()

	dates := make([]string, WorkWeekDays)
	for i := range dates {
		dates[i] = types.DateOf(start.AddDate(0, 0, i))
	}
	report := WeeklyReport{
		WeekStart: dates[0],
		WeekEnd:   dates[WorkWeekDays-1],
		Days:      make([]DayBreakdown, 0, WorkWeekDays),
	}

	var weekEntries []types.TimeEntry
	for i, date := range dates {
		wd := snap.WorkDay(date, now)
		entries := snap.EntriesOn(date)
		weekEntries = append(weekEntries, entries...)
		report.Days = append(report.Days, DayBreakdown{
			Date:          date,
			Weekday:       start.AddDate(0, 0, i).Weekday().String(),
			TotalTaskTime: wd.TotalTaskTime,
			WorkingTime:   wd.WorkingTime,
			PresenceTime:  wd.TotalPresenceTime,
			MealBreakTime: wd.MealBreakTime,
			Efficiency:    Efficiency(wd.TotalTaskTime, wd.WorkingTime),
			EntryCount:    len(entries),
			HasData:       len(entries) > 0 || wd.MealBreakTime > 0,
		})
		report.TotalTaskTime += wd.TotalTaskTime
		report.TotalWorkingTime += wd.WorkingTime
		report.TotalPresenceTime += wd.TotalPresenceTime
		report.TotalMealBreakTime += wd.MealBreakTime
		if len(entries) > 0 {
			report.DaysWorked++
		}
	}

	report.Efficiency = Efficiency(report.TotalTaskTime, report.TotalWorkingTime)
	if report.DaysWorked > 0 {
		report.AverageDailyTime = report.TotalTaskTime / int64(report.DaysWorked)
	}
	report.Tasks = summarizeTasks(snap, weekEntries, now, dates)
	return report, nil
}

// GetAvailableWeeks lists the Mondays of weeks with time entries or meal
// breaks, most recent first.
func (a *ReportAggregator) GetAvailableWeeks(ctx context.Context) ([]WeekSummary, error) {
	snap, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	now := a.deps.Clock.Now()

	weeks := map[string]*WeekSummary{}
	week := func(start time.Time) *WeekSummary {
		key := types.DateOf(types.MondayOf(start))
		w, ok := weeks[key]
		if !ok {
			monday := types.MondayOf(start)
			w = &WeekSummary{WeekStart: key, WeekEnd: types.DateOf(monday.AddDate(0, 0, WorkWeekDays-1))}
			weeks[key] = w
		}
		return w
	}
	for i := range snap.TimeEntries {
		e := &snap.TimeEntries[i]
		w := week(e.StartTime)
		w.TotalTaskTime += types.Millis(e.Elapsed(now))
		w.EntryCount++
	}
	for i := range snap.MealBreaks {
		week(snap.MealBreaks[i].StartTime)
	}

	out := make([]WeekSummary, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart > out[j].WeekStart })
	return out, nil
}

// GetAuditData returns time entries, optionally limited to dateRange, most
// recent first and enriched with their task's name and color.
func (a *ReportAggregator) GetAuditData(ctx context.Context, dateRange *DateRange) ([]AuditEntry, error) {
	const op = "ReportAggregator.GetAuditData"
	if dateRange != nil {
		if err := dateRange.Validate(op); err != nil {
			return nil, err
		}
	}

	snap, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	now := a.deps.Clock.Now()

	out := make([]AuditEntry, 0, len(snap.TimeEntries))
	for _, e := range snap.TimeEntries {
		if dateRange != nil && !dateRange.Contains(e.Date) {
			continue
		}
		out = append(out, enrich(snap, e, now))
	}
	sortAuditEntries(out)
	return out, nil
}

// CalculatePresenceTime returns arrival, departure and presence for date
// against the required daily presence.
func (a *ReportAggregator) CalculatePresenceTime(ctx context.Context, date string) (PresenceTime, error) {
	if _, err := types.ParseDate(date); err != nil {
		return PresenceTime{}, err
	}
	snap, err := a.store.Load(ctx)
	if err != nil {
		return PresenceTime{}, err
	}

	wd := snap.WorkDay(date, a.deps.Clock.Now())
	required := snap.Settings.RequiredDailyPresence
	return PresenceTime{
		Date:          date,
		ArrivalTime:   wd.ArrivalTime,
		DepartureTime: wd.DepartureTime,
		Presence:      wd.TotalPresenceTime,
		MealBreakTime: wd.MealBreakTime,
		WorkingTime:   wd.WorkingTime,
		Required:      required,
		Remaining:     max(0, required-wd.TotalPresenceTime),
		Progress:      Efficiency(wd.TotalPresenceTime, required),
	}, nil
}

// summarizeTasks groups entries by task. With dates set, DailyTime holds
// the per-date totals in that order. Summaries are sorted by total, largest first.
func summarizeTasks(snap *types.Snapshot, entries []types.TimeEntry, now time.Time, dates []string) []TaskSummary {
	index := map[string]int{}
	out := []TaskSummary{}
	for i := range entries {
		e := &entries[i]
		pos, ok := index[e.TaskID]
		if !ok {
			name, color, _ := taskDisplay(snap, e.TaskID)
			out = append(out, TaskSummary{TaskID: e.TaskID, TaskName: name, Color: color})
			pos = len(out) - 1
			index[e.TaskID] = pos
			if dates != nil {
				out[pos].DailyTime = make([]int64, len(dates))
			}
		}
		d := types.Millis(e.Elapsed(now))
		s := &out[pos]
		s.TotalTime += d
		s.SessionCount++
		for j, date := range dates {
			if e.Date == date {
				s.DailyTime[j] += d
			}
		}
	}
	for i := range out {
		out[i].AverageSession = out[i].TotalTime / int64(out[i].SessionCount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		return out[i].TaskName < out[j].TaskName
	})
	return out
}

func enrich(snap *types.Snapshot, e types.TimeEntry, now time.Time) AuditEntry {
	name, color, deleted := taskDisplay(snap, e.TaskID)
	return AuditEntry{
		TimeEntry:   e,
		TaskName:    name,
		TaskColor:   color,
		TaskDeleted: deleted,
		Elapsed:     types.Millis(e.Elapsed(now)),
	}
}

func taskDisplay(snap *types.Snapshot, taskID string) (name, color string, deleted bool) {
	task := snap.FindTask(taskID)
	if task == nil {
		return unknownTaskName, unknownTaskColor, false
	}
	return task.Name, task.Color, task.IsDeleted
}

func sortAuditEntries(entries []AuditEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})
}
