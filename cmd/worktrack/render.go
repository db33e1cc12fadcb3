package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"worktrack/internal/services"
	"worktrack/internal/storage"
	"worktrack/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4A90E2"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// swatch renders a colored bullet in the task's color
func swatch(color string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}

// table renders rows as padded columns under a bold header
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			pad := lipgloss.NewStyle().Width(widths[i])
			if style != nil {
				pad = pad.Inherit(*style)
			}
			parts[i] = pad.Render(cell)
		}
		return strings.Join(parts, "  ")
	}

	var b strings.Builder
	b.WriteString(line(header, &headerStyle))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(line(row, nil))
	}
	return b.String()
}

func renderTasks(tasks []types.Task) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("no tasks yet, add one with `worktrack task add NAME`")
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		state := ""
		switch {
		case t.IsDeleted:
			state = mutedStyle.Render("deleted")
		case t.IsActive:
			state = runningStyle.Render("active")
		}
		rows = append(rows, []string{swatch(t.Color) + " " + t.Name, types.FormatHoursMinutes(t.TotalTime), state, t.ID})
	}
	return table([]string{"Task", "Total", "State", "ID"}, rows)
}

func renderStatus(st services.EngineStatus, taskName string) string {
	var lines []string
	if st.TimerRunning {
		lines = append(lines, fmt.Sprintf("%s %s  %s",
			runningStyle.Render("● running"), taskName, types.FormatClock(types.Millis(st.Elapsed))))
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("started %s, auto-stops after %s",
			st.StartedAt.Format("15:04"), st.MaxDuration)))
	} else {
		lines = append(lines, idleStyle.Render("○ no timer running"))
	}
	if st.MealBreakRunning {
		lines = append(lines, fmt.Sprintf("%s  %s",
			runningStyle.Render("meal break"), types.FormatClock(types.Millis(st.MealBreakElapsed))))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderDaily(r services.DailyReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", r.Weekday, r.Date)))
	b.WriteString("\n\n")

	wd := r.WorkDay
	presence := fmt.Sprintf("presence %s of %s (%d%%)",
		types.FormatHoursMinutes(wd.TotalPresenceTime), types.FormatHoursMinutes(r.RequiredPresence), r.PresenceProgress)
	b.WriteString(presence + "\n")
	if wd.ArrivalTime != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("arrived %s, last activity %s",
			wd.ArrivalTime.Format("15:04"), wd.DepartureTime.Format("15:04"))) + "\n")
	}
	b.WriteString(fmt.Sprintf("working %s, tasks %s, meal breaks %s, efficiency %d%%\n",
		types.FormatHoursMinutes(wd.WorkingTime), types.FormatHoursMinutes(wd.TotalTaskTime),
		types.FormatHoursMinutes(wd.MealBreakTime), r.Efficiency))

	if len(r.Tasks) > 0 {
		b.WriteString("\n")
		b.WriteString(renderSummaries(r.Tasks))
		b.WriteString("\n")
	}
	if len(r.ActivityCounters) > 0 {
		b.WriteString("\n" + headerStyle.Render("Activity") + "\n")
		for _, c := range r.ActivityCounters {
			b.WriteString(fmt.Sprintf("  %s: %d\n", c.Label, c.Count))
		}
	}
	if r.HasRunningEntry {
		b.WriteString(runningStyle.Render("a timer is still running") + "\n")
	}
	return b.String()
}

func renderSummaries(tasks []services.TaskSummary) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			swatch(t.Color) + " " + t.TaskName,
			types.FormatHoursMinutes(t.TotalTime),
			fmt.Sprint(t.SessionCount),
			types.FormatHoursMinutes(t.AverageSession),
		})
	}
	return table([]string{"Task", "Time", "Sessions", "Average"}, rows)
}

func renderWeekly(r services.WeeklyReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Week %s to %s", r.WeekStart, r.WeekEnd)))
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(r.Days))
	for _, d := range r.Days {
		eff := mutedStyle.Render("-")
		if d.HasData {
			eff = fmt.Sprintf("%d%%", d.Efficiency)
		}
		rows = append(rows, []string{d.Weekday, d.Date, types.FormatHoursMinutes(d.TotalTaskTime),
			types.FormatHoursMinutes(d.WorkingTime), eff})
	}
	b.WriteString(table([]string{"Day", "Date", "Tasks", "Working", "Efficiency"}, rows))
	b.WriteString(fmt.Sprintf("\n\ntotal %s over %d days, average %s per day, efficiency %d%%\n",
		types.FormatHoursMinutes(r.TotalTaskTime), r.DaysWorked,
		types.FormatHoursMinutes(r.AverageDailyTime), r.Efficiency))
	if len(r.Tasks) > 0 {
		b.WriteString("\n")
		b.WriteString(renderSummaries(r.Tasks))
		b.WriteString("\n")
	}
	return b.String()
}

func renderWeeks(weeks []services.WeekSummary) string {
	if len(weeks) == 0 {
		return mutedStyle.Render("no recorded weeks")
	}
	rows := make([][]string, 0, len(weeks))
	for _, w := range weeks {
		rows = append(rows, []string{w.WeekStart, w.WeekEnd, types.FormatHoursMinutes(w.TotalTaskTime), fmt.Sprint(w.EntryCount)})
	}
	return table([]string{"Monday", "Friday", "Tracked", "Entries"}, rows)
}

func renderRevisions(revs []storage.Revision) string {
	if len(revs) == 0 {
		return mutedStyle.Render("no earlier snapshots")
	}
	rows := make([][]string, 0, len(revs))
	for _, r := range revs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.ReplacedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprint(r.Tasks),
			fmt.Sprint(r.TimeEntries),
			fmt.Sprint(r.Bytes),
		})
	}
	return table([]string{"Revision", "Replaced", "Tasks", "Entries", "Bytes"}, rows)
}

func renderAudit(entries []services.AuditEntry) string {
	if len(entries) == 0 {
		return mutedStyle.Render("no time entries")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		end := runningStyle.Render("running")
		if e.EndTime != nil {
			end = e.EndTime.Format("15:04")
		}
		var flags []string
		if e.IsManuallyAdjusted {
			flags = append(flags, "adjusted: "+e.AdjustmentNote)
		}
		if e.AutoStopped {
			flags = append(flags, "auto-stopped")
		}
		name := e.TaskName
		if e.TaskDeleted {
			name += mutedStyle.Render(" (deleted)")
		}
		rows = append(rows, []string{
			e.Date, e.StartTime.Format("15:04"), end,
			swatch(e.TaskColor) + " " + name,
			types.FormatClock(e.Elapsed),
			strings.Join(flags, ", "),
			e.ID,
		})
	}
	return table([]string{"Date", "Start", "End", "Task", "Duration", "Notes", "ID"}, rows)
}

func renderSettings(s types.Settings) string {
	rows := [][]string{
		{"required-presence", types.FromMillis(s.RequiredDailyPresence).String()},
		{"timer-max", types.FromMillis(s.TimerMaxDuration).String()},
		{"auto-save", (time.Duration(s.AutoSaveInterval) * time.Second).String()},
		{"retention-weeks", fmt.Sprint(s.DataRetentionWeeks)},
		{"theme", s.Theme},
		{"time-format", s.TimeFormat},
		{"show-seconds", fmt.Sprint(s.ShowSeconds)},
		{"week-starts-monday", fmt.Sprint(s.WeekStartsOnMonday)},
	}
	return table([]string{"Setting", "Value"}, rows)
}
