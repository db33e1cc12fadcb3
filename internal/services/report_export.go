package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/types"
)

// ExportFormat selects a weekly export representation
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatText ExportFormat = "text"
	FormatPDF  ExportFormat = "pdf"
)

// CSVHeader is the first row of the tabular export
var CSVHeader = []string{"Task", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Total"}

// ParseExportFormat resolves a format key, case-insensitively
func ParseExportFormat(key string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(key))); f {
	case FormatJSON, FormatCSV, FormatText, FormatPDF:
		return f, nil
	case "txt":
		return FormatText, nil
	}
	return "", trackerrors.UnsupportedFormat("ParseExportFormat", key)
}

// Extension returns the file extension for the format
func (f ExportFormat) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// ExportWeeklyData renders the weekly report for monday in format
func (a *ReportAggregator) ExportWeeklyData(ctx context.Context, monday string, format string) ([]byte, error) {
	f, err := ParseExportFormat(format)
	if err != nil {
		return nil, err
	}
	report, err := a.GetWeeklyReport(ctx, monday)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatCSV:
		return exportCSV(report)
	case FormatText:
		return exportText(report), nil
	case FormatPDF:
		return exportPDF(report)
	default:
		return exportJSON(report)
	}
}

// weeklyExport is the structured export record
type weeklyExport struct {
	WeekStart   string         `json:"weekStart"`
	WeekEnd     string         `json:"weekEnd"`
	Tasks       []TaskSummary  `json:"tasks"`
	DailyTotals []DayBreakdown `json:"dailyTotals"`
	Totals      weeklyTotals   `json:"totals"`
}

type weeklyTotals struct {
	TaskTime      int64   `json:"taskTime"`
	WorkingTime   int64   `json:"workingTime"`
	PresenceTime  int64   `json:"presenceTime"`
	MealBreakTime int64   `json:"mealBreakTime"`
	Hours         float64 `json:"hours"`
	Efficiency    int     `json:"efficiency"`
}

func exportJSON(r WeeklyReport) ([]byte, error) {
	data, err := json.MarshalIndent(weeklyExport{
		WeekStart:   r.WeekStart,
		WeekEnd:     r.WeekEnd,
		Tasks:       r.Tasks,
		DailyTotals: r.Days,
		Totals: weeklyTotals{
			TaskTime:      r.TotalTaskTime,
			WorkingTime:   r.TotalWorkingTime,
			PresenceTime:  r.TotalPresenceTime,
			MealBreakTime: r.TotalMealBreakTime,
			Hours:         types.HoursDecimal(r.TotalTaskTime),
			Efficiency:    r.Efficiency,
		},
	}, "", "  ")
	if err != nil {
		return nil, trackerrors.New("exportJSON", err, trackerrors.ErrCodeInternal)
	}
	return data, nil
}

func hours(ms int64) string {
	return fmt.Sprintf("%.1f", types.HoursDecimal(ms))
}

func exportCSV(r WeeklyReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, trackerrors.New("exportCSV", err, trackerrors.ErrCodeInternal)
	}
	for _, t := range r.Tasks {
		row := make([]string, 0, len(CSVHeader))
		row = append(row, t.TaskName)
		for _, ms := range t.DailyTime {
			row = append(row, hours(ms))
		}
		row = append(row, hours(t.TotalTime))
		if err := w.Write(row); err != nil {
			return nil, trackerrors.New("exportCSV", err, trackerrors.ErrCodeInternal)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, trackerrors.New("exportCSV", err, trackerrors.ErrCodeInternal)
	}
	return buf.Bytes(), nil
}

func exportText(r WeeklyReport) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Weekly report %s to %s\n", r.WeekStart, r.WeekEnd)
	fmt.Fprintf(&buf, "Task time %s, working time %s, efficiency %d%%\n\n",
		types.FormatHoursMinutes(r.TotalTaskTime), types.FormatHoursMinutes(r.TotalWorkingTime), r.Efficiency)

	buf.WriteString("Daily breakdown\n")
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, d := range r.Days {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d%%\n", d.Weekday, d.Date, types.FormatHoursMinutes(d.TotalTaskTime), d.Efficiency)
	}
	tw.Flush()

	buf.WriteString("\nTasks\n")
	if len(r.Tasks) == 0 {
		buf.WriteString("  no time recorded\n")
		return buf.Bytes()
	}
	tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, t := range r.Tasks {
		fmt.Fprintf(tw, "  %s\t%s\t%d sessions\tavg %s\n",
			t.TaskName, types.FormatHoursMinutes(t.TotalTime), t.SessionCount, types.FormatHoursMinutes(t.AverageSession))
	}
	tw.Flush()
	return buf.Bytes()
}

func exportPDF(r WeeklyReport) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text("Weekly report", props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Center,
					Size:  16,
				})
			})
		})
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(fmt.Sprintf("%s - %s", r.WeekStart, r.WeekEnd), props.Text{
					Top:   3,
					Style: consts.Normal,
					Align: consts.Center,
					Size:  12,
				})
			})
		})
	})

	tableProps := func(grid []uint) props.TableList {
		return props.TableList{
			HeaderProp: props.TableListContent{
				Size:      10,
				GridSizes: grid,
			},
			ContentProp: props.TableListContent{
				Size:      10,
				GridSizes: grid,
			},
			Align:                consts.Center,
			AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
			HeaderContentSpace:   1,
			Line:                 false,
		}
	}

	section := func(title string) {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(title, props.Text{
					Top:   5,
					Style: consts.Bold,
					Size:  14,
				})
			})
		})
	}

	section("Daily breakdown")
	dayRows := make([][]string, 0, len(r.Days))
	for _, d := range r.Days {
		dayRows = append(dayRows, []string{
			d.Weekday,
			d.Date,
			types.FormatHoursMinutes(d.TotalTaskTime),
			types.FormatHoursMinutes(d.WorkingTime),
			fmt.Sprintf("%d%%", d.Efficiency),
		})
	}
	m.TableList([]string{"Day", "Date", "Tasks", "Working", "Efficiency"}, dayRows, tableProps([]uint{3, 3, 2, 2, 2}))

	section("Tasks")
	taskRows := make([][]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		row := []string{t.TaskName}
		for _, ms := range t.DailyTime {
			row = append(row, hours(ms))
		}
		row = append(row, hours(t.TotalTime))
		taskRows = append(taskRows, row)
	}
	if len(taskRows) > 0 {
		m.TableList(CSVHeader, taskRows, tableProps([]uint{2, 2, 2, 2, 1, 1, 2}))
	}

	m.Row(20, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("Total: %s  Efficiency: %d%%", types.FormatHoursMinutes(r.TotalTaskTime), r.Efficiency), props.Text{
				Top:   10,
				Style: consts.Bold,
				Align: consts.Right,
				Size:  12,
			})
		})
	})

	out, err := m.Output()
	if err != nil {
		return nil, trackerrors.New("exportPDF", err, trackerrors.ErrCodeInternal)
	}
	return out.Bytes(), nil
}
