package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/events"
	"worktrack/internal/services"
	"worktrack/internal/types"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of the running timer (s stop, m meal break, q quit)",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			feed, unsubscribe := a.Bus.SubscribeChan(64)
			defer unsubscribe()

			m := newWatchModel(ctx, a, feed)
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		}),
	}
}

// eventMsg carries an engine event into the bubbletea loop
type eventMsg events.Event

type watchModel struct {
	ctx    context.Context
	app    *app.App
	feed   <-chan events.Event
	status services.EngineStatus
	task   string
	today  int64
	notice string
	width  int
}

func newWatchModel(ctx context.Context, a *app.App, feed <-chan events.Event) watchModel {
	m := watchModel{ctx: ctx, app: a, feed: feed}
	m.refresh()
	return m
}

func waitForEvent(feed <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-feed
		if !ok {
			return tea.Quit()
		}
		return eventMsg(ev)
	}
}

// refresh re-reads engine status and today's totals
func (m *watchModel) refresh() {
	m.status = m.app.Engine.Status()
	m.task = ""
	if m.status.TimerRunning {
		if t, err := m.app.Registry.GetTask(m.ctx, m.status.TaskID); err == nil {
			m.task = t.Name
		}
	}
	if r, err := m.app.Reports.GetDailyReport(m.ctx, today(m.app)); err == nil {
		m.today = r.WorkDay.TotalTaskTime
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.feed)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			if m.status.TimerRunning {
				if _, err := m.app.Engine.StopTimer(m.ctx); err != nil {
					m.notice = err.Error()
				}
			}
		case "m":
			var err error
			if m.status.MealBreakRunning {
				_, err = m.app.Engine.StopMealBreak(m.ctx)
			} else {
				_, err = m.app.Engine.StartMealBreak(m.ctx)
			}
			if err != nil {
				m.notice = err.Error()
			}
		}
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case eventMsg:
		switch msg.Kind {
		case events.TimerTick, events.MealBreakTick:
			m.status = m.app.Engine.Status()
		case events.TimerAutoStopped:
			m.notice = fmt.Sprintf("timer auto-stopped after %s", msg.Elapsed)
			m.refresh()
		case events.StorageError:
			m.notice = "save failed: " + msg.Reason
		default:
			m.refresh()
		}
		return m, waitForEvent(m.feed)
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("worktrack"))
	b.WriteString("  " + mutedStyle.Render(m.app.Clock().Now().Format("Mon 2006-01-02 15:04")))
	b.WriteString("\n\n")

	clockStyle := lipgloss.NewStyle().Bold(true).Padding(0, 2)
	if m.status.TimerRunning {
		elapsed := types.FormatClock(types.Millis(m.status.Elapsed))
		b.WriteString(boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			runningStyle.Render("● "+m.task),
			clockStyle.Render(elapsed),
		)))
	} else {
		b.WriteString(boxStyle.Render(idleStyle.Render("○ no timer running")))
	}
	b.WriteString("\n")

	if m.status.MealBreakRunning {
		b.WriteString(fmt.Sprintf("meal break %s\n", types.FormatClock(types.Millis(m.status.MealBreakElapsed))))
	}
	b.WriteString(fmt.Sprintf("today %s\n", types.FormatHoursMinutes(m.today)))
	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("s stop timer • m meal break • q quit"))
	return b.String()
}

var _ tea.Model = watchModel{}
