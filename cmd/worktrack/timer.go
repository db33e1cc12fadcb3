package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/types"
)

func newTimerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Start, stop and adjust the task timer",
	}

	start := &cobra.Command{
		Use:   "start TASK",
		Short: "Start timing a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				task, err := resolveTask(ctx, a, args[0])
				if err != nil {
					return err
				}
				entry, err := a.Engine.StartTimer(ctx, task.ID)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, entry)
				}
				fmt.Fprintf(out, "%s %s at %s\n", runningStyle.Render("started"), task.Name, entry.StartTime.Format("15:04:05"))
				return nil
			})(cmd, args)
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			entry, err := a.Engine.StopTimer(ctx)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(out, entry)
			}
			fmt.Fprintf(out, "%s after %s\n", idleStyle.Render("stopped"), types.FormatClock(entry.Duration))
			return nil
		}),
	}

	switchCmd := &cobra.Command{
		Use:   "switch TASK",
		Short: "Stop the running timer and start another task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				task, err := resolveTask(ctx, a, args[0])
				if err != nil {
					return err
				}
				res, err := a.Engine.SwitchTask(ctx, task.ID)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, res)
				}
				if res.Stopped != nil {
					fmt.Fprintf(out, "%s previous entry after %s\n", idleStyle.Render("stopped"), types.FormatClock(res.Stopped.Duration))
				}
				fmt.Fprintf(out, "%s %s\n", runningStyle.Render("started"), task.Name)
				return nil
			})(cmd, args)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer and meal break",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			st := a.Engine.Status()
			if c.asJSON {
				return writeJSON(out, st)
			}
			name := ""
			if st.TimerRunning {
				if task, err := a.Registry.GetTask(ctx, st.TaskID); err == nil {
					name = task.Name
				}
			}
			fmt.Fprintln(out, renderStatus(st, name))
			return nil
		}),
	}

	adjust := &cobra.Command{
		Use:   "adjust ENTRY_ID DURATION NOTE",
		Short: "Correct a stopped entry's duration, e.g. adjust 6f1c... 1h30m \"forgot to stop\"",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				entry, err := a.Engine.AdjustTime(ctx, args[0], types.Millis(d), args[2])
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, entry)
				}
				fmt.Fprintf(out, "adjusted entry to %s\n", types.FormatClock(entry.Duration))
				return nil
			})(cmd, args)
		},
	}

	cmd.AddCommand(start, stop, switchCmd, status, adjust)
	return cmd
}

func newMealCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meal",
		Short: "Start and stop meal breaks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start a meal break",
			Args:  cobra.NoArgs,
			RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				mb, err := a.Engine.StartMealBreak(ctx)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, mb)
				}
				fmt.Fprintf(out, "meal break started at %s\n", mb.StartTime.Format("15:04"))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "stop",
			Short: "End the meal break",
			Args:  cobra.NoArgs,
			RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				mb, err := a.Engine.StopMealBreak(ctx)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, mb)
				}
				fmt.Fprintf(out, "meal break ended after %s\n", types.FormatClock(mb.Duration))
				return nil
			}),
		},
	)
	return cmd
}
