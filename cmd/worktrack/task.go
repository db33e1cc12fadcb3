package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/services"
	"worktrack/internal/types"
)

func newTaskCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	var color string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
	}
	add.Flags().StringVar(&color, "color", "", "hex color such as #3B82F6 (default: next palette color)")
	add.RunE = func(cmd *cobra.Command, args []string) error {
		return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			task, err := a.Registry.CreateTask(ctx, args[0], color)
			if err != nil {
				return err
			}
			return c.printTask(out, "created", task)
		})(cmd, args)
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
	}
	list.Flags().BoolVar(&all, "all", false, "include deleted tasks")
	list.RunE = c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
		tasks, err := a.Registry.ListTasks(ctx, all)
		if err != nil {
			return err
		}
		if c.asJSON {
			return writeJSON(out, tasks)
		}
		fmt.Fprintln(out, renderTasks(tasks))
		return nil
	})

	rename := &cobra.Command{
		Use:   "rename TASK NEW_NAME",
		Short: "Rename a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.updateTask(cmd, args, services.TaskUpdate{Name: &args[1]})
		},
	}

	recolor := &cobra.Command{
		Use:   "color TASK COLOR",
		Short: "Change a task's color",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.updateTask(cmd, args, services.TaskUpdate{Color: &args[1]})
		},
	}

	del := &cobra.Command{
		Use:   "delete TASK",
		Short: "Delete a task; its time entries are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				task, err := resolveTask(ctx, a, args[0])
				if err != nil {
					return err
				}
				if err := a.Registry.DeleteTask(ctx, task.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted %s\n", task.Name)
				return nil
			})(cmd, args)
		},
	}

	activate := &cobra.Command{
		Use:   "activate TASK",
		Short: "Mark a task as the active one without starting a timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				task, err := resolveTask(ctx, a, args[0])
				if err != nil {
					return err
				}
				task, err = a.Registry.SetActiveTask(ctx, task.ID)
				if err != nil {
					return err
				}
				return c.printTask(out, "activated", task)
			})(cmd, args)
		},
	}

	var from, to string
	stats := &cobra.Command{
		Use:   "stats TASK",
		Short: "Show session statistics for a task",
		Args:  cobra.ExactArgs(1),
	}
	stats.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	stats.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	stats.RunE = func(cmd *cobra.Command, args []string) error {
		return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			task, err := resolveTask(ctx, a, args[0])
			if err != nil {
				return err
			}
			st, err := a.Registry.GetStats(ctx, task.ID, services.DateRange{Start: from, End: to})
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(out, st)
			}
			fmt.Fprintln(out, table([]string{"Statistic", "Value"}, [][]string{
				{"total", types.FormatHoursMinutes(st.TotalTime)},
				{"sessions", fmt.Sprint(st.SessionCount)},
				{"average", types.FormatHoursMinutes(st.AverageSession)},
				{"longest", types.FormatHoursMinutes(st.LongestSession)},
				{"days worked", fmt.Sprint(st.DaysWorked)},
				{"adjusted", fmt.Sprint(st.ManualAdjustments)},
				{"auto-stopped", fmt.Sprint(st.AutoStoppedEntries)},
			}))
			return nil
		})(cmd, args)
	}

	cmd.AddCommand(add, list, rename, recolor, del, activate, stats)
	return cmd
}

func (c *cli) updateTask(cmd *cobra.Command, args []string, update services.TaskUpdate) error {
	return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
		task, err := resolveTask(ctx, a, args[0])
		if err != nil {
			return err
		}
		task, err = a.Registry.UpdateTask(ctx, task.ID, update)
		if err != nil {
			return err
		}
		return c.printTask(out, "updated", task)
	})(cmd, args)
}

func (c *cli) printTask(out io.Writer, verb string, task types.Task) error {
	if c.asJSON {
		return writeJSON(out, task)
	}
	fmt.Fprintf(out, "%s %s %s %s\n", verb, swatch(task.Color), task.Name, mutedStyle.Render(task.ID))
	return nil
}
