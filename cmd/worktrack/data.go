package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/storage"
)

func newDataCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Back up, restore and prune stored data",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the full snapshot as JSON",
		Args:  cobra.NoArgs,
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	export.RunE = c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
		data, err := a.Store.Export(ctx)
		if err != nil {
			return err
		}
		if output == "" {
			_, err := fmt.Fprintln(out, string(data))
			return err
		}
		if err := os.WriteFile(output, data, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", output)
		return nil
	})

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace all data with a previously exported snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				snap, err := a.Store.Import(ctx, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "imported %d tasks and %d time entries\n", len(snap.Tasks), len(snap.TimeEntries))
				return nil
			})(cmd, args)
		},
	}

	var weeks int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records older than the retention period",
		Args:  cobra.NoArgs,
	}
	cleanup.Flags().IntVar(&weeks, "weeks", 0, "retention in weeks (default from settings)")
	cleanup.RunE = c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
		var res storage.CleanupResult
		var err error
		if weeks > 0 {
			res, err = a.Store.CleanupOlderThan(ctx, weeks)
		} else {
			res, err = a.Store.RunRetention(ctx)
		}
		if err != nil {
			return err
		}
		if c.asJSON {
			return writeJSON(out, res)
		}
		fmt.Fprintf(out, "removed %d records dated before %s, %d kept\n", res.Deleted.Total(), res.Cutoff, res.Retained.Total())
		return nil
	})

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all data",
		Args:  cobra.NoArgs,
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")
	clearCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !yes {
			return fmt.Errorf("refusing to delete all data without --yes")
		}
		return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			if a.Engine.Status().TimerRunning {
				if _, err := a.Engine.StopTimer(ctx); err != nil {
					return err
				}
			}
			if a.Engine.Status().MealBreakRunning {
				if _, err := a.Engine.StopMealBreak(ctx); err != nil {
					return err
				}
			}
			if err := a.Store.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "all data deleted")
			return nil
		})(cmd, args)
	}

	var label string
	count := &cobra.Command{
		Use:   "count LABEL",
		Short: "Increment today's counter for LABEL, e.g. calls or interruptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label = args[0]
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				n, err := a.Store.IncrementActivity(ctx, today(a), label)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d today\n", label, n)
				return nil
			})(cmd, args)
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List earlier saved snapshots",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			revs, err := a.Store.Revisions(ctx, limit)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(out, revs)
			}
			fmt.Fprintln(out, renderRevisions(revs))
			return nil
		}),
	}
	history.Flags().IntVarP(&limit, "limit", "n", 10, "maximum revisions to list")

	restore := &cobra.Command{
		Use:   "restore REVISION",
		Short: "Replace current data with an earlier snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid revision %q", args[0])
			}
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				st := a.Engine.Status()
				if st.TimerRunning || st.MealBreakRunning {
					return fmt.Errorf("stop the running timer before restoring")
				}
				snap, err := a.Store.Restore(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "restored revision %d: %d tasks, %d time entries\n", id, len(snap.Tasks), len(snap.TimeEntries))
				return nil
			})(cmd, args)
		},
	}

	cmd.AddCommand(export, importCmd, cleanup, clearCmd, count, history, restore)
	return cmd
}
