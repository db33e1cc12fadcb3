package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/services"
)

func newReportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Daily, weekly and audit reports",
	}

	day := &cobra.Command{
		Use:   "day [DATE]",
		Short: "Report one day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				date := today(a)
				if len(args) == 1 {
					date = args[0]
				}
				r, err := a.Reports.GetDailyReport(ctx, date)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, r)
				}
				fmt.Fprint(out, renderDaily(r))
				return nil
			})(cmd, args)
		},
	}

	week := &cobra.Command{
		Use:   "week [MONDAY]",
		Short: "Report Monday to Friday of a week (default this week)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				monday := thisMonday(a)
				if len(args) == 1 {
					monday = args[0]
				}
				r, err := a.Reports.GetWeeklyReport(ctx, monday)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, r)
				}
				fmt.Fprint(out, renderWeekly(r))
				return nil
			})(cmd, args)
		},
	}

	weeks := &cobra.Command{
		Use:   "weeks",
		Short: "List weeks with recorded time",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			ws, err := a.Reports.GetAvailableWeeks(ctx)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(out, ws)
			}
			fmt.Fprintln(out, renderWeeks(ws))
			return nil
		}),
	}

	var from, to string
	audit := &cobra.Command{
		Use:   "audit",
		Short: "List time entries, most recent first",
		Args:  cobra.NoArgs,
	}
	audit.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	audit.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	audit.RunE = c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
		var dateRange *services.DateRange
		if from != "" || to != "" {
			dateRange = &services.DateRange{Start: from, End: to}
		}
		entries, err := a.Reports.GetAuditData(ctx, dateRange)
		if err != nil {
			return err
		}
		if c.asJSON {
			return writeJSON(out, entries)
		}
		fmt.Fprintln(out, renderAudit(entries))
		return nil
	})

	var format, output string
	export := &cobra.Command{
		Use:   "export [MONDAY]",
		Short: "Export a weekly report as json, csv, text or pdf",
		Args:  cobra.MaximumNArgs(1),
	}
	export.Flags().StringVarP(&format, "format", "f", "csv", "json, csv, text or pdf")
	export.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	export.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := services.ParseExportFormat(format)
		if err != nil {
			return err
		}
		return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			monday := thisMonday(a)
			if len(args) == 1 {
				monday = args[0]
			}
			data, err := a.Reports.ExportWeeklyData(ctx, monday, string(f))
			if err != nil {
				return err
			}
			if output == "" {
				if f == services.FormatPDF {
					output = fmt.Sprintf("worktrack-%s.%s", monday, f.Extension())
				} else {
					_, err := out.Write(data)
					return err
				}
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", output)
			return nil
		})(cmd, args)
	}

	cmd.AddCommand(day, week, weeks, audit, export)
	return cmd
}
