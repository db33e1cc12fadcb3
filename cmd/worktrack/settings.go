package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/types"
)

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
			snap, err := a.Store.Load(ctx)
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(out, snap.Settings)
			}
			fmt.Fprintln(out, renderSettings(snap.Settings))
			return nil
		}),
	}

	set := &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Change settings, e.g. set timer-max=10h auto-save=60",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := parseSettings(args)
			if err != nil {
				return err
			}
			return c.run(func(ctx context.Context, a *app.App, out io.Writer) error {
				s, err := a.Store.UpdateSettings(ctx, update)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(out, s)
				}
				fmt.Fprintln(out, renderSettings(s))
				return nil
			})(cmd, args)
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

// parseSettings turns key=value pairs into a partial update. Durations take
// Go syntax (8h, 90m); auto-save is in seconds.
func parseSettings(pairs []string) (types.SettingsUpdate, error) {
	var u types.SettingsUpdate
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return u, fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		switch key {
		case "required-presence", "timer-max":
			d, err := time.ParseDuration(value)
			if err != nil {
				return u, fmt.Errorf("%s: %w", key, err)
			}
			ms := types.Millis(d)
			if key == "timer-max" {
				u.TimerMaxDuration = &ms
			} else {
				u.RequiredDailyPresence = &ms
			}
		case "auto-save":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return u, fmt.Errorf("%s: %w", key, err)
			}
			u.AutoSaveInterval = &n
		case "retention-weeks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return u, fmt.Errorf("%s: %w", key, err)
			}
			u.DataRetentionWeeks = &n
		case "theme":
			v := value
			u.Theme = &v
		case "time-format":
			v := value
			u.TimeFormat = &v
		case "show-seconds", "week-starts-monday":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return u, fmt.Errorf("%s: %w", key, err)
			}
			if key == "show-seconds" {
				u.ShowSeconds = &b
			} else {
				u.WeekStartsOnMonday = &b
			}
		default:
			return u, fmt.Errorf("unknown setting %q", key)
		}
	}
	return u, nil
}
