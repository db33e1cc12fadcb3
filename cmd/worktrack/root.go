package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"worktrack/internal/app"
	"worktrack/internal/types"
)

// opener builds and starts an App for one command invocation
type opener func(ctx context.Context, configPath string) (*app.App, error)

func openApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return nil, err
	}
	return a, nil
}

// cli carries the flags shared by every subcommand
type cli struct {
	configPath string
	asJSON     bool
	open       opener
}

// run opens the app, calls fn and always shuts the app down, flushing
// whatever fn changed.
func (c *cli) run(fn func(ctx context.Context, a *app.App, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := c.open(ctx, c.configPath)
		if err != nil {
			return err
		}
		runErr := fn(ctx, a, cmd.OutOrStdout())
		if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	return newRootCmd(openApp)
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "worktrack",
		Short:         "Track time spent on tasks, meal breaks and daily presence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/worktrack/worktrack.yml)")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newTaskCmd(c),
		newTimerCmd(c),
		newMealCmd(c),
		newReportCmd(c),
		newDataCmd(c),
		newSettingsCmd(c),
		newWatchCmd(c),
	)
	return root
}

// resolveTask accepts a task id or a case-insensitive task name
func resolveTask(ctx context.Context, a *app.App, ref string) (types.Task, error) {
	if task, err := a.Registry.GetTask(ctx, ref); err == nil && !task.IsDeleted {
		return task, nil
	}
	return a.Registry.FindTaskByName(ctx, ref)
}

// today is the current local date according to the app clock
func today(a *app.App) string {
	return types.DateOf(a.Clock().Now())
}

func thisMonday(a *app.App) string {
	return types.DateOf(types.MondayOf(a.Clock().Now()))
}

