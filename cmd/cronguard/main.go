// Package main is the entry point for the cronguard CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronguard/internal/core"
	"github.com/flemzord/cronguard/internal/cron"
	"github.com/flemzord/cronguard/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errCycleFailed maps a failed cycle to a non-zero exit status without
// printing the error twice.
var errCycleFailed = errors.New("cycle failed")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errCycleFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

type globalFlags struct {
	config    string
	dataDir   string
	logLevel  string
	logFormat string
}

func (g *globalFlags) params() (app.Params, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return app.Params{}, fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
	}
	return app.Params{
		ConfigPath: g.config,
		DataDir:    g.dataDir,
		Version:    version,
		LogLevel:   level,
		LogFormat:  g.logFormat,
	}, nil
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "cronguard",
		Short:         "A crontab-driven job runner with a single-instance lock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Path to configuration file")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Persistent data directory (default $XDG_DATA_HOME/cronguard)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(
		versionCmd(),
		runCmd(flags),
		daemonCmd(flags),
		nextCmd(),
		configCmd(flags),
		serviceCmd(flags),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cronguard %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func runCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one dispatch cycle and exit (call it from the system crontab every minute)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := app.Build(ctx, params)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			outcome, err := rt.RunOnce(ctx)
			if err != nil {
				rt.Logger.Error("cycle failed", "outcome", outcome.String(), "error", err)
				return errCycleFailed
			}
			if outcome == cron.OutcomeContended {
				rt.Logger.Info("another cycle is in progress, skipped")
			}
			return nil
		},
	}
}

func daemonCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run cycles on a timer with all configured modules started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := app.Build(ctx, params)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			return rt.RunDaemon(ctx)
		},
	}
}
