// Package main is the entry point for the ephemera CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/ephemera/internal/config"
	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/jobs"
	"github.com/flemzord/ephemera/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ephemera",
		Short:         "Scheduled maintenance for ephemeral social content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	root.PersistentFlags().String("data-dir", "", "Persistent data directory (default $XDG_DATA_HOME/ephemera)")

	root.AddCommand(
		versionCmd(),
		startCmd(),
		runCmd(),
		extractCmd(),
		configCmd(),
		serviceCmd(),
	)
	return root
}

// runParams collects the shared flags.
func runParams(cmd *cobra.Command) (app.RunParams, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := app.ParseLogLevel(levelStr)
	if err != nil {
		return app.RunParams{}, err
	}
	format, _ := cmd.Flags().GetString("log-format")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	cfgPath, _ := cmd.Flags().GetString("config")

	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
		LogLevel:   level,
		LogFormat:  format,
	}, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ephemera %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler, the creation trigger and all configured modules",
		Long: "Start runs in the foreground when invoked from a terminal and as a " +
			"system service when launched by the service manager.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			svc, err := newService(params)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run a scheduled job once and exit",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.ReaperName, jobs.PurgerName, jobs.ReminderName},
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return app.RunJob(ctx, params, args[0])
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <postID>",
		Short: "Re-run hashtag and mention extraction for a stored post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return app.Extract(ctx, params, args[0])
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and load every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			params.ConfigPath = args[0]

			rt, err := app.Build(cmd.Context(), params)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(cmd.Context()) }()

			out := cmd.OutOrStdout()
			ids := config.Resolve(rt.Config)
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			fmt.Fprintln(out, "Scheduled jobs:")
			for _, st := range rt.Scheduler.Status() {
				fmt.Fprintf(out, "  %s  %s\n", st.Name, st.Schedule)
			}
			return nil
		},
	}
}
