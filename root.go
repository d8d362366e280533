package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/loxsync/agent/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagAccount    string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// resolvedCfg is the loaded Config, populated by PersistentPreRunE. Commands
// annotated with skipConfigAnnotation do not get one.
var resolvedCfg *config.Config

// resolvedConfigPath is the on-disk path resolvedCfg was loaded from, kept
// around so a SIGHUP reload knows where to re-read from.
var resolvedConfigPath string

// skipConfigAnnotation marks commands that handle config loading themselves
// (or need none at all, like a bare --version invocation).
const skipConfigAnnotation = "skipConfig"

// httpClientTimeout bounds token requests. The remote client's own calls,
// metadata and transfers alike, use transferHTTPClient and run under context
// cancellation instead, since large files can legitimately take longer.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

func transferHTTPClient() *http.Client {
	return &http.Client{Timeout: 0}
}

// isTerminal reports whether stdout is an interactive terminal, so status
// output can choose between a human table and machine-parseable lines.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// newRootCmd builds the fully-assembled root command. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loxsync",
		Short:         "lox sync agent",
		Long:          "A background sync agent reconciling local directories against a lox server.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagAccount, "account", "", "restrict to a single configured account")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the config file path (env then default, CLI flag
// highest), loads it, and stashes it for subcommands. LOXSYNC_ACCOUNT
// fills in --account when the flag is not given.
func loadConfig(cmd *cobra.Command) error {
	logger := buildLogger()

	env := config.ReadEnvOverrides()

	if flagAccount == "" {
		flagAccount = env.Account
	}

	path := flagConfigPath
	if path == "" {
		path = config.ResolveConfigPath(env)
	}

	logger.Debug("resolving config", slog.String("path", path))

	cfg, err := config.LoadFile(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	resolvedConfigPath = path

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(ctx)

	return nil
}

// buildLogger creates an slog.Logger whose level follows the mutually
// exclusive --verbose/--debug/--quiet flags (default: warn).
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
