package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loxsync/agent/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigReloadCmd())

	return cmd
}

func newConfigReloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Signal a running sync daemon to reload its config file",
		Long: `Sends SIGHUP to the daemon named in the PID file, which re-reads its
config file from disk and swaps it in without a restart. Sessions that are
already running keep the account settings they started with.`,
		RunE:        runConfigReload,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
	}

	return cmd
}

func runConfigReload(_ *cobra.Command, _ []string) error {
	pidPath := filepath.Join(config.DefaultDataDir(), "loxsync.pid")

	return sendSIGHUP(pidPath)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration after defaults are applied",
		RunE:  runConfigShow,
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(resolvedCfg)
}
