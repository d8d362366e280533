package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/loxsync/agent/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured accounts",
		Long: `Display every configured account and its connection settings.

This reads the config and the size and modification time of each
account's cache file — it does not contact the lox server or inspect a
running sync process's live state.`,
		RunE: runStatus,
	}
}

// statusRow is one account's display row, shared by the text and JSON paths.
type statusRow struct {
	Name      string `json:"name"`
	LocalDir  string `json:"local_dir"`
	LoxURL    string `json:"lox_url"`
	Username  string `json:"username"`
	Interval  string `json:"interval"`
	Encrypt   bool   `json:"encrypt"`
	CacheSize int64  `json:"cache_size_bytes"`
	LastSync  string `json:"last_sync,omitempty"`

	lastSyncAt time.Time // unexported: backs the text table's formatTime column, omitted from JSON
}

func runStatus(_ *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	names := make([]string, 0, len(resolvedCfg.Accounts))
	for name := range resolvedCfg.Accounts {
		names = append(names, name)
	}

	sort.Strings(names)

	rows := make([]statusRow, 0, len(names))

	for _, name := range names {
		acct := resolvedCfg.Accounts[name]

		row := statusRow{
			Name:     name,
			LocalDir: acct.LocalDir,
			LoxURL:   acct.LoxURL,
			Username: acct.Username,
			Interval: acct.Interval,
			Encrypt:  acct.Encrypt,
		}

		if info, err := os.Stat(filepath.Join(config.AccountCacheDir(name), "cache.db")); err == nil {
			row.CacheSize = info.Size()
			row.lastSyncAt = info.ModTime()
			row.LastSync = row.lastSyncAt.Format(time.RFC3339)
		}

		rows = append(rows, row)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(rows)
	}

	printStatusText(rows)

	return nil
}

// printStatusText renders an aligned table when stdout is a terminal, and
// plain tab-separated lines otherwise so scripts can parse it reliably.
func printStatusText(rows []statusRow) {
	if len(rows) == 0 {
		statusf("No accounts configured.\n")
		return
	}

	if !isTerminal() {
		for _, r := range rows {
			fmt.Printf("%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
				r.Name, r.LocalDir, r.LoxURL, r.Interval, r.Encrypt,
				formatSize(r.CacheSize), formatLastSync(r))
		}

		return
	}

	headers := []string{"ACCOUNT", "LOCAL DIR", "LOX URL", "INTERVAL", "ENCRYPT", "CACHE SIZE", "LAST SYNC"}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			r.Name, r.LocalDir, r.LoxURL, r.Interval, fmt.Sprintf("%t", r.Encrypt),
			formatSize(r.CacheSize), formatLastSync(r),
		})
	}

	printTable(os.Stdout, headers, table)
}

// formatLastSync renders r's cache mtime with formatTime, or "-" for an
// account that has never synced (no cache.db on disk yet).
func formatLastSync(r statusRow) string {
	if r.lastSyncAt.IsZero() {
		return "-"
	}

	return formatTime(r.lastSyncAt)
}
