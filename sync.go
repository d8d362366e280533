package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loxsync/agent/internal/cache"
	"github.com/loxsync/agent/internal/config"
	"github.com/loxsync/agent/internal/keyring"
	"github.com/loxsync/agent/internal/remote"
	"github.com/loxsync/agent/internal/session"
	syncpkg "github.com/loxsync/agent/internal/sync"
)

// apiVersion is the cache sentinel value; bumping it forces every account's
// durable cache to be cleared on next open (spec's cache invalidation rule).
const apiVersion = "v1"

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the reconciliation loop for one or all configured accounts",
		Long: `Start a session per configured account (or just --account, if given).

Each session reconciles its local directory against the server on its
configured interval; an interval of 0 runs a single pass and exits.`,
		RunE: runSync,
	}

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	accounts, err := selectAccounts(logger)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		return fmt.Errorf("no accounts to sync")
	}

	pidPath := filepath.Join(config.DefaultDataDir(), "loxsync.pid")

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanup()

	holder := config.NewHolder(resolvedCfg, resolvedConfigPath)
	go watchReload(ctx, holder, logger)

	sessions := make([]*session.Session, 0, len(accounts))

	for _, acct := range accounts {
		s, err := buildSession(ctx, acct, logger)
		if err != nil {
			return fmt.Errorf("account %q: %w", acct.Name, err)
		}

		sessions = append(sessions, s)
	}

	return runSessions(ctx, sessions, logger)
}

func selectAccounts(logger *slog.Logger) ([]*config.ResolvedAccount, error) {
	if resolvedCfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}

	if flagAccount != "" {
		ra, err := config.ResolveAccount(resolvedCfg, flagAccount, logger)
		if err != nil {
			return nil, err
		}

		return []*config.ResolvedAccount{ra}, nil
	}

	return config.ResolveAccounts(resolvedCfg, logger)
}

// buildSession wires one account's RemoteClient/Cache/Keyring/Reconciler/
// Executor chain, then wraps it in a Session (spec §4.7).
func buildSession(ctx context.Context, acct *config.ResolvedAccount, logger *slog.Logger) (*session.Session, error) {
	acctLogger := logger.With(slog.String("account", acct.Name))

	httpClient := transferHTTPClient()

	agentID := acct.AgentID
	if agentID == "" {
		agentID = uuid.NewString()
		acctLogger.Info("no agent_id configured, generated a transient one for this run", slog.String("agent_id", agentID))
	}

	tokenSource, err := buildTokenSource(acct)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(acct.LoxURL, agentID, httpClient, tokenSource, acctLogger)

	dataDir := config.AccountCacheDir(acct.Name)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating account data directory: %w", err)
	}

	store, err := cache.Open(ctx, filepath.Join(dataDir, "cache.db"), acct.LocalDir, apiVersion, acctLogger)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	keys := keyring.New(acct.Name, dataDir, acct.Passphrase, client, acctLogger)

	reconciler := syncpkg.NewReconciler(acct.LocalDir, client, acctLogger)
	executor := syncpkg.NewExecutor(acct.LocalDir, client, store, keys, reconciler, acct.Encrypt, acctLogger)

	return session.New(acct.Name, acct.Interval, reconciler, executor, acctLogger), nil
}

// buildTokenSource dispatches on acct.AuthType, the runtime counterpart to
// validate.go's load-time check: an auth_type that passed validation but
// isn't dispatched here is a programming error, not a config error, so it
// is still surfaced as Fatal rather than panicking (spec §4.1 "Fatal:
// authentication type unsupported").
func buildTokenSource(acct *config.ResolvedAccount) (remote.TokenSource, error) {
	switch acct.AuthType {
	case config.AuthTypeLox:
		return remote.NewPasswordTokenSource(defaultHTTPClient(), acct.LoxURL, acct.ClientID, acct.ClientSecret, acct.Username, acct.Password), nil
	case config.AuthTypeToken:
		return remote.NewStaticTokenSource(acct.Password), nil
	default:
		return nil, fmt.Errorf("%w: authentication type %q not supported", remote.ErrFatal, acct.AuthType)
	}
}

// runSessions drives every account's session concurrently and returns once
// all of them have returned, with the first non-nil error (each session
// already retries its own ticks; a returned error here means that one
// session ended, e.g. on a Fatal-class failure, while the other sessions
// keep running, per spec §7).
func runSessions(ctx context.Context, sessions []*session.Session, logger *slog.Logger) error {
	errCh := make(chan error, len(sessions))

	for _, s := range sessions {
		go func(s *session.Session) {
			errCh <- s.Run(ctx)
		}(s)
	}

	var firstErr error

	for range sessions {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			logger.Error("session terminated", slog.Any("error", err))
		}
	}

	return firstErr
}
