package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/loxsync/agent/internal/config"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. This gives the engine time to drain in-flight
// actions on first signal, while allowing the user to force-quit if something
// hangs.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		// Wait for second signal — force exit.
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit",
				slog.String("signal", sig.String()),
			)
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}

// watchReload registers a SIGHUP handler that re-reads the config file from
// disk and publishes it through holder, so `loxsync config reload` (which
// delivers the signal via sendSIGHUP) refreshes the daemon's config without
// a restart. Sessions that are already running are not rebuilt and keep the
// account settings they started with. A reload that fails to parse is
// logged and discarded; the daemon keeps running on its last-good config.
func watchReload(ctx context.Context, holder *config.Holder, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			logger.Info("received SIGHUP, reloading config", slog.String("path", holder.Path()))

			cfg, err := config.LoadFile(holder.Path(), logger)
			if err != nil {
				logger.Error("config reload failed, keeping previous config", slog.Any("error", err))
				continue
			}

			holder.Update(cfg)
			logger.Info("config reloaded", slog.Int("account_count", len(cfg.Accounts)))
		case <-ctx.Done():
			return
		}
	}
}
