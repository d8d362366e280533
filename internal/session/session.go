// Package session implements the per-account scheduling loop (C8): a
// periodic timer that drives one account's Reconciler/Executor pair
// through repeated ticks, classifying errors into the taxonomy from
// spec §7 and reporting status for the CLI's benefit.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/loxsync/agent/internal/remote"
	syncpkg "github.com/loxsync/agent/internal/sync"
)

// State is the coarse status a Session reports, surfaced by the CLI's
// status subcommand.
type State string

// States a Session cycles through (spec §4.7 "mark status").
const (
	StateRunning State = "running"
	StateWaiting State = "waiting"
	StateStopped State = "stopped"
)

// Status is a point-in-time snapshot of a Session's state.
type Status struct {
	State State
	Since time.Time
}

// minWarnInterval is the threshold below which a nonzero interval draws a
// warning (spec §4.7 "a warning is emitted if 0 < interval < 60s").
const minWarnInterval = 60 * time.Second

// Session owns one account's Reconciler/Executor/Cache/Keyring set and
// drives it on a periodic timer. Interval zero means "one pass then exit".
type Session struct {
	account    string
	root       syncpkg.Path
	interval   time.Duration
	reconciler *syncpkg.Reconciler
	executor   *syncpkg.Executor
	logger     *slog.Logger

	status atomic.Pointer[Status]
	cancel atomic.Bool
}

// New constructs a Session for one account.
func New(account string, interval time.Duration, reconciler *syncpkg.Reconciler, executor *syncpkg.Executor, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	if interval > 0 && interval < minWarnInterval {
		logger.Warn("sync interval is unusually short", slog.String("account", account), slog.Duration("interval", interval))
	}

	s := &Session{
		account:    account,
		root:       syncpkg.Root(),
		interval:   interval,
		reconciler: reconciler,
		executor:   executor,
		logger:     logger,
	}

	s.setStatus(StateWaiting)

	return s
}

// Status returns the most recently recorded status.
func (s *Session) Status() Status {
	return *s.status.Load()
}

// Cancel requests cooperative shutdown. It is checked at the top of the
// drain loop and on wakeup from the interval sleep (spec §4.7
// "Cancellation").
func (s *Session) Cancel() {
	s.cancel.Store(true)
}

func (s *Session) cancelled() bool {
	return s.cancel.Load()
}

func (s *Session) setStatus(state State) {
	s.status.Store(&Status{State: state, Since: time.Now().UTC()})
}

// Run drives ticks until interval elapses exactly once (interval == 0),
// the context is cancelled, Cancel is called, or a Fatal-class error
// terminates the session (spec §4.7).
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := s.tick(ctx); err != nil {
			if isFatal(err) {
				s.setStatus(StateStopped)
				return fmt.Errorf("session %s: fatal error: %w", s.account, err)
			}

			s.logger.Warn("tick aborted, will retry next interval", slog.String("account", s.account), slog.Any("error", err))
		}

		if s.interval == 0 {
			s.setStatus(StateStopped)
			return nil
		}

		if s.cancelled() || ctx.Err() != nil {
			s.setStatus(StateStopped)
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			s.setStatus(StateStopped)
			return ctx.Err()
		case <-time.After(s.interval):
		}

		if s.cancelled() {
			s.setStatus(StateStopped)
			return nil
		}
	}
}

// tick runs one reconcile/drain cycle (spec §4.7 steps 1-4).
func (s *Session) tick(ctx context.Context) error {
	s.setStatus(StateRunning)

	queue := syncpkg.NewQueue()
	if err := s.reconciler.Reconcile(ctx, queue, s.root); err != nil {
		if syncpkg.IsSkippableSubtree(err) {
			s.logger.Warn("root listing skipped", slog.String("account", s.account), slog.Any("error", err))
		} else {
			s.setStatus(StateWaiting)
			return err
		}
	}

	err := s.drain(ctx, queue)
	s.setStatus(StateWaiting)

	return err
}

// drain pops paths off queue, resolving and dispatching each in turn
// (spec §4.7 step 3). Protocol/NotFound-class failures are logged and
// skipped; everything else aborts the tick so the caller can classify it.
func (s *Session) drain(ctx context.Context, queue *syncpkg.Queue) error {
	for {
		if s.cancelled() || ctx.Err() != nil {
			return ctx.Err()
		}

		p, ok := queue.Pop()
		if !ok {
			return nil
		}

		if err := s.processOne(ctx, queue, p); err != nil {
			if isSkippable(err) {
				s.logger.Error("skipping path after classifiable error", slog.String("path", p.Name), slog.Any("error", err))
				continue
			}

			return err
		}
	}
}

func (s *Session) processOne(ctx context.Context, queue *syncpkg.Queue, p syncpkg.Path) error {
	triple, err := s.executor.Gather(ctx, p)
	if err != nil {
		return err
	}

	action := syncpkg.Resolve(triple.Local, triple.Remote, triple.Cached)

	return s.executor.Dispatch(ctx, queue, p, action, triple)
}

// isSkippable reports whether err is Protocol- or NotFound-class: log and
// move on to the next queued path (spec §7).
func isSkippable(err error) bool {
	return errors.Is(err, remote.ErrProtocol) || errors.Is(err, remote.ErrNotFound)
}

// isFatal reports whether err should terminate the session outright
// (spec §7 "Fatal": unknown auth scheme, repeated auth failure, unreadable
// keyring).
func isFatal(err error) bool {
	return errors.Is(err, remote.ErrFatal) || errors.Is(err, remote.ErrAuth)
}
