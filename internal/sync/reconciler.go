package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"golang.org/x/text/unicode/norm"

	"github.com/loxsync/agent/internal/remote"
)

// MetaClient is the subset of the remote client the Reconciler needs,
// defined at the consumer per "accept interfaces, return structs".
type MetaClient interface {
	Meta(ctx context.Context, path string) (*remote.ItemMeta, error)
}

// Reconciler implements C5: for one Path it lists both sides' children,
// unions the names, and pushes each union member onto the work queue.
type Reconciler struct {
	localRoot string
	client    MetaClient
	logger    *slog.Logger
}

// NewReconciler constructs a Reconciler rooted at localRoot.
func NewReconciler(localRoot string, client MetaClient, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{localRoot: localRoot, client: client, logger: logger}
}

// Reconcile lists local and remote children of p and pushes the union onto
// queue as child Paths inheriting p's key (spec §4.4).
//
// If either side reports "not a directory", Reconcile returns an error
// wrapping remote.ErrProtocol: the caller should log it and skip this
// subtree without stopping the tick (spec §4.4, §7).
func (r *Reconciler) Reconcile(ctx context.Context, queue *Queue, p Path) error {
	localNames, err := visibleEntries(localFSPath(r.localRoot, p))
	if errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("sync: local %s is not a directory: %w", p.Name, remote.ErrProtocol)
	}

	if err != nil {
		return fmt.Errorf("sync: listing local children of %s: %w", p.Name, err)
	}

	remoteMeta, err := r.client.Meta(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("sync: fetching remote listing of %s: %w", p.Name, err)
	}

	if remoteMeta != nil && !remoteMeta.IsDir {
		return fmt.Errorf("sync: remote %s is not a directory: %w", p.Name, remote.ErrProtocol)
	}

	union := make(map[string]struct{}, len(localNames))

	for _, name := range localNames {
		union[normalizeName(name)] = struct{}{}
	}

	if remoteMeta != nil {
		for _, child := range remoteMeta.Children {
			union[normalizeName(childBaseName(child.Path))] = struct{}{}
		}
	}

	for name := range union {
		queue.Push(Child(p, name))
	}

	return nil
}

// childBaseName extracts the final path segment from a remote child's
// fully-qualified path as returned by meta's children listing.
func childBaseName(fullPath string) string {
	p := Path{Name: fullPath}
	return p.Base()
}

// normalizeName canonicalizes a filename to NFC before it is used as a
// union key, so a locally NFD-decomposed name (as macOS's filesystem
// produces) and its NFC-composed remote counterpart collapse into the same
// union member instead of queuing as two distinct, permanently conflicting
// paths.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// IsSkippableSubtree reports whether err is the non-fatal "not a
// directory" condition Reconcile raises, which should skip this subtree
// rather than abort the tick.
func IsSkippableSubtree(err error) bool {
	return errors.Is(err, remote.ErrProtocol)
}
