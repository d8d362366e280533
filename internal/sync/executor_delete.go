package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// deleteLocal implements spec §4.6 "delete_local": recursive delete of the
// local subtree, then drop the cache entry for every removed name.
func (e *Executor) deleteLocal(ctx context.Context, p Path) error {
	fsPath := localFSPath(e.localRoot, p)

	names, err := namesUnder(fsPath, p.Name)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.RemoveAll(fsPath); err != nil {
		return fmt.Errorf("sync: deleting local %s: %w", p.Name, err)
	}

	for _, name := range names {
		if err := e.cache.Delete(ctx, name); err != nil {
			return err
		}
	}

	return e.cache.Delete(ctx, p.Name)
}

// namesUnder walks fsPath and returns the logical (cache-key) names of
// every entry beneath it, for cache cleanup after a recursive delete.
func namesUnder(fsPath, logicalRoot string) ([]string, error) {
	var names []string

	err := filepath.WalkDir(fsPath, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == fsPath {
			return nil
		}

		rel, relErr := filepath.Rel(fsPath, path)
		if relErr != nil {
			return relErr
		}

		names = append(names, joinPath(logicalRoot, filepath.ToSlash(rel)))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync: walking %s for cache cleanup: %w", fsPath, err)
	}

	return names, nil
}

// deleteRemote implements spec §4.6 "delete_remote": share roots are never
// destroyed, only the account's invitation to them is revoked; otherwise
// the subtree is walked so nested share roots are detected before the
// directory itself is deleted.
func (e *Executor) deleteRemote(ctx context.Context, p Path) error {
	meta, err := e.client.Meta(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("sync: fetching remote metadata for delete of %s: %w", p.Name, err)
	}

	if meta == nil {
		return e.cache.Delete(ctx, p.Name)
	}

	if meta.IsShare {
		return e.revokeShare(ctx, p)
	}

	if meta.IsDir {
		for _, child := range meta.Children {
			if err := e.deleteRemote(ctx, Child(p, childBaseName(child.Path))); err != nil {
				return err
			}
		}
	}

	if err := e.client.Delete(ctx, p.Name); err != nil {
		return fmt.Errorf("sync: deleting remote %s: %w", p.Name, err)
	}

	return e.cache.Delete(ctx, p.Name)
}

// revokeShare finds the invitation matching p and revokes it instead of
// deleting shared content other users still depend on.
func (e *Executor) revokeShare(ctx context.Context, p Path) error {
	invitations, err := e.client.Invitations(ctx)
	if err != nil {
		return fmt.Errorf("sync: listing invitations: %w", err)
	}

	for _, inv := range invitations {
		if inv.Share.Item.Path != p.Name {
			continue
		}

		if err := e.client.InviteRevoke(ctx, inv.ID); err != nil {
			return fmt.Errorf("sync: revoking invitation %s: %w", inv.ID, err)
		}

		return e.cache.Delete(ctx, p.Name)
	}

	e.logger.Warn("no matching invitation found for share root", slog.String("path", p.Name))

	return e.cache.Delete(ctx, p.Name)
}
