package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// conflict implements spec §4.6 "conflict": rename the local file to a
// conflict-tagged sibling, download the remote version over the original
// name, then upload the renamed sibling. The remote version ends up at the
// canonical path; the local divergent bytes survive under the sibling and
// are propagated to the server under their own name.
func (e *Executor) conflict(ctx context.Context, queue *Queue, p Path) error {
	fsPath := localFSPath(e.localRoot, p)
	dir := filepath.Dir(fsPath)

	conflictBase, err := conflictName(p.Base())
	if err != nil {
		return err
	}

	conflictFSPath := filepath.Join(dir, conflictBase)

	if err := os.Rename(fsPath, conflictFSPath); err != nil {
		return fmt.Errorf("sync: renaming %s to conflict sibling %s: %w", p.Name, conflictFSPath, err)
	}

	if err := e.download(ctx, queue, p); err != nil {
		return fmt.Errorf("sync: downloading remote version of %s over conflict: %w", p.Name, err)
	}

	conflictPath := Child(Path{Name: p.Dir(), Key: p.Key}, conflictBase)

	return e.uploadFile(ctx, conflictPath)
}
