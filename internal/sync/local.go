package sync

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// localFSPath maps a Path's logical name onto a real filesystem location
// under root.
func localFSPath(root string, p Path) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(p.Name, "/")))
}

// LocalInfo stats one Path on the local filesystem. A directory's Size is
// its immediate, non-hidden, non-stale child count (spec §3 "size: ...
// child count for directories").
func LocalInfo(root string, p Path) (FileInfo, error) {
	fsPath := localFSPath(root, p)

	st, err := os.Lstat(fsPath)
	if os.IsNotExist(err) {
		return FileInfo{Kind: KindAbsent}, nil
	}

	if err != nil {
		return FileInfo{}, fmt.Errorf("sync: stat %s: %w", fsPath, err)
	}

	if st.IsDir() {
		entries, err := visibleEntries(fsPath)
		if err != nil {
			return FileInfo{}, err
		}

		return FileInfo{
			Kind:     KindDirectory,
			Modified: st.ModTime().UTC().Truncate(time.Second),
			Size:     int64(len(entries)),
		}, nil
	}

	return FileInfo{
		Kind:     KindFile,
		Modified: st.ModTime().UTC().Truncate(time.Second),
		Size:     st.Size(),
	}, nil
}

// visibleEntries lists a directory's children, skipping dotfiles and
// deleting — as a side effect — any stale transfer temp file it encounters
// (spec §4.4 "skip entries starting with '.'; if an entry matches the
// temporary-file prefixes, delete it as stale").
//
// Temp siblings are themselves dotfiles, so this single pass both filters
// them out of the listing and reclaims them; no separate sweep is needed.
func visibleEntries(dir string) ([]string, error) {
	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sync: reading %s: %w", dir, err)
	}

	var names []string

	for _, entry := range raw {
		name := entry.Name()

		if isStaleTemp(name) {
			_ = os.RemoveAll(filepath.Join(dir, name))
			continue
		}

		if strings.HasPrefix(name, ".") {
			continue
		}

		names = append(names, name)
	}

	return names, nil
}

// sweepStaleTemps removes every leftover transfer temp file under root in
// one walk. No session start-up path calls it; stale temp files are
// otherwise reclaimed lazily by visibleEntries as each directory is listed.
func sweepStaleTemps(root string, logger *slog.Logger) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // best-effort sweep, a read error here is not fatal
		}

		if isStaleTemp(d.Name()) {
			if rmErr := os.Remove(path); rmErr != nil {
				logger.Warn("failed to remove stale temp file", slog.String("path", path), slog.Any("error", rmErr))
			}
		}

		return nil
	})
}
