// Package sync implements the per-account reconciliation engine: the
// three-way comparison between local filesystem, remote store, and durable
// cache, and the actions that bring two sides into agreement.
package sync

import (
	"strings"
	"time"

	"github.com/loxsync/agent/internal/keyring"
)

// Kind classifies what a source reports for a given Path.
type Kind int

// Kinds a FileInfo may report. KindAbsent means the source has no entry.
const (
	KindAbsent Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "absent"
	}
}

// FileInfo is the uniform record produced by any of the three sources
// (local, remote, cached) for one Path.
type FileInfo struct {
	Kind     Kind
	Modified time.Time // UTC, truncated to whole seconds; zero value when Kind is absent
	Size     int64     // byte length for files, child count for directories
	HasKeys  bool      // remote directories only: an AES folder key is attached
}

// Absent reports whether this FileInfo represents "no such entry".
func (f FileInfo) Absent() bool { return f.Kind == KindAbsent }

// truncatedModified returns Modified truncated to whole-second resolution,
// matching invariant 1: comparisons never see sub-second jitter.
func (f FileInfo) truncatedModified() time.Time {
	return f.Modified.Truncate(time.Second)
}

// Path is a forward-slash-rooted logical name together with the AES folder
// key handle inherited from the nearest enclosing encrypted folder, if any.
// Encrypted-ness is a property of the subtree, not of one file: a Path's Key
// is copied to every child unchanged as the reconciler walks down.
type Path struct {
	Name string
	Key  *keyring.FolderKey // nil for unencrypted subtrees
}

// Root returns the Path for the account's synchronization root: the name
// "/" and no inherited key.
func Root() Path {
	return Path{Name: "/"}
}

// Child returns the Path for a named child of p, inheriting p's key.
func Child(p Path, name string) Path {
	return Path{Name: joinPath(p.Name, name), Key: p.Key}
}

// WithKey returns a copy of p carrying key as its encrypted-subtree handle.
// Used by the upload action when it mints a new folder key.
func (p Path) WithKey(key *keyring.FolderKey) Path {
	p.Key = key
	return p
}

// Encrypted reports whether p descends from an encrypted folder.
func (p Path) Encrypted() bool { return p.Key != nil }

// Base returns the final path segment, e.g. "b.txt" for "/a/b.txt".
func (p Path) Base() string {
	trimmed := strings.TrimSuffix(p.Name, "/")

	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return trimmed
	}

	return trimmed[idx+1:]
}

// Dir returns the parent path segment, e.g. "/a" for "/a/b.txt".
func (p Path) Dir() string {
	trimmed := strings.TrimSuffix(p.Name, "/")

	idx := strings.LastIndexByte(trimmed, '/')
	if idx <= 0 {
		return "/"
	}

	return trimmed[:idx]
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}

	return strings.TrimSuffix(parent, "/") + "/" + name
}

// Action is the tag the Resolver selects for one Path (C6/C7).
type Action int

// The nine actions named in spec §4.5/§4.6, plus the two no-op
// terminal rows (strange, not_resolved) that the table also produces.
const (
	ActionSame Action = iota
	ActionWalk
	ActionUpdateCache
	ActionUpdateCacheThenWalk
	ActionDownload
	ActionUpload
	ActionDeleteLocal
	ActionDeleteRemote
	ActionConflict
	ActionStrange
	ActionNotResolved
)

func (a Action) String() string {
	switch a {
	case ActionSame:
		return "same"
	case ActionWalk:
		return "walk"
	case ActionUpdateCache:
		return "update_cache"
	case ActionUpdateCacheThenWalk:
		return "update_cache_then_walk"
	case ActionDownload:
		return "download"
	case ActionUpload:
		return "upload"
	case ActionDeleteLocal:
		return "delete_local"
	case ActionDeleteRemote:
		return "delete_remote"
	case ActionConflict:
		return "conflict"
	case ActionStrange:
		return "strange"
	default:
		return "not_resolved"
	}
}
