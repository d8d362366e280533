package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loxsync/agent/internal/cache"
	"github.com/loxsync/agent/internal/keyring"
	"github.com/loxsync/agent/internal/remote"
)

// RemoteClient is the subset of the remote facade the executor drives,
// defined at the consumer per "accept interfaces, return structs".
type RemoteClient interface {
	MetaClient
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path, contentType string, content []byte) error
	CreateFolder(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	GetKey(ctx context.Context, path string) (remote.KeyPair, error)
	SetKey(ctx context.Context, path, wrappedKey, wrappedIV, user string) error
	Invitations(ctx context.Context) ([]remote.Invitation, error)
	InviteRevoke(ctx context.Context, ref string) error
}

// CacheStore is the subset of the durable cache the executor reads and
// writes; it speaks in cache.Entry so the engine never depends on the
// cache package's storage details beyond that value type.
type CacheStore interface {
	Get(ctx context.Context, path string) (cache.Entry, bool, error)
	Put(ctx context.Context, path string, e cache.Entry) error
	Delete(ctx context.Context, path string) error
}

// KeyUnwrapper is the subset of the account Keyring the executor needs to
// wrap a new folder key for the account's own user (spec §4.6 "upload").
type KeyUnwrapper interface {
	Open(ctx context.Context) error
	Wrap(data []byte) (string, error)
	Unwrap(wrapped string) ([]byte, error)
}

// Executor implements C7: the actions that mutate the local
// filesystem, the remote store, and the cache in response to one
// Resolver decision.
type Executor struct {
	localRoot      string
	client         RemoteClient
	cache          CacheStore
	keys           KeyUnwrapper
	reconciler     *Reconciler
	encryptDefault bool
	logger         *slog.Logger
}

// NewExecutor constructs an Executor for one account's tick.
// encryptDefault mirrors the account configuration's "new top-level
// directories are encrypted by default" setting (spec §4.6 "upload").
func NewExecutor(localRoot string, client RemoteClient, store CacheStore, keys KeyUnwrapper, reconciler *Reconciler, encryptDefault bool, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		localRoot:      localRoot,
		client:         client,
		cache:          store,
		keys:           keys,
		reconciler:     reconciler,
		encryptDefault: encryptDefault,
		logger:         logger,
	}
}

// Triple is the three-source FileInfo bundle the drain loop gathers for
// one Path before calling Resolve.
type Triple struct {
	Local, Remote, Cached FileInfo
}

// Gather reads the local, remote, and cached FileInfo for p.
func (e *Executor) Gather(ctx context.Context, p Path) (Triple, error) {
	local, err := LocalInfo(e.localRoot, p)
	if err != nil {
		return Triple{}, err
	}

	remoteInfo, err := e.remoteInfo(ctx, p)
	if err != nil {
		return Triple{}, err
	}

	cached, err := e.cachedInfo(ctx, p)
	if err != nil {
		return Triple{}, err
	}

	return Triple{Local: local, Remote: remoteInfo, Cached: cached}, nil
}

func (e *Executor) remoteInfo(ctx context.Context, p Path) (FileInfo, error) {
	meta, err := e.client.Meta(ctx, p.Name)
	if err != nil {
		return FileInfo{}, fmt.Errorf("sync: fetching remote metadata for %s: %w", p.Name, err)
	}

	if meta == nil {
		return FileInfo{Kind: KindAbsent}, nil
	}

	if meta.IsDir {
		return FileInfo{
			Kind:     KindDirectory,
			Modified: meta.ModifiedAt.UTC().Truncate(time.Second),
			Size:     int64(len(meta.Children)),
			HasKeys:  meta.HasKeys,
		}, nil
	}

	return FileInfo{
		Kind:     KindFile,
		Modified: meta.ModifiedAt.UTC().Truncate(time.Second),
		Size:     meta.Size,
	}, nil
}

func (e *Executor) cachedInfo(ctx context.Context, p Path) (FileInfo, error) {
	entry, ok, err := e.cache.Get(ctx, p.Name)
	if err != nil {
		return FileInfo{}, fmt.Errorf("sync: reading cache entry for %s: %w", p.Name, err)
	}

	if !ok {
		return FileInfo{Kind: KindAbsent}, nil
	}

	return FileInfo{
		Kind:     kindFromCache(entry.Kind),
		Modified: entry.Modified,
		Size:     entry.Size,
	}, nil
}

// Dispatch executes the action Resolve selected for p given triple,
// possibly pushing children of a directory onto queue (spec §4.6).
//
// Ordering invariant: any action that mutates both sides completes the
// remote mutation, then the local mutation, then the cache write. A failed
// step must not write the cache, so the next tick re-enters the same row.
func (e *Executor) Dispatch(ctx context.Context, queue *Queue, p Path, action Action, triple Triple) error {
	switch action {
	case ActionSame:
		return nil

	case ActionWalk:
		return e.walk(ctx, queue, p)

	case ActionUpdateCache:
		return e.updateCache(ctx, p, triple.Local)

	case ActionUpdateCacheThenWalk:
		if err := e.updateCache(ctx, p, triple.Local); err != nil {
			return err
		}

		return e.walk(ctx, queue, p)

	case ActionDownload:
		return e.download(ctx, queue, p)

	case ActionUpload:
		return e.upload(ctx, queue, p)

	case ActionDeleteLocal:
		return e.deleteLocal(ctx, p)

	case ActionDeleteRemote:
		return e.deleteRemote(ctx, p)

	case ActionConflict:
		return e.conflict(ctx, queue, p)

	case ActionStrange, ActionNotResolved:
		e.logger.Error("resolver could not classify path", slog.String("path", p.Name), slog.String("action", action.String()))
		return nil

	default:
		return fmt.Errorf("sync: unknown action %v for %s", action, p.Name)
	}
}

func (e *Executor) walk(ctx context.Context, queue *Queue, p Path) error {
	if err := e.reconciler.Reconcile(ctx, queue, p); err != nil {
		if IsSkippableSubtree(err) {
			e.logger.Warn("skipping subtree", slog.String("path", p.Name), slog.Any("error", err))
			return nil
		}

		return err
	}

	return nil
}

// updateCache overwrites the cache entry for p from local, or deletes it
// when local is absent (spec §4.6 "update_cache").
func (e *Executor) updateCache(ctx context.Context, p Path, local FileInfo) error {
	if local.Absent() {
		return e.cache.Delete(ctx, p.Name)
	}

	return e.cache.Put(ctx, p.Name, cache.Entry{
		Kind:     kindToCache(local.Kind),
		Modified: local.truncatedModified(),
		Size:     local.Size,
	})
}

func kindFromCache(k cache.Kind) Kind {
	switch k {
	case cache.KindFile:
		return KindFile
	case cache.KindDirectory:
		return KindDirectory
	default:
		return KindAbsent
	}
}

func kindToCache(k Kind) cache.Kind {
	switch k {
	case KindFile:
		return cache.KindFile
	case KindDirectory:
		return cache.KindDirectory
	default:
		return cache.KindAbsent
	}
}

// mintFolderKey generates and publishes a new AES folder key for a
// newly-created top-level encrypted directory, wrapping it for the
// account's own user (spec §4.6 "upload").
func (e *Executor) mintFolderKey(ctx context.Context, p Path) (*keyring.FolderKey, error) {
	if err := e.keys.Open(ctx); err != nil {
		return nil, fmt.Errorf("sync: opening keyring: %w", err)
	}

	fk, err := keyring.NewFolderKey()
	if err != nil {
		return nil, err
	}

	wrappedKey, err := e.keys.Wrap(fk.Key[:])
	if err != nil {
		return nil, fmt.Errorf("sync: wrapping folder key: %w", err)
	}

	wrappedIV, err := e.keys.Wrap(fk.IV[:])
	if err != nil {
		return nil, fmt.Errorf("sync: wrapping folder iv: %w", err)
	}

	if err := e.client.SetKey(ctx, p.Name, wrappedKey, wrappedIV, ""); err != nil {
		return nil, fmt.Errorf("sync: publishing folder key: %w", err)
	}

	return &fk, nil
}

// resolveFolderKey fetches and unwraps the AES key/IV for an already
// encrypted folder, used before downloading or encrypting into it.
func (e *Executor) resolveFolderKey(ctx context.Context, p Path) (*keyring.FolderKey, error) {
	if p.Key != nil {
		return p.Key, nil
	}

	if err := e.keys.Open(ctx); err != nil {
		return nil, fmt.Errorf("sync: opening keyring: %w", err)
	}

	pair, err := e.client.GetKey(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("sync: fetching folder key: %w", err)
	}

	keyBytes, err := e.keys.Unwrap(pair.Key)
	if err != nil {
		return nil, fmt.Errorf("sync: unwrapping folder key: %w", err)
	}

	ivBytes, err := e.keys.Unwrap(pair.IV)
	if err != nil {
		return nil, fmt.Errorf("sync: unwrapping folder iv: %w", err)
	}

	var fk keyring.FolderKey
	copy(fk.Key[:], keyBytes)
	copy(fk.IV[:], ivBytes)

	return &fk, nil
}
