// Package cache implements the durable "last-known-synced" store (C2):
// a crash-safe key→FileInfo map per account, guarded by two sentinels
// (the local sync root and the remote API version) so that a changed
// configuration invalidates stale state instead of silently misleading
// the resolver.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"
)

// Kind mirrors the three-state FileInfo.kind from the data model (absent,
// file, directory), scoped to this package so cache carries no dependency
// on the sync engine's types.
type Kind string

// Entry kinds as stored in the entries table.
const (
	KindAbsent    Kind = "absent"
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Entry is the cached record for one Path: the state observed after the
// most recent successful action on that path (invariant 2 of data-model §3).
type Entry struct {
	Kind     Kind
	Modified time.Time // UTC, truncated to whole seconds
	Size     int64
}

const (
	sentinelLocalDir = "local_dir"
	sentinelVersion  = "version"
)

// Cache is a durable, per-account key→Entry map with crash-safe writes.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// Open opens (creating if necessary) the cache database at dbPath and
// checks the local_dir/version sentinels against the current configuration.
// If either sentinel is absent (first open) it is written. If either
// disagrees with the current configuration, the entire cache is atomically
// cleared before the new sentinels are written — this is the only
// supported invalidation (data-model §3).
func Open(ctx context.Context, dbPath, localRoot, apiVersion string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set synchronous FULL: %w", err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{db: db, logger: logger}

	if err := c.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := c.checkSentinels(ctx, localRoot, apiVersion); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Cache) prepareStatements(ctx context.Context) error {
	var err error

	c.getStmt, err = c.db.PrepareContext(ctx, `SELECT kind, modified, size FROM entries WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("cache: prepare get: %w", err)
	}

	c.putStmt, err = c.db.PrepareContext(ctx, `
		INSERT INTO entries (path, kind, modified, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET kind = excluded.kind, modified = excluded.modified, size = excluded.size
	`)
	if err != nil {
		return fmt.Errorf("cache: prepare put: %w", err)
	}

	c.deleteStmt, err = c.db.PrepareContext(ctx, `DELETE FROM entries WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("cache: prepare delete: %w", err)
	}

	return nil
}

// checkSentinels implements the invalidation rule described in Cache.open
// (component design §4.2): if either sentinel disagrees with the current
// configuration, clear everything and write the new sentinels.
func (c *Cache) checkSentinels(ctx context.Context, localRoot, apiVersion string) error {
	storedDir, dirOK, err := c.sentinel(ctx, sentinelLocalDir)
	if err != nil {
		return err
	}

	storedVersion, versionOK, err := c.sentinel(ctx, sentinelVersion)
	if err != nil {
		return err
	}

	if dirOK && versionOK && storedDir == localRoot && storedVersion == apiVersion {
		return nil
	}

	if dirOK || versionOK {
		c.logger.Warn("cache sentinel mismatch, clearing cache",
			slog.String("stored_local_dir", storedDir),
			slog.String("current_local_dir", localRoot),
			slog.String("stored_version", storedVersion),
			slog.String("current_version", apiVersion),
		)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin invalidation tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("cache: clear entries: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sentinels (key, value) VALUES (?, ?), (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, sentinelLocalDir, localRoot, sentinelVersion, apiVersion); err != nil {
		return fmt.Errorf("cache: write sentinels: %w", err)
	}

	return tx.Commit()
}

func (c *Cache) sentinel(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := c.db.QueryRowContext(ctx, `SELECT value FROM sentinels WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("cache: read sentinel %s: %w", key, err)
	}

	return value, true, nil
}

// Get returns the cached entry for path. The zero Entry with ok=false
// means the path has no cache entry, equivalent to FileInfo{kind: absent}.
func (c *Cache) Get(ctx context.Context, path string) (Entry, bool, error) {
	var (
		kind     string
		modified int64
		size     int64
	)

	err := c.getStmt.QueryRowContext(ctx, path).Scan(&kind, &modified, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}

	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: get %s: %w", path, err)
	}

	return Entry{
		Kind:     Kind(kind),
		Modified: time.Unix(modified, 0).UTC(),
		Size:     size,
	}, true, nil
}

// Put writes (creates or overwrites) the cache entry for path. The write is
// flushed before returning, per the "cache write last" ordering invariant.
func (c *Cache) Put(ctx context.Context, path string, e Entry) error {
	_, err := c.putStmt.ExecContext(ctx, path, string(e.Kind), e.Modified.UTC().Unix(), e.Size)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", path, err)
	}

	return nil
}

// Delete removes the cache entry for path. Deleting an absent key is a
// no-op, not an error (component design §4.2).
func (c *Cache) Delete(ctx context.Context, path string) error {
	_, err := c.deleteStmt.ExecContext(ctx, path)
	if err != nil {
		return fmt.Errorf("cache: delete %s: %w", path, err)
	}

	return nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
