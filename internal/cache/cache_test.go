package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, localRoot, apiVersion string) (*Cache, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(context.Background(), dbPath, localRoot, apiVersion, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	return c, dbPath
}

func TestCache_GetOnEmptyCacheIsAbsent(t *testing.T) {
	c, _ := openTestCache(t, "/home/alice/lox", "v1")

	entry, ok, err := c.Get(context.Background(), "/notes.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Entry{}, entry)
}

func TestCache_PutThenGetRoundTrips(t *testing.T) {
	c, _ := openTestCache(t, "/home/alice/lox", "v1")

	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := Entry{Kind: KindFile, Modified: modified, Size: 42}

	require.NoError(t, c.Put(context.Background(), "/notes.txt", want))

	got, ok, err := c.Get(context.Background(), "/notes.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Kind, got.Kind)
	assert.True(t, want.Modified.Equal(got.Modified))
	assert.Equal(t, want.Size, got.Size)
}

func TestCache_PutOverwritesExistingEntry(t *testing.T) {
	c, _ := openTestCache(t, "/home/alice/lox", "v1")

	ctx := context.Background()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Put(ctx, "/a.txt", Entry{Kind: KindFile, Modified: first, Size: 1}))
	require.NoError(t, c.Put(ctx, "/a.txt", Entry{Kind: KindFile, Modified: second, Size: 2}))

	got, ok, err := c.Get(ctx, "/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Size)
	assert.True(t, second.Equal(got.Modified))
}

func TestCache_DeleteRemovesEntry(t *testing.T) {
	c, _ := openTestCache(t, "/home/alice/lox", "v1")

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "/a.txt", Entry{Kind: KindFile, Size: 1}))
	require.NoError(t, c.Delete(ctx, "/a.txt"))

	_, ok, err := c.Get(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_DeleteOfAbsentKeyIsNotAnError(t *testing.T) {
	c, _ := openTestCache(t, "/home/alice/lox", "v1")

	assert.NoError(t, c.Delete(context.Background(), "/never-existed.txt"))
}

func TestCache_SentinelMismatchOnLocalDirClearsCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c1, err := Open(ctx, dbPath, "/home/alice/lox", "v1", nil)
	require.NoError(t, err)
	require.NoError(t, c1.Put(ctx, "/a.txt", Entry{Kind: KindFile, Size: 1}))
	require.NoError(t, c1.Close())

	c2, err := Open(ctx, dbPath, "/home/alice/lox-moved", "v1", nil)
	require.NoError(t, err)
	defer c2.Close()

	_, ok, err := c2.Get(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok, "changing local_dir must invalidate the entire cache")
}

func TestCache_SentinelMismatchOnAPIVersionClearsCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c1, err := Open(ctx, dbPath, "/home/alice/lox", "v1", nil)
	require.NoError(t, err)
	require.NoError(t, c1.Put(ctx, "/a.txt", Entry{Kind: KindFile, Size: 1}))
	require.NoError(t, c1.Close())

	c2, err := Open(ctx, dbPath, "/home/alice/lox", "v2", nil)
	require.NoError(t, err)
	defer c2.Close()

	_, ok, err := c2.Get(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok, "changing the API version must invalidate the entire cache")
}

func TestCache_ReopenWithMatchingSentinelsPreservesEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c1, err := Open(ctx, dbPath, "/home/alice/lox", "v1", nil)
	require.NoError(t, err)
	require.NoError(t, c1.Put(ctx, "/a.txt", Entry{Kind: KindFile, Size: 1}))
	require.NoError(t, c1.Close())

	c2, err := Open(ctx, dbPath, "/home/alice/lox", "v1", nil)
	require.NoError(t, err)
	defer c2.Close()

	entry, ok, err := c2.Get(ctx, "/a.txt")
	require.NoError(t, err)
	require.True(t, ok, "matching sentinels on reopen must preserve existing entries")
	assert.Equal(t, int64(1), entry.Size)
}
