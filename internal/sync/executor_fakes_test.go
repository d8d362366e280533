package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/loxsync/agent/internal/cache"
	"github.com/loxsync/agent/internal/remote"
)

// fakeRemoteClient is an in-memory stand-in for RemoteClient, keyed by
// logical path. It records Upload/Delete/CreateFolder calls so tests can
// assert on ordering and content without a network.
type fakeRemoteClient struct {
	mu          sync.Mutex
	meta        map[string]*remote.ItemMeta
	content     map[string][]byte
	keys        map[string]remote.KeyPair
	invitations []remote.Invitation
	revoked     []string
	deleted     []string
	uploaded    map[string][]byte
	created     []string
}

func newFakeRemoteClient() *fakeRemoteClient {
	return &fakeRemoteClient{
		meta:     map[string]*remote.ItemMeta{},
		content:  map[string][]byte{},
		keys:     map[string]remote.KeyPair{},
		uploaded: map[string][]byte{},
	}
}

func (f *fakeRemoteClient) Meta(_ context.Context, path string) (*remote.ItemMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.meta[path], nil
}

func (f *fakeRemoteClient) Download(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, ok := f.content[path]
	if !ok {
		return nil, fmt.Errorf("fake remote: no content for %s", path)
	}

	return content, nil
}

func (f *fakeRemoteClient) Upload(_ context.Context, path, _ string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploaded[path] = content
	f.content[path] = content
	f.meta[path] = &remote.ItemMeta{IsDir: false, Size: int64(len(content))}

	return nil
}

func (f *fakeRemoteClient) CreateFolder(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, path)
	f.meta[path] = &remote.ItemMeta{IsDir: true}

	return nil
}

func (f *fakeRemoteClient) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, path)
	delete(f.meta, path)

	return nil
}

func (f *fakeRemoteClient) GetKey(_ context.Context, path string) (remote.KeyPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.keys[path], nil
}

func (f *fakeRemoteClient) SetKey(_ context.Context, path, wrappedKey, wrappedIV, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keys[path] = remote.KeyPair{Key: wrappedKey, IV: wrappedIV}

	return nil
}

func (f *fakeRemoteClient) Invitations(_ context.Context) ([]remote.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.invitations, nil
}

func (f *fakeRemoteClient) InviteRevoke(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.revoked = append(f.revoked, ref)

	return nil
}

// fakeCacheStore is an in-memory CacheStore.
type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: map[string]cache.Entry{}}
}

func (f *fakeCacheStore) Get(_ context.Context, path string) (cache.Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[path]

	return e, ok, nil
}

func (f *fakeCacheStore) Put(_ context.Context, path string, e cache.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[path] = e

	return nil
}

func (f *fakeCacheStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.entries, path)

	return nil
}

// fakeKeyUnwrapper is a no-op passthrough KeyUnwrapper: Wrap/Unwrap are
// identity so tests can assert on the bytes that flow through without
// exercising real crypto (that belongs to the keyring package's own tests).
type fakeKeyUnwrapper struct{}

func (fakeKeyUnwrapper) Open(_ context.Context) error { return nil }

func (fakeKeyUnwrapper) Wrap(data []byte) (string, error) {
	return string(data), nil
}

func (fakeKeyUnwrapper) Unwrap(wrapped string) ([]byte, error) {
	return []byte(wrapped), nil
}
