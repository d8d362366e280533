package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/loxsync/agent/internal/cache"
)

func newTestExecutor(t *testing.T) (*Executor, *fakeRemoteClient, *fakeCacheStore, string) {
	t.Helper()

	root := t.TempDir()
	client := newFakeRemoteClient()
	store := newFakeCacheStore()
	reconciler := NewReconciler(root, client, nil)
	exec := NewExecutor(root, client, store, fakeKeyUnwrapper{}, reconciler, false, nil)

	return exec, client, store, root
}

func TestExecutor_Gather_AllThreeAbsent(t *testing.T) {
	exec, _, _, _ := newTestExecutor(t)

	triple, err := exec.Gather(context.Background(), Child(Root(), "missing.txt"))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	if !triple.Local.Absent() || !triple.Remote.Absent() || !triple.Cached.Absent() {
		t.Errorf("expected all-absent triple, got %+v", triple)
	}
}

func TestExecutor_Gather_ReadsCachedEntry(t *testing.T) {
	exec, _, store, _ := newTestExecutor(t)

	p := Child(Root(), "a.txt")
	store.entries[p.Name] = cache.Entry{Kind: cache.KindFile, Size: 5}

	triple, err := exec.Gather(context.Background(), p)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	if triple.Cached.Kind != KindFile || triple.Cached.Size != 5 {
		t.Errorf("got cached %+v, want file size 5", triple.Cached)
	}
}

func TestExecutor_Dispatch_Same_IsNoop(t *testing.T) {
	exec, client, _, _ := newTestExecutor(t)

	if err := exec.Dispatch(context.Background(), NewQueue(), Root(), ActionSame, Triple{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(client.deleted) != 0 || len(client.uploaded) != 0 {
		t.Error("ActionSame must not touch the remote client")
	}
}

func TestExecutor_Dispatch_UpdateCache_WritesFromLocal(t *testing.T) {
	exec, _, store, root := newTestExecutor(t)

	p := Child(Root(), "a.txt")
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	local, err := LocalInfo(root, p)
	if err != nil {
		t.Fatalf("LocalInfo: %v", err)
	}

	if err := exec.Dispatch(context.Background(), NewQueue(), p, ActionUpdateCache, Triple{Local: local}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	entry, ok := store.entries[p.Name]
	if !ok {
		t.Fatal("expected a cache entry to be written")
	}

	if entry.Size != 5 {
		t.Errorf("cache entry size = %d, want 5", entry.Size)
	}
}

func TestExecutor_Dispatch_UpdateCache_DeletesWhenLocalAbsent(t *testing.T) {
	exec, _, store, _ := newTestExecutor(t)

	p := Child(Root(), "gone.txt")
	store.entries[p.Name] = cache.Entry{Kind: cache.KindFile, Size: 1}

	if err := exec.Dispatch(context.Background(), NewQueue(), p, ActionUpdateCache, Triple{Local: absent}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if _, ok := store.entries[p.Name]; ok {
		t.Error("expected cache entry to be deleted when local is absent")
	}
}

func TestExecutor_Dispatch_StrangeAndNotResolved_AreNoops(t *testing.T) {
	exec, client, store, _ := newTestExecutor(t)

	for _, action := range []Action{ActionStrange, ActionNotResolved} {
		if err := exec.Dispatch(context.Background(), NewQueue(), Root(), action, Triple{}); err != nil {
			t.Errorf("Dispatch(%v): %v", action, err)
		}
	}

	if len(client.deleted) != 0 || len(store.entries) != 0 {
		t.Error("strange/not_resolved actions must not mutate remote or cache")
	}
}

func TestExecutor_Dispatch_UnknownAction_Errors(t *testing.T) {
	exec, _, _, _ := newTestExecutor(t)

	if err := exec.Dispatch(context.Background(), NewQueue(), Root(), Action(999), Triple{}); err == nil {
		t.Error("expected an error for an unrecognized action")
	}
}
