package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loxsync/agent/internal/remote"
)

func TestExecutor_Conflict_PreservesLocalBytesAndAdoptsRemote(t *testing.T) {
	exec, client, _, root := newTestExecutor(t)

	p := Child(Root(), "notes.txt")
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("local divergent version"), 0o644); err != nil {
		t.Fatalf("seed local file: %v", err)
	}

	modified := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	client.meta[p.Name] = &remote.ItemMeta{IsDir: false, Size: 20, ModifiedAt: modified}
	client.content[p.Name] = []byte("remote canonical version")

	if err := exec.conflict(context.Background(), NewQueue(), p); err != nil {
		t.Fatalf("conflict: %v", err)
	}

	canonical, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	if err != nil {
		t.Fatalf("reading canonical file: %v", err)
	}

	if string(canonical) != "remote canonical version" {
		t.Errorf("canonical content = %q, want remote version", canonical)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	var siblingName string

	for _, e := range entries {
		if e.Name() != "notes.txt" {
			siblingName = e.Name()
		}
	}

	if siblingName == "" {
		t.Fatal("expected a conflict sibling file to exist")
	}

	if !strings.Contains(siblingName, "_conflict_") {
		t.Errorf("sibling name %q lacks conflict marker", siblingName)
	}

	siblingContent, err := os.ReadFile(filepath.Join(root, siblingName))
	if err != nil {
		t.Fatalf("reading conflict sibling: %v", err)
	}

	if string(siblingContent) != "local divergent version" {
		t.Errorf("sibling content = %q, want preserved local version", siblingContent)
	}

	siblingPath := "/" + siblingName
	if string(client.uploaded[siblingPath]) != "local divergent version" {
		t.Errorf("expected the conflict sibling to be uploaded under its own name, got %v", client.uploaded)
	}
}
