package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got := expandTilde("~/lox-data")
	want := filepath.Join(home, "lox-data")

	if got != want {
		t.Errorf("expandTilde() = %q, want %q", got, want)
	}

	if got := expandTilde("/absolute/path"); got != "/absolute/path" {
		t.Errorf("expandTilde() altered an absolute path: %q", got)
	}
}

func TestDefaultConfigPath_EndsInConfigFileName(t *testing.T) {
	if got := DefaultConfigPath(); filepath.Base(got) != configFileName {
		t.Errorf("DefaultConfigPath() = %q, want basename %q", got, configFileName)
	}
}

func TestAccountCacheDir_IncludesAccountName(t *testing.T) {
	got := AccountCacheDir("work")
	if filepath.Base(got) != "work" {
		t.Errorf("AccountCacheDir() = %q, want basename %q", got, "work")
	}
}
