package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirOverrides(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/logux" {
		t.Fatalf("xdg: got %s", got)
	}

	t.Setenv(DataDirEnv, "/srv/logux")
	if got := DefaultDataDir(); got != "/srv/logux" {
		t.Fatalf("explicit: got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("expected ./data fallback, got %s", got)
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	t.Setenv("XDG_DATA_HOME", "")
	got := DefaultDataDir()
	if got != DefaultDataDir() {
		t.Fatalf("not deterministic")
	}
	if got == "./data" {
		return
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("expected absolute path, got %s", got)
	}
	if !strings.HasSuffix(strings.ToLower(got), "logux") {
		t.Fatalf("expected a logux directory, got %s", got)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cases := map[string]bool{
		dir:                    true,
		file:                   false,
		filepath.Join(dir, "x"): false,
	}
	for path, want := range cases {
		if got := isDir(path); got != want {
			t.Fatalf("isDir(%s) = %v want %v", path, got, want)
		}
	}
	if !isWritableDir(dir) {
		t.Fatalf("temp dir not writable")
	}
}
