package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsLevelFile(t *testing.T) {
	tests := map[string]bool{
		"arena.lvl":        true,
		"maps/ARENA.LVL":   true,
		"arena.lvz":        false,
		"lvl":              false,
		"notes.lvl.backup": false,
	}
	for path, want := range tests {
		if got := IsLevelFile(path); got != want {
			t.Errorf("IsLevelFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatchDirectory(t *testing.T) {
	dir := t.TempDir()

	w, err := New(0, dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "arena.lvl"), []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-w.Events:
		if filepath.Base(path) != "arena.lvl" {
			t.Errorf("event for %s, want arena.lvl", path)
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for arena.lvl")
	}
}

func TestCloseEndsEvents(t *testing.T) {
	w, err := New(time.Second, t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	select {
	case _, ok := <-w.Events:
		if ok {
			t.Error("event received after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Events not closed")
	}
}
