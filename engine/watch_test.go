package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notebook.vnb")
	if err := os.WriteFile(path, []byte("let x = 1"), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	w, err := NewWatcherDebounce(path, 40*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to build watcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	// Several rapid writes within the debounce window must coalesce into a
	// single notification.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("let x = 2"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-w.Changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a change notification after the debounce window settled")
	}

	select {
	case <-w.Changed:
		t.Fatalf("expected the rapid writes to coalesce into exactly one notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherPausesOnRemovalAndResumes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notebook.vnb")
	if err := os.WriteFile(path, []byte("let x = 1"), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	w, err := NewWatcherDebounce(path, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to build watcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	select {
	case <-w.Changed:
		t.Fatalf("expected no notification while the file is absent")
	default:
	}

	if err := os.WriteFile(path, []byte("let x = 2"), 0o644); err != nil {
		t.Fatalf("recreate failed: %v", err)
	}

	select {
	case <-w.Changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the watcher to resume and notify on re-appearance")
	}
}
