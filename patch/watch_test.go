package patch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnFileChange(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 1)
	w, err := NewWatcher(dir, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "lovely.toml"), []byte("[manifest]\npriority = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onStale to fire after a file write")
	}
}

func TestWatcherTracksNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 1)
	w, err := NewWatcher(dir, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	sub := filepath.Join(dir, "newmod")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onStale to fire after a subdirectory is created")
	}

	// Give the watcher a moment to register the new directory before
	// writing into it.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "lovely.toml"), []byte("[manifest]\npriority = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onStale to fire for a write inside the new subdirectory")
	}
}
