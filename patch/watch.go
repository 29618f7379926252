package patch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a mod directory tree for filesystem changes and
// debounces bursts of events (editors and mod managers routinely rewrite
// several files back to back) into a single staleness notification, which
// the runtime façade uses to feed the host-callable reload_patches signal.
type Watcher struct {
	fsw      *fsnotify.Watcher
	modDir   string
	debounce time.Duration
	onStale  func()

	mu    sync.Mutex
	stale bool
	timer *time.Timer
}

// NewWatcher starts watching modDir and every directory beneath it.
// onStale is invoked at most once per debounce window after a write,
// create, remove or rename lands anywhere under modDir.
func NewWatcher(modDir string, onStale func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("patch: create watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, modDir: modDir, debounce: 250 * time.Millisecond, onStale: onStale}
	if err := w.addTree(modDir); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(p); err != nil {
				slog.Warn("patch watcher: failed to watch directory", "dir", p, "err", err)
			}
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("patch watcher error", "err", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				slog.Warn("patch watcher: failed to watch new directory", "dir", event.Name, "err", err)
			}
		}
	}

	w.mu.Lock()
	w.stale = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fireStale)
	w.mu.Unlock()
}

func (w *Watcher) fireStale() {
	w.mu.Lock()
	w.stale = false
	cb := w.onStale
	w.mu.Unlock()
	slog.Info("patch watcher: mod directory changed, marking catalog stale", "mod_dir", w.modDir)
	if cb != nil {
		cb()
	}
}

// Stale reports whether a change has landed since the last fired callback.
func (w *Watcher) Stale() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stale
}

// Close stops watching and releases the underlying OS resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
