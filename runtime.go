// Package lovely is the runtime façade: it owns the current PatchTable,
// the shared variable map, and the optional mod-directory watcher, and is
// the single entry point the interception shim and the host-visible
// metadata module call into.
package lovely

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethangreen-dev/lovely-injector/dump"
	"github.com/ethangreen-dev/lovely-injector/hostlua"
	"github.com/ethangreen-dev/lovely-injector/patch"
	"github.com/ethangreen-dev/lovely-injector/rewrite"
)

// Version and Repo are surfaced through the host-visible metadata module.
const (
	Version = "0.1.0"
	Repo    = "https://github.com/ethangreen-dev/lovely-injector"
)

// Runtime holds the engine's mutable state: the active PatchTable (rebuilt
// wholesale on reload, behind tableMu) and the shared var map (mutated
// field-at-a-time by host get/set/remove calls, behind its own varsMu).
// The two locks are independent: a var read never waits on a table
// rebuild and vice versa.
type Runtime struct {
	ModDir  string
	DumpAll bool
	Vanilla bool

	tableMu sync.RWMutex
	table   *patch.Table

	varsMu sync.RWMutex

	watcher *patch.Watcher
}

// Init builds the initial PatchTable (or an empty vanilla one when vanilla
// is set) rooted at modDir. It never starts a watcher on its own — callers
// that want live-reload notifications call WatchForChanges explicitly.
func Init(modDir string, vanilla, dumpAll bool) (*Runtime, error) {
	r := &Runtime{ModDir: modDir, DumpAll: dumpAll, Vanilla: vanilla}

	if vanilla {
		r.table = patch.NewTable(modDir)
		return r, nil
	}

	table, err := patch.Load(modDir)
	if err != nil {
		return nil, fmt.Errorf("lovely: init: %w", err)
	}
	r.table = table
	return r, nil
}

// WatchForChanges starts a background fsnotify watcher over the mod
// directory; onStale is invoked (debounced) whenever the tree changes.
// Typical callers just log the notification and let the host call
// reload_patches() when it's ready to pick the change up.
func (r *Runtime) WatchForChanges(onStale func()) error {
	w, err := patch.NewWatcher(r.ModDir, onStale)
	if err != nil {
		return fmt.Errorf("lovely: watch: %w", err)
	}
	r.watcher = w
	return nil
}

// Close releases the watcher, if one was started.
func (r *Runtime) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

// Reload rebuilds the PatchTable from disk and, on success, atomically
// replaces the current one under a write lock. On failure the current
// table is left untouched and the error is returned to the caller —
// reload is transactional, never partial (spec.md §7).
func (r *Runtime) Reload() error {
	if r.Vanilla {
		return nil
	}
	table, err := patch.Load(r.ModDir)
	if err != nil {
		return err
	}
	r.tableMu.Lock()
	r.table = table
	r.tableMu.Unlock()
	return nil
}

// NeedsPatching reports whether target requires rewriting under the
// current table.
func (r *Runtime) NeedsPatching(target string) bool {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	return r.table.NeedsPatching(target)
}

// ApplyToBuffer rewrites buffer against the current PatchTable and, unless
// suppressed, writes the patched text and its debug sidecar under
// <mod_dir>/lovely/{dump,game-dump}. dumpAll forces a dump write even when
// the table has no patch for target at all (spec.md §6).
func (r *Runtime) ApplyToBuffer(vm hostlua.VM, target, buffer string) (string, error) {
	r.tableMu.RLock()
	table := r.table
	r.tableMu.RUnlock()

	if !r.DumpAll && !table.NeedsPatching(target) {
		return buffer, nil
	}

	res, err := rewrite.ApplyToBuffer(vm, table, target, buffer)
	if err != nil {
		return "", err
	}

	if err := dump.Write(r.ModDir, target, res.Text, res.Debug); err != nil {
		slog.Error("failed to write dump", "target", target, "err", err)
	}

	return res.Text, nil
}

// GetVar, SetVar and RemoveVar implement the host-visible shared K/V
// mapping. They acquire varsMu independently of any table reload in
// flight.
func (r *Runtime) GetVar(name string) (string, bool) {
	r.tableMu.RLock()
	table := r.table
	r.tableMu.RUnlock()

	r.varsMu.RLock()
	defer r.varsMu.RUnlock()
	return table.GetVar(name)
}

func (r *Runtime) SetVar(name, value string) {
	r.tableMu.RLock()
	table := r.table
	r.tableMu.RUnlock()

	r.varsMu.Lock()
	defer r.varsMu.Unlock()
	table.SetVar(name, value)
}

func (r *Runtime) RemoveVar(name string) {
	r.tableMu.RLock()
	table := r.table
	r.tableMu.RUnlock()

	r.varsMu.Lock()
	defer r.varsMu.Unlock()
	table.RemoveVar(name)
}

// Fingerprint returns the current catalog's hex-encoded blake2b
// fingerprint, for mod authors building reload-aware tooling.
func (r *Runtime) Fingerprint() string {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	fp := r.table.Fingerprint()
	return hex.EncodeToString(fp[:])
}

// EagerModulePatches exposes every module patch that is not load_now, for
// the interception shim's per-state init step (spec.md §4.K): they are
// registered up front into package.preload so the host's own require()
// mechanism evaluates them lazily, on first use. Before doesn't scope
// these (only load_now patches are tied to a specific target), so there
// is no target argument.
func (r *Runtime) EagerModulePatches() []patch.ModuleAndOrigin {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	return r.table.ModulePatches("", false)
}
