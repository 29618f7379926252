// Package inject wires the runtime façade into the host process: it parses
// the process's command-line flags, resolves the mod directory, and drives
// the per-interpreter-state one-time init and per-load detour logic that
// the platform-specific hook installer calls into.
package inject

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/pflag"

	lovely "github.com/ethangreen-dev/lovely-injector"
	"github.com/ethangreen-dev/lovely-injector/hostlua"
	"github.com/ethangreen-dev/lovely-injector/loggingkit"
)

// Config is the parsed set of process-wide flags and environment overrides
// controlling this run (spec.md §6).
type Config struct {
	ModDir         string
	ModDirExplicit bool
	Vanilla        bool
	DumpAll        bool
	DisableConsole bool
}

// ParseFlags parses argv (excluding argv[0]) into a Config. Unknown flags
// are ignored rather than rejected — argv belongs to the host process, and
// this engine only cares about the subset of flags it understands.
func ParseFlags(argv []string) Config {
	fs := pflag.NewFlagSet("lovely", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}

	modDir := fs.String("mod-dir", "", "override mod directory")
	vanilla := fs.Bool("vanilla", false, "skip loading mods; engine idle")
	fs.BoolVarP(vanilla, "v", "v", false, "alias for --vanilla")
	disableMods := fs.Bool("disable-mods", false, "alias for --vanilla")
	fs.BoolVarP(disableMods, "d", "d", false, "alias for --disable-mods")
	dumpAll := fs.Bool("dump-all", false, "dump every intercepted chunk even if unpatched")
	disableConsole := fs.Bool("disable-console", false, "do not attach a console (Windows)")

	_ = fs.Parse(argv)

	cfg := Config{
		ModDir:         *modDir,
		ModDirExplicit: *modDir != "",
		Vanilla:        *vanilla || *disableMods,
		DumpAll:        *dumpAll,
		DisableConsole: *disableConsole,
	}
	return cfg
}

// ResolveModDir determines the effective mod directory per spec.md §4.K
// step 3: an explicit --mod-dir flag wins, then $LOVELY_MOD_DIR, then a
// platform app-data directory joined with a game-name-derived folder.
func ResolveModDir(cfg Config, exePath string) (string, error) {
	if cfg.ModDirExplicit {
		return cfg.ModDir, nil
	}
	if v := os.Getenv("LOVELY_MOD_DIR"); v != "" {
		return v, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("inject: resolve mod dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(exePath), filepath.Ext(exePath))
	folder := strings.ReplaceAll(stem, ".", "_")
	return filepath.Join(base, folder, "Mods"), nil
}

// Shim is the process-global engine instance. One Shim is installed per
// process (via Init); every detoured load-chunk call is routed through its
// HandleLoadBuffer.
type Shim struct {
	cfg         Config
	rt          *lovely.Runtime
	log         *slog.Logger
	logFilePath string

	seenMu sync.Mutex
	seen   map[hostlua.VM]struct{}
}

var (
	globalMu sync.Mutex
	global   *Shim
)

// Init performs the full process-entry sequence described in spec.md §4.K
// (panic hook installation and hook location are the platform installer's
// job, steps 1 and 5; this handles steps 2-4, 6 and 7). It is idempotent:
// calling it twice returns the first instance.
func Init(argv []string, exePath string) (*Shim, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return global, nil
	}

	if err := checkStaleInstall(); err != nil {
		return nil, err
	}

	cfg := ParseFlags(argv)
	modDir, err := ResolveModDir(cfg, exePath)
	if err != nil {
		return nil, err
	}
	cfg.ModDir = modDir

	if err := os.MkdirAll(modDir, 0o755); err != nil {
		return nil, fmt.Errorf("inject: create mod dir: %w", err)
	}

	rt, err := lovely.Init(modDir, cfg.Vanilla, cfg.DumpAll)
	if err != nil {
		return nil, fmt.Errorf("inject: init runtime: %w", err)
	}

	if err := cleanDumpTrees(modDir); err != nil {
		return nil, fmt.Errorf("inject: clean dump trees: %w", err)
	}

	runLog, err := loggingkit.NewFileHandler(modDir, slog.LevelDebug)
	if err != nil {
		return nil, fmt.Errorf("inject: open log file: %w", err)
	}

	handlers := []slog.Handler{runLog.Handler}
	if !cfg.DisableConsole {
		colorEnabled := attachConsole()
		handlers = append(handlers, loggingkit.NewConsoleHandler(os.Stdout, slog.LevelInfo, colorEnabled))
	}
	logger := slog.New(loggingkit.NewMultiHandler(handlers...))
	slog.SetDefault(logger)

	if err := rt.WatchForChanges(func() {
		logger.Info("mod directory changed; call reload_patches() to pick it up")
	}); err != nil {
		logger.Warn("failed to start mod directory watcher", "err", err)
	}

	s := &Shim{
		cfg:         cfg,
		rt:          rt,
		log:         logger.With("component", "inject"),
		logFilePath: runLog.Path,
		seen:        map[hostlua.VM]struct{}{},
	}
	global = s
	return s, nil
}

// Global returns the process-wide Shim instance, or nil if Init has not
// run yet.
func Global() *Shim {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// cleanDumpTrees removes the dump and game-dump directories so stale
// debug artifacts from a previous run never linger into this one.
func cleanDumpTrees(modDir string) error {
	for _, name := range []string{"dump", "game-dump"} {
		if err := os.RemoveAll(filepath.Join(modDir, "lovely", name)); err != nil {
			return err
		}
	}
	return nil
}

// EnsureStateInit performs the per-interpreter-state one-time init
// (spec.md §4.K): installing the print override, injecting the metadata
// module, and registering every non-load_now module patch into preload.
// package.preload["lovely"] being set is exactly the signal that this has
// already run for vm, so a second call for the same state is a no-op —
// no separate seen-states set is strictly required, but one is kept as a
// fast, lock-protected short-circuit before touching the interpreter
// stack at all.
func (s *Shim) EnsureStateInit(vm hostlua.VM) {
	s.seenMu.Lock()
	_, already := s.seen[vm]
	if !already {
		s.seen[vm] = struct{}{}
	}
	s.seenMu.Unlock()

	if already || vm.PreloadHas("lovely") {
		return
	}

	hostlua.OverridePrint(vm, s.overridePrint)
	injectMetadata(vm, s)

	for _, m := range s.rt.EagerModulePatches() {
		mod := m
		vm.Preload(mod.Patch.Name, func(vm hostlua.VM) int {
			return loadModulePatch(vm, mod)
		})
	}

	s.log.Debug("per-state init complete", "preloaded_modules", len(s.rt.EagerModulePatches()))
}

// HandleLoadBuffer is the detour body: it runs per-state init, then either
// passes the buffer straight to recall (nothing to patch and dump-all is
// off) or rewrites it first. recall is the original load-chunk
// implementation, supplied by the platform-specific hook installer.
func (s *Shim) HandleLoadBuffer(vm hostlua.VM, buffer []byte, chunkName, mode string, recall func(patched []byte, name, mode string) int) int {
	s.EnsureStateInit(vm)

	if !utf8.ValidString(chunkName) {
		s.log.Warn("chunk name is not valid UTF-8; bypassing patching", "chunk", chunkName)
		return recall(buffer, chunkName, mode)
	}

	patched, err := s.rt.ApplyToBuffer(vm, chunkName, string(buffer))
	if err != nil {
		s.log.Error("failed to apply patches", "chunk", chunkName, "err", err)
		return recall(buffer, chunkName, mode)
	}

	return recall([]byte(patched), chunkName, mode)
}

// ModDir returns the resolved mod directory this shim was configured
// with.
func (s *Shim) ModDir() string {
	return s.cfg.ModDir
}

// Runtime exposes the underlying façade, for the metadata module and CLI
// tooling built on top of the shim.
func (s *Shim) Runtime() *lovely.Runtime {
	return s.rt
}
