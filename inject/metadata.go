package inject

import (
	"fmt"
	"log/slog"
	"strings"

	lovely "github.com/ethangreen-dev/lovely-injector"
	"github.com/ethangreen-dev/lovely-injector/hostlua"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

// injectMetadata registers the lovely module under package.preload,
// exposing the host-visible callbacks listed in spec.md §6: static
// version/repo/mod_dir/log_path fields, plus reload_patches, apply_patches,
// fingerprint, and the get_var/set_var/remove_var trio.
func injectMetadata(vm hostlua.VM, s *Shim) {
	vm.Preload("lovely", func(vm hostlua.VM) int {
		hostlua.NewLuaTable(vm).
			String("version", lovely.Version).
			String("repo", lovely.Repo).
			String("mod_dir", s.ModDir()).
			String("log_path", s.logPath()).
			Func("reload_patches", s.luaReloadPatches).
			Func("apply_patches", s.luaApplyPatches).
			Func("fingerprint", s.luaFingerprint).
			Func("get_var", s.luaGetVar).
			Func("set_var", s.luaSetVar).
			Func("remove_var", s.luaRemoveVar)
		return 1
	})
}

// logPath returns the current run's log file path; it's set once at Init
// and never mutated afterward, so no lock is needed to read it.
func (s *Shim) logPath() string {
	return s.logFilePath
}

// overridePrint replaces the host's global print: it joins every argument
// (stringified the host's own way is not available to us here, so values
// come through via ToString with the VM's usual implicit conversion) with
// tabs and logs the result at info level, tagged so it's easy to filter
// mod chatter out of the engine's own log lines.
func (s *Shim) overridePrint(vm hostlua.VM) int {
	n := vm.Top()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		str, _ := vm.ToString(i)
		parts = append(parts, str)
	}
	s.log.Info("[G] " + strings.Join(parts, "\t"))
	return 0
}

// luaReloadPatches implements reload_patches() → (ok, err?).
func (s *Shim) luaReloadPatches(vm hostlua.VM) int {
	if err := s.rt.Reload(); err != nil {
		vm.PushBoolean(false)
		vm.PushString(err.Error())
		return 2
	}
	vm.PushBoolean(true)
	return 1
}

// luaApplyPatches implements apply_patches(name, src) → patched string,
// for mods that want to rewrite an ad-hoc buffer outside the normal
// load-chunk path.
func (s *Shim) luaApplyPatches(vm hostlua.VM) int {
	name, _ := vm.ToString(1)
	src, _ := vm.ToString(2)

	patched, err := s.rt.ApplyToBuffer(vm, name, src)
	if err != nil {
		s.log.Error("apply_patches failed", "name", name, "err", err)
		vm.PushString(src)
		return 1
	}
	vm.PushString(patched)
	return 1
}

// luaFingerprint implements fingerprint() → hex-encoded catalog fingerprint.
func (s *Shim) luaFingerprint(vm hostlua.VM) int {
	vm.PushString(s.rt.Fingerprint())
	return 1
}

func (s *Shim) luaGetVar(vm hostlua.VM) int {
	name, _ := vm.ToString(1)
	v, ok := s.rt.GetVar(name)
	if !ok {
		vm.PushNil()
		return 1
	}
	vm.PushString(v)
	return 1
}

func (s *Shim) luaSetVar(vm hostlua.VM) int {
	name, _ := vm.ToString(1)
	value, _ := vm.ToString(2)
	s.rt.SetVar(name, value)
	return 0
}

func (s *Shim) luaRemoveVar(vm hostlua.VM) int {
	name, _ := vm.ToString(1)
	s.rt.RemoveVar(name)
	return 0
}

// loadModulePatch evaluates a non-load_now module patch's content lazily,
// the first time the host's own require(name) mechanism calls into its
// package.preload entry. It mirrors the rewrite package's load_now
// handling (same chunk-name decoration, same load/pcall/restore-on-error
// behavior) but runs at require time instead of at rewrite time.
func loadModulePatch(vm hostlua.VM, m patch.ModuleAndOrigin) int {
	mod := m.Patch
	chunkName := fmt.Sprintf("=[lovely %s %q]", mod.Name, mod.DisplaySource)
	if err := vm.LoadBuffer([]byte(mod.Content), chunkName); err != nil {
		slog.Error("module patch load failed", "name", mod.Name, "source", mod.DisplaySource, "origin", m.Origin, "err", err)
		vm.PushNil()
		return 1
	}
	if err := vm.PCall(0, 1); err != nil {
		slog.Error("module patch evaluate failed", "name", mod.Name, "source", mod.DisplaySource, "origin", m.Origin, "err", err)
		vm.PushNil()
		return 1
	}
	return 1
}
