package rewrite

import (
	"fmt"
	"log/slog"

	"github.com/ethangreen-dev/lovely-injector/hostlua"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

// applyModulePatch loads m's content into vm under a decorated chunk name,
// evaluates it immediately (load_now is the only variant the rewrite
// engine handles — the interception shim registers !load_now modules once
// at init, outside any particular chunk's rewrite), and registers its
// single return value under m.Name in package.preload so every later
// require(m.Name) gets that same value back.
//
// A module patch's failure never aborts the rewrite: it's logged and
// skipped, matching spec.md's "host load/evaluate failures never abort
// the run" rule.
func applyModulePatch(vm hostlua.VM, m patch.ModuleAndOrigin, target string) {
	mod := m.Patch
	chunkName := fmt.Sprintf("=[lovely %s %q]", mod.Name, mod.DisplaySource)
	if err := vm.LoadBuffer([]byte(mod.Content), chunkName); err != nil {
		slog.Error("module patch load failed", "name", mod.Name, "source", mod.DisplaySource, "target", target, "origin", m.Origin, "err", err)
		return
	}
	if err := vm.PCall(0, 1); err != nil {
		slog.Error("module patch evaluate failed", "name", mod.Name, "source", mod.DisplaySource, "target", target, "origin", m.Origin, "err", err)
		return
	}
	handle := vm.Retain()
	vm.Preload(mod.Name, func(inner hostlua.VM) int {
		inner.PushRetained(handle)
		return 1
	})
	slog.Debug("module patch registered", "name", mod.Name, "target", target, "origin", m.Origin)
}
