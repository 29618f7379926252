// Package rewrite implements the chunk rewriting algorithm: given a patch
// table and one buffer of host source, it applies every patch targeting
// that chunk name in the fixed module -> copy -> pattern -> regex order,
// then resolves {{lovely:NAME}} variables, producing the patched text and
// a debug trail describing every edit that landed.
package rewrite

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/diff"

	"github.com/ethangreen-dev/lovely-injector/dump"
	"github.com/ethangreen-dev/lovely-injector/hostlua"
	"github.com/ethangreen-dev/lovely-injector/internal/rope"
	"github.com/ethangreen-dev/lovely-injector/internal/varkit"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

// Result is the outcome of one ApplyToBuffer call.
type Result struct {
	Text  string
	Debug *dump.PatchDebug
}

// ApplyToBuffer rewrites buffer (the host's source for chunk target)
// against every patch in table that targets it, in the order: load_now
// module patches, copy patches, pattern patches, regex patches, then
// {{lovely:NAME}} variable interpolation. vm is used only to evaluate
// load_now module patches; pattern/regex/copy patches never touch it.
func ApplyToBuffer(vm hostlua.VM, table *patch.Table, target, buffer string) (Result, error) {
	debug := dump.NewPatchDebug(target)
	r := rope.New(buffer)

	for _, m := range table.ModulePatches(target, true) {
		applyModulePatch(vm, m, target)
	}

	for _, c := range table.CopyPatches(target) {
		if err := applyCopyPatch(r, c, debug); err != nil {
			return Result{}, err
		}
	}

	if err := applyPatternPatches(r, table.PatternPatches(target), debug); err != nil {
		return Result{}, err
	}

	if err := applyRegexPatches(r, table.RegexPatches(target), debug); err != nil {
		return Result{}, err
	}

	interpolated, err := varkit.InterpolateAll(r.Lines(), table.VarsSnapshot())
	if err != nil {
		return Result{}, fmt.Errorf("rewrite: %s: %w", target, err)
	}
	final := rope.New(interpolated)

	if err := debug.Finalize(final); err != nil {
		return Result{}, err
	}

	logDiff(target, buffer, interpolated)

	return Result{Text: interpolated, Debug: debug}, nil
}

// logDiff writes a unified diff of the rewrite at debug level, skipped
// entirely when nothing changed.
func logDiff(target, before, after string) {
	if before == after {
		return
	}
	var b strings.Builder
	if err := diff.Text(target, target, before, after, &b); err != nil {
		slog.Debug("rewrite diff generation failed", "target", target, "err", err)
		return
	}
	slog.Debug("rewrite applied", "target", target, "diff", b.String())
}
