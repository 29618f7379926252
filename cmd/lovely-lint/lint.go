package main

import (
	"fmt"

	"github.com/ethangreen-dev/lovely-injector/patch"
)

// lint walks every patch in table and reports conditions that load
// successfully but are very likely author mistakes: a named patch sharing
// its name with another (names exist for diagnostics, and a duplicate
// defeats that purpose), a pattern/regex patch with a `times` cap of
// zero, which can never apply, and a module patch that sets `before`
// without `load_now`, where `before` has no effect.
func lint(table *patch.Table) []string {
	var warnings []string
	seenNames := map[string]string{} // name -> first origin seen at

	note := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	checkName := func(name, kind, origin string) {
		if name == "" {
			return
		}
		if prior, ok := seenNames[name]; ok {
			note("%s patch named %q in %s duplicates the name already used by %s", kind, name, origin, prior)
			return
		}
		seenNames[name] = origin
	}

	for _, e := range table.AllPatches() {
		switch e.Patch.Kind {
		case patch.KindPattern:
			p := e.Patch.Pattern
			checkName(p.Name, "pattern", e.Origin)
			if p.Times != nil && *p.Times == 0 {
				note("pattern patch %q in %s has times = 0, so it can never apply", p.Name, e.Origin)
			}
		case patch.KindRegex:
			r := e.Patch.Regex
			checkName(r.Name, "regex", e.Origin)
			if r.Times != nil && *r.Times == 0 {
				note("regex patch %q in %s has times = 0, so it can never apply", r.Name, e.Origin)
			}
		case patch.KindCopy:
			checkName(e.Patch.Copy.Name, "copy", e.Origin)
		case patch.KindModule:
			m := e.Patch.Module
			if !m.LoadNow && m.HasBefore {
				note("module patch %q in %s sets before but not load_now; before is ignored unless load_now is true", m.Name, e.Origin)
			}
		}
	}

	return warnings
}
