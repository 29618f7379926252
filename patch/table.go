package patch

import (
	"crypto/sha256"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/ethangreen-dev/lovely-injector/internal/globkit"
)

// storedPatch is one patch as stored in the table, with its priority and
// the relative path it came from (used for diagnostics and discovery-order
// tie-breaking).
type storedPatch struct {
	patch    Patch
	priority int
	origin   string // relative to mod dir
	seq      int    // discovery order: directory-then-file, case-insensitive by basename
}

// Table is the indexed catalog built once at process startup and replaced
// atomically on explicit reload.
type Table struct {
	ModDir      string
	exact       map[string]struct{}
	globs       []string
	patches     []storedPatch
	vars        map[string]string
	fingerprint [32]byte
}

// NewTable builds an empty table rooted at modDir (the "vanilla"/no-mods
// table used when --vanilla is passed).
func NewTable(modDir string) *Table {
	return &Table{
		ModDir: modDir,
		exact:  map[string]struct{}{},
		vars:   map[string]string{},
	}
}

// addTarget indexes every pattern in t: exact strings go in the exact set,
// globs go in the glob list, per spec.md §3's separate-storage invariant.
func (t *Table) addTarget(tgt Target) {
	for _, s := range tgt.Strings() {
		name := strings.TrimPrefix(s, "@")
		if globkit.IsGlob(name) {
			t.globs = append(t.globs, name)
		} else {
			t.exact[name] = struct{}{}
		}
	}
}

// NeedsPatching reports whether chunk name needs to be rewritten: it
// strips a leading '@', checks the exact-target set, then falls back to a
// linear scan of the glob targets.
func (t *Table) NeedsPatching(name string) bool {
	name = strings.TrimPrefix(name, "@")
	if _, ok := t.exact[name]; ok {
		return true
	}
	for _, g := range t.globs {
		if globkit.Match(g, name) {
			return true
		}
	}
	return false
}

func targetMatches(tgt Target, name string) bool {
	name = strings.TrimPrefix(name, "@")
	for _, s := range tgt.Strings() {
		s = strings.TrimPrefix(s, "@")
		if globkit.IsGlob(s) {
			if globkit.Match(s, name) {
				return true
			}
		} else if s == name {
			return true
		}
	}
	return false
}

// byPriorityThenSeq sorts ascending by priority, ties broken by discovery
// order (directory-then-file, case-insensitive by basename) per spec.md §9.
func byPriorityThenSeq(ps []storedPatch) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].priority != ps[j].priority {
			return ps[i].priority < ps[j].priority
		}
		return ps[i].seq < ps[j].seq
	})
}

// Entry is one stored patch paired with its priority and origin, for
// tooling that needs to walk the whole catalog regardless of kind (the
// offline linter is the only current caller — every apply-time consumer
// goes through the per-kind, target-filtered accessors below instead).
type Entry struct {
	Patch    Patch
	Priority int
	Origin   string
}

// AllPatches returns every patch in the table, in priority-then-discovery
// order, independent of target or kind.
func (t *Table) AllPatches() []Entry {
	ordered := append([]storedPatch(nil), t.patches...)
	byPriorityThenSeq(ordered)
	out := make([]Entry, len(ordered))
	for i, sp := range ordered {
		out[i] = Entry{Patch: sp.patch, Priority: sp.priority, Origin: sp.origin}
	}
	return out
}

// ModuleAndOrigin pairs a ModulePatch with its origin path for debug
// reporting.
type ModuleAndOrigin struct {
	Patch  ModulePatch
	Origin string
}

// CopyAndOrigin pairs a CopyPatch with its origin path for debug reporting.
type CopyAndOrigin struct {
	Patch  CopyPatch
	Origin string
}

// ModulePatches returns, sorted ascending by priority, either the load_now
// module patches whose before equals target (used by the rewrite engine,
// step 3) or, when loadNow is false, every !load_now module patch
// regardless of target (used by the interception shim for up-front
// preload registration).
func (t *Table) ModulePatches(target string, loadNow bool) []ModuleAndOrigin {
	var out []storedPatch
	for _, sp := range t.patches {
		if sp.patch.Kind != KindModule {
			continue
		}
		m := sp.patch.Module
		if m.LoadNow != loadNow {
			continue
		}
		if loadNow && m.Before != target {
			continue
		}
		out = append(out, sp)
	}
	byPriorityThenSeq(out)
	result := make([]ModuleAndOrigin, len(out))
	for i, sp := range out {
		result[i] = ModuleAndOrigin{Patch: *sp.patch.Module, Origin: sp.origin}
	}
	return result
}

// CopyPatches returns every copy patch targeting name, sorted ascending by
// priority.
func (t *Table) CopyPatches(name string) []CopyAndOrigin {
	var out []storedPatch
	for _, sp := range t.patches {
		if sp.patch.Kind != KindCopy {
			continue
		}
		if targetMatches(sp.patch.Copy.Target, name) {
			out = append(out, sp)
		}
	}
	byPriorityThenSeq(out)
	result := make([]CopyAndOrigin, len(out))
	for i, sp := range out {
		result[i] = CopyAndOrigin{Patch: *sp.patch.Copy, Origin: sp.origin}
	}
	return result
}

// PatternAndOrigin pairs a PatternPatch with its origin path for debug
// reporting.
type PatternAndOrigin struct {
	Patch  PatternPatch
	Origin string
}

// RegexAndOrigin pairs a RegexPatch with its origin path for debug
// reporting.
type RegexAndOrigin struct {
	Patch  RegexPatch
	Origin string
}

// PatternPatches returns every pattern patch targeting name, sorted
// ascending by priority, with origin paths attached.
func (t *Table) PatternPatches(name string) []PatternAndOrigin {
	var out []storedPatch
	for _, sp := range t.patches {
		if sp.patch.Kind != KindPattern {
			continue
		}
		if targetMatches(sp.patch.Pattern.Target, name) {
			out = append(out, sp)
		}
	}
	byPriorityThenSeq(out)
	result := make([]PatternAndOrigin, len(out))
	for i, sp := range out {
		result[i] = PatternAndOrigin{Patch: *sp.patch.Pattern, Origin: sp.origin}
	}
	return result
}

// RegexPatches returns every regex patch targeting name, sorted ascending
// by priority, with origin paths attached.
func (t *Table) RegexPatches(name string) []RegexAndOrigin {
	var out []storedPatch
	for _, sp := range t.patches {
		if sp.patch.Kind != KindRegex {
			continue
		}
		if targetMatches(sp.patch.Regex.Target, name) {
			out = append(out, sp)
		}
	}
	byPriorityThenSeq(out)
	result := make([]RegexAndOrigin, len(out))
	for i, sp := range out {
		result[i] = RegexAndOrigin{Patch: *sp.patch.Regex, Origin: sp.origin}
	}
	return result
}

// GetVar, SetVar and RemoveVar implement the shared K/V mapping exposed to
// hosts via the metadata module. Callers are expected to hold the table's
// own lock (see the runtime façade's varsMu); Table itself is not
// concurrency-safe on its own.
func (t *Table) GetVar(name string) (string, bool) {
	v, ok := t.vars[name]
	return v, ok
}

func (t *Table) SetVar(name, value string) {
	t.vars[name] = value
}

func (t *Table) RemoveVar(name string) {
	delete(t.vars, name)
}

// VarsSnapshot returns a copy of the table's variable map, for callers
// (the rewrite engine's final interpolation step) that need the full set
// rather than one name at a time.
func (t *Table) VarsSnapshot() map[string]string {
	out := make(map[string]string, len(t.vars))
	for k, v := range t.vars {
		out[k] = v
	}
	return out
}

// Fingerprint returns a blake2b-256 hash over every origin path and its raw
// file bytes, stable across repeated loads of byte-identical catalogs.
func (t *Table) Fingerprint() [32]byte {
	return t.fingerprint
}

// computeFingerprint hashes sorted (origin, content) pairs. It uses
// blake2b for the table's public fingerprint and falls back to a sha256
// sum of the blake2b initialization failing only if the platform is
// missing the hash (practically never).
func computeFingerprint(entries []fingerprintEntry) [32]byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].origin < entries[j].origin })
	h, err := blake2b.New256(nil)
	if err != nil {
		s := sha256.New()
		for _, e := range entries {
			s.Write([]byte(e.origin))
			s.Write(e.content)
		}
		var out [32]byte
		copy(out[:], s.Sum(nil))
		return out
	}
	for _, e := range entries {
		h.Write([]byte(e.origin))
		h.Write(e.content)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

type fingerprintEntry struct {
	origin  string
	content []byte
}
