package patch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// rawFile mirrors the declarative tabular schema from spec.md §6:
//
//	[manifest] version="x.y.z" priority=<int> [dump_lua=bool]
//	[[patches]]
//	[patches.pattern|regex|copy|module]
//	<variant-specific keys>
//	[vars] NAME="value" ...
type rawFile struct {
	Manifest rawManifest       `toml:"manifest"`
	Patches  []rawPatchEntry   `toml:"patches"`
	Vars     map[string]string `toml:"vars"`
}

type rawManifest struct {
	Version  string `toml:"version"`
	Priority int    `toml:"priority"`
	DumpLua  bool   `toml:"dump_lua"`
}

type rawPatchEntry struct {
	Pattern *rawPattern `toml:"pattern"`
	Regex   *rawRegex   `toml:"regex"`
	Copy    *rawCopy    `toml:"copy"`
	Module  *rawModule  `toml:"module"`
}

type rawPattern struct {
	Target      any    `toml:"target"`
	Pattern     string `toml:"pattern"`
	Position    string `toml:"position"`
	Payload     string `toml:"payload"`
	MatchIndent bool   `toml:"match_indent"`
	Times       *int   `toml:"times"`
	Name        string `toml:"name"`
}

type rawRegex struct {
	Target      any    `toml:"target"`
	Pattern     string `toml:"pattern"`
	Position    string `toml:"position"`
	RootCapture string `toml:"root_capture"`
	Payload     string `toml:"payload"`
	LinePrepend string `toml:"line_prepend"`
	Times       *int   `toml:"times"`
	Verbose     bool   `toml:"verbose"`
	Name        string `toml:"name"`
}

type rawCopy struct {
	Target   any      `toml:"target"`
	Position string   `toml:"position"`
	Sources  []string `toml:"sources"`
	Payload  *string  `toml:"payload"`
	Name     string   `toml:"name"`
}

type rawModule struct {
	Source  string  `toml:"source"`
	Name    string  `toml:"name"`
	Before  *string `toml:"before"`
	LoadNow bool    `toml:"load_now"`
}

func targetFromRaw(raw any) (Target, error) {
	switch v := raw.(type) {
	case string:
		return NewSingleTarget(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return Target{}, fmt.Errorf("patch: target list entries must be strings, got %#v", e)
			}
			out = append(out, s)
		}
		return NewMultiTarget(out), nil
	case nil:
		return Target{}, fmt.Errorf("patch: missing target")
	default:
		return Target{}, fmt.Errorf("patch: invalid target value %#v", raw)
	}
}

// parsePatchFile decodes TOML text into a PatchFile, logging (not failing
// on) unknown keys per spec.md §4.E.
func parsePatchFile(text, originDisplay string) (PatchFile, error) {
	var raw rawFile
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return PatchFile{}, fmt.Errorf("patch: parse %s: %w", originDisplay, err)
	}
	for _, key := range meta.Undecoded() {
		slog.Warn("unknown key in patch file", "file", originDisplay, "key", key.String())
	}

	pf := PatchFile{
		Manifest: Manifest{
			Version:  raw.Manifest.Version,
			Priority: raw.Manifest.Priority,
			DumpLua:  raw.Manifest.DumpLua,
		},
		Vars: raw.Vars,
	}
	if pf.Vars == nil {
		pf.Vars = map[string]string{}
	}
	if pf.Manifest.Version != "" {
		if _, err := semver.NewVersion(pf.Manifest.Version); err != nil {
			slog.Warn("manifest version is not a valid semver string", "file", originDisplay, "version", pf.Manifest.Version)
		}
	}

	for i, entry := range raw.Patches {
		p, err := convertEntry(entry)
		if err != nil {
			return PatchFile{}, fmt.Errorf("patch: %s: patch #%d: %w", originDisplay, i, err)
		}
		pf.Patches = append(pf.Patches, p)
	}
	return pf, nil
}

func convertEntry(entry rawPatchEntry) (Patch, error) {
	count := 0
	for _, set := range []bool{entry.Pattern != nil, entry.Regex != nil, entry.Copy != nil, entry.Module != nil} {
		if set {
			count++
		}
	}
	if count != 1 {
		return Patch{}, fmt.Errorf("exactly one of pattern/regex/copy/module must be set, got %d", count)
	}

	switch {
	case entry.Pattern != nil:
		r := entry.Pattern
		tgt, err := targetFromRaw(r.Target)
		if err != nil {
			return Patch{}, err
		}
		pos, err := parseInsertPosition(defaultStr(r.Position, "at"))
		if err != nil {
			return Patch{}, err
		}
		pp := PatternPatch{
			Target:      tgt,
			Pattern:     r.Pattern,
			Position:    pos,
			Payload:     r.Payload,
			MatchIndent: r.MatchIndent,
			Times:       r.Times,
			Name:        r.Name,
		}
		if err := pp.Validate(); err != nil {
			return Patch{}, err
		}
		return Patch{Kind: KindPattern, Pattern: &pp}, nil

	case entry.Regex != nil:
		r := entry.Regex
		tgt, err := targetFromRaw(r.Target)
		if err != nil {
			return Patch{}, err
		}
		pos, err := parseInsertPosition(defaultStr(r.Position, "at"))
		if err != nil {
			return Patch{}, err
		}
		rp := RegexPatch{
			Target:      tgt,
			Pattern:     r.Pattern,
			Position:    pos,
			RootCapture: r.RootCapture,
			Payload:     r.Payload,
			LinePrepend: r.LinePrepend,
			Times:       r.Times,
			Verbose:     r.Verbose,
			Name:        r.Name,
		}
		return Patch{Kind: KindRegex, Regex: &rp}, nil

	case entry.Copy != nil:
		r := entry.Copy
		tgt, err := targetFromRaw(r.Target)
		if err != nil {
			return Patch{}, err
		}
		pos, err := parseCopyPosition(defaultStr(r.Position, "append"))
		if err != nil {
			return Patch{}, err
		}
		cp := CopyPatch{
			Target:   tgt,
			Position: pos,
			Sources:  r.Sources,
			Name:     r.Name,
		}
		if r.Payload != nil {
			cp.Payload = *r.Payload
			cp.HasPayload = true
		}
		if err := cp.Validate(); err != nil {
			return Patch{}, err
		}
		return Patch{Kind: KindCopy, Copy: &cp}, nil

	case entry.Module != nil:
		r := entry.Module
		mp := ModulePatch{
			Source:  r.Source,
			Name:    r.Name,
			LoadNow: r.LoadNow,
		}
		if r.Before != nil {
			mp.Before = *r.Before
			mp.HasBefore = true
		}
		if err := mp.Validate(); err != nil {
			return Patch{}, err
		}
		return Patch{Kind: KindModule, Module: &mp}, nil
	}
	panic("unreachable")
}

func defaultStr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
