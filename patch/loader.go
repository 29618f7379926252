package patch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// loadedModFile is one manifest file ready to be parsed: its TOML text
// already has {{lovely_hack:patch_dir}} substituted, and src resolves any
// Copy/Module source paths it references, whether from a directory mod or
// an in-memory archive extraction.
type loadedModFile struct {
	displayPath string // relative to the mods root, for diagnostics and as the stored origin
	text        string
	src         fileSource
}

// Load scans modDir per spec.md §4.F and returns a fully built, indexed
// Table. Any I/O, parse, or validation error aborts the whole build; a
// partially built table is never returned.
func Load(modDir string) (*Table, error) {
	blacklist, err := readBlacklist(filepath.Join(modDir, "lovely", "blacklist.txt"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(modDir)
	if err != nil {
		return nil, fmt.Errorf("patch: read mod dir %s: %w", modDir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	// Each child mod is scanned (directory walk or archive extraction)
	// concurrently; all I/O happens before any patch file is parsed or
	// merged into the table, so the deterministic discovery-order
	// tie-break (spec.md §9) is assigned afterwards, sequentially, from
	// the already-sorted entries slice.
	perChild := make([][]loadedModFile, len(entries))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.NumCPU())
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			files, skip, err := scanChild(modDir, entry, blacklist)
			if err != nil {
				return err
			}
			if !skip {
				perChild[i] = files
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := NewTable(modDir)
	var fpEntries []fingerprintEntry
	seq := 0
	for _, files := range perChild {
		for _, lf := range files {
			pf, err := parsePatchFile(lf.text, lf.displayPath)
			if err != nil {
				return nil, err
			}
			fpEntries = append(fpEntries, fingerprintEntry{origin: lf.displayPath, content: []byte(lf.text)})
			if err := ingestPatchFile(table, pf, lf, &seq); err != nil {
				return nil, err
			}
		}
	}
	table.fingerprint = computeFingerprint(fpEntries)
	slog.Info("patch table built", "mod_dir", modDir, "mods", len(entries), "patches", len(table.patches))
	return table, nil
}

func readBlacklist(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("patch: read blacklist %s: %w", path, err)
	}
	out := map[string]bool{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out[line] = true
	}
	return out, nil
}

// collectDirManifests returns modPath/lovely.toml (if present) followed by
// every *.toml under modPath/lovely/, sorted case-insensitively by
// basename.
func collectDirManifests(modPath string) ([]string, error) {
	var out []string
	top := filepath.Join(modPath, "lovely.toml")
	if _, err := os.Stat(top); err == nil {
		out = append(out, top)
	}

	var nested []string
	lovelyDir := filepath.Join(modPath, "lovely")
	err := filepath.WalkDir(lovelyDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".toml") {
			nested = append(nested, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("patch: walk %s: %w", lovelyDir, err)
	}
	sort.Slice(nested, func(i, j int) bool {
		return strings.ToLower(filepath.Base(nested[i])) < strings.ToLower(filepath.Base(nested[j]))
	})
	return append(out, nested...), nil
}

func substitutePatchDir(text, modPath string) string {
	escaped := strings.ReplaceAll(modPath, `\`, `\\`)
	return strings.ReplaceAll(text, "{{lovely_hack:patch_dir}}", escaped)
}

// scanChild handles one immediate child of the mods directory: a mod
// directory, a packaged .zip mod, or (skip=true) anything else.
func scanChild(modDir string, entry os.DirEntry, blacklist map[string]bool) (files []loadedModFile, skip bool, err error) {
	name := entry.Name()
	full := filepath.Join(modDir, name)

	if entry.IsDir() {
		if _, err := os.Stat(filepath.Join(full, ".lovelyignore")); err == nil {
			return nil, true, nil
		}
		if blacklist[name] {
			return nil, true, nil
		}
		manifestPaths, err := collectDirManifests(full)
		if err != nil {
			return nil, false, fmt.Errorf("patch: scan %s: %w", full, err)
		}
		out := make([]loadedModFile, 0, len(manifestPaths))
		for _, mp := range manifestPaths {
			raw, err := os.ReadFile(mp)
			if err != nil {
				return nil, false, fmt.Errorf("patch: read %s: %w", mp, err)
			}
			rel, err := filepath.Rel(modDir, mp)
			if err != nil {
				rel = mp
			}
			out = append(out, loadedModFile{
				displayPath: filepath.ToSlash(rel),
				text:        substitutePatchDir(string(raw), full),
				src:         dirSource{root: full},
			})
		}
		return out, false, nil
	}

	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return nil, true, nil
	}
	extracted, err := extractZipMod(full)
	if err != nil {
		return nil, false, err
	}
	out := make([]loadedModFile, 0, len(extracted.manifestPaths))
	for _, mp := range extracted.manifestPaths {
		out = append(out, loadedModFile{
			displayPath: name + "/" + mp,
			text:        substitutePatchDir(extracted.manifestText[mp], full),
			src:         extracted.files,
		})
	}
	return out, false, nil
}

// ingestPatchFile performs spec.md §4.F steps 4-6: resolving Module/Copy
// source bytes, indexing targets, storing patches with their priority and
// origin, and merging vars (later files win on key conflict).
func ingestPatchFile(table *Table, pf PatchFile, lf loadedModFile, seq *int) error {
	for k, v := range pf.Vars {
		table.vars[k] = v
	}
	for _, p := range pf.Patches {
		switch p.Kind {
		case KindModule:
			m := p.Module
			if err := m.Validate(); err != nil {
				return fmt.Errorf("patch: %s: %w", lf.displayPath, err)
			}
			content, err := lf.src.ReadFile(m.Source)
			if err != nil {
				return fmt.Errorf("patch: %s: module %q: %w", lf.displayPath, m.Name, err)
			}
			m.Content = string(content)
			m.DisplaySource = m.Source
			if m.LoadNow {
				table.addTarget(NewSingleTarget(m.Before))
			}
		case KindCopy:
			c := p.Copy
			if err := c.Validate(); err != nil {
				return fmt.Errorf("patch: %s: %w", lf.displayPath, err)
			}
			for _, s := range c.Sources {
				b, err := lf.src.ReadFile(s)
				if err != nil {
					return fmt.Errorf("patch: %s: copy %q: %w", lf.displayPath, c.Name, err)
				}
				c.Contents = append(c.Contents, string(b))
			}
			table.addTarget(c.Target)
		case KindPattern:
			table.addTarget(p.Pattern.Target)
		case KindRegex:
			table.addTarget(p.Regex.Target)
		}
		table.patches = append(table.patches, storedPatch{
			patch:    p,
			priority: pf.Manifest.Priority,
			origin:   lf.displayPath,
			seq:      *seq,
		})
		*seq++
	}
	return nil
}
