// Package dump implements the byte-region bookkeeping produced while
// rewriting a chunk, and the on-disk dump/game-dump tree that mirrors a
// mod's effect on the host's source for debugging.
package dump

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/ethangreen-dev/lovely-injector/internal/rope"
)

// ByteRegion is a half-open [Start, End) byte span into the rope being
// rewritten. Regions are stored once and kept current by adjust as later
// edits shift everything downstream of them.
type ByteRegion struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// adjust shifts r by delta if r lies at or after editPos. A region that
// straddles editPos only has its End moved, since its Start already
// precedes the edit.
func (r *ByteRegion) adjust(editPos, delta int) {
	if r.Start >= editPos {
		r.Start += delta
	}
	if r.End >= editPos {
		r.End += delta
	}
}

// LineRegion is a 1-based, inclusive line range, the form regions take in
// the sidecar JSON once a buffer's rewriting is complete.
type LineRegion struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// ByteDebugEntry records one pattern/regex/copy application. Module
// patches do not produce entries.
type ByteDebugEntry struct {
	Kind     string       `json:"kind"`
	Pattern  string       `json:"pattern,omitempty"`
	Origin   string       `json:"origin"`
	Regions  []ByteRegion `json:"-"`
	Lines    []LineRegion `json:"lines,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Adjust shifts each boundary (Start, End) of every region in e by delta
// if that boundary is at or after editPos, so a region that straddles
// editPos grows or shrinks. Called on every prior entry each time a new
// edit lands, so all
// stored regions always refer to current byte offsets (spec.md §4.H).
func (e *ByteDebugEntry) Adjust(editPos, delta int) {
	for i := range e.Regions {
		e.Regions[i].adjust(editPos, delta)
	}
}

// PatchDebug collects every entry produced while rewriting one buffer.
type PatchDebug struct {
	ID      string           `json:"id"`
	Target  string           `json:"target"`
	Entries []ByteDebugEntry `json:"entries"`
}

// NewPatchDebug starts a PatchDebug for target, minting a fresh ULID so log
// lines can cross-reference the resulting sidecar file.
func NewPatchDebug(target string) *PatchDebug {
	return &PatchDebug{ID: ulid.Make().String(), Target: target}
}

// Append adds entry, first adjusting every prior entry's regions by the
// new entry's own net delta at editPos, so earlier regions stay aligned
// with the edit the new entry just made.
func (d *PatchDebug) Append(entry ByteDebugEntry, editPos, delta int) {
	for i := range d.Entries {
		d.Entries[i].Adjust(editPos, delta)
	}
	d.Entries = append(d.Entries, entry)
}

// Finalize converts every entry's byte regions to 1-based inclusive line
// ranges against final, the completed rope.
func (d *PatchDebug) Finalize(final *rope.Rope) error {
	for i := range d.Entries {
		e := &d.Entries[i]
		for _, r := range e.Regions {
			startLine, err := final.LineOfByte(r.Start)
			if err != nil {
				return fmt.Errorf("dump: region start %d: %w", r.Start, err)
			}
			endByte := r.End
			if endByte > r.Start {
				endByte--
			}
			endLine, err := final.LineOfByte(endByte)
			if err != nil {
				return fmt.Errorf("dump: region end %d: %w", r.End, err)
			}
			e.Lines = append(e.Lines, LineRegion{StartLine: startLine + 1, EndLine: endLine + 1})
		}
	}
	return nil
}

// maxPrettyNameLen is the cutoff past which a dump is skipped entirely
// (spec.md §4.I).
const maxPrettyNameLen = 100

// PrettyName derives a dump-tree-relative path from a chunk name. Names of
// the form `=[tag (sub)? "path"]` become `tag/sub/path` (dots in sub become
// slashes); anything else has a leading '@' stripped.
func PrettyName(chunkName string) string {
	if strings.HasPrefix(chunkName, "=[") && strings.HasSuffix(chunkName, "]") {
		inner := chunkName[2 : len(chunkName)-1]
		quote := strings.IndexByte(inner, '"')
		if quote >= 0 && strings.HasSuffix(inner, `"`) && quote < len(inner)-1 {
			head := strings.TrimSpace(inner[:quote])
			path := inner[quote+1 : len(inner)-1]
			tag, sub, _ := strings.Cut(head, " ")
			sub = strings.Trim(sub, "()")
			parts := []string{tag}
			if sub != "" {
				parts = append(parts, strings.Split(sub, ".")...)
			}
			parts = append(parts, path)
			return filepath.ToSlash(filepath.Join(parts...))
		}
	}
	return strings.TrimPrefix(chunkName, "@")
}

// Write writes patched to <modDir>/lovely/dump/<prettyName> with a sidecar
// <prettyName>.json holding debug, and the same patched text (with an
// empty sidecar) to <modDir>/lovely/game-dump/<prettyName>. Both writes are
// skipped if prettyName exceeds maxPrettyNameLen, and individually skipped
// if their target file already exists.
func Write(modDir, chunkName, patched string, debug *PatchDebug) error {
	pretty := PrettyName(chunkName)
	if utf8.RuneCountInString(pretty) > maxPrettyNameLen {
		slog.Debug("dump skipped: pretty name too long", "chunk", chunkName, "len", utf8.RuneCountInString(pretty))
		return nil
	}

	if err := writeTreeEntry(filepath.Join(modDir, "lovely", "dump"), pretty, patched, debug); err != nil {
		return err
	}
	return writeTreeEntry(filepath.Join(modDir, "lovely", "game-dump"), pretty, patched, nil)
}

func writeTreeEntry(treeRoot, pretty, patched string, debug *PatchDebug) error {
	target := filepath.Join(treeRoot, filepath.FromSlash(pretty))
	if _, err := os.Stat(target); err == nil {
		slog.Debug("dump skipped: already exists", "path", target)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("dump: mkdir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("dump: write %s: %w", target, err)
	}

	var sidecar any = struct{}{}
	if debug != nil {
		sidecar = debug
	}
	sidecarBytes, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("dump: marshal sidecar for %s: %w", target, err)
	}
	sidecarPath := target + ".json"
	if err := os.WriteFile(sidecarPath, sidecarBytes, 0o644); err != nil {
		return fmt.Errorf("dump: write sidecar %s: %w", sidecarPath, err)
	}

	slog.Debug("dump written", "path", target, "size", humanize.Bytes(uint64(len(patched))))
	return nil
}
