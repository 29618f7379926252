package rewrite

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethangreen-dev/lovely-injector/dump"
	"github.com/ethangreen-dev/lovely-injector/internal/globkit"
	"github.com/ethangreen-dev/lovely-injector/internal/rope"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

// patternMatch is one matched block: the 0-based [startLine, startLine+N)
// window, plus the leading whitespace of its first line for match_indent.
type patternMatch struct {
	startLine int
	n         int
	indent    string
}

func splitPatternLines(pattern string) []string {
	raw := strings.Split(pattern, "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

// findPatternMatches scans lines (raw, with terminators) for every
// non-overlapping window of len(patLines) lines whose trimmed text matches
// the corresponding wildcard line.
func findPatternMatches(lines []string, patLines []string) []patternMatch {
	n := len(patLines)
	if n == 0 || n > len(lines) {
		return nil
	}
	var matches []patternMatch
	i := 0
	for i+n <= len(lines) {
		hit := true
		for k := 0; k < n; k++ {
			if !globkit.Match(patLines[k], strings.TrimSpace(lines[i+k])) {
				hit = false
				break
			}
		}
		if hit {
			matches = append(matches, patternMatch{startLine: i, n: n, indent: leadingWhitespace(lines[i])})
			i += n
		} else {
			i++
		}
	}
	return matches
}

// buildPatternPayload prefixes indent to every line of payload (when
// matchIndent is set) and guarantees a trailing newline.
func buildPatternPayload(payload, indent string, matchIndent bool) string {
	if !matchIndent {
		indent = ""
	}
	terminated := payload
	if !strings.HasSuffix(terminated, "\n") {
		terminated += "\n"
	}
	lines := strings.SplitAfter(terminated, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString(l)
	}
	return b.String()
}

func applyPatternPatches(r *rope.Rope, patches []patch.PatternAndOrigin, debug *dump.PatchDebug) error {
	for _, pp := range patches {
		if err := applyPatternPatch(r, pp, debug); err != nil {
			return err
		}
	}
	return nil
}

func applyPatternPatch(r *rope.Rope, pp patch.PatternAndOrigin, debug *dump.PatchDebug) error {
	p := pp.Patch
	patLines := splitPatternLines(p.Pattern)

	matches := findPatternMatches(r.Lines(), patLines)

	var warning string
	if len(matches) == 0 {
		warning = fmt.Sprintf("pattern %s resulted in no matches", describePattern(p.Pattern))
		slog.Warn(warning, "target", p.Target.Strings(), "origin", pp.Origin)
		debug.Append(dump.ByteDebugEntry{
			Kind:     "pattern",
			Pattern:  p.Pattern,
			Origin:   pp.Origin,
			Warnings: []string{warning},
		}, 0, 0)
		return nil
	}

	if p.Times != nil {
		want := *p.Times
		if len(matches) < want {
			warning = fmt.Sprintf("pattern %s resulted in %d matches, wanted %d", describePattern(p.Pattern), len(matches), want)
			slog.Warn(warning, "target", p.Target.Strings(), "origin", pp.Origin)
		} else if len(matches) > want {
			warning = fmt.Sprintf("pattern %s resulted in %d matches, wanted %d; ignoring excess matches", describePattern(p.Pattern), len(matches), want)
			slog.Warn(warning, "target", p.Target.Strings(), "origin", pp.Origin)
			matches = matches[:want]
		}
	}

	lineDelta := 0
	for _, m := range matches {
		startLine := m.startLine + lineDelta
		endLine := startLine + m.n

		startByte, err := r.ByteOfLine(startLine)
		if err != nil {
			return fmt.Errorf("rewrite: pattern patch %q: %w", p.Name, err)
		}
		endByte, err := r.ByteOfLine(endLine)
		if err != nil {
			return fmt.Errorf("rewrite: pattern patch %q: %w", p.Name, err)
		}

		payload := buildPatternPayload(p.Payload, m.indent, p.MatchIndent)
		payloadLines := strings.Count(payload, "\n")

		var region dump.ByteRegion
		var delta int
		switch p.Position {
		case patch.Before:
			if err := r.Insert(startByte, payload); err != nil {
				return fmt.Errorf("rewrite: pattern patch %q: %w", p.Name, err)
			}
			region = dump.ByteRegion{Start: startByte, End: startByte + len(payload)}
			delta = len(payload)
			lineDelta += payloadLines
		case patch.After:
			if err := r.Insert(endByte, payload); err != nil {
				return fmt.Errorf("rewrite: pattern patch %q: %w", p.Name, err)
			}
			region = dump.ByteRegion{Start: endByte, End: endByte + len(payload)}
			delta = len(payload)
			lineDelta += payloadLines
		case patch.At:
			oldLen := endByte - startByte
			if err := r.Delete(startByte, endByte); err != nil {
				return fmt.Errorf("rewrite: pattern patch %q: %w", p.Name, err)
			}
			if err := r.Insert(startByte, payload); err != nil {
				return fmt.Errorf("rewrite: pattern patch %q: %w", p.Name, err)
			}
			region = dump.ByteRegion{Start: startByte, End: startByte + len(payload)}
			delta = len(payload) - oldLen
			lineDelta += payloadLines - m.n
		}

		debug.Append(dump.ByteDebugEntry{
			Kind:    "pattern",
			Pattern: p.Pattern,
			Origin:  pp.Origin,
			Regions: []dump.ByteRegion{region},
		}, region.Start, delta)
	}
	return nil
}

// describePattern renders pattern the way warning messages quote it: a
// triple-quoted block for multi-line patterns, an inline quote otherwise.
func describePattern(pattern string) string {
	if strings.Contains(pattern, "\n") {
		return fmt.Sprintf("'''\n%s'''", pattern)
	}
	return fmt.Sprintf("%q", pattern)
}
