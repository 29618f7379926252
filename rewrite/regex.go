package rewrite

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethangreen-dev/lovely-injector/dump"
	"github.com/ethangreen-dev/lovely-injector/internal/regexkit"
	"github.com/ethangreen-dev/lovely-injector/internal/rope"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

func applyRegexPatches(r *rope.Rope, patches []patch.RegexAndOrigin, debug *dump.PatchDebug) error {
	for _, rp := range patches {
		if err := applyRegexPatch(r, rp, debug); err != nil {
			return err
		}
	}
	return nil
}

func applyRegexPatch(r *rope.Rope, rp patch.RegexAndOrigin, debug *dump.PatchDebug) error {
	p := rp.Patch
	re, err := regexkit.Compile(p.Pattern, p.Verbose)
	if err != nil {
		return fmt.Errorf("rewrite: regex patch %q: %w", p.Name, err)
	}

	// All matches are collected up front against the buffer as it stands
	// before this patch runs; delta tracks how far later offsets have
	// drifted as earlier matches in this same patch are applied.
	matches := re.FindAll(r.String())

	if len(matches) == 0 {
		warning := fmt.Sprintf("regex %s resulted in no matches", describePattern(p.Pattern))
		slog.Warn(warning, "target", p.Target.Strings(), "origin", rp.Origin)
		debug.Append(dump.ByteDebugEntry{
			Kind:     "regex",
			Pattern:  p.Pattern,
			Origin:   rp.Origin,
			Warnings: []string{warning},
		}, 0, 0)
		return nil
	}

	if p.Times != nil {
		want := *p.Times
		switch {
		case len(matches) < want:
			warning := fmt.Sprintf("regex %s resulted in %d matches, wanted %d", describePattern(p.Pattern), len(matches), want)
			slog.Warn(warning, "target", p.Target.Strings(), "origin", rp.Origin)
		case len(matches) > want:
			warning := fmt.Sprintf("regex %s resulted in %d matches, wanted %d; ignoring excess matches", describePattern(p.Pattern), len(matches), want)
			slog.Warn(warning, "target", p.Target.Strings(), "origin", rp.Origin)
			matches = matches[:want]
		}
	}

	rootRef := "0"
	if p.RootCapture != "" {
		rootRef = strings.TrimPrefix(p.RootCapture, "$")
	}

	delta := 0
	for _, m := range matches {
		resolve := func(ref string) (string, bool) {
			g, err := m.ResolveGroup(strings.TrimPrefix(ref, "$"))
			if err != nil || g.Start < 0 {
				return "", false
			}
			s, err := r.Slice(g.Start+delta, g.End+delta)
			if err != nil {
				return "", false
			}
			return s, true
		}

		linePrepend, err := regexkit.Interpolate(p.LinePrepend, resolve)
		if err != nil {
			return fmt.Errorf("rewrite: regex patch %q: line_prepend: %w", p.Name, err)
		}

		rootGroup, err := m.ResolveGroup(rootRef)
		if err != nil {
			return fmt.Errorf("rewrite: regex patch %q: root_capture: %w", p.Name, err)
		}
		if rootGroup.Start < 0 {
			return fmt.Errorf("rewrite: regex patch %q: root_capture %q did not participate in match", p.Name, rootRef)
		}

		payload, err := regexkit.Interpolate(prependEachLine(p.Payload, linePrepend), resolve)
		if err != nil {
			return fmt.Errorf("rewrite: regex patch %q: payload: %w", p.Name, err)
		}

		targetStart := rootGroup.Start + delta
		targetEnd := rootGroup.End + delta
		payload = applyIdentifierGuard(payload, r, targetStart, targetEnd, p.Position)

		var region dump.ByteRegion
		var netDelta int
		switch p.Position {
		case patch.Before:
			if err := r.Insert(targetStart, payload); err != nil {
				return fmt.Errorf("rewrite: regex patch %q: %w", p.Name, err)
			}
			region = dump.ByteRegion{Start: targetStart, End: targetStart + len(payload)}
			netDelta = len(payload)
		case patch.After:
			if err := r.Insert(targetEnd, payload); err != nil {
				return fmt.Errorf("rewrite: regex patch %q: %w", p.Name, err)
			}
			region = dump.ByteRegion{Start: targetEnd, End: targetEnd + len(payload)}
			netDelta = len(payload)
		case patch.At:
			oldLen := targetEnd - targetStart
			if err := r.Delete(targetStart, targetEnd); err != nil {
				return fmt.Errorf("rewrite: regex patch %q: %w", p.Name, err)
			}
			if err := r.Insert(targetStart, payload); err != nil {
				return fmt.Errorf("rewrite: regex patch %q: %w", p.Name, err)
			}
			region = dump.ByteRegion{Start: targetStart, End: targetStart + len(payload)}
			netDelta = len(payload) - oldLen
		}
		delta += netDelta

		debug.Append(dump.ByteDebugEntry{
			Kind:    "regex",
			Pattern: p.Pattern,
			Origin:  rp.Origin,
			Regions: []dump.ByteRegion{region},
		}, region.Start, netDelta)
	}
	return nil
}

// prependEachLine prepends prepend to every newline-inclusive segment of
// payload, so a multi-line payload gets it on each of its own lines.
func prependEachLine(payload, prepend string) string {
	if prepend == "" || payload == "" {
		return payload
	}
	segments := strings.SplitAfter(payload, "\n")
	var b strings.Builder
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		b.WriteString(prepend)
		b.WriteString(seg)
	}
	return b.String()
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// applyIdentifierGuard inserts a single space at either end of payload if
// landing it at the insertion point would silently concatenate it with an
// adjacent identifier character already in the rope.
func applyIdentifierGuard(payload string, r *rope.Rope, targetStart, targetEnd int, pos patch.InsertPosition) string {
	if payload == "" {
		return payload
	}
	if isWordByte(payload[0]) {
		prePt := targetStart
		if pos == patch.After {
			prePt = targetEnd
		}
		if prePt > 0 {
			if b, err := r.ByteAt(prePt - 1); err == nil && isWordByte(b) {
				payload = " " + payload
			}
		}
	}
	if isWordByte(payload[len(payload)-1]) {
		postPt := targetEnd
		if pos == patch.Before {
			postPt = targetStart
		}
		if postPt < r.Len() {
			if b, err := r.ByteAt(postPt); err == nil && isWordByte(b) {
				payload += " "
			}
		}
	}
	return payload
}
