package rewrite

import (
	"fmt"
	"strings"

	"github.com/ethangreen-dev/lovely-injector/dump"
	"github.com/ethangreen-dev/lovely-injector/internal/rope"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

// applyCopyPatch concatenates c's loaded source contents (in order) and its
// inline payload, if any, each terminated by a newline, and prepends or
// appends the result to r. When appending to a buffer that does not end in
// a newline, a newline is inserted first so the copied text starts on its
// own line.
func applyCopyPatch(r *rope.Rope, c patch.CopyAndOrigin, debug *dump.PatchDebug) error {
	cp := c.Patch
	var b strings.Builder
	for _, content := range cp.Contents {
		b.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			b.WriteByte('\n')
		}
	}
	if cp.HasPayload {
		b.WriteString(cp.Payload)
		if !strings.HasSuffix(cp.Payload, "\n") {
			b.WriteByte('\n')
		}
	}
	text := b.String()
	if text == "" {
		return nil
	}

	var at int
	if cp.Position == patch.Append {
		at = r.Len()
		if at > 0 {
			if last, err := r.ByteAt(at - 1); err == nil && last != '\n' {
				text = "\n" + text
			}
		}
	}
	if err := r.Insert(at, text); err != nil {
		return fmt.Errorf("rewrite: copy patch %q: %w", cp.Name, err)
	}

	region := dump.ByteRegion{Start: at, End: at + len(text)}
	debug.Append(dump.ByteDebugEntry{
		Kind:   "copy",
		Origin: c.Origin,
		Regions: []dump.ByteRegion{region},
	}, at, len(text))
	return nil
}
