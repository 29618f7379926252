package dump

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethangreen-dev/lovely-injector/internal/rope"
)

func TestPrettyName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tagged with sub", `=[lovely main.sub "mods/foo/main.lua"]`, "lovely/main/sub/mods/foo/main.lua"},
		{"tagged without sub", `=[game "game.lua"]`, "game/game.lua"},
		{"at-prefixed", "@game.lua", "game.lua"},
		{"plain", "game.lua", "game.lua"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := PrettyName(c.in)
			if got != c.want {
				t.Errorf("PrettyName(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestByteRegionAdjust(t *testing.T) {
	r := ByteRegion{Start: 10, End: 20}
	r.adjust(5, 3)
	if r.Start != 13 || r.End != 23 {
		t.Fatalf("got %+v", r)
	}

	r2 := ByteRegion{Start: 2, End: 8}
	r2.adjust(5, 3)
	if r2.Start != 2 || r2.End != 11 {
		t.Fatalf("got %+v", r2)
	}
}

func TestPatchDebugAppendAdjustsPriorEntries(t *testing.T) {
	d := NewPatchDebug("game.lua")
	d.Append(ByteDebugEntry{Kind: "pattern", Origin: "mod/lovely.toml", Regions: []ByteRegion{{Start: 0, End: 5}}}, 0, 0)
	d.Append(ByteDebugEntry{Kind: "regex", Origin: "mod/lovely.toml", Regions: []ByteRegion{{Start: 3, End: 3}}}, 3, 10)

	if d.Entries[0].Regions[0].End != 15 {
		t.Fatalf("expected prior entry's region shifted by the new edit's delta, got %+v", d.Entries[0].Regions[0])
	}
}

func TestPatchDebugFinalize(t *testing.T) {
	r := rope.New("line one\nline two\nline three\n")
	d := NewPatchDebug("game.lua")
	d.Entries = append(d.Entries, ByteDebugEntry{
		Kind:    "pattern",
		Origin:  "mod/lovely.toml",
		Regions: []ByteRegion{{Start: 9, End: 18}},
	})
	if err := d.Finalize(r); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(d.Entries[0].Lines) != 1 {
		t.Fatalf("expected 1 line region, got %d", len(d.Entries[0].Lines))
	}
	if d.Entries[0].Lines[0].StartLine != 2 || d.Entries[0].Lines[0].EndLine != 2 {
		t.Fatalf("expected line 2-2, got %+v", d.Entries[0].Lines[0])
	}
}

func TestWriteSkipsOnLongNameAndExisting(t *testing.T) {
	modDir := t.TempDir()
	debug := NewPatchDebug("game.lua")

	if err := Write(modDir, "game.lua", "patched text\n", debug); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dumpPath := filepath.Join(modDir, "lovely", "dump", "game.lua")
	if _, err := os.Stat(dumpPath); err != nil {
		t.Fatalf("expected dump file, stat failed: %v", err)
	}
	sidecarPath := dumpPath + ".json"
	raw, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("expected sidecar file: %v", err)
	}
	var got PatchDebug
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("sidecar not valid JSON: %v", err)
	}
	if got.ID != debug.ID {
		t.Fatalf("sidecar id mismatch: got %q want %q", got.ID, debug.ID)
	}

	gameDumpPath := filepath.Join(modDir, "lovely", "game-dump", "game.lua")
	if _, err := os.Stat(gameDumpPath); err != nil {
		t.Fatalf("expected game-dump file: %v", err)
	}

	// Re-write with different content: existing files must not be overwritten.
	if err := Write(modDir, "game.lua", "different text\n", debug); err != nil {
		t.Fatalf("Write (second): %v", err)
	}
	raw2, _ := os.ReadFile(dumpPath)
	if string(raw2) != "patched text\n" {
		t.Fatalf("expected existing dump to be left untouched, got %q", raw2)
	}

	// A pretty name over 100 characters must be skipped entirely.
	longChunk := "@" + repeat("x", 150)
	if err := Write(modDir, longChunk, "text\n", debug); err != nil {
		t.Fatalf("Write (long name): %v", err)
	}
	longPath := filepath.Join(modDir, "lovely", "dump", repeat("x", 150))
	if _, err := os.Stat(longPath); err == nil {
		t.Fatal("expected long pretty name to be skipped")
	}

	// A pretty name with multi-byte runes must be judged by rune count, not
	// byte count: 60 repetitions of "é" is 120 bytes but only 60 runes, well
	// under the 100-rune cutoff, so it must not be skipped.
	multiByteChunk := "@" + repeat("é", 60)
	if err := Write(modDir, multiByteChunk, "text\n", debug); err != nil {
		t.Fatalf("Write (multi-byte name): %v", err)
	}
	multiBytePath := filepath.Join(modDir, "lovely", "dump", repeat("é", 60))
	if _, err := os.Stat(multiBytePath); err != nil {
		t.Fatalf("expected multi-byte pretty name under the rune cutoff to be dumped: %v", err)
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
