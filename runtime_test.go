package lovely

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethangreen-dev/lovely-injector/hostlua/faketest"
)

func writeMod(t *testing.T, modDir, toml string) {
	t.Helper()
	mod := filepath.Join(modDir, "mymod")
	if err := os.MkdirAll(mod, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mod, "lovely.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitAndApplyToBuffer(t *testing.T) {
	modDir := t.TempDir()
	writeMod(t, modDir, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@game.lua"
pattern = "X"
position = "after"
payload = "Y"
`)
	rt, err := Init(modDir, false, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	out, err := rt.ApplyToBuffer(faketest.New(), "@game.lua", "X\n")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if out != "X\nY\n" {
		t.Fatalf("got %q", out)
	}

	if _, err := os.Stat(filepath.Join(modDir, "lovely", "dump", "game.lua")); err != nil {
		t.Fatalf("expected dump file: %v", err)
	}
}

func TestApplyToBufferSkipsUntargetedChunk(t *testing.T) {
	modDir := t.TempDir()
	writeMod(t, modDir, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@game.lua"
pattern = "X"
position = "after"
payload = "Y"
`)
	rt, err := Init(modDir, false, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	out, err := rt.ApplyToBuffer(faketest.New(), "@other.lua", "unrelated\n")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if out != "unrelated\n" {
		t.Fatalf("got %q", out)
	}
	if _, err := os.Stat(filepath.Join(modDir, "lovely", "dump", "other.lua")); err == nil {
		t.Fatal("expected no dump for an untargeted chunk")
	}
}

func TestVanillaModeSkipsEverything(t *testing.T) {
	modDir := t.TempDir()
	rt, err := Init(modDir, true, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	out, err := rt.ApplyToBuffer(faketest.New(), "@game.lua", "return 1\n")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if out != "return 1\n" {
		t.Fatalf("got %q", out)
	}
}

func TestReloadPicksUpNewPatches(t *testing.T) {
	modDir := t.TempDir()
	writeMod(t, modDir, `
[manifest]
priority = 0
`)
	rt, err := Init(modDir, false, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if rt.NeedsPatching("@game.lua") {
		t.Fatal("expected no targets before reload")
	}

	writeMod(t, modDir, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@game.lua"
pattern = "X"
position = "after"
payload = "Y"
`)
	if err := rt.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !rt.NeedsPatching("@game.lua") {
		t.Fatal("expected reload to pick up the new target")
	}
}

func TestVarsRoundTrip(t *testing.T) {
	modDir := t.TempDir()
	writeMod(t, modDir, `
[manifest]
priority = 0

[vars]
NAME = "abc"
`)
	rt, err := Init(modDir, false, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	v, ok := rt.GetVar("NAME")
	if !ok || v != "abc" {
		t.Fatalf("got %q, %v", v, ok)
	}

	rt.SetVar("NAME", "def")
	v, _ = rt.GetVar("NAME")
	if v != "def" {
		t.Fatalf("expected updated value, got %q", v)
	}

	rt.RemoveVar("NAME")
	if _, ok := rt.GetVar("NAME"); ok {
		t.Fatal("expected var to be removed")
	}
}

func TestFingerprintStableAcrossIdenticalLoads(t *testing.T) {
	modDir := t.TempDir()
	writeMod(t, modDir, `
[manifest]
priority = 0
`)
	rt1, err := Init(modDir, false, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	rt2, err := Init(modDir, false, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if rt1.Fingerprint() != rt2.Fingerprint() {
		t.Fatal("expected identical catalogs to fingerprint the same")
	}
}
