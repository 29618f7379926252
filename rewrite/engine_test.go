package rewrite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethangreen-dev/lovely-injector/hostlua/faketest"
	"github.com/ethangreen-dev/lovely-injector/patch"
)

func loadTable(t *testing.T, toml string) *patch.Table {
	t.Helper()
	dir := t.TempDir()
	mod := filepath.Join(dir, "mymod")
	if err := os.MkdirAll(mod, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mod, "lovely.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := patch.Load(dir)
	if err != nil {
		t.Fatalf("patch.Load: %v", err)
	}
	return table
}

func TestPatternPatchBeforeIndentMatched(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@demo.lua"
pattern = "local y = 2"
position = "before"
payload = "z = 0"
match_indent = true
times = 1
`)
	buffer := "    local x = 1\n    local y = 2\n"
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", buffer)
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	want := "    local x = 1\n    z = 0\n    local y = 2\n"
	if res.Text != want {
		t.Fatalf("got:\n%q\nwant:\n%q", res.Text, want)
	}
}

func TestPatternPatchAtReplacesBlock(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@demo.lua"
pattern = "B"
position = "at"
payload = "B1\nB2"
`)
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", "A\nB\nC\n")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if res.Text != "A\nB1\nB2\nC\n" {
		t.Fatalf("got %q", res.Text)
	}
}

func TestRegexPatchAfterBoundarySpace(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.regex]
target = "@demo.lua"
pattern = "(?P<k>foo)=1"
position = "after"
payload = "bar_$k"
`)
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", "foo=1 end")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if res.Text != "foo=1 bar_foo end" {
		t.Fatalf("got %q", res.Text)
	}
}

func TestRegexPatchNonParticipatingRootGroupIsFatal(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.regex]
target = "@demo.lua"
pattern = "(?P<a>foo)|(?P<b>bar)"
position = "after"
payload = "X"
root_capture = "$a"
`)
	_, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", "bar end")
	if err == nil {
		t.Fatal("expected error for root_capture naming a non-participating group, got nil")
	}
}

func TestCopyPatchAppend(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.copy]
target = "@demo.lua"
position = "append"
payload = "-- end"
`)
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", "X")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if res.Text != "X\n-- end\n" {
		t.Fatalf("got %q", res.Text)
	}
}

func TestPatternPatchTimesMismatchTruncates(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@demo.lua"
pattern = "X"
position = "after"
payload = "Y"
times = 1
`)
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", "X\nX\n")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	want := "X\nY\nX\n"
	if res.Text != want {
		t.Fatalf("got %q want %q", res.Text, want)
	}
	if len(res.Debug.Entries) != 1 {
		t.Fatalf("expected one debug entry, got %d", len(res.Debug.Entries))
	}
	if len(res.Debug.Entries[0].Lines) != 1 {
		t.Fatalf("expected one recorded region, got %d", len(res.Debug.Entries[0].Lines))
	}
}

func TestVariableInterpolation(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[vars]
NAME = "abc"
`)
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", `print("{{lovely:NAME}}")`)
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if res.Text != `print("abc")` {
		t.Fatalf("got %q", res.Text)
	}
}

func TestVariableInterpolationMissingIsFatal(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0
`)
	_, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", `print("{{lovely:MISSING}}")`)
	if err == nil {
		t.Fatal("expected an error for an undefined variable reference")
	}
}

func TestModulePatchLoadNowRegistersRetainedResult(t *testing.T) {
	dir := t.TempDir()
	mod := filepath.Join(dir, "mymod")
	if err := os.MkdirAll(mod, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mod, "mymod.lua"), []byte("return 42"), 0o644); err != nil {
		t.Fatal(err)
	}
	toml := `
[manifest]
priority = 0

[[patches]]
[patches.module]
source = "mymod.lua"
name = "mymod"
before = "@game.lua"
load_now = true
`
	if err := os.WriteFile(filepath.Join(mod, "lovely.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := patch.Load(dir)
	if err != nil {
		t.Fatalf("patch.Load: %v", err)
	}

	vm := faketest.New()
	if vm.PreloadHas("mymod") {
		t.Fatal("expected no preload entry before ApplyToBuffer")
	}
	if _, err := ApplyToBuffer(vm, table, "@game.lua", "return 1"); err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if !vm.PreloadHas("mymod") {
		t.Fatal("expected load_now module patch to register itself in preload")
	}
	if len(vm.Executed) != 1 {
		t.Fatalf("expected the module chunk to be evaluated once, got %v", vm.Executed)
	}
	if !strings.Contains(vm.Executed[0], "mymod") {
		t.Fatalf("expected chunk name to carry the module name, got %q", vm.Executed[0])
	}
}

func TestPatternPatchZeroMatchKeepsBufferUnchanged(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@demo.lua"
pattern = "does not exist"
position = "at"
payload = "noop"
`)
	res, err := ApplyToBuffer(faketest.New(), table, "@demo.lua", "A\nB\n")
	if err != nil {
		t.Fatalf("ApplyToBuffer: %v", err)
	}
	if res.Text != "A\nB\n" {
		t.Fatalf("got %q", res.Text)
	}
	if len(res.Debug.Entries) != 1 || len(res.Debug.Entries[0].Warnings) != 1 {
		t.Fatalf("expected one debug entry carrying a warning, got %+v", res.Debug.Entries)
	}
}
