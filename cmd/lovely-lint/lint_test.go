package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethangreen-dev/lovely-injector/patch"
)

func loadTable(t *testing.T, toml string, extraFiles map[string]string) *patch.Table {
	t.Helper()
	modDir := t.TempDir()
	mod := filepath.Join(modDir, "mymod")
	if err := os.MkdirAll(mod, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mod, "lovely.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, content := range extraFiles {
		if err := os.WriteFile(filepath.Join(mod, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	table, err := patch.Load(modDir)
	if err != nil {
		t.Fatalf("patch.Load: %v", err)
	}
	return table
}

func TestLintCleanCatalogHasNoWarnings(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@game.lua"
pattern = "X"
position = "after"
payload = "Y"
name = "my_patch"
`, nil)
	if got := lint(table); len(got) != 0 {
		t.Fatalf("expected no warnings, got %v", got)
	}
}

func TestLintFlagsDuplicateNames(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.pattern]
target = "@a.lua"
pattern = "X"
position = "after"
payload = "Y"
name = "shared"

[[patches]]
[patches.pattern]
target = "@b.lua"
pattern = "X"
position = "after"
payload = "Y"
name = "shared"
`, nil)
	warnings := lint(table)
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
}

func TestLintFlagsZeroTimes(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.regex]
target = "@a.lua"
pattern = "X"
position = "after"
payload = "Y"
times = 0
`, nil)
	warnings := lint(table)
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
}

func TestLintFlagsBeforeWithoutLoadNow(t *testing.T) {
	table := loadTable(t, `
[manifest]
priority = 0

[[patches]]
[patches.module]
source = "helper.lua"
name = "helper"
before = "@game.lua"
`, map[string]string{"helper.lua": "return {}\n"})
	warnings := lint(table)
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
}
