package loggingkit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactMasksLovelyPrefixedVars(t *testing.T) {
	env := []string{"LOVELY_MOD_DIR=/tmp/mods", "PATH=/usr/bin", "LOVELY_TOKEN=secret"}
	got := Redact(env)
	want := []string{"LOVELY_MOD_DIR=[REDACTED]", "PATH=/usr/bin", "LOVELY_TOKEN=[REDACTED]"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("got %q want %q", got[i], w)
		}
	}
}

func TestContextWithAttrAccumulates(t *testing.T) {
	ctx := ContextWithAttr(context.Background(), slog.String("run_id", "abc"))
	ctx = ContextWithAttr(ctx, slog.Int("n", 1))
	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
}

func TestConsoleHandlerWritesLine(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "console")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	h := NewConsoleHandler(f, slog.LevelInfo, false)
	logger := slog.New(h)
	logger.Info("hello", "target", "game.lua")

	data, _ := os.ReadFile(f.Name())
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "target=game.lua") {
		t.Fatalf("unexpected console output: %q", data)
	}
}

func TestFileHandlerCreatesLogUnderModDir(t *testing.T) {
	modDir := t.TempDir()
	rl, err := NewFileHandler(modDir, slog.LevelDebug)
	if err != nil {
		t.Fatalf("NewFileHandler: %v", err)
	}
	if !strings.HasPrefix(rl.Path, filepath.Join(modDir, "lovely", "log")) {
		t.Fatalf("unexpected path %q", rl.Path)
	}
	if rl.RunID == "" {
		t.Fatal("expected a non-empty run id")
	}

	logger := slog.New(rl.Handler)
	logger.Debug("patch table built", "patches", 3)

	data, err := os.ReadFile(rl.Path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "patch table built") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestMultiHandlerFansOutToAllSinks(t *testing.T) {
	var a, b bytes.Buffer
	ha := slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo})
	hb := slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(NewMultiHandler(ha, hb))
	logger.Debug("only in b")
	logger.Info("in both")

	if strings.Contains(a.String(), "only in b") {
		t.Fatal("text handler should not have received a debug-level record")
	}
	if !strings.Contains(b.String(), "only in b") {
		t.Fatal("json handler should have received the debug-level record")
	}
	if !strings.Contains(a.String(), "in both") || !strings.Contains(b.String(), "in both") {
		t.Fatal("both handlers should have received the info-level record")
	}
}
