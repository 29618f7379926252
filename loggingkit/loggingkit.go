// Package loggingkit defines the engine-wide logging setup: structured
// logging via slog, with a colorized console sink and a JSON file sink
// under <mod_dir>/lovely/log/, plus context-carried attributes so a single
// run's messages can be cross-referenced regardless of which package logs
// them.
package loggingkit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

type attrsKey struct{}

// ContextWithAttr returns a context carrying add in addition to any attrs
// already present, so nested calls keep accumulating rather than
// clobbering their caller's.
func ContextWithAttr(ctx context.Context, add ...slog.Attr) context.Context {
	attrs := slices.Clone(Attrs(ctx))
	attrs = append(attrs, add...)
	return context.WithValue(ctx, attrsKey{}, attrs)
}

// Attrs returns the attributes stashed on ctx by ContextWithAttr, or nil.
func Attrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

// AttrsWrap wraps h so every record handled through a context built with
// ContextWithAttr picks up those attributes automatically.
func AttrsWrap(h slog.Handler) slog.Handler {
	return &augmentHandler{Handler: h}
}

type augmentHandler struct {
	slog.Handler
}

func (h *augmentHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Attrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

// Redact masks the value of any LOVELY_-prefixed environment assignment
// (LOVELY_MOD_DIR, a future LOVELY_API_KEY, etc.) before it's echoed into a
// log line — argv/environ dumps are a routine debug aid, but nothing
// prefixed for this engine's own config should ever land in a log file
// verbatim.
func Redact(env []string) []string {
	out := make([]string, 0, len(env))
	for _, e := range env {
		if name, _, ok := strings.Cut(e, "="); ok && strings.HasPrefix(name, "LOVELY_") {
			out = append(out, name+"=[REDACTED]")
			continue
		}
		out = append(out, e)
	}
	return out
}

// levelColor mirrors the conventional slog-console palette: errors red,
// warnings yellow, info cyan, debug dim.
func levelColor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case l < slog.LevelInfo:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgCyan)
	}
}

// consoleHandler is a minimal slog.Handler writing one colorized line per
// record: "LEVEL - message key=value ...". Disabling colorEnabled (no
// attached console, or output redirected to a file) falls back to plain
// text.
type consoleHandler struct {
	w           *os.File
	level       slog.Level
	colorEnabled bool
	attrs       []slog.Attr
}

// NewConsoleHandler returns a handler writing to w at or above minLevel.
// colorEnabled should reflect whether w is actually an attached,
// color-capable terminal (the shim checks this once at startup via
// golang.org/x/term.IsTerminal).
func NewConsoleHandler(w *os.File, minLevel slog.Level, colorEnabled bool) slog.Handler {
	return &consoleHandler{w: w, level: minLevel, colorEnabled: colorEnabled}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	levelStr := r.Level.String()
	if h.colorEnabled {
		levelStr = levelColor(r.Level).Sprint(levelStr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", levelStr, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprintln(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *h
	n.attrs = append(slices.Clone(h.attrs), attrs...)
	return &n
}

func (h *consoleHandler) WithGroup(string) slog.Handler {
	// Groups are not meaningful for this engine's flat, single-line
	// console output; return the handler unchanged rather than panic, so
	// a library that happens to call WithGroup doesn't break logging.
	return h
}

// RunLog bundles the file sink opened by NewFileHandler with the run ID
// and path used to derive it, so callers can surface both through the
// host-visible metadata module (log_path) and diagnostics.
type RunLog struct {
	Handler slog.Handler
	Path    string
	RunID   string
}

// NewFileHandler creates <mod_dir>/lovely/log/lovely-<timestamp>-<id8>.log,
// where <id8> is the first 8 characters of the run ID, and returns a JSON
// handler writing to it, alongside the full run ID minted for this process
// (google/uuid) and the resolved path.
func NewFileHandler(modDir string, minLevel slog.Level) (*RunLog, error) {
	logDir := filepath.Join(modDir, "lovely", "log")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("loggingkit: create log dir: %w", err)
	}

	runID := uuid.NewString()
	timestamp := time.Now().Format("2006.01.02-15.04.05")
	path := filepath.Join(logDir, fmt.Sprintf("lovely-%s-%s.log", timestamp, runID[:8]))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("loggingkit: create log file: %w", err)
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: minLevel})
	return &RunLog{Handler: AttrsWrap(handler), Path: path, RunID: runID}, nil
}

// multiHandler fans a record out to every wrapped handler, evaluating
// Enabled per-handler so a console sink can run at Info while the file
// sink captures Debug.
type multiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler combines handlers into one that dispatches every record
// to each of them independently.
func NewMultiHandler(handlers ...slog.Handler) slog.Handler {
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, inner := range h.handlers {
		if inner.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, inner := range h.handlers {
		if !inner.Enabled(ctx, r.Level) {
			continue
		}
		if err := inner.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, inner := range h.handlers {
		next[i] = inner.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, inner := range h.handlers {
		next[i] = inner.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
