package inject

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverAndLog is the panic hook named in spec.md §4.K step 1. The
// platform entry point (cmd/lovely's cgo-exported functions) defers this
// at the top of every call the host can reach: it logs the panic with its
// stack trace and shows a platform-appropriate crash dialog, then
// re-panics so the process still terminates — this engine does not try to
// keep running past a state it can no longer reason about.
func RecoverAndLog() {
	r := recover()
	if r == nil {
		return
	}

	msg := fmt.Sprintf("lovely-injector has crashed: \n%v\n\n%s", r, debug.Stack())
	slog.Error("panic in interception shim", "panic", r, "stack", string(debug.Stack()))
	showCrashDialog(msg)
	panic(r)
}
