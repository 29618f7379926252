//go:build !windows

package inject

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// checkStaleInstall is a no-op outside Windows: the stale-marker problem
// (spec.md §4.K step 4) is specific to the DLL-proxy technique this engine
// replaces there.
func checkStaleInstall() error {
	return nil
}

// attachConsole never needs to allocate a console outside Windows — a
// Unix process that launches with one already has stdout/stderr attached
// — so its only job here is reporting whether that stdout is actually a
// color-capable terminal, the way the console handler expects.
func attachConsole() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// showCrashDialog has no native dialog equivalent on this platform, so the
// panic hook's message goes to stderr instead.
func showCrashDialog(message string) {
	fmt.Fprintln(os.Stderr, "lovely-injector has crashed:")
	fmt.Fprintln(os.Stderr, message)
}
