//go:build windows

package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// staleMarkers lists files that indicate a leftover install of an older,
// incompatible injection method (the classic DLL-proxy technique lovely
// itself used to ship via dwmapi.dll) sitting next to the executable.
// Running alongside one of these corrupts the host's import table
// resolution in ways that are hard to diagnose from the resulting crash,
// so this engine refuses outright instead.
var staleMarkers = []string{"dwmapi.dll", "version.dll"}

// checkStaleInstall refuses to run if a stale install marker sits next to
// the running executable (spec.md §4.K step 4).
func checkStaleInstall() error {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	dir := filepath.Dir(exe)
	for _, marker := range staleMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return fmt.Errorf("inject: found stale install marker %q next to the executable; remove it before running with this version installed", marker)
		}
	}
	return nil
}

// attachConsole allocates a console window for stdout/stderr (unless
// --disable-console was passed) and enables virtual-terminal processing so
// ANSI color codes render correctly. It returns whether color output is
// safe to use.
func attachConsole() bool {
	if err := windows.AllocConsole(); err != nil {
		return false
	}

	handle, err := windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	if err != nil {
		return false
	}

	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		return false
	}
	mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
	if err := windows.SetConsoleMode(handle, mode); err != nil {
		return false
	}

	stdout := os.NewFile(uintptr(handle), "/dev/stdout")
	if stdout != nil {
		os.Stdout = stdout
	}
	return true
}

// showCrashDialog displays a platform-appropriate error dialog for the
// panic hook (spec.md §4.K step 1).
func showCrashDialog(message string) {
	title, _ := syscall.UTF16PtrFromString("lovely-injector has crashed")
	text, _ := syscall.UTF16PtrFromString(message)
	const mbIconError = 0x00000010
	_, _, _ = procMessageBoxW.Call(
		0,
		uintptr(unsafe.Pointer(text)),
		uintptr(unsafe.Pointer(title)),
		mbIconError,
	)
}

var (
	user32          = syscall.NewLazyDLL("user32.dll")
	procMessageBoxW = user32.NewProc("MessageBoxW")
)
