package inject

// HookInstaller is implemented per-platform to redirect the host's
// load-chunk symbol to this package's detour and hand back a callable to
// continue invoking the original implementation (the "recall"). Actually
// patching the host's executable bytes at a resolved address is out of
// scope for this engine (platform inline-hook internals are a Non-goal)
// — this interface is the seam a real implementation plugs into, kept
// separate from HandleLoadBuffer so the detour logic itself stays
// testable without one.
type HookInstaller interface {
	// InstallHook redirects target to this package's detour and returns
	// the address of the original implementation.
	InstallHook(target uintptr) (orig uintptr, err error)
}

// DirectExportInstaller models the Unix/liblovely grounding: rather than
// patching bytes at a resolved address, the shared library exports
// symbols named exactly like the hooked host functions (luaL_loadbuffer,
// luaL_loadbufferx), and the dynamic linker's symbol resolution order
// preempts the real libc/Lua ones automatically — no inline patch ever
// happens. InstallHook is a no-op returning Orig unchanged; callers are
// expected to have already resolved the real symbol (e.g. via
// dlsym(RTLD_NEXT, ...)) before constructing this installer.
type DirectExportInstaller struct {
	Orig uintptr
}

func (d DirectExportInstaller) InstallHook(uintptr) (uintptr, error) {
	return d.Orig, nil
}
