// Command lovely is the host-loaded artifact: built with
// -buildmode=c-shared, it exports the two C entry points the host's
// dynamic-library loader resolves in place of the interpreter's own
// "load chunk" symbol (spec.md §4.K step 5), standing in for the
// original project's liblovely cdylib.
package main

/*
#include <stddef.h>
#include <stdlib.h>
#include "lua.h"

typedef int (*lovely_recall_fn)(lua_State *L, const char *buf, ptrdiff_t size, const char *name, const char *mode);

static int lovely_call_recall(lovely_recall_fn fn, lua_State *L, const char *buf, ptrdiff_t size, const char *name, const char *mode) {
	return fn(L, buf, size, name, mode);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	"github.com/ethangreen-dev/lovely-injector/hostlua"
	"github.com/ethangreen-dev/lovely-injector/inject"
)

// recallFn is stashed once at lovely_init time; every apply call
// afterward threads the buffer back through it to reach the real
// loadbuffer implementation.
var recallFn C.lovely_recall_fn

//export lovely_init
func lovely_init(recall C.lovely_recall_fn) {
	defer inject.RecoverAndLog()

	recallFn = recall

	argv := os.Args
	if len(argv) > 0 {
		argv = argv[1:]
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "lovely"
	}

	if _, err := inject.Init(argv, exe); err != nil {
		fmt.Fprintln(os.Stderr, "lovely-injector failed to initialize:", err)
		panic(err)
	}
	slog.Info("lovely-injector initialized")
}

//export lovely_apply_patches
func lovely_apply_patches(state *C.lua_State, bufPtr *C.char, size C.ptrdiff_t, namePtr, modePtr *C.char) C.int {
	defer inject.RecoverAndLog()

	shim := inject.Global()
	if shim == nil {
		// lovely_init was never called; pass through untouched.
		return C.lovely_call_recall(recallFn, state, bufPtr, size, namePtr, modePtr)
	}

	buf := C.GoBytes(unsafe.Pointer(bufPtr), C.int(size))
	name := C.GoString(namePtr)
	mode := ""
	if modePtr != nil {
		mode = C.GoString(modePtr)
	}

	vm := hostlua.NewVM(unsafe.Pointer(state))

	return C.int(shim.HandleLoadBuffer(vm, buf, name, mode, func(patched []byte, outName, outMode string) int {
		cPatched := C.CBytes(patched)
		defer C.free(cPatched)

		var cMode *C.char
		if outMode != "" {
			cMode = C.CString(outMode)
			defer C.free(unsafe.Pointer(cMode))
		}

		cName := C.CString(outName)
		defer C.free(unsafe.Pointer(cName))

		return int(C.lovely_call_recall(
			recallFn,
			state,
			(*C.char)(cPatched),
			C.ptrdiff_t(len(patched)),
			cName,
			cMode,
		))
	}))
}

func main() {}
