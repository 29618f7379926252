//go:build cgo

package hostlua

/*
#include <stdlib.h>
#include <string.h>
#include "lua.h"
#include "lauxlib.h"

extern int lovely_go_trampoline_impl(lua_State *L, long long id);

static int lovely_go_trampoline(lua_State *L) {
	long long id = (long long) lua_tointeger(L, lua_upvalueindex(1));
	return lovely_go_trampoline_impl(L, id);
}

static void lovely_push_trampoline(lua_State *L, long long id) {
	lua_pushinteger(L, (lua_Integer) id);
	lua_pushcclosure(L, lovely_go_trampoline, 1);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// funcRegistry maps the synthetic ids threaded through the C trampoline's
// upvalue back to the Go closure they represent. Entries are never
// removed: a registered GoFunc typically lives for the process lifetime
// (a module patch's preload entry, a metadata module's method table).
var (
	funcRegistry   sync.Map // int64 -> GoFunc
	funcRegistryID int64
)

//export lovely_go_trampoline_impl
func lovely_go_trampoline_impl(L *C.lua_State, id C.longlong) C.int {
	v, ok := funcRegistry.Load(int64(id))
	if !ok {
		return 0
	}
	return C.int(v.(GoFunc)(&cgoVM{state: L}))
}

// cgoVM implements VM against a real lua_State* obtained from the host via
// the interception shim.
type cgoVM struct {
	state *C.lua_State
}

// vmByState caches one wrapper per lua_State so repeated NewVM calls for
// the same state return the same VM value.
var vmByState sync.Map // unsafe.Pointer -> *cgoVM

// NewVM wraps an opaque lua_State pointer handed to the shim by the host.
func NewVM(state unsafe.Pointer) VM {
	if v, ok := vmByState.Load(state); ok {
		return v.(*cgoVM)
	}
	v, _ := vmByState.LoadOrStore(state, &cgoVM{state: (*C.lua_State)(state)})
	return v.(*cgoVM)
}

func (v *cgoVM) Top() int { return int(C.lua_gettop(v.state)) }

func (v *cgoVM) Pop(n int) { C.lua_settop(v.state, C.int(-n-1)) }

func (v *cgoVM) PushNil() { C.lua_pushnil(v.state) }

func (v *cgoVM) PushBoolean(b bool) {
	var i C.int
	if b {
		i = 1
	}
	C.lua_pushboolean(v.state, i)
}

func (v *cgoVM) PushString(s string) {
	if len(s) == 0 {
		C.lua_pushlstring(v.state, (*C.char)(nil), 0)
		return
	}
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	C.lua_pushlstring(v.state, cs, C.size_t(len(s)))
}

func (v *cgoVM) PushNumber(n float64) { C.lua_pushnumber(v.state, C.lua_Number(n)) }

func (v *cgoVM) PushValue(idx int) { C.lua_pushvalue(v.state, C.int(idx)) }

func (v *cgoVM) PushGoFunc(fn GoFunc) {
	id := atomic.AddInt64(&funcRegistryID, 1)
	funcRegistry.Store(id, fn)
	C.lovely_push_trampoline(v.state, C.longlong(id))
}

func fromCType(t C.int) Type {
	switch t {
	case C.LUA_TNIL:
		return TypeNil
	case C.LUA_TBOOLEAN:
		return TypeBoolean
	case C.LUA_TLIGHTUSERDATA:
		return TypeLightUserdata
	case C.LUA_TNUMBER:
		return TypeNumber
	case C.LUA_TSTRING:
		return TypeString
	case C.LUA_TTABLE:
		return TypeTable
	case C.LUA_TFUNCTION:
		return TypeFunction
	case C.LUA_TUSERDATA:
		return TypeUserdata
	case C.LUA_TTHREAD:
		return TypeThread
	default:
		return TypeNil
	}
}

func (v *cgoVM) TypeAt(idx int) Type {
	return fromCType(C.lua_type(v.state, C.int(idx)))
}

func (v *cgoVM) ToString(idx int) (string, bool) {
	if C.lua_type(v.state, C.int(idx)) == C.LUA_TNIL {
		return "", false
	}
	var length C.size_t
	cs := C.lua_tolstring(v.state, C.int(idx), &length)
	if cs == nil {
		return "", false
	}
	return C.GoStringN(cs, C.int(length)), true
}

func (v *cgoVM) ToBoolean(idx int) bool {
	return C.lua_toboolean(v.state, C.int(idx)) != 0
}

func (v *cgoVM) ToNumber(idx int) (float64, bool) {
	if C.lua_type(v.state, C.int(idx)) != C.LUA_TNUMBER {
		return 0, false
	}
	return float64(C.lua_tonumber(v.state, C.int(idx))), true
}

func (v *cgoVM) NewTable() { C.lua_newtable(v.state) }

func (v *cgoVM) SetField(tableIdx int, name string) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	C.lua_setfield(v.state, C.int(tableIdx), cs)
}

func (v *cgoVM) GetField(tableIdx int, name string) Type {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	C.lua_getfield(v.state, C.int(tableIdx), cs)
	return fromCType(C.lua_type(v.state, -1))
}

func (v *cgoVM) LoadBuffer(content []byte, chunkName string) error {
	cs := C.CString(chunkName)
	defer C.free(unsafe.Pointer(cs))
	var dataPtr *C.char
	if len(content) > 0 {
		dataPtr = (*C.char)(unsafe.Pointer(&content[0]))
	}
	rc := C.luaL_loadbuffer(v.state, dataPtr, C.size_t(len(content)), cs)
	if rc != 0 {
		msg, _ := v.ToString(-1)
		v.Pop(1)
		return fmt.Errorf("hostlua: load %s: %s", chunkName, msg)
	}
	return nil
}

func (v *cgoVM) PCall(nargs, nresults int) error {
	rc := C.lua_pcall(v.state, C.int(nargs), C.int(nresults), 0)
	if rc != 0 {
		msg, _ := v.ToString(-1)
		v.Pop(1)
		return fmt.Errorf("hostlua: pcall: %s", msg)
	}
	return nil
}

// preloadTable pushes package.preload and leaves it on top of the stack.
func (v *cgoVM) preloadTable() {
	v.GetField(GlobalsIndex, "package")
	v.GetField(-1, "preload")
	C.lua_remove(v.state, -2)
}

func (v *cgoVM) Preload(name string, fn GoFunc) {
	v.preloadTable()
	v.PushGoFunc(fn)
	v.SetField(-2, name)
	v.Pop(1)
}

func (v *cgoVM) PreloadHas(name string) bool {
	v.preloadTable()
	t := v.GetField(-1, name)
	present := t != TypeNil
	v.Pop(2)
	return present
}

// Retain pops the stack top into a fresh LUA_REGISTRYINDEX slot via
// luaL_ref, the standard way to hold a reference to an arbitrary Lua value
// across C calls.
func (v *cgoVM) Retain() Handle {
	return Handle(C.luaL_ref(v.state, C.LUA_REGISTRYINDEX))
}

func (v *cgoVM) PushRetained(h Handle) {
	C.lua_rawgeti(v.state, C.LUA_REGISTRYINDEX, C.int(h))
}
