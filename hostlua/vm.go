// Package hostlua is a typed façade over the embedded interpreter's
// stack-based C ABI: an index-addressed operand stack shared between the
// host and Go code, matching the calling convention the embedded
// interpreter itself uses for C functions.
package hostlua

// Type mirrors the host's dynamic value tags.
type Type int

const (
	TypeNil Type = iota
	TypeBoolean
	TypeLightUserdata
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeUserdata
	TypeThread
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeUserdata, TypeLightUserdata:
		return "userdata"
	case TypeThread:
		return "thread"
	default:
		return "unknown"
	}
}

// Pseudo-indices, matching the Lua 5.1 C API the embedded interpreter
// exposes (the host is LuaJIT, which targets this ABI).
const (
	RegistryIndex = -10000
	GlobalsIndex  = -10002
)

// GoFunc is a Go-implemented callable registered into the interpreter. It
// reads its own arguments off the calling VM's stack and returns the
// number of values it pushed as results, exactly like a host C function.
type GoFunc func(vm VM) int

// VM is one interpreter state's stack. Negative indices count from the
// stack top (-1 is the top); the pseudo-indices above address the globals
// and registry tables without a real stack slot.
type VM interface {
	// Top returns the number of values currently on the stack.
	Top() int
	// Pop discards n values from the top of the stack.
	Pop(n int)

	PushNil()
	PushBoolean(b bool)
	PushString(s string)
	PushNumber(n float64)
	// PushGoFunc pushes fn as a callable value.
	PushGoFunc(fn GoFunc)
	// PushValue pushes a copy of the value at idx.
	PushValue(idx int)

	// TypeAt reports the type of the value at idx.
	TypeAt(idx int) Type
	// ToString, ToBoolean and ToNumber read idx with the host's usual
	// implicit conversions; the bool return is false when idx holds nil
	// or a value that cannot convert.
	ToString(idx int) (string, bool)
	ToBoolean(idx int) bool
	ToNumber(idx int) (float64, bool)

	// NewTable pushes a new, empty table.
	NewTable()
	// SetField pops the value on top of the stack and assigns it to
	// field name of the table at tableIdx.
	SetField(tableIdx int, name string)
	// GetField pushes the value of field name of the table at tableIdx
	// (nil if absent) and returns its type.
	GetField(tableIdx int, name string) Type

	// LoadBuffer compiles content under chunkName and pushes the
	// resulting function without executing it.
	LoadBuffer(content []byte, chunkName string) error
	// PCall calls the function nargs+1 slots below the stack top (the
	// function, then its nargs arguments already pushed above it) in
	// protected mode, leaving nresults values (or a single error value on
	// failure) on the stack.
	PCall(nargs, nresults int) error

	// Preload registers fn under package.preload[name].
	Preload(name string, fn GoFunc)
	// PreloadHas reports whether package.preload[name] is already set —
	// the canonical per-interpreter-state init signal.
	PreloadHas(name string) bool

	// Retain pops the value on top of the stack into a registry slot and
	// returns a handle that outlives the call that produced it. Used to
	// carry a load_now module's single return value into the closure
	// registered under its name in package.preload, so every later
	// require(name) gets that same value back verbatim.
	Retain() Handle
	// PushRetained pushes the value held by h. The handle remains valid
	// for reuse; nothing in this package ever releases one.
	PushRetained(h Handle)
}

// Handle is an opaque reference to a retained stack value.
type Handle int
