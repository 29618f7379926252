package hostlua

// LuaTable is a declarative builder over a freshly pushed table, letting
// callers populate it with literal fields and Go-backed functions without
// hand-pairing push/SetField calls.
type LuaTable struct {
	vm  VM
	idx int // stack index the table was pushed at
}

// NewLuaTable pushes a new table and returns a builder over it. The table
// is left on the stack — it's the caller's job to consume it (assign it
// into a parent table, or return it as a registered function's result).
func NewLuaTable(vm VM) *LuaTable {
	vm.NewTable()
	return &LuaTable{vm: vm, idx: vm.Top()}
}

func (t *LuaTable) String(name, value string) *LuaTable {
	t.vm.PushString(value)
	t.vm.SetField(t.idx, name)
	return t
}

func (t *LuaTable) Number(name string, value float64) *LuaTable {
	t.vm.PushNumber(value)
	t.vm.SetField(t.idx, name)
	return t
}

func (t *LuaTable) Bool(name string, value bool) *LuaTable {
	t.vm.PushBoolean(value)
	t.vm.SetField(t.idx, name)
	return t
}

func (t *LuaTable) Func(name string, fn GoFunc) *LuaTable {
	t.vm.PushGoFunc(fn)
	t.vm.SetField(t.idx, name)
	return t
}

// OverridePrint replaces the host's global print function with fn, so mod
// output flows through the engine's own structured logging instead of
// straight to the host's console.
func OverridePrint(vm VM, fn GoFunc) {
	vm.PushGoFunc(fn)
	vm.SetField(GlobalsIndex, "print")
}

// Preload is a thin convenience wrapper so callers constructing a module's
// loader closure read naturally at call sites: Preload(vm, "lovely", func(vm VM) int { ... }).
func Preload(vm VM, name string, fn GoFunc) {
	vm.Preload(name, fn)
}
