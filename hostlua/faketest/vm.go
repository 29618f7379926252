// Package faketest is a pure-Go stand-in for hostlua.VM: enough of the
// stack-based C ABI surface to exercise module registration, pcall, and
// table field access in tests without cgo or a real interpreter.
package faketest

import (
	"fmt"

	"github.com/ethangreen-dev/lovely-injector/hostlua"
)

type table struct {
	fields map[string]any
}

func newTable() *table { return &table{fields: map[string]any{}} }

type chunk struct {
	name    string
	content []byte
}

// VM is the faketest stack machine. Executed records, in call order, the
// chunk names evaluated via PCall, so tests can assert load_now behavior
// without a real interpreter to observe side effects through.
type VM struct {
	stack    []any
	globals  *table
	Executed []string

	retained   map[int]any
	retainedID int
}

// New returns a VM with an empty globals table and a ready
// package.preload table, matching the host's baseline state.
func New() *VM {
	pkg := newTable()
	pkg.fields["preload"] = newTable()
	globals := newTable()
	globals.fields["package"] = pkg
	return &VM{globals: globals, retained: map[int]any{}}
}

func (v *VM) resolveStack(idx int) int {
	if idx < 0 {
		return len(v.stack) + idx
	}
	return idx - 1
}

func (v *VM) tableAt(tableIdx int) *table {
	if tableIdx == hostlua.GlobalsIndex || tableIdx == hostlua.RegistryIndex {
		return v.globals
	}
	i := v.resolveStack(tableIdx)
	if i < 0 || i >= len(v.stack) {
		return nil
	}
	t, _ := v.stack[i].(*table)
	return t
}

func (v *VM) Top() int { return len(v.stack) }

func (v *VM) Pop(n int) {
	if n > len(v.stack) {
		n = len(v.stack)
	}
	v.stack = v.stack[:len(v.stack)-n]
}

func (v *VM) PushNil()            { v.stack = append(v.stack, nil) }
func (v *VM) PushBoolean(b bool)  { v.stack = append(v.stack, b) }
func (v *VM) PushString(s string) { v.stack = append(v.stack, s) }
func (v *VM) PushNumber(n float64) { v.stack = append(v.stack, n) }
func (v *VM) PushGoFunc(fn hostlua.GoFunc) { v.stack = append(v.stack, fn) }

func (v *VM) PushValue(idx int) {
	i := v.resolveStack(idx)
	if i < 0 || i >= len(v.stack) {
		v.stack = append(v.stack, nil)
		return
	}
	v.stack = append(v.stack, v.stack[i])
}

func typeOf(val any) hostlua.Type {
	switch val.(type) {
	case nil:
		return hostlua.TypeNil
	case bool:
		return hostlua.TypeBoolean
	case float64:
		return hostlua.TypeNumber
	case string:
		return hostlua.TypeString
	case *table:
		return hostlua.TypeTable
	case hostlua.GoFunc, *chunk:
		return hostlua.TypeFunction
	default:
		return hostlua.TypeNil
	}
}

func (v *VM) TypeAt(idx int) hostlua.Type {
	i := v.resolveStack(idx)
	if i < 0 || i >= len(v.stack) {
		return hostlua.TypeNil
	}
	return typeOf(v.stack[i])
}

func (v *VM) ToString(idx int) (string, bool) {
	i := v.resolveStack(idx)
	if i < 0 || i >= len(v.stack) {
		return "", false
	}
	s, ok := v.stack[i].(string)
	return s, ok
}

func (v *VM) ToBoolean(idx int) bool {
	i := v.resolveStack(idx)
	if i < 0 || i >= len(v.stack) {
		return false
	}
	b, _ := v.stack[i].(bool)
	return b
}

func (v *VM) ToNumber(idx int) (float64, bool) {
	i := v.resolveStack(idx)
	if i < 0 || i >= len(v.stack) {
		return 0, false
	}
	n, ok := v.stack[i].(float64)
	return n, ok
}

func (v *VM) NewTable() { v.stack = append(v.stack, newTable()) }

func (v *VM) SetField(tableIdx int, name string) {
	if len(v.stack) == 0 {
		return
	}
	val := v.stack[len(v.stack)-1]
	v.Pop(1)
	if t := v.tableAt(tableIdx); t != nil {
		t.fields[name] = val
	}
}

func (v *VM) GetField(tableIdx int, name string) hostlua.Type {
	var val any
	if t := v.tableAt(tableIdx); t != nil {
		val = t.fields[name]
	}
	v.stack = append(v.stack, val)
	return typeOf(val)
}

func (v *VM) LoadBuffer(content []byte, chunkName string) error {
	cp := append([]byte(nil), content...)
	v.stack = append(v.stack, &chunk{name: chunkName, content: cp})
	return nil
}

// PCall calls the function nargs+1 slots below the top. A GoFunc runs with
// its arguments at stack indices 1..nargs, and the values it returns
// replace the function and its arguments; a loaded chunk is recorded in
// Executed and "returns" a single boolean true, since faketest has no real
// Lua evaluator behind it.
func (v *VM) PCall(nargs, nresults int) error {
	funcIdx := len(v.stack) - nargs - 1
	if funcIdx < 0 {
		return fmt.Errorf("faketest: stack underflow in pcall")
	}
	fn := v.stack[funcIdx]
	args := v.stack[funcIdx+1:]
	v.stack = v.stack[:funcIdx:funcIdx]
	switch f := fn.(type) {
	case hostlua.GoFunc:
		base := v.stack
		v.stack = args
		n := f(v)
		if n > len(v.stack) {
			n = len(v.stack)
		}
		v.stack = append(base, v.stack[len(v.stack)-n:]...)
	case *chunk:
		v.Executed = append(v.Executed, f.name)
		v.stack = append(v.stack, true)
	default:
		return fmt.Errorf("faketest: value at call position is not callable")
	}
	return nil
}

func (v *VM) preloadTable() *table {
	pkg, _ := v.globals.fields["package"].(*table)
	if pkg == nil {
		return nil
	}
	preload, _ := pkg.fields["preload"].(*table)
	return preload
}

func (v *VM) Preload(name string, fn hostlua.GoFunc) {
	if preload := v.preloadTable(); preload != nil {
		preload.fields[name] = fn
	}
}

func (v *VM) PreloadHas(name string) bool {
	preload := v.preloadTable()
	if preload == nil {
		return false
	}
	_, ok := preload.fields[name]
	return ok
}

// Retain pops the stack top into a map slot keyed by a monotonically
// increasing id, mirroring the registry-ref semantics of the real VM.
func (v *VM) Retain() hostlua.Handle {
	var val any
	if len(v.stack) > 0 {
		val = v.stack[len(v.stack)-1]
		v.Pop(1)
	}
	v.retainedID++
	v.retained[v.retainedID] = val
	return hostlua.Handle(v.retainedID)
}

func (v *VM) PushRetained(h hostlua.Handle) {
	v.stack = append(v.stack, v.retained[int(h)])
}

var _ hostlua.VM = (*VM)(nil)
