package monitor

import (
	"fmt"

	"github.com/yuin/gopher-lua"
)

// RunScript executes a Lua script against this Monitor's hart, binding
// step(), reg(name), setreg(name, value), mem(addr), and assertReg(name,
// value) as Lua-callable functions so a scenario like the ones walked
// through by hand in the hart package's tests can instead be written as a
// short script and run interactively.
func (m *Monitor) RunScript(path string) error {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("step", L.NewFunction(m.luaStep))
	L.SetGlobal("reg", L.NewFunction(m.luaReg))
	L.SetGlobal("setreg", L.NewFunction(m.luaSetReg))
	L.SetGlobal("mem", L.NewFunction(m.luaMem))
	L.SetGlobal("assertReg", L.NewFunction(m.luaAssertReg))

	if err := L.DoFile(path); err != nil {
		return fmt.Errorf("monitor: script %s: %w", path, err)
	}
	return nil
}

func regIndexArg(L *lua.LState, n int) (int, error) {
	idx := int(L.CheckNumber(n))
	if idx < 0 || idx > 31 {
		return 0, fmt.Errorf("register index %d out of range", idx)
	}
	return idx, nil
}

func (m *Monitor) luaStep(L *lua.LState) int {
	n := 1
	if L.GetTop() >= 1 {
		n = int(L.CheckNumber(1))
	}
	m.mu.Lock()
	for i := 0; i < n; i++ {
		m.h.Step(nil)
	}
	m.mu.Unlock()
	return 0
}

func (m *Monitor) luaReg(L *lua.LState) int {
	idx, err := regIndexArg(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	m.mu.Lock()
	v := m.h.Reg(idx)
	m.mu.Unlock()
	L.Push(lua.LNumber(v))
	return 1
}

func (m *Monitor) luaSetReg(L *lua.LState) int {
	idx, err := regIndexArg(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	v := uint32(L.CheckNumber(2))
	m.mu.Lock()
	m.h.SetReg(idx, v)
	m.mu.Unlock()
	return 0
}

func (m *Monitor) luaMem(L *lua.LState) int {
	addr := uint32(L.CheckNumber(1))
	m.mu.Lock()
	v, ok := m.mem.R32(addr)
	m.mu.Unlock()
	if !ok {
		L.RaiseError("mem(%#x): fault", addr)
		return 0
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (m *Monitor) luaAssertReg(L *lua.LState) int {
	idx, err := regIndexArg(L, 1)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	want := uint32(L.CheckNumber(2))
	m.mu.Lock()
	got := m.h.Reg(idx)
	m.mu.Unlock()
	if got != want {
		L.RaiseError("assertReg(x%d): got %#x, want %#x", idx, got, want)
	}
	return 0
}
