package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rv32lab/rv32core/internal/bus"
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/hart"
)

func newTestMonitor(t *testing.T) (*Monitor, *hart.Hart, *bus.SystemBus) {
	t.Helper()
	b := bus.NewSystemBus(0x10000)
	c := csr.New()
	h := hart.New(b, c)
	h.Reset(0x40)
	return New(h, c, b), h, b
}

func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func TestMonitorRegsShowsUpdatedValue(t *testing.T) {
	m, _, b := newTestMonitor(t)
	b.W32(0x40, encodeI(0x13, 5, 0, 0, 7)) // addi x5, x0, 7

	m.Execute("step")
	out := m.Execute("regs")
	if !strings.Contains(out, "x5") {
		t.Fatalf("regs output missing x5: %s", out)
	}
}

func TestMonitorBreakStopsContinue(t *testing.T) {
	m, _, b := newTestMonitor(t)
	b.W32(0x40, encodeI(0x13, 5, 0, 0, 1))
	b.W32(0x44, encodeI(0x13, 5, 0, 5, 1))
	b.W32(0x48, encodeI(0x13, 5, 0, 5, 1))

	m.Execute("break 0x44")
	out := m.Execute("continue")
	if !strings.Contains(out, "BREAK at 0x44") {
		t.Fatalf("continue output = %q, want breakpoint hit at 0x44", out)
	}
}

func TestMonitorMemReadsWrittenWord(t *testing.T) {
	m, _, b := newTestMonitor(t)
	b.W32(0x1000, 0xdeadbeef)

	out := m.Execute("mem 0x1000 1")
	if !strings.Contains(out, "0xdeadbeef") {
		t.Fatalf("mem output = %q, want 0xdeadbeef", out)
	}
}

func TestMonitorCSRReadsMstatus(t *testing.T) {
	m, _, _ := newTestMonitor(t)
	out := m.Execute("csr mstatus")
	if !strings.Contains(out, "mstatus =") {
		t.Fatalf("csr output = %q", out)
	}
}

func TestMonitorDisasmDoesNotFault(t *testing.T) {
	m, _, b := newTestMonitor(t)
	b.W32(0x40, encodeI(0x13, 0, 0, 0, 0))
	out := m.Execute("disasm 0x40 1")
	if strings.Contains(out, "<fault>") {
		t.Fatalf("disasm output = %q, unexpected fault", out)
	}
}

func TestMonitorScriptDrivesHartAndAsserts(t *testing.T) {
	m, _, b := newTestMonitor(t)
	b.W32(0x40, encodeI(0x13, 5, 0, 0, 9)) // addi x5, x0, 9

	dir := t.TempDir()
	script := filepath.Join(dir, "scenario.lua")
	src := `
step()
assertReg(5, 9)
setreg(6, 123)
assertReg(6, 123)
`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	if err := m.RunScript(script); err != nil {
		t.Fatalf("RunScript failed: %v", err)
	}
}

func TestMonitorScriptAssertionFailureReturnsError(t *testing.T) {
	m, _, _ := newTestMonitor(t)

	dir := t.TempDir()
	script := filepath.Join(dir, "bad.lua")
	src := `assertReg(0, 1)`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	if err := m.RunScript(script); err == nil {
		t.Fatal("expected RunScript to fail on a false assertion")
	}
}

func TestKnownCSRNamesIsSortedAndNonEmpty(t *testing.T) {
	names := KnownCSRNames()
	if len(names) == 0 {
		t.Fatal("expected at least one known CSR name")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}
