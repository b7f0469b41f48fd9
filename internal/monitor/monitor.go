// Package monitor implements an interactive debugger REPL over a running
// hart.Hart + csr.File + bus.SystemBus triple: register snapshot diffing,
// a breakpoint set, and a scrollback buffer, reduced to what a single
// RV32 hart needs — there is no multi-CPU registry or coprocessor
// manager here.
package monitor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rv32lab/rv32core/internal/bus"
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/hart"
)

// OutputLine holds one line of scrollback text. This REPL is plain-text
// over stdio, not a GUI overlay, so there is no colour attribute.
type OutputLine struct {
	Text string
}

// Monitor is the core debugger state machine: breakpoint set, register
// snapshot for change highlighting, and a scrollback buffer.
type Monitor struct {
	mu sync.Mutex

	h   *hart.Hart
	c   *csr.File
	mem bus.Memory

	breakpoints map[uint32]bool
	prevRegs    [32]uint32

	output    []OutputLine
	maxOutput int
}

// New returns a Monitor attached to the given hart, CSR file, and memory.
func New(h *hart.Hart, c *csr.File, mem bus.Memory) *Monitor {
	return &Monitor{
		h:           h,
		c:           c,
		mem:         mem,
		breakpoints: make(map[uint32]bool),
		maxOutput:   500,
	}
}

// appendOutput adds a line to the scrollback buffer, trimming the oldest
// lines once maxOutput is exceeded.
func (m *Monitor) appendOutput(format string, args ...interface{}) {
	m.output = append(m.output, OutputLine{Text: fmt.Sprintf(format, args...)})
	if len(m.output) > m.maxOutput {
		m.output = m.output[len(m.output)-m.maxOutput:]
	}
}

// Output returns the current scrollback buffer's text, one entry per line.
func (m *Monitor) Output() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyLocked()
}

// Execute runs one REPL command line and returns its textual result.
// Supported commands: regs, step [n], continue, break <addr>,
// disasm <addr> [n], mem <addr> [n], csr <name>.
func (m *Monitor) Execute(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	// script delegates to RunScript, which takes m.mu itself per Lua
	// callback rather than for the whole script, so it must not be
	// dispatched under the lock below.
	if fields[0] == "script" {
		if len(fields) < 2 {
			return "usage: script <file.lua>"
		}
		if err := m.RunScript(fields[1]); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("script %s completed", fields[1])
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result string
	switch fields[0] {
	case "regs":
		result = m.cmdRegs()
	case "step":
		n := 1
		if len(fields) > 1 {
			if v, err := strconv.ParseInt(fields[1], 0, 32); err == nil {
				n = int(v)
			}
		}
		result = m.cmdStep(n)
	case "continue":
		result = m.cmdContinue()
	case "break":
		if len(fields) < 2 {
			result = "usage: break <addr>"
		} else {
			result = m.cmdBreak(fields[1])
		}
	case "disasm":
		if len(fields) < 2 {
			result = "usage: disasm <addr> [n]"
		} else {
			n := 8
			if len(fields) > 2 {
				if v, err := strconv.ParseInt(fields[2], 0, 32); err == nil {
					n = int(v)
				}
			}
			result = m.cmdDisasm(fields[1], n)
		}
	case "mem":
		if len(fields) < 2 {
			result = "usage: mem <addr> [n]"
		} else {
			n := 8
			if len(fields) > 2 {
				if v, err := strconv.ParseInt(fields[2], 0, 32); err == nil {
					n = int(v)
				}
			}
			result = m.cmdMem(fields[1], n)
		}
	case "csr":
		if len(fields) < 2 {
			result = "usage: csr <name-or-addr>"
		} else {
			result = m.cmdCSR(fields[1])
		}
	case "history":
		result = strings.Join(m.historyLocked(), "\n")
	default:
		result = fmt.Sprintf("unknown command: %s", fields[0])
	}

	m.appendOutput("%s", result)
	return result
}

// historyLocked returns the scrollback text; callers must already hold
// m.mu.
func (m *Monitor) historyLocked() []string {
	lines := make([]string, len(m.output))
	for i, l := range m.output {
		lines[i] = l.Text
	}
	return lines
}

func (m *Monitor) cmdRegs() string {
	var b strings.Builder
	for i := 0; i < 32; i++ {
		v := m.h.Reg(i)
		marker := " "
		if v != m.prevRegs[i] {
			marker = "*"
		}
		fmt.Fprintf(&b, "%sx%-2d = %#010x", marker, i, v)
		if (i+1)%4 == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	fmt.Fprintf(&b, "pc  = %#010x  priv = %s", m.h.PC(), privName(m.c.Priv()))
	m.saveRegs()
	return b.String()
}

func (m *Monitor) saveRegs() {
	for i := 0; i < 32; i++ {
		m.prevRegs[i] = m.h.Reg(i)
	}
}

func privName(p uint) string {
	switch p {
	case csr.PrivU:
		return "U"
	case csr.PrivS:
		return "S"
	case csr.PrivM:
		return "M"
	default:
		return "?"
	}
}

func (m *Monitor) cmdStep(n int) string {
	for i := 0; i < n; i++ {
		if m.breakpoints[m.h.PC()] && i > 0 {
			return fmt.Sprintf("stopped at breakpoint %#x after %d step(s)", m.h.PC(), i)
		}
		m.h.Step(nil)
	}
	return fmt.Sprintf("stepped %d instruction(s), pc = %#010x", n, m.h.PC())
}

func (m *Monitor) cmdContinue() string {
	const safetyLimit = 10_000_000
	for i := 0; i < safetyLimit; i++ {
		if i > 0 && m.breakpoints[m.h.PC()] {
			return fmt.Sprintf("BREAK at %#x", m.h.PC())
		}
		m.h.Step(nil)
	}
	return "stopped: safety instruction limit reached without hitting a breakpoint"
}

func (m *Monitor) cmdBreak(arg string) string {
	addr, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return fmt.Sprintf("invalid address: %v", err)
	}
	m.breakpoints[uint32(addr)] = true
	return fmt.Sprintf("breakpoint set at %#x", addr)
}

func (m *Monitor) cmdDisasm(arg string, n int) string {
	addr, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return fmt.Sprintf("invalid address: %v", err)
	}
	var b strings.Builder
	a := uint32(addr)
	for i := 0; i < n; i++ {
		lo, ok := m.mem.R16(a)
		if !ok {
			fmt.Fprintf(&b, "%#010x: <fault>\n", a)
			break
		}
		if lo&3 == 3 {
			hi, _ := m.mem.R16(a + 2)
			fmt.Fprintf(&b, "%#010x: %08x\n", a, uint32(lo)|uint32(hi)<<16)
			a += 4
		} else {
			fmt.Fprintf(&b, "%#010x: %04x\n", a, lo)
			a += 2
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Monitor) cmdMem(arg string, n int) string {
	addr, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return fmt.Sprintf("invalid address: %v", err)
	}
	var b strings.Builder
	a := uint32(addr)
	for i := 0; i < n; i++ {
		v, ok := m.mem.R32(a)
		if !ok {
			fmt.Fprintf(&b, "%#010x: <fault>\n", a)
			break
		}
		fmt.Fprintf(&b, "%#010x: %#010x\n", a, v)
		a += 4
	}
	return strings.TrimRight(b.String(), "\n")
}

var csrNameToAddr = map[string]uint16{
	"mstatus": 0x300, "sstatus": 0x100, "misa": 0x301,
	"medeleg": 0x302, "mideleg": 0x303,
	"mie": 0x304, "sie": 0x104, "mip": 0x344, "sip": 0x144,
	"mtvec": 0x305, "stvec": 0x105,
	"mcounteren": 0x306, "scounteren": 0x106,
	"mscratch": 0x340, "sscratch": 0x140,
	"mepc": 0x341, "sepc": 0x141,
	"mcause": 0x342, "scause": 0x142,
	"mtval": 0x343, "stval": 0x143,
	"satp": 0x180,
	"mcycle": 0xB00, "minstret": 0xB02,
}

func (m *Monitor) cmdCSR(arg string) string {
	addr, ok := csrNameToAddr[arg]
	if !ok {
		parsed, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return fmt.Sprintf("unknown csr: %s", arg)
		}
		addr = uint16(parsed)
	}
	v, ok := m.c.Read(addr)
	if !ok {
		return fmt.Sprintf("csr %s: access denied at current privilege", arg)
	}
	return fmt.Sprintf("%s = %#010x", arg, v)
}

// KnownCSRNames returns the sorted list of names cmdCSR recognizes.
func KnownCSRNames() []string {
	names := make([]string, 0, len(csrNameToAddr))
	for name := range csrNameToAddr {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
