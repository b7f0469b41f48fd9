// Package hart implements the RV32 instruction interpreter: register
// file, program counter, load-reservation flag, and the fetch-decode-
// execute-commit step that drives them. It queries internal/csr for
// privileged state and internal/mmu for address translation rather than
// owning either.
package hart

import (
	"github.com/rv32lab/rv32core/internal/bus"
	"github.com/rv32lab/rv32core/internal/csr"
)

// Tracer receives one call per retired instruction plus supplementary
// calls for CSR writes, traps, and privilege changes. A nil Tracer
// disables all of it.
type Tracer interface {
	Instr(pc uint32, raw uint32, instrLen int, rd int, rdVal uint32, rdSet bool, nextPC uint32)
	CSRWrite(addr uint16, value uint32)
	Trap(cause uint32, nextPC uint32)
	PrivChange(from, to uint)
}

// Hart is a single RV32 hardware thread: 32 general-purpose registers
// (x0 always reads zero), a program counter, and the single-bit
// load-reservation flag used by LR.W/SC.W. Privileged state lives in the
// attached *csr.File; physical memory in the attached bus.Memory.
type Hart struct {
	x  [32]uint32
	pc uint32

	loadReserved bool

	csr *csr.File
	mem bus.Memory
}

// New returns a Hart wired to the given memory and CSR file. Both must
// already exist; Hart does not own their lifecycle.
func New(mem bus.Memory, csrFile *csr.File) *Hart {
	return &Hart{mem: mem, csr: csrFile}
}

// Reset zeroes every GPR, sets PC to resetVector, and clears the
// load-reservation flag. It does not reset the CSR file; callers reset
// csr.File separately since it may be shared or need different timing.
func (h *Hart) Reset(resetVector uint32) {
	h.x = [32]uint32{}
	h.pc = resetVector
	h.loadReserved = false
}

// PC returns the current program counter.
func (h *Hart) PC() uint32 { return h.pc }

// Reg returns GPR i (0 always reads zero).
func (h *Hart) Reg(i int) uint32 {
	if i == 0 {
		return 0
	}
	return h.x[i]
}

// SetReg writes GPR i, discarding writes to x0.
func (h *Hart) SetReg(i int, v uint32) {
	if i == 0 {
		return
	}
	h.x[i] = v
}

// CSR exposes the attached CSR file for hosts that need direct access
// (the monitor, tests, trace annotation).
func (h *Hart) CSR() *csr.File { return h.csr }

// pending accumulates the tentative effects of one instruction before
// they are committed: a later check (e.g. a faulting load) must not
// leave an earlier partial effect (a register writeback) visible.
type pending struct {
	rd      int
	rdVal   uint32
	rdSet   bool
	pc      uint32
	pcSet   bool
	cause   uint32
	trapped bool
	tval    uint32
	tvalSet bool

	csrWritten bool
	csrAddr    uint16
	csrVal     uint32
}

// Step advances the hart by exactly one architectural instruction:
// fetch, decode, execute, exception check, interrupt check, commit. It
// never blocks, never returns an error, and never leaves partial state
// visible on a faulting instruction.
func (h *Hart) Step(tr Tracer) {
	startPC := h.pc
	p := &pending{}

	raw, instrLen, ok := h.fetch(startPC, p)
	if ok {
		h.decodeAndExecute(raw, instrLen, startPC, p)
	}

	nextPC := h.commit(startPC, raw, instrLen, p, tr)
	h.pc = nextPC
}

// commit applies a fixed ordering: exception entry, else interrupt
// check, else the instruction's own next-PC; then the register
// writeback; then the counters.
func (h *Hart) commit(pc, raw uint32, instrLen int, p *pending, tr Tracer) uint32 {
	var nextPC uint32

	if p.trapped {
		priorPriv := h.csr.Priv()
		target := h.csr.TrapEnterException(p.cause, pc)
		tval := p.tval
		if !p.tvalSet && p.cause == csr.CauseInstrIllegal {
			tval = raw
		}
		h.csr.TrapSetXTval(tval)
		if tr != nil {
			if h.csr.Priv() != priorPriv {
				tr.PrivChange(priorPriv, h.csr.Priv())
			}
			tr.Trap(p.cause, target)
		}
		nextPC = target
	} else {
		tentative := pc + uint32(instrLen)
		if p.pcSet {
			tentative = p.pc
		}
		if target, fired := h.csr.TrapCheckEnterIRQ(tentative); fired {
			if tr != nil {
				tr.Trap(h.csr.GetXCause(), target)
			}
			nextPC = target
		} else {
			nextPC = tentative
		}
	}

	if !p.trapped && p.rdSet && p.rd != 0 {
		h.SetReg(p.rd, p.rdVal)
	}

	if p.csrWritten && tr != nil {
		tr.CSRWrite(p.csrAddr, p.csrVal)
	}

	h.csr.StepCounters()

	if tr != nil {
		rdVal := p.rdVal
		rdSet := p.rdSet && !p.trapped && p.rd != 0
		tr.Instr(pc, raw, instrLen, p.rd, rdVal, rdSet, nextPC)
	}

	return nextPC
}

func (h *Hart) raiseException(p *pending, cause uint32) {
	p.trapped = true
	p.cause = cause
}

func (h *Hart) raiseExceptionTval(p *pending, cause, tval uint32) {
	p.trapped = true
	p.cause = cause
	p.tval = tval
	p.tvalSet = true
}
