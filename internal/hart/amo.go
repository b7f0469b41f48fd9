package hart

import (
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/mmu"
)

const (
	amoLR      = 0x02
	amoSC      = 0x03
	amoSwap    = 0x01
	amoAdd     = 0x00
	amoXor     = 0x04
	amoAnd     = 0x0C
	amoOr      = 0x08
	amoMin     = 0x10
	amoMax     = 0x14
	amoMinu    = 0x18
	amoMaxu    = 0x1C
)

// executeAMO implements the A extension, word-sized only: LR.W, SC.W,
// and the AMO* read-modify-write family, backed by the single-bit
// load-reservation flag.
func (h *Hart) executeAMO(instr uint32, rd, rs1, rs2 int, f3 uint32, p *pending) {
	if f3 != 2 {
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
		return
	}
	funct5 := (instr >> 27) & 0x1f
	vaddr := h.Reg(rs1)

	if vaddr&3 != 0 {
		if funct5 == amoLR {
			h.raiseExceptionTval(p, csr.CauseLoadAlign, vaddr)
		} else {
			h.raiseExceptionTval(p, csr.CauseStoreAlign, vaddr)
		}
		return
	}

	switch funct5 {
	case amoLR:
		paddr, ok := h.translateMem(vaddr, mmu.PermR, false, p)
		if !ok {
			return
		}
		v, rok := h.mem.R32(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, vaddr)
			return
		}
		h.loadReserved = true
		p.rd, p.rdVal, p.rdSet = rd, v, true
		return

	case amoSC:
		if !h.loadReserved {
			p.rd, p.rdVal, p.rdSet = rd, 1, true
			return
		}
		paddr, ok := h.translateMem(vaddr, mmu.PermW, true, p)
		if !ok {
			return
		}
		if !h.mem.W32(paddr, h.Reg(rs2)) {
			h.raiseExceptionTval(p, csr.CauseStoreFault, vaddr)
			return
		}
		h.loadReserved = false
		p.rd, p.rdVal, p.rdSet = rd, 0, true
		return
	}

	paddr, ok := h.translateMem(vaddr, mmu.PermR|mmu.PermW, true, p)
	if !ok {
		return
	}
	old, rok := h.mem.R32(paddr)
	if !rok {
		// The read half of a read-modify-write still faults as a store:
		// the whole AMO is a write operation from the memory system's
		// point of view.
		h.raiseExceptionTval(p, csr.CauseStoreFault, vaddr)
		return
	}
	operand := h.Reg(rs2)

	var newVal uint32
	switch funct5 {
	case amoSwap:
		newVal = operand
	case amoAdd:
		newVal = old + operand
	case amoXor:
		newVal = old ^ operand
	case amoAnd:
		newVal = old & operand
	case amoOr:
		newVal = old | operand
	case amoMin:
		if int32(old) < int32(operand) {
			newVal = old
		} else {
			newVal = operand
		}
	case amoMax:
		if int32(old) > int32(operand) {
			newVal = old
		} else {
			newVal = operand
		}
	case amoMinu:
		if old < operand {
			newVal = old
		} else {
			newVal = operand
		}
	case amoMaxu:
		if old > operand {
			newVal = old
		} else {
			newVal = operand
		}
	default:
		panic("hart: unreachable AMO opcode selector")
	}

	if !h.mem.W32(paddr, newVal) {
		h.raiseExceptionTval(p, csr.CauseStoreFault, vaddr)
		return
	}
	p.rd, p.rdVal, p.rdSet = rd, old, true
}
