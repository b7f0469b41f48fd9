package hart

import (
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/mmu"
)

// executeLoad handles the load half of loads/stores: alignment check,
// translation, bus read, sign extension.
func (h *Hart) executeLoad(instr uint32, rd, rs1 int, f3 uint32, p *pending) {
	vaddr := h.Reg(rs1) + uint32(iImm(instr))

	switch f3 {
	case 1, 5: // LH, LHU
		if vaddr&1 != 0 {
			h.raiseExceptionTval(p, csr.CauseLoadAlign, vaddr)
			return
		}
	case 2: // LW
		if vaddr&3 != 0 {
			h.raiseExceptionTval(p, csr.CauseLoadAlign, vaddr)
			return
		}
	}

	paddr, ok := h.translateMem(vaddr, mmu.PermR, false, p)
	if !ok {
		return
	}

	var v uint32
	switch f3 {
	case 0: // LB
		b, rok := h.mem.R8(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, vaddr)
			return
		}
		v = uint32(int32(int8(b)))
	case 1: // LH
		x, rok := h.mem.R16(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, vaddr)
			return
		}
		v = uint32(int32(int16(x)))
	case 2: // LW
		x, rok := h.mem.R32(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, vaddr)
			return
		}
		v = x
	case 4: // LBU
		b, rok := h.mem.R8(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, vaddr)
			return
		}
		v = uint32(b)
	case 5: // LHU
		x, rok := h.mem.R16(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, vaddr)
			return
		}
		v = uint32(x)
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
		return
	}

	p.rd, p.rdVal, p.rdSet = rd, v, true
}

// executeStore implements the store half of the same rule.
func (h *Hart) executeStore(instr uint32, rs1, rs2 int, f3 uint32, p *pending) {
	vaddr := h.Reg(rs1) + uint32(sImm(instr))
	val := h.Reg(rs2)

	switch f3 {
	case 1: // SH
		if vaddr&1 != 0 {
			h.raiseExceptionTval(p, csr.CauseStoreAlign, vaddr)
			return
		}
	case 2: // SW
		if vaddr&3 != 0 {
			h.raiseExceptionTval(p, csr.CauseStoreAlign, vaddr)
			return
		}
	}

	paddr, ok := h.translateMem(vaddr, mmu.PermW, true, p)
	if !ok {
		return
	}

	var wok bool
	switch f3 {
	case 0: // SB
		wok = h.mem.W8(paddr, uint8(val))
	case 1: // SH
		wok = h.mem.W16(paddr, uint16(val))
	case 2: // SW
		wok = h.mem.W32(paddr, val)
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
		return
	}
	if !wok {
		h.raiseExceptionTval(p, csr.CauseStoreFault, vaddr)
	}
}
