package hart

import "github.com/rv32lab/rv32core/internal/csr"

const (
	funct12ECALL  = 0x000
	funct12EBREAK = 0x001
	funct12SRET   = 0x102
	funct12MRET   = 0x302
	funct12WFI    = 0x105
	funct7SFence  = 0x09
)

// executeSystem dispatches the SYSTEM opcode: CSR instructions, MRET,
// SRET, SFENCE.VMA, ECALL, EBREAK, WFI.
func (h *Hart) executeSystem(instr uint32, rd, rs1 int, f3 uint32, p *pending) {
	if f3 == 0 {
		h.executePrivileged(instr, rd, rs1, p)
		return
	}
	h.executeCSR(instr, rd, rs1, f3, p)
}

func (h *Hart) executePrivileged(instr uint32, rd, rs1 int, p *pending) {
	funct12 := instr >> 20
	f7 := funct7Field(instr)

	switch {
	case funct12 == funct12ECALL && rs1 == 0 && rd == 0:
		h.raiseExceptionTval(p, uint32(csr.CauseECallU)+uint32(h.csr.Priv()), 0)

	case funct12 == funct12EBREAK && rs1 == 0 && rd == 0:
		h.raiseExceptionTval(p, csr.CauseBreakpoint, 0)

	case funct12 == funct12MRET && rs1 == 0 && rd == 0:
		if h.csr.Priv() != csr.PrivM {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		p.pc, p.pcSet = h.csr.TrapMRET(), true

	case funct12 == funct12SRET && rs1 == 0 && rd == 0:
		if h.csr.Priv() < csr.PrivS {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		target, ok := h.csr.TrapSRET()
		if !ok {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		p.pc, p.pcSet = target, true

	case funct12 == funct12WFI && rs1 == 0 && rd == 0:
		// nop: no idle state is modeled, so WFI just falls through

	case f7 == funct7SFence && rd == 0:
		if !h.csr.PermitSFenceVMA() {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		// nop: no TLB is modeled, so SFENCE.VMA has nothing to flush

	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
	}
}

func (h *Hart) executeCSR(instr uint32, rd, rs1 int, f3 uint32, p *pending) {
	addr := uint16(instr >> 20)

	var op csr.WriteOp
	var operand uint32
	var needRead, needWrite bool

	switch f3 {
	case 1: // CSRRW
		op, operand, needRead, needWrite = csr.OpWrite, h.Reg(rs1), rd != 0, true
	case 2: // CSRRS
		op, operand, needRead, needWrite = csr.OpSet, h.Reg(rs1), true, rs1 != 0
	case 3: // CSRRC
		op, operand, needRead, needWrite = csr.OpClear, h.Reg(rs1), true, rs1 != 0
	case 5: // CSRRWI
		op, operand, needRead, needWrite = csr.OpWrite, uint32(rs1), rd != 0, true
	case 6: // CSRRSI
		op, operand, needRead, needWrite = csr.OpSet, uint32(rs1), true, rs1 != 0
	case 7: // CSRRCI
		op, operand, needRead, needWrite = csr.OpClear, uint32(rs1), true, rs1 != 0
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
		return
	}

	var readVal uint32
	if needRead {
		v, ok := h.csr.Read(addr)
		if !ok {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		readVal = v
	}

	if needWrite {
		if !h.csr.Write(addr, operand, op) {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		p.csrWritten, p.csrAddr = true, addr
		if v, ok := h.csr.Read(addr); ok {
			p.csrVal = v
		}
	}

	if needRead {
		p.rd, p.rdVal, p.rdSet = rd, readVal, true
	}
}
