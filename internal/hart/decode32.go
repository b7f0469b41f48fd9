package hart

import "github.com/rv32lab/rv32core/internal/csr"

const (
	opLUI    = 0x37
	opAUIPC  = 0x17
	opJAL    = 0x6F
	opJALR   = 0x67
	opBRANCH = 0x63
	opLOAD   = 0x03
	opSTORE  = 0x23
	opOPIMM  = 0x13
	opOP     = 0x33
	opMISC   = 0x0F
	opSYSTEM = 0x73
	opAMO    = 0x2F
)

// decodeAndExecute dispatches a fetched 32-bit or 16-bit instruction.
// instrLen distinguishes which; 16-bit instructions go to the compressed
// decoder in decode16.go, which executes most of them directly and routes
// its loads and stores through the same executeLoad/executeStore helpers
// the 32-bit path uses.
func (h *Hart) decodeAndExecute(raw uint32, instrLen int, pc uint32, p *pending) {
	if instrLen == 2 {
		h.executeCompressed(uint16(raw), pc, p)
		return
	}
	h.execute32(raw, pc, p)
}

func (h *Hart) execute32(instr, pc uint32, p *pending) {
	op := opcodeField(instr)
	rd := rdField(instr)
	rs1 := rs1Field(instr)
	rs2 := rs2Field(instr)
	f3 := funct3Field(instr)
	f7 := funct7Field(instr)

	switch op {
	case opLUI:
		p.rd, p.rdVal, p.rdSet = rd, uint32(uImm(instr)), true

	case opAUIPC:
		p.rd, p.rdVal, p.rdSet = rd, pc+uint32(uImm(instr)), true

	case opJAL:
		p.rd, p.rdVal, p.rdSet = rd, pc+4, true
		p.pc, p.pcSet = pc+uint32(jImm(instr)), true

	case opJALR:
		p.rd, p.rdVal, p.rdSet = rd, pc+4, true
		target := (h.Reg(rs1) + uint32(iImm(instr))) &^ 1
		p.pc, p.pcSet = target, true

	case opBRANCH:
		h.executeBranch(instr, pc, rs1, rs2, f3, p)

	case opLOAD:
		h.executeLoad(instr, rd, rs1, f3, p)

	case opSTORE:
		h.executeStore(instr, rs1, rs2, f3, p)

	case opOPIMM:
		h.executeOpImm(instr, rd, rs1, f3, p)

	case opOP:
		if f7 == 0x01 {
			h.executeM(rd, rs1, rs2, f3, p)
		} else {
			h.executeOp(rd, rs1, rs2, f3, f7, p)
		}

	case opMISC:
		// FENCE / FENCE.I: no-op, single hart, no I-cache.

	case opSYSTEM:
		h.executeSystem(instr, rd, rs1, f3, p)

	case opAMO:
		h.executeAMO(instr, rd, rs1, rs2, f3, p)

	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
	}
}

func (h *Hart) executeBranch(instr, pc uint32, rs1, rs2 int, f3 uint32, p *pending) {
	a, b := h.Reg(rs1), h.Reg(rs2)
	var taken bool
	switch f3 {
	case 0: // BEQ
		taken = a == b
	case 1: // BNE
		taken = a != b
	case 4: // BLT
		taken = int32(a) < int32(b)
	case 5: // BGE
		taken = int32(a) >= int32(b)
	case 6: // BLTU
		taken = a < b
	case 7: // BGEU
		taken = a >= b
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
		return
	}
	if taken {
		p.pc, p.pcSet = pc+uint32(bImm(instr)), true
	}
}

func (h *Hart) executeOpImm(instr uint32, rd, rs1 int, f3 uint32, p *pending) {
	a := h.Reg(rs1)
	imm := iImm(instr)
	switch f3 {
	case 0: // ADDI
		p.rdVal = a + uint32(imm)
	case 2: // SLTI
		p.rdVal = b2u(int32(a) < imm)
	case 3: // SLTIU
		p.rdVal = b2u(a < uint32(imm))
	case 4: // XORI
		p.rdVal = a ^ uint32(imm)
	case 6: // ORI
		p.rdVal = a | uint32(imm)
	case 7: // ANDI
		p.rdVal = a & uint32(imm)
	case 1: // SLLI
		if instr&0xfe000000 != 0 {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		p.rdVal = a << (uint32(imm) & 0x1f)
	case 5:
		f7 := instr & 0xfe000000
		if f7 != 0 && f7 != 0x40000000 {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
			return
		}
		shamt := uint32(imm) & 0x1f
		if f7 == 0x40000000 {
			p.rdVal = uint32(int32(a) >> shamt) // SRAI
		} else {
			p.rdVal = a >> shamt // SRLI
		}
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, instr)
		return
	}
	p.rd, p.rdSet = rd, true
}

func (h *Hart) executeOp(rd, rs1, rs2 int, f3, f7 uint32, p *pending) {
	a, b := h.Reg(rs1), h.Reg(rs2)
	var v uint32
	switch {
	case f3 == 0 && f7 == 0x00:
		v = a + b // ADD
	case f3 == 0 && f7 == 0x20:
		v = a - b // SUB
	case f3 == 1:
		v = a << (b & 0x1f) // SLL
	case f3 == 2:
		v = b2u(int32(a) < int32(b)) // SLT
	case f3 == 3:
		v = b2u(a < b) // SLTU
	case f3 == 4:
		v = a ^ b // XOR
	case f3 == 5 && f7 == 0x00:
		v = a >> (b & 0x1f) // SRL
	case f3 == 5 && f7 == 0x20:
		v = uint32(int32(a) >> (b & 0x1f)) // SRA
	case f3 == 6:
		v = a | b // OR
	case f3 == 7:
		v = a & b // AND
	default:
		h.raiseException(p, csr.CauseInstrIllegal)
		return
	}
	p.rd, p.rdVal, p.rdSet = rd, v, true
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
