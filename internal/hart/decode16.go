package hart

import (
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/mmu"
)

// sRegIndex maps a 4-bit-compressed "s" register selector (s0..s11, as
// used by the compressed register-list/move encodings) to its GPR
// index, following the standard ABI callee-saved layout: s0,s1 map to
// x8,x9; s2..s7 map to x18..x23; s8..s11 continue the sequence.
var sRegIndex = [12]int{8, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}

// cReg3 maps a 3-bit compressed register field (x8..x15) to its GPR
// index, used by the CL/CS/CA/CB quadrant-0/1 formats.
func cReg3(field uint16) int { return int(field) + 8 }

// executeCompressed dispatches a 16-bit instruction, expanding it into
// the same tentative-effects pending struct the 32-bit path uses:
// quadrants 0/1/2 of Zca, plus the Zcmp push/pop/move sequences on
// quadrant 2.
func (h *Hart) executeCompressed(instr uint16, pc uint32, p *pending) {
	quadrant := instr & 0x3
	switch quadrant {
	case 0:
		h.execQuadrant0(instr, pc, p)
	case 1:
		h.execQuadrant1(instr, pc, p)
	case 2:
		h.execQuadrant2(instr, pc, p)
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
	}
}

func (h *Hart) execQuadrant0(instr uint16, pc uint32, p *pending) {
	f3 := instr >> 13
	switch f3 {
	case 0: // C.ADDI4SPN
		rd := cReg3((instr >> 2) & 0x7)
		imm := (uint32(instr>>7)&0xf)<<6 | (uint32(instr>>11)&0x3)<<4 | (uint32(instr>>5)&0x1)<<3 | (uint32(instr>>6)&0x1)<<2
		if imm == 0 {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
			return
		}
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(2)+imm, true

	case 2: // C.LW
		rs1 := cReg3((instr >> 7) & 0x7)
		rd := cReg3((instr >> 2) & 0x7)
		imm := (uint32(instr>>6)&0x1)<<2 | (uint32(instr>>10)&0x7)<<3 | (uint32(instr>>5)&0x1)<<6
		h.executeLoad(encodeIType(opLOAD, rd, rs1, 2, imm), rd, rs1, 2, p)

	case 6: // C.SW
		rs1 := cReg3((instr >> 7) & 0x7)
		rs2 := cReg3((instr >> 2) & 0x7)
		imm := (uint32(instr>>6)&0x1)<<2 | (uint32(instr>>10)&0x7)<<3 | (uint32(instr>>5)&0x1)<<6
		h.executeStore(encodeSType(opSTORE, rs1, rs2, 2, imm), rs1, rs2, 2, p)

	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
	}
}

func (h *Hart) execQuadrant1(instr uint16, pc uint32, p *pending) {
	f3 := instr >> 13
	rd := int((instr >> 7) & 0x1f)

	switch f3 {
	case 0: // C.ADDI (rd==0 is C.NOP)
		imm := cImm6(instr)
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(rd)+uint32(imm), true

	case 1: // C.JAL
		imm := cImmJ(instr)
		p.rd, p.rdVal, p.rdSet = 1, pc+2, true
		p.pc, p.pcSet = pc+uint32(imm), true

	case 2: // C.LI
		imm := cImm6(instr)
		p.rd, p.rdVal, p.rdSet = rd, uint32(imm), true

	case 3:
		if rd == 2 { // C.ADDI16SP
			imm := cImm16sp(instr)
			p.rd, p.rdVal, p.rdSet = 2, h.Reg(2)+uint32(imm), true
		} else { // C.LUI
			imm := cImm6(instr)
			p.rd, p.rdVal, p.rdSet = rd, uint32(imm)<<12, true
		}

	case 4:
		h.execQuadrant1MiscALU(instr, p)

	case 5: // C.J
		imm := cImmJ(instr)
		p.pc, p.pcSet = pc+uint32(imm), true

	case 6, 7: // C.BEQZ / C.BNEZ
		rs1 := cReg3((instr >> 7) & 0x7)
		imm := cImmB(instr)
		taken := h.Reg(rs1) == 0
		if f3 == 7 {
			taken = h.Reg(rs1) != 0
		}
		if taken {
			p.pc, p.pcSet = pc+uint32(imm), true
		}

	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
	}
}

func (h *Hart) execQuadrant1MiscALU(instr uint16, p *pending) {
	rd := cReg3((instr >> 7) & 0x7)
	funct2High := (instr >> 10) & 0x3
	switch funct2High {
	case 0: // C.SRLI
		shamt := uint32((instr>>2)&0x1f) | uint32((instr>>12)&0x1)<<5
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(rd)>>(shamt&0x1f), true
	case 1: // C.SRAI
		shamt := uint32((instr>>2)&0x1f) | uint32((instr>>12)&0x1)<<5
		p.rd, p.rdVal, p.rdSet = rd, uint32(int32(h.Reg(rd))>>(shamt&0x1f)), true
	case 2: // C.ANDI
		imm := cImm6(instr)
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(rd)&uint32(imm), true
	case 3:
		rs2 := cReg3((instr >> 2) & 0x7)
		sub := (instr >> 5) & 0x3
		a, b := h.Reg(rd), h.Reg(rs2)
		var v uint32
		switch sub {
		case 0:
			v = a - b // C.SUB
		case 1:
			v = a ^ b // C.XOR
		case 2:
			v = a | b // C.OR
		case 3:
			v = a & b // C.AND
		}
		p.rd, p.rdVal, p.rdSet = rd, v, true
	}
}

func (h *Hart) execQuadrant2(instr uint16, pc uint32, p *pending) {
	f3 := instr >> 13
	rd := int((instr >> 7) & 0x1f)

	switch f3 {
	case 0: // C.SLLI
		shamt := uint32((instr>>2)&0x1f) | uint32((instr>>12)&0x1)<<5
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(rd)<<(shamt&0x1f), true

	case 2: // C.LWSP
		imm := (uint32(instr>>4)&0x7)<<2 | (uint32(instr>>12)&0x1)<<5 | (uint32(instr>>2)&0x3)<<6
		h.executeLoad(encodeIType(opLOAD, rd, 2, 2, imm), rd, 2, 2, p)

	case 4:
		h.execQuadrant2JumpMove(instr, pc, rd, p)

	case 5: // Zcmp: push/pop/popret/popretz/mva01s/mvsa01
		h.execZcmp(instr, pc, p)

	case 6: // C.SWSP
		rs2 := int((instr >> 2) & 0x1f)
		imm := (uint32(instr>>9)&0xf)<<2 | (uint32(instr>>7)&0x3)<<6
		h.executeStore(encodeSType(opSTORE, 2, rs2, 2, imm), 2, rs2, 2, p)

	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
	}
}

func (h *Hart) execQuadrant2JumpMove(instr uint16, pc uint32, rd int, p *pending) {
	rs2 := int((instr >> 2) & 0x1f)
	bit12 := instr&(1<<12) != 0

	switch {
	case !bit12 && rs2 == 0: // C.JR
		if rd == 0 {
			h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
			return
		}
		p.pc, p.pcSet = h.Reg(rd)&^1, true
	case !bit12 && rs2 != 0: // C.MV
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(rs2), true
	case bit12 && rd == 0 && rs2 == 0: // C.EBREAK
		h.raiseExceptionTval(p, csr.CauseBreakpoint, 0)
	case bit12 && rs2 == 0: // C.JALR
		target := h.Reg(rd) &^ 1
		p.rd, p.rdVal, p.rdSet = 1, pc+2, true
		p.pc, p.pcSet = target, true
	default: // C.ADD
		p.rd, p.rdVal, p.rdSet = rd, h.Reg(rd)+h.Reg(rs2), true
	}
}

// execZcmp implements the Zcmp register-list push/pop sequences and the
// single a0/a1-s-register move pairs, following the standard encoding
// for the rlist/spimm fields and the stack-adjust/register-mapping
// rules: rlist sits at bits[9:6], the pop-family sub-selector at
// bits[5:4], and spimm at bits[3:2]. The outer bits[12:10] select among
// push, the pop family, and the two single-pair move instructions.
func (h *Hart) execZcmp(instr uint16, pc uint32, p *pending) {
	sub := (instr >> 10) & 0x7
	switch sub {
	case 0x6: // PUSH
		h.execZcmpPush(instr, p)
	case 0x7: // POP / POPRET / POPRETZ
		h.execZcmpPop(instr, pc, p)
	case 0x3: // MVA01S
		r1s := sRegIndex[(instr>>7)&0x7]
		r2s := sRegIndex[(instr>>2)&0x7]
		h.SetReg(10, h.Reg(r1s))
		h.SetReg(11, h.Reg(r2s))
	case 0x1: // MVSA01
		r1s := sRegIndex[(instr>>7)&0x7]
		r2s := sRegIndex[(instr>>2)&0x7]
		h.SetReg(r1s, h.Reg(10))
		h.SetReg(r2s, h.Reg(11))
	default:
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
	}
}

func zcmpRegList(rlist uint16) ([]int, bool) {
	var n int
	switch {
	case rlist == 15:
		n = 13
	case rlist >= 4 && rlist <= 14:
		n = int(rlist) - 3
	default:
		return nil, false
	}
	list := make([]int, n)
	list[0] = 1 // ra
	for i := 1; i < n; i++ {
		list[i] = sRegIndex[i-1]
	}
	return list, true
}

func zcmpStackAdj(n int, spimm uint32) uint32 {
	var base uint32
	switch {
	case n <= 4:
		base = 0x10
	case n <= 8:
		base = 0x20
	case n <= 12:
		base = 0x30
	default:
		base = 0x40
	}
	return base + 16*spimm
}

func (h *Hart) execZcmpPush(instr uint16, p *pending) {
	rlist := (instr >> 6) & 0xf
	spimm := uint32((instr >> 2) & 0x3)
	list, ok := zcmpRegList(rlist)
	if !ok {
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
		return
	}
	adj := zcmpStackAdj(len(list), spimm)
	addr := h.Reg(2)
	for i := len(list) - 1; i >= 0; i-- {
		addr -= 4
		paddr, ok := h.translateMem(addr, mmu.PermW, true, p)
		if !ok {
			return
		}
		if !h.mem.W32(paddr, h.Reg(list[i])) {
			h.raiseExceptionTval(p, csr.CauseStoreFault, addr)
			return
		}
	}
	p.rd, p.rdVal, p.rdSet = 2, h.Reg(2)-adj, true
}

func (h *Hart) execZcmpPop(instr uint16, pc uint32, p *pending) {
	rlist := (instr >> 6) & 0xf
	spimm := uint32((instr >> 2) & 0x3)
	variant := (instr >> 4) & 0x3
	list, ok := zcmpRegList(rlist)
	if !ok {
		h.raiseExceptionTval(p, csr.CauseInstrIllegal, uint32(instr))
		return
	}
	adj := zcmpStackAdj(len(list), spimm)
	sp := h.Reg(2)
	addr := sp + adj
	var vals [13]uint32
	for i := len(list) - 1; i >= 0; i-- {
		addr -= 4
		paddr, ok := h.translateMem(addr, mmu.PermR, false, p)
		if !ok {
			return
		}
		v, rok := h.mem.R32(paddr)
		if !rok {
			h.raiseExceptionTval(p, csr.CauseLoadFault, addr)
			return
		}
		vals[i] = v
	}
	// Registers are written only once every load has succeeded.
	for i, r := range list {
		h.SetReg(r, vals[i])
	}
	h.SetReg(2, sp+adj)

	switch variant {
	case 2: // POPRETZ
		h.SetReg(10, 0)
		p.pc, p.pcSet = h.Reg(1), true
	case 1: // POPRET
		p.pc, p.pcSet = h.Reg(1), true
	}
}

func encodeIType(op uint32, rd, rs1 int, f3 uint32, imm uint32) uint32 {
	return (imm&0xfff)<<20 | uint32(rs1&0x1f)<<15 | (f3&0x7)<<12 | uint32(rd&0x1f)<<7 | op
}

func encodeSType(op uint32, rs1, rs2 int, f3 uint32, imm uint32) uint32 {
	return ((imm>>5)&0x7f)<<25 | uint32(rs2&0x1f)<<20 | uint32(rs1&0x1f)<<15 | (f3&0x7)<<12 | (imm&0x1f)<<7 | op
}

func cImm6(instr uint16) int32 {
	v := uint32((instr>>12)&0x1)<<5 | uint32((instr>>2)&0x1f)
	return signExtend(v, 6)
}

func cImmJ(instr uint16) int32 {
	v := uint32((instr>>12)&0x1)<<11 |
		uint32((instr>>8)&0x1)<<10 |
		uint32((instr>>9)&0x3)<<8 |
		uint32((instr>>6)&0x1)<<7 |
		uint32((instr>>7)&0x1)<<6 |
		uint32((instr>>2)&0x1)<<5 |
		uint32((instr>>11)&0x1)<<4 |
		uint32((instr>>3)&0x7)<<1
	return signExtend(v, 12)
}

func cImmB(instr uint16) int32 {
	v := uint32((instr>>12)&0x1)<<8 |
		uint32((instr>>5)&0x3)<<6 |
		uint32((instr>>2)&0x1)<<5 |
		uint32((instr>>10)&0x3)<<3 |
		uint32((instr>>3)&0x3)<<1
	return signExtend(v, 9)
}

func cImm16sp(instr uint16) int32 {
	v := uint32((instr>>12)&0x1)<<9 |
		uint32((instr>>3)&0x3)<<7 |
		uint32((instr>>5)&0x1)<<6 |
		uint32((instr>>2)&0x1)<<5 |
		uint32((instr>>6)&0x1)<<4
	return signExtend(v, 10)
}
