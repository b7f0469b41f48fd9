package hart

// executeM implements the M extension: MUL/MULH/MULHSU/MULHU and the
// DIV/DIVU/REM/REMU family, with the RISC-V-mandated divide-by-zero and
// signed-overflow results rather than a trap.
func (h *Hart) executeM(rd, rs1, rs2 int, f3 uint32, p *pending) {
	a, b := h.Reg(rs1), h.Reg(rs2)
	var v uint32
	switch f3 {
	case 0: // MUL
		v = a * b
	case 1: // MULH
		v = uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case 2: // MULHSU
		v = uint32((int64(int32(a)) * int64(b)) >> 32)
	case 3: // MULHU
		v = uint32((uint64(a) * uint64(b)) >> 32)
	case 4: // DIV
		sa, sb := int32(a), int32(b)
		switch {
		case sb == 0:
			v = ^uint32(0)
		case sa == -0x80000000 && sb == -1:
			v = uint32(sa)
		default:
			v = uint32(sa / sb)
		}
	case 5: // DIVU
		if b == 0 {
			v = 0xffffffff
		} else {
			v = a / b
		}
	case 6: // REM
		sa, sb := int32(a), int32(b)
		switch {
		case sb == 0:
			v = uint32(sa)
		case sa == -0x80000000 && sb == -1:
			v = 0
		default:
			v = uint32(sa % sb)
		}
	case 7: // REMU
		if b == 0 {
			v = a
		} else {
			v = a % b
		}
	}
	p.rd, p.rdVal, p.rdSet = rd, v, true
}
