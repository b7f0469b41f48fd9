package hart

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func rdField(instr uint32) int   { return int((instr >> 7) & 0x1f) }
func rs1Field(instr uint32) int  { return int((instr >> 15) & 0x1f) }
func rs2Field(instr uint32) int  { return int((instr >> 20) & 0x1f) }
func funct3Field(instr uint32) uint32 { return (instr >> 12) & 0x7 }
func funct7Field(instr uint32) uint32 { return (instr >> 25) & 0x7f }
func opcodeField(instr uint32) uint32 { return instr & 0x7f }

func iImm(instr uint32) int32 { return int32(instr) >> 20 }

func sImm(instr uint32) int32 {
	v := ((instr >> 25) & 0x7f << 5) | ((instr >> 7) & 0x1f)
	return signExtend(v, 12)
}

func bImm(instr uint32) int32 {
	v := ((instr>>31)&1)<<12 | ((instr>>7)&1)<<11 | ((instr>>25)&0x3f)<<5 | ((instr>>8)&0xf)<<1
	return signExtend(v, 13)
}

func uImm(instr uint32) int32 { return int32(instr & 0xfffff000) }

func jImm(instr uint32) int32 {
	v := ((instr>>31)&1)<<20 | ((instr>>12)&0xff)<<12 | ((instr>>20)&1)<<11 | ((instr>>21)&0x3ff)<<1
	return signExtend(v, 21)
}
