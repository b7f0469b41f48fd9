package csr

import "math/bits"

// medelegBit tests whether a synchronous exception cause is delegated to
// S-mode.
func (f *File) medelegBit(cause uint32) bool {
	if cause >= 32 {
		return false
	}
	return f.medeleg&(1<<cause) != 0
}

// TrapEnterException routes a synchronous exception to the target
// privilege selected by medeleg, and returns the PC the hart should
// resume at.
func (f *File) TrapEnterException(cause, epc uint32) uint32 {
	target := uint(PrivM)
	if f.medelegBit(cause) {
		target = PrivS
	}
	if target < f.priv {
		target = f.priv
	}
	return f.trapEnterAtPriv(cause, epc, target)
}

// TrapCheckEnterIRQ is called once per step with the PC the instruction
// would otherwise have resumed at. If an enabled interrupt is pending it
// commits the trap and returns (targetPC, true); otherwise (0, false) and
// the caller uses its own tentative next PC.
func (f *File) TrapCheckEnterIRQ(tentativeNextPC uint32) (uint32, bool) {
	effective := f.effectiveXIP()
	pending := effective & f.xie

	mSet := pending & allMipBits &^ f.mideleg
	sSet := pending & sipMask & f.mideleg

	takeM := mSet != 0 && (f.xstatus&statusMIE != 0 || f.priv < PrivM)
	takeS := !takeM && sSet != 0 && (f.xstatus&statusSIE != 0 || f.priv < PrivS) && f.priv <= PrivS

	switch {
	case takeM:
		cause := uint32(0x80000000) | uint32(bits.TrailingZeros32(mSet))
		return f.trapEnterAtPriv(cause, tentativeNextPC, PrivM), true
	case takeS:
		cause := uint32(0x80000000) | uint32(bits.TrailingZeros32(sSet))
		return f.trapEnterAtPriv(cause, tentativeNextPC, PrivS), true
	default:
		return 0, false
	}
}

// trapEnterAtPriv is the single point where MPP/SPP, MPIE/SPIE, and
// MIE/SIE transitions happen for both the exception and interrupt
// paths.
func (f *File) trapEnterAtPriv(cause, epc uint32, target uint) uint32 {
	if target == PrivM {
		mpp := uint32(f.priv)
		f.xstatus = (f.xstatus &^ statusMPPMask) | (mpp << statusMPPShift)
		f.priv = PrivM
		if f.xstatus&statusMIE != 0 {
			f.xstatus |= statusMPIE
		} else {
			f.xstatus &^= statusMPIE
		}
		f.xstatus &^= statusMIE
		f.mcause = cause
		f.mepc = epc
		return f.trapTargetPC(f.mtvec, cause)
	}

	if f.priv == PrivU {
		f.xstatus &^= statusSPP
	} else {
		f.xstatus |= statusSPP
	}
	f.priv = PrivS
	if f.xstatus&statusSIE != 0 {
		f.xstatus |= statusSPIE
	} else {
		f.xstatus &^= statusSPIE
	}
	f.xstatus &^= statusSIE
	f.scause = cause
	f.sepc = epc
	return f.trapTargetPC(f.stvec, cause)
}

// trapTargetPC resolves the direct-vs-vectored mtvec/stvec target: direct
// mode, or any synchronous cause, always goes to the base; vectored mode
// offsets by 4*lane for interrupts only.
func (f *File) trapTargetPC(tvec, cause uint32) uint32 {
	base := tvec &^ 1
	vectored := tvec&1 != 0
	isInterrupt := cause&0x80000000 != 0
	if !vectored || !isInterrupt {
		return base
	}
	return base + 4*(cause&0x7fffffff)
}

// TrapMRET applies MRET's privilege/flag restore and returns mepc.
func (f *File) TrapMRET() uint32 {
	mpp := (f.xstatus & statusMPPMask) >> statusMPPShift
	f.priv = uint(mpp)
	f.xstatus = (f.xstatus &^ statusMPPMask) | (PrivU << statusMPPShift)
	if f.priv != PrivM {
		f.xstatus &^= statusMPRV
	}
	if f.xstatus&statusMPIE != 0 {
		f.xstatus |= statusMIE
	} else {
		f.xstatus &^= statusMIE
	}
	f.xstatus |= statusMPIE
	return f.mepc
}

// TrapSRET applies SRET's privilege/flag restore and returns (sepc, ok).
// ok is false when priv==S and mstatus.TSR traps the instruction as
// illegal instead.
func (f *File) TrapSRET() (uint32, bool) {
	if f.priv == PrivS && f.xstatus&statusTSR != 0 {
		return 0, false
	}
	if f.xstatus&statusSPP != 0 {
		f.priv = PrivS
	} else {
		f.priv = PrivU
	}
	f.xstatus &^= statusSPP
	if f.xstatus&statusSPIE != 0 {
		f.xstatus |= statusSIE
	} else {
		f.xstatus &^= statusSIE
	}
	f.xstatus |= statusSPIE
	f.xstatus &^= statusMPRV
	return f.sepc, true
}

// TrapSetXTval writes mtval or stval according to the current privilege.
// Must only be called after trap entry has already moved priv to M or S.
func (f *File) TrapSetXTval(v uint32) {
	if f.priv < PrivS {
		panic("csr: TrapSetXTval called below S privilege")
	}
	if f.priv == PrivM {
		f.mtval = v
	} else {
		f.stval = v
	}
}

// GetXCause returns mcause or scause according to the current privilege,
// for tracing and monitor use.
func (f *File) GetXCause() uint32 {
	if f.priv == PrivM {
		return f.mcause
	}
	return f.scause
}
