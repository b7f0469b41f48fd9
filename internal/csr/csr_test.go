package csr

import "testing"

func TestResetState(t *testing.T) {
	f := New()
	if f.Priv() != PrivM {
		t.Fatalf("Priv() = %d, want PrivM", f.Priv())
	}
	v, ok := f.Read(addrMstatus)
	if !ok || v != 0 {
		t.Fatalf("mstatus after reset = %#x, %v, want 0, true", v, ok)
	}
}

func TestMstatusRoundTrip(t *testing.T) {
	f := New()
	if !f.Write(addrMstatus, 0xffffffff, OpWrite) {
		t.Fatal("mstatus write rejected")
	}
	got, _ := f.Read(addrMstatus)
	if got != mstatusMask {
		t.Fatalf("mstatus round trip = %#x, want %#x", got, mstatusMask)
	}
}

func TestSstatusIsMaskedViewOfMstatus(t *testing.T) {
	f := New()
	f.Write(addrMstatus, mstatusMask, OpWrite)
	got, _ := f.Read(addrSstatus)
	if got != sstatusMask {
		t.Fatalf("sstatus = %#x, want %#x", got, sstatusMask)
	}
	// Writing sstatus must not disturb mstatus-only bits (e.g. MPRV).
	f.Write(addrSstatus, 0, OpWrite)
	mstatusAfter, _ := f.Read(addrMstatus)
	if mstatusAfter&statusMPRV == 0 && mstatusMask&statusMPRV != 0 {
		// MPRV was part of the mstatusMask write above and sstatus write must
		// not have cleared it, since MPRV is outside SSTATUS_MASK.
		t.Fatalf("sstatus write disturbed mstatus-only bits: mstatus=%#x", mstatusAfter)
	}
}

func TestPrivilegedCSRRejectedBelowMinPriv(t *testing.T) {
	f := New()
	f.priv = PrivU
	if _, ok := f.Read(addrMstatus); ok {
		t.Fatal("U-mode read of mstatus should fail")
	}
	if _, ok := f.Read(addrSstatus); ok {
		t.Fatal("U-mode read of sstatus should fail")
	}
}

func TestReadOnlyCSRRejectsWrite(t *testing.T) {
	f := New()
	if f.Write(addrCycle, 123, OpWrite) {
		t.Fatal("write to read-only cycle CSR should fail")
	}
	if f.Write(addrMvendorid, 1, OpWrite) {
		t.Fatal("write to mvendorid should fail")
	}
}

func TestCounterPermissionGatedByCounteren(t *testing.T) {
	f := New()
	f.priv = PrivS
	if _, ok := f.Read(addrCycle); ok {
		t.Fatal("S-mode cycle read should fail without mcounteren bit 0")
	}
	f.priv = PrivM
	f.Write(addrMcounteren, 0x1, OpWrite)
	f.priv = PrivS
	if _, ok := f.Read(addrCycle); !ok {
		t.Fatal("S-mode cycle read should succeed once mcounteren bit 0 is set")
	}
}

func TestSatpPermitTVM(t *testing.T) {
	f := New()
	f.priv = PrivM
	f.Write(addrMstatus, statusTVM, OpWrite)
	f.priv = PrivS
	if _, ok := f.Read(addrSatp); ok {
		t.Fatal("S-mode satp read should fail when TVM is set")
	}
}

func TestExceptionEntryDefaultsToM(t *testing.T) {
	f := New()
	pc := f.TrapEnterException(CauseInstrIllegal, 0x1000)
	if f.Priv() != PrivM {
		t.Fatalf("priv after trap = %d, want M", f.Priv())
	}
	if f.mcause != CauseInstrIllegal {
		t.Fatalf("mcause = %d, want %d", f.mcause, CauseInstrIllegal)
	}
	if f.mepc != 0x1000 {
		t.Fatalf("mepc = %#x, want 0x1000", f.mepc)
	}
	if pc != f.mtvec {
		t.Fatalf("target pc = %#x, want mtvec %#x", pc, f.mtvec)
	}
}

func TestExceptionEntryDelegatedToS(t *testing.T) {
	f := New()
	f.Write(addrMedeleg, 1<<CauseInstrIllegal, OpWrite)
	f.Write(addrStvec, 0x2000, OpWrite)
	f.priv = PrivU // delegation only applies to traps taken from below M
	pc := f.TrapEnterException(CauseInstrIllegal, 0x1000)
	if f.Priv() != PrivS {
		t.Fatalf("priv after delegated trap = %d, want S", f.Priv())
	}
	if f.scause != CauseInstrIllegal {
		t.Fatalf("scause = %d, want %d", f.scause, CauseInstrIllegal)
	}
	if pc != 0x2000 {
		t.Fatalf("target pc = %#x, want 0x2000", pc)
	}
}

func TestDelegationNeverLowersBelowCurrentPriv(t *testing.T) {
	f := New()
	f.priv = PrivM
	f.Write(addrMedeleg, 1<<CauseInstrIllegal, OpWrite)
	f.TrapEnterException(CauseInstrIllegal, 0x1000)
	if f.Priv() != PrivM {
		t.Fatalf("priv after trap from M = %d, want M even though delegated to S", f.Priv())
	}
}

func TestMRETRoundTrip(t *testing.T) {
	f := New()
	f.Write(addrMstatus, statusMIE, OpWrite) // MIE=1 before trap
	f.priv = PrivU
	f.TrapEnterException(CauseBreakpoint, 0x40)
	mstatus, _ := f.Read(addrMstatus)
	if mstatus&statusMIE != 0 {
		t.Fatal("MIE should be cleared on trap entry")
	}
	if mstatus&statusMPIE == 0 {
		t.Fatal("MPIE should capture prior MIE=1")
	}
	mpp := (f.xstatus & statusMPPMask) >> statusMPPShift
	if mpp != PrivU {
		t.Fatalf("MPP = %d, want U", mpp)
	}
	pc := f.TrapMRET()
	if pc != 0x40 {
		t.Fatalf("MRET target = %#x, want 0x40", pc)
	}
	if f.Priv() != PrivU {
		t.Fatalf("priv after MRET = %d, want U", f.Priv())
	}
	mstatus = f.xstatus & mstatusMask // priv is U now, so the CSR read path would be denied
	if mstatus&statusMIE == 0 {
		t.Fatal("MIE should be restored from MPIE=1")
	}
}

func TestSRETTrapsWhenTSRSet(t *testing.T) {
	f := New()
	f.Write(addrMstatus, statusTSR, OpWrite)
	f.priv = PrivS
	if _, ok := f.TrapSRET(); ok {
		t.Fatal("SRET from S with TSR set should be illegal")
	}
}

func TestTrapSetXTvalBelowSPanics(t *testing.T) {
	f := New()
	f.priv = PrivU
	defer func() {
		if recover() == nil {
			t.Fatal("TrapSetXTval below S should panic")
		}
	}()
	f.TrapSetXTval(0x1234)
}

func TestInterruptPriorityMOverS(t *testing.T) {
	f := New()
	f.Write(addrMstatus, statusMIE, OpWrite)
	f.Write(addrMie, allMipBits, OpWrite)
	f.SetIRQT(true)
	f.SetIRQE(true)
	f.Write(addrMideleg, MipSTIP, OpWrite) // delegate timer to S, leave external at M
	pc, fired := f.TrapCheckEnterIRQ(0x44)
	if !fired {
		t.Fatal("expected an interrupt to fire")
	}
	if f.Priv() != PrivM {
		t.Fatalf("priv = %d, want M (external IRQ not delegated)", f.Priv())
	}
	_ = pc
}

func TestVectoredTvecOffsetsByCauseForInterruptsOnly(t *testing.T) {
	f := New()
	f.Write(addrMtvec, 0x8000|1, OpWrite)
	got := f.trapTargetPC(f.mtvec, 0x80000000|uint32(7))
	if got != 0x8000+4*7 {
		t.Fatalf("vectored target = %#x, want %#x", got, 0x8000+4*7)
	}
	gotSync := f.trapTargetPC(f.mtvec, CauseInstrIllegal)
	if gotSync != 0x8000 {
		t.Fatalf("synchronous trap under vectored mtvec = %#x, want base 0x8000", gotSync)
	}
}

func TestCounterStepCarries(t *testing.T) {
	f := New()
	f.mcycle = 0xffffffff
	f.minstret = 0xffffffff
	f.StepCounters()
	if f.mcycle != 0 || f.mcycleh != 1 {
		t.Fatalf("mcycle/mcycleh after carry = %#x/%#x, want 0/1", f.mcycle, f.mcycleh)
	}
	if f.minstret != 0 || f.minstreth != 1 {
		t.Fatalf("minstret/minstreth after carry = %#x/%#x, want 0/1", f.minstret, f.minstreth)
	}
}

func TestEffectivePrivLSUsesMPPUnderMPRV(t *testing.T) {
	f := New()
	f.xstatus = statusMPRV | (PrivU << statusMPPShift)
	if got := f.EffectivePrivLS(); got != PrivU {
		t.Fatalf("EffectivePrivLS = %d, want U", got)
	}
}

func TestEffectivePrivLSPanicsWhenMPRVSetOutsideM(t *testing.T) {
	f := New()
	f.priv = PrivS
	f.xstatus = statusMPRV
	defer func() {
		if recover() == nil {
			t.Fatal("EffectivePrivLS should panic when MPRV is set outside M")
		}
	}()
	f.EffectivePrivLS()
}
