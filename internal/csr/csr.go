// Package csr implements the control-and-status register file and trap
// engine: privilege state, exception/interrupt entry, MRET/SRET, WARL
// register masking and delegation. It owns all privileged architectural
// state; the interpreter in package hart queries and mutates it through
// this package's exported methods rather than touching bits directly.
package csr

// Privilege levels, matching the RISC-V encoding used throughout mstatus
// and trap-cause delegation (U=0, S=1, M=3; 2 is reserved and never used).
const (
	PrivU = 0
	PrivS = 1
	PrivM = 3
)

// Trap cause codes (low 8 bits of mcause/scause; bit 31 flags an
// interrupt and is added separately by the caller).
const (
	CauseInstrAlign     = 0
	CauseInstrFault     = 1
	CauseInstrIllegal   = 2
	CauseBreakpoint     = 3
	CauseLoadAlign      = 4
	CauseLoadFault      = 5
	CauseStoreAlign     = 6
	CauseStoreFault     = 7
	CauseECallU         = 8
	CauseECallS         = 9
	CauseECallM         = 11
	CauseInstrPageFault = 12
	CauseLoadPageFault  = 13
	CauseStorePageFault = 15
)

// Interrupt lane bit positions within mip/sip/mie/sie.
const (
	MipSSIP = 1 << 1
	MipMSIP = 1 << 3
	MipSTIP = 1 << 5
	MipMTIP = 1 << 7
	MipSEIP = 1 << 9
	MipMEIP = 1 << 11
)

const sipMask = MipSSIP | MipSTIP | MipSEIP
const allMipBits = MipSSIP | MipMSIP | MipSTIP | MipMTIP | MipSEIP | MipMEIP

// mstatus/sstatus bit positions.
const (
	statusSIE  = 1 << 1
	statusMIE  = 1 << 3
	statusSPIE = 1 << 5
	statusMPIE = 1 << 7
	statusSPP  = 1 << 8
	statusMPPShift = 11
	statusMPPMask  = 0x3 << statusMPPShift
	statusSUM  = 1 << 18
	statusMXR  = 1 << 19
	statusTVM  = 1 << 20
	statusTW   = 1 << 21
	statusTSR  = 1 << 22
	statusMPRV = 1 << 17
)

const mstatusMask = statusSIE | statusSPIE | statusSPP | statusSUM | statusMXR |
	statusMIE | statusMPIE | statusMPPMask | statusMPRV | statusTVM | statusTW | statusTSR
const sstatusMask = statusSIE | statusSPIE | statusSPP | statusSUM | statusMXR

// MISA as read by this implementation: RV32IMAC with U-mode.
const MisaValue = 0x40101105

// satp fields.
const (
	satpModeBit = 1 << 31
	satpPPNMask = 0x3FFFFF
)

// WriteOp selects the CSRRW/CSRRS/CSRRC semantics for File.Write.
type WriteOp int

const (
	OpWrite WriteOp = iota
	OpSet
	OpClear
)

// File holds all privileged hart state: the current privilege level, the
// unified mstatus/sie/sip backing stores, trap vectors, delegation masks,
// counters, and satp. It is the sole owner of this state; everything else
// in the repository reaches it through File's methods.
type File struct {
	priv uint

	xstatus uint32
	xie     uint32
	xip     uint32

	mtvec, stvec   uint32
	mepc, sepc     uint32
	mcause, scause uint32
	mtval, stval   uint32
	mscratch, sscratch uint32
	medeleg, mideleg   uint32
	mcounteren, scounteren uint32

	mcycle, mcycleh     uint32
	minstret, minstreth uint32

	satp uint32

	irqT, irqS, irqE bool
}

// New returns a File in its post-reset state: priv = M, every other
// field zero.
func New() *File {
	return &File{priv: PrivM}
}

// Reset restores the File to its post-reset state in place.
func (f *File) Reset() {
	*f = File{priv: PrivM}
}

// Priv returns the true (architectural) current privilege level.
func (f *File) Priv() uint { return f.priv }

// EffectivePrivLS returns the privilege level used to check load/store
// permissions: MPP when MPRV is set and priv is M, else the true priv.
// Fetch permission always uses the true privilege (MPRV never applies to
// instruction fetch).
func (f *File) EffectivePrivLS() uint {
	if f.xstatus&statusMPRV != 0 {
		if f.priv != PrivM {
			panic("csr: MPRV set while priv != M")
		}
		return uint((f.xstatus & statusMPPMask) >> statusMPPShift)
	}
	return f.priv
}

// TranslationEnabledFetch reports whether Sv32 applies to instruction
// fetch: true priv is not M and satp.MODE is set.
func (f *File) TranslationEnabledFetch() bool {
	return f.priv != PrivM && f.satp&satpModeBit != 0
}

// TranslationEnabledLS reports whether Sv32 applies to load/store.
func (f *File) TranslationEnabledLS() bool {
	return f.EffectivePrivLS() != PrivM && f.satp&satpModeBit != 0
}

// ATP returns the physical address of the Sv32 root page table.
func (f *File) ATP() uint32 {
	return (f.satp & satpPPNMask) << 12
}

// PermitSFenceVMA reports whether SFENCE.VMA is permitted at the current
// privilege: always in M, or in S when mstatus.TVM is clear.
func (f *File) PermitSFenceVMA() bool {
	return f.priv == PrivM || (f.priv == PrivS && f.xstatus&statusTVM == 0)
}

// MXR reports mstatus.MXR (make-executable-readable).
func (f *File) MXR() bool { return f.xstatus&statusMXR != 0 }

// SUM reports mstatus.SUM (supervisor-user-memory).
func (f *File) SUM() bool { return f.xstatus&statusSUM != 0 }

// SetIRQT, SetIRQS, SetIRQE latch the external timer/software/external
// IRQ lines. These are volatile: they are OR-ed into MIP/SIP on read and
// are never written back into xip storage.
func (f *File) SetIRQT(v bool) { f.irqT = v }
func (f *File) SetIRQS(v bool) { f.irqS = v }
func (f *File) SetIRQE(v bool) { f.irqE = v }

func (f *File) effectiveXIP() uint32 {
	v := f.xip
	if f.irqS {
		v |= MipMSIP | MipSSIP
	}
	if f.irqT {
		v |= MipMTIP | MipSTIP
	}
	if f.irqE {
		v |= MipMEIP | MipSEIP
	}
	return v
}

// StepCounters increments the 64-bit mcycle and minstret pair by one,
// called exactly once per retired instruction, including trapped ones.
func (f *File) StepCounters() {
	f.mcycle++
	if f.mcycle == 0 {
		f.mcycleh++
	}
	f.minstret++
	if f.minstret == 0 {
		f.minstreth++
	}
}

// Counters returns the 64-bit mcycle and minstret pairs assembled from
// their independent low/high halves, for instrumentation that needs the
// raw counts without going through the privilege-gated CSR table.
func (f *File) Counters() (cycle, instret uint64) {
	cycle = uint64(f.mcycleh)<<32 | uint64(f.mcycle)
	instret = uint64(f.minstreth)<<32 | uint64(f.minstret)
	return cycle, instret
}
