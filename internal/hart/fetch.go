package hart

import (
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/mmu"
)

// fetch reads the instruction at pc as independently translated halfword
// reads, the second issued only when the first shows a 32-bit encoding. On any fault it raises the exception on p and returns
// ok=false.
func (h *Hart) fetch(pc uint32, p *pending) (raw uint32, instrLen int, ok bool) {
	lo, ok := h.fetchHalf(pc, p)
	if !ok {
		return 0, 0, false
	}
	if lo&3 != 3 {
		return uint32(lo), 2, true
	}
	hi, ok := h.fetchHalf(pc+2, p)
	if !ok {
		return 0, 0, false
	}
	return uint32(lo) | uint32(hi)<<16, 4, true
}

func (h *Hart) fetchHalf(vaddr uint32, p *pending) (uint16, bool) {
	paddr := vaddr
	if h.csr.TranslationEnabledFetch() {
		access := mmu.Access{
			EffectivePriv: h.csr.Priv(),
			Required:      mmu.PermX,
			SUM:           h.csr.SUM(),
			MXR:           h.csr.MXR(),
		}
		translated, tok := mmu.Translate(vaddr, h.csr.ATP(), access, h.mem)
		if !tok {
			h.raiseExceptionTval(p, csr.CauseInstrPageFault, vaddr)
			return 0, false
		}
		paddr = translated
	}
	v, rok := h.mem.R16(paddr)
	if !rok {
		h.raiseExceptionTval(p, csr.CauseInstrFault, vaddr)
		return 0, false
	}
	return v, true
}

// translateMem resolves a load/store virtual address using the hart's
// effective load/store privilege, raising LOAD_PAGEFAULT (or
// STORE_PAGEFAULT when isStore is set) on failure.
func (h *Hart) translateMem(vaddr uint32, required uint32, isStore bool, p *pending) (uint32, bool) {
	if !h.csr.TranslationEnabledLS() {
		return vaddr, true
	}
	access := mmu.Access{
		EffectivePriv: h.csr.EffectivePrivLS(),
		Required:      required,
		SUM:           h.csr.SUM(),
		MXR:           h.csr.MXR(),
	}
	paddr, ok := mmu.Translate(vaddr, h.csr.ATP(), access, h.mem)
	if !ok {
		cause := csr.CauseLoadPageFault
		if isStore {
			cause = csr.CauseStorePageFault
		}
		h.raiseExceptionTval(p, uint32(cause), vaddr)
		return 0, false
	}
	return paddr, true
}
