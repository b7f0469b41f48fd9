// Package mmu implements the Sv32 two-level page table walk used to
// translate virtual to physical addresses when translation is enabled.
// Translate is a pure function over the caller-supplied access context
// and a bus.Memory; it owns no state of its own.
package mmu

import "github.com/rv32lab/rv32core/internal/bus"

// Required-permission bits for Access.Required. They sit one position
// below the PTE R/W/X bits (pteR/pteW/pteX); permissionOK maps between
// the two.
const (
	PermR = 1 << 0
	PermW = 1 << 1
	PermX = 1 << 2
)

const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteA = 1 << 6
	pteD = 1 << 7

	pteFlagsMask = 0xff
	ppn0Shift    = 10
	ppn0Mask     = 0x3ff
	ppn1Shift    = 20
)

// Access carries the privilege and permission context a translation
// needs, resolved by the caller from CSR state. Keeping this separate
// from csr.File lets Translate stay a pure function rather than a
// method that reaches into privileged state itself.
type Access struct {
	// EffectivePriv is the effective privilege for this access: the true
	// privilege for fetch, EffectivePrivLS() for load/store.
	EffectivePriv uint
	// Required is the OR of PermR/PermW/PermX this access needs.
	Required uint32
	// SUM mirrors mstatus.SUM: permit S-mode access to U-mode pages.
	SUM bool
	// MXR mirrors mstatus.MXR: make any executable page also readable.
	MXR bool
}

const privU = 0
const privS = 1

// Translate walks the Sv32 page table rooted at atp, returning the
// physical address for vaddr under access, or ok=false on any fault
// (invalid/reserved PTE, permission denial, misaligned superpage, or a
// PTE fetch/writeback bus failure).
func Translate(vaddr, atp uint32, access Access, mem bus.Memory) (paddr uint32, ok bool) {
	l1Addr := atp + ((vaddr >> 22) << 2)
	l1, readOK := mem.R32(l1Addr)
	if !readOK {
		return 0, false
	}
	if l1&pteV == 0 || (l1&pteW != 0 && l1&pteR == 0) {
		return 0, false
	}

	if isLeaf(l1) {
		if !permissionOK(l1, access) {
			return 0, false
		}
		ppn0 := (l1 >> ppn0Shift) & ppn0Mask
		if ppn0 != 0 {
			return 0, false // superpage alignment violation
		}
		if !updateAD(mem, l1Addr, l1, access.Required&PermW != 0) {
			return 0, false
		}
		ppn1 := l1 >> ppn1Shift
		return (ppn1 << 22) | (vaddr & 0x3fffff), true
	}

	l2Base := (l1 >> ppn0Shift) << 12
	l2Addr := l2Base + ((vaddr >> 12) & 0xffc)
	l2, readOK := mem.R32(l2Addr)
	if !readOK {
		return 0, false
	}
	if l2&pteV == 0 || (l2&pteW != 0 && l2&pteR == 0) || !isLeaf(l2) {
		return 0, false
	}
	if !permissionOK(l2, access) {
		return 0, false
	}
	if !updateAD(mem, l2Addr, l2, access.Required&PermW != 0) {
		return 0, false
	}
	ppn := l2 >> ppn0Shift
	return (ppn << 12) | (vaddr & 0xfff), true
}

func isLeaf(pte uint32) bool {
	return pte&(pteR|pteW|pteX) != 0
}

func permissionOK(pte uint32, access Access) bool {
	if pte&pteU != 0 && access.EffectivePriv == privS && !access.SUM {
		return false
	}
	if pte&pteU == 0 && access.EffectivePriv == privU {
		return false
	}
	perm := pte & (pteR | pteW | pteX)
	if access.MXR && pte&pteX != 0 {
		perm |= pteR
	}
	required := uint32(0)
	if access.Required&PermR != 0 {
		required |= pteR
	}
	if access.Required&PermW != 0 {
		required |= pteW
	}
	if access.Required&PermX != 0 {
		required |= pteX
	}
	return required&^perm == 0
}

// updateAD sets the accessed bit (always) and the dirty bit (when write
// is true) on the PTE at addr, writing it back if either bit changed.
func updateAD(mem bus.Memory, addr uint32, pte uint32, write bool) bool {
	updated := pte | pteA
	if write {
		updated |= pteD
	}
	if updated == pte {
		return true
	}
	return mem.W32(addr, updated)
}
