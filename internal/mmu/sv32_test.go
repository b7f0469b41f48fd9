package mmu

import (
	"testing"

	"github.com/rv32lab/rv32core/internal/bus"
)

func TestMegapageIdentityMap(t *testing.T) {
	b := bus.NewSystemBus(0x400000 + 0x1000)
	// Root table at physical 0; entry for VPN1=0 covers 0..0x400000.
	ppn1 := uint32(0)
	l1 := (ppn1 << ppn1Shift) | pteV | pteR | pteW | pteX | pteU
	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermX}
	paddr, ok := Translate(0x1000, 0, access, b)
	if !ok {
		t.Fatal("translation should succeed")
	}
	if paddr != 0x1000 {
		t.Fatalf("paddr = %#x, want 0x1000", paddr)
	}
}

func TestMegapageWithoutXFaultsOnFetch(t *testing.T) {
	b := bus.NewSystemBus(0x400000 + 0x1000)
	l1 := uint32(pteV | pteR | pteW | pteU) // no X
	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermX}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("fetch without X permission should fault")
	}
}

func TestSuperpageAlignmentFault(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	l1 := (uint32(1) << ppn0Shift) | pteV | pteR | pteW | pteX | pteU // nonzero ppn0
	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermR}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("nonzero low PPN bits on a megapage leaf should fault")
	}
}

func TestReservedEncodingFaults(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	l1 := uint32(pteV | pteW) // W set, R clear: reserved
	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermR}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("reserved W&!R encoding should fault")
	}
}

func TestTwoLevelWalk(t *testing.T) {
	b := bus.NewSystemBus(0x20000)
	l2Base := uint32(0x4000)
	l1 := ((l2Base >> 12) << ppn0Shift) | pteV // pointer, not a leaf
	b.W32(0, l1)

	ppn := uint32(0x5) // physical page 5
	l2 := (ppn << ppn0Shift) | pteV | pteR | pteW | pteU
	b.W32(l2Base, l2)

	access := Access{EffectivePriv: privU, Required: PermR}
	paddr, ok := Translate(0x2345, 0, access, b)
	if !ok {
		t.Fatal("two-level translation should succeed")
	}
	want := (ppn << 12) | 0x345
	if paddr != want {
		t.Fatalf("paddr = %#x, want %#x", paddr, want)
	}
}

func TestSModeDeniedUserPageWithoutSUM(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	l1 := uint32(pteV | pteR | pteW | pteU)
	b.W32(0, l1)

	access := Access{EffectivePriv: privS, Required: PermR, SUM: false}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("S-mode access to U page without SUM should fault")
	}

	access.SUM = true
	if _, ok := Translate(0x1000, 0, access, b); !ok {
		t.Fatal("S-mode access to U page with SUM should succeed")
	}
}

func TestUserDeniedSupervisorOnlyPage(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	l1 := uint32(pteV | pteR | pteW) // no U bit
	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermR}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("U-mode access to non-U page should fault")
	}
}

func TestMXRAllowsReadOfExecuteOnlyPage(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	l1 := uint32(pteV | pteX | pteU) // execute-only

	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermR}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("read of execute-only page without MXR should fault")
	}

	access.MXR = true
	if _, ok := Translate(0x1000, 0, access, b); !ok {
		t.Fatal("read of execute-only page with MXR should succeed")
	}
}

func TestAccessedAndDirtyBitsSetOnWrite(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	l1 := uint32(pteV | pteR | pteW | pteU)
	b.W32(0, l1)

	access := Access{EffectivePriv: privU, Required: PermW}
	if _, ok := Translate(0x1000, 0, access, b); !ok {
		t.Fatal("write translation should succeed")
	}
	updated, _ := b.R32(0)
	if updated&pteA == 0 || updated&pteD == 0 {
		t.Fatalf("PTE after write = %#x, want A and D set", updated)
	}
}

func TestInvalidPTEFaults(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	access := Access{EffectivePriv: privU, Required: PermR}
	if _, ok := Translate(0x1000, 0, access, b); ok {
		t.Fatal("all-zero (non-valid) root PTE should fault")
	}
}
