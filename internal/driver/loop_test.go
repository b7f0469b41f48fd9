package driver

import (
	"context"
	"testing"

	"github.com/rv32lab/rv32core/internal/bus"
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/hart"
	"github.com/rv32lab/rv32core/internal/peripheral"
)

// TestSv32FetchFaultEscalatesToM covers an unprivileged-fetch escalation: a
// megapage covering the reset vector is mapped readable but not
// executable; running in S-mode with delegation disabled, the first
// fetch takes an instruction page fault that — since medeleg doesn't
// delegate it — escalates straight to M-mode with mtval holding the
// faulting virtual address.
func TestSv32FetchFaultEscalatesToM(t *testing.T) {
	b := bus.NewSystemBus(0x20000)
	c := csr.New()

	const rootPT = 0x8000
	const ptePermRNoX = 1 | 2 // pteV | pteR, no pteW/pteX needed for this fault
	b.W32(rootPT, ptePermRNoX)

	c.Write(0x180, 0x80000000|uint32(rootPT>>12), csr.OpWrite) // satp: Sv32, root at rootPT
	c.Write(0x300, 1<<11, csr.OpSet)                           // mstatus.MPP = S
	c.TrapMRET()                                               // drop to S, MPP -> U

	h := hart.New(b, c)
	h.Reset(0x40)

	exitPort := peripheral.NewExitPort()
	loop := &Loop{H: h, CSR: c, ExitPort: exitPort, InstrBudget: 1}

	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if c.Priv() != csr.PrivM {
		t.Fatalf("priv after fault = %d, want M", c.Priv())
	}
	if c.GetXCause() != csr.CauseInstrPageFault {
		t.Fatalf("cause = %d, want INSTR_PAGEFAULT", c.GetXCause())
	}
	mtval, ok := c.Read(0x343)
	if !ok || mtval != 0x40 {
		t.Fatalf("mtval = %#x,%v want 0x40,true", mtval, ok)
	}
}

func TestLoopStopsOnExitPort(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	c := csr.New()
	h := hart.New(b, c)
	h.Reset(0x40)

	exitPort := peripheral.NewExitPort()
	loop := &Loop{H: h, CSR: c, ExitPort: exitPort}

	go func() {
		exitPort.WriteByte(0, 42)
	}()

	code, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if code != 42 {
		t.Fatalf("exit code = %d, want 42", code)
	}
}

func TestLoopRespectsInstrBudget(t *testing.T) {
	b := bus.NewSystemBus(0x10000)
	c := csr.New()
	h := hart.New(b, c)
	h.Reset(0x40)

	loop := &Loop{H: h, CSR: c, ExitPort: peripheral.NewExitPort(), InstrBudget: 5}
	code, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 for budget exhaustion", code)
	}
}
