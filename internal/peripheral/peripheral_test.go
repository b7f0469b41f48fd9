package peripheral

import (
	"bytes"
	"testing"
	"time"
)

func TestUARTPushAndDrainTogglesIRQ(t *testing.T) {
	var irq bool
	u := NewUART(&bytes.Buffer{}, func(v bool) { irq = v }, nil)
	u.Push('A')
	if !irq {
		t.Fatal("expected irq raised after push")
	}
	status, _ := u.ReadByte(4)
	if status&uartStatusRXReady == 0 {
		t.Fatal("expected RX-ready bit set")
	}
	b, _ := u.ReadByte(0)
	if b != 'A' {
		t.Fatalf("read %q, want 'A'", b)
	}
	if irq {
		t.Fatal("expected irq cleared after drain")
	}
}

func TestUARTWriteEmitsToOut(t *testing.T) {
	var buf bytes.Buffer
	u := NewUART(&buf, nil, nil)
	u.WriteByte(0, 'z')
	if buf.String() != "z" {
		t.Fatalf("out = %q, want %q", buf.String(), "z")
	}
}

func TestUARTEmptyReadReturnsZero(t *testing.T) {
	u := NewUART(&bytes.Buffer{}, nil, nil)
	b, ok := u.ReadByte(0)
	if !ok || b != 0 {
		t.Fatalf("empty read = %v,%v want 0,true", b, ok)
	}
}

func TestTimerExpiryRaisesIRQ(t *testing.T) {
	var irq bool
	tm := NewTimer(func(v bool) { irq = v })
	tm.WriteByte(regMtimecmpLo, 5)
	tm.Advance(4)
	if irq {
		t.Fatal("expected no irq before mtime reaches mtimecmp")
	}
	tm.Advance(1)
	if !irq {
		t.Fatal("expected irq once mtime >= mtimecmp")
	}
}

func TestTimerByteAssemblyRoundTrips(t *testing.T) {
	tm := NewTimer(nil)
	for i := uint32(0); i < 4; i++ {
		tm.WriteByte(regMtimeLo+i, uint8(0x10+i))
	}
	for i := uint32(0); i < 4; i++ {
		b, _ := tm.ReadByte(regMtimeLo + i)
		if b != uint8(0x10+i) {
			t.Fatalf("byte %d = %#x, want %#x", i, b, 0x10+i)
		}
	}
}

func TestExitPortSignalsOnce(t *testing.T) {
	e := NewExitPort()
	e.WriteByte(0, 7)
	e.WriteByte(0, 9) // second write is a no-op

	select {
	case code := <-e.Done():
		if code != 7 {
			t.Fatalf("exit code = %d, want 7", code)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for exit signal")
	}
}
