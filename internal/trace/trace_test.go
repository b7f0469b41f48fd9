package trace

import (
	"bytes"
	"strings"
	"testing"
)

func TestInstrLineFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, nil)
	w.Instr(0x40, 0x00108093, 4, 1, 7, true, 0x44)
	got := buf.String()
	if !strings.Contains(got, "0x00000040:") {
		t.Fatalf("missing pc in line: %q", got)
	}
	if !strings.Contains(got, "x1 <- 0x7") {
		t.Fatalf("missing rd writeback in line: %q", got)
	}
	if !strings.Contains(got, "pc <- 0x00000044") {
		t.Fatalf("missing next pc in line: %q", got)
	}
}

func TestInstrLineOmitsRdWhenNotSet(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, nil)
	w.Instr(0x40, 0x00000063, 4, 0, 0, false, 0x40)
	if !strings.Contains(buf.String(), ": - :") {
		t.Fatalf("expected '-' placeholder for no-writeback line, got %q", buf.String())
	}
}

func TestCompressedInstrByteWidth(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, nil)
	w.Instr(0x40, 0x0001, 2, 0, 0, false, 0x42)
	if !strings.Contains(buf.String(), ": 0001 :") {
		t.Fatalf("expected 4 hex digits for a compressed instruction, got %q", buf.String())
	}
}

func TestTrapLineFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, nil)
	w.Trap(11, 0x100)
	if !strings.Contains(buf.String(), "^^^ Trap : cause <- 11 : pc <- 0x00000100") {
		t.Fatalf("unexpected trap line: %q", buf.String())
	}
}

func TestCSRWriteLineFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, nil)
	w.CSRWrite(0x300, 0x1800)
	if !strings.Contains(buf.String(), "#0x300 <- 0x00001800") {
		t.Fatalf("unexpected csr write line: %q", buf.String())
	}
}

func TestPrivChangeLineFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, nil)
	w.PrivChange(3, 0)
	if !strings.Contains(buf.String(), "~~~ Priv : M -> U") {
		t.Fatalf("unexpected priv change line: %q", buf.String())
	}
}
