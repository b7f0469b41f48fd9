// Package trace implements hart.Tracer as a plain-text writer, emitting
// one line per instruction plus supplementary lines for CSR writes,
// traps, and privilege changes. It has no knowledge of decoding or
// register ABI names; every line is built from the raw values the hart
// already computed.
package trace

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Writer formats hart.Tracer events to an io.Writer, optionally mirroring
// trap/IRQ/privilege-change lines through a logrus entry at debug level so
// operators can filter trace noise independently of operational logging.
type Writer struct {
	out io.Writer
	log *logrus.Logger
}

// New returns a Writer that emits to out. log may be nil to disable the
// logrus mirroring of supplementary lines.
func New(out io.Writer, log *logrus.Logger) *Writer {
	return &Writer{out: out, log: log}
}

// Instr emits one line per retired instruction:
// <pc>: <instr-bytes> : <rd> <- <value> : pc <- <target>
func (w *Writer) Instr(pc uint32, raw uint32, instrLen int, rd int, rdVal uint32, rdSet bool, nextPC uint32) {
	bytes := formatInstrBytes(raw, instrLen)
	rdPart := "-"
	if rdSet && rd != 0 {
		rdPart = fmt.Sprintf("x%d <- %#x", rd, rdVal)
	}
	fmt.Fprintf(w.out, "%#08x: %s : %s : pc <- %#08x\n", pc, bytes, rdPart, nextPC)
}

// CSRWrite emits a supplementary line: #<addr> <- <value>
func (w *Writer) CSRWrite(addr uint16, value uint32) {
	fmt.Fprintf(w.out, "#%#x <- %#08x\n", addr, value)
	if w.log != nil {
		w.log.WithFields(logrus.Fields{"csr": addr, "value": value}).Debug("csr write")
	}
}

// Trap emits: ^^^ Trap : cause <- N : pc <- T
func (w *Writer) Trap(cause uint32, nextPC uint32) {
	fmt.Fprintf(w.out, "^^^ Trap : cause <- %d : pc <- %#08x\n", cause, nextPC)
	if w.log != nil {
		w.log.WithFields(logrus.Fields{"cause": cause, "pc": nextPC}).Debug("trap")
	}
}

// PrivChange emits a supplementary privilege-change line.
func (w *Writer) PrivChange(from, to uint) {
	fmt.Fprintf(w.out, "~~~ Priv : %s -> %s\n", privName(from), privName(to))
	if w.log != nil {
		w.log.WithFields(logrus.Fields{"from": privName(from), "to": privName(to)}).Debug("privilege change")
	}
}

func privName(p uint) string {
	switch p {
	case 0:
		return "U"
	case 1:
		return "S"
	case 3:
		return "M"
	default:
		return "?"
	}
}

func formatInstrBytes(raw uint32, instrLen int) string {
	if instrLen == 2 {
		return fmt.Sprintf("%04x", uint16(raw))
	}
	return fmt.Sprintf("%08x", raw)
}
