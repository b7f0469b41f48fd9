// Package peripheral implements the mock MMIO devices wired onto a
// bus.SystemBus by cmd/rv32run: a UART sink, a CLINT-style timer, and a
// testbench exit port. None of these are part of the hart/csr/mmu core;
// they exist only to drive its interrupt lanes and give guest programs
// something to talk to.
package peripheral

import (
	"bufio"
	"io"
	"sync"

	"github.com/cesanta/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// UART exposes one data register and one status register over MMIO:
// writing the data register emits a byte (to stdout, or to an opened
// serial.Serial when configured with a host device); reading it dequeues
// one received byte, or 0 if none is pending. The status register's bit 0
// reports RX-data-available and bit 1 is always set (TX-ready).
type UART struct {
	mu sync.Mutex

	out io.Writer
	dev serial.Serial // nil unless a host serial device was opened

	rx      []byte
	irqSet  func(bool)
	log     *logrus.Logger
}

const (
	uartStatusRXReady = 1 << 0
	uartStatusTXReady = 1 << 1
)

// NewUART returns a UART sink writing to out (typically os.Stdout). irqSet
// is called with true while received bytes are pending and false once
// drained — the caller wires it to whichever csr.File.SetIRQ{T,S,E} method
// matches the configured irq_line.
func NewUART(out io.Writer, irqSet func(bool), log *logrus.Logger) *UART {
	return &UART{out: out, irqSet: irqSet, log: log}
}

// AttachSerial makes data-register writes go to an already opened host
// serial device instead of out. It does not read from dev: received bytes
// still enter only through Push or PumpReader.
func (u *UART) AttachSerial(dev serial.Serial) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dev = dev
}

// Push enqueues a byte as though it arrived over RX (stdin or the serial
// device) and raises the configured IRQ line until it's drained by a read.
func (u *UART) Push(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append(u.rx, b)
	if u.irqSet != nil {
		u.irqSet(true)
	}
}

// PumpReader copies bytes from r into the UART's RX queue until r is
// exhausted or returns an error; intended to run on its own goroutine
// reading stdin or an opened serial.Serial.
func (u *UART) PumpReader(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			if u.log != nil {
				u.log.WithError(err).Debug("uart: rx reader stopped")
			}
			return
		}
		u.Push(b)
	}
}

// ReadByte implements the bus.Memory byte-read callback for the data
// (offset 0) and status (offset 4) registers.
func (u *UART) ReadByte(offset uint32) (uint8, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch offset {
	case 0:
		if len(u.rx) == 0 {
			return 0, true
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		if len(u.rx) == 0 && u.irqSet != nil {
			u.irqSet(false)
		}
		return b, true
	case 4:
		status := uint8(uartStatusTXReady)
		if len(u.rx) > 0 {
			status |= uartStatusRXReady
		}
		return status, true
	default:
		return 0, true
	}
}

// WriteByte implements the bus.Memory byte-write callback for the data
// register; writes to the status register are accepted and ignored.
func (u *UART) WriteByte(offset uint32, v uint8) bool {
	if offset != 0 {
		return true
	}
	u.mu.Lock()
	dev := u.dev
	out := u.out
	u.mu.Unlock()

	if dev != nil {
		_, err := dev.Write([]byte{v})
		if err != nil && u.log != nil {
			u.log.WithError(err).Debug("uart: serial write failed")
		}
		return err == nil
	}
	if out != nil {
		_, _ = out.Write([]byte{v})
	}
	return true
}
