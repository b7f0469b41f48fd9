// Package driver sequences one hart against its peripherals: step,
// advance the timer, poll the UART, latch IRQs onto the CSR file, and
// watch for a guest-requested exit. While it runs it owns the only
// goroutine that touches hart state; a second goroutine exists solely to
// relay OS signals over a context. The interactive monitor does not attach
// to this loop: it steps the hart itself, without a Loop.
package driver

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/hart"
	"github.com/rv32lab/rv32core/internal/peripheral"
)

// TimerTicksPerStep is how many mtime ticks the timer advances per
// executed instruction; a fixed ratio keeps the mock CLINT deterministic
// across runs instead of wall-clock-driven.
const TimerTicksPerStep = 1

// Loop drives a hart.Hart against its wired peripherals until the guest
// signals exit via the exit port, the context is cancelled, or
// instrBudget instructions have retired (0 = unbounded).
type Loop struct {
	H   *hart.Hart
	CSR *csr.File

	UART     *peripheral.UART
	Timer    *peripheral.Timer
	ExitPort *peripheral.ExitPort

	Tracer hart.Tracer

	InstrBudget uint64
}

// Run steps the hart once per tick, advances the timer, and watches for
// a guest-requested exit or a cancelled context, returning the guest's
// exit code (0 if the loop stopped for any other reason). UART RX
// polling and IRQ latching happen as a side effect of
// peripheral.UART.Push and peripheral.Timer.Advance calling the irqSet
// closure each wires directly to a csr.File.SetIRQ{T,S,E} method at
// construction, rather than as a separate poll call here — the CSR
// file's MIP view is always current by the time Step reads it.
func (l *Loop) Run(ctx context.Context) (uint8, error) {
	var retired uint64
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case code := <-l.ExitPort.Done():
			return code, nil
		default:
		}

		l.H.Step(l.Tracer)
		retired++

		if l.Timer != nil {
			l.Timer.Advance(TimerTicksPerStep)
		}

		if l.InstrBudget != 0 && retired >= l.InstrBudget {
			return 0, nil
		}
	}
}

// RunSupervised runs Run on its own goroutine and installs a SIGINT/SIGTERM
// handler that cancels the loop's context, using errgroup purely to
// coordinate the two goroutines' termination — hart state itself is
// touched only from the loop goroutine.
func (l *Loop) RunSupervised(ctx context.Context) (uint8, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	var exitCode uint8
	g.Go(func() error {
		code, err := l.Run(gctx)
		exitCode = code
		return err
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return exitCode, err
	}
	return exitCode, nil
}
