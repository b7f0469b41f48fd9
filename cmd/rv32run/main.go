// Command rv32run loads a flat RV32 binary and runs it against a hart,
// its CSR/MMU engine, and a handful of mock peripherals: a UART, a
// CLINT-style timer, and a testbench exit port. Subcommands: run,
// profile, monitor.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cesanta/go-serial/serial"
	"github.com/fatih/color"
	"github.com/gofrs/flock"
	flag "github.com/spf13/pflag"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/rv32lab/rv32core/internal/bus"
	"github.com/rv32lab/rv32core/internal/config"
	"github.com/rv32lab/rv32core/internal/csr"
	"github.com/rv32lab/rv32core/internal/driver"
	"github.com/rv32lab/rv32core/internal/hart"
	"github.com/rv32lab/rv32core/internal/monitor"
	"github.com/rv32lab/rv32core/internal/peripheral"
	"github.com/rv32lab/rv32core/internal/profile"
	"github.com/rv32lab/rv32core/internal/trace"
)

var errColor = color.New(color.FgRed, color.Bold)

func fatalf(format string, args ...interface{}) {
	errColor.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "profile":
		cmdProfile(os.Args[2:])
	case "monitor":
		cmdMonitor(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fatalf("unknown subcommand %q", os.Args[1])
	}
}

func usage() {
	fmt.Println("Usage: rv32run <run|profile|monitor> [flags] <program.bin>")
	fmt.Println()
	fmt.Println("  run      load and execute a flat binary to completion or exit")
	fmt.Println("  profile  run under instrumentation and render PNG charts")
	fmt.Println("  monitor  run with an attached interactive debugger REPL")
}

// machine is every piece rv32run wires together for one program run.
type machine struct {
	bus      *bus.SystemBus
	csr      *csr.File
	hart     *hart.Hart
	uart     *peripheral.UART
	timer    *peripheral.Timer
	exitPort *peripheral.ExitPort
	log      *logrus.Logger
}

func irqSetter(c *csr.File, line config.IRQLine) func(bool) {
	switch line {
	case config.IRQSoftware:
		return c.SetIRQS
	case config.IRQTimer:
		return c.SetIRQT
	default:
		return c.SetIRQE
	}
}

// buildMachine constructs the bus, CSR file, hart, and peripherals from
// cfg, maps each peripheral onto the bus at its configured base, and
// loads the flat binary at programPath into RAM starting at address 0.
func buildMachine(cfg config.Machine, programPath string, log *logrus.Logger) (*machine, error) {
	program, err := os.ReadFile(programPath)
	if err != nil {
		return nil, fmt.Errorf("rv32run: read program: %w", err)
	}

	b := bus.NewSystemBus(cfg.RAMSize)
	if len(program) > len(b.Bytes()) {
		return nil, fmt.Errorf("rv32run: program (%d bytes) exceeds ram size (%d bytes)", len(program), len(b.Bytes()))
	}
	copy(b.Bytes(), program)

	c := csr.New()
	h := hart.New(b, c)
	h.Reset(cfg.ResetVector)

	u := peripheral.NewUART(os.Stdout, irqSetter(c, cfg.UART.IRQLine), log)
	if cfg.UART.SerialDevice != "" {
		dev, err := serialOpen(cfg.UART.SerialDevice)
		if err != nil {
			return nil, fmt.Errorf("rv32run: open serial device: %w", err)
		}
		u.AttachSerial(dev)
	}
	b.MapIO(cfg.UART.MMIOBase, cfg.UART.MMIOBase+7,
		func(addr uint32) (uint8, bool) { return u.ReadByte(addr - cfg.UART.MMIOBase) },
		func(addr uint32, v uint8) bool { return u.WriteByte(addr-cfg.UART.MMIOBase, v) })

	t := peripheral.NewTimer(irqSetter(c, cfg.Timer.IRQLine))
	b.MapIO(cfg.Timer.MMIOBase, cfg.Timer.MMIOBase+0x0F,
		func(addr uint32) (uint8, bool) { return t.ReadByte(addr - cfg.Timer.MMIOBase) },
		func(addr uint32, v uint8) bool { return t.WriteByte(addr-cfg.Timer.MMIOBase, v) })

	e := peripheral.NewExitPort()
	b.MapIO(cfg.ExitPort.MMIOBase, cfg.ExitPort.MMIOBase,
		func(addr uint32) (uint8, bool) { return e.ReadByte(addr - cfg.ExitPort.MMIOBase) },
		func(addr uint32, v uint8) bool { return e.WriteByte(addr-cfg.ExitPort.MMIOBase, v) })

	return &machine{bus: b, csr: c, hart: h, uart: u, timer: t, exitPort: e, log: log}, nil
}

// serialOpen opens a host serial port at 115200 8N1 for a UART attached
// to a real device instead of stdout/stdin.
func serialOpen(devicePath string) (serial.Serial, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        devicePath,
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
}

func newLogger(levelName string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML machine config")
	tracePath := fs.Bool("trace", false, "write an execution trace to stdout")
	logLevel := fs.String("log-level", "info", "logrus level: debug, info, warn, error")
	budget := fs.Uint64("instr-budget", 0, "stop after this many instructions (0 = unbounded)")
	interactive := fs.Bool("interactive-uart", false, "put the terminal in raw mode and pump stdin to the UART")
	dumpPath := fs.String("dump", "", "write a RAM dump to this path on exit")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rv32run run [flags] <program.bin>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("rv32run: %v", err)
	}

	log := newLogger(*logLevel)
	m, err := buildMachine(cfg, fs.Arg(0), log)
	if err != nil {
		fatalf("rv32run: %v", err)
	}

	var tr hart.Tracer
	if *tracePath {
		tr = trace.New(os.Stdout, log)
	}

	loop := &driver.Loop{
		H: m.hart, CSR: m.csr,
		UART: m.uart, Timer: m.timer, ExitPort: m.exitPort,
		Tracer: tr, InstrBudget: *budget,
	}

	if *interactive {
		stop := startInteractiveUART(m.uart)
		defer stop()
	}

	code, err := loop.RunSupervised(context.Background())
	if err != nil && err != context.Canceled {
		fatalf("rv32run: %v", err)
	}

	if *dumpPath != "" {
		if err := dumpRAM(*dumpPath, m.bus); err != nil {
			fatalf("rv32run: %v", err)
		}
	}

	os.Exit(int(code))
}

func cmdProfile(args []string) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML machine config")
	budget := fs.Uint64("instr-budget", 1_000_000, "total instructions to run under instrumentation")
	interval := fs.Uint64("interval", 1000, "sampling interval, in instructions")
	ratePath := fs.String("rate-png", "rate.png", "output path for the retirement-rate chart")
	trapPath := fs.String("trap-png", "traps.png", "output path for the trap-cause histogram")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rv32run profile [flags] <program.bin>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("rv32run: %v", err)
	}

	log := newLogger("warn")
	m, err := buildMachine(cfg, fs.Arg(0), log)
	if err != nil {
		fatalf("rv32run: %v", err)
	}

	res := profile.Run(m.hart, m.csr, *budget, *interval)

	if err := res.WriteRatePNG(*ratePath); err != nil {
		fatalf("rv32run: %v", err)
	}
	if len(res.TrapCounts) > 0 {
		if err := res.WriteTrapHistogramPNG(*trapPath); err != nil {
			fatalf("rv32run: %v", err)
		}
	}

	color.New(color.FgGreen).Printf("wrote %s", *ratePath)
	if len(res.TrapCounts) > 0 {
		color.New(color.FgGreen).Printf(" and %s", *trapPath)
	}
	fmt.Println()
}

func cmdMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML machine config")
	scriptPath := fs.String("script", "", "run a Lua script instead of an interactive prompt")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rv32run monitor [flags] <program.bin>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("rv32run: %v", err)
	}

	log := newLogger("info")
	m, err := buildMachine(cfg, fs.Arg(0), log)
	if err != nil {
		fatalf("rv32run: %v", err)
	}

	mon := monitor.New(m.hart, m.csr, m.bus)

	if *scriptPath != "" {
		if err := mon.RunScript(*scriptPath); err != nil {
			fatalf("rv32run: %v", err)
		}
		return
	}

	fmt.Println("rv32run monitor — type 'regs', 'step [n]', 'continue', 'break <addr>', 'disasm <addr> [n]', 'mem <addr> [n]', 'csr <name>', or 'quit'")
	repl(mon)
}

func repl(mon *monitor.Monitor) {
	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		raw, err := in.ReadString('\n')
		if err != nil {
			return
		}
		line := strings.TrimSpace(raw)
		if line == "quit" || line == "exit" {
			return
		}
		if line == "" {
			continue
		}
		fmt.Println(mon.Execute(line))
	}
}

// startInteractiveUART puts stdin in raw mode and pumps it into the UART's
// RX queue; the returned func restores the terminal.
func startInteractiveUART(u *peripheral.UART) func() {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}
	}
	go u.PumpReader(os.Stdin)
	return func() { _ = term.Restore(fd, oldState) }
}

// dumpRAM writes the machine's full RAM contents to path, holding an
// exclusive file lock for the duration so a concurrent rv32run instance
// dumping the same path can't interleave writes.
func dumpRAM(path string, b *bus.SystemBus) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("rv32run: lock dump file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rv32run: create dump file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b.Bytes()); err != nil {
		return fmt.Errorf("rv32run: write dump file: %w", err)
	}
	return nil
}
