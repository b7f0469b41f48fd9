// Package config loads the YAML machine description consumed by
// cmd/rv32run: reset vector, RAM size, peripheral MMIO placement, and
// which interrupt lane each peripheral drives.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// IRQLine names one of the three latches a peripheral can drive, per
// csr.File.SetIRQ{T,S,E}.
type IRQLine string

const (
	IRQTimer    IRQLine = "t"
	IRQSoftware IRQLine = "s"
	IRQExternal IRQLine = "e"
)

// UART describes the mock UART peripheral's placement and optional host
// serial passthrough.
type UART struct {
	MMIOBase     uint32  `yaml:"mmio_base"`
	IRQLine      IRQLine `yaml:"irq_line"`
	SerialDevice string  `yaml:"serial_device"`
}

// Timer describes the mock CLINT-style timer's placement.
type Timer struct {
	MMIOBase uint32  `yaml:"mmio_base"`
	IRQLine  IRQLine `yaml:"irq_line"`
}

// ExitPort describes the tohost-style simulation exit peripheral.
type ExitPort struct {
	MMIOBase uint32 `yaml:"mmio_base"`
}

// Machine is the full machine description. Zero-value fields fall back
// to Default() via applyDefaults.
type Machine struct {
	ResetVector uint32   `yaml:"reset_vector"`
	RAMSize     uint32   `yaml:"ram_size"`
	UART        UART     `yaml:"uart"`
	Timer       Timer    `yaml:"timer"`
	ExitPort    ExitPort `yaml:"exit_port"`
	Trace       bool     `yaml:"trace"`
}

// Default returns a reasonable out-of-the-box machine description:
// reset vector 0x40, 4 MiB of RAM, UART driving the supervisor-external
// interrupt lane, timer driving the timer lane.
func Default() Machine {
	return Machine{
		ResetVector: 0x40,
		RAMSize:     0x400000,
		UART: UART{
			MMIOBase: 0x10000000,
			IRQLine:  IRQExternal,
		},
		Timer: Timer{
			MMIOBase: 0x10001000,
			IRQLine:  IRQTimer,
		},
		ExitPort: ExitPort{
			MMIOBase: 0x10002000,
		},
	}
}

// Load reads and parses a YAML machine description from path, filling any
// zero-valued field with Default()'s value. An empty path returns
// Default() unchanged; cmd/rv32run treats the config file as optional.
func Load(path string) (Machine, error) {
	m := Default()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Machine{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var loaded Machine
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Machine{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(&loaded, m)
	return loaded, nil
}

// applyDefaults overwrites every zero-valued field of m with the
// corresponding field from defaults, in place.
func applyDefaults(m *Machine, defaults Machine) {
	if m.ResetVector == 0 {
		m.ResetVector = defaults.ResetVector
	}
	if m.RAMSize == 0 {
		m.RAMSize = defaults.RAMSize
	}
	if m.UART.MMIOBase == 0 {
		m.UART.MMIOBase = defaults.UART.MMIOBase
	}
	if m.UART.IRQLine == "" {
		m.UART.IRQLine = defaults.UART.IRQLine
	}
	if m.Timer.MMIOBase == 0 {
		m.Timer.MMIOBase = defaults.Timer.MMIOBase
	}
	if m.Timer.IRQLine == "" {
		m.Timer.IRQLine = defaults.Timer.IRQLine
	}
	if m.ExitPort.MMIOBase == 0 {
		m.ExitPort.MMIOBase = defaults.ExitPort.MMIOBase
	}
}
