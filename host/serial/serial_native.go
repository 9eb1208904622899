//go:build !tinygo

package serial

import (
	"errors"
	"fmt"

	"github.com/tarm/serial"
)

// ErrNoDevice is returned when no device path is configured
var ErrNoDevice = errors.New("serial: no device configured")

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

// Open opens a native serial port
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port. A read timeout surfaces as io.EOF.
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input and unsent output
func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the device path
func (p *NativePort) Device() string {
	return p.cfg.Device
}
