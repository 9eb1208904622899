// Package serial opens the link the acquisition core streams lines over
package serial

import (
	"io"
	"time"
)

// Port represents a serial port interface.
// Tests substitute in-memory pipes for the native port.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the sensor link
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration of the sensor board's UART
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
