// Acquisition core configuration
// Sample/line geometry, protocol variants and the integration period
package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sample is one conversion result. Only the low SampleBits bits are used.
type Sample uint16

// Default geometry of the TSL1401 line and the ADCS7476 converter
const (
	PixelCount      = 128
	SampleBits      = 12
	SampleMask      = 1<<SampleBits - 1
	DefaultTau      = 128
	DefaultSyncByte = 0x42
)

// ErrInvalidConfig is returned when a degenerate configuration is rejected
var ErrInvalidConfig = errors.New("invalid configuration")

// ADCProtocol selects the chip-select timing of the AdcSampler
type ADCProtocol uint8

const (
	// ADCTriggered waits for the convert trigger, converts for 16 cycles and
	// settles for one cycle with chip select high
	ADCTriggered ADCProtocol = iota
	// ADCFreeRun keeps chip select low and wraps every 16 cycles
	ADCFreeRun
)

func (p ADCProtocol) String() string {
	switch p {
	case ADCTriggered:
		return "triggered"
	case ADCFreeRun:
		return "freerun"
	}
	return fmt.Sprintf("ADCProtocol(%d)", uint8(p))
}

// ParseADCProtocol parses "triggered" or "freerun"
func ParseADCProtocol(s string) (ADCProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "triggered":
		return ADCTriggered, nil
	case "freerun", "free-run":
		return ADCFreeRun, nil
	}
	return 0, fmt.Errorf("%w: unknown adc protocol %q", ErrInvalidConfig, s)
}

// BufferPolicy selects how the line store is shared between the sequencer
// and the dumper
type BufferPolicy uint8

const (
	// PolicyShared uses a single bank. A dump overlapping a scan reads a mix
	// of old and new samples and is reported as torn.
	PolicyShared BufferPolicy = iota
	// PolicyDouble writes a back bank and publishes it when no dump is in flight
	PolicyDouble
)

func (p BufferPolicy) String() string {
	switch p {
	case PolicyShared:
		return "shared"
	case PolicyDouble:
		return "double"
	}
	return fmt.Sprintf("BufferPolicy(%d)", uint8(p))
}

// ParseBufferPolicy parses "shared" or "double"
func ParseBufferPolicy(s string) (BufferPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shared":
		return PolicyShared, nil
	case "double":
		return PolicyDouble, nil
	}
	return 0, fmt.Errorf("%w: unknown buffer policy %q", ErrInvalidConfig, s)
}

// Framing selects the dump frame layout
type Framing uint8

const (
	// FramingRaw emits [sync, data...]
	FramingRaw Framing = iota
	// FramingCRC emits [sync, data..., crcHi, crcLo]
	FramingCRC
)

func (f Framing) String() string {
	switch f {
	case FramingRaw:
		return "raw"
	case FramingCRC:
		return "crc"
	}
	return fmt.Sprintf("Framing(%d)", uint8(f))
}

// ParseFraming parses "raw" or "crc"
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return FramingRaw, nil
	case "crc":
		return FramingCRC, nil
	}
	return 0, fmt.Errorf("%w: unknown framing %q", ErrInvalidConfig, s)
}

// Config holds the static configuration of a System
type Config struct {
	Pixels   int    // Line depth in words
	Width    int    // Word width in bits (1..32)
	Tau      uint32 // End-of-line integration period in cycles
	SyncByte byte

	ADC     ADCProtocol
	Policy  BufferPolicy
	Framing Framing

	// WatchdogCycles is the longest WAIT the dumper may sit in before the
	// watchdog reports a stall. Zero disables the watchdog.
	WatchdogCycles uint64
}

// DefaultConfig returns the 128 x 12-bit line with tau=128 and sync 0x42
func DefaultConfig() Config {
	return Config{
		Pixels:   PixelCount,
		Width:    SampleBits,
		Tau:      DefaultTau,
		SyncByte: DefaultSyncByte,
		ADC:      ADCTriggered,
		Policy:   PolicyShared,
		Framing:  FramingRaw,
	}
}

// Validate rejects degenerate configurations
func (c Config) Validate() error {
	if c.Pixels <= 0 {
		return fmt.Errorf("%w: pixels must be positive, got %d", ErrInvalidConfig, c.Pixels)
	}
	if c.Width < 1 || c.Width > 32 {
		return fmt.Errorf("%w: width must be in 1..32, got %d", ErrInvalidConfig, c.Width)
	}
	if c.Tau == 0 {
		return fmt.Errorf("%w: tau must be positive", ErrInvalidConfig)
	}
	if c.ADC > ADCFreeRun {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.ADC)
	}
	if c.Policy > PolicyDouble {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Policy)
	}
	if c.Framing > FramingCRC {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Framing)
	}
	return nil
}
