// Package sensor provides the devices on the acquisition core's sensor bus:
// behavioural models of the ADCS7476 converter and the TSL1401 line sensor,
// and a source that replays conversions read from real SPI hardware.
package sensor

import "ccdline/core"

// Level returns the analog value presented to the converter, in counts
type Level func() core.Sample

// Constant returns a Level that always reads v
func Constant(v core.Sample) Level {
	return func() core.Sample { return v }
}

// ADCS7476 models the 12-bit serial converter. A chip select falling edge
// samples the input and loads the frame 0000 d11..d0, which is shifted out
// MSB first, one bit per clock. With chip select held low the next frame
// follows immediately.
type ADCS7476 struct {
	level  Level
	frame  uint16
	pos    uint8
	active bool

	frames uint64
}

// NewADCS7476 returns a converter sampling level
func NewADCS7476(level Level) *ADCS7476 {
	return &ADCS7476{level: level}
}

// SDATA returns the bit on the data line; the line is low while deselected
func (d *ADCS7476) SDATA() bool {
	if !d.active {
		return false
	}
	return d.frame>>(core.ADCFrameBits-1-d.pos)&1 == 1
}

// Tick advances one serial clock with chip select at nCS
func (d *ADCS7476) Tick(nCS bool) {
	if nCS {
		d.active = false
		return
	}
	if !d.active || d.pos == core.ADCFrameBits-1 {
		d.load()
		return
	}
	d.pos++
}

func (d *ADCS7476) load() {
	d.active = true
	d.pos = 0
	d.frame = uint16(d.level()) & core.SampleMask
	d.frames++
}

// Frames returns the number of conversions started
func (d *ADCS7476) Frames() uint64 { return d.frames }
