package sensor

import (
	"math"

	"ccdline/core"
)

// TSL1401 models a 128-pixel linear sensor array. The start pulse (SI)
// ends one integration period and starts the readout of the charge collected
// during it. Each device clock steps the analog output to the next pixel.
//
// Irradiance is expressed in counts per clock cycle, so a pixel reads
// irradiance*integration cycles, saturating at full scale.
type TSL1401 struct {
	irradiance []float64
	fullScale  float64

	sinceStart  uint64 // Cycles since the last start pulse
	integration uint64 // Integration period of the line being read out
	pixel       int
	readout     bool
	lines       uint64
}

// NewTSL1401 returns a sensor lit by irradiance, one entry per pixel
func NewTSL1401(irradiance []float64) *TSL1401 {
	return &TSL1401{
		irradiance: irradiance,
		fullScale:  core.SampleMask,
	}
}

// Pixels returns the number of pixels
func (s *TSL1401) Pixels() int { return len(s.irradiance) }

// SetIrradiance replaces the light pattern from the next integration on
func (s *TSL1401) SetIrradiance(irradiance []float64) {
	s.irradiance = irradiance
}

// Tick advances one cycle with the start and device clock inputs
func (s *TSL1401) Tick(start, clock bool) {
	s.sinceStart++
	switch {
	case start:
		s.integration = s.sinceStart
		s.sinceStart = 0
		s.pixel = 0
		s.readout = true
		s.lines++
	case clock && s.readout:
		s.pixel++
		if s.pixel >= len(s.irradiance) {
			s.readout = false
		}
	}
}

// Pixel returns the index of the pixel on the analog output
func (s *TSL1401) Pixel() int { return s.pixel }

// Integration returns the integration period of the current readout
func (s *TSL1401) Integration() uint64 { return s.integration }

// Lines returns the number of start pulses seen
func (s *TSL1401) Lines() uint64 { return s.lines }

// Level is the analog output of the current pixel. It is zero outside a readout.
func (s *TSL1401) Level() core.Sample {
	if !s.readout || s.pixel >= len(s.irradiance) {
		return 0
	}
	v := math.Round(s.irradiance[s.pixel] * float64(s.integration))
	return core.Sample(math.Min(math.Max(v, 0), s.fullScale))
}
