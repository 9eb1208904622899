package core

import "fmt"

// SequencerState is the PixelSequencer state
type SequencerState uint8

// PixelSequencer states
const (
	SeqStateIdle SequencerState = iota
	SeqStateExposing
	SeqStateEndOfLine
)

func (s SequencerState) String() string {
	switch s {
	case SeqStateIdle:
		return "IDLE"
	case SeqStateExposing:
		return "EXPOSING"
	case SeqStateEndOfLine:
		return "END_OF_LINE"
	}
	return "UNKNOWN"
}

// PixelSequencer turns a scan trigger into one full line: it requests a
// conversion per pixel, writes each result at PixelIndex-1 and then holds
// END_OF_LINE for tau cycles so the sensor integrates before the next scan.
type PixelSequencer struct {
	line   LineWriter
	pixels int
	tau    uint32

	state       SequencerState
	pixel       int    // PixelIndex, 0 in IDLE, 1..pixels otherwise
	integration uint32 // IntegrationCounter
	tauLatched  uint32
	start       bool

	scans uint64
}

// NewPixelSequencer returns an idle sequencer writing pixels words into line
func NewPixelSequencer(line LineWriter, pixels int, tau uint32) (*PixelSequencer, error) {
	if pixels <= 0 {
		return nil, fmt.Errorf("%w: pixels must be positive, got %d", ErrInvalidConfig, pixels)
	}
	if tau == 0 {
		return nil, fmt.Errorf("%w: tau must be positive", ErrInvalidConfig)
	}
	return &PixelSequencer{line: line, pixels: pixels, tau: tau}, nil
}

// SetTau changes the integration period. It takes effect at the next
// END_OF_LINE entry.
func (s *PixelSequencer) SetTau(tau uint32) error {
	if tau == 0 {
		return fmt.Errorf("%w: tau must be positive", ErrInvalidConfig)
	}
	s.tau = tau
	return nil
}

// Tau returns the configured integration period
func (s *PixelSequencer) Tau() uint32 { return s.tau }

// State returns the current state
func (s *PixelSequencer) State() SequencerState { return s.state }

// PixelIndex returns the 1-based index of the pixel being converted
func (s *PixelSequencer) PixelIndex() int { return s.pixel }

// IntegrationCount returns the cycles spent in END_OF_LINE so far
func (s *PixelSequencer) IntegrationCount() uint32 { return s.integration }

// Scans returns the number of scans started
func (s *PixelSequencer) Scans() uint64 { return s.scans }

// Busy reports whether a scan is in progress
func (s *PixelSequencer) Busy() bool { return s.state != SeqStateIdle }

// Start is the SI output, high for the first cycle at PixelIndex 1
func (s *PixelSequencer) Start() bool { return s.start }

// Convert is the convert trigger for the AdcSampler given its current valid
// output. It drops in the cycle the last pixel is delivered so no stray
// conversion follows the line.
func (s *PixelSequencer) Convert(adcValid bool) bool {
	if s.state != SeqStateExposing {
		return false
	}
	return !(adcValid && s.pixel == s.pixels)
}

// DeviceClock is the sensor clock: the ADC valid pulse while exposing
func (s *PixelSequencer) DeviceClock(adcValid bool) bool {
	return adcValid && s.state == SeqStateExposing
}

// Tick advances the sequencer by one clock edge
func (s *PixelSequencer) Tick(trigger, valid bool, sample Sample) {
	s.start = false

	switch s.state {
	case SeqStateIdle:
		if !trigger {
			return
		}
		s.state = SeqStateExposing
		s.pixel = 1
		s.integration = 0
		s.start = true
		s.scans++
		s.line.BeginLine()

	case SeqStateExposing:
		if !valid {
			return
		}
		s.line.Write(s.pixel-1, sample)
		if s.pixel < s.pixels {
			s.pixel++
			return
		}
		s.line.EndLine()
		s.state = SeqStateEndOfLine
		s.integration = 0
		s.tauLatched = s.tau

	case SeqStateEndOfLine:
		s.integration++
		if s.integration >= s.tauLatched {
			s.state = SeqStateIdle
			s.pixel = 0
			s.integration = 0
		}
	}
}
