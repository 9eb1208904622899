package core

// AdcSampler timing
const (
	ADCFrameBits  = 16 // Chip-select-low clocks per conversion
	ADCSettleBits = 1  // Chip-select-high clocks after a triggered conversion
)

// ADCState is the AdcSampler state
type ADCState uint8

// AdcSampler states
const (
	ADCStateIdle ADCState = iota
	ADCStateConverting
	ADCStateDone
)

func (s ADCState) String() string {
	switch s {
	case ADCStateIdle:
		return "IDLE"
	case ADCStateConverting:
		return "CONVERTING"
	case ADCStateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// AdcSampler drives chip select of an ADCS7476-style converter and shifts
// its serial data in MSB first. All outputs are registered: they change on
// Tick and hold until the next Tick.
type AdcSampler struct {
	protocol ADCProtocol
	state    ADCState
	phase    uint8  // Bits shifted in the current frame
	shift    uint16 // Shifts on every tick regardless of phase
	sample   Sample
	valid    bool
	nCS      bool

	conversions uint64
}

// NewAdcSampler returns a sampler in IDLE with chip select released
func NewAdcSampler(protocol ADCProtocol) *AdcSampler {
	return &AdcSampler{
		protocol: protocol,
		nCS:      true,
	}
}

// Protocol returns the chip-select variant
func (a *AdcSampler) Protocol() ADCProtocol { return a.protocol }

// State returns the current state
func (a *AdcSampler) State() ADCState { return a.state }

// Phase returns the number of bits shifted in the current frame
func (a *AdcSampler) Phase() uint8 { return a.phase }

// NCS returns the chip select output (active low)
func (a *AdcSampler) NCS() bool { return a.nCS }

// Valid is high for exactly one cycle after each conversion
func (a *AdcSampler) Valid() bool { return a.valid }

// Sample returns the last latched conversion
func (a *AdcSampler) Sample() Sample { return a.sample }

// Conversions returns the number of completed conversions
func (a *AdcSampler) Conversions() uint64 { return a.conversions }

// Tick advances the sampler by one clock edge. convert and sdata are the
// levels seen during the cycle that just ended.
func (a *AdcSampler) Tick(convert, sdata bool) {
	a.valid = false
	a.shift <<= 1
	if sdata {
		a.shift |= 1
	}

	switch a.state {
	case ADCStateIdle:
		if convert || a.protocol == ADCFreeRun {
			a.begin()
		}

	case ADCStateConverting:
		a.phase++
		if a.phase < ADCFrameBits {
			return
		}
		a.latch()
		if a.protocol == ADCFreeRun {
			a.phase = 0
			return
		}
		a.state = ADCStateDone
		a.nCS = true

	case ADCStateDone:
		if convert {
			a.begin()
		} else {
			a.state = ADCStateIdle
		}
	}
}

func (a *AdcSampler) begin() {
	a.state = ADCStateConverting
	a.phase = 0
	a.nCS = false
}

// latch keeps the 12 bits that follow the device's leading zeros
func (a *AdcSampler) latch() {
	a.sample = Sample(a.shift) & SampleMask
	a.valid = true
	a.conversions++
}
