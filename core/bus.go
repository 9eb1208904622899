package core

// SerialDevice is the converter side of the 3-wire sensor bus.
// SCLK is the system clock, so one Tick is one serial clock edge.
type SerialDevice interface {
	// SDATA returns the data line as driven during the current cycle.
	// An idle (chip select high) device reads as low.
	SDATA() bool

	// Tick advances the device by one clock edge. nCS is the chip select
	// level the sampler drives from this edge on; a falling edge starts a
	// new frame.
	Tick(nCS bool)
}

// Exposure is the optical side of the sensor: the start (SI) pulse and the
// device clock that steps the analog output to the next pixel.
type Exposure interface {
	Tick(start, clock bool)
}

// ByteSink is the serial transmitter the FrameDumper streams into.
// A byte transfers on a tick where the dumper's valid and Ready are both high.
type ByteSink interface {
	Ready() bool
	Tick(valid bool, data byte)
}
