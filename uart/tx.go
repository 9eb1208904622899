package uart

import "io"

// Transmitter is a byte sink that serialises each accepted byte onto TX:
// a low start bit, eight data bits LSB first and a high stop bit. It is
// ready whenever no frame is in progress.
type Transmitter struct {
	baud strobe

	busy   bool
	cur    byte
	shift  byte
	bit    int // Bit periods completed in the current frame
	tx     bool
	tap    io.Writer
	tapErr error
	sent   uint64
}

// NewTransmitter returns an idle transmitter. Completed bytes are copied to
// tap when it is not nil.
func NewTransmitter(tuning uint32, tap io.Writer) *Transmitter {
	return &Transmitter{baud: strobe{tuning: tuning}, tx: true, tap: tap}
}

// TuningWord returns the baud generator increment
func (t *Transmitter) TuningWord() uint32 { return t.baud.tuning }

// SetTuningWord changes the bit rate from the next frame on
func (t *Transmitter) SetTuningWord(w uint32) error {
	t.baud.tuning = w
	return nil
}

// Ready reports whether a byte can be accepted this cycle
func (t *Transmitter) Ready() bool { return !t.busy }

// TX is the serial output line, high when idle
func (t *Transmitter) TX() bool { return t.tx }

// Sent returns the number of completed frames
func (t *Transmitter) Sent() uint64 { return t.sent }

// TapErr returns the first error writing to the tap
func (t *Transmitter) TapErr() error { return t.tapErr }

// Tick advances one clock cycle
func (t *Transmitter) Tick(valid bool, data byte) {
	if !t.busy {
		if valid {
			t.busy = true
			t.cur = data
			t.shift = data
			t.bit = 0
			t.tx = false
			t.baud.phase = 0
		}
		return
	}

	if !t.baud.tick() {
		return
	}
	t.bit++
	switch {
	case t.bit <= 8:
		t.tx = t.shift&1 == 1
		t.shift >>= 1
	case t.bit == 9:
		t.tx = true
	default:
		t.busy = false
		t.sent++
		if t.tap != nil && t.tapErr == nil {
			_, t.tapErr = t.tap.Write([]byte{t.cur})
		}
	}
}
