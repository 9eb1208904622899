package uart

// Receiver samples an RX line in the middle of each bit period and
// delivers complete bytes. A missing stop bit counts as a framing error
// and the byte is discarded.
type Receiver struct {
	baud strobe

	active bool
	bit    int
	shift  byte
	onByte func(byte)
	errors uint64
	bytes  uint64
}

// NewReceiver returns a receiver calling onByte for every byte
func NewReceiver(tuning uint32, onByte func(byte)) *Receiver {
	return &Receiver{baud: strobe{tuning: tuning}, onByte: onByte}
}

// FramingErrors returns the number of frames without a stop bit
func (r *Receiver) FramingErrors() uint64 { return r.errors }

// Bytes returns the number of bytes received
func (r *Receiver) Bytes() uint64 { return r.bytes }

// Tick samples rx for one clock cycle
func (r *Receiver) Tick(rx bool) {
	if !r.active {
		if !rx {
			// Start edge: first strobe lands half a bit later
			r.active = true
			r.bit = 0
			r.shift = 0
			r.baud.phase = 1 << 31
		}
		return
	}

	if !r.baud.tick() {
		return
	}
	switch {
	case r.bit == 0:
		if rx {
			// Glitch, not a start bit
			r.active = false
			return
		}
	case r.bit <= 8:
		r.shift >>= 1
		if rx {
			r.shift |= 0x80
		}
	default:
		r.active = false
		if !rx {
			r.errors++
			return
		}
		r.bytes++
		if r.onByte != nil {
			r.onByte(r.shift)
		}
		return
	}
	r.bit++
}
