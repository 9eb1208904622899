// Package uart models an RS232 PHY clocked from the acquisition core's
// clock domain. Bit timing comes from a 32-bit phase accumulator: the
// tuning word is added every cycle and each overflow is one bit period.
package uart

import (
	"fmt"
	"math"
)

// FrameBits is start + 8 data + stop
const FrameBits = 10

// TuningWord returns baud/clk * 2^32
func TuningWord(baud, clockHz float64) (uint32, error) {
	if baud <= 0 || clockHz <= 0 || baud >= clockHz {
		return 0, fmt.Errorf("uart: baud %g not reachable from a %g Hz clock", baud, clockHz)
	}
	return uint32(math.Round(baud / clockHz * (1 << 32))), nil
}

// Baud returns the bit rate a tuning word produces at clockHz
func Baud(tuning uint32, clockHz float64) float64 {
	return float64(tuning) / (1 << 32) * clockHz
}

// strobe advances the accumulator and reports an overflow
type strobe struct {
	tuning uint32
	phase  uint32
}

func (s *strobe) tick() bool {
	sum := uint64(s.phase) + uint64(s.tuning)
	s.phase = uint32(sum)
	return sum>>32 != 0
}
