package core

import (
	"fmt"
	"math"
	"time"
)

// DefaultClockHz is the clock the acquisition core is expected to run on
const DefaultClockHz = 20000000

// TauFromDuration converts an integration period to clock cycles
func TauFromDuration(d time.Duration, clockHz float64) (uint32, error) {
	if clockHz <= 0 {
		return 0, fmt.Errorf("%w: clock must be positive, got %g Hz", ErrInvalidConfig, clockHz)
	}
	cycles := math.Round(d.Seconds() * clockHz)
	if cycles < 1 || cycles > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s is %g cycles at %g Hz", ErrInvalidConfig, d, cycles, clockHz)
	}
	return uint32(cycles), nil
}

// TauFromMillis converts milliseconds to clock cycles (cycles = ms*1e-3*fclk)
func TauFromMillis(ms float64, clockHz float64) (uint32, error) {
	return TauFromDuration(time.Duration(ms*float64(time.Millisecond)), clockHz)
}

// CyclesToDuration converts clock cycles to wall time
func CyclesToDuration(cycles uint64, clockHz float64) time.Duration {
	if clockHz <= 0 {
		return 0
	}
	return time.Duration(float64(cycles) / clockHz * float64(time.Second))
}
