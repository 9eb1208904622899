//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

	bootUptime uint64
)

// InitClock records the boot time of the 1MHz hardware timer
func InitClock() {
	bootUptime = GetHardwareUptime()
}

// GetHardwareUptime reads the full 64-bit microsecond timer
func GetHardwareUptime() uint64 {
	// High, low, high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UptimeMicros returns microseconds since InitClock
func UptimeMicros() uint64 {
	return GetHardwareUptime() - bootUptime
}
