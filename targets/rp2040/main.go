//go:build rp2040

package main

import (
	"time"

	"machine"

	"ccdline/core"
	"ccdline/protocol"
)

const (
	stepBatch  = 512
	linkBaud   = 115200
	statusSecs = 5
)

var (
	// Buffers for the USB console
	inputBuffer  *protocol.ByteFifo
	outputBuffer *protocol.ScratchOutput

	sys      *core.System
	exposure *PIOExposure

	dumpWanted bool
	stalls     uint32
	msgerrors  uint32
)

func main() {
	// Disable any watchdog left over from the previous boot
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitClock()

	adc, err := NewSPIADC(adcBus)
	if err != nil {
		fatal("adc: " + err.Error())
	}
	exposure, err = NewPIOExposure(0, 0, siPin)
	if err != nil {
		fatal("exposure: " + err.Error())
	}

	link := machine.UART0
	if err := link.Configure(machine.UARTConfig{BaudRate: linkBaud, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN}); err != nil {
		fatal("link: " + err.Error())
	}

	cfg := core.DefaultConfig()
	cfg.Policy = core.PolicyDouble
	cfg.WatchdogCycles = 1 << 20
	sys, err = core.NewSystem(cfg, adc, core.NewWriterSink(link),
		core.WithExposure(exposure),
		core.OnLineComplete(func(uint64) { dumpWanted = true }),
		core.OnStall(func(cycle, waited uint64) { stalls++ }),
	)
	if err != nil {
		fatal("system: " + err.Error())
	}
	// Scan back to back; each completed line is dumped while the next integrates
	sys.SetScanTrigger(true)

	inputBuffer = protocol.NewByteFifo(256)
	outputBuffer = protocol.NewScratchOutput(1024)

	go usbReaderLoop()

	nextStatus := GetHardwareUptime() + statusSecs*1000000
	for {
		// Recover from panics in the main loop to keep the line streaming
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			for i := 0; i < stepBatch; i++ {
				sys.Step()
			}
			if dumpWanted {
				dumpWanted = false
				sys.TriggerDump()
			}

			processConsole()

			if now := GetHardwareUptime(); now >= nextStatus {
				nextStatus = now + statusSecs*1000000
				reportStatus()
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
		}()

		// Yield to the USB reader
		time.Sleep(10 * time.Microsecond)
	}
}

// fatal reports err on the console forever
func fatal(msg string) {
	for {
		USBWriteBytes([]byte("fatal: " + msg + "\r\n"))
		time.Sleep(time.Second)
	}
}

// usbReaderLoop moves console bytes into inputBuffer
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(time.Millisecond)
				continue
			}
			if inputBuffer.Write([]byte{data}) == 0 {
				// Full without a newline: drop the garbage
				msgerrors++
				inputBuffer.Reset()
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB drains outputBuffer, dropping it after a failed write
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			msgerrors++
			break
		}
		written += n
	}
	outputBuffer.Reset()
}
