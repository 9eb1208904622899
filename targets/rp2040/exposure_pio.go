//go:build rp2040

package main

// PIO driver for the sensor's SI and CLK inputs. The core decides both levels
// every cycle; the state machine only moves them to the pins.

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// SI on siPin, CLK on siPin+1
const siPin = machine.GPIO14

// buildExposureProgram pulls a word and shifts its low two bits onto the pins
func buildExposureProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestPins, 2).Encode(), // 1: out pins, 2 (SI, CLK)
		// .wrap
	}
}

const exposurePIOOrigin = 0

// ErrStateMachineClaimed is returned when another driver owns the state machine
var ErrStateMachineClaimed = errors.New("pio state machine already claimed")

// PIOExposure implements core.Exposure on a PIO state machine
type PIOExposure struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	offset uint8
	last   uint32
	writes uint32
}

// NewPIOExposure claims state machine smNum of PIO pioNum and drives pin and pin+1
func NewPIOExposure(pioNum, smNum uint8, pin machine.Pin) (*PIOExposure, error) {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	e := &PIOExposure{pio: pioHW, sm: pioHW.StateMachine(smNum)}

	// Claim the state machine before loading the program
	if !e.sm.TryClaim() {
		return nil, ErrStateMachineClaimed
	}

	program := buildExposureProgram()
	offset, err := e.pio.AddProgram(program, exposurePIOOrigin)
	if err != nil {
		return nil, err
	}
	e.offset = offset

	pin.Configure(machine.PinConfig{Mode: e.pio.PinMode()})
	(pin + 1).Configure(machine.PinConfig{Mode: e.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(pin, 2)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	// Pin directions only take effect after Init
	e.sm.Init(offset, cfg)
	e.sm.SetPindirsConsecutive(pin, 2, true)
	e.sm.SetPinsConsecutive(pin, 2, false)
	e.sm.SetEnabled(true)
	return e, nil
}

// Tick queues the new pin levels when they change
func (e *PIOExposure) Tick(start, clock bool) {
	var v uint32
	if start {
		v |= 1
	}
	if clock {
		v |= 2
	}
	if v == e.last {
		return
	}
	e.last = v
	for e.sm.IsTxFIFOFull() {
	}
	e.sm.TxPut(v)
	e.writes++
}

// Stop parks both pins low
func (e *PIOExposure) Stop() {
	e.sm.SetEnabled(false)
	e.sm.ClearFIFOs()
	e.sm.Restart()
	e.last = 0
	e.sm.SetEnabled(true)
	e.sm.TxPut(0)
}
