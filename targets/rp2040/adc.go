//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers"

	"ccdline/sensor"
)

// spiBusConfig wires one SPI controller to the converter
type spiBusConfig struct {
	spi  *machine.SPI
	sck  machine.Pin
	sdo  machine.Pin
	sdi  machine.Pin
	cs   machine.Pin
	hz   uint32
	mode uint8
}

// ADCS7476 on SPI0; the converter clocks out on the falling edge (mode 3)
var adcBus = spiBusConfig{
	spi:  machine.SPI0,
	sck:  machine.GPIO18,
	sdo:  machine.GPIO19,
	sdi:  machine.GPIO16,
	cs:   machine.GPIO17,
	hz:   4000000,
	mode: 3,
}

// NewSPIADC configures the bus and returns the converter as a serial device
func NewSPIADC(bus spiBusConfig) (*sensor.SPISource, error) {
	err := bus.spi.Configure(machine.SPIConfig{
		Frequency: bus.hz,
		SCK:       bus.sck,
		SDO:       bus.sdo,
		SDI:       bus.sdi,
		Mode:      bus.mode,
	})
	if err != nil {
		return nil, err
	}
	bus.cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	var conn drivers.SPI = bus.spi
	return sensor.NewSPISource(sensor.NewSelectedBus(conn, bus.cs.Set)), nil
}
