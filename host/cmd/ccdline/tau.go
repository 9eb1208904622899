package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"ccdline/core"
)

// TauAction converts between an integration time and a tau register value
func TauAction(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	hz := settings.ClockHz
	if c.IsSet(flagClockHz) {
		hz = c.Float64(flagClockHz)
	}

	switch {
	case c.IsSet(flagMillis):
		tau, err := core.TauFromMillis(c.Float64(flagMillis), hz)
		if err != nil {
			return err
		}
		fmt.Printf("tau=%d (%s at %.0f Hz)\n", tau, core.CyclesToDuration(uint64(tau), hz), hz)
	case c.IsSet(flagCycles):
		cycles := c.Uint64(flagCycles)
		fmt.Printf("%d cycles = %s at %.0f Hz\n", cycles, core.CyclesToDuration(cycles, hz), hz)
	default:
		return fmt.Errorf("set --%s or --%s", flagMillis, flagCycles)
	}
	return nil
}

// RegsAction prints the register map of a system built from the settings
func RegsAction(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	sys, err := core.NewSystem(settings.Core, idleDevice{}, core.NewWriterSink(io.Discard))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, sys.Registers().CSV())
	return err
}

type idleDevice struct{}

func (idleDevice) SDATA() bool { return false }
func (idleDevice) Tick(bool)   {}
