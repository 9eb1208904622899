// Command ccdline runs the line-sensor acquisition core against a sensor
// model or SPI hardware and captures the lines it streams.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagDevice   = "device"
	flagOut      = "out"
	flagFile     = "file"
	flagStore    = "store"
	flagSession  = "session"
	flagCycles   = "cycles"
	flagLines    = "lines"
	flagRealtime = "realtime"
	flagReg      = "reg"
	flagTau      = "tau"
	flagPolicy   = "policy"
	flagFraming  = "framing"
	flagSource   = "source"
	flagTrace    = "trace"
	flagCount    = "n"
	flagMillis   = "ms"
	flagClockHz  = "clock-hz"
)

var app = &cli.App{
	Name:  "ccdline",
	Usage: "linear sensor acquisition core simulator and line capture",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  flagConfig,
			Usage: "TOML settings file",
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "log level (debug, info, warn, error)",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "simulate",
			Usage: "run the acquisition core and stream frames",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagOut,
					Usage: "write frames to this file ('-' for stdout) instead of the serial device",
				},
				&cli.StringFlag{
					Name:  flagDevice,
					Usage: "serial device to stream frames to",
				},
				&cli.StringFlag{
					Name:  flagSource,
					Usage: "sensor source: model or spi",
				},
				&cli.Uint64Flag{
					Name:  flagCycles,
					Usage: "stop after this many clock cycles (0 runs until interrupted)",
				},
				&cli.Uint64Flag{
					Name:  flagLines,
					Usage: "stop after this many dumped lines",
				},
				&cli.BoolFlag{
					Name:  flagRealtime,
					Usage: "pace the clock domain at clock_hz",
				},
				&cli.StringSliceFlag{
					Name:  flagReg,
					Usage: "register write name=value, applied before the first cycle",
				},
				&cli.Uint64Flag{
					Name:  flagTau,
					Usage: "integration period in cycles",
				},
				&cli.StringFlag{
					Name:  flagPolicy,
					Usage: "line buffer policy: shared or double",
				},
				&cli.StringFlag{
					Name:  flagFraming,
					Usage: "frame layout: raw or crc",
				},
				&cli.BoolFlag{
					Name:  flagTrace,
					Usage: "dump the event trace on exit",
				},
			},
			Action: SimulateAction,
		},
		{
			Name:  "capture",
			Usage: "decode lines from the serial link into the line store",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagDevice,
					Usage: "serial device to read",
				},
				&cli.StringFlag{
					Name:  flagFile,
					Usage: "decode a recorded stream instead of a device",
				},
				&cli.StringFlag{
					Name:  flagStore,
					Usage: "SQLite line store",
				},
				&cli.Uint64Flag{
					Name:  flagLines,
					Usage: "stop after this many lines",
				},
				&cli.StringFlag{
					Name:  flagSession,
					Usage: "tag stored lines with this session instead of a random UUID",
				},
			},
			Action: CaptureAction,
		},
		{
			Name:  "lines",
			Usage: "print the most recent stored lines",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagStore,
					Usage: "SQLite line store",
				},
				&cli.IntFlag{
					Name:  flagCount,
					Usage: "number of lines",
					Value: 10,
				},
			},
			Action: LinesAction,
		},
		{
			Name:      "tau",
			Usage:     "convert an integration period between milliseconds and cycles",
			UsageText: "ccdline tau [--ms 2.5 | --cycles 50000] [--clock-hz 20000000]",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  flagMillis,
					Usage: "period in milliseconds",
				},
				&cli.Uint64Flag{
					Name:  flagCycles,
					Usage: "period in cycles",
				},
				&cli.Float64Flag{
					Name:  flagClockHz,
					Usage: "clock frequency (defaults to the configured clock)",
				},
			},
			Action: TauAction,
		},
		{
			Name:   "regs",
			Usage:  "print the register map",
			Action: RegsAction,
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// errLimit ends a run that reached its --cycles or --lines bound
var errLimit = errors.New("run limit reached")
