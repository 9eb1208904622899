package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"ccdline/config"
	"ccdline/core"
	"ccdline/host/pacer"
	"ccdline/host/serial"
	"ccdline/sensor"
	"ccdline/uart"
)

const (
	stepBatch      = 1 << 16
	paceInterval   = 10 * time.Millisecond
	statusInterval = 5 * time.Second
)

// bench is everything a simulation run owns and must release
type bench struct {
	settings config.Settings
	log      zerolog.Logger

	out    io.Writer
	flush  func() error
	closer []io.Closer

	device   core.SerialDevice
	exposure core.Exposure
	sink     core.ByteSink
	tx       *uart.Transmitter
	spi      *sensor.PeriphSource
}

func (b *bench) Close() error {
	var err error
	if b.flush != nil {
		err = multierr.Append(err, b.flush())
	}
	for i := len(b.closer) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closer[i].Close())
	}
	return err
}

// openOutput picks the frame destination: --out file, stdout, or the serial device
func (b *bench) openOutput(path string) error {
	switch {
	case path == "-":
		b.out = os.Stdout
	case path != "":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		b.out = f
		b.closer = append(b.closer, f)
	case b.settings.Link.Device != "":
		cfg := serial.DefaultConfig(b.settings.Link.Device)
		cfg.Baud = b.settings.Link.Baud
		cfg.ReadTimeout = b.settings.Link.ReadTimeout
		port, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		b.out = port
		b.closer = append(b.closer, port)
	default:
		return fmt.Errorf("no frame output: set --%s or --%s", flagOut, flagDevice)
	}

	w := bufio.NewWriter(b.out)
	b.out = w
	b.flush = w.Flush
	return nil
}

func (b *bench) openSensor() error {
	s := b.settings
	switch s.Sensor.Source {
	case config.SourceModel:
		irradiance, err := sensor.Pattern(s.Sensor.Pattern, s.Core.Pixels, s.Sensor.Peak)
		if err != nil {
			return err
		}
		tsl := sensor.NewTSL1401(irradiance)
		b.exposure = tsl
		b.device = sensor.NewADCS7476(tsl.Level)
	case config.SourceSPI:
		src, err := sensor.OpenSPI(s.Sensor.SPI)
		if err != nil {
			return err
		}
		b.spi = src
		b.device = src
		b.closer = append(b.closer, src)
	default:
		return fmt.Errorf("unknown sensor source %q", s.Sensor.Source)
	}
	return nil
}

func (b *bench) openSink() error {
	switch b.settings.Link.Sink {
	case config.SinkUART:
		tuning, err := uart.TuningWord(float64(b.settings.Link.Baud), b.settings.ClockHz)
		if err != nil {
			return err
		}
		b.tx = uart.NewTransmitter(tuning, b.out)
		b.sink = b.tx
	case config.SinkWriter:
		b.sink = core.NewWriterSink(b.out)
	default:
		return fmt.Errorf("unknown sink %q", b.settings.Link.Sink)
	}
	return nil
}

// parseRegWrite splits name=value; value accepts 0x and 0b prefixes
func parseRegWrite(s string) (string, uint32, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", 0, fmt.Errorf("register write %q: want name=value", s)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
	if err != nil {
		return "", 0, fmt.Errorf("register write %q: %w", s, err)
	}
	return strings.TrimSpace(name), uint32(v), nil
}

// SimulateAction runs the acquisition core and streams its frames
func SimulateAction(c *cli.Context) (err error) {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	log := newLogger(c.App.Name, settings.LogLevel)

	b := &bench{settings: settings, log: log}
	defer func() {
		err = multierr.Append(err, b.Close())
	}()
	if err := b.openOutput(c.String(flagOut)); err != nil {
		return err
	}
	if err := b.openSensor(); err != nil {
		return err
	}
	if err := b.openSink(); err != nil {
		return err
	}

	var (
		dumpWanted atomic.Bool
		lines      atomic.Uint64
		stop       = make(chan struct{})
		stopped    atomic.Bool
		maxLines   = c.Uint64(flagLines)
	)
	opts := []core.Option{
		core.WithLogger(log),
		core.OnLineComplete(func(gen uint64) {
			if every := settings.Schedule.DumpEvery; every > 0 && gen%every == 0 {
				dumpWanted.Store(true)
			}
		}),
		core.OnDumpDone(func(r core.DumpReport) {
			if b.flush != nil {
				if err := b.flush(); err != nil {
					log.Error().Err(err).Msg("flush frame")
				}
			}
			log.Debug().Uint64("generation", r.Generation).Bool("torn", r.Torn).Uint64("bytes", r.Bytes).Msg("line dumped")
			if n := lines.Add(1); maxLines > 0 && n >= maxLines && stopped.CompareAndSwap(false, true) {
				close(stop)
			}
		}),
		core.OnStall(func(cycle, waited uint64) {
			log.Warn().Uint64("cycle", cycle).Uint64("waited", waited).Msg("link stalled")
		}),
	}
	if b.exposure != nil {
		opts = append(opts, core.WithExposure(b.exposure))
	}

	sys, err := core.NewSystem(settings.Core, b.device, b.sink, opts...)
	if err != nil {
		return err
	}
	if b.tx != nil {
		sys.Registers().Register("tuning_word", 32, b.tx.TuningWord, b.tx.SetTuningWord)
	}
	for _, w := range c.StringSlice(flagReg) {
		name, v, err := parseRegWrite(w)
		if err != nil {
			return err
		}
		if err := sys.WriteRegister(name, v); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		log.Debug().Str("register", name).Uint32("value", v).Msg("register write")
	}
	sys.ScheduleScans(0, settings.Schedule.ScanPeriod)

	log.Info().
		Str("source", settings.Sensor.Source).
		Str("sink", settings.Link.Sink).
		Stringer("policy", settings.Core.Policy).
		Stringer("framing", settings.Core.Framing).
		Uint32("tau", settings.Core.Tau).
		Dur("integration", core.CyclesToDuration(uint64(settings.Core.Tau), settings.ClockHz)).
		Msg("starting simulation")

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	limit := c.Uint64(flagCycles)
	step := func(ctx context.Context, n uint64) (uint64, error) {
		start := sys.Status().Cycle
		if limit > 0 {
			left := limit - start
			if left == 0 {
				return 0, errLimit
			}
			n = min(n, left)
		}
		if err := sys.Run(ctx, n); err != nil {
			return sys.Status().Cycle - start, err
		}
		if dumpWanted.Swap(false) {
			sys.TriggerDump()
		}
		select {
		case <-stop:
			return n, errLimit
		default:
		}
		return n, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	clk := clock.New()
	g.Go(func() error {
		defer cancel()
		var err error
		if c.Bool(flagRealtime) {
			err = pacer.New(clk, settings.ClockHz, paceInterval).Run(gctx, step)
		} else {
			for err == nil {
				_, err = step(gctx, stepBatch)
			}
		}
		if errors.Is(err, errLimit) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := clk.Ticker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logStatus(log.Info(), sys.Status())
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st := sys.Status()
	logStatus(log.Info(), st)
	if b.spi != nil {
		transfers, failed, lastErr := b.spi.Stats()
		log.Info().Uint64("transfers", transfers).Uint64("failed", failed).AnErr("last_error", lastErr).Msg("spi")
	}
	if c.Bool(flagTrace) {
		sys.Trace().Dump(log)
	}
	if b.tx != nil && b.tx.TapErr() != nil {
		return fmt.Errorf("link write: %w", b.tx.TapErr())
	}
	if ws, ok := b.sink.(*core.WriterSink); ok && ws.Err() != nil {
		return fmt.Errorf("link write: %w", ws.Err())
	}
	return nil
}

func logStatus(e *zerolog.Event, st core.Status) {
	e.Uint64("cycle", st.Cycle).
		Uint64("scans", st.Scans).
		Uint64("dumps", st.Dumps).
		Uint64("bytes", st.BytesSent).
		Uint64("generation", st.Generation).
		Uint64("torn", st.Line.Torn).
		Uint64("dropped", st.Line.Dropped).
		Uint64("stalls", st.Stalls).
		Msg("status")
}
