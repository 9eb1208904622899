package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ccdline/host/capture"
	"ccdline/host/linestore"
	"ccdline/host/serial"
)

// CaptureAction decodes lines from a device or recording into the line store
func CaptureAction(c *cli.Context) (err error) {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	log := newLogger(c.App.Name, settings.LogLevel)

	var (
		src       io.ReadCloser
		stopOnEOF bool
	)
	if path := c.String(flagFile); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		src, stopOnEOF = f, true
	} else {
		if settings.Link.Device == "" {
			return fmt.Errorf("no link: set --%s or --%s", flagDevice, flagFile)
		}
		cfg := serial.DefaultConfig(settings.Link.Device)
		cfg.Baud = settings.Link.Baud
		cfg.ReadTimeout = settings.Link.ReadTimeout
		port, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		src = port
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	store, err := linestore.Open(settings.Store)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	capt, err := capture.New(src, settings.Format(), capture.Options{
		Logger:    log,
		StopOnEOF: stopOnEOF,
		Session:   c.String(flagSession),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	maxLines := c.Uint64(flagLines)
	log.Info().Str("session", capt.Session()).Str("store", settings.Store).Int("frame_len", settings.Format().FrameLen()).Msg("capturing")
	err = capt.Run(ctx, func(line capture.Line) error {
		if err := store.Record(ctx, line); err != nil {
			return err
		}
		if maxLines > 0 && line.Seq >= maxLines {
			cancel()
		}
		return nil
	})
	if ctx.Err() != nil {
		err = nil
	}

	st := capt.Stats()
	log.Info().
		Uint64("bytes", st.BytesRead).
		Uint64("lines", st.Lines).
		Uint64("skipped", st.Decoder.Skipped).
		Uint64("crc_errors", st.Decoder.CRCErrors).
		Msg("capture finished")
	return err
}

// LinesAction prints the most recent stored lines
func LinesAction(c *cli.Context) (err error) {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	store, err := linestore.Open(settings.Store)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	lines, err := store.Recent(c.Context, c.Int(flagCount))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, linesTable(lines))
	return err
}

// linesTable renders one row per line with its sample statistics
func linesTable(lines []capture.Line) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Session", "Seq", "Received", "Pixels", "Min", "Max", "Mean", "StdDev"})
	for _, l := range lines {
		s := summarize(l.Words)
		t.AppendRow(table.Row{
			shortSession(l.Session),
			l.Seq,
			l.Received.Format("15:04:05.000"),
			len(l.Words),
			fmt.Sprintf("%.0f", s.min),
			fmt.Sprintf("%.0f", s.max),
			fmt.Sprintf("%.1f", s.mean),
			fmt.Sprintf("%.1f", s.stddev),
		})
	}
	return t.Render()
}

type lineSummary struct {
	min, max, mean, stddev float64
}

func summarize(words []uint32) lineSummary {
	if len(words) == 0 {
		return lineSummary{}
	}
	x := make([]float64, len(words))
	for i, v := range words {
		x[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(x, nil)
	if len(x) < 2 {
		std = 0
	}
	return lineSummary{min: floats.Min(x), max: floats.Max(x), mean: mean, stddev: std}
}

func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
