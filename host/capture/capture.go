// Package capture reads frames from the sensor link and hands decoded lines
// to a handler
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ccdline/protocol"
)

// Line is one decoded scan line
type Line struct {
	Session  string // Capture run the line belongs to
	Seq      uint64
	Received time.Time
	Words    []uint32
}

// Handler consumes decoded lines. Returning an error stops the capture.
type Handler func(Line) error

// Options tune a Capture
type Options struct {
	Clock     clock.Clock    // Timestamps lines; defaults to the wall clock
	Logger    zerolog.Logger // Defaults to a no-op logger
	ChunkSize int            // Read size, defaults to 512
	StopOnEOF bool           // Treat io.EOF as the end of a recorded stream instead of a read timeout
	Session   string         // Tags every line; a random UUID when empty
}

// Stats counts capture progress
type Stats struct {
	BytesRead uint64
	Lines     uint64
	Decoder   protocol.DecoderStats
}

// Capture decodes lines from a reader
type Capture struct {
	r     io.Reader
	dec   *protocol.LineDecoder
	opts  Options
	log   zerolog.Logger
	seq   uint64
	bytes uint64
}

// New creates a capture reading frames of format f from r
func New(r io.Reader, f protocol.Format, opts Options) (*Capture, error) {
	dec, err := protocol.NewLineDecoder(f)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 512
	}
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}
	return &Capture{
		r:    r,
		dec:  dec,
		opts: opts,
		log:  opts.Logger.With().Str("component", "capture").Str("session", opts.Session).Logger(),
	}, nil
}

// Session returns the tag stamped on every line
func (c *Capture) Session() string { return c.opts.Session }

// Stats returns the capture counters
func (c *Capture) Stats() Stats {
	return Stats{BytesRead: c.bytes, Lines: c.seq, Decoder: c.dec.Stats()}
}

type chunk struct {
	data []byte
	err  error
}

// Run reads until ctx is done, the reader fails or the handler returns an
// error. The reader goroutine exits once the underlying reader returns, so
// callers close the port after Run to release it.
func (c *Capture) Run(ctx context.Context, handle Handler) error {
	chunks := make(chan chunk, 4)
	done := make(chan struct{})
	defer close(done)

	go c.readLoop(chunks, done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch := <-chunks:
			if len(ch.data) > 0 {
				if err := c.feed(ch.data, handle); err != nil {
					return err
				}
			}
			if ch.err == nil {
				continue
			}
			if errors.Is(ch.err, io.EOF) {
				if c.opts.StopOnEOF {
					c.log.Debug().Uint64("lines", c.seq).Msg("end of stream")
					return nil
				}
				continue
			}
			return fmt.Errorf("read link: %w", ch.err)
		}
	}
}

func (c *Capture) readLoop(chunks chan<- chunk, done <-chan struct{}) {
	buf := make([]byte, c.opts.ChunkSize)
	for {
		n, err := c.r.Read(buf)
		ch := chunk{err: err}
		if n > 0 {
			ch.data = append([]byte(nil), buf[:n]...)
		}
		if n > 0 || err != nil {
			select {
			case chunks <- ch:
			case <-done:
				return
			}
		}
		if err != nil && (c.opts.StopOnEOF || !errors.Is(err, io.EOF)) {
			return
		}
	}
}

func (c *Capture) feed(data []byte, handle Handler) error {
	c.bytes += uint64(len(data))
	var handlerErr error
	c.dec.Feed(data, func(words []uint32) {
		if handlerErr != nil {
			return
		}
		c.seq++
		line := Line{Session: c.opts.Session, Seq: c.seq, Received: c.opts.Clock.Now(), Words: words}
		c.log.Debug().Uint64("seq", line.Seq).Int("pixels", len(words)).Msg("line received")
		handlerErr = handle(line)
	})
	return handlerErr
}
