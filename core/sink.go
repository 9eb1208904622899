package core

import "io"

// WriterSink forwards every accepted byte to an io.Writer. It is ready until
// the first write error, after which the dumper stalls in WAIT.
type WriterSink struct {
	w   io.Writer
	buf [1]byte
	n   uint64
	err error
}

// NewWriterSink returns a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Ready reports whether the sink accepts a byte this cycle
func (s *WriterSink) Ready() bool { return s.err == nil }

// Tick accepts data when valid is high
func (s *WriterSink) Tick(valid bool, data byte) {
	if !valid || s.err != nil {
		return
	}
	s.buf[0] = data
	if _, err := s.w.Write(s.buf[:]); err != nil {
		s.err = err
		return
	}
	s.n++
}

// Written returns the number of bytes forwarded
func (s *WriterSink) Written() uint64 { return s.n }

// Err returns the write error that stopped the sink
func (s *WriterSink) Err() error { return s.err }
