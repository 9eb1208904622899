package protocol

// InputBuffer is a window over received bytes that a decoder consumes from
// the front
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer receives encoded frame bytes
type OutputBuffer interface {
	Output(data []byte)
}

// sliceInput is a captured stream decoded in one pass
type sliceInput struct {
	data []byte
}

func (s *sliceInput) Data() []byte   { return s.data }
func (s *sliceInput) Available() int { return len(s.data) }
func (s *sliceInput) Pop(n int)      { s.data = s.data[min(n, len(s.data)):] }

// ScratchOutput collects output in a fixed buffer. Bytes beyond the
// capacity are counted and dropped.
type ScratchOutput struct {
	buf     []byte
	n       int
	dropped int
}

// NewScratchOutput creates a ScratchOutput holding up to capacity bytes
func NewScratchOutput(capacity int) *ScratchOutput {
	return &ScratchOutput{buf: make([]byte, capacity)}
}

// NewFrameOutput sizes a ScratchOutput for frames of f
func NewFrameOutput(f Format, frames int) *ScratchOutput {
	return NewScratchOutput(frames * f.FrameLen())
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.n:], data)
	s.n += n
	s.dropped += len(data) - n
}

// Len returns the number of buffered bytes
func (s *ScratchOutput) Len() int { return s.n }

// Dropped returns the bytes lost to a full buffer since the last Reset
func (s *ScratchOutput) Dropped() int { return s.dropped }

// Result returns the buffered bytes
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.n]
}

// Reset empties the buffer
func (s *ScratchOutput) Reset() {
	s.n = 0
	s.dropped = 0
}

// ByteFifo queues stream bytes until a whole frame can be taken. Consumed
// bytes are reclaimed by sliding the remainder to the front on the next
// Write that needs the room, so Data is always contiguous and never copies.
type ByteFifo struct {
	buf         []byte
	read, write int
}

// NewByteFifo creates a FIFO holding up to capacity bytes
func NewByteFifo(capacity int) *ByteFifo {
	return &ByteFifo{buf: make([]byte, capacity)}
}

// NewFrameFifo creates a FIFO holding frames whole frames of f
func NewFrameFifo(f Format, frames int) *ByteFifo {
	return NewByteFifo(frames * f.FrameLen())
}

// Write appends as much of data as fits and returns the count
func (f *ByteFifo) Write(data []byte) int {
	if f.read > 0 && len(data) > len(f.buf)-f.write {
		f.write = copy(f.buf, f.buf[f.read:f.write])
		f.read = 0
	}
	n := copy(f.buf[f.write:], data)
	f.write += n
	return n
}

// Available returns the number of queued bytes
func (f *ByteFifo) Available() int { return f.write - f.read }

// Free returns the number of bytes Write can still accept
func (f *ByteFifo) Free() int { return len(f.buf) - f.Available() }

// Data returns the queued bytes. The slice is valid until the next Write.
func (f *ByteFifo) Data() []byte { return f.buf[f.read:f.write] }

// Pop drops n bytes from the front
func (f *ByteFifo) Pop(n int) {
	f.read += min(n, f.Available())
	if f.read == f.write {
		f.read, f.write = 0, 0
	}
}

// Reset empties the FIFO
func (f *ByteFifo) Reset() {
	f.read, f.write = 0, 0
}
