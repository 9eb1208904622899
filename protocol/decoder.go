package protocol

import "bytes"

// DecoderStats counts stream anomalies seen by a LineDecoder
type DecoderStats struct {
	Lines     uint64
	Skipped   uint64 // Bytes discarded while searching for sync
	CRCErrors uint64 // Candidate frames rejected by the CRC trailer
}

// LineDecoder recovers lines from a byte stream. It reads until the sync
// byte and takes the following line bytes. Raw frames cannot tell a sync
// byte inside the data from a real one, so only crc framing recovers from
// a misaligned start.
type LineDecoder struct {
	format Format
	fifo   *ByteFifo
	stats  DecoderStats
}

// NewLineDecoder creates a decoder buffering up to four frames
func NewLineDecoder(f Format) (*LineDecoder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &LineDecoder{
		format: f,
		fifo:   NewFrameFifo(f, 4),
	}, nil
}

// Format returns the frame format
func (d *LineDecoder) Format() Format { return d.format }

// Stats returns the decoder counters
func (d *LineDecoder) Stats() DecoderStats { return d.stats }

// Feed buffers data and calls emit for every complete line
func (d *LineDecoder) Feed(data []byte, emit func(words []uint32)) {
	for len(data) > 0 {
		n := d.fifo.Write(data)
		data = data[n:]
		d.drain(emit)
		if n == 0 && d.fifo.Free() == 0 {
			// A full FIFO without a frame is noise
			d.stats.Skipped += uint64(d.fifo.Available())
			d.fifo.Reset()
		}
	}
}

// Reset drops buffered bytes
func (d *LineDecoder) Reset() {
	d.fifo.Reset()
}

func (d *LineDecoder) drain(emit func(words []uint32)) {
	for {
		words, ok := d.next(d.fifo)
		if !ok {
			return
		}
		emit(words)
	}
}

// Decode extracts every complete line from a captured stream
func (d *LineDecoder) Decode(data []byte) [][]uint32 {
	var lines [][]uint32
	in := &sliceInput{data: data}
	for {
		words, ok := d.next(in)
		if !ok {
			d.stats.Skipped += uint64(in.Available())
			return lines
		}
		lines = append(lines, words)
	}
}

func (d *LineDecoder) next(in InputBuffer) ([]uint32, bool) {
	for {
		data := in.Data()
		idx := bytes.IndexByte(data, d.format.SyncByte)
		if idx < 0 {
			d.stats.Skipped += uint64(len(data))
			in.Pop(len(data))
			return nil, false
		}
		if idx > 0 {
			d.stats.Skipped += uint64(idx)
			in.Pop(idx)
			continue
		}

		frameLen := d.format.FrameLen()
		if len(data) < frameLen {
			return nil, false
		}
		payload := data[FrameHeader : FrameHeader+d.format.PayloadLen()]
		if d.format.CRC {
			want := uint16(data[frameLen-2])<<8 | uint16(data[frameLen-1])
			if CRC16(payload) != want {
				// False sync, look for the next one
				d.stats.CRCErrors++
				d.stats.Skipped++
				in.Pop(1)
				continue
			}
		}
		words := decodeWords(payload, d.format.ByteWidth)
		in.Pop(frameLen)
		d.stats.Lines++
		return words, true
	}
}
