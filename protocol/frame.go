package protocol

import (
	"errors"
	"fmt"
)

// Frame errors
var (
	ErrInvalidFormat = errors.New("invalid frame format")
	ErrShortLine     = errors.New("line shorter than frame depth")
)

// Validate checks the frame geometry
func (f Format) Validate() error {
	if f.Depth <= 0 {
		return fmt.Errorf("%w: depth %d", ErrInvalidFormat, f.Depth)
	}
	if f.ByteWidth < 1 || f.ByteWidth > 4 {
		return fmt.Errorf("%w: byte width %d", ErrInvalidFormat, f.ByteWidth)
	}
	return nil
}

// EncodeFrame writes one line as a frame. It produces the same bytes a
// FrameDumper sends for the line.
func EncodeFrame(out OutputBuffer, f Format, words []uint32) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if len(words) < f.Depth {
		return fmt.Errorf("%w: %d < %d", ErrShortLine, len(words), f.Depth)
	}

	out.Output([]byte{f.SyncByte})

	crc := uint16(CRC16Init)
	var word [4]byte
	for _, w := range words[:f.Depth] {
		for i := 0; i < f.ByteWidth; i++ {
			word[i] = byte(w >> (8 * (f.ByteWidth - 1 - i)))
			crc = CRC16Update(crc, word[i])
		}
		out.Output(word[:f.ByteWidth])
	}

	if f.CRC {
		out.Output([]byte{byte(crc >> 8), byte(crc)})
	}
	return nil
}

// decodeWords converts a frame payload to words
func decodeWords(payload []byte, byteWidth int) []uint32 {
	words := make([]uint32, len(payload)/byteWidth)
	for i := range words {
		var w uint32
		for _, b := range payload[i*byteWidth : (i+1)*byteWidth] {
			w = w<<8 | uint32(b)
		}
		words[i] = w
	}
	return words
}
