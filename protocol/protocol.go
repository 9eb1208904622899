// Package protocol implements the line frame format: a sync byte followed by
// the line's words, most significant byte first, with an optional CRC16
// trailer.
package protocol

// Frame constants
const (
	DefaultSyncByte = 0x42
	FrameHeader     = 1 // Sync byte
	FrameTrailer    = 2 // CRC16, high byte first, crc framing only
)

// Format describes the frames a dumper produces
type Format struct {
	SyncByte  byte
	Depth     int  // Words per line
	ByteWidth int  // Bytes per word
	CRC       bool // Frames carry a CRC16 trailer
}

// DefaultFormat is the 128 x 12-bit line with raw framing
func DefaultFormat() Format {
	return Format{SyncByte: DefaultSyncByte, Depth: 128, ByteWidth: 2}
}

// PayloadLen returns the number of line bytes in a frame
func (f Format) PayloadLen() int {
	return f.Depth * f.ByteWidth
}

// FrameLen returns the number of bytes in a frame
func (f Format) FrameLen() int {
	n := FrameHeader + f.PayloadLen()
	if f.CRC {
		n += FrameTrailer
	}
	return n
}
