package core

import "fmt"

// Cursor addresses one byte of the line: Word selects the entry and Byte the
// position within it, 0 being the most significant byte.
type Cursor struct {
	Word int
	Byte int
}

// LineBuffer is a fixed store of Depth words of Width bits, allocated once
// and overwritten in place each scan
type LineBuffer struct {
	words      []uint32
	width      int
	byteWidth  int
	mask       uint32
	generation uint64
}

// NewLineBuffer allocates a depth x width line
func NewLineBuffer(depth, width int) (*LineBuffer, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: depth must be positive, got %d", ErrInvalidConfig, depth)
	}
	if width < 1 || width > 32 {
		return nil, fmt.Errorf("%w: width must be in 1..32, got %d", ErrInvalidConfig, width)
	}
	mask := uint32(1)<<width - 1
	if width == 32 {
		mask = ^uint32(0)
	}
	return &LineBuffer{
		words:     make([]uint32, depth),
		width:     width,
		byteWidth: (width + 7) / 8,
		mask:      mask,
	}, nil
}

// Depth returns the number of words
func (b *LineBuffer) Depth() int { return len(b.words) }

// Width returns the word width in bits
func (b *LineBuffer) Width() int { return b.width }

// ByteWidth returns ceil(Width/8)
func (b *LineBuffer) ByteWidth() int { return b.byteWidth }

// Generation returns the number of the scan that last completed into this buffer
func (b *LineBuffer) Generation() uint64 { return b.generation }

// Write stores a word. Writes only come from the sequencer, whose index is
// always in range; anything else is a programming error.
func (b *LineBuffer) Write(index int, value uint32) {
	if index < 0 || index >= len(b.words) {
		panic(fmt.Sprintf("linebuffer: write index %d out of range [0,%d)", index, len(b.words)))
	}
	b.words[index] = value & b.mask
}

// Word returns the word at index
func (b *LineBuffer) Word(index int) uint32 {
	return b.words[index]
}

// ReadByte returns byte c.Byte of word c.Word, most significant byte first
func (b *LineBuffer) ReadByte(c Cursor) byte {
	shift := 8 * (b.byteWidth - 1 - c.Byte)
	return byte(b.words[c.Word] >> shift)
}

// Snapshot copies the current contents
func (b *LineBuffer) Snapshot() []uint32 {
	out := make([]uint32, len(b.words))
	copy(out, b.words)
	return out
}

// Load overwrites the buffer from words, used for fixtures
func (b *LineBuffer) Load(words []uint32) {
	for i := range b.words {
		if i < len(words) {
			b.words[i] = words[i] & b.mask
		} else {
			b.words[i] = 0
		}
	}
}
