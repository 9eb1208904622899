package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, f Format, words []uint32) []byte {
	t.Helper()
	out := NewScratchOutput(f.FrameLen())
	require.NoError(t, EncodeFrame(out, f, words))
	return append([]byte(nil), out.Result()...)
}

func TestEncodeFrame(t *testing.T) {
	f := Format{SyncByte: 0x42, Depth: 2, ByteWidth: 2}
	got := encode(t, f, []uint32{0x123, 0x456})
	assert.Equal(t, []byte{0x42, 0x01, 0x23, 0x04, 0x56}, got)

	f.CRC = true
	got = encode(t, f, []uint32{0x123, 0x456})
	crc := CRC16([]byte{0x01, 0x23, 0x04, 0x56})
	assert.Equal(t, []byte{0x42, 0x01, 0x23, 0x04, 0x56, byte(crc >> 8), byte(crc)}, got)
}

func TestEncodeFrameErrors(t *testing.T) {
	out := NewScratchOutput(16)
	assert.ErrorIs(t, EncodeFrame(out, Format{Depth: 0, ByteWidth: 2}, nil), ErrInvalidFormat)
	assert.ErrorIs(t, EncodeFrame(out, Format{Depth: 4, ByteWidth: 2}, []uint32{1}), ErrShortLine)
}

func TestDecoderRoundTrip(t *testing.T) {
	f := Format{SyncByte: 0x42, Depth: 4, ByteWidth: 2}
	line := []uint32{0x1122, 0x3344, 0x5566, 0x7788}

	dec, err := NewLineDecoder(f)
	require.NoError(t, err)

	var got [][]uint32
	stream := append(encode(t, f, line), encode(t, f, line)...)
	// Feed in uneven chunks
	for len(stream) > 0 {
		n := 3
		if n > len(stream) {
			n = len(stream)
		}
		dec.Feed(stream[:n], func(words []uint32) { got = append(got, words) })
		stream = stream[n:]
	}

	if diff := cmp.Diff([][]uint32{line, line}, got); diff != "" {
		t.Errorf("decoded lines mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(2), dec.Stats().Lines)
}

func TestDecoderSkipsLeadingNoise(t *testing.T) {
	f := Format{SyncByte: 0x42, Depth: 2, ByteWidth: 2}
	dec, err := NewLineDecoder(f)
	require.NoError(t, err)

	stream := append([]byte{0x00, 0x13, 0x37}, encode(t, f, []uint32{0x800, 0x7FF})...)
	lines := dec.Decode(stream)

	require.Len(t, lines, 1)
	assert.Equal(t, []uint32{0x800, 0x7FF}, lines[0])
	assert.Equal(t, uint64(3), dec.Stats().Skipped)
}

func TestDecoderCRCRejectsFalseSync(t *testing.T) {
	f := Format{SyncByte: 0x42, Depth: 2, ByteWidth: 2, CRC: true}
	dec, err := NewLineDecoder(f)
	require.NoError(t, err)

	// A truncated frame whose data holds a sync byte precedes a good one
	good := encode(t, f, []uint32{0x0042, 0x0123})
	stream := append([]byte{0x42, 0x00}, good...)

	lines := dec.Decode(stream)
	require.Len(t, lines, 1)
	assert.Equal(t, []uint32{0x0042, 0x0123}, lines[0])
	assert.NotZero(t, dec.Stats().CRCErrors)
}

func TestDecoderWideWords(t *testing.T) {
	f := Format{SyncByte: 0xA5, Depth: 2, ByteWidth: 3}
	dec, err := NewLineDecoder(f)
	require.NoError(t, err)

	lines := dec.Decode(encode(t, f, []uint32{0x123456, 0xABCDEF}))
	require.Len(t, lines, 1)
	assert.Equal(t, []uint32{0x123456, 0xABCDEF}, lines[0])
}

func TestDecoderLongStreamReusesFifo(t *testing.T) {
	f := Format{SyncByte: 0x42, Depth: 3, ByteWidth: 2, CRC: true}
	dec, err := NewLineDecoder(f)
	require.NoError(t, err)

	var stream []byte
	var want [][]uint32
	for i := uint32(0); i < 20; i++ {
		line := []uint32{i, i + 0x100, i + 0x200}
		want = append(want, line)
		stream = append(stream, encode(t, f, line)...)
	}

	var got [][]uint32
	for len(stream) > 0 {
		n := min(7, len(stream))
		dec.Feed(stream[:n], func(words []uint32) { got = append(got, words) })
		stream = stream[n:]
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded lines mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, dec.Stats().Skipped)
	assert.Zero(t, dec.Stats().CRCErrors)
}
