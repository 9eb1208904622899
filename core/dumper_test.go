package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccdline/protocol"
)

func loadedLine(t *testing.T, width int, words ...uint32) Line {
	t.Helper()
	line, err := NewLine(PolicyShared, len(words), width)
	require.NoError(t, err)
	line.Front().Load(words)
	return line
}

type dumpResult struct {
	bytes []byte
	dones int
	ready []int // cycles the sink was ready while a byte was offered
	sent  []int // cycles a byte transferred
}

// runDump triggers one dump and clocks it to completion
func runDump(t *testing.T, d *FrameDumper, ready func(int) bool, retrigger bool) dumpResult {
	t.Helper()
	var r dumpResult
	d.Tick(true, false)
	for c := 0; c < 10000; c++ {
		valid, data := d.Valid(), d.Data()
		rdy := ready(c)
		d.Tick(retrigger, rdy)
		if valid && rdy {
			r.bytes = append(r.bytes, data)
			r.sent = append(r.sent, c)
		}
		if valid {
			if rdy {
				r.ready = append(r.ready, c)
			}
		}
		if d.Done() {
			r.dones++
			// One more edge back to IDLE
			d.Tick(false, false)
			assert.False(t, d.Done(), "done lasts one cycle")
			return r
		}
	}
	t.Fatal("dump did not complete")
	return r
}

func always(int) bool { return true }

func TestDumperFraming(t *testing.T) {
	line := loadedLine(t, 12, 0x123, 0x456)
	d := NewFrameDumper(line, DefaultSyncByte, FramingRaw)

	r := runDump(t, d, always, false)

	assert.Equal(t, []byte{0x42, 0x01, 0x23, 0x04, 0x56}, r.bytes)
	assert.Equal(t, 1, r.dones)
	assert.Equal(t, DumpStateIdle, d.State())
	assert.Equal(t, uint64(5), d.LastReport().Bytes)
	assert.Equal(t, d.FrameLen(), len(r.bytes))
}

func TestDumperSixteenBitWords(t *testing.T) {
	line := loadedLine(t, 16, 0x1122, 0x3344, 0x5566, 0x7788)
	d := NewFrameDumper(line, DefaultSyncByte, FramingRaw)

	r := runDump(t, d, always, false)
	assert.Equal(t, []byte{0x42, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}, r.bytes)

	// Decoding the stream gives the line back
	dec, err := protocol.NewLineDecoder(protocol.Format{SyncByte: 0x42, Depth: 4, ByteWidth: 2})
	require.NoError(t, err)
	lines := dec.Decode(r.bytes)
	require.Len(t, lines, 1)
	assert.Equal(t, line.Front().Snapshot(), lines[0])
}

func TestDumperCRCFraming(t *testing.T) {
	words := []uint32{0x123, 0x456, 0x042}
	line := loadedLine(t, 12, words...)
	d := NewFrameDumper(line, DefaultSyncByte, FramingCRC)

	r := runDump(t, d, always, false)

	f := protocol.Format{SyncByte: 0x42, Depth: 3, ByteWidth: 2, CRC: true}
	want := protocol.NewScratchOutput(f.FrameLen())
	require.NoError(t, protocol.EncodeFrame(want, f, words))
	assert.Equal(t, want.Result(), r.bytes)
	assert.Equal(t, d.FrameLen(), len(r.bytes))
}

func TestDumperBackPressure(t *testing.T) {
	line := loadedLine(t, 12, 0x123, 0x456)
	d := NewFrameDumper(line, DefaultSyncByte, FramingRaw)

	everyThird := func(c int) bool { return c%3 == 0 }
	r := runDump(t, d, everyThird, false)

	require.Equal(t, []byte{0x42, 0x01, 0x23, 0x04, 0x56}, r.bytes)
	for _, c := range r.sent {
		assert.Zero(t, c%3, "byte sent on a cycle the sink was not ready")
	}
	// Once streaming, every ready cycle carries a byte
	for i := 1; i < len(r.sent); i++ {
		assert.Equal(t, 3, r.sent[i]-r.sent[i-1])
	}
}

func TestDumperBlocksWhileSinkBusy(t *testing.T) {
	line := loadedLine(t, 12, 0x123)
	d := NewFrameDumper(line, DefaultSyncByte, FramingRaw)

	d.Tick(true, false)
	for c := 0; c < 500; c++ {
		d.Tick(false, false)
	}
	assert.Equal(t, DumpStateWait, d.State())
	assert.True(t, d.Valid())
	assert.Equal(t, byte(0x42), d.Data())
	assert.Equal(t, uint64(499), d.Stall())
}

func TestDumperIgnoresRetrigger(t *testing.T) {
	line := loadedLine(t, 12, 0x123, 0x456, 0x789)

	once := runDump(t, NewFrameDumper(line, DefaultSyncByte, FramingRaw), always, false)
	held := runDump(t, NewFrameDumper(line, DefaultSyncByte, FramingRaw), always, true)

	assert.Equal(t, once.bytes, held.bytes)
	assert.Equal(t, 1, held.dones)
}
