package core

import "ccdline/protocol"

// DumperState is the FrameDumper state
type DumperState uint8

// FrameDumper states
const (
	DumpStateIdle DumperState = iota
	DumpStateSync
	DumpStateSend
	DumpStateWait
	DumpStateDone
)

func (s DumperState) String() string {
	switch s {
	case DumpStateIdle:
		return "IDLE"
	case DumpStateSync:
		return "SYNC"
	case DumpStateSend:
		return "SEND"
	case DumpStateWait:
		return "WAIT"
	case DumpStateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// FrameDumper streams [sync, line bytes...] into a ByteSink with a
// ready/valid handshake. Words go out most significant byte first.
type FrameDumper struct {
	line     LineReader
	syncByte byte
	framing  Framing

	state        DumperState
	cursor       Cursor
	dataDone     bool
	lastByteSent bool
	trailer      int
	crc          uint16

	valid bool
	data  byte
	done  bool

	stall  uint64 // Cycles spent in the current WAIT
	sent   uint64 // Bytes in the current frame
	total  uint64
	dumps  uint64
	report DumpReport
}

// NewFrameDumper returns an idle dumper reading line
func NewFrameDumper(line LineReader, syncByte byte, framing Framing) *FrameDumper {
	return &FrameDumper{line: line, syncByte: syncByte, framing: framing}
}

// State returns the current state
func (d *FrameDumper) State() DumperState { return d.state }

// Busy reports whether a dump is in flight
func (d *FrameDumper) Busy() bool { return d.state != DumpStateIdle }

// Valid is the handshake valid output
func (d *FrameDumper) Valid() bool { return d.valid }

// Data is the byte offered to the sink while Valid is high
func (d *FrameDumper) Data() byte { return d.data }

// Done is high for the one cycle after the last byte transferred
func (d *FrameDumper) Done() bool { return d.done }

// Cursor returns the position of the next line byte
func (d *FrameDumper) Cursor() Cursor { return d.cursor }

// SyncByte returns the frame marker
func (d *FrameDumper) SyncByte() byte { return d.syncByte }

// Stall returns the number of cycles spent in the current WAIT
func (d *FrameDumper) Stall() uint64 { return d.stall }

// BytesSent returns the total number of bytes transferred
func (d *FrameDumper) BytesSent() uint64 { return d.total }

// Dumps returns the number of completed dumps
func (d *FrameDumper) Dumps() uint64 { return d.dumps }

// LastReport returns the report of the last completed dump
func (d *FrameDumper) LastReport() DumpReport { return d.report }

// FrameLen returns the number of bytes in one frame
func (d *FrameDumper) FrameLen() int {
	n := 1 + d.line.Depth()*d.line.ByteWidth()
	if d.framing == FramingCRC {
		n += 2
	}
	return n
}

// Tick advances the dumper by one clock edge. ready is the sink's ready
// output during the cycle that just ended.
func (d *FrameDumper) Tick(trigger, ready bool) {
	d.done = false

	switch d.state {
	case DumpStateIdle:
		if !trigger {
			return
		}
		d.cursor = Cursor{}
		d.dataDone = false
		d.lastByteSent = false
		d.trailer = 0
		d.crc = protocol.CRC16Init
		d.sent = 0
		d.line.BeginRead()
		d.state = DumpStateSync

	case DumpStateSync:
		d.offer(d.syncByte)

	case DumpStateSend:
		switch {
		case !d.dataDone:
			b := d.line.ReadByte(d.cursor)
			d.crc = protocol.CRC16Update(d.crc, b)
			d.offer(b)
			d.advance()
		case d.trailer == 0:
			d.offer(byte(d.crc >> 8))
			d.trailer++
		default:
			d.offer(byte(d.crc))
			d.lastByteSent = true
		}

	case DumpStateWait:
		if !ready {
			d.stall++
			return
		}
		d.valid = false
		d.stall = 0
		d.sent++
		d.total++
		if !d.lastByteSent {
			d.state = DumpStateSend
			return
		}
		d.report = d.line.EndRead()
		d.report.Bytes = d.sent
		d.dumps++
		d.done = true
		d.state = DumpStateDone

	case DumpStateDone:
		d.state = DumpStateIdle
	}
}

func (d *FrameDumper) offer(b byte) {
	d.data = b
	d.valid = true
	d.state = DumpStateWait
}

// advance moves the cursor to the next byte and latches the end of the line
func (d *FrameDumper) advance() {
	if d.cursor.Byte < d.line.ByteWidth()-1 {
		d.cursor.Byte++
		return
	}
	d.cursor.Byte = 0
	if d.cursor.Word < d.line.Depth()-1 {
		d.cursor.Word++
		return
	}
	d.cursor.Word = 0
	d.dataDone = true
	if d.framing == FramingRaw {
		d.lastByteSent = true
	}
}
