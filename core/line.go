package core

// LineWriter is the sequencer's port onto the line store
type LineWriter interface {
	BeginLine()
	Write(index int, s Sample)
	EndLine()
}

// LineReader is the dumper's port onto the line store
type LineReader interface {
	Depth() int
	ByteWidth() int
	BeginRead()
	ReadByte(c Cursor) byte
	EndRead() DumpReport
}

// DumpReport describes the line a finished dump read
type DumpReport struct {
	Generation uint64 // Line generation visible when the dump started
	Torn       bool   // A scan wrote the line while it was read
	Bytes      uint64 // Bytes transferred including sync and trailer
}

// LineStats counts line store events
type LineStats struct {
	Completed uint64 // Scans completed
	Swaps     uint64 // Back banks published (double policy)
	Deferred  uint64 // Swaps delayed by an in-flight dump
	Dropped   uint64 // Completed lines overwritten before publication
	Torn      uint64 // Dumps that overlapped a scan (shared policy)
}

// Line is a line store shared by one writer and one reader
type Line interface {
	LineWriter
	LineReader

	Policy() BufferPolicy
	Front() *LineBuffer
	Stats() LineStats
}

// NewLine builds the line store for policy
func NewLine(policy BufferPolicy, depth, width int) (Line, error) {
	front, err := NewLineBuffer(depth, width)
	if err != nil {
		return nil, err
	}
	switch policy {
	case PolicyShared:
		return &SharedLine{buf: front}, nil
	case PolicyDouble:
		back, _ := NewLineBuffer(depth, width)
		return &DoubleLine{banks: [2]*LineBuffer{front, back}}, nil
	}
	return nil, ErrInvalidConfig
}

// SharedLine is a single bank read and written concurrently. Reads that
// overlap a scan are not prevented, only reported.
type SharedLine struct {
	buf        *LineBuffer
	generation uint64
	writing    bool
	reading    bool
	torn       bool
	readGen    uint64
	stats      LineStats
}

func (l *SharedLine) Policy() BufferPolicy { return PolicyShared }
func (l *SharedLine) Front() *LineBuffer   { return l.buf }
func (l *SharedLine) Stats() LineStats     { return l.stats }
func (l *SharedLine) Depth() int           { return l.buf.Depth() }
func (l *SharedLine) ByteWidth() int       { return l.buf.ByteWidth() }

func (l *SharedLine) BeginLine() {
	l.writing = true
	if l.reading {
		l.torn = true
	}
}

func (l *SharedLine) Write(index int, s Sample) {
	l.buf.Write(index, uint32(s))
	if l.reading {
		l.torn = true
	}
}

func (l *SharedLine) EndLine() {
	l.writing = false
	l.generation++
	l.buf.generation = l.generation
	l.stats.Completed++
}

func (l *SharedLine) BeginRead() {
	l.reading = true
	l.torn = l.writing
	l.readGen = l.generation
}

func (l *SharedLine) ReadByte(c Cursor) byte { return l.buf.ReadByte(c) }

func (l *SharedLine) EndRead() DumpReport {
	l.reading = false
	if l.torn {
		l.stats.Torn++
	}
	return DumpReport{Generation: l.readGen, Torn: l.torn}
}

// DoubleLine lets the sequencer fill a back bank while the dumper reads the
// front one. A completed back bank is published when no dump is in flight.
type DoubleLine struct {
	banks      [2]*LineBuffer
	front      int
	generation uint64
	reading    bool
	pending    bool
	readGen    uint64
	stats      LineStats
}

func (l *DoubleLine) Policy() BufferPolicy { return PolicyDouble }
func (l *DoubleLine) Front() *LineBuffer   { return l.banks[l.front] }
func (l *DoubleLine) Back() *LineBuffer    { return l.banks[1-l.front] }
func (l *DoubleLine) Stats() LineStats     { return l.stats }
func (l *DoubleLine) Depth() int           { return l.banks[0].Depth() }
func (l *DoubleLine) ByteWidth() int       { return l.banks[0].ByteWidth() }

// Pending reports whether a completed line waits for the current dump to end
func (l *DoubleLine) Pending() bool { return l.pending }

func (l *DoubleLine) BeginLine() {
	if l.pending {
		// The unpublished line in the back bank is about to be overwritten
		l.pending = false
		l.stats.Dropped++
	}
}

func (l *DoubleLine) Write(index int, s Sample) {
	l.Back().Write(index, uint32(s))
}

func (l *DoubleLine) EndLine() {
	l.generation++
	l.Back().generation = l.generation
	l.stats.Completed++
	if l.reading {
		l.pending = true
		l.stats.Deferred++
		return
	}
	l.swap()
}

func (l *DoubleLine) swap() {
	l.front = 1 - l.front
	l.pending = false
	l.stats.Swaps++
}

func (l *DoubleLine) BeginRead() {
	l.reading = true
	l.readGen = l.Front().generation
}

func (l *DoubleLine) ReadByte(c Cursor) byte { return l.Front().ReadByte(c) }

func (l *DoubleLine) EndRead() DumpReport {
	l.reading = false
	if l.pending {
		l.swap()
	}
	return DumpReport{Generation: l.readGen}
}
