package core

// testDevice is a minimal ADCS7476: a chip select falling edge loads
// 0000 d11..d0 and one bit is presented per clock, MSB first
type testDevice struct {
	next   func() Sample
	frame  uint16
	pos    int
	active bool
}

func constDevice(v Sample) *testDevice {
	return &testDevice{next: func() Sample { return v }}
}

func (d *testDevice) SDATA() bool {
	if !d.active {
		return false
	}
	return d.frame>>(15-d.pos)&1 == 1
}

func (d *testDevice) Tick(nCS bool) {
	if nCS {
		d.active = false
		return
	}
	if !d.active || d.pos == 15 {
		d.active = true
		d.pos = 0
		d.frame = uint16(d.next()) & SampleMask
		return
	}
	d.pos++
}

// testSink records every transferred byte
type testSink struct {
	ready func(cycle int) bool
	cycle int
	got   []byte
	at    []int // cycle of each transfer
}

func (s *testSink) Ready() bool {
	return s.ready == nil || s.ready(s.cycle)
}

func (s *testSink) Tick(valid bool, data byte) {
	if valid && s.Ready() {
		s.got = append(s.got, data)
		s.at = append(s.at, s.cycle)
	}
	s.cycle++
}

// recordingLine records sequencer writes
type recordingLine struct {
	begins, ends int
	indices      []int
	samples      []Sample
}

func (l *recordingLine) BeginLine() { l.begins++ }
func (l *recordingLine) EndLine()   { l.ends++ }
func (l *recordingLine) Write(index int, s Sample) {
	l.indices = append(l.indices, index)
	l.samples = append(l.samples, s)
}
