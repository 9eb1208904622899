package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccdline/protocol"
)

func newTestSystem(t *testing.T, cfg Config, dev SerialDevice, sink ByteSink, opts ...Option) *System {
	t.Helper()
	sys, err := NewSystem(cfg, dev, sink, opts...)
	require.NoError(t, err)
	return sys
}

func decodeLines(t *testing.T, cfg Config, stream []byte) [][]uint32 {
	t.Helper()
	dec, err := protocol.NewLineDecoder(protocol.Format{
		SyncByte:  cfg.SyncByte,
		Depth:     cfg.Pixels,
		ByteWidth: (cfg.Width + 7) / 8,
		CRC:       cfg.Framing == FramingCRC,
	})
	require.NoError(t, err)
	return dec.Decode(stream)
}

func idle(s *System) bool { return s.Sequencer().State() == SeqStateIdle }

func TestSystemScanFillsLine(t *testing.T) {
	sys := newTestSystem(t, DefaultConfig(), constDevice(0x800), &testSink{})

	var visited []int
	sys.TriggerScan()
	for i := 0; i < 5000; i++ {
		sys.Step()
		idx := sys.Sequencer().PixelIndex()
		if len(visited) == 0 || visited[len(visited)-1] != idx {
			visited = append(visited, idx)
		}
		if idle(sys) {
			break
		}
	}

	require.Len(t, visited, PixelCount+1)
	for i := 0; i < PixelCount; i++ {
		assert.Equal(t, i+1, visited[i])
	}
	assert.Equal(t, 0, visited[PixelCount])

	for i, w := range sys.Line().Front().Snapshot() {
		assert.Equal(t, uint32(0x800), w, "pixel %d", i)
	}
	assert.Equal(t, uint64(1), sys.Line().Stats().Completed)
	assert.Equal(t, uint64(PixelCount), sys.ADC().Conversions(), "no stray conversion after the line")
}

func TestSystemScanOrderPerADCProtocol(t *testing.T) {
	tests := []struct {
		name     string
		protocol ADCProtocol
		delay    int // Cycles between power-up and the scan trigger
	}{
		{"triggered", ADCTriggered, 0},
		{"triggered late", ADCTriggered, 7},
		{"freerun", ADCFreeRun, 0},
		{"freerun late", ADCFreeRun, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Pixels = 4
			cfg.ADC = tt.protocol

			// Every conversion reads the next ramp value, so the line shows
			// which conversion landed in which pixel
			var n Sample
			ramp := &testDevice{next: func() Sample { n++; return n }}

			var atComplete uint64
			var sys *System
			sys = newTestSystem(t, cfg, ramp, &testSink{}, OnLineComplete(func(uint64) {
				atComplete = sys.ADC().Conversions()
			}))

			for i := 0; i < tt.delay; i++ {
				sys.Step()
			}
			sys.TriggerScan()
			_, ok := sys.StepUntil(2000, func(s *System) bool { return s.Line().Stats().Completed == 1 })
			require.True(t, ok)

			line := sys.Line().Front().Snapshot()
			require.Len(t, line, 4)
			for i := 1; i < len(line); i++ {
				assert.Equal(t, line[0]+uint32(i), line[i], "pixel %d", i)
			}
			// The last pixel holds the conversion that completed the line
			assert.Equal(t, uint64(line[3]), atComplete)

			if tt.protocol == ADCTriggered {
				assert.Equal(t, []uint32{1, 2, 3, 4}, line)
				_, ok = sys.StepUntil(2000, idle)
				require.True(t, ok)
				assert.Equal(t, uint64(4), sys.ADC().Conversions(), "no stray conversion after the line")
			} else {
				// Free-running conversions never wait for the trigger
				assert.LessOrEqual(t, uint64(4), atComplete)
			}
		})
	}
}

func TestSystemScanThenDump(t *testing.T) {
	sink := &testSink{}
	cfg := DefaultConfig()
	cfg.Framing = FramingCRC

	var reports []DumpReport
	sys := newTestSystem(t, cfg, constDevice(0x7A5), sink, OnDumpDone(func(r DumpReport) {
		reports = append(reports, r)
	}))

	sys.TriggerScan()
	_, ok := sys.StepUntil(10000, func(s *System) bool { return idle(s) && s.Cycle() > 1 })
	require.True(t, ok)

	sys.TriggerDump()
	_, ok = sys.StepUntil(10000, func(s *System) bool { return s.Dumper().Done() })
	require.True(t, ok)

	lines := decodeLines(t, cfg, sink.got)
	require.Len(t, lines, 1)
	for _, w := range lines[0] {
		assert.Equal(t, uint32(0x7A5), w)
	}
	require.Len(t, reports, 1)
	assert.Equal(t, uint64(1), reports[0].Generation)
	assert.False(t, reports[0].Torn)
	assert.Equal(t, uint64(1+2*PixelCount+2), reports[0].Bytes)

	v, err := sys.ReadRegister("adc_peek")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7A5), v)
}

// scanThenDumpMidScan fills the line with 0x111, then starts a 0x222 scan and
// dumps once the new scan is half way
func scanThenDumpMidScan(t *testing.T, policy BufferPolicy, sinkReady func(int) bool) (*System, *testSink, []uint32) {
	t.Helper()
	value := Sample(0x111)
	dev := &testDevice{next: func() Sample { return value }}
	sink := &testSink{ready: sinkReady}
	cfg := DefaultConfig()
	cfg.Policy = policy
	cfg.Tau = 16
	sys := newTestSystem(t, cfg, dev, sink)

	sys.TriggerScan()
	_, ok := sys.StepUntil(10000, func(s *System) bool { return idle(s) && s.Cycle() > 1 })
	require.True(t, ok)

	value = 0x222
	sys.TriggerScan()
	_, ok = sys.StepUntil(10000, func(s *System) bool { return s.Sequencer().PixelIndex() == 64 })
	require.True(t, ok)

	sys.TriggerDump()
	_, ok = sys.StepUntil(100000, func(s *System) bool { return s.Dumper().Done() })
	require.True(t, ok)

	lines := decodeLines(t, cfg, sink.got)
	require.Len(t, lines, 1)
	return sys, sink, lines[0]
}

func TestSharedPolicyTornRead(t *testing.T) {
	sys, _, line := scanThenDumpMidScan(t, PolicyShared, nil)

	// The dump overtakes the scan: the head is new, the tail still old
	assert.Equal(t, uint32(0x222), line[0])
	assert.Equal(t, uint32(0x111), line[PixelCount-1])

	report := sys.Dumper().LastReport()
	assert.True(t, report.Torn)
	assert.Equal(t, uint64(1), report.Generation)
	assert.Equal(t, uint64(1), sys.Line().Stats().Torn)
}

func TestDoublePolicyConsistentRead(t *testing.T) {
	slow := func(c int) bool { return c%10 == 0 }
	sys, sink, line := scanThenDumpMidScan(t, PolicyDouble, slow)

	for i, w := range line {
		assert.Equal(t, uint32(0x111), w, "pixel %d", i)
	}
	report := sys.Dumper().LastReport()
	assert.False(t, report.Torn)
	assert.Equal(t, uint64(1), report.Generation)

	// The second line completed during the dump and is published after it
	stats := sys.Line().Stats()
	assert.Equal(t, uint64(2), stats.Completed)
	assert.Equal(t, uint64(1), stats.Deferred)
	assert.Equal(t, uint64(2), stats.Swaps)
	assert.Equal(t, uint32(0x222), sys.Line().Front().Word(0))

	sink.got = nil
	sys.TriggerDump()
	_, ok := sys.StepUntil(100000, func(s *System) bool { return s.Dumper().Done() })
	require.True(t, ok)
	lines := decodeLines(t, sys.Config(), sink.got)
	require.Len(t, lines, 1)
	for _, w := range lines[0] {
		assert.Equal(t, uint32(0x222), w)
	}
	assert.Equal(t, uint64(2), sys.Dumper().LastReport().Generation)
}

func TestWatchdogReportsStall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WatchdogCycles = 100

	var stalls []uint64
	sink := &testSink{ready: func(int) bool { return false }}
	sys := newTestSystem(t, cfg, constDevice(0), sink, OnStall(func(cycle, waited uint64) {
		stalls = append(stalls, waited)
	}))

	sys.TriggerDump()
	require.NoError(t, sys.Run(context.Background(), 1000))

	require.Len(t, stalls, 1, "one report per stall")
	assert.GreaterOrEqual(t, stalls[0], uint64(100))
	assert.Equal(t, uint64(1), sys.Watchdog().Stalls())
	assert.Equal(t, DumpStateWait, sys.Dumper().State(), "the dump is not aborted")

	var found bool
	for _, evt := range sys.Trace().Events() {
		if evt.EventType == EvtStall {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScheduledScansAndDumps(t *testing.T) {
	sink := &testSink{}
	sys := newTestSystem(t, DefaultConfig(), constDevice(0x800), sink)

	sys.ScheduleScans(0, 3000)
	sys.ScheduleDumps(2500, 0)
	require.NoError(t, sys.Run(context.Background(), 9500))

	assert.Equal(t, uint64(4), sys.Sequencer().Scans())
	assert.Equal(t, uint64(1), sys.Dumper().Dumps())

	lines := decodeLines(t, sys.Config(), sink.got)
	require.Len(t, lines, 1)
	for _, w := range lines[0] {
		assert.Equal(t, uint32(0x800), w)
	}

	var names []string
	for _, evt := range sys.Trace().Events() {
		names = append(names, EventName(evt.EventType))
	}
	assert.Contains(t, names, "SCAN_START")
	assert.Contains(t, names, "LINE_DONE")
	assert.Contains(t, names, "DUMP_START")
	assert.Contains(t, names, "DUMP_DONE")
}

func TestCancelScheduledScan(t *testing.T) {
	sys := newTestSystem(t, DefaultConfig(), constDevice(1), &testSink{})
	tm := sys.ScheduleScans(10, 0)
	assert.True(t, sys.CancelTimer(tm))
	require.NoError(t, sys.Run(context.Background(), 100))
	assert.Zero(t, sys.Sequencer().Scans())
}

func TestSystemRegisters(t *testing.T) {
	sys := newTestSystem(t, DefaultConfig(), constDevice(0x800), &testSink{})

	require.NoError(t, sys.WriteRegister("tau", 5))
	assert.Equal(t, uint32(5), sys.Sequencer().Tau())
	assert.ErrorIs(t, sys.WriteRegister("tau", 0), ErrInvalidConfig)

	v, err := sys.ReadRegister("sync_byte")
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultSyncByte), v)
	assert.ErrorIs(t, sys.WriteRegister("sync_byte", 1), ErrReadOnly)

	require.NoError(t, sys.WriteRegister("scan_trigger", 1))
	sys.Step()
	assert.Equal(t, SeqStateExposing, sys.Sequencer().State())
}

func TestSystemRunHonoursContext(t *testing.T) {
	sys := newTestSystem(t, DefaultConfig(), constDevice(1), &testSink{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sys.Run(ctx, 10), context.Canceled)
	assert.Zero(t, sys.Cycle())
}

func TestNewSystemRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tau = 0
	_, err := NewSystem(cfg, constDevice(0), &testSink{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSystem(DefaultConfig(), nil, &testSink{})
	assert.ErrorIs(t, err, ErrNilCollaborator)
}
