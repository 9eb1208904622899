package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNilCollaborator is returned when a System is built without its device or sink
var ErrNilCollaborator = errors.New("nil device or sink")

// runBatch is the number of cycles Run evaluates per lock acquisition
const runBatch = 4096

// Option configures a System
type Option func(*System)

// WithLogger sets the logger used for state transitions and stalls
func WithLogger(log zerolog.Logger) Option {
	return func(s *System) { s.log = log }
}

// WithExposure attaches the optical sensor driven by the start and device
// clock outputs
func WithExposure(e Exposure) Option {
	return func(s *System) { s.exposure = e }
}

// OnDumpDone registers a callback run on every done pulse
func OnDumpDone(fn func(DumpReport)) Option {
	return func(s *System) { s.onDump = fn }
}

// OnLineComplete registers a callback run when the last pixel of a scan is
// written. It receives the new line generation.
func OnLineComplete(fn func(generation uint64)) Option {
	return func(s *System) { s.onLine = fn }
}

// OnStall registers a callback run when the watchdog reports a stall
func OnStall(fn StallFunc) Option {
	return func(s *System) { s.onStall = fn }
}

// System is the clock domain: it owns the four engines and their external
// collaborators and advances them with register semantics. Every component
// sees the outputs of the others as they were before the current edge.
//
// Step, Run and the trigger and register methods serialise on an internal
// mutex. Component accessors are meant for the goroutine driving the clock.
type System struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	adc    *AdcSampler
	seq    *PixelSequencer
	line   Line
	dumper *FrameDumper

	device   SerialDevice
	exposure Exposure
	sink     ByteSink

	sched    Scheduler
	regs     *RegisterFile
	trace    TraceRing
	watchdog *Watchdog

	onDump  func(DumpReport)
	onLine  func(uint64)
	onStall StallFunc

	cycle     uint64
	scanLevel bool
	dumpLevel bool
	scanPulse bool
	dumpPulse bool
	lineStats LineStats
}

// NewSystem wires the engines for cfg around a serial ADC device and a byte sink
func NewSystem(cfg Config, device SerialDevice, sink ByteSink, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if device == nil || sink == nil {
		return nil, ErrNilCollaborator
	}

	line, err := NewLine(cfg.Policy, cfg.Pixels, cfg.Width)
	if err != nil {
		return nil, err
	}
	seq, err := NewPixelSequencer(line, cfg.Pixels, cfg.Tau)
	if err != nil {
		return nil, err
	}

	s := &System{
		cfg:    cfg,
		log:    zerolog.Nop(),
		adc:    NewAdcSampler(cfg.ADC),
		seq:    seq,
		line:   line,
		dumper: NewFrameDumper(line, cfg.SyncByte, cfg.Framing),
		device: device,
		sink:   sink,
		regs:   NewRegisterFile(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "core").Logger()

	if cfg.WatchdogCycles > 0 {
		s.watchdog = newWatchdog(s.dumper, cfg.WatchdogCycles, s.stalled)
		s.watchdog.start(&s.sched, 0)
	}
	s.registerCSRs()

	s.log.Debug().
		Int("pixels", cfg.Pixels).
		Int("width", cfg.Width).
		Uint32("tau", cfg.Tau).
		Stringer("adc", cfg.ADC).
		Stringer("policy", cfg.Policy).
		Stringer("framing", cfg.Framing).
		Msg("acquisition core configured")

	return s, nil
}

func (s *System) registerCSRs() {
	s.regs.Register("tau", 32, s.seq.Tau, s.seq.SetTau)
	s.regs.Register("sync_byte", 8, func() uint32 { return uint32(s.dumper.SyncByte()) }, nil)
	s.regs.Register("scan_trigger", 1, nil, func(v uint32) error {
		s.scanPulse = v&1 == 1
		return nil
	})
	s.regs.Register("dump_trigger", 1, nil, func(v uint32) error {
		s.dumpPulse = v&1 == 1
		return nil
	})
	s.regs.Register("adc_peek", SampleBits, func() uint32 { return uint32(s.adc.Sample()) }, nil)
	s.regs.Register("pixel_index", 16, func() uint32 { return uint32(s.seq.PixelIndex()) }, nil)
	s.regs.Register("line_generation", 32, func() uint32 { return uint32(s.line.Front().Generation()) }, nil)
	s.regs.Register("dump_count", 32, func() uint32 { return uint32(s.dumper.Dumps()) }, nil)
}

// Config returns the configuration the System was built with
func (s *System) Config() Config { return s.cfg }

// Cycle returns the number of clock edges evaluated
func (s *System) Cycle() uint64 { return s.cycle }

// ADC returns the sampler
func (s *System) ADC() *AdcSampler { return s.adc }

// Sequencer returns the pixel sequencer
func (s *System) Sequencer() *PixelSequencer { return s.seq }

// Line returns the line store
func (s *System) Line() Line { return s.line }

// Dumper returns the frame dumper
func (s *System) Dumper() *FrameDumper { return s.dumper }

// Registers returns the register file
func (s *System) Registers() *RegisterFile { return s.regs }

// Trace returns the event ring
func (s *System) Trace() *TraceRing { return &s.trace }

// Watchdog returns the dump watchdog, nil when disabled
func (s *System) Watchdog() *Watchdog { return s.watchdog }

// Step evaluates one clock edge
func (s *System) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step()
}

// Run evaluates cycles clock edges, checking ctx between batches
func (s *System) Run(ctx context.Context, cycles uint64) error {
	for cycles > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := cycles
		if n > runBatch {
			n = runBatch
		}
		s.mu.Lock()
		for i := uint64(0); i < n; i++ {
			s.step()
		}
		s.mu.Unlock()
		cycles -= n
	}
	return nil
}

// StepUntil steps until cond holds or limit edges have been evaluated.
// It returns the number of edges evaluated and whether cond was met.
func (s *System) StepUntil(limit uint64, cond func(*System) bool) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := uint64(0); n < limit; n++ {
		if cond(s) {
			return n, true
		}
		s.step()
	}
	return limit, cond(s)
}

// TriggerScan raises scanTrigger for the next cycle
func (s *System) TriggerScan() {
	s.mu.Lock()
	s.scanPulse = true
	s.mu.Unlock()
}

// TriggerDump raises dumpTrigger for the next cycle
func (s *System) TriggerDump() {
	s.mu.Lock()
	s.dumpPulse = true
	s.mu.Unlock()
}

// SetScanTrigger holds scanTrigger at level
func (s *System) SetScanTrigger(level bool) {
	s.mu.Lock()
	s.scanLevel = level
	s.mu.Unlock()
}

// SetDumpTrigger holds dumpTrigger at level
func (s *System) SetDumpTrigger(level bool) {
	s.mu.Lock()
	s.dumpLevel = level
	s.mu.Unlock()
}

// SetTau changes the integration period from the next END_OF_LINE
func (s *System) SetTau(tau uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.SetTau(tau)
}

// WriteRegister writes a register by name
func (s *System) WriteRegister(name string, v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs.Write(name, v)
}

// ReadRegister reads a register by name
func (s *System) ReadRegister(name string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs.Read(name)
}

// ScheduleScans pulses scanTrigger at cycle first and then every period
// cycles. A zero period schedules a single scan.
func (s *System) ScheduleScans(first, period uint64) *Timer {
	return s.schedulePulse(first, period, &s.scanPulse)
}

// ScheduleDumps pulses dumpTrigger at cycle first and then every period cycles
func (s *System) ScheduleDumps(first, period uint64) *Timer {
	return s.schedulePulse(first, period, &s.dumpPulse)
}

func (s *System) schedulePulse(first, period uint64, pulse *bool) *Timer {
	t := &Timer{
		WakeTime: first,
		Handler: func(t *Timer) uint8 {
			*pulse = true
			if period == 0 {
				return SF_DONE
			}
			t.WakeTime += period
			return SF_RESCHEDULE
		},
	}
	s.mu.Lock()
	s.sched.Schedule(t)
	s.mu.Unlock()
	return t
}

// CancelTimer removes a timer returned by ScheduleScans or ScheduleDumps
func (s *System) CancelTimer(t *Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Cancel(t)
}

// step evaluates one edge. Must be called with the lock held.
func (s *System) step() {
	s.sched.Dispatch(s.cycle)

	scan := s.scanLevel || s.scanPulse
	dump := s.dumpLevel || s.dumpPulse
	s.scanPulse = false
	s.dumpPulse = false

	// Outputs as driven during the cycle that ends at this edge
	adcValid := s.adc.Valid()
	sample := s.adc.Sample()
	convert := s.seq.Convert(adcValid)
	start := s.seq.Start()
	deviceClock := s.seq.DeviceClock(adcValid)
	sdata := s.device.SDATA()
	ready := s.sink.Ready()
	valid, data := s.dumper.Valid(), s.dumper.Data()
	seqBefore, dumpBefore := s.seq.State(), s.dumper.State()

	s.adc.Tick(convert, sdata)
	s.seq.Tick(scan, adcValid, sample)
	s.dumper.Tick(dump, ready)
	s.sink.Tick(valid, data)
	if s.exposure != nil {
		s.exposure.Tick(start, deviceClock)
	}
	s.device.Tick(s.adc.NCS())

	s.cycle++
	s.observe(seqBefore, dumpBefore)
}

// observe records the transitions of the edge just evaluated
func (s *System) observe(seqBefore SequencerState, dumpBefore DumperState) {
	seqAfter := s.seq.State()
	switch {
	case seqBefore == SeqStateIdle && seqAfter == SeqStateExposing:
		s.trace.Record(EvtScanStart, s.cycle, s.seq.Scans(), 0)
		s.log.Debug().Uint64("cycle", s.cycle).Uint64("scan", s.seq.Scans()).Msg("scan started")
	case seqBefore == SeqStateExposing && seqAfter == SeqStateEndOfLine:
		stats := s.line.Stats()
		s.trace.Record(EvtLineComplete, s.cycle, stats.Completed, 0)
		s.log.Debug().Uint64("cycle", s.cycle).Uint64("generation", stats.Completed).Msg("line complete")
		if s.onLine != nil {
			s.onLine(stats.Completed)
		}
	}

	if dumpBefore == DumpStateIdle && s.dumper.State() == DumpStateSync {
		s.trace.Record(EvtDumpStart, s.cycle, s.dumper.Dumps()+1, 0)
		s.log.Debug().Uint64("cycle", s.cycle).Msg("dump started")
	}
	if s.dumper.Done() {
		report := s.dumper.LastReport()
		var torn uint64
		if report.Torn {
			torn = 1
		}
		s.trace.Record(EvtDumpDone, s.cycle, report.Generation, torn)
		s.log.Debug().
			Uint64("cycle", s.cycle).
			Uint64("generation", report.Generation).
			Bool("torn", report.Torn).
			Uint64("bytes", report.Bytes).
			Msg("dump done")
		if s.onDump != nil {
			s.onDump(report)
		}
	}

	stats := s.line.Stats()
	if stats.Swaps != s.lineStats.Swaps {
		s.trace.Record(EvtSwap, s.cycle, stats.Swaps, 0)
	}
	if stats.Dropped != s.lineStats.Dropped {
		s.trace.Record(EvtSwapDropped, s.cycle, stats.Dropped, 0)
		s.log.Warn().Uint64("cycle", s.cycle).Uint64("dropped", stats.Dropped).Msg("completed line dropped before publication")
	}
	s.lineStats = stats
}

func (s *System) stalled(cycle, waited uint64) {
	s.trace.Record(EvtStall, cycle, waited, 0)
	s.log.Warn().
		Uint64("cycle", cycle).
		Uint64("waited", waited).
		Str("state", s.dumper.State().String()).
		Msg("dumper waiting on sink")
	if s.onStall != nil {
		s.onStall(cycle, waited)
	}
}

// String summarises the engine states
func (s *System) String() string {
	return fmt.Sprintf("cycle=%d adc=%s seq=%s pixel=%d dump=%s",
		s.cycle, s.adc.State(), s.seq.State(), s.seq.PixelIndex(), s.dumper.State())
}

// Status is a consistent snapshot of the System counters
type Status struct {
	Cycle      uint64
	Scans      uint64
	Dumps      uint64
	BytesSent  uint64
	Generation uint64
	Line       LineStats
	Stalls     uint64
}

// Status returns the counters under the System lock
func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Cycle:      s.cycle,
		Scans:      s.seq.Scans(),
		Dumps:      s.dumper.Dumps(),
		BytesSent:  s.dumper.BytesSent(),
		Generation: s.line.Front().Generation(),
		Line:       s.line.Stats(),
	}
	if s.watchdog != nil {
		st.Stalls = s.watchdog.Stalls()
	}
	return st
}
