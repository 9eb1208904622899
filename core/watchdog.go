package core

// StallFunc is called when the dumper has waited longer than the watchdog
// limit for the sink to become ready
type StallFunc func(cycle, waited uint64)

// Watchdog polls the dumper from the scheduler and reports, once per stall,
// a WAIT that outlasts the limit. It never aborts the dump.
type Watchdog struct {
	dumper   *FrameDumper
	limit    uint64
	period   uint64
	timer    Timer
	reported bool
	lastSent uint64
	stalls   uint64
	onStall  StallFunc
}

func newWatchdog(d *FrameDumper, limit uint64, onStall StallFunc) *Watchdog {
	period := limit / 4
	if period == 0 {
		period = 1
	}
	w := &Watchdog{dumper: d, limit: limit, period: period, onStall: onStall}
	w.timer.Handler = w.check
	return w
}

// Stalls returns the number of stalls reported
func (w *Watchdog) Stalls() uint64 { return w.stalls }

// Limit returns the WAIT limit in cycles
func (w *Watchdog) Limit() uint64 { return w.limit }

func (w *Watchdog) start(s *Scheduler, now uint64) {
	w.timer.WakeTime = now + w.period
	s.Schedule(&w.timer)
}

func (w *Watchdog) check(t *Timer) uint8 {
	waited := w.dumper.Stall()
	if sent := w.dumper.BytesSent(); sent != w.lastSent || waited == 0 {
		w.lastSent = sent
		w.reported = false
	}
	if waited >= w.limit && !w.reported {
		w.reported = true
		w.stalls++
		if w.onStall != nil {
			w.onStall(t.WakeTime, waited)
		}
	}
	t.WakeTime += w.period
	return SF_RESCHEDULE
}
