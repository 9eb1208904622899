package core

import "github.com/rs/zerolog"

// TraceEvent captures a timing-relevant event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	Cycle     uint64 // Clock cycle of the event
	Value1    uint64 // Context-dependent value
	Value2    uint64 // Context-dependent value
}

// Event type codes
const (
	EvtScanStart    = 1 // Sequencer left IDLE; v1=scan number
	EvtLineComplete = 2 // Last pixel written; v1=generation
	EvtDumpStart    = 3 // Dumper left IDLE; v1=dump number
	EvtDumpDone     = 4 // Done pulse; v1=generation read, v2=1 if torn
	EvtSwap         = 5 // Back bank published; v1=swaps
	EvtSwapDropped  = 6 // Completed line overwritten unpublished; v1=drops
	EvtStall        = 7 // Watchdog fired; v1=cycles in WAIT
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

// EventName returns the mnemonic for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtScanStart:
		return "SCAN_START"
	case EvtLineComplete:
		return "LINE_DONE"
	case EvtDumpStart:
		return "DUMP_START"
	case EvtDumpDone:
		return "DUMP_DONE"
	case EvtSwap:
		return "SWAP"
	case EvtSwapDropped:
		return "SWAP_DROPPED"
	case EvtStall:
		return "STALL!"
	}
	return "UNKNOWN"
}

// TraceRing is a fixed ring of the most recent events. Recording never
// allocates or blocks.
type TraceRing struct {
	ring [TraceRingSize]TraceEvent
	head uint8 // Next write position
}

// Record captures an event, overwriting the oldest one when full
func (r *TraceRing) Record(eventType uint8, cycle, value1, value2 uint64) {
	idx := r.head
	r.ring[idx] = TraceEvent{
		EventType: eventType,
		Cycle:     cycle,
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (idx + 1) % TraceRingSize
}

// Events returns the recorded events from oldest to newest
func (r *TraceRing) Events() []TraceEvent {
	events := make([]TraceEvent, 0, TraceRingSize)
	start := r.head
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := r.ring[(start+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// Dump writes the ring through log, oldest first
func (r *TraceRing) Dump(log zerolog.Logger) {
	events := r.Events()
	log.Info().Int("events", len(events)).Msg("trace ring dump")
	for _, evt := range events {
		log.Info().
			Str("event", EventName(evt.EventType)).
			Uint64("cycle", evt.Cycle).
			Uint64("v1", evt.Value1).
			Uint64("v2", evt.Value2).
			Msg("trace")
	}
}

// Clear empties the ring
func (r *TraceRing) Clear() {
	for i := range r.ring {
		r.ring[i] = TraceEvent{}
	}
	r.head = 0
}
