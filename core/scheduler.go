package core

// Timer represents a scheduled event on the cycle counter
type Timer struct {
	WakeTime uint64
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by WakeTime and fires them from the clock
// domain before each cycle is evaluated
type Scheduler struct {
	timerList *Timer
}

// Schedule adds a timer to the schedule
func (s *Scheduler) Schedule(t *Timer) {
	s.insertTimer(t)
}

// insertTimer inserts a timer in sorted order by WakeTime.
// Timers with equal WakeTime fire in insertion order.
func (s *Scheduler) insertTimer(t *Timer) {
	if s.timerList == nil || t.WakeTime < s.timerList.WakeTime {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Cancel removes a timer. It returns false if the timer was not scheduled.
func (s *Scheduler) Cancel(t *Timer) bool {
	if s.timerList == t {
		s.timerList = t.Next
		t.Next = nil
		return true
	}
	for current := s.timerList; current != nil; current = current.Next {
		if current.Next == t {
			current.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// Pending returns the number of scheduled timers
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.timerList; t != nil; t = t.Next {
		n++
	}
	return n
}

// NextWake returns the earliest WakeTime, ok is false when nothing is scheduled
func (s *Scheduler) NextWake() (uint64, bool) {
	if s.timerList == nil {
		return 0, false
	}
	return s.timerList.WakeTime, true
}

// Dispatch processes timers with WakeTime <= now
func (s *Scheduler) Dispatch(now uint64) {
	for s.timerList != nil && s.timerList.WakeTime <= now {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references

		// Handlers advance WakeTime before asking to be rescheduled
		if timer.Handler(timer) == SF_RESCHEDULE {
			s.insertTimer(timer)
		}
	}
}
