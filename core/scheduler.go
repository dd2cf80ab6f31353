package core

// The two fixed rates of the real-time context. StepTickRate paces the DDA
// step generators; MotionUpdateRate paces the velocity-profile updates. The
// ratio keeps the DDA's discretization error within one step over one
// update period.
const (
	StepTickRate     = 20000 // stepgen ticks per second
	MotionUpdateRate = 1000  // motion update ticks per second
)

// Task is one periodic entry in the schedule, kept in a wake-time-ordered
// singly linked list.
type Task struct {
	wake   uint64 // next due time, µs
	period uint64 // µs between runs
	fn     func()
	next   *Task
}

// Scheduler dispatches periodic tasks at fixed rates. The hardware timer
// binding is the only platform edge: targets call Run from an alarm
// interrupt, the host simulator from a driver goroutine. Run holds the
// motion critical section while dispatching, so command-context state
// transitions and tick bodies never interleave.
type Scheduler struct {
	head *Task
}

// Register adds a periodic task running hz times per second. The first run
// happens one period after Start.
func (s *Scheduler) Register(hz uint32, fn func()) *Task {
	t := &Task{period: 1000000 / uint64(hz), fn: fn}
	st := suspendMotion()
	s.insert(t)
	resumeMotion(st)
	return t
}

// insert places t in wake-time order. Caller holds the critical section.
func (s *Scheduler) insert(t *Task) {
	if s.head == nil || t.wake < s.head.wake {
		t.next = s.head
		s.head = t
		return
	}
	cur := s.head
	for cur.next != nil && cur.next.wake <= t.wake {
		cur = cur.next
	}
	t.next = cur.next
	cur.next = t
}

// Start pins every task's first wake time relative to now.
func (s *Scheduler) Start(now uint64) {
	st := suspendMotion()
	for t := s.head; t != nil; t = t.next {
		t.wake = now + t.period
	}
	resumeMotion(st)
}

// Run dispatches every task due at now and reschedules it by its period.
// A task that has fallen behind runs repeatedly until caught up, so no tick
// is lost; the step generators rely on every tick happening.
func (s *Scheduler) Run(now uint64) {
	st := suspendMotion()
	for s.head != nil && s.head.wake <= now {
		t := s.head
		s.head = t.next
		t.next = nil
		t.fn()
		t.wake += t.period
		s.insert(t)
	}
	resumeMotion(st)
}

// NextWake returns the earliest due time, or ^uint64(0) when the schedule
// is empty. Targets use it to program the next alarm.
func (s *Scheduler) NextWake() uint64 {
	st := suspendMotion()
	defer resumeMotion(st)
	if s.head == nil {
		return ^uint64(0)
	}
	return s.head.wake
}
