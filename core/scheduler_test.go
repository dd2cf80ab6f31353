package core

import "testing"

func TestSchedulerRates(t *testing.T) {
	var sched Scheduler
	var fast, slow int
	sched.Register(1000, func() { fast++ })
	sched.Register(50, func() { slow++ })
	sched.Start(0)

	// Drive one simulated second in 100µs slices.
	for now := uint64(0); now <= 1000000; now += 100 {
		sched.Run(now)
	}

	if fast != 1000 {
		t.Errorf("1kHz task ran %d times in one second", fast)
	}
	if slow != 50 {
		t.Errorf("50Hz task ran %d times in one second", slow)
	}
}

func TestSchedulerCatchesUp(t *testing.T) {
	var sched Scheduler
	var runs int
	sched.Register(1000, func() { runs++ })
	sched.Start(0)

	// A single late Run must replay every missed period.
	sched.Run(10000)
	if runs != 10 {
		t.Errorf("late dispatch ran %d ticks, want 10", runs)
	}
}

func TestSchedulerOrdering(t *testing.T) {
	var sched Scheduler
	var order []int
	sched.Register(100, func() { order = append(order, 1) })
	sched.Register(100, func() { order = append(order, 2) })
	sched.Start(0)

	sched.Run(10000)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("dispatch order = %v, want registration order", order)
	}
}

func TestSchedulerNextWake(t *testing.T) {
	var sched Scheduler
	if sched.NextWake() != ^uint64(0) {
		t.Error("empty schedule must report no wake time")
	}
	sched.Register(1000, func() {})
	sched.Start(500)
	if got := sched.NextWake(); got != 1500 {
		t.Errorf("NextWake = %d, want 1500", got)
	}
}
