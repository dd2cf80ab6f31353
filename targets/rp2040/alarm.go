//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"

	"sorterfw/core"
)

// alarmScheduler is the schedule TIMER ALARM0 drives. Written once before
// the interrupt is enabled.
var alarmScheduler *core.Scheduler

// startAlarm pins the schedule to now and hands it to ALARM0. From here on
// every due task runs in interrupt context; thread code reaches shared
// motion state only through the motion critical section, so a stalled main
// loop can no longer starve the step generators.
func startAlarm(s *core.Scheduler) {
	alarmScheduler = s
	s.Start(hardwareUptime())
	intr := interrupt.New(rp.IRQ_TIMER_IRQ_0, timerAlarm)
	rp.TIMER.INTE.SetBits(rp.TIMER_INTE_ALARM_0)
	intr.Enable()
	armAlarm()
}

// armAlarm programs ALARM0 for the schedule's next wake. The comparator
// matches the low timer word only, so a wake that slipped into the past
// would not fire for over an hour; run the due tasks inline until the armed
// wake is ahead of the clock.
func armAlarm() {
	for {
		wake := alarmScheduler.NextWake()
		rp.TIMER.ALARM0.Set(uint32(wake))
		if hardwareUptime() < wake {
			return
		}
		alarmScheduler.Run(hardwareUptime())
	}
}

func timerAlarm(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(rp.TIMER_INTR_ALARM_0)
	alarmScheduler.Run(hardwareUptime())
	armAlarm()
}
