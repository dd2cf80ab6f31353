//go:build tinygo

package core

import "runtime/interrupt"

// motionState is the saved interrupt mask.
type motionState = interrupt.State

// On hardware the real-time context is the timer interrupt, so command-side
// state transitions briefly mask interrupts. The tick bodies themselves run
// with the mask already held by the dispatching alarm handler.
func suspendMotion() motionState {
	return interrupt.Disable()
}

func resumeMotion(state motionState) {
	interrupt.Restore(state)
}
