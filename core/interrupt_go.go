//go:build !tinygo

package core

import "sync"

// motionState mirrors the saved interrupt mask on hardware; unused on host.
type motionState uintptr

// On the host the real-time context is a goroutine, so the critical section
// is a mutex shared between the scheduler's tick dispatch and the command
// operations.
var motionMu sync.Mutex

func suspendMotion() motionState {
	motionMu.Lock()
	return 0
}

func resumeMotion(motionState) {
	motionMu.Unlock()
}
