package core

// Collaborator interfaces consumed by the motion core. Implementations live
// in the board bindings (targets/), the TMC2209 driver service, and the
// simulator; the core itself stays hardware-agnostic.

// StepBackend emits physical step edges for one axis. Exactly one edge is
// produced per call. Implementations must be fast enough to run from the
// stepgen tick (GPIO toggles or a PIO FIFO push, not a bus transaction).
type StepBackend interface {
	// Step emits one step edge. forward selects the direction signal.
	Step(forward bool)
}

// DriverService controls the external motor-driver chips. axis indexing
// matches the motion axes. Register reads can fail on a noisy or absent
// single-wire bus; the dispatcher reports such failures to the host.
type DriverService interface {
	SetEnabled(axis int, enabled bool) error
	SetMicrosteps(axis int, microsteps uint32) error
	SetCurrent(axis int, run, hold, holdDelay uint32) error
	ReadRegister(axis int, addr uint32) (uint32, error)
	WriteRegister(axis int, addr, value uint32) error
}

// DigitalIO exposes the board's digital lines. Input and output lines are
// separate index spaces with independent counts. Read is also polled from
// the motion update tick while an axis is homing, so it must not block.
type DigitalIO interface {
	Read(line int) bool
	Write(line int, value bool)
	InputCount() int
	OutputCount() int
}

// DescriptorProvider supplies the capability descriptor returned by INIT.
type DescriptorProvider interface {
	Describe() string
}

// ServoOutput drives hobby-servo PWM channels. Pulse widths are in
// microseconds; a disabled channel emits no pulse.
type ServoOutput interface {
	SetEnabled(channel int, enabled bool)
	SetPulse(channel int, micros uint32)
}
