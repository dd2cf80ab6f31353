package core

// AxisMode is the motion state of one axis.
type AxisMode uint8

const (
	ModeStopped AxisMode = iota
	ModeMoveToTarget
	ModeRunAtSpeed
	ModeHoming
)

// Axis owns the velocity profile and step generator for one stepper channel.
//
// Two execution contexts touch an Axis: the real-time context runs
// StepgenTick at StepTickRate and MotionUpdateTick at MotionUpdateRate, and
// the command context issues the Move/Home/Set operations. The command
// operations wrap their multi-field state transitions in a critical section
// that excludes the real-time context; the tick bodies themselves never take
// the section and stay short and deterministic.
type Axis struct {
	step    StepBackend
	sensors DigitalIO

	position int32
	mode     AxisMode

	// Remaining signed steps, meaningful only in ModeMoveToTarget.
	targetDistance int32

	// Rates in steps/second, signed. |currentRate| never exceeds maxSpeed
	// and moves toward targetRate by at most accel/MotionUpdateRate per
	// update tick.
	currentRate int32
	targetRate  int32
	minSpeed    int32
	maxSpeed    int32
	accel       uint32

	// DDA fractional-step accumulator, in units of 1/StepTickRate steps.
	phase int32

	homeLine     int
	homePolarity bool
}

// NewAxis creates a stopped axis at position zero. sensors is polled during
// homing and may be nil if Home is never armed.
func NewAxis(step StepBackend, sensors DigitalIO) *Axis {
	return &Axis{step: step, sensors: sensors}
}

// Initialize resets the axis to stopped at position zero with all rates
// cleared. Speed limits and acceleration are left as configured.
func (a *Axis) Initialize() {
	st := suspendMotion()
	a.mode = ModeStopped
	a.position = 0
	a.targetDistance = 0
	a.currentRate = 0
	a.targetRate = 0
	a.phase = 0
	resumeMotion(st)
}

// SetAcceleration updates the acceleration bound in steps/s². Takes effect
// from the next update tick. Out-of-range values are accepted as-is.
func (a *Axis) SetAcceleration(accel uint32) {
	st := suspendMotion()
	a.accel = accel
	resumeMotion(st)
}

// SetSpeedLimits updates the speed band in steps/s. minSpeed is the slowest
// rate the profile will command while moving (crawl rates below it stall the
// motor); maxSpeed caps the profile. Takes effect from the next update tick.
func (a *Axis) SetSpeedLimits(minSpeed, maxSpeed uint32) {
	st := suspendMotion()
	a.minSpeed = int32(minSpeed)
	a.maxSpeed = int32(maxSpeed)
	resumeMotion(st)
}

// MoveSteps arms a relative move of distance steps. Refused unless the axis
// is stopped; moves are never queued or preempted.
func (a *Axis) MoveSteps(distance int32) bool {
	st := suspendMotion()
	defer resumeMotion(st)
	if a.mode != ModeStopped {
		return false
	}
	if distance == 0 {
		return true
	}
	a.mode = ModeMoveToTarget
	a.targetDistance = distance
	if distance > 0 {
		a.targetRate = a.maxSpeed
	} else {
		a.targetRate = -a.maxSpeed
	}
	return true
}

// MoveAtSpeed arms a continuous move at the given signed rate, clamped into
// the speed limit. Valid from any mode; speed zero commands deceleration to
// a stop. Always succeeds.
func (a *Axis) MoveAtSpeed(speed int32) bool {
	st := suspendMotion()
	defer resumeMotion(st)
	if speed > a.maxSpeed {
		speed = a.maxSpeed
	} else if speed < -a.maxSpeed {
		speed = -a.maxSpeed
	}
	if speed == 0 && a.currentRate == 0 {
		// Already at rest: settle immediately instead of waiting for an
		// update tick to notice.
		a.mode = ModeStopped
		a.targetRate = 0
		a.targetDistance = 0
		a.phase = 0
		return true
	}
	a.mode = ModeRunAtSpeed
	a.targetRate = speed
	a.targetDistance = 0
	return true
}

// IsStopped reports whether the axis is at rest.
func (a *Axis) IsStopped() bool {
	st := suspendMotion()
	stopped := a.mode == ModeStopped && a.currentRate == 0
	resumeMotion(st)
	return stopped
}

// Position returns the current step count.
func (a *Axis) Position() int32 {
	st := suspendMotion()
	pos := a.position
	resumeMotion(st)
	return pos
}

// SetPosition rebases the position counter without emitting steps. Refused
// unless the axis is stopped.
func (a *Axis) SetPosition(pos int32) bool {
	st := suspendMotion()
	defer resumeMotion(st)
	if a.mode != ModeStopped {
		return false
	}
	a.position = pos
	a.phase = 0
	return true
}

// Home arms the homing sequence: run at speed until the sensor line reads
// polarity, decelerate, zero the position, stop. Returns immediately after
// arming; completion is observed through IsStopped. Refused unless the axis
// is stopped. A sensor already triggered at arm time stops the axis before
// any step is emitted.
func (a *Axis) Home(speed int32, sensorLine int, polarity bool) bool {
	st := suspendMotion()
	defer resumeMotion(st)
	if a.mode != ModeStopped {
		return false
	}
	if speed > a.maxSpeed {
		speed = a.maxSpeed
	} else if speed < -a.maxSpeed {
		speed = -a.maxSpeed
	}
	a.mode = ModeHoming
	a.targetRate = speed
	a.homeLine = sensorLine
	a.homePolarity = polarity
	return true
}

// Mode returns the current motion mode.
func (a *Axis) Mode() AxisMode {
	st := suspendMotion()
	m := a.mode
	resumeMotion(st)
	return m
}

// StepgenTick runs at StepTickRate from the real-time context. It integrates
// currentRate into the phase accumulator and emits at most one step edge
// when the accumulator crosses a whole step. The long-run average step rate
// converges to currentRate with bounded timing error at any magnitude.
func (a *Axis) StepgenTick() {
	if a.currentRate == 0 {
		return
	}
	a.phase += a.currentRate
	if a.phase >= StepTickRate {
		a.phase -= StepTickRate
		// Saturate so a rate above the tick rate cannot wind the
		// accumulator up and burst steps later.
		if a.phase > StepTickRate {
			a.phase = StepTickRate
		}
		a.emitStep(true)
	} else if a.phase <= -StepTickRate {
		a.phase += StepTickRate
		if a.phase < -StepTickRate {
			a.phase = -StepTickRate
		}
		a.emitStep(false)
	}
}

func (a *Axis) emitStep(forward bool) {
	if a.step != nil {
		a.step.Step(forward)
	}
	if forward {
		a.position++
	} else {
		a.position--
	}
	if a.mode != ModeMoveToTarget {
		return
	}
	if forward {
		a.targetDistance--
	} else {
		a.targetDistance++
	}
	if a.targetDistance == 0 {
		a.mode = ModeStopped
		a.currentRate = 0
		a.targetRate = 0
		a.phase = 0
	}
}

// MotionUpdateTick runs at MotionUpdateRate from the real-time context. It
// recomputes the profile target for the current mode and slews currentRate
// toward it within the acceleration bound.
func (a *Axis) MotionUpdateTick() {
	switch a.mode {
	case ModeStopped:
		return
	case ModeMoveToTarget:
		a.targetRate = a.profileRate()
	case ModeHoming:
		if a.sensors != nil && a.sensors.Read(a.homeLine) == a.homePolarity {
			a.targetRate = 0
		}
	}
	a.slewRate()
	if a.currentRate != 0 || a.targetRate != 0 {
		return
	}
	switch a.mode {
	case ModeRunAtSpeed:
		a.mode = ModeStopped
		a.phase = 0
	case ModeHoming:
		// The sensor edge defines the origin.
		a.position = 0
		a.phase = 0
		a.mode = ModeStopped
	}
}

// profileRate computes the trapezoidal target for the remaining distance:
// the fastest rate from which the axis can still decelerate to rest within
// the remaining steps, clamped into the speed band and signed toward the
// target.
func (a *Axis) profileRate() int32 {
	d := a.targetDistance
	if d == 0 {
		return 0
	}
	neg := d < 0
	if neg {
		d = -d
	}
	// v² = 2·a·d gives the peak speed whose stopping distance is d.
	rate := int32(isqrt64(2 * uint64(a.accel) * uint64(d)))
	if rate > a.maxSpeed {
		rate = a.maxSpeed
	}
	if rate < a.minSpeed {
		rate = a.minSpeed
	}
	if neg {
		rate = -rate
	}
	return rate
}

// slewRate moves currentRate toward targetRate by at most one update tick's
// worth of acceleration. Rates inside the (0, minSpeed) dead band are
// skipped when driving toward a nonzero target, and snapped to zero when
// braking, so stall-prone crawl rates are never emitted.
func (a *Axis) slewRate() {
	delta := int32(a.accel / MotionUpdateRate)
	if delta <= 0 {
		delta = 1
	}
	cur, tgt := a.currentRate, a.targetRate
	if cur < tgt {
		cur += delta
		if cur > tgt {
			cur = tgt
		}
	} else if cur > tgt {
		cur -= delta
		if cur < tgt {
			cur = tgt
		}
	}
	if a.minSpeed > 0 {
		switch {
		case tgt == 0 && cur > -a.minSpeed && cur < a.minSpeed:
			cur = 0
		case tgt > 0 && cur > 0 && cur < a.minSpeed:
			cur = a.minSpeed
			if cur > tgt {
				cur = tgt
			}
		case tgt < 0 && cur < 0 && cur > -a.minSpeed:
			cur = -a.minSpeed
			if cur < tgt {
				cur = tgt
			}
		}
	}
	a.currentRate = cur
}

// isqrt64 is the integer square root, round-down. Bitwise so the motion
// update stays float-free on targets without an FPU.
func isqrt64(v uint64) uint32 {
	var res uint64
	bit := uint64(1) << 62
	for bit > v {
		bit >>= 2
	}
	for bit != 0 {
		if v >= res+bit {
			v -= res + bit
			res = res>>1 + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	return uint32(res)
}
