package core

// Servo pulse-width endpoints, microseconds across the 0–180° range.
const (
	servoPulseMin   = 500
	servoPulseMax   = 2500
	servoAngleLimit = 180
)

// Servo eases one hobby-servo channel toward its target angle from the
// motion update tick, using the same bounded-slew shape as the stepper
// profile. Angles are kept in centidegrees internally; rates in
// centidegrees/second.
type Servo struct {
	out     ServoOutput
	channel int

	enabled bool
	angle   int32 // centidegrees
	target  int32
	rate    int32
	minRate int32
	maxRate int32
	accel   int32
}

// NewServo creates a disabled servo at 0° with sane easing defaults.
func NewServo(out ServoOutput, channel int) *Servo {
	return &Servo{
		out:     out,
		channel: channel,
		minRate: 1 * 100,
		maxRate: 360 * 100,
		accel:   720 * 100,
	}
}

// SetEnabled switches the output stage. A disabled channel emits no pulse;
// enabling re-emits the pulse for the current angle.
func (s *Servo) SetEnabled(enabled bool) {
	st := suspendMotion()
	s.enabled = enabled
	resumeMotion(st)
	if s.out != nil {
		s.out.SetEnabled(s.channel, enabled)
		if enabled {
			s.out.SetPulse(s.channel, pulseForAngle(s.angle))
		}
	}
}

// MoveTo eases the servo toward angle in degrees. The dispatcher validates
// the 0–180 range before calling.
func (s *Servo) MoveTo(angle uint8) bool {
	if angle > servoAngleLimit {
		return false
	}
	st := suspendMotion()
	s.target = int32(angle) * 100
	resumeMotion(st)
	return true
}

// SetSpeedLimits updates the easing speed band in degrees/second.
func (s *Servo) SetSpeedLimits(minSpeed, maxSpeed uint32) {
	st := suspendMotion()
	s.minRate = int32(minSpeed) * 100
	s.maxRate = int32(maxSpeed) * 100
	resumeMotion(st)
}

// SetAcceleration updates the easing acceleration in degrees/second².
func (s *Servo) SetAcceleration(accel uint32) {
	st := suspendMotion()
	s.accel = int32(accel) * 100
	resumeMotion(st)
}

// Angle returns the current angle in centidegrees.
func (s *Servo) Angle() int32 {
	st := suspendMotion()
	a := s.angle
	resumeMotion(st)
	return a
}

// AtTarget reports whether the easing has settled.
func (s *Servo) AtTarget() bool {
	st := suspendMotion()
	done := s.angle == s.target && s.rate == 0
	resumeMotion(st)
	return done
}

// MotionUpdateTick runs at MotionUpdateRate from the real-time context.
func (s *Servo) MotionUpdateTick() {
	remaining := s.target - s.angle
	if remaining == 0 && s.rate == 0 {
		return
	}

	// Peak rate from which the remaining sweep can still ramp down to rest.
	want := int32(isqrt64(2 * uint64(s.accel) * uint64(abs32(remaining))))
	if want > s.maxRate {
		want = s.maxRate
	}
	if want < s.minRate {
		want = s.minRate
	}
	if remaining < 0 {
		want = -want
	} else if remaining == 0 {
		want = 0
	}

	delta := s.accel / MotionUpdateRate
	if delta <= 0 {
		delta = 1
	}
	if s.rate < want {
		s.rate += delta
		if s.rate > want {
			s.rate = want
		}
	} else if s.rate > want {
		s.rate -= delta
		if s.rate < want {
			s.rate = want
		}
	}

	move := s.rate / MotionUpdateRate
	if move == 0 && remaining != 0 {
		// Rate too slow for a whole centidegree per tick; creep so the
		// easing always terminates.
		if remaining > 0 {
			move = 1
		} else {
			move = -1
		}
	}
	if (move > 0 && move > remaining) || (move < 0 && move < remaining) {
		move = remaining
	}
	s.angle += move
	if s.angle == s.target {
		s.rate = 0
	}

	if s.enabled && s.out != nil && move != 0 {
		s.out.SetPulse(s.channel, pulseForAngle(s.angle))
	}
}

func pulseForAngle(centideg int32) uint32 {
	if centideg < 0 {
		centideg = 0
	}
	if centideg > servoAngleLimit*100 {
		centideg = servoAngleLimit * 100
	}
	span := int32(servoPulseMax - servoPulseMin)
	return uint32(servoPulseMin + span*centideg/(servoAngleLimit*100))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
