package tmc2209

import "errors"

// echoLen is what our own transmission reads back on the shared wire before
// the chip's reply begins.
const echoLen = readReqLen

// ErrBadAxis is returned for an axis index outside the configured set.
var ErrBadAxis = errors.New("tmc2209: axis index out of range")

// EnableFunc drives the active-low nEN line for one axis. The pins belong
// to the board binding; the service only decides the level.
type EnableFunc func(axis int, enable bool)

// Service talks to a set of TMC2209 chips sharing one UART bus and
// implements the core DriverService. Chips are addressed by the per-axis
// slave address set with their MS1/MS2 straps.
type Service struct {
	bus    Bus
	addrs  []uint8
	enable EnableFunc

	// Last written CHOPCONF per axis, the fallback when the chip cannot
	// be read back (write-only wiring or a flaky bus).
	chopconf []uint32
}

// New creates a driver service for len(addrs) chips. enable may be nil when
// the board has no per-axis enable lines.
func New(bus Bus, addrs []uint8, enable EnableFunc) *Service {
	chopconf := make([]uint32, len(addrs))
	for i := range chopconf {
		chopconf[i] = chopconfReset
	}
	return &Service{bus: bus, addrs: addrs, enable: enable, chopconf: chopconf}
}

// Setup applies the bring-up configuration for one chip: StealthChop mode
// and the chopper reset defaults. Called once per axis at boot, before the
// per-axis current and microstep defaults.
func (s *Service) Setup(axis int) error {
	if axis < 0 || axis >= len(s.addrs) {
		return ErrBadAxis
	}
	if err := s.SetStealthChop(axis, true); err != nil {
		return err
	}
	return s.writeReg(s.addrs[axis], RegCHOPCONF, s.chopconf[axis])
}

// SetEnabled drives the axis's nEN line. The TMC2209 enable is active low;
// the EnableFunc receives the logical state and inverts as wired.
func (s *Service) SetEnabled(axis int, enabled bool) error {
	if axis < 0 || axis >= len(s.addrs) {
		return ErrBadAxis
	}
	if s.enable != nil {
		s.enable(axis, enabled)
	}
	return nil
}

// SetMicrosteps rewrites the MRES field of CHOPCONF. The chip is read back
// first so unrelated chopper bits survive; on read failure the last written
// image is patched instead.
func (s *Service) SetMicrosteps(axis int, microsteps uint32) error {
	if axis < 0 || axis >= len(s.addrs) {
		return ErrBadAxis
	}
	mres, ok := mresForMicrosteps(microsteps)
	if !ok {
		return ErrBadMicrosteps
	}
	chopconf, err := s.readReg(s.addrs[axis], RegCHOPCONF)
	if err != nil {
		chopconf = s.chopconf[axis]
	}
	chopconf = chopconf&^uint32(chopconfMresMask) | mres<<chopconfMresShift
	if err := s.writeReg(s.addrs[axis], RegCHOPCONF, chopconf); err != nil {
		return err
	}
	s.chopconf[axis] = chopconf
	return nil
}

// SetCurrent programs the run/hold current scale codes (0–31) and the
// power-down ramp delay.
func (s *Service) SetCurrent(axis int, run, hold, holdDelay uint32) error {
	if axis < 0 || axis >= len(s.addrs) {
		return ErrBadAxis
	}
	return s.writeReg(s.addrs[axis], RegIHOLDIRUN, iholdIrun(run, hold, holdDelay))
}

// SetStealthChop selects the chopper mode: StealthChop (quiet, default) or
// SpreadCycle via the GCONF en_spreadcycle bit.
func (s *Service) SetStealthChop(axis int, enabled bool) error {
	if axis < 0 || axis >= len(s.addrs) {
		return ErrBadAxis
	}
	gconf, err := s.readReg(s.addrs[axis], RegGCONF)
	if err != nil {
		gconf = 0
	}
	if enabled {
		gconf &^= uint32(gconfEnSpreadCycle)
	} else {
		gconf |= gconfEnSpreadCycle
	}
	return s.writeReg(s.addrs[axis], RegGCONF, gconf)
}

// ReadRegister reads one chip register, surfacing bus faults to the caller.
func (s *Service) ReadRegister(axis int, addr uint32) (uint32, error) {
	if axis < 0 || axis >= len(s.addrs) {
		return 0, ErrBadAxis
	}
	return s.readReg(s.addrs[axis], uint8(addr))
}

// WriteRegister writes one chip register.
func (s *Service) WriteRegister(axis int, addr, value uint32) error {
	if axis < 0 || axis >= len(s.addrs) {
		return ErrBadAxis
	}
	return s.writeReg(s.addrs[axis], uint8(addr), value)
}

func (s *Service) writeReg(slave, reg uint8, value uint32) error {
	var frame [writeFrameLen]byte
	writeDatagram(&frame, slave, reg, value)
	if _, err := s.bus.Write(frame[:]); err != nil {
		return err
	}
	// Consume our own echo off the shared wire.
	s.bus.DrainInput()
	return nil
}

func (s *Service) readReg(slave, reg uint8) (uint32, error) {
	s.bus.DrainInput()
	var req [readReqLen]byte
	readRequest(&req, slave, reg)
	if _, err := s.bus.Write(req[:]); err != nil {
		return 0, err
	}

	// The receive stream carries the 4-byte request echo followed by the
	// chip's 8-byte reply.
	var raw [echoLen + readReplyLen]byte
	got := 0
	for got < len(raw) {
		n, err := s.bus.Read(raw[got:])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrReadTimeout
		}
		got += n
	}
	return parseReadReply(raw[echoLen:], reg)
}
