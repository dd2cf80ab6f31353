package tmc2209

import (
	"errors"
	"testing"
)

// fakeBus emulates the shared single-wire UART with a virtual chip behind
// it: everything written echoes back into the receive stream, write frames
// update a register map, and read requests append a generated reply.
type fakeBus struct {
	regs     map[uint8]uint32
	rx       []byte
	writes   [][]byte
	mute     bool // chip stops answering reads
	corrupt  bool // chip answers with a bad CRC
	writeErr error
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: make(map[uint8]uint32)}
}

func (f *fakeBus) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	frame := append([]byte(nil), p...)
	f.writes = append(f.writes, frame)
	f.rx = append(f.rx, frame...) // wire echo

	switch {
	case len(frame) == writeFrameLen && frame[2]&writeFlag != 0:
		reg := frame[2] &^ byte(writeFlag)
		f.regs[reg] = uint32(frame[3])<<24 | uint32(frame[4])<<16 |
			uint32(frame[5])<<8 | uint32(frame[6])
	case len(frame) == readReqLen && !f.mute:
		reg := frame[2]
		value := f.regs[reg]
		reply := []byte{
			0x05, 0xFF, reg,
			byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value),
			0,
		}
		reply[7] = crc8(reply[:7])
		if f.corrupt {
			reply[7] ^= 0xA5
		}
		f.rx = append(f.rx, reply...)
	}
	return len(p), nil
}

func (f *fakeBus) Read(p []byte) (int, error) {
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	return n, nil
}

func (f *fakeBus) DrainInput() { f.rx = nil }

func (f *fakeBus) lastWrite() []byte {
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

func TestWriteDatagramLayout(t *testing.T) {
	bus := newFakeBus()
	svc := New(bus, []uint8{0, 2, 1, 3}, nil)

	if err := svc.SetCurrent(1, 31, 16, 10); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}

	frame := bus.lastWrite()
	if len(frame) != writeFrameLen {
		t.Fatalf("write frame length %d, want %d", len(frame), writeFrameLen)
	}
	if frame[0] != syncByte {
		t.Errorf("sync byte 0x%02X", frame[0])
	}
	if frame[1] != 2 {
		t.Errorf("slave address %d, want 2 for axis 1", frame[1])
	}
	if frame[2] != RegIHOLDIRUN|writeFlag {
		t.Errorf("register byte 0x%02X, want write flag set", frame[2])
	}
	// holdDelay<<16 | run<<8 | hold, big-endian on the wire.
	want := []byte{0x00, 0x0A, 0x1F, 0x10}
	for i, b := range want {
		if frame[3+i] != b {
			t.Errorf("value byte %d = 0x%02X, want 0x%02X", i, frame[3+i], b)
		}
	}
	if frame[7] != crc8(frame[:7]) {
		t.Error("frame CRC does not cover the first seven bytes")
	}
}

func TestReadRequestLayout(t *testing.T) {
	var req [readReqLen]byte
	readRequest(&req, 3, RegDRVSTATUS)
	if req[0] != syncByte || req[1] != 3 || req[2] != RegDRVSTATUS {
		t.Errorf("read request = % X", req)
	}
	if req[3] != crc8(req[:3]) {
		t.Error("read request CRC mismatch")
	}
}

func TestCrc8Detects(t *testing.T) {
	frame := []byte{syncByte, 0x00, RegGCONF | writeFlag, 0, 0, 0, 1}
	sum := crc8(frame)
	frame[6] ^= 0x01
	if crc8(frame) == sum {
		t.Error("single-bit flip not reflected in CRC")
	}
}

func TestReadRegisterRoundTrip(t *testing.T) {
	bus := newFakeBus()
	svc := New(bus, []uint8{0, 1}, nil)

	if err := svc.WriteRegister(0, RegSGTHRS, 0x0000007F); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	got, err := svc.ReadRegister(0, RegSGTHRS)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if got != 0x7F {
		t.Errorf("read back 0x%08X, want 0x7F", got)
	}
}

func TestReadRegisterFaults(t *testing.T) {
	bus := newFakeBus()
	svc := New(bus, []uint8{0}, nil)

	bus.mute = true
	if _, err := svc.ReadRegister(0, RegGCONF); !errors.Is(err, ErrReadTimeout) {
		t.Errorf("silent chip: err = %v, want ErrReadTimeout", err)
	}

	bus.mute = false
	bus.corrupt = true
	if _, err := svc.ReadRegister(0, RegGCONF); !errors.Is(err, ErrBadReply) {
		t.Errorf("corrupt reply: err = %v, want ErrBadReply", err)
	}
}

func TestSetMicrostepsMresMapping(t *testing.T) {
	cases := []struct {
		microsteps uint32
		mres       uint32
	}{
		{1, 8}, {2, 7}, {4, 6}, {8, 5}, {16, 4}, {32, 3},
	}
	for _, c := range cases {
		bus := newFakeBus()
		bus.regs[RegCHOPCONF] = chopconfReset
		svc := New(bus, []uint8{0}, nil)

		if err := svc.SetMicrosteps(0, c.microsteps); err != nil {
			t.Fatalf("SetMicrosteps(%d): %v", c.microsteps, err)
		}
		chopconf := bus.regs[RegCHOPCONF]
		if got := chopconf >> chopconfMresShift & 0xF; got != c.mres {
			t.Errorf("microsteps %d: MRES = %d, want %d", c.microsteps, got, c.mres)
		}
		if chopconf&^uint32(chopconfMresMask) != chopconfReset&^uint32(chopconfMresMask) {
			t.Errorf("microsteps %d: unrelated CHOPCONF bits changed: 0x%08X", c.microsteps, chopconf)
		}
	}
}

func TestSetMicrostepsRejectsOddValues(t *testing.T) {
	bus := newFakeBus()
	svc := New(bus, []uint8{0}, nil)
	if err := svc.SetMicrosteps(0, 3); !errors.Is(err, ErrBadMicrosteps) {
		t.Errorf("microsteps 3: err = %v, want ErrBadMicrosteps", err)
	}
	if len(bus.writes) != 0 {
		t.Error("rejected microstep value still reached the bus")
	}
}

func TestSetMicrostepsUnreadableChip(t *testing.T) {
	// A chip that never answers reads still gets MRES patched into the
	// last known CHOPCONF image.
	bus := newFakeBus()
	bus.mute = true
	svc := New(bus, []uint8{0}, nil)

	if err := svc.SetMicrosteps(0, 16); err != nil {
		t.Fatalf("SetMicrosteps on mute chip: %v", err)
	}
	if got := bus.regs[RegCHOPCONF] >> chopconfMresShift & 0xF; got != 4 {
		t.Errorf("MRES = %d, want 4", got)
	}
}

func TestSetStealthChop(t *testing.T) {
	bus := newFakeBus()
	svc := New(bus, []uint8{0}, nil)

	if err := svc.SetStealthChop(0, false); err != nil {
		t.Fatalf("SetStealthChop: %v", err)
	}
	if bus.regs[RegGCONF]&gconfEnSpreadCycle == 0 {
		t.Error("SpreadCycle bit not set")
	}
	if err := svc.SetStealthChop(0, true); err != nil {
		t.Fatalf("SetStealthChop: %v", err)
	}
	if bus.regs[RegGCONF]&gconfEnSpreadCycle != 0 {
		t.Error("SpreadCycle bit not cleared for StealthChop")
	}
}

func TestSetEnabledDrivesEnableLine(t *testing.T) {
	var gotAxis int
	var gotState bool
	svc := New(newFakeBus(), []uint8{0, 1, 2, 3}, func(axis int, enable bool) {
		gotAxis, gotState = axis, enable
	})

	if err := svc.SetEnabled(2, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if gotAxis != 2 || !gotState {
		t.Errorf("enable line saw axis=%d state=%v", gotAxis, gotState)
	}
	if err := svc.SetEnabled(7, true); !errors.Is(err, ErrBadAxis) {
		t.Errorf("axis 7: err = %v, want ErrBadAxis", err)
	}
}

func TestIholdIrunPacking(t *testing.T) {
	if got := iholdIrun(31, 16, 10); got != 0x000A1F10 {
		t.Errorf("iholdIrun(31,16,10) = 0x%08X, want 0x000A1F10", got)
	}
}
