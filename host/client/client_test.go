package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorterfw/boards"
	"sorterfw/driver/tmc2209"
	"sorterfw/host/sim"
	"sorterfw/protocol"
)

// startMachine wires a client to a simulated controller over an in-process
// pipe. The simulator runs the real firmware core on wall-clock time, so
// motion tests observe genuine profile behavior.
func startMachine(t *testing.T) (*Client, *sim.Machine) {
	t.Helper()
	m := sim.New(boards.FeederMB(), 2)
	m.Start()
	devEnd, hostEnd := net.Pipe()
	go m.Attach(devEnd)

	c := New(hostEnd, 0)
	c.SetTimeout(2 * time.Second)
	t.Cleanup(func() {
		c.Close()
		m.Stop()
	})
	return c, m
}

func TestInitDescriptor(t *testing.T) {
	c, _ := startMachine(t)

	desc, err := c.Init()
	require.NoError(t, err)
	assert.Equal(t, "FEEDER MB", desc.DeviceName)
	assert.Equal(t, protocol.Version, desc.FirmwareVersion)
	assert.Equal(t, 4, desc.StepperCount)
	assert.Equal(t, 4, desc.DigitalInputCount)
	assert.Equal(t, 2, desc.DigitalOutputCount)
	assert.Equal(t, 2, desc.ServoCount)
}

func TestPing(t *testing.T) {
	c, _ := startMachine(t)
	require.NoError(t, c.Ping([]byte{0x01, 0x55, 0xFE}))
	require.NoError(t, c.Ping(nil))
}

func TestMoveStepsCompletes(t *testing.T) {
	c, m := startMachine(t)

	ok, err := c.MoveSteps(1, 300)
	require.NoError(t, err)
	require.True(t, ok, "move refused on an idle axis")

	require.NoError(t, c.WaitStopped(1, 3*time.Second))

	pos, err := c.Position(1)
	require.NoError(t, err)
	assert.Equal(t, int32(300), pos)
	assert.Equal(t, int32(300), m.AxisPosition(1))
}

func TestMoveRefusedWhileMoving(t *testing.T) {
	c, _ := startMachine(t)

	ok, err := c.MoveSteps(0, 4000)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.MoveSteps(0, 10)
	require.NoError(t, err)
	assert.False(t, ok, "second move accepted while the first is running")

	// Abort and let the axis settle so the machine winds down cleanly.
	_, err = c.MoveAtSpeed(0, 0)
	require.NoError(t, err)
	require.NoError(t, c.WaitStopped(0, 3*time.Second))
}

func TestHomeZeroesPosition(t *testing.T) {
	c, m := startMachine(t)

	require.NoError(t, c.Home(2, -500, 2, true))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, m.AxisPosition(2) < 0, "axis not moving toward the sensor")

	m.SetInput(2, true)
	require.NoError(t, c.WaitStopped(2, 3*time.Second))
	m.SetInput(2, false)

	pos, err := c.Position(2)
	require.NoError(t, err)
	assert.Equal(t, int32(0), pos, "homing did not zero the position")
}

func TestSetPosition(t *testing.T) {
	c, _ := startMachine(t)

	require.NoError(t, c.SetPosition(3, -1200))
	pos, err := c.Position(3)
	require.NoError(t, err)
	assert.Equal(t, int32(-1200), pos)
}

func TestDigitalLines(t *testing.T) {
	c, m := startMachine(t)

	require.NoError(t, c.DigitalWrite(1, true))
	assert.True(t, m.Output(1))
	require.NoError(t, c.DigitalWrite(1, false))
	assert.False(t, m.Output(1))

	v, err := c.DigitalRead(0)
	require.NoError(t, err)
	assert.False(t, v)

	m.SetInput(0, true)
	v, err = c.DigitalRead(0)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestDriverCommands(t *testing.T) {
	c, m := startMachine(t)

	require.NoError(t, c.DriverSetMicrosteps(0, 16))
	chopconf, err := c.DriverReadRegister(0, uint32(tmc2209.RegCHOPCONF))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), chopconf>>24&0xF, "MRES field for 16 microsteps")

	require.NoError(t, c.DriverSetCurrent(0, 31, 16, 10))
	assert.Equal(t, uint32(0x000A1F10), m.DriverRegister(0, tmc2209.RegIHOLDIRUN))

	require.NoError(t, c.DriverSetEnabled(0, false))
	assert.False(t, m.DriverEnabled(0))
	require.NoError(t, c.DriverSetEnabled(0, true))
	assert.True(t, m.DriverEnabled(0))

	require.NoError(t, c.DriverWriteRegister(1, uint32(tmc2209.RegSGTHRS), 0x40))
	v, err := c.DriverReadRegister(1, uint32(tmc2209.RegSGTHRS))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x40), v)
}

func TestDeviceRejectionSurfacesAsCommandError(t *testing.T) {
	c, _ := startMachine(t)

	err := c.DriverSetMicrosteps(0, 3)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "err = %v", err)
	assert.Equal(t, protocol.CmdDrvSetMicrosteps|protocol.ExceptionFlag, cmdErr.Code)

	_, err = c.Position(9)
	require.True(t, errors.As(err, &cmdErr), "err = %v", err)
}

func TestUnknownCommand(t *testing.T) {
	c, _ := startMachine(t)

	_, err := c.roundTrip(0x6E, 0, nil)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "err = %v", err)
	assert.Equal(t, protocol.CmdBad, cmdErr.Code)
}

func TestServoMove(t *testing.T) {
	c, m := startMachine(t)

	require.NoError(t, c.ServoSetEnabled(0, true))
	ok, err := c.ServoMoveTo(0, 90)
	require.NoError(t, err)
	require.True(t, ok)

	deadline := time.Now().Add(3 * time.Second)
	for m.ServoPulse(0) != 1500 {
		if time.Now().After(deadline) {
			t.Fatalf("servo pulse settled at %dµs, want 1500", m.ServoPulse(0))
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, err = c.ServoMoveTo(0, 200)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "err = %v", err)
}

// silentPort swallows writes and never produces data, like an unplugged
// device.
type silentPort struct {
	done chan struct{}
}

func (p *silentPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *silentPort) Read(b []byte) (int, error) {
	<-p.done
	return 0, errors.New("closed")
}

func (p *silentPort) Close() error {
	close(p.done)
	return nil
}

func TestResponseTimeout(t *testing.T) {
	c := New(&silentPort{done: make(chan struct{})}, 0)
	c.SetTimeout(50 * time.Millisecond)
	defer c.Close()

	err := c.Ping([]byte{1})
	require.True(t, errors.Is(err, ErrTimeout), "err = %v", err)
}
