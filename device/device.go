// Package device assembles the firmware out of its parts: motion axes,
// servos, dispatcher, transport and scheduler, wired to a board
// configuration and a set of hardware collaborators. Targets and the host
// simulator both build a Device and only differ in the collaborators they
// inject.
package device

import (
	"io"

	"sorterfw/boards"
	"sorterfw/core"
	"sorterfw/protocol"
)

// Boot defaults applied to every axis, matching the machine bring-up.
const (
	defaultAcceleration = 20000
	defaultMinSpeed     = 16
	defaultMaxSpeed     = 4000
	defaultRunCurrent   = 31
	defaultHoldCurrent  = 16
	defaultHoldDelay    = 10
	defaultMicrosteps   = 8
)

// inputBufferSize bounds buffered receive bytes between polls. Two maximal
// frames plus slack.
const inputBufferSize = 600

// Collaborators are the hardware-facing implementations injected into the
// assembly.
type Collaborators struct {
	// Steps holds one step backend per axis, cfg.AxisCount() entries.
	Steps []core.StepBackend

	Drivers core.DriverService
	IO      core.DigitalIO

	// Servos may be nil when the board drives none.
	Servos     core.ServoOutput
	ServoCount int

	// Output receives framed response bytes.
	Output io.Writer
}

// Device is one assembled controller.
type Device struct {
	Axes       []*core.Axis
	Servos     []*core.Servo
	Dispatcher *core.Dispatcher
	Transport  *protocol.Transport
	Scheduler  *core.Scheduler

	// Input is the receive FIFO the platform feeds from its byte source.
	Input *protocol.FifoBuffer

	drivers core.DriverService
}

// New assembles a device for cfg. The scheduler's two periodic tasks are
// registered but not started; the caller starts and drives the scheduler
// from its timer source.
func New(cfg boards.Config, collab Collaborators) *Device {
	axes := make([]*core.Axis, cfg.AxisCount())
	for i := range axes {
		var step core.StepBackend
		if i < len(collab.Steps) {
			step = collab.Steps[i]
		}
		axes[i] = core.NewAxis(step, collab.IO)
		axes[i].Initialize()
	}

	servos := make([]*core.Servo, collab.ServoCount)
	for i := range servos {
		servos[i] = core.NewServo(collab.Servos, i)
	}

	descriptor := core.Descriptor{
		FirmwareVersion:    protocol.Version,
		DeviceName:         cfg.DeviceName,
		DeviceAddress:      cfg.DeviceAddress,
		StepperCount:       len(axes),
		DigitalInputCount:  collab.IO.InputCount(),
		DigitalOutputCount: collab.IO.OutputCount(),
		ServoCount:         len(servos),
	}

	dispatcher := core.NewDispatcher(axes, servos, collab.Drivers, collab.IO, descriptor)

	d := &Device{
		Axes:       axes,
		Servos:     servos,
		Dispatcher: dispatcher,
		Transport:  protocol.NewTransport(cfg.DeviceAddress, dispatcher, collab.Output),
		Scheduler:  &core.Scheduler{},
		Input:      protocol.NewFifoBuffer(inputBufferSize),
		drivers:    collab.Drivers,
	}

	d.Scheduler.Register(core.StepTickRate, d.stepgenSweep)
	d.Scheduler.Register(core.MotionUpdateRate, d.motionUpdateSweep)
	return d
}

func (d *Device) stepgenSweep() {
	for _, ax := range d.Axes {
		ax.StepgenTick()
	}
}

func (d *Device) motionUpdateSweep() {
	for _, ax := range d.Axes {
		ax.MotionUpdateTick()
	}
	for _, sv := range d.Servos {
		sv.MotionUpdateTick()
	}
}

// ApplyBootDefaults programs the bring-up state: motion bounds on every
// axis, run/hold current, microstep resolution and enable on every driver.
// Driver faults during bring-up are reported through the debug hook and do
// not abort boot; a chip that is unreachable now may still answer once the
// host starts probing.
func (d *Device) ApplyBootDefaults() {
	for i, ax := range d.Axes {
		ax.SetAcceleration(defaultAcceleration)
		ax.SetSpeedLimits(defaultMinSpeed, defaultMaxSpeed)
		if d.drivers == nil {
			continue
		}
		if err := d.drivers.SetCurrent(i, defaultRunCurrent, defaultHoldCurrent, defaultHoldDelay); err != nil {
			core.DebugPrintln("boot: set current failed on axis " + itoa(i))
		}
		if err := d.drivers.SetMicrosteps(i, defaultMicrosteps); err != nil {
			core.DebugPrintln("boot: set microsteps failed on axis " + itoa(i))
		}
		if err := d.drivers.SetEnabled(i, true); err != nil {
			core.DebugPrintln("boot: enable failed on axis " + itoa(i))
		}
	}
}

// Poll drains complete frames from the input FIFO through the transport.
// Called from the platform main loop; never blocks.
func (d *Device) Poll() {
	d.Transport.Receive(d.Input)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
