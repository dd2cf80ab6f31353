package core

import "sorterfw/protocol"

// Dispatcher routes verified protocol requests to the motion axes, the
// driver service, the digital lines and the servos, and builds the
// response. One instance owns all per-unit state; nothing is global.
//
// Every command is validated the same way before execution: the payload
// length must match the command's contract exactly and the channel must be
// in range for the target collection. Either failure, an out-of-range
// enumerated argument, or a collaborator fault produces the exception
// response: the echoed command code with bit 7 set and an empty payload.
// An unrecognized command code produces the fixed bad-command code.
type Dispatcher struct {
	axes       []*Axis
	servos     []*Servo
	drivers    DriverService
	io         DigitalIO
	descriptor DescriptorProvider

	// Response payload scratch. The transport serializes the response
	// before the next request is read, so one buffer suffices.
	scratch [protocol.MaxPayload]byte
}

// NewDispatcher wires a dispatcher to its collaborators.
func NewDispatcher(axes []*Axis, servos []*Servo, drivers DriverService, io DigitalIO, descriptor DescriptorProvider) *Dispatcher {
	return &Dispatcher{
		axes:       axes,
		servos:     servos,
		drivers:    drivers,
		io:         io,
		descriptor: descriptor,
	}
}

// Handle processes one request and returns its response. It implements
// protocol.Handler and never fails the transport loop: every internal error
// becomes an exception response.
func (d *Dispatcher) Handle(req protocol.Message) protocol.Message {
	resp := protocol.Message{
		DeviceAddress: req.DeviceAddress,
		Command:       req.Command,
		Channel:       req.Channel,
	}

	switch req.Command {
	case protocol.CmdInit:
		if len(req.Payload) != 0 {
			return req.Exception()
		}
		for _, ax := range d.axes {
			ax.MoveAtSpeed(0)
		}
		for line := 0; line < d.io.OutputCount(); line++ {
			d.io.Write(line, false)
		}
		desc := d.descriptor.Describe()
		if len(desc) > len(d.scratch) {
			desc = desc[:len(d.scratch)]
		}
		resp.Payload = d.scratch[:copy(d.scratch[:], desc)]

	case protocol.CmdPing:
		// Any payload length; echoed verbatim.
		resp.Payload = req.Payload

	case protocol.CmdMoveSteps:
		ax := d.axis(req, 4)
		if ax == nil {
			return req.Exception()
		}
		resp.Payload = d.boolPayload(ax.MoveSteps(int32(leUint32(req.Payload))))

	case protocol.CmdMoveAtSpeed:
		ax := d.axis(req, 4)
		if ax == nil {
			return req.Exception()
		}
		resp.Payload = d.boolPayload(ax.MoveAtSpeed(int32(leUint32(req.Payload))))

	case protocol.CmdSetSpeedLimits:
		ax := d.axis(req, 8)
		if ax == nil {
			return req.Exception()
		}
		ax.SetSpeedLimits(leUint32(req.Payload), leUint32(req.Payload[4:]))

	case protocol.CmdSetAcceleration:
		ax := d.axis(req, 4)
		if ax == nil {
			return req.Exception()
		}
		ax.SetAcceleration(leUint32(req.Payload))

	case protocol.CmdIsStopped:
		ax := d.axis(req, 0)
		if ax == nil {
			return req.Exception()
		}
		resp.Payload = d.boolPayload(ax.IsStopped())

	case protocol.CmdGetPosition:
		ax := d.axis(req, 0)
		if ax == nil {
			return req.Exception()
		}
		resp.Payload = d.uint32Payload(uint32(ax.Position()))

	case protocol.CmdSetPosition:
		ax := d.axis(req, 4)
		if ax == nil || !ax.SetPosition(int32(leUint32(req.Payload))) {
			return req.Exception()
		}

	case protocol.CmdHome:
		ax := d.axis(req, 9)
		if ax == nil {
			return req.Exception()
		}
		speed := int32(leUint32(req.Payload))
		sensor := int(leUint32(req.Payload[4:]))
		polarity := req.Payload[8] != 0
		if sensor < 0 || sensor >= d.io.InputCount() {
			return req.Exception()
		}
		if !ax.Home(speed, sensor, polarity) {
			return req.Exception()
		}

	case protocol.CmdDrvSetEnabled:
		if d.axis(req, 4) == nil {
			return req.Exception()
		}
		if d.drivers.SetEnabled(int(req.Channel), leUint32(req.Payload) != 0) != nil {
			return req.Exception()
		}

	case protocol.CmdDrvSetMicrosteps:
		if d.axis(req, 4) == nil {
			return req.Exception()
		}
		ms := leUint32(req.Payload)
		switch ms {
		case 1, 2, 4, 8, 16, 32:
		default:
			return req.Exception()
		}
		if d.drivers.SetMicrosteps(int(req.Channel), ms) != nil {
			return req.Exception()
		}

	case protocol.CmdDrvSetCurrent:
		if d.axis(req, 12) == nil {
			return req.Exception()
		}
		run := leUint32(req.Payload)
		hold := leUint32(req.Payload[4:])
		holdDelay := leUint32(req.Payload[8:])
		if d.drivers.SetCurrent(int(req.Channel), run, hold, holdDelay) != nil {
			return req.Exception()
		}

	case protocol.CmdDrvReadRegister:
		if d.axis(req, 4) == nil {
			return req.Exception()
		}
		value, err := d.drivers.ReadRegister(int(req.Channel), leUint32(req.Payload))
		if err != nil {
			return req.Exception()
		}
		resp.Payload = d.uint32Payload(value)

	case protocol.CmdDrvWriteRegister:
		if d.axis(req, 8) == nil {
			return req.Exception()
		}
		addr := leUint32(req.Payload)
		value := leUint32(req.Payload[4:])
		if d.drivers.WriteRegister(int(req.Channel), addr, value) != nil {
			return req.Exception()
		}

	case protocol.CmdDigitalRead:
		if len(req.Payload) != 0 || int(req.Channel) >= d.io.InputCount() {
			return req.Exception()
		}
		resp.Payload = d.boolPayload(d.io.Read(int(req.Channel)))

	case protocol.CmdDigitalWrite:
		if len(req.Payload) != 4 || int(req.Channel) >= d.io.OutputCount() {
			return req.Exception()
		}
		d.io.Write(int(req.Channel), leUint32(req.Payload) != 0)

	case protocol.CmdServoSetEnabled:
		sv := d.servo(req, 1)
		if sv == nil {
			return req.Exception()
		}
		sv.SetEnabled(req.Payload[0] != 0)

	case protocol.CmdServoMoveTo:
		sv := d.servo(req, 1)
		if sv == nil || req.Payload[0] > servoAngleLimit {
			return req.Exception()
		}
		resp.Payload = d.boolPayload(sv.MoveTo(req.Payload[0]))

	case protocol.CmdServoSetSpeedLimits:
		sv := d.servo(req, 8)
		if sv == nil {
			return req.Exception()
		}
		sv.SetSpeedLimits(leUint32(req.Payload), leUint32(req.Payload[4:]))

	case protocol.CmdServoSetAcceleration:
		sv := d.servo(req, 4)
		if sv == nil {
			return req.Exception()
		}
		sv.SetAcceleration(leUint32(req.Payload))

	default:
		resp.Command = protocol.CmdBad
	}

	return resp
}

// axis validates the payload length and axis channel, returning nil when
// the request must be answered with an exception.
func (d *Dispatcher) axis(req protocol.Message, payloadLen int) *Axis {
	if len(req.Payload) != payloadLen || int(req.Channel) >= len(d.axes) {
		return nil
	}
	return d.axes[req.Channel]
}

func (d *Dispatcher) servo(req protocol.Message, payloadLen int) *Servo {
	if len(req.Payload) != payloadLen || int(req.Channel) >= len(d.servos) {
		return nil
	}
	return d.servos[req.Channel]
}

// boolPayload encodes the 4-byte little-endian boolean used by query and
// move responses.
func (d *Dispatcher) boolPayload(v bool) []byte {
	if v {
		return d.uint32Payload(1)
	}
	return d.uint32Payload(0)
}

func (d *Dispatcher) uint32Payload(v uint32) []byte {
	d.scratch[0] = byte(v)
	d.scratch[1] = byte(v >> 8)
	d.scratch[2] = byte(v >> 16)
	d.scratch[3] = byte(v >> 24)
	return d.scratch[:4]
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
