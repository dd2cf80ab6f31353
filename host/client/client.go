// Package client implements the host side of the sorter interface protocol:
// framing, request/response matching and a typed wrapper per device command.
// It speaks over any byte stream, so the same client drives real hardware
// through a serial port and the simulator through a unix socket.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"sorterfw/host/serial"
	"sorterfw/protocol"
)

// ErrTimeout is returned when the device does not answer within the
// configured request timeout.
var ErrTimeout = errors.New("client: response timeout")

// ErrClosed is returned for requests after Close.
var ErrClosed = errors.New("client: connection closed")

// CommandError is a failure reported by the device itself: the response
// echoed the request command with the exception flag set, or came back as
// the bad-command code.
type CommandError struct {
	Code byte
}

func (e *CommandError) Error() string {
	if e.Code == protocol.CmdBad {
		return "device: unknown command"
	}
	return fmt.Sprintf("device: command 0x%02X rejected", e.Code&^byte(protocol.ExceptionFlag))
}

// Descriptor is the device identity reported by the init command.
type Descriptor struct {
	FirmwareVersion    string `json:"firmware_version"`
	DeviceName         string `json:"device_name"`
	DeviceAddress      uint8  `json:"device_address"`
	StepperCount       int    `json:"stepper_count"`
	DigitalInputCount  int    `json:"digital_input_count"`
	DigitalOutputCount int    `json:"digital_output_count"`
	ServoCount         int    `json:"servo_count"`
}

// Client is one connection to a device. Requests are serialized: a second
// caller blocks until the first response (or timeout) lands. A background
// reader reassembles frames so responses are never lost between requests.
type Client struct {
	port    io.ReadWriteCloser
	address byte
	timeout time.Duration

	mu sync.Mutex // one request in flight

	resps chan protocol.Message

	closeOnce sync.Once
	done      chan struct{}
}

// DefaultTimeout bounds how long a request waits for its response.
const DefaultTimeout = 2 * time.Second

// New wraps an open byte stream. address selects which device on the link
// this client talks to; responses from other addresses are discarded.
func New(port io.ReadWriteCloser, address byte) *Client {
	c := &Client{
		port:    port,
		address: address,
		timeout: DefaultTimeout,
		resps:   make(chan protocol.Message, 8),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial opens a serial device and connects a client to address.
func Dial(device string, address byte) (*Client, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return New(port, address), nil
}

// DialSocket connects to a simulator's unix socket.
func DialSocket(path string, address byte) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to dial simulator socket: %w", err)
	}
	return New(conn, address), nil
}

// SetTimeout changes the per-request response timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close shuts the connection down. In-flight requests fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.port.Close()
	})
	return err
}

// readLoop reassembles delimiter-terminated frames off the stream and
// delivers verified, address-matching responses to the request path.
func (c *Client) readLoop() {
	var pending []byte
	buf := make([]byte, 512)
	decoded := make([]byte, protocol.MaxMessage)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = c.drainFrames(pending, decoded)
		}
		if err != nil {
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
	}
}

// drainFrames cuts pending at delimiters, parses each complete frame and
// returns the trailing partial frame. Undecodable frames are dropped; the
// request path times out rather than seeing garbage.
func (c *Client) drainFrames(pending, decoded []byte) []byte {
	start := 0
	for i := 0; i < len(pending); i++ {
		if pending[i] != protocol.Delimiter {
			continue
		}
		seg := pending[start:i]
		start = i + 1
		if len(seg) == 0 {
			continue
		}
		wire, err := protocol.Decode(decoded, seg)
		if err != nil {
			continue
		}
		msg, err := protocol.Deserialize(wire)
		if err != nil || msg.DeviceAddress != c.address {
			continue
		}
		msg.Payload = append([]byte(nil), msg.Payload...)
		select {
		case c.resps <- msg:
		default:
			// Reader outran a stalled request path. Drop the oldest.
			select {
			case <-c.resps:
			default:
			}
			c.resps <- msg
		}
	}
	if start == 0 {
		return pending
	}
	return append(pending[:0], pending[start:]...)
}

// roundTrip sends one request and waits for its response, discarding stale
// frames from earlier timed-out requests.
func (c *Client) roundTrip(cmd, channel byte, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	// Flush responses left over from a request that timed out.
	for {
		select {
		case <-c.resps:
			continue
		default:
		}
		break
	}

	msg := protocol.Message{
		DeviceAddress: c.address,
		Command:       cmd,
		Channel:       channel,
		Payload:       payload,
	}
	var wire [protocol.MaxMessage]byte
	raw, err := msg.Serialize(wire[:])
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}
	enc := make([]byte, protocol.MaxEncodedLen(len(raw))+1)
	stuffed, err := protocol.Encode(enc[:len(enc)-1], raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	out := enc[:len(stuffed)+1]
	out[len(stuffed)] = protocol.Delimiter
	if _, err := c.port.Write(out); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	for {
		select {
		case resp := <-c.resps:
			switch resp.Command {
			case cmd:
				if resp.Channel != channel {
					continue // stale response to an earlier request
				}
				return resp.Payload, nil
			case cmd | protocol.ExceptionFlag, protocol.CmdBad:
				return nil, &CommandError{Code: resp.Command}
			default:
				continue
			}
		case <-deadline.C:
			return nil, ErrTimeout
		case <-c.done:
			return nil, ErrClosed
		}
	}
}

// Init soft-stops the device, clears its outputs and returns its descriptor.
func (c *Client) Init() (*Descriptor, error) {
	payload, err := c.roundTrip(protocol.CmdInit, 0, nil)
	if err != nil {
		return nil, err
	}
	desc := &Descriptor{}
	if err := json.Unmarshal(payload, desc); err != nil {
		return nil, fmt.Errorf("failed to parse device descriptor: %w", err)
	}
	return desc, nil
}

// Ping verifies the link by echoing data through the device.
func (c *Client) Ping(data []byte) error {
	echo, err := c.roundTrip(protocol.CmdPing, 0, data)
	if err != nil {
		return err
	}
	if len(echo) != len(data) {
		return fmt.Errorf("ping echoed %d bytes, sent %d", len(echo), len(data))
	}
	for i := range data {
		if echo[i] != data[i] {
			return fmt.Errorf("ping echo corrupted at byte %d", i)
		}
	}
	return nil
}

// MoveSteps starts a relative move. The device reports false when the axis
// is already moving and refused the command.
func (c *Client) MoveSteps(axis int, distance int32) (bool, error) {
	return c.boolCommand(protocol.CmdMoveSteps, axis, le32(uint32(distance)))
}

// MoveAtSpeed runs the axis continuously at the given signed speed, zero to
// decelerate to a stop. The returned flag mirrors the device acknowledgement
// and is always true on a healthy link.
func (c *Client) MoveAtSpeed(axis int, speed int32) (bool, error) {
	return c.boolCommand(protocol.CmdMoveAtSpeed, axis, le32(uint32(speed)))
}

// SetSpeedLimits sets the axis speed envelope in steps per second.
func (c *Client) SetSpeedLimits(axis int, min, max uint32) error {
	_, err := c.roundTrip(protocol.CmdSetSpeedLimits, byte(axis), append(le32(min), le32(max)...))
	return err
}

// SetAcceleration sets the axis acceleration in steps per second squared.
func (c *Client) SetAcceleration(axis int, accel uint32) error {
	_, err := c.roundTrip(protocol.CmdSetAcceleration, byte(axis), le32(accel))
	return err
}

// IsStopped reports whether the axis is at rest.
func (c *Client) IsStopped(axis int) (bool, error) {
	payload, err := c.roundTrip(protocol.CmdIsStopped, byte(axis), nil)
	if err != nil {
		return false, err
	}
	return parseBool(payload)
}

// Position returns the axis position in steps.
func (c *Client) Position(axis int) (int32, error) {
	payload, err := c.roundTrip(protocol.CmdGetPosition, byte(axis), nil)
	if err != nil {
		return 0, err
	}
	v, err := parseU32(payload)
	return int32(v), err
}

// SetPosition rebases the position counter of a stopped axis.
func (c *Client) SetPosition(axis int, position int32) error {
	_, err := c.roundTrip(protocol.CmdSetPosition, byte(axis), le32(uint32(position)))
	return err
}

// Home runs the axis at speed until the given input line reads activeState,
// then stops and zeroes the position.
func (c *Client) Home(axis int, speed int32, sensor uint32, activeState bool) error {
	payload := append(le32(uint32(speed)), le32(sensor)...)
	if activeState {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	_, err := c.roundTrip(protocol.CmdHome, byte(axis), payload)
	return err
}

// WaitStopped polls IsStopped until the axis settles or timeout elapses.
func (c *Client) WaitStopped(axis int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		stopped, err := c.IsStopped(axis)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// DriverSetEnabled switches the axis's stepper driver stage on or off.
func (c *Client) DriverSetEnabled(axis int, enabled bool) error {
	_, err := c.roundTrip(protocol.CmdDrvSetEnabled, byte(axis), le32(boolU32(enabled)))
	return err
}

// DriverSetMicrosteps sets the microstep resolution: 1, 2, 4, 8, 16 or 32.
func (c *Client) DriverSetMicrosteps(axis int, microsteps uint32) error {
	_, err := c.roundTrip(protocol.CmdDrvSetMicrosteps, byte(axis), le32(microsteps))
	return err
}

// DriverSetCurrent programs the run/hold current codes (0-31) and the
// hold-transition delay.
func (c *Client) DriverSetCurrent(axis int, run, hold, holdDelay uint32) error {
	payload := append(append(le32(run), le32(hold)...), le32(holdDelay)...)
	_, err := c.roundTrip(protocol.CmdDrvSetCurrent, byte(axis), payload)
	return err
}

// DriverReadRegister reads a raw driver register.
func (c *Client) DriverReadRegister(axis int, reg uint32) (uint32, error) {
	payload, err := c.roundTrip(protocol.CmdDrvReadRegister, byte(axis), le32(reg))
	if err != nil {
		return 0, err
	}
	return parseU32(payload)
}

// DriverWriteRegister writes a raw driver register.
func (c *Client) DriverWriteRegister(axis int, reg, value uint32) error {
	_, err := c.roundTrip(protocol.CmdDrvWriteRegister, byte(axis), append(le32(reg), le32(value)...))
	return err
}

// DigitalRead samples one input line.
func (c *Client) DigitalRead(line int) (bool, error) {
	payload, err := c.roundTrip(protocol.CmdDigitalRead, byte(line), nil)
	if err != nil {
		return false, err
	}
	return parseBool(payload)
}

// DigitalWrite sets one output line.
func (c *Client) DigitalWrite(line int, value bool) error {
	_, err := c.roundTrip(protocol.CmdDigitalWrite, byte(line), le32(boolU32(value)))
	return err
}

// ServoSetEnabled switches a servo's pulse output on or off.
func (c *Client) ServoSetEnabled(servo int, enabled bool) error {
	v := byte(0)
	if enabled {
		v = 1
	}
	_, err := c.roundTrip(protocol.CmdServoSetEnabled, byte(servo), []byte{v})
	return err
}

// ServoMoveTo starts an eased move to an absolute angle in degrees (0-180).
// Retargeting mid-move is allowed; the easing bends toward the new angle.
func (c *Client) ServoMoveTo(servo int, angle uint8) (bool, error) {
	return c.boolCommand(protocol.CmdServoMoveTo, servo, []byte{angle})
}

// ServoSetSpeedLimits sets the servo speed envelope in centidegrees per
// second.
func (c *Client) ServoSetSpeedLimits(servo int, min, max uint32) error {
	_, err := c.roundTrip(protocol.CmdServoSetSpeedLimits, byte(servo), append(le32(min), le32(max)...))
	return err
}

// ServoSetAcceleration sets the servo acceleration in centidegrees per
// second squared.
func (c *Client) ServoSetAcceleration(servo int, accel uint32) error {
	_, err := c.roundTrip(protocol.CmdServoSetAcceleration, byte(servo), le32(accel))
	return err
}

func (c *Client) boolCommand(cmd byte, channel int, payload []byte) (bool, error) {
	resp, err := c.roundTrip(cmd, byte(channel), payload)
	if err != nil {
		return false, err
	}
	return parseBool(resp)
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func boolU32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func parseBool(payload []byte) (bool, error) {
	v, err := parseU32(payload)
	return v != 0, err
}

func parseU32(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("expected 4-byte payload, got %d", len(payload))
	}
	return uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24, nil
}
