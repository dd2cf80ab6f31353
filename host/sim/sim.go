// Package sim runs the real firmware against virtual hardware: counting
// step backends, scriptable digital lines, emulated driver chips and a
// scheduler driven from wall-clock time. The sorter-sim command serves a
// Machine over a unix socket; client tests attach one directly over an
// in-process pipe.
package sim

import (
	"io"
	"sync"
	"time"

	"sorterfw/boards"
	"sorterfw/core"
	"sorterfw/device"
	"sorterfw/driver/tmc2209"
)

// Machine is one simulated controller.
type Machine struct {
	cfg boards.Config
	dev *device.Device
	bus *tmc2209.LoopbackBus
	drv *tmc2209.Service

	mu      sync.Mutex
	inputs  []bool
	outputs []bool
	enables []bool
	pulses  []uint32

	out *connWriter

	pollMu sync.Mutex // transport scratch is single-caller

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a machine for a board configuration with servoCount virtual
// servos attached. The scheduler is not running yet; call Start.
func New(cfg boards.Config, servoCount int) *Machine {
	m := &Machine{
		cfg:     cfg,
		bus:     tmc2209.NewLoopbackBus(),
		inputs:  make([]bool, len(cfg.InputPins)),
		outputs: make([]bool, len(cfg.OutputPins)),
		enables: make([]bool, cfg.AxisCount()),
		pulses:  make([]uint32, servoCount),
		out:     &connWriter{},
		stop:    make(chan struct{}),
	}
	m.drv = tmc2209.New(m.bus, cfg.DriverAddresses, func(axis int, enable bool) {
		m.mu.Lock()
		m.enables[axis] = enable
		m.mu.Unlock()
	})

	backends := make([]core.StepBackend, cfg.AxisCount())
	for i := range backends {
		backends[i] = nopStep{}
	}
	m.dev = device.New(cfg, device.Collaborators{
		Steps:      backends,
		Drivers:    m.drv,
		IO:         (*machineIO)(m),
		Servos:     (*machineServos)(m),
		ServoCount: servoCount,
		Output:     m.out,
	})
	for axis := range backends {
		if err := m.drv.Setup(axis); err != nil {
			core.DebugPrintln("sim: driver setup failed")
		}
	}
	m.dev.ApplyBootDefaults()
	return m
}

// Start runs the real-time scheduler from wall-clock time until Stop.
func (m *Machine) Start() {
	epoch := time.Now()
	m.dev.Scheduler.Start(0)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.dev.Scheduler.Run(uint64(time.Since(epoch).Microseconds()))
			}
		}
	}()
}

// Stop halts the scheduler goroutine.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Attach serves one connection: bytes in are fed to the firmware transport,
// responses go back out. Returns when the connection ends.
func (m *Machine) Attach(conn io.ReadWriter) error {
	m.out.set(conn)
	defer m.out.set(nil)
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			m.pollMu.Lock()
			m.dev.Input.Write(buf[:n])
			m.dev.Poll()
			m.pollMu.Unlock()
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// SetInput scripts one digital input line, e.g. to trip a homing sensor.
func (m *Machine) SetInput(line int, value bool) {
	m.mu.Lock()
	m.inputs[line] = value
	m.mu.Unlock()
}

// Output reads back one digital output line.
func (m *Machine) Output(line int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outputs[line]
}

// DriverEnabled reads back one axis's enable line.
func (m *Machine) DriverEnabled(axis int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enables[axis]
}

// DriverRegister peeks at an emulated chip register.
func (m *Machine) DriverRegister(axis int, reg uint8) uint32 {
	return m.bus.Register(m.cfg.DriverAddresses[axis], reg)
}

// ServoPulse reads back the last pulse width commanded on a servo channel.
func (m *Machine) ServoPulse(channel int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses[channel]
}

// AxisPosition reads the firmware's step counter for one axis.
func (m *Machine) AxisPosition(axis int) int32 {
	return m.dev.Axes[axis].Position()
}

// nopStep discards step edges; the firmware's own position counter is the
// observable.
type nopStep struct{}

func (nopStep) Step(bool) {}

// machineIO exposes the scripted lines as the firmware's DigitalIO.
type machineIO Machine

func (g *machineIO) Read(line int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inputs[line]
}

func (g *machineIO) Write(line int, value bool) {
	g.mu.Lock()
	g.outputs[line] = value
	g.mu.Unlock()
}

func (g *machineIO) InputCount() int  { return len(g.inputs) }
func (g *machineIO) OutputCount() int { return len(g.outputs) }

// machineServos records commanded pulses as the firmware's ServoOutput.
type machineServos Machine

func (s *machineServos) SetEnabled(channel int, enabled bool) {}

func (s *machineServos) SetPulse(channel int, micros uint32) {
	s.mu.Lock()
	s.pulses[channel] = micros
	s.mu.Unlock()
}

// connWriter routes firmware output to whichever connection is attached and
// swallows it when none is.
type connWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *connWriter) set(w io.Writer) {
	c.mu.Lock()
	c.w = w
	c.mu.Unlock()
}

func (c *connWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	w := c.w
	c.mu.Unlock()
	if w == nil {
		return len(p), nil
	}
	return w.Write(p)
}
