//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/pca9685"

	"sorterfw/boards"
)

// Standard RC servo frame: 50Hz, pulse width encodes the angle.
const (
	servoPeriodNs = 20_000_000
	servoPeriodUs = 20_000
)

// servoBank drives the hobby servos through a PCA9685 PWM expander on the
// board's I2C bus. The chip's 12-bit resolution gives ~5µs pulse steps,
// under half a degree.
type servoBank struct {
	dev pca9685.Dev
}

func newServoBank(cfg boards.Config) (*servoBank, error) {
	bus := machine.I2C0
	if cfg.ServoI2C.Index == 1 {
		bus = machine.I2C1
	}
	err := bus.Configure(machine.I2CConfig{
		SDA: machine.Pin(cfg.ServoI2C.SDA),
		SCL: machine.Pin(cfg.ServoI2C.SCL),
	})
	if err != nil {
		return nil, err
	}

	dev := pca9685.New(bus, cfg.ServoI2CAddress)
	if err := dev.IsConnected(); err != nil {
		return nil, err
	}
	if err := dev.Configure(pca9685.PWMConfig{Period: servoPeriodNs}); err != nil {
		return nil, err
	}
	bank := &servoBank{dev: dev}
	for ch := 0; ch < cfg.ServoCount; ch++ {
		bank.SetEnabled(ch, false)
	}
	return bank, nil
}

// SetEnabled gates the pulse output; a disabled channel idles low and the
// servo goes limp.
func (s *servoBank) SetEnabled(channel int, enabled bool) {
	if !enabled {
		s.dev.Set(uint8(channel), 0)
	}
}

// SetPulse commands a pulse width in µs, converted to the chip's 12-bit
// on-time.
func (s *servoBank) SetPulse(channel int, micros uint32) {
	counts := micros * 4096 / servoPeriodUs
	if counts > 4095 {
		counts = 4095
	}
	s.dev.Set(uint8(channel), counts)
}
