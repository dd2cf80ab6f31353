//go:build rp2040

// Firmware entry point for the RP2040 mainboards. A hardware timer alarm
// drives the scheduler's two fixed rates in interrupt context, so step
// timing holds even while a command handler sits in a slow TMC bus
// transaction. The main loop only pumps USB bytes through the protocol
// transport and runs the command handlers.
package main

import (
	"machine"

	"sorterfw/core"
	"sorterfw/device"
	"sorterfw/driver/tmc2209"
)

func main() {
	// Clear any watchdog state a previous reset left armed.
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	initUSB()

	cfg := boardConfig()

	steps := make([]core.StepBackend, cfg.AxisCount())
	for i := range steps {
		backend := newPIOStep(uint8(i))
		if err := backend.Init(cfg.StepPins[i], cfg.DirPins[i]); err != nil {
			// A claimed-out PIO block means the pin table outgrew the
			// hardware. Run the axis without a backend rather than boot-loop.
			core.DebugPrintln("pio init failed")
			continue
		}
		steps[i] = backend
	}

	gpio := newBoardIO(cfg)
	bus := newDriverUART(cfg.DriverUART)
	drivers := tmc2209.New(bus, cfg.DriverAddresses, gpio.driveEnable)

	var servoOut core.ServoOutput
	servoCount := cfg.ServoCount
	if servoCount > 0 {
		pca, err := newServoBank(cfg)
		if err != nil {
			core.DebugPrintln("servo controller not responding")
			servoCount = 0
		} else {
			servoOut = pca
		}
	}

	dev := device.New(cfg, device.Collaborators{
		Steps:      steps,
		Drivers:    drivers,
		IO:         gpio,
		Servos:     servoOut,
		ServoCount: servoCount,
		Output:     usbWriter{},
	})

	for axis := 0; axis < cfg.AxisCount(); axis++ {
		if err := drivers.Setup(axis); err != nil {
			core.DebugPrintln("driver setup failed")
		}
	}
	dev.ApplyBootDefaults()

	startAlarm(dev.Scheduler)
	for {
		pumpUSB(dev)
	}
}

// pumpUSB moves pending USB bytes into the receive FIFO and lets the
// transport drain complete frames.
func pumpUSB(dev *device.Device) {
	moved := false
	for machine.Serial.Buffered() > 0 && dev.Input.Free() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		dev.Input.WriteByte(b)
		moved = true
	}
	if moved {
		dev.Poll()
	}
}
