// Package boards holds the per-board configuration value objects: pin
// assignments, driver addressing and identity for each hardware variant of
// the sorter interface. One Config is constructed at startup and injected
// into the device assembly; the core never sees a pin number.
package boards

// UARTPins describes the TMC driver bus wiring.
type UARTPins struct {
	Index int // hardware UART number
	TX    uint8
	RX    uint8
	Baud  uint32
}

// I2CPins describes the servo-controller bus wiring.
type I2CPins struct {
	Index int
	SDA   uint8
	SCL   uint8
}

// Config is the full hardware description of one board.
type Config struct {
	DeviceName    string
	DeviceAddress uint8

	// Per-axis pins, all the same length.
	StepPins []uint8
	DirPins  []uint8

	// Mechanical channel names, for operator tooling.
	AxisNames []string

	// Per-axis driver enable lines (active low). Empty when the board has
	// a single shared enable.
	DriverEnablePins []uint8

	// Shared active-low enable for all drivers; NoPin when absent.
	GlobalEnablePin uint8

	// TMC2209 slave addresses, per axis, as strapped on the board.
	DriverAddresses []uint8

	DriverUART UARTPins

	InputPins  []uint8
	OutputPins []uint8

	ServoI2C        I2CPins
	ServoI2CAddress uint8 // PCA9685 controller address
	ServoCount      int
}

// NoPin marks an absent pin assignment.
const NoPin = 0xFF

// AxisCount returns the number of stepper channels.
func (c *Config) AxisCount() int { return len(c.StepPins) }

// SKRPico is the BTT SKR Pico mainboard driving the sorting head.
func SKRPico() Config {
	return Config{
		DeviceName:    "SKR PICO",
		DeviceAddress: 0x00,

		StepPins: []uint8{11, 6, 19, 14},
		DirPins:  []uint8{10, 5, 28, 13},
		AxisNames: []string{
			"carousel",
			"first_c_channel_rotor",
			"second_c_channel_rotor",
			"third_c_channel_rotor",
		},
		DriverEnablePins: []uint8{12, 7, 2, 15},
		GlobalEnablePin:  NoPin,
		DriverAddresses:  []uint8{0, 2, 1, 3},
		DriverUART:       UARTPins{Index: 1, TX: 8, RX: 9, Baud: 400000},

		InputPins:  []uint8{4, 3, 25, 16},
		OutputPins: []uint8{21, 23, 17, 18, 20},

		ServoI2C:        I2CPins{Index: 0, SDA: 0, SCL: 1},
		ServoI2CAddress: 0x40,
		ServoCount:      0,
	}
}

// FeederMB is the custom feeder mainboard.
func FeederMB() Config {
	return Config{
		DeviceName:    "FEEDER MB",
		DeviceAddress: 0x00,

		StepPins: []uint8{28, 26, 21, 19},
		DirPins:  []uint8{27, 22, 20, 18},
		AxisNames: []string{
			"first_c_channel_rotor",
			"second_c_channel_rotor",
			"third_c_channel_rotor",
			"carousel",
		},
		GlobalEnablePin: 0,
		DriverAddresses: []uint8{0, 1, 2, 3},
		DriverUART:      UARTPins{Index: 0, TX: 16, RX: 17, Baud: 400000},

		InputPins:  []uint8{9, 8, 13, 12},
		OutputPins: []uint8{14, 15},

		ServoI2C:        I2CPins{Index: 1, SDA: 10, SCL: 11},
		ServoI2CAddress: 0x40,
		ServoCount:      0,
	}
}
