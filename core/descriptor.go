package core

// Descriptor is the static capability summary a unit reports in its INIT
// response. The driver software parses it as JSON to auto-detect the board.
type Descriptor struct {
	FirmwareVersion    string
	DeviceName         string
	DeviceAddress      uint8
	StepperCount       int
	DigitalInputCount  int
	DigitalOutputCount int
	ServoCount         int
}

// Describe renders the descriptor as a JSON object. Built by concatenation
// so the firmware image carries no encoder; the field order is fixed and
// matches what the host tooling expects.
func (d Descriptor) Describe() string {
	return `{"firmware_version":"` + d.FirmwareVersion +
		`","device_name":"` + d.DeviceName +
		`","device_address":` + utoa(uint32(d.DeviceAddress)) +
		`,"stepper_count":` + itoa(d.StepperCount) +
		`,"digital_input_count":` + itoa(d.DigitalInputCount) +
		`,"digital_output_count":` + itoa(d.DigitalOutputCount) +
		`,"servo_count":` + itoa(d.ServoCount) + `}`
}
