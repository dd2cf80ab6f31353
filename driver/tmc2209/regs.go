// Package tmc2209 drives TMC2209 stepper-driver chips over their single-wire
// UART interface and implements the core DriverService for up to four chips
// sharing one bus.
package tmc2209

// TMC2209 Register Addresses
// Based on TMC2209 datasheet Rev. 1.08
// Trinamic Motion Control GmbH & Co. KG
const (
	// General Configuration Registers (0x00-0x0F)
	RegGCONF = 0x00 // Global configuration flags
	RegGSTAT = 0x01 // Global status flags
	RegIFCNT = 0x02 // Interface transmission counter
	RegIOIN  = 0x06 // Reads the state of all input pins

	// Velocity Dependent Driver Feature Control (0x10-0x1F)
	RegIHOLDIRUN  = 0x10 // Driver current control
	RegTPOWERDOWN = 0x11 // Delay after standstill before power down
	RegTSTEP      = 0x12 // Measured time between two steps (read only)
	RegTPWMTHRS   = 0x13 // Upper velocity for StealthChop
	RegTCOOLTHRS  = 0x14 // Lower threshold velocity for CoolStep/StallGuard

	// StallGuard Control (0x40-0x41)
	RegSGTHRS   = 0x40 // StallGuard detection threshold
	RegSGRESULT = 0x41 // StallGuard result (read only)

	// Chopper Control Registers (0x6C-0x7F)
	RegCHOPCONF  = 0x6C // Chopper and driver configuration
	RegDRVSTATUS = 0x6F // Driver status flags (read only)
	RegPWMCONF   = 0x70 // StealthChop PWM chopper configuration
)

// GCONF bits.
const (
	gconfEnSpreadCycle = 1 << 2 // set = SpreadCycle, clear = StealthChop
)

// CHOPCONF fields.
const (
	chopconfReset     = 0x10000053 // datasheet reset value, sane chopper defaults
	chopconfMresShift = 24
	chopconfMresMask  = 0xF << chopconfMresShift
)

// mresForMicrosteps maps a microstep resolution to the CHOPCONF.MRES code
// (256 → 0 down to fullstep → 8). Returns false for a resolution the chip
// does not implement.
func mresForMicrosteps(microsteps uint32) (uint32, bool) {
	switch microsteps {
	case 256:
		return 0, true
	case 128:
		return 1, true
	case 64:
		return 2, true
	case 32:
		return 3, true
	case 16:
		return 4, true
	case 8:
		return 5, true
	case 4:
		return 6, true
	case 2:
		return 7, true
	case 1:
		return 8, true
	}
	return 0, false
}

// iholdIrun packs the IHOLD_IRUN register: hold current in bits 4:0, run
// current in bits 12:8, power-down ramp delay in bits 19:16. Current scale
// codes are 0–31.
func iholdIrun(run, hold, holdDelay uint32) uint32 {
	return (holdDelay&0xF)<<16 | (run&0x1F)<<8 | hold&0x1F
}
