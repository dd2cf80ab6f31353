package protocol

// Command codes. Requests use codes below 0x80; responses echo the request
// code, with ExceptionFlag ORed in on failure. CmdBad is the fixed response
// code for a request whose command byte is not recognized at all.
const (
	CmdInit byte = 0x01
	CmdPing byte = 0x02

	CmdMoveSteps       byte = 0x10
	CmdMoveAtSpeed     byte = 0x11
	CmdSetSpeedLimits  byte = 0x12
	CmdSetAcceleration byte = 0x13
	CmdIsStopped       byte = 0x14
	CmdGetPosition     byte = 0x15
	CmdSetPosition     byte = 0x16
	CmdHome            byte = 0x17

	CmdDrvSetEnabled    byte = 0x20
	CmdDrvSetMicrosteps byte = 0x21
	CmdDrvSetCurrent    byte = 0x22
	CmdDrvReadRegister  byte = 0x2E
	CmdDrvWriteRegister byte = 0x2F

	CmdDigitalRead  byte = 0x30
	CmdDigitalWrite byte = 0x31

	CmdServoSetEnabled      byte = 0x40
	CmdServoMoveTo          byte = 0x41
	CmdServoSetSpeedLimits  byte = 0x42
	CmdServoSetAcceleration byte = 0x43

	CmdBad byte = 0xFF
)
