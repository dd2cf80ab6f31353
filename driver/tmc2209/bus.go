package tmc2209

import "errors"

// Datagram sizes on the single-wire UART.
const (
	syncByte       = 0x55
	writeFrameLen  = 8
	readReqLen     = 4
	readReplyLen   = 8
	writeFlag      = 0x80
	replyDataStart = 3 // reg echo at 2, data at 3..6, crc at 7
)

var (
	// ErrReadTimeout is returned when the driver chip does not answer a
	// register read, typically a wiring fault or a wrong slave address.
	ErrReadTimeout = errors.New("tmc2209: no reply to register read")

	// ErrBadReply is returned when a reply arrives mangled: wrong sync,
	// wrong register echo, or a CRC mismatch.
	ErrBadReply = errors.New("tmc2209: malformed register read reply")

	// ErrBadMicrosteps is returned for a resolution the chip cannot do.
	ErrBadMicrosteps = errors.New("tmc2209: unsupported microstep resolution")
)

// Bus is the byte transport under the datagram codec: a UART whose TX and RX
// are joined on the chip's single PDN_UART wire. Read should return what is
// available within a short deadline rather than block; DrainInput discards
// pending receive bytes, which the service uses to consume the echo of its
// own transmissions on the shared wire.
type Bus interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	DrainInput()
}

// crc8 computes the TMC UART checksum: polynomial 0x07, each byte fed
// LSB-first, as specified in the datasheet's access pattern appendix.
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			if (crc>>7)^(b&1) != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
			b >>= 1
		}
	}
	return crc
}

// writeDatagram fills buf with the 8-byte register write frame: sync, slave
// address, register with the write flag, 32-bit value big-endian, CRC.
func writeDatagram(buf *[writeFrameLen]byte, slave, reg uint8, value uint32) {
	buf[0] = syncByte
	buf[1] = slave
	buf[2] = reg | writeFlag
	buf[3] = byte(value >> 24)
	buf[4] = byte(value >> 16)
	buf[5] = byte(value >> 8)
	buf[6] = byte(value)
	buf[7] = crc8(buf[:7])
}

// readRequest fills buf with the 4-byte register read request.
func readRequest(buf *[readReqLen]byte, slave, reg uint8) {
	buf[0] = syncByte
	buf[1] = slave
	buf[2] = reg
	buf[3] = crc8(buf[:3])
}

// parseReadReply validates an 8-byte read reply and extracts the register
// value. The chip answers to the master address 0xFF with the value
// big-endian in bytes 3..6.
func parseReadReply(reply []byte, reg uint8) (uint32, error) {
	if len(reply) != readReplyLen {
		return 0, ErrBadReply
	}
	if reply[0]&0x0F != 0x05 || reply[1] != 0xFF || reply[2] != reg {
		return 0, ErrBadReply
	}
	if crc8(reply[:readReplyLen-1]) != reply[readReplyLen-1] {
		return 0, ErrBadReply
	}
	value := uint32(reply[replyDataStart])<<24 |
		uint32(reply[replyDataStart+1])<<16 |
		uint32(reply[replyDataStart+2])<<8 |
		uint32(reply[replyDataStart+3])
	return value, nil
}
