// Package protocol implements the sorter interface wire protocol: a framed
// binary request/response format carried over USB-CDC or raw serial. Each
// frame is a fixed header plus payload, sealed with a CRC-32 and COBS-stuffed
// so the zero byte only ever appears as the inter-frame delimiter.
package protocol

import "errors"

// Version identifies the firmware revision reported in the device descriptor.
const Version = "1.0"

// Wire layout constants. A message on the wire, before stuffing, is:
//
//	byte 0              device address
//	byte 1              command (bit 7 = exception flag in responses)
//	byte 2              channel
//	byte 3              payload length
//	bytes 4..4+len-1    payload, multi-byte fields little-endian
//	last 4 bytes        CRC-32 over everything before it, little-endian
const (
	HeaderSize   = 4
	ChecksumSize = 4
	MaxPayload   = 246
	MinMessage   = HeaderSize + ChecksumSize
	MaxMessage   = HeaderSize + MaxPayload + ChecksumSize

	// Delimiter terminates every stuffed frame on the wire and appears
	// nowhere else.
	Delimiter = 0x00

	// ExceptionFlag is set on the echoed command code of a failed request.
	ExceptionFlag = 0x80
)

// Field offsets into the unstuffed wire image.
const (
	posAddress = 0
	posCommand = 1
	posChannel = 2
	posLength  = 3
	posPayload = 4
)

var (
	ErrShortMessage    = errors.New("protocol: message shorter than header plus checksum")
	ErrLengthMismatch  = errors.New("protocol: payload length field disagrees with message size")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds maximum size")
	ErrBufferTooSmall  = errors.New("protocol: destination buffer too small")
	ErrChecksum        = errors.New("protocol: checksum mismatch")
)

// Message is the decoded protocol unit, used for both requests and responses.
type Message struct {
	DeviceAddress byte
	Command       byte
	Channel       byte
	Payload       []byte
}

// Serialize writes the wire image of m into dst, checksum included, and
// returns the written prefix of dst. It fails rather than truncate.
func (m *Message) Serialize(dst []byte) ([]byte, error) {
	if len(m.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	total := HeaderSize + len(m.Payload) + ChecksumSize
	if total > len(dst) {
		return nil, ErrBufferTooSmall
	}
	dst[posAddress] = m.DeviceAddress
	dst[posCommand] = m.Command
	dst[posChannel] = m.Channel
	dst[posLength] = byte(len(m.Payload))
	copy(dst[posPayload:], m.Payload)
	body := HeaderSize + len(m.Payload)
	putUint32(dst[body:], Checksum(dst[:body]))
	return dst[:total], nil
}

// Deserialize parses and verifies an unstuffed wire image. The returned
// message's payload aliases raw; callers that keep it past the next frame
// must copy. The length field must account for every byte between header
// and checksum; a frame carrying a lying length field is rejected rather
// than indexed on trust.
func Deserialize(raw []byte) (Message, error) {
	var m Message
	if len(raw) < MinMessage {
		return m, ErrShortMessage
	}
	n := int(raw[posLength])
	if HeaderSize+n+ChecksumSize != len(raw) {
		return m, ErrLengthMismatch
	}
	body := raw[:HeaderSize+n]
	if !Verify(body, getUint32(raw[HeaderSize+n:])) {
		return m, ErrChecksum
	}
	m.DeviceAddress = raw[posAddress]
	m.Command = raw[posCommand]
	m.Channel = raw[posChannel]
	m.Payload = raw[posPayload : posPayload+n]
	return m, nil
}

// Exception builds the failure response for a request: the echoed command
// with the exception flag set and an empty payload.
func (m *Message) Exception() Message {
	return Message{
		DeviceAddress: m.DeviceAddress,
		Command:       m.Command | ExceptionFlag,
		Channel:       m.Channel,
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
