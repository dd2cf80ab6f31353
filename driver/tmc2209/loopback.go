package tmc2209

// LoopbackBus emulates a chain of driver chips behind the single-wire UART,
// for host-side simulation. Every transmission echoes back into the receive
// stream the way the joined TX/RX wire does; register writes land in a
// per-slave register map and read requests are answered with a well-formed
// reply. Chips start with their documented reset values.
type LoopbackBus struct {
	chips map[uint8]map[uint8]uint32
	rx    []byte
}

// NewLoopbackBus creates an empty chain. Chips materialize on first access,
// so any slave address is answerable.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{chips: make(map[uint8]map[uint8]uint32)}
}

func (b *LoopbackBus) chip(slave uint8) map[uint8]uint32 {
	c, ok := b.chips[slave]
	if !ok {
		c = map[uint8]uint32{RegCHOPCONF: chopconfReset}
		b.chips[slave] = c
	}
	return c
}

// Register peeks at a chip register, for tooling and assertions.
func (b *LoopbackBus) Register(slave, reg uint8) uint32 {
	return b.chip(slave)[reg]
}

// SetRegister pokes a chip register, e.g. to script a fault status.
func (b *LoopbackBus) SetRegister(slave, reg uint8, value uint32) {
	b.chip(slave)[reg] = value
}

func (b *LoopbackBus) Write(p []byte) (int, error) {
	b.rx = append(b.rx, p...) // wire echo

	switch {
	case len(p) == writeFrameLen && p[0] == syncByte && p[2]&writeFlag != 0:
		if crc8(p[:writeFrameLen-1]) != p[writeFrameLen-1] {
			break
		}
		reg := p[2] &^ byte(writeFlag)
		b.chip(p[1])[reg] = uint32(p[3])<<24 | uint32(p[4])<<16 | uint32(p[5])<<8 | uint32(p[6])

	case len(p) == readReqLen && p[0] == syncByte:
		if crc8(p[:readReqLen-1]) != p[readReqLen-1] {
			break
		}
		reg := p[2]
		value := b.chip(p[1])[reg]
		reply := [readReplyLen]byte{0x05, 0xFF, reg,
			byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value), 0}
		reply[readReplyLen-1] = crc8(reply[:readReplyLen-1])
		b.rx = append(b.rx, reply[:]...)
	}
	return len(p), nil
}

func (b *LoopbackBus) Read(p []byte) (int, error) {
	n := copy(p, b.rx)
	b.rx = b.rx[n:]
	return n, nil
}

func (b *LoopbackBus) DrainInput() { b.rx = nil }
