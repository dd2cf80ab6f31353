package protocol

// InputBuffer is the receive-side byte store the transport drains. Platform
// code fills it from USB/serial interrupts or reads; the transport consumes
// whole frames and leaves partial ones buffered.
type InputBuffer interface {
	// Data returns the buffered bytes, oldest first.
	Data() []byte

	// Available returns the number of buffered bytes.
	Available() int

	// Pop discards n bytes from the front.
	Pop(n int)
}

// SliceInputBuffer adapts a plain byte slice to InputBuffer. Used in tests
// and anywhere the whole input is already in hand.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// FifoBuffer is a fixed-capacity circular byte buffer for serial I/O. Writes
// beyond capacity drop the excess; the reader is expected to keep up, and a
// receive stream that outruns the frame size limit is garbage anyway.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity-1 bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data, returning how many bytes fit.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % f.size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

// WriteByte appends a single byte, reporting whether it fit.
func (f *FifoBuffer) WriteByte(b byte) bool {
	next := (f.write + 1) % f.size
	if next == f.read {
		return false
	}
	f.buf[f.write] = b
	f.write = next
	return true
}

// Available returns the number of buffered bytes.
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the remaining write capacity.
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Data returns the buffered bytes oldest first. When the buffer has wrapped,
// the two segments are copied into one contiguous slice so the frame scanner
// can index straight through.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	out := make([]byte, f.Available())
	first := f.size - f.read
	copy(out, f.buf[f.read:])
	copy(out[first:], f.buf[:f.write])
	return out
}

// Pop discards n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// Reset empties the buffer.
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
