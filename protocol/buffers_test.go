package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	if buf.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", buf.Available())
	}

	buf.Pop(2)
	if buf.Available() != 3 {
		t.Errorf("After popping 2, expected 3 bytes available, got %d", buf.Available())
	}
	if data := buf.Data(); data[0] != 3 {
		t.Errorf("After popping 2, expected first byte to be 3, got %d", data[0])
	}

	// Popping more than available empties without panicking
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("After over-pop, expected empty, got %d", buf.Available())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if fifo.Available() != 0 {
		t.Errorf("Empty FIFO should have 0 available, got %d", fifo.Available())
	}

	written := fifo.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}
	if fifo.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", fifo.Available())
	}

	if data := fifo.Data(); !bytes.Equal(data, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Data mismatch: got %v", data)
	}

	fifo.Pop(3)
	if fifo.Available() != 2 {
		t.Errorf("After popping 3, expected 2 available, got %d", fifo.Available())
	}
	if data := fifo.Data(); data[0] != 4 {
		t.Errorf("After popping 3, expected first byte 4, got %d", data[0])
	}

	// One slot stays reserved, so a size-10 FIFO holds 9 bytes.
	fifo.Reset()
	big := make([]byte, 12)
	for i := range big {
		big[i] = byte(i)
	}
	written = fifo.Write(big)
	if written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("Full FIFO should report 0 free, got %d", fifo.Free())
	}
	if fifo.WriteByte(0xAA) {
		t.Error("WriteByte into a full FIFO should report failure")
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(2)

	written := fifo.Write([]byte{5, 6})
	if written != 2 {
		t.Errorf("Expected to write 2 bytes, wrote %d", written)
	}

	// Data must come back contiguous and in order across the wrap.
	if data := fifo.Data(); !bytes.Equal(data, []byte{3, 4, 5, 6}) {
		t.Errorf("Wrap-around data mismatch: got %v", data)
	}

	fifo.Pop(4)
	if fifo.Available() != 0 {
		t.Errorf("Expected empty after popping all, got %d", fifo.Available())
	}
}
