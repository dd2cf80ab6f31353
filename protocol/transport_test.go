package protocol

import (
	"bytes"
	"testing"
)

// echoHandler answers every request with the same command and a fixed
// payload, recording what it saw.
type echoHandler struct {
	requests []Message
	payload  []byte
}

func (h *echoHandler) Handle(req Message) Message {
	keep := req
	keep.Payload = append([]byte(nil), req.Payload...)
	h.requests = append(h.requests, keep)
	return Message{
		DeviceAddress: req.DeviceAddress,
		Command:       req.Command,
		Channel:       req.Channel,
		Payload:       h.payload,
	}
}

// stuffFrame builds a complete on-wire frame for msg: serialized, COBS
// stuffed, delimiter terminated.
func stuffFrame(t *testing.T, msg Message) []byte {
	t.Helper()
	var wire [MaxMessage]byte
	raw, err := msg.Serialize(wire[:])
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	dst := make([]byte, MaxEncodedLen(len(raw)))
	enc, err := Encode(dst, raw)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return append(enc, Delimiter)
}

// unstuffResponse decodes the single frame written to out.
func unstuffResponse(t *testing.T, out []byte) Message {
	t.Helper()
	if len(out) == 0 || out[len(out)-1] != Delimiter {
		t.Fatalf("response % X not delimiter terminated", out)
	}
	var dec [MaxMessage]byte
	raw, err := Decode(dec[:], out[:len(out)-1])
	if err != nil {
		t.Fatalf("response does not unstuff: %v", err)
	}
	msg, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("response does not parse: %v", err)
	}
	return msg
}

func TestReceiveDispatchesFrame(t *testing.T) {
	handler := &echoHandler{payload: []byte{0xCA, 0xFE}}
	var out bytes.Buffer
	tr := NewTransport(0x03, handler, &out)

	req := Message{DeviceAddress: 0x03, Command: CmdPing, Channel: 1, Payload: []byte{0x10}}
	tr.Receive(NewSliceInputBuffer(stuffFrame(t, req)))

	if len(handler.requests) != 1 {
		t.Fatalf("handler saw %d requests, want 1", len(handler.requests))
	}
	if got := handler.requests[0]; got.Command != CmdPing || got.Channel != 1 ||
		!bytes.Equal(got.Payload, []byte{0x10}) {
		t.Errorf("handler saw %+v", got)
	}

	resp := unstuffResponse(t, out.Bytes())
	if resp.DeviceAddress != 0x03 || resp.Command != CmdPing ||
		!bytes.Equal(resp.Payload, []byte{0xCA, 0xFE}) {
		t.Errorf("response %+v", resp)
	}

	handled, dropped := tr.Stats()
	if handled != 1 || dropped != 0 {
		t.Errorf("stats handled=%d dropped=%d", handled, dropped)
	}
}

func TestReceiveMultipleFramesInOneBuffer(t *testing.T) {
	handler := &echoHandler{}
	var out bytes.Buffer
	tr := NewTransport(0x00, handler, &out)

	var stream []byte
	for ch := byte(0); ch < 3; ch++ {
		stream = append(stream, stuffFrame(t, Message{Command: CmdIsStopped, Channel: ch})...)
	}
	tr.Receive(NewSliceInputBuffer(stream))

	if len(handler.requests) != 3 {
		t.Fatalf("handler saw %d requests, want 3", len(handler.requests))
	}
	for i, req := range handler.requests {
		if req.Channel != byte(i) {
			t.Errorf("request %d on channel %d", i, req.Channel)
		}
	}
}

func TestReceiveLeavesPartialFrame(t *testing.T) {
	handler := &echoHandler{}
	var out bytes.Buffer
	tr := NewTransport(0x00, handler, &out)

	frame := stuffFrame(t, Message{Command: CmdPing})
	input := NewFifoBuffer(128)

	input.Write(frame[:4])
	tr.Receive(input)
	if len(handler.requests) != 0 {
		t.Fatal("partial frame dispatched")
	}
	if input.Available() != 4 {
		t.Errorf("partial frame not left buffered: %d bytes", input.Available())
	}

	input.Write(frame[4:])
	tr.Receive(input)
	if len(handler.requests) != 1 {
		t.Fatal("completed frame not dispatched")
	}
	if input.Available() != 0 {
		t.Errorf("%d bytes left after a complete frame", input.Available())
	}
}

func TestReceiveDropsSilently(t *testing.T) {
	frame := stuffFrame(t, Message{DeviceAddress: 0x01, Command: CmdPing})
	corrupt := append([]byte(nil), frame...)
	corrupt[2] ^= 0x20

	cases := []struct {
		name    string
		stream  []byte
		dropped uint32
	}{
		{"foreign address", stuffFrame(t, Message{DeviceAddress: 0x09, Command: CmdPing}), 0},
		{"corrupt body", corrupt, 1},
		{"undersized", []byte{0x03, 0x41, 0x42, Delimiter}, 1},
		{"bad stuffing", []byte{0xFF, 0x41, Delimiter}, 1},
		{"idle delimiters", []byte{Delimiter, Delimiter, Delimiter}, 0},
	}
	for _, tc := range cases {
		handler := &echoHandler{}
		var out bytes.Buffer
		tr := NewTransport(0x01, handler, &out)

		tr.Receive(NewSliceInputBuffer(tc.stream))
		if len(handler.requests) != 0 {
			t.Errorf("%s: frame dispatched", tc.name)
		}
		if out.Len() != 0 {
			t.Errorf("%s: transport answered: % X", tc.name, out.Bytes())
		}
		if _, dropped := tr.Stats(); dropped != tc.dropped {
			t.Errorf("%s: dropped = %d, want %d", tc.name, dropped, tc.dropped)
		}
	}
}

func TestReceiveFlushesDelimiterlessNoise(t *testing.T) {
	handler := &echoHandler{}
	var out bytes.Buffer
	tr := NewTransport(0x00, handler, &out)

	noise := make([]byte, maxPending+10)
	for i := range noise {
		noise[i] = 0x55
	}
	input := NewSliceInputBuffer(noise)
	tr.Receive(input)

	if input.Available() != 0 {
		t.Errorf("noise burst left %d bytes buffered", input.Available())
	}
	if _, dropped := tr.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestFlushCallbackAfterResponse(t *testing.T) {
	handler := &echoHandler{}
	var out bytes.Buffer
	tr := NewTransport(0x00, handler, &out)

	flushes := 0
	tr.SetFlushCallback(func() { flushes++ })

	tr.Receive(NewSliceInputBuffer(stuffFrame(t, Message{Command: CmdPing})))
	if flushes != 1 {
		t.Errorf("flush callback ran %d times, want 1", flushes)
	}
}

func TestResponseWithZeroBytesStuffsClean(t *testing.T) {
	// A payload full of zero bytes must never leak a delimiter into the
	// frame body.
	handler := &echoHandler{payload: make([]byte, 32)}
	var out bytes.Buffer
	tr := NewTransport(0x00, handler, &out)

	tr.Receive(NewSliceInputBuffer(stuffFrame(t, Message{Command: CmdGetPosition})))

	body := out.Bytes()
	if len(body) == 0 {
		t.Fatal("no response written")
	}
	if i := bytes.IndexByte(body[:len(body)-1], Delimiter); i >= 0 {
		t.Errorf("delimiter inside stuffed frame at %d", i)
	}
	resp := unstuffResponse(t, body)
	if !bytes.Equal(resp.Payload, make([]byte, 32)) {
		t.Errorf("zero payload mangled: % X", resp.Payload)
	}
}
