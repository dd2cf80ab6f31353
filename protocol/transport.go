package protocol

import "io"

// Handler processes one verified request and produces the response. The
// transport only forwards frames that passed framing, addressing and
// checksum, and it sends exactly one response per forwarded frame.
type Handler interface {
	Handle(req Message) Message
}

// Transport owns the device end of the link. Platform code feeds received
// bytes into an InputBuffer and calls Receive from its main loop; Receive
// cuts the stream at delimiter bytes, unstuffs and verifies each frame,
// dispatches it, and writes the stuffed response. It never blocks and never
// stops on a bad frame: framing failures, foreign addresses and checksum
// mismatches are dropped without a response.
type Transport struct {
	address byte
	handler Handler
	w       io.Writer
	flush   func()

	// Frame scratch. One frame is fully processed before the next byte is
	// looked at, so a single set of fixed buffers suffices and the receive
	// path allocates nothing.
	rx    [MaxMessage]byte
	tx    [MaxMessage]byte
	txEnc [MaxMessage + MaxMessage/254 + 2]byte

	framesHandled uint32
	framesDropped uint32
}

// NewTransport creates a device transport answering on address, dispatching
// to handler and writing responses to w.
func NewTransport(address byte, handler Handler, w io.Writer) *Transport {
	return &Transport{
		address: address,
		handler: handler,
		w:       w,
	}
}

// SetFlushCallback registers a hook invoked after each response write, for
// platforms that need an explicit USB flush to push short frames out.
func (t *Transport) SetFlushCallback(flush func()) {
	t.flush = flush
}

// maxPending is the longest stuffed frame that can still decode into a legal
// message. Anything longer buffered without a delimiter is garbage.
var maxPending = MaxEncodedLen(MaxMessage)

// Receive drains all complete frames from input, leaving a trailing partial
// frame buffered for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] != Delimiter {
			continue
		}
		t.processFrame(data[start:i])
		start = i + 1
	}
	if start > 0 {
		input.Pop(start)
	} else if input.Available() > maxPending {
		// No delimiter in sight and already past any legal frame length:
		// discard so a noise burst cannot wedge the buffer full.
		t.framesDropped++
		input.Pop(input.Available())
	}
}

// processFrame handles one delimiter-separated segment.
func (t *Transport) processFrame(raw []byte) {
	if len(raw) == 0 {
		// Idle delimiter between frames.
		return
	}
	decoded, err := Decode(t.rx[:], raw)
	if err != nil {
		t.framesDropped++
		return
	}
	if len(decoded) < MinMessage {
		// Undersized frames are treated as line noise, not addressed to
		// anyone.
		t.framesDropped++
		return
	}
	if decoded[posAddress] != t.address {
		// Not ours. Stay silent so the addressed unit can answer.
		return
	}
	req, err := Deserialize(decoded)
	if err != nil {
		t.framesDropped++
		return
	}
	t.send(t.handler.Handle(req))
	t.framesHandled++
}

func (t *Transport) send(resp Message) {
	wire, err := resp.Serialize(t.tx[:])
	if err != nil {
		// Response payload produced by our own dispatcher exceeded the
		// frame size. Nothing sane to send.
		t.framesDropped++
		return
	}
	enc, err := Encode(t.txEnc[:len(t.txEnc)-1], wire)
	if err != nil {
		t.framesDropped++
		return
	}
	out := t.txEnc[:len(enc)+1]
	out[len(enc)] = Delimiter
	if _, err := t.w.Write(out); err != nil {
		return
	}
	if t.flush != nil {
		t.flush()
	}
}

// Stats reports how many frames were dispatched and how many were dropped
// for framing, addressing or checksum reasons.
func (t *Transport) Stats() (handled, dropped uint32) {
	return t.framesHandled, t.framesDropped
}
