package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeKnownVectors(t *testing.T) {
	testCases := []struct {
		src      []byte
		expected []byte
	}{
		{[]byte{}, []byte{0x01}},
		{[]byte{0x00}, []byte{0x01, 0x01}},
		{[]byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01}},
		{[]byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33}},
		{[]byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44}},
		{[]byte{0x11, 0x00, 0x00, 0x00}, []byte{0x02, 0x11, 0x01, 0x01, 0x01}},
	}

	var dst [600]byte
	for i, tc := range testCases {
		enc, err := Encode(dst[:], tc.src)
		if err != nil {
			t.Errorf("Test case %d: Encode failed: %v", i, err)
			continue
		}
		if !bytes.Equal(enc, tc.expected) {
			t.Errorf("Test case %d: Encode(%v) = %v, want %v", i, tc.src, enc, tc.expected)
		}
	}
}

func TestEncodeMaximalRun(t *testing.T) {
	// 254 non-zero bytes fill one block exactly: a single 0xFF prefix and
	// no trailing empty block.
	src := make([]byte, 254)
	for i := range src {
		src[i] = byte(i + 1)
	}

	var dst [600]byte
	enc, err := Encode(dst[:], src)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(enc) != 255 {
		t.Errorf("Encoded length = %d, want 255", len(enc))
	}
	if enc[0] != 0xFF {
		t.Errorf("Block prefix = 0x%02X, want 0xFF", enc[0])
	}

	// One more byte forces a second block.
	src = append(src, 0xAB)
	enc, err = Encode(dst[:], src)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(enc) != 257 {
		t.Errorf("Encoded length = %d, want 257", len(enc))
	}
	if enc[255] != 0x02 || enc[256] != 0xAB {
		t.Errorf("Second block = % X, want 02 AB", enc[255:])
	}
}

func TestRoundTrip(t *testing.T) {
	// Every payload the protocol can carry must survive encode/decode,
	// whatever mix of zeros it contains.
	patterns := []func(i int) byte{
		func(i int) byte { return 0 },
		func(i int) byte { return byte(i%254) + 1 },
		func(i int) byte { return byte(i % 3) },
		func(i int) byte { return byte(i * 7) },
	}

	var enc [600]byte
	var dec [600]byte
	for size := 0; size <= MaxMessage; size++ {
		for p, pattern := range patterns {
			src := make([]byte, size)
			for i := range src {
				src[i] = pattern(i)
			}

			encoded, err := Encode(enc[:], src)
			if err != nil {
				t.Fatalf("size %d pattern %d: Encode failed: %v", size, p, err)
			}
			for _, b := range encoded {
				if b == Delimiter {
					t.Fatalf("size %d pattern %d: delimiter byte inside encoding", size, p)
				}
			}
			if len(encoded) > MaxEncodedLen(size) {
				t.Fatalf("size %d pattern %d: encoded %d exceeds bound %d",
					size, p, len(encoded), MaxEncodedLen(size))
			}

			decoded, err := Decode(dec[:], encoded)
			if err != nil {
				t.Fatalf("size %d pattern %d: Decode failed: %v", size, p, err)
			}
			if !bytes.Equal(decoded, src) {
				t.Fatalf("size %d pattern %d: round trip mismatch", size, p)
			}
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name string
		src  []byte
	}{
		{"zero length prefix", []byte{0x00, 0x11}},
		{"prefix past end", []byte{0x05, 0x11, 0x22}},
		{"embedded zero", []byte{0x03, 0x11, 0x00}},
	}

	var dst [64]byte
	for _, tc := range testCases {
		if _, err := Decode(dst[:], tc.src); err != ErrFraming {
			t.Errorf("%s: Decode err = %v, want ErrFraming", tc.name, err)
		}
	}
}

func TestDecodeDestinationTooSmall(t *testing.T) {
	var enc [64]byte
	encoded, err := Encode(enc[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var tiny [4]byte
	if _, err := Decode(tiny[:], encoded); err != ErrBufferTooSmall {
		t.Errorf("Decode into small buffer err = %v, want ErrBufferTooSmall", err)
	}
}

func TestEncodeDestinationTooSmall(t *testing.T) {
	var tiny [3]byte
	if _, err := Encode(tiny[:], []byte{1, 2, 3, 4}); err != ErrBufferTooSmall {
		t.Errorf("Encode into small buffer err = %v, want ErrBufferTooSmall", err)
	}
}

func TestMaxEncodedLen(t *testing.T) {
	testCases := []struct {
		n        int
		expected int
	}{
		{0, 1},
		{1, 2},
		{253, 254},
		{254, 255},
		{255, 257},
	}
	for _, tc := range testCases {
		if got := MaxEncodedLen(tc.n); got != tc.expected {
			t.Errorf("MaxEncodedLen(%d) = %d, want %d", tc.n, got, tc.expected)
		}
	}
}
