package protocol

import "errors"

// ErrFraming is returned when a stuffed frame is structurally inconsistent:
// a length prefix pointing past the end of the buffer, or a stray zero byte
// inside what should be zero-free stuffing.
var ErrFraming = errors.New("protocol: malformed frame stuffing")

// COBS zero-elimination stuffing. Every run of non-zero bytes is prefixed
// with its length plus one; a prefix of 0xFF marks a maximal 254-byte run
// with no implied zero after it. The stuffed output contains no zero bytes,
// which frees Delimiter to mark frame boundaries on the wire. The delimiter
// itself is never part of the buffers passed to Encode or Decode.

// Encode stuffs src into dst and returns the written prefix of dst.
func Encode(dst, src []byte) ([]byte, error) {
	if len(dst) == 0 {
		return nil, ErrBufferTooSmall
	}
	codeIdx := 0
	code := byte(1)
	n := 1
	for k := 0; k < len(src); k++ {
		b := src[k]
		if b != 0 {
			if n >= len(dst) {
				return nil, ErrBufferTooSmall
			}
			dst[n] = b
			n++
			code++
		}
		if b == 0 || code == 0xFF {
			dst[codeIdx] = code
			code = 1
			codeIdx = n
			// A finished maximal run at the very end of src opens no
			// further block.
			if b == 0 || k+1 < len(src) {
				if n >= len(dst) {
					return nil, ErrBufferTooSmall
				}
				n++
			}
		}
	}
	if codeIdx < n {
		dst[codeIdx] = code
	}
	return dst[:n], nil
}

// Decode unstuffs src into dst and returns the written prefix of dst. src
// must be a complete frame with the trailing delimiter already stripped.
func Decode(dst, src []byte) ([]byte, error) {
	n := 0
	for i := 0; i < len(src); {
		code := src[i]
		if code == 0 {
			return nil, ErrFraming
		}
		i++
		end := i + int(code) - 1
		if end > len(src) {
			return nil, ErrFraming
		}
		if n+int(code)-1 > len(dst) {
			return nil, ErrBufferTooSmall
		}
		for ; i < end; i++ {
			if src[i] == 0 {
				return nil, ErrFraming
			}
			dst[n] = src[i]
			n++
		}
		if code != 0xFF && i < len(src) {
			if n == len(dst) {
				return nil, ErrBufferTooSmall
			}
			dst[n] = 0
			n++
		}
	}
	return dst[:n], nil
}

// MaxEncodedLen bounds the stuffed size of an n-byte frame.
func MaxEncodedLen(n int) int {
	if n == 0 {
		return 1
	}
	return n + (n+253)/254
}
