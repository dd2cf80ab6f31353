package protocol

// crcPoly is the reflected form of the standard CRC-32 polynomial 0x04C11DB7.
const crcPoly = 0xEDB88320

// Checksum computes the CRC-32 that seals every wire message. Bitwise form,
// initial register all-ones, final complement; kept table-free so the flash
// cost is a loop instead of a kilobyte. Checksum([]byte("123456789")) is
// 0xCBF43926.
func Checksum(data []byte) uint32 {
	crc := ^uint32(0)
	for _, b := range data {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPoly
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

// Verify reports whether data checksums to expected.
func Verify(data []byte, expected uint32) bool {
	return Checksum(data) == expected
}
