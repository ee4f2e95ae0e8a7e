package xmodem

// crc16Table is the CRC-16/XMODEM lookup table for polynomial 0x1021.
var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		c := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ 0x1021
			} else {
				c <<= 1
			}
		}
		crc16Table[i] = c
	}
}

// updcrc16 folds one byte into a running CRC-16/XMODEM.
func updcrc16(b byte, crc uint16) uint16 {
	return crc<<8 ^ crc16Table[byte(crc>>8)^b]
}

// CRC16 computes CRC-16/XMODEM (init 0, no reflection, no final xor).
// Only the payload is covered; header and sequence bytes are not.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = updcrc16(b, crc)
	}
	return crc
}

// Sum8 computes the standard XMODEM checksum: the payload bytes summed modulo 256.
func Sum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// appendTrailer appends the redundancy bytes for data in the given mode.
func appendTrailer(dst, data []byte, mode Checksum) []byte {
	if mode == ChecksumCRC16 {
		crc := CRC16(data)
		return append(dst, byte(crc>>8), byte(crc))
	}
	return append(dst, Sum8(data))
}

// verifyTrailer reports whether trailer matches data in the given mode.
func verifyTrailer(data, trailer []byte, mode Checksum) bool {
	if mode == ChecksumCRC16 {
		if len(trailer) != 2 {
			return false
		}
		return CRC16(data) == uint16(trailer[0])<<8|uint16(trailer[1])
	}
	return len(trailer) == 1 && Sum8(data) == trailer[0]
}
