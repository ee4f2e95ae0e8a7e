// Package xmodem implements the XMODEM and XMODEM-1K file transfer protocols.
//
// XMODEM is a half-duplex, byte-oriented protocol for unreliable serial links.
// The receiver chooses the integrity scheme (8-bit additive checksum or
// CRC-16/XMODEM) by sending NAK or 'C'; the sender then transmits fixed-size
// blocks and retransmits each one until it is acknowledged.
//
// The package drives a single duplex byte channel and never sets timeouts on
// it. Callers configure the channel's read timeout before starting a transfer;
// a read that times out is counted against the error budget instead of being
// treated as fatal.
package xmodem

import "fmt"

// Ward Christensen control characters
const (
	SOH     = 0x01 // Start of 128-byte block
	STX     = 0x02 // Start of 1024-byte block
	EOT     = 0x04 // End of transmission
	ACK     = 0x06
	NAK     = 0x15 // Negative ack, also requests the standard checksum
	CAN     = 0x18
	CPMEOF  = 0x1A // Default pad byte
	WANTCRC = 0x43 // Send C not NAK to get crc not checksum
)

// Checksum selects the redundancy appended to each block.
type Checksum int

const (
	// ChecksumStandard is the 8-bit wraparound sum of the payload.
	ChecksumStandard Checksum = iota

	// ChecksumCRC16 is CRC-16/XMODEM over the payload, sent big-endian.
	ChecksumCRC16
)

func (c Checksum) String() string {
	switch c {
	case ChecksumStandard:
		return "checksum"
	case ChecksumCRC16:
		return "CRC-16"
	default:
		return fmt.Sprintf("Checksum(%d)", int(c))
	}
}

// trailerLen is the number of redundancy bytes after the payload.
func (c Checksum) trailerLen() int {
	if c == ChecksumCRC16 {
		return 2
	}
	return 1
}

// requestByte is what a receiver sends to ask for this mode.
func (c Checksum) requestByte() byte {
	if c == ChecksumCRC16 {
		return WANTCRC
	}
	return NAK
}

// BlockLength is the payload size of a block.
type BlockLength int

const (
	// BlockStandard is classic XMODEM, 128 bytes introduced by SOH.
	BlockStandard BlockLength = 128

	// BlockOneK is XMODEM-1K, 1024 bytes introduced by STX.
	BlockOneK BlockLength = 1024
)

func (l BlockLength) String() string {
	switch l {
	case BlockStandard:
		return "128"
	case BlockOneK:
		return "1k"
	default:
		return fmt.Sprintf("BlockLength(%d)", int(l))
	}
}

// marker returns the header byte for the block length.
func (l BlockLength) marker() byte {
	if l == BlockOneK {
		return STX
	}
	return SOH
}

// Valid reports whether l is one of the two supported lengths.
func (l BlockLength) Valid() bool {
	return l == BlockStandard || l == BlockOneK
}

// controlNames gives readable names for logging.
var controlNames = map[byte]string{
	SOH:     "SOH",
	STX:     "STX",
	EOT:     "EOT",
	ACK:     "ACK",
	NAK:     "NAK",
	CAN:     "CAN",
	WANTCRC: "C",
}

// ControlName returns the mnemonic for a control byte, or its hex value.
func ControlName(b byte) string {
	if name, ok := controlNames[b]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", b)
}
