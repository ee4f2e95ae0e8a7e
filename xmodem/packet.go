package xmodem

import (
	"fmt"
	"io"
)

// MaxFrameLen is the largest frame on the wire: STX, seq, ~seq, 1024 bytes, CRC.
const MaxFrameLen = 3 + int(BlockOneK) + 2

// blockData is one of the two fixed-capacity payload buffers.
type blockData interface {
	bytes() []byte
	length() BlockLength
}

type block128 [BlockStandard]byte

type block1K [BlockOneK]byte

func (b *block128) bytes() []byte       { return b[:] }
func (b *block128) length() BlockLength { return BlockStandard }
func (b *block1K) bytes() []byte        { return b[:] }
func (b *block1K) length() BlockLength  { return BlockOneK }

// Packet is one XMODEM block.
//
// Seq is the wire sequence byte (the block counter modulo 256). The payload
// is always exactly 128 or 1024 bytes.
type Packet struct {
	Seq  byte
	data blockData
}

// NewPacket allocates a packet of length l with every payload byte set to pad.
func NewPacket(l BlockLength, pad byte) *Packet {
	var data blockData
	if l == BlockOneK {
		data = new(block1K)
	} else {
		data = new(block128)
	}
	p := &Packet{data: data}
	p.Fill(pad)
	return p
}

// Payload returns the packet's payload buffer.
func (p *Packet) Payload() []byte {
	return p.data.bytes()
}

// Length returns the payload length.
func (p *Packet) Length() BlockLength {
	return p.data.length()
}

// Fill sets every payload byte to b.
func (p *Packet) Fill(b byte) {
	buf := p.data.bytes()
	for i := range buf {
		buf[i] = b
	}
}

// AppendEncode appends the wire encoding of p to dst:
//
//	[marker][seq][0xFF-seq][payload][sum8 | crc16 big-endian]
func (p *Packet) AppendEncode(dst []byte, mode Checksum) []byte {
	payload := p.data.bytes()
	dst = append(dst, p.data.length().marker(), p.Seq, 0xFF-p.Seq)
	dst = append(dst, payload...)
	return appendTrailer(dst, payload, mode)
}

// Encode returns the wire encoding of p.
func (p *Packet) Encode(mode Checksum) []byte {
	return p.AppendEncode(make([]byte, 0, 3+len(p.Payload())+mode.trailerLen()), mode)
}

// EncodePacket frames payload, which must be exactly 128 or 1024 bytes long.
func EncodePacket(seq byte, payload []byte, mode Checksum) ([]byte, error) {
	l := BlockLength(len(payload))
	if !l.Valid() {
		return nil, fmt.Errorf("xmodem: payload must be 128 or 1024 bytes, got %d", len(payload))
	}
	p := &Packet{Seq: seq}
	if l == BlockOneK {
		var b block1K
		copy(b[:], payload)
		p.data = &b
	} else {
		var b block128
		copy(b[:], payload)
		p.data = &b
	}
	return p.Encode(mode), nil
}

// frameReader is what the decoder needs from the channel.
type frameReader interface {
	ReadByte() (byte, error)
	ReadFull(p []byte) error
}

// decoder reads frames into two reusable packets, one per block length.
type decoder struct {
	r       frameReader
	mode    Checksum
	std     *Packet
	oneK    *Packet
	trailer [2]byte
}

func newDecoder(r frameReader, mode Checksum) *decoder {
	return &decoder{r: r, mode: mode}
}

// packetFor returns the reusable packet for a marker byte.
func (d *decoder) packetFor(marker byte) *Packet {
	if marker == STX {
		if d.oneK == nil {
			d.oneK = NewPacket(BlockOneK, 0)
		}
		return d.oneK
	}
	if d.std == nil {
		d.std = NewPacket(BlockStandard, 0)
	}
	return d.std
}

// Next reads one frame.
//
// It returns (nil, nil) on EOT. Any leading byte other than SOH, STX or EOT
// yields ErrInvalid without consuming more input. Once a marker is seen the
// whole frame is consumed before the sequence pair and the trailer are
// checked, so both ends stay aligned; a bad sequence pair is reported as
// ErrSequenceMismatch ahead of a bad trailer (ErrChecksum). Channel errors,
// timeouts included, are returned as ErrIO.
//
// The returned packet is reused by the next call.
func (d *decoder) Next() (*Packet, error) {
	marker, err := d.r.ReadByte()
	if err != nil {
		return nil, newIOError("reading frame marker", err)
	}

	switch marker {
	case SOH, STX:
	case EOT:
		return nil, nil
	default:
		return nil, &Error{
			Type:    ErrInvalid,
			Message: fmt.Sprintf("unrecognized frame marker %s", ControlName(marker)),
			Byte:    marker,
		}
	}

	p := d.packetFor(marker)
	var seq [2]byte
	if err := d.r.ReadFull(seq[:]); err != nil {
		return nil, newIOError("reading sequence bytes", err)
	}
	if err := d.r.ReadFull(p.Payload()); err != nil {
		return nil, newIOError("reading payload", err)
	}
	trailer := d.trailer[:d.mode.trailerLen()]
	if err := d.r.ReadFull(trailer); err != nil {
		return nil, newIOError("reading checksum", err)
	}

	if 0xFF-seq[0] != seq[1] {
		return nil, NewError(ErrSequenceMismatch,
			fmt.Sprintf("sequence byte %d does not match complement %d", seq[0], seq[1]))
	}
	if !verifyTrailer(p.Payload(), trailer, d.mode) {
		return nil, NewError(ErrChecksum, fmt.Sprintf("bad %s on block %d", d.mode, seq[0]))
	}
	p.Seq = seq[0]
	return p, nil
}

// DecodePacket reads one frame from r. It returns (nil, nil) on EOT; errors
// follow the same rules as the receiver's frame decoding. r is read without
// read-ahead, so no bytes past the frame are consumed.
func DecodePacket(r io.Reader, mode Checksum) (*Packet, error) {
	l := &lineIO{r: r, rbuf: make([]byte, 1)}
	return newDecoder(l, mode).Next()
}
