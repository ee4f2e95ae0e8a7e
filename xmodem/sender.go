package xmodem

import (
	"io"
)

// sendState is a state of the sender machine.
type sendState int

const (
	sendAwaitMode sendState = iota // Waiting for NAK or C from the receiver
	sendBlocks                     // Sending blocks, one per step
	sendFinishing                  // Sending EOT until it is acknowledged
	sendDone
)

// sender drives one outgoing transfer.
type sender struct {
	*transfer
	src io.Reader

	checksum Checksum
	packet   *Packet
	frame    []byte

	block      uint32 // Logical block counter, truncated to 8 bits on the wire
	pending    bool   // packet holds a block that has not been acknowledged
	pendingLen int    // source bytes in the pending block
	consumed   int64  // source bytes read, padding excluded

	cancels   int // CAN bytes seen during the handshake
	canInARow int // consecutive CAN bytes while awaiting an ACK
}

func newSender(t *transfer, src io.Reader) *sender {
	return &sender{
		transfer: t,
		src:      src,
		packet:   NewPacket(t.config.BlockLength, t.config.PadByte),
		frame:    make([]byte, 0, MaxFrameLen),
	}
}

// run executes the state machine until the transfer ends.
func (s *sender) run() (int64, error) {
	s.logger.Debug("%s: starting XMODEM send (%s blocks)", s.name, s.config.BlockLength)

	state := sendAwaitMode
	for state != sendDone {
		var err error
		switch state {
		case sendAwaitMode:
			state, err = s.awaitMode()
		case sendBlocks:
			state, err = s.sendBlock()
		case sendFinishing:
			state, err = s.finish()
		}
		if err != nil {
			return 0, err
		}
	}

	s.logger.Info("%s: XMODEM transmission successful, %d bytes in %d blocks", s.name, s.consumed, s.block)
	return s.consumed, nil
}

// awaitMode reads one byte of the receiver's handshake.
func (s *sender) awaitMode() (sendState, error) {
	b, err := s.io.ReadByte()
	switch {
	case err != nil && !IsTimeout(err):
		return sendDone, newIOError("awaiting mode request", err)
	case err != nil:
		s.event(EventTimeout, 0, 0, "timed out waiting for mode request")
		s.logger.Debug("%s: timed out waiting for start of XMODEM transfer", s.name)
	case b == NAK:
		return s.adopt(ChecksumStandard), nil
	case b == WANTCRC:
		return s.adopt(ChecksumCRC16), nil
	case b == CAN:
		s.cancels++
		s.logger.Info("%s: cancel (CAN) byte received during handshake", s.name)
	default:
		s.logger.Info("%s: unknown byte received at start of XMODEM transfer: %s", s.name, ControlName(b))
	}

	budgetSpent := s.fault(0, "no mode request")

	if s.cancels >= 2 {
		return sendDone, s.canceled(0, "received two CAN bytes at start of transfer")
	}
	if budgetSpent {
		s.cancel(1)
		return sendDone, s.exhausted("at start of transfer")
	}
	return sendAwaitMode, nil
}

func (s *sender) adopt(mode Checksum) sendState {
	s.checksum = mode
	s.logger.Debug("%s: %s requested", s.name, mode)
	s.event(EventHandshake, 0, 0, "%s requested", mode)

	// A receiver that started first has usually repeated its request; the
	// copies must not be read as the answer to block 1.
	if err := s.io.Purge(); err != nil {
		s.logger.Error("%s: error purging input: %v", s.name, err)
	}
	return sendBlocks
}

// fill reads the next block from the source and pads it. It returns the
// number of source bytes in the block; 0 means the source is exhausted.
func (s *sender) fill() (int, error) {
	buf := s.packet.Payload()
	n, err := io.ReadFull(s.src, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err != nil {
		return 0, err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = s.config.PadByte
	}
	return n, nil
}

// sendBlock transmits the pending block (reading a fresh one first if the
// last was acknowledged) and waits for its ACK.
func (s *sender) sendBlock() (sendState, error) {
	if !s.pending {
		n, err := s.fill()
		if err != nil {
			s.logger.Error("%s: error reading source: %v", s.name, err)
			s.cancel(2)
			return sendDone, newIOError("reading source", err)
		}
		if n == 0 {
			s.logger.Debug("%s: reached end of source", s.name)
			return sendFinishing, nil
		}
		s.block++
		s.packet.Seq = byte(s.block)
		s.frame = s.packet.AppendEncode(s.frame[:0], s.checksum)
		s.pending = true
		s.pendingLen = n
		s.consumed += int64(n)
	}

	s.logger.Debug("%s: sending block %d (seq %d)", s.name, s.block, s.packet.Seq)
	if _, err := s.io.Write(s.frame); err != nil {
		return sendDone, newIOError("writing block", err)
	}
	s.event(EventBlockSent, s.block, s.pendingLen, "seq %d", s.packet.Seq)

	acked, err := s.awaitAck("block")
	if err != nil {
		return sendDone, err
	}
	if acked {
		s.pending = false
		s.event(EventBlockAcked, s.block, s.pendingLen, "seq %d", s.packet.Seq)
		s.progress.Update(s.consumed)
	}
	return sendBlocks, nil
}

// finish sends EOT and waits for its ACK.
func (s *sender) finish() (sendState, error) {
	s.logger.Debug("%s: sending EOT", s.name)
	if err := s.io.WriteByte(EOT); err != nil {
		return sendDone, newIOError("writing EOT", err)
	}
	acked, err := s.awaitAck("EOT")
	if err != nil {
		return sendDone, err
	}
	if acked {
		return sendDone, nil
	}
	return sendFinishing, nil
}

// awaitAck reads the receiver's answer to a block or EOT. It returns false
// with a nil error when the same frame should be sent again.
func (s *sender) awaitAck(what string) (bool, error) {
	for {
		b, err := s.io.ReadByte()
		switch {
		case err != nil && !IsTimeout(err):
			return false, newIOError("awaiting ACK", err)
		case err != nil:
			s.canInARow = 0
			s.event(EventTimeout, s.block, 0, "timed out waiting for ACK for %s", what)
			s.logger.Info("%s: timeout waiting for ACK for %s %d", s.name, what, s.block)
		case b == ACK:
			s.canInARow = 0
			s.logger.Debug("%s: received ACK for %s %d", s.name, what, s.block)
			return true, nil
		case b == CAN:
			s.canInARow++
			s.logger.Info("%s: cancel (CAN) byte received awaiting ACK for %s %d", s.name, what, s.block)
		case b == WANTCRC && s.checksum == ChecksumCRC16 && s.block == 1 && s.pending:
			// A late copy of the mode request. Block 1 is already on its way;
			// sending it again would make the receiver see a duplicate.
			s.canInARow = 0
			s.logger.Info("%s: ignoring repeated mode request awaiting ACK for block 1", s.name)
			if s.fault(s.block, "repeated mode request") {
				s.cancel(2)
				return false, s.exhausted("sending " + what)
			}
			continue
		default:
			s.canInARow = 0
			s.logger.Info("%s: expected ACK for %s %d, got %s", s.name, what, s.block, ControlName(b))
		}

		budgetSpent := s.fault(s.block, "%s %d not acknowledged", what, s.block)

		if s.canInARow >= 2 {
			return false, s.canceled(s.block, "receiver sent two CAN bytes")
		}
		if budgetSpent {
			s.cancel(2)
			return false, s.exhausted("sending " + what)
		}
		return false, nil
	}
}
