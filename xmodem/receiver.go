package xmodem

import (
	"errors"
	"fmt"
	"io"
)

// recvState is a state of the receiver machine.
type recvState int

const (
	recvInit      recvState = iota // Announce the checksum mode
	recvReceiving                  // Decode one frame per step
	recvDone
)

// receiver drives one incoming transfer.
type receiver struct {
	*transfer
	dst io.Writer

	checksum Checksum
	dec      *decoder

	expected  uint32 // Logical counter of the next block, compared modulo 256
	received  int64  // Payload bytes written to dst
	canInARow int    // consecutive CAN bytes seen where a frame should start
}

func newReceiver(t *transfer, dst io.Writer, mode Checksum) *receiver {
	return &receiver{
		transfer: t,
		dst:      dst,
		checksum: mode,
		dec:      newDecoder(t.io, mode),
		expected: 1,
	}
}

// run executes the state machine until the transfer ends.
func (r *receiver) run() (int64, error) {
	r.logger.Debug("%s: starting XMODEM receive (%s)", r.name, r.checksum)

	state := recvInit
	for state != recvDone {
		var err error
		switch state {
		case recvInit:
			state, err = r.announce()
		case recvReceiving:
			state, err = r.receive()
		}
		if err != nil {
			return 0, err
		}
	}

	r.logger.Info("%s: XMODEM reception successful, %d bytes in %d blocks", r.name, r.received, r.expected-1)
	return r.received, nil
}

// announce sends NAK or C to tell the sender which checksum to use.
func (r *receiver) announce() (recvState, error) {
	req := r.checksum.requestByte()
	if err := r.io.WriteByte(req); err != nil {
		return recvDone, newIOError("sending mode request", err)
	}
	r.logger.Debug("%s: %s sent, receiving stream", r.name, ControlName(req))
	r.event(EventHandshake, 0, 0, "%s requested", r.checksum)
	return recvReceiving, nil
}

// receive decodes one frame and answers it.
func (r *receiver) receive() (recvState, error) {
	if r.errors >= r.config.MaxErrors {
		r.cancel(2)
		return recvDone, r.exhausted(fmt.Sprintf("waiting for block %d", r.expected))
	}

	pkt, err := r.dec.Next()
	if err != nil {
		return r.handleError(err)
	}
	r.canInARow = 0

	if pkt == nil {
		if err := r.io.WriteByte(ACK); err != nil {
			return recvDone, newIOError("acknowledging EOT", err)
		}
		r.logger.Debug("%s: EOT received", r.name)
		return recvDone, nil
	}

	if pkt.Seq != byte(r.expected) {
		r.cancel(2)
		return recvDone, r.canceled(r.expected, "expected block sequence %d, got %d", byte(r.expected), pkt.Seq)
	}

	payload := pkt.Payload()
	if err := r.deliver(payload); err != nil {
		r.logger.Error("%s: error writing block %d: %v", r.name, r.expected, err)
		r.cancel(2)
		return recvDone, newIOError(fmt.Sprintf("writing block %d", r.expected), err)
	}
	if err := r.io.WriteByte(ACK); err != nil {
		return recvDone, newIOError("acknowledging block", err)
	}

	r.received += int64(len(payload))
	r.event(EventBlockReceived, r.expected, len(payload), "seq %d", pkt.Seq)
	r.logger.Debug("%s: received block %d (seq %d)", r.name, r.expected, pkt.Seq)
	r.progress.Update(r.received)
	r.expected++
	return recvReceiving, nil
}

// deliver writes one payload to the sink.
func (r *receiver) deliver(payload []byte) error {
	n, err := r.dst.Write(payload)
	if err == nil && n < len(payload) {
		err = io.ErrShortWrite
	}
	return err
}

// handleError applies the recovery policy for a failed decode.
func (r *receiver) handleError(err error) (recvState, error) {
	var xe *Error
	if !errors.As(err, &xe) {
		return recvDone, newIOError("receiving frame", err)
	}

	if xe.Type != ErrInvalid || xe.Byte != CAN {
		r.canInARow = 0
	}

	switch {
	case xe.Type == ErrSequenceMismatch:
		r.logger.Error("%s: %s", r.name, xe.Message)
		r.cancel(2)
		return recvDone, r.canceled(r.expected, "%s", xe.Message)

	case xe.Type == ErrChecksum:
		if err := r.io.Purge(); err != nil {
			r.logger.Error("%s: error purging input: %v", r.name, err)
		}
		if err := r.io.WriteByte(NAK); err != nil {
			return recvDone, newIOError("sending NAK", err)
		}
		r.fault(r.expected, "%s", xe.Message)
		return recvReceiving, nil

	case xe.Type == ErrInvalid:
		if xe.Byte == CAN {
			r.canInARow++
			if r.canInARow >= 2 {
				return recvDone, r.canceled(r.expected, "sender sent two CAN bytes")
			}
		}
		r.logger.Info("%s: unrecognized symbol %s", r.name, ControlName(xe.Byte))
		return recvReceiving, nil

	case IsTimeout(err):
		r.event(EventTimeout, r.expected, 0, "timed out waiting for block %d", r.expected)
		r.fault(r.expected, "timeout waiting for block %d", r.expected)
		return recvReceiving, nil

	default:
		return recvDone, err
	}
}
