package xmodem

import (
	"io"
)

// Channel is the duplex byte link a transfer runs over.
//
// Reads block until data arrives or the channel's own read timeout expires.
// A channel that also has a Purge() error method is asked to drop pending
// input when stale bytes must not be read, such as repeated mode requests.
// A timeout must be distinguishable: either an error for which IsTimeout
// reports true, or a read returning (0, nil) as go.bug.st/serial ports do.
// Writes are expected to complete or fail.
type Channel interface {
	io.Reader
	io.Writer
}

// lineIO provides buffered byte reads and control-byte writes on a Channel.
type lineIO struct {
	r     io.Reader
	w     io.Writer
	rbuf  []byte
	rpos  int
	rleft int
}

// newLineIO creates a reader/writer over ch with a buffer of bufsize bytes.
// The peer never sends past the end of a frame before we answer, so one
// frame's worth of read-ahead cannot swallow bytes meant for a later step.
func newLineIO(ch Channel, bufsize int) *lineIO {
	if bufsize < 1 {
		bufsize = 1
	}
	return &lineIO{
		r:    ch,
		w:    ch,
		rbuf: make([]byte, bufsize),
	}
}

// ReadByte returns the next byte from the channel.
func (l *lineIO) ReadByte() (byte, error) {
	if l.rleft > 0 {
		l.rleft--
		b := l.rbuf[l.rpos]
		l.rpos++
		return b, nil
	}

	n, err := l.r.Read(l.rbuf)
	if n <= 0 {
		if err == nil {
			err = errReadTimeout
		}
		return 0, err
	}
	l.rpos = 1
	l.rleft = n - 1
	return l.rbuf[0], nil
}

// ReadFull fills p from the channel.
func (l *lineIO) ReadFull(p []byte) error {
	for len(p) > 0 {
		if l.rleft == 0 {
			b, err := l.ReadByte()
			if err != nil {
				return err
			}
			p[0] = b
			p = p[1:]
			continue
		}
		n := copy(p, l.rbuf[l.rpos:l.rpos+l.rleft])
		l.rpos += n
		l.rleft -= n
		p = p[n:]
	}
	return nil
}

// Write writes all of p to the channel.
func (l *lineIO) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, err
	}
	return n, l.Flush()
}

// WriteByte writes a single control byte.
func (l *lineIO) WriteByte(b byte) error {
	_, err := l.Write([]byte{b})
	return err
}

// Flush flushes the channel if it buffers writes.
func (l *lineIO) Flush() error {
	if f, ok := l.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// PurgeLine discards any buffered input.
func (l *lineIO) PurgeLine() {
	l.rleft = 0
	l.rpos = 0
}

// Purge discards buffered input and, if the channel can, input it has
// received but not yet delivered (a serial port's driver buffer).
func (l *lineIO) Purge() error {
	l.PurgeLine()
	if p, ok := l.r.(interface{ Purge() error }); ok {
		return p.Purge()
	}
	return nil
}
