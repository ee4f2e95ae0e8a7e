// Package transport provides byte channels for XMODEM transfers: an
// in-memory pipe pair, serial ports, SSH remote commands and the local
// terminal, plus wrappers that give deadline-less streams a read timeout.
//
// Every channel here reports a read timeout as an error matching
// os.ErrDeadlineExceeded.
package transport

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drunlade/go-xmodem/internal/syncutil"
)

// pipeBuffer is one direction of a pipe: an unbounded byte queue.
type pipeBuffer struct {
	mu     syncutil.Mutex
	data   []byte
	closed bool
	notify chan struct{}
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{notify: make(chan struct{}, 1)}
}

func (b *pipeBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *pipeBuffer) write(p []byte) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.mu.Unlock()
	b.signal()
	return len(p), nil
}

// read waits for data until timeout (0 waits forever).
func (b *pipeBuffer) read(p []byte, timeout time.Duration) (int, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	for {
		b.mu.Lock()
		if len(b.data) > 0 {
			n := copy(p, b.data)
			b.data = b.data[n:]
			b.mu.Unlock()
			return n, nil
		}
		if b.closed {
			b.mu.Unlock()
			return 0, io.EOF
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-expire:
			return 0, fmt.Errorf("pipe read: %w", os.ErrDeadlineExceeded)
		}
	}
}

func (b *pipeBuffer) purge() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}

func (b *pipeBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

// PipeEnd is one side of an in-memory duplex pipe.
type PipeEnd struct {
	in  *pipeBuffer
	out *pipeBuffer

	mu      syncutil.Mutex
	timeout time.Duration
}

// Pipe returns two connected ends: bytes written to one are read from the
// other. Writes never block.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := newPipeBuffer()
	ba := newPipeBuffer()
	return &PipeEnd{in: ba, out: ab}, &PipeEnd{in: ab, out: ba}
}

// SetReadTimeout sets how long Read waits for data. Zero waits forever.
func (p *PipeEnd) SetReadTimeout(d time.Duration) {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
}

func (p *PipeEnd) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()
	return p.in.read(b, timeout)
}

func (p *PipeEnd) Write(b []byte) (int, error) {
	return p.out.write(b)
}

// Purge discards everything written by the peer that has not been read.
func (p *PipeEnd) Purge() error {
	p.in.purge()
	return nil
}

// Close closes the write direction. The peer reads io.EOF once it has
// drained what was written.
func (p *PipeEnd) Close() error {
	p.out.close()
	return nil
}
