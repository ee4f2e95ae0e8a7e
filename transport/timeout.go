package transport

import (
	"fmt"
	"io"
	"os"
	"time"
)

// DeadlineReadWriter is a stream with read deadlines, such as net.Conn or *os.File.
type DeadlineReadWriter interface {
	io.Reader
	io.Writer
	SetReadDeadline(time.Time) error
}

// DeadlineChannel arms a read deadline before every Read.
type DeadlineChannel struct {
	rw      DeadlineReadWriter
	timeout time.Duration
}

// WithReadTimeout wraps rw so each Read fails with os.ErrDeadlineExceeded
// after timeout. A zero timeout clears the deadline.
func WithReadTimeout(rw DeadlineReadWriter, timeout time.Duration) *DeadlineChannel {
	return &DeadlineChannel{rw: rw, timeout: timeout}
}

func (d *DeadlineChannel) Read(p []byte) (int, error) {
	var deadline time.Time
	if d.timeout > 0 {
		deadline = time.Now().Add(d.timeout)
	}
	if err := d.rw.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	return d.rw.Read(p)
}

func (d *DeadlineChannel) Write(p []byte) (int, error) {
	return d.rw.Write(p)
}

// TimeoutReader adds a read timeout to a reader that has no deadlines,
// such as an SSH session's stdout. A goroutine pumps the reader; bytes are
// never lost when a Read times out.
type TimeoutReader struct {
	timeout time.Duration
	data    chan []byte
	done    chan struct{}
	err     error
	pending []byte
}

// NewTimeoutReader starts pumping r. Read waits at most timeout for data;
// zero waits forever.
func NewTimeoutReader(r io.Reader, timeout time.Duration) *TimeoutReader {
	t := &TimeoutReader{
		timeout: timeout,
		data:    make(chan []byte),
		done:    make(chan struct{}),
	}
	go t.pump(r)
	return t
}

func (t *TimeoutReader) pump(r io.Reader) {
	defer close(t.done)
	for {
		buf := make([]byte, 1024)
		n, err := r.Read(buf)
		if n > 0 {
			t.data <- buf[:n]
		}
		if err != nil {
			t.err = err
			return
		}
	}
}

func (t *TimeoutReader) Read(p []byte) (int, error) {
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		return n, nil
	}

	var expire <-chan time.Time
	if t.timeout > 0 {
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case buf := <-t.data:
		n := copy(p, buf)
		t.pending = buf[n:]
		return n, nil
	case <-t.done:
		// The pump hands over every chunk before closing done.
		return 0, t.err
	case <-expire:
		return 0, fmt.Errorf("read: %w", os.ErrDeadlineExceeded)
	}
}

// Purge drops data that has been read from the source but not returned.
func (t *TimeoutReader) Purge() error {
	t.pending = nil
	for {
		select {
		case <-t.data:
		default:
			return nil
		}
	}
}

// Stream joins a reader and a writer into one channel.
type Stream struct {
	io.Reader
	io.Writer
}
