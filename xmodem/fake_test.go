package xmodem

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// timedOut in a script makes one Read time out.
var timedOut []byte

// fakeChannel replays scripted reads and records writes. Once the script
// runs out every read times out.
type fakeChannel struct {
	reads    [][]byte
	written  bytes.Buffer
	writeErr error

	// zeroReads reports timeouts as (0, nil) like a serial port does
	zeroReads bool

	purges int
}

func script(items ...[]byte) *fakeChannel {
	return &fakeChannel{reads: items}
}

func (f *fakeChannel) Read(p []byte) (int, error) {
	if len(f.reads) == 0 || f.reads[0] == nil {
		if len(f.reads) > 0 {
			f.reads = f.reads[1:]
		}
		if f.zeroReads {
			return 0, nil
		}
		return 0, os.ErrDeadlineExceeded
	}
	n := copy(p, f.reads[0])
	if n < len(f.reads[0]) {
		f.reads[0] = f.reads[0][n:]
	} else {
		f.reads = f.reads[1:]
	}
	return n, nil
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

// Purge only counts calls; scripted reads model bytes that arrive later.
func (f *fakeChannel) Purge() error {
	f.purges++
	return nil
}

func ctl(bs ...byte) []byte { return bs }

// encodeBlock encodes payload padded with CPMEOF to length l.
func encodeBlock(t *testing.T, seq byte, payload []byte, l BlockLength, mode Checksum) []byte {
	t.Helper()
	buf := bytes.Repeat([]byte{CPMEOF}, int(l))
	copy(buf, payload)
	f, err := EncodePacket(seq, buf, mode)
	require.NoError(t, err)
	return f
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// failWriter is a sink that always fails.
type failWriter struct{ err error }

func (w failWriter) Write(p []byte) (int, error) { return 0, w.err }

// shortWriter accepts one byte less than offered.
type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

// failReader is a source that always fails.
type failReader struct{ err error }

func (r failReader) Read(p []byte) (int, error) { return 0, r.err }
