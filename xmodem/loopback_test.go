package xmodem_test

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drunlade/go-xmodem/transport"
	"github.com/drunlade/go-xmodem/xmodem"
)

type result struct {
	n   int64
	err error
}

func pipePair(t *testing.T) (*transport.PipeEnd, *transport.PipeEnd) {
	t.Helper()
	a, b := transport.Pipe()
	a.SetReadTimeout(2 * time.Second)
	b.SetReadTimeout(2 * time.Second)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func randomData(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

func TestLoopback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
		l    xmodem.BlockLength
		mode xmodem.Checksum
	}{
		{"short crc", 5, xmodem.BlockStandard, xmodem.ChecksumCRC16},
		{"short checksum", 5, xmodem.BlockStandard, xmodem.ChecksumStandard},
		{"empty", 0, xmodem.BlockStandard, xmodem.ChecksumCRC16},
		{"exact multiple", 1024, xmodem.BlockStandard, xmodem.ChecksumStandard},
		{"1k partial", 3000, xmodem.BlockOneK, xmodem.ChecksumCRC16},
		{"sequence wraps", 50000, xmodem.BlockStandard, xmodem.ChecksumCRC16},
		{"1k sequence wraps", 300*1024 + 5, xmodem.BlockOneK, xmodem.ChecksumStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := randomData(tt.size)
			sendEnd, recvEnd := pipePair(t)

			done := make(chan result, 1)
			go func() {
				n, err := xmodem.NewSession(sendEnd, xmodem.WithBlockLength(tt.l)).Send(bytes.NewReader(data))
				done <- result{n, err}
			}()

			var sink bytes.Buffer
			n, err := xmodem.NewSession(recvEnd).Recv(&sink, tt.mode)
			require.NoError(t, err)

			sent := <-done
			require.NoError(t, sent.err)
			assert.Equal(t, int64(tt.size), sent.n)

			blocks := (tt.size + int(tt.l) - 1) / int(tt.l)
			assert.Equal(t, int64(blocks*int(tt.l)), n)
			require.Equal(t, n, int64(sink.Len()))
			if tt.size > 0 {
				assert.Equal(t, data, sink.Bytes()[:tt.size])
			}
			for _, pad := range sink.Bytes()[tt.size:] {
				require.Equal(t, byte(xmodem.CPMEOF), pad)
			}
		})
	}
}

// corruptOnce flips a payload bit in the nth frame written through it.
type corruptOnce struct {
	xmodem.Channel
	target int
	frames int
}

func (c *corruptOnce) Write(p []byte) (int, error) {
	if len(p) > 100 {
		c.frames++
		if c.frames == c.target {
			bad := append([]byte(nil), p...)
			bad[10] ^= 0x04
			return c.Channel.Write(bad)
		}
	}
	return c.Channel.Write(p)
}

func TestLoopbackRecoversFromCorruption(t *testing.T) {
	t.Parallel()

	for _, mode := range []xmodem.Checksum{xmodem.ChecksumStandard, xmodem.ChecksumCRC16} {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			data := randomData(128 * 5)
			sendEnd, recvEnd := pipePair(t)

			sender := xmodem.NewSession(&corruptOnce{Channel: sendEnd, target: 3})
			done := make(chan result, 1)
			go func() {
				n, err := sender.Send(bytes.NewReader(data))
				done <- result{n, err}
			}()

			var sink bytes.Buffer
			receiver := xmodem.NewSession(recvEnd)
			_, err := receiver.Recv(&sink, mode)
			require.NoError(t, err)

			sent := <-done
			require.NoError(t, sent.err)
			assert.Equal(t, data, sink.Bytes())
			assert.Equal(t, 1, sender.Errors())
			assert.Equal(t, 1, receiver.Errors())
			assert.Equal(t, mode, sender.Checksum())
		})
	}
}

func TestLoopbackLateSender(t *testing.T) {
	t.Parallel()

	data := randomData(128*3 + 7)
	sendEnd, recvEnd := pipePair(t)

	// Requests a receiver repeated while no sender was listening.
	_, err := recvEnd.Write([]byte{xmodem.WANTCRC, xmodem.WANTCRC})
	require.NoError(t, err)

	var sink bytes.Buffer
	received := make(chan result, 1)
	go func() {
		n, err := xmodem.NewSession(recvEnd).Recv(&sink, xmodem.ChecksumCRC16)
		received <- result{n, err}
	}()

	// Let the receiver's own request land behind the stale ones.
	time.Sleep(20 * time.Millisecond)
	n, err := xmodem.NewSession(sendEnd).Send(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	got := <-received
	require.NoError(t, got.err)
	assert.Equal(t, int64(128*4), got.n)
	assert.Equal(t, data, sink.Bytes()[:len(data)])
}

func TestLoopbackReceiverGone(t *testing.T) {
	t.Parallel()

	a, b := transport.Pipe()
	a.SetReadTimeout(20 * time.Millisecond)
	defer a.Close()

	// The receiver asks for CRC and then never answers again.
	_, err := b.Write([]byte{xmodem.WANTCRC})
	require.NoError(t, err)

	s := xmodem.NewSession(a, xmodem.WithMaxErrors(3))
	n, err := s.Send(bytes.NewReader(randomData(200)))
	assert.True(t, xmodem.IsExhaustedRetries(err))
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 3, s.Errors())
}
