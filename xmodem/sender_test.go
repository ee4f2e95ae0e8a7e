package xmodem

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendShortFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request byte
		mode    Checksum
	}{
		{"crc", WANTCRC, ChecksumCRC16},
		{"checksum", NAK, ChecksumStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ch := script(ctl(tt.request), ctl(ACK), ctl(ACK))
			s := NewSession(ch)

			n, err := s.Send(strings.NewReader("hello"))
			require.NoError(t, err)
			assert.Equal(t, int64(5), n)
			assert.Equal(t, tt.mode, s.Checksum())
			assert.Equal(t, 0, s.Errors())

			want := concat(encodeBlock(t, 1, []byte("hello"), BlockStandard, tt.mode), ctl(EOT))
			assert.Equal(t, want, ch.written.Bytes())
		})
	}
}

func TestSendEmptySource(t *testing.T) {
	t.Parallel()

	ch := script(ctl(WANTCRC), ctl(ACK))
	n, err := NewSession(ch).Send(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, ctl(EOT), ch.written.Bytes())
}

func TestSendExactMultipleHasNoPadBlock(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0x42}, 256)
	ch := script(ctl(WANTCRC), ctl(ACK, ACK, ACK))

	n, err := NewSession(ch).Send(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(256), n)

	want := concat(
		encodeBlock(t, 1, data[:128], BlockStandard, ChecksumCRC16),
		encodeBlock(t, 2, data[128:], BlockStandard, ChecksumCRC16),
		ctl(EOT),
	)
	assert.Equal(t, want, ch.written.Bytes())
}

func TestSendOneK(t *testing.T) {
	t.Parallel()

	data := make([]byte, 1500)
	for i := range data {
		data[i] = byte(i)
	}
	ch := script(ctl(WANTCRC), ctl(ACK), ctl(ACK), ctl(ACK))

	n, err := NewSession(ch, WithBlockLength(BlockOneK)).Send(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)

	want := concat(
		encodeBlock(t, 1, data[:1024], BlockOneK, ChecksumCRC16),
		encodeBlock(t, 2, data[1024:], BlockOneK, ChecksumCRC16),
		ctl(EOT),
	)
	assert.Equal(t, want, ch.written.Bytes())
}

func TestSendCustomPadByte(t *testing.T) {
	t.Parallel()

	ch := script(ctl(NAK), ctl(ACK, ACK))
	_, err := NewSession(ch, WithPadByte(0x00)).Send(strings.NewReader("x"))
	require.NoError(t, err)

	payload := make([]byte, 128)
	payload[0] = 'x'
	want, err := EncodePacket(1, payload, ChecksumStandard)
	require.NoError(t, err)
	assert.Equal(t, concat(want, ctl(EOT)), ch.written.Bytes())
}

func TestSendRetransmitsOnNAK(t *testing.T) {
	t.Parallel()

	ch := script(ctl(WANTCRC), ctl(NAK), ctl(ACK), ctl(ACK))
	s := NewSession(ch)

	n, err := s.Send(strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 1, s.Errors())

	blk := encodeBlock(t, 1, []byte("data"), BlockStandard, ChecksumCRC16)
	assert.Equal(t, concat(blk, blk, ctl(EOT)), ch.written.Bytes())
}

func TestSendRetransmitsEOT(t *testing.T) {
	t.Parallel()

	ch := script(ctl(WANTCRC), ctl(ACK), timedOut, ctl(ACK))
	s := NewSession(ch)

	_, err := s.Send(strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Errors())

	blk := encodeBlock(t, 1, []byte("data"), BlockStandard, ChecksumCRC16)
	assert.Equal(t, concat(blk, ctl(EOT), ctl(EOT)), ch.written.Bytes())
}

func TestSendNoiseBeforeHandshake(t *testing.T) {
	t.Parallel()

	ch := script(ctl('x'), timedOut, ctl(WANTCRC), ctl(ACK), ctl(ACK))
	s := NewSession(ch)

	_, err := s.Send(strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Errors())
}

func TestSendIgnoresRepeatedModeRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script [][]byte
		errors int
	}{
		{"queued with the first", [][]byte{ctl(WANTCRC, WANTCRC, WANTCRC), ctl(ACK), ctl(ACK)}, 0},
		{"arriving after block 1", [][]byte{ctl(WANTCRC), ctl(WANTCRC), ctl(ACK), ctl(ACK)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ch := script(tt.script...)
			s := NewSession(ch)

			n, err := s.Send(strings.NewReader("data"))
			require.NoError(t, err)
			assert.Equal(t, int64(4), n)
			assert.Equal(t, tt.errors, s.Errors())
			assert.Equal(t, 1, ch.purges)

			blk := encodeBlock(t, 1, []byte("data"), BlockStandard, ChecksumCRC16)
			assert.Equal(t, concat(blk, ctl(EOT)), ch.written.Bytes(), "block 1 is sent once")
		})
	}
}

func TestSendRepeatedModeRequestLaterIsRetried(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0x33}, 200)
	ch := script(ctl(WANTCRC), ctl(ACK), ctl(WANTCRC), ctl(ACK), ctl(ACK))
	s := NewSession(ch)

	_, err := s.Send(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Errors())

	blk2 := encodeBlock(t, 2, data[128:], BlockStandard, ChecksumCRC16)
	want := concat(encodeBlock(t, 1, data[:128], BlockStandard, ChecksumCRC16), blk2, blk2, ctl(EOT))
	assert.Equal(t, want, ch.written.Bytes())
}

func TestSendSerialStyleTimeouts(t *testing.T) {
	t.Parallel()

	ch := script(timedOut, ctl(WANTCRC), ctl(ACK), ctl(ACK))
	ch.zeroReads = true
	s := NewSession(ch)

	_, err := s.Send(strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Errors())
}

func TestSendHandshakeExhausted(t *testing.T) {
	t.Parallel()

	ch := script()
	s := NewSession(ch, WithMaxErrors(3))

	n, err := s.Send(strings.NewReader("data"))
	require.Error(t, err)
	assert.True(t, IsExhaustedRetries(err))
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 3, s.Errors())
	assert.Equal(t, ctl(CAN), ch.written.Bytes())
}

func TestSendHandshakeCanceled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script [][]byte
		errors int
	}{
		{"back to back", [][]byte{ctl(CAN), ctl(CAN)}, 2},
		{"with noise between", [][]byte{ctl('x'), ctl(CAN), ctl('y'), ctl(CAN)}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ch := script(tt.script...)
			s := NewSession(ch)

			_, err := s.Send(strings.NewReader("data"))
			assert.True(t, IsCanceled(err))
			assert.Equal(t, tt.errors, s.Errors())
			assert.Empty(t, ch.written.Bytes())
		})
	}
}

func TestSendCanceledAwaitingAck(t *testing.T) {
	t.Parallel()

	ch := script(ctl(WANTCRC), ctl(CAN), ctl(CAN))
	_, err := NewSession(ch).Send(strings.NewReader("data"))
	assert.True(t, IsCanceled(err))

	blk := encodeBlock(t, 1, []byte("data"), BlockStandard, ChecksumCRC16)
	assert.Equal(t, concat(blk, blk), ch.written.Bytes())
}

func TestSendSingleCANIsRetried(t *testing.T) {
	t.Parallel()

	ch := script(ctl(WANTCRC), ctl(CAN), ctl(ACK), ctl(ACK))
	s := NewSession(ch)

	_, err := s.Send(strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Errors())
}

func TestSendAckExhausted(t *testing.T) {
	t.Parallel()

	ch := script(ctl(WANTCRC))
	s := NewSession(ch, WithMaxErrors(2))

	_, err := s.Send(strings.NewReader("data"))
	assert.True(t, IsExhaustedRetries(err))
	assert.Equal(t, 2, s.Errors())

	blk := encodeBlock(t, 1, []byte("data"), BlockStandard, ChecksumCRC16)
	assert.Equal(t, concat(blk, blk, ctl(CAN, CAN)), ch.written.Bytes())
}

func TestSendSourceError(t *testing.T) {
	t.Parallel()

	srcErr := errors.New("disk on fire")
	ch := script(ctl(WANTCRC))

	n, err := NewSession(ch).Send(failReader{srcErr})
	require.Error(t, err)
	assert.Equal(t, int64(0), n)
	assert.True(t, errors.Is(err, srcErr))

	var xe *Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, ErrIO, xe.Type)
	assert.Equal(t, ctl(CAN, CAN), ch.written.Bytes())
}

func TestSendWriteError(t *testing.T) {
	t.Parallel()

	writeErr := errors.New("line down")
	ch := script(ctl(WANTCRC))
	ch.writeErr = writeErr

	_, err := NewSession(ch).Send(strings.NewReader("data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, writeErr))
	assert.False(t, IsTimeout(err))
}

func TestSendReadError(t *testing.T) {
	t.Parallel()

	_, err := NewSession(&errChannel{}).Send(strings.NewReader("data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBrokenChannel))
}

var errBrokenChannel = errors.New("broken channel")

type errChannel struct{}

func (errChannel) Read([]byte) (int, error)    { return 0, errBrokenChannel }
func (errChannel) Write(p []byte) (int, error) { return len(p), nil }
