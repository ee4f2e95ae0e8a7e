package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drunlade/go-xmodem/transport"
	"github.com/drunlade/go-xmodem/xmodem"
)

func TestParseSSHTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target  string
		user    string
		addr    string
		wantErr bool
	}{
		{target: "pi@board", user: "pi", addr: "board:22"},
		{target: "root@10.0.0.2:2222", user: "root", addr: "10.0.0.2:2222"},
		{target: "me@corp@host", user: "me@corp", addr: "host:22"},
		{target: "board", wantErr: true},
		{target: "@board", wantErr: true},
		{target: "pi@", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()

			user, addr, err := ParseSSHTarget(tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.user, user)
			assert.Equal(t, tt.addr, addr)
		})
	}
}

func TestInterruptible(t *testing.T) {
	t.Parallel()

	a, b := transport.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	ch := NewInterruptible(ctx, a)

	_, err := ch.Write([]byte{xmodem.ACK})
	require.NoError(t, err)

	cancel()
	_, err = ch.Write([]byte{xmodem.ACK})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = ch.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)

	buf := make([]byte, 4)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{xmodem.ACK}, buf[:n])
}

func TestInterruptiblePurge(t *testing.T) {
	t.Parallel()

	a, b := transport.Pipe()
	_, err := b.Write([]byte{xmodem.WANTCRC, xmodem.WANTCRC})
	require.NoError(t, err)

	ch := NewInterruptible(context.Background(), a)
	require.NoError(t, ch.Purge())

	a.SetReadTimeout(10 * time.Millisecond)
	_, err = ch.Read(make([]byte, 1))
	assert.True(t, xmodem.IsTimeout(err), "purged bytes are not read")
}

func TestInterruptStopsTransfer(t *testing.T) {
	t.Parallel()

	a, b := transport.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := xmodem.NewSession(NewInterruptible(ctx, a)).Recv(&bytes.Buffer{}, xmodem.ChecksumCRC16)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	Abort(b)
	buf := make([]byte, 4)
	n, err := a.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{xmodem.CAN, xmodem.CAN}, buf[:n])
}
