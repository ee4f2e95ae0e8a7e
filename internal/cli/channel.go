// Package cli holds what gsx and grx share: channel selection flags,
// logging and progress output, and interrupt handling.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drunlade/go-xmodem/transport"
	"github.com/drunlade/go-xmodem/xmodem"
)

// Conn is an opened channel.
type Conn interface {
	xmodem.Channel
	io.Closer
}

// ChannelFlags selects the link a transfer runs over: a serial port, a
// remote command over SSH, or stdin/stdout.
type ChannelFlags struct {
	Port string
	Baud int

	SSH        string
	Remote     string
	KeyFile    string
	KnownHosts string
	Insecure   bool

	Timeout time.Duration
}

// AddFlags registers the channel flags on cmd.
func (f *ChannelFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Port, "port", "", "serial device (e.g. /dev/ttyUSB0)")
	cmd.Flags().IntVar(&f.Baud, "baud", 115200, "serial baud rate")
	cmd.Flags().StringVar(&f.SSH, "ssh", "", "run the peer over SSH: user@host[:port]")
	cmd.Flags().StringVar(&f.Remote, "remote", "", "remote command for --ssh")
	cmd.Flags().StringVar(&f.KeyFile, "key", "", "SSH private key file")
	cmd.Flags().StringVar(&f.KnownHosts, "known-hosts", "", "SSH known_hosts file")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip SSH host key verification")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 10*time.Second, "read timeout")

	cmd.MarkFlagsMutuallyExclusive("port", "ssh")
}

// Open opens the selected channel. defaultRemote is the command run with
// --ssh when --remote is not given.
func (f *ChannelFlags) Open(defaultRemote string) (Conn, error) {
	switch {
	case f.Port != "":
		cfg := transport.DefaultSerialConfig(f.Port)
		cfg.BaudRate = f.Baud
		cfg.ReadTimeout = f.Timeout
		return transport.OpenSerial(cfg)

	case f.SSH != "":
		return f.openSSH(defaultRemote)

	default:
		return transport.OpenStdio(f.Timeout)
	}
}

func (f *ChannelFlags) openSSH(defaultRemote string) (Conn, error) {
	user, addr, err := ParseSSHTarget(f.SSH)
	if err != nil {
		return nil, err
	}

	cfg := &transport.SSHConfig{
		Addr:       addr,
		User:       user,
		Password:   os.Getenv("SSH_PASSWORD"),
		KeyFile:    f.KeyFile,
		KnownHosts: f.KnownHosts,
		Insecure:   f.Insecure,
	}
	if cfg.Password == "" && cfg.KeyFile == "" {
		pw, err := transport.ReadPassword(fmt.Sprintf("%s@%s's password: ", user, addr))
		if err != nil {
			return nil, err
		}
		cfg.Password = pw
	}

	client, err := transport.DialSSH(cfg)
	if err != nil {
		return nil, err
	}

	remote := f.Remote
	if remote == "" {
		remote = defaultRemote
	}
	ch, err := transport.NewSSHChannel(client, remote, f.Timeout)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &sshConn{SSHChannel: ch, closeClient: client.Close}, nil
}

type sshConn struct {
	*transport.SSHChannel
	closeClient func() error
}

func (c *sshConn) Close() error {
	err := c.SSHChannel.Close()
	if stderr := strings.TrimSpace(c.Stderr()); stderr != "" {
		fmt.Fprintf(os.Stderr, "remote: %s\n", stderr)
	}
	c.closeClient()
	return err
}

// ParseSSHTarget splits user@host[:port], defaulting the port to 22.
func ParseSSHTarget(target string) (user, addr string, err error) {
	at := strings.LastIndex(target, "@")
	if at <= 0 || at == len(target)-1 {
		return "", "", fmt.Errorf("ssh target must be user@host[:port], got %q", target)
	}
	user, addr = target[:at], target[at+1:]
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}
	return user, addr, nil
}

// SignalContext returns a context canceled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Interruptible fails reads and writes once ctx is done, so a transfer
// stops within one read timeout of an interrupt.
type Interruptible struct {
	ctx context.Context
	ch  xmodem.Channel
}

// NewInterruptible wraps ch.
func NewInterruptible(ctx context.Context, ch xmodem.Channel) *Interruptible {
	return &Interruptible{ctx: ctx, ch: ch}
}

func (i *Interruptible) Read(p []byte) (int, error) {
	if err := i.ctx.Err(); err != nil {
		return 0, err
	}
	return i.ch.Read(p)
}

func (i *Interruptible) Write(p []byte) (int, error) {
	if err := i.ctx.Err(); err != nil {
		return 0, err
	}
	return i.ch.Write(p)
}

// Flush forwards to the wrapped channel if it buffers writes.
func (i *Interruptible) Flush() error {
	if f, ok := i.ch.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Purge forwards to the wrapped channel if it can drop pending input.
func (i *Interruptible) Purge() error {
	if p, ok := i.ch.(interface{ Purge() error }); ok {
		return p.Purge()
	}
	return nil
}

// Abort tells the peer to give up by sending CAN twice on ch.
func Abort(ch io.Writer) {
	_, _ = ch.Write([]byte{xmodem.CAN, xmodem.CAN})
}
