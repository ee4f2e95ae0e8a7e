package transport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig holds what is needed to reach a remote XMODEM peer.
type SSHConfig struct {
	// Addr is host:port
	Addr string
	User string

	// Password and KeyFile are tried in that order when set
	Password string
	KeyFile  string

	// KnownHosts is a known_hosts file used to verify the server. Empty
	// with Insecure set skips verification.
	KnownHosts string
	Insecure   bool

	DialTimeout time.Duration
}

func (c *SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if c.KeyFile != "" {
		pem, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", c.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("ssh: no password or key file given")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case c.KnownHosts != "":
		cb, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	case c.Insecure:
		hostKey = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("ssh: known hosts file required unless insecure is set")
	}

	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// DialSSH connects to the server described by cfg.
func DialSSH(cfg *SSHConfig) (*ssh.Client, error) {
	cc, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	client, err := ssh.Dial("tcp", cfg.Addr, cc)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// SSHChannel runs a remote command (typically "rx" or "sx") and uses its
// stdin and stdout as the XMODEM channel.
type SSHChannel struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  *TimeoutReader
	stderr  bytes.Buffer
}

// NewSSHChannel starts command in a new session on client. Reads from the
// remote command time out after readTimeout.
func NewSSHChannel(client *ssh.Client, command string, readTimeout time.Duration) (*SSHChannel, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh new session: %w", err)
	}

	c := &SSHChannel{session: session}
	session.Stderr = &c.stderr

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh stdin pipe: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh stdout pipe: %w", err)
	}

	if err := session.Start(command); err != nil {
		session.Close()
		return nil, fmt.Errorf("ssh start %q: %w", command, err)
	}

	c.stdin = stdin
	c.stdout = NewTimeoutReader(stdout, readTimeout)
	return c, nil
}

func (c *SSHChannel) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

func (c *SSHChannel) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

// Purge drops remote output that has not been read yet.
func (c *SSHChannel) Purge() error {
	return c.stdout.Purge()
}

// Stderr returns what the remote command wrote to stderr so far.
func (c *SSHChannel) Stderr() string {
	return c.stderr.String()
}

// Close closes the remote command's stdin and waits for it to exit.
func (c *SSHChannel) Close() error {
	c.stdin.Close()
	err := c.session.Wait()
	c.session.Close()
	if err != nil {
		return fmt.Errorf("remote command: %w", err)
	}
	return nil
}
