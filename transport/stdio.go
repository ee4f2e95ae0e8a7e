package transport

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

// Stdio uses the process's stdin and stdout as the channel, the way rx and
// sx run when invoked from a terminal program or over a login session.
//
// If stdin is a terminal it is switched to raw mode so control bytes are
// not interpreted by the line discipline; Close restores it.
type Stdio struct {
	in       *os.File
	out      *os.File
	reader   *TimeoutReader
	oldState *term.State
}

// OpenStdio prepares stdin/stdout. Reads time out after readTimeout.
func OpenStdio(readTimeout time.Duration) (*Stdio, error) {
	s := &Stdio{in: os.Stdin, out: os.Stdout}

	fd := int(s.in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("set raw terminal mode: %w", err)
		}
		s.oldState = state
	}

	s.reader = NewTimeoutReader(s.in, readTimeout)
	return s, nil
}

func (s *Stdio) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Purge drops stdin data that has not been read yet.
func (s *Stdio) Purge() error {
	return s.reader.Purge()
}

// Flush syncs stdout.
func (s *Stdio) Flush() error {
	// Sync fails on pipes and ttys; that is expected.
	_ = s.out.Sync()
	return nil
}

// Close restores the terminal mode.
func (s *Stdio) Close() error {
	if s.oldState != nil {
		if err := term.Restore(int(s.in.Fd()), s.oldState); err != nil {
			return fmt.Errorf("restore terminal: %w", err)
		}
		s.oldState = nil
	}
	return nil
}

// ReadPassword prompts on stderr and reads a password from the terminal
// without echo.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
