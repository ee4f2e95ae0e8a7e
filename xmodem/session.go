package xmodem

import (
	"fmt"
	"io"
	"time"
)

// DefaultMaxErrors is the default error budget for one transfer.
const DefaultMaxErrors = 16

// Config holds transfer configuration.
type Config struct {
	// MaxErrors is the number of recoverable faults (timeouts, bad
	// checksums, unexpected bytes) tolerated before a transfer is aborted.
	MaxErrors int

	// PadByte fills the unused tail of the last block.
	PadByte byte

	// BlockLength is the payload size the sender uses. A receiver accepts
	// both sizes regardless.
	BlockLength BlockLength

	// Name labels the transfer in log lines.
	Name string

	// ExpectedSize is passed to OnProgress as the total, 0 if unknown.
	ExpectedSize int64

	// ProgressInterval throttles OnProgress.
	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxErrors:        DefaultMaxErrors,
		PadByte:          CPMEOF,
		BlockLength:      BlockStandard,
		ProgressInterval: 100 * time.Millisecond,
	}
}

func (c *Config) validate() error {
	if !c.BlockLength.Valid() {
		return fmt.Errorf("xmodem: invalid block length %d", int(c.BlockLength))
	}
	if c.MaxErrors <= 0 {
		return fmt.Errorf("xmodem: MaxErrors must be positive, got %d", c.MaxErrors)
	}
	return nil
}

// Session runs XMODEM transfers over one channel.
//
// A Session performs one transfer at a time. Its configuration is reused
// across transfers; the error counter is reset when each transfer starts.
type Session struct {
	ch        Channel
	config    Config
	callbacks *Callbacks
	logger    Logger

	// Results of the last transfer
	checksum Checksum
	errors   int
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		if config != nil {
			s.config = *config
		}
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBlockLength sets the block length used when sending.
func WithBlockLength(l BlockLength) Option {
	return func(s *Session) {
		s.config.BlockLength = l
	}
}

// WithMaxErrors sets the error budget.
func WithMaxErrors(n int) Option {
	return func(s *Session) {
		s.config.MaxErrors = n
	}
}

// WithPadByte sets the byte used to pad the final block.
func WithPadByte(b byte) Option {
	return func(s *Session) {
		s.config.PadByte = b
	}
}

// NewSession creates a new XMODEM session on ch.
func NewSession(ch Channel, opts ...Option) *Session {
	s := &Session{
		ch:        ch,
		config:    *DefaultConfig(),
		callbacks: defaultCallbacks(),
		logger:    NoopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Config returns a copy of the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Errors returns the error counter of the last transfer.
func (s *Session) Errors() int {
	return s.errors
}

// Checksum returns the checksum mode of the last transfer: the one the
// receiver requested for Send, or the one chosen for Recv.
func (s *Session) Checksum() Checksum {
	return s.checksum
}

// Send transmits src and returns the number of bytes read from it, padding
// excluded. The receiver picks the checksum mode during the handshake.
//
// The channel's read timeout must be configured by the caller. Timeouts
// waiting for the receiver count against the error budget; write failures
// are fatal.
func (s *Session) Send(src io.Reader) (int64, error) {
	t, err := s.begin("send")
	if err != nil {
		return 0, err
	}
	snd := newSender(t, src)
	n, err := snd.run()
	s.checksum = snd.checksum
	return s.end(t, "send", n, err)
}

// Recv receives into dst using the given checksum mode and returns the
// number of bytes written, which is always a whole number of blocks.
//
// A payload that dst fails to accept aborts the transfer: CAN is sent twice
// so the sender does not wait on us, then the sink's error is returned.
func (s *Session) Recv(dst io.Writer, mode Checksum) (int64, error) {
	t, err := s.begin("recv")
	if err != nil {
		return 0, err
	}
	s.checksum = mode
	rcv := newReceiver(t, dst, mode)
	n, err := rcv.run()
	return s.end(t, "recv", n, err)
}

func (s *Session) begin(direction string) (*transfer, error) {
	s.errors = 0
	if err := s.config.validate(); err != nil {
		return nil, err
	}
	if s.callbacks == nil {
		s.callbacks = defaultCallbacks()
	}
	t := &transfer{
		io:        newLineIO(s.ch, MaxFrameLen),
		config:    s.config,
		logger:    s.logger,
		callbacks: s.callbacks,
		progress:  NewProgressTracker(s.callbacks.OnProgress, s.config.ProgressInterval),
		name:      s.config.Name,
	}
	if t.name == "" {
		t.name = direction
	}
	t.progress.Start(s.config.ExpectedSize)
	return t, nil
}

func (s *Session) end(t *transfer, direction string, n int64, err error) (int64, error) {
	s.errors = t.errors
	if err != nil {
		s.callbacks.OnError(err, direction)
		return 0, err
	}
	duration := t.progress.Complete()
	t.event(EventComplete, 0, 0, "%d bytes in %v", n, duration)
	s.callbacks.OnComplete(n, duration)
	return n, nil
}

// Send transmits src over ch with cfg (nil for defaults).
func Send(ch Channel, src io.Reader, cfg *Config) (int64, error) {
	return NewSession(ch, WithConfig(cfg)).Send(src)
}

// Recv receives into dst over ch with cfg (nil for defaults), asking the
// sender for the given checksum mode.
func Recv(ch Channel, dst io.Writer, cfg *Config, mode Checksum) (int64, error) {
	return NewSession(ch, WithConfig(cfg)).Recv(dst, mode)
}

// transfer is the state shared by the sender and receiver machines.
type transfer struct {
	io        *lineIO
	config    Config
	logger    Logger
	callbacks *Callbacks
	progress  *ProgressTracker
	name      string

	errors int
}

func (t *transfer) event(typ EventType, block uint32, n int, format string, args ...interface{}) {
	t.callbacks.OnEvent(Event{
		Type:      typ,
		Message:   fmt.Sprintf(format, args...),
		Block:     block,
		Bytes:     n,
		Timestamp: time.Now(),
	})
}

// fault counts a recoverable error and reports whether the budget is spent.
func (t *transfer) fault(block uint32, format string, args ...interface{}) bool {
	t.errors++
	t.logger.Info("%s: "+format+" (error %d/%d)", append(append([]interface{}{t.name}, args...), t.errors, t.config.MaxErrors)...)
	t.event(EventRetry, block, 0, format, args...)
	return t.errors >= t.config.MaxErrors
}

// cancel sends CAN count times. Failures are logged, not returned.
func (t *transfer) cancel(count int) {
	for i := 0; i < count; i++ {
		if err := t.io.WriteByte(CAN); err != nil {
			t.logger.Error("%s: error sending CAN: %v", t.name, err)
			return
		}
	}
}

// exhausted builds the ErrExhaustedRetries error for the current state.
func (t *transfer) exhausted(where string) error {
	t.logger.Error("%s: exhausted max retries (%d) %s", t.name, t.config.MaxErrors, where)
	return NewError(ErrExhaustedRetries, fmt.Sprintf("%d errors %s", t.errors, where))
}

// canceled builds the ErrCanceled error and reports the event.
func (t *transfer) canceled(block uint32, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	t.logger.Error("%s: transfer canceled: %s", t.name, msg)
	t.event(EventCanceled, block, 0, "%s", msg)
	return NewError(ErrCanceled, msg)
}
