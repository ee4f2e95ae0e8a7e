package xmodem

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drunlade/go-xmodem/internal/syncutil"
)

// Logger interface for XMODEM protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// WriterLogger writes timestamped log lines to an io.Writer
type WriterLogger struct {
	w     io.Writer
	c     io.Closer
	debug bool
	mu    syncutil.Mutex
}

// NewWriterLogger creates a logger that writes to w. Debug lines are only
// written when debug is true.
func NewWriterLogger(w io.Writer, debug bool) *WriterLogger {
	return &WriterLogger{w: w, debug: debug}
}

// NewFileLogger creates a logger that appends to a file, debug lines included
func NewFileLogger(path string) (*WriterLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &WriterLogger{w: file, c: file, debug: true}, nil
}

func (l *WriterLogger) log(level, format string, args ...interface{}) {
	if l == nil || l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.w, "[%s] %s: %s\n", timestamp, level, msg)
}

func (l *WriterLogger) Debug(format string, args ...interface{}) {
	if l != nil && l.debug {
		l.log("DEBUG", format, args...)
	}
}

func (l *WriterLogger) Info(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *WriterLogger) Error(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

// Close closes the log file, if the logger owns one.
func (l *WriterLogger) Close() error {
	if l != nil && l.c != nil {
		return l.c.Close()
	}
	return nil
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// formatWire renders wire bytes for a trace line, naming lone control bytes.
func formatWire(data []byte) string {
	if len(data) == 1 {
		return ControlName(data[0])
	}
	if len(data) > 16 {
		return fmt.Sprintf("% x ...[%d bytes]", data[:16], len(data))
	}
	return fmt.Sprintf("% x", data)
}

// LoggingChannel wraps a Channel and traces every read and write
type LoggingChannel struct {
	ch     Channel
	logger Logger
	name   string
}

// NewLoggingChannel wraps ch so all traffic is logged at debug level
func NewLoggingChannel(ch Channel, logger Logger, name string) *LoggingChannel {
	return &LoggingChannel{
		ch:     ch,
		logger: logger,
		name:   name,
	}
}

func (lc *LoggingChannel) Read(p []byte) (int, error) {
	n, err := lc.ch.Read(p)
	if n > 0 {
		lc.logger.Debug("%s: read %s", lc.name, formatWire(p[:n]))
	}
	if err != nil && err != io.EOF && !IsTimeout(err) {
		lc.logger.Error("%s: read error: %v", lc.name, err)
	}
	return n, err
}

func (lc *LoggingChannel) Write(p []byte) (int, error) {
	n, err := lc.ch.Write(p)
	if n > 0 {
		lc.logger.Debug("%s: wrote %s", lc.name, formatWire(p[:n]))
	}
	if err != nil {
		lc.logger.Error("%s: write error: %v", lc.name, err)
	}
	return n, err
}

// Flush passes through to the wrapped channel.
func (lc *LoggingChannel) Flush() error {
	if f, ok := lc.ch.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Purge passes through to the wrapped channel.
func (lc *LoggingChannel) Purge() error {
	if p, ok := lc.ch.(interface{ Purge() error }); ok {
		lc.logger.Debug("%s: purge input", lc.name)
		return p.Purge()
	}
	return nil
}
