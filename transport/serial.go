package transport

import (
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
)

// SerialConfig holds serial port configuration
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	BaudRate int

	// ReadTimeout bounds each read; XMODEM peers conventionally wait 10s
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns 115200 8N1 with a 10 second read timeout
func DefaultSerialConfig(device string) *SerialConfig {
	return &SerialConfig{
		Device:      device,
		BaudRate:    115200,
		ReadTimeout: 10 * time.Second,
	}
}

// SerialPort adapts a go.bug.st/serial port to an XMODEM channel. The
// library reports an expired read timeout as a (0, nil) read; SerialPort
// turns that into os.ErrDeadlineExceeded.
type SerialPort struct {
	port serial.Port
	name string
}

// OpenSerial opens and configures a serial port.
func OpenSerial(cfg *SerialConfig) (*SerialPort, error) {
	if cfg == nil {
		return nil, fmt.Errorf("serial config cannot be nil")
	}

	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	p := NewSerialPort(port, cfg.Device)
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

// NewSerialPort wraps an already opened port.
func NewSerialPort(port serial.Port, name string) *SerialPort {
	return &SerialPort{port: port, name: name}
}

// SetReadTimeout sets the per-read timeout. Zero or negative blocks forever.
func (p *SerialPort) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		d = serial.NoTimeout
	}
	if err := p.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("serial %s: set read timeout: %w", p.name, err)
	}
	return nil
}

func (p *SerialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, fmt.Errorf("serial %s: read: %w", p.name, err)
	}
	if n == 0 && len(b) > 0 {
		return 0, fmt.Errorf("serial %s: read: %w", p.name, os.ErrDeadlineExceeded)
	}
	return n, nil
}

func (p *SerialPort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, fmt.Errorf("serial %s: write: %w", p.name, err)
	}
	return n, nil
}

// Flush waits until everything written has been transmitted.
func (p *SerialPort) Flush() error {
	if err := p.port.Drain(); err != nil {
		return fmt.Errorf("serial %s: drain: %w", p.name, err)
	}
	return nil
}

// Purge discards unread input, such as line noise before a transfer.
func (p *SerialPort) Purge() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("serial %s: reset input: %w", p.name, err)
	}
	return nil
}

// Close closes the port. A transfer blocked in Read fails with an I/O error.
func (p *SerialPort) Close() error {
	return p.port.Close()
}
