package xmodem

import (
	"errors"
	"fmt"
	"os"
)

// Error represents an XMODEM transfer error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Err is the underlying channel, source or sink error (ErrIO only)
	Err error

	// Byte is the offending byte for ErrInvalid
	Byte byte
}

// ErrorType categorizes XMODEM errors
type ErrorType int

const (
	// ErrIO wraps a channel, source or sink failure. Timeouts are ErrIO.
	ErrIO ErrorType = iota

	// ErrExhaustedRetries indicates the error budget was used up
	ErrExhaustedRetries

	// ErrCanceled indicates the peer sent CAN CAN, or the receiver lost
	// sequence agreement with the sender
	ErrCanceled

	// ErrInvalid indicates an unrecognized frame marker
	ErrInvalid

	// ErrSequenceMismatch indicates a bad sequence/complement pair
	ErrSequenceMismatch

	// ErrChecksum indicates a payload integrity failure
	ErrChecksum
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xmodem %s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("xmodem %s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func (t ErrorType) String() string {
	switch t {
	case ErrIO:
		return "I/O error"
	case ErrExhaustedRetries:
		return "exhausted retries"
	case ErrCanceled:
		return "canceled"
	case ErrInvalid:
		return "invalid data"
	case ErrSequenceMismatch:
		return "sequence mismatch"
	case ErrChecksum:
		return "checksum error"
	default:
		return "unknown error"
	}
}

// NewError creates a new XMODEM error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// newIOError wraps an I/O failure. A nil cause stays nil.
func newIOError(message string, err error) error {
	if err == nil {
		return nil
	}
	var xe *Error
	if errors.As(err, &xe) {
		return err
	}
	return &Error{Type: ErrIO, Message: message, Err: err}
}

// errReadTimeout is what a (0, nil) read is reported as.
var errReadTimeout = fmt.Errorf("read returned no data: %w", os.ErrDeadlineExceeded)

func hasType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsTimeout checks if an error is a read timeout. It recognizes
// os.ErrDeadlineExceeded and any error with a Timeout() method returning true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// IsCanceled checks if an error indicates cancellation
func IsCanceled(err error) bool {
	return hasType(err, ErrCanceled)
}

// IsExhaustedRetries checks if the error budget was exceeded
func IsExhaustedRetries(err error) bool {
	return hasType(err, ErrExhaustedRetries)
}

// IsChecksum checks if an error is a checksum or CRC mismatch
func IsChecksum(err error) bool {
	return hasType(err, ErrChecksum)
}

// IsSequenceMismatch checks if an error is a sequence mismatch
func IsSequenceMismatch(err error) bool {
	return hasType(err, ErrSequenceMismatch)
}

// IsInvalid checks if an error is an unrecognized frame marker
func IsInvalid(err error) bool {
	return hasType(err, ErrInvalid)
}
