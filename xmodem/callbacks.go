package xmodem

import (
	"time"
)

// Callbacks provides hooks for XMODEM transfer events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnProgress is called periodically during a transfer.
	// transferred: payload bytes acknowledged (sender) or accepted (receiver)
	// total: Config.ExpectedSize, 0 if unknown
	// rate: transfer rate in bytes per second
	OnProgress func(transferred, total int64, rate float64)

	// OnComplete is called when a transfer finishes successfully.
	OnComplete func(bytesTransferred int64, duration time.Duration)

	// OnError is called once with the fatal error that ends a transfer.
	// context: the transfer direction, "send" or "recv"
	OnError func(err error, context string)

	// OnEvent is called for protocol events (debugging/logging/metrics).
	OnEvent func(event Event)
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type      EventType
	Message   string
	Block     uint32 // Logical block counter, 0 when not block related
	Bytes     int    // Payload bytes involved, if any
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventHandshake EventType = iota
	EventBlockSent
	EventBlockAcked
	EventBlockReceived
	EventRetry
	EventTimeout
	EventCanceled
	EventComplete
)

func (t EventType) String() string {
	switch t {
	case EventHandshake:
		return "handshake"
	case EventBlockSent:
		return "block_sent"
	case EventBlockAcked:
		return "block_acked"
	case EventBlockReceived:
		return "block_received"
	case EventRetry:
		return "retry"
	case EventTimeout:
		return "timeout"
	case EventCanceled:
		return "canceled"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnProgress: func(int64, int64, float64) {},
		OnComplete: func(int64, time.Duration) {},
		OnError:    func(error, string) {},
		OnEvent:    func(Event) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	result := defaultCallbacks()
	if user == nil {
		return result
	}

	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}
	if user.OnComplete != nil {
		result.OnComplete = user.OnComplete
	}
	if user.OnError != nil {
		result.OnError = user.OnError
	}
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}

	return result
}
