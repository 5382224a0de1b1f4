package fins

import (
	"context"
	"fmt"
	"time"
)

// ArgumentError Invalid caller input. Raised before any I/O and never retried.
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("fins: invalid %s: %s", e.Arg, e.Reason)
}

// TimeoutError No response arrived before the deadline. The socket that was
// waiting has already been replaced when this error is returned.
type TimeoutError struct {
	Endpoint string
	Wait     time.Duration // how long the receive waited
	Sent     int // request size in bytes
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fins: receiving response from PLC at %s timed out after %v (%d bytes sent)",
		e.Endpoint, e.Wait, e.Sent)
}

// Timeout reports true, matching net.Error.
func (e *TimeoutError) Timeout() bool { return true }

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// TransportError A socket or network failure. The socket has been replaced.
type TransportError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fins: failed to communicate with PLC at %s: %s: %v", e.Endpoint, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError A response that was received but is unusable: too short or
// carrying a non-zero completion code. The socket is left intact.
type ProtocolError struct {
	Endpoint string
	EndCode  uint16
	HasCode  bool
	Reason   string
}

func (e *ProtocolError) Error() string {
	prefix := "fins: "
	if e.Endpoint != "" {
		prefix = fmt.Sprintf("fins: PLC at %s: ", e.Endpoint)
	}
	if e.HasCode {
		return fmt.Sprintf("%serror reported by destination, end code 0x%04X", prefix, e.EndCode)
	}
	return prefix + e.Reason
}

// ClientClosedError Returned by every operation after Close.
type ClientClosedError struct{}

func (ClientClosedError) Error() string {
	return "fins: client is closed"
}
