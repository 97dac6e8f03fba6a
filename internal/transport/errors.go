package transport

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrTimeout indicates the peer did not answer within the call timeout.
	ErrTimeout = errors.New("peer call timed out")
	// ErrUnreachable indicates the peer could not be contacted.
	ErrUnreachable = errors.New("peer unreachable")
	// ErrRejected indicates the peer answered with an error status.
	ErrRejected = errors.New("peer rejected call")
	// ErrInvalidRequest indicates a malformed direct call.
	ErrInvalidRequest = errors.New("invalid request")
)

// PeerError represents an HTTP error status returned by a peer.
type PeerError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *PeerError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("peer error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("peer error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("peer error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("peer error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *PeerError) Is(target error) bool {
	return target == ErrRejected
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err error
	URL string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *NetworkError) Is(target error) bool {
	return target == ErrUnreachable
}

// TimeoutError represents a call that exceeded its deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %s timed out after %v", e.URL, e.Timeout)
}

// Is implements errors.Is for sentinel error matching.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
