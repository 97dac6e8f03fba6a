package transport

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPeerError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PeerError
		expected string
	}{
		{
			name:     "with message",
			err:      &PeerError{StatusCode: 400, Message: "invalid request"},
			expected: "peer error 400: invalid request",
		},
		{
			name:     "without message",
			err:      &PeerError{StatusCode: 500},
			expected: "peer error 500",
		},
		{
			name:     "with request ID",
			err:      &PeerError{StatusCode: 404, Message: "not found", RequestID: "req-123"},
			expected: "peer error 404: not found (request_id: req-123)",
		},
		{
			name:     "with request ID only",
			err:      &PeerError{StatusCode: 500, RequestID: "req-456"},
			expected: "peer error 500 (request_id: req-456)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestErrors_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"peer error is rejected", &PeerError{StatusCode: 500}, ErrRejected, true},
		{"peer error is not timeout", &PeerError{StatusCode: 500}, ErrTimeout, false},
		{"network error is unreachable", &NetworkError{Err: errors.New("refused")}, ErrUnreachable, true},
		{"timeout error is timeout", &TimeoutError{URL: "http://x", Timeout: time.Second}, ErrTimeout, true},
		{"timeout error is not unreachable", &TimeoutError{}, ErrUnreachable, false},
		{"wrapped network error", fmt.Errorf("send: %w", &NetworkError{Err: errors.New("x")}), ErrUnreachable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &NetworkError{Err: inner, URL: "http://peer"}
	if !errors.Is(err, inner) {
		t.Error("NetworkError does not unwrap to its cause")
	}
	if err.Error() != "network error: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}
