package transport

import (
	"github.com/vaultsandbox/peermail/internal/crypto"
)

// DirectPath is the HTTP route of direct peer calls.
const DirectPath = "/v1/direct"

// RequestIDHeader carries the per-call request id.
const RequestIDHeader = "X-Request-ID"

// CallKind names what a direct call carries.
type CallKind string

const (
	// KindMail carries a sealed DeliveryUnit.
	KindMail CallKind = "mail"
	// KindAck carries a sealed DeliveryAckUnit.
	KindAck CallKind = "ack"
	// KindPing carries no payload.
	KindPing CallKind = "ping"
)

// Valid reports whether k is a known call kind.
func (k CallKind) Valid() bool {
	switch k {
	case KindMail, KindAck, KindPing:
		return true
	}
	return false
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Sender is the calling agent's public card.
type Sender struct {
	Keys    crypto.PublicKeys `json:"keys"`
	Address string            `json:"address,omitempty"`
	Handle  string            `json:"handle,omitempty"`
}

// Request is the body of a direct call.
type Request struct {
	Kind    CallKind `json:"kind"`
	Sender  Sender   `json:"sender"`
	Payload []byte   `json:"payload,omitempty"`
}

// Response is the reply to a direct call.
type Response struct {
	Status string `json:"status"`
	Handle string `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the peer accepted the call.
func (r *Response) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// Success builds a success response.
func Success(handle string) *Response {
	return &Response{Status: StatusSuccess, Handle: handle}
}

// Failure builds a failure response.
func Failure(msg string) *Response {
	return &Response{Status: StatusFailure, Error: msg}
}
