package peermail

import (
	"context"

	"github.com/vaultsandbox/peermail/internal/crypto"
	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/transport"
)

// Names re-exported from the internal packages so callers can use them.
type (
	// AgentID is the base64url fingerprint of an agent's public keys.
	AgentID = record.AgentID
	// RecordID is the content address of a log record.
	RecordID = record.ID
	// PublicKeys is the public half of an agent identity.
	PublicKeys = crypto.PublicKeys
	// Keypair is a full agent identity, only reachable inside Identity.Use.
	Keypair = crypto.Keypair

	Mail                 = record.Mail
	Attachment           = record.Attachment
	OutboundMail         = record.OutboundMail
	InboundMail          = record.InboundMail
	OutboundAck          = record.OutboundAck
	InboundAck           = record.InboundAck
	DeliveryConfirmation = record.DeliveryConfirmation
	FileManifest         = record.FileManifest

	// CallRequest is the body of a direct call.
	CallRequest = transport.Request
	// CallResponse is a peer's reply to a direct call.
	CallResponse = transport.Response
)

// Identity holds the local agent's keys. Secrets are only reachable
// inside Use; the keypair must not be retained after fn returns.
type Identity interface {
	Public() crypto.PublicKeys
	Use(fn func(kp *crypto.Keypair) error) error
}

// Caller performs direct calls to peers. The call must honour ctx.
type Caller interface {
	Call(ctx context.Context, address string, req *transport.Request) (*transport.Response, error)
}

// Notifier receives application events.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Directory resolves agent ids to public keys and addresses.
type Directory interface {
	Lookup(id AgentID) (Peer, bool)
	Learn(p Peer) bool
}

// AgentIDOf returns the agent id of a public key set.
func AgentIDOf(keys PublicKeys) AgentID {
	return AgentID(keys.Fingerprint())
}
