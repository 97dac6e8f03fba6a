package record

import (
	"time"

	"github.com/vaultsandbox/peermail/internal/crypto"
)

// Entry is implemented by every record type that can be appended to the log.
type Entry interface {
	Kind() Kind
	entry()
}

// Attachment references a locally stored file from inside a Mail.
type Attachment struct {
	ManifestID ID     `cbor:"1,keyasint" json:"manifest_id"`
	DataHash   string `cbor:"2,keyasint" json:"data_hash"`
	Filename   string `cbor:"3,keyasint" json:"filename"`
	Filetype   string `cbor:"4,keyasint" json:"filetype"`
	Size       int64  `cbor:"5,keyasint" json:"size"`
}

// Mail is the plaintext every recipient receives. It names the visible
// recipients only.
type Mail struct {
	Subject     string       `cbor:"1,keyasint" json:"subject"`
	Body        string       `cbor:"2,keyasint" json:"body"`
	To          []AgentID    `cbor:"3,keyasint,omitempty" json:"to,omitempty"`
	Cc          []AgentID    `cbor:"4,keyasint,omitempty" json:"cc,omitempty"`
	DateSent    time.Time    `cbor:"5,keyasint" json:"date_sent"`
	Attachments []Attachment `cbor:"6,keyasint,omitempty" json:"attachments,omitempty"`
}

// Ack is the plaintext of an acknowledgment: the sender's OutboundMail it confirms.
type Ack struct {
	OutboundMail ID `cbor:"1,keyasint"`
}

// OutboundMail is the sender's canonical copy of a composed mail.
type OutboundMail struct {
	Mail    Mail      `cbor:"1,keyasint"`
	Bcc     []AgentID `cbor:"2,keyasint,omitempty"`
	ReplyOf *ID       `cbor:"3,keyasint,omitempty"`
}

// Recipients returns to, cc and bcc in that order.
func (o OutboundMail) Recipients() []AgentID {
	out := make([]AgentID, 0, len(o.Mail.To)+len(o.Mail.Cc)+len(o.Bcc))
	out = append(out, o.Mail.To...)
	out = append(out, o.Mail.Cc...)
	out = append(out, o.Bcc...)
	return out
}

// DeliveryUnit is the sealed copy of an OutboundMail for one recipient.
type DeliveryUnit struct {
	OutboundMail ID              `cbor:"1,keyasint"`
	Recipient    AgentID         `cbor:"2,keyasint"`
	Envelope     crypto.Envelope `cbor:"3,keyasint"`
	Signature    []byte          `cbor:"4,keyasint"`
}

// InboundMail is a recipient's materialized copy of a received mail.
type InboundMail struct {
	Mail         Mail      `cbor:"1,keyasint"`
	From         AgentID   `cbor:"2,keyasint"`
	ReceivedAt   time.Time `cbor:"3,keyasint"`
	OutboundMail ID        `cbor:"4,keyasint"`
	Signature    []byte    `cbor:"5,keyasint"`
}

// OutboundAck acknowledges an InboundMail back to its sender.
type OutboundAck struct {
	InboundMail  ID      `cbor:"1,keyasint"`
	OutboundMail ID      `cbor:"2,keyasint"`
	To           AgentID `cbor:"3,keyasint"`
}

// DeliveryAckUnit is the sealed copy of an OutboundAck.
type DeliveryAckUnit struct {
	OutboundAck ID              `cbor:"1,keyasint"`
	Recipient   AgentID         `cbor:"2,keyasint"`
	Envelope    crypto.Envelope `cbor:"3,keyasint"`
	Signature   []byte          `cbor:"4,keyasint"`
}

// InboundAck records, at the original sender, that a recipient acknowledged a mail.
type InboundAck struct {
	OutboundMail ID        `cbor:"1,keyasint"`
	From         AgentID   `cbor:"2,keyasint"`
	ReceivedAt   time.Time `cbor:"3,keyasint"`
	Signature    []byte    `cbor:"4,keyasint"`
}

// DeliveryConfirmation records that an OutboundAck reached its recipient.
type DeliveryConfirmation struct {
	OutboundAck ID        `cbor:"1,keyasint"`
	Recipient   AgentID   `cbor:"2,keyasint"`
	ConfirmedAt time.Time `cbor:"3,keyasint"`
}

// Handle is the agent's display name. The most recent one wins.
type Handle struct {
	Username string    `cbor:"1,keyasint"`
	SetAt    time.Time `cbor:"2,keyasint"`
}

// FileManifest describes a file stored as chunks.
type FileManifest struct {
	DataHash string `cbor:"1,keyasint"`
	Filename string `cbor:"2,keyasint"`
	Filetype string `cbor:"3,keyasint"`
	Size     int64  `cbor:"4,keyasint"`
	Chunks   []ID   `cbor:"5,keyasint"`
}

// FileChunk is one piece of a file.
type FileChunk struct {
	DataHash string `cbor:"1,keyasint"`
	Index    int    `cbor:"2,keyasint"`
	Data     []byte `cbor:"3,keyasint"`
}

// Tombstone hides a mail record from views. The target stays in the log.
type Tombstone struct {
	Target    ID        `cbor:"1,keyasint"`
	DeletedAt time.Time `cbor:"2,keyasint"`
}

func (OutboundMail) Kind() Kind         { return KindOutboundMail }
func (DeliveryUnit) Kind() Kind         { return KindDeliveryUnit }
func (InboundMail) Kind() Kind          { return KindInboundMail }
func (OutboundAck) Kind() Kind          { return KindOutboundAck }
func (DeliveryAckUnit) Kind() Kind      { return KindDeliveryAckUnit }
func (InboundAck) Kind() Kind           { return KindInboundAck }
func (DeliveryConfirmation) Kind() Kind { return KindDeliveryConfirmation }
func (Handle) Kind() Kind               { return KindHandle }
func (FileManifest) Kind() Kind         { return KindFileManifest }
func (FileChunk) Kind() Kind            { return KindFileChunk }
func (Tombstone) Kind() Kind            { return KindTombstone }

func (OutboundMail) entry()         {}
func (DeliveryUnit) entry()         {}
func (InboundMail) entry()          {}
func (OutboundAck) entry()          {}
func (DeliveryAckUnit) entry()      {}
func (InboundAck) entry()           {}
func (DeliveryConfirmation) entry() {}
func (Handle) entry()               {}
func (FileManifest) entry()         {}
func (FileChunk) entry()            {}
func (Tombstone) entry()            {}
