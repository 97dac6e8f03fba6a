package record

import "fmt"

// Kind tags a record type in the log.
type Kind string

// Record kinds.
const (
	KindOutboundMail         Kind = "outbound_mail"
	KindDeliveryUnit         Kind = "delivery_unit"
	KindInboundMail          Kind = "inbound_mail"
	KindOutboundAck          Kind = "outbound_ack"
	KindDeliveryAckUnit      Kind = "delivery_ack_unit"
	KindInboundAck           Kind = "inbound_ack"
	KindDeliveryConfirmation Kind = "delivery_confirmation"
	KindHandle               Kind = "handle"
	KindFileManifest         Kind = "file_manifest"
	KindFileChunk            Kind = "file_chunk"
	KindTombstone            Kind = "tombstone"
)

// Kinds returns every known record kind.
func Kinds() []Kind {
	return []Kind{
		KindOutboundMail,
		KindDeliveryUnit,
		KindInboundMail,
		KindOutboundAck,
		KindDeliveryAckUnit,
		KindInboundAck,
		KindDeliveryConfirmation,
		KindHandle,
		KindFileManifest,
		KindFileChunk,
		KindTombstone,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("record: unknown kind %q", s)
	}
	return k, nil
}
