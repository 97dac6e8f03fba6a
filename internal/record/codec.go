package record

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("record: cbor encoder: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("record: cbor decoder: %v", err))
	}
	decMode = dm
}

// Marshal returns the canonical CBOR encoding of v.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("record: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes CBOR produced by Marshal.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("record: unmarshal: %w", err)
	}
	return nil
}

// Encode returns the kind and canonical payload of e.
func Encode(e Entry) (Kind, []byte, error) {
	if e == nil {
		return "", nil, fmt.Errorf("record: encode nil entry")
	}
	data, err := Marshal(e)
	if err != nil {
		return "", nil, err
	}
	return e.Kind(), data, nil
}

// IDOf returns the content address of e.
func IDOf(e Entry) (ID, error) {
	kind, data, err := Encode(e)
	if err != nil {
		return ID{}, err
	}
	return Hash(kind, data), nil
}

// Decode reconstructs the entry stored under kind.
func Decode(kind Kind, data []byte) (Entry, error) {
	switch kind {
	case KindOutboundMail:
		return decodeAs[OutboundMail](data)
	case KindDeliveryUnit:
		return decodeAs[DeliveryUnit](data)
	case KindInboundMail:
		return decodeAs[InboundMail](data)
	case KindOutboundAck:
		return decodeAs[OutboundAck](data)
	case KindDeliveryAckUnit:
		return decodeAs[DeliveryAckUnit](data)
	case KindInboundAck:
		return decodeAs[InboundAck](data)
	case KindDeliveryConfirmation:
		return decodeAs[DeliveryConfirmation](data)
	case KindHandle:
		return decodeAs[Handle](data)
	case KindFileManifest:
		return decodeAs[FileManifest](data)
	case KindFileChunk:
		return decodeAs[FileChunk](data)
	case KindTombstone:
		return decodeAs[Tombstone](data)
	default:
		return nil, fmt.Errorf("record: decode unknown kind %q", kind)
	}
}

func decodeAs[T Entry](data []byte) (Entry, error) {
	var v T
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
