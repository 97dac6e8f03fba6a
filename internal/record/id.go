package record

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ID is the content address of a record.
type ID [32]byte

// Hash computes the ID of a canonical payload of the given kind.
func Hash(kind Kind, payload []byte) ID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(payload)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// IsZero reports whether id is unset.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String returns the base64url form of the ID.
func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Short returns an abbreviated form for logs and listings.
func (id ID) Short() string {
	return id.String()[:10]
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID parses the form produced by String.
func ParseID(s string) (ID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("record: parse id: %w", err)
	}
	if len(raw) != len(ID{}) {
		return ID{}, fmt.Errorf("record: parse id: got %d bytes, want %d", len(raw), len(ID{}))
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// AgentID is the stable address of an agent: the fingerprint of its public keys.
type AgentID string

// Short returns an abbreviated form for logs and listings.
func (a AgentID) Short() string {
	if len(a) <= 10 {
		return string(a)
	}
	return string(a[:10])
}
