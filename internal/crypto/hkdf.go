package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a key using HKDF-SHA-512.
//
// Parameters:
//   - secret: the input key material (e.g., shared secret from KEM)
//   - salt: optional salt value; if empty, a zero-filled salt is used
//   - info: context/application-specific info for domain separation
//   - length: desired output key length in bytes
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// deriveEnvelopeKey performs the HKDF-SHA-512 derivation for one envelope.
//
// The key derivation uses:
//   - IKM: the KEM shared secret followed by the X25519 shared secret
//   - Salt: SHA-256 hash of the KEM ciphertext
//   - Info: context string || transcript length (4 bytes BE) || transcript
//
// The transcript names sender and recipient in that order, so deriving with
// the roles swapped yields a different key.
func deriveEnvelopeKey(kemSecret, dhSecret, ctKem, transcript []byte) ([]byte, error) {
	saltHash := sha256.Sum256(ctKem)

	ikm := make([]byte, 0, len(kemSecret)+len(dhSecret))
	ikm = append(ikm, kemSecret...)
	ikm = append(ikm, dhSecret...)

	contextBytes := []byte(HKDFContext)
	info := make([]byte, 0, len(contextBytes)+4+len(transcript))
	info = append(info, contextBytes...)
	info = binary.BigEndian.AppendUint32(info, uint32(len(transcript)))
	info = append(info, transcript...)

	return DeriveKey(ikm, saltHash[:], info, AESKeySize)
}
