package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
)

// randReader is the random source used for key generation and sealing.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// publicKeysPrefix tags the text form of a PublicKeys value.
const publicKeysPrefix = "pm1."

// PublicKeys is the public half of an agent identity.
type PublicKeys struct {
	// KEM is the raw ML-KEM-768 public key used to encapsulate envelope keys.
	KEM []byte `json:"-" cbor:"1,keyasint"`
	// Sig is the raw ML-DSA-65 public key used to verify mail signatures.
	Sig []byte `json:"-" cbor:"2,keyasint"`
	// DH is the raw X25519 public key used for sender authentication.
	DH []byte `json:"-" cbor:"3,keyasint"`
}

// Validate checks the size of every key.
func (p PublicKeys) Validate() error {
	if len(p.KEM) != MLKEMPublicKeySize {
		return fmt.Errorf("%w: kem %d", ErrInvalidPublicKeySize, len(p.KEM))
	}
	if len(p.Sig) != MLDSAPublicKeySize {
		return fmt.Errorf("%w: sig %d", ErrInvalidPublicKeySize, len(p.Sig))
	}
	if len(p.DH) != X25519KeySize {
		return fmt.Errorf("%w: dh %d", ErrInvalidPublicKeySize, len(p.DH))
	}
	return nil
}

// Equal reports whether both key sets are byte-identical.
func (p PublicKeys) Equal(o PublicKeys) bool {
	return bytes.Equal(p.KEM, o.KEM) && bytes.Equal(p.Sig, o.Sig) && bytes.Equal(p.DH, o.DH)
}

// digest is the BLAKE2b-256 hash over the length-prefixed keys.
func (p PublicKeys) digest() [32]byte {
	h, _ := blake2b.New256(nil)
	for _, k := range [][]byte{p.KEM, p.Sig, p.DH} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(k)))
		h.Write(n[:])
		h.Write(k)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Fingerprint returns the base64url BLAKE2b-256 digest of the key set.
// It is used as the agent's stable address.
func (p PublicKeys) Fingerprint() string {
	d := p.digest()
	return ToBase64URL(d[:])
}

// MarshalText encodes the key set as "pm1." followed by base64url(KEM||Sig||DH).
func (p PublicKeys) MarshalText() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw := make([]byte, 0, MLKEMPublicKeySize+MLDSAPublicKeySize+X25519KeySize)
	raw = append(raw, p.KEM...)
	raw = append(raw, p.Sig...)
	raw = append(raw, p.DH...)
	return []byte(publicKeysPrefix + ToBase64URL(raw)), nil
}

// UnmarshalText decodes the form produced by MarshalText.
func (p *PublicKeys) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, publicKeysPrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrInvalidPublicKeySize, publicKeysPrefix)
	}
	raw, err := DecodeBase64(strings.TrimPrefix(s, publicKeysPrefix))
	if err != nil {
		return fmt.Errorf("decode public keys: %w", err)
	}
	if len(raw) != MLKEMPublicKeySize+MLDSAPublicKeySize+X25519KeySize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKeySize, len(raw))
	}
	p.KEM = append([]byte(nil), raw[:MLKEMPublicKeySize]...)
	p.Sig = append([]byte(nil), raw[MLKEMPublicKeySize:MLKEMPublicKeySize+MLDSAPublicKeySize]...)
	p.DH = append([]byte(nil), raw[MLKEMPublicKeySize+MLDSAPublicKeySize:]...)
	return nil
}

// Keypair is a full agent identity: encryption, signing and key agreement keys.
type Keypair struct {
	// KEMPublic is the raw ML-KEM-768 public key bytes.
	KEMPublic []byte
	// KEMSecret is the raw ML-KEM-768 secret key bytes.
	KEMSecret []byte
	// SigPublic is the raw ML-DSA-65 public key bytes.
	SigPublic []byte
	// SigSecret is the packed ML-DSA-65 private key bytes.
	SigSecret []byte
	// DHPublic is the X25519 public key.
	DHPublic []byte
	// DHSecret is the X25519 scalar.
	DHSecret []byte
}

// GenerateKeypair creates a new identity keypair.
func GenerateKeypair() (*Keypair, error) {
	kemPub, kemPriv, err := mlkem768.GenerateKeyPair(random())
	if err != nil {
		return nil, fmt.Errorf("generate kem key: %w", err)
	}
	sigPub, sigPriv, err := mldsa65.GenerateKey(random())
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	dhSecret := make([]byte, X25519KeySize)
	if _, err := io.ReadFull(random(), dhSecret); err != nil {
		return nil, fmt.Errorf("generate dh key: %w", err)
	}
	dhPublic, err := curve25519.X25519(dhSecret, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive dh public key: %w", err)
	}

	// MarshalBinary never fails for valid keys from GenerateKeyPair
	kemPubBytes, _ := kemPub.MarshalBinary()
	kemPrivBytes, _ := kemPriv.MarshalBinary()
	sigPubBytes, _ := sigPub.MarshalBinary()
	sigPrivBytes, _ := sigPriv.MarshalBinary()

	return &Keypair{
		KEMPublic: kemPubBytes,
		KEMSecret: kemPrivBytes,
		SigPublic: sigPubBytes,
		SigSecret: sigPrivBytes,
		DHPublic:  dhPublic,
		DHSecret:  dhSecret,
	}, nil
}

// Public returns the public half of the keypair.
func (k *Keypair) Public() PublicKeys {
	return PublicKeys{KEM: k.KEMPublic, Sig: k.SigPublic, DH: k.DHPublic}
}

// Secrets returns KEMSecret || SigSecret || DHSecret, the form stored by the keystore.
func (k *Keypair) Secrets() []byte {
	out := make([]byte, 0, MLKEMSecretKeySize+MLDSASecretKeySize+X25519KeySize)
	out = append(out, k.KEMSecret...)
	out = append(out, k.SigSecret...)
	out = append(out, k.DHSecret...)
	return out
}

// KeypairFromSecrets reconstructs a keypair from the output of Secrets.
// All public keys are derived from their secret counterparts.
func KeypairFromSecrets(secrets []byte) (*Keypair, error) {
	if len(secrets) != MLKEMSecretKeySize+MLDSASecretKeySize+X25519KeySize {
		return nil, ErrInvalidSecretKeySize
	}
	kemSecret := append([]byte(nil), secrets[:MLKEMSecretKeySize]...)
	sigSecret := append([]byte(nil), secrets[MLKEMSecretKeySize:MLKEMSecretKeySize+MLDSASecretKeySize]...)
	dhSecret := append([]byte(nil), secrets[MLKEMSecretKeySize+MLDSASecretKeySize:]...)

	var kemPriv mlkem768.PrivateKey
	if err := kemPriv.Unpack(kemSecret); err != nil {
		return nil, fmt.Errorf("unpack kem key: %w", err)
	}
	kemPublic, err := DerivePublicKeyFromSecret(kemSecret)
	if err != nil {
		return nil, err
	}

	var sigPriv mldsa65.PrivateKey
	if err := sigPriv.UnmarshalBinary(sigSecret); err != nil {
		return nil, fmt.Errorf("unpack signing key: %w", err)
	}
	sigPub, ok := sigPriv.Public().(*mldsa65.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected signing public key type %T", sigPriv.Public())
	}
	sigPublic, _ := sigPub.MarshalBinary()

	dhPublic, err := curve25519.X25519(dhSecret, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive dh public key: %w", err)
	}

	return &Keypair{
		KEMPublic: kemPublic,
		KEMSecret: kemSecret,
		SigPublic: sigPublic,
		SigSecret: sigSecret,
		DHPublic:  dhPublic,
		DHSecret:  dhSecret,
	}, nil
}

// ValidateKeypair validates that a keypair has the correct structure and sizes.
// Returns true if all validations pass, false otherwise.
func ValidateKeypair(keypair *Keypair) bool {
	if keypair == nil {
		return false
	}
	if keypair.Public().Validate() != nil {
		return false
	}
	if len(keypair.KEMSecret) != MLKEMSecretKeySize ||
		len(keypair.SigSecret) != MLDSASecretKeySize ||
		len(keypair.DHSecret) != X25519KeySize {
		return false
	}
	// The KEM public key is embedded in the secret key
	return bytes.Equal(keypair.KEMSecret[PublicKeyOffset:PublicKeyOffset+MLKEMPublicKeySize], keypair.KEMPublic)
}

// DerivePublicKeyFromSecret extracts the public key from an ML-KEM-768 secret key.
// Returns an error if the secret key has an invalid size.
func DerivePublicKeyFromSecret(secretKey []byte) ([]byte, error) {
	if len(secretKey) != MLKEMSecretKeySize {
		return nil, ErrInvalidSecretKeySize
	}

	// Public key is embedded at offset 1152 in circl's ML-KEM-768 secret key format
	publicKey := make([]byte, MLKEMPublicKeySize)
	copy(publicKey, secretKey[PublicKeyOffset:PublicKeyOffset+MLKEMPublicKeySize])
	return publicKey, nil
}

// Decapsulate decapsulates a shared secret from the encapsulated key.
// A ciphertext encapsulated to another key yields an unrelated secret, not an error.
func (k *Keypair) Decapsulate(encapsulatedKey []byte) ([]byte, error) {
	if len(encapsulatedKey) != MLKEMCiphertextSize {
		return nil, ErrInvalidCiphertextSize
	}

	var privKey mlkem768.PrivateKey
	if err := privKey.Unpack(k.KEMSecret); err != nil {
		return nil, err
	}

	sharedSecret := make([]byte, MLKEMSharedKeySize)
	privKey.DecapsulateTo(sharedSecret, encapsulatedKey)

	return sharedSecret, nil
}

// Wipe zeroes every secret key in place.
func (k *Keypair) Wipe() {
	for _, b := range [][]byte{k.KEMSecret, k.SigSecret, k.DHSecret} {
		for i := range b {
			b[i] = 0
		}
	}
}
