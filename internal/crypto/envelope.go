package crypto

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/curve25519"
)

// Envelope is the sealed form of one payload for one (sender, recipient) pair.
type Envelope struct {
	// V is the envelope version number.
	V int `cbor:"1,keyasint"`
	// Algs names the algorithm suite, see AlgsCiphersuite.
	Algs string `cbor:"2,keyasint"`
	// CtKem is the ML-KEM-768 ciphertext encapsulated to the recipient.
	CtKem []byte `cbor:"3,keyasint"`
	// Nonce is the AES-GCM nonce.
	Nonce []byte `cbor:"4,keyasint"`
	// Ciphertext is the AES-GCM ciphertext with its tag appended.
	Ciphertext []byte `cbor:"5,keyasint"`
}

// Seal encrypts plaintext so that only recipient can open it, and only while
// naming sender as the author. ad is authenticated but not encrypted; Open
// must be given the same bytes.
//
// The sealing process:
//  1. ML-KEM-768 encapsulation to the recipient's KEM key
//  2. X25519 between the sender's DH secret and the recipient's DH key
//  3. HKDF-SHA-512 over both secrets with a role-ordered transcript
//  4. AES-256-GCM encryption with the transcript and ad as AAD
func Seal(plaintext []byte, sender *Keypair, recipient PublicKeys, ad []byte) (*Envelope, error) {
	if err := recipient.Validate(); err != nil {
		return nil, fmt.Errorf("recipient keys: %w", err)
	}

	scheme := mlkem768.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(recipient.KEM)
	if err != nil {
		return nil, fmt.Errorf("unmarshal recipient kem key: %w", err)
	}
	seed := make([]byte, scheme.EncapsulationSeedSize())
	if _, err := io.ReadFull(random(), seed); err != nil {
		return nil, fmt.Errorf("encapsulation seed: %w", err)
	}
	ctKem, kemSecret, err := scheme.EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, fmt.Errorf("encapsulate: %w", err)
	}

	dhSecret, err := curve25519.X25519(sender.DHSecret, recipient.DH)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLowOrderPoint, err)
	}

	transcript := roleTranscript(sender.Public(), recipient)
	key, err := deriveEnvelopeKey(kemSecret, dhSecret, ctKem, transcript)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	nonce := make([]byte, AESNonceSize)
	if _, err := io.ReadFull(random(), nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	ciphertext, err := encryptAESGCM(key, nonce, envelopeAAD(transcript, ad), plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	return &Envelope{
		V:          EnvelopeVersion,
		Algs:       AlgsCiphersuite,
		CtKem:      ctKem,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Open decrypts an envelope addressed to recipient and claimed to come from sender.
//
// Opening with the wrong recipient key, the wrong claimed sender or
// different associated data fails with ErrDecryptionFailed.
//
// Security: Open does NOT verify the plaintext signature. Callers MUST call
// [Verify] on the recovered plaintext before trusting it.
func Open(env *Envelope, recipient *Keypair, sender PublicKeys, ad []byte) ([]byte, error) {
	if env == nil {
		return nil, ErrInvalidEnvelope
	}
	if env.V != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidEnvelope, env.V)
	}
	if env.Algs != AlgsCiphersuite {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAlgorithm, env.Algs)
	}
	if err := sender.Validate(); err != nil {
		return nil, fmt.Errorf("sender keys: %w", err)
	}

	// 1. KEM Decapsulation
	kemSecret, err := recipient.Decapsulate(env.CtKem)
	if err != nil {
		return nil, fmt.Errorf("decapsulate: %w", err)
	}

	// 2. Static key agreement with the claimed sender
	dhSecret, err := curve25519.X25519(recipient.DHSecret, sender.DH)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLowOrderPoint, err)
	}

	// 3. Key Derivation (HKDF-SHA-512)
	transcript := roleTranscript(sender, recipient.Public())
	key, err := deriveEnvelopeKey(kemSecret, dhSecret, env.CtKem, transcript)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	// 4. AES-256-GCM Decryption
	plaintext, err := decryptAESGCM(key, env.Nonce, envelopeAAD(transcript, ad), env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}

// roleTranscript binds version, suite and both identities in sender→recipient order.
func roleTranscript(sender, recipient PublicKeys) []byte {
	senderDigest := sender.digest()
	recipientDigest := recipient.digest()

	transcript := []byte{byte(EnvelopeVersion)}
	transcript = append(transcript, []byte(AlgsCiphersuite)...)
	transcript = append(transcript, []byte(HKDFContext)...)
	transcript = append(transcript, senderDigest[:]...)
	transcript = append(transcript, recipientDigest[:]...)
	return transcript
}

func envelopeAAD(transcript, ad []byte) []byte {
	aad := make([]byte, 0, len(transcript)+len(ad))
	aad = append(aad, transcript...)
	return append(aad, ad...)
}
