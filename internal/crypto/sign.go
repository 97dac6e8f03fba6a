package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// Sign produces a deterministic ML-DSA-65 signature over message.
func Sign(keypair *Keypair, message []byte) ([]byte, error) {
	var sk mldsa65.PrivateKey
	if err := sk.UnmarshalBinary(keypair.SigSecret); err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	sig := make([]byte, MLDSASignatureSize)
	if err := mldsa65.SignTo(&sk, message, []byte(SignatureContext), false, sig); err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// Verify verifies an ML-DSA-65 signature made by Sign.
func Verify(publicKey, message, signature []byte) error {
	if len(signature) != MLDSASignatureSize {
		return ErrSignatureVerificationFailed
	}

	pk := &mldsa65.PublicKey{}
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	if !mldsa65.Verify(pk, message, []byte(SignatureContext), signature) {
		return ErrSignatureVerificationFailed
	}

	return nil
}
