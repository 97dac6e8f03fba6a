// Package crypto provides the cryptographic primitives of the peermail
// envelope. It implements post-quantum key encapsulation combined with a
// static X25519 agreement, authenticated encryption, and digital signatures.
//
// # Algorithm Suite
//
//   - ML-KEM-768 (NIST FIPS 203): key encapsulation to the recipient.
//
//   - X25519 (RFC 7748): static-static agreement between the sender's secret
//     key and the recipient's public key. Only the true sender can produce an
//     envelope the recipient opens under that sender's identity.
//
//   - HKDF-SHA-512 (RFC 5869): derives the AES key from both shared secrets
//     and a transcript naming sender then recipient.
//
//   - AES-256-GCM: authenticated encryption of the payload, with the same
//     transcript as additional data.
//
//   - ML-DSA-65 (NIST FIPS 204): signatures over the plaintext, so the
//     recipient can verify authorship independently of decryption.
//
// # Roles
//
// [Seal] takes the sender's [Keypair] and the recipient's [PublicKeys].
// [Open] takes the recipient's Keypair and the claimed sender's PublicKeys.
// Opening with the roles swapped fails.
//
// Open never checks signatures. Callers verify the recovered plaintext with
// [Verify] and must treat a failure of either step as an authentication
// failure.
//
// # Key Management
//
// Use [GenerateKeypair] to create an identity. [Keypair.Secrets] and
// [KeypairFromSecrets] convert to and from the stored secret form; public
// keys are always rederived. [PublicKeys.Fingerprint] is the agent address.
//
// Keep secret keys secure. They should never be logged, transmitted in
// plaintext, or stored in version control.
package crypto
