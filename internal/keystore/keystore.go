// Package keystore holds an agent's identity secrets.
//
// Secrets live in a memguard enclave: they are encrypted in memory and only
// decrypted for the duration of a [Vault.Use] call. On disk, an identity is a
// JSON [File], optionally sealed with an Argon2id-derived passphrase key.
package keystore

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/vaultsandbox/peermail/internal/crypto"
	"github.com/vaultsandbox/peermail/internal/record"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrInvalidFile is returned when an identity file fails validation.
	ErrInvalidFile = errors.New("invalid identity file")
	// ErrPassphraseRequired is returned when a sealed file is loaded without a passphrase.
	ErrPassphraseRequired = errors.New("identity file is passphrase protected")
	// ErrWrongPassphrase is returned when a sealed file cannot be opened.
	ErrWrongPassphrase = errors.New("wrong passphrase")
	// ErrInvalidKeypair is returned by NewVault for a malformed keypair.
	ErrInvalidKeypair = errors.New("invalid keypair")
)

// Vault is an identity whose secret keys are kept in protected memory.
type Vault struct {
	public  crypto.PublicKeys
	enclave *memguard.Enclave
}

// Generate creates a fresh identity.
func Generate() (*Vault, error) {
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("keystore: generate: %w", err)
	}
	return NewVault(kp)
}

// NewVault moves the secrets of kp into protected memory and wipes kp.
func NewVault(kp *crypto.Keypair) (*Vault, error) {
	if !crypto.ValidateKeypair(kp) {
		return nil, fmt.Errorf("keystore: %w", ErrInvalidKeypair)
	}
	public := crypto.PublicKeys{
		KEM: append([]byte(nil), kp.KEMPublic...),
		Sig: append([]byte(nil), kp.SigPublic...),
		DH:  append([]byte(nil), kp.DHPublic...),
	}
	// NewEnclave wipes the slice it is given.
	enclave := memguard.NewEnclave(kp.Secrets())
	kp.Wipe()
	return &Vault{public: public, enclave: enclave}, nil
}

// Public returns the public keys of the identity.
func (v *Vault) Public() crypto.PublicKeys {
	return v.public
}

// AgentID returns the identity's address.
func (v *Vault) AgentID() record.AgentID {
	return record.AgentID(v.public.Fingerprint())
}

// Use decrypts the secrets, passes the keypair to fn and wipes it afterwards.
// fn must not retain the keypair.
func (v *Vault) Use(fn func(kp *crypto.Keypair) error) error {
	buf, err := v.enclave.Open()
	if err != nil {
		return fmt.Errorf("keystore: open enclave: %w", err)
	}
	defer buf.Destroy()

	kp, err := crypto.KeypairFromSecrets(buf.Bytes())
	if err != nil {
		return fmt.Errorf("keystore: restore keypair: %w", err)
	}
	defer kp.Wipe()

	return fn(kp)
}

// Purge destroys all protected memory held by the process. Call it on exit.
func Purge() {
	memguard.Purge()
}
