package keystore

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"github.com/vaultsandbox/peermail/internal/crypto"
	"golang.org/x/crypto/argon2"
)

// FileVersion is the identity file format version.
const FileVersion = 1

// Argon2id parameters for new sealed files.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonSaltLen = 16
)

// File is the on-disk form of an identity.
type File struct {
	// Version is the file format version. MUST be 1.
	Version int `json:"version"`
	// AgentID is the fingerprint of PublicKeys. Informational; verified on load.
	AgentID string `json:"agentId"`
	// PublicKeys is the "pm1." text form of the public keys.
	PublicKeys string `json:"publicKeys"`
	// SecretKeys is base64url(KEM||Sig||DH secrets). Set only for unsealed files.
	SecretKeys string `json:"secretKeys,omitempty"`
	// Sealed holds the passphrase-encrypted secrets. Set only for sealed files.
	Sealed *Sealed `json:"sealed,omitempty"`
	// CreatedAt is the export timestamp. Informational only.
	CreatedAt time.Time `json:"createdAt"`
}

// Sealed is a passphrase-encrypted secret key blob.
type Sealed struct {
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	Time       uint32 `json:"time"`
	Memory     uint32 `json:"memory"`
	Threads    uint8  `json:"threads"`
	Ciphertext string `json:"ciphertext"`
}

// Validate checks the structure of the file.
func (f *File) Validate() error {
	if f.Version != FileVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidFile, f.Version, FileVersion)
	}
	if f.PublicKeys == "" {
		return fmt.Errorf("%w: missing public keys", ErrInvalidFile)
	}
	if (f.SecretKeys == "") == (f.Sealed == nil) {
		return fmt.Errorf("%w: exactly one of secretKeys and sealed must be set", ErrInvalidFile)
	}
	if f.Sealed != nil && f.Sealed.KDF != "argon2id" {
		return fmt.Errorf("%w: unsupported kdf %q", ErrInvalidFile, f.Sealed.KDF)
	}
	return nil
}

// Export writes the identity into a File. A non-empty passphrase seals the secrets.
func (v *Vault) Export(passphrase []byte) (*File, error) {
	pub, err := v.public.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("keystore: export: %w", err)
	}
	f := &File{
		Version:    FileVersion,
		AgentID:    string(v.AgentID()),
		PublicKeys: string(pub),
		CreatedAt:  time.Now().UTC(),
	}

	buf, err := v.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("keystore: open enclave: %w", err)
	}
	defer buf.Destroy()

	if len(passphrase) == 0 {
		f.SecretKeys = crypto.ToBase64URL(buf.Bytes())
		return f, nil
	}

	sealed, err := seal(buf.Bytes(), passphrase)
	if err != nil {
		return nil, err
	}
	f.Sealed = sealed
	return f, nil
}

// Import restores a Vault from a File. The passphrase is ignored for unsealed files.
func Import(f *File, passphrase []byte) (*Vault, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidFile)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var public crypto.PublicKeys
	if err := public.UnmarshalText([]byte(f.PublicKeys)); err != nil {
		return nil, fmt.Errorf("%w: public keys: %v", ErrInvalidFile, err)
	}

	var secrets []byte
	if f.Sealed != nil {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		plain, err := unseal(f.Sealed, passphrase)
		if err != nil {
			return nil, err
		}
		secrets = plain
	} else {
		raw, err := crypto.DecodeBase64(f.SecretKeys)
		if err != nil {
			return nil, fmt.Errorf("%w: secret keys: %v", ErrInvalidFile, err)
		}
		secrets = raw
	}
	defer memguard.WipeBytes(secrets)

	kp, err := crypto.KeypairFromSecrets(secrets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if !kp.Public().Equal(public) {
		kp.Wipe()
		return nil, fmt.Errorf("%w: public keys do not match secret keys", ErrInvalidFile)
	}
	if f.AgentID != "" && subtle.ConstantTimeCompare([]byte(f.AgentID), []byte(public.Fingerprint())) != 1 {
		kp.Wipe()
		return nil, fmt.Errorf("%w: agent id does not match public keys", ErrInvalidFile)
	}
	v, err := NewVault(kp)
	if err != nil {
		kp.Wipe()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return v, nil
}

// Save exports v to path with secure permissions (0600).
func Save(path string, v *Vault, passphrase []byte) error {
	f, err := v.Export(passphrase)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return nil
}

// Load reads an identity file written by Save.
func Load(path string, passphrase []byte) (*Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return Import(&f, passphrase)
}

func seal(secrets, passphrase []byte) (*Sealed, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keystore: salt: %w", err)
	}
	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, crypto.AESKeySize)
	defer memguard.WipeBytes(key)

	ct, err := crypto.EncryptAES(key, secrets)
	if err != nil {
		return nil, fmt.Errorf("keystore: seal: %w", err)
	}
	return &Sealed{
		KDF:        "argon2id",
		Salt:       crypto.ToBase64URL(salt),
		Time:       argonTime,
		Memory:     argonMemory,
		Threads:    argonThreads,
		Ciphertext: crypto.ToBase64URL(ct),
	}, nil
}

func unseal(s *Sealed, passphrase []byte) ([]byte, error) {
	salt, err := crypto.DecodeBase64(s.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidFile, err)
	}
	ct, err := crypto.DecodeBase64(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrInvalidFile, err)
	}
	if s.Time == 0 || s.Memory == 0 || s.Threads == 0 {
		return nil, fmt.Errorf("%w: missing kdf parameters", ErrInvalidFile)
	}
	key := argon2.IDKey(passphrase, salt, s.Time, s.Memory, s.Threads, crypto.AESKeySize)
	defer memguard.WipeBytes(key)

	plain, err := crypto.DecryptAES(key, ct)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
