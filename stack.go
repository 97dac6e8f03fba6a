package peermail

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultsandbox/peermail/internal/keystore"
	"github.com/vaultsandbox/peermail/internal/store"
	"github.com/vaultsandbox/peermail/internal/transport"
)

// Concrete collaborators shipped with the module.
type (
	// Log is the append-only record log consumed by the agent.
	Log = store.Log
	// SQLiteLog is the gorm + SQLite implementation of Log.
	SQLiteLog = store.GormLog
	// Vault is an Identity whose secrets live in protected memory.
	Vault = keystore.Vault
	// HTTPCaller is the HTTP implementation of Caller.
	HTTPCaller = transport.Client
	// Server answers direct calls over HTTP.
	Server = transport.Server
)

// OpenSQLiteLog opens or creates the log database at path. Use ":memory:"
// for a throwaway log.
func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	return store.OpenSQLite(path)
}

// GenerateIdentity creates a fresh identity.
func GenerateIdentity() (*Vault, error) {
	return keystore.Generate()
}

// LoadIdentity reads an identity file. passphrase may be nil for
// unprotected files.
func LoadIdentity(path string, passphrase []byte) (*Vault, error) {
	return keystore.Load(path, passphrase)
}

// SaveIdentity writes v to path, sealing the secrets when passphrase is set.
func SaveIdentity(path string, v *Vault, passphrase []byte) error {
	return keystore.Save(path, v, passphrase)
}

// NewHTTPCaller returns a Caller bounded by timeout. A non-empty socks5
// address routes every call through that proxy.
func NewHTTPCaller(timeout time.Duration, socks5 string) (*HTTPCaller, error) {
	opts := []transport.Option{transport.WithTimeout(timeout)}
	if socks5 != "" {
		opts = append(opts, transport.WithSOCKS5(socks5))
	}
	return transport.NewClient(opts...)
}

// NewServer returns an HTTP server dispatching direct calls to a.
func NewServer(a *Agent, logger zerolog.Logger) (*Server, error) {
	return transport.NewServer(transport.ServerOpts{Handler: a, Logger: logger})
}
