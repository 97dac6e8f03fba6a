// Package config provides YAML-based configuration loading for the peermail daemon.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/vaultsandbox/peermail/internal/crypto"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PEERMAIL_"

// Config is the top-level peermail configuration, loaded from peermail.yaml.
type Config struct {
	Identity  IdentityConfig  `yaml:"identity"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Retry     RetryConfig     `yaml:"retry"`
	Files     FilesConfig     `yaml:"files"`
	Log       LogConfig       `yaml:"log"`
	Peers     []PeerConfig    `yaml:"peers"`
}

// IdentityConfig locates the identity file.
type IdentityConfig struct {
	Path string `yaml:"path"`
	// PassphraseEnv names the environment variable holding the identity passphrase.
	PassphraseEnv string `yaml:"passphrase_env"`
}

// StoreConfig locates the SQLite log.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the direct-call listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Advertise is the base URL peers use to reach this agent.
	Advertise string `yaml:"advertise"`
}

// TransportConfig configures outgoing direct calls.
type TransportConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	SOCKS5  string        `yaml:"socks5"`
}

// RetryConfig configures the retry scheduler.
type RetryConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Cron        string        `yaml:"cron"`
}

// FilesConfig bounds attachment storage.
type FilesConfig struct {
	MaxChunkSize int   `yaml:"max_chunk_size"`
	MaxFileSize  int64 `yaml:"max_file_size"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PeerConfig is a statically known peer.
type PeerConfig struct {
	ID      string `yaml:"id"`
	Keys    string `yaml:"keys"`
	Address string `yaml:"address"`
	Handle  string `yaml:"handle"`
}

// Load reads a YAML config file from path and returns a validated Config.
//
// A .env file next to the config, if present, is loaded into the process
// environment first; PEERMAIL_* variables then override file values.
// Relative paths are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg, err := ParseEnv(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(dir)
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config without environment overrides.
func Parse(data []byte) (*Config, error) {
	return ParseEnv(data, func(string) (string, bool) { return "", false })
}

// ParseEnv unmarshals YAML bytes, applies overrides from lookup and validates.
func ParseEnv(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Passphrase returns the identity passphrase from the configured variable, if any.
func (c *Config) Passphrase() []byte {
	if c.Identity.PassphraseEnv == "" {
		return nil
	}
	v := os.Getenv(c.Identity.PassphraseEnv)
	if v == "" {
		return nil
	}
	return []byte(v)
}

// applyEnv overrides file values with PEERMAIL_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"IDENTITY":   &c.Identity.Path,
		"STORE":      &c.Store.Path,
		"LISTEN":     &c.Server.Listen,
		"ADVERTISE":  &c.Server.Advertise,
		"SOCKS5":     &c.Transport.SOCKS5,
		"RETRY_CRON": &c.Retry.Cron,
		"LOG_LEVEL":  &c.Log.Level,
		"LOG_FORMAT": &c.Log.Format,
	}
	for name, dst := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Transport.Timeout = d
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Identity.Path == "" {
		c.Identity.Path = "identity.json"
	}
	if c.Store.Path == "" {
		c.Store.Path = "peermail.db"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:7465"
	}
	if c.Server.Advertise == "" {
		c.Server.Advertise = "http://" + c.Server.Listen
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 5 * time.Second
	}
	if c.Retry.Interval == 0 {
		c.Retry.Interval = 15 * time.Second
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = 10 * time.Minute
	}
	if c.Files.MaxChunkSize == 0 {
		c.Files.MaxChunkSize = 200 * 1024
	}
	if c.Files.MaxFileSize == 0 {
		c.Files.MaxFileSize = 10 * 1024 * 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Transport.Timeout < time.Second || c.Transport.Timeout > 10*time.Second {
		errs = append(errs, "transport.timeout must be between 1s and 10s")
	}
	if c.Retry.MaxInterval < c.Retry.Interval {
		errs = append(errs, "retry.max_interval must not be below retry.interval")
	}
	if c.Retry.Cron != "" {
		if _, err := cron.ParseStandard(c.Retry.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("retry.cron is invalid: %v", err))
		}
	}
	if c.Files.MaxChunkSize < 0 || int64(c.Files.MaxChunkSize) > c.Files.MaxFileSize {
		errs = append(errs, "files.max_chunk_size must be positive and not above files.max_file_size")
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is unknown", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	for i, p := range c.Peers {
		var keys crypto.PublicKeys
		if err := keys.UnmarshalText([]byte(p.Keys)); err != nil {
			errs = append(errs, fmt.Sprintf("peers[%d].keys is invalid", i))
			continue
		}
		if p.ID != "" && p.ID != keys.Fingerprint() {
			errs = append(errs, fmt.Sprintf("peers[%d].id does not match its keys", i))
		}
		if p.Address == "" {
			errs = append(errs, fmt.Sprintf("peers[%d].address is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Identity.Path, &c.Store.Path} {
		if *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
