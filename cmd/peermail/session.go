package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vaultsandbox/peermail"
	"github.com/vaultsandbox/peermail/internal/config"
)

const defaultConfigPath = "peermail.yaml"

// session bundles everything a command needs to act as the local agent.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	log    *peermail.SQLiteLog
	dir    *peermail.StaticDirectory
	agent  *peermail.Agent
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to peermail config file")
}

// openSession loads the config, unlocks the identity and opens the log.
func openSession(cmd *cobra.Command, configPath string) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	pass, err := passphrase(cmd, cfg)
	if err != nil {
		return nil, err
	}
	vault, err := peermail.LoadIdentity(cfg.Identity.Path, pass)
	if err != nil {
		return nil, fmt.Errorf("load identity (run `peermail init` first): %w", err)
	}
	dir, err := buildDirectory(cfg.Peers)
	if err != nil {
		return nil, err
	}
	caller, err := peermail.NewHTTPCaller(cfg.Transport.Timeout, cfg.Transport.SOCKS5)
	if err != nil {
		return nil, fmt.Errorf("create caller: %w", err)
	}
	log, err := peermail.OpenSQLiteLog(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}

	agent, err := peermail.New(vault, log, caller,
		peermail.WithLogger(logger),
		peermail.WithDirectory(dir),
		peermail.WithAddress(cfg.Server.Advertise),
		peermail.WithCallTimeout(cfg.Transport.Timeout),
		peermail.WithMaxChunkSize(cfg.Files.MaxChunkSize),
		peermail.WithMaxFileSize(cfg.Files.MaxFileSize),
	)
	if err != nil {
		log.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, log: log, dir: dir, agent: agent}, nil
}

// Close lets pending deliveries finish, then releases the agent and log.
func (s *session) Close() error {
	s.agent.Wait()
	s.agent.Close()
	return s.log.Close()
}

// passphrase reads the identity passphrase from the configured variable,
// or prompts for it when the variable is unset and stdin is a terminal.
func passphrase(cmd *cobra.Command, cfg *config.Config) ([]byte, error) {
	if p := cfg.Passphrase(); p != nil {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if cfg.Identity.PassphraseEnv == "" || !term.IsTerminal(fd) {
		return nil, nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Passphrase for %s (empty for none): ", cfg.Identity.Path)
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if len(p) == 0 {
		return nil, nil
	}
	return p, nil
}

func buildDirectory(peers []config.PeerConfig) (*peermail.StaticDirectory, error) {
	list := make([]peermail.Peer, 0, len(peers))
	for i, p := range peers {
		var keys peermail.PublicKeys
		if err := keys.UnmarshalText([]byte(p.Keys)); err != nil {
			return nil, fmt.Errorf("peers[%d]: %w", i, err)
		}
		list = append(list, peermail.Peer{
			ID:      peermail.AgentIDOf(keys),
			Keys:    keys,
			Address: p.Address,
			Handle:  p.Handle,
		})
	}
	return peermail.NewStaticDirectory(list...)
}

func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// resolvePeer accepts a full agent id or the handle of a known peer. Ids
// of peers not in the directory are passed through; mail to them is held
// until they become known.
func (s *session) resolvePeer(ref string) (peermail.AgentID, error) {
	if p, ok := s.dir.Lookup(peermail.AgentID(ref)); ok {
		return p.ID, nil
	}
	var match []peermail.AgentID
	for _, p := range s.dir.Peers() {
		if p.Handle == ref {
			match = append(match, p.ID)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return peermail.AgentID(ref), nil
	default:
		return "", fmt.Errorf("handle %q is ambiguous (%d peers)", ref, len(match))
	}
}

func (s *session) resolvePeers(refs []string) ([]peermail.AgentID, error) {
	out := make([]peermail.AgentID, 0, len(refs))
	for _, ref := range refs {
		id, err := s.resolvePeer(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
