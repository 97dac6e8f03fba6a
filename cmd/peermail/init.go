package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultsandbox/peermail"
	"github.com/vaultsandbox/peermail/internal/config"
)

const defaultConfigYAML = `identity:
  path: identity.json
  passphrase_env: PEERMAIL_PASSPHRASE
store:
  path: peermail.db
server:
  listen: 127.0.0.1:7465
log:
  level: info
  format: console
peers: []
`

func newInitCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file and a new identity",
		Long:  "Writes a default config if none exists, then generates an identity at identity.path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, configPath, force)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}

func runInit(cmd *cobra.Command, configPath string, force bool) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Wrote default config to %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := os.Stat(cfg.Identity.Path); err == nil && !force {
		return fmt.Errorf("identity %s already exists (use --force to replace it)", cfg.Identity.Path)
	}

	vault, err := peermail.GenerateIdentity()
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	pass, err := passphrase(cmd, cfg)
	if err != nil {
		return err
	}
	if err := peermail.SaveIdentity(cfg.Identity.Path, vault, pass); err != nil {
		return err
	}
	if pass == nil {
		fmt.Fprintf(out, "Warning: %s is not passphrase protected\n", cfg.Identity.Path)
	}

	keys, err := vault.Public().MarshalText()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Identity written to %s\n", cfg.Identity.Path)
	fmt.Fprintf(out, "ID:   %s\n", vault.AgentID())
	fmt.Fprintf(out, "Keys: %s\n", keys)
	return nil
}
