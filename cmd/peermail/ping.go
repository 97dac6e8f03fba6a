package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ping <peer>",
		Short: "Call a peer and print its handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.resolvePeer(args[0])
			if err != nil {
				return err
			}
			start := time.Now()
			handle, err := s.agent.Ping(cmd.Context(), id)
			if err != nil {
				return err
			}
			if handle == "" {
				handle = "(no handle)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s in %s\n", id.Short(), handle, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
