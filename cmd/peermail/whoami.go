package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vaultsandbox/peermail/internal/record"
)

func newWhoamiCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the local agent's id, keys and handle",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			keys, err := s.agent.PublicKeys().MarshalText()
			if err != nil {
				return err
			}
			handle, err := s.agent.Handle(cmd.Context())
			if err != nil {
				return err
			}

			var counts [2]int64
			for i, kind := range []record.Kind{record.KindOutboundMail, record.KindInboundMail} {
				if counts[i], err = s.log.Count(cmd.Context(), kind); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\n", s.agent.ID())
			fmt.Fprintf(out, "Keys:    %s\n", keys)
			fmt.Fprintf(out, "Address: %s\n", s.cfg.Server.Advertise)
			if handle != "" {
				fmt.Fprintf(out, "Handle:  %s\n", handle)
			}
			fmt.Fprintf(out, "Mails:   %d sent, %d received\n", counts[0], counts[1])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
