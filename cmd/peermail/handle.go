package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHandleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "handle [name]",
		Short: "Show or set the display name sent to peers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if _, err := s.agent.SetHandle(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			handle, err := s.agent.Handle(cmd.Context())
			if err != nil {
				return err
			}
			if handle == "" {
				fmt.Fprintln(out, "No handle set.")
				return nil
			}
			fmt.Fprintln(out, handle)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
