package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Run one retry pass over unacknowledged mails and unconfirmed acks",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			mails, err := s.agent.ResendOutboundMails(ctx)
			if err != nil {
				return err
			}
			acks, err := s.agent.ResendOutboundAcks(ctx)
			if err != nil {
				return err
			}
			s.agent.Wait()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Retried %d mail(s) and %d ack(s)\n", len(mails), len(acks))
			for _, id := range mails {
				m, err := s.agent.Mail(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s  %-22s %s\n", id.Short(), m.State, m.Mail.Subject)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
