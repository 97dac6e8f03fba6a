package main

import (
	"fmt"
	"io"
	"regexp"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultsandbox/peermail"
	"github.com/vaultsandbox/peermail/internal/record"
)

func newListCmd() *cobra.Command {
	var (
		configPath string
		direction  string
		from       string
		subject    string
		state      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mails, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			var opts []peermail.ListOption
			if direction != "" {
				opts = append(opts, peermail.WithDirection(peermail.Direction(direction)))
			}
			if from != "" {
				id, err := s.resolvePeer(from)
				if err != nil {
					return err
				}
				opts = append(opts, peermail.WithFrom(id))
			}
			if subject != "" {
				re, err := regexp.Compile(subject)
				if err != nil {
					return fmt.Errorf("invalid --subject pattern: %w", err)
				}
				opts = append(opts, peermail.WithSubjectRegex(re))
			}
			if state != "" {
				opts = append(opts, peermail.WithState(peermail.MailState(state)))
			}

			items, err := s.agent.Mails(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No mails found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDIR\tPEER\tSTATE\tDATE\tSUBJECT")
			for _, m := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					m.ID.Short(), m.Direction, s.peerColumn(m), m.State,
					m.Date.Local().Format(time.DateTime), m.Mail.Subject)
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&direction, "direction", "", "inbound or outbound")
	cmd.Flags().StringVar(&from, "from", "", "author id or handle")
	cmd.Flags().StringVar(&subject, "subject", "", "subject regular expression")
	cmd.Flags().StringVar(&state, "state", "", "mail state (e.g. unsent, acknowledged, ack_unsent)")
	return cmd
}

// peerColumn is the author of inbound mail or the first recipient of outbound mail.
func (s *session) peerColumn(m peermail.MailItem) string {
	if m.Direction == peermail.Inbound {
		return s.label(m.Author)
	}
	recipients := append(append(append([]peermail.AgentID{}, m.Mail.To...), m.Mail.Cc...), m.Bcc...)
	if len(recipients) == 0 {
		return "-"
	}
	if len(recipients) == 1 {
		return s.label(recipients[0])
	}
	return fmt.Sprintf("%s +%d", s.label(recipients[0]), len(recipients)-1)
}

func newShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <mail-id>",
		Short: "Show a mail with its delivery state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := record.ParseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.agent.Mail(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %s\n", m.ID)
			fmt.Fprintf(out, "Direction: %s\n", m.Direction)
			fmt.Fprintf(out, "From:      %s\n", s.label(m.Author))
			fmt.Fprintf(out, "Date:      %s\n", m.Date.Local().Format(time.RFC1123))
			fmt.Fprintf(out, "Subject:   %s\n", m.Mail.Subject)
			fmt.Fprintf(out, "State:     %s\n", m.State)
			if m.ReplyOf != nil {
				fmt.Fprintf(out, "Reply to:  %s\n", *m.ReplyOf)
			}
			if m.Reply != nil {
				fmt.Fprintf(out, "Replied:   %s\n", *m.Reply)
			}
			printRecipients(out, s, m)
			for _, a := range m.Mail.Attachments {
				fmt.Fprintf(out, "Attached:  %s (%s, %d bytes)\n", a.Filename, a.Filetype, a.Size)
			}
			fmt.Fprintf(out, "\n%s\n", m.Mail.Body)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <mail-id>",
		Short: "Hide a mail from listings",
		Long:  "Records a tombstone for the mail. Pending deliveries of outbound mail continue.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := record.ParseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.agent.DeleteMail(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id.Short())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printRecipients(out io.Writer, s *session, m peermail.MailItem) {
	groups := []struct {
		name string
		ids  []peermail.AgentID
	}{
		{"To", m.Mail.To},
		{"Cc", m.Mail.Cc},
		{"Bcc", m.Bcc},
	}
	for _, g := range groups {
		for _, id := range g.ids {
			if m.Direction == peermail.Outbound {
				fmt.Fprintf(out, "%-4s %-20s %s\n", g.name+":", s.label(id), m.Recipients[id])
			} else {
				fmt.Fprintf(out, "%-4s %s\n", g.name+":", s.label(id))
			}
		}
	}
}
