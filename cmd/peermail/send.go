package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/vaultsandbox/peermail"
	"github.com/vaultsandbox/peermail/internal/record"
)

type sendFlags struct {
	configPath string
	to         []string
	cc         []string
	bcc        []string
	subject    string
	body       string
	bodyFile   string
	replyOf    string
	attach     []string
}

func newSendCmd() *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Compose a mail and deliver it to every recipient",
		Long: "Stores the mail, then makes one delivery attempt per recipient. " +
			"Recipients that cannot be reached are retried by `peermail serve`.",
		Example: `  peermail send --to alice --subject "lunch?" --body "noon at the usual place"
  peermail send --to <agent-id> --bcc bob --attach report.pdf --body-file note.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, f)
		},
	}

	addConfigFlag(cmd, &f.configPath)
	cmd.Flags().StringSliceVar(&f.to, "to", nil, "recipient id or handle (repeatable)")
	cmd.Flags().StringSliceVar(&f.cc, "cc", nil, "carbon-copy recipient (repeatable)")
	cmd.Flags().StringSliceVar(&f.bcc, "bcc", nil, "blind recipient, hidden from everyone else (repeatable)")
	cmd.Flags().StringVarP(&f.subject, "subject", "s", "", "mail subject")
	cmd.Flags().StringVarP(&f.body, "body", "b", "", "mail body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read the body from a file")
	cmd.Flags().StringVar(&f.replyOf, "reply-of", "", "id of the mail being answered")
	cmd.Flags().StringSliceVarP(&f.attach, "attach", "a", nil, "file to attach (repeatable)")
	return cmd
}

func runSend(cmd *cobra.Command, f sendFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := openSession(cmd, f.configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	req := peermail.ComposeRequest{Subject: f.subject, Body: f.body}
	if f.bodyFile != "" {
		data, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		req.Body = string(data)
	}
	if req.To, err = s.resolvePeers(f.to); err != nil {
		return err
	}
	if req.Cc, err = s.resolvePeers(f.cc); err != nil {
		return err
	}
	if req.Bcc, err = s.resolvePeers(f.bcc); err != nil {
		return err
	}
	if f.replyOf != "" {
		id, err := record.ParseID(f.replyOf)
		if err != nil {
			return err
		}
		req.ReplyOf = &id
	}
	for _, path := range f.attach {
		id, err := storeFile(cmd, s, path)
		if err != nil {
			return err
		}
		req.Attachments = append(req.Attachments, id)
	}

	id, err := s.agent.Send(ctx, req)
	if err != nil {
		return err
	}
	s.agent.Wait()

	item, err := s.agent.Mail(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Mail %s (%s)\n", id, item.State)
	printRecipients(out, s, item)
	return nil
}

func storeFile(cmd *cobra.Command, s *session, path string) (peermail.RecordID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return peermail.RecordID{}, fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(path)
	id, err := s.agent.WriteFile(cmd.Context(), name, mimetype.Detect(data).String(), data)
	if err != nil {
		return peermail.RecordID{}, fmt.Errorf("store %s: %w", name, err)
	}
	return id, nil
}

// label shows the handle of a known peer, else the short id.
func (s *session) label(id peermail.AgentID) string {
	if p, ok := s.dir.Lookup(id); ok && p.Handle != "" {
		return p.Handle
	}
	return id.Short()
}
