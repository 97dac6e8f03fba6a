package peermail

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
)

// ComposeRequest describes a mail to send.
type ComposeRequest struct {
	Subject string
	Body    string
	To      []AgentID
	Cc      []AgentID
	Bcc     []AgentID
	// ReplyOf optionally names the local inbound or outbound mail this answers.
	ReplyOf *RecordID
	// Attachments are ids of local file manifests.
	Attachments []RecordID
}

// Send composes an OutboundMail, appends it and starts delivering it to
// every recipient in the background. It returns as soon as the mail is
// stored; use Agent.Wait or the delivery state to follow progress.
func (a *Agent) Send(ctx context.Context, req ComposeRequest) (RecordID, error) {
	if err := a.checkClosed(); err != nil {
		return RecordID{}, err
	}

	om, err := a.Compose(ctx, req)
	if err != nil {
		return RecordID{}, err
	}

	id, err := a.log.Append(ctx, om)
	if err != nil {
		return RecordID{}, storageErr("append outbound mail", err)
	}
	a.logger.Info().
		Str("mail", id.Short()).
		Int("recipients", len(om.Recipients())).
		Msg("outbound mail stored")

	a.goBackground(func(ctx context.Context) {
		a.deliverMail(ctx, id, om, om.Recipients())
	})
	return id, nil
}

// Compose validates req and builds the OutboundMail without storing or
// sending it.
func (a *Agent) Compose(ctx context.Context, req ComposeRequest) (OutboundMail, error) {
	if len(req.To)+len(req.Cc)+len(req.Bcc) == 0 {
		return OutboundMail{}, ErrNoRecipients
	}
	var problems []string
	for _, list := range [][]AgentID{req.To, req.Cc, req.Bcc} {
		for _, r := range list {
			if r == "" {
				problems = append(problems, "empty recipient id")
			}
		}
	}
	if len(problems) > 0 {
		return OutboundMail{}, &ValidationError{Errors: problems}
	}

	to, cc, bcc := normalizeRecipients(req.To, req.Cc, req.Bcc)

	if req.ReplyOf != nil {
		if err := a.checkReplyTarget(ctx, *req.ReplyOf); err != nil {
			return OutboundMail{}, err
		}
	}

	attachments := make([]Attachment, 0, len(req.Attachments))
	for _, mid := range req.Attachments {
		m, err := store.GetAs[record.FileManifest](ctx, a.log, mid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrWrongKind) {
				return OutboundMail{}, fmt.Errorf("%w: %s", ErrAttachmentNotFound, mid.Short())
			}
			return OutboundMail{}, storageErr("get manifest", err)
		}
		attachments = append(attachments, Attachment{
			ManifestID: mid,
			DataHash:   m.DataHash,
			Filename:   m.Filename,
			Filetype:   m.Filetype,
			Size:       m.Size,
		})
	}
	if len(attachments) == 0 {
		attachments = nil
	}

	om := OutboundMail{
		Mail: Mail{
			Subject:     req.Subject,
			Body:        req.Body,
			To:          to,
			Cc:          cc,
			DateSent:    a.now(),
			Attachments: attachments,
		},
		Bcc: bcc,
	}
	if req.ReplyOf != nil {
		reply := *req.ReplyOf
		om.ReplyOf = &reply
	}
	return om, nil
}

func (a *Agent) checkReplyTarget(ctx context.Context, id RecordID) error {
	r, err := a.log.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrReplyNotFound, id.Short())
	}
	if err != nil {
		return storageErr("get reply target", err)
	}
	switch r.Entry.(type) {
	case record.InboundMail, record.OutboundMail:
		return nil
	}
	return fmt.Errorf("%w: %s is a %s", ErrReplyNotFound, id.Short(), r.Entry.Kind())
}

// normalizeRecipients collapses duplicates, drops cc entries already in to
// and bcc entries already visible in to or cc. Order is preserved.
func normalizeRecipients(to, cc, bcc []AgentID) ([]AgentID, []AgentID, []AgentID) {
	seen := make(map[AgentID]struct{}, len(to)+len(cc)+len(bcc))
	filter := func(list []AgentID) []AgentID {
		var out []AgentID
		for _, r := range list {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
		return out
	}
	return filter(to), filter(cc), filter(bcc)
}
