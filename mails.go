package peermail

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
)

// Direction tells inbound and outbound mail items apart.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// MailItem is a read-only view over an InboundMail or OutboundMail and its
// acknowledgment records. It is never stored.
type MailItem struct {
	ID        RecordID
	Direction Direction
	// Author is the sender of an inbound mail, or this agent.
	Author AgentID
	Mail   Mail
	State  MailState
	// Bcc is only known for outbound mail.
	Bcc []AgentID
	// Date is the send date of outbound mail and the receive date of inbound mail.
	Date time.Time
	// Reply is the local outbound mail answering this one, if any.
	Reply *RecordID
	// ReplyOf is the mail an outbound mail answers.
	ReplyOf *RecordID
	// Recipients holds per-recipient state for outbound mail.
	Recipients map[AgentID]DeliveryState
}

// Mails returns all mail items that have not been deleted, newest first.
func (a *Agent) Mails(ctx context.Context, opts ...ListOption) ([]MailItem, error) {
	if err := a.checkClosed(); err != nil {
		return nil, err
	}
	cfg := &listConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	v, err := a.loadView(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]MailItem, 0, len(v.outbound)+len(v.inbound))
	for _, m := range v.outbound {
		if _, gone := v.deleted[m.ID]; gone {
			continue
		}
		if item := v.outboundItem(a.id, m.ID, m.Value); cfg.Matches(&item) {
			items = append(items, item)
		}
	}
	for _, m := range v.inbound {
		if _, gone := v.deleted[m.ID]; gone {
			continue
		}
		if item := v.inboundItem(m.ID, m.Value); cfg.Matches(&item) {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	return items, nil
}

// Mail returns the item for one inbound or outbound mail. Deleted mail is
// still returned.
func (a *Agent) Mail(ctx context.Context, id RecordID) (MailItem, error) {
	if err := a.checkClosed(); err != nil {
		return MailItem{}, err
	}
	r, err := a.log.Get(ctx, id)
	if err != nil {
		return MailItem{}, a.mailLookupErr(err)
	}
	v, err := a.loadView(ctx)
	if err != nil {
		return MailItem{}, err
	}
	switch e := r.Entry.(type) {
	case record.OutboundMail:
		return v.outboundItem(a.id, id, e), nil
	case record.InboundMail:
		return v.inboundItem(id, e), nil
	}
	return MailItem{}, fmt.Errorf("%w: %s is a %s", ErrNotMail, id.Short(), r.Entry.Kind())
}

// UnacknowledgedInboundMails returns the inbound mails that have no
// OutboundAck yet, in arrival order.
func (a *Agent) UnacknowledgedInboundMails(ctx context.Context) ([]RecordID, error) {
	if err := a.checkClosed(); err != nil {
		return nil, err
	}
	inbound, err := store.QueryAs[record.InboundMail](ctx, a.log, record.KindInboundMail)
	if err != nil {
		return nil, storageErr("query inbound mails", err)
	}
	l, err := a.loadLedger(ctx)
	if err != nil {
		return nil, err
	}
	var out []RecordID
	for _, m := range inbound {
		if _, ok := l.ackOf[m.ID]; !ok {
			out = append(out, m.ID)
		}
	}
	return out, nil
}

// DeleteMail hides a mail from Mails by appending a Tombstone. The mail
// and its delivery records stay in the log and retries continue.
func (a *Agent) DeleteMail(ctx context.Context, id RecordID) (RecordID, error) {
	if err := a.checkClosed(); err != nil {
		return RecordID{}, err
	}
	r, err := a.log.Get(ctx, id)
	if err != nil {
		return RecordID{}, a.mailLookupErr(err)
	}
	switch r.Entry.(type) {
	case record.InboundMail, record.OutboundMail:
	default:
		return RecordID{}, fmt.Errorf("%w: %s is a %s", ErrNotMail, id.Short(), r.Entry.Kind())
	}

	tid, err := a.log.Append(ctx, record.Tombstone{Target: id, DeletedAt: a.now()})
	if err != nil {
		return RecordID{}, storageErr("append tombstone", err)
	}
	a.logger.Info().Str("mail", id.Short()).Msg("mail deleted")
	return tid, nil
}

func (a *Agent) mailLookupErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrMailNotFound
	case errors.Is(err, store.ErrWrongKind):
		return ErrNotMail
	}
	return storageErr("get mail", err)
}

// view is everything the mail listing needs, read once.
type view struct {
	*ledger
	outbound []store.Typed[record.OutboundMail]
	inbound  []store.Typed[record.InboundMail]
	deleted  map[RecordID]struct{}
	// replies maps a mail id to the first outbound mail answering it.
	replies map[RecordID]RecordID
}

func (a *Agent) loadView(ctx context.Context) (*view, error) {
	l, err := a.loadLedger(ctx)
	if err != nil {
		return nil, err
	}
	outbound, err := store.QueryAs[record.OutboundMail](ctx, a.log, record.KindOutboundMail)
	if err != nil {
		return nil, storageErr("query outbound mails", err)
	}
	inbound, err := store.QueryAs[record.InboundMail](ctx, a.log, record.KindInboundMail)
	if err != nil {
		return nil, storageErr("query inbound mails", err)
	}
	tombs, err := store.QueryAs[record.Tombstone](ctx, a.log, record.KindTombstone)
	if err != nil {
		return nil, storageErr("query tombstones", err)
	}

	v := &view{
		ledger:   l,
		outbound: outbound,
		inbound:  inbound,
		deleted:  make(map[RecordID]struct{}, len(tombs)),
		replies:  make(map[RecordID]RecordID),
	}
	for _, t := range tombs {
		v.deleted[t.Value.Target] = struct{}{}
	}
	for _, m := range outbound {
		if m.Value.ReplyOf == nil {
			continue
		}
		if _, ok := v.replies[*m.Value.ReplyOf]; !ok {
			v.replies[*m.Value.ReplyOf] = m.ID
		}
	}
	return v, nil
}

func (v *view) reply(id RecordID) *RecordID {
	r, ok := v.replies[id]
	if !ok {
		return nil
	}
	return &r
}

func (v *view) outboundItem(self AgentID, id RecordID, om OutboundMail) MailItem {
	states := make(map[AgentID]DeliveryState, len(om.Recipients()))
	for _, r := range om.Recipients() {
		states[r] = RecipientState(id, r, v.inboundAcks)
	}
	return MailItem{
		ID:         id,
		Direction:  Outbound,
		Author:     self,
		Mail:       om.Mail,
		State:      OutboundStatus(id, om, v.inboundAcks),
		Bcc:        om.Bcc,
		Date:       om.Mail.DateSent,
		Reply:      v.reply(id),
		ReplyOf:    om.ReplyOf,
		Recipients: states,
	}
}

func (v *view) inboundItem(id RecordID, in InboundMail) MailItem {
	return MailItem{
		ID:        id,
		Direction: Inbound,
		Author:    in.From,
		Mail:      in.Mail,
		State:     InboundStatus(id, v.ackOf, v.confirmations),
		Date:      in.ReceivedAt,
		Reply:     v.reply(id),
	}
}
