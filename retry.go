package peermail

import (
	"context"
	"errors"

	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
)

// ResendOutboundMails delivers every outbound mail again to the recipients
// that have not acknowledged it yet, reusing their delivery units. It
// returns the ids of the mails that had unsent recipients when the scan
// began. Scanning twice without new acks returns the same set.
func (a *Agent) ResendOutboundMails(ctx context.Context) ([]RecordID, error) {
	pending, _, err := a.resendMails(ctx)
	return pending, err
}

func (a *Agent) resendMails(ctx context.Context) ([]RecordID, int, error) {
	if err := a.checkClosed(); err != nil {
		return nil, 0, err
	}
	mails, err := store.QueryAs[record.OutboundMail](ctx, a.log, record.KindOutboundMail)
	if err != nil {
		return nil, 0, storageErr("query outbound mails", err)
	}
	l, err := a.loadLedger(ctx)
	if err != nil {
		return nil, 0, err
	}

	var pending []RecordID
	delivered := 0
	for _, m := range mails {
		var unsent []AgentID
		for _, r := range m.Value.Recipients() {
			if RecipientState(m.ID, r, l.inboundAcks) == Unsent {
				unsent = append(unsent, r)
			}
		}
		if len(unsent) == 0 {
			continue
		}
		pending = append(pending, m.ID)

		results := a.deliverMail(ctx, m.ID, m.Value, unsent)
		ok := countSuccess(results)
		delivered += ok
		a.logger.Debug().
			Str("mail", m.ID.Short()).
			Int("attempted", len(results)).
			Int("succeeded", ok).
			Msg("resent outbound mail")
		if ctx.Err() != nil {
			return pending, delivered, ctx.Err()
		}
	}
	return pending, delivered, nil
}

// ResendOutboundAcks delivers every OutboundAck that has no delivery
// confirmation yet. It returns the ids of the acks that were unconfirmed
// when the scan began.
func (a *Agent) ResendOutboundAcks(ctx context.Context) ([]RecordID, error) {
	pending, _, err := a.resendAcks(ctx)
	return pending, err
}

func (a *Agent) resendAcks(ctx context.Context) ([]RecordID, int, error) {
	if err := a.checkClosed(); err != nil {
		return nil, 0, err
	}
	l, err := a.loadLedger(ctx)
	if err != nil {
		return nil, 0, err
	}

	var pending []RecordID
	delivered := 0
	for _, ack := range l.outboundAcks {
		if AckState(ack.ID, l.confirmations) == Acknowledged {
			continue
		}
		pending = append(pending, ack.ID)

		res := a.deliverAck(ctx, ack.ID, ack.Value)
		if res.Outcome == OutcomeSuccess {
			delivered++
		}
		a.logger.Debug().
			Str("ack", ack.ID.Short()).
			Str("peer", ack.Value.To.Short()).
			Stringer("outcome", res.Outcome).
			Msg("resent outbound ack")
		if ctx.Err() != nil {
			return pending, delivered, ctx.Err()
		}
	}
	return pending, delivered, nil
}

// Resend runs both scans and returns how many deliveries succeeded. It
// matches the scan function of the retry scheduler, so the interval keeps
// growing while peers stay unreachable.
func (a *Agent) Resend(ctx context.Context) (int, error) {
	_, mails, mailErr := a.resendMails(ctx)
	_, acks, ackErr := a.resendAcks(ctx)
	return mails + acks, errors.Join(mailErr, ackErr)
}

func countSuccess(results []DeliveryResult) int {
	n := 0
	for _, r := range results {
		if r.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}
