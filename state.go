package peermail

import (
	"context"

	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
)

// DeliveryState is the state of one mail or ack towards one recipient.
type DeliveryState int

const (
	// Unsent means no acknowledgment has been recorded yet.
	Unsent DeliveryState = iota
	// Acknowledged means the recipient confirmed receipt.
	Acknowledged
)

func (s DeliveryState) String() string {
	switch s {
	case Unsent:
		return "unsent"
	case Acknowledged:
		return "acknowledged"
	}
	return "unknown"
}

// MailState is the aggregate state shown for a mail.
type MailState string

const (
	// StateUnsent: no recipient of an outbound mail has acknowledged it.
	StateUnsent MailState = "unsent"
	// StatePartiallyAcknowledged: some but not all recipients acknowledged.
	StatePartiallyAcknowledged MailState = "partially_acknowledged"
	// StateAcknowledged: every recipient acknowledged.
	StateAcknowledged MailState = "acknowledged"

	// StateUnacknowledged: an inbound mail with no ack yet.
	StateUnacknowledged MailState = "unacknowledged"
	// StateAckUnsent: the ack exists but has not reached the sender.
	StateAckUnsent MailState = "ack_unsent"
	// StateAckDelivered: the sender confirmed receipt of the ack.
	StateAckDelivered MailState = "ack_delivered"
)

// Outcome is the result of one direct call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeUnreachable
	// OutcomeRejected: the peer answered with a failure.
	OutcomeRejected
	// OutcomeFailed: the call could not be prepared locally.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// RecipientState returns Acknowledged iff acks holds an InboundAck for
// outbound from recipient.
func RecipientState(outbound RecordID, recipient AgentID, acks []InboundAck) DeliveryState {
	for _, ack := range acks {
		if ack.OutboundMail == outbound && ack.From == recipient {
			return Acknowledged
		}
	}
	return Unsent
}

// AckState returns Acknowledged iff a confirmation references outboundAck.
func AckState(outboundAck RecordID, confirmations []DeliveryConfirmation) DeliveryState {
	for _, c := range confirmations {
		if c.OutboundAck == outboundAck {
			return Acknowledged
		}
	}
	return Unsent
}

// OutboundStatus aggregates the recipient states of an outbound mail.
func OutboundStatus(id RecordID, mail OutboundMail, acks []InboundAck) MailState {
	recipients := mail.Recipients()
	acked := 0
	for _, r := range recipients {
		if RecipientState(id, r, acks) == Acknowledged {
			acked++
		}
	}
	switch {
	case acked == 0:
		return StateUnsent
	case acked < len(recipients):
		return StatePartiallyAcknowledged
	}
	return StateAcknowledged
}

// InboundStatus aggregates the ack state of an inbound mail.
func InboundStatus(id RecordID, ackIDs map[RecordID]RecordID, confirmations []DeliveryConfirmation) MailState {
	ackID, ok := ackIDs[id]
	if !ok {
		return StateUnacknowledged
	}
	if AckState(ackID, confirmations) == Acknowledged {
		return StateAckDelivered
	}
	return StateAckUnsent
}

// ledger is a snapshot of the ack bookkeeping records.
type ledger struct {
	inboundAcks   []InboundAck
	outboundAcks  []store.Typed[record.OutboundAck]
	confirmations []DeliveryConfirmation
	// ackOf maps an InboundMail id to its OutboundAck id.
	ackOf map[RecordID]RecordID
}

func (a *Agent) loadLedger(ctx context.Context) (*ledger, error) {
	inAcks, err := store.QueryAs[record.InboundAck](ctx, a.log, record.KindInboundAck)
	if err != nil {
		return nil, storageErr("query inbound acks", err)
	}
	outAcks, err := store.QueryAs[record.OutboundAck](ctx, a.log, record.KindOutboundAck)
	if err != nil {
		return nil, storageErr("query outbound acks", err)
	}
	confs, err := store.QueryAs[record.DeliveryConfirmation](ctx, a.log, record.KindDeliveryConfirmation)
	if err != nil {
		return nil, storageErr("query confirmations", err)
	}

	l := &ledger{
		inboundAcks:   make([]InboundAck, 0, len(inAcks)),
		outboundAcks:  outAcks,
		confirmations: make([]DeliveryConfirmation, 0, len(confs)),
		ackOf:         make(map[RecordID]RecordID, len(outAcks)),
	}
	for _, t := range inAcks {
		l.inboundAcks = append(l.inboundAcks, t.Value)
	}
	for _, t := range confs {
		l.confirmations = append(l.confirmations, t.Value)
	}
	for _, t := range outAcks {
		if _, ok := l.ackOf[t.Value.InboundMail]; !ok {
			l.ackOf[t.Value.InboundMail] = t.ID
		}
	}
	return l, nil
}

// DeliveryState returns the state of outbound towards recipient.
func (a *Agent) DeliveryState(ctx context.Context, outbound RecordID, recipient AgentID) (DeliveryState, error) {
	l, err := a.loadLedger(ctx)
	if err != nil {
		return Unsent, err
	}
	return RecipientState(outbound, recipient, l.inboundAcks), nil
}

// RecipientStates returns the state of every recipient of an outbound mail.
func (a *Agent) RecipientStates(ctx context.Context, outbound RecordID) (map[AgentID]DeliveryState, error) {
	om, err := store.GetAs[record.OutboundMail](ctx, a.log, outbound)
	if err != nil {
		return nil, a.mailLookupErr(err)
	}
	l, err := a.loadLedger(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[AgentID]DeliveryState, len(om.Recipients()))
	for _, r := range om.Recipients() {
		out[r] = RecipientState(outbound, r, l.inboundAcks)
	}
	return out, nil
}

// HasAckBeenDelivered reports whether the ack of an inbound mail reached
// its sender.
func (a *Agent) HasAckBeenDelivered(ctx context.Context, inbound RecordID) (bool, error) {
	l, err := a.loadLedger(ctx)
	if err != nil {
		return false, err
	}
	return InboundStatus(inbound, l.ackOf, l.confirmations) == StateAckDelivered, nil
}
