package peermail

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultsandbox/peermail/internal/crypto"
	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
	"github.com/vaultsandbox/peermail/internal/transport"
)

// rejectMessage is the only failure detail a peer ever sees.
const rejectMessage = "rejected"

// HandleCall answers a direct call from a peer. It implements
// transport.Handler.
func (a *Agent) HandleCall(ctx context.Context, req *transport.Request) *transport.Response {
	if err := a.checkClosed(); err != nil {
		return transport.Failure(rejectMessage)
	}
	from := AgentIDOf(req.Sender.Keys)
	logger := a.logger.With().Str("peer", from.Short()).Str("kind", string(req.Kind)).Logger()

	var err error
	switch req.Kind {
	case transport.KindPing:
	case transport.KindMail:
		err = a.receiveMail(ctx, from, req)
	case transport.KindAck:
		err = a.receiveAck(ctx, from, req)
	default:
		err = fmt.Errorf("%w: unknown kind %q", transport.ErrInvalidRequest, req.Kind)
	}

	if err != nil {
		var serr *StorageError
		switch {
		case errors.As(err, &serr):
			logger.Error().Err(err).Msg("direct call failed")
		case errors.Is(err, ErrAuthenticationFailed):
			logger.Warn().Err(err).Msg("direct call rejected")
		default:
			logger.Debug().Err(err).Msg("direct call rejected")
		}
		return transport.Failure(rejectMessage)
	}

	handle, herr := a.Handle(ctx)
	if herr != nil {
		logger.Debug().Err(herr).Msg("handle lookup failed")
	}
	return transport.Success(handle)
}

// openUnit checks the recipient, decrypts the envelope against the unit's
// cleartext reference and verifies the signature made with the claimed
// sender's keys.
func (a *Agent) openUnit(sender PublicKeys, kind transport.CallKind, ref RecordID, recipient AgentID, env *crypto.Envelope, signature []byte) ([]byte, error) {
	if err := sender.Validate(); err != nil {
		return nil, &AuthenticationError{Stage: "sender", Err: err}
	}
	if recipient != a.id {
		return nil, &AuthenticationError{Stage: "recipient", Err: fmt.Errorf("unit addressed to %s", recipient.Short())}
	}
	var plaintext []byte
	err := a.identity.Use(func(kp *crypto.Keypair) error {
		var err error
		plaintext, err = crypto.Open(env, kp, sender, unitBinding(kind, ref, recipient))
		return err
	})
	if err != nil {
		return nil, &AuthenticationError{Stage: "decrypt", Err: err}
	}
	if err := crypto.Verify(sender.Sig, plaintext, signature); err != nil {
		return nil, &AuthenticationError{Stage: "signature", Err: err}
	}
	return plaintext, nil
}

// receiveMail materializes an authenticated DeliveryUnit as an InboundMail
// and starts acknowledging it.
func (a *Agent) receiveMail(ctx context.Context, from AgentID, req *transport.Request) error {
	var unit record.DeliveryUnit
	if err := record.Unmarshal(req.Payload, &unit); err != nil {
		return &AuthenticationError{Stage: "decode", Err: err}
	}
	plaintext, err := a.openUnit(req.Sender.Keys, transport.KindMail, unit.OutboundMail, unit.Recipient, &unit.Envelope, unit.Signature)
	if err != nil {
		return err
	}
	var mail Mail
	if err := record.Unmarshal(plaintext, &mail); err != nil {
		return &AuthenticationError{Stage: "decode", Err: err}
	}

	a.learnSender(from, req.Sender)

	a.receiveMu.Lock()
	inID, fresh, err := a.materializeMail(ctx, from, unit, mail)
	if err != nil {
		a.receiveMu.Unlock()
		return err
	}
	ack := OutboundAck{InboundMail: inID, OutboundMail: unit.OutboundMail, To: from}
	ackID, err := a.log.Append(ctx, ack)
	a.receiveMu.Unlock()
	if err != nil {
		return storageErr("append outbound ack", err)
	}

	if fresh {
		a.logger.Info().Str("mail", inID.Short()).Str("peer", from.Short()).Msg("mail received")
		ev := newEvent(EventReceivedMail, inID, from, unit.OutboundMail, a.now())
		ev.Mail = &mail
		a.emit(ev)
	} else {
		a.logger.Debug().Str("mail", inID.Short()).Str("peer", from.Short()).Msg("duplicate mail, acknowledging again")
	}

	a.goBackground(func(ctx context.Context) {
		a.deliverAck(ctx, ackID, ack)
	})
	return nil
}

// materializeMail appends the InboundMail unless one already exists for
// (outbound mail, sender). Callers hold receiveMu.
func (a *Agent) materializeMail(ctx context.Context, from AgentID, unit record.DeliveryUnit, mail Mail) (RecordID, bool, error) {
	existing, err := store.QueryAs[record.InboundMail](ctx, a.log, record.KindInboundMail)
	if err != nil {
		return RecordID{}, false, storageErr("query inbound mails", err)
	}
	for _, in := range existing {
		if in.Value.OutboundMail == unit.OutboundMail && in.Value.From == from {
			return in.ID, false, nil
		}
	}

	id, err := a.log.Append(ctx, record.InboundMail{
		Mail:         mail,
		From:         from,
		ReceivedAt:   a.now(),
		OutboundMail: unit.OutboundMail,
		Signature:    unit.Signature,
	})
	if err != nil {
		return RecordID{}, false, storageErr("append inbound mail", err)
	}
	return id, true, nil
}

// receiveAck records an authenticated acknowledgment of one of our mails.
func (a *Agent) receiveAck(ctx context.Context, from AgentID, req *transport.Request) error {
	var unit record.DeliveryAckUnit
	if err := record.Unmarshal(req.Payload, &unit); err != nil {
		return &AuthenticationError{Stage: "decode", Err: err}
	}
	plaintext, err := a.openUnit(req.Sender.Keys, transport.KindAck, unit.OutboundAck, unit.Recipient, &unit.Envelope, unit.Signature)
	if err != nil {
		return err
	}
	var ack record.Ack
	if err := record.Unmarshal(plaintext, &ack); err != nil {
		return &AuthenticationError{Stage: "decode", Err: err}
	}

	om, err := store.GetAs[record.OutboundMail](ctx, a.log, ack.OutboundMail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrWrongKind) {
			return &ValidationError{Errors: []string{"ack for unknown mail " + ack.OutboundMail.Short()}}
		}
		return storageErr("get outbound mail", err)
	}
	if !isRecipient(om, from) {
		return &AuthenticationError{Stage: "sender", Err: fmt.Errorf("%s is not a recipient of %s", from.Short(), ack.OutboundMail.Short())}
	}

	a.learnSender(from, req.Sender)

	a.receiveMu.Lock()
	id, fresh, err := a.recordAck(ctx, from, ack.OutboundMail, unit.Signature)
	a.receiveMu.Unlock()
	if err != nil {
		return err
	}

	if fresh {
		a.logger.Info().Str("mail", ack.OutboundMail.Short()).Str("peer", from.Short()).Msg("ack received")
		a.emit(newEvent(EventReceivedAck, id, from, ack.OutboundMail, a.now()))
	}
	return nil
}

// recordAck appends an InboundAck once per (mail, sender). Callers hold receiveMu.
func (a *Agent) recordAck(ctx context.Context, from AgentID, outbound RecordID, signature []byte) (RecordID, bool, error) {
	existing, err := store.QueryAs[record.InboundAck](ctx, a.log, record.KindInboundAck)
	if err != nil {
		return RecordID{}, false, storageErr("query inbound acks", err)
	}
	for _, in := range existing {
		if in.Value.OutboundMail == outbound && in.Value.From == from {
			return in.ID, false, nil
		}
	}
	id, err := a.log.Append(ctx, record.InboundAck{
		OutboundMail: outbound,
		From:         from,
		ReceivedAt:   a.now(),
		Signature:    signature,
	})
	if err != nil {
		return RecordID{}, false, storageErr("append inbound ack", err)
	}
	return id, true, nil
}

// learnSender records the authenticated caller's card in the directory.
func (a *Agent) learnSender(from AgentID, card transport.Sender) {
	a.dir.Learn(Peer{ID: from, Keys: card.Keys, Address: card.Address, Handle: card.Handle})
}

func isRecipient(om OutboundMail, id AgentID) bool {
	for _, r := range om.Recipients() {
		if r == id {
			return true
		}
	}
	return false
}
