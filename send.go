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

// DeliveryResult is the outcome of one delivery attempt.
type DeliveryResult struct {
	Recipient AgentID
	Outcome   Outcome
	Err       error
}

// deliverMail sends outbound to each of recipients, reusing their existing
// delivery units. It never touches the OutboundMail itself.
func (a *Agent) deliverMail(ctx context.Context, id RecordID, om OutboundMail, recipients []AgentID) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(recipients))
	var signature []byte

	for _, r := range recipients {
		if ctx.Err() != nil {
			results = append(results, DeliveryResult{Recipient: r, Outcome: OutcomeFailed, Err: ctx.Err()})
			continue
		}

		peer, ok := a.dir.Lookup(r)
		if !ok {
			err := &TransportError{Peer: r, Outcome: OutcomeUnreachable, Err: ErrUnknownPeer}
			a.logger.Debug().Err(err).Str("mail", id.Short()).Str("peer", r.Short()).Msg("recipient not in directory")
			results = append(results, DeliveryResult{Recipient: r, Outcome: OutcomeUnreachable, Err: err})
			continue
		}

		unit, err := a.mailUnit(ctx, id, om, peer, &signature)
		if err != nil {
			a.logger.Error().Err(err).Str("mail", id.Short()).Str("peer", r.Short()).Msg("prepare delivery unit")
			results = append(results, DeliveryResult{Recipient: r, Outcome: OutcomeFailed, Err: err})
			continue
		}

		payload, err := record.Marshal(unit)
		if err != nil {
			results = append(results, DeliveryResult{Recipient: r, Outcome: OutcomeFailed, Err: err})
			continue
		}
		outcome, err := a.call(ctx, peer, transport.KindMail, payload)
		a.logger.Debug().
			Err(err).
			Str("mail", id.Short()).
			Str("peer", r.Short()).
			Stringer("outcome", outcome).
			Msg("mail delivery attempt")
		results = append(results, DeliveryResult{Recipient: r, Outcome: outcome, Err: err})
	}
	return results
}

// mailUnit returns the DeliveryUnit for (id, peer), sealing and appending
// it if none exists. signature caches the mail signature across recipients.
func (a *Agent) mailUnit(ctx context.Context, id RecordID, om OutboundMail, peer Peer, signature *[]byte) (record.DeliveryUnit, error) {
	a.unitMu.Lock()
	defer a.unitMu.Unlock()

	units, err := store.QueryAs[record.DeliveryUnit](ctx, a.log, record.KindDeliveryUnit)
	if err != nil {
		return record.DeliveryUnit{}, storageErr("query delivery units", err)
	}
	for _, u := range units {
		if u.Value.OutboundMail == id && u.Value.Recipient == peer.ID {
			return u.Value, nil
		}
	}

	plaintext, err := record.Marshal(om.Mail)
	if err != nil {
		return record.DeliveryUnit{}, fmt.Errorf("encode mail: %w", err)
	}

	unit := record.DeliveryUnit{OutboundMail: id, Recipient: peer.ID}
	err = a.identity.Use(func(kp *crypto.Keypair) error {
		if *signature == nil {
			sig, err := crypto.Sign(kp, plaintext)
			if err != nil {
				return err
			}
			*signature = sig
		}
		env, err := crypto.Seal(plaintext, kp, peer.Keys, unitBinding(transport.KindMail, id, peer.ID))
		if err != nil {
			return err
		}
		unit.Envelope = *env
		return nil
	})
	if err != nil {
		return record.DeliveryUnit{}, fmt.Errorf("seal for %s: %w", peer.ID.Short(), err)
	}
	unit.Signature = *signature

	if _, err := a.log.Append(ctx, unit); err != nil {
		return record.DeliveryUnit{}, storageErr("append delivery unit", err)
	}
	return unit, nil
}

// deliverAck sends an OutboundAck to its recipient and records a
// DeliveryConfirmation when the peer accepts it.
func (a *Agent) deliverAck(ctx context.Context, id RecordID, ack OutboundAck) DeliveryResult {
	res := DeliveryResult{Recipient: ack.To}

	peer, ok := a.dir.Lookup(ack.To)
	if !ok {
		res.Outcome = OutcomeUnreachable
		res.Err = &TransportError{Peer: ack.To, Outcome: OutcomeUnreachable, Err: ErrUnknownPeer}
		return res
	}

	unit, err := a.ackUnit(ctx, id, ack, peer)
	if err != nil {
		a.logger.Error().Err(err).Str("ack", id.Short()).Str("peer", ack.To.Short()).Msg("prepare ack unit")
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	payload, err := record.Marshal(unit)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	res.Outcome, res.Err = a.call(ctx, peer, transport.KindAck, payload)
	a.logger.Debug().
		Err(res.Err).
		Str("ack", id.Short()).
		Str("mail", ack.OutboundMail.Short()).
		Str("peer", ack.To.Short()).
		Stringer("outcome", res.Outcome).
		Msg("ack delivery attempt")
	if res.Outcome != OutcomeSuccess {
		return res
	}

	if err := a.confirmAck(ctx, id, ack.To); err != nil {
		a.logger.Error().Err(err).Str("ack", id.Short()).Msg("record delivery confirmation")
		res.Outcome, res.Err = OutcomeFailed, err
	}
	return res
}

func (a *Agent) confirmAck(ctx context.Context, id RecordID, to AgentID) error {
	a.unitMu.Lock()
	defer a.unitMu.Unlock()

	confs, err := store.QueryAs[record.DeliveryConfirmation](ctx, a.log, record.KindDeliveryConfirmation)
	if err != nil {
		return storageErr("query confirmations", err)
	}
	for _, c := range confs {
		if c.Value.OutboundAck == id {
			return nil
		}
	}
	_, err = a.log.Append(ctx, record.DeliveryConfirmation{OutboundAck: id, Recipient: to, ConfirmedAt: a.now()})
	return storageErr("append delivery confirmation", err)
}

// ackUnit returns the DeliveryAckUnit of an OutboundAck, creating it once.
func (a *Agent) ackUnit(ctx context.Context, id RecordID, ack OutboundAck, peer Peer) (record.DeliveryAckUnit, error) {
	a.unitMu.Lock()
	defer a.unitMu.Unlock()

	units, err := store.QueryAs[record.DeliveryAckUnit](ctx, a.log, record.KindDeliveryAckUnit)
	if err != nil {
		return record.DeliveryAckUnit{}, storageErr("query ack units", err)
	}
	for _, u := range units {
		if u.Value.OutboundAck == id {
			return u.Value, nil
		}
	}

	plaintext, err := record.Marshal(record.Ack{OutboundMail: ack.OutboundMail})
	if err != nil {
		return record.DeliveryAckUnit{}, fmt.Errorf("encode ack: %w", err)
	}
	unit := record.DeliveryAckUnit{OutboundAck: id, Recipient: peer.ID}
	err = a.identity.Use(func(kp *crypto.Keypair) error {
		sig, err := crypto.Sign(kp, plaintext)
		if err != nil {
			return err
		}
		env, err := crypto.Seal(plaintext, kp, peer.Keys, unitBinding(transport.KindAck, id, peer.ID))
		if err != nil {
			return err
		}
		unit.Signature = sig
		unit.Envelope = *env
		return nil
	})
	if err != nil {
		return record.DeliveryAckUnit{}, fmt.Errorf("seal ack for %s: %w", peer.ID.Short(), err)
	}

	if _, err := a.log.Append(ctx, unit); err != nil {
		return record.DeliveryAckUnit{}, storageErr("append ack unit", err)
	}
	return unit, nil
}

// unitBinding is the associated data sealed into a unit. It ties the
// cleartext reference and recipient to the envelope.
func unitBinding(kind transport.CallKind, ref RecordID, recipient AgentID) []byte {
	ad := make([]byte, 0, len(kind)+len(ref)+len(recipient)+2)
	ad = append(ad, string(kind)...)
	ad = append(ad, 0)
	ad = append(ad, ref[:]...)
	ad = append(ad, 0)
	return append(ad, string(recipient)...)
}

// call issues one bounded direct call and classifies the result.
func (a *Agent) call(ctx context.Context, peer Peer, kind transport.CallKind, payload []byte) (Outcome, error) {
	if peer.Address == "" {
		return OutcomeUnreachable, &TransportError{Peer: peer.ID, Outcome: OutcomeUnreachable, Err: errors.New("no address known")}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.callTimeout)
	defer cancel()

	req := &transport.Request{Kind: kind, Sender: a.Card(ctx), Payload: payload}
	resp, err := a.caller.Call(ctx, peer.Address, req)
	outcome := classify(ctx, resp, err)
	if outcome == OutcomeSuccess {
		if resp.Handle != "" && resp.Handle != peer.Handle {
			peer.Handle = resp.Handle
			a.dir.Learn(peer)
		}
		return OutcomeSuccess, nil
	}
	if err == nil {
		msg := "peer answered with failure"
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		err = fmt.Errorf("%w: %s", transport.ErrRejected, msg)
	}
	return outcome, &TransportError{Peer: peer.ID, Outcome: outcome, Err: err}
}

func classify(ctx context.Context, resp *transport.Response, err error) Outcome {
	switch {
	case err == nil && resp.OK():
		return OutcomeSuccess
	case err == nil:
		return OutcomeRejected
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, transport.ErrRejected):
		return OutcomeRejected
	case errors.Is(err, transport.ErrUnreachable):
		return OutcomeUnreachable
	case ctx.Err() != nil:
		return OutcomeTimeout
	}
	return OutcomeFailed
}
