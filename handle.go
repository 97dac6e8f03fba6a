package peermail

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
	"github.com/vaultsandbox/peermail/internal/transport"
)

// SetHandle records a new display name. The most recent one wins.
func (a *Agent) SetHandle(ctx context.Context, username string) (RecordID, error) {
	if err := a.checkClosed(); err != nil {
		return RecordID{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxHandleLength {
		return RecordID{}, fmt.Errorf("%w: must be 1 to %d characters", ErrInvalidHandle, maxHandleLength)
	}
	id, err := a.log.Append(ctx, record.Handle{Username: username, SetAt: a.now()})
	if err != nil {
		return RecordID{}, storageErr("append handle", err)
	}
	return id, nil
}

// Handle returns the current display name, or "" if none was set.
func (a *Agent) Handle(ctx context.Context) (string, error) {
	handles, err := store.QueryAs[record.Handle](ctx, a.log, record.KindHandle)
	if err != nil {
		return "", storageErr("query handles", err)
	}
	if len(handles) == 0 {
		return "", nil
	}
	return handles[len(handles)-1].Value.Username, nil
}

// Ping calls a peer and returns its current handle.
func (a *Agent) Ping(ctx context.Context, id AgentID) (string, error) {
	if err := a.checkClosed(); err != nil {
		return "", err
	}
	peer, ok := a.dir.Lookup(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPeer, id.Short())
	}
	outcome, err := a.call(ctx, peer, transport.KindPing, nil)
	a.logger.Debug().Err(err).Str("peer", id.Short()).Stringer("outcome", outcome).Msg("ping")
	if err != nil {
		return "", err
	}
	p, _ := a.dir.Lookup(id)
	return p.Handle, nil
}
