package peermail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultsandbox/peermail/internal/store"
	"github.com/vaultsandbox/peermail/internal/transport"
)

// Agent is one peer of the mail network. It owns an identity and a local
// log, sends mail and acks through a Caller and answers direct calls from
// other peers through HandleCall.
type Agent struct {
	identity Identity
	id       AgentID
	log      store.Log
	caller   Caller
	dir      Directory
	notifier Notifier
	logger   zerolog.Logger
	cfg      agentConfig

	// Subscription manager for received mails and acks
	subs *subscriptionManager

	// unitMu serializes the check-then-create of delivery units so a
	// recipient never gets two different sealed copies.
	unitMu sync.Mutex
	// receiveMu serializes dedupe checks in the receive handler.
	receiveMu sync.Mutex

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// New creates an agent.
func New(identity Identity, log store.Log, caller Caller, opts ...Option) (*Agent, error) {
	if identity == nil {
		return nil, errors.New("peermail: identity is required")
	}
	if log == nil {
		return nil, errors.New("peermail: log is required")
	}
	if caller == nil {
		return nil, errors.New("peermail: caller is required")
	}
	if err := identity.Public().Validate(); err != nil {
		return nil, fmt.Errorf("peermail: identity: %w", err)
	}

	cfg := agentConfig{
		logger:       zerolog.Nop(),
		callTimeout:  defaultCallTimeout,
		now:          time.Now,
		maxChunkSize: defaultMaxChunkSize,
		maxFileSize:  defaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.directory == nil {
		dir, _ := NewStaticDirectory()
		cfg.directory = dir
	}
	if cfg.maxChunkSize <= 0 {
		cfg.maxChunkSize = defaultMaxChunkSize
	}
	if cfg.maxFileSize <= 0 {
		cfg.maxFileSize = defaultMaxFileSize
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	id := AgentIDOf(identity.Public())

	return &Agent{
		identity: identity,
		id:       id,
		log:      log,
		caller:   caller,
		dir:      cfg.directory,
		notifier: cfg.notifier,
		logger:   cfg.logger.With().Str("agent", id.Short()).Logger(),
		cfg:      cfg,
		subs:     newSubscriptionManager(),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}, nil
}

// ID returns the agent's address.
func (a *Agent) ID() AgentID {
	return a.id
}

// PublicKeys returns the agent's public keys.
func (a *Agent) PublicKeys() PublicKeys {
	return a.identity.Public()
}

// Directory returns the peer directory in use.
func (a *Agent) Directory() Directory {
	return a.dir
}

// Card returns the sender card attached to outgoing calls.
func (a *Agent) Card(ctx context.Context) transport.Sender {
	handle, err := a.Handle(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("handle lookup failed")
	}
	return transport.Sender{
		Keys:    a.identity.Public(),
		Address: a.cfg.address,
		Handle:  handle,
	}
}

// checkClosed returns ErrAgentClosed if the agent has been closed.
func (a *Agent) checkClosed() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrAgentClosed
	}
	return nil
}

// goBackground runs fn on a tracked goroutine. It reports false when the
// agent is closed and fn was not started.
func (a *Agent) goBackground(fn func(ctx context.Context)) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.bgCtx)
	}()
	return true
}

// Wait blocks until all background deliveries started so far have finished.
func (a *Agent) Wait() {
	a.wg.Wait()
}

// Close cancels background deliveries, waits for them and drops all
// subscriptions. The log is not closed. Safe to call multiple times.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.bgCancel()
	a.wg.Wait()
	a.subs.clear()
	return nil
}

// Subscribe registers fn for events of the given type and returns the
// function that removes it. fn runs synchronously on the receiving goroutine.
func (a *Agent) Subscribe(eventType EventType, fn func(Event)) func() {
	return a.subs.subscribe(eventType, fn)
}

// Watch returns a channel receiving events of the given types until ctx is
// cancelled. The channel is not closed when the context is cancelled; use a
// select on ctx.Done() to detect cancellation.
//
// Example:
//
//	ch := agent.Watch(ctx, peermail.EventReceivedMail)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case ev := <-ch:
//	        fmt.Println("mail from", ev.From, ev.Mail.Subject)
//	    }
//	}
func (a *Agent) Watch(ctx context.Context, types ...EventType) <-chan Event {
	ch := make(chan Event, 16)
	if len(types) == 0 {
		types = []EventType{EventReceivedMail, EventReceivedAck}
	}

	unsubscribes := make([]func(), 0, len(types))
	for _, typ := range types {
		unsub := a.subs.subscribe(typ, func(e Event) {
			go func() {
				select {
				case ch <- e:
				case <-ctx.Done():
				}
			}()
		})
		unsubscribes = append(unsubscribes, unsub)
	}

	go func() {
		<-ctx.Done()
		for _, unsub := range unsubscribes {
			unsub()
		}
	}()

	return ch
}

// WatchFunc calls fn for each event until ctx is cancelled.
func (a *Agent) WatchFunc(ctx context.Context, fn func(Event), types ...EventType) {
	events := a.Watch(ctx, types...)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			fn(ev)
		}
	}
}

func (a *Agent) emit(e Event) {
	a.subs.notify(e)
	if a.notifier != nil {
		a.notifier.Notify(e)
	}
}

func (a *Agent) now() time.Time {
	return a.cfg.now().UTC()
}
