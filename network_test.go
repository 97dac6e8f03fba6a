package peermail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vaultsandbox/peermail/internal/keystore"
	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
	"github.com/vaultsandbox/peermail/internal/transport"
)

type linkMode int

const (
	linkUp linkMode = iota
	linkDown
	linkTimeout
	linkTamper
)

// network routes direct calls between agents in the same process.
type network struct {
	mu     sync.Mutex
	agents map[string]*Agent
	modes  map[string]linkMode
	calls  map[string]int
}

func newNetwork() *network {
	return &network{
		agents: make(map[string]*Agent),
		modes:  make(map[string]linkMode),
		calls:  make(map[string]int),
	}
}

func (n *network) attach(address string, a *Agent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.agents[address] = a
}

func (n *network) set(a *Agent, mode linkMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modes[a.cfg.address] = mode
}

func (n *network) callsTo(a *Agent) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[a.cfg.address]
}

func (n *network) Call(ctx context.Context, address string, req *transport.Request) (*transport.Response, error) {
	n.mu.Lock()
	target := n.agents[address]
	mode := n.modes[address]
	n.calls[address]++
	n.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &transport.TimeoutError{URL: address}
	}

	switch {
	case target == nil, mode == linkDown:
		return nil, &transport.NetworkError{Err: errors.New("connection refused"), URL: address}
	case mode == linkTimeout:
		return nil, &transport.TimeoutError{URL: address, Timeout: time.Second}
	case mode == linkTamper:
		req = tamper(req)
	}
	return target.HandleCall(ctx, req), nil
}

// tamper flips one ciphertext byte of a mail or ack unit.
func tamper(req *transport.Request) *transport.Request {
	out := *req
	switch req.Kind {
	case transport.KindMail:
		var unit record.DeliveryUnit
		if record.Unmarshal(req.Payload, &unit) != nil {
			return req
		}
		unit.Envelope.Ciphertext = append([]byte(nil), unit.Envelope.Ciphertext...)
		unit.Envelope.Ciphertext[0] ^= 0xff
		out.Payload, _ = record.Marshal(unit)
	case transport.KindAck:
		var unit record.DeliveryAckUnit
		if record.Unmarshal(req.Payload, &unit) != nil {
			return req
		}
		unit.Envelope.Ciphertext = append([]byte(nil), unit.Envelope.Ciphertext...)
		unit.Envelope.Ciphertext[0] ^= 0xff
		out.Payload, _ = record.Marshal(unit)
	}
	return &out
}

// failingLog fails Append for the kinds marked with failOn.
type failingLog struct {
	store.Log

	mu   sync.Mutex
	kind map[record.Kind]bool
}

var errDiskFull = errors.New("disk full")

func (l *failingLog) failOn(kinds ...record.Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kind = make(map[record.Kind]bool, len(kinds))
	for _, k := range kinds {
		l.kind[k] = true
	}
}

func (l *failingLog) Append(ctx context.Context, e record.Entry) (record.ID, error) {
	l.mu.Lock()
	fail := l.kind[e.Kind()]
	l.mu.Unlock()
	if fail {
		return record.ID{}, errDiskFull
	}
	return l.Log.Append(ctx, e)
}

func newTestAgent(t *testing.T, net *network, name string, opts ...Option) *Agent {
	t.Helper()
	return newTestAgentWithLog(t, net, name, newTestLog(t), opts...)
}

func newTestLog(t *testing.T) store.Log {
	t.Helper()
	log, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func newTestAgentWithLog(t *testing.T, net *network, name string, log store.Log, opts ...Option) *Agent {
	t.Helper()

	vault, err := keystore.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	dir, err := NewStaticDirectory()
	if err != nil {
		t.Fatalf("NewStaticDirectory() error = %v", err)
	}
	address := "peer://" + name
	base := []Option{WithAddress(address), WithDirectory(dir), WithCallTimeout(time.Second)}
	a, err := New(vault, log, net, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	net.attach(address, a)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// introduce makes a know every peer in others.
func introduce(a *Agent, others ...*Agent) {
	for _, o := range others {
		a.dir.Learn(Peer{ID: o.ID(), Keys: o.PublicKeys(), Address: o.cfg.address})
	}
}

// settle waits for the background work of every agent.
func settle(agents ...*Agent) {
	// An ack delivery started by one agent may trigger work in another.
	for range 2 {
		for _, a := range agents {
			a.Wait()
		}
	}
}

func count[T record.Entry](t *testing.T, a *Agent, kind record.Kind) []store.Typed[T] {
	t.Helper()
	out, err := store.QueryAs[T](context.Background(), a.log, kind)
	if err != nil {
		t.Fatalf("QueryAs(%s) error = %v", kind, err)
	}
	return out
}

func mustState(t *testing.T, a *Agent, mail RecordID, r AgentID) DeliveryState {
	t.Helper()
	st, err := a.DeliveryState(context.Background(), mail, r)
	if err != nil {
		t.Fatalf("DeliveryState() error = %v", err)
	}
	return st
}
