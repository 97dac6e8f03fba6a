package peermail

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscriptionManager(t *testing.T) {
	t.Parallel()

	m := newSubscriptionManager()
	var mails, acks atomic.Int32

	unsubMail := m.subscribe(EventReceivedMail, func(Event) { mails.Add(1) })
	m.subscribe(EventReceivedAck, func(Event) { acks.Add(1) })

	m.notify(Event{Type: EventReceivedMail})
	m.notify(Event{Type: EventReceivedAck})
	m.notify(Event{Type: EventReceivedAck})
	if mails.Load() != 1 || acks.Load() != 2 {
		t.Fatalf("mails=%d acks=%d, want 1 and 2", mails.Load(), acks.Load())
	}

	unsubMail()
	unsubMail()
	m.notify(Event{Type: EventReceivedMail})
	if mails.Load() != 1 {
		t.Errorf("mail callback ran after unsubscribe")
	}

	m.clear()
	m.notify(Event{Type: EventReceivedAck})
	if acks.Load() != 2 {
		t.Errorf("ack callback ran after clear")
	}
}

func TestSubscriptionManager_Concurrent(t *testing.T) {
	t.Parallel()

	m := newSubscriptionManager()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := m.subscribe(EventReceivedMail, func(Event) {})
			m.notify(Event{Type: EventReceivedMail})
			unsub()
		}()
	}
	wg.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.subs) != 0 {
		t.Errorf("subs = %d types left, want 0", len(m.subs))
	}
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := newEvent(EventReceivedAck, RecordID{1}, "b", RecordID{2}, at)
	b := newEvent(EventReceivedAck, RecordID{1}, "b", RecordID{2}, at)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("event ids = %q, %q, want unique", a.ID, b.ID)
	}
	if a.Record != (RecordID{1}) || a.OutboundMail != (RecordID{2}) || a.From != "b" || !a.At.Equal(at) {
		t.Errorf("event = %+v", a)
	}
}

func TestWatch_ReceivesEvents(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	net := newNetwork()
	alice := newTestAgent(t, net, "alice")
	bob := newTestAgent(t, net, "bob")
	introduce(alice, bob)

	mails := bob.Watch(ctx, EventReceivedMail)
	acks := alice.Watch(ctx, EventReceivedAck)

	id, err := alice.Send(ctx, ComposeRequest{Subject: "watched", To: []AgentID{bob.ID()}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case ev := <-mails:
		if ev.Mail == nil || ev.Mail.Subject != "watched" || ev.From != alice.ID() || ev.OutboundMail != id {
			t.Errorf("mail event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no received_mail event")
	}

	select {
	case ev := <-acks:
		if ev.From != bob.ID() || ev.OutboundMail != id {
			t.Errorf("ack event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no received_ack event")
	}
	settle(alice, bob)
}

func TestWithNotifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var mu sync.Mutex
	var got []EventType
	notifier := NotifierFunc(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})

	net := newNetwork()
	alice := newTestAgent(t, net, "alice", WithNotifier(notifier))
	bob := newTestAgent(t, net, "bob", WithNotifier(notifier))
	introduce(alice, bob)

	if _, err := alice.Send(ctx, ComposeRequest{Subject: "hi", To: []AgentID{bob.ID()}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	settle(alice, bob)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("notified %v, want one mail and one ack", got)
	}
}
