package peermail

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType names an application event.
type EventType string

const (
	// EventReceivedMail is emitted once per newly materialized InboundMail.
	EventReceivedMail EventType = "received_mail"
	// EventReceivedAck is emitted once per newly recorded InboundAck.
	EventReceivedAck EventType = "received_ack"
)

// Event is delivered to subscribers and the configured Notifier.
type Event struct {
	// ID is unique per event.
	ID   string
	Type EventType
	// Record is the InboundMail or InboundAck that was appended.
	Record RecordID
	// From is the agent that sent the mail or ack.
	From AgentID
	// OutboundMail is the sender-side mail id the event refers to.
	OutboundMail RecordID
	// Mail is set for EventReceivedMail.
	Mail *Mail
	At   time.Time
}

func newEvent(typ EventType, id RecordID, from AgentID, outbound RecordID, at time.Time) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         typ,
		Record:       id,
		From:         from,
		OutboundMail: outbound,
		At:           at,
	}
}

// subscription represents an active event subscription.
type subscription struct {
	id        string
	eventType EventType
	callback  func(Event)
	active    atomic.Bool
}

// subscriptionManager handles event subscriptions with safe lifecycle management.
// It ensures callbacks are never invoked after unsubscription completes.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[EventType]map[string]*subscription // eventType -> subID -> subscription
	nextID atomic.Uint64
}

// newSubscriptionManager creates a new subscription manager.
func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[EventType]map[string]*subscription),
	}
}

// subscribe registers a callback for events of the given type.
// Returns an unsubscribe function that must be called to clean up.
func (m *subscriptionManager) subscribe(eventType EventType, callback func(Event)) func() {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:        id,
		eventType: eventType,
		callback:  callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	if m.subs[eventType] == nil {
		m.subs[eventType] = make(map[string]*subscription)
	}
	m.subs[eventType][id] = sub
	m.mu.Unlock()

	return func() {
		m.unsubscribe(eventType, id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(eventType EventType, subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if typeSubs, ok := m.subs[eventType]; ok {
		if sub, ok := typeSubs[subID]; ok {
			sub.active.Store(false)
			delete(typeSubs, subID)
			if len(typeSubs) == 0 {
				delete(m.subs, eventType)
			}
		}
	}
}

// notify calls all registered callbacks for the event's type.
// Callbacks run synchronously after the read lock is released.
func (m *subscriptionManager) notify(e Event) {
	m.mu.RLock()
	typeSubs := m.subs[e.Type]
	if len(typeSubs) == 0 {
		m.mu.RUnlock()
		return
	}

	subs := make([]*subscription, 0, len(typeSubs))
	for _, sub := range typeSubs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(e)
		}
	}
}

// clear removes all subscriptions. Called during Agent.Close().
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, typeSubs := range m.subs {
		for _, sub := range typeSubs {
			sub.active.Store(false)
		}
	}
	m.subs = make(map[EventType]map[string]*subscription)
}
