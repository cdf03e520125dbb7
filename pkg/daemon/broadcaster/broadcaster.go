// Package broadcaster fans daemon events out to subscribed clients.
package broadcaster

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what changed.
type EventType string

const (
	EventProfileApplied   EventType = "profile_applied"
	EventApplyFailed      EventType = "apply_failed"
	EventStateRestored    EventType = "state_restored"
	EventProfilesReloaded EventType = "profiles_reloaded"
	EventReloadFailed     EventType = "reload_failed"
)

// Event is one state change observed by the daemon.
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Profile string    `json:"profile,omitempty"`
	EntryID string    `json:"entry_id,omitempty"`
	Message string    `json:"message,omitempty"`
}

// subscriberBuffer is the per-subscriber queue length. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 64

// Subscriber receives events of the types it asked for, or all events when
// Types is empty.
type Subscriber struct {
	ID     string
	Types  []EventType
	Events chan *Event
}

// Broadcaster manages subscribers and distributes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a new Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber. It returns nil after Close.
func (b *Broadcaster) Subscribe(types ...EventType) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Types:  types,
		Events: make(chan *Event, subscriberBuffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Notify sends e to every matching subscriber without blocking. A zero
// Time is set to now.
func (b *Broadcaster) Notify(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !sub.wants(e.Type) {
			continue
		}
		ev := e
		select {
		case sub.Events <- &ev:
		default:
			// Slow subscriber; drop.
		}
	}
}

func (s *Subscriber) wants(t EventType) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
