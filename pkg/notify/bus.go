// Package notify fans out invitation progress events to per-event subscribers.
package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType names what an Event carries.
type EventType string

const (
	TypeItemCompleted  EventType = "item.completed"
	TypeBatchCompleted EventType = "batch.completed"
)

// ItemCompleted is published as soon as one recipient's unit finishes.
type ItemCompleted struct {
	EventID      string    `json:"eventId"`
	InvitationID string    `json:"invitationId"`
	Index        int       `json:"index"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// BatchCompleted is published once every unit of a batch finished.
type BatchCompleted struct {
	EventID       string    `json:"eventId"`
	InvitationIDs []string  `json:"invitationIds"`
	Failed        int       `json:"failed"`
	At            time.Time `json:"at"`
}

// Event is one delivery on a subscription channel.
type Event struct {
	Type  EventType       `json:"type"`
	Item  *ItemCompleted  `json:"item,omitempty"`
	Batch *BatchCompleted `json:"batch,omitempty"`
}

// Bus routes events to subscriptions keyed by eventId. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	dropped atomic.Int64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives the events of one eventId until Close.
type Subscription struct {
	bus     *Bus
	eventID string
	ch      chan Event
	once    sync.Once
}

// Subscribe registers interest in eventID. Events published before this call are not replayed.
func (b *Bus) Subscribe(eventID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Subscription{bus: b, eventID: eventID, ch: make(chan Event, buffer)}
	b.mu.Lock()
	if b.subs[eventID] == nil {
		b.subs[eventID] = make(map[*Subscription]struct{})
	}
	b.subs[eventID][s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

// EventID returns the event the subscription listens to.
func (s *Subscription) EventID() string { return s.eventID }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		delete(b.subs[s.eventID], s)
		if len(b.subs[s.eventID]) == 0 {
			delete(b.subs, s.eventID)
		}
		close(s.ch)
		b.mu.Unlock()
	})
}

func (b *Bus) publish(eventID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[eventID] {
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// PublishItem delivers an item-completed event to the item's event subscribers.
func (b *Bus) PublishItem(item ItemCompleted) {
	if item.At.IsZero() {
		item.At = time.Now().UTC()
	}
	b.publish(item.EventID, Event{Type: TypeItemCompleted, Item: &item})
}

// PublishBatch delivers a batch-completed event.
func (b *Bus) PublishBatch(batch BatchCompleted) {
	if batch.At.IsZero() {
		batch.At = time.Now().UTC()
	}
	b.publish(batch.EventID, Event{Type: TypeBatchCompleted, Batch: &batch})
}

// Subscribers counts live subscriptions for eventID.
func (b *Bus) Subscribers(eventID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventID])
}

// Dropped reports how many deliveries were skipped because of full buffers.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }
