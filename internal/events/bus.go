// Package events is the in-process publish/subscribe hub that decouples
// write handlers from the push-stream connections.
package events

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/models"
)

// Kind names an event on the bus and on the push wire.
type Kind string

const (
	RecordCreated      Kind = "record-created"
	RecordLikesChanged Kind = "record-likes-changed"
	RecordDeleted      Kind = "record-deleted"
)

// Event is what subscribers receive: the kind plus the affected record.
type Event struct {
	Kind   Kind
	Record models.Record
}

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not call Publish themselves.
type Handler func(Event)

// Subscription is the handle returned by Subscribe. Releasing it with
// Unsubscribe is the only way to stop delivery.
type Subscription struct {
	id      uint64
	kind    Kind
	handler Handler
	removed atomic.Bool
}

func (s *Subscription) Kind() Kind { return s.kind }

// Bus fans events out to subscribers of each kind. One Bus is created per
// server process and shared by the write handlers and every push connection.
type Bus struct {
	log *zap.Logger

	// dispatch serializes Publish so that subscribers of a kind see events
	// in publish order.
	dispatch sync.Mutex

	mu     sync.RWMutex
	subs   map[Kind][]*Subscription
	nextID uint64
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		log:  log.Named("bus"),
		subs: make(map[Kind][]*Subscription),
	}
}

// Subscribe registers handler for future events of kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, kind: kind, handler: handler}
	b.subs[kind] = append(b.subs[kind], sub)
	return sub
}

// Unsubscribe removes sub. Calling it twice, or with nil or a foreign
// subscription, does nothing.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.kind]
	for i, s := range list {
		if s != sub {
			continue
		}
		s.removed.Store(true)
		// Copy so a Publish holding the old slice is unaffected.
		next := make([]*Subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, sub.kind)
		} else {
			b.subs[sub.kind] = next
		}
		return
	}
}

// Publish delivers an event to every current subscriber of kind, in
// subscription order. A panicking handler is logged and skipped; the
// remaining subscribers still receive the event.
func (b *Bus) Publish(kind Kind, record models.Record) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.RLock()
	list := b.subs[kind]
	b.mu.RUnlock()

	ev := Event{Kind: kind, Record: record}
	for _, sub := range list {
		if sub.removed.Load() {
			continue
		}
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked",
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("subscription", sub.id),
				zap.Any("panic", r),
			)
		}
	}()
	sub.handler(ev)
}

// Subscribers reports how many handlers are registered for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
