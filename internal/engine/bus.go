// Package engine implements the client-side scheduling state: the optimistic
// per-owner task store, the typed in-process event bus that keeps
// concurrently mounted views consistent, and the view orchestration that
// ties store, slot registry, durable snapshot, and remote reconciliation
// together.
package engine

import (
	"sync"

	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/slot"
)

// Event is the sealed set of messages exchanged between views in the same
// process. Delivery is synchronous and FIFO relative to the publishing
// action, so a subscriber can never observe a TaskDeleted for a task it has
// not yet learned exists.
type Event interface {
	isEvent()
}

// TaskUpserted announces that a task was created, patched, or confirmed.
type TaskUpserted struct {
	Task domain.Task
}

// TaskDeleted announces that the task at (Day, Slot) is gone from view.
type TaskDeleted struct {
	ID   string
	Day  string
	Slot string
}

// SlotsUpdated announces a change to the slot label set (add or remove).
type SlotsUpdated struct {
	Labels []string
}

// SlotRenamed announces one slot rename. Receivers remap their own task
// keys from From to To, idempotently.
type SlotRenamed struct {
	From string
	To   string
}

// BulkSync carries a full state snapshot so a newly mounted view can
// hydrate without a network round trip.
type BulkSync struct {
	Tasks   []domain.Task
	Labels  []string
	Renames []slot.Rename
}

// ViewMounted is the mount handshake: a freshly mounted view announces
// itself, and any already-mounted view replies with a BulkSync.
type ViewMounted struct {
	View string
}

func (TaskUpserted) isEvent() {}
func (TaskDeleted) isEvent()  {}
func (SlotsUpdated) isEvent() {}
func (SlotRenamed) isEvent()  {}
func (BulkSync) isEvent()     {}
func (ViewMounted) isEvent()  {}

// Handler consumes events published by other subscribers.
type Handler func(Event)

type subscriber struct {
	name    string
	handler Handler
}

// Bus is the same-process broadcast channel between views. Publish invokes
// every other subscriber's handler synchronously, in subscription order,
// on the publishing goroutine. A subscriber never receives its own events —
// the publisher already applied them locally.
type Bus struct {
	mu   sync.Mutex
	subs []*subscriber
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler under name and returns an unsubscribe func.
// The name identifies the subscriber for self-delivery suppression; it must
// match the name passed to Publish.
func (b *Bus) Subscribe(name string, handler Handler) (unsubscribe func()) {
	s := &subscriber{name: name, handler: handler}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.subs {
			if cur == s {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber except the one named from.
// Handlers run synchronously on the caller's goroutine; a handler may
// itself publish (e.g. replying to ViewMounted with a BulkSync).
func (b *Bus) Publish(from string, ev Event) {
	b.mu.Lock()
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.name == from {
			continue
		}
		s.handler(ev)
	}
}
