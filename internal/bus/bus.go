// Package bus provides the async bus between event intake and the router.
package bus

import (
	"context"
	"sync"

	"github.com/pawdiary/pawdiary/internal/event"
	"github.com/pawdiary/pawdiary/internal/format"
)

// EventBus decouples event sources from the router worker pool and fans
// finished entries out to subscribers (journal store, logging).
type EventBus struct {
	inbound  chan *event.Event
	outbound chan *format.Entry
	subs     []func(*format.Entry)
	mu       sync.RWMutex
}

// New creates an EventBus with buffered channels.
func New() *EventBus {
	return &EventBus{
		inbound:  make(chan *event.Event, 100),
		outbound: make(chan *format.Entry, 100),
	}
}

// PublishEvent sends a life event toward the router workers.
func (b *EventBus) PublishEvent(ev *event.Event) {
	b.inbound <- ev
}

// ConsumeEvent blocks until an event is available or the context is cancelled.
func (b *EventBus) ConsumeEvent(ctx context.Context) (*event.Event, error) {
	select {
	case ev := <-b.inbound:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishEntry sends a finished entry to the dispatcher.
func (b *EventBus) PublishEntry(entry *format.Entry) {
	b.outbound <- entry
}

// SubscribeEntries registers a callback invoked for every finished entry.
func (b *EventBus) SubscribeEntries(callback func(*format.Entry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, callback)
}

// DispatchEntries runs the outbound dispatcher. Run as a goroutine.
func (b *EventBus) DispatchEntries(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-b.outbound:
			b.mu.RLock()
			subs := b.subs
			b.mu.RUnlock()
			for _, cb := range subs {
				cb(entry)
			}
		}
	}
}

// PendingEvents returns the number of queued inbound events.
func (b *EventBus) PendingEvents() int {
	return len(b.inbound)
}

// PendingEntries returns the number of queued outbound entries.
func (b *EventBus) PendingEntries() int {
	return len(b.outbound)
}
