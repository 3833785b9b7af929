// Package broker fans trigger events out to interested consumers: WebSocket
// watchers inside the process, and optionally other processes via Redis
// pub/sub.
package broker

import (
	"context"
	"sync"

	"wakemeup/internal/domain/alarm"
)

// subscriberBuffer is the per-subscriber channel capacity. A slow consumer
// drops events instead of stalling the evaluation path.
const subscriberBuffer = 8

// Broker delivers trigger events to any number of subscribers.
type Broker interface {
	Subscribe() chan alarm.TriggerEvent
	Unsubscribe(ch chan alarm.TriggerEvent)
	Publish(ctx context.Context, event alarm.TriggerEvent)
}

// MemoryBroker is the in-process Broker implementation.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[chan alarm.TriggerEvent]struct{}
}

// NewMemoryBroker constructs an in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[chan alarm.TriggerEvent]struct{}{}}
}

// Subscribe registers a new event consumer.
func (b *MemoryBroker) Subscribe() chan alarm.TriggerEvent {
	ch := make(chan alarm.TriggerEvent, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes and closes a consumer channel.
func (b *MemoryBroker) Unsubscribe(ch chan alarm.TriggerEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber without blocking.
func (b *MemoryBroker) Publish(_ context.Context, event alarm.TriggerEvent) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	b.mu.Unlock()
}
