package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/logger"
)

// triggerChannel is the Redis pub/sub channel carrying trigger events.
const triggerChannel = "wakemeup:triggers"

// publishTimeout bounds a single Redis publish so a slow broker never stalls
// the evaluation path.
const publishTimeout = 2 * time.Second

// RedisBroker implements Broker over Redis pub/sub, letting a notifier on
// another host consume trigger events from the same daemon.
type RedisBroker struct {
	rdb *redis.Client

	// mu protects subs.
	mu sync.Mutex
	// subs maps each bridge channel to its Redis subscription so Unsubscribe
	// can tear the subscription down. Only the pump closes a bridge channel,
	// after its subscription ends.
	subs map[chan alarm.TriggerEvent]*redis.PubSub
}

// NewRedisBroker connects to the Redis instance named by the URL.
func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	return &RedisBroker{
		rdb:  redis.NewClient(opt),
		subs: map[chan alarm.TriggerEvent]*redis.PubSub{},
	}, nil
}

// Subscribe opens a Redis subscription and bridges it to a channel.
func (b *RedisBroker) Subscribe() chan alarm.TriggerEvent {
	ch := make(chan alarm.TriggerEvent, subscriberBuffer)

	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, triggerChannel)

	// Initial receive confirms the subscription before events flow.
	_, _ = ps.Receive(ctx)

	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		defer close(ch)

		for msg := range ps.Channel() {
			var event alarm.TriggerEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.WarnKV(ctx, "Dropping malformed trigger event", "error", err)

				continue
			}

			select {
			case ch <- event:
			default:
			}
		}
	}()

	return ch
}

// Unsubscribe closes the Redis subscription; the pump then drains out and
// closes the bridge channel itself. Safe to call more than once.
func (b *RedisBroker) Unsubscribe(ch chan alarm.TriggerEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()

	if ok {
		_ = ps.Close()
	}
}

// Publish serializes the event onto the shared Redis channel.
func (b *RedisBroker) Publish(ctx context.Context, event alarm.TriggerEvent) {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode trigger event", "error", err)

		return
	}

	if err := b.rdb.Publish(publishCtx, triggerChannel, data).Err(); err != nil {
		logger.WarnKV(ctx, "Failed to publish trigger event", "error", err)
	}
}
