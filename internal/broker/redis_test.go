package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"wakemeup/internal/domain/alarm"
)

func newTestRedisBroker(t *testing.T) *RedisBroker {
	t.Helper()

	mr := miniredis.RunT(t)

	b, err := NewRedisBroker("redis://" + mr.Addr())
	require.NoError(t, err)

	return b
}

func receiveEvent(t *testing.T, ch chan alarm.TriggerEvent) alarm.TriggerEvent {
	t.Helper()

	select {
	case event, ok := <-ch:
		require.True(t, ok, "subscription channel closed unexpectedly")

		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a trigger event")

		return alarm.TriggerEvent{}
	}
}

// TestRedisBroker_PublishReachesSubscribers round-trips an event through the
// shared channel.
func TestRedisBroker_PublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	b := newTestRedisBroker(t)

	first := b.Subscribe()
	second := b.Subscribe()

	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(context.Background(), testEvent("r1"))

	require.Equal(t, "r1", receiveEvent(t, first).Alarm.ID)
	require.Equal(t, "r1", receiveEvent(t, second).Alarm.ID)
}

// TestRedisBroker_UnsubscribeThenPublish: tearing one watcher down must not
// disturb later publishes or the remaining watchers.
func TestRedisBroker_UnsubscribeThenPublish(t *testing.T) {
	t.Parallel()

	b := newTestRedisBroker(t)

	gone := b.Subscribe()
	stays := b.Subscribe()

	defer b.Unsubscribe(stays)

	b.Unsubscribe(gone)

	// The pump closes the bridge channel once its subscription ends.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-gone:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	b.Publish(context.Background(), testEvent("r2"))

	require.Equal(t, "r2", receiveEvent(t, stays).Alarm.ID)
}

// TestRedisBroker_UnsubscribeTwiceIsSafe.
func TestRedisBroker_UnsubscribeTwiceIsSafe(t *testing.T) {
	t.Parallel()

	b := newTestRedisBroker(t)

	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	b.Publish(context.Background(), testEvent("r3"))
}

// TestRedisBroker_MalformedPayloadIsDropped: garbage on the wire must not
// close or poison the subscription.
func TestRedisBroker_MalformedPayloadIsDropped(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	b, err := NewRedisBroker("redis://" + mr.Addr())
	require.NoError(t, err)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	mr.Publish(triggerChannel, "not json")
	b.Publish(context.Background(), testEvent("r4"))

	require.Equal(t, "r4", receiveEvent(t, ch).Alarm.ID)
}
