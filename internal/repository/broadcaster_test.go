// ABOUTME: Tests for the generic Broadcaster
// ABOUTME: Covers fan-out, unsubscribe, context cancellation, and close

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
	var zero T
	return zero
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster[int](nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Publish(42)
	assert.Equal(t, 42, receive(t, ch1))
	assert.Equal(t, 42, receive(t, ch2))
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster[string](nil)
	defer b.Close()

	ch, id := b.Subscribe(t.Context())
	b.Unsubscribe(id)
	b.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish("after")
}

func TestBroadcaster_ContextCancellation(t *testing.T) {
	b := NewBroadcaster[int](nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not removed after cancellation")
	}
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster[int](nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())
	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(i)
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_CloseAndSubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster[int](nil)
	ch, _ := b.Subscribe(t.Context())
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(t.Context())
	_, ok = <-late
	assert.False(t, ok)
}

func TestBroadcaster_ConcurrentPublishAndClose(t *testing.T) {
	b := NewBroadcaster[int](nil)
	for i := 0; i < 5; i++ {
		b.Subscribe(t.Context())
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Publish(i)
		}(i)
	}
	b.Close()
	wg.Wait()
}
