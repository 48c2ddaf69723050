// ABOUTME: In-memory fan-out broadcaster for repository change notifications
// ABOUTME: Publishes the stored collection to every subscriber after a durable write

package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 16

// Broadcaster provides in-memory pub/sub of values of type T.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]chan T // subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster[T any](logger *slog.Logger) *Broadcaster[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster[T]{
		subscribers: make(map[string]chan T),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. Returns a channel receiving published
// values and a subscription ID for Unsubscribe. The subscription is removed
// when ctx is cancelled.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) (<-chan T, string) {
	subID := uuid.New().String()
	ch := make(chan T, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends value to all subscribers without blocking. Values are
// dropped for subscribers whose channels are full.
func (b *Broadcaster[T]) Publish(value T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- value:
		default:
			b.logger.Debug("dropped update for slow subscriber", "sub_id", id)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster[T]) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes all subscriber channels. Later subscriptions receive a closed channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
