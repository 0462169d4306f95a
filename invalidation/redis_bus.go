// invalidation/redis_bus.go
package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
)

// RedisBus carries invalidation events across a multi-instance deployment
// over a Redis pub/sub channel. The publisher also receives its own events,
// so every instance, publisher included, evicts on mutation. Channel
// unavailability and malformed messages are logged and ignored; the engine
// keeps serving possibly stale decisions rather than failing closed.
type RedisBus struct {
	client  *redis.Client
	channel string

	mu          sync.RWMutex
	subscribers []Handler
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: channel,
	}
}

// Subscribe adds a new subscriber for incoming events.
func (b *RedisBus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = append(b.subscribers, handler)
}

// Publish sends an event to the shared channel.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation event: %w", err)
	}

	logger.Info("Published invalidation event",
		zap.String("kind", event.Kind),
		zap.String("policyID", event.PolicyID),
		zap.String("policyName", event.PolicyName))
	return nil
}

// Start subscribes to the channel and dispatches incoming events until the
// context is cancelled.
func (b *RedisBus) Start(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.dispatch(ctx, msg.Payload)
			}
		}
	}()

	logger.Info("Subscribed to invalidation channel", zap.String("channel", b.channel))
}

func (b *RedisBus) dispatch(ctx context.Context, payload string) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn("Malformed invalidation message",
			zap.Error(err),
			zap.String("payload", payload))
		return
	}

	logger.Info("Received invalidation event",
		zap.String("kind", event.Kind),
		zap.String("policyName", event.PolicyName))

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers))
	copy(handlers, b.subscribers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("Invalidation handler error",
				zap.Error(err),
				zap.String("kind", event.Kind))
		}
	}
}
