// invalidation/bus.go
package invalidation

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
)

// Mutation kinds carried by invalidation events. KindClear is the
// administrative whole-cache flush, not tied to any specific policy.
const (
	KindCreate = "CREATE"
	KindUpdate = "UPDATE"
	KindDelete = "DELETE"
	KindClear  = "CLEAR"
)

// Event announces a policy mutation to every running instance. Events are
// transient and may be delivered more than once; handlers must be idempotent.
type Event struct {
	Kind       string `json:"kind"`
	PolicyID   string `json:"policy_id,omitempty"`
	PolicyName string `json:"policy_name,omitempty"`
}

// Handler consumes one invalidation event.
type Handler func(context.Context, Event) error

// Bus is the publish/subscribe channel connecting policy mutations to cache
// eviction. Publish failures are surfaced so callers can log them, but the
// engine keeps serving regardless.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(handler Handler)
}

// LocalBus delivers events in process. It satisfies the Bus contract for a
// single-instance deployment and backs the tests.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers []Handler
	errorChan   chan error
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		errorChan: make(chan error, 100),
	}
}

// Subscribe adds a new subscriber.
func (b *LocalBus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = append(b.subscribers, handler)
}

// Publish sends an event to all subscribers. Handlers run synchronously so
// the publishing instance observes its own invalidation before returning.
func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers))
	copy(handlers, b.subscribers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			select {
			case b.errorChan <- fmt.Errorf("invalidation handler error: %w", err):
			default:
				logger.Error("Error channel full, logging invalidation handler error",
					zap.Error(err),
					zap.String("kind", event.Kind))
			}
		}
	}
	return nil
}

// Start begins draining handler errors.
func (b *LocalBus) Start(ctx context.Context) {
	go b.processErrors(ctx)
}

func (b *LocalBus) processErrors(ctx context.Context) {
	for {
		select {
		case err := <-b.errorChan:
			logger.Error("Invalidation handler error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}
