// invalidation/invalidator.go
package invalidation

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
)

// Clearable is anything holding cache state that a policy mutation can stale.
type Clearable interface {
	Clear(ctx context.Context)
}

// ClearFunc adapts a plain function to the Clearable interface.
type ClearFunc func(ctx context.Context)

func (f ClearFunc) Clear(ctx context.Context) { f(ctx) }

// Invalidator wires cache eviction to the bus: on any event, every
// registered cache is cleared unconditionally. A single policy change can
// flip the precedence outcome of arbitrarily many cached decisions, so
// selective eviction is not worth its complexity.
type Invalidator struct {
	caches []Clearable
}

func NewInvalidator(caches ...Clearable) *Invalidator {
	return &Invalidator{caches: caches}
}

// Register attaches the invalidator to the bus.
func (i *Invalidator) Register(bus Bus) {
	bus.Subscribe(i.handle)
}

func (i *Invalidator) handle(ctx context.Context, event Event) error {
	i.ClearAll(ctx)
	logger.Info("Caches evicted after policy mutation",
		zap.String("kind", event.Kind),
		zap.String("policyName", event.PolicyName))
	return nil
}

// ClearAll evicts every registered cache. Safe to call on empty caches.
func (i *Invalidator) ClearAll(ctx context.Context) {
	for _, cache := range i.caches {
		cache.Clear(ctx)
	}
}
