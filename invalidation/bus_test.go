// invalidation/bus_test.go
package invalidation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	defer logger.Sync()
	m.Run()
}

type recordingCache struct {
	mu     sync.Mutex
	clears int
}

func (c *recordingCache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.clears++
	c.mu.Unlock()
}

func (c *recordingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

func TestLocalBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewLocalBus()

	var received []Event
	bus.Subscribe(func(ctx context.Context, event Event) error {
		received = append(received, event)
		return nil
	})
	var second int
	bus.Subscribe(func(ctx context.Context, event Event) error {
		second++
		return nil
	})

	err := bus.Publish(context.Background(), Event{Kind: KindUpdate, PolicyID: "p1", PolicyName: "office-only"})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, KindUpdate, received[0].Kind)
	assert.Equal(t, "office-only", received[0].PolicyName)
	assert.Equal(t, 1, second)
}

func TestLocalBusHandlerErrorDoesNotBlockOthers(t *testing.T) {
	bus := NewLocalBus()

	bus.Subscribe(func(ctx context.Context, event Event) error {
		return errors.New("eviction failed")
	})
	var delivered int
	bus.Subscribe(func(ctx context.Context, event Event) error {
		delivered++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindDelete, PolicyID: "p1"}))
	assert.Equal(t, 1, delivered)
}

func TestInvalidatorClearsEveryRegisteredCache(t *testing.T) {
	first := &recordingCache{}
	second := &recordingCache{}
	inv := NewInvalidator(first, ClearFunc(second.Clear))

	bus := NewLocalBus()
	inv.Register(bus)

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindCreate, PolicyName: "new-policy"}))
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())

	// Duplicate delivery is harmless.
	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindCreate, PolicyName: "new-policy"}))
	assert.Equal(t, 2, first.count())
	assert.Equal(t, 2, second.count())
}

func TestInvalidatorClearsOnAdministrativeFlush(t *testing.T) {
	cache := &recordingCache{}
	inv := NewInvalidator(cache)

	bus := NewLocalBus()
	inv.Register(bus)

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindClear}))
	assert.Equal(t, 1, cache.count())
}

func TestRedisBusDispatch(t *testing.T) {
	bus := NewRedisBus(nil, "policy-updates")

	var received []Event
	bus.Subscribe(func(ctx context.Context, event Event) error {
		received = append(received, event)
		return nil
	})

	bus.dispatch(context.Background(), `{"kind":"DELETE","policy_id":"p9","policy_name":"stale"}`)
	require.Len(t, received, 1)
	assert.Equal(t, KindDelete, received[0].Kind)
	assert.Equal(t, "p9", received[0].PolicyID)
	assert.Equal(t, "stale", received[0].PolicyName)
}

func TestRedisBusDispatchToleratesMalformedPayload(t *testing.T) {
	bus := NewRedisBus(nil, "policy-updates")

	var received int
	bus.Subscribe(func(ctx context.Context, event Event) error {
		received++
		return nil
	})

	bus.dispatch(context.Background(), `{not json`)
	assert.Equal(t, 0, received)

	bus.dispatch(context.Background(), `{"kind":"UPDATE"}`)
	assert.Equal(t, 1, received)
}
