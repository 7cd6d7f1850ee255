package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/modelcore/agent/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitDispatchesGlobalThenTyped(t *testing.T) {
	bus := New(nil)
	var mu sync.Mutex
	var order []string

	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		order = append(order, "global")
		mu.Unlock()
	})
	bus.Subscribe(PlanStart, func(e Event) {
		mu.Lock()
		order = append(order, "typed-1")
		mu.Unlock()
	})
	bus.Subscribe(PlanStart, func(e Event) {
		mu.Lock()
		order = append(order, "typed-2")
		mu.Unlock()
	})

	bus.Emit(Event{Type: PlanStart})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"global", "typed-1", "typed-2"}, order)
}

func TestBus_TypedHandlerOnlyFiresForItsType(t *testing.T) {
	bus := New(nil)
	var fired bool
	bus.Subscribe(PlanEnd, func(e Event) { fired = true })

	bus.Emit(Event{Type: PlanStart})
	assert.False(t, fired)

	bus.Emit(Event{Type: PlanEnd})
	assert.True(t, fired)
}

func TestBus_HandlerPanicRecoveredAndOthersStillRun(t *testing.T) {
	bus := New(nil)
	var secondRan bool

	bus.SubscribeAll(func(e Event) { panic("boom") })
	bus.SubscribeAll(func(e Event) { secondRan = true })

	assert.NotPanics(t, func() {
		bus.Emit(Event{Type: Content})
	})
	assert.True(t, secondRan)
}

func TestBus_EmitStampsTimeIfZero(t *testing.T) {
	bus := New(nil)
	var got Event
	bus.SubscribeAll(func(e Event) { got = e })

	before := time.Now()
	bus.Emit(Event{Type: Observation})
	assert.False(t, got.Time.Before(before.Add(-time.Second)))
}

func TestRedisBridge_PublishAndSubscribeRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	publisher, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL: "redis://" + mr.Addr(),
		DB:       core.RedisDBEventBus,
	})
	require.NoError(t, err)
	defer publisher.Close()

	subscriber, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL: "redis://" + mr.Addr(),
		DB:       core.RedisDBEventBus,
	})
	require.NoError(t, err)
	defer subscriber.Close()

	pubBridge := NewRedisBridge(publisher, "test-channel", nil)
	subBridge := NewRedisBridge(subscriber, "test-channel", nil)

	received := make(chan Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subBridge.Subscribe(ctx, func(e Event) { received <- e })

	// miniredis pub/sub delivery is async; give the subscriber a moment to
	// attach before publishing.
	time.Sleep(50 * time.Millisecond)
	pubBridge.Publish(Event{Type: StepStart, SessionID: "s1"})

	select {
	case e := <-received:
		assert.Equal(t, StepStart, e.Type)
		assert.Equal(t, "s1", e.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridged event")
	}
}
