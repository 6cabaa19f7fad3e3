package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type damageEvent struct {
	entityID uint32
	amount   int
}

type healEvent struct {
	entityID uint32
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.FailNow(t, "condition not met before deadline")
}

func TestSubscribeAndPublishDeliversAsynchronously(t *testing.T) {
	b := New(Options{})
	defer b.Shutdown()

	var mu sync.Mutex
	var got []damageEvent
	Subscribe(b, func(e damageEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	require.True(t, Publish(b, damageEvent{entityID: 7, amount: 12}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	require.Equal(t, uint32(7), got[0].entityID)
	require.Equal(t, 12, got[0].amount)
}

func TestMultipleEventTypesRouteIndependently(t *testing.T) {
	b := New(Options{})
	defer b.Shutdown()

	var mu sync.Mutex
	var damages, heals int
	Subscribe(b, func(damageEvent) {
		mu.Lock()
		damages++
		mu.Unlock()
	})
	Subscribe(b, func(healEvent) {
		mu.Lock()
		heals++
		mu.Unlock()
	})

	Publish(b, damageEvent{entityID: 1, amount: 5})
	Publish(b, healEvent{entityID: 1})
	Publish(b, healEvent{entityID: 2})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return damages == 1 && heals == 2
	})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(Options{})
	defer b.Shutdown()

	var mu sync.Mutex
	count := 0
	handler := func(damageEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	Subscribe(b, handler)
	require.True(t, Publish(b, damageEvent{}))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	require.True(t, Unsubscribe(b, handler))
	require.True(t, Publish(b, damageEvent{}))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

func TestPublishFailsWhenQueueFull(t *testing.T) {
	b := New(Options{QueueCapacity: 2})
	defer b.Shutdown()

	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	Subscribe(b, func(damageEvent) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-block
	})

	// The worker takes the first event off the queue and blocks in the
	// handler; the next two then fill both queue slots.
	require.True(t, Publish(b, damageEvent{}))
	<-entered
	require.True(t, Publish(b, damageEvent{}))
	require.True(t, Publish(b, damageEvent{}))
	require.False(t, Publish(b, damageEvent{}))

	close(block)
}

func TestDispatchBytesRoundTrips(t *testing.T) {
	b := New(Options{PayloadRing: 256})
	defer b.Shutdown()

	var mu sync.Mutex
	var got []byte
	b.SubscribeBytes("asset.loaded", func(data []byte) {
		mu.Lock()
		got = append([]byte(nil), data...)
		mu.Unlock()
	})

	payload := []byte("texture-blob")
	require.True(t, b.DispatchBytes("asset.loaded", payload))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(payload)
	})
	require.Equal(t, payload, got)
}

func TestShutdownDrainsQueuedEvents(t *testing.T) {
	b := New(Options{QueueCapacity: 8})

	var mu sync.Mutex
	delivered := 0
	Subscribe(b, func(damageEvent) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		require.True(t, Publish(b, damageEvent{entityID: uint32(i)}))
	}
	b.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 5, delivered)
}
