package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusAddListenerReceivesEvents(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var received []Event
	bus.AddListener(ListenerFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	}))

	bus.Publish(Event{Topic: TopicCreated})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, TopicCreated, received[0].Topic)
}

func TestBusListenerPanicDoesNotAffectOthers(t *testing.T) {
	bus := NewBus(nil)

	called := false
	bus.AddListener(ListenerFunc(func(ev Event) {
		panic("boom")
	}))
	bus.AddListener(ListenerFunc(func(ev Event) {
		called = true
	}))

	assert.NotPanics(t, func() {
		bus.Publish(Event{Topic: TopicCreated})
	})
	assert.True(t, called, "second listener must still run after the first panics")
}

func TestBusSubscribeDropsOldestWhenFull(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe("test", 1)

	bus.Publish(Event{Topic: TopicCreated})
	bus.Publish(Event{Topic: TopicStarted})

	select {
	case ev := <-ch:
		assert.Equal(t, TopicStarted, ev.Topic, "oldest event should have been dropped")
	case <-time.After(time.Second):
		t.Fatal("expected a buffered event")
	}
}
