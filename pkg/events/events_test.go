package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for event := range ch {
		out = append(out, event)
	}
	return out
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch1, unsub1 := hub.Subscribe()
	ch2, unsub2 := hub.Subscribe()
	defer unsub1()
	defer unsub2()

	hub.Publish(Event{Type: TypeRunStart, Model: "m1", PuzzleID: "p1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, TypeRunStart, event.Type)
			assert.Equal(t, "m1", event.Model)
			assert.False(t, event.Timestamp.IsZero(), "hub stamps events")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestHubPreservesPublicationOrder(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()

	for i := 0; i < 10; i++ {
		hub.Publish(Event{Type: TypeStepStart, Step: i})
	}
	unsub()

	events := drain(ch)
	require.Len(t, events, 10)
	for i, event := range events {
		assert.Equal(t, i, event.Step)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()

	// Publish past the channel buffer with no reader attached; Publish must
	// not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish(Event{Type: TypeStepComplete, Step: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	unsub()
	events := drain(ch)
	assert.NotEmpty(t, events)
	assert.Less(t, len(events), 1000, "overflow events are dropped")
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	unsub()
	unsub() // idempotent

	hub.Publish(Event{Type: TypeRunStart})
	_, open := <-ch
	assert.False(t, open, "channel closed after unsubscribe")
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()

	hub.Close()
	hub.Close() // idempotent

	_, open := <-ch
	assert.False(t, open)

	hub.Publish(Event{Type: TypeRunStart}) // no panic after close

	late, _ := hub.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing to a closed hub yields a closed channel")
}

type captureSink struct {
	events []Event
}

func (c *captureSink) Publish(event Event) { c.events = append(c.events, event) }

func TestMultiSink(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}

	sink := Multi(a, nil, b)
	sink.Publish(Event{Type: TypeWorkerIdle, Model: "m1"})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, TypeWorkerIdle, a.events[0].Type)
}
