package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubFanout(t *testing.T) {
	h := NewHub()
	a := h.Join("room")
	b := h.Join("room")
	other := h.Join("elsewhere")
	defer a.Leave()
	defer b.Leave()
	defer other.Leave()

	require.NoError(t, h.Publish(context.Background(), "room", Event{Type: EventUserJoin, Username: "alice"}))

	assert.Equal(t, "alice", recv(t, a).Username)
	assert.Equal(t, "alice", recv(t, b).Username)

	select {
	case ev := <-other.C:
		t.Fatalf("event leaked across rooms: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublisherIncluded(t *testing.T) {
	h := NewHub()
	a := h.Join("room")
	defer a.Leave()

	require.NoError(t, h.Publish(context.Background(), "room", Event{Type: EventChatMessage, Text: "hi"}))
	assert.Equal(t, "hi", recv(t, a).Text)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h := NewHub()
	a := h.Join("room")
	a.Leave()
	a.Leave() // idempotent

	require.NoError(t, h.Publish(context.Background(), "room", Event{Type: EventUserJoin}))

	_, ok := <-a.C
	assert.False(t, ok, "channel must be closed after Leave")
}

func TestHubPerPublisherOrdering(t *testing.T) {
	h := NewHub()
	a := h.Join("room")
	defer a.Leave()

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, h.Publish(context.Background(), "room", Event{Type: EventChatMessage, MessageID: i}))
	}
	for i := int64(1); i <= 10; i++ {
		assert.Equal(t, i, recv(t, a).MessageID)
	}
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	sub := h.Join("room")
	defer sub.Leave()

	// Nobody drains; the buffer fills and further publishes drop for this
	// subscriber without blocking the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize*2; i++ {
			_ = h.Publish(context.Background(), "room", Event{Type: EventChatMessage})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
	assert.Len(t, sub.C, defaultQueueSize)
}
