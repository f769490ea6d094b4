package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

func recvOne(t *testing.T, s *Subscriber) types.LogEvent {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "stream closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return types.LogEvent{}
	}
}

func TestPublishOrder(t *testing.T) {
	h := New(16)
	sub, err := h.Subscribe("")
	require.NoError(t, err)
	defer sub.Close()

	h.Publish(types.CreatedEvent(types.LogEntry{ID: 1, SchemaID: "s1"}))
	h.Publish(types.DeletedEvent(1, "s1"))

	first := recvOne(t, sub)
	assert.Equal(t, types.EventCreated, first.Kind)
	assert.Equal(t, int64(1), first.ID)

	second := recvOne(t, sub)
	assert.Equal(t, types.EventDeleted, second.Kind)
	assert.Equal(t, int64(1), second.ID)
}

func TestSchemaFilter(t *testing.T) {
	h := New(16)
	all, err := h.Subscribe("")
	require.NoError(t, err)
	only, err := h.Subscribe("s1")
	require.NoError(t, err)
	defer all.Close()
	defer only.Close()

	h.Publish(types.DeletedEvent(1, "s1"))
	h.Publish(types.DeletedEvent(2, "s2"))
	h.Publish(types.DeletedEvent(3, "s1"))

	assert.Equal(t, int64(1), recvOne(t, all).ID)
	assert.Equal(t, int64(2), recvOne(t, all).ID)
	assert.Equal(t, int64(3), recvOne(t, all).ID)

	assert.Equal(t, int64(1), recvOne(t, only).ID)
	assert.Equal(t, int64(3), recvOne(t, only).ID)
	select {
	case ev := <-only.Events():
		t.Fatalf("unexpected event %+v past the filter", ev)
	default:
	}
}

func TestOverflowDropsOldestAndMarksGap(t *testing.T) {
	h := New(2)
	sub, err := h.Subscribe("")
	require.NoError(t, err)
	defer sub.Close()

	for i := int64(1); i <= 5; i++ {
		h.Publish(types.DeletedEvent(i, "s1"))
	}

	// Three oldest events were evicted.
	assert.Equal(t, 3, sub.TakeDropped())
	assert.Equal(t, 0, sub.TakeDropped(), "counter resets")

	assert.Equal(t, int64(4), recvOne(t, sub).ID)
	assert.Equal(t, int64(5), recvOne(t, sub).ID)
}

func TestPublishNeverBlocks(t *testing.T) {
	h := New(1)
	sub, err := h.Subscribe("")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		// Nobody drains the subscriber; publishing must still complete.
		for i := int64(0); i < 1000; i++ {
			h.Publish(types.DeletedEvent(i, "s1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCloseReleasesSubscription(t *testing.T) {
	h := New(4)
	sub, err := h.Subscribe("")
	require.NoError(t, err)

	sub.Close()
	sub.Close() // idempotent

	assert.Zero(t, h.Subscribers())
	_, ok := <-sub.Events()
	assert.False(t, ok, "stream is closed")

	// Publishing after close is a no-op for this subscriber.
	h.Publish(types.DeletedEvent(1, "s1"))
}

func TestConcurrentPublishAndClose(t *testing.T) {
	h := New(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sub, err := h.Subscribe("")
		require.NoError(t, err)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range sub.Events() {
			}
		}()
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			sub.Close()
		}()
	}
	for i := int64(0); i < 500; i++ {
		h.Publish(types.DeletedEvent(i, "s1"))
	}
	wg.Wait()
	assert.Zero(t, h.Subscribers())
}

func TestHubClose(t *testing.T) {
	h := New(4)
	sub, err := h.Subscribe("")
	require.NoError(t, err)

	h.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)

	_, err = h.Subscribe("")
	assert.ErrorIs(t, err, types.ErrHubClosed)
}
