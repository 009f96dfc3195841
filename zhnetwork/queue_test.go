package zhnetwork

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueueFIFOOrdering(t *testing.T) {
	q := NewWorkQueue(4)
	require.NoError(t, q.Enqueue(WorkItem{State: StateToSend, Frame: Frame{MessageID: 1}}))
	require.NoError(t, q.Enqueue(WorkItem{State: StateToSend, Frame: Frame{MessageID: 2}}))

	ctx := context.Background()
	first, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, uint32(1), first.Frame.MessageID)

	second, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, uint32(2), second.Frame.MessageID)
}

func TestWorkQueueFrontInsertPreemptsBack(t *testing.T) {
	q := NewWorkQueue(4)
	require.NoError(t, q.Enqueue(WorkItem{State: StateToSend, Frame: Frame{MessageID: 1}}))
	require.NoError(t, q.EnqueueFront(WorkItem{State: StateOnRecv, Frame: Frame{MessageID: 2}}))

	item, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint32(2), item.Frame.MessageID, "front-inserted item must be served first")
}

func TestWorkQueueFreeSlots(t *testing.T) {
	q := NewWorkQueue(2)
	assert.Equal(t, 2, q.FreeSlots())
	require.NoError(t, q.Enqueue(WorkItem{}))
	assert.Equal(t, 1, q.FreeSlots())
	require.NoError(t, q.Enqueue(WorkItem{}))
	assert.Equal(t, 0, q.FreeSlots())
}

func TestWorkQueueEnqueueTimesOutWhenFull(t *testing.T) {
	q := NewWorkQueue(1)
	require.NoError(t, q.Enqueue(WorkItem{}))

	start := time.Now()
	err := q.Enqueue(WorkItem{})
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.GreaterOrEqual(t, time.Since(start), producerWaitTick)
}

func TestWorkQueueDequeueUnblocksOnContextCancel(t *testing.T) {
	q := NewWorkQueue(4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after context cancellation")
	}
}
