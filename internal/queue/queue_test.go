package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ordergateway/internal/gwerr"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := New(4)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(i))
	}
	for i := 0; i < 4; i++ {
		v, drained := q.Pop()
		require.False(t, drained)
		require.Equal(t, i, v)
	}
}

func TestQueueBoundedPushBlocksUntilRoom(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Push("a"))

	done := make(chan struct{})
	go func() {
		require.NoError(t, q.Push("b"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("push on a full queue should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	v, drained := q.Pop()
	require.False(t, drained)
	require.Equal(t, "a", v)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push should have unblocked once room freed")
	}
}

func TestQueueCloseDrainsThenSignalsDrained(t *testing.T) {
	q := New(4)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	q.Close()

	v, drained := q.Pop()
	require.False(t, drained)
	require.Equal(t, 1, v)

	v, drained = q.Pop()
	require.False(t, drained)
	require.Equal(t, 2, v)

	_, drained = q.Pop()
	require.True(t, drained)

	// Every subsequent waiter also observes drained, not a block.
	_, drained = q.Pop()
	require.True(t, drained)
}

func TestQueuePushOnClosedFails(t *testing.T) {
	q := New(2)
	q.Close()
	err := q.Push("x")
	require.Error(t, err)
	require.True(t, gwerr.Is(err, gwerr.PushOnClosed))
}

func TestQueueCloseWakesBlockedPushers(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Push("full"))

	var wg sync.WaitGroup
	wg.Add(1)
	var pushErr error
	go func() {
		defer wg.Done()
		pushErr = q.Push("blocked")
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	wg.Wait()
	require.Error(t, pushErr)
	require.True(t, gwerr.Is(pushErr, gwerr.PushOnClosed))
}

func TestQueueCloseWakesBlockedPoppers(t *testing.T) {
	q := New(4)

	var wg sync.WaitGroup
	wg.Add(1)
	var drained bool
	go func() {
		defer wg.Done()
		_, drained = q.Pop()
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	wg.Wait()
	require.True(t, drained)
}
