package workqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[string]()

	for _, s := range []string{"A", "B", "C"} {
		require.True(t, q.Push(s))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryPop()
	assert.False(t, ok, "pop from empty queue should return false")
}

func TestQueue_PushAfterClose(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Push(2))
	assert.True(t, q.Closed())

	// Items queued before Close remain poppable.
	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestQueue_WaitSignalsPush(t *testing.T) {
	q := New[int]()

	done := make(chan int)
	go func() {
		<-q.Wait()
		v, _ := q.TryPop()
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by push")
	}
}

func TestQueue_CloseWakesWaiter(t *testing.T) {
	q := New[int]()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by close")
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, q.Len())
}
