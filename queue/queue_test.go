package queue_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fujiwara/trafficlight/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveBlocksUntilSend(t *testing.T) {
	q := queue.New[string]()
	got := make(chan string, 1)
	go func() {
		got <- q.Receive()
	}()

	select {
	case v := <-got:
		t.Fatalf("receive returned %q before any send", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Send("green")
	select {
	case v := <-got:
		assert.Equal(t, "green", v)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("receive did not wake up after send")
	}
	assert.Equal(t, 0, q.Len())
}

func TestFIFO(t *testing.T) {
	q := queue.New[int]()
	const n = 1000
	go func() {
		for i := 0; i < n; i++ {
			q.Send(i)
		}
	}()
	for i := 0; i < n; i++ {
		require.Equal(t, i, q.Receive())
	}
	assert.Equal(t, 0, q.Len())
}

func TestConcurrentReceiversNoLossNoDuplication(t *testing.T) {
	q := queue.New[int]()
	const (
		producers = 4
		consumers = 8
		perProd   = 250
		total     = producers * perProd
	)

	var mu sync.Mutex
	var received []int
	var wg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				v, err := q.ReceiveContext(ctx)
				cancel()
				if err != nil {
					return
				}
				mu.Lock()
				received = append(received, v)
				mu.Unlock()
			}
		}()
	}
	for p := 0; p < producers; p++ {
		go func(p int) {
			for i := 0; i < perProd; i++ {
				q.Send(p*perProd + i)
			}
		}(p)
	}
	wg.Wait()

	require.Len(t, received, total)
	sort.Ints(received)
	for i, v := range received {
		require.Equal(t, i, v)
	}
}

func TestPerProducerOrder(t *testing.T) {
	q := queue.New[[2]int]()
	const perProd = 500
	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				q.Send([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := map[int]int{0: -1, 1: -1}
	for i := 0; i < 2*perProd; i++ {
		v := q.Receive()
		require.Greater(t, v[1], last[v[0]])
		last[v[0]] = v[1]
	}
}

func TestReceiveContext(t *testing.T) {
	t.Run("deadline exceeded", func(t *testing.T) {
		q := queue.New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := q.ReceiveContext(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
	t.Run("canceled", func(t *testing.T) {
		q := queue.New[int]()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := q.ReceiveContext(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
	t.Run("queued value wins over done context", func(t *testing.T) {
		q := queue.New[int]()
		q.Send(42)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v, err := q.ReceiveContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})
	t.Run("value arrives before deadline", func(t *testing.T) {
		q := queue.New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		go func() {
			time.Sleep(10 * time.Millisecond)
			q.Send(7)
		}()
		v, err := q.ReceiveContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})
	t.Run("timed out receiver does not consume", func(t *testing.T) {
		q := queue.New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := q.ReceiveContext(ctx)
		require.Error(t, err)
		q.Send(1)
		assert.Equal(t, 1, q.Len())
		assert.Equal(t, 1, q.Receive())
	})
}

func TestTryReceive(t *testing.T) {
	q := queue.New[string]()
	_, ok := q.TryReceive()
	assert.False(t, ok)

	q.Send("a")
	q.Send("b")
	assert.Equal(t, 2, q.Len())
	v, ok := q.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = q.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = q.TryReceive()
	assert.False(t, ok)
}

func TestWaitersWokenOnePerSend(t *testing.T) {
	q := queue.New[int]()
	const waiters = 5
	got := make(chan int, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			got <- q.Receive()
		}()
	}
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < waiters; i++ {
		q.Send(i)
	}
	seen := map[int]bool{}
	for i := 0; i < waiters; i++ {
		select {
		case v := <-got:
			assert.False(t, seen[v], "value %d delivered twice", v)
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d waiters woke up", i, waiters)
		}
	}
}
