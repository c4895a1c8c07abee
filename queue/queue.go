// Package queue provides an unbounded, concurrency-safe FIFO handoff queue
// with blocking receive and non-blocking send.
//
// Each sent value is delivered to exactly one receiver, in send order.
// Receive blocks until a value is available; ReceiveContext does the same
// but gives up when its context is done.
package queue

import (
	"context"
	"sync"
)

// Queue is a generic blocking FIFO. The zero value is not ready for use;
// construct with New.
type Queue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends v to the tail and wakes one waiting receiver. Never blocks.
func (q *Queue[T]) Send(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
}

// Receive removes and returns the head value, blocking until one is
// available. It blocks forever if nothing is ever sent.
func (q *Queue[T]) Receive() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	return q.pop()
}

// ReceiveContext is like Receive but returns ctx.Err() when ctx is done
// before a value becomes available. A queued value always wins over a done
// context.
func (q *Queue[T]) ReceiveContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		return q.pop(), nil
	}

	// Wake every waiter on cancellation; the others go back to sleep.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	for len(q.items) == 0 {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.cond.Wait()
	}
	return q.pop(), nil
}

// TryReceive removes and returns the head value without blocking.
// ok is false when the queue is empty.
func (q *Queue[T]) TryReceive() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return v, false
	}
	return q.pop(), true
}

// Len returns the number of values currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pop must be called with q.mu held and the queue non-empty.
func (q *Queue[T]) pop() T {
	var zero T
	v := q.items[0]
	q.items[0] = zero // release the reference held by the backing array
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v
}
