package stream

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of events. Send never blocks; events are delivered
// in order to whoever calls Receive.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

// NewQueue returns an empty Queue with room for size events before it grows.
func NewQueue[T any](size int) *Queue[T] {
	return &Queue[T]{
		items:  make([]T, 0, size),
		notify: make(chan struct{}, 1),
	}
}

// Send appends v to the queue.
func (q *Queue[T]) Send(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Requeue puts v back at the head of the queue, ahead of every pending event.
func (q *Queue[T]) Requeue(v T) {
	q.mu.Lock()
	q.items = append([]T{v}, q.items...)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryReceive pops the oldest event without waiting.
func (q *Queue[T]) TryReceive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Receive waits for the oldest event. It returns false once ctx is done, leaving
// pending events in place.
func (q *Queue[T]) Receive(ctx context.Context) (T, bool) {
	for {
		if ctx.Err() != nil {
			var zero T
			return zero, false
		}
		if v, ok := q.TryReceive(); ok {
			return v, true
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Len returns the number of pending events.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
