package queue

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrClosed          = errors.New("queue is closed")
	ErrInvalidCapacity = errors.New("queue capacity must be at least 1")
)

// Queue is a fixed-capacity FIFO with blocking Put and Take.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items  []T
	head   int
	tail   int
	size   int
	closed bool
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	q := &Queue[T]{
		items: make([]T, capacity),
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q, nil
}

// Put appends item at the tail, waiting while the queue is full.
// It only fails once the queue has been closed.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.size == len(q.items) {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	q.items[q.tail] = item
	q.tail = (q.tail + 1) % len(q.items)
	q.size++

	q.notEmpty.Signal()
	return nil
}

// Take removes and returns the head, waiting while the queue is empty.
// After Close it keeps returning buffered items and then ErrClosed.
func (q *Queue[T]) Take() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.size == 0 {
		q.notEmpty.Wait()
	}

	var zero T
	if q.size == 0 {
		return zero, ErrClosed
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--

	q.notFull.Signal()
	return item, nil
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// Close wakes every waiter. Subsequent puts fail with ErrClosed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}
