package session

import "sync"

// inbox is the unbounded FIFO feeding the session loop.
//
// Network goroutines and timers enqueue; only Run dequeues. The signal
// channel (buffer 1) lets Run wait on it alongside ctx.Done.
type inbox struct {
	mu     sync.Mutex
	items  []input
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		items:  make([]input, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends in. Returns false once the inbox is closed.
func (q *inbox) Enqueue(in input) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, in)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front input without blocking.
func (q *inbox) TryDequeue() (input, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	in := q.items[0]
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return in, true
}

// Wait signals that inputs may be available. The channel is closed by Close.
func (q *inbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued inputs.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drained reports whether the inbox is closed and empty.
func (q *inbox) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close stops accepting inputs and wakes the waiter.
func (q *inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
