package changer

import "sync"

// Scheduler defers work to a later tick.
type Scheduler interface {
	Defer(fn func())
}

// Queue is a Scheduler that runs deferred work when Flush is called. Work
// deferred while a flush is running waits for the next flush.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Defer queues fn for the next Flush.
func (q *Queue) Defer(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Len returns the number of queued functions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush runs the queued functions in order and returns how many ran.
func (q *Queue) Flush() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}
