package display

import (
	"log/slog"
	"sync"
)

// Queue serializes updates from many goroutines onto one sink. Updates are
// applied in the order they were queued.
type Queue struct {
	sink Sink

	mu     sync.RWMutex
	closed bool
	ops    chan func(Sink)
	done   chan struct{}
}

// NewQueue starts the goroutine draining updates into sink.
func NewQueue(sink Sink, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	q := &Queue{
		sink: sink,
		ops:  make(chan func(Sink), size),
		done: make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *Queue) drain() {
	defer close(q.done)
	for op := range q.ops {
		op(q.sink)
	}
}

func (q *Queue) push(op func(Sink)) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		slog.Debug("Display update after close dropped")
		return
	}
	q.ops <- op
}

func (q *Queue) SetTimeText(text string) {
	q.push(func(s Sink) { s.SetTimeText(text) })
}

func (q *Queue) SetControl(control Control, p Presentation) {
	q.push(func(s Sink) { s.SetControl(control, p) })
}

// Flush blocks until every update queued before the call has been applied.
func (q *Queue) Flush() {
	applied := make(chan struct{})
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return
	}
	q.ops <- func(Sink) { close(applied) }
	q.mu.RUnlock()
	<-applied
}

// Close applies pending updates and stops the queue. Later updates are
// dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.mu.Unlock()
	<-q.done
}
