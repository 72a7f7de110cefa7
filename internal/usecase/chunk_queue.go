package usecase

import (
	"context"
	"sync"

	"calltriage/internal/domain"
)

// chunkQueue is an unbounded FIFO with a single consumer. push never blocks.
type chunkQueue struct {
	mu       sync.Mutex
	items    []domain.AudioChunk
	inFlight bool
	closed   bool

	ready   chan struct{}
	emptied chan struct{}
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{
		ready:   make(chan struct{}, 1),
		emptied: make(chan struct{}, 1),
	}
}

// push appends a chunk and returns the resulting depth. It reports false once
// the queue is closed.
func (q *chunkQueue) push(chunk domain.AudioChunk) (int, bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, false
	}
	q.items = append(q.items, chunk)
	depth := q.depthLocked()
	q.mu.Unlock()

	notify(q.ready)
	return depth, true
}

// pop blocks until a chunk is available, the queue closes or ctx ends. The
// popped chunk counts as in flight until done is called.
func (q *chunkQueue) pop(ctx context.Context) (domain.AudioChunk, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			chunk := q.items[0]
			q.items[0] = domain.AudioChunk{}
			q.items = q.items[1:]
			q.inFlight = true
			q.mu.Unlock()
			return chunk, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return domain.AudioChunk{}, false
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return domain.AudioChunk{}, false
		}
	}
}

// done marks the in-flight chunk as processed.
func (q *chunkQueue) done() {
	q.mu.Lock()
	q.inFlight = false
	drained := len(q.items) == 0
	q.mu.Unlock()

	if drained {
		notify(q.emptied)
	}
}

// pending counts queued chunks plus the one in flight.
func (q *chunkQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

// close rejects further pushes and returns how many chunks were abandoned.
func (q *chunkQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	abandoned := q.depthLocked()
	q.closed = true
	q.items = nil
	q.inFlight = false
	notify(q.ready)
	return abandoned
}

func (q *chunkQueue) depthLocked() int {
	depth := len(q.items)
	if q.inFlight {
		depth++
	}
	return depth
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
