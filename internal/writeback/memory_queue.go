package writeback

import (
	"context"
	"errors"
	"sync"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

var (
	// ErrMemoryQueueClosed is returned when trying to enqueue to a closed memory queue.
	ErrMemoryQueueClosed = errors.New("memory queue is closed")

	// ErrMemoryQueueFull is returned when the buffer has no free slot.
	// Enqueue never blocks the write path.
	ErrMemoryQueueFull = errors.New("memory queue is full")
)

// MemoryQueue implements ChangeQueue using a buffered channel.
// Events are lost on restart.
type MemoryQueue struct {
	queue  chan *core.ChangeEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a new in-memory change queue.
// bufferSize is the maximum number of events that can be buffered.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &MemoryQueue{
		queue: make(chan *core.ChangeEvent, bufferSize),
	}
}

// Enqueue adds an event to the queue without blocking.
func (q *MemoryQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	// The read lock is held across the send so Close cannot close the
	// channel underneath it.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrMemoryQueueClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrMemoryQueueFull
	}
}

// Dequeue retrieves up to batchSize events in FIFO order.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)

	for i := 0; i < batchSize; i++ {
		select {
		case event, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}

	return events, nil
}

// Size returns the current number of events in the queue.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close closes the queue and prevents further enqueuing.
// Events already buffered can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.queue)
	return nil
}
