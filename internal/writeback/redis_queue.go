package writeback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

var (
	// ErrQueueClosed is returned when trying to use a closed queue.
	ErrQueueClosed = errors.New("change queue is closed")

	// ErrInvalidEvent is returned when an event is missing required fields.
	ErrInvalidEvent = errors.New("invalid change event")

	// ErrRedisOperationsNotSupported is returned when the KVStore doesn't support Redis list operations.
	ErrRedisOperationsNotSupported = errors.New("KVStore does not support Redis list operations")
)

// RedisQueue implements ChangeQueue on a Redis list, so queued events
// survive a restart of the server.
type RedisQueue struct {
	ops    RedisQueueOperations
	key    string
	closed atomic.Bool
	logger *zap.Logger
}

// NewRedisQueue creates a list-backed change queue.
// prefix namespaces the list key (e.g. "gridconsole:changes").
// kvStore must implement RedisQueueOperations.
func NewRedisQueue(kvStore core.KVStore, prefix string, logger *zap.Logger) (*RedisQueue, error) {
	if prefix == "" {
		prefix = "gridconsole:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ops, ok := kvStore.(RedisQueueOperations)
	if !ok {
		return nil, ErrRedisOperationsNotSupported
	}

	return &RedisQueue{
		ops:    ops,
		key:    prefix,
		logger: logger,
	}, nil
}

// Enqueue serializes the event as JSON and appends it to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := q.ops.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to enqueue change event: %w", err)
	}
	return nil
}

// Dequeue pops up to batchSize events from the head of the list.
// Entries that fail to decode are logged and dropped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		data, err := q.ops.ListPop(ctx, q.key)
		if err != nil {
			if len(events) == 0 {
				return nil, fmt.Errorf("failed to dequeue change event: %w", err)
			}
			break
		}
		if data == nil {
			break
		}

		var event core.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			q.logger.Warn("dropping undecodable change event",
				zap.String("key", q.key), zap.Error(err))
			continue
		}
		events = append(events, &event)
	}

	return events, nil
}

// Size returns the length of the list, or 0 when it cannot be read.
func (q *RedisQueue) Size() int {
	if q.closed.Load() {
		return 0
	}
	length, err := q.ops.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(length)
}

// Close marks the queue closed. The list and the underlying store are left intact.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}

func validateEvent(event *core.ChangeEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if event.Dataset == "" {
		return fmt.Errorf("%w: dataset is required", ErrInvalidEvent)
	}
	return nil
}
