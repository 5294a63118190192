package core

import (
	"context"
	"time"
)

// ChangeEvent records one successful cell write so that it can be exported
// to external sinks after the fact.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Dataset is the name of the dataset that was written.
	Dataset string `json:"dataset"`

	// RecordID is the identifier of the written record.
	RecordID int64 `json:"recordId"`

	// Field is the name of the written field.
	Field string `json:"field"`

	// OldValue is the field value before the write, if it was known.
	OldValue any `json:"oldValue"`

	// NewValue is the value that was stored.
	NewValue any `json:"newValue"`

	// At is when the write was accepted.
	At time.Time `json:"at"`

	// RetryCount tracks how many delivery attempts have failed.
	RetryCount int `json:"retryCount"`
}

// ChangeQueue buffers change events between the write path and the drainer.
type ChangeQueue interface {
	// Enqueue adds an event to the queue.
	// Events are enqueued after the write has been applied to the store.
	Enqueue(ctx context.Context, event *ChangeEvent) error

	// Dequeue retrieves up to batchSize events from the queue.
	// Returns an empty slice if no events are available.
	Dequeue(ctx context.Context, batchSize int) ([]*ChangeEvent, error)

	// Size returns the current number of events in the queue.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}

// ChangeSink receives drained change events.
type ChangeSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Deliver exports a single event. Implementations must be idempotent on
	// the event ID since delivery is retried on failure.
	Deliver(ctx context.Context, event *ChangeEvent) error

	// Close releases the sink's connections.
	Close() error
}
