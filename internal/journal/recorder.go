package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// Recorder turns successful store writes into change events on a queue.
// A failed enqueue is logged and never fails the write itself.
type Recorder struct {
	queue  core.ChangeQueue
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder that enqueues onto queue.
func NewRecorder(queue core.ChangeQueue, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{queue: queue, logger: logger, now: time.Now}
}

// CellWritten enqueues a change event for the write.
func (r *Recorder) CellWritten(ctx context.Context, dataset string, id int64, field string, oldValue, newValue any) {
	event := &core.ChangeEvent{
		ID:       uuid.NewString(),
		Dataset:  dataset,
		RecordID: id,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		At:       r.now().UTC(),
	}

	// The request context may be cancelled as soon as the response is sent.
	if err := r.queue.Enqueue(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Warn("failed to journal cell change",
			zap.String("dataset", dataset),
			zap.Int64("record_id", id),
			zap.String("field", field),
			zap.Error(err))
		return
	}

	r.logger.Debug("journaled cell change",
		zap.String("event_id", event.ID),
		zap.Int64("record_id", id),
		zap.String("field", field))
}
