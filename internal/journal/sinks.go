package journal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// LogSink writes every event to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("journal")}
}

// Name returns "log".
func (s *LogSink) Name() string { return "log" }

// Deliver logs the event.
func (s *LogSink) Deliver(_ context.Context, event *core.ChangeEvent) error {
	s.logger.Info("cell changed",
		zap.String("event_id", event.ID),
		zap.String("dataset", event.Dataset),
		zap.Int64("record_id", event.RecordID),
		zap.String("field", event.Field),
		zap.Any("old_value", event.OldValue),
		zap.Any("new_value", event.NewValue),
		zap.Time("at", event.At),
		zap.Int("retry_count", event.RetryCount))
	return nil
}

// Close is a no-op; the logger is owned by the caller.
func (s *LogSink) Close() error { return nil }

// KVSink stores every event in a key-value store under the translator's key.
type KVSink struct {
	store      core.KVStore
	translator *Translator
	ttl        time.Duration
	name       string
}

// NewKVSink creates a sink over store. A zero ttl keeps events forever.
func NewKVSink(name string, store core.KVStore, translator *Translator, ttl time.Duration) *KVSink {
	if translator == nil {
		translator = NewTranslator("")
	}
	if name == "" {
		name = "kv"
	}
	return &KVSink{store: store, translator: translator, ttl: ttl, name: name}
}

// Name returns the configured sink name.
func (s *KVSink) Name() string { return s.name }

// Deliver writes the event under its own key and under the latest key of
// its field. A redelivered event whose key is already stored is skipped so
// it cannot roll the latest key back over a newer change.
func (s *KVSink) Deliver(ctx context.Context, event *core.ChangeEvent) error {
	key, value, err := s.translator.ToKV(event)
	if err != nil {
		return err
	}
	seen, err := s.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("kv sink %s: %w", s.name, err)
	}
	if seen {
		return nil
	}
	items := map[string][]byte{
		key:                           value,
		s.translator.LatestKey(event): value,
	}
	if err := s.store.BatchSet(ctx, items, s.ttl); err != nil {
		return fmt.Errorf("kv sink %s: %w", s.name, err)
	}
	return nil
}

// Latest returns the most recent change of each of fields for one record,
// newest first. Fields that never changed are left out.
func (s *KVSink) Latest(ctx context.Context, dataset string, recordID int64, fields []string) ([]core.ChangeEvent, error) {
	var events []core.ChangeEvent
	for _, field := range fields {
		key := s.translator.LatestKey(&core.ChangeEvent{Dataset: dataset, RecordID: recordID, Field: field})
		value, err := s.store.Get(ctx, key)
		if errors.Is(err, core.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("kv sink %s: %w", s.name, err)
		}
		event, err := s.translator.FromKV(value)
		if err != nil {
			return nil, fmt.Errorf("kv sink %s: key %s: %w", s.name, key, err)
		}
		events = append(events, *event)
	}
	slices.SortFunc(events, func(a, b core.ChangeEvent) int {
		return b.At.Compare(a.At)
	})
	return events, nil
}

// Close closes the underlying store.
func (s *KVSink) Close() error {
	return s.store.Close()
}
