package writeback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// ErrKafkaQueueClosed is returned when trying to use a closed Kafka queue.
var ErrKafkaQueueClosed = errors.New("kafka queue is closed")

// messageWriter and messageReader are the parts of kafka.Writer and
// kafka.Reader the queue uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue implements ChangeQueue on a Kafka topic. Change events are
// keyed by dataset and record so edits to one record stay ordered within
// a partition.
type KafkaQueue struct {
	writer      messageWriter
	reader      messageReader
	topic       string
	groupID     string
	readTimeout time.Duration
	logger      *zap.Logger

	mu     sync.RWMutex
	closed bool
	size   int // Approximate; Kafka has no cheap exact depth.
}

// KafkaQueueConfig holds configuration for the Kafka queue.
type KafkaQueueConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	GroupID      string        `yaml:"group_id" json:"group_id"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks int           `yaml:"required_acks" json:"required_acks"` // 0, 1, or -1 (all)
	MinBytes     int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes     int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait      time.Duration `yaml:"max_wait" json:"max_wait"`
}

// DefaultKafkaQueueConfig returns local-broker defaults.
func DefaultKafkaQueueConfig() KafkaQueueConfig {
	return KafkaQueueConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "gridconsole-changes",
		GroupID:      "gridconsole-journal",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  2 * time.Second,
		RequiredAcks: -1,
		MinBytes:     1,
		MaxBytes:     10 * 1024 * 1024,
		MaxWait:      100 * time.Millisecond,
	}
}

// NewKafkaQueue creates a new Kafka-based change queue.
func NewKafkaQueue(config KafkaQueueConfig, logger *zap.Logger) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = DefaultKafkaQueueConfig().GroupID
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	logger.Info("kafka change queue initialized",
		zap.Strings("brokers", config.Brokers),
		zap.String("topic", config.Topic),
		zap.String("group_id", config.GroupID))

	return newKafkaQueue(writer, reader, config, logger), nil
}

func newKafkaQueue(w messageWriter, r messageReader, config KafkaQueueConfig, logger *zap.Logger) *KafkaQueue {
	readTimeout := config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultKafkaQueueConfig().ReadTimeout
	}
	return &KafkaQueue{
		writer:      w,
		reader:      r,
		topic:       config.Topic,
		groupID:     config.GroupID,
		readTimeout: readTimeout,
		logger:      logger,
	}
}

// Enqueue produces the event to the topic.
func (q *KafkaQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrKafkaQueueClosed
	}
	q.mu.RUnlock()

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

	message := kafka.Message{
		Key:   []byte(event.Dataset + ":" + strconv.FormatInt(event.RecordID, 10)),
		Value: data,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "dataset", Value: []byte(event.Dataset)},
			{Key: "field", Value: []byte(event.Field)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		q.logger.Error("failed to produce change event",
			zap.String("topic", q.topic),
			zap.String("event_id", event.ID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	q.logger.Debug("produced change event",
		zap.String("topic", q.topic),
		zap.String("event_id", event.ID),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Dequeue consumes up to batchSize events. Each message offset is committed
// once decoded, so a crash between Dequeue and delivery drops that event.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrKafkaQueueClosed
	}
	q.mu.RUnlock()

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, q.readTimeout)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			q.logger.Warn("failed to read change event",
				zap.String("topic", q.topic), zap.Error(err))
			break
		}

		var event core.ChangeEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			q.logger.Warn("dropping undecodable change event",
				zap.Int("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.Error(err))
		} else {
			events = append(events, &event)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			q.logger.Warn("failed to commit offset",
				zap.Int("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.Error(err))
		}
	}

	if len(events) > 0 {
		q.mu.Lock()
		q.size = max(0, q.size-len(events))
		q.mu.Unlock()
	}

	return events, nil
}

// Size returns an approximate number of events produced by this process
// and not yet consumed.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the writer and the reader.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		q.logger.Error("failed to close kafka writer", zap.Error(err))
	}
	if err := q.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
