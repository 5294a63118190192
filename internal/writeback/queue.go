// Package writeback provides the change queues that sit between accepted
// cell writes and the journal drainer.
package writeback

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

const (
	// DefaultBufferSize is the capacity of the in-memory queue.
	DefaultBufferSize = 10000

	// DefaultBatchSize is used when Dequeue is called with a non-positive size.
	DefaultBatchSize = 100
)

// Queue types accepted by New.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeKafka  = "kafka"
)

// Config selects and configures a change queue.
type Config struct {
	// Type is one of memory, redis or kafka (default: memory).
	Type string `yaml:"type" json:"type"`

	// BufferSize bounds the memory queue.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// RedisKey is the list key used by the redis queue.
	RedisKey string `yaml:"redis_key" json:"redis_key"`

	// Kafka configures the kafka queue.
	Kafka KafkaQueueConfig `yaml:"kafka" json:"kafka"`
}

// DefaultConfig returns an in-memory queue configuration.
func DefaultConfig() Config {
	return Config{
		Type:       TypeMemory,
		BufferSize: DefaultBufferSize,
		RedisKey:   "gridconsole:changes",
		Kafka:      DefaultKafkaQueueConfig(),
	}
}

// New creates the queue selected by cfg.Type. The redis queue requires kv
// to be a Redis-backed store.
func New(cfg Config, kv core.KVStore, logger *zap.Logger) (core.ChangeQueue, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryQueue(cfg.BufferSize), nil
	case TypeRedis:
		if kv == nil {
			return nil, fmt.Errorf("redis queue requires a kvstore")
		}
		q, err := NewRedisQueue(kv, cfg.RedisKey, logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	case TypeKafka:
		q, err := NewKafkaQueue(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", cfg.Type)
	}
}
