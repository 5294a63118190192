// Package kvstore provides the key-value stores that back the change
// journal: the KV sink stores exported change events and the redis store
// also hosts the list-based change queue.
package kvstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// KVStoreFactory is the Strategy interface for creating KV store implementations.
// Each backend registers one from its init function.
type KVStoreFactory interface {
	// Create creates a new KV store instance based on the provided configuration.
	Create(config Config, logger *zap.Logger) (core.KVStore, error)

	// Type returns the type identifier for this factory (e.g., "redis", "dynamodb").
	Type() string

	// Validate validates the configuration specific to this KV store type.
	Validate(config Config) error
}

// Config represents the configuration needed to create a KV store.
type Config struct {
	Type         string        `yaml:"type" json:"type"`
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`

	// DynamoDB-specific fields
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	TableName       string `yaml:"table_name,omitempty" json:"table_name,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // Optional, for LocalStack
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// DefaultConfig returns a local single-node Redis configuration.
func DefaultConfig() Config {
	return Config{
		Type:         "redis",
		Endpoints:    []string{"localhost:6379"},
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Region:       "us-east-1",
		TableName:    "gridconsole-changes",
	}
}

var (
	// factoryRegistry stores all registered KV store factories.
	factoryRegistry = make(map[string]KVStoreFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a KV store factory.
// Panics on a nil factory, an empty type or a duplicate type.
func RegisterFactory(factory KVStoreFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Validate checks config against the factory registered for config.Type
// without connecting.
func Validate(config Config) error {
	factory, err := lookup(config.Type)
	if err != nil {
		return err
	}
	if err := factory.Validate(config); err != nil {
		return fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return nil
}

// Create creates a KV store instance using the factory registered for config.Type.
func Create(config Config, logger *zap.Logger) (core.KVStore, error) {
	if err := Validate(config); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory, _ := lookup(config.Type)
	return factory.Create(config, logger)
}

func lookup(storeType string) (KVStoreFactory, error) {
	if storeType == "" {
		return nil, fmt.Errorf("kvstore type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[storeType]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported KV store type: %s", storeType)
	}
	return factory, nil
}

// GetRegisteredTypes returns the registered KV store types in sorted order.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a KV store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
