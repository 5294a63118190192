package gridconsole

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/gridconsole/internal/api"
	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/database"
	"github.com/rzpsarthak13/gridconsole/internal/journal"
	"github.com/rzpsarthak13/gridconsole/internal/kvstore"
	"github.com/rzpsarthak13/gridconsole/internal/logging"
	"github.com/rzpsarthak13/gridconsole/internal/telemetry"
	"github.com/rzpsarthak13/gridconsole/internal/writeback"
)

// Sink names accepted in JournalConfig.Sinks.
const (
	SinkLog      = "log"
	SinkKV       = "kv"
	SinkDatabase = "database"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRIDCONSOLE_"

// Config is the root configuration of gridconsole.
type Config struct {
	// Server configures the HTTP API.
	Server api.ServerConfig `yaml:"server" json:"server"`

	// Store configures the in-memory record store.
	Store StoreConfig `yaml:"store" json:"store"`

	// Journal configures the change journal: queue, sinks and drainer.
	Journal JournalConfig `yaml:"journal" json:"journal"`

	// KVStore backs the kv sink and the redis queue.
	KVStore kvstore.Config `yaml:"kvstore" json:"kvstore"`

	// Database backs the database sink.
	Database database.Config `yaml:"database" json:"database"`

	// Kafka configures the kafka queue.
	Kafka writeback.KafkaQueueConfig `yaml:"kafka" json:"kafka"`

	// Telemetry configures metrics export.
	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry"`

	// Logging configures the zap logger.
	Logging logging.Config `yaml:"logging" json:"logging"`

	// Client configures the terminal front end.
	Client ClientConfig `yaml:"client" json:"client"`
}

// StoreConfig configures the record store.
type StoreConfig struct {
	// SeedSize is the number of demo users created at startup.
	SeedSize int `yaml:"seed_size" json:"seed_size"`
}

// JournalConfig configures change journaling.
type JournalConfig struct {
	// Enabled turns journaling on. Writes succeed either way.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Queue is memory, redis or kafka.
	Queue string `yaml:"queue" json:"queue"`

	// BufferSize bounds the memory queue.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// RedisKey is the list key of the redis queue.
	RedisKey string `yaml:"redis_key" json:"redis_key"`

	// Sinks lists where drained events go: log, kv, database.
	Sinks []string `yaml:"sinks" json:"sinks"`

	// KeyPrefix prefixes kv sink keys.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// KVTTL expires kv sink entries. Zero keeps them.
	KVTTL time.Duration `yaml:"kv_ttl" json:"kv_ttl"`

	// Drainer controls delivery rate and retries.
	Drainer journal.DrainerConfig `yaml:"drainer" json:"drainer"`
}

// ClientConfig configures the terminal front end.
type ClientConfig struct {
	// BaseURL is the server the browse command talks to.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// PageSize is the initial page size, one of 10, 20, 50, 100.
	PageSize int `yaml:"page_size" json:"page_size"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// LogFile receives logs while the grid owns the terminal. Empty discards them.
	LogFile string `yaml:"log_file" json:"log_file"`
}

// DefaultConfig returns a configuration with sensible defaults: the seeded
// store behind the HTTP API and journaling to the log only.
func DefaultConfig() *Config {
	queue := writeback.DefaultConfig()
	return &Config{
		Server: api.DefaultServerConfig(),
		Store:  StoreConfig{SeedSize: 250},
		Journal: JournalConfig{
			Enabled:    true,
			Queue:      writeback.TypeMemory,
			BufferSize: queue.BufferSize,
			RedisKey:   queue.RedisKey,
			Sinks:      []string{SinkLog},
			KeyPrefix:  journal.DefaultKeyPrefix,
			KVTTL:      24 * time.Hour,
			Drainer:    journal.DefaultDrainerConfig(),
		},
		KVStore:   kvstore.DefaultConfig(),
		Database:  database.DefaultConfig(),
		Kafka:     writeback.DefaultKafkaQueueConfig(),
		Telemetry: telemetry.Config{ServiceName: "gridconsole", Interval: 15 * time.Second},
		Logging:   logging.DefaultConfig(),
		Client: ClientConfig{
			BaseURL:  "http://localhost:8080",
			PageSize: core.DefaultPageSize,
			Timeout:  10 * time.Second,
		},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides and
// validates the result. An empty path uses the defaults. The format follows
// the extension (.yaml, .yml or .json).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse JSON config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GRIDCONSOLE_<SECTION>_<KEY> variables, e.g.
//
//	GRIDCONSOLE_SERVER_ADDR=:9090
//	GRIDCONSOLE_JOURNAL_SINKS=log,database
//	GRIDCONSOLE_KVSTORE_ENDPOINTS=redis-1:6379,redis-2:6379
//	GRIDCONSOLE_DATABASE_DRIVER=postgres
func (c *Config) ApplyEnv() error {
	e := envReader{}

	e.Text("SERVER_ADDR", &c.Server.Addr)
	e.List("SERVER_ALLOW_ORIGINS", &c.Server.AllowOrigins)

	e.Int("STORE_SEED_SIZE", &c.Store.SeedSize)

	e.Bool("JOURNAL_ENABLED", &c.Journal.Enabled)
	e.Text("JOURNAL_QUEUE", &c.Journal.Queue)
	e.Int("JOURNAL_BUFFER_SIZE", &c.Journal.BufferSize)
	e.Text("JOURNAL_REDIS_KEY", &c.Journal.RedisKey)
	e.List("JOURNAL_SINKS", &c.Journal.Sinks)
	e.Text("JOURNAL_KEY_PREFIX", &c.Journal.KeyPrefix)
	e.Duration("JOURNAL_KV_TTL", &c.Journal.KVTTL)
	e.Int("JOURNAL_DRAIN_RATE", &c.Journal.Drainer.DrainRate)
	e.Int("JOURNAL_BATCH_SIZE", &c.Journal.Drainer.BatchSize)
	e.Int("JOURNAL_MAX_RETRIES", &c.Journal.Drainer.MaxRetries)

	e.Text("KVSTORE_TYPE", &c.KVStore.Type)
	e.List("KVSTORE_ENDPOINTS", &c.KVStore.Endpoints)
	e.Text("KVSTORE_PASSWORD", &c.KVStore.Password)
	e.Int("KVSTORE_DB", &c.KVStore.DB)
	e.Int("KVSTORE_POOL_SIZE", &c.KVStore.PoolSize)
	e.Text("KVSTORE_REGION", &c.KVStore.Region)
	e.Text("KVSTORE_TABLE_NAME", &c.KVStore.TableName)
	e.Text("KVSTORE_ENDPOINT", &c.KVStore.Endpoint)

	e.Text("DATABASE_DRIVER", &c.Database.Driver)
	e.Text("DATABASE_DSN", &c.Database.DSN)
	e.Text("DATABASE_HOST", &c.Database.Host)
	e.Int("DATABASE_PORT", &c.Database.Port)
	e.Text("DATABASE_DATABASE", &c.Database.Database)
	e.Text("DATABASE_USERNAME", &c.Database.Username)
	e.Text("DATABASE_PASSWORD", &c.Database.Password)
	e.Text("DATABASE_PATH", &c.Database.Path)
	e.Text("DATABASE_TABLE", &c.Database.Table)

	e.List("KAFKA_BROKERS", &c.Kafka.Brokers)
	e.Text("KAFKA_TOPIC", &c.Kafka.Topic)
	e.Text("KAFKA_GROUP_ID", &c.Kafka.GroupID)

	e.Text("TELEMETRY_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	e.Text("TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)

	e.Text("LOGGING_LEVEL", &c.Logging.Level)
	e.Text("LOGGING_ENCODING", &c.Logging.Encoding)

	e.Text("CLIENT_BASE_URL", &c.Client.BaseURL)
	e.Int("CLIENT_PAGE_SIZE", &c.Client.PageSize)
	e.Duration("CLIENT_TIMEOUT", &c.Client.Timeout)
	e.Text("CLIENT_LOG_FILE", &c.Client.LogFile)

	return e.err
}

// envReader applies variables and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(val) == "" {
		return "", false
	}
	return strings.TrimSpace(val), true
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
}

func (e *envReader) Text(key string, dst *string) {
	if val, ok := e.lookup(key); ok {
		*dst = val
	}
}

func (e *envReader) List(key string, dst *[]string) {
	val, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) Int(key string, dst *int) {
	val, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) Bool(key string, dst *bool) {
	val, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) Duration(key string, dst *time.Duration) {
	val, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

// Validate checks the configuration. Backends are only validated when a
// journal component uses them.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Store.SeedSize < 0 {
		return fmt.Errorf("store.seed_size must be non-negative")
	}
	if !slices.Contains(core.PageSizes, c.Client.PageSize) {
		return fmt.Errorf("client.page_size must be one of %v", core.PageSizes)
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must be non-negative")
	}

	if !c.Journal.Enabled {
		return nil
	}
	return c.validateJournal()
}

func (c *Config) validateJournal() error {
	j := c.Journal

	switch j.Queue {
	case "", writeback.TypeMemory:
		if j.BufferSize < 0 {
			return fmt.Errorf("journal.buffer_size must be non-negative")
		}
	case writeback.TypeRedis:
		if c.KVStore.Type != "redis" {
			return fmt.Errorf("journal.queue 'redis' requires kvstore.type 'redis'")
		}
		if j.RedisKey == "" {
			return fmt.Errorf("journal.redis_key is required when journal.queue is 'redis'")
		}
	case writeback.TypeKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when journal.queue is 'kafka'")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when journal.queue is 'kafka'")
		}
	default:
		return fmt.Errorf("journal.queue must be 'memory', 'redis', or 'kafka'")
	}

	if len(j.Sinks) == 0 {
		return fmt.Errorf("journal.sinks requires at least one sink")
	}
	seen := make(map[string]bool, len(j.Sinks))
	for _, name := range j.Sinks {
		if seen[name] {
			return fmt.Errorf("journal.sinks lists %q twice", name)
		}
		seen[name] = true

		switch name {
		case SinkLog:
		case SinkKV:
			if err := kvstore.Validate(c.KVStore); err != nil {
				return fmt.Errorf("kvstore validation failed: %w", err)
			}
		case SinkDatabase:
			if err := c.Database.Validate(); err != nil {
				return fmt.Errorf("database validation failed: %w", err)
			}
		default:
			return fmt.Errorf("unknown journal sink %q (supported: log, kv, database)", name)
		}
	}
	if j.Queue == writeback.TypeRedis && !seen[SinkKV] {
		if err := kvstore.Validate(c.KVStore); err != nil {
			return fmt.Errorf("kvstore validation failed: %w", err)
		}
	}

	d := j.Drainer
	if d.DrainRate <= 0 {
		return fmt.Errorf("journal.drainer.drain_rate must be greater than 0")
	}
	if d.BatchSize <= 0 {
		return fmt.Errorf("journal.drainer.batch_size must be greater than 0")
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("journal.drainer.max_retries must be non-negative")
	}
	if j.KVTTL < 0 {
		return fmt.Errorf("journal.kv_ttl must be non-negative")
	}
	return nil
}

// queueConfig assembles the writeback queue configuration.
func (c *Config) queueConfig() writeback.Config {
	return writeback.Config{
		Type:       c.Journal.Queue,
		BufferSize: c.Journal.BufferSize,
		RedisKey:   c.Journal.RedisKey,
		Kafka:      c.Kafka,
	}
}

// needsKVStore reports whether any journal component uses the kvstore.
func (c *Config) needsKVStore() bool {
	return c.Journal.Enabled &&
		(c.Journal.Queue == writeback.TypeRedis || slices.Contains(c.Journal.Sinks, SinkKV))
}
