package gridconsole

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/gridconsole/internal/database"
	"github.com/rzpsarthak13/gridconsole/internal/writeback"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 250, cfg.Store.SeedSize)
	assert.Equal(t, []string{SinkLog}, cfg.Journal.Sinks)
	assert.Equal(t, writeback.TypeMemory, cfg.Journal.Queue)
	assert.Equal(t, 20, cfg.Client.PageSize)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "gridconsole.yaml", `
server:
  addr: ":9090"
  shutdown_timeout: 2s
store:
  seed_size: 40
journal:
  enabled: true
  queue: memory
  sinks: [log, database]
  drainer:
    drain_rate: 5
    batch_size: 2
    max_retries: 1
database:
  driver: sqlite
  path: /tmp/changes.db
client:
  page_size: 50
  timeout: 3s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 40, cfg.Store.SeedSize)
	assert.Equal(t, []string{SinkLog, SinkDatabase}, cfg.Journal.Sinks)
	assert.Equal(t, 5, cfg.Journal.Drainer.DrainRate)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/changes.db", cfg.Database.Path)
	assert.Equal(t, 50, cfg.Client.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Client.Timeout)

	// Unset fields keep their defaults.
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeFile(t, "gridconsole.json", `{"store":{"seed_size":10},"journal":{"enabled":false}}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Store.SeedSize)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeFile(t, "gridconsole.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config file format")

	_, err = LoadConfig(writeFile(t, "bad.yaml", "server:\n  addr: [a, b\n"))
	assert.ErrorContains(t, err, "failed to parse YAML config")

	_, err = LoadConfig(writeFile(t, "bad.json", "{"))
	assert.ErrorContains(t, err, "failed to parse JSON config")

	_, err = LoadConfig(writeFile(t, "invalid.yaml", "client:\n  page_size: 15\n"))
	assert.ErrorContains(t, err, "client.page_size")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GRIDCONSOLE_SERVER_ADDR", ":7070")
	t.Setenv("GRIDCONSOLE_STORE_SEED_SIZE", "12")
	t.Setenv("GRIDCONSOLE_JOURNAL_SINKS", "log, kv")
	t.Setenv("GRIDCONSOLE_JOURNAL_ENABLED", "true")
	t.Setenv("GRIDCONSOLE_JOURNAL_KV_TTL", "90m")
	t.Setenv("GRIDCONSOLE_KVSTORE_ENDPOINTS", "redis-1:6379,redis-2:6379")
	t.Setenv("GRIDCONSOLE_DATABASE_DRIVER", "postgres")
	t.Setenv("GRIDCONSOLE_CLIENT_TIMEOUT", "4s")
	t.Setenv("GRIDCONSOLE_LOGGING_LEVEL", "  ")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 12, cfg.Store.SeedSize)
	assert.Equal(t, []string{"log", "kv"}, cfg.Journal.Sinks)
	assert.Equal(t, 90*time.Minute, cfg.Journal.KVTTL)
	assert.Equal(t, []string{"redis-1:6379", "redis-2:6379"}, cfg.KVStore.Endpoints)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 4*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("GRIDCONSOLE_DATABASE_PORT", "abc")
	t.Setenv("GRIDCONSOLE_JOURNAL_ENABLED", "maybe")

	err := DefaultConfig().ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRIDCONSOLE_JOURNAL_ENABLED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative seed", func(c *Config) { c.Store.SeedSize = -1 }, "store.seed_size"},
		{"page size", func(c *Config) { c.Client.PageSize = 25 }, "client.page_size"},
		{"unknown queue", func(c *Config) { c.Journal.Queue = "sqs" }, "journal.queue"},
		{"redis queue needs redis", func(c *Config) {
			c.Journal.Queue = writeback.TypeRedis
			c.KVStore.Type = "dynamodb"
		}, "kvstore.type 'redis'"},
		{"kafka needs brokers", func(c *Config) {
			c.Journal.Queue = writeback.TypeKafka
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"no sinks", func(c *Config) { c.Journal.Sinks = nil }, "at least one sink"},
		{"unknown sink", func(c *Config) { c.Journal.Sinks = []string{"s3"} }, "unknown journal sink"},
		{"duplicate sink", func(c *Config) { c.Journal.Sinks = []string{"log", "log"} }, "twice"},
		{"bad kvstore", func(c *Config) {
			c.Journal.Sinks = []string{SinkKV}
			c.KVStore.PoolSize = 0
		}, "kvstore validation failed"},
		{"bad database", func(c *Config) {
			c.Journal.Sinks = []string{SinkDatabase}
			c.Database.Driver = "oracle"
		}, "database validation failed"},
		{"drain rate", func(c *Config) { c.Journal.Drainer.DrainRate = 0 }, "drain_rate"},
		{"batch size", func(c *Config) { c.Journal.Drainer.BatchSize = 0 }, "batch_size"},
		{"retries", func(c *Config) { c.Journal.Drainer.MaxRetries = -1 }, "max_retries"},
		{"disabled journal skips backends", func(c *Config) {
			c.Journal.Enabled = false
			c.Journal.Sinks = []string{"s3"}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNeedsKVStore(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.needsKVStore())

	cfg.Journal.Sinks = []string{SinkLog, SinkKV}
	assert.True(t, cfg.needsKVStore())

	cfg.Journal.Sinks = []string{SinkLog}
	cfg.Journal.Queue = writeback.TypeRedis
	assert.True(t, cfg.needsKVStore())

	cfg.Journal.Enabled = false
	assert.False(t, cfg.needsKVStore())
}
