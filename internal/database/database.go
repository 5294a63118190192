// Package database persists the cell change journal to SQL databases.
// MySQL and SQLite go through database/sql, PostgreSQL through a pgx pool.
package database

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultTable holds one row per accepted cell write.
const DefaultTable = "cell_changes"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config represents the database configuration for the SQL change log.
type Config struct {
	Driver            string        `yaml:"driver" json:"driver"`
	DSN               string        `yaml:"dsn,omitempty" json:"dsn,omitempty"` // Overrides the discrete fields below.
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	Path              string        `yaml:"path,omitempty" json:"path,omitempty"` // SQLite file or ":memory:"
	Table             string        `yaml:"table" json:"table"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// DefaultConfig returns a file-backed SQLite change log.
func DefaultConfig() Config {
	return Config{
		Driver:            DriverSQLite,
		Host:              "localhost",
		Port:              3306,
		Path:              "gridconsole.db",
		Table:             DefaultTable,
		MaxOpenConns:      10,
		MaxIdleConns:      5,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   10 * time.Minute,
		ConnectionTimeout: 5 * time.Second,
	}
}

// Validate checks the fields the selected driver needs.
func (c Config) Validate() error {
	if c.Table != "" && !identifierPattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	switch c.Driver {
	case DriverSQLite:
		if c.DSN == "" && c.Path == "" {
			return fmt.Errorf("sqlite requires path or dsn")
		}
	case DriverMySQL, DriverPostgres:
		if c.DSN == "" && (c.Host == "" || c.Database == "") {
			return fmt.Errorf("%s requires dsn or host and database", c.Driver)
		}
		if c.DSN == "" && (c.Port <= 0 || c.Port > 65535) {
			return fmt.Errorf("invalid port: %d", c.Port)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Driver)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must be non-negative")
	}
	return nil
}

func (c Config) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectionTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ConnectionTimeout
}

// ChangeLog is a change sink that can also read back the history of a record.
type ChangeLog interface {
	core.ChangeSink

	// Migrate creates the change table if it does not exist.
	Migrate(ctx context.Context) error

	// History returns the changes of one record, newest first.
	History(ctx context.Context, dataset string, recordID int64, limit int) ([]core.ChangeEvent, error)
}

// Open connects to the configured database, migrates the change table and
// returns the change log.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (ChangeLog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		log ChangeLog
		err error
	)
	switch cfg.Driver {
	case DriverMySQL:
		log, err = OpenMySQL(ctx, cfg, logger)
	case DriverSQLite:
		log, err = OpenSQLite(ctx, cfg, logger)
	case DriverPostgres:
		log, err = OpenPostgres(ctx, cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	if err := log.Migrate(ctx); err != nil {
		_ = log.Close()
		return nil, err
	}
	return log, nil
}
