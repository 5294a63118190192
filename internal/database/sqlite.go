package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite change log. An in-memory database is pinned to
// one connection since each connection would otherwise see its own database.
func OpenSQLite(_ context.Context, cfg Config, logger *zap.Logger) (*SQLChangeLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		cfg.ConnMaxIdleTime = 0
	}
	if err := configurePool(db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite change log opened", zap.String("path", dsn))
	return newSQLChangeLog(db, sqliteDialect, cfg.table(), logger), nil
}
