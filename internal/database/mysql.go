package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// mysqlDSN builds the DSN from the discrete fields unless cfg.DSN is set.
func mysqlDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.connectTimeout()
	return mc.FormatDSN()
}

// OpenMySQL opens a MySQL change log.
func OpenMySQL(_ context.Context, cfg Config, logger *zap.Logger) (*SQLChangeLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := configurePool(db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("mysql change log connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))

	return newSQLChangeLog(db, mysqlDialect, cfg.table(), logger), nil
}
