package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// PostgresChangeLog writes change events through a pgx pool. Values are
// stored as JSONB.
type PostgresChangeLog struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
	closed bool
}

func postgresDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	q := u.Query()
	q.Set("connect_timeout", strconv.Itoa(int(cfg.connectTimeout()/time.Second)))
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenPostgres creates the pool and pings the server.
func OpenPostgres(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresChangeLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("postgres change log connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database))

	return NewPostgresChangeLog(pool, cfg.table(), logger), nil
}

// NewPostgresChangeLog wraps an existing pool.
func NewPostgresChangeLog(pool *pgxpool.Pool, table string, logger *zap.Logger) *PostgresChangeLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = DefaultTable
	}
	return &PostgresChangeLog{
		pool:   pool,
		table:  table,
		logger: logger.With(zap.String("sink", DriverPostgres), zap.String("table", table)),
	}
}

// Name returns the driver name.
func (p *PostgresChangeLog) Name() string {
	return DriverPostgres
}

// Migrate creates the change table and its record index.
func (p *PostgresChangeLog) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    event_id TEXT PRIMARY KEY,
    dataset TEXT NOT NULL,
    record_id BIGINT NOT NULL,
    field TEXT NOT NULL,
    old_value JSONB,
    new_value JSONB,
    changed_at TIMESTAMPTZ NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_record ON %[1]s (dataset, record_id, changed_at DESC);
`, p.table)

	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", p.table, err)
	}
	return nil
}

// Deliver inserts the event, ignoring duplicates.
func (p *PostgresChangeLog) Deliver(ctx context.Context, event *core.ChangeEvent) error {
	if p.closed {
		return fmt.Errorf("database is closed")
	}

	oldValue, newValue, err := encodeValues(event)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (event_id, dataset, record_id, field, old_value, new_value, changed_at, retry_count)
VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8)
ON CONFLICT (event_id) DO NOTHING;
`, p.table)

	tag, err := p.pool.Exec(ctx, query,
		event.ID, event.Dataset, event.RecordID, event.Field,
		nullText(oldValue.String, oldValue.Valid), nullText(newValue.String, newValue.Valid),
		pgtype.Timestamptz{Time: event.At.UTC(), Valid: true}, event.RetryCount)
	if err != nil {
		p.logger.Error("insert failed", zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("failed to insert change %s: %w", event.ID, err)
	}
	if tag.RowsAffected() == 0 {
		p.logger.Debug("change already recorded", zap.String("event_id", event.ID))
	}
	return nil
}

// History returns the changes of one record, newest first.
func (p *PostgresChangeLog) History(ctx context.Context, dataset string, recordID int64, limit int) ([]core.ChangeEvent, error) {
	if p.closed {
		return nil, fmt.Errorf("database is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
SELECT event_id, dataset, record_id, field, old_value::text, new_value::text, changed_at, retry_count
FROM %s
WHERE dataset = $1 AND record_id = $2
ORDER BY changed_at DESC, event_id DESC
LIMIT $3;
`, p.table)

	rows, err := p.pool.Query(ctx, query, dataset, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []core.ChangeEvent
	for rows.Next() {
		var (
			event              core.ChangeEvent
			oldValue, newValue pgtype.Text
			changedAt          pgtype.Timestamptz
		)
		if err := rows.Scan(&event.ID, &event.Dataset, &event.RecordID, &event.Field,
			&oldValue, &newValue, &changedAt, &event.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		if event.OldValue, err = decodeText(oldValue); err != nil {
			return nil, err
		}
		if event.NewValue, err = decodeText(newValue); err != nil {
			return nil, err
		}
		event.At = changedAt.Time.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}
	return events, nil
}

// Close closes the pool.
func (p *PostgresChangeLog) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.pool.Close()
	return nil
}

func nullText(s string, valid bool) pgtype.Text {
	return pgtype.Text{String: s, Valid: valid}
}

func decodeText(t pgtype.Text) (any, error) {
	if !t.Valid {
		return nil, nil
	}
	return decodeValue(sql.NullString{String: t.String, Valid: true})
}
