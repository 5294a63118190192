package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// dialect captures the SQL differences between the database/sql backends.
type dialect struct {
	name          string
	timestampType string
	insertVerb    string
}

var (
	mysqlDialect = dialect{
		name:          DriverMySQL,
		timestampType: "DATETIME(6)",
		insertVerb:    "INSERT IGNORE INTO",
	}
	sqliteDialect = dialect{
		name:          DriverSQLite,
		timestampType: "DATETIME",
		insertVerb:    "INSERT OR IGNORE INTO",
	}
)

func createTableSQL(table, timestampType string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    event_id VARCHAR(64) NOT NULL PRIMARY KEY,
    dataset VARCHAR(128) NOT NULL,
    record_id BIGINT NOT NULL,
    field VARCHAR(128) NOT NULL,
    old_value TEXT,
    new_value TEXT,
    changed_at %s NOT NULL,
    retry_count INT NOT NULL DEFAULT 0
)`, table, timestampType)
}

// SQLChangeLog writes change events to a table through database/sql.
// Delivery is idempotent on the event id so redelivered events are no-ops.
type SQLChangeLog struct {
	db      *sql.DB
	dialect dialect
	table   string
	logger  *zap.Logger
	closed  bool
}

func newSQLChangeLog(db *sql.DB, d dialect, table string, logger *zap.Logger) *SQLChangeLog {
	return &SQLChangeLog{
		db:      db,
		dialect: d,
		table:   table,
		logger:  logger.With(zap.String("sink", d.name), zap.String("table", table)),
	}
}

// configurePool applies the pool settings and pings the database.
func configurePool(db *sql.DB, cfg Config) error {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.connectTimeout())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Name returns the driver name.
func (s *SQLChangeLog) Name() string {
	return s.dialect.name
}

// Migrate creates the change table and its record index.
func (s *SQLChangeLog) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table, s.dialect.timestampType)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	if s.dialect.name == DriverSQLite {
		// MySQL has no CREATE INDEX IF NOT EXISTS; the primary key is enough there.
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_record ON %s (dataset, record_id)", s.table, s.table)
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", s.table, err)
		}
	}
	return nil
}

// Deliver inserts the event.
func (s *SQLChangeLog) Deliver(ctx context.Context, event *core.ChangeEvent) error {
	if s.closed {
		return fmt.Errorf("database is closed")
	}

	oldValue, newValue, err := encodeValues(event)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`%s %s (event_id, dataset, record_id, field, old_value, new_value, changed_at, retry_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.dialect.insertVerb, s.table)

	result, err := s.db.ExecContext(ctx, query,
		event.ID, event.Dataset, event.RecordID, event.Field,
		oldValue, newValue, event.At.UTC(), event.RetryCount)
	if err != nil {
		s.logger.Error("insert failed", zap.String("event_id", event.ID), zap.Error(err))
		return fmt.Errorf("failed to insert change %s: %w", event.ID, err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		s.logger.Debug("change already recorded", zap.String("event_id", event.ID))
	}
	return nil
}

// History returns the changes of one record, newest first.
func (s *SQLChangeLog) History(ctx context.Context, dataset string, recordID int64, limit int) ([]core.ChangeEvent, error) {
	if s.closed {
		return nil, fmt.Errorf("database is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT event_id, dataset, record_id, field, old_value, new_value, changed_at, retry_count
FROM %s WHERE dataset = ? AND record_id = ?
ORDER BY changed_at DESC, event_id DESC LIMIT ?`, s.table)

	rows, err := s.db.QueryContext(ctx, query, dataset, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []core.ChangeEvent
	for rows.Next() {
		var (
			event              core.ChangeEvent
			oldValue, newValue sql.NullString
			changedAt          any
		)
		if err := rows.Scan(&event.ID, &event.Dataset, &event.RecordID, &event.Field,
			&oldValue, &newValue, &changedAt, &event.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		if event.OldValue, err = decodeValue(oldValue); err != nil {
			return nil, err
		}
		if event.NewValue, err = decodeValue(newValue); err != nil {
			return nil, err
		}
		if event.At, err = parseTimestamp(changedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLChangeLog) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func encodeValues(event *core.ChangeEvent) (sql.NullString, sql.NullString, error) {
	oldValue, err := encodeValue(event.OldValue)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode old value: %w", err)
	}
	newValue, err := encodeValue(event.NewValue)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode new value: %w", err)
	}
	return oldValue, newValue, nil
}

// encodeValue stores values as JSON so strings, numbers and booleans keep
// their type across the round trip. nil is stored as NULL.
func encodeValue(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeValue(v sql.NullString) (any, error) {
	if !v.Valid {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return out, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts the time representations the drivers scan into.
func parseTimestamp(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}

	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
