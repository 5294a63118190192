// Package store implements the in-memory record store behind the demo
// tables endpoint.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/errs"
	"github.com/rzpsarthak13/gridconsole/internal/schema"
)

// ErrDuplicateID is returned when two records share an identifier.
var ErrDuplicateID = errors.New("duplicate record id")

// Observer is notified after every successful cell write.
// It runs on the writer's goroutine after the store lock is released.
type Observer interface {
	CellWritten(ctx context.Context, dataset string, id int64, field string, oldValue, newValue any)
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithLogger sets the logger used by the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *RecordStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an observer for successful writes.
func WithObserver(obs Observer) Option {
	return func(s *RecordStore) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

// RecordStore holds a dataset in memory and serves paged, filtered and
// sorted views of it. The collection is built once at construction and
// lives as long as the store.
//
// Concurrent FetchPage calls share a read lock. Writes take the write lock,
// so a write is either fully visible to a fetch or not at all; concurrent
// writes to the same cell resolve as last writer wins.
type RecordStore struct {
	mu        sync.RWMutex
	schema    *core.Schema
	records   []core.Record
	index     map[int64]int
	validator *schema.Validator
	observers []Observer
	logger    *zap.Logger
}

// New creates a store over records. Records are kept in the given order,
// which is the order rows are served in when no sort is requested.
func New(s *core.Schema, records []core.Record, opts ...Option) (*RecordStore, error) {
	if s == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}

	st := &RecordStore{
		schema:    s,
		records:   make([]core.Record, 0, len(records)),
		index:     make(map[int64]int, len(records)),
		validator: schema.NewValidator(s),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(st)
	}

	for i, r := range records {
		id, ok := r.ID()
		if !ok {
			return nil, fmt.Errorf("record %d has no usable %s", i, core.IDField)
		}
		if _, dup := st.index[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		st.index[id] = len(st.records)
		st.records = append(st.records, r.Clone())
	}

	st.logger.Info("record store ready",
		zap.String("dataset", s.Dataset),
		zap.Int("records", len(st.records)))
	return st, nil
}

// NewSeeded creates a store holding count seeded demo users.
func NewSeeded(count int, opts ...Option) (*RecordStore, error) {
	return New(UsersSchema(), SeedUsers(count, nowFunc()), opts...)
}

// FetchPage filters, sorts and paginates the collection.
// A page past the end yields no rows; Total still counts every match.
func (s *RecordStore) FetchPage(ctx context.Context, q core.Query) (core.Page, error) {
	if err := ctx.Err(); err != nil {
		return core.Page{}, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = core.DefaultPageSize
	}
	if q.Sorted() {
		if _, ok := s.schema.Field(q.SortKey); !ok {
			return core.Page{}, errs.Validation(fmt.Sprintf("Unknown sort key %s", q.SortKey), errs.WithField(q.SortKey))
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := Filter(s.records, s.schema.SearchableFields(), q.Filter)
	Sort(matched, q.SortKey, q.SortDir)
	window := Paginate(matched, q.Page, q.PageSize)

	rows := make([]core.Record, len(window))
	for i, r := range window {
		rows[i] = r.Clone()
	}
	return core.Page{Rows: rows, Total: len(matched)}, nil
}

// WriteCell validates and stores a single field value.
func (s *RecordStore) WriteCell(ctx context.Context, row core.Record, key string, value any) error {
	id, ok := row.ID()
	if !ok || id == 0 || key == "" {
		return errs.Validation("Invalid payload")
	}
	_, err := s.Update(ctx, id, key, value)
	return err
}

// Update stores value in field key of record id and returns the previous value.
// An unknown id is reported before the value is validated.
func (s *RecordStore) Update(ctx context.Context, id int64, key string, value any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, errs.NotFound("Row not found", errs.WithField(core.IDField))
	}
	coerced, err := s.validator.ValidateWrite(key, value)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	old := s.records[idx][key]
	s.records[idx][key] = coerced
	s.mu.Unlock()

	s.logger.Debug("cell written",
		zap.String("dataset", s.schema.Dataset),
		zap.Int64("id", id),
		zap.String("field", key),
		zap.Any("value", coerced))

	for _, obs := range s.observers {
		obs.CellWritten(ctx, s.schema.Dataset, id, key, old, coerced)
	}
	return old, nil
}

// Get returns a copy of the record with the given id.
func (s *RecordStore) Get(id int64) (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.records[idx].Clone(), true
}

// Schema returns the dataset schema.
func (s *RecordStore) Schema(context.Context) (*core.Schema, error) {
	return s.schema, nil
}

// Len returns the number of records held.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
