package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/store"
	"github.com/rzpsarthak13/gridconsole/internal/writeback"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:        1000,
		BatchSize:        5,
		PollInterval:     5 * time.Millisecond,
		MaxRetries:       2,
		RetryBackoff:     time.Millisecond,
		MaxRetryInterval: 2 * time.Millisecond,
	}
}

type recordingSink struct {
	name string

	mu       sync.Mutex
	failures int // Remaining attempts to fail.
	attempts int
	events   []core.ChangeEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, event *core.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) delivered() []core.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ChangeEvent(nil), s.events...)
}

func (s *recordingSink) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func enqueue(t *testing.T, q core.ChangeQueue, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), &core.ChangeEvent{
			ID:       id,
			Dataset:  "users",
			RecordID: int64(i + 1),
			Field:    "role",
			NewValue: "admin",
			At:       time.Now(),
		}))
	}
}

func TestDrainerDeliversToEverySink(t *testing.T) {
	q := writeback.NewMemoryQueue(16)
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	d := NewDrainer(q, []core.ChangeSink{first, second}, testConfig(), zap.NewNop(), nil)

	enqueue(t, q, "a", "b", "c")
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.IsRunning())

	require.Eventually(t, func() bool {
		return len(first.delivered()) == 3 && len(second.delivered()) == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())

	got := first.delivered()
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[2].ID)

	stats := d.Stats()
	assert.Equal(t, uint64(3), stats.Delivered)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Pending)
}

func TestDrainerRetriesFailingSink(t *testing.T) {
	q := writeback.NewMemoryQueue(4)
	flaky := &recordingSink{name: "flaky", failures: 2}
	d := NewDrainer(q, []core.ChangeSink{flaky}, testConfig(), nil, nil)

	enqueue(t, q, "a")
	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return len(flaky.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop())

	assert.Equal(t, 3, flaky.attemptCount())
	assert.Equal(t, 2, flaky.delivered()[0].RetryCount)
	assert.Equal(t, uint64(2), d.Stats().Retries)
	assert.Equal(t, uint64(1), d.Stats().Delivered)
}

func TestDrainerGivesUpAfterMaxRetries(t *testing.T) {
	q := writeback.NewMemoryQueue(4)
	broken := &recordingSink{name: "broken", failures: -1}
	healthy := &recordingSink{name: "healthy"}

	obsCore, logs := observer.New(zap.ErrorLevel)
	d := NewDrainer(q, []core.ChangeSink{broken, healthy}, testConfig(), zap.New(obsCore), nil)

	enqueue(t, q, "a", "b")
	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return d.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop())

	assert.Equal(t, 6, broken.attemptCount())
	assert.Len(t, healthy.delivered(), 2)
	assert.Zero(t, d.Stats().Delivered)
	assert.Equal(t, 2, logs.FilterMessage("change event not delivered to every sink").Len())
}

func TestDrainerStopsOnContextCancel(t *testing.T) {
	q := writeback.NewMemoryQueue(4)
	d := NewDrainer(q, []core.ChangeSink{&recordingSink{name: "s"}}, testConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()
	require.NoError(t, d.Stop())
}

func TestDrainerRequiresSinks(t *testing.T) {
	d := NewDrainer(writeback.NewMemoryQueue(1), nil, DrainerConfig{}, nil, nil)
	assert.Error(t, d.Start(context.Background()))
	assert.Equal(t, DefaultDrainerConfig().DrainRate, d.Config().DrainRate)
}

func TestRecorderJournalsStoreWrites(t *testing.T) {
	q := writeback.NewMemoryQueue(8)
	rec := NewRecorder(q, zap.NewNop())
	fixed := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	s, err := store.NewSeeded(10, store.WithObserver(rec))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.WriteCell(ctx, core.Record{"id": int64(4)}, "status", "disabled"))

	// Rejected writes are not journaled.
	assert.Error(t, s.WriteCell(ctx, core.Record{"id": int64(4)}, "status", "archived"))
	assert.Error(t, s.WriteCell(ctx, core.Record{"id": int64(99)}, "status", "active"))

	events, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "users", e.Dataset)
	assert.Equal(t, int64(4), e.RecordID)
	assert.Equal(t, "status", e.Field)
	assert.Equal(t, "invited", e.OldValue)
	assert.Equal(t, "disabled", e.NewValue)
	assert.Equal(t, fixed, e.At)
}

func TestRecorderSwallowsQueueErrors(t *testing.T) {
	q := writeback.NewMemoryQueue(1)
	require.NoError(t, q.Close())

	obsCore, logs := observer.New(zap.WarnLevel)
	rec := NewRecorder(q, zap.New(obsCore))
	rec.CellWritten(context.Background(), "users", 1, "role", "viewer", "admin")

	assert.Equal(t, 1, logs.FilterMessage("failed to journal cell change").Len())
}

type mapKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	closed bool
}

func newMapKV() *mapKV {
	return &mapKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}
	return v, nil
}

func (m *mapKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mapKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *mapKV) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		if err := m.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapKV) Close() error {
	m.closed = true
	return nil
}

func TestKVSinkStoresTranslatedEvents(t *testing.T) {
	kv := newMapKV()
	tr := NewTranslator("grid:")
	sink := NewKVSink("", kv, tr, time.Hour)
	assert.Equal(t, "kv", sink.Name())

	event := &core.ChangeEvent{
		ID:       "evt-1",
		Dataset:  "users",
		RecordID: 12,
		Field:    "name",
		OldValue: "User 12",
		NewValue: "Ada",
		At:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Deliver(context.Background(), event))

	key := "grid:users:12:evt-1"
	assert.Equal(t, tr.Key(event), key)
	assert.Equal(t, time.Hour, kv.ttls[key])

	stored, err := kv.Get(context.Background(), key)
	require.NoError(t, err)
	back, err := tr.FromKV(stored)
	require.NoError(t, err)
	assert.Equal(t, "Ada", back.NewValue)
	assert.Equal(t, "User 12", back.OldValue)
	assert.True(t, event.At.Equal(back.At))

	latest := "grid:users:latest:12:name"
	assert.Equal(t, latest, tr.LatestKey(event))
	assert.Equal(t, stored, kv.data[latest])

	require.NoError(t, sink.Close())
	assert.True(t, kv.closed)
}

func TestKVSinkSkipsRedeliveredEvents(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	sink := NewKVSink("kv", kv, NewTranslator(""), 0)

	first := &core.ChangeEvent{ID: "e1", Dataset: "users", RecordID: 3, Field: "role",
		OldValue: "viewer", NewValue: "editor", At: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	second := &core.ChangeEvent{ID: "e2", Dataset: "users", RecordID: 3, Field: "role",
		OldValue: "editor", NewValue: "admin", At: first.At.Add(time.Minute)}

	require.NoError(t, sink.Deliver(ctx, first))
	require.NoError(t, sink.Deliver(ctx, second))
	// A retried delivery of the older event must not replace the newer latest value.
	require.NoError(t, sink.Deliver(ctx, first))

	events, err := sink.Latest(ctx, "users", 3, []string{"role"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, "admin", events[0].NewValue)
}

func TestKVSinkLatest(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	sink := NewKVSink("kv", kv, NewTranslator("grid"), 0)
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Deliver(ctx, &core.ChangeEvent{ID: "a", Dataset: "users", RecordID: 9, Field: "name", NewValue: "Ada", At: at}))
	require.NoError(t, sink.Deliver(ctx, &core.ChangeEvent{ID: "b", Dataset: "users", RecordID: 9, Field: "status", NewValue: "active", At: at.Add(time.Hour)}))
	require.NoError(t, sink.Deliver(ctx, &core.ChangeEvent{ID: "c", Dataset: "users", RecordID: 10, Field: "name", NewValue: "Bob", At: at}))

	events, err := sink.Latest(ctx, "users", 9, []string{"name", "email", "status"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "status", events[0].Field)
	assert.Equal(t, "name", events[1].Field)

	events, err = sink.Latest(ctx, "users", 11, []string{"name"})
	require.NoError(t, err)
	assert.Empty(t, events)

	kv.data["grid:users:latest:9:email"] = []byte("{")
	_, err = sink.Latest(ctx, "users", 9, []string{"email"})
	assert.Error(t, err)
}

func TestTranslatorRejectsIncompleteEvents(t *testing.T) {
	tr := NewTranslator("")
	_, _, err := tr.ToKV(nil)
	assert.Error(t, err)
	_, _, err = tr.ToKV(&core.ChangeEvent{ID: "x"})
	assert.Error(t, err)
	_, err = tr.FromKV(nil)
	assert.Error(t, err)
	_, err = tr.FromKV([]byte("{"))
	assert.Error(t, err)
}

func TestLogSinkWritesEvent(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(obsCore))
	require.NoError(t, sink.Deliver(context.Background(), &core.ChangeEvent{ID: "e", Dataset: "users", RecordID: 1, Field: "role"}))
	entries := logs.FilterMessage("cell changed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "e", entries[0].ContextMap()["event_id"])
}
