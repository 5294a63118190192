package writeback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(n int) *core.ChangeEvent {
	return &core.ChangeEvent{
		ID:       fmt.Sprintf("evt-%d", n),
		Dataset:  "users",
		RecordID: int64(n),
		Field:    "role",
		NewValue: "admin",
		At:       time.Date(2025, 1, 1, 0, 0, n, 0, time.UTC),
	}
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, event(i)))
	}
	assert.Equal(t, 3, q.Size())

	got, err := q.Dequeue(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Equal(t, "evt-2", got[1].ID)

	got, err = q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "evt-3", got[0].ID)

	got, err = q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryQueueFullDoesNotBlock(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, event(1)))
	assert.ErrorIs(t, q.Enqueue(ctx, event(2)), ErrMemoryQueueFull)
}

func TestMemoryQueueRejectsInvalidEvents(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	assert.ErrorIs(t, q.Enqueue(ctx, nil), ErrInvalidEvent)
	assert.ErrorIs(t, q.Enqueue(ctx, &core.ChangeEvent{Dataset: "users"}), ErrInvalidEvent)
	assert.ErrorIs(t, q.Enqueue(ctx, &core.ChangeEvent{ID: "x"}), ErrInvalidEvent)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, event(1)))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, event(2)), ErrMemoryQueueClosed)

	// Buffered events survive Close.
	got, err := q.Dequeue(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryQueueConcurrentProducers(t *testing.T) {
	q := NewMemoryQueue(1000)
	ctx := context.Background()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, q.Enqueue(ctx, event(p*100+i)))
			}
		}(p)
	}
	wg.Wait()
	assert.Equal(t, 400, q.Size())
}

type fakeListStore struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	popErr error
}

func newFakeListStore() *fakeListStore {
	return &fakeListStore{lists: map[string][][]byte{}}
}

func (f *fakeListStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("unused") }
func (f *fakeListStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (f *fakeListStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (f *fakeListStore) BatchSet(context.Context, map[string][]byte, time.Duration) error {
	return nil
}
func (f *fakeListStore) Close() error { return nil }

func (f *fakeListStore) ListPush(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], value)
	return nil
}

func (f *fakeListStore) ListPop(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.popErr != nil {
		return nil, f.popErr
	}
	l := f.lists[key]
	if len(l) == 0 {
		return nil, nil
	}
	f.lists[key] = l[1:]
	return l[0], nil
}

func (f *fakeListStore) ListLength(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

// kvOnly exposes only the KVStore methods.
type kvOnly struct{ core.KVStore }

func TestRedisQueueRoundTrip(t *testing.T) {
	store := newFakeListStore()
	q, err := NewRedisQueue(store, "test:changes", nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, event(i)))
	}
	assert.Equal(t, 3, q.Size())

	// Corrupt entries are dropped rather than stalling the queue.
	require.NoError(t, store.ListPush(ctx, "test:changes", []byte("{not json")))
	require.NoError(t, q.Enqueue(ctx, event(4)))

	got, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Equal(t, "evt-4", got[3].ID)
	assert.Equal(t, "admin", got[0].NewValue)
	assert.Equal(t, int64(1), got[0].RecordID)
	assert.Equal(t, 0, q.Size())

	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Enqueue(ctx, event(5)), ErrQueueClosed)
	_, err = q.Dequeue(ctx, 1)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRedisQueueDequeueError(t *testing.T) {
	store := newFakeListStore()
	store.popErr = errors.New("connection reset")
	q, err := NewRedisQueue(store, "", nil)
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background(), 1)
	assert.ErrorContains(t, err, "connection reset")
}

func TestRedisQueueRequiresListOps(t *testing.T) {
	_, err := NewRedisQueue(&kvOnly{}, "x", nil)
	assert.ErrorIs(t, err, ErrRedisOperationsNotSupported)
}

type fakeKafka struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		m.Offset = int64(len(f.messages) + len(f.committed))
		f.messages = append(f.messages, m)
	}
	return nil
}

func (f *fakeKafka) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return kafka.Message{}, context.DeadlineExceeded
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

func (f *fakeKafka) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeKafka) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaQueueRoundTrip(t *testing.T) {
	fk := &fakeKafka{}
	q := newKafkaQueue(fk, fk, DefaultKafkaQueueConfig(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, event(1)))
	require.NoError(t, q.Enqueue(ctx, event(2)))
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, "users:1", string(fk.messages[0].Key))

	got, err := q.Dequeue(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Len(t, fk.committed, 2)
	assert.Equal(t, 0, q.Size())

	require.NoError(t, q.Close())
	assert.True(t, fk.closed)
	assert.ErrorIs(t, q.Enqueue(ctx, event(3)), ErrKafkaQueueClosed)
}

func TestNewSelectsQueueType(t *testing.T) {
	q, err := New(Config{Type: TypeMemory, BufferSize: 2}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)

	q, err = New(Config{Type: TypeRedis, RedisKey: "k"}, newFakeListStore(), nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisQueue{}, q)

	_, err = New(Config{Type: TypeRedis}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Type: "carrier-pigeon"}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Type: TypeKafka, Kafka: KafkaQueueConfig{Topic: "t"}}, nil, nil)
	assert.Error(t, err)
}
