package kvstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisteredTypes(t *testing.T) {
	assert.Equal(t, []string{"dynamodb", "redis"}, GetRegisteredTypes())
	assert.True(t, IsTypeRegistered("redis"))
	assert.False(t, IsTypeRegistered("memcached"))
}

func TestRegisterFactoryPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() { RegisterFactory(&RedisKVStoreFactory{}) })
	assert.Panics(t, func() { RegisterFactory(nil) })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "default redis is valid", mutate: func(c *Config) {}},
		{name: "missing type", mutate: func(c *Config) { c.Type = "" }, wantErr: "type is required"},
		{name: "unknown type", mutate: func(c *Config) { c.Type = "etcd" }, wantErr: "unsupported KV store type"},
		{name: "no endpoints", mutate: func(c *Config) { c.Endpoints = nil }, wantErr: "endpoint"},
		{name: "db out of range", mutate: func(c *Config) { c.DB = 16 }, wantErr: "between 0 and 15"},
		{name: "zero pool", mutate: func(c *Config) { c.PoolSize = 0 }, wantErr: "pool_size"},
		{name: "zero read timeout", mutate: func(c *Config) { c.ReadTimeout = 0 }, wantErr: "read_timeout"},
		{name: "dynamodb valid", mutate: func(c *Config) { c.Type = "dynamodb" }},
		{name: "dynamodb no table", mutate: func(c *Config) { c.Type = "dynamodb"; c.TableName = "" }, wantErr: "table_name"},
		{name: "dynamodb half credentials", mutate: func(c *Config) { c.Type = "dynamodb"; c.AccessKeyID = "AK" }, wantErr: "together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCreateRejectsInvalidConfigWithoutDialing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolSize = -1
	_, err := Create(cfg, nil)
	assert.Error(t, err)
}

type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	batches int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(attrs map[string]types.AttributeValue) string {
	return attrs["key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	for _, reqs := range in.RequestItems {
		if len(reqs) > maxBatchWriteItems {
			return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("too many items")}
		}
		for _, r := range reqs {
			f.items[keyOf(r.PutRequest.Item)] = r.PutRequest.Item
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func TestDynamoDBStoreOperations(t *testing.T) {
	fake := newFakeDynamo()
	store := newDynamoDBKVStore(fake, "changes", zap.NewNop())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users:5", []byte(`{"role":"admin"}`), time.Minute))
	got, err := store.Get(ctx, "users:5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(got))

	ok, err := store.Exists(ctx, "users:5")
	require.NoError(t, err)
	assert.True(t, ok)

	// Past the ttl the item reads as missing even though it is still stored.
	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "users:5")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	ok, err = store.Exists(ctx, "users:5")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Set(ctx, "k", nil, 0), ErrClosed)
	_, err = store.Get(ctx, "users:5")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDynamoDBBatchSetChunks(t *testing.T) {
	fake := newFakeDynamo()
	store := newDynamoDBKVStore(fake, "changes", nil)

	items := make(map[string][]byte, 60)
	for i := range 60 {
		items[time.Duration(i).String()] = []byte("v")
	}
	require.NoError(t, store.BatchSet(context.Background(), items, 0))
	assert.Equal(t, 3, fake.batches)
	assert.Len(t, fake.items, 60)
}
