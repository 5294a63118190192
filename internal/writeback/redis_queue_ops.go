package writeback

import (
	"context"
)

// RedisQueueOperations extends KVStore with the Redis list operations the
// list-backed change queue needs. The Redis KV store implements it.
type RedisQueueOperations interface {
	// ListPush adds a value to the end of a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element from a list (LPOP).
	// Returns nil if the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}
