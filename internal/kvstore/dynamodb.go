package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
)

// maxBatchWriteItems is the DynamoDB BatchWriteItem request limit.
const maxBatchWriteItems = 25

// dynamoAPI is the subset of *dynamodb.Client the store calls.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoDBKVStore implements the core.KVStore interface using AWS DynamoDB.
// Items use a string "key" hash key, a binary "value" and an optional
// numeric "ttl" in unix seconds.
type DynamoDBKVStore struct {
	client    dynamoAPI
	tableName string
	logger    *zap.Logger
	now       func() time.Time
	closed    atomic.Bool
}

// NewDynamoDBKVStore loads AWS config, applies the static credentials and
// endpoint override when set, and checks that the table exists.
func NewDynamoDBKVStore(cfg Config, logger *zap.Logger) (*DynamoDBKVStore, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	return newDynamoDBKVStore(client, cfg.TableName, logger), nil
}

func newDynamoDBKVStore(client dynamoAPI, tableName string, logger *zap.Logger) *DynamoDBKVStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoDBKVStore{
		client:    client,
		tableName: tableName,
		logger:    logger.With(zap.String("kvstore", "dynamodb"), zap.String("table", tableName)),
		now:       time.Now,
	}
}

func (d *DynamoDBKVStore) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

// expired reports whether the item carries a ttl in the past. DynamoDB
// deletes expired items lazily, so reads check it themselves.
func (d *DynamoDBKVStore) expired(item map[string]types.AttributeValue) bool {
	attr, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return false
	}
	return d.now().Unix() > ttl
}

func (d *DynamoDBKVStore) item(key string, value []byte, ttl time.Duration) map[string]types.AttributeValue {
	now := d.now()
	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: value},
		"created_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)}
	}
	return item
}

// Get retrieves a value by key from the store.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		d.logger.Error("get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	if result.Item == nil || d.expired(result.Item) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	valueAttr, ok := result.Item["value"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	valueMember, ok := valueAttr.(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("invalid value format for key %s", key)
	}
	return valueMember.Value, nil
}

// Set stores a key-value pair with an optional TTL.
func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed.Load() {
		return ErrClosed
	}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      d.item(key, value, ttl),
	})
	if err != nil {
		d.logger.Error("set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	d.logger.Debug("set", zap.String("key", key), zap.Int("bytes", len(value)), zap.Duration("ttl", ttl))
	return nil
}

// Exists checks if a key exists and has not expired.
func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed.Load() {
		return false, ErrClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.tableName),
		Key:                  d.keyAttr(key),
		ProjectionExpression: aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#t": "ttl",
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	if result.Item == nil {
		return false, nil
	}
	return !d.expired(result.Item), nil
}

// BatchSet stores multiple key-value pairs, chunked to the BatchWriteItem
// limit. Unprocessed items are reported as an error.
func (d *DynamoDBKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if len(items) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for key, value := range items {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: d.item(key, value, ttl)},
		})
	}

	for start := 0; start < len(requests); start += maxBatchWriteItems {
		end := min(start+maxBatchWriteItems, len(requests))
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				d.tableName: requests[start:end],
			},
		})
		if err != nil {
			return fmt.Errorf("failed to batch write items: %w", err)
		}
		if out != nil && len(out.UnprocessedItems[d.tableName]) > 0 {
			return fmt.Errorf("batch write left %d unprocessed items", len(out.UnprocessedItems[d.tableName]))
		}
	}

	d.logger.Debug("batch set", zap.Int("items", len(items)))
	return nil
}

// Close marks the store closed. The SDK client holds no connections to release.
func (d *DynamoDBKVStore) Close() error {
	d.closed.Store(true)
	return nil
}

// DynamoDBKVStoreFactory creates DynamoDB KV stores.
type DynamoDBKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBKVStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBKVStoreFactory) Validate(config Config) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	if config.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if (config.AccessKeyID == "") != (config.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// Create creates a new DynamoDB KV store instance based on the provided configuration.
func (f *DynamoDBKVStoreFactory) Create(config Config, logger *zap.Logger) (core.KVStore, error) {
	store, err := NewDynamoDBKVStore(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return store, nil
}

func init() {
	RegisterFactory(&DynamoDBKVStoreFactory{})
}
