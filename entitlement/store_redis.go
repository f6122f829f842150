package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// DefaultRedisPrefix namespaces entitlement keys in Redis.
const DefaultRedisPrefix = "x402:entitlement:"

// RedisStore keeps each record as a JSON string under prefix+key, without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*x402.SettlementRecord, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get entitlement %s: %w", key, err)
	}

	var record x402.SettlementRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, fmt.Errorf("decode entitlement %s: %w", key, err)
	}
	return &record, true, nil
}

// Put replaces the record with a single SET.
func (s *RedisStore) Put(ctx context.Context, key string, record x402.SettlementRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode entitlement %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("put entitlement %s: %w", key, err)
	}
	return nil
}
