package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	x402 "github.com/x402-foundation/x402-entitlements"
)

const (
	// DefaultRedisPrefix namespaces settle keys in Redis.
	DefaultRedisPrefix = "x402:settle:"

	defaultLockTTL      = time.Minute
	defaultPollInterval = 100 * time.Millisecond
)

// releaseLock deletes the lock only while it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares settle deduplication between server instances. The
// settled response lives under prefix+key and the lease under prefix+key+":lock".
type RedisStore struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithRedisPrefix overrides DefaultRedisPrefix
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLockTTL bounds how long a crashed holder can block a key
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithPollInterval sets how often a waiting caller re-checks a held key
func WithPollInterval(interval time.Duration) RedisOption {
	return func(s *RedisStore) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// NewRedisStore keeps settled responses in Redis for ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:       client,
		prefix:       DefaultRedisPrefix,
		ttl:          ttl,
		lockTTL:      defaultLockTTL,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Acquire(ctx context.Context, key string) (*x402.SettleResponse, Lease, error) {
	resultKey := s.prefix + key
	lockKey := resultKey + ":lock"
	token := uuid.NewString()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		response, err := s.cached(ctx, resultKey)
		if err != nil || response != nil {
			return response, nil, err
		}

		acquired, err := s.client.SetNX(ctx, lockKey, token, s.lockTTL).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("lock settle key: %w", err)
		}
		if acquired {
			lease := &redisLease{store: s, resultKey: resultKey, lockKey: lockKey, token: token}
			// the previous holder may have completed between the read and the lock
			response, err := s.cached(ctx, resultKey)
			if err != nil || response != nil {
				lease.Release(ctx)
				return response, nil, err
			}
			return nil, lease, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (s *RedisStore) cached(ctx context.Context, resultKey string) (*x402.SettleResponse, error) {
	data, err := s.client.Get(ctx, resultKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settle key: %w", err)
	}
	var response x402.SettleResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("decode settle response: %w", err)
	}
	return &response, nil
}

type redisLease struct {
	store     *RedisStore
	resultKey string
	lockKey   string
	token     string
}

func (l *redisLease) Complete(ctx context.Context, response *x402.SettleResponse) error {
	defer l.Release(ctx)

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode settle response: %w", err)
	}
	if err := l.store.client.Set(ctx, l.resultKey, data, l.store.ttl).Err(); err != nil {
		return fmt.Errorf("cache settle response: %w", err)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) {
	_ = releaseLock.Run(ctx, l.store.client, []string{l.lockKey}, l.token).Err()
}

var _ SettlementStore = (*RedisStore)(nil)
