package entitlement

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// Open returns the store selected by rawURL and a func releasing its
// connections. An empty URL or "memory://" gives a MemoryStore.
func Open(ctx context.Context, rawURL string, logger *zap.Logger) (x402.EntitlementStore, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rawURL == "" {
		rawURL = "memory://"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse entitlement store url: %w", err)
	}

	switch u.Scheme {
	case "memory":
		logger.Info("using in-memory entitlement store")
		return NewMemoryStore(), func() {}, nil

	case "postgres", "postgresql":
		poolConfig, err := pgxpool.ParseConfig(rawURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse postgres url: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres entitlement store", zap.String("host", u.Host))
		return store, pool.Close, nil

	case "redis", "rediss":
		// prefix is ours; go-redis rejects unknown options
		query := u.Query()
		prefix := query.Get("prefix")
		query.Del("prefix")
		u.RawQuery = query.Encode()
		opts, err := redis.ParseURL(u.String())
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("using redis entitlement store", zap.String("addr", opts.Addr))
		return NewRedisStore(client, prefix), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported entitlement store scheme %q", u.Scheme)
	}
}
