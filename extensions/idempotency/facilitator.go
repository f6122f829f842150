package idempotency

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// DefaultTTL is how long settled responses are cached by default.
const DefaultTTL = 10 * time.Minute

// IdempotentFacilitator deduplicates Settle calls of the wrapped client.
type IdempotentFacilitator struct {
	inner  x402.FacilitatorClient
	store  SettlementStore
	keyOf  KeyGenerator
	logger *zap.Logger
}

// Option configures Wrap
type Option func(*wrapConfig)

type wrapConfig struct {
	ttl    time.Duration
	store  SettlementStore
	keyOf  KeyGenerator
	logger *zap.Logger
}

// WithTTL sets the lifetime of cached responses in the default MemoryStore.
func WithTTL(ttl time.Duration) Option {
	return func(c *wrapConfig) {
		c.ttl = ttl
	}
}

// WithStore replaces the default MemoryStore, e.g. with a RedisStore shared by
// several instances. WithTTL does not apply to it.
func WithStore(store SettlementStore) Option {
	return func(c *wrapConfig) {
		c.store = store
	}
}

// WithKeyGenerator replaces SettlementKey.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *wrapConfig) {
		if gen != nil {
			c.keyOf = gen
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *wrapConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Wrap returns facilitator with settle deduplication. Without options it uses
// a MemoryStore with DefaultTTL keyed by SettlementKey.
func Wrap(facilitator x402.FacilitatorClient, opts ...Option) *IdempotentFacilitator {
	cfg := wrapConfig{
		ttl:    DefaultTTL,
		keyOf:  SettlementKey,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = NewMemoryStore(cfg.ttl)
	}
	return &IdempotentFacilitator{
		inner:  facilitator,
		store:  cfg.store,
		keyOf:  cfg.keyOf,
		logger: cfg.logger,
	}
}

// Settle answers from the store when the same header already settled and
// otherwise settles through the wrapped client while holding the key.
func (f *IdempotentFacilitator) Settle(ctx context.Context, req x402.FacilitatorRequest) (*x402.SettleResponse, error) {
	key := f.keyOf(req)

	cached, lease, err := f.store.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("x402: settle deduplication: %w", err)
	}
	if cached != nil {
		f.logger.Debug("settle answered from cache", zap.String("key", key), zap.String("tx_hash", cached.TxHash))
		return cached, nil
	}

	response, err := f.inner.Settle(ctx, req)
	done := context.WithoutCancel(ctx)
	if err != nil || !response.Settled() {
		lease.Release(done)
		return response, err
	}
	if err := lease.Complete(done, response); err != nil {
		f.logger.Warn("settled response not cached", zap.String("key", key), zap.Error(err))
	}
	return response, nil
}

// Verify is passed through uncached.
func (f *IdempotentFacilitator) Verify(ctx context.Context, req x402.FacilitatorRequest) (*x402.VerifyResponse, error) {
	return f.inner.Verify(ctx, req)
}

// Inner returns the wrapped client.
func (f *IdempotentFacilitator) Inner() x402.FacilitatorClient {
	return f.inner
}

var _ x402.FacilitatorClient = (*IdempotentFacilitator)(nil)
