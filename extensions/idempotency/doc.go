// Package idempotency deduplicates facilitator settle calls that repeat the
// same signed payment header for the same paymentId.
//
// A client that retries POST /api/pay while the first attempt is still
// settling would otherwise submit the same EIP-3009 authorization twice. Wrap
// puts a SettlementStore in front of any x402.FacilitatorClient:
//
//	facilitator := idempotency.Wrap(httpFacilitator,
//	    idempotency.WithTTL(10*time.Minute),
//	)
//	result, err := coordinator.Settle(ctx, facilitator, req)
//
// Each settle first acquires its key (SettlementKey by default) from the store.
// The key covers the paymentId, so a settled header presented for another id
// is sent to the facilitator instead of being answered from the cache.
// A cached "payment.settled" response is returned as-is; otherwise the caller
// gets a Lease, and concurrent callers for the key block until it is
// completed or released. MemoryStore serves one process and RedisStore shares
// keys between instances.
//
// Only settled responses are cached. Rejections and transport errors release
// the lease so the next attempt reaches the facilitator again. Verify is never
// cached.
package idempotency
