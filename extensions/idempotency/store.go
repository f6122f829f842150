package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// Lease is held by the single caller allowed to settle a key. Exactly one of
// Complete and Release must be called.
type Lease interface {
	// Complete caches a settled response and frees the key.
	Complete(ctx context.Context, response *x402.SettleResponse) error
	// Release frees the key without caching anything.
	Release(ctx context.Context)
}

// SettlementStore coordinates settle calls that share a key.
type SettlementStore interface {
	// Acquire returns the cached response for key, or a Lease once no other
	// caller holds one. It blocks while the key is held elsewhere.
	Acquire(ctx context.Context, key string) (*x402.SettleResponse, Lease, error)
}

// KeyGenerator derives the deduplication key of a facilitator request.
type KeyGenerator func(req x402.FacilitatorRequest) string

// SettlementKey hashes the entitlement key together with the payment header.
// A settled response is only replayed for the paymentId it was settled under;
// the same header presented for another paymentId goes to the facilitator,
// which rejects the spent authorization.
func SettlementKey(req x402.FacilitatorRequest) string {
	h := sha256.New()
	h.Write([]byte(req.PaymentID))
	h.Write([]byte{0})
	h.Write([]byte(req.PaymentHeader))
	return hex.EncodeToString(h.Sum(nil))
}
