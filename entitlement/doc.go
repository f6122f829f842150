// Package entitlement provides EntitlementStore implementations.
//
// MemoryStore keeps records for the lifetime of the process. PostgresStore and
// RedisStore keep them in a shared backend so entitlements survive restarts and
// are visible to every replica. All three implement x402.EntitlementStore with
// the same contract: Put is an atomic per-key overwrite and Get reports absence
// without an error.
//
// Open picks a backend from a URL:
//
//	store, closeFn, err := entitlement.Open(ctx, "postgres://user:pass@db/paywall", logger)
//	if err != nil {
//	    return err
//	}
//	defer closeFn()
package entitlement
