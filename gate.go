package x402

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// PaymentIDHeader carries the entitlement key on requests for the protected resource.
const PaymentIDHeader = "x-payment-id"

// Decision is the outcome of an access check. When Admitted is false,
// Challenge holds the body of the 402 response.
type Decision struct {
	Admitted  bool
	Key       string
	Record    *SettlementRecord
	Challenge *PaymentRequired
}

// AccessGate admits requests whose entitlement key has a settled record and
// challenges everything else. It never writes to the store.
type AccessGate struct {
	store        EntitlementStore
	issuer       *ChallengeIssuer
	keyExtractor KeyExtractor
	logger       *zap.Logger
}

// GateOption configures an AccessGate
type GateOption func(*AccessGate)

// WithKeyExtractor sets a custom entitlement key extractor. It takes priority
// over the x-payment-id header.
func WithKeyExtractor(extractor KeyExtractor) GateOption {
	return func(g *AccessGate) {
		g.keyExtractor = extractor
	}
}

// WithGateLogger sets the logger
func WithGateLogger(logger *zap.Logger) GateOption {
	return func(g *AccessGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewAccessGate creates a gate reading from store and challenging with issuer.
func NewAccessGate(store EntitlementStore, issuer *ChallengeIssuer, opts ...GateOption) (*AccessGate, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if issuer == nil {
		return nil, ErrNilIssuer
	}
	g := &AccessGate{
		store:  store,
		issuer: issuer,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ResolveKey returns the entitlement key of r: the extractor's key if it
// reports one, else the x-payment-id header, trimmed.
func (g *AccessGate) ResolveKey(r *http.Request) string {
	if g.keyExtractor != nil {
		if key, ok := g.keyExtractor(r); ok {
			return strings.TrimSpace(key)
		}
	}
	return strings.TrimSpace(r.Header.Get(PaymentIDHeader))
}

// Check resolves the key of r and decides admission.
func (g *AccessGate) Check(r *http.Request) (Decision, error) {
	return g.Admit(r.Context(), g.ResolveKey(r))
}

// Admit decides admission for an already resolved key. A store error denies
// access and is returned to the caller.
func (g *AccessGate) Admit(ctx context.Context, key string) (Decision, error) {
	key = strings.TrimSpace(key)
	if key != "" {
		record, ok, err := g.store.Get(ctx, key)
		if err != nil {
			g.logger.Error("entitlement lookup failed", zap.String("payment_id", key), zap.Error(err))
			return Decision{Key: key}, fmt.Errorf("x402: entitlement lookup for %s: %w", key, err)
		}
		if ok && record != nil && record.Settled {
			return Decision{Admitted: true, Key: key, Record: record}, nil
		}
	}

	challenge := g.issuer.Issue()
	g.logger.Debug("payment required",
		zap.String("payment_id", key),
		zap.String("challenge_payment_id", challenge.Accepts[0].PaymentID()))
	return Decision{Key: key, Challenge: &challenge}, nil
}

// Issuer returns the gate's challenge issuer.
func (g *AccessGate) Issuer() *ChallengeIssuer {
	return g.issuer
}
