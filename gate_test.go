package x402

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T, store EntitlementStore, opts ...GateOption) *AccessGate {
	t.Helper()
	issuer, err := NewChallengeIssuer(testConfig(t))
	require.NoError(t, err)
	gate, err := NewAccessGate(store, issuer, opts...)
	require.NoError(t, err)
	return gate
}

func TestAccessGateChallengesWithoutKey(t *testing.T) {
	gate := newTestGate(t, newMapStore())

	decision, err := gate.Check(httptest.NewRequest(http.MethodGet, "/api/data", nil))
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	require.NotNil(t, decision.Challenge)
	require.Len(t, decision.Challenge.Accepts, 1)
	assert.NotEmpty(t, decision.Challenge.Accepts[0].PaymentID())
}

func TestAccessGateAdmitsSettledKey(t *testing.T) {
	store := newMapStore()
	require.NoError(t, store.Put(context.Background(), "p1", SettlementRecord{Settled: true, TransactionHash: "0xabc", RecordedAt: time.Now()}))
	gate := newTestGate(t, store)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
		req.Header.Set("X-Payment-Id", "  p1 ")
		decision, err := gate.Check(req)
		require.NoError(t, err)
		assert.True(t, decision.Admitted, "check %d", i)
		assert.Equal(t, "p1", decision.Key)
		assert.Nil(t, decision.Challenge)
	}
	assert.Equal(t, 1, store.putCount(), "gate must not write")
}

func TestAccessGateDeniesUnsettledOrUnknown(t *testing.T) {
	store := newMapStore()
	require.NoError(t, store.Put(context.Background(), "pending", SettlementRecord{Settled: false}))
	gate := newTestGate(t, store)

	for _, key := range []string{"pending", "unknown", "   "} {
		decision, err := gate.Admit(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, decision.Admitted, key)
		assert.NotNil(t, decision.Challenge, key)
	}
}

func TestAccessGateKeyExtractorPriority(t *testing.T) {
	store := newMapStore()
	require.NoError(t, store.Put(context.Background(), "from-cookie", SettlementRecord{Settled: true}))

	extractor := func(r *http.Request) (string, bool) {
		c, err := r.Cookie("entitlement")
		if err != nil {
			return "", false
		}
		return c.Value, true
	}
	gate := newTestGate(t, store, WithKeyExtractor(extractor))

	t.Run("extractor wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
		req.AddCookie(&http.Cookie{Name: "entitlement", Value: "from-cookie"})
		req.Header.Set(PaymentIDHeader, "other")
		assert.Equal(t, "from-cookie", gate.ResolveKey(req))
	})

	t.Run("falls back to header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
		req.Header.Set(PaymentIDHeader, "hdr")
		assert.Equal(t, "hdr", gate.ResolveKey(req))
	})

	t.Run("empty when nothing present", func(t *testing.T) {
		assert.Equal(t, "", gate.ResolveKey(httptest.NewRequest(http.MethodGet, "/api/data", nil)))
	})
}

func TestAccessGateStoreErrorFailsClosed(t *testing.T) {
	store := newMapStore()
	store.getErr = errors.New("redis down")
	gate := newTestGate(t, store)

	decision, err := gate.Admit(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.getErr)
	assert.False(t, decision.Admitted)
}

func TestAccessGateAfterSettlement(t *testing.T) {
	store := newMapStore()
	gate := newTestGate(t, store)
	coordinator, err := NewSettlementCoordinator(store)
	require.NoError(t, err)

	before, err := gate.Admit(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, before.Admitted)

	result, err := coordinator.Settle(context.Background(), &mockFacilitatorClient{}, settlementRequest("p1"))
	require.NoError(t, err)
	require.True(t, result.OK)

	after, err := gate.Admit(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, after.Admitted)
	assert.Equal(t, "0xabc", after.Record.TransactionHash)
}

func TestNewAccessGateRequiresDependencies(t *testing.T) {
	issuer, err := NewChallengeIssuer(testConfig(t))
	require.NoError(t, err)

	_, err = NewAccessGate(nil, issuer)
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = NewAccessGate(newMapStore(), nil)
	assert.ErrorIs(t, err, ErrNilIssuer)
}
