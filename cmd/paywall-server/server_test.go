package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	x402 "github.com/x402-foundation/x402-entitlements"
	"github.com/x402-foundation/x402-entitlements/entitlement"
	"github.com/x402-foundation/x402-entitlements/extensions/idempotency"
	x402http "github.com/x402-foundation/x402-entitlements/http"
	x402gin "github.com/x402-foundation/x402-entitlements/http/gin"
	"github.com/x402-foundation/x402-entitlements/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingFacilitator struct {
	settles atomic.Int32
}

func (f *countingFacilitator) Verify(context.Context, x402.FacilitatorRequest) (*x402.VerifyResponse, error) {
	return &x402.VerifyResponse{IsValid: true}, nil
}

func (f *countingFacilitator) Settle(context.Context, x402.FacilitatorRequest) (*x402.SettleResponse, error) {
	f.settles.Add(1)
	return &x402.SettleResponse{Event: x402.SettledEvent, TxHash: "0xfeed"}, nil
}

// nonceFacilitator settles each header once, like a facilitator rejecting a
// reused authorization nonce.
type nonceFacilitator struct {
	mu    sync.Mutex
	spent map[string]bool
}

func (f *nonceFacilitator) Verify(context.Context, x402.FacilitatorRequest) (*x402.VerifyResponse, error) {
	return &x402.VerifyResponse{IsValid: true}, nil
}

func (f *nonceFacilitator) Settle(_ context.Context, req x402.FacilitatorRequest) (*x402.SettleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spent[req.PaymentHeader] {
		return &x402.SettleResponse{Event: "payment.failed", Error: "nonce already used"}, nil
	}
	f.spent[req.PaymentHeader] = true
	return &x402.SettleResponse{Event: x402.SettledEvent, TxHash: "0xfeed"}, nil
}

func testServerConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"MERCHANT_ADDRESS":      "0x1111111111111111111111111111111111111111",
		"STRICT_PAYMENT_HEADER": "false",
	}
	for k, v := range vars {
		base[k] = v
	}
	cfg, err := config.FromLookup(func(key string) (string, bool) {
		v, ok := base[key]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, vars map[string]string) (*app, *entitlement.MemoryStore, *countingFacilitator) {
	t.Helper()
	store := entitlement.NewMemoryStore()
	facilitator := &countingFacilitator{}
	a, err := newApp(testServerConfig(t, vars), zap.NewNop(), store, facilitator, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, store, facilitator
}

func challenge(t *testing.T, h http.Handler) x402.PaymentOption {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, x402http.DataPath, nil))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body x402.PaymentRequired
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Accepts, 1)
	return body.Accepts[0]
}

func pay(t *testing.T, h http.Handler, option x402.PaymentOption) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(x402.SettlementRequest{
		PaymentID:           option.PaymentID(),
		PaymentHeader:       "header",
		PaymentRequirements: option,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, x402http.SettlementPath, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterPaidFlow(t *testing.T) {
	a, store, facilitator := newTestApp(t, nil)
	r := a.router()

	option := challenge(t, r)
	rec := pay(t, r, option)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(x402gin.CorrelationIDHeader))
	assert.Equal(t, 1, store.Len())

	req := httptest.NewRequest(http.MethodGet, x402http.DataPath, nil)
	req.Header.Set(x402.PaymentIDHeader, option.PaymentID())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"response":"paid content unlocked"}`, rec.Body.String())

	// a retried settlement is answered from the idempotency cache
	rec = pay(t, r, option)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, facilitator.settles.Load())
}

func TestRouterHeaderReplayForAnotherPaymentID(t *testing.T) {
	store := entitlement.NewMemoryStore()
	a, err := newApp(testServerConfig(t, nil), zap.NewNop(), store, &nonceFacilitator{spent: make(map[string]bool)}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	r := a.router()

	first := challenge(t, r)
	require.Equal(t, http.StatusOK, pay(t, r, first).Code)
	// retrying the same settlement stays idempotent
	require.Equal(t, http.StatusOK, pay(t, r, first).Code)

	other := challenge(t, r)
	rec := pay(t, r, other)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), string(x402.FailureSettle))

	_, ok, err := store.Get(context.Background(), other.PaymentID())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestRouterHealth(t *testing.T) {
	a, _, _ := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cronos-testnet"`)
}

func TestRouterRateLimitsSettlement(t *testing.T) {
	a, _, _ := newTestApp(t, map[string]string{"PAY_RATE_LIMIT_RPS": "0.001", "PAY_RATE_LIMIT_BURST": "1"})
	r := a.router()
	option := challenge(t, r)

	require.Equal(t, http.StatusOK, pay(t, r, option).Code)
	rec := pay(t, r, option)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	a, _, _ := newTestApp(t, map[string]string{"CORS_ALLOWED_ORIGINS": "https://shop.example"})

	req := httptest.NewRequest(http.MethodOptions, x402http.SettlementPath, nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterMCPDisabledByDefault(t *testing.T) {
	a, _, _ := newTestApp(t, nil)
	assert.Nil(t, a.mcp)

	enabled, _, _ := newTestApp(t, map[string]string{"MCP_ENABLED": "true"})
	assert.NotNil(t, enabled.mcp)
}

func TestRouterRateLimitsMCP(t *testing.T) {
	a, _, _ := newTestApp(t, map[string]string{
		"MCP_ENABLED":          "true",
		"PAY_RATE_LIMIT_RPS":   "0.001",
		"PAY_RATE_LIMIT_BURST": "1",
	})
	r := a.router()

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.7:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.NotEqual(t, http.StatusTooManyRequests, post().Code)
	assert.Equal(t, http.StatusTooManyRequests, post().Code)
}

func TestNewAppLogsOffer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	a, err := newApp(testServerConfig(t, nil), zap.New(core), entitlement.NewMemoryStore(), &countingFacilitator{}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	entries := logs.FilterMessage("paywall configured").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "1 devUSDCe", fields["price"])
	assert.Equal(t, "1000000", fields["price_base_units"])
	assert.Equal(t, "GET", fields["method"])
}

func TestOpenSettleStore(t *testing.T) {
	memory, closeFn, err := openSettleStore(testServerConfig(t, nil))
	require.NoError(t, err)
	closeFn()
	assert.Nil(t, memory)

	shared, closeFn, err := openSettleStore(testServerConfig(t, map[string]string{
		"ENTITLEMENT_STORE_URL": "redis://localhost:6379/0?prefix=shop:",
	}))
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &idempotency.RedisStore{}, shared)

	disabled, closeFn, err := openSettleStore(testServerConfig(t, map[string]string{
		"ENTITLEMENT_STORE_URL":  "redis://localhost:6379/0",
		"SETTLE_IDEMPOTENCY_TTL": "0",
	}))
	require.NoError(t, err)
	closeFn()
	assert.Nil(t, disabled)
}
