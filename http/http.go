// Package http serves the x402 entitlement flow over net/http and provides the
// HTTP facilitator client and the paying client.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// Default routes of the paywall
const (
	DataPath       = "/api/data"
	SettlementPath = "/api/pay"
)

type contextKey string

const entitlementContextKey contextKey = "x402-entitlement"

// EntitlementFromContext returns the record that admitted the request, if any.
func EntitlementFromContext(ctx context.Context) (*x402.SettlementRecord, bool) {
	record, ok := ctx.Value(entitlementContextKey).(*x402.SettlementRecord)
	return record, ok && record != nil
}

// RequirePayment gates next behind gate. Denied requests get a 402 with the
// challenge body; a failed entitlement lookup gets a 500.
func RequirePayment(gate *x402.AccessGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := gate.Check(r)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, x402.NewPaymentError(x402.ErrCodeEntitlementLookup, "", nil))
				return
			}
			if !decision.Admitted {
				writeJSON(w, http.StatusPaymentRequired, decision.Challenge)
				return
			}
			ctx := context.WithValue(r.Context(), entitlementContextKey, decision.Record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SettlementHandler serves the settlement endpoint.
func SettlementHandler(processor *SettlementProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := processor.Process(r.Context(), r.Body)
		writeJSON(w, status, body)
	})
}

// JSONHandler always answers 200 with v.
func JSONHandler(v interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, v)
	})
}

// NewServeMux mounts the gated resource at DataPath and the settlement
// endpoint at SettlementPath.
func NewServeMux(gate *x402.AccessGate, processor *SettlementProcessor, resource http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET "+DataPath, RequirePayment(gate)(resource))
	mux.Handle("POST "+SettlementPath, SettlementHandler(processor))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}
